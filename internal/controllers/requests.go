package controllers

import (
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/gookit/validate"
)

const maxRequestBodySize = 1 << 20 // 1 MB

// FieldError is one request-shape violation reported back to the
// caller. Malformed input never reaches the widget engines.
type FieldError struct {
	Field string `json:"field"`
	Msg   string `json:"message"`
}

type createWidgetRequest struct {
	Type       string `json:"type" validate:"required|in:counter,like,ranking,bbs"`
	Target     string `json:"target" validate:"required|maxLen:2048"`
	OwnerToken string `json:"ownerToken" validate:"required|minLen:8|maxLen:16"`
}

type visitRequest struct {
	Target string `json:"target" validate:"required|maxLen:2048"`
}

type counterResetRequest struct {
	Target     string `json:"target" validate:"required|maxLen:2048"`
	OwnerToken string `json:"ownerToken" validate:"required|minLen:8|maxLen:16"`
}

type toggleLikeRequest struct {
	Target string `json:"target" validate:"required|maxLen:2048"`
}

type submitScoreRequest struct {
	Target      string  `json:"target" validate:"required|maxLen:2048"`
	Name        string  `json:"name" validate:"required|maxLen:64"`
	Score       float64 `json:"score"`
	BestPerName bool    `json:"bestPerName"`
}

type rankingConfigRequest struct {
	Target     string `json:"target" validate:"required|maxLen:2048"`
	OwnerToken string `json:"ownerToken" validate:"required|minLen:8|maxLen:16"`
	MaxEntries int    `json:"maxEntries" validate:"min:0"`
}

type postMessageRequest struct {
	Target string `json:"target" validate:"required|maxLen:2048"`
	Author string `json:"author" validate:"required|maxLen:32"`
	Body   string `json:"body" validate:"required"`
	Icon   string `json:"icon" validate:"maxLen:64"`
	// Token is the poster's optional credential for later edits; when
	// present it must satisfy the owner-token shape.
	Token string `json:"token"`
}

type editMessageRequest struct {
	Target    string `json:"target" validate:"required|maxLen:2048"`
	MessageID string `json:"messageId" validate:"required"`
	Body      string `json:"body" validate:"required"`
	Token     string `json:"token" validate:"required|minLen:8|maxLen:16"`
}

type deleteMessageRequest struct {
	Target    string `json:"target" validate:"required|maxLen:2048"`
	MessageID string `json:"messageId" validate:"required"`
	Token     string `json:"token" validate:"required|minLen:8|maxLen:16"`
}

// decodeAndValidate parses the JSON body into req and runs its tag
// rules. On failure it writes the 400 response itself and returns false.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return false
	}

	v := validate.Struct(req)
	if v.Validate() {
		return true
	}

	writeFieldErrors(w, fieldErrors(v.Errors))
	return false
}

func fieldErrors(errs validate.Errors) []FieldError {
	out := make([]FieldError, 0, len(errs))
	for field, messages := range errs {
		for _, msg := range messages {
			out = append(out, FieldError{Field: field, Msg: msg})
			break
		}
	}
	return out
}

func writeFieldErrors(w http.ResponseWriter, errs []FieldError) {
	gson, err := json.Marshal(map[string][]FieldError{"errors": errs})
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_, _ = w.Write(gson)
}
