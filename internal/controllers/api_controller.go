package controllers

import (
	"errors"
	"math"
	"net"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cast"

	"widgetd/internal/providers"
	"widgetd/internal/services"
	"widgetd/internal/widget"
	"widgetd/internal/widget/visitor"
)

type ApiController struct {
	logger  providers.Logger
	service services.WidgetServiceInterface
	cache   providers.CacheProviderInterface
	keys    *cacheKeys
}

func NewApiController(logger providers.Logger, service services.WidgetServiceInterface, cache providers.CacheProviderInterface) *ApiController {
	return &ApiController{
		logger:  logger,
		service: service,
		cache:   cache,
		keys:    newCacheKeys(),
	}
}

// clientOrigin extracts the visitor's network origin, preferring the
// first X-Forwarded-For hop when the daemon sits behind a proxy.
func clientOrigin(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func getTarget(r *http.Request) string {
	return r.URL.Query().Get("target")
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, widget.ErrInvalidCredential):
		return http.StatusBadRequest
	case errors.Is(err, widget.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, widget.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, widget.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, widget.ErrCapacityExceeded):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (ac *ApiController) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		ac.logger.Errorf(providers.GetLogTypeByRequestType(r.Method), "%s %s: %s", r.Method, r.URL.Path, err)
		http.Error(w, "Internal Server Error", status)
		return
	}
	http.Error(w, err.Error(), status)
}

func (ac *ApiController) writeJSON(w http.ResponseWriter, status int, payload any) {
	gson, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(gson)
}

func (ac *ApiController) serveFromCacheOrCompute(w http.ResponseWriter, r *http.Request, cacheKey string, compute func() (any, error)) {
	if data, ok := ac.cache.Get(cacheKey); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	result, err := compute()
	if err != nil {
		ac.writeError(w, r, err)
		return
	}

	gson, err := json.Marshal(result)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ac.cache.Set(cacheKey, gson)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

func (ac *ApiController) CreateWidget(w http.ResponseWriter, r *http.Request) {
	var req createWidgetRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := ac.service.CreateWidget(r.Context(), req.Type, req.Target, req.OwnerToken); err != nil {
		ac.writeError(w, r, err)
		return
	}
	ac.logger.Infof(providers.TypePost, "Created %s widget for %s", req.Type, req.Target)
	w.WriteHeader(http.StatusCreated)
}

func (ac *ApiController) RecordVisit(w http.ResponseWriter, r *http.Request) {
	var req visitRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	counts, err := ac.service.RecordVisit(r.Context(), req.Target, clientOrigin(r), r.UserAgent())
	if err != nil {
		ac.writeError(w, r, err)
		return
	}
	ac.keys.bump("counts", req.Target)
	ac.writeJSON(w, http.StatusOK, counts)
}

func (ac *ApiController) GetCounts(w http.ResponseWriter, r *http.Request) {
	target := getTarget(r)
	ac.serveFromCacheOrCompute(w, r, ac.keys.key("counts", target), func() (any, error) {
		return ac.service.ReadCounts(r.Context(), target)
	})
}

func (ac *ApiController) ResetCounter(w http.ResponseWriter, r *http.Request) {
	var req counterResetRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := ac.service.ResetCounter(r.Context(), req.Target, req.OwnerToken); err != nil {
		ac.writeError(w, r, err)
		return
	}
	ac.keys.bump("counts", req.Target)
	w.WriteHeader(http.StatusNoContent)
}

func (ac *ApiController) ToggleLike(w http.ResponseWriter, r *http.Request) {
	var req toggleLikeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	origin := clientOrigin(r)
	summary, err := ac.service.ToggleLike(r.Context(), req.Target, origin, r.UserAgent())
	if err != nil {
		ac.writeError(w, r, err)
		return
	}
	ac.keys.bump("like", req.Target)
	ac.writeJSON(w, http.StatusOK, summary)
}

func (ac *ApiController) GetLikeState(w http.ResponseWriter, r *http.Request) {
	target := getTarget(r)
	origin := clientOrigin(r)
	signature := r.UserAgent()
	cacheKey := ac.keys.key("like", target, visitor.Fingerprint(origin, signature))
	ac.serveFromCacheOrCompute(w, r, cacheKey, func() (any, error) {
		return ac.service.ReadLikeState(r.Context(), target, origin, signature)
	})
}

func (ac *ApiController) SubmitScore(w http.ResponseWriter, r *http.Request) {
	var req submitScoreRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if math.IsNaN(req.Score) || math.IsInf(req.Score, 0) {
		writeFieldErrors(w, []FieldError{{Field: "score", Msg: "must be a finite number"}})
		return
	}

	entries, err := ac.service.SubmitScore(r.Context(), req.Target, req.Name, req.Score, req.BestPerName)
	if err != nil {
		ac.writeError(w, r, err)
		return
	}
	ac.keys.bump("top", req.Target)
	ac.writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (ac *ApiController) GetTop(w http.ResponseWriter, r *http.Request) {
	target := getTarget(r)
	limit := -1
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := cast.ToIntE(raw)
		if err != nil {
			writeFieldErrors(w, []FieldError{{Field: "limit", Msg: "must be an integer"}})
			return
		}
		limit = parsed
	}
	ac.serveFromCacheOrCompute(w, r, ac.keys.key("top", target, cast.ToString(limit)), func() (any, error) {
		entries, err := ac.service.ReadTop(r.Context(), target, limit)
		if err != nil {
			return nil, err
		}
		return map[string]any{"entries": entries}, nil
	})
}

func (ac *ApiController) SetRankingLimit(w http.ResponseWriter, r *http.Request) {
	var req rankingConfigRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := ac.service.SetRankingLimit(r.Context(), req.Target, req.OwnerToken, req.MaxEntries); err != nil {
		ac.writeError(w, r, err)
		return
	}
	ac.keys.bump("top", req.Target)
	w.WriteHeader(http.StatusNoContent)
}

func (ac *ApiController) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req postMessageRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	msg, err := ac.service.PostMessage(r.Context(), req.Target, req.Author, req.Body, req.Icon, req.Token)
	if err != nil {
		ac.writeError(w, r, err)
		return
	}
	ac.keys.bump("bbs", req.Target)
	ac.writeJSON(w, http.StatusCreated, msg)
}

func (ac *ApiController) EditMessage(w http.ResponseWriter, r *http.Request) {
	var req editMessageRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := ac.service.EditMessage(r.Context(), req.Target, req.MessageID, req.Body, req.Token); err != nil {
		ac.writeError(w, r, err)
		return
	}
	ac.keys.bump("bbs", req.Target)
	w.WriteHeader(http.StatusNoContent)
}

func (ac *ApiController) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	var req deleteMessageRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := ac.service.DeleteMessage(r.Context(), req.Target, req.MessageID, req.Token); err != nil {
		ac.writeError(w, r, err)
		return
	}
	ac.keys.bump("bbs", req.Target)
	w.WriteHeader(http.StatusNoContent)
}

func (ac *ApiController) GetPage(w http.ResponseWriter, r *http.Request) {
	target := getTarget(r)
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		parsed, err := cast.ToIntE(raw)
		if err != nil {
			writeFieldErrors(w, []FieldError{{Field: "page", Msg: "must be an integer"}})
			return
		}
		page = parsed
	}
	if page < 1 {
		page = 1
	}
	ac.serveFromCacheOrCompute(w, r, ac.keys.key("bbs", target, cast.ToString(page)), func() (any, error) {
		return ac.service.ListPage(r.Context(), target, page)
	})
}
