package bbs

import (
	"time"

	"widgetd/internal/widget"
	"widgetd/internal/widget/identity"
)

// Message is one board post. TokenDigest is the digest of the poster's
// own credential, if one was supplied at posting time; it authorizes
// edits and deletes of this message alongside the target owner's digest.
type Message struct {
	ID          string     `json:"id"`
	Author      string     `json:"author"`
	Body        string     `json:"body"`
	Icon        string     `json:"icon,omitempty"`
	Created     time.Time  `json:"created"`
	Edited      *time.Time `json:"edited,omitempty"`
	TokenDigest string     `json:"tokenDigest,omitempty"`
}

// State is the persisted board for one target. Messages are stored
// oldest-first; display order is a projection concern.
type State struct {
	Messages []Message `json:"messages,omitempty"`
}

// PageResult is the paginated read projection. Token digests are
// stripped: they never leave the engine.
type PageResult struct {
	Messages   []Message `json:"messages"`
	Page       int       `json:"page"`
	PageCount  int       `json:"pageCount"`
	TotalCount int       `json:"totalCount"`
}

// Post appends msg to the board.
func Post(s State, msg Message) State {
	out := clone(s)
	out.Messages = append(out.Messages, msg)
	return out
}

// Edit replaces the body of the identified message. The provided digest
// must match the message's own digest or the target owner's digest.
func Edit(s State, messageID, newBody, providedDigest, ownerDigest string, now time.Time) (State, error) {
	i := indexByID(s.Messages, messageID)
	if i < 0 {
		return s, widget.ErrNotFound
	}
	if !authorized(s.Messages[i], providedDigest, ownerDigest) {
		return s, widget.ErrUnauthorized
	}

	out := clone(s)
	out.Messages[i].Body = newBody
	edited := now
	out.Messages[i].Edited = &edited
	return out, nil
}

// Delete removes the identified message under the same authorization
// rule as Edit. A missing id reports ErrNotFound rather than silently
// succeeding.
func Delete(s State, messageID, providedDigest, ownerDigest string) (State, error) {
	i := indexByID(s.Messages, messageID)
	if i < 0 {
		return s, widget.ErrNotFound
	}
	if !authorized(s.Messages[i], providedDigest, ownerDigest) {
		return s, widget.ErrUnauthorized
	}

	out := clone(s)
	out.Messages = append(out.Messages[:i], out.Messages[i+1:]...)
	return out, nil
}

// Page returns one page of messages. pageNumber is clamped to
// [1, pageCount]; out-of-range requests get the nearest valid page.
func Page(s State, pageNumber, pageSize int, newestFirst bool) PageResult {
	total := len(s.Messages)
	if pageSize < 1 {
		pageSize = 1
	}
	pageCount := (total + pageSize - 1) / pageSize
	if pageCount < 1 {
		pageCount = 1
	}
	if pageNumber < 1 {
		pageNumber = 1
	}
	if pageNumber > pageCount {
		pageNumber = pageCount
	}

	ordered := make([]Message, total)
	if newestFirst {
		for i := range s.Messages {
			ordered[total-1-i] = s.Messages[i]
		}
	} else {
		copy(ordered, s.Messages)
	}

	start := (pageNumber - 1) * pageSize
	end := start + pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	page := make([]Message, end-start)
	copy(page, ordered[start:end])
	for i := range page {
		page[i].TokenDigest = ""
	}

	return PageResult{
		Messages:   page,
		Page:       pageNumber,
		PageCount:  pageCount,
		TotalCount: total,
	}
}

func authorized(msg Message, providedDigest, ownerDigest string) bool {
	if providedDigest == "" {
		return false
	}
	if msg.TokenDigest != "" && identity.EqualDigest(providedDigest, msg.TokenDigest) {
		return true
	}
	return ownerDigest != "" && identity.EqualDigest(providedDigest, ownerDigest)
}

func indexByID(messages []Message, id string) int {
	for i := range messages {
		if messages[i].ID == id {
			return i
		}
	}
	return -1
}

func clone(s State) State {
	return State{Messages: append([]Message(nil), s.Messages...)}
}
