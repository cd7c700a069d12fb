package models

import (
	"fmt"
	"strings"
)

// AskQuery is a question over the indexed chat history.
// CtxWindow is accepted and validated but reserved for future
// context-window expansion; retrieval does not use it yet.
type AskQuery struct {
	Question  string `json:"question"`
	UserID    string `json:"userId,omitempty"`
	TopK      int    `json:"top_k,omitempty"`
	CtxWindow *int   `json:"ctx_window,omitempty"`
}

// Validate checks field ranges and applies defaults for unset values.
// Returns an error for an empty question or out-of-range top_k/ctx_window.
func (q *AskQuery) Validate() error {
	if strings.TrimSpace(q.Question) == "" {
		return fmt.Errorf("question cannot be empty")
	}
	if q.TopK == 0 {
		q.TopK = 6
	}
	if q.TopK < 1 || q.TopK > 50 {
		return fmt.Errorf("top_k must be between 1 and 50, got %d", q.TopK)
	}
	if q.CtxWindow == nil {
		w := 2
		q.CtxWindow = &w
	}
	if *q.CtxWindow < 0 || *q.CtxWindow > 10 {
		return fmt.Errorf("ctx_window must be between 0 and 10, got %d", *q.CtxWindow)
	}
	return nil
}

// Source is one cited message in an answer. Score is cosine distance
// (lower = more similar).
type Source struct {
	ChatID    string  `json:"chatId"`
	MessageID string  `json:"messageId"`
	Text      string  `json:"text"`
	Score     float64 `json:"score"`
	Timestamp int64   `json:"timestamp,omitempty"`
}

// AskResponse is the answer plus the ranked sources it was drawn from.
type AskResponse struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}
