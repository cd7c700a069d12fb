// Package models defines core data structures for messages, questions, and answers.
package models

// Message is the unit of ingestion: one chat message to embed and index.
// Timestamp is epoch milliseconds; SenderID and Timestamp are optional.
type Message struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
	Text      string `json:"text"`
	SenderID  string `json:"senderId,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// IngestResult reports the outcome of ingesting one message.
// Status is "ok", "ok:chunked(N)", or "skipped:<reason>".
type IngestResult struct {
	Status     string `json:"status"`
	Upserted   int    `json:"upserted"`
	Collection string `json:"collection"`
}
