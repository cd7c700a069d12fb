// Package store persists embedded message chunks and answers
// nearest-neighbor queries by cosine distance.
package store

import (
	"context"
	"fmt"
)

// Metadata carries the lineage of a stored chunk back to its source message.
type Metadata struct {
	ChatID      string `json:"chatId"`
	MessageID   string `json:"messageId"`
	SenderID    string `json:"senderId"`
	Timestamp   int64  `json:"timestamp"`
	IsChunk     bool   `json:"isChunk"`
	ChunkIndex  int    `json:"chunkIndex"`
	TotalChunks int    `json:"totalChunks"`
	OrigLength  int    `json:"origLength"`
}

// Record is the persisted unit: one embedded chunk with its text and lineage.
type Record struct {
	ID       string
	Vector   []float32
	Document string
	Meta     Metadata
}

// Hit is one nearest-neighbor result. Distance is cosine distance
// (lower = more similar).
type Hit struct {
	ID       string
	Document string
	Meta     Metadata
	Distance float64
}

// VectorStore persists records and answers similarity queries.
// Upsert is idempotent by record ID: re-ingesting the same message chunk
// overwrites the prior record. QuerySimilar returns up to n hits ordered
// ascending by distance, fewer when the store holds fewer records.
type VectorStore interface {
	Upsert(ctx context.Context, records []Record) error
	QuerySimilar(ctx context.Context, vector []float32, n int) ([]Hit, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// RecordID derives the stable identifier for a message chunk. Re-ingestion
// relies on this format staying fixed for idempotent overwrite.
func RecordID(chatID, messageID string, chunkIndex int) string {
	return fmt.Sprintf("%s::%s#c%d", chatID, messageID, chunkIndex)
}
