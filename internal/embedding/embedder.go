// Package embedding maps message text to fixed-dimension vectors.
// The concrete provider (remote API or local model) is resolved once at
// startup; the rest of the pipeline only sees the Embedder interface.
package embedding

import "context"

// Embedder produces vector embeddings for text. EmbedBatch is order-preserving
// and returns one vector per input text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
	Dimensions() int
	Close() error
}
