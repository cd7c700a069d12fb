// Package ingest runs the message admission pipeline: filter, chunk, embed,
// and upsert into the vector store.
package ingest

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/askchat/askchat-ai-backend/internal/admission"
	"github.com/askchat/askchat-ai-backend/internal/chunker"
	"github.com/askchat/askchat-ai-backend/internal/config"
	"github.com/askchat/askchat-ai-backend/internal/embedding"
	"github.com/askchat/askchat-ai-backend/internal/models"
	"github.com/askchat/askchat-ai-backend/internal/store"
)

// Ingester admits, chunks, embeds, and upserts chat messages. Re-ingesting a
// message overwrites its prior records because chunk IDs are derived from the
// message identity.
type Ingester struct {
	filter     *admission.Filter
	chunker    *chunker.Chunker
	embedder   embedding.Embedder
	store      store.VectorStore
	collection string
	logger     *zap.Logger // optional; when set, logs debug events
}

// IngesterOption configures an Ingester.
type IngesterOption func(*Ingester)

// WithLogger sets a logger for debug output (message skipped, chunks upserted).
func WithLogger(l *zap.Logger) IngesterOption {
	return func(ing *Ingester) { ing.logger = l }
}

// NewIngester creates an ingester with the given dependencies.
func NewIngester(
	embedder embedding.Embedder,
	vstore store.VectorStore,
	cfg *config.Config,
	opts ...IngesterOption,
) (*Ingester, error) {
	ch, err := chunker.New(
		cfg.Retrieval.MaxCharsPerChunk,
		cfg.Retrieval.ChunkOverlap,
		cfg.Retrieval.BoundaryRatio,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chunker: %w", err)
	}
	ing := &Ingester{
		filter:     admission.NewFilter(cfg.Retrieval.MinChars, cfg.Retrieval.MinNonspace, cfg.Retrieval.MinAlnum),
		chunker:    ch,
		embedder:   embedder,
		store:      vstore,
		collection: cfg.Store.Collection,
	}
	for _, opt := range opts {
		opt(ing)
	}
	return ing, nil
}

// IngestMessage runs one message through the pipeline. Low-signal messages
// are reported as skipped, not errors; the caller still gets a 2xx outcome.
func (ing *Ingester) IngestMessage(ctx context.Context, msg *models.Message) (*models.IngestResult, error) {
	if msg.ChatID == "" || msg.MessageID == "" {
		return nil, fmt.Errorf("chatId and messageId are required")
	}
	text := strings.TrimSpace(msg.Text)

	if skip, reason := ing.filter.ShouldSkip(text); skip {
		if ing.logger != nil {
			ing.logger.Debug("message skipped",
				zap.String("chatId", msg.ChatID),
				zap.String("messageId", msg.MessageID),
				zap.String("reason", reason))
		}
		return &models.IngestResult{
			Status:     "skipped:" + reason,
			Upserted:   0,
			Collection: ing.collection,
		}, nil
	}

	chunks := ing.chunker.Chunk(text)
	vectors, err := ing.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to embed message %s: %w", msg.MessageID, err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	origLength := len([]rune(text))
	isChunk := len(chunks) > 1
	records := make([]store.Record, len(chunks))
	for i, chunk := range chunks {
		records[i] = store.Record{
			ID:       store.RecordID(msg.ChatID, msg.MessageID, i),
			Vector:   vectors[i],
			Document: chunk,
			Meta: store.Metadata{
				ChatID:      msg.ChatID,
				MessageID:   msg.MessageID,
				SenderID:    msg.SenderID,
				Timestamp:   msg.Timestamp,
				IsChunk:     isChunk,
				ChunkIndex:  i,
				TotalChunks: len(chunks),
				OrigLength:  origLength,
			},
		}
	}
	if err := ing.store.Upsert(ctx, records); err != nil {
		return nil, fmt.Errorf("failed to upsert message %s: %w", msg.MessageID, err)
	}

	status := "ok"
	if isChunk {
		status = fmt.Sprintf("ok:chunked(%d)", len(chunks))
	}
	if ing.logger != nil {
		ing.logger.Debug("message ingested",
			zap.String("chatId", msg.ChatID),
			zap.String("messageId", msg.MessageID),
			zap.Int("chunks", len(chunks)))
	}
	return &models.IngestResult{
		Status:     status,
		Upserted:   len(records),
		Collection: ing.collection,
	}, nil
}
