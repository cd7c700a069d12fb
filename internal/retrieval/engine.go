package retrieval

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/askchat/askchat-ai-backend/internal/answer"
	"github.com/askchat/askchat-ai-backend/internal/config"
	"github.com/askchat/askchat-ai-backend/internal/embedding"
	"github.com/askchat/askchat-ai-backend/internal/models"
	"github.com/askchat/askchat-ai-backend/internal/store"
)

// Engine runs the question pipeline: embed, over-fetched store query,
// collapse, rank, draft.
type Engine struct {
	embedder        embedding.Embedder
	store           store.VectorStore
	drafter         answer.Drafter
	overfetchFactor int
	logger          *zap.Logger // optional; when set, logs debug events
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a logger for per-query debug output.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a retrieval engine with the given dependencies.
func NewEngine(
	embedder embedding.Embedder,
	vstore store.VectorStore,
	drafter answer.Drafter,
	cfg *config.RetrievalConfig,
	opts ...EngineOption,
) *Engine {
	factor := cfg.OverfetchFactor
	if factor <= 0 {
		factor = 3
	}
	e := &Engine{
		embedder:        embedder,
		store:           vstore,
		drafter:         drafter,
		overfetchFactor: factor,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ask validates the query, retrieves the top-K distinct messages, and drafts
// an answer. Zero retrieved sources is not an error; the drafter produces a
// deterministic no-results answer.
func (e *Engine) Ask(ctx context.Context, q *models.AskQuery) (*models.AskResponse, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	queryID := uuid.New().String()

	vector, err := e.embedder.Embed(ctx, q.Question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	// Over-fetch so that one message split across chunks cannot crowd
	// distinct messages out of the final top-K.
	fetchN := q.TopK * e.overfetchFactor
	if fetchN < 1 {
		fetchN = 1
	}
	hits, err := e.store.QuerySimilar(ctx, vector, fetchN)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}

	ranked := Rank(Collapse(hits), q.TopK)
	sources := make([]models.Source, len(ranked))
	for i, h := range ranked {
		sources[i] = models.Source{
			ChatID:    h.Meta.ChatID,
			MessageID: h.Meta.MessageID,
			Text:      h.Document,
			Score:     h.Distance,
			Timestamp: h.Meta.Timestamp,
		}
	}

	if e.logger != nil {
		e.logger.Debug("question answered",
			zap.String("queryId", queryID),
			zap.Int("rawHits", len(hits)),
			zap.Int("sources", len(sources)))
	}

	ans, err := e.drafter.Draft(ctx, q.Question, sources)
	if err != nil {
		return nil, fmt.Errorf("failed to draft answer: %w", err)
	}
	return &models.AskResponse{Answer: ans, Sources: sources}, nil
}
