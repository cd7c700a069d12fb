package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// qdrantPointNamespace derives stable point UUIDs from logical record IDs, so
// re-ingesting the same message overwrites its points instead of duplicating.
var qdrantPointNamespace = uuid.MustParse("8f1c2a34-5d6e-4b7f-9a80-1c2d3e4f5a6b")

// QdrantStore is a minimal REST client to Qdrant. It assumes cosine distance
// and creates the collection on first use.
type QdrantStore struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client

	mu      sync.Mutex
	ensured bool
}

// QdrantConfig configures a QdrantStore.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Dimension  int
	Timeout    time.Duration
}

// NewQdrantStore creates a Qdrant-backed vector store. The collection is
// created lazily on the first Upsert or QuerySimilar.
func NewQdrantStore(cfg QdrantConfig) *QdrantStore {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &QdrantStore{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
		client:     &http.Client{Timeout: timeout},
	}
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured {
		return nil
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     s.dimension,
			"distance": "Cosine",
		},
	}
	// Qdrant answers PUT on an existing collection with 409, so conflict
	// means the collection is already there and creation can be repeated.
	url := fmt.Sprintf("%s/collections/%s", s.url, s.collection)
	status, err := s.doJSONStatus(ctx, http.MethodPut, url, body, nil)
	if err != nil {
		return fmt.Errorf("ensure collection %s: %w", s.collection, err)
	}
	if status >= 300 && status != http.StatusConflict {
		return fmt.Errorf("ensure collection %s: qdrant returned %d", s.collection, status)
	}
	s.ensured = true
	return nil
}

// Upsert writes records as Qdrant points. Point UUIDs are derived from the
// logical record ID, which keeps the operation idempotent.
func (s *QdrantStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx); err != nil {
		return err
	}
	points := make([]map[string]any, len(records))
	for i, rec := range records {
		points[i] = map[string]any{
			"id":     uuid.NewSHA1(qdrantPointNamespace, []byte(rec.ID)).String(),
			"vector": rec.Vector,
			"payload": map[string]any{
				"recordId":    rec.ID,
				"document":    rec.Document,
				"chatId":      rec.Meta.ChatID,
				"messageId":   rec.Meta.MessageID,
				"senderId":    rec.Meta.SenderID,
				"timestamp":   rec.Meta.Timestamp,
				"isChunk":     rec.Meta.IsChunk,
				"chunkIndex":  rec.Meta.ChunkIndex,
				"totalChunks": rec.Meta.TotalChunks,
				"origLength":  rec.Meta.OrigLength,
			},
		}
	}
	body := map[string]any{"points": points}
	url := fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection)
	if err := s.putJSON(ctx, url, body, nil); err != nil {
		return fmt.Errorf("upsert points: %w", err)
	}
	return nil
}

// QuerySimilar searches the collection and returns up to n hits ascending by
// cosine distance. Qdrant reports cosine similarity, converted here as
// distance = 1 - score.
func (s *QdrantStore) QuerySimilar(ctx context.Context, vector []float32, n int) ([]Hit, error) {
	if n <= 0 {
		return nil, nil
	}
	if err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        n,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection)
	if err := s.postJSON(ctx, url, req, &resp); err != nil {
		return nil, fmt.Errorf("search points: %w", err)
	}

	hits := make([]Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		h := Hit{Distance: 1 - r.Score}
		if v, ok := r.Payload["recordId"].(string); ok {
			h.ID = v
		}
		if v, ok := r.Payload["document"].(string); ok {
			h.Document = v
		}
		if v, ok := r.Payload["chatId"].(string); ok {
			h.Meta.ChatID = v
		}
		if v, ok := r.Payload["messageId"].(string); ok {
			h.Meta.MessageID = v
		}
		if v, ok := r.Payload["senderId"].(string); ok {
			h.Meta.SenderID = v
		}
		if v, ok := r.Payload["timestamp"].(float64); ok {
			h.Meta.Timestamp = int64(v)
		}
		if v, ok := r.Payload["isChunk"].(bool); ok {
			h.Meta.IsChunk = v
		}
		if v, ok := r.Payload["chunkIndex"].(float64); ok {
			h.Meta.ChunkIndex = int(v)
		}
		if v, ok := r.Payload["totalChunks"].(float64); ok {
			h.Meta.TotalChunks = int(v)
		}
		if v, ok := r.Payload["origLength"].(float64); ok {
			h.Meta.OrigLength = int(v)
		}
		hits = append(hits, h)
	}
	return hits, nil
}

// Count returns the number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	if err := s.ensureCollection(ctx); err != nil {
		return 0, err
	}
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/count", s.url, s.collection)
	if err := s.postJSON(ctx, url, map[string]any{"exact": true}, &resp); err != nil {
		return 0, fmt.Errorf("count points: %w", err)
	}
	return resp.Result.Count, nil
}

// Close releases idle connections.
func (s *QdrantStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *QdrantStore) putJSON(ctx context.Context, url string, body, out any) error {
	return s.doJSON(ctx, http.MethodPut, url, body, out)
}

func (s *QdrantStore) postJSON(ctx context.Context, url string, body, out any) error {
	return s.doJSON(ctx, http.MethodPost, url, body, out)
}

func (s *QdrantStore) doJSON(ctx context.Context, method, url string, body, out any) error {
	status, err := s.doJSONStatus(ctx, method, url, body, out)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %d", method, url, status)
	}
	return nil
}

// doJSONStatus performs the request and returns the HTTP status code; err is
// non-nil only for transport or decoding failures. The body is decoded into
// out on 2xx responses.
func (s *QdrantStore) doJSONStatus(ctx context.Context, method, url string, body, out any) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}
