package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/askchat/askchat-ai-backend/internal/config"
	"github.com/askchat/askchat-ai-backend/internal/embedding"
	"github.com/askchat/askchat-ai-backend/internal/models"
	"github.com/askchat/askchat-ai-backend/internal/store"
)

func newTestIngester(t *testing.T) (*Ingester, *store.MemoryStore) {
	t.Helper()
	cfg := config.Default()
	vstore := store.NewMemoryStore()
	ing, err := NewIngester(embedding.NewMockEmbedder(32), vstore, cfg)
	if err != nil {
		t.Fatalf("NewIngester failed: %v", err)
	}
	return ing, vstore
}

func TestIngestMessageOK(t *testing.T) {
	ing, vstore := newTestIngester(t)
	ctx := context.Background()

	res, err := ing.IngestMessage(ctx, &models.Message{
		ChatID:    "chat1",
		MessageID: "msg1",
		Text:      "let's meet at the office on Tuesday at 10am",
		SenderID:  "alice",
		Timestamp: 1700000000,
	})
	if err != nil {
		t.Fatalf("IngestMessage failed: %v", err)
	}
	if res.Status != "ok" {
		t.Errorf("Status = %q, want \"ok\"", res.Status)
	}
	if res.Upserted != 1 {
		t.Errorf("Upserted = %d, want 1", res.Upserted)
	}
	if res.Collection != "askchat_messages" {
		t.Errorf("Collection = %q, want askchat_messages", res.Collection)
	}

	count, _ := vstore.Count(ctx)
	if count != 1 {
		t.Errorf("store count = %d, want 1", count)
	}
	hits, err := vstore.QuerySimilar(ctx, mustEmbed(t, "meeting at the office"), 1)
	if err != nil {
		t.Fatalf("QuerySimilar failed: %v", err)
	}
	if hits[0].ID != "chat1::msg1#c0" {
		t.Errorf("record ID = %q, want chat1::msg1#c0", hits[0].ID)
	}
	if hits[0].Meta.IsChunk {
		t.Error("single-chunk message should not be marked IsChunk")
	}
	if hits[0].Meta.TotalChunks != 1 {
		t.Errorf("TotalChunks = %d, want 1", hits[0].Meta.TotalChunks)
	}
}

func mustEmbed(t *testing.T, text string) []float32 {
	t.Helper()
	vec, err := embedding.NewMockEmbedder(32).Embed(context.Background(), text)
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	return vec
}

func TestIngestMessageSkipped(t *testing.T) {
	ing, vstore := newTestIngester(t)
	ctx := context.Background()

	res, err := ing.IngestMessage(ctx, &models.Message{
		ChatID:    "chat1",
		MessageID: "msg1",
		Text:      "ok",
	})
	if err != nil {
		t.Fatalf("IngestMessage failed: %v", err)
	}
	if !strings.HasPrefix(res.Status, "skipped:too_short(") {
		t.Errorf("Status = %q, want skipped:too_short(...)", res.Status)
	}
	if res.Upserted != 0 {
		t.Errorf("Upserted = %d, want 0", res.Upserted)
	}

	count, _ := vstore.Count(ctx)
	if count != 0 {
		t.Errorf("skipped message reached the store, count = %d", count)
	}
}

func TestIngestMessageChunked(t *testing.T) {
	ing, vstore := newTestIngester(t)
	ctx := context.Background()

	res, err := ing.IngestMessage(ctx, &models.Message{
		ChatID:    "chat1",
		MessageID: "long1",
		Text:      strings.Repeat("a", 3000),
	})
	if err != nil {
		t.Fatalf("IngestMessage failed: %v", err)
	}
	if res.Status != "ok:chunked(2)" {
		t.Errorf("Status = %q, want \"ok:chunked(2)\"", res.Status)
	}
	if res.Upserted != 2 {
		t.Errorf("Upserted = %d, want 2", res.Upserted)
	}

	hits, err := vstore.QuerySimilar(ctx, mustEmbed(t, "aaaa"), 2)
	if err != nil {
		t.Fatalf("QuerySimilar failed: %v", err)
	}
	for _, h := range hits {
		if !h.Meta.IsChunk {
			t.Errorf("record %s should be marked IsChunk", h.ID)
		}
		if h.Meta.TotalChunks != 2 {
			t.Errorf("record %s TotalChunks = %d, want 2", h.ID, h.Meta.TotalChunks)
		}
		if h.Meta.OrigLength != 3000 {
			t.Errorf("record %s OrigLength = %d, want 3000", h.ID, h.Meta.OrigLength)
		}
	}
}

func TestIngestMessageIdempotent(t *testing.T) {
	ing, vstore := newTestIngester(t)
	ctx := context.Background()

	msg := &models.Message{
		ChatID:    "chat1",
		MessageID: "msg1",
		Text:      "we decided to move the launch to next Friday",
	}
	if _, err := ing.IngestMessage(ctx, msg); err != nil {
		t.Fatalf("first IngestMessage failed: %v", err)
	}
	if _, err := ing.IngestMessage(ctx, msg); err != nil {
		t.Fatalf("second IngestMessage failed: %v", err)
	}

	count, _ := vstore.Count(ctx)
	if count != 1 {
		t.Errorf("store count after re-ingest = %d, want 1", count)
	}
}

func TestIngestMessageRequiresIdentity(t *testing.T) {
	ing, _ := newTestIngester(t)
	ctx := context.Background()

	if _, err := ing.IngestMessage(ctx, &models.Message{Text: "hello there friend"}); err == nil {
		t.Error("expected error for missing chatId/messageId, got nil")
	}
	if _, err := ing.IngestMessage(ctx, &models.Message{ChatID: "c", Text: "hello there friend"}); err == nil {
		t.Error("expected error for missing messageId, got nil")
	}
}
