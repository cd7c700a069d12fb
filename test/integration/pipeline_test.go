// Package integration provides end-to-end tests over the real sqlite store.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/askchat/askchat-ai-backend/internal/answer"
	"github.com/askchat/askchat-ai-backend/internal/config"
	"github.com/askchat/askchat-ai-backend/internal/embedding"
	"github.com/askchat/askchat-ai-backend/internal/ingest"
	"github.com/askchat/askchat-ai-backend/internal/models"
	"github.com/askchat/askchat-ai-backend/internal/retrieval"
	"github.com/askchat/askchat-ai-backend/internal/server"
	"github.com/askchat/askchat-ai-backend/internal/store"
)

func TestIntegration_IngestThenAsk(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Store.Backend = "sqlite"
	cfg.Store.DatabasePath = filepath.Join(dir, "messages.db")

	vstore, err := store.NewSQLiteStore(cfg.Store.DatabasePath, cfg.Store.Collection)
	if err != nil {
		t.Fatal(err)
	}
	defer vstore.Close()

	embedder := embedding.NewMockEmbedder(32)
	defer embedder.Close()

	ing, err := ingest.NewIngester(embedder, vstore, cfg)
	if err != nil {
		t.Fatal(err)
	}
	engine := retrieval.NewEngine(embedder, vstore, answer.NewTemplateDrafter(120), &cfg.Retrieval)
	ctx := context.Background()

	messages := []*models.Message{
		{ChatID: "trip", MessageID: "m1", Text: "we booked the cabin for August 12", SenderID: "alice", Timestamp: 100},
		{ChatID: "trip", MessageID: "m2", Text: "don't forget the hiking boots", SenderID: "bob", Timestamp: 200},
		{ChatID: "work", MessageID: "m3", Text: "standup moved to 9:30 tomorrow", SenderID: "carol", Timestamp: 300},
		{ChatID: "work", MessageID: "m4", Text: "ok"},
	}
	for _, m := range messages {
		if _, err := ing.IngestMessage(ctx, m); err != nil {
			t.Fatalf("ingest %s failed: %v", m.MessageID, err)
		}
	}

	count, err := vstore.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("store count = %d, want 3 (one message admission-filtered)", count)
	}

	resp, err := engine.Ask(ctx, &models.AskQuery{Question: "we booked the cabin for August 12", TopK: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(resp.Sources))
	}
	if resp.Sources[0].MessageID != "m1" {
		t.Errorf("best source = %q, want m1", resp.Sources[0].MessageID)
	}
	if !strings.Contains(resp.Answer, "[trip:m1]") {
		t.Errorf("answer does not cite best source: %q", resp.Answer)
	}
}

func TestIntegration_ChunkedRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Store.DatabasePath = filepath.Join(dir, "messages.db")

	vstore, err := store.NewSQLiteStore(cfg.Store.DatabasePath, cfg.Store.Collection)
	if err != nil {
		t.Fatal(err)
	}
	defer vstore.Close()

	embedder := embedding.NewMockEmbedder(32)
	defer embedder.Close()
	ing, err := ingest.NewIngester(embedder, vstore, cfg)
	if err != nil {
		t.Fatal(err)
	}
	engine := retrieval.NewEngine(embedder, vstore, answer.NewTemplateDrafter(120), &cfg.Retrieval)
	ctx := context.Background()

	res, err := ing.IngestMessage(ctx, &models.Message{
		ChatID:    "notes",
		MessageID: "long1",
		Text:      strings.Repeat("trip planning details. ", 200),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(res.Status, "ok:chunked(") {
		t.Fatalf("status = %q, want ok:chunked(...)", res.Status)
	}

	resp, err := engine.Ask(ctx, &models.AskQuery{Question: "trip planning", TopK: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Sources) != 1 {
		t.Errorf("chunked message appears %d times after collapse, want 1", len(resp.Sources))
	}
}

func TestIntegration_HTTPRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Auth.Token = "integration-secret"
	cfg.Store.DatabasePath = filepath.Join(dir, "messages.db")

	vstore, err := store.NewSQLiteStore(cfg.Store.DatabasePath, cfg.Store.Collection)
	if err != nil {
		t.Fatal(err)
	}
	defer vstore.Close()

	embedder := embedding.NewMockEmbedder(32)
	defer embedder.Close()
	ing, err := ingest.NewIngester(embedder, vstore, cfg)
	if err != nil {
		t.Fatal(err)
	}
	engine := retrieval.NewEngine(embedder, vstore, answer.NewTemplateDrafter(120), &cfg.Retrieval)
	srv := server.NewServer(ing, engine, vstore, embedder, cfg, zap.NewNop())

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	post := func(path string, payload any, token string) *http.Response {
		t.Helper()
		body, _ := json.Marshal(payload)
		req, err := http.NewRequest(http.MethodPost, ts.URL+path, bytes.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("X-AskChat-Token", token)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		return resp
	}

	// Unauthorized without the shared secret.
	resp := post("/embed-message", models.Message{ChatID: "c", MessageID: "m", Text: "hello there"}, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()

	resp = post("/embed-message", models.Message{
		ChatID: "trip", MessageID: "m1", Text: "we booked the cabin for August 12",
	}, "integration-secret")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ingest: status = %d, want 200", resp.StatusCode)
	}
	var ingOut models.IngestResult
	if err := json.NewDecoder(resp.Body).Decode(&ingOut); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if ingOut.Status != "ok" {
		t.Errorf("ingest status = %q, want ok", ingOut.Status)
	}

	resp = post("/ask", models.AskQuery{Question: "we booked the cabin for August 12"}, "integration-secret")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ask: status = %d, want 200", resp.StatusCode)
	}
	var askOut models.AskResponse
	if err := json.NewDecoder(resp.Body).Decode(&askOut); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if len(askOut.Sources) != 1 || askOut.Sources[0].MessageID != "m1" {
		t.Errorf("ask sources = %+v, want one source m1", askOut.Sources)
	}
}
