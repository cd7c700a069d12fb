package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/askchat/askchat-ai-backend/internal/answer"
	"github.com/askchat/askchat-ai-backend/internal/config"
	"github.com/askchat/askchat-ai-backend/internal/embedding"
	"github.com/askchat/askchat-ai-backend/internal/ingest"
	"github.com/askchat/askchat-ai-backend/internal/models"
	"github.com/askchat/askchat-ai-backend/internal/retrieval"
	"github.com/askchat/askchat-ai-backend/internal/store"
)

func newTestServer(t *testing.T, token string) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Auth.Token = token
	vstore := store.NewMemoryStore()
	embedder := embedding.NewMockEmbedder(32)
	ing, err := ingest.NewIngester(embedder, vstore, cfg)
	if err != nil {
		t.Fatalf("NewIngester failed: %v", err)
	}
	engine := retrieval.NewEngine(embedder, vstore, answer.NewTemplateDrafter(120), &cfg.Retrieval)
	return NewServer(ing, engine, vstore, embedder, cfg, zap.NewNop())
}

func postJSON(t *testing.T, handler http.Handler, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	r := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	r.Header.Set("Content-Type", "application/json")
	if token != "" {
		r.Header.Set("X-AskChat-Token", token)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	return w
}

func TestHandleEmbedMessageOK(t *testing.T) {
	srv := newTestServer(t, "")
	router := srv.Router()

	w := postJSON(t, router, "/embed-message", "", models.Message{
		ChatID:    "chat1",
		MessageID: "msg1",
		Text:      "the quarterly review is on Thursday morning",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (body: %s)", w.Code, w.Body.String())
	}
	var out models.IngestResult
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Status != "ok" {
		t.Errorf("status = %q, want ok", out.Status)
	}
	if out.Upserted != 1 {
		t.Errorf("upserted = %d, want 1", out.Upserted)
	}
}

func TestHandleEmbedMessageSkipped(t *testing.T) {
	srv := newTestServer(t, "")
	router := srv.Router()

	w := postJSON(t, router, "/embed-message", "", models.Message{
		ChatID:    "chat1",
		MessageID: "msg1",
		Text:      "ok",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", w.Code)
	}
	var out models.IngestResult
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.Status, "skipped:too_short(") {
		t.Errorf("status = %q, want skipped:too_short(...)", out.Status)
	}
}

func TestHandleEmbedMessageValidation(t *testing.T) {
	srv := newTestServer(t, "")
	router := srv.Router()

	w := postJSON(t, router, "/embed-message", "", models.Message{Text: "no identity here at all"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}

	r := httptest.NewRequest(http.MethodPost, "/embed-message", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, r)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status: got %d, want 400", rec.Code)
	}
}

func TestHandleAsk(t *testing.T) {
	srv := newTestServer(t, "")
	router := srv.Router()

	w := postJSON(t, router, "/embed-message", "", models.Message{
		ChatID:    "work",
		MessageID: "m1",
		Text:      "the launch moved to Friday afternoon",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("ingest status: got %d", w.Code)
	}

	w = postJSON(t, router, "/ask", "", models.AskQuery{Question: "the launch moved to Friday afternoon"})
	if w.Code != http.StatusOK {
		t.Fatalf("ask status: got %d (body: %s)", w.Code, w.Body.String())
	}
	var out models.AskResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Sources) != 1 {
		t.Fatalf("got %d sources, want 1", len(out.Sources))
	}
	if out.Sources[0].MessageID != "m1" {
		t.Errorf("source = %q, want m1", out.Sources[0].MessageID)
	}
	if out.Answer == "" {
		t.Error("answer is empty")
	}
}

func TestHandleAskEmptyIndex(t *testing.T) {
	srv := newTestServer(t, "")
	router := srv.Router()

	w := postJSON(t, router, "/ask", "", models.AskQuery{Question: "anything?"})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", w.Code)
	}
	var out models.AskResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Answer != "I couldn't find anything relevant in your chats." {
		t.Errorf("answer = %q, want the no-sources fallback", out.Answer)
	}
	if len(out.Sources) != 0 {
		t.Errorf("got %d sources, want 0", len(out.Sources))
	}
}

func TestHandleAskValidation(t *testing.T) {
	srv := newTestServer(t, "")
	router := srv.Router()

	cases := []models.AskQuery{
		{Question: ""},
		{Question: "q", TopK: 51},
		{Question: "q", TopK: -1},
	}
	for _, q := range cases {
		w := postJSON(t, router, "/ask", "", q)
		if w.Code != http.StatusBadRequest {
			t.Errorf("query %+v: status = %d, want 400", q, w.Code)
		}
	}
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t, "secret123")
	router := srv.Router()

	// Missing token.
	w := postJSON(t, router, "/embed-message", "", models.Message{
		ChatID: "c", MessageID: "m", Text: "hello hello hello",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", w.Code)
	}

	// Wrong token.
	w = postJSON(t, router, "/ask", "wrong", models.AskQuery{Question: "q"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d, want 401", w.Code)
	}

	// Correct token.
	w = postJSON(t, router, "/embed-message", "secret123", models.Message{
		ChatID: "c", MessageID: "m", Text: "a real message with content",
	})
	if w.Code != http.StatusOK {
		t.Errorf("valid token: status = %d, want 200", w.Code)
	}
}

func TestHealthAndStatusOpen(t *testing.T) {
	// Probes stay reachable even with a token configured.
	srv := newTestServer(t, "secret123")
	router := srv.Router()

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("health status: got %d, want 200", w.Code)
	}

	r = httptest.NewRequest(http.MethodGet, "/status", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("status status: got %d, want 200", w.Code)
	}
	var out struct {
		Records    int    `json:"records"`
		Collection string `json:"collection"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Collection != "askchat_messages" {
		t.Errorf("collection = %q, want askchat_messages", out.Collection)
	}
}
