// Package backfill bulk-loads historical chat exports into the index.
// Exports are JSON Lines files, one message object per line, either run once
// from the CLI or picked up continuously from a drop directory.
package backfill

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/askchat/askchat-ai-backend/internal/ingest"
	"github.com/askchat/askchat-ai-backend/internal/models"
)

// Long pasted messages can exceed bufio's default line limit.
const maxLineBytes = 1 << 20

// exportLine is one line of a chat export. Type distinguishes user messages
// from system notices ("X joined the chat"), which carry no retrieval value.
type exportLine struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
	Text      string `json:"text"`
	SenderID  string `json:"senderId"`
	Timestamp int64  `json:"timestamp"`
	Type      string `json:"type,omitempty"`
}

// Stats counts the outcome of a backfill run.
type Stats struct {
	Total   int `json:"total"`
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Runner feeds exported messages through the ingestion pipeline.
type Runner struct {
	ingester *ingest.Ingester
	logger   *zap.Logger // optional; when set, logs per-file progress
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets a logger for progress output.
func WithLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a backfill runner.
func NewRunner(ingester *ingest.Ingester, opts ...RunnerOption) *Runner {
	r := &Runner{ingester: ingester}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunFile backfills one JSONL export file.
func (r *Runner) RunFile(ctx context.Context, path string) (*Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open export file: %w", err)
	}
	defer f.Close()
	stats, err := r.Run(ctx, f)
	if err != nil {
		return stats, fmt.Errorf("backfill of %s: %w", path, err)
	}
	return stats, nil
}

// Run backfills messages from a JSONL stream. Blank lines, system messages,
// and messages without text are counted as skipped; per-message ingestion
// failures are counted but do not stop the run. A malformed line fails the
// whole run since it usually means the file is not an export at all.
func (r *Runner) Run(ctx context.Context, src io.Reader) (*Stats, error) {
	stats := &Stats{}
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		stats.Total++

		var entry exportLine
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return stats, fmt.Errorf("line %d: invalid JSON: %w", lineNo, err)
		}
		if strings.TrimSpace(entry.Text) == "" || entry.Type == "system" {
			stats.Skipped++
			continue
		}

		msg := &models.Message{
			ChatID:    entry.ChatID,
			MessageID: entry.MessageID,
			Text:      entry.Text,
			SenderID:  entry.SenderID,
			Timestamp: entry.Timestamp,
		}
		res, err := r.ingester.IngestMessage(ctx, msg)
		if err != nil {
			stats.Failed++
			if r.logger != nil {
				r.logger.Warn("backfill message failed",
					zap.String("chatId", entry.ChatID),
					zap.String("messageId", entry.MessageID),
					zap.Error(err))
			}
			continue
		}
		if strings.HasPrefix(res.Status, "skipped:") {
			stats.Skipped++
		} else {
			stats.Sent++
		}

		if r.logger != nil && stats.Total%100 == 0 {
			r.logger.Info("backfill progress",
				zap.Int("total", stats.Total),
				zap.Int("sent", stats.Sent),
				zap.Int("skipped", stats.Skipped),
				zap.Int("failed", stats.Failed))
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("failed to read export: %w", err)
	}
	return stats, nil
}
