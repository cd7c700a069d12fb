// Package answer turns ranked retrieval sources into a user-facing reply.
package answer

import (
	"context"
	"fmt"
	"os"

	"github.com/askchat/askchat-ai-backend/internal/config"
	"github.com/askchat/askchat-ai-backend/internal/models"
)

// Drafter composes an answer to a question from retrieved sources.
// An empty source list must still yield a deterministic answer.
type Drafter interface {
	Draft(ctx context.Context, question string, sources []models.Source) (string, error)
	Name() string
}

// NewDrafter selects a drafter for the configured provider.
// "auto" uses the remote model when its API key is present and falls back to
// the local template otherwise.
func NewDrafter(cfg *config.AnswerConfig) (Drafter, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIDrafter(OpenAIDrafterConfig{
			APIKey:         os.Getenv(cfg.APIKeyEnv),
			Model:          cfg.Model,
			MaxSourceChars: cfg.MaxSourceChars,
		})
	case "template", "":
		return NewTemplateDrafter(cfg.MaxSourceChars), nil
	case "auto":
		if os.Getenv(cfg.APIKeyEnv) != "" {
			return NewOpenAIDrafter(OpenAIDrafterConfig{
				APIKey:         os.Getenv(cfg.APIKeyEnv),
				Model:          cfg.Model,
				MaxSourceChars: cfg.MaxSourceChars,
			})
		}
		return NewTemplateDrafter(cfg.MaxSourceChars), nil
	default:
		return nil, fmt.Errorf("unknown answer provider: %s (supported: template, openai, auto)", cfg.Provider)
	}
}
