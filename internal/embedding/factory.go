package embedding

import (
	"fmt"
	"os"

	"github.com/askchat/askchat-ai-backend/internal/config"
)

// NewEmbedder resolves the embedding provider once at startup.
// Provider "auto" probes capabilities in order: remote API when the key env
// is set (matching the original deployment's behavior), local ONNX model when
// the model file exists, deterministic mock otherwise. The returned Embedder
// is the only thing the pipeline ever sees.
func NewEmbedder(cfg *config.EmbeddingConfig) (Embedder, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIEmbedder(OpenAIConfig{
			APIKey:  os.Getenv(cfg.APIKeyEnv),
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})
	case "onnx":
		return NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens, cfg.CacheSize)
	case "mock":
		return NewMockEmbedder(cfg.Dimensions), nil
	case "auto", "":
		if key := os.Getenv(cfg.APIKeyEnv); key != "" {
			return NewOpenAIEmbedder(OpenAIConfig{
				APIKey:  key,
				BaseURL: cfg.BaseURL,
				Model:   cfg.Model,
			})
		}
		if _, err := os.Stat(cfg.ModelPath); err == nil {
			if emb, err := NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens, cfg.CacheSize); err == nil {
				return emb, nil
			}
		}
		return NewMockEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: auto, openai, onnx, mock)", cfg.Provider)
	}
}
