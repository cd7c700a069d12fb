package store

import (
	"fmt"
	"os"

	"github.com/askchat/askchat-ai-backend/internal/config"
)

// Backend represents the type of vector store to use.
type Backend string

const (
	// BackendMemory keeps records in process. Good for tests and small runs.
	BackendMemory Backend = "memory"
	// BackendSQLite persists records to a local SQLite database.
	BackendSQLite Backend = "sqlite"
	// BackendQdrant talks to a Qdrant server over REST.
	BackendQdrant Backend = "qdrant"
)

// NewVectorStore creates a vector store for the configured backend.
// Supported backends: "memory", "sqlite" (default), "qdrant".
func NewVectorStore(cfg *config.StoreConfig, dimensions int) (VectorStore, error) {
	switch Backend(cfg.Backend) {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendSQLite, "":
		return NewSQLiteStore(cfg.DatabasePath, cfg.Collection)
	case BackendQdrant:
		return NewQdrantStore(QdrantConfig{
			URL:        cfg.QdrantURL,
			APIKey:     os.Getenv(cfg.QdrantAPIKeyEnv),
			Collection: cfg.Collection,
			Dimension:  dimensions,
		}), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s (supported: memory, sqlite, qdrant)", cfg.Backend)
	}
}
