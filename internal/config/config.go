// Package config provides configuration loading and structs for the AskChat backend.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Store     StoreConfig     `yaml:"store"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Answer    AnswerConfig    `yaml:"answer"`
	Backfill  BackfillConfig  `yaml:"backfill"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// AuthConfig holds the optional shared-secret credential. When Token is empty
// the API is open; when set, ingest and ask requests must carry it in the
// X-AskChat-Token header.
type AuthConfig struct {
	Token string `yaml:"token"`
}

// EmbeddingConfig holds embedding provider settings. Provider "auto" resolves
// once at startup: openai when the API key env is set, onnx when a local model
// file exists, mock otherwise.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url"`
	APIKeyEnv  string `yaml:"api_key_env"`
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
}

// StoreConfig holds vector store settings. Backend is one of
// "memory", "sqlite", "qdrant".
type StoreConfig struct {
	Backend         string `yaml:"backend"`
	Collection      string `yaml:"collection"`
	DatabasePath    string `yaml:"database_path"`
	QdrantURL       string `yaml:"qdrant_url"`
	QdrantAPIKeyEnv string `yaml:"qdrant_api_key_env"`
}

// RetrievalConfig holds admission, chunking, and ranking settings.
type RetrievalConfig struct {
	MaxCharsPerChunk int     `yaml:"max_chars_per_chunk"`
	ChunkOverlap     int     `yaml:"chunk_overlap"`
	BoundaryRatio    float64 `yaml:"boundary_ratio"`
	OverfetchFactor  int     `yaml:"overfetch_factor"`
	MinChars         int     `yaml:"min_chars"`
	MinNonspace      int     `yaml:"min_nonspace"`
	MinAlnum         int     `yaml:"min_alnum"`
}

// AnswerConfig holds answer drafting settings. Provider "auto" uses the
// citation-aware LLM drafter when an API key is available and falls back to
// the deterministic template otherwise.
type AnswerConfig struct {
	Provider       string `yaml:"provider"`
	Model          string `yaml:"model"`
	APIKeyEnv      string `yaml:"api_key_env"`
	MaxSourceChars int    `yaml:"max_source_chars"`
}

// BackfillConfig holds transcript backfill settings. Directory, when set, is
// watched for new JSONL export files by the server.
type BackfillConfig struct {
	Directory string `yaml:"directory"`
}

// Load reads and parses the config file at path, applies defaults, expands
// paths, and applies environment overrides for secrets.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Store.DatabasePath = expandPath(cfg.Store.DatabasePath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	if cfg.Backfill.Directory != "" {
		cfg.Backfill.Directory = expandPath(cfg.Backfill.Directory, configDir)
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// Default returns a config with all defaults and environment overrides
// applied, for running without a config file.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	return &cfg
}

// applyEnvOverrides fills secret-bearing fields from the environment.
// The shared-secret token always comes from ASKCHAT_BACKEND_TOKEN when set,
// so it never has to live in the config file.
func applyEnvOverrides(cfg *Config) {
	if token := os.Getenv("ASKCHAT_BACKEND_TOKEN"); token != "" {
		cfg.Auth.Token = token
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative
// to configDir; other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
