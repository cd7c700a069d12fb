package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "auto"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/askchat/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "sqlite"
	}
	if cfg.Store.Collection == "" {
		cfg.Store.Collection = "askchat_messages"
	}
	if cfg.Store.DatabasePath == "" {
		cfg.Store.DatabasePath = "/usr/local/var/askchat/data/messages.db"
	}
	if cfg.Store.QdrantURL == "" {
		cfg.Store.QdrantURL = "http://localhost:6333"
	}
	if cfg.Store.QdrantAPIKeyEnv == "" {
		cfg.Store.QdrantAPIKeyEnv = "QDRANT_API_KEY"
	}
	if cfg.Retrieval.MaxCharsPerChunk == 0 {
		cfg.Retrieval.MaxCharsPerChunk = 1800
	}
	if cfg.Retrieval.ChunkOverlap == 0 {
		cfg.Retrieval.ChunkOverlap = 200
	}
	if cfg.Retrieval.BoundaryRatio == 0 {
		cfg.Retrieval.BoundaryRatio = 0.5
	}
	if cfg.Retrieval.OverfetchFactor == 0 {
		cfg.Retrieval.OverfetchFactor = 3
	}
	if cfg.Retrieval.MinChars == 0 {
		cfg.Retrieval.MinChars = 8
	}
	if cfg.Retrieval.MinNonspace == 0 {
		cfg.Retrieval.MinNonspace = 6
	}
	if cfg.Retrieval.MinAlnum == 0 {
		cfg.Retrieval.MinAlnum = 3
	}
	if cfg.Answer.Provider == "" {
		cfg.Answer.Provider = "auto"
	}
	if cfg.Answer.Model == "" {
		cfg.Answer.Model = "gpt-4o-mini"
	}
	if cfg.Answer.APIKeyEnv == "" {
		cfg.Answer.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Answer.MaxSourceChars == 0 {
		cfg.Answer.MaxSourceChars = 120
	}
}
