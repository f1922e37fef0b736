package config

// EmbeddingConfig configures the embedding engine used for Memory
// Enhancement similarity search input (spec §4.5). Adapted from the
// teacher's embedding.Config: a single local provider by default, since
// spec §1 treats the model/embedding backend as an unreliable black box
// rather than a component to re-implement.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // "ollama" (default) or "genai"

	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`

	GenAIModel string `yaml:"genai_model"`

	RequestTimeout string `yaml:"request_timeout"`

	// CacheSize is carried in the config file shape; no embedding cache
	// exists and nothing reads it, so identical texts are re-embedded.
	CacheSize int `yaml:"cache_size"`
}

func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		Provider:       "ollama",
		OllamaEndpoint: "http://localhost:11434",
		OllamaModel:    "nomic-embed-text",
		GenAIModel:     "text-embedding-004",
		RequestTimeout: "10s",
		CacheSize:      256,
	}
}
