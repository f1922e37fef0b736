package config

// WorkflowConfig configures the Graph Workflow Engine (spec §4.3).
type WorkflowConfig struct {
	Enabled bool `yaml:"enabled"`

	// LibraryPath is workflows/library.json (spec §6).
	LibraryPath string `yaml:"library_path"`

	// DefaultMaxRetries is used for on_retry edges that omit max_retries.
	DefaultMaxRetries int `yaml:"default_max_retries"`
}

func DefaultWorkflowConfig() WorkflowConfig {
	return WorkflowConfig{
		Enabled:           true,
		LibraryPath:       "workflows/library.json",
		DefaultMaxRetries: 3,
	}
}
