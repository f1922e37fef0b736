// Package config holds the cognitive scaffolding core's configuration.
// Every subcomponent reads its own section; every section carries an
// Enabled flag so a disabled component degrades to passthrough (spec §6, §7).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/corescaffold/cogkernel/internal/logging"
)

// Config holds the full core configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	Belief      BeliefConfig      `yaml:"belief"`
	OrgKernel   OrgKernelConfig   `yaml:"org_kernel"`
	Workflow    WorkflowConfig    `yaml:"workflow"`
	ToolGate    ToolGateConfig    `yaml:"tool_gate"`
	Memory      MemoryConfig      `yaml:"memory"`
	Ontology    OntologyConfig    `yaml:"ontology"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Supervisor  SupervisorConfig  `yaml:"supervisor"`
	Store       StoreConfig       `yaml:"store"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Rules       RulesConfig       `yaml:"rules"`
	Logging     LoggingConfig     `yaml:"logging"`

	GlobalBeliefStateTTLTurns int `yaml:"belief_state_ttl_turns"`
}

// LoggingConfig mirrors internal/logging's file config shape.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode" json:"debug_mode"`
	Categories map[string]bool `yaml:"categories" json:"categories"`
	Level      string          `yaml:"level" json:"level"`
	JSONFormat bool            `yaml:"json_format" json:"json_format"`
}

// DefaultConfig returns a fully populated, standalone-valid configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "cogkernel",
		Version: "1.0.0",

		Belief:      DefaultBeliefConfig(),
		OrgKernel:   DefaultOrgKernelConfig(),
		Workflow:    DefaultWorkflowConfig(),
		ToolGate:    DefaultToolGateConfig(),
		Memory:      DefaultMemoryConfig(),
		Ontology:    DefaultOntologyConfig(),
		Maintenance: DefaultMaintenanceConfig(),
		Supervisor:  DefaultSupervisorConfig(),
		Store:       DefaultStoreConfig(),
		Embedding:   DefaultEmbeddingConfig(),
		Rules:       DefaultRulesConfig(),

		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},

		GlobalBeliefStateTTLTurns: 6,
	}
}

// Load reads configuration from a YAML file, falling back to defaults for
// any value the file doesn't set. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	logging.BootDebug("loading config from %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Boot("config file not found, using defaults: %s", path)
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// applyEnvOverrides lets environment variables win over file/defaults,
// matching the teacher's layered-config convention.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("COGKERNEL_DB_PATH"); v != "" {
		c.Memory.DatabasePath = v
	}
	if v := os.Getenv("OLLAMA_ENDPOINT"); v != "" {
		c.Embedding.OllamaEndpoint = v
	}
	if v := os.Getenv("OLLAMA_EMBEDDING_MODEL"); v != "" {
		c.Embedding.OllamaModel = v
	}
	if v := os.Getenv("COGKERNEL_DEBUG"); v == "1" || v == "true" {
		c.Logging.DebugMode = true
	}
}

// BeliefStateTTLTurns returns the belief-state TTL expressed in turns (not
// wall time), falling back to 6 when the configured value is not positive.
func (c *Config) BeliefStateTTLTurns() int {
	if c.GlobalBeliefStateTTLTurns <= 0 {
		return 6
	}
	return c.GlobalBeliefStateTTLTurns
}

// parseDurationOr parses a duration string, falling back to def on error or
// empty input. Used by every subsystem config that stores durations as
// human-readable strings ("30s", "1h") the way the teacher's config does.
func parseDurationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
