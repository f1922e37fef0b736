package config

// ToolGateConfig configures the Tool Fallback & Meta-Reasoning Gate (§4.4).
type ToolGateConfig struct {
	Enabled bool `yaml:"enabled"`

	// ToolThreshold is the per-tool consecutive-failure count that triggers
	// advisory injection (default 2).
	ToolThreshold int `yaml:"tool_threshold"`

	// GlobalThreshold is the cross-tool failure-ring count within the
	// recent window that triggers "step back and reassess" advice (default 5).
	GlobalThreshold int `yaml:"global_threshold"`

	// FailureRingSize bounds the FailureRecord ring (spec §3, ≤20).
	FailureRingSize int `yaml:"failure_ring_size"`

	// RecentWindowTurns bounds how far back the global-threshold check looks.
	RecentWindowTurns int `yaml:"recent_window_turns"`

	// AdvicePath points at the static (tool_name, error_kind) -> advice table.
	AdvicePath string `yaml:"advice_path"`

	// SchemaPath points at the static tool argument schema table used for
	// validation and alias resolution.
	SchemaPath string `yaml:"schema_path"`
}

func DefaultToolGateConfig() ToolGateConfig {
	return ToolGateConfig{
		Enabled:           true,
		ToolThreshold:     2,
		GlobalThreshold:   5,
		FailureRingSize:   20,
		RecentWindowTurns: 10,
		AdvicePath:        "tool_advice.json",
		SchemaPath:        "tool_schemas.json",
	}
}
