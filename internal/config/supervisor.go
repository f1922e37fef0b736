package config

// SupervisorConfig configures anomaly detection and steering (spec §4.8).
type SupervisorConfig struct {
	Enabled bool `yaml:"enabled"`

	// CooldownTurns is the minimum turns between two steering injections
	// for the same anomaly kind (default 3).
	CooldownTurns int `yaml:"cooldown_turns"`

	// StallTurns is the number of consecutive no-progress turns that
	// trigger the "stall" anomaly.
	StallTurns int `yaml:"stall_turns"`

	// LoopRepeatCount is the number of failures with the same tool and the
	// same error_kind within the recent failure ring that trigger the
	// "loop" anomaly (default 3).
	LoopRepeatCount int `yaml:"loop_repeat_count"`

	// ContextFillPct is the fraction of the model's context budget that
	// triggers the "context_exhaustion" anomaly (default 0.80).
	ContextFillPct float64 `yaml:"context_fill_pct"`

	// CascadeDistinctToolCount is the number of distinct tools failing
	// within the recent window that trigger "cascade_failure" (default 3).
	CascadeDistinctToolCount int `yaml:"cascade_distinct_tool_count"`

	// PaceEscalationTier is the PACE tier (see orgkernel) at which reaching
	// it alone triggers a "pace_escalation" anomaly regardless of the
	// other counters (default "contingent").
	PaceEscalationTier string `yaml:"pace_escalation_tier"`

	AuditLogPath string `yaml:"audit_log_path"`
}

func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		Enabled:                  true,
		CooldownTurns:            3,
		StallTurns:               3,
		LoopRepeatCount:          3,
		ContextFillPct:           0.80,
		CascadeDistinctToolCount: 3,
		PaceEscalationTier:       "contingent",
		AuditLogPath:             "supervisor_audit.jsonl",
	}
}
