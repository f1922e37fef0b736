package config

// RulesConfig configures the deterministic rule engine (github.com/google/
// mangle) used for workflow verification predicates, PACE triggers, and
// Supervisor anomaly predicates (spec §9 Open Question: narrow
// verification-predicate language).
type RulesConfig struct {
	// SchemaPaths lists the .mg fact/rule source files loaded at boot, in
	// order. Later files may reference predicates declared in earlier ones.
	SchemaPaths []string `yaml:"schema_paths"`

	// QueryTimeout bounds a single Mangle query evaluation.
	QueryTimeout string `yaml:"query_timeout"`

	// MaxFacts bounds the in-memory fact store size as a safety valve
	// against runaway derivation.
	MaxFacts int `yaml:"max_facts"`
}

func DefaultRulesConfig() RulesConfig {
	return RulesConfig{
		SchemaPaths:  []string{"rules/workflow.mg", "rules/pace.mg", "rules/supervisor.mg"},
		QueryTimeout: "2s",
		MaxFacts:     50000,
	}
}
