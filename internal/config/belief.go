package config

// BeliefConfig configures the Belief State Tracker (spec §4.1).
type BeliefConfig struct {
	Enabled bool `yaml:"enabled"`

	// SlotTaxonomyPath points at the JSON file holding per-domain trigger
	// keywords, slot definitions and thresholds (spec §3 SlotTaxonomy).
	SlotTaxonomyPath string `yaml:"slot_taxonomy_path"`

	// UnderspecifiedPatterns are lexical anaphoric/continuation triggers
	// ("fix it", "do that again") checked before classification (§4.1 step 1).
	UnderspecifiedPatterns []string `yaml:"underspecified_patterns"`

	// ConversationalFloor is the minimum score conversational passthrough
	// requires when no domain matches (§4.1 step 2).
	ConversationalFloor float64 `yaml:"conversational_floor"`
}

func DefaultBeliefConfig() BeliefConfig {
	return BeliefConfig{
		Enabled:          true,
		SlotTaxonomyPath: "slot_taxonomy.json",
		UnderspecifiedPatterns: []string{
			"fix it", "do that again", "try again", "same thing",
			"do it again", "fix that", "retry", "once more",
		},
		ConversationalFloor: 0.0,
	}
}
