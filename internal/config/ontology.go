package config

// OntologyConfig configures the Ontology Store & Entity Resolution (§4.6).
type OntologyConfig struct {
	Enabled bool `yaml:"enabled"`

	SchemaPath          string `yaml:"schema_path"`           // ontology/ontology_schema.json
	RelationshipsPath   string `yaml:"relationships_path"`    // ontology/relationships.jsonl
	IngestionQueuePath  string `yaml:"ingestion_queue_path"`  // ontology/ingestion_queue.jsonl
	ResolutionAuditPath string `yaml:"resolution_audit_path"` // ontology/resolution_audit.jsonl
	ReviewQueuePath     string `yaml:"review_queue_path"`     // ontology/review_queue.jsonl

	// MergeThreshold / ReviewThreshold gate the resolution pipeline
	// (spec §4.6 step 4): composite >= MergeThreshold auto-merges,
	// [ReviewThreshold, MergeThreshold) goes to review, below is distinct.
	MergeThreshold  float64 `yaml:"merge_threshold"`
	ReviewThreshold float64 `yaml:"review_threshold"`

	// Weights is the five-axis composite score weighting (§4.6 step 3).
	Weights ResolutionWeights `yaml:"weights"`

	// RelationshipConfidenceThreshold gates auto-creation vs. scored
	// creation of relationships from candidate hints (§4.6 step 7).
	RelationshipConfidenceThreshold float64 `yaml:"relationship_confidence_threshold"`

	// MinConfidenceToSurface hides low-confidence discovered relationships
	// from queries while still storing them (§4.6 "Relationship discovery").
	MinConfidenceToSurface float64 `yaml:"min_confidence_to_surface"`

	// TemporalWindowDays bounds `temporally_linked` relationship discovery.
	TemporalWindowDays int `yaml:"temporal_window_days"`

	// Honorifics / AddressExpansions drive name/address canonicalization
	// (§4.6 step 1 preprocess).
	Honorifics        []string          `yaml:"honorifics"`
	AddressExpansions map[string]string `yaml:"address_expansions"`
}

// ResolutionWeights is the default composite-score weighting.
type ResolutionWeights struct {
	Name       float64 `yaml:"name"`
	Identifier float64 `yaml:"identifier"`
	Address    float64 `yaml:"address"`
	Date       float64 `yaml:"date"`
	Context    float64 `yaml:"context"`
}

func DefaultOntologyConfig() OntologyConfig {
	return OntologyConfig{
		Enabled:             true,
		SchemaPath:          "ontology/ontology_schema.json",
		RelationshipsPath:   "ontology/relationships.jsonl",
		IngestionQueuePath:  "ontology/ingestion_queue.jsonl",
		ResolutionAuditPath: "ontology/resolution_audit.jsonl",
		ReviewQueuePath:     "ontology/review_queue.jsonl",

		MergeThreshold:  0.85,
		ReviewThreshold: 0.60,

		Weights: ResolutionWeights{
			Name:       0.35,
			Identifier: 0.30,
			Address:    0.15,
			Date:       0.10,
			Context:    0.10,
		},

		RelationshipConfidenceThreshold: 0.80,
		MinConfidenceToSurface:          0.30,
		TemporalWindowDays:              7,

		Honorifics: []string{"mr", "mrs", "ms", "dr", "jr", "sr", "ii", "iii", "iv"},
		AddressExpansions: map[string]string{
			"st": "street", "ave": "avenue", "blvd": "boulevard", "dr": "drive",
			"ln": "lane", "rd": "road", "corp": "corporation", "inc": "incorporated",
			"co": "company", "ltd": "limited", "llc": "llc",
		},
	}
}
