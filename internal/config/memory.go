package config

// MemoryConfig configures Memory Enhancement retrieval-time behavior (§4.5).
type MemoryConfig struct {
	Enabled bool `yaml:"enabled"`

	// DatabasePath names the SQLite file of the reference VectorStore
	// (spec §6 memory/ directory holds "external vector store files").
	// store.OpenSQLiteVecStore does not read it: it always opens
	// memory/store.db under StoreConfig.WorkspaceRoot.
	DatabasePath string `yaml:"database_path"`

	// RetrievalKPerVariant is queries issued per query variant (default 8).
	RetrievalKPerVariant int `yaml:"retrieval_k_per_variant"`

	// MaxInjected is the final top-k emitted to the model (default 5).
	MaxInjected int `yaml:"max_injected"`

	// HalfLifeHours controls temporal decay (default 168h = 1 week).
	HalfLifeHours float64 `yaml:"half_life_hours"`

	// MinRecencyScore floors the decayed recency score (default 0.1).
	MinRecencyScore float64 `yaml:"min_recency_score"`

	// DecayWeight blends similarity vs. recency in the final score (default 0.15).
	DecayWeight float64 `yaml:"decay_weight"`

	// RelatedBoost is added to a related-but-outside-top-k memory's score (default 0.08).
	RelatedBoost float64 `yaml:"related_boost"`

	// CoRetrievalLogPath is memory/co_retrieval_log.json.
	CoRetrievalLogPath string `yaml:"co_retrieval_log_path"`

	// CoRetrievalMaxEntries bounds the FIFO co-retrieval log (default 500).
	CoRetrievalMaxEntries int `yaml:"co_retrieval_max_entries"`

	// OntologyNeighborLimit bounds 1-hop relationship injection (default 10).
	OntologyNeighborLimit int `yaml:"ontology_neighbor_limit"`

	// StopwordsPath optionally overrides the built-in stopword set used for
	// the "keyword" query variant.
	StopwordsPath string `yaml:"stopwords_path"`
}

func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		Enabled:               true,
		DatabasePath:          "memory/store.db",
		RetrievalKPerVariant:  8,
		MaxInjected:           5,
		HalfLifeHours:         168,
		MinRecencyScore:       0.1,
		DecayWeight:           0.15,
		RelatedBoost:          0.08,
		CoRetrievalLogPath:    "memory/co_retrieval_log.json",
		CoRetrievalMaxEntries: 500,
		OntologyNeighborLimit: 10,
	}
}
