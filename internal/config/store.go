package config

// StoreConfig configures the reference vector store implementation and the
// root filesystem layout described by spec §6 (organizations/, workflows/,
// memory/, ontology/, slot_taxonomy.json all live under WorkspaceRoot).
type StoreConfig struct {
	// WorkspaceRoot is the `.nerd`-style state root for a single workspace.
	WorkspaceRoot string `yaml:"workspace_root"`

	// Backend names the VectorStore backend ("sqlite-vec" by default).
	// store.OpenSQLiteVecStore only writes it to its debug log: the store
	// always uses mattn/go-sqlite3 with a brute-force cosine scan, whatever
	// the value.
	Backend string `yaml:"backend"`

	// VectorDimensions must match the embedding engine's output width.
	VectorDimensions int `yaml:"vector_dimensions"`

	SlotTaxonomyPath string `yaml:"slot_taxonomy_path"`
}

func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		WorkspaceRoot:    ".cogkernel",
		Backend:          "sqlite-vec",
		VectorDimensions: 768,
		SlotTaxonomyPath: "slot_taxonomy.json",
	}
}
