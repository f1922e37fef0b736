// Package memory implements retrieval-time Memory Enhancement (spec
// §4.5): multi-variant query expansion, decay-weighted scoring,
// related-memory boosting, top-k selection, access tracking, and the
// bounded co-retrieval log.
package memory

import "time"

// Source/Validity/Utility are the exemption-triggering metadata values
// spec §4.5 names ("Exemptions (recency forced to 1.0)").
const (
	SourceUserAsserted = "user_asserted"
	ValidityConfirmed  = "confirmed"
	UtilityLoadBearing = "load_bearing"
)

// Lineage is the subset of a memory's metadata Memory Enhancement reads
// and writes: decay inputs and access tracking (spec §4.5).
type Lineage struct {
	CreatedAt          time.Time `json:"created_at"`
	LastAccessed        time.Time `json:"last_accessed"`
	AccessCount         int       `json:"access_count"`
	RelatedMemoryIDs    []string  `json:"related_memory_ids"`
	Source              string    `json:"source,omitempty"`
	Validity            string    `json:"validity,omitempty"`
	Utility             string    `json:"utility,omitempty"`
}

// Candidate is a scored memory mid-pipeline: the raw similarity score
// from the vector store plus the derived final score.
type Candidate struct {
	ID         string
	Content    string
	Embedding  []float32
	Metadata   map[string]interface{}
	Lineage    Lineage
	Similarity float64
	Final      float64
}

// CoRetrievalEntry is one append to the bounded co-retrieval log
// (spec §3/§4.5).
type CoRetrievalEntry struct {
	Timestamp         string   `json:"timestamp"`
	Domain            string   `json:"domain"`
	EmittedMemoryIDs  []string `json:"emitted_memory_ids"`
	Cycle             int      `json:"cycle"`
}

// Connection is a structured "Known connections" block entry injected
// by the ontology-aware extension (spec §4.5).
type Connection struct {
	From         string  `json:"from"`
	Relationship string  `json:"relationship"`
	To           string  `json:"to"`
	Confidence   float64 `json:"confidence"`
}

// Result is what Engine.Retrieve returns for one turn.
type Result struct {
	Memories    []Candidate
	Connections []Connection
}
