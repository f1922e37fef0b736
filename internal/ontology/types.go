// Package ontology implements the Ontology Store & Entity Resolution
// (spec §4.6): entities are classified memories (`area = "ontology"`)
// resolved through a deterministic preprocess/block/score/threshold/
// merge pipeline, with relationships held in a separate append-only
// JSONL store.
package ontology

import "time"

// Provenance records where an ingestion candidate came from (spec §4.6).
type Provenance struct {
	SourceID   string    `json:"source_id"`
	RecordID   string    `json:"record_id"`
	SourceType string    `json:"source_type"`
	IngestedAt time.Time `json:"ingested_at"`
	Confidence float64   `json:"confidence"`
}

// Candidate is one ingestion candidate awaiting resolution (spec §4.6).
type Candidate struct {
	EntityType         string                 `json:"entity_type"`
	Properties         map[string]interface{} `json:"properties"`
	RelationshipHints  []RelationshipHint     `json:"relationship_hints"`
	Provenance         Provenance             `json:"provenance"`

	// ForceReingest bypasses the (source_id, record_id) dedup check in
	// Store.Ingest, re-running resolution even though this provenance
	// was already seen (spec §8: "no additional candidate records
	// unless force-reingest is asserted").
	ForceReingest bool `json:"force_reingest,omitempty"`
}

// RelationshipHint names an unresolved relationship a candidate implies
// (spec §4.6 step 7).
type RelationshipHint struct {
	TargetName       string `json:"target_name"`
	TargetIdentifier string `json:"target_identifier,omitempty"`
	RelationType     string `json:"relation_type"`
}

// Entity is a resolved (possibly merged) entity record, stored as a
// classified memory with area "ontology" (spec §4.6).
type Entity struct {
	ID               string                 `json:"id"`
	EntityType       string                 `json:"entity_type"`
	CanonicalName    string                 `json:"canonical_name"`
	NormalizedName   string                 `json:"normalized_name"`
	Aliases          []string               `json:"aliases"`
	Identifiers      []string               `json:"identifiers"`
	Address          string                 `json:"address,omitempty"`
	Date             time.Time              `json:"date,omitempty"`
	ContextTerms     []string               `json:"context_terms,omitempty"`
	Properties       map[string]interface{} `json:"properties"`
	Provenances      []Provenance           `json:"provenances"`
	SupersededBy     string                 `json:"superseded_by,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
}

// Relationship is one typed edge between two resolved entities, or an
// "unresolved" stub when no target could be found (spec §4.6 step 7).
type Relationship struct {
	ID         string    `json:"id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Type       string    `json:"type"` // typed relation, or "unresolved"
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

// Decision is the threshold outcome of scoring a candidate pair
// (spec §4.6 step 4).
type Decision string

const (
	DecisionMerge    Decision = "merge"
	DecisionReview   Decision = "review"
	DecisionDistinct Decision = "distinct"
)

// ScoreBreakdown is the five-axis composite score for one candidate
// pair (spec §4.6 step 3).
type ScoreBreakdown struct {
	Name       float64 `json:"name"`
	Identifier float64 `json:"identifier"`
	Address    float64 `json:"address"`
	Date       float64 `json:"date"`
	Context    float64 `json:"context"`
	Composite  float64 `json:"composite"`
}

// AuditRecord is one resolution audit log entry (spec §4.6 "Audit").
type AuditRecord struct {
	Timestamp    time.Time      `json:"timestamp"`
	Decision     Decision       `json:"decision"`
	EntityA      string         `json:"entity_a"`
	EntityB      string         `json:"entity_b"`
	Score        ScoreBreakdown `json:"score"`
	Provenance   []Provenance   `json:"provenance"`
}

// ReviewRecord is one entry in the manual review queue
// (0.60 <= composite < 0.85, spec §4.6 step 4).
type ReviewRecord struct {
	Timestamp time.Time      `json:"timestamp"`
	EntityA   string         `json:"entity_a"`
	EntityB   string         `json:"entity_b"`
	Score     ScoreBreakdown `json:"score"`
}

// ResolutionResult is what Store.Ingest returns for one candidate.
type ResolutionResult struct {
	Entity   Entity
	Decision Decision
	Merged   []string // ids of entities merged into Entity.ID, if any
}
