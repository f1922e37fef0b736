// Package maintenance implements the Maintenance Pass (spec §4.7):
// deduplication, related-memory linking, cluster detection, dormancy
// flagging, and ontology upkeep, run periodically between turns.
package maintenance

import "time"

// validityRank orders memory validity/source tiers for deduplication
// priority (spec §4.7: "confirmed > user_asserted > agent_inferred >
// deprecated").
var validityRank = map[string]int{
	"confirmed":      3,
	"user_asserted":  2,
	"agent_inferred": 1,
	"deprecated":     0,
}

// DedupOutcome is one deduplication decision (spec §4.7).
type DedupOutcome struct {
	WinnerID string `json:"winner_id"`
	LoserID  string `json:"loser_id"`
	Flagged  bool   `json:"flagged"` // load_bearing or both-user-asserted: needs review, not superseded
	Reason   string `json:"reason"`
}

// RelatedLink is one mutual related-memory-id addition.
type RelatedLink struct {
	A string `json:"a"`
	B string `json:"b"`
}

// ClusterCandidate is an observation-only co-retrieval cluster
// (spec §4.7 "Cluster detection").
type ClusterCandidate struct {
	MemoryIDs []string `json:"memory_ids"`
	Count     int      `json:"count"`
}

// DormancyFlag marks a memory as a dormancy candidate without
// reclassifying it automatically.
type DormancyFlag struct {
	MemoryID    string    `json:"memory_id"`
	LastAccess  time.Time `json:"last_access,omitempty"`
	AgeDays     float64   `json:"age_days"`
}

// Report summarizes one maintenance cycle (spec §4.7/§6 report_path).
type Report struct {
	RunAt               time.Time          `json:"run_at"`
	Turn                int                `json:"turn"`
	Deduped             []DedupOutcome     `json:"deduped"`
	RelatedLinksAdded   []RelatedLink      `json:"related_links_added"`
	ClusterCandidates   []ClusterCandidate `json:"cluster_candidates"`
	DormancyFlags       []DormancyFlag     `json:"dormancy_flags"`
	OntologyMerges      int                `json:"ontology_merges"`
	OntologyRelationships int              `json:"ontology_relationships_discovered"`
}
