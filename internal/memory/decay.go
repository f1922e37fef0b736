package memory

import (
	"encoding/json"
	"math"
	"time"

	"github.com/corescaffold/cogkernel/internal/config"
)

// lineageFromMetadata reads the "lineage" sub-object a candidate's
// metadata carries, lazily defaulting missing fields (spec §4.5 "Edge
// policy": "Missing metadata fields are initialized lazily to defaults").
func lineageFromMetadata(metadata map[string]interface{}, createdAt time.Time) Lineage {
	l := Lineage{CreatedAt: createdAt}
	raw, ok := metadata["lineage"]
	if !ok {
		return l
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return l
	}
	_ = json.Unmarshal(data, &l)
	if l.CreatedAt.IsZero() {
		l.CreatedAt = createdAt
	}
	return l
}

// lineageToMetadata writes l back into a metadata map under "lineage".
func lineageToMetadata(metadata map[string]interface{}, l Lineage) map[string]interface{} {
	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	metadata["lineage"] = l
	return metadata
}

// LineageFromMetadata and LineageToMetadata expose the lineage codec to
// internal/maintenance, which reads and rewrites the same metadata
// shape during deduplication/related-linking/dormancy flagging. Kept
// as thin exported wrappers rather than duplicating the codec so there
// is exactly one place that defines what a memory's lineage metadata
// looks like on disk.
func LineageFromMetadata(metadata map[string]interface{}, createdAt time.Time) Lineage {
	return lineageFromMetadata(metadata, createdAt)
}

func LineageToMetadata(metadata map[string]interface{}, l Lineage) map[string]interface{} {
	return lineageToMetadata(metadata, l)
}

// recencyScore computes spec §4.5's temporal decay: age from
// last_accessed (fallback created_at; 1.0 if both are zero), exponential
// decay floored at minRecency, forced to 1.0 under any of the three
// exemptions.
func recencyScore(l Lineage, now time.Time, halfLifeHours, minRecency float64) float64 {
	if l.Utility == UtilityLoadBearing || l.Source == SourceUserAsserted || l.Validity == ValidityConfirmed {
		return 1.0
	}

	reference := l.LastAccessed
	if reference.IsZero() {
		reference = l.CreatedAt
	}
	if reference.IsZero() {
		return 1.0
	}

	ageHours := now.Sub(reference).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	if halfLifeHours <= 0 {
		halfLifeHours = 168
	}
	decayRate := math.Ln2 / halfLifeHours
	recency := math.Exp(-decayRate * ageHours)
	if recency < minRecency {
		recency = minRecency
	}
	return recency
}

// finalScore blends similarity and recency per spec §4.5's
// `(1 - decay_weight) * similarity + decay_weight * recency`.
func finalScore(similarity, recency, decayWeight float64) float64 {
	return (1-decayWeight)*similarity + decayWeight*recency
}

// scoreCandidates fills in each candidate's Lineage and Final score.
func scoreCandidates(candidates []Candidate, now time.Time, cfg config.MemoryConfig) {
	for i := range candidates {
		c := &candidates[i]
		recency := recencyScore(c.Lineage, now, cfg.HalfLifeHours, cfg.MinRecencyScore)
		c.Final = finalScore(c.Similarity, recency, cfg.DecayWeight)
	}
}
