package ontology

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/corescaffold/cogkernel/internal/logging"
	"github.com/corescaffold/cogkernel/internal/memory"
	"github.com/corescaffold/cogkernel/internal/store"
)

const unresolvedRelation = "unresolved"

// ResolveRelationships turns one candidate's relationship hints into
// persisted Relationship records (spec §4.6 step 7): a hint resolves to
// a typed edge when a target entity is found with confidence at or
// above RelationshipConfidenceThreshold, to a lower-confidence scored
// edge otherwise, and to an "unresolved" stub when no entity can be
// matched to the hint's target name at all.
func (s *Store) ResolveRelationships(ctx context.Context, sourceID string, hints []RelationshipHint) []Relationship {
	s.mu.Lock()
	targets := make([]Entity, 0, len(s.entities))
	for _, e := range s.entities {
		if e.SupersededBy == "" {
			targets = append(targets, e)
		}
	}
	s.mu.Unlock()

	var out []Relationship
	for _, hint := range hints {
		rel := s.resolveHint(sourceID, hint, targets)
		if err := store.AppendJSONL(s.cfg.RelationshipsPath, rel); err != nil {
			logging.OntologyDebug("relationship append failed: %v", err)
		}
		out = append(out, rel)
	}
	return out
}

func (s *Store) resolveHint(sourceID string, hint RelationshipHint, targets []Entity) Relationship {
	normalized := NormalizeName(hint.TargetName, s.cfg.Honorifics)

	bestScore := 0.0
	var bestTarget Entity
	found := false
	for _, t := range targets {
		if t.ID == sourceID {
			continue
		}
		score := 0.0
		if hint.TargetIdentifier != "" && identifierSimilarity([]string{hint.TargetIdentifier}, t.Identifiers) == 1 {
			score = 1.0
		} else {
			score = nameSimilarity(normalized, t.NormalizedName)
		}
		if score > bestScore {
			bestScore = score
			bestTarget = t
			found = true
		}
	}

	if !found || bestScore < 0.3 {
		return Relationship{
			ID:         uuid.NewString(),
			From:       sourceID,
			To:         hint.TargetName,
			Type:       unresolvedRelation,
			Confidence: 0,
			CreatedAt:  time.Now().UTC(),
		}
	}

	relType := hint.RelationType
	if bestScore < s.cfg.RelationshipConfidenceThreshold {
		relType = "possible_" + relType
	}
	return Relationship{
		ID:         uuid.NewString(),
		From:       sourceID,
		To:         bestTarget.ID,
		Type:       relType,
		Confidence: clamp01(bestScore),
		CreatedAt:  time.Now().UTC(),
	}
}

// DiscoverRelationships runs maintenance-time relationship discovery
// (spec §4.6 "Relationship discovery"): co_mentioned (entities sharing
// a provenance record), co_located (matching canonicalized address),
// and temporally_linked (dates within TemporalWindowDays) edges that
// candidate ingestion alone would never produce. Results below
// MinConfidenceToSurface are still persisted but callers should not
// surface them in query results.
func (s *Store) DiscoverRelationships(ctx context.Context) []Relationship {
	s.mu.Lock()
	entities := make([]Entity, 0, len(s.entities))
	for _, e := range s.entities {
		if e.SupersededBy == "" {
			entities = append(entities, e)
		}
	}
	s.mu.Unlock()

	var discovered []Relationship
	for i := 0; i < len(entities); i++ {
		for j := i + 1; j < len(entities); j++ {
			a, b := entities[i], entities[j]
			if rel, ok := coMentioned(a, b); ok {
				discovered = append(discovered, rel)
			}
			if rel, ok := coLocated(a, b); ok {
				discovered = append(discovered, rel)
			}
			if rel, ok := temporallyLinked(a, b, s.cfg.TemporalWindowDays); ok {
				discovered = append(discovered, rel)
			}
		}
	}

	for _, rel := range discovered {
		if err := store.AppendJSONL(s.cfg.RelationshipsPath, rel); err != nil {
			logging.OntologyDebug("discovered relationship append failed: %v", err)
		}
	}
	logging.MaintenanceDebug("ontology relationship discovery found %d edges", len(discovered))
	return discovered
}

func coMentioned(a, b Entity) (Relationship, bool) {
	sourceSet := make(map[string]bool, len(a.Provenances))
	for _, p := range a.Provenances {
		sourceSet[p.SourceID] = true
	}
	for _, p := range b.Provenances {
		if sourceSet[p.SourceID] {
			return Relationship{ID: uuid.NewString(), From: a.ID, To: b.ID, Type: "co_mentioned", Confidence: 0.6, CreatedAt: time.Now().UTC()}, true
		}
	}
	return Relationship{}, false
}

func coLocated(a, b Entity) (Relationship, bool) {
	if a.Address == "" || b.Address == "" || a.Address != b.Address {
		return Relationship{}, false
	}
	return Relationship{ID: uuid.NewString(), From: a.ID, To: b.ID, Type: "co_located", Confidence: 0.5, CreatedAt: time.Now().UTC()}, true
}

func temporallyLinked(a, b Entity, windowDays int) (Relationship, bool) {
	if a.Date.IsZero() || b.Date.IsZero() {
		return Relationship{}, false
	}
	diff := a.Date.Sub(b.Date)
	if diff < 0 {
		diff = -diff
	}
	if diff.Hours()/24 > float64(windowDays) {
		return Relationship{}, false
	}
	return Relationship{ID: uuid.NewString(), From: a.ID, To: b.ID, Type: "temporally_linked", Confidence: 0.4, CreatedAt: time.Now().UTC()}, true
}

// Neighbors implements memory.RelationshipIndex: it returns a.entity's
// 1-hop relationships above MinConfidenceToSurface, sorted by
// confidence descending and bounded to limit.
func (s *Store) Neighbors(entityID string, limit int) []memory.Connection {
	var all []Relationship
	_ = store.ReadJSONL(s.cfg.RelationshipsPath, func(line []byte) error {
		var rel Relationship
		if err := json.Unmarshal(line, &rel); err != nil {
			return nil
		}
		if rel.From == entityID || rel.To == entityID {
			all = append(all, rel)
		}
		return nil
	})

	var out []memory.Connection
	for _, rel := range all {
		if rel.Confidence < s.cfg.MinConfidenceToSurface {
			continue
		}
		other := rel.To
		if rel.From != entityID {
			other = rel.From
		}
		out = append(out, memory.Connection{From: entityID, Relationship: rel.Type, To: other, Confidence: rel.Confidence})
	}

	sortConnectionsDesc(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func sortConnectionsDesc(conns []memory.Connection) {
	for i := 1; i < len(conns); i++ {
		for j := i; j > 0 && conns[j].Confidence > conns[j-1].Confidence; j-- {
			conns[j], conns[j-1] = conns[j-1], conns[j]
		}
	}
}
