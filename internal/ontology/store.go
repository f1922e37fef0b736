package ontology

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/corescaffold/cogkernel/internal/config"
	"github.com/corescaffold/cogkernel/internal/embedding"
	"github.com/corescaffold/cogkernel/internal/logging"
	"github.com/corescaffold/cogkernel/internal/outcome"
	"github.com/corescaffold/cogkernel/internal/store"
)

// areaOntology tags an entity's VectorStore metadata so the shared
// store can distinguish entity records from ordinary memories
// (spec §4.6: "entities are classified memories ... area = ontology").
const areaOntology = "ontology"

// Store resolves ingestion candidates into entities, persists
// relationships, and maintains the review/audit logs (spec §4.6).
type Store struct {
	cfg      config.OntologyConfig
	vectors  store.VectorStore
	embedder embedding.EmbeddingEngine

	mu       sync.Mutex
	entities map[string]Entity
	block    *candidateBlock
	seen     map[string]string // provenance key (source_id|record_id) -> entity ID
}

// NewStore loads any previously-resolved entities out of vectors
// (area == ontology) into an in-memory block index used for scoring
// and blocking; embedder may be nil, in which case entities are stored
// with a zero-length embedding (ontology resolution never performs a
// similarity search over entities, only exact/blocking lookups).
func NewStore(ctx context.Context, cfg config.OntologyConfig, vectors store.VectorStore, embedder embedding.EmbeddingEngine) (*Store, error) {
	s := &Store{
		cfg:      cfg,
		vectors:  vectors,
		embedder: embedder,
		entities: make(map[string]Entity),
		block:    newCandidateBlock(),
		seen:     make(map[string]string),
	}
	if vectors == nil {
		return s, nil
	}
	err := vectors.IterateAll(ctx, func(rec store.Record) error {
		area, _ := rec.Metadata["area"].(string)
		if area != areaOntology {
			return nil
		}
		e, ok := entityFromRecord(rec)
		if !ok {
			return nil
		}
		s.entities[e.ID] = e
		s.block.add(e)
		for _, p := range e.Provenances {
			if key := provenanceKey(p); key != "" {
				s.seen[key] = e.ID
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load ontology entities: %w", err)
	}
	return s, nil
}

// Ingest runs the full resolution pipeline for one candidate:
// preprocess, block, score, threshold, transitive-merge, persist,
// audit (spec §4.6 steps 1-5).
func (s *Store) Ingest(ctx context.Context, c Candidate) outcome.Outcome[ResolutionResult] {
	if !s.cfg.Enabled {
		return outcome.Skip[ResolutionResult]("ontology disabled")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if key := provenanceKey(c.Provenance); key != "" && !c.ForceReingest {
		if id, ok := s.seen[key]; ok {
			if e, ok := s.EntityByIDLocked(id); ok {
				return outcome.Skip[ResolutionResult](fmt.Sprintf("candidate from %s already ingested as entity %s", key, e.ID))
			}
			return outcome.Skip[ResolutionResult](fmt.Sprintf("candidate from %s already ingested", key))
		}
	}

	entity := s.preprocessCandidate(c)

	matchIDs := s.block.matches(entity)
	uf := newUnionFind()
	uf.find(entity.ID)

	var merged []string
	var lastScore ScoreBreakdown
	for _, id := range matchIDs {
		other, ok := s.entities[id]
		if !ok {
			continue
		}
		sb := Score(entity, other, s.cfg.Weights)
		decision := decide(sb.Composite, s.cfg)
		s.audit(decision, entity.ID, other.ID, sb, []Provenance{c.Provenance})

		switch decision {
		case DecisionMerge:
			uf.union(entity.ID, other.ID)
			merged = append(merged, other.ID)
			lastScore = sb
		case DecisionReview:
			s.queueReview(entity.ID, other.ID, sb)
		}
	}

	if len(merged) == 0 {
		s.entities[entity.ID] = entity
		s.block.add(entity)
		if err := s.persist(ctx, entity); err != nil {
			return outcome.Fail[ResolutionResult](err.Error())
		}
		s.markSeen(entity)
		return outcome.Ok(ResolutionResult{Entity: entity, Decision: DecisionDistinct})
	}

	groupIDs := uf.groups()[uf.find(entity.ID)]
	final := s.mergeGroup(entity, groupIDs)
	s.entities[final.ID] = final
	for _, id := range groupIDs {
		if id == final.ID {
			continue
		}
		if old, ok := s.entities[id]; ok {
			old.SupersededBy = final.ID
			s.entities[id] = old
			if err := s.persist(ctx, old); err != nil {
				logging.OntologyDebug("persist superseded entity %s failed: %v", id, err)
			}
		}
	}
	s.block.add(final)
	if err := s.persist(ctx, final); err != nil {
		return outcome.Fail[ResolutionResult](err.Error())
	}
	s.markSeen(final)

	logging.Ontology("merged %d candidate(s) into entity %s (composite=%.2f)", len(merged), final.ID, lastScore.Composite)
	return outcome.Ok(ResolutionResult{Entity: final, Decision: DecisionMerge, Merged: merged})
}

// preprocessCandidate normalizes a raw candidate into an Entity shape
// (spec §4.6 step 1), independent of any matching decision.
func (s *Store) preprocessCandidate(c Candidate) Entity {
	name, _ := c.Properties["name"].(string)
	address, _ := c.Properties["address"].(string)
	dateStr, _ := c.Properties["date"].(string)
	context, _ := c.Properties["context"].(string)

	var identifiers []string
	if raw, ok := c.Properties["identifier"].(string); ok && raw != "" {
		identifiers = append(identifiers, raw)
	}
	identifiers = append(identifiers, ExtractIdentifiers(name+" "+context)...)

	return Entity{
		ID:             uuid.NewString(),
		EntityType:     c.EntityType,
		CanonicalName:  name,
		NormalizedName: NormalizeName(name, s.cfg.Honorifics),
		Identifiers:    identifiers,
		Address:        CanonicalizeAddress(address, s.cfg.AddressExpansions),
		Date:           ParseDate(dateStr),
		ContextTerms:   tokenize(context),
		Properties:     c.Properties,
		Provenances:    []Provenance{c.Provenance},
		CreatedAt:      time.Now().UTC(),
	}
}

// mergeGroup applies the merge policy (spec §4.6 step 6): scalar
// fields take the highest-confidence provenance's value, array fields
// union, and every provenance is carried forward.
func (s *Store) mergeGroup(incoming Entity, groupIDs []string) Entity {
	best := incoming
	bestConfidence := bestProvenanceConfidence(incoming)
	aliasSet := map[string]bool{incoming.CanonicalName: true}
	idSet := map[string]bool{}
	for _, id := range incoming.Identifiers {
		idSet[id] = true
	}
	var provenances []Provenance
	provenances = append(provenances, incoming.Provenances...)

	for _, id := range groupIDs {
		if id == incoming.ID {
			continue
		}
		other, ok := s.entities[id]
		if !ok {
			continue
		}
		aliasSet[other.CanonicalName] = true
		for _, alias := range other.Aliases {
			aliasSet[alias] = true
		}
		for _, ident := range other.Identifiers {
			idSet[ident] = true
		}
		provenances = append(provenances, other.Provenances...)
		if c := bestProvenanceConfidence(other); c > bestConfidence {
			bestConfidence = c
			best = other
		}
	}

	merged := best
	merged.ID = incoming.ID
	merged.Properties = incoming.Properties
	merged.Provenances = provenances
	merged.SupersededBy = ""

	delete(aliasSet, best.CanonicalName)
	merged.Aliases = make([]string, 0, len(aliasSet))
	for alias := range aliasSet {
		if alias != "" {
			merged.Aliases = append(merged.Aliases, alias)
		}
	}
	sort.Strings(merged.Aliases)

	merged.Identifiers = make([]string, 0, len(idSet))
	for id := range idSet {
		merged.Identifiers = append(merged.Identifiers, id)
	}
	sort.Strings(merged.Identifiers)

	return merged
}

func bestProvenanceConfidence(e Entity) float64 {
	best := 0.0
	for _, p := range e.Provenances {
		if p.Confidence > best {
			best = p.Confidence
		}
	}
	return best
}

func (s *Store) audit(decision Decision, a, b string, sb ScoreBreakdown, provenance []Provenance) {
	rec := AuditRecord{Timestamp: time.Now().UTC(), Decision: decision, EntityA: a, EntityB: b, Score: sb, Provenance: provenance}
	if err := store.AppendJSONL(s.cfg.ResolutionAuditPath, rec); err != nil {
		logging.OntologyDebug("audit append failed: %v", err)
	}
}

func (s *Store) queueReview(a, b string, sb ScoreBreakdown) {
	rec := ReviewRecord{Timestamp: time.Now().UTC(), EntityA: a, EntityB: b, Score: sb}
	if err := store.AppendJSONL(s.cfg.ReviewQueuePath, rec); err != nil {
		logging.OntologyDebug("review queue append failed: %v", err)
	}
}

func (s *Store) persist(ctx context.Context, e Entity) error {
	if s.vectors == nil {
		return nil
	}
	var vec []float32
	if s.embedder != nil {
		v, err := s.embedder.Embed(ctx, e.NormalizedName)
		if err != nil {
			logging.OntologyDebug("entity embed failed for %s: %v", e.ID, err)
		} else {
			vec = v
		}
	}
	return s.vectors.Store(ctx, store.Record{
		ID:        e.ID,
		Content:   e.CanonicalName,
		Embedding: vec,
		Metadata:  entityToMetadata(e),
		CreatedAt: e.CreatedAt,
	})
}

// EntityByID returns a resolved entity by id, following SupersededBy
// pointers once.
func (s *Store) EntityByID(id string) (Entity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.EntityByIDLocked(id)
}

// EntityByIDLocked is EntityByID for callers already holding s.mu.
func (s *Store) EntityByIDLocked(id string) (Entity, bool) {
	e, ok := s.entities[id]
	if !ok {
		return Entity{}, false
	}
	if e.SupersededBy != "" {
		if final, ok := s.entities[e.SupersededBy]; ok {
			return final, true
		}
	}
	return e, true
}

// provenanceKey derives the dedup key for a provenance record (spec
// §8 idempotent ingest: "same (source_id, record_id)"); blank when
// either half is unset, since such candidates carry no dedup signal.
func provenanceKey(p Provenance) string {
	if p.SourceID == "" || p.RecordID == "" {
		return ""
	}
	return p.SourceID + "|" + p.RecordID
}

// markSeen records every provenance a persisted entity carries so a
// later candidate from the same (source_id, record_id) short-circuits
// in Ingest instead of minting a duplicate entity.
func (s *Store) markSeen(e Entity) {
	for _, p := range e.Provenances {
		if key := provenanceKey(p); key != "" {
			s.seen[key] = e.ID
		}
	}
}

func tokenize(text string) []string {
	set := toTokenSet(text)
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
