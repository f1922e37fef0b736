package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/corescaffold/cogkernel/internal/config"
	"github.com/corescaffold/cogkernel/internal/embedding"
	"github.com/corescaffold/cogkernel/internal/logging"
	"github.com/corescaffold/cogkernel/internal/outcome"
	"github.com/corescaffold/cogkernel/internal/store"
)

// EntityHit is one ontology-index match against a message (spec §4.5
// "Ontology-aware extension").
type EntityHit struct {
	Name       string
	EntityType string
	EntityID   string
}

// EntityIndex scans a message for known entity names/aliases. Satisfied
// by internal/ontology; left as an interface here so internal/memory has
// no import-time dependency on it.
type EntityIndex interface {
	FindMentions(message string) []EntityHit
}

// RelationshipIndex returns a hit's 1-hop relationship neighbours,
// sorted by confidence descending, bounded to limit.
type RelationshipIndex interface {
	Neighbors(entityID string, limit int) []Connection
}

// Engine performs retrieval-time Memory Enhancement (spec §4.5).
type Engine struct {
	cfg       config.MemoryConfig
	store     store.VectorStore
	embedder  embedding.EmbeddingEngine
	stopwords map[string]bool
	ontology  EntityIndex
	relations RelationshipIndex
}

// NewEngine wires a VectorStore and EmbeddingEngine together. ontology
// and relations may both be nil: the ontology-aware extension is then
// simply skipped (spec §4.5 "Edge policy": disabled subcomponents are
// skipped without affecting the rest).
func NewEngine(cfg config.MemoryConfig, vectorStore store.VectorStore, embedder embedding.EmbeddingEngine, ontology EntityIndex, relations RelationshipIndex) *Engine {
	return &Engine{
		cfg:      cfg,
		store:    vectorStore,
		embedder: embedder,
		ontology: ontology,
		relations: relations,
	}
}

// Retrieve runs query expansion, multi-variant similarity search, decay
// scoring, related-memory boosting, top-k selection, access tracking,
// and co-retrieval logging for one turn.
func (e *Engine) Retrieve(ctx context.Context, turn int, domain, message string) outcome.Outcome[Result] {
	if !e.cfg.Enabled {
		return outcome.Skip[Result]("memory enhancement disabled")
	}

	variants := ExpandQuery(message, domain, e.stopwords)
	queries := variants.List()

	var connections []Connection
	if e.ontology != nil {
		for _, hit := range e.ontology.FindMentions(message) {
			queries = append(queries, "relationships of "+hit.Name, hit.EntityType+" connected to "+hit.Name)
			if e.relations != nil {
				connections = append(connections, e.relations.Neighbors(hit.EntityID, e.cfg.OntologyNeighborLimit)...)
			}
		}
	}

	merged, err := e.searchVariants(ctx, queries)
	if err != nil {
		logging.MemoryDebug("retrieval failed, degrading to no memories: %v", err)
		return outcome.Fail[Result](err.Error())
	}

	now := time.Now().UTC()
	candidates := make([]Candidate, 0, len(merged))
	for id, m := range merged {
		candidates = append(candidates, Candidate{
			ID:         id,
			Content:    m.Content,
			Embedding:  m.Embedding,
			Metadata:   m.Metadata,
			Lineage:    lineageFromMetadata(m.Metadata, m.CreatedAt),
			Similarity: m.Similarity,
		})
	}
	scoreCandidates(candidates, now, e.cfg)
	sortCandidatesDesc(candidates)

	maxInjected := e.cfg.MaxInjected
	if maxInjected <= 0 {
		maxInjected = 5
	}
	selected := applyRelatedBoost(candidates, maxInjected, e.cfg.RelatedBoost)

	e.trackAccess(ctx, selected, now)
	e.logCoRetrieval(turn, domain, selected)

	return outcome.Ok(Result{Memories: selected, Connections: connections})
}

// searchVariants issues one similarity query per variant concurrently
// and merges results by memory id, keeping the maximum similarity score
// seen across variants for each id (spec §4.5).
func (e *Engine) searchVariants(ctx context.Context, queries []string) (map[string]store.Match, error) {
	limit := e.cfg.RetrievalKPerVariant
	if limit <= 0 {
		limit = 8
	}

	results := make([][]store.Match, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			vec, err := e.embedder.Embed(gctx, q)
			if err != nil {
				return fmt.Errorf("embed variant %q: %w", q, err)
			}
			matches, err := e.store.Search(gctx, vec, limit)
			if err != nil {
				return fmt.Errorf("search variant %q: %w", q, err)
			}
			results[i] = matches
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]store.Match)
	for _, matches := range results {
		for _, m := range matches {
			if existing, ok := merged[m.ID]; !ok || m.Similarity > existing.Similarity {
				merged[m.ID] = m
			}
		}
	}
	return merged, nil
}

func sortCandidatesDesc(candidates []Candidate) {
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Final > candidates[j].Final })
}

// applyRelatedBoost selects the provisional top-k, then boosts any
// candidate named in a selected memory's lineage.related_memory_ids
// that fell outside the top-k, and re-selects (spec §4.5 "Related
// boost").
func applyRelatedBoost(candidates []Candidate, k int, boost float64) []Candidate {
	if len(candidates) <= k {
		return candidates
	}

	byID := make(map[string]*Candidate, len(candidates))
	for i := range candidates {
		byID[candidates[i].ID] = &candidates[i]
	}

	topK := make(map[string]bool, k)
	for i := 0; i < k && i < len(candidates); i++ {
		topK[candidates[i].ID] = true
	}

	for id := range topK {
		for _, relatedID := range byID[id].Lineage.RelatedMemoryIDs {
			if topK[relatedID] {
				continue
			}
			if related, ok := byID[relatedID]; ok {
				related.Final += boost
			}
		}
	}

	sortCandidatesDesc(candidates)
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates
}

// trackAccess atomically bumps lineage.access_count and last_accessed
// for each emitted memory, writing the record back to the store
// (spec §4.5 "Access tracking").
func (e *Engine) trackAccess(ctx context.Context, selected []Candidate, now time.Time) {
	for i := range selected {
		c := &selected[i]
		c.Lineage.AccessCount++
		c.Lineage.LastAccessed = now
		c.Metadata = lineageToMetadata(c.Metadata, c.Lineage)

		if err := e.store.Store(ctx, store.Record{
			ID:        c.ID,
			Content:   c.Content,
			Embedding: c.Embedding,
			Metadata:  c.Metadata,
			CreatedAt: c.Lineage.CreatedAt,
		}); err != nil {
			logging.MemoryDebug("access tracking write-back failed for %s: %v", c.ID, err)
		}
	}
}

// logCoRetrieval appends the turn's emitted memory ids to the bounded
// co-retrieval log.
func (e *Engine) logCoRetrieval(turn int, domain string, selected []Candidate) {
	ids := make([]string, len(selected))
	for i, c := range selected {
		ids[i] = c.ID
	}
	entry := CoRetrievalEntry{
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
		Domain:           domain,
		EmittedMemoryIDs: ids,
		Cycle:            turn,
	}
	if err := appendCoRetrieval(e.cfg.CoRetrievalLogPath, entry, e.cfg.CoRetrievalMaxEntries); err != nil {
		logging.MemoryDebug("co-retrieval log append failed: %v", err)
	}
}
