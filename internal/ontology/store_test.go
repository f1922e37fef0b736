package ontology

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corescaffold/cogkernel/internal/config"
	"github.com/corescaffold/cogkernel/internal/store"
)

// fakeVectorStore is a minimal in-memory store.VectorStore for tests
// that never need real similarity search (ontology resolution only
// uses IterateAll and Store).
type fakeVectorStore struct {
	records map[string]store.Record
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{records: make(map[string]store.Record)}
}

func (f *fakeVectorStore) Store(_ context.Context, rec store.Record) error {
	f.records[rec.ID] = rec
	return nil
}

func (f *fakeVectorStore) Search(_ context.Context, _ []float32, limit int) ([]store.Match, error) {
	return nil, nil
}

func (f *fakeVectorStore) Delete(_ context.Context, id string) error {
	delete(f.records, id)
	return nil
}

func (f *fakeVectorStore) IterateAll(_ context.Context, fn func(store.Record) error) error {
	for _, rec := range f.records {
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeVectorStore) Close() error { return nil }

func testConfig(t *testing.T) config.OntologyConfig {
	t.Helper()
	cfg := config.DefaultOntologyConfig()
	dir := t.TempDir()
	cfg.RelationshipsPath = dir + "/relationships.jsonl"
	cfg.IngestionQueuePath = dir + "/ingestion_queue.jsonl"
	cfg.ResolutionAuditPath = dir + "/resolution_audit.jsonl"
	cfg.ReviewQueuePath = dir + "/review_queue.jsonl"
	return cfg
}

var candidateSeq int

// candidate builds a test Candidate with a fresh record_id each call, so
// unrelated candidates in a test never collide under the idempotent-
// ingest provenance check; tests of that check set Provenance directly.
func candidate(entityType, name, address, date, identifier string) Candidate {
	candidateSeq++
	return Candidate{
		EntityType: entityType,
		Properties: map[string]interface{}{
			"name": name, "address": address, "date": date, "identifier": identifier,
		},
		Provenance: Provenance{SourceID: "doc-1", RecordID: fmt.Sprintf("rec-%d", candidateSeq), SourceType: "test", IngestedAt: time.Now().UTC(), Confidence: 0.9},
	}
}

func TestNormalizeNameStripsHonorificsAndPunctuation(t *testing.T) {
	assert.Equal(t, "john smith", NormalizeName("Dr. John Smith, Jr.", []string{"dr", "jr"}))
}

func TestNameSimilarityIdenticalIsOne(t *testing.T) {
	assert.Equal(t, 1.0, nameSimilarity("john smith", "john smith"))
}

func TestNameSimilarityCloseSpellingsScoreHigh(t *testing.T) {
	s := nameSimilarity("john smith", "jon smith")
	assert.Greater(t, s, 0.85)
}

func TestDateSimilarityPlateausWithinOneDay(t *testing.T) {
	base := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 1.0, dateSimilarity(base, base))
	assert.Equal(t, 1.0, dateSimilarity(base, base.Add(24*time.Hour)))
	assert.Less(t, dateSimilarity(base, base.Add(48*time.Hour)), 1.0)
}

func TestTokenOverlapJaccard(t *testing.T) {
	assert.Equal(t, 1.0, tokenOverlap("123 main street", "123 main street"))
	assert.InDelta(t, 0.5, tokenOverlap("123 main street", "123 main road"), 0.01)
}

func TestUnionFindTransitiveClosure(t *testing.T) {
	uf := newUnionFind()
	uf.union("a", "b")
	uf.union("b", "c")
	assert.Equal(t, uf.find("a"), uf.find("c"))

	groups := uf.groups()
	root := uf.find("a")
	assert.ElementsMatch(t, []string{"a", "b", "c"}, groups[root])
}

func TestBlockingMatchesOnSharedIdentifier(t *testing.T) {
	a := Entity{ID: "a", EntityType: "org", NormalizedName: "acme corp", Identifiers: []string{"12-3456789"}}
	b := Entity{ID: "b", EntityType: "org", NormalizedName: "different name", Identifiers: []string{"12-3456789"}}
	block := newCandidateBlock()
	block.add(a)
	matches := block.matches(b)
	assert.Contains(t, matches, "a")
}

func TestDecideThresholdRouting(t *testing.T) {
	cfg := config.DefaultOntologyConfig()
	assert.Equal(t, DecisionMerge, decide(0.9, cfg))
	assert.Equal(t, DecisionReview, decide(0.7, cfg))
	assert.Equal(t, DecisionDistinct, decide(0.2, cfg))
}

func TestIngestMergesCloseDuplicateAboveThreshold(t *testing.T) {
	ctx := context.Background()
	vs := newFakeVectorStore()
	s, err := NewStore(ctx, testConfig(t), vs, nil)
	require.NoError(t, err)

	first := s.Ingest(ctx, candidate("person", "John Smith", "123 Main St", "2024-01-01", "SSN-1234"))
	require.True(t, first.IsOk())

	second := s.Ingest(ctx, candidate("person", "Jon Smith", "123 Main Street", "2024-01-02", "SSN-1234"))
	require.True(t, second.IsOk())
	result, _ := second.Effect()
	assert.Equal(t, DecisionMerge, result.Decision)
	assert.Len(t, result.Merged, 1)

	original, ok := first.Effect()
	require.True(t, ok)
	supersededRec, ok := vs.records[original.Entity.ID]
	require.True(t, ok)
	assert.Equal(t, result.Entity.ID, supersededRec.Metadata["superseded_by"])
}

func TestIngestLeavesUnrelatedEntitiesDistinct(t *testing.T) {
	ctx := context.Background()
	vs := newFakeVectorStore()
	s, err := NewStore(ctx, testConfig(t), vs, nil)
	require.NoError(t, err)

	first := s.Ingest(ctx, candidate("person", "Alice Johnson", "1 First Ave", "2024-01-01", "ID-AAA"))
	require.True(t, first.IsOk())
	second := s.Ingest(ctx, candidate("org", "Zephyr Holdings", "999 Other Blvd", "2019-06-01", "ID-ZZZ"))
	require.True(t, second.IsOk())

	r2, _ := second.Effect()
	assert.Equal(t, DecisionDistinct, r2.Decision)
	assert.Len(t, vs.records, 2)
}

func TestIngestIsIdempotentBySourceAndRecordID(t *testing.T) {
	ctx := context.Background()
	vs := newFakeVectorStore()
	s, err := NewStore(ctx, testConfig(t), vs, nil)
	require.NoError(t, err)

	c := candidate("person", "Dana Kim", "7 Pine St", "2024-02-01", "ID-DK")
	c.Provenance.SourceID = "feed-1"
	c.Provenance.RecordID = "row-42"

	first := s.Ingest(ctx, c)
	require.True(t, first.IsOk())
	require.Len(t, vs.records, 1)

	second := s.Ingest(ctx, c)
	assert.True(t, second.IsPassthrough(), "re-ingesting the same (source_id, record_id) must be a no-op")
	assert.Len(t, vs.records, 1, "re-ingesting the same (source_id, record_id) must not persist another entity")

	c.ForceReingest = true
	third := s.Ingest(ctx, c)
	require.True(t, third.IsOk(), "force_reingest must bypass the dedup short-circuit")
}

func TestResolveRelationshipsUnresolvedStubWhenNoTargetMatches(t *testing.T) {
	ctx := context.Background()
	vs := newFakeVectorStore()
	s, err := NewStore(ctx, testConfig(t), vs, nil)
	require.NoError(t, err)

	res := s.Ingest(ctx, candidate("person", "Maria Lopez", "5 Elm St", "", ""))
	require.True(t, res.IsOk())
	entity, _ := res.Effect()

	rels := s.ResolveRelationships(ctx, entity.Entity.ID, []RelationshipHint{{TargetName: "Nonexistent Person", RelationType: "colleague_of"}})
	require.Len(t, rels, 1)
	assert.Equal(t, unresolvedRelation, rels[0].Type)
}

func TestResolveRelationshipsTypedWhenTargetFoundAboveThreshold(t *testing.T) {
	ctx := context.Background()
	vs := newFakeVectorStore()
	s, err := NewStore(ctx, testConfig(t), vs, nil)
	require.NoError(t, err)

	a := s.Ingest(ctx, candidate("person", "Maria Lopez", "5 Elm St", "", ""))
	require.True(t, a.IsOk())
	b := s.Ingest(ctx, candidate("person", "Carlos Ruiz", "9 Oak Ave", "", ""))
	require.True(t, b.IsOk())
	aEntity, _ := a.Effect()
	bEntity, _ := b.Effect()

	rels := s.ResolveRelationships(ctx, aEntity.Entity.ID, []RelationshipHint{{TargetName: "Carlos Ruiz", RelationType: "colleague_of"}})
	require.Len(t, rels, 1)
	assert.Equal(t, "colleague_of", rels[0].Type)
	assert.Equal(t, bEntity.Entity.ID, rels[0].To)
	assert.GreaterOrEqual(t, rels[0].Confidence, s.cfg.RelationshipConfidenceThreshold)
}

func TestDiscoverRelationshipsFindsCoLocatedAndTemporallyLinked(t *testing.T) {
	ctx := context.Background()
	vs := newFakeVectorStore()
	s, err := NewStore(ctx, testConfig(t), vs, nil)
	require.NoError(t, err)

	_ = s.Ingest(ctx, candidate("person", "Nina Patel", "10 River Rd", "2024-03-01", "ID-N1"))
	_ = s.Ingest(ctx, candidate("person", "Omar Haddad", "10 River Road", "2024-03-03", "ID-O1"))

	discovered := s.DiscoverRelationships(ctx)
	var types []string
	for _, r := range discovered {
		types = append(types, r.Type)
	}
	assert.Contains(t, types, "co_located")
	assert.Contains(t, types, "temporally_linked")
}

func TestFindMentionsMatchesCanonicalNameCaseInsensitively(t *testing.T) {
	ctx := context.Background()
	vs := newFakeVectorStore()
	s, err := NewStore(ctx, testConfig(t), vs, nil)
	require.NoError(t, err)

	_ = s.Ingest(ctx, candidate("person", "Priya Raman", "1 Lake Dr", "", ""))

	hits := s.FindMentions("please follow up with priya raman about the contract")
	require.Len(t, hits, 1)
	assert.Equal(t, "Priya Raman", hits[0].Name)
}
