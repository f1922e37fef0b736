package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corescaffold/cogkernel/internal/config"
	"github.com/corescaffold/cogkernel/internal/memory"
	"github.com/corescaffold/cogkernel/internal/ontology"
	"github.com/corescaffold/cogkernel/internal/store"
)

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

func (f *fakeVectorStore) Search(_ context.Context, _ []float32, _ int) ([]store.Match, error) {
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

func testMaintenanceConfig(t *testing.T) config.MaintenanceConfig {
	t.Helper()
	cfg := config.DefaultMaintenanceConfig()
	cfg.ReportPath = t.TempDir() + "/maintenance_report.json"
	return cfg
}

func recordWithLineage(id string, embedding []float32, lineage memory.Lineage, createdAt time.Time) store.Record {
	return store.Record{
		ID:        id,
		Content:   id,
		Embedding: embedding,
		Metadata:  memory.LineageToMetadata(nil, lineage),
		CreatedAt: createdAt,
	}
}

func TestDeduplicatePrefersConfirmedOverAgentInferred(t *testing.T) {
	fs := newFakeVectorStore()
	now := time.Now().UTC()
	confirmed := recordWithLineage("confirmed-1", []float32{1, 0}, memory.Lineage{CreatedAt: now, Validity: memory.ValidityConfirmed}, now)
	inferred := recordWithLineage("inferred-1", []float32{1, 0}, memory.Lineage{CreatedAt: now}, now)
	require.NoError(t, fs.Store(context.Background(), confirmed))
	require.NoError(t, fs.Store(context.Background(), inferred))

	p := NewPass(testMaintenanceConfig(t), fs, nil, config.OntologyConfig{}, t.TempDir()+"/co_retrieval_log.jsonl")
	report := p.Run(context.Background(), 1)

	require.Len(t, report.Deduped, 1)
	assert.Equal(t, "confirmed-1", report.Deduped[0].WinnerID)
	assert.Equal(t, "inferred-1", report.Deduped[0].LoserID)
	assert.False(t, report.Deduped[0].Flagged)

	updated := fs.records["inferred-1"]
	assert.Equal(t, "confirmed-1", updated.Metadata["superseded_by"])
}

func TestDeduplicateFlagsLoadBearingInsteadOfSuperseding(t *testing.T) {
	fs := newFakeVectorStore()
	now := time.Now().UTC()
	confirmed := recordWithLineage("confirmed-1", []float32{1, 0}, memory.Lineage{CreatedAt: now, Validity: memory.ValidityConfirmed}, now)
	loadBearing := recordWithLineage("load-bearing-1", []float32{1, 0}, memory.Lineage{CreatedAt: now, Utility: memory.UtilityLoadBearing}, now)
	require.NoError(t, fs.Store(context.Background(), confirmed))
	require.NoError(t, fs.Store(context.Background(), loadBearing))

	p := NewPass(testMaintenanceConfig(t), fs, nil, config.OntologyConfig{}, t.TempDir()+"/co_retrieval_log.jsonl")
	report := p.Run(context.Background(), 1)

	require.Len(t, report.Deduped, 1)
	assert.True(t, report.Deduped[0].Flagged)
	assert.NotContains(t, fs.records["load-bearing-1"].Metadata, "superseded_by")
}

func TestLinkRelatedAddsMutualIDsAboveThreshold(t *testing.T) {
	fs := newFakeVectorStore()
	now := time.Now().UTC()
	a := store.Record{ID: "a", CreatedAt: now, Metadata: map[string]interface{}{"tags": []interface{}{"auth", "refactor", "go"}}}
	b := store.Record{ID: "b", CreatedAt: now, Metadata: map[string]interface{}{"tags": []interface{}{"auth", "refactor", "go", "extra"}}}
	require.NoError(t, fs.Store(context.Background(), a))
	require.NoError(t, fs.Store(context.Background(), b))

	p := NewPass(testMaintenanceConfig(t), fs, nil, config.OntologyConfig{}, t.TempDir()+"/co_retrieval_log.jsonl")
	report := p.Run(context.Background(), 1)

	require.Len(t, report.RelatedLinksAdded, 1)
	lineageA := memory.LineageFromMetadata(fs.records["a"].Metadata, now)
	lineageB := memory.LineageFromMetadata(fs.records["b"].Metadata, now)
	assert.Contains(t, lineageA.RelatedMemoryIDs, "b")
	assert.Contains(t, lineageB.RelatedMemoryIDs, "a")
}

func TestDetectClustersFlagsHighCoRetrievalPairs(t *testing.T) {
	fs := newFakeVectorStore()
	cfg := testMaintenanceConfig(t)
	logPath := t.TempDir() + "/co_retrieval_log.jsonl"
	for i := 0; i < 6; i++ {
		require.NoError(t, store.AppendJSONL(logPath, coRetrievalEntry{EmittedMemoryIDs: []string{"x", "y"}}))
	}

	p := NewPass(cfg, fs, nil, config.OntologyConfig{}, logPath)
	report := p.Run(context.Background(), 1)

	require.Len(t, report.ClusterCandidates, 1)
	assert.ElementsMatch(t, []string{"x", "y"}, report.ClusterCandidates[0].MemoryIDs)
	assert.Equal(t, 6, report.ClusterCandidates[0].Count)
}

func TestFlagDormantForOldUnaccessedMemory(t *testing.T) {
	fs := newFakeVectorStore()
	old := time.Now().UTC().Add(-60 * 24 * time.Hour)
	rec := recordWithLineage("dormant-1", nil, memory.Lineage{CreatedAt: old}, old)
	require.NoError(t, fs.Store(context.Background(), rec))

	cfg := testMaintenanceConfig(t)
	cfg.DormancyThresholdDays = 30
	p := NewPass(cfg, fs, nil, config.OntologyConfig{}, t.TempDir()+"/co_retrieval_log.jsonl")
	report := p.Run(context.Background(), 1)

	require.Len(t, report.DormancyFlags, 1)
	assert.Equal(t, "dormant-1", report.DormancyFlags[0].MemoryID)
}

func TestTickFiresOnceIntervalReached(t *testing.T) {
	cfg := testMaintenanceConfig(t)
	cfg.IntervalLoops = 3
	p := NewPass(cfg, newFakeVectorStore(), nil, config.OntologyConfig{}, t.TempDir()+"/co_retrieval_log.jsonl")

	assert.False(t, p.Tick())
	assert.False(t, p.Tick())
	assert.True(t, p.Tick())
}

func TestOntologyUpkeepDrainsIngestionQueueAndCountsMerges(t *testing.T) {
	ctx := context.Background()
	vectors := newFakeVectorStore()
	ontCfg := config.DefaultOntologyConfig()
	dir := t.TempDir()
	ontCfg.RelationshipsPath = dir + "/relationships.jsonl"
	ontCfg.ResolutionAuditPath = dir + "/resolution_audit.jsonl"
	ontCfg.ReviewQueuePath = dir + "/review_queue.jsonl"
	ontCfg.IngestionQueuePath = dir + "/ingestion_queue.jsonl"

	ontologyStore, err := ontology.NewStore(ctx, ontCfg, vectors, nil)
	require.NoError(t, err)

	candidate := ontology.Candidate{
		EntityType: "person",
		Properties: map[string]interface{}{"name": "Sam Lee", "address": "1 Pine St"},
		Provenance: ontology.Provenance{SourceID: "doc-1", Confidence: 0.9, IngestedAt: time.Now().UTC()},
	}
	require.NoError(t, store.AppendJSONL(ontCfg.IngestionQueuePath, candidate))

	cfg := testMaintenanceConfig(t)
	p := NewPass(cfg, vectors, ontologyStore, ontCfg, dir+"/co_retrieval_log.jsonl")
	report := p.Run(ctx, 1)

	assert.Equal(t, 0, report.OntologyMerges)

	var remaining int
	_ = store.ReadJSONL(ontCfg.IngestionQueuePath, func(line []byte) error { remaining++; return nil })
	assert.Equal(t, 0, remaining)
}
