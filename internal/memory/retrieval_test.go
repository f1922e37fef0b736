package memory

import (
	"context"
	"crypto/sha1"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corescaffold/cogkernel/internal/config"
	"github.com/corescaffold/cogkernel/internal/store"
)

// fakeStore is a minimal in-memory store.VectorStore for testing
// retrieval without a real SQLite backend.
type fakeStore struct {
	records map[string]store.Record
}

func newFakeStore() *fakeStore { return &fakeStore{records: make(map[string]store.Record)} }

func (f *fakeStore) Store(_ context.Context, rec store.Record) error {
	f.records[rec.ID] = rec
	return nil
}

func (f *fakeStore) Search(_ context.Context, query []float32, limit int) ([]store.Match, error) {
	var out []store.Match
	for _, rec := range f.records {
		out = append(out, store.Match{Record: rec, Similarity: fakeSimilarity(query, rec.Embedding)})
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	delete(f.records, id)
	return nil
}

func (f *fakeStore) IterateAll(_ context.Context, fn func(store.Record) error) error {
	for _, rec := range f.records {
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeStore) Close() error { return nil }

func fakeSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if a[0] == b[0] {
		return 1.0
	}
	return 0.1
}

// fakeEmbedder deterministically maps a query string to a 1-dim vector
// so fakeSimilarity can distinguish "matching" from "unrelated" text.
type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	sum := sha1.Sum([]byte(text))
	return []float32{float32(sum[0])}, nil
}

func (fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := (fakeEmbedder{}).Embed(context.Background(), t)
		out[i] = v
	}
	return out, nil
}

func (fakeEmbedder) Dimensions() int { return 1 }
func (fakeEmbedder) Name() string    { return "fake" }

func newTestEngine(t *testing.T, fs *fakeStore) *Engine {
	t.Helper()
	cfg := config.DefaultMemoryConfig()
	cfg.CoRetrievalLogPath = t.TempDir() + "/co_retrieval_log.json"
	cfg.MaxInjected = 2
	return NewEngine(cfg, fs, fakeEmbedder{}, nil, nil)
}

func TestExpandQueryFiltersStopwordsAndShortTokens(t *testing.T) {
	v := ExpandQuery("refactor the auth module in agent/auth.py please", "refactor", nil)
	assert.Equal(t, "refactor the auth module in agent/auth.py please", v.Original)
	assert.NotContains(t, v.Keyword, "the")
	assert.Contains(t, v.Keyword, "refactor")
	assert.Equal(t, "refactor: "+v.Keyword, v.Domain)
}

func TestExpandQueryOmitsDomainVariantWhenDomainEmpty(t *testing.T) {
	v := ExpandQuery("hello there", "", nil)
	assert.Empty(t, v.Domain)
}

func TestRecencyScoreExemptions(t *testing.T) {
	now := time.Now().UTC()
	old := now.Add(-1000 * time.Hour)
	assert.Equal(t, 1.0, recencyScore(Lineage{CreatedAt: old, Utility: UtilityLoadBearing}, now, 168, 0.1))
	assert.Equal(t, 1.0, recencyScore(Lineage{CreatedAt: old, Source: SourceUserAsserted}, now, 168, 0.1))
	assert.Equal(t, 1.0, recencyScore(Lineage{CreatedAt: old, Validity: ValidityConfirmed}, now, 168, 0.1))
	assert.Less(t, recencyScore(Lineage{CreatedAt: old}, now, 168, 0.1), 1.0)
}

func TestRecencyScoreFloorsAtMinimum(t *testing.T) {
	now := time.Now().UTC()
	ancient := now.Add(-100000 * time.Hour)
	assert.Equal(t, 0.1, recencyScore(Lineage{CreatedAt: ancient}, now, 168, 0.1))
}

func TestRetrieveSkipsWhenDisabled(t *testing.T) {
	fs := newFakeStore()
	e := newTestEngine(t, fs)
	e.cfg.Enabled = false

	res := e.Retrieve(context.Background(), 1, "refactor", "refactor auth")
	assert.True(t, res.IsPassthrough())
}

func TestRetrieveRanksMatchingMemoryFirst(t *testing.T) {
	fs := newFakeStore()
	now := time.Now().UTC()
	vec, _ := (fakeEmbedder{}).Embed(context.Background(), "auth module")
	require.NoError(t, fs.Store(context.Background(), store.Record{
		ID: "mem-match", Content: "auth module notes", Embedding: vec, CreatedAt: now,
	}))
	require.NoError(t, fs.Store(context.Background(), store.Record{
		ID: "mem-unrelated", Content: "unrelated", Embedding: []float32{9999}, CreatedAt: now,
	}))

	e := newTestEngine(t, fs)
	res := e.Retrieve(context.Background(), 1, "refactor", "auth module")
	require.True(t, res.IsOk())
	result, _ := res.Effect()
	require.NotEmpty(t, result.Memories)
	assert.Equal(t, "mem-match", result.Memories[0].ID)
}

func TestRetrieveTracksAccessAndLogsCoRetrieval(t *testing.T) {
	fs := newFakeStore()
	now := time.Now().UTC()
	vec, _ := (fakeEmbedder{}).Embed(context.Background(), "auth module")
	require.NoError(t, fs.Store(context.Background(), store.Record{
		ID: "mem-match", Content: "auth module notes", Embedding: vec, CreatedAt: now,
	}))

	e := newTestEngine(t, fs)
	res := e.Retrieve(context.Background(), 7, "refactor", "auth module")
	require.True(t, res.IsOk())

	stored := fs.records["mem-match"]
	lineage := lineageFromMetadata(stored.Metadata, stored.CreatedAt)
	assert.Equal(t, 1, lineage.AccessCount)
	assert.False(t, lineage.LastAccessed.IsZero())

	var lines int
	_ = store.ReadJSONL(e.cfg.CoRetrievalLogPath, func(line []byte) error {
		lines++
		return nil
	})
	assert.Equal(t, 1, lines)
}
