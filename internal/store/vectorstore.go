// Package store provides the external vector store contract (spec §6:
// store/search/delete/iterate_all) and the filesystem JSON/JSONL
// persistence helpers used by every other subsystem to durably record
// its state under the workspace root.
package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/corescaffold/cogkernel/internal/config"
	"github.com/corescaffold/cogkernel/internal/logging"
)

// Record is a single vector store entry: arbitrary text content, its
// embedding, and free-form metadata (used for temporal decay scoring,
// tags, and ontology cross-references by internal/memory).
type Record struct {
	ID        string
	Content   string
	Embedding []float32
	Metadata  map[string]interface{}
	CreatedAt time.Time
}

// Match pairs a stored Record with a similarity score against a query
// vector (cosine similarity, higher is closer).
type Match struct {
	Record
	Similarity float64
}

// VectorStore is the minimal external contract spec §6 requires: store a
// record, search for near neighbors, delete by ID, and iterate every
// record (used by the Maintenance Pass, spec §4.7).
type VectorStore interface {
	Store(ctx context.Context, rec Record) error
	Search(ctx context.Context, query []float32, limit int) ([]Match, error)
	Delete(ctx context.Context, id string) error
	IterateAll(ctx context.Context, fn func(Record) error) error
	Close() error
}

// SQLiteVecStore is the reference VectorStore backend. It always opens
// the database through the mattn/go-sqlite3 driver ("sqlite3"), keeps
// records in a plain table, and ranks them with a brute-force cosine
// scan in Go. It does not use the vec0 virtual table (vec_compat.go) or
// the sqlite-vec extension (init_vec.go), and StoreConfig.Backend is
// only logged; it does not select another implementation.
type SQLiteVecStore struct {
	db  *sql.DB
	dim int
}

// OpenSQLiteVecStore opens (creating if necessary) the SQLite-backed
// vector store at memory/store.db under cfg.WorkspaceRoot, creating the
// memory/ directory first. MemoryConfig.DatabasePath is not consulted.
func OpenSQLiteVecStore(cfg config.StoreConfig, dim int) (*SQLiteVecStore, error) {
	dbPath := filepath.Join(cfg.WorkspaceRoot, "memory", "store.db")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create vector store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open vector store db: %w", err)
	}

	s := &SQLiteVecStore{db: db, dim: dim}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	logging.StoreDebug("vector store opened at %s (dim=%d, backend=%s)", dbPath, dim, cfg.Backend)
	return s, nil
}

func (s *SQLiteVecStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			embedding BLOB NOT NULL,
			metadata TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		);
	`)
	return err
}

// Store inserts or replaces a record.
func (s *SQLiteVecStore) Store(ctx context.Context, rec Record) error {
	timer := logging.StartTimer(logging.CategoryStore, "Store")
	defer timer.Stop()

	metaJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if rec.CreatedAt.IsZero() {
		return fmt.Errorf("record CreatedAt must be set by the caller")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (id, content, embedding, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET content=excluded.content, embedding=excluded.embedding, metadata=excluded.metadata`,
		rec.ID, rec.Content, encodeFloat32Slice(rec.Embedding), string(metaJSON), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store record %s: %w", rec.ID, err)
	}
	logging.StoreDebug("stored record %s (%d dims, %d bytes content)", rec.ID, len(rec.Embedding), len(rec.Content))
	return nil
}

// Search performs a brute-force cosine-similarity scan ranked descending.
// The reference implementation favors predictable, auditable ranking
// over approximate-nearest-neighbor speed; a workspace's memory store is
// expected to stay in the thousands of records, not millions (spec §4.5
// Non-goals: no large-scale ANN tuning).
func (s *SQLiteVecStore) Search(ctx context.Context, query []float32, limit int) ([]Match, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Search")
	defer timer.Stop()

	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, content, embedding, metadata, created_at FROM records`)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	var all []Match
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			continue
		}
		all = append(all, Match{Record: rec, Similarity: cosineSimilarity32(query, rec.Embedding)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortMatchesDesc(all)
	if len(all) > limit {
		all = all[:limit]
	}
	logging.StoreDebug("search returned %d/%d matches", len(all), limit)
	return all, nil
}

// Delete removes a record by ID. Deleting a nonexistent ID is a no-op,
// matching the idempotent-delete convention spec §6 implies for cleanup
// callers like the Maintenance Pass.
func (s *SQLiteVecStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	logging.StoreDebug("deleted record %s", id)
	return nil
}

// IterateAll streams every record to fn in no particular order, stopping
// early if fn returns an error.
func (s *SQLiteVecStore) IterateAll(ctx context.Context, fn func(Record) error) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, content, embedding, metadata, created_at FROM records`)
	if err != nil {
		return fmt.Errorf("iterate_all query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Close releases the underlying database handle.
func (s *SQLiteVecStore) Close() error {
	return s.db.Close()
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var rec Record
	var embBlob []byte
	var metaJSON string
	if err := rows.Scan(&rec.ID, &rec.Content, &embBlob, &metaJSON, &rec.CreatedAt); err != nil {
		return Record{}, err
	}
	rec.Embedding = decodeFloat32Slice(embBlob)
	if metaJSON != "" {
		_ = json.Unmarshal([]byte(metaJSON), &rec.Metadata)
	}
	return rec, nil
}

func encodeFloat32Slice(vec []float32) []byte {
	buf := &bytes.Buffer{}
	_ = binary.Write(buf, binary.LittleEndian, vec)
	return buf.Bytes()
}

func decodeFloat32Slice(blob []byte) []float32 {
	n := len(blob) / 4
	out := make([]float32, n)
	_ = binary.Read(bytes.NewReader(blob), binary.LittleEndian, &out)
	return out
}

// CosineSimilarity exposes the store's similarity metric to callers
// outside the package (internal/maintenance's deduplication scan in
// particular) so there is exactly one cosine-similarity implementation
// in the module.
func CosineSimilarity(a, b []float32) float64 { return cosineSimilarity32(a, b) }

// cosineSimilarity32 mirrors the teacher's float64 CosineSimilarity, kept
// in float32 to avoid a conversion pass over every stored embedding on
// each query.
func cosineSimilarity32(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func sortMatchesDesc(matches []Match) {
	sort.Slice(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
}
