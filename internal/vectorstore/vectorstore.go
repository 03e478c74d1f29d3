// Package vectorstore keeps chunk embeddings per collection in SQLite and
// answers nearest-neighbour queries by brute-force cosine similarity.
package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hntbot/biddocs/internal/doctree"
	"github.com/hntbot/biddocs/internal/llm"
	"github.com/hntbot/biddocs/internal/sqlitedb"
)

const schema = `
CREATE TABLE IF NOT EXISTS collections (
	collection_id TEXT PRIMARY KEY,
	filename      TEXT NOT NULL DEFAULT '',
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS chunks (
	chunk_id      TEXT PRIMARY KEY,
	collection_id TEXT NOT NULL REFERENCES collections(collection_id) ON DELETE CASCADE,
	seq           INTEGER NOT NULL,
	source        TEXT NOT NULL,
	page          INTEGER NOT NULL DEFAULT 0,
	breadcrumb    TEXT NOT NULL DEFAULT '',
	text          TEXT NOT NULL,
	embedding     BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_collection ON chunks(collection_id);
`

// ErrCollectionNotFound is returned for lookups on an unknown collection.
var ErrCollectionNotFound = errors.New("collection not found")

// Hit is one retrieved chunk.
type Hit struct {
	ChunkID string  `json:"chunk_id"`
	Text    string  `json:"text"`
	Source  string  `json:"source"`
	Page    int     `json:"page,omitempty"`
	Section string  `json:"section,omitempty"`
	Score   float64 `json:"score"`
}

// Collection is the registry entry for an uploaded document set.
type Collection struct {
	ID        string    `json:"collection_id"`
	Filename  string    `json:"filename"`
	Chunks    int       `json:"chunks"`
	CreatedAt time.Time `json:"created_at"`
}

type Store struct {
	db       *sql.DB
	embedder llm.Embedder
}

// New migrates the schema and returns a store that embeds queries with
// embedder.
func New(ctx context.Context, db *sql.DB, embedder llm.Embedder) (*Store, error) {
	if err := sqlitedb.Migrate(ctx, db, schema); err != nil {
		return nil, err
	}
	return &Store{db: db, embedder: embedder}, nil
}

// NewCollectionID returns a fresh collection identifier.
func NewCollectionID() string {
	return uuid.NewString()
}

// Register records filename as the latest upload of collectionID, creating
// the collection if needed.
func (s *Store) Register(ctx context.Context, collectionID, filename string) error {
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO collections (collection_id, filename, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(collection_id) DO UPDATE SET filename = excluded.filename, updated_at = excluded.updated_at`,
		collectionID, filename, now, now)
	if err != nil {
		return fmt.Errorf("register collection: %w", err)
	}
	return nil
}

// Get returns the registry entry for id.
func (s *Store) Get(ctx context.Context, id string) (Collection, error) {
	var (
		c       Collection
		created int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT c.collection_id, c.filename, c.created_at, COUNT(k.chunk_id)
		FROM collections c LEFT JOIN chunks k ON k.collection_id = c.collection_id
		WHERE c.collection_id = ?
		GROUP BY c.collection_id`, id).Scan(&c.ID, &c.Filename, &created, &c.Chunks)
	if errors.Is(err, sql.ErrNoRows) {
		return Collection{}, ErrCollectionNotFound
	}
	if err != nil {
		return Collection{}, fmt.Errorf("get collection: %w", err)
	}
	c.CreatedAt = time.Unix(created, 0).UTC()
	return c, nil
}

// Insert stores chunks with their precomputed vectors in one transaction.
func (s *Store) Insert(ctx context.Context, collectionID string, chunks []doctree.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("insert: %d chunks but %d vectors", len(chunks), len(vectors))
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (chunk_id, collection_id, seq, source, page, breadcrumb, text, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		if _, err := stmt.ExecContext(ctx,
			uuid.NewString(), collectionID, c.Index, c.Source, c.Page,
			strings.Join(c.Breadcrumb, " > "), c.Text, encodeVector(vectors[i]),
		); err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.Index, err)
		}
	}
	return tx.Commit()
}

// Search embeds query and returns the k most similar chunks of the
// collection, best first.
func (s *Store) Search(ctx context.Context, collectionID, query string, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vecs))
	}
	return s.SearchVector(ctx, collectionID, vecs[0], k)
}

// SearchVector is Search with a precomputed query vector.
func (s *Store) SearchVector(ctx context.Context, collectionID string, query []float32, k int) ([]Hit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, text, source, page, breadcrumb, embedding
		FROM chunks WHERE collection_id = ?`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	qNorm := norm(query)
	var hits []Hit
	for rows.Next() {
		var (
			h    Hit
			blob []byte
		)
		if err := rows.Scan(&h.ChunkID, &h.Text, &h.Source, &h.Page, &h.Section, &blob); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", h.ChunkID, err)
		}
		h.Score = cosine(query, qNorm, vec)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// DeleteCollection removes the collection and all its chunks. Deleting an
// unknown collection is not an error.
func (s *Store) DeleteCollection(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM collections WHERE collection_id = ?`, id); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	return nil
}

// encodeVector stores float32s little-endian, 4 bytes each.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

// cosine returns 0 for mismatched dimensions or zero vectors.
func cosine(q []float32, qNorm float64, v []float32) float64 {
	if len(q) != len(v) || qNorm == 0 {
		return 0
	}
	var dot float64
	for i := range q {
		dot += float64(q[i]) * float64(v[i])
	}
	vNorm := norm(v)
	if vNorm == 0 {
		return 0
	}
	return dot / (qNorm * vNorm)
}
