//go:build sqlite_vec && cgo

package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// vecIndex backs similarity search with a sqlite-vec vec0 virtual table in a
// dedicated in-memory database. The table is created lazily on the first
// vector since vec0 needs the dimension up front.
type vecIndex struct {
	mu    sync.Mutex
	db    *sql.DB
	dim   int
	ready bool
}

func newSimilarityIndex(db *sql.DB, personaID string) (SimilarityIndex, error) {
	vdb, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open vec db: %w", err)
	}
	// in-memory sqlite is per-connection
	vdb.SetMaxOpenConns(1)

	idx := &vecIndex{db: vdb}

	rows, err := db.Query(`SELECT id, embedding FROM memories WHERE persona_id = ? AND embedding IS NOT NULL`, personaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id   string
			blob []byte
		)
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, err
		}
		if err := idx.Add(context.Background(), id, decodeVector(blob)); err != nil {
			return nil, err
		}
	}
	return idx, rows.Err()
}

func (x *vecIndex) ensureTable(dim int) error {
	if x.ready {
		if dim != x.dim {
			return fmt.Errorf("embedding dimension %d, index built for %d", dim, x.dim)
		}
		return nil
	}
	_, err := x.db.Exec(fmt.Sprintf(
		`CREATE VIRTUAL TABLE mem_vec USING vec0(id TEXT PRIMARY KEY, embedding float[%d])`, dim))
	if err != nil {
		return fmt.Errorf("create vec table: %w", err)
	}
	x.dim = dim
	x.ready = true
	return nil
}

func (x *vecIndex) Add(ctx context.Context, id string, vec []float32) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.ensureTable(len(vec)); err != nil {
		return err
	}
	blob, err := sqlite_vec.SerializeFloat32(vec)
	if err != nil {
		return err
	}
	_, err = x.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO mem_vec (id, embedding) VALUES (?, ?)`, id, blob)
	return err
}

func (x *vecIndex) Remove(ctx context.Context, id string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if !x.ready {
		return nil
	}
	_, err := x.db.ExecContext(ctx, `DELETE FROM mem_vec WHERE id = ?`, id)
	return err
}

func (x *vecIndex) Search(ctx context.Context, query []float32, k int) ([]IndexHit, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if !x.ready {
		return nil, nil
	}
	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, err
	}
	rows, err := x.db.QueryContext(ctx, `
		SELECT id, distance FROM mem_vec
		WHERE embedding MATCH ? AND k = ?
		ORDER BY distance`, blob, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []IndexHit
	for rows.Next() {
		var (
			id   string
			dist float64
		)
		if err := rows.Scan(&id, &dist); err != nil {
			return nil, err
		}
		hits = append(hits, IndexHit{ID: id, Similarity: 1 / (1 + dist)})
	}
	return hits, rows.Err()
}
