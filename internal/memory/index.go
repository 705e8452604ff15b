//go:build !sqlite_vec || !cgo

package memory

import (
	"context"
	"database/sql"
	"sort"
	"sync"
)

// cosineIndex is the pure-Go backend: a brute-force scan over embeddings
// kept in memory and hydrated from the database on startup. Fine for the
// tens of thousands of memories a single persona accumulates; the
// sqlite_vec build tag swaps in an indexed backend for bigger stores.
type cosineIndex struct {
	mu   sync.RWMutex
	vecs map[string][]float32
}

func newSimilarityIndex(db *sql.DB, personaID string) (SimilarityIndex, error) {
	idx := &cosineIndex{vecs: make(map[string][]float32)}

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
		idx.vecs[id] = decodeVector(blob)
	}
	return idx, rows.Err()
}

func (x *cosineIndex) Add(_ context.Context, id string, vec []float32) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.vecs[id] = vec
	return nil
}

func (x *cosineIndex) Remove(_ context.Context, id string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.vecs, id)
	return nil
}

func (x *cosineIndex) Search(_ context.Context, query []float32, k int) ([]IndexHit, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	hits := make([]IndexHit, 0, len(x.vecs))
	for id, vec := range x.vecs {
		hits = append(hits, IndexHit{ID: id, Similarity: CosineSimilarity(query, vec)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}
