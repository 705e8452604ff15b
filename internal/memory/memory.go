// Package memory is the long-term memory subsystem: a sqlite-backed store of
// typed memories with importance and emotional weight, hybrid retrieval
// (vector similarity when an embedder is configured, keyword match as the
// fallback), and nightly consolidation that keeps working memory bounded.
package memory

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// SimilarityIndex answers nearest-neighbor queries over memory embeddings.
// The default backend is a brute-force cosine scan; building with the
// sqlite_vec tag (cgo required) swaps in a sqlite-vec virtual table.
type SimilarityIndex interface {
	Add(ctx context.Context, id string, vec []float32) error
	Remove(ctx context.Context, id string) error
	// Search returns up to k hits ordered by similarity, best first.
	Search(ctx context.Context, query []float32, k int) ([]IndexHit, error)
}

// IndexHit is one nearest-neighbor result. Similarity is in [-1,1] for the
// cosine backend and (0,1] for distance-based backends.
type IndexHit struct {
	ID         string
	Similarity float64
}

// Kind classifies a memory by what produced it.
type Kind string

const (
	KindConversation Kind = "conversation"
	KindFact         Kind = "fact"
	KindPreference   Kind = "preference"
	KindEmotion      Kind = "emotion"
	KindEvent        Kind = "event"
	KindReflection   Kind = "reflection"
)

// Memory is one stored memory. Importance and EmotionalIntensity both run
// 1..10; AccessCount grows on every retrieval and feeds into the effective
// importance used at consolidation time.
type Memory struct {
	ID                 string
	Kind               Kind
	Content            string
	Importance         int
	EmotionalIntensity int
	AccessCount        int
	LastAccessedAt     time.Time
	CreatedAt          time.Time
}

// EffectiveImportance is the score consolidation ranks by: base importance
// boosted by emotional weight and by how often the memory gets recalled.
func (m Memory) EffectiveImportance() float64 {
	return float64(m.Importance) + float64(m.EmotionalIntensity)*0.3 + float64(m.AccessCount)*0.1
}

// Scored is a memory with its retrieval relevance attached.
type Scored struct {
	Memory
	Relevance float64
}

// RetrievalPath reports which strategy produced a retrieval result.
type RetrievalPath string

const (
	PathVector  RetrievalPath = "vector"
	PathKeyword RetrievalPath = "keyword"
)

// newID mints a ULID. Lexicographic order follows creation order, which the
// store leans on for stable eviction ties.
func newID() string {
	return ulid.Make().String()
}
