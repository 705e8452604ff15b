package memory

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "mem.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestStore(t *testing.T, embedder Embedder) *Store {
	t.Helper()
	s, err := NewStore(openTestDB(t), "lumi", embedder)
	require.NoError(t, err)
	return s
}

// stubEmbedder maps known words onto fixed axes so similarity is predictable.
type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, 4)
	for i, word := range []string{"coffee", "music", "rain", "work"} {
		if containsWord(text, word) {
			vec[i] = 1
		}
	}
	return vec, nil
}

func containsWord(text, word string) bool {
	for _, w := range keywords(text) {
		if w == word {
			return true
		}
	}
	return false
}

func TestRememberAndGet(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	id, err := s.Remember(ctx, Memory{
		Kind:               KindFact,
		Content:            "operator prefers coffee without sugar",
		Importance:         7,
		EmotionalIntensity: 2,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	m, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, KindFact, m.Kind)
	assert.Equal(t, 7, m.Importance)
	assert.Equal(t, 0, m.AccessCount)
	assert.False(t, m.CreatedAt.IsZero())
}

func TestRememberRejectsEmptyAndClampsImportance(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	_, err := s.Remember(ctx, Memory{Content: "   "})
	assert.Error(t, err)

	id, err := s.Remember(ctx, Memory{Content: "something", Importance: 99})
	require.NoError(t, err)
	m, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 10, m.Importance)
	assert.Equal(t, 1, m.EmotionalIntensity) // missing intensity gets the floor
}

func TestKeywordRetrievalAndAccessBookkeeping(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	idCoffee, err := s.Remember(ctx, Memory{Content: "talked about coffee brewing", Importance: 5})
	require.NoError(t, err)
	_, err = s.Remember(ctx, Memory{Content: "listened to music all evening", Importance: 5})
	require.NoError(t, err)

	got, path, err := s.Retrieve(ctx, "coffee", 5, 0)
	require.NoError(t, err)
	assert.Equal(t, PathKeyword, path)
	require.Len(t, got, 1)
	assert.Equal(t, idCoffee, got[0].ID)

	// access bookkeeping is monotonic
	m, err := s.Get(ctx, idCoffee)
	require.NoError(t, err)
	assert.Equal(t, 1, m.AccessCount)
	assert.False(t, m.LastAccessedAt.IsZero())

	_, _, err = s.Retrieve(ctx, "coffee", 5, 0)
	require.NoError(t, err)
	m, err = s.Get(ctx, idCoffee)
	require.NoError(t, err)
	assert.Equal(t, 2, m.AccessCount)
}

func TestRetrieveHonorsMinImportance(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	_, err := s.Remember(ctx, Memory{Content: "coffee was fine today", Importance: 2})
	require.NoError(t, err)
	idBig, err := s.Remember(ctx, Memory{Content: "coffee with her mother, big talk", Importance: 7})
	require.NoError(t, err)

	got, _, err := s.Retrieve(ctx, "coffee", 5, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, idBig, got[0].ID)
}

func TestRetrieveNoMatchIsEmptyNotError(t *testing.T) {
	s := newTestStore(t, nil)
	got, path, err := s.Retrieve(context.Background(), "völkerball", 5, 0)
	require.NoError(t, err)
	assert.Equal(t, PathKeyword, path)
	assert.Empty(t, got)
}

func TestVectorRetrievalPrefersSimilar(t *testing.T) {
	s := newTestStore(t, stubEmbedder{})
	ctx := context.Background()

	idRain, err := s.Remember(ctx, Memory{Content: "walked in the rain yesterday", Importance: 5})
	require.NoError(t, err)
	_, err = s.Remember(ctx, Memory{Content: "long day at work", Importance: 5})
	require.NoError(t, err)

	got, path, err := s.Retrieve(ctx, "does she like rain", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, PathVector, path)
	require.Len(t, got, 1)
	assert.Equal(t, idRain, got[0].ID)
	assert.Greater(t, got[0].Relevance, 0.5)
}

func TestVectorIndexSurvivesReopen(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	s, err := NewStore(db, "lumi", stubEmbedder{})
	require.NoError(t, err)
	idMusic, err := s.Remember(ctx, Memory{Content: "she hums music while cooking", Importance: 6})
	require.NoError(t, err)

	// a fresh store over the same db hydrates the index from the blobs
	s2, err := NewStore(db, "lumi", stubEmbedder{})
	require.NoError(t, err)
	got, path, err := s2.Retrieve(ctx, "music", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, PathVector, path)
	require.Len(t, got, 1)
	assert.Equal(t, idMusic, got[0].ID)
}

func TestEffectiveImportance(t *testing.T) {
	m := Memory{Importance: 5, EmotionalIntensity: 10, AccessCount: 10}
	assert.InDelta(t, 5+3.0+1.0, m.EffectiveImportance(), 1e-9)
}

func TestConsolidateEvictsLowestFirst(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		// importance cycles 1..5 so eviction order is observable
		_, err := s.Remember(ctx, Memory{
			Content:    fmt.Sprintf("memory number %d", i),
			Importance: i%5 + 1,
			CreatedAt:  time.Now().UTC().Add(-48 * time.Hour), // outside the daily window
		})
		require.NoError(t, err)
	}

	res, err := s.Consolidate(ctx, ConsolidateOptions{WorkingCap: 50})
	require.NoError(t, err)
	assert.Equal(t, 60, res.Before)
	assert.Equal(t, 10, res.Evicted)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50, n)

	// everything evicted had the lowest importance band
	remaining, err := s.loadAll(ctx)
	require.NoError(t, err)
	ones := 0
	for _, m := range remaining {
		if m.Importance == 1 {
			ones++
		}
	}
	assert.Equal(t, 2, ones) // 12 stored at importance 1, 10 evicted
}

func TestConsolidateProtectsHighImportance(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := s.Remember(ctx, Memory{Content: fmt.Sprintf("critical %d", i), Importance: 9})
		require.NoError(t, err)
	}
	res, err := s.Consolidate(ctx, ConsolidateOptions{WorkingCap: 5, MinKeep: 8})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Evicted)
}

func TestConsolidateDailyCap(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		_, err := s.Remember(ctx, Memory{Content: fmt.Sprintf("today %d", i), Importance: i%5 + 1})
		require.NoError(t, err)
	}
	res, err := s.Consolidate(ctx, ConsolidateOptions{DailyCap: 20})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Evicted)
}

func TestKeywordsExtraction(t *testing.T) {
	got := keywords("Do you like the rain, or the RAIN?!")
	assert.Equal(t, []string{"you", "like", "the", "rain"}, got)

	assert.Empty(t, keywords("a b c"))
}
