package memory

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// ConsolidateOptions bound working memory. Zero values mean "no cap".
type ConsolidateOptions struct {
	WorkingCap int // total memories to keep
	DailyCap   int // memories from the last 24h to keep
	MinKeep    int // importance at or above this is never evicted
}

// ConsolidateResult reports what a consolidation pass did.
type ConsolidateResult struct {
	Before  int
	Evicted int
}

// Consolidate trims the memory store down to its caps, evicting the
// memories with the lowest effective importance first. Ties evict the older
// memory. Protected memories (importance >= MinKeep) survive even over cap.
func (s *Store) Consolidate(ctx context.Context, opts ConsolidateOptions) (ConsolidateResult, error) {
	now := time.Now().UTC()
	all, err := s.loadAll(ctx)
	if err != nil {
		return ConsolidateResult{}, err
	}
	res := ConsolidateResult{Before: len(all)}

	evict := make(map[string]bool)

	if opts.DailyCap > 0 {
		var today []Memory
		cutoff := now.Add(-24 * time.Hour)
		for _, m := range all {
			if m.CreatedAt.After(cutoff) {
				today = append(today, m)
			}
		}
		for _, id := range overCap(today, opts.DailyCap, opts.MinKeep) {
			evict[id] = true
		}
	}

	if opts.WorkingCap > 0 {
		var remaining []Memory
		for _, m := range all {
			if !evict[m.ID] {
				remaining = append(remaining, m)
			}
		}
		for _, id := range overCap(remaining, opts.WorkingCap, opts.MinKeep) {
			evict[id] = true
		}
	}

	if len(evict) > 0 {
		ids := make([]string, 0, len(evict))
		for id := range evict {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		if err := s.delete(ctx, ids); err != nil {
			return res, fmt.Errorf("evict: %w", err)
		}
		res.Evicted = len(ids)
	}

	s.logger.Info().Int("before", res.Before).Int("evicted", res.Evicted).Msg("consolidation done")
	return res, nil
}

// overCap picks which of ms to evict to get the set down to limit, lowest
// effective importance first, never touching protected memories.
func overCap(ms []Memory, limit, minKeep int) []string {
	var evictable []Memory
	protected := 0
	for _, m := range ms {
		if minKeep > 0 && m.Importance >= minKeep {
			protected++
			continue
		}
		evictable = append(evictable, m)
	}

	keep := limit - protected
	if keep < 0 {
		keep = 0
	}
	excess := len(evictable) - keep
	if excess <= 0 {
		return nil
	}

	sort.Slice(evictable, func(i, j int) bool {
		ei, ej := evictable[i].EffectiveImportance(), evictable[j].EffectiveImportance()
		if ei != ej {
			return ei < ej
		}
		return evictable[i].ID < evictable[j].ID // older ULID first
	})

	ids := make([]string, excess)
	for i := 0; i < excess; i++ {
		ids[i] = evictable[i].ID
	}
	return ids
}

func (s *Store) loadAll(ctx context.Context) ([]Memory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, content, importance, emotional_intensity, access_count, last_accessed_at, created_at
		FROM memories WHERE persona_id = ?`, s.personaID)
	if err != nil {
		return nil, fmt.Errorf("load memories: %w", err)
	}
	defer rows.Close()

	var out []Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
