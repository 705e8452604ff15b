package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
)

// Retrieve finds the memories most relevant to the query text. With an
// embedder configured it searches the vector index and blends similarity
// with importance and recency; without one, or when embedding the query
// fails, it falls back to keyword matching. minImportance filters out
// records below it (0 = no filter). The returned path reports which
// strategy ran; an empty result is a valid outcome, not an error. Every
// returned memory gets its access bookkeeping bumped.
func (s *Store) Retrieve(ctx context.Context, query string, limit, minImportance int) ([]Scored, RetrievalPath, error) {
	if limit <= 0 {
		limit = 5
	}
	now := time.Now().UTC()

	if s.embedder != nil && s.index != nil {
		scored, err := s.retrieveVector(ctx, query, limit, minImportance, now)
		if err != nil {
			s.logger.Warn().Err(err).Msg("vector retrieval failed, falling back to keywords")
		} else {
			s.markAccessed(ctx, scored, now)
			return scored, PathVector, nil
		}
	}

	scored, err := s.retrieveKeyword(ctx, query, limit, minImportance, now)
	if err != nil {
		return nil, PathKeyword, err
	}
	s.markAccessed(ctx, scored, now)
	return scored, PathKeyword, nil
}

func (s *Store) retrieveVector(ctx context.Context, query string, limit, minImportance int, now time.Time) ([]Scored, error) {
	qvec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	// over-fetch so the blend can reorder
	hits, err := s.index.Search(ctx, qvec, limit*3)
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}

	var scored []Scored
	for _, h := range hits {
		m, err := s.Get(ctx, h.ID)
		if err != nil {
			continue // index may lag deletions
		}
		if m.Importance < minImportance {
			continue
		}
		rel := h.Similarity*0.7 + float64(m.Importance)/10*0.2 + recencyFactor(m.CreatedAt, now)*0.1
		scored = append(scored, Scored{Memory: m, Relevance: rel})
	}
	sortScored(scored)
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func (s *Store) retrieveKeyword(ctx context.Context, query string, limit, minImportance int, now time.Time) ([]Scored, error) {
	words := keywords(query)
	if len(words) == 0 {
		return nil, nil
	}

	var (
		clauses []string
		args    []any
	)
	args = append(args, s.personaID, minImportance)
	for _, w := range words {
		clauses = append(clauses, "content LIKE ?")
		args = append(args, "%"+w+"%")
	}
	args = append(args, limit*3)

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, kind, content, importance, emotional_intensity, access_count, last_accessed_at, created_at
		FROM memories
		WHERE persona_id = ? AND importance >= ? AND (%s)
		ORDER BY importance DESC, created_at DESC
		LIMIT ?`, strings.Join(clauses, " OR ")), args...)
	if err != nil {
		return nil, fmt.Errorf("keyword query: %w", err)
	}
	defer rows.Close()

	var scored []Scored
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		lc := strings.ToLower(m.Content)
		matched := 0
		for _, w := range words {
			if strings.Contains(lc, w) {
				matched++
			}
		}
		rel := float64(matched)/float64(len(words))*0.6 +
			float64(m.Importance)/10*0.25 +
			recencyFactor(m.CreatedAt, now)*0.15
		scored = append(scored, Scored{Memory: m, Relevance: rel})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortScored(scored)
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func (s *Store) markAccessed(ctx context.Context, scored []Scored, now time.Time) {
	if len(scored) == 0 {
		return
	}
	ids := make([]string, len(scored))
	for i, sc := range scored {
		ids[i] = sc.ID
	}
	s.touch(ctx, ids, now)
}

// recencyFactor decays from 1 toward 0 over about a month.
func recencyFactor(created, now time.Time) float64 {
	days := now.Sub(created).Hours() / 24
	if days < 0 {
		days = 0
	}
	return 1 / (1 + days/7)
}

// sortScored orders by relevance, breaking ties toward higher importance
// and then toward the newer record (ULIDs sort by creation time).
func sortScored(s []Scored) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Relevance != s[j].Relevance {
			return s[i].Relevance > s[j].Relevance
		}
		if s[i].Importance != s[j].Importance {
			return s[i].Importance > s[j].Importance
		}
		return s[i].ID > s[j].ID
	})
}

// keywords extracts lowercase search terms of three or more runes.
func keywords(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	var out []string
	seen := make(map[string]bool)
	for _, f := range fields {
		if len([]rune(f)) < 3 || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
