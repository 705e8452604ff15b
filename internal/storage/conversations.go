package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"lumi/internal/persona"
)

// AppendConversation records one exchange and returns its id.
func (s *Store) AppendConversation(ctx context.Context, personaID string, rec persona.ConversationRecord) (int64, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Kind == "" {
		rec.Kind = persona.KindResponse
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (persona_id, kind, user_message, response, mood_before, mood_after, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		personaID, string(rec.Kind), rec.UserMessage, rec.Response,
		string(rec.MoodBefore), string(rec.MoodAfter), fmtTime(rec.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("append conversation: %w", err)
	}
	return res.LastInsertId()
}

// RecentConversations returns the newest exchanges in chronological order
// (oldest of the window first), ready to drop into a prompt.
func (s *Store) RecentConversations(ctx context.Context, personaID string, limit int) ([]persona.ConversationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, user_message, response, mood_before, mood_after, created_at
		FROM conversations WHERE persona_id = ?
		ORDER BY id DESC LIMIT ?`, personaID, limit)
	if err != nil {
		return nil, fmt.Errorf("load conversations: %w", err)
	}
	defer rows.Close()

	var out []persona.ConversationRecord
	for rows.Next() {
		var (
			rec     persona.ConversationRecord
			created string
		)
		if err := rows.Scan(&rec.ID, &rec.Kind, &rec.UserMessage, &rec.Response, &rec.MoodBefore, &rec.MoodAfter, &created); err != nil {
			return nil, err
		}
		rec.CreatedAt = parseTime(sql.NullString{String: created, Valid: true})
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// reverse into chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// LastInitiativeAt returns the time of the most recent self-initiated
// message, or a zero time if there has never been one. Deriving this from
// the log keeps the cooldown correct across restarts.
func (s *Store) LastInitiativeAt(ctx context.Context, personaID string) (time.Time, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT created_at FROM conversations
		WHERE persona_id = ? AND kind = ?
		ORDER BY id DESC LIMIT 1`, personaID, string(persona.KindInitiative))

	var created string
	err := row.Scan(&created)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("last initiative: %w", err)
	}
	return parseTime(sql.NullString{String: created, Valid: true}), nil
}

// InitiativeCountSince counts self-initiated messages at or after the given
// instant. Used for the daily cap, which must survive restarts.
func (s *Store) InitiativeCountSince(ctx context.Context, personaID string, since time.Time) (int, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM conversations
		WHERE persona_id = ? AND kind = ? AND created_at >= ?`,
		personaID, string(persona.KindInitiative), fmtTime(since))

	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count initiatives: %w", err)
	}
	return n, nil
}
