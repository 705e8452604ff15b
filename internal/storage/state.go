package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"lumi/internal/persona"
)

// CharacterState loads the live state for a persona, creating the default
// row on first access so callers never see a missing persona.
func (s *Store) CharacterState(ctx context.Context, personaID string) (persona.CharacterState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT mood, energy_level, current_activity, location, last_message_at, quiet_until, updated_at
		FROM character_state WHERE persona_id = ?`, personaID)

	var (
		st      persona.CharacterState
		lastMsg sql.NullString
		quiet   sql.NullString
		updated string
	)
	err := row.Scan(&st.Mood, &st.EnergyLevel, &st.CurrentActivity, &st.Location, &lastMsg, &quiet, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		st = persona.DefaultCharacterState(time.Now().UTC())
		if err := s.SaveCharacterState(ctx, personaID, st); err != nil {
			return st, err
		}
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("load character state: %w", err)
	}
	st.LastMessageAt = parseTime(lastMsg)
	st.QuietUntil = parseTime(quiet)
	st.UpdatedAt = parseTime(sql.NullString{String: updated, Valid: true})
	return st, nil
}

// SaveCharacterState upserts the single live row for a persona. Callers
// doing a read-modify-write hold LockState around the whole sequence.
func (s *Store) SaveCharacterState(ctx context.Context, personaID string, st persona.CharacterState) error {
	var lastMsg any
	if !st.LastMessageAt.IsZero() {
		lastMsg = fmtTime(st.LastMessageAt)
	}
	var quiet any
	if !st.QuietUntil.IsZero() {
		quiet = fmtTime(st.QuietUntil)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO character_state (persona_id, mood, energy_level, current_activity, location, last_message_at, quiet_until, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(persona_id) DO UPDATE SET
			mood = excluded.mood,
			energy_level = excluded.energy_level,
			current_activity = excluded.current_activity,
			location = excluded.location,
			last_message_at = excluded.last_message_at,
			quiet_until = excluded.quiet_until,
			updated_at = excluded.updated_at`,
		personaID, string(st.Mood), persona.ClampEnergy(st.EnergyLevel), string(st.CurrentActivity),
		st.Location, lastMsg, quiet, fmtTime(st.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save character state: %w", err)
	}
	return nil
}

// Relationship loads the relationship row, creating the default (intimacy 10,
// a fresh acquaintance) if none exists yet.
func (s *Store) Relationship(ctx context.Context, personaID string) (persona.RelationshipState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT intimacy_level, interaction_count, last_interaction_at
		FROM relationship_state WHERE persona_id = ?`, personaID)

	var (
		rs   persona.RelationshipState
		last sql.NullString
	)
	err := row.Scan(&rs.IntimacyLevel, &rs.InteractionCount, &last)
	if errors.Is(err, sql.ErrNoRows) {
		rs = persona.RelationshipState{IntimacyLevel: 10}
		if err := s.SaveRelationship(ctx, personaID, rs); err != nil {
			return rs, err
		}
		return rs, nil
	}
	if err != nil {
		return rs, fmt.Errorf("load relationship: %w", err)
	}
	rs.LastInteractionAt = parseTime(last)
	return rs, nil
}

// SaveRelationship upserts the relationship row.
func (s *Store) SaveRelationship(ctx context.Context, personaID string, rs persona.RelationshipState) error {
	var last any
	if !rs.LastInteractionAt.IsZero() {
		last = fmtTime(rs.LastInteractionAt)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO relationship_state (persona_id, intimacy_level, interaction_count, last_interaction_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(persona_id) DO UPDATE SET
			intimacy_level = excluded.intimacy_level,
			interaction_count = excluded.interaction_count,
			last_interaction_at = excluded.last_interaction_at`,
		personaID, persona.ClampIntimacy(rs.IntimacyLevel), rs.InteractionCount, last)
	if err != nil {
		return fmt.Errorf("save relationship: %w", err)
	}
	return nil
}

// AppendStateEvent records one state transition for the audit trail.
func (s *Store) AppendStateEvent(ctx context.Context, personaID string, ev persona.StateEvent) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	if ev.Delta == "" {
		ev.Delta = "{}"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO state_events (persona_id, event_type, description, delta, trigger, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		personaID, ev.EventType, ev.Description, ev.Delta, ev.Trigger, fmtTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("append state event: %w", err)
	}
	return nil
}

// RecentEvents returns the newest state events, newest first.
func (s *Store) RecentEvents(ctx context.Context, personaID string, limit int) ([]persona.StateEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_type, description, delta, trigger, created_at
		FROM state_events WHERE persona_id = ?
		ORDER BY id DESC LIMIT ?`, personaID, limit)
	if err != nil {
		return nil, fmt.Errorf("load state events: %w", err)
	}
	defer rows.Close()

	var out []persona.StateEvent
	for rows.Next() {
		var (
			ev      persona.StateEvent
			created string
		)
		if err := rows.Scan(&ev.ID, &ev.EventType, &ev.Description, &ev.Delta, &ev.Trigger, &created); err != nil {
			return nil, err
		}
		ev.CreatedAt = parseTime(sql.NullString{String: created, Valid: true})
		out = append(out, ev)
	}
	return out, rows.Err()
}
