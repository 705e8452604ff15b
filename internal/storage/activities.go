package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"lumi/internal/persona"
)

// AddActivity schedules one activity and returns its id.
func (s *Store) AddActivity(ctx context.Context, personaID string, a persona.PlannedActivity) (int64, error) {
	if a.Status == "" {
		a.Status = persona.ActivityPlanned
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO activities (persona_id, activity_type, description, start_time, end_time, status, mood_effect, energy_cost, importance, flexibility, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		personaID, string(a.Type), a.Description, fmtTime(a.StartTime), fmtTime(a.EndTime),
		string(a.Status), a.MoodEffect, a.EnergyCost,
		persona.ClampImportance(a.Importance), persona.ClampImportance(a.Flexibility),
		fmtTime(time.Now().UTC()))
	if err != nil {
		return 0, fmt.Errorf("add activity: %w", err)
	}
	return res.LastInsertId()
}

// SetActivityStatus moves an activity through its lifecycle.
func (s *Store) SetActivityStatus(ctx context.Context, id int64, status persona.ActivityStatus) error {
	_, err := s.db.ExecContext(ctx, `UPDATE activities SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("set activity status: %w", err)
	}
	return nil
}

// DueToStart returns planned activities whose start time has passed, oldest
// first, so the cycle can flip them to active in order.
func (s *Store) DueToStart(ctx context.Context, personaID string, now time.Time) ([]persona.PlannedActivity, error) {
	return s.queryActivities(ctx, `
		SELECT id, activity_type, description, start_time, end_time, status, mood_effect, energy_cost, importance, flexibility
		FROM activities
		WHERE persona_id = ? AND status = ? AND start_time <= ?
		ORDER BY start_time ASC`,
		personaID, string(persona.ActivityPlanned), fmtTime(now))
}

// ActiveActivities returns activities currently marked active, oldest first.
func (s *Store) ActiveActivities(ctx context.Context, personaID string) ([]persona.PlannedActivity, error) {
	return s.queryActivities(ctx, `
		SELECT id, activity_type, description, start_time, end_time, status, mood_effect, energy_cost, importance, flexibility
		FROM activities
		WHERE persona_id = ? AND status = ?
		ORDER BY start_time ASC`,
		personaID, string(persona.ActivityActive))
}

// NextPlanned returns the next upcoming activity after now, or nil.
func (s *Store) NextPlanned(ctx context.Context, personaID string, now time.Time) (*persona.PlannedActivity, error) {
	list, err := s.queryActivities(ctx, `
		SELECT id, activity_type, description, start_time, end_time, status, mood_effect, energy_cost, importance, flexibility
		FROM activities
		WHERE persona_id = ? AND status = ? AND start_time > ?
		ORDER BY start_time ASC LIMIT 1`,
		personaID, string(persona.ActivityPlanned), fmtTime(now))
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

// LastCompletedSince returns the most recently completed activity whose end
// time falls at or after the given instant, or nil.
func (s *Store) LastCompletedSince(ctx context.Context, personaID string, since time.Time) (*persona.PlannedActivity, error) {
	list, err := s.queryActivities(ctx, `
		SELECT id, activity_type, description, start_time, end_time, status, mood_effect, energy_cost, importance, flexibility
		FROM activities
		WHERE persona_id = ? AND status = ? AND end_time >= ?
		ORDER BY end_time DESC LIMIT 1`,
		personaID, string(persona.ActivityCompleted), fmtTime(since))
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

// HasPlanOn reports whether any activity was scheduled to start on the given
// local day. The cycle uses it to plan each day exactly once.
func (s *Store) HasPlanOn(ctx context.Context, personaID string, day time.Time) (bool, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM activities
		WHERE persona_id = ? AND start_time >= ? AND start_time < ?`,
		personaID, fmtTime(start), fmtTime(end))

	var n int
	if err := row.Scan(&n); err != nil {
		return false, fmt.Errorf("check day plan: %w", err)
	}
	return n > 0, nil
}

func (s *Store) queryActivities(ctx context.Context, query string, args ...any) ([]persona.PlannedActivity, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load activities: %w", err)
	}
	defer rows.Close()

	var out []persona.PlannedActivity
	for rows.Next() {
		var (
			a          persona.PlannedActivity
			start, end string
		)
		if err := rows.Scan(&a.ID, &a.Type, &a.Description, &start, &end, &a.Status, &a.MoodEffect, &a.EnergyCost, &a.Importance, &a.Flexibility); err != nil {
			return nil, err
		}
		a.StartTime = parseTime(sql.NullString{String: start, Valid: true})
		a.EndTime = parseTime(sql.NullString{String: end, Valid: true})
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
