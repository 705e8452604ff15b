package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumi/internal/persona"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCharacterStateDefaultOnFirstAccess(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	st, err := s.CharacterState(ctx, "lumi")
	require.NoError(t, err)
	assert.Equal(t, persona.MoodCalm, st.Mood)
	assert.Equal(t, 80, st.EnergyLevel)
	assert.Equal(t, persona.ActivityFree, st.CurrentActivity)
	assert.True(t, st.LastMessageAt.IsZero())
}

func TestCharacterStateRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 15, 30, 0, 0, time.UTC)

	st := persona.CharacterState{
		Mood:            persona.MoodExcited,
		EnergyLevel:     140, // clamped on save
		CurrentActivity: persona.ActivityHobby,
		Location:        "park",
		LastMessageAt:   now.Add(-time.Hour),
		QuietUntil:      now.Add(6 * time.Hour),
		UpdatedAt:       now,
	}
	require.NoError(t, s.SaveCharacterState(ctx, "lumi", st))

	got, err := s.CharacterState(ctx, "lumi")
	require.NoError(t, err)
	assert.Equal(t, persona.MoodExcited, got.Mood)
	assert.Equal(t, 100, got.EnergyLevel)
	assert.Equal(t, "park", got.Location)
	assert.Equal(t, now.Add(-time.Hour), got.LastMessageAt)
	assert.Equal(t, now.Add(6*time.Hour), got.QuietUntil)
}

func TestRelationshipDefaultAndUpdate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rs, err := s.Relationship(ctx, "lumi")
	require.NoError(t, err)
	assert.Equal(t, 10, rs.IntimacyLevel)
	assert.Equal(t, 0, rs.InteractionCount)

	rs.IntimacyLevel = 42
	rs.InteractionCount = 7
	rs.LastInteractionAt = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveRelationship(ctx, "lumi", rs))

	got, err := s.Relationship(ctx, "lumi")
	require.NoError(t, err)
	assert.Equal(t, 42, got.IntimacyLevel)
	assert.Equal(t, 7, got.InteractionCount)
	assert.Equal(t, rs.LastInteractionAt, got.LastInteractionAt)
}

func TestConversationLogOrderAndKinds(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		kind := persona.KindResponse
		if i%2 == 1 {
			kind = persona.KindInitiative
		}
		_, err := s.AppendConversation(ctx, "lumi", persona.ConversationRecord{
			Kind:        kind,
			UserMessage: "",
			Response:    "msg",
			CreatedAt:   base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	recent, err := s.RecentConversations(ctx, "lumi", 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	// chronological within the window: the three newest, oldest first
	assert.True(t, recent[0].CreatedAt.Before(recent[1].CreatedAt))
	assert.True(t, recent[1].CreatedAt.Before(recent[2].CreatedAt))

	last, err := s.LastInitiativeAt(ctx, "lumi")
	require.NoError(t, err)
	assert.Equal(t, base.Add(3*time.Hour), last)

	n, err := s.InitiativeCountSince(ctx, "lumi", base)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.InitiativeCountSince(ctx, "lumi", base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLastInitiativeAtZeroWhenNone(t *testing.T) {
	s := openTestStore(t)
	last, err := s.LastInitiativeAt(context.Background(), "lumi")
	require.NoError(t, err)
	assert.True(t, last.IsZero())
}

func TestActivityLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	id, err := s.AddActivity(ctx, "lumi", persona.PlannedActivity{
		Type:        persona.ActivityWorking,
		Description: "deep work block",
		StartTime:   now.Add(-10 * time.Minute),
		EndTime:     now.Add(50 * time.Minute),
		EnergyCost:  30,
		Importance:  8,
		Flexibility: 2,
	})
	require.NoError(t, err)

	_, err = s.AddActivity(ctx, "lumi", persona.PlannedActivity{
		Type:        persona.ActivityHobby,
		Description: "evening sketching",
		StartTime:   now.Add(6 * time.Hour),
		EndTime:     now.Add(7 * time.Hour),
		Importance:  4,
		Flexibility: 8,
	})
	require.NoError(t, err)

	due, err := s.DueToStart(ctx, "lumi", now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "deep work block", due[0].Description)

	require.NoError(t, s.SetActivityStatus(ctx, id, persona.ActivityActive))

	active, err := s.ActiveActivities(ctx, "lumi")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, id, active[0].ID)

	next, err := s.NextPlanned(ctx, "lumi", now)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "evening sketching", next.Description)

	require.NoError(t, s.SetActivityStatus(ctx, id, persona.ActivityCompleted))
	done, err := s.LastCompletedSince(ctx, "lumi", now)
	require.NoError(t, err)
	require.NotNil(t, done)
	assert.Equal(t, id, done.ID)

	active, err = s.ActiveActivities(ctx, "lumi")
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestHasPlanOn(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	day := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	has, err := s.HasPlanOn(ctx, "lumi", day)
	require.NoError(t, err)
	assert.False(t, has)

	_, err = s.AddActivity(ctx, "lumi", persona.PlannedActivity{
		Type:      persona.ActivityRest,
		StartTime: day.Add(2 * time.Hour),
		EndTime:   day.Add(3 * time.Hour),
	})
	require.NoError(t, err)

	has, err = s.HasPlanOn(ctx, "lumi", day)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestStateEvents(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendStateEvent(ctx, "lumi", persona.StateEvent{
		EventType:   "life_event",
		Description: "found a stray cat",
		Trigger:     "tick",
	}))
	require.NoError(t, s.AppendStateEvent(ctx, "lumi", persona.StateEvent{
		EventType: "activity_completed",
		Delta:     `{"mood":"happy"}`,
	}))

	evs, err := s.RecentEvents(ctx, "lumi", 10)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, "activity_completed", evs[0].EventType) // newest first
	assert.Equal(t, `{"mood":"happy"}`, evs[0].Delta)
	assert.Equal(t, "{}", evs[1].Delta)
}
