package companion

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumi/internal/ai"
	"lumi/internal/config"
	"lumi/internal/memory"
	"lumi/internal/mind"
	"lumi/internal/persona"
	"lumi/internal/storage"
)

type scriptedProvider struct {
	reply string
	calls []ai.Usage
}

func (p *scriptedProvider) Generate(_ context.Context, usage ai.Usage, _ []ai.Message) (string, error) {
	p.calls = append(p.calls, usage)
	return p.reply, nil
}

type capturingSender struct {
	sent    []string
	typings int
}

func (s *capturingSender) Typing(context.Context) { s.typings++ }
func (s *capturingSender) Send(_ context.Context, text string) error {
	s.sent = append(s.sent, text)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		PersonaID:   "lumi",
		PersonaName: "Lumi",
		Behavior: config.BehaviorConfig{
			BaseInitiativeChance: 0.30,
			MinInitiativeGap:     2,
			MaxDailyInitiatives:  8,
			SleepStartHour:       23,
			SleepEndHour:         7,
			TickMinutes:          5,
			ConsolidationHour:    4,
			WorkingMemoryCap:     50,
			DailyMemoryCap:       20,
			MinImportance:        3,
		},
	}
}

func newTestCoordinator(t *testing.T, reply string) (*Coordinator, *scriptedProvider, *capturingSender, *storage.Store, *memory.Store) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "comp.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	mem, err := memory.NewStore(store.DB(), "lumi", nil)
	require.NoError(t, err)

	provider := &scriptedProvider{reply: reply}
	sender := &capturingSender{}
	c := New(store, mem, provider, sender, testConfig())
	c.now = func() time.Time { return time.Date(2025, 6, 3, 15, 0, 0, 0, time.UTC) }
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c, provider, sender, store, mem
}

func TestProcessUserMessageEndToEnd(t *testing.T) {
	c, provider, sender, store, mem := newTestCoordinator(t, "hey! good to hear from you\n\nhow was your day?")
	ctx := context.Background()

	require.NoError(t, c.ProcessUserMessage(ctx, "hi, my name is Artur"))

	// generation used the dialogue profile
	require.Len(t, provider.calls, 1)
	assert.Equal(t, ai.UsageDialogue, provider.calls[0])

	// delivered in paced parts, typing before each
	assert.Equal(t, []string{"hey! good to hear from you", "how was your day?"}, sender.sent)
	assert.Equal(t, 2, sender.typings)

	// conversation logged with the full reply
	recent, err := store.RecentConversations(ctx, "lumi", 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, persona.KindResponse, recent[0].Kind)
	assert.Equal(t, "hi, my name is Artur", recent[0].UserMessage)

	// state and relationship moved
	st, err := store.CharacterState(ctx, "lumi")
	require.NoError(t, err)
	assert.False(t, st.LastMessageAt.IsZero())

	rel, err := store.Relationship(ctx, "lumi")
	require.NoError(t, err)
	assert.Equal(t, 1, rel.InteractionCount)
	assert.Equal(t, 11, rel.IntimacyLevel) // young relationship grows every exchange

	// the name fact got remembered
	got, _, err := mem.Retrieve(ctx, "Artur", 5, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, memory.KindFact, got[0].Kind)
}

// tickingProvider mutates stored state while generation is in flight, the
// way a consciousness tick can land mid-exchange.
type tickingProvider struct {
	store *storage.Store
	reply string
}

func (p *tickingProvider) Generate(ctx context.Context, _ ai.Usage, _ []ai.Message) (string, error) {
	st, err := p.store.CharacterState(ctx, "lumi")
	if err != nil {
		return "", err
	}
	st.EnergyLevel = 40
	if err := p.store.SaveCharacterState(ctx, "lumi", st); err != nil {
		return "", err
	}
	return p.reply, nil
}

func TestStateMovedDuringGenerationIsKept(t *testing.T) {
	store, err := storage.Open(filepath.Join(t.TempDir(), "comp.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	mem, err := memory.NewStore(store.DB(), "lumi", nil)
	require.NoError(t, err)

	c := New(store, mem, &tickingProvider{store: store, reply: "mm, tired today"}, &capturingSender{}, testConfig())
	c.now = func() time.Time { return time.Date(2025, 6, 3, 15, 0, 0, 0, time.UTC) }
	c.sleep = func(context.Context, time.Duration) error { return nil }

	ctx := context.Background()
	require.NoError(t, c.ProcessUserMessage(ctx, "how are you feeling?"))

	st, err := store.CharacterState(ctx, "lumi")
	require.NoError(t, err)
	assert.Equal(t, 40, st.EnergyLevel) // the mid-flight write survives
	assert.Equal(t, persona.MoodPlayful, st.Mood)
	assert.False(t, st.LastMessageAt.IsZero())
}

func TestQuietRequestPausesInitiatives(t *testing.T) {
	c, _, _, store, _ := newTestCoordinator(t, "okay. I'll be here when you want me")
	ctx := context.Background()

	require.NoError(t, c.ProcessUserMessage(ctx, "rough day. please leave me alone for a while"))

	st, err := store.CharacterState(ctx, "lumi")
	require.NoError(t, err)
	want := time.Date(2025, 6, 3, 15, 0, 0, 0, time.UTC).Add(quietSpan)
	assert.True(t, st.QuietUntil.Equal(want))
}

func TestSendInitiativeLogsAsInitiative(t *testing.T) {
	c, _, sender, store, _ := newTestCoordinator(t, "thinking about you")
	ctx := context.Background()

	require.NoError(t, c.SendInitiative(ctx, "long silence"))
	assert.Equal(t, []string{"thinking about you"}, sender.sent)

	recent, err := store.RecentConversations(ctx, "lumi", 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, persona.KindInitiative, recent[0].Kind)
	assert.Empty(t, recent[0].UserMessage)

	// an initiative is not an interaction until the operator answers
	rel, err := store.Relationship(ctx, "lumi")
	require.NoError(t, err)
	assert.Equal(t, 0, rel.InteractionCount)

	last, err := store.LastInitiativeAt(ctx, "lumi")
	require.NoError(t, err)
	assert.False(t, last.IsZero())
}

func TestNoteLifeEventStoresMemory(t *testing.T) {
	c, _, _, _, mem := newTestCoordinator(t, "")
	ctx := context.Background()

	require.NoError(t, c.NoteLifeEvent(ctx, mind.LifeEvent{
		Description: "a stray cat followed me half the way home",
		MoodShift:   2,
		Importance:  5,
	}))

	got, _, err := mem.Retrieve(ctx, "stray cat", 5, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, memory.KindEvent, got[0].Kind)
	assert.Equal(t, 5, got[0].Importance)
}

func TestProgressIntimacySlowsWithDepth(t *testing.T) {
	assert.Equal(t, 21, progressIntimacy(20, 1))
	assert.Equal(t, 40, progressIntimacy(40, 1))
	assert.Equal(t, 41, progressIntimacy(40, 3))
	assert.Equal(t, 80, progressIntimacy(80, 3))
	assert.Equal(t, 81, progressIntimacy(80, 10))
}
