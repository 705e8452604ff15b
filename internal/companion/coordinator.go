// Package companion coordinates the persona: it turns incoming operator
// messages and cycle impulses into generated, paced, delivered replies, and
// keeps state, relationship and memory moving with every exchange.
package companion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lumi/internal/ai"
	"lumi/internal/config"
	"lumi/internal/memory"
	"lumi/internal/mind"
	"lumi/internal/persona"
	"lumi/internal/storage"
)

// Sender is the outgoing transport boundary. Typing is best-effort; Send is
// not.
type Sender interface {
	Typing(ctx context.Context)
	Send(ctx context.Context, text string) error
}

// Coordinator orchestrates one persona. Exchanges are serialized: the
// persona holds one conversation, not a queue of parallel ones.
type Coordinator struct {
	store     *storage.Store
	mem       *memory.Store
	ai        ai.Provider
	sender    Sender
	cfg       *config.Config
	personaID string
	logger    zerolog.Logger
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error

	mu sync.Mutex
}

// New wires a coordinator.
func New(store *storage.Store, mem *memory.Store, provider ai.Provider, sender Sender, cfg *config.Config) *Coordinator {
	return &Coordinator{
		store:     store,
		mem:       mem,
		ai:        provider,
		sender:    sender,
		cfg:       cfg,
		personaID: cfg.PersonaID,
		logger:    log.With().Str("comp", "companion").Logger(),
		now:       time.Now,
		sleep:     ctxSleep,
	}
}

// ProcessUserMessage handles one incoming operator message end to end:
// retrieve relevant memories, generate a reply, deliver it in paced parts,
// then update conversation log, state, relationship and memory.
func (c *Coordinator) ProcessUserMessage(ctx context.Context, userMessage string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()

	pc, err := c.buildContext(ctx, now, userMessage)
	if err != nil {
		return err
	}
	moodBefore := pc.state.Mood

	reply, err := c.ai.Generate(ctx, ai.UsageDialogue, dialogueMessages(pc, userMessage))
	if err != nil {
		return fmt.Errorf("generate reply: %w", err)
	}

	if err := c.deliver(ctx, reply, ClassifyDelay(pc.state.Mood, pc.state.EnergyLevel)); err != nil {
		return err
	}

	if err := c.afterExchange(ctx, now, persona.ConversationRecord{
		Kind:        persona.KindResponse,
		UserMessage: userMessage,
		Response:    reply,
		MoodBefore:  moodBefore,
		CreatedAt:   now,
	}); err != nil {
		return err
	}

	c.rememberFrom(ctx, userMessage)
	c.noteQuietRequest(ctx, now, userMessage)
	return nil
}

// SendInitiative generates and delivers a self-initiated message. The cycle
// has already decided it is the right moment; reason steers the opener.
func (c *Coordinator) SendInitiative(ctx context.Context, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()

	pc, err := c.buildContext(ctx, now, "")
	if err != nil {
		return err
	}

	opener, err := c.ai.Generate(ctx, ai.UsageDialogue, initiativeMessages(pc, reason))
	if err != nil {
		return fmt.Errorf("generate opener: %w", err)
	}

	if err := c.deliver(ctx, opener, ClassifyDelay(pc.state.Mood, pc.state.EnergyLevel)); err != nil {
		return err
	}

	if err := c.afterExchange(ctx, now, persona.ConversationRecord{
		Kind:       persona.KindInitiative,
		Response:   opener,
		MoodBefore: pc.state.Mood,
		CreatedAt:  now,
	}); err != nil {
		return err
	}

	c.logger.Info().Str("reason", reason).Msg("initiative sent")
	return nil
}

// NoteLifeEvent stores a spontaneous virtual-life happening as a memory so
// the persona can bring it up later.
func (c *Coordinator) NoteLifeEvent(ctx context.Context, ev mind.LifeEvent) error {
	_, err := c.mem.Remember(ctx, memory.Memory{
		Kind:               memory.KindEvent,
		Content:            ev.Description,
		Importance:         ev.Importance,
		EmotionalIntensity: intensityFromShift(ev.MoodShift),
	})
	return err
}

func intensityFromShift(shift float64) int {
	if shift < 0 {
		shift = -shift
	}
	return persona.ClampImportance(int(shift*2) + 1)
}

func (c *Coordinator) buildContext(ctx context.Context, now time.Time, query string) (promptContext, error) {
	st, err := c.store.CharacterState(ctx, c.personaID)
	if err != nil {
		return promptContext{}, err
	}
	rel, err := c.store.Relationship(ctx, c.personaID)
	if err != nil {
		return promptContext{}, err
	}
	history, err := c.store.RecentConversations(ctx, c.personaID, 10)
	if err != nil {
		return promptContext{}, err
	}

	var memories []memory.Scored
	if query != "" {
		memories, _, err = c.mem.Retrieve(ctx, query, 5, 0)
		if err != nil {
			c.logger.Warn().Err(err).Msg("memory retrieval failed")
		}
	}

	vc := persona.VirtualContext{Location: st.Location}
	if active, err := c.store.ActiveActivities(ctx, c.personaID); err == nil && len(active) > 0 {
		vc.Current = &active[0]
	}
	if next, err := c.store.NextPlanned(ctx, c.personaID, now); err == nil && next != nil {
		vc.Next = next
		vc.MinutesUntilNext = int(next.StartTime.Sub(now).Minutes())
	}

	return promptContext{
		name:     c.cfg.PersonaName,
		now:      now,
		state:    st,
		rel:      rel,
		virtual:  vc,
		memories: memories,
		history:  history,
	}, nil
}

// deliver sends the reply in one to three paced parts with a typing
// indicator before each.
func (c *Coordinator) deliver(ctx context.Context, reply string, class DelayClass) error {
	parts := SplitReply(reply)
	if len(parts) == 0 {
		return fmt.Errorf("nothing to deliver")
	}
	for _, part := range parts {
		c.sender.Typing(ctx)
		if err := c.sleep(ctx, class.Gap()); err != nil {
			return err
		}
		if err := c.sender.Send(ctx, part); err != nil {
			return fmt.Errorf("send: %w", err)
		}
	}
	return nil
}

// afterExchange persists everything one exchange changes: the conversation
// record, last-message time, and relationship progression. It runs inside
// the persona state critical section and re-reads state fresh: the cycle
// may have moved it while the generation call was in flight, and those
// changes must not be clobbered by a stale snapshot.
func (c *Coordinator) afterExchange(ctx context.Context, now time.Time, rec persona.ConversationRecord) error {
	c.store.LockState()
	defer c.store.UnlockState()

	st, err := c.store.CharacterState(ctx, c.personaID)
	if err != nil {
		return err
	}
	if rec.Kind == persona.KindResponse {
		// talking to the operator lifts the mood a notch
		st.Mood = mind.ShiftMood(st.Mood, 1)
	}
	rec.MoodAfter = st.Mood

	if _, err := c.store.AppendConversation(ctx, c.personaID, rec); err != nil {
		return err
	}

	st.LastMessageAt = now
	st.UpdatedAt = now.UTC()
	if err := c.store.SaveCharacterState(ctx, c.personaID, st); err != nil {
		return err
	}

	if rec.Kind == persona.KindResponse {
		rel, err := c.store.Relationship(ctx, c.personaID)
		if err != nil {
			return err
		}
		rel.InteractionCount++
		rel.IntimacyLevel = persona.ClampIntimacy(progressIntimacy(rel.IntimacyLevel, rel.InteractionCount))
		rel.LastInteractionAt = now
		if err := c.store.SaveRelationship(ctx, c.personaID, rel); err != nil {
			return err
		}
	}
	return nil
}

// progressIntimacy grows closeness with interaction, fast while the
// relationship is new and slower the deeper it gets.
func progressIntimacy(level, interactions int) int {
	switch {
	case level < 30:
		return level + 1
	case level < 70:
		if interactions%3 == 0 {
			return level + 1
		}
	default:
		if interactions%10 == 0 {
			return level + 1
		}
	}
	return level
}

// rememberFrom extracts and stores memories from a user message.
// Extraction failures only log; the reply already went out.
func (c *Coordinator) rememberFrom(ctx context.Context, userMessage string) {
	for _, m := range ExtractMemories(userMessage) {
		if m.Importance < c.cfg.Behavior.MinImportance {
			continue
		}
		if _, err := c.mem.Remember(ctx, m); err != nil {
			c.logger.Warn().Err(err).Msg("memory write failed")
		}
	}
}

// quietSpan is how long initiatives stay silent after the operator asks
// for space. Replies still go out; only self-initiated contact pauses.
const quietSpan = 12 * time.Hour

// noteQuietRequest honors an operator's ask for space by pushing the quiet
// marker forward. Failures only log; the reply already went out.
func (c *Coordinator) noteQuietRequest(ctx context.Context, now time.Time, userMessage string) {
	if !QuietRequested(userMessage) {
		return
	}
	c.store.LockState()
	defer c.store.UnlockState()

	st, err := c.store.CharacterState(ctx, c.personaID)
	if err != nil {
		c.logger.Warn().Err(err).Msg("quiet request read failed")
		return
	}
	st.QuietUntil = now.Add(quietSpan)
	st.UpdatedAt = now.UTC()
	if err := c.store.SaveCharacterState(ctx, c.personaID, st); err != nil {
		c.logger.Warn().Err(err).Msg("quiet request write failed")
		return
	}
	c.logger.Info().Time("until", st.QuietUntil).Msg("operator asked for quiet")
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
