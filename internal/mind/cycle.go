package mind

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lumi/internal/config"
	"lumi/internal/memory"
	"lumi/internal/persona"
	"lumi/internal/storage"
)

// InitiativeHandler receives the decision to reach out. The implementation
// generates and delivers the actual message; the cycle only decides.
type InitiativeHandler interface {
	SendInitiative(ctx context.Context, reason string) error
}

// LifeEventHandler optionally turns a spontaneous life event into a memory.
type LifeEventHandler interface {
	NoteLifeEvent(ctx context.Context, ev LifeEvent) error
}

// DayPlanner optionally generates the day's schedule. When it is absent or
// fails, the static default plan is used.
type DayPlanner interface {
	PlanDay(ctx context.Context, day time.Time) ([]persona.PlannedActivity, error)
}

// Cycle is the consciousness loop: one goroutine ticking every few minutes,
// advancing the virtual life, drifting mood and energy, rolling for
// initiatives and running nightly memory consolidation.
type Cycle struct {
	store     *storage.Store
	mem       *memory.Store
	cfg       config.BehaviorConfig
	personaID string
	handler   InitiativeHandler
	events    LifeEventHandler
	planner   DayPlanner
	logger    zerolog.Logger
	now       func() time.Time
	roll      func() float64

	mu                sync.Mutex // guards the consolidation marker
	lastConsolidation time.Time
}

// NewCycle wires a cycle. events may be nil.
func NewCycle(store *storage.Store, mem *memory.Store, cfg config.BehaviorConfig, personaID string, handler InitiativeHandler, events LifeEventHandler) *Cycle {
	return &Cycle{
		store:     store,
		mem:       mem,
		cfg:       cfg,
		personaID: personaID,
		handler:   handler,
		events:    events,
		logger:    log.With().Str("comp", "cycle").Logger(),
		now:       time.Now,
		roll:      rand.Float64,
	}
}

// SetPlanner installs a generated-schedule planner. Call before Run.
func (c *Cycle) SetPlanner(p DayPlanner) { c.planner = p }

// Run ticks until the context is canceled. The first tick fires immediately
// so a restart does not wait a full interval to resume the virtual life.
func (c *Cycle) Run(ctx context.Context) error {
	interval := time.Duration(c.cfg.TickMinutes) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.logger.Info().Dur("interval", interval).Msg("consciousness cycle running")
	for {
		if err := c.Tick(ctx, c.now()); err != nil {
			c.logger.Error().Err(err).Msg("tick failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick runs one pass of the cycle. Exported so tests can drive time by hand.
func (c *Cycle) Tick(ctx context.Context, now time.Time) error {
	if err := c.planDay(ctx, now); err != nil {
		return fmt.Errorf("plan day: %w", err)
	}

	justCompleted, err := c.advanceSchedule(ctx, now)
	if err != nil {
		return fmt.Errorf("advance schedule: %w", err)
	}

	if err := c.driftState(ctx, now); err != nil {
		return fmt.Errorf("drift state: %w", err)
	}

	if err := c.rollLifeEvent(ctx, now); err != nil {
		c.logger.Warn().Err(err).Msg("life event failed")
	}

	if err := c.maybeInitiate(ctx, now, justCompleted); err != nil {
		c.logger.Warn().Err(err).Msg("initiative failed")
	}

	if err := c.maybeConsolidate(ctx, now); err != nil {
		c.logger.Warn().Err(err).Msg("consolidation failed")
	}
	return nil
}

// planDay seeds the schedule once per local day: the generated plan when a
// planner is wired, the static one otherwise or when generation fails.
func (c *Cycle) planDay(ctx context.Context, now time.Time) error {
	has, err := c.store.HasPlanOn(ctx, c.personaID, now)
	if err != nil {
		return err
	}
	if has {
		return nil
	}

	var plan []persona.PlannedActivity
	if c.planner != nil {
		plan, err = c.planner.PlanDay(ctx, now)
		if err != nil {
			c.logger.Warn().Err(err).Msg("generated plan unavailable, using default")
		}
	}
	if len(plan) == 0 {
		plan = DefaultDayPlan(now)
	}
	for _, a := range plan {
		if _, err := c.store.AddActivity(ctx, c.personaID, a); err != nil {
			return err
		}
	}
	c.logger.Info().Str("day", now.Format("2006-01-02")).Int("activities", len(plan)).Msg("day planned")
	return nil
}

// advanceSchedule starts due activities and completes expired ones,
// applying their mood and energy effects. Returns whether anything
// completed on this tick.
func (c *Cycle) advanceSchedule(ctx context.Context, now time.Time) (bool, error) {
	c.store.LockState()
	defer c.store.UnlockState()

	st, err := c.store.CharacterState(ctx, c.personaID)
	if err != nil {
		return false, err
	}
	changed := false
	completed := false

	active, err := c.store.ActiveActivities(ctx, c.personaID)
	if err != nil {
		return false, err
	}
	for _, a := range active {
		if a.EndTime.After(now) {
			continue
		}
		if err := c.store.SetActivityStatus(ctx, a.ID, persona.ActivityCompleted); err != nil {
			return false, err
		}
		st.Mood = ShiftMood(st.Mood, a.MoodEffect)
		st.EnergyLevel = persona.ClampEnergy(st.EnergyLevel - a.EnergyCost)
		st.CurrentActivity = persona.ActivityFree
		changed, completed = true, true
		c.appendEvent(ctx, now, "activity_completed", a.Description, "schedule",
			map[string]any{"mood": st.Mood, "energy": st.EnergyLevel})
	}

	due, err := c.store.DueToStart(ctx, c.personaID, now)
	if err != nil {
		return false, err
	}
	for _, a := range due {
		if !a.EndTime.After(now) {
			// missed entirely (e.g. after downtime): complete silently
			if err := c.store.SetActivityStatus(ctx, a.ID, persona.ActivityCompleted); err != nil {
				return false, err
			}
			continue
		}
		if err := c.store.SetActivityStatus(ctx, a.ID, persona.ActivityActive); err != nil {
			return false, err
		}
		st.CurrentActivity = a.Type
		changed = true
		c.appendEvent(ctx, now, "activity_started", a.Description, "schedule",
			map[string]any{"activity": a.Type})
	}

	if changed {
		st.UpdatedAt = now.UTC()
		if err := c.store.SaveCharacterState(ctx, c.personaID, st); err != nil {
			return false, err
		}
	}
	return completed, nil
}

// driftState handles the passive physiology: energy recovers during sleep
// hours and settles toward the daytime baseline while awake, mood drifts
// one step toward calm with the configured volatility.
func (c *Cycle) driftState(ctx context.Context, now time.Time) error {
	c.store.LockState()
	defer c.store.UnlockState()

	st, err := c.store.CharacterState(ctx, c.personaID)
	if err != nil {
		return err
	}
	changed := false

	if inSleepWindow(now.Hour(), c.cfg.SleepStartHour, c.cfg.SleepEndHour) {
		if st.CurrentActivity != persona.ActivitySleeping {
			st.CurrentActivity = persona.ActivitySleeping
			changed = true
		}
		if st.EnergyLevel < 100 {
			st.EnergyLevel = persona.ClampEnergy(st.EnergyLevel + 2)
			changed = true
		}
	} else {
		if st.CurrentActivity == persona.ActivitySleeping {
			st.CurrentActivity = persona.ActivityFree
			st.Mood = persona.MoodCalm
			changed = true
			c.appendEvent(ctx, now, "woke_up", "", "clock",
				map[string]any{"energy": st.EnergyLevel})
		}
		if base := c.cfg.EnergyBaseline; base > 0 && st.EnergyLevel != base {
			if st.EnergyLevel > base {
				st.EnergyLevel--
			} else {
				st.EnergyLevel++
			}
			changed = true
		}
		if c.roll() < c.cfg.MoodVolatility && st.Mood != persona.MoodCalm {
			if moodIndex(st.Mood) > moodIndex(persona.MoodCalm) {
				st.Mood = ShiftMood(st.Mood, -1)
			} else {
				st.Mood = ShiftMood(st.Mood, 1)
			}
			changed = true
		}
	}

	if changed {
		st.UpdatedAt = now.UTC()
		return c.store.SaveCharacterState(ctx, c.personaID, st)
	}
	return nil
}

func (c *Cycle) rollLifeEvent(ctx context.Context, now time.Time) error {
	if inSleepWindow(now.Hour(), c.cfg.SleepStartHour, c.cfg.SleepEndHour) {
		return nil
	}
	ev := PickLifeEvent(c.roll)
	if ev == nil {
		return nil
	}

	c.store.LockState()
	st, err := c.store.CharacterState(ctx, c.personaID)
	if err != nil {
		c.store.UnlockState()
		return err
	}
	st.Mood = ShiftMood(st.Mood, ev.MoodShift)
	st.UpdatedAt = now.UTC()
	err = c.store.SaveCharacterState(ctx, c.personaID, st)
	c.store.UnlockState()
	if err != nil {
		return err
	}
	c.appendEvent(ctx, now, "life_event", ev.Description, "random",
		map[string]any{"mood": st.Mood})

	if c.events != nil {
		if err := c.events.NoteLifeEvent(ctx, *ev); err != nil {
			c.logger.Warn().Err(err).Msg("life event memory failed")
		}
	}
	c.logger.Info().Str("event", ev.Description).Msg("life event")
	return nil
}

func (c *Cycle) maybeInitiate(ctx context.Context, now time.Time, justCompleted bool) error {
	if c.handler == nil {
		return nil
	}
	in, err := c.buildInitiativeInput(ctx, now, justCompleted)
	if err != nil {
		return err
	}
	cfg := InitiativeConfig{
		BaseChance:     c.cfg.BaseInitiativeChance,
		MinGap:         c.cfg.MinGap(),
		MaxDaily:       c.cfg.MaxDailyInitiatives,
		SleepStartHour: c.cfg.SleepStartHour,
		SleepEndHour:   c.cfg.SleepEndHour,
	}
	d := EvaluateInitiative(in, cfg, c.roll)
	c.logger.Debug().Bool("speak", d.Speak).Float64("p", d.Probability).Str("reason", d.Reason).Msg("initiative roll")
	if !d.Speak {
		return nil
	}
	return c.handler.SendInitiative(ctx, d.Reason)
}

func (c *Cycle) buildInitiativeInput(ctx context.Context, now time.Time, justCompleted bool) (InitiativeInput, error) {
	st, err := c.store.CharacterState(ctx, c.personaID)
	if err != nil {
		return InitiativeInput{}, err
	}
	rs, err := c.store.Relationship(ctx, c.personaID)
	if err != nil {
		return InitiativeInput{}, err
	}
	lastInit, err := c.store.LastInitiativeAt(ctx, c.personaID)
	if err != nil {
		return InitiativeInput{}, err
	}
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	used, err := c.store.InitiativeCountSince(ctx, c.personaID, midnight)
	if err != nil {
		return InitiativeInput{}, err
	}

	vc := persona.VirtualContext{JustCompleted: justCompleted, Location: st.Location}
	if !vc.JustCompleted {
		// restart safety: a completion applied just before the process went
		// down still counts on the first tick after it comes back
		window := now.Add(-time.Duration(c.cfg.TickMinutes) * time.Minute)
		if last, err := c.store.LastCompletedSince(ctx, c.personaID, window); err == nil && last != nil {
			vc.JustCompleted = true
		}
	}
	if active, err := c.store.ActiveActivities(ctx, c.personaID); err == nil && len(active) > 0 {
		vc.Current = &active[0]
	}
	if next, err := c.store.NextPlanned(ctx, c.personaID, now); err == nil && next != nil {
		vc.Next = next
		vc.MinutesUntilNext = int(next.StartTime.Sub(now).Minutes())
	}

	return InitiativeInput{
		Now:                  now,
		LastMessageAt:        st.LastMessageAt,
		LastInitiative:       lastInit,
		InitiativesUsedToday: used,
		Mood:                 st.Mood,
		Energy:               st.EnergyLevel,
		Intimacy:             rs.IntimacyLevel,
		Virtual:              vc,
		SilenceOK:            now.Before(st.QuietUntil),
	}, nil
}

// maybeConsolidate runs the nightly memory pass once per day at the
// configured hour.
func (c *Cycle) maybeConsolidate(ctx context.Context, now time.Time) error {
	if c.mem == nil || now.Hour() != c.cfg.ConsolidationHour {
		return nil
	}
	c.mu.Lock()
	already := sameDay(c.lastConsolidation, now)
	if !already {
		c.lastConsolidation = now
	}
	c.mu.Unlock()
	if already {
		return nil
	}

	res, err := c.mem.Consolidate(ctx, memory.ConsolidateOptions{
		WorkingCap: c.cfg.WorkingMemoryCap,
		DailyCap:   c.cfg.DailyMemoryCap,
		MinKeep:    8,
	})
	if err != nil {
		return err
	}
	c.appendEvent(ctx, now, "consolidation", "", "clock",
		map[string]any{"before": res.Before, "evicted": res.Evicted})
	return nil
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func (c *Cycle) appendEvent(ctx context.Context, now time.Time, eventType, desc, trigger string, delta map[string]any) {
	blob, err := json.Marshal(delta)
	if err != nil {
		blob = []byte("{}")
	}
	if err := c.store.AppendStateEvent(ctx, c.personaID, persona.StateEvent{
		EventType:   eventType,
		Description: desc,
		Delta:       string(blob),
		Trigger:     trigger,
		CreatedAt:   now.UTC(),
	}); err != nil {
		c.logger.Warn().Err(err).Str("type", eventType).Msg("state event write failed")
	}
}
