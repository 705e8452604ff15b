// Package mind holds the behavioral core of the persona: the probabilistic
// initiative engine, the virtual-life schedule, and the consciousness cycle
// that ticks them.
package mind

import (
	"fmt"
	"time"

	"lumi/internal/persona"
)

// InitiativeInput is everything one initiative decision looks at. All fields
// are plain values so the scoring function stays pure and testable.
type InitiativeInput struct {
	Now                  time.Time // local time
	LastMessageAt        time.Time // last exchange either direction; zero = never
	LastInitiative       time.Time // zero = never
	InitiativesUsedToday int

	Mood      persona.Mood
	Energy    int // 0..100
	Intimacy  int // 0..100
	Virtual   persona.VirtualContext
	SilenceOK bool // operator asked for quiet; hard gate
}

// InitiativeConfig are the tunables of the engine.
type InitiativeConfig struct {
	BaseChance     float64
	MinGap         time.Duration
	MaxDaily       int
	SleepStartHour int
	SleepEndHour   int
}

// Decision is the outcome of one evaluation. Probability is reported even
// when a gate short-circuits, so logs stay informative.
type Decision struct {
	Speak       bool
	Probability float64
	Reason      string
}

// EvaluateInitiative scores the urge to reach out and rolls against it.
// roll must return a uniform value in [0,1); injecting it keeps the engine
// deterministic under test.
func EvaluateInitiative(in InitiativeInput, cfg InitiativeConfig, roll func() float64) Decision {
	if in.SilenceOK {
		return Decision{Reason: "quiet requested"}
	}
	if inSleepWindow(in.Now.Hour(), cfg.SleepStartHour, cfg.SleepEndHour) {
		return Decision{Reason: "sleeping"}
	}
	// cooldown counts from the last message in either direction: a reply
	// thirty minutes ago silences the urge just like an own initiative
	last := in.LastMessageAt
	if in.LastInitiative.After(last) {
		last = in.LastInitiative
	}
	if !last.IsZero() && in.Now.Sub(last) < cfg.MinGap {
		return Decision{Reason: "cooldown"}
	}
	if cfg.MaxDaily > 0 && in.InitiativesUsedToday >= cfg.MaxDaily {
		return Decision{Reason: "daily cap reached"}
	}

	p := cfg.BaseChance *
		timeFactor(in.Now, in.LastMessageAt) *
		moodFactor(in.Mood) *
		energyFactor(in.Energy) *
		intimacyFactor(in.Intimacy) *
		activityFactor(in.Virtual) *
		timeOfDayFactor(in.Now.Hour()) *
		weekdayFactor(in.Now.Weekday())

	p += bonuses(in)
	p = clamp01(p)

	if roll() < p {
		return Decision{Speak: true, Probability: p, Reason: dominantReason(in)}
	}
	return Decision{Probability: p, Reason: "roll failed"}
}

// inSleepWindow handles windows that wrap midnight (23..7).
func inSleepWindow(hour, start, end int) bool {
	if start == end {
		return false
	}
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

// timeFactor grows with silence: a fresh conversation suppresses the urge,
// a long gap amplifies it.
func timeFactor(now, last time.Time) float64 {
	if last.IsZero() {
		return 1.6
	}
	gap := now.Sub(last)
	switch {
	case gap < time.Hour:
		return 0.3
	case gap < 2*time.Hour:
		return 0.7
	case gap < 4*time.Hour:
		return 1.0
	case gap < 8*time.Hour:
		return 1.2
	default:
		return 1.6
	}
}

var moodFactors = map[persona.Mood]float64{
	persona.MoodRadiant:    1.3,
	persona.MoodExcited:    1.25,
	persona.MoodHappy:      1.15,
	persona.MoodPlayful:    1.15,
	persona.MoodCalm:       1.0,
	persona.MoodThoughtful: 0.95,
	persona.MoodAnxious:    0.85,
	persona.MoodTired:      0.8,
	persona.MoodIrritable:  0.75,
	persona.MoodSad:        0.7,
}

// moodFactor: bright moods reach out, withdrawn moods go quiet. Tags not in
// the table are neutral.
func moodFactor(m persona.Mood) float64 {
	if f, ok := moodFactors[m]; ok {
		return f
	}
	return 1.0
}

// energyFactor is unimodal: exhaustion and overdrive both suppress, the
// sweet spot sits just below full.
func energyFactor(energy int) float64 {
	switch {
	case energy >= 80:
		return 1.05
	case energy >= 60:
		return 1.2
	case energy >= 40:
		return 1.0
	case energy >= 20:
		return 0.7
	default:
		return 0.4
	}
}

// intimacyFactor maps the stored 0..100 level onto the 0..10 scale the
// thresholds are written in.
func intimacyFactor(intimacy int) float64 {
	level := float64(intimacy) / 10
	switch {
	case level >= 9:
		return 1.4
	case level >= 7:
		return 1.25
	case level >= 5:
		return 1.0
	case level >= 3:
		return 0.85
	default:
		return 0.6
	}
}

// activityFactor: free time invites contact; an important inflexible
// activity nearly forbids it.
func activityFactor(v persona.VirtualContext) float64 {
	cur := v.Current
	if cur == nil {
		return 1.2
	}
	switch {
	case cur.Importance >= 8 && cur.Flexibility <= 3:
		return 0.3
	case cur.Importance >= 7:
		return 0.6
	case cur.Importance >= 5:
		return 0.9
	default:
		return 1.1
	}
}

// timeOfDayFactor peaks in the evening and bottoms out at night.
func timeOfDayFactor(hour int) float64 {
	switch {
	case hour < 6:
		return 0.2
	case hour < 9:
		return 0.8
	case hour < 12:
		return 1.1
	case hour < 14:
		return 1.0
	case hour < 18:
		return 1.15
	case hour < 21:
		return 1.2
	case hour < 23:
		return 0.9
	default:
		return 0.5
	}
}

func weekdayFactor(d time.Weekday) float64 {
	switch d {
	case time.Saturday, time.Sunday:
		return 1.2
	case time.Friday:
		return 1.15
	default:
		return 1.0
	}
}

// bonuses are additive triggers on top of the multiplicative score. Their
// sum is capped so no pile-up of triggers can force a message by itself.
func bonuses(in InitiativeInput) float64 {
	var b float64
	if in.Virtual.JustCompleted {
		b += 0.3
	}
	if next := in.Virtual.Next; next != nil && next.Importance >= 7 &&
		in.Virtual.MinutesUntilNext > 0 && in.Virtual.MinutesUntilNext <= 60 {
		b += 0.2
	}
	if !in.LastMessageAt.IsZero() && in.Now.Sub(in.LastMessageAt) > 12*time.Hour {
		b += 0.2
	}
	switch in.Mood {
	case persona.MoodRadiant, persona.MoodExcited:
		b += 0.15
	case persona.MoodSad:
		// a low mood reaches out for support
		b += 0.2
	}
	if b > 0.5 {
		b = 0.5
	}
	return b
}

// dominantReason names the strongest trigger, for the log line and for
// steering the generated opener.
func dominantReason(in InitiativeInput) string {
	switch {
	case in.Virtual.JustCompleted:
		return "finished an activity"
	case !in.LastMessageAt.IsZero() && in.Now.Sub(in.LastMessageAt) > 12*time.Hour:
		return "long silence"
	case in.Mood == persona.MoodSad:
		return "feeling down"
	case in.Mood.Positive():
		return "good mood"
	case in.Virtual.Next != nil && in.Virtual.MinutesUntilNext <= 60:
		return fmt.Sprintf("before %s", in.Virtual.Next.Description)
	default:
		return "felt like talking"
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
