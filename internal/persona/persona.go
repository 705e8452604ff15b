// Package persona defines the shared state model of the companion: moods,
// activities, character and relationship state, and the append-only records.
// It sits below storage, mind and memory so none of them import each other.
package persona

import "time"

// Mood is a closed set of mood tags. Anything not in the table behaves as
// MoodUnknown, which is neutral everywhere.
type Mood string

const (
	MoodUnknown    Mood = ""
	MoodRadiant    Mood = "radiant"
	MoodExcited    Mood = "excited"
	MoodHappy      Mood = "happy"
	MoodPlayful    Mood = "playful"
	MoodCalm       Mood = "calm"
	MoodThoughtful Mood = "thoughtful"
	MoodSad        Mood = "sad"
	MoodTired      Mood = "tired"
	MoodIrritable  Mood = "irritable"
	MoodAnxious    Mood = "anxious"
)

// Positive reports whether the mood is an elevated one (used by the
// heightened-mood initiative trigger and by delivery pacing).
func (m Mood) Positive() bool {
	switch m {
	case MoodRadiant, MoodExcited, MoodHappy, MoodPlayful:
		return true
	}
	return false
}

// Low reports whether the mood is a withdrawn one.
func (m Mood) Low() bool {
	switch m {
	case MoodSad, MoodTired, MoodIrritable, MoodAnxious:
		return true
	}
	return false
}

// ActivityTag classifies what the persona is currently doing.
type ActivityTag string

const (
	ActivityFree     ActivityTag = "free"
	ActivityWorking  ActivityTag = "working"
	ActivitySleeping ActivityTag = "sleeping"
	ActivitySocial   ActivityTag = "social"
	ActivityRest     ActivityTag = "rest"
	ActivityHobby    ActivityTag = "hobby"
)

// CharacterState is the live mutable state of the persona. One row per
// persona, overwritten in place; history goes to StateEvents.
type CharacterState struct {
	Mood            Mood
	EnergyLevel     int // 0..100
	CurrentActivity ActivityTag
	Location        string
	LastMessageAt   time.Time // zero = never spoke
	QuietUntil      time.Time // operator asked for space until then; zero = no request
	UpdatedAt       time.Time
}

// DefaultCharacterState is the state of a freshly created persona.
func DefaultCharacterState(now time.Time) CharacterState {
	return CharacterState{
		Mood:            MoodCalm,
		EnergyLevel:     80,
		CurrentActivity: ActivityFree,
		Location:        "home",
		UpdatedAt:       now,
	}
}

// RelationshipState tracks closeness with the operator.
type RelationshipState struct {
	IntimacyLevel     int // 0..100
	InteractionCount  int
	LastInteractionAt time.Time
}

// ConversationKind distinguishes replies from self-initiated messages.
type ConversationKind string

const (
	KindResponse   ConversationKind = "response"
	KindInitiative ConversationKind = "initiative"
)

// ConversationRecord is one exchange, immutable once written.
type ConversationRecord struct {
	ID          int64
	Kind        ConversationKind
	UserMessage string // empty for initiatives
	Response    string
	MoodBefore  Mood
	MoodAfter   Mood
	CreatedAt   time.Time
}

// StateEvent is the audit record of one state transition.
type StateEvent struct {
	ID          int64
	EventType   string // "tick" | "activity_started" | "activity_completed" | "life_event" | ...
	Description string
	Delta       string // compact JSON of the changed fields
	Trigger     string
	CreatedAt   time.Time
}

// ActivityStatus is the lifecycle of a planned activity.
type ActivityStatus string

const (
	ActivityPlanned   ActivityStatus = "planned"
	ActivityActive    ActivityStatus = "active"
	ActivityCompleted ActivityStatus = "completed"
	ActivityCancelled ActivityStatus = "cancelled"
)

// PlannedActivity is one entry of the persona's virtual-life schedule.
type PlannedActivity struct {
	ID          int64
	Type        ActivityTag
	Description string
	StartTime   time.Time
	EndTime     time.Time
	Status      ActivityStatus
	MoodEffect  float64 // -3..+3
	EnergyCost  int     // 0..100
	Importance  int     // 1..10
	Flexibility int     // 1..10
}

// VirtualContext is the slice of virtual life the initiative engine sees.
type VirtualContext struct {
	Current            *PlannedActivity // nil = free
	JustCompleted      bool             // an activity finished on the last tick
	Next               *PlannedActivity // nil = nothing planned
	MinutesUntilNext   int
	Location           string
}

// ClampEnergy keeps an energy value inside [0,100].
func ClampEnergy(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// ClampIntimacy keeps an intimacy value inside [0,100].
func ClampIntimacy(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// ClampImportance keeps an importance value inside [1,10]. Records missing
// an importance get the lowest valid value rather than being rejected.
func ClampImportance(v int) int {
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return v
}
