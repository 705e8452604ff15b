package mind

import (
	"time"

	"lumi/internal/persona"
)

// moodLadder orders moods from lowest to brightest. Mood effects move the
// persona along it.
var moodLadder = []persona.Mood{
	persona.MoodSad,
	persona.MoodIrritable,
	persona.MoodAnxious,
	persona.MoodTired,
	persona.MoodThoughtful,
	persona.MoodCalm,
	persona.MoodPlayful,
	persona.MoodHappy,
	persona.MoodExcited,
	persona.MoodRadiant,
}

func moodIndex(m persona.Mood) int {
	for i, lm := range moodLadder {
		if lm == m {
			return i
		}
	}
	return 5 // unknown moods behave as calm
}

// ShiftMood moves a mood along the ladder by delta steps (rounded toward
// zero), clamped at the ends.
func ShiftMood(m persona.Mood, delta float64) persona.Mood {
	i := moodIndex(m) + int(delta)
	if i < 0 {
		i = 0
	}
	if i >= len(moodLadder) {
		i = len(moodLadder) - 1
	}
	return moodLadder[i]
}

// DefaultDayPlan builds a plausible day of virtual activities starting on
// the given local day. Weekends trade the work block for leisure.
func DefaultDayPlan(day time.Time) []persona.PlannedActivity {
	at := func(h, m int) time.Time {
		return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, day.Location())
	}
	weekend := day.Weekday() == time.Saturday || day.Weekday() == time.Sunday

	plan := []persona.PlannedActivity{
		{
			Type: persona.ActivityRest, Description: "slow morning with coffee",
			StartTime: at(7, 30), EndTime: at(8, 30),
			MoodEffect: 0.5, EnergyCost: 0, Importance: 3, Flexibility: 9,
		},
	}

	if weekend {
		plan = append(plan,
			persona.PlannedActivity{
				Type: persona.ActivityHobby, Description: "sketching in the park",
				StartTime: at(11, 0), EndTime: at(13, 0),
				MoodEffect: 1, EnergyCost: 15, Importance: 4, Flexibility: 8,
			},
			persona.PlannedActivity{
				Type: persona.ActivitySocial, Description: "meeting a friend for lunch",
				StartTime: at(13, 30), EndTime: at(15, 0),
				MoodEffect: 1, EnergyCost: 20, Importance: 6, Flexibility: 5,
			},
		)
	} else {
		plan = append(plan,
			persona.PlannedActivity{
				Type: persona.ActivityWorking, Description: "morning work block",
				StartTime: at(9, 0), EndTime: at(12, 30),
				MoodEffect: -0.5, EnergyCost: 30, Importance: 8, Flexibility: 2,
			},
			persona.PlannedActivity{
				Type: persona.ActivityWorking, Description: "afternoon work block",
				StartTime: at(13, 30), EndTime: at(17, 0),
				MoodEffect: -0.5, EnergyCost: 25, Importance: 7, Flexibility: 3,
			},
		)
	}

	plan = append(plan,
		persona.PlannedActivity{
			Type: persona.ActivityHobby, Description: "evening reading",
			StartTime: at(19, 30), EndTime: at(21, 0),
			MoodEffect: 1, EnergyCost: 5, Importance: 3, Flexibility: 9,
		},
		persona.PlannedActivity{
			Type: persona.ActivityRest, Description: "winding down before sleep",
			StartTime: at(22, 0), EndTime: at(22, 45),
			MoodEffect: 0.5, EnergyCost: 0, Importance: 4, Flexibility: 7,
		},
	)
	return plan
}

// LifeEvent is a small spontaneous happening in the persona's virtual day.
// It shifts mood and leaves a memory worth mentioning later.
type LifeEvent struct {
	Description string
	MoodShift   float64
	Importance  int
}

var lifeEvents = []LifeEvent{
	{Description: "found a song that fits the day perfectly", MoodShift: 1, Importance: 3},
	{Description: "a stray cat followed me half the way home", MoodShift: 2, Importance: 5},
	{Description: "spilled tea over my notes", MoodShift: -1, Importance: 3},
	{Description: "got a compliment from a stranger", MoodShift: 1, Importance: 4},
	{Description: "the rain caught me without an umbrella", MoodShift: -1, Importance: 4},
	{Description: "finally finished a sketch I kept putting off", MoodShift: 2, Importance: 5},
	{Description: "an old friend wrote out of nowhere", MoodShift: 1, Importance: 6},
	{Description: "could not stop thinking about a dream from last night", MoodShift: 0, Importance: 4},
}

// lifeEventChance is the per-tick probability of something small happening.
const lifeEventChance = 0.15

// PickLifeEvent rolls for a spontaneous event. roll must return uniform
// values in [0,1); the first roll decides whether anything happens, the
// second picks which.
func PickLifeEvent(roll func() float64) *LifeEvent {
	if roll() >= lifeEventChance {
		return nil
	}
	ev := lifeEvents[int(roll()*float64(len(lifeEvents)))%len(lifeEvents)]
	return &ev
}
