package companion

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"lumi/internal/ai"
	"lumi/internal/persona"
)

// maxPlannedPerDay bounds how many activities one generated plan may add.
const maxPlannedPerDay = 8

// planDefaults supplies the per-type numbers a generated plan line does not
// carry: mood effect, energy cost, importance and flexibility.
var planDefaults = map[persona.ActivityTag]struct {
	mood float64
	cost int
	imp  int
	flex int
}{
	persona.ActivityWorking: {-0.5, 30, 8, 2},
	persona.ActivitySocial:  {1, 20, 6, 5},
	persona.ActivityHobby:   {1, 10, 4, 8},
	persona.ActivityRest:    {0.5, 0, 3, 9},
	persona.ActivityFree:    {0, 0, 2, 10},
}

// PlanDay asks the generation service to sketch the persona's day as plain
// schedule lines. An unusable reply is an error; the caller falls back to
// the static plan.
func (c *Coordinator) PlanDay(ctx context.Context, day time.Time) ([]persona.PlannedActivity, error) {
	raw, err := c.ai.Generate(ctx, ai.UsagePlanning, planMessages(c.cfg.PersonaName, day))
	if err != nil {
		return nil, fmt.Errorf("plan generation: %w", err)
	}
	plan := parsePlan(raw, day)
	if len(plan) == 0 {
		return nil, fmt.Errorf("plan generation: no usable schedule lines")
	}
	return plan, nil
}

func planMessages(name string, day time.Time) []ai.Message {
	sys := fmt.Sprintf(
		"You plan one ordinary day of life for %s, a young woman. "+
			"Answer with 4 to %d schedule lines and nothing else, each formatted exactly as\n"+
			"HH:MM-HH:MM | type | short description\n"+
			"where type is one of: working, social, hobby, rest, free. "+
			"Times are 24-hour, within one day, in order, not overlapping.",
		name, maxPlannedPerDay)
	return []ai.Message{
		{Role: "system", Content: sys},
		{Role: "user", Content: fmt.Sprintf("Plan %s.", day.Format("Monday, January 2"))},
	}
}

// parsePlan extracts schedule lines from a generated reply, skipping
// anything malformed. Unknown types land in hobby.
func parsePlan(raw string, day time.Time) []persona.PlannedActivity {
	var out []persona.PlannedActivity
	sc := bufio.NewScanner(strings.NewReader(raw))
	for sc.Scan() && len(out) < maxPlannedPerDay {
		parts := strings.SplitN(sc.Text(), "|", 3)
		if len(parts) != 3 {
			continue
		}
		start, end, ok := parseSpan(strings.TrimSpace(parts[0]), day)
		if !ok || !end.After(start) {
			continue
		}
		desc := strings.TrimSpace(parts[2])
		if desc == "" {
			continue
		}
		tag := persona.ActivityTag(strings.ToLower(strings.TrimSpace(parts[1])))
		def, known := planDefaults[tag]
		if !known {
			tag = persona.ActivityHobby
			def = planDefaults[tag]
		}
		out = append(out, persona.PlannedActivity{
			Type:        tag,
			Description: desc,
			StartTime:   start,
			EndTime:     end,
			MoodEffect:  def.mood,
			EnergyCost:  def.cost,
			Importance:  def.imp,
			Flexibility: def.flex,
		})
	}
	return out
}

// parseSpan reads "HH:MM-HH:MM" onto the given local day.
func parseSpan(s string, day time.Time) (time.Time, time.Time, bool) {
	var h1, m1, h2, m2 int
	if _, err := fmt.Sscanf(s, "%d:%d-%d:%d", &h1, &m1, &h2, &m2); err != nil {
		return time.Time{}, time.Time{}, false
	}
	if h1 < 0 || h1 > 23 || h2 < 0 || h2 > 23 || m1 < 0 || m1 > 59 || m2 < 0 || m2 > 59 {
		return time.Time{}, time.Time{}, false
	}
	at := func(h, m int) time.Time {
		return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, day.Location())
	}
	return at(h1, m1), at(h2, m2), true
}
