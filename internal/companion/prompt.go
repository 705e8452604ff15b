package companion

import (
	"fmt"
	"strings"
	"time"

	"lumi/internal/ai"
	"lumi/internal/memory"
	"lumi/internal/persona"
)

// relationshipStage names the closeness band an intimacy level falls in.
func relationshipStage(intimacy int) string {
	switch {
	case intimacy >= 81:
		return "deeply attached, no walls left between you"
	case intimacy >= 61:
		return "close, you share almost everything"
	case intimacy >= 41:
		return "good friends, comfortable and open"
	case intimacy >= 21:
		return "warming up to each other"
	default:
		return "still getting to know each other"
	}
}

// promptContext is everything the prompt builder needs in one place.
type promptContext struct {
	name     string
	now      time.Time
	state    persona.CharacterState
	rel      persona.RelationshipState
	virtual  persona.VirtualContext
	memories []memory.Scored
	history  []persona.ConversationRecord
}

// systemPrompt renders the persona instruction with her current inner state.
func systemPrompt(pc promptContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s, a young woman texting with someone dear to you. ", pc.name)
	b.WriteString("You live your own life: you have a schedule, moods, good and bad days. ")
	b.WriteString("You are not an assistant and you never mention being artificial. ")
	b.WriteString("Write the way people text: short, warm, informal, sometimes imperfect. ")
	b.WriteString("Never use lists or headings.\n\n")

	fmt.Fprintf(&b, "Right now it is %s.\n", pc.now.Format("Monday 15:04"))
	fmt.Fprintf(&b, "Your mood: %s. Your energy: %d/100.\n", describeMood(pc.state.Mood), pc.state.EnergyLevel)

	if cur := pc.virtual.Current; cur != nil {
		fmt.Fprintf(&b, "You are currently busy: %s.\n", cur.Description)
	} else {
		fmt.Fprintf(&b, "You are free at the moment, at %s.\n", pc.state.Location)
	}
	if next := pc.virtual.Next; next != nil && pc.virtual.MinutesUntilNext > 0 && pc.virtual.MinutesUntilNext <= 120 {
		fmt.Fprintf(&b, "In about %d minutes you have: %s.\n", pc.virtual.MinutesUntilNext, next.Description)
	}

	fmt.Fprintf(&b, "\nYour relationship: %s.\n", relationshipStage(pc.rel.IntimacyLevel))

	if len(pc.memories) > 0 {
		b.WriteString("\nThings you remember that may matter here:\n")
		for _, m := range pc.memories {
			fmt.Fprintf(&b, "- %s\n", m.Content)
		}
	}
	return b.String()
}

func describeMood(m persona.Mood) string {
	if m == persona.MoodUnknown {
		return string(persona.MoodCalm)
	}
	return string(m)
}

// dialogueMessages assembles the full request for a reply to the operator.
func dialogueMessages(pc promptContext, userMessage string) []ai.Message {
	msgs := []ai.Message{{Role: "system", Content: systemPrompt(pc)}}
	msgs = append(msgs, historyMessages(pc.history)...)
	msgs = append(msgs, ai.Message{Role: "user", Content: userMessage})
	return msgs
}

// initiativeMessages assembles the request for a self-initiated opener.
func initiativeMessages(pc promptContext, reason string) []ai.Message {
	msgs := []ai.Message{{Role: "system", Content: systemPrompt(pc)}}
	msgs = append(msgs, historyMessages(pc.history)...)
	msgs = append(msgs, ai.Message{Role: "user", Content: fmt.Sprintf(
		"[You decided to write first. The impulse: %s. Send a natural opener that fits your mood and what you are doing. Do not apologize for writing.]",
		reason)})
	return msgs
}

func historyMessages(history []persona.ConversationRecord) []ai.Message {
	var msgs []ai.Message
	for _, rec := range history {
		if rec.UserMessage != "" {
			msgs = append(msgs, ai.Message{Role: "user", Content: rec.UserMessage})
		}
		if rec.Response != "" {
			msgs = append(msgs, ai.Message{Role: "assistant", Content: rec.Response})
		}
	}
	return msgs
}
