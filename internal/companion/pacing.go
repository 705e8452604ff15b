package companion

import (
	"strings"
	"time"

	"lumi/internal/persona"
)

// DelayClass is how quickly replies come. It follows the persona's state:
// an excited, rested persona types fast, a tired or sad one takes her time.
type DelayClass string

const (
	DelayFast   DelayClass = "fast"
	DelayNormal DelayClass = "normal"
	DelaySlow   DelayClass = "slow"
)

// Gap returns the pause before each delivered part.
func (d DelayClass) Gap() time.Duration {
	switch d {
	case DelayFast:
		return 800 * time.Millisecond
	case DelaySlow:
		return 3 * time.Second
	default:
		return 1500 * time.Millisecond
	}
}

// ClassifyDelay picks the delay class from mood and energy. Low energy or a
// low mood never types fast, whatever else is going on.
func ClassifyDelay(mood persona.Mood, energy int) DelayClass {
	if energy < 30 || mood.Low() {
		return DelaySlow
	}
	if mood.Positive() && energy >= 60 {
		return DelayFast
	}
	return DelayNormal
}

const maxParts = 3

// SplitReply breaks a generated reply into one to three messages, the way a
// person sends a thought in bursts. Paragraph breaks split first; a single
// long paragraph splits at sentence boundaries.
func SplitReply(reply string) []string {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return nil
	}

	var parts []string
	for _, p := range strings.Split(reply, "\n\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) > maxParts {
		parts = append(parts[:maxParts-1], strings.Join(parts[maxParts-1:], "\n\n"))
	}
	if len(parts) > 1 {
		return parts
	}

	// one paragraph: split long ones roughly in half at a sentence end
	single := parts[0]
	if len([]rune(single)) <= 220 {
		return []string{single}
	}
	if head, tail, ok := splitAtSentence(single); ok {
		return []string{head, tail}
	}
	return []string{single}
}

// splitAtSentence cuts text at the sentence boundary closest to the middle.
func splitAtSentence(text string) (string, string, bool) {
	runes := []rune(text)
	mid := len(runes) / 2
	best := -1
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && runes[i+1] != ' ' {
			continue
		}
		if best == -1 || abs(i-mid) < abs(best-mid) {
			best = i
		}
	}
	if best <= 0 || best >= len(runes)-2 {
		return "", "", false
	}
	head := strings.TrimSpace(string(runes[:best+1]))
	tail := strings.TrimSpace(string(runes[best+1:]))
	if head == "" || tail == "" {
		return "", "", false
	}
	return head, tail, true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
