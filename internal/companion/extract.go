package companion

import (
	"strings"

	"lumi/internal/memory"
)

// factMarkers are first-person phrases that usually carry something worth
// remembering about the operator.
var factMarkers = []string{
	"my name is",
	"i am ", "i'm ",
	"i work", "my job",
	"i live", "my home",
	"my birthday", "i was born",
	"my dog", "my cat", "my family", "my mom", "my dad",
	"my brother", "my sister", "my wife", "my husband", "my girlfriend", "my boyfriend",
}

// preferenceMarkers carry tastes rather than biography.
var preferenceMarkers = []string{
	"i love", "i like", "i enjoy",
	"i hate", "i can't stand", "i dislike",
	"my favorite", "my favourite",
}

// quietMarkers signal the operator wants to be left alone for a while.
var quietMarkers = []string{
	"don't text me", "dont text me", "don't write me", "don't message me",
	"stop texting", "leave me alone", "need some space", "need to be alone",
}

// QuietRequested reports whether a message asks for silence.
func QuietRequested(userMessage string) bool {
	return containsAny(strings.ToLower(userMessage), quietMarkers)
}

// emotionMarkers signal emotional weight rather than facts.
var emotionMarkers = []string{
	"i feel", "i felt", "i miss", "i'm scared", "i'm afraid",
	"i'm so happy", "i'm sad", "i'm tired", "i'm stressed", "i'm worried",
	"i cried", "i can't sleep", "i'm proud",
}

// ExtractMemories scans a user message for things worth keeping. Facts get
// importance 6, preferences 5, emotional statements 5 with a raised
// emotional intensity. Messages with no marker produce nothing; the
// conversation log keeps the raw exchange anyway.
func ExtractMemories(userMessage string) []memory.Memory {
	text := strings.TrimSpace(userMessage)
	if text == "" {
		return nil
	}
	lc := strings.ToLower(text)

	var out []memory.Memory
	if containsAny(lc, factMarkers) {
		out = append(out, memory.Memory{
			Kind:               memory.KindFact,
			Content:            text,
			Importance:         6,
			EmotionalIntensity: emotionalIntensity(lc),
		})
	} else if containsAny(lc, preferenceMarkers) {
		out = append(out, memory.Memory{
			Kind:               memory.KindPreference,
			Content:            text,
			Importance:         5,
			EmotionalIntensity: emotionalIntensity(lc),
		})
	} else if containsAny(lc, emotionMarkers) {
		out = append(out, memory.Memory{
			Kind:               memory.KindEmotion,
			Content:            text,
			Importance:         5,
			EmotionalIntensity: emotionalIntensity(lc) + 2,
		})
	}
	return out
}

func containsAny(text string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

// emotionalIntensity estimates weight from punctuation and emotion markers.
func emotionalIntensity(lc string) int {
	intensity := 2
	if containsAny(lc, emotionMarkers) {
		intensity += 3
	}
	intensity += strings.Count(lc, "!")
	if intensity > 10 {
		intensity = 10
	}
	return intensity
}
