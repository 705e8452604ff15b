package companion

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"lumi/internal/persona"
)

func TestClassifyDelayNeverFastWhenDrained(t *testing.T) {
	// low energy wins over a bright mood
	assert.Equal(t, DelaySlow, ClassifyDelay(persona.MoodRadiant, 20))
	// a low mood wins over full energy
	assert.Equal(t, DelaySlow, ClassifyDelay(persona.MoodSad, 100))
	assert.Equal(t, DelaySlow, ClassifyDelay(persona.MoodTired, 90))
}

func TestClassifyDelayBands(t *testing.T) {
	assert.Equal(t, DelayFast, ClassifyDelay(persona.MoodExcited, 80))
	assert.Equal(t, DelayNormal, ClassifyDelay(persona.MoodCalm, 80))
	assert.Equal(t, DelayNormal, ClassifyDelay(persona.MoodHappy, 50)) // positive but tired-ish
}

func TestDelayGapsOrdered(t *testing.T) {
	assert.Less(t, DelayFast.Gap(), DelayNormal.Gap())
	assert.Less(t, DelayNormal.Gap(), DelaySlow.Gap())
}

func TestSplitReplyParagraphs(t *testing.T) {
	parts := SplitReply("first thought\n\nsecond thought\n\nthird thought")
	assert.Equal(t, []string{"first thought", "second thought", "third thought"}, parts)
}

func TestSplitReplyCapsAtThree(t *testing.T) {
	parts := SplitReply("a\n\nb\n\nc\n\nd\n\ne")
	assert.Len(t, parts, 3)
	// nothing dropped
	assert.Equal(t, "a", parts[0])
	assert.Contains(t, parts[2], "d")
	assert.Contains(t, parts[2], "e")
}

func TestSplitReplyShortStaysWhole(t *testing.T) {
	parts := SplitReply("just a quick hello")
	assert.Equal(t, []string{"just a quick hello"}, parts)
}

func TestSplitReplyLongParagraphSplitsAtSentence(t *testing.T) {
	long := strings.Repeat("This is a fairly normal sentence about the day. ", 8)
	parts := SplitReply(long)
	assert.Len(t, parts, 2)
	assert.True(t, strings.HasSuffix(parts[0], "."))
}

func TestSplitReplyEmpty(t *testing.T) {
	assert.Nil(t, SplitReply("   "))
}
