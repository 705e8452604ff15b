package companion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumi/internal/memory"
)

func TestExtractFact(t *testing.T) {
	ms := ExtractMemories("My name is Artur and I work as an electrician")
	require.Len(t, ms, 1)
	assert.Equal(t, memory.KindFact, ms[0].Kind)
	assert.Equal(t, 6, ms[0].Importance)
	assert.Contains(t, ms[0].Content, "Artur")
}

func TestExtractPreference(t *testing.T) {
	ms := ExtractMemories("I love rainy evenings with a book")
	require.Len(t, ms, 1)
	assert.Equal(t, memory.KindPreference, ms[0].Kind)
	assert.Equal(t, 5, ms[0].Importance)
}

func TestExtractEmotion(t *testing.T) {
	ms := ExtractMemories("I feel so lost lately, I can't sleep")
	require.Len(t, ms, 1)
	assert.Equal(t, memory.KindEmotion, ms[0].Kind)
	assert.Equal(t, 5, ms[0].Importance)
	assert.GreaterOrEqual(t, ms[0].EmotionalIntensity, 5)
}

func TestExtractNothingFromSmallTalk(t *testing.T) {
	assert.Empty(t, ExtractMemories("ok"))
	assert.Empty(t, ExtractMemories("what did you do today?"))
	assert.Empty(t, ExtractMemories(""))
}

func TestQuietRequested(t *testing.T) {
	assert.True(t, QuietRequested("please leave me alone today"))
	assert.True(t, QuietRequested("Don't text me for a bit, ok?"))
	assert.False(t, QuietRequested("tell me about your day"))
	assert.False(t, QuietRequested(""))
}

func TestExtractIntensityBounded(t *testing.T) {
	ms := ExtractMemories("I love this!!!!!!!!!!!!!!!!")
	require.Len(t, ms, 1)
	assert.Equal(t, memory.KindPreference, ms[0].Kind)
	assert.LessOrEqual(t, ms[0].EmotionalIntensity, 10)
}
