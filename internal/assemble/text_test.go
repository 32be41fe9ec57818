package assemble

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConcatenateJoinsWithNewline(t *testing.T) {
	opts := DefaultTextOptions()
	text, stats := concatenate([]string{"Выдано", "сие свидетельство"}, opts)
	assert.Equal(t, "Выдано\nсие свидетельство", text)
	assert.Equal(t, 0, stats.LineBreaksHandled)
	assert.Equal(t, 0, stats.MergedWords)
}

func TestConcatenateSkipsNoiseLines(t *testing.T) {
	text, stats := concatenate([]string{"", "-", "Hello"}, DefaultTextOptions())
	assert.Equal(t, "Hello", text)
	assert.Equal(t, 2, stats.LineBreaksHandled)
}

func TestConcatenateTrimsBeforeFiltering(t *testing.T) {
	text, stats := concatenate([]string{"  ", " - ", "  word  "}, DefaultTextOptions())
	assert.Equal(t, "word", text)
	assert.Equal(t, 2, stats.LineBreaksHandled)
}

func TestConcatenateCustomDelimiter(t *testing.T) {
	opts := DefaultTextOptions()
	opts.Delimiter = " "
	text, _ := concatenate([]string{"a", "b", "c"}, opts)
	assert.Equal(t, "a b c", text)
}

func TestConcatenateEmptyDelimiterFallsBackToNewline(t *testing.T) {
	text, _ := concatenate([]string{"a", "b"}, TextOptions{})
	assert.Equal(t, "a\nb", text)
}

func TestConcatenateAllNoise(t *testing.T) {
	text, stats := concatenate([]string{"", "-", "  "}, DefaultTextOptions())
	assert.Equal(t, "", text)
	assert.Equal(t, 3, stats.LineBreaksHandled)
}

func TestHyphenMergeDisabledByDefault(t *testing.T) {
	text, stats := concatenate([]string{"пере-", "нос"}, DefaultTextOptions())
	assert.Equal(t, "пере-\nнос", text)
	assert.Equal(t, 0, stats.MergedWords)
}

func TestHyphenMerge(t *testing.T) {
	opts := DefaultTextOptions()
	opts.MergeHyphenBreaks = true

	text, stats := concatenate([]string{"пере-", "нос", "слова"}, opts)
	assert.Equal(t, "перенос\nслова", text)
	assert.Equal(t, 1, stats.MergedWords)
}

func TestHyphenMergeSkipsSentenceStart(t *testing.T) {
	opts := DefaultTextOptions()
	opts.MergeHyphenBreaks = true

	// An uppercase continuation is a new sentence, not a wrapped word.
	text, stats := concatenate([]string{"дано-", "Москва"}, opts)
	assert.Equal(t, "дано-\nМосква", text)
	assert.Equal(t, 0, stats.MergedWords)
}

func TestHyphenMergeChain(t *testing.T) {
	opts := DefaultTextOptions()
	opts.MergeHyphenBreaks = true

	text, stats := concatenate([]string{"сви-", "де-", "тельство"}, opts)
	assert.Equal(t, "свидетельство", text)
	assert.Equal(t, 2, stats.MergedWords)
}

func TestNormalizeTextNFC(t *testing.T) {
	opts := DefaultTextOptions()

	// Decomposed "й" (U+0438 + U+0306) folds to the precomposed rune.
	decomposed := "й"
	assert.Equal(t, "й", normalizeText(decomposed, opts))

	opts.NormalizeUnicode = false
	assert.Equal(t, decomposed, normalizeText(decomposed, opts))
}

func TestStartsUpper(t *testing.T) {
	assert.True(t, startsUpper("Москва"))
	assert.True(t, startsUpper("Word"))
	assert.False(t, startsUpper("нос"))
	assert.False(t, startsUpper("word"))
	assert.False(t, startsUpper(""))
	assert.False(t, startsUpper("1st"))
}
