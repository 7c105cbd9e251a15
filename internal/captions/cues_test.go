package captions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortforge/internal/timing"
)

func spansForWords(words []string, stepMs int64) []timing.WordSpan {
	spans := make([]timing.WordSpan, 0, len(words))
	var cursor int64
	for _, word := range words {
		spans = append(spans, timing.WordSpan{Text: word, StartMs: cursor, EndMs: cursor + stepMs})
		cursor += stepMs
	}
	return spans
}

func TestBuildEmptyInput(t *testing.T) {
	assert.Empty(t, Build(nil, Options{}))
	assert.Empty(t, Build([]timing.WordSpan{}, Options{}))
}

func TestBuildGroupsByMaxWords(t *testing.T) {
	spans := spansForWords([]string{"a", "b", "c", "d", "e", "f", "g", "h", "i"}, 200)

	cues := Build(spans, Options{MaxWords: 4, MaxDurationMs: 10000})
	require.Len(t, cues, 3)
	assert.Len(t, cues[0].Words, 4)
	assert.Len(t, cues[1].Words, 4)
	assert.Len(t, cues[2].Words, 1)
}

func TestBuildSplitsOnDuration(t *testing.T) {
	spans := spansForWords([]string{"slow", "spoken", "words", "here"}, 1500)

	cues := Build(spans, Options{MaxWords: 4, MaxDurationMs: 3000})
	require.Len(t, cues, 2)
	assert.Len(t, cues[0].Words, 2)
	assert.Len(t, cues[1].Words, 2)
}

func TestBuildBreaksEarlyOnLongWord(t *testing.T) {
	spans := spansForWords([]string{"one", "two", "three", "extraordinarily"}, 200)

	cues := Build(spans, Options{MaxWords: 4, MaxDurationMs: 10000})
	require.Len(t, cues, 2)
	assert.Len(t, cues[0].Words, 3)
	assert.Equal(t, "extraordinarily", cues[1].Words[0].Text)
}

func TestBuildCoversEveryWordOnce(t *testing.T) {
	words := []string{"the", "quick", "brown", "fox", "jumps", "over", "the", "lazy", "dog"}
	spans := spansForWords(words, 300)

	cues := Build(spans, Options{MaxWords: 4, MaxDurationMs: 4000})
	var total int
	for _, cue := range cues {
		total += len(cue.Words)
		assert.Equal(t, cue.Words[0].StartMs, cue.StartMs)
		assert.Equal(t, cue.Words[len(cue.Words)-1].EndMs, cue.EndMs)
	}
	assert.Equal(t, len(words), total)
}

func TestBuildIsDeterministic(t *testing.T) {
	spans := spansForWords([]string{"a", "b", "c", "d", "e"}, 250)
	opts := Options{MaxWords: 3, MaxDurationMs: 2000}

	first := Build(spans, opts)
	second := Build(spans, opts)
	assert.Equal(t, first, second)
}

func TestHighlightAtExactlyOneWord(t *testing.T) {
	spans := spansForWords([]string{"one", "two", "three", "four"}, 400)
	cues := Build(spans, Options{MaxWords: 4, MaxDurationMs: 10000})
	require.Len(t, cues, 1)
	cue := cues[0]

	for ms := cue.StartMs; ms < cue.EndMs; ms += 50 {
		idx := HighlightAt(cue, ms)
		require.GreaterOrEqual(t, idx, 0)
		require.Less(t, idx, len(cue.Words))
	}

	assert.Equal(t, 0, HighlightAt(cue, cue.StartMs))
	assert.Equal(t, 1, HighlightAt(cue, 400))
	assert.Equal(t, 3, HighlightAt(cue, 1599))
}

func TestHighlightAtKeepsPreviousWordDuringGap(t *testing.T) {
	cue := Cue{
		StartMs: 0,
		EndMs:   2000,
		Words: []Word{
			{Text: "before", StartMs: 0, EndMs: 400},
			{Text: "after", StartMs: 1500, EndMs: 2000},
		},
	}

	assert.Equal(t, 0, HighlightAt(cue, 900))
	assert.Equal(t, 1, HighlightAt(cue, 1500))
}
