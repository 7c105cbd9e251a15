package captions

import (
	"unicode/utf8"

	"shortforge/internal/config"
	"shortforge/internal/timing"
)

// Word is a cue member with its highlight window.
type Word struct {
	Text    string
	StartMs int64
	EndMs   int64
}

// Cue is a group of words shown together on screen. While a cue is visible
// exactly one of its words is highlighted at any instant.
type Cue struct {
	StartMs int64
	EndMs   int64
	Words   []Word
}

// Options bound cue size. Zero values fall back to sensible defaults.
type Options struct {
	MaxWords      int
	MaxDurationMs int64
}

// longWordRunes is the length past which a word ends a group early so the
// line never crowds the frame.
const longWordRunes = 10

// earlyBreakWords is the group size at which a long word forces a break.
const earlyBreakWords = 3

// OptionsFromConfig derives cue bounds from application config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxWords:      cfg.Captions.MaxWordsPerCue,
		MaxDurationMs: int64(cfg.Captions.MaxCueDurationMs),
	}
}

func (o Options) normalized() Options {
	if o.MaxWords <= 0 {
		o.MaxWords = 4
	}
	if o.MaxDurationMs <= 0 {
		o.MaxDurationMs = 4000
	}
	return o
}

// Build groups word spans into cues. The function is pure: the same spans and
// options always yield the same cues, and every input word lands in exactly
// one cue. Empty input yields no cues.
func Build(spans []timing.WordSpan, opts Options) []Cue {
	opts = opts.normalized()
	if len(spans) == 0 {
		return nil
	}

	cues := make([]Cue, 0, (len(spans)+opts.MaxWords-1)/opts.MaxWords)
	current := make([]Word, 0, opts.MaxWords)

	flush := func() {
		if len(current) == 0 {
			return
		}
		cues = append(cues, Cue{
			StartMs: current[0].StartMs,
			EndMs:   current[len(current)-1].EndMs,
			Words:   current,
		})
		current = make([]Word, 0, opts.MaxWords)
	}

	for _, span := range spans {
		word := Word{Text: span.Text, StartMs: span.StartMs, EndMs: span.EndMs}
		if len(current) > 0 && !fits(current, word, opts) {
			flush()
		}
		current = append(current, word)
	}
	flush()

	return cues
}

func fits(current []Word, next Word, opts Options) bool {
	if len(current) >= opts.MaxWords {
		return false
	}
	if len(current) >= earlyBreakWords && utf8.RuneCountInString(next.Text) > longWordRunes {
		return false
	}
	return next.EndMs-current[0].StartMs <= opts.MaxDurationMs
}

// HighlightAt returns the index of the word highlighted at the given instant
// within the cue. Gaps between words keep the preceding word lit so the
// viewer never sees a cue with nothing highlighted.
func HighlightAt(cue Cue, ms int64) int {
	if len(cue.Words) == 0 {
		return -1
	}
	idx := 0
	for i, word := range cue.Words {
		if word.StartMs > ms {
			break
		}
		idx = i
	}
	return idx
}
