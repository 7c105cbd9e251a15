package timing

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"shortforge/internal/services"
)

// RawWord is a single word timing as reported by a speech-synthesis provider,
// with offsets in seconds.
type RawWord struct {
	Text  string
	Start float64
	End   float64
}

// WordSpan is a canonical word timing in milliseconds. Spans in a sequence are
// ordered by StartMs, non-overlapping, and EndMs > StartMs for every element.
type WordSpan struct {
	Text    string
	StartMs int64
	EndMs   int64
}

// Duration returns the narration duration defined by the final span's EndMs.
func Duration(spans []WordSpan) int64 {
	if len(spans) == 0 {
		return 0
	}
	return spans[len(spans)-1].EndMs
}

// Normalize converts raw provider timings into canonical word spans. Vendor
// overlaps are resolved by clamping the earlier span's end to the next span's
// start; gaps are preserved because silence is legitimate. The word count must
// match the script's token count within tolerance (a fraction of the token
// count); a larger mismatch indicates an unusable synthesis result and aborts.
func Normalize(raw []RawWord, scriptText string, tolerance float64) ([]WordSpan, error) {
	if len(raw) == 0 {
		return nil, services.Wrap(services.ErrAlignment, "tts", "normalize", "provider returned no word timings", nil)
	}

	tokens := len(strings.Fields(scriptText))
	if tokens > 0 {
		mismatch := math.Abs(float64(len(raw) - tokens))
		if mismatch > tolerance*float64(tokens) {
			detail := fmt.Sprintf("provider returned %d words for a %d-token script", len(raw), tokens)
			return nil, services.Wrap(services.ErrAlignment, "tts", "normalize", detail, nil)
		}
	}

	spans := make([]WordSpan, 0, len(raw))
	for _, word := range raw {
		spans = append(spans, WordSpan{
			Text:    strings.TrimSpace(word.Text),
			StartMs: int64(math.Round(word.Start * 1000)),
			EndMs:   int64(math.Round(word.End * 1000)),
		})
	}

	sort.SliceStable(spans, func(i, j int) bool {
		return spans[i].StartMs < spans[j].StartMs
	})

	var cursor int64
	for i := range spans {
		if spans[i].StartMs < cursor {
			spans[i].StartMs = cursor
		}
		if i+1 < len(spans) && spans[i+1].StartMs > spans[i].StartMs && spans[i].EndMs > spans[i+1].StartMs {
			spans[i].EndMs = spans[i+1].StartMs
		}
		if spans[i].EndMs <= spans[i].StartMs {
			spans[i].EndMs = spans[i].StartMs + 1
		}
		cursor = spans[i].EndMs
	}

	return spans, nil
}

// Validate reports the first invariant violation in a span sequence, or nil.
func Validate(spans []WordSpan) error {
	for i, span := range spans {
		if span.EndMs <= span.StartMs {
			return fmt.Errorf("span %d (%q) has end %dms <= start %dms", i, span.Text, span.EndMs, span.StartMs)
		}
		if i > 0 && span.StartMs < spans[i-1].EndMs {
			return fmt.Errorf("span %d (%q) overlaps previous span", i, span.Text)
		}
	}
	return nil
}
