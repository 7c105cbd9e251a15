package captions

import (
	"fmt"
	"strings"

	"shortforge/internal/config"
)

// Style controls the rendered look of the subtitle track.
type Style struct {
	PlayResX       int
	PlayResY       int
	FontName       string
	FontSize       int
	BaseColor      string
	HighlightColor string
	MarginV        int
}

// StyleFromConfig derives the subtitle style from application config.
func StyleFromConfig(cfg *config.Config) Style {
	return Style{
		PlayResX:       cfg.Compose.Width,
		PlayResY:       cfg.Compose.Height,
		FontName:       cfg.Captions.FontName,
		FontSize:       cfg.Captions.FontSize,
		BaseColor:      cfg.Captions.BaseColor,
		HighlightColor: cfg.Captions.HighlightColor,
		MarginV:        cfg.Captions.SafeZoneMarginV,
	}
}

// RenderASS serializes cues as an ASS subtitle document. Each word of a cue
// gets its own Dialogue line carrying the full cue text with that word
// recolored, so the renderer swaps highlights without re-laying-out the line.
func RenderASS(cues []Cue, style Style) string {
	var b strings.Builder

	fmt.Fprintf(&b, "[Script Info]\n")
	fmt.Fprintf(&b, "ScriptType: v4.00+\n")
	fmt.Fprintf(&b, "PlayResX: %d\n", style.PlayResX)
	fmt.Fprintf(&b, "PlayResY: %d\n", style.PlayResY)
	fmt.Fprintf(&b, "WrapStyle: 0\n\n")

	fmt.Fprintf(&b, "[V4+ Styles]\n")
	fmt.Fprintf(&b, "Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	fmt.Fprintf(&b, "Style: Default,%s,%d,%s,%s,&H00000000,&H80000000,-1,0,0,0,100,100,0,0,1,4,2,2,40,40,%d,1\n\n",
		style.FontName, style.FontSize, style.BaseColor, style.BaseColor, style.MarginV)

	fmt.Fprintf(&b, "[Events]\n")
	fmt.Fprintf(&b, "Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")

	highlight := overrideColor(style.HighlightColor)
	base := overrideColor(style.BaseColor)

	for _, cue := range cues {
		for i := range cue.Words {
			start := cue.Words[i].StartMs
			end := cue.EndMs
			if i+1 < len(cue.Words) {
				end = cue.Words[i+1].StartMs
			}
			if end <= start {
				continue
			}
			fmt.Fprintf(&b, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n",
				assTime(start), assTime(end), dialogueText(cue.Words, i, highlight, base))
		}
	}

	return b.String()
}

func dialogueText(words []Word, highlighted int, highlight, base string) string {
	parts := make([]string, 0, len(words))
	for i, word := range words {
		text := sanitize(word.Text)
		if i == highlighted {
			text = fmt.Sprintf("{\\c%s}%s{\\c%s}", highlight, text, base)
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, " ")
}

// overrideColor reduces a style colour (&HAABBGGRR) to the alpha-free
// &HBBGGRR& form inline override tags expect.
func overrideColor(styleColor string) string {
	hex := strings.TrimPrefix(strings.TrimSpace(styleColor), "&H")
	hex = strings.TrimSuffix(hex, "&")
	if len(hex) == 8 {
		hex = hex[2:]
	}
	return "&H" + hex + "&"
}

var dialogueSanitizer = strings.NewReplacer("{", "", "}", "", "\\", "", "\n", " ", "\r", "")

func sanitize(text string) string {
	return dialogueSanitizer.Replace(text)
}

// assTime formats milliseconds as the H:MM:SS.CC timestamp ASS uses.
func assTime(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	cs := ms / 10
	seconds := cs / 100
	return fmt.Sprintf("%d:%02d:%02d.%02d", seconds/3600, (seconds/60)%60, seconds%60, cs%100)
}
