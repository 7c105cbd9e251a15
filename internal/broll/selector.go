package broll

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"shortforge/internal/config"
	"shortforge/internal/services"
	"shortforge/internal/services/stockvideo"
)

// Clip is a selected piece of footage. Each clip contributes a fixed slice of
// screen time; the composition layer loops the ordered list until the
// narration is covered.
type Clip struct {
	SourceURL       string
	Width           int
	Height          int
	DurationSeconds float64
}

// Selector turns stock-footage search results into an ordered clip list.
type Selector struct {
	provider    stockvideo.Provider
	clipSeconds float64
	maxZoom     float64
	frameWidth  int
	frameHeight int
}

// NewSelector builds a selector from application config.
func NewSelector(provider stockvideo.Provider, cfg *config.Config) *Selector {
	return &Selector{
		provider:    provider,
		clipSeconds: cfg.BRoll.ClipSeconds,
		maxZoom:     cfg.BRoll.MaxZoomFactor,
		frameWidth:  cfg.Compose.Width,
		frameHeight: cfg.Compose.Height,
	}
}

// Select searches for footage matching query and returns enough distinct
// clips to cover targetSeconds of narration. When the query yields nothing
// usable the fallback query is tried once. Selection is deterministic for a
// given result set.
func (s *Selector) Select(ctx context.Context, query, fallback string, targetSeconds float64) ([]Clip, error) {
	clips, err := s.selectFromQuery(ctx, query, targetSeconds)
	if err != nil {
		return nil, err
	}
	if len(clips) == 0 && fallback != "" && !strings.EqualFold(fallback, query) {
		clips, err = s.selectFromQuery(ctx, fallback, targetSeconds)
		if err != nil {
			return nil, err
		}
	}
	if len(clips) == 0 {
		detail := fmt.Sprintf("no usable footage for %q", query)
		return nil, services.Wrap(services.ErrBRollUnavailable, "broll", "select", detail, nil)
	}
	return clips, nil
}

type scoredClip struct {
	clip Clip
	area int
	rank int
}

func (s *Selector) selectFromQuery(ctx context.Context, query string, targetSeconds float64) ([]Clip, error) {
	candidates, err := s.provider.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	scored := make([]scoredClip, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		file, ok := s.bestFile(candidate.Files)
		if !ok {
			continue
		}
		if _, dup := seen[file.URL]; dup {
			continue
		}
		seen[file.URL] = struct{}{}
		scored = append(scored, scoredClip{
			clip: Clip{
				SourceURL:       file.URL,
				Width:           file.Width,
				Height:          file.Height,
				DurationSeconds: candidate.DurationSeconds,
			},
			area: file.Width * file.Height,
			rank: candidate.Rank,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].area != scored[j].area {
			return scored[i].area > scored[j].area
		}
		return scored[i].rank < scored[j].rank
	})

	needed := s.clipsNeeded(targetSeconds)
	if needed > len(scored) {
		needed = len(scored)
	}
	clips := make([]Clip, 0, needed)
	for _, sc := range scored[:needed] {
		clips = append(clips, sc.clip)
	}
	return clips, nil
}

// bestFile picks the rendition that fills the output frame with the least
// upscaling, rejecting anything that would need more zoom than allowed.
func (s *Selector) bestFile(files []stockvideo.VideoFile) (stockvideo.VideoFile, bool) {
	best := stockvideo.VideoFile{}
	bestScale := math.Inf(1)
	for _, file := range files {
		if file.Width <= 0 || file.Height <= 0 {
			continue
		}
		scale := math.Max(
			float64(s.frameWidth)/float64(file.Width),
			float64(s.frameHeight)/float64(file.Height),
		)
		if scale > s.maxZoom {
			continue
		}
		if scale < bestScale {
			best = file
			bestScale = scale
		}
	}
	return best, !math.IsInf(bestScale, 1)
}

func (s *Selector) clipsNeeded(targetSeconds float64) int {
	if targetSeconds <= 0 || s.clipSeconds <= 0 {
		return 1
	}
	needed := int(math.Ceil(targetSeconds / s.clipSeconds))
	if needed < 1 {
		needed = 1
	}
	return needed
}
