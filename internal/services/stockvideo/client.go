package stockvideo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"shortforge/internal/config"
	"shortforge/internal/services"
)

// VideoFile is a single downloadable rendition of a stock clip.
type VideoFile struct {
	URL      string
	Width    int
	Height   int
	FileType string
}

// Candidate is one search hit with all of its available renditions. Rank is
// the zero-based position the provider returned it at.
type Candidate struct {
	ID              int64
	DurationSeconds float64
	Rank            int
	Files           []VideoFile
}

// Provider is the capability contract the footage selector requires from a
// stock-video vendor.
type Provider interface {
	Search(ctx context.Context, query string) ([]Candidate, error)
}

// HTTPDoer describes the HTTP client used by the stock-video provider.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type httpProvider struct {
	baseURL string
	apiKey  string
	perPage int
	client  HTTPDoer
}

// NewHTTPProvider constructs an HTTP-backed stock-video provider.
func NewHTTPProvider(baseURL, apiKey string, perPage int, client HTTPDoer) Provider {
	if client == nil {
		client = http.DefaultClient
	}
	if perPage <= 0 {
		perPage = 15
	}
	return &httpProvider{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		perPage: perPage,
		client:  client,
	}
}

// NewConfiguredProvider builds a stock-video provider from application config.
func NewConfiguredProvider(cfg *config.Config) Provider {
	client := &http.Client{Timeout: time.Duration(cfg.BRoll.RequestTimeout) * time.Second}
	return NewHTTPProvider(cfg.BRoll.BaseURL, cfg.BRoll.APIKey, cfg.BRoll.PerPage, client)
}

type searchResponse struct {
	Videos []struct {
		ID       int64   `json:"id"`
		Duration float64 `json:"duration"`
		Files    []struct {
			Link     string `json:"link"`
			Width    int    `json:"width"`
			Height   int    `json:"height"`
			FileType string `json:"file_type"`
		} `json:"video_files"`
	} `json:"videos"`
}

func (p *httpProvider) Search(ctx context.Context, query string) ([]Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, services.Wrap(services.ErrValidation, "broll", "search", "query is empty", nil)
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("orientation", "portrait")
	params.Set("per_page", strconv.Itoa(p.perPage))

	endpoint := p.baseURL + "/videos/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		wrapped := services.Wrap(services.ErrUpstream, "broll", "search", "request failed", err)
		if ctx.Err() == nil {
			return nil, services.MarkTransient(wrapped)
		}
		return nil, wrapped
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail := fmt.Sprintf("provider returned %d", resp.StatusCode)
		wrapped := services.Wrap(services.ErrUpstream, "broll", "search", detail, nil)
		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			return nil, services.MarkTransient(wrapped)
		}
		return nil, wrapped
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, services.Wrap(services.ErrUpstream, "broll", "search", "decode response", err)
	}

	candidates := make([]Candidate, 0, len(decoded.Videos))
	for rank, video := range decoded.Videos {
		files := make([]VideoFile, 0, len(video.Files))
		for _, file := range video.Files {
			if strings.TrimSpace(file.Link) == "" {
				continue
			}
			files = append(files, VideoFile{
				URL:      file.Link,
				Width:    file.Width,
				Height:   file.Height,
				FileType: file.FileType,
			})
		}
		if len(files) == 0 {
			continue
		}
		candidates = append(candidates, Candidate{
			ID:              video.ID,
			DurationSeconds: video.Duration,
			Rank:            rank,
			Files:           files,
		})
	}

	return candidates, nil
}
