package broll

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"shortforge/internal/services"
)

// HTTPDoer describes the HTTP client used for footage downloads.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Downloader fetches selected clips into a job's staging directory.
type Downloader struct {
	client HTTPDoer
}

// NewDownloader constructs a footage downloader. A nil client gets a default
// with a generous timeout since stock clips can run tens of megabytes.
func NewDownloader(client HTTPDoer) *Downloader {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Downloader{client: client}
}

// Fetch downloads every clip into dir and returns the local paths in clip
// order. Files are written through a temp name so a failed transfer never
// leaves a truncated clip behind.
func (d *Downloader) Fetch(ctx context.Context, dir string, clips []Clip) ([]string, error) {
	paths := make([]string, 0, len(clips))
	for i, clip := range clips {
		dest := filepath.Join(dir, fmt.Sprintf("broll-%02d.mp4", i))
		if err := d.fetchOne(ctx, clip.SourceURL, dest); err != nil {
			return nil, err
		}
		paths = append(paths, dest)
	}
	return paths, nil
}

func (d *Downloader) fetchOne(ctx context.Context, sourceURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		wrapped := services.Wrap(services.ErrUpstream, "broll", "download", "request failed", err)
		if ctx.Err() == nil {
			return services.MarkTransient(wrapped)
		}
		return wrapped
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail := fmt.Sprintf("footage host returned %d", resp.StatusCode)
		wrapped := services.Wrap(services.ErrUpstream, "broll", "download", detail, nil)
		if resp.StatusCode >= http.StatusInternalServerError {
			return services.MarkTransient(wrapped)
		}
		return wrapped
	}

	tmp := dest + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create footage file: %w", err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(tmp)
		return services.MarkTransient(services.Wrap(services.ErrUpstream, "broll", "download", "transfer interrupted", err))
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close footage file: %w", err)
	}
	return os.Rename(tmp, dest)
}
