package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"shortforge/internal/config"
	"shortforge/internal/queue"
	"shortforge/internal/services"
	"shortforge/internal/timing"
)

// Result carries a completed synthesis: encoded narration audio plus the
// provider's raw word timings.
type Result struct {
	Audio []byte
	Words []timing.RawWord
}

// Service is the capability contract the pipeline requires from a
// speech-synthesis vendor.
type Service interface {
	Synthesize(ctx context.Context, text, voiceID string, settings queue.VoiceSettings) (*Result, error)
}

// HTTPDoer describes the HTTP client used by the TTS service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type httpService struct {
	baseURL string
	apiKey  string
	client  HTTPDoer
}

// NewHTTPService constructs an HTTP-backed TTS service.
func NewHTTPService(baseURL, apiKey string, client HTTPDoer) Service {
	if client == nil {
		client = http.DefaultClient
	}
	return &httpService{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		client:  client,
	}
}

// NewConfiguredService builds a TTS service from application config.
func NewConfiguredService(cfg *config.Config) Service {
	client := &http.Client{Timeout: time.Duration(cfg.TTS.RequestTimeout) * time.Second}
	return NewHTTPService(cfg.TTS.BaseURL, cfg.TTS.APIKey, client)
}

type synthesizeRequest struct {
	Text          string              `json:"text"`
	VoiceSettings queue.VoiceSettings `json:"voice_settings"`
}

type synthesizeResponse struct {
	AudioBase64 string `json:"audio_base64"`
	Words       []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"words"`
}

func (s *httpService) Synthesize(ctx context.Context, text, voiceID string, settings queue.VoiceSettings) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, services.Wrap(services.ErrValidation, "tts", "synthesize", "script text is empty", nil)
	}
	if strings.TrimSpace(voiceID) == "" {
		return nil, services.Wrap(services.ErrValidation, "tts", "synthesize", "voice id is empty", nil)
	}

	payload, err := json.Marshal(synthesizeRequest{Text: text, VoiceSettings: settings})
	if err != nil {
		return nil, fmt.Errorf("encode synthesize request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s/with-timestamps", s.baseURL, url.PathEscape(voiceID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build synthesize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("xi-api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		wrapped := services.Wrap(services.ErrUpstream, "tts", "synthesize", "request failed", err)
		if isTimeout(err) || ctx.Err() == nil {
			return nil, services.MarkTransient(wrapped)
		}
		return nil, wrapped
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail := fmt.Sprintf("provider returned %d", resp.StatusCode)
		wrapped := services.Wrap(services.ErrUpstream, "tts", "synthesize", detail, nil)
		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			return nil, services.MarkTransient(wrapped)
		}
		return nil, wrapped
	}

	var decoded synthesizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, services.Wrap(services.ErrUpstream, "tts", "synthesize", "decode response", err)
	}

	audio, err := base64.StdEncoding.DecodeString(decoded.AudioBase64)
	if err != nil {
		return nil, services.Wrap(services.ErrUpstream, "tts", "synthesize", "decode audio payload", err)
	}
	if len(audio) == 0 {
		return nil, services.Wrap(services.ErrUpstream, "tts", "synthesize", "provider returned empty audio", nil)
	}

	words := make([]timing.RawWord, 0, len(decoded.Words))
	for _, word := range decoded.Words {
		words = append(words, timing.RawWord{Text: word.Text, Start: word.Start, End: word.End})
	}

	return &Result{Audio: audio, Words: words}, nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}
