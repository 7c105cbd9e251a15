package tts

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortforge/internal/queue"
	"shortforge/internal/services"
)

func synthesisHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}
}

func TestSynthesizeDecodesAudioAndWords(t *testing.T) {
	audio := base64.StdEncoding.EncodeToString([]byte("mp3-bytes"))
	var gotPath, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("xi-api-key")
		fmt.Fprintf(w, `{"audio_base64":%q,"words":[{"text":"hello","start":0,"end":0.5},{"text":"world","start":0.5,"end":1.0}]}`, audio)
	}))
	defer srv.Close()

	svc := NewHTTPService(srv.URL, "secret", srv.Client())
	result, err := svc.Synthesize(context.Background(), "hello world", "voice-1", queue.VoiceSettings{})
	require.NoError(t, err)

	assert.Equal(t, []byte("mp3-bytes"), result.Audio)
	require.Len(t, result.Words, 2)
	assert.Equal(t, "hello", result.Words[0].Text)
	assert.Equal(t, 0.5, result.Words[1].Start)
	assert.Equal(t, "/v1/text-to-speech/voice-1/with-timestamps", gotPath)
	assert.Equal(t, "secret", gotKey)
}

func TestSynthesizeServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(synthesisHandler(http.StatusBadGateway, "upstream down"))
	defer srv.Close()

	svc := NewHTTPService(srv.URL, "", srv.Client())
	_, err := svc.Synthesize(context.Background(), "text", "voice-1", queue.VoiceSettings{})
	require.ErrorIs(t, err, services.ErrUpstream)
	assert.True(t, services.IsTransient(err))
}

func TestSynthesizeRateLimitIsTransient(t *testing.T) {
	srv := httptest.NewServer(synthesisHandler(http.StatusTooManyRequests, "slow down"))
	defer srv.Close()

	svc := NewHTTPService(srv.URL, "", srv.Client())
	_, err := svc.Synthesize(context.Background(), "text", "voice-1", queue.VoiceSettings{})
	require.ErrorIs(t, err, services.ErrUpstream)
	assert.True(t, services.IsTransient(err))
}

func TestSynthesizeClientErrorIsNotTransient(t *testing.T) {
	srv := httptest.NewServer(synthesisHandler(http.StatusUnauthorized, "bad key"))
	defer srv.Close()

	svc := NewHTTPService(srv.URL, "", srv.Client())
	_, err := svc.Synthesize(context.Background(), "text", "voice-1", queue.VoiceSettings{})
	require.ErrorIs(t, err, services.ErrUpstream)
	assert.False(t, services.IsTransient(err))
}

func TestSynthesizeRejectsEmptyInputs(t *testing.T) {
	svc := NewHTTPService("http://unused", "", nil)

	_, err := svc.Synthesize(context.Background(), "", "voice-1", queue.VoiceSettings{})
	require.ErrorIs(t, err, services.ErrValidation)

	_, err = svc.Synthesize(context.Background(), "text", "", queue.VoiceSettings{})
	require.ErrorIs(t, err, services.ErrValidation)
}

func TestSynthesizeRejectsEmptyAudio(t *testing.T) {
	srv := httptest.NewServer(synthesisHandler(http.StatusOK, `{"audio_base64":"","words":[]}`))
	defer srv.Close()

	svc := NewHTTPService(srv.URL, "", srv.Client())
	_, err := svc.Synthesize(context.Background(), "text", "voice-1", queue.VoiceSettings{})
	require.ErrorIs(t, err, services.ErrUpstream)
}
