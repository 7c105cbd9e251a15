package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	LibraryDir string `toml:"library_dir"`
	// DataDir holds durable daemon state, kept apart from logs so log
	// rotation or cleanup never touches the job database.
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
	APIBind string `toml:"api_bind"`
}

// TTS contains configuration for the speech synthesis provider.
type TTS struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	DefaultVoiceID string `toml:"default_voice_id"`
	RequestTimeout int    `toml:"request_timeout"`
	// AlignmentTolerance is the fraction of the script token count by which
	// the provider's word count may differ before the timing output is
	// rejected as unusable.
	AlignmentTolerance float64 `toml:"alignment_tolerance"`
}

// BRoll contains configuration for stock footage retrieval.
type BRoll struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	RequestTimeout int    `toml:"request_timeout"`
	// ClipSeconds is the trimmed duration of each selected clip.
	ClipSeconds float64 `toml:"clip_seconds"`
	// MaxZoomFactor bounds how far a landscape clip may be zoomed to fill a
	// vertical frame before it is rejected.
	MaxZoomFactor float64 `toml:"max_zoom_factor"`
	PerPage       int     `toml:"per_page"`
}

// Captions contains configuration for karaoke caption generation.
type Captions struct {
	MaxWordsPerCue   int    `toml:"max_words_per_cue"`
	MaxCueDurationMs int    `toml:"max_cue_duration_ms"`
	BaseColor        string `toml:"base_color"`
	HighlightColor   string `toml:"highlight_color"`
	FontName         string `toml:"font_name"`
	FontSize         int    `toml:"font_size"`
	// SafeZoneMarginV is the vertical margin keeping captions clear of
	// platform UI chrome.
	SafeZoneMarginV int `toml:"safe_zone_margin_v"`
}

// Compose contains configuration for final video assembly.
type Compose struct {
	Width            int     `toml:"width"`
	Height           int     `toml:"height"`
	FPS              int     `toml:"fps"`
	Preset           string  `toml:"preset"`
	CRF              int     `toml:"crf"`
	AudioBitrate     string  `toml:"audio_bitrate"`
	MusicVolume      float64 `toml:"music_volume"`
	MinOutputSeconds float64 `toml:"min_output_seconds"`
	EncodeTimeout    int     `toml:"encode_timeout"`
}

// Workflow contains configuration for worker scheduling and retries.
type Workflow struct {
	Workers             int `toml:"workers"`
	EncodeSlots         int `toml:"encode_slots"`
	QueuePollInterval   int `toml:"queue_poll_interval"`
	ErrorRetryInterval  int `toml:"error_retry_interval"`
	ProviderRetries     int `toml:"provider_retries"`
	ProviderBackoffMs   int `toml:"provider_backoff_ms"`
	StaleStagingMinutes int `toml:"stale_staging_minutes"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for shortforge.
//
// Configuration sections by subsystem:
//   - Paths: directories and API bind address
//   - TTS: speech synthesis provider connection and alignment tolerance
//   - BRoll: stock footage provider connection and selection bounds
//   - Captions: karaoke cue bounds and styling
//   - Compose: output format, codec profile, and audio mix
//   - Workflow: worker pool sizing, polling, and retry policy
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	TTS      TTS      `toml:"tts"`
	BRoll    BRoll    `toml:"broll"`
	Captions Captions `toml:"captions"`
	Compose  Compose  `toml:"compose"`
	Workflow Workflow `toml:"workflow"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/shortforge/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("shortforge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// SampleConfig returns the embedded annotated sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.LibraryDir, c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name used for composition.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for media validation.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LibraryDir, err = expandPath(c.Paths.LibraryDir); err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}

	if key := strings.TrimSpace(os.Getenv("SHORTFORGE_TTS_API_KEY")); key != "" {
		c.TTS.APIKey = key
	}
	if key := strings.TrimSpace(os.Getenv("SHORTFORGE_BROLL_API_KEY")); key != "" {
		c.BRoll.APIKey = key
	}
	c.TTS.BaseURL = strings.TrimRight(strings.TrimSpace(c.TTS.BaseURL), "/")
	c.BRoll.BaseURL = strings.TrimRight(strings.TrimSpace(c.BRoll.BaseURL), "/")

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
