package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTTS(); err != nil {
		return err
	}
	if err := c.validateBRoll(); err != nil {
		return err
	}
	if err := c.validateCaptions(); err != nil {
		return err
	}
	if err := c.validateCompose(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LibraryDir) == "" {
		return errors.New("paths.library_dir must be set")
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	return nil
}

func (c *Config) validateTTS() error {
	if strings.TrimSpace(c.TTS.BaseURL) == "" {
		return errors.New("tts.base_url must be set")
	}
	if c.TTS.RequestTimeout <= 0 {
		return errors.New("tts.request_timeout must be positive")
	}
	if c.TTS.AlignmentTolerance < 0 || c.TTS.AlignmentTolerance > 1 {
		return errors.New("tts.alignment_tolerance must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateBRoll() error {
	if strings.TrimSpace(c.BRoll.BaseURL) == "" {
		return errors.New("broll.base_url must be set")
	}
	if c.BRoll.ClipSeconds <= 0 {
		return errors.New("broll.clip_seconds must be positive")
	}
	if c.BRoll.MaxZoomFactor < 1 {
		return errors.New("broll.max_zoom_factor must be at least 1")
	}
	if c.BRoll.PerPage <= 0 {
		return errors.New("broll.per_page must be positive")
	}
	return nil
}

func (c *Config) validateCaptions() error {
	if c.Captions.MaxWordsPerCue <= 0 {
		return errors.New("captions.max_words_per_cue must be positive")
	}
	if c.Captions.MaxCueDurationMs <= 0 {
		return errors.New("captions.max_cue_duration_ms must be positive")
	}
	if !strings.HasPrefix(c.Captions.BaseColor, "&H") {
		return fmt.Errorf("captions.base_color %q is not an ASS color literal", c.Captions.BaseColor)
	}
	if !strings.HasPrefix(c.Captions.HighlightColor, "&H") {
		return fmt.Errorf("captions.highlight_color %q is not an ASS color literal", c.Captions.HighlightColor)
	}
	return nil
}

func (c *Config) validateCompose() error {
	if c.Compose.Width <= 0 || c.Compose.Height <= 0 {
		return errors.New("compose.width and compose.height must be positive")
	}
	if c.Compose.Height <= c.Compose.Width {
		return errors.New("compose output must be vertical (height > width)")
	}
	if c.Compose.FPS <= 0 {
		return errors.New("compose.fps must be positive")
	}
	if c.Compose.CRF < 0 || c.Compose.CRF > 51 {
		return errors.New("compose.crf must be between 0 and 51")
	}
	if c.Compose.MusicVolume < 0 || c.Compose.MusicVolume >= 1 {
		return errors.New("compose.music_volume must keep music beneath narration (0 <= v < 1)")
	}
	if c.Compose.MinOutputSeconds < 0 {
		return errors.New("compose.min_output_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.Workers <= 0 {
		return errors.New("workflow.workers must be positive")
	}
	if c.Workflow.EncodeSlots <= 0 {
		return errors.New("workflow.encode_slots must be positive")
	}
	if c.Workflow.EncodeSlots > c.Workflow.Workers {
		return errors.New("workflow.encode_slots must not exceed workflow.workers")
	}
	if c.Workflow.QueuePollInterval <= 0 {
		return errors.New("workflow.queue_poll_interval must be positive")
	}
	if c.Workflow.ProviderRetries < 0 {
		return errors.New("workflow.provider_retries must not be negative")
	}
	return nil
}
