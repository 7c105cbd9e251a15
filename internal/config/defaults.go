package config

const (
	defaultStagingDir          = "~/.local/share/shortforge/staging"
	defaultLibraryDir          = "~/.local/share/shortforge/library"
	defaultDataDir             = "~/.local/share/shortforge/data"
	defaultLogDir              = "~/.local/share/shortforge/logs"
	defaultAPIBind             = "127.0.0.1:8742"
	defaultTTSBaseURL          = "https://api.elevenlabs.io"
	defaultTTSRequestTimeout   = 120
	defaultAlignmentTolerance  = 0.10
	defaultBRollBaseURL        = "https://api.pexels.com"
	defaultBRollRequestTimeout = 60
	defaultBRollClipSeconds    = 2.5
	defaultBRollMaxZoomFactor  = 1.5
	defaultBRollPerPage        = 20
	defaultMaxWordsPerCue      = 4
	defaultMaxCueDurationMs    = 4000
	defaultBaseColor           = "&H00FFFFFF"
	defaultHighlightColor      = "&H0000FFFF"
	defaultFontName            = "Arial"
	defaultFontSize            = 48
	defaultSafeZoneMarginV     = 120
	defaultComposeWidth        = 1080
	defaultComposeHeight       = 1920
	defaultComposeFPS          = 30
	defaultComposePreset       = "medium"
	defaultComposeCRF          = 23
	defaultAudioBitrate        = "192k"
	defaultMusicVolume         = 0.3
	defaultMinOutputSeconds    = 3.0
	defaultEncodeTimeout       = 600
	defaultWorkers             = 2
	defaultEncodeSlots         = 1
	defaultQueuePollInterval   = 3
	defaultErrorRetryInterval  = 10
	defaultProviderRetries     = 2
	defaultProviderBackoffMs   = 2000
	defaultStaleStagingMinutes = 240
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			LibraryDir: defaultLibraryDir,
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		TTS: TTS{
			BaseURL:            defaultTTSBaseURL,
			RequestTimeout:     defaultTTSRequestTimeout,
			AlignmentTolerance: defaultAlignmentTolerance,
		},
		BRoll: BRoll{
			BaseURL:        defaultBRollBaseURL,
			RequestTimeout: defaultBRollRequestTimeout,
			ClipSeconds:    defaultBRollClipSeconds,
			MaxZoomFactor:  defaultBRollMaxZoomFactor,
			PerPage:        defaultBRollPerPage,
		},
		Captions: Captions{
			MaxWordsPerCue:   defaultMaxWordsPerCue,
			MaxCueDurationMs: defaultMaxCueDurationMs,
			BaseColor:        defaultBaseColor,
			HighlightColor:   defaultHighlightColor,
			FontName:         defaultFontName,
			FontSize:         defaultFontSize,
			SafeZoneMarginV:  defaultSafeZoneMarginV,
		},
		Compose: Compose{
			Width:            defaultComposeWidth,
			Height:           defaultComposeHeight,
			FPS:              defaultComposeFPS,
			Preset:           defaultComposePreset,
			CRF:              defaultComposeCRF,
			AudioBitrate:     defaultAudioBitrate,
			MusicVolume:      defaultMusicVolume,
			MinOutputSeconds: defaultMinOutputSeconds,
			EncodeTimeout:    defaultEncodeTimeout,
		},
		Workflow: Workflow{
			Workers:             defaultWorkers,
			EncodeSlots:         defaultEncodeSlots,
			QueuePollInterval:   defaultQueuePollInterval,
			ErrorRetryInterval:  defaultErrorRetryInterval,
			ProviderRetries:     defaultProviderRetries,
			ProviderBackoffMs:   defaultProviderBackoffMs,
			StaleStagingMinutes: defaultStaleStagingMinutes,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
