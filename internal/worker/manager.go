package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"shortforge/internal/broll"
	"shortforge/internal/captions"
	"shortforge/internal/compose"
	"shortforge/internal/config"
	"shortforge/internal/logging"
	"shortforge/internal/queue"
	"shortforge/internal/services"
	"shortforge/internal/services/tts"
	"shortforge/internal/staging"
	"shortforge/internal/timing"
)

// FootagePlanner selects clips covering a narration.
type FootagePlanner interface {
	Select(ctx context.Context, query, fallback string, targetSeconds float64) ([]broll.Clip, error)
}

// FootageFetcher downloads selected clips into a directory.
type FootageFetcher interface {
	Fetch(ctx context.Context, dir string, clips []broll.Clip) ([]string, error)
}

// Composer renders the final video.
type Composer interface {
	Compose(ctx context.Context, req compose.Request) (*compose.Result, error)
}

// Deps bundles the pipeline collaborators the manager drives.
type Deps struct {
	TTS      tts.Service
	Planner  FootagePlanner
	Fetcher  FootageFetcher
	Composer Composer
}

// Manager owns the worker pool that processes the job queue.
type Manager struct {
	cfg         *config.Config
	store       *queue.Store
	deps        Deps
	logger      *slog.Logger
	encodeSlots chan struct{}
}

// NewManager constructs a manager. The logger may be nil.
func NewManager(cfg *config.Config, store *queue.Store, deps Deps, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	slots := cfg.Workflow.EncodeSlots
	if slots <= 0 {
		slots = 1
	}
	return &Manager{
		cfg:         cfg,
		store:       store,
		deps:        deps,
		logger:      logging.WithComponent(logger, "worker"),
		encodeSlots: make(chan struct{}, slots),
	}
}

// SubmitParams carries a generation request before validation.
type SubmitParams struct {
	ScriptID        string
	VoiceID         string
	VoiceSettings   queue.VoiceSettings
	BackgroundMusic string
	BRollQuery      string
}

// Submit validates a generation request and enqueues a job. Validation
// failures reject the request without creating a job.
func (m *Manager) Submit(ctx context.Context, params SubmitParams) (*queue.Job, error) {
	scriptID := strings.TrimSpace(params.ScriptID)
	if scriptID == "" {
		return nil, services.Wrap(services.ErrValidation, "submit", "", "script_id is required", nil)
	}
	script, err := m.store.ScriptByID(ctx, scriptID)
	if err != nil {
		return nil, err
	}
	if script == nil {
		return nil, services.Wrap(services.ErrValidation, "submit", "", fmt.Sprintf("script %q not found", scriptID), nil)
	}

	voiceID := strings.TrimSpace(params.VoiceID)
	if voiceID == "" {
		voiceID = strings.TrimSpace(m.cfg.TTS.DefaultVoiceID)
	}
	if voiceID == "" {
		return nil, services.Wrap(services.ErrValidation, "submit", "", "no voice_id given and no default voice configured", nil)
	}

	music := strings.TrimSpace(params.BackgroundMusic)
	if music != "" {
		if _, statErr := os.Stat(music); statErr != nil {
			return nil, services.Wrap(services.ErrValidation, "submit", "", fmt.Sprintf("background music %q not readable", music), statErr)
		}
	}

	job, err := m.store.NewJob(ctx, queue.NewJobParams{
		ScriptID:        scriptID,
		VoiceID:         voiceID,
		VoiceSettings:   params.VoiceSettings,
		BackgroundMusic: music,
		BRollQuery:      strings.TrimSpace(params.BRollQuery),
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("job queued",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("script_id", scriptID),
		logging.String(logging.FieldEventType, "job_queued"),
	)
	return job, nil
}

// Run recovers interrupted state, then polls the queue with the configured
// worker pool until the context is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.recover(ctx); err != nil {
		return err
	}

	workers := m.cfg.Workflow.Workers
	if workers <= 0 {
		workers = 1
	}
	poll := time.Duration(m.cfg.Workflow.QueuePollInterval) * time.Second
	if poll <= 0 {
		poll = 3 * time.Second
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.workLoop(ctx, poll)
		}()
	}
	wg.Wait()
	return nil
}

// recover fails jobs a previous run left mid-flight and sweeps old scratch
// directories. Processing never resumes across restarts because a terminal
// record is more honest than silently replaying half-finished work.
func (m *Manager) recover(ctx context.Context) error {
	failed, err := m.store.FailStuckProcessing(ctx, "interrupted by daemon restart")
	if err != nil {
		return fmt.Errorf("recover interrupted jobs: %w", err)
	}
	if failed > 0 {
		m.logger.Warn("failed jobs interrupted by a previous run",
			logging.Int64("count", failed),
			logging.String(logging.FieldEventType, "jobs_recovered"),
		)
	}

	maxAge := time.Duration(m.cfg.Workflow.StaleStagingMinutes) * time.Minute
	if maxAge > 0 {
		staging.CleanStale(m.cfg.Paths.StagingDir, maxAge, m.logger)
	}
	return nil
}

func (m *Manager) workLoop(ctx context.Context, poll time.Duration) {
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := m.store.ClaimQueued(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.logger.Error("claim queued job",
				logging.Error(err),
				logging.String(logging.FieldEventType, "claim_failed"),
			)
		} else if job != nil {
			m.process(ctx, job)
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(poll):
		}
	}
}

// process drives one job through every stage. The first stage error is
// terminal: the job is marked failed with the stage recorded and no partial
// output is published.
func (m *Manager) process(ctx context.Context, job *queue.Job) {
	logger := m.logger.With(logging.String(logging.FieldJobID, job.ID))
	logger.Info("job started", logging.String(logging.FieldEventType, "job_started"))

	workDir, err := staging.EnsureJobDir(m.cfg.Paths.StagingDir, job.ID)
	if err != nil {
		m.fail(ctx, job, "staging", err, logger)
		return
	}
	defer func() {
		if removeErr := staging.RemoveJobDir(m.cfg.Paths.StagingDir, job.ID); removeErr != nil {
			logger.Warn("staging cleanup failed", logging.Error(removeErr))
		}
	}()

	result, err := m.runStages(ctx, job, workDir, logger)
	if err != nil {
		m.fail(ctx, job, job.Stage, err, logger)
		return
	}

	job.Status = queue.StatusCompleted
	job.Stage = ""
	job.DurationSeconds = result.DurationSeconds
	job.OutputPath = result.OutputPath
	job.ErrorMessage = ""
	if err := m.store.UpdateJob(ctx, job); err != nil {
		logger.Error("persist completed job", logging.Error(err))
		return
	}
	logger.Info("job completed",
		logging.Float64("duration_seconds", result.DurationSeconds),
		logging.String("output", result.OutputPath),
		logging.String(logging.FieldEventType, "job_completed"),
	)
}

func (m *Manager) runStages(ctx context.Context, job *queue.Job, workDir string, logger *slog.Logger) (*compose.Result, error) {
	script, err := m.store.ScriptByID(ctx, job.ScriptID)
	if err != nil {
		return nil, err
	}
	if script == nil {
		return nil, services.Wrap(services.ErrValidation, "tts", "load script", fmt.Sprintf("script %q not found", job.ScriptID), nil)
	}

	retry := services.RetryPolicy{
		Attempts: m.cfg.Workflow.ProviderRetries,
		Backoff:  time.Duration(m.cfg.Workflow.ProviderBackoffMs) * time.Millisecond,
	}

	// Narration.
	m.setStage(ctx, job, "tts", logger)
	var synth *tts.Result
	err = services.Retry(ctx, retry, func(ctx context.Context) error {
		var synthErr error
		synth, synthErr = m.deps.TTS.Synthesize(ctx, script.Text, job.VoiceID, job.VoiceSettings)
		return synthErr
	})
	if err != nil {
		return nil, err
	}
	narrationPath := filepath.Join(workDir, "narration.mp3")
	if err := os.WriteFile(narrationPath, synth.Audio, 0o644); err != nil {
		return nil, fmt.Errorf("write narration audio: %w", err)
	}

	// Word timing.
	m.setStage(ctx, job, "timing", logger)
	spans, err := timing.Normalize(synth.Words, script.Text, m.cfg.TTS.AlignmentTolerance)
	if err != nil {
		return nil, err
	}
	durationSeconds := float64(timing.Duration(spans)) / 1000.0

	// Footage.
	m.setStage(ctx, job, "broll", logger)
	query := job.BRollQuery
	if strings.TrimSpace(query) == "" {
		query = script.Topic
	}
	var clips []broll.Clip
	err = services.Retry(ctx, retry, func(ctx context.Context) error {
		var selectErr error
		clips, selectErr = m.deps.Planner.Select(ctx, query, script.Topic, durationSeconds)
		return selectErr
	})
	if err != nil {
		return nil, err
	}
	var clipPaths []string
	err = services.Retry(ctx, retry, func(ctx context.Context) error {
		var fetchErr error
		clipPaths, fetchErr = m.deps.Fetcher.Fetch(ctx, workDir, clips)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}

	// Captions.
	m.setStage(ctx, job, "captions", logger)
	cues := captions.Build(spans, captions.OptionsFromConfig(m.cfg))
	subtitlePath := filepath.Join(workDir, "captions.ass")
	document := captions.RenderASS(cues, captions.StyleFromConfig(m.cfg))
	if err := os.WriteFile(subtitlePath, []byte(document), 0o644); err != nil {
		return nil, fmt.Errorf("write subtitle track: %w", err)
	}

	// Final render. Encode slots cap concurrent ffmpeg work below the worker
	// count so footage fetching keeps overlapping with encoding.
	m.setStage(ctx, job, "compose", logger)
	select {
	case m.encodeSlots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-m.encodeSlots }()

	outputPath := filepath.Join(m.cfg.Paths.LibraryDir, job.ID+".mp4")
	return m.deps.Composer.Compose(ctx, compose.Request{
		WorkDir:         workDir,
		ClipPaths:       clipPaths,
		NarrationPath:   narrationPath,
		MusicPath:       job.BackgroundMusic,
		SubtitlePath:    subtitlePath,
		OutputPath:      outputPath,
		DurationSeconds: durationSeconds,
	})
}

func (m *Manager) setStage(ctx context.Context, job *queue.Job, stage string, logger *slog.Logger) {
	job.Stage = stage
	if err := m.store.UpdateJob(ctx, job); err != nil {
		logger.Warn("persist stage transition",
			logging.String(logging.FieldStage, stage),
			logging.Error(err),
		)
	}
	logger.Info("stage started",
		logging.String(logging.FieldStage, stage),
		logging.String(logging.FieldEventType, "stage_started"),
	)
}

func (m *Manager) fail(ctx context.Context, job *queue.Job, stage string, cause error, logger *slog.Logger) {
	job.Stage = stage
	job.SetFailed(cause.Error())
	if err := m.store.UpdateJob(ctx, job); err != nil {
		logger.Error("persist failed job", logging.Error(err))
	}
	logger.Error("job failed",
		logging.String(logging.FieldStage, stage),
		logging.Error(cause),
		logging.String(logging.FieldEventType, "job_failed"),
	)
}
