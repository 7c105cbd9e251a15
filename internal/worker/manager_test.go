package worker

import (
	"context"
	"strings"
	"testing"
	"time"

	"shortforge/internal/broll"
	"shortforge/internal/compose"
	"shortforge/internal/config"
	"shortforge/internal/queue"
	"shortforge/internal/services"
	"shortforge/internal/services/tts"
	"shortforge/internal/testsupport"
	"shortforge/internal/timing"
)

type fakeTTS struct {
	words     []timing.RawWord
	failTimes int
	calls     int
}

func (f *fakeTTS) Synthesize(ctx context.Context, text, voiceID string, settings queue.VoiceSettings) (*tts.Result, error) {
	f.calls++
	if f.calls <= f.failTimes {
		return nil, services.MarkTransient(services.Wrap(services.ErrUpstream, "tts", "synthesize", "provider timeout", nil))
	}
	return &tts.Result{Audio: []byte("fake-audio"), Words: f.words}, nil
}

type fakePlanner struct {
	clips []broll.Clip
	err   error
}

func (f *fakePlanner) Select(ctx context.Context, query, fallback string, targetSeconds float64) ([]broll.Clip, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.clips, nil
}

type fakeFetcher struct {
	failTimes int
	calls     int
}

func (f *fakeFetcher) Fetch(ctx context.Context, dir string, clips []broll.Clip) ([]string, error) {
	f.calls++
	if f.calls <= f.failTimes {
		return nil, services.MarkTransient(services.Wrap(services.ErrUpstream, "broll", "download", "interrupted transfer", nil))
	}
	paths := make([]string, len(clips))
	for i := range clips {
		paths[i] = dir + "/clip.mp4"
	}
	return paths, nil
}

type fakeComposer struct {
	err error
}

func (f *fakeComposer) Compose(ctx context.Context, req compose.Request) (*compose.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &compose.Result{OutputPath: req.OutputPath, DurationSeconds: req.DurationSeconds}, nil
}

func wordsForSeconds(seconds int) []timing.RawWord {
	words := make([]timing.RawWord, 0, seconds*2)
	texts := []string{"alpha", "beta"}
	for i := 0; i < seconds*2; i++ {
		start := float64(i) * 0.5
		words = append(words, timing.RawWord{Text: texts[i%2], Start: start, End: start + 0.5})
	}
	return words
}

func scriptTextFor(words []timing.RawWord) string {
	texts := make([]string, len(words))
	for i, word := range words {
		texts[i] = word.Text
	}
	return strings.Join(texts, " ")
}

type managerFixture struct {
	cfg     *config.Config
	store   *queue.Store
	manager *Manager
	tts     *fakeTTS
	planner *fakePlanner
	fetcher *fakeFetcher
}

func newFixture(t *testing.T, ttsSvc *fakeTTS, planner *fakePlanner, composer *fakeComposer) *managerFixture {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)

	fetcher := &fakeFetcher{}
	manager := NewManager(cfg, store, Deps{
		TTS:      ttsSvc,
		Planner:  planner,
		Fetcher:  fetcher,
		Composer: composer,
	}, nil)

	return &managerFixture{cfg: cfg, store: store, manager: manager, tts: ttsSvc, planner: planner, fetcher: fetcher}
}

func (f *managerFixture) submitAndProcess(t *testing.T, scriptTopic, scriptText string) *queue.Job {
	t.Helper()
	ctx := context.Background()

	script := testsupport.NewScript(t, f.store, scriptTopic, scriptText)
	job, err := f.manager.Submit(ctx, SubmitParams{ScriptID: script.ID})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	claimed, err := f.store.ClaimQueued(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("ClaimQueued: %v %v", claimed, err)
	}
	f.manager.process(ctx, claimed)

	final, err := f.store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	return final
}

func TestProcessCompletesJob(t *testing.T) {
	words := wordsForSeconds(12)
	fixture := newFixture(t,
		&fakeTTS{words: words},
		&fakePlanner{clips: []broll.Clip{{SourceURL: "https://clips.test/a.mp4", Width: 1080, Height: 1920}}},
		&fakeComposer{},
	)

	job := fixture.submitAndProcess(t, "oceans", scriptTextFor(words))

	if job.Status != queue.StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", job.Status, job.ErrorMessage)
	}
	if job.DurationSeconds < 11.9 || job.DurationSeconds > 12.1 {
		t.Errorf("expected ~12s duration, got %v", job.DurationSeconds)
	}
	if !strings.HasSuffix(job.OutputPath, job.ID+".mp4") {
		t.Errorf("unexpected output path %q", job.OutputPath)
	}
	if job.ErrorMessage != "" {
		t.Errorf("completed job should have no error, got %q", job.ErrorMessage)
	}
}

func TestProcessRetriesTransientTTSFailures(t *testing.T) {
	words := wordsForSeconds(5)
	ttsSvc := &fakeTTS{words: words, failTimes: 2}
	fixture := newFixture(t,
		ttsSvc,
		&fakePlanner{clips: []broll.Clip{{SourceURL: "https://clips.test/a.mp4"}}},
		&fakeComposer{},
	)
	fixture.cfg.Workflow.ProviderRetries = 2

	job := fixture.submitAndProcess(t, "oceans", scriptTextFor(words))

	if job.Status != queue.StatusCompleted {
		t.Fatalf("expected completed after retries, got %s (%s)", job.Status, job.ErrorMessage)
	}
	if ttsSvc.calls != 3 {
		t.Errorf("expected 3 synthesis attempts, got %d", ttsSvc.calls)
	}
}

func TestProcessRetriesTransientFootageDownloads(t *testing.T) {
	words := wordsForSeconds(5)
	fixture := newFixture(t,
		&fakeTTS{words: words},
		&fakePlanner{clips: []broll.Clip{{SourceURL: "https://clips.test/a.mp4"}}},
		&fakeComposer{},
	)
	fixture.cfg.Workflow.ProviderRetries = 2
	fixture.fetcher.failTimes = 1

	job := fixture.submitAndProcess(t, "oceans", scriptTextFor(words))

	if job.Status != queue.StatusCompleted {
		t.Fatalf("expected completed after download retry, got %s (%s)", job.Status, job.ErrorMessage)
	}
	if fixture.fetcher.calls != 2 {
		t.Errorf("expected 2 download attempts, got %d", fixture.fetcher.calls)
	}
}

func TestProcessFailsWhenRetriesExhausted(t *testing.T) {
	words := wordsForSeconds(5)
	ttsSvc := &fakeTTS{words: words, failTimes: 10}
	fixture := newFixture(t,
		ttsSvc,
		&fakePlanner{},
		&fakeComposer{},
	)
	fixture.cfg.Workflow.ProviderRetries = 1

	job := fixture.submitAndProcess(t, "oceans", scriptTextFor(words))

	if job.Status != queue.StatusFailed {
		t.Fatalf("expected failed, got %s", job.Status)
	}
	if job.Stage != "tts" {
		t.Errorf("expected failure recorded at tts stage, got %q", job.Stage)
	}
	if ttsSvc.calls != 2 {
		t.Errorf("expected 2 attempts, got %d", ttsSvc.calls)
	}
}

func TestProcessFailsWhenFootageUnavailable(t *testing.T) {
	words := wordsForSeconds(5)
	fixture := newFixture(t,
		&fakeTTS{words: words},
		&fakePlanner{err: services.Wrap(services.ErrBRollUnavailable, "broll", "select", `no usable footage for "oceans"`, nil)},
		&fakeComposer{},
	)

	job := fixture.submitAndProcess(t, "oceans", scriptTextFor(words))

	if job.Status != queue.StatusFailed {
		t.Fatalf("expected failed, got %s", job.Status)
	}
	if !strings.Contains(job.ErrorMessage, "no usable footage") {
		t.Errorf("error should mention footage: %q", job.ErrorMessage)
	}
	if job.Stage != "broll" {
		t.Errorf("expected broll stage, got %q", job.Stage)
	}
}

func TestProcessFailsOnCompositionError(t *testing.T) {
	words := wordsForSeconds(5)
	fixture := newFixture(t,
		&fakeTTS{words: words},
		&fakePlanner{clips: []broll.Clip{{SourceURL: "https://clips.test/a.mp4"}}},
		&fakeComposer{err: services.Wrap(services.ErrComposition, "compose", "render final video", "encoder crashed", nil)},
	)

	job := fixture.submitAndProcess(t, "oceans", scriptTextFor(words))

	if job.Status != queue.StatusFailed {
		t.Fatalf("expected failed, got %s", job.Status)
	}
	if job.Stage != "compose" {
		t.Errorf("expected compose stage, got %q", job.Stage)
	}
}

func TestSubmitRejectsMissingVoice(t *testing.T) {
	fixture := newFixture(t, &fakeTTS{}, &fakePlanner{}, &fakeComposer{})
	fixture.cfg.TTS.DefaultVoiceID = ""

	script := testsupport.NewScript(t, fixture.store, "oceans", "text")
	_, err := fixture.manager.Submit(context.Background(), SubmitParams{ScriptID: script.ID})
	if err == nil {
		t.Fatal("expected validation error")
	}

	jobs, _ := fixture.store.ListRecent(context.Background(), 10)
	if len(jobs) != 0 {
		t.Errorf("rejected submission must not create a job, found %d", len(jobs))
	}
}

func TestSubmitRejectsUnknownScript(t *testing.T) {
	fixture := newFixture(t, &fakeTTS{}, &fakePlanner{}, &fakeComposer{})

	_, err := fixture.manager.Submit(context.Background(), SubmitParams{ScriptID: "missing"})
	if err == nil {
		t.Fatal("expected validation error for unknown script")
	}

	jobs, _ := fixture.store.ListRecent(context.Background(), 10)
	if len(jobs) != 0 {
		t.Errorf("rejected submission must not create a job, found %d", len(jobs))
	}
}

func TestRecoverFailsInterruptedJobs(t *testing.T) {
	fixture := newFixture(t, &fakeTTS{}, &fakePlanner{}, &fakeComposer{})
	ctx := context.Background()

	script := testsupport.NewScript(t, fixture.store, "oceans", "text")
	job, err := fixture.manager.Submit(ctx, SubmitParams{ScriptID: script.ID})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if claimed, _ := fixture.store.ClaimQueued(ctx); claimed == nil {
		t.Fatal("claim failed")
	}

	if err := fixture.manager.recover(ctx); err != nil {
		t.Fatalf("recover: %v", err)
	}

	loaded, _ := fixture.store.GetJob(ctx, job.ID)
	if loaded.Status != queue.StatusFailed {
		t.Errorf("interrupted job should be failed, got %s", loaded.Status)
	}
}

func TestRunProcessesQueueUntilCancelled(t *testing.T) {
	words := wordsForSeconds(3)
	fixture := newFixture(t,
		&fakeTTS{words: words},
		&fakePlanner{clips: []broll.Clip{{SourceURL: "https://clips.test/a.mp4"}}},
		&fakeComposer{},
	)
	ctx := context.Background()

	script := testsupport.NewScript(t, fixture.store, "oceans", scriptTextFor(words))
	job, err := fixture.manager.Submit(ctx, SubmitParams{ScriptID: script.ID})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		_ = fixture.manager.Run(runCtx)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for {
		loaded, _ := fixture.store.GetJob(ctx, job.ID)
		if loaded != nil && loaded.Status.IsTerminal() {
			break
		}
		select {
		case <-deadline:
			cancel()
			t.Fatal("job did not reach a terminal state in time")
		case <-time.After(20 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("manager did not stop after cancellation")
	}

	loaded, _ := fixture.store.GetJob(ctx, job.ID)
	if loaded.Status != queue.StatusCompleted {
		t.Errorf("expected completed, got %s (%s)", loaded.Status, loaded.ErrorMessage)
	}
}
