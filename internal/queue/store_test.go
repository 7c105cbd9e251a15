package queue_test

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"shortforge/internal/queue"
	"shortforge/internal/testsupport"
)

func newJob(t *testing.T, store *queue.Store, scriptID string) *queue.Job {
	t.Helper()
	job, err := store.NewJob(context.Background(), queue.NewJobParams{
		ScriptID: scriptID,
		VoiceID:  "voice-1",
	})
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	return job
}

func TestOpenPlacesDatabaseInDataDir(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.MustOpenStore(t, cfg)

	if _, err := os.Stat(filepath.Join(cfg.Paths.DataDir, "jobs.db")); err != nil {
		t.Errorf("job database missing from data dir: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.LogDir, "jobs.db")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("job database must not live beside logs: %v", err)
	}
}

func TestNewJobStartsQueued(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	script := testsupport.NewScript(t, store, "oceans", "the ocean is deep")

	job := newJob(t, store, script.ID)

	if job.Status != queue.StatusQueued {
		t.Errorf("expected queued, got %s", job.Status)
	}
	if job.ID == "" {
		t.Error("expected generated job id")
	}
	if job.CreatedAt.IsZero() || job.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestGetJobMissingReturnsNil(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	job, err := store.GetJob(context.Background(), "no-such-id")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job != nil {
		t.Errorf("expected nil job, got %+v", job)
	}
}

func TestClaimQueuedIsOldestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	script := testsupport.NewScript(t, store, "oceans", "text")

	first := newJob(t, store, script.ID)
	newJob(t, store, script.ID)

	claimed, err := store.ClaimQueued(context.Background())
	if err != nil {
		t.Fatalf("ClaimQueued: %v", err)
	}
	if claimed == nil {
		t.Fatal("expected a claimed job")
	}
	if claimed.ID != first.ID {
		t.Errorf("expected oldest job %s, got %s", first.ID, claimed.ID)
	}
	if claimed.Status != queue.StatusProcessing {
		t.Errorf("expected processing, got %s", claimed.Status)
	}
}

func TestClaimQueuedEmptyQueue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	claimed, err := store.ClaimQueued(context.Background())
	if err != nil {
		t.Fatalf("ClaimQueued: %v", err)
	}
	if claimed != nil {
		t.Errorf("expected nil on empty queue, got %+v", claimed)
	}
}

func TestClaimQueuedNeverClaimsTwice(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	script := testsupport.NewScript(t, store, "oceans", "text")
	newJob(t, store, script.ID)

	if claimed, _ := store.ClaimQueued(context.Background()); claimed == nil {
		t.Fatal("first claim should succeed")
	}
	if claimed, _ := store.ClaimQueued(context.Background()); claimed != nil {
		t.Errorf("second claim should find nothing, got %+v", claimed)
	}
}

func TestUpdateJobRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	script := testsupport.NewScript(t, store, "oceans", "text")
	job := newJob(t, store, script.ID)

	job.Status = queue.StatusCompleted
	job.DurationSeconds = 12.5
	job.OutputPath = "/library/out.mp4"
	if err := store.UpdateJob(context.Background(), job); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}

	loaded, err := store.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if loaded.Status != queue.StatusCompleted {
		t.Errorf("expected completed, got %s", loaded.Status)
	}
	if loaded.DurationSeconds != 12.5 {
		t.Errorf("expected duration 12.5, got %v", loaded.DurationSeconds)
	}
	if loaded.OutputPath != "/library/out.mp4" {
		t.Errorf("unexpected output path %q", loaded.OutputPath)
	}
}

func TestCancelQueuedOnlyQueuedJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	script := testsupport.NewScript(t, store, "oceans", "text")
	job := newJob(t, store, script.ID)

	cancelled, err := store.CancelQueued(context.Background(), job.ID, "operator cancel")
	if err != nil {
		t.Fatalf("CancelQueued: %v", err)
	}
	if !cancelled {
		t.Fatal("expected queued job to cancel")
	}

	loaded, _ := store.GetJob(context.Background(), job.ID)
	if loaded.Status != queue.StatusFailed {
		t.Errorf("expected failed after cancel, got %s", loaded.Status)
	}

	// A processing job must not be cancellable.
	second := newJob(t, store, script.ID)
	if claimed, _ := store.ClaimQueued(context.Background()); claimed == nil || claimed.ID != second.ID {
		t.Fatal("expected to claim second job")
	}
	cancelled, err = store.CancelQueued(context.Background(), second.ID, "too late")
	if err != nil {
		t.Fatalf("CancelQueued: %v", err)
	}
	if cancelled {
		t.Error("processing job should not be cancellable")
	}
}

func TestListRecentNewestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	script := testsupport.NewScript(t, store, "oceans", "text")

	for i := 0; i < 3; i++ {
		newJob(t, store, script.ID)
	}

	jobs, err := store.ListRecent(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].CreatedAt.Before(jobs[1].CreatedAt) {
		t.Error("expected newest job first")
	}
}

func TestFailStuckProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	script := testsupport.NewScript(t, store, "oceans", "text")
	job := newJob(t, store, script.ID)

	if claimed, _ := store.ClaimQueued(context.Background()); claimed == nil {
		t.Fatal("claim failed")
	}

	count, err := store.FailStuckProcessing(context.Background(), "daemon restarted")
	if err != nil {
		t.Fatalf("FailStuckProcessing: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 recovered job, got %d", count)
	}

	loaded, _ := store.GetJob(context.Background(), job.ID)
	if loaded.Status != queue.StatusFailed {
		t.Errorf("expected failed, got %s", loaded.Status)
	}
	if loaded.ErrorMessage != "daemon restarted" {
		t.Errorf("unexpected error message %q", loaded.ErrorMessage)
	}
}

func TestJobStats(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	script := testsupport.NewScript(t, store, "oceans", "text")

	newJob(t, store, script.ID)
	newJob(t, store, script.ID)
	if claimed, _ := store.ClaimQueued(context.Background()); claimed == nil {
		t.Fatal("claim failed")
	}

	stats, err := store.JobStats(context.Background())
	if err != nil {
		t.Fatalf("JobStats: %v", err)
	}
	if stats.Total != 2 || stats.Queued != 1 || stats.Processing != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestVoiceSettingsRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	script := testsupport.NewScript(t, store, "oceans", "text")

	job, err := store.NewJob(context.Background(), queue.NewJobParams{
		ScriptID:      script.ID,
		VoiceID:       "voice-1",
		VoiceSettings: queue.VoiceSettings{Stability: 0.4, SimilarityBoost: 0.8, Speed: 1.1},
	})
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}

	loaded, _ := store.GetJob(context.Background(), job.ID)
	if loaded.VoiceSettings.Stability != 0.4 || loaded.VoiceSettings.Speed != 1.1 {
		t.Errorf("voice settings not persisted: %+v", loaded.VoiceSettings)
	}
}
