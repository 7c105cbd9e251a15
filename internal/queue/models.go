package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a video job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{
	StatusQueued,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status is immutable thereafter.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// VoiceSettings carries narration synthesis tuning, immutable once a job
// starts.
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	Speed           float64 `json:"speed"`
	SpeakerBoost    bool    `json:"use_speaker_boost"`
}

// Job represents a video job persisted in SQLite.
type Job struct {
	ID              string
	ScriptID        string
	Status          Status
	VoiceID         string
	VoiceSettings   VoiceSettings
	BackgroundMusic string
	BRollQuery      string
	Stage           string
	DurationSeconds float64
	OutputPath      string
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SetFailed marks the job as failed with the given stage-tagged message.
func (j *Job) SetFailed(message string) {
	j.Status = StatusFailed
	j.ErrorMessage = message
}

// Script is a read-only script record owned by the authoring collaborator.
// The pipeline consumes its text and uses the topic as the B-roll fallback
// query.
type Script struct {
	ID        string
	Topic     string
	Text      string
	CreatedAt time.Time
}

// Stats aggregates job counts per lifecycle state.
type Stats struct {
	Total      int
	Queued     int
	Processing int
	Completed  int
	Failed     int
}
