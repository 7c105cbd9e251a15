package api

import (
	"time"

	"shortforge/internal/queue"
)

// GenerateRequest is the body of POST /videos/generate.
type GenerateRequest struct {
	ScriptID        string               `json:"script_id"`
	VoiceID         string               `json:"voice_id,omitempty"`
	VoiceSettings   *queue.VoiceSettings `json:"voice_settings,omitempty"`
	BackgroundMusic string               `json:"background_music,omitempty"`
	BRollQuery      string               `json:"broll_query,omitempty"`
}

// JobView is the wire representation of a job.
type JobView struct {
	ID              string  `json:"id"`
	ScriptID        string  `json:"script_id"`
	Status          string  `json:"status"`
	Stage           string  `json:"stage,omitempty"`
	VoiceID         string  `json:"voice_id,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	OutputPath      string  `json:"output_path,omitempty"`
	ErrorMessage    string  `json:"error_message,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

// JobListResponse wraps GET /videos.
type JobListResponse struct {
	Jobs []JobView `json:"jobs"`
}

// HealthResponse wraps GET /api/health.
type HealthResponse struct {
	Status string      `json:"status"`
	Stats  queue.Stats `json:"stats"`
}

// ViewFromJob converts a stored job to its wire form.
func ViewFromJob(job *queue.Job) JobView {
	return JobView{
		ID:              job.ID,
		ScriptID:        job.ScriptID,
		Status:          string(job.Status),
		Stage:           job.Stage,
		VoiceID:         job.VoiceID,
		DurationSeconds: job.DurationSeconds,
		OutputPath:      job.OutputPath,
		ErrorMessage:    job.ErrorMessage,
		CreatedAt:       job.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       job.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
