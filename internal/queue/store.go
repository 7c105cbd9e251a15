package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"shortforge/internal/config"
)

// Store manages job and script persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// NewJobParams carries the validated inputs for job creation.
type NewJobParams struct {
	ScriptID        string
	VoiceID         string
	VoiceSettings   VoiceSettings
	BackgroundMusic string
	BRollQuery      string
}

// Open initializes or connects to the job database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "jobs.db")
	return OpenPath(dbPath)
}

// OpenPath opens a store at an explicit database path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// NewJob inserts a queued job and returns the stored record.
func (s *Store) NewJob(ctx context.Context, params NewJobParams) (*Job, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	settingsJSON, err := json.Marshal(params.VoiceSettings)
	if err != nil {
		return nil, fmt.Errorf("marshal voice settings: %w", err)
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO video_jobs (
            id, script_id, status, voice_id, voice_settings_json,
            background_music, broll_query, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		params.ScriptID,
		StatusQueued,
		nullableString(params.VoiceID),
		string(settingsJSON),
		nullableString(params.BackgroundMusic),
		nullableString(params.BRollQuery),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	return s.GetJob(ctx, id)
}

// GetJob fetches a job by identifier. Returns nil when no job matches.
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM video_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// UpdateJob persists changes to an existing job.
func (s *Store) UpdateJob(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()

	settingsJSON, err := json.Marshal(job.VoiceSettings)
	if err != nil {
		return fmt.Errorf("marshal voice settings: %w", err)
	}

	_, err = s.db.ExecContext(
		ctx,
		`UPDATE video_jobs
         SET script_id = ?, status = ?, voice_id = ?, voice_settings_json = ?,
             background_music = ?, broll_query = ?, stage = ?,
             duration_seconds = ?, output_path = ?, error_message = ?,
             updated_at = ?
         WHERE id = ?`,
		job.ScriptID,
		job.Status,
		nullableString(job.VoiceID),
		string(settingsJSON),
		nullableString(job.BackgroundMusic),
		nullableString(job.BRollQuery),
		nullableString(job.Stage),
		job.DurationSeconds,
		nullableString(job.OutputPath),
		nullableString(job.ErrorMessage),
		job.UpdatedAt.Format(time.RFC3339Nano),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// ClaimQueued atomically transitions the oldest queued job to processing and
// returns it. Returns nil when the queue is empty.
func (s *Store) ClaimQueued(ctx context.Context) (*Job, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	row := s.db.QueryRowContext(
		ctx,
		`UPDATE video_jobs
         SET status = ?, updated_at = ?
         WHERE id = (
             SELECT id FROM video_jobs WHERE status = ? ORDER BY created_at LIMIT 1
         )
         RETURNING id`,
		StatusProcessing,
		now,
		StatusQueued,
	)
	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim queued job: %w", err)
	}
	return s.GetJob(ctx, id)
}

// CancelQueued transitions a queued job directly to failed without starting
// work. Returns false when the job is not queued (processing jobs are not
// interrupted).
func (s *Store) CancelQueued(ctx context.Context, id, reason string) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE video_jobs SET status = ?, error_message = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusFailed,
		reason,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusQueued,
	)
	if err != nil {
		return false, fmt.Errorf("cancel queued job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ListRecent returns jobs newest-first, bounded by limit.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+jobColumns+` FROM video_jobs ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// FailStuckProcessing fails jobs left in processing by a crashed run. Terminal
// states are one-directional, so interrupted work is recorded as a failure
// rather than silently requeued.
func (s *Store) FailStuckProcessing(ctx context.Context, reason string) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE video_jobs SET status = ?, error_message = ?, updated_at = ?
         WHERE status = ?`,
		StatusFailed,
		reason,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("fail stuck jobs: %w", err)
	}
	return res.RowsAffected()
}

// JobStats returns a count of jobs grouped by status.
func (s *Store) JobStats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM video_jobs GROUP BY status`)
	if err != nil {
		return Stats{}, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := Stats{}
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, err
		}
		stats.Total += count
		switch status {
		case StatusQueued:
			stats.Queued += count
		case StatusProcessing:
			stats.Processing += count
		case StatusCompleted:
			stats.Completed += count
		case StatusFailed:
			stats.Failed += count
		}
	}
	return stats, rows.Err()
}

const jobColumns = "id, script_id, status, voice_id, voice_settings_json, background_music, broll_query, stage, duration_seconds, output_path, error_message, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id              string
		scriptID        string
		statusStr       string
		voiceID         sql.NullString
		settingsJSON    sql.NullString
		backgroundMusic sql.NullString
		brollQuery      sql.NullString
		stage           sql.NullString
		durationSeconds sql.NullFloat64
		outputPath      sql.NullString
		errorMessage    sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&scriptID,
		&statusStr,
		&voiceID,
		&settingsJSON,
		&backgroundMusic,
		&brollQuery,
		&stage,
		&durationSeconds,
		&outputPath,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:              id,
		ScriptID:        scriptID,
		Status:          Status(statusStr),
		VoiceID:         voiceID.String,
		BackgroundMusic: backgroundMusic.String,
		BRollQuery:      brollQuery.String,
		Stage:           stage.String,
		DurationSeconds: durationSeconds.Float64,
		OutputPath:      outputPath.String,
		ErrorMessage:    errorMessage.String,
	}
	if settingsJSON.Valid && settingsJSON.String != "" {
		if err := json.Unmarshal([]byte(settingsJSON.String), &job.VoiceSettings); err != nil {
			return nil, fmt.Errorf("decode voice settings: %w", err)
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}
