package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AddScript stores a script record and returns it. An empty id gets a
// generated one.
func (s *Store) AddScript(ctx context.Context, id, topic, text string) (*Script, error) {
	topic = strings.TrimSpace(topic)
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("script text must not be empty")
	}
	if id = strings.TrimSpace(id); id == "" {
		id = uuid.NewString()
	}

	now := time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO scripts (id, topic, body, created_at) VALUES (?, ?, ?, ?)`,
		id,
		topic,
		text,
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert script: %w", err)
	}
	return s.ScriptByID(ctx, id)
}

// ScriptByID fetches a script record. Returns nil when no script matches.
func (s *Store) ScriptByID(ctx context.Context, id string) (*Script, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, topic, body, created_at FROM scripts WHERE id = ?`, id)
	script, err := scanScript(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get script: %w", err)
	}
	return script, nil
}

// ListScripts returns scripts newest-first.
func (s *Store) ListScripts(ctx context.Context, limit int) ([]*Script, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, topic, body, created_at FROM scripts ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list scripts: %w", err)
	}
	defer rows.Close()

	var scripts []*Script
	for rows.Next() {
		script, err := scanScript(rows)
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, script)
	}
	return scripts, rows.Err()
}

func scanScript(scanner interface{ Scan(dest ...any) error }) (*Script, error) {
	var (
		id         string
		topic      string
		body       string
		createdRaw string
	)
	if err := scanner.Scan(&id, &topic, &body, &createdRaw); err != nil {
		return nil, err
	}
	script := &Script{ID: id, Topic: topic, Text: body}
	if created, err := parseTimeString(createdRaw); err == nil {
		script.CreatedAt = created
	}
	return script, nil
}
