package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks request-shape failures rejected before a job exists.
	ErrValidation = errors.New("validation error")
	// ErrAlignment marks unusable speech-synthesis timing output.
	ErrAlignment = errors.New("alignment error")
	// ErrBRollUnavailable marks footage searches with no usable result after
	// the fallback query.
	ErrBRollUnavailable = errors.New("b-roll unavailable")
	// ErrComposition marks encoding or muxing failures.
	ErrComposition = errors.New("composition error")
	// ErrUpstream marks generic transient provider failures, retried before
	// escalating.
	ErrUpstream = errors.New("upstream error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrUpstream
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }

func (e *transientError) Unwrap() error { return e.err }

// MarkTransient tags an error as retryable (network timeouts, provider 5xx).
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether an error should be retried against the provider
// before failing the job.
func IsTransient(err error) bool {
	var marker *transientError
	return errors.As(err, &marker)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
