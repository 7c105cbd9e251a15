// Package staging manages per-job scratch directories under the configured
// staging root.
package staging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// JobDir returns the scratch directory path for a job without creating it.
func JobDir(stagingRoot, jobID string) string {
	return filepath.Join(stagingRoot, "job-"+jobID)
}

// EnsureJobDir creates (or reuses) the scratch directory for a job.
func EnsureJobDir(stagingRoot, jobID string) (string, error) {
	if strings.TrimSpace(stagingRoot) == "" {
		return "", fmt.Errorf("staging root is empty")
	}
	dir := JobDir(stagingRoot, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create staging directory: %w", err)
	}
	return dir, nil
}

// RemoveJobDir deletes a job's scratch directory and everything under it.
func RemoveJobDir(stagingRoot, jobID string) error {
	if strings.TrimSpace(stagingRoot) == "" {
		return nil
	}
	return os.RemoveAll(JobDir(stagingRoot, jobID))
}
