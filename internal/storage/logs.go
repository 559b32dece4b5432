// Package storage saves run output to log files.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// RunLogStore manages per-run log files under a base directory.
type RunLogStore struct {
	BaseDir string
}

func NewRunLogStore(baseDir string) *RunLogStore {
	return &RunLogStore{BaseDir: baseDir}
}

// Save writes the output of one run and returns the log file path.
func (s *RunLogStore) Save(evaluationID, job, tuple, output string) (string, error) {
	if err := os.MkdirAll(s.BaseDir, 0775); err != nil {
		return "", err
	}

	// Timestamp keeps filenames unique across re-deliveries of an event.
	timestamp := time.Now().Format("20060102_150405")
	name := fmt.Sprintf("%s_%s_%s.log", sanitize(evaluationID), sanitize(job), timestamp)
	if tuple != "" {
		name = fmt.Sprintf("%s_%s_%s_%s.log", sanitize(evaluationID), sanitize(job), sanitize(tuple), timestamp)
	}
	path := filepath.Join(s.BaseDir, name)

	if err := os.WriteFile(path, []byte(output), 0644); err != nil {
		return "", err
	}
	return path, nil
}

// sanitize strips characters unsafe in filenames.
func sanitize(name string) string {
	clean := make([]rune, 0, len(name))
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' {
			clean = append(clean, r)
		}
	}
	if len(clean) == 0 {
		return "run"
	}
	return string(clean)
}
