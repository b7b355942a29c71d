// Package logging records the combined output of spawned runs to per-run log
// files and reads it back.
package logging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	logExt  = ".log"
	dirMode = 0o750
)

// PathManager handles log file path construction and directory management.
type PathManager struct {
	baseDir string
}

// NewPathManager creates a new PathManager with the given base directory.
// The base directory is typically ~/.local/share/spawn/logs.
func NewPathManager(baseDir string) *PathManager {
	return &PathManager{baseDir: baseDir}
}

// BaseDir returns the base log directory.
func (p *PathManager) BaseDir() string {
	return p.baseDir
}

// RunLogPath returns the full path for a run's log file.
// Path format: <baseDir>/<runID>.log
func (p *PathManager) RunLogPath(runID string) string {
	return filepath.Join(p.baseDir, runID+logExt)
}

// EnsureRunLog creates the log directory if needed and returns the run's
// log file path.
func (p *PathManager) EnsureRunLog(runID string) (string, error) {
	if err := os.MkdirAll(p.baseDir, dirMode); err != nil {
		return "", fmt.Errorf("create log directory: %w", err)
	}
	return p.RunLogPath(runID), nil
}

// LogExists checks if a log file exists for the given run.
func (p *PathManager) LogExists(runID string) bool {
	_, err := os.Stat(p.RunLogPath(runID))
	return err == nil
}

// RemoveRunLog removes a run's log file if it exists.
func (p *PathManager) RemoveRunLog(runID string) error {
	if err := os.Remove(p.RunLogPath(runID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove run log: %w", err)
	}
	return nil
}

// ListRunLogs returns the IDs of all runs that have a log file.
func (p *PathManager) ListRunLogs() ([]string, error) {
	entries, err := os.ReadDir(p.baseDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read log directory: %w", err)
	}

	var runs []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if id, ok := strings.CutSuffix(entry.Name(), logExt); ok {
			runs = append(runs, id)
		}
	}
	return runs, nil
}

// Prune removes every log file whose run ID is not kept, returning the IDs
// that were removed.
func (p *PathManager) Prune(keep func(runID string) bool) ([]string, error) {
	runs, err := p.ListRunLogs()
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, id := range runs {
		if keep(id) {
			continue
		}
		if err := p.RemoveRunLog(id); err != nil {
			return removed, err
		}
		removed = append(removed, id)
	}
	return removed, nil
}
