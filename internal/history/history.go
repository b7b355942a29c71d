// Package history provides persistent storage for records of spawned runs.
package history

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for history operations.
var (
	ErrNotFound      = errors.New("run not found")
	ErrAlreadyExists = errors.New("run already exists")
	ErrAmbiguous     = errors.New("run reference is ambiguous")
	ErrLockTimeout   = errors.New("failed to acquire history lock")
)

// Status represents the lifecycle state of a recorded run.
type Status string

const (
	StatusRunning  Status = "running"
	StatusExited   Status = "exited"
	StatusSignaled Status = "signaled"
	StatusFailed   Status = "failed" // could not be spawned or waited on

	// StatusStale is derived, never stored: the entry says running but
	// neither its process nor the spawn process recording it is alive.
	StatusStale Status = "stale"
)

// Entry represents a persisted run record.
type Entry struct {
	ID         string    `json:"id" yaml:"id"`                                 // ULID
	Name       string    `json:"name" yaml:"name"`                             // Human-readable name (e.g., "focused_turing")
	Args       []string  `json:"args" yaml:"args"`
	EnvKeys    []string  `json:"env_keys,omitempty" yaml:"env_keys,omitempty"` // Names of overridden variables; values are never stored
	Dir        string    `json:"dir,omitempty" yaml:"dir,omitempty"`
	Pid        int       `json:"pid,omitempty" yaml:"pid,omitempty"`
	Owner      int       `json:"owner,omitempty" yaml:"owner,omitempty"`       // Pid of the spawn process recording the run
	Status     Status    `json:"status" yaml:"status"`
	ExitCode   int       `json:"exit_code" yaml:"exit_code"`
	RawStatus  int       `json:"raw_status" yaml:"raw_status"`
	Error      string    `json:"error,omitempty" yaml:"error,omitempty"`
	LogPath    string    `json:"log_path,omitempty" yaml:"log_path,omitempty"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero" yaml:"finished_at,omitempty"`
}

// Finished reports whether the run has reached a terminal state. A stale
// entry counts as finished.
func (e Entry) Finished() bool {
	return e.Status != StatusRunning || e.Stale()
}

// Stale reports whether a running entry has lost its processes. The child
// is checked once its pid is known, the recording process before that.
func (e Entry) Stale() bool {
	if e.Status != StatusRunning {
		return false
	}
	if e.Pid > 0 {
		return !processAlive(e.Pid)
	}
	return !processAlive(e.Owner)
}

// CurrentStatus returns the stored status, or StatusStale for a running
// entry whose processes are gone.
func (e Entry) CurrentStatus() Status {
	if e.Stale() {
		return StatusStale
	}
	return e.Status
}

// Duration returns how long the run took, or how long it has been running.
func (e Entry) Duration() time.Duration {
	if e.FinishedAt.IsZero() {
		return time.Since(e.StartedAt)
	}
	return e.FinishedAt.Sub(e.StartedAt)
}

// ListFilter filters history queries.
type ListFilter struct {
	Status Status // Filter by status (empty = all)
}

// Store provides persistent storage for run entries.
type Store interface {
	// Add creates a new entry.
	// Returns ErrAlreadyExists if an entry with the same ID or Name exists.
	Add(ctx context.Context, entry Entry) error

	// Get retrieves an entry by ID.
	// Returns ErrNotFound if not found.
	Get(ctx context.Context, id string) (*Entry, error)

	// GetByName retrieves an entry by its human-readable name.
	// Returns ErrNotFound if not found.
	GetByName(ctx context.Context, name string) (*Entry, error)

	// Resolve looks up an entry by ID, name, or unique ID prefix.
	// Returns ErrNotFound if nothing matches and ErrAmbiguous if a prefix
	// matches more than one entry.
	Resolve(ctx context.Context, ref string) (*Entry, error)

	// Update modifies an existing entry.
	// Returns ErrNotFound if not found.
	Update(ctx context.Context, entry Entry) error

	// Remove deletes an entry by ID.
	// Returns ErrNotFound if not found.
	Remove(ctx context.Context, id string) error

	// List returns all entries matching the filter, oldest first.
	List(ctx context.Context, filter ListFilter) ([]Entry, error)
}
