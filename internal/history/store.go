package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"
)

const (
	lockTimeout  = 5 * time.Second
	lockInterval = 10 * time.Millisecond
	fileVersion  = 1
	fileMode     = 0o644
	dirMode      = 0o755
)

// historyFile represents the on-disk history format.
type historyFile struct {
	Version int     `json:"version"`
	Entries []Entry `json:"entries"`
}

type jsonStore struct {
	path string
	mu   sync.RWMutex
}

// NewStore creates a new JSON-backed history store at path.
func NewStore(path string) *jsonStore {
	return &jsonStore{path: path}
}

func (s *jsonStore) Add(ctx context.Context, entry Entry) error {
	return s.withExclusiveLock(ctx, func(hf *historyFile) error {
		for _, e := range hf.Entries {
			if e.ID == entry.ID || (entry.Name != "" && e.Name == entry.Name) {
				return ErrAlreadyExists
			}
		}

		hf.Entries = append(hf.Entries, entry)
		return nil
	})
}

func (s *jsonStore) Get(ctx context.Context, id string) (*Entry, error) {
	return s.find(ctx, func(e *Entry) bool { return e.ID == id })
}

func (s *jsonStore) GetByName(ctx context.Context, name string) (*Entry, error) {
	return s.find(ctx, func(e *Entry) bool { return e.Name == name })
}

func (s *jsonStore) Resolve(ctx context.Context, ref string) (*Entry, error) {
	if ref == "" {
		return nil, ErrNotFound
	}

	var result *Entry

	err := s.withSharedLock(ctx, func(hf *historyFile) error {
		var prefixed []int
		upper := strings.ToUpper(ref)

		for i := range hf.Entries {
			e := hf.Entries[i]
			if strings.EqualFold(e.ID, ref) || e.Name == ref {
				result = &e
				return nil
			}
			if strings.HasPrefix(strings.ToUpper(e.ID), upper) {
				prefixed = append(prefixed, i)
			}
		}

		switch len(prefixed) {
		case 0:
			return ErrNotFound
		case 1:
			e := hf.Entries[prefixed[0]]
			result = &e
			return nil
		default:
			return fmt.Errorf("%w: %q matches %d runs", ErrAmbiguous, ref, len(prefixed))
		}
	})

	return result, err
}

func (s *jsonStore) Update(ctx context.Context, entry Entry) error {
	return s.withExclusiveLock(ctx, func(hf *historyFile) error {
		for i := range hf.Entries {
			if hf.Entries[i].ID == entry.ID {
				hf.Entries[i] = entry
				return nil
			}
		}
		return ErrNotFound
	})
}

func (s *jsonStore) Remove(ctx context.Context, id string) error {
	return s.withExclusiveLock(ctx, func(hf *historyFile) error {
		for i := range hf.Entries {
			if hf.Entries[i].ID == id {
				hf.Entries = append(hf.Entries[:i], hf.Entries[i+1:]...)
				return nil
			}
		}
		return ErrNotFound
	})
}

func (s *jsonStore) List(ctx context.Context, filter ListFilter) ([]Entry, error) {
	var result []Entry

	err := s.withSharedLock(ctx, func(hf *historyFile) error {
		for _, e := range hf.Entries {
			if filter.Status != "" && e.Status != filter.Status {
				continue
			}
			result = append(result, e)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *jsonStore) find(ctx context.Context, match func(*Entry) bool) (*Entry, error) {
	var result *Entry

	err := s.withSharedLock(ctx, func(hf *historyFile) error {
		for i := range hf.Entries {
			if match(&hf.Entries[i]) {
				entry := hf.Entries[i]
				result = &entry
				return nil
			}
		}
		return ErrNotFound
	})

	return result, err
}

// withSharedLock executes fn with a shared (read) lock.
func (s *jsonStore) withSharedLock(ctx context.Context, fn func(*historyFile) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hf, file, err := s.openAndLock(ctx, false)
	if err != nil {
		return err
	}
	defer unlockAndClose(file)

	return fn(hf)
}

// withExclusiveLock executes fn with an exclusive (write) lock.
// Changes made by fn are persisted to disk.
func (s *jsonStore) withExclusiveLock(ctx context.Context, fn func(*historyFile) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hf, file, err := s.openAndLock(ctx, true)
	if err != nil {
		return err
	}
	defer unlockAndClose(file)

	if err := fn(hf); err != nil {
		return err
	}

	return s.save(hf)
}

func (s *jsonStore) openAndLock(ctx context.Context, exclusive bool) (*historyFile, *os.File, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), dirMode); err != nil {
		return nil, nil, fmt.Errorf("create history directory: %w", err)
	}

	file, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE, fileMode)
	if err != nil {
		return nil, nil, fmt.Errorf("open history file: %w", err)
	}

	how := syscall.LOCK_SH
	if exclusive {
		how = syscall.LOCK_EX
	}

	if err := acquireLock(ctx, file, how); err != nil {
		_ = file.Close()
		return nil, nil, err
	}

	hf, err := load(file)
	if err != nil {
		unlockAndClose(file)
		return nil, nil, err
	}

	return hf, file, nil
}

// acquireLock polls for a flock until it is granted, ctx is done, or the
// lock timeout passes.
func acquireLock(ctx context.Context, file *os.File, how int) error {
	deadline := time.Now().Add(lockTimeout)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := syscall.Flock(int(file.Fd()), how|syscall.LOCK_NB)
		if err == nil {
			return nil
		}
		if !errors.Is(err, syscall.EWOULDBLOCK) {
			return fmt.Errorf("acquire file lock: %w", err)
		}

		if time.Now().After(deadline) {
			return ErrLockTimeout
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockInterval):
		}
	}
}

func unlockAndClose(file *os.File) {
	_ = syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
	_ = file.Close()
}

func load(file *os.File) (*historyFile, error) {
	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat history file: %w", err)
	}

	if info.Size() == 0 {
		return &historyFile{Version: fileVersion, Entries: []Entry{}}, nil
	}

	if _, err := file.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("seek history file: %w", err)
	}

	var hf historyFile
	if err := json.NewDecoder(file).Decode(&hf); err != nil {
		return nil, fmt.Errorf("decode history file: %w", err)
	}
	if hf.Version > fileVersion {
		return nil, fmt.Errorf("history file version %d is newer than supported version %d", hf.Version, fileVersion)
	}

	return &hf, nil
}

// save writes the history to disk atomically.
func (s *jsonStore) save(hf *historyFile) error {
	hf.Version = fileVersion

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "history-*.json.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	defer func() {
		if tmpPath != "" {
			_ = os.Remove(tmpPath)
		}
	}()

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(hf); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encode history: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename history file: %w", err)
	}

	tmpPath = ""
	return nil
}
