package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// TeeWriter copies run output to a primary writer and a log file.
// It implements io.WriteCloser and io.StringWriter.
//
// Output callbacks cannot report errors, so a failed log write is kept and
// returned by Err while writes to the primary continue.
type TeeWriter struct {
	primary io.Writer
	logFile *os.File
	logErr  error
	mu      sync.Mutex
}

// NewTeeWriter creates a TeeWriter that writes to both the primary writer
// and the specified log file path. The log file is created or truncated.
// A nil primary writes to the log file only.
func NewTeeWriter(primary io.Writer, logPath string) (*TeeWriter, error) {
	//nolint:gosec // G304: logPath is constructed from trusted PathManager, not arbitrary user input
	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}

	return &TeeWriter{
		primary: primary,
		logFile: logFile,
	}, nil
}

// Write writes data to the log file, then to the primary writer.
func (t *TeeWriter) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.logFile != nil && t.logErr == nil {
		if _, err := t.logFile.Write(p); err != nil {
			t.logErr = fmt.Errorf("write to log file: %w", err)
		}
	}

	if t.primary != nil {
		return t.primary.Write(p)
	}
	return len(p), nil
}

// WriteString writes a decoded output chunk.
func (t *TeeWriter) WriteString(s string) (int, error) {
	return t.Write([]byte(s))
}

// Err returns the first error hit while writing the log file.
func (t *TeeWriter) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.logErr
}

// Close closes the log file. The primary writer is not closed.
func (t *TeeWriter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.logFile != nil {
		if err := t.logFile.Close(); err != nil {
			return fmt.Errorf("close log file: %w", err)
		}
		t.logFile = nil
	}
	return nil
}

// Sync flushes the log file to disk.
func (t *TeeWriter) Sync() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.logFile != nil {
		return t.logFile.Sync()
	}
	return nil
}

// LogPath returns the path of the log file, or empty string if closed.
func (t *TeeWriter) LogPath() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.logFile != nil {
		return t.logFile.Name()
	}
	return ""
}
