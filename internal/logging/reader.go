package logging

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// DefaultTailLines is the default number of lines to read when tailing.
const DefaultTailLines = 100

// DefaultPollInterval is how often Follow checks for appended output.
const DefaultPollInterval = 200 * time.Millisecond

// Reader reads run log files.
type Reader struct {
	pathMgr *PathManager
}

// NewReader creates a new Reader with the given PathManager.
func NewReader(pathMgr *PathManager) *Reader {
	return &Reader{pathMgr: pathMgr}
}

// ReadAll reads the entire log file for a run.
func (r *Reader) ReadAll(runID string) ([]string, error) {
	return readAllLines(r.pathMgr.RunLogPath(runID))
}

// ReadLastN reads the last n lines from a run's log file.
// If n <= 0, uses DefaultTailLines.
func (r *Reader) ReadLastN(runID string, n int) ([]string, error) {
	if n <= 0 {
		n = DefaultTailLines
	}
	return readLastNLines(r.pathMgr.RunLogPath(runID), n)
}

// Copy writes the raw log file for a run to out.
func (r *Reader) Copy(runID string, out io.Writer) error {
	file, err := os.Open(r.pathMgr.RunLogPath(runID))
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(out, file); err != nil {
		return fmt.Errorf("copy log file: %w", err)
	}
	return nil
}

// Follow streams log output appended after the call to out, like `tail -f`.
// It returns when ctx is cancelled, or nil once done reports true and the
// remaining output has been drained. A nil done follows until cancellation.
func (r *Reader) Follow(ctx context.Context, runID string, out io.Writer, pollInterval time.Duration, done func() bool) error {
	file, err := os.Open(r.pathMgr.RunLogPath(runID))
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek to end: %w", err)
	}

	return follow(ctx, file, out, pollInterval, done)
}

// FollowWithHistory writes the last n lines and then follows new output,
// like `tail -n N -f`.
func (r *Reader) FollowWithHistory(ctx context.Context, runID string, out io.Writer, n int, pollInterval time.Duration, done func() bool) error {
	lines, err := r.ReadLastN(runID, n)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	for _, line := range lines {
		if _, err := fmt.Fprintln(out, line); err != nil {
			return fmt.Errorf("write history: %w", err)
		}
	}

	return r.Follow(ctx, runID, out, pollInterval, done)
}

func follow(ctx context.Context, file *os.File, out io.Writer, pollInterval time.Duration, done func() bool) error {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	reader := bufio.NewReader(file)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// Sample before draining so output written just before the run
			// finished is not lost.
			finished := done != nil && done()
			if err := drain(reader, out); err != nil {
				return err
			}
			if finished {
				return nil
			}
		}
	}
}

// drain copies everything currently readable to out. A trailing partial line
// is written as-is since run output need not end in a newline.
func drain(reader *bufio.Reader, out io.Writer) error {
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			if _, werr := out.Write(line); werr != nil {
				return fmt.Errorf("write output: %w", werr)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read line: %w", err)
		}
	}
}

func readAllLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan log file: %w", err)
	}

	return lines, nil
}

// readLastNLines keeps the last n lines of path in a ring buffer.
func readLastNLines(path string, n int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	ring := make([]string, n)
	idx, count := 0, 0

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % n
		count++
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan log file: %w", err)
	}

	switch {
	case count == 0:
		return nil, nil
	case count < n:
		return ring[:count], nil
	}

	result := make([]string, n)
	for i := range n {
		result[i] = ring[(idx+i)%n]
	}
	return result, nil
}
