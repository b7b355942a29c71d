package spawn

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"slices"
	"sync"
	"syscall"

	"github.com/sourcegraph/conc"
)

// Handle is a launched child process together with the goroutine streaming
// its output. Wait (or Close) joins the reader and reaps the child exactly
// once; every later call returns the cached result.
//
// A Handle that becomes unreachable without being waited on is still reaped:
// a runtime cleanup performs the wait in the background. Callers should not
// rely on that and should defer Close instead.
type Handle struct {
	lc      *lifecycle
	cleanup runtime.Cleanup
}

// lifecycle is the state shared between the handle, its runtime cleanup and
// Wait. It never points back at the Handle so the cleanup can fire.
type lifecycle struct {
	proc   *os.Process
	args   []string
	log    *slog.Logger
	reader conc.WaitGroup

	once   sync.Once
	done   chan struct{}
	status Status
	err    error
}

func newHandle(proc *os.Process, args []string, log *slog.Logger, r *streamReader) *Handle {
	lc := &lifecycle{
		proc: proc,
		args: args,
		log:  log,
		done: make(chan struct{}),
	}
	lc.reader.Go(r.run)

	h := &Handle{lc: lc}
	h.cleanup = runtime.AddCleanup(h, func(lc *lifecycle) {
		go lc.wait()
	}, lc)
	return h
}

// Pid returns the child's process ID.
func (h *Handle) Pid() int {
	return h.lc.proc.Pid
}

// Args returns a copy of the argument vector the child was started with.
func (h *Handle) Args() []string {
	return slices.Clone(h.lc.args)
}

// Done returns a channel that is closed once the child has been reaped.
func (h *Handle) Done() <-chan struct{} {
	return h.lc.done
}

// Wait blocks until the output reader has delivered its last chunk and the
// child has terminated, then returns the child's status. All output callback
// invocations happen before Wait returns.
//
// Wait is safe to call from several goroutines and any number of times; only
// the first call joins and reaps, the rest return the same result.
//
// A non-nil error wraps ErrWait if the OS wait call failed, or
// ErrOutputPanic if the output callback panicked (in which case the status is
// still valid).
func (h *Handle) Wait() (Status, error) {
	status, err := h.lc.wait()
	h.cleanup.Stop()
	return status, err
}

// Close waits for the child and reports only the error. It makes Handle an
// io.Closer so callers can `defer h.Close()`.
func (h *Handle) Close() error {
	_, err := h.Wait()
	return err
}

func (lc *lifecycle) wait() (Status, error) {
	lc.once.Do(func() {
		defer close(lc.done)

		var errs []error
		if rec := lc.reader.WaitAndRecover(); rec != nil {
			lc.log.Error("output callback panicked", "pid", lc.proc.Pid, "panic", rec.Value)
			errs = append(errs, fmt.Errorf("%w: %v", ErrOutputPanic, rec.Value))
		}

		state, err := lc.proc.Wait()
		if err != nil {
			lc.log.Error("wait for process", "pid", lc.proc.Pid, "error", err)
			errs = append(errs, fmt.Errorf("%w: %w", ErrWait, err))
		} else if ws, ok := state.Sys().(syscall.WaitStatus); ok {
			lc.status = Status{ws: ws}
			lc.log.Debug("process exited", "pid", lc.proc.Pid, "status", lc.status.String())
		}

		lc.err = errors.Join(errs...)
	})
	return lc.status, lc.err
}
