// Package spawn launches a child process and streams its combined stdout and
// stderr to a callback while the caller keeps running.
//
// The child's stdout and stderr share one OS pipe. A single goroutine reads
// that pipe in chunks of at most ChunkSize bytes and hands each decoded chunk
// to Request.Output, in order, until the child closes its end. Handle.Wait
// joins that goroutine before reaping the child, so all output has been
// delivered by the time a status is returned.
//
// There is deliberately no kill, timeout or stdin API: a handle's resources
// are released only when the child's output stream closes and Wait runs.
package spawn

import (
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/jmgilman/spawn/internal/environ"
	"github.com/jmgilman/spawn/internal/pipe"
	"github.com/jmgilman/spawn/internal/slogger"
)

// OutputFunc receives one decoded chunk of the child's output. It runs on the
// reader goroutine; a slow callback delays the next read.
type OutputFunc func(chunk string)

// Request describes a process to launch.
type Request struct {
	// Args is the argument vector. Args[0] is the path of the program and is
	// executed directly: no shell and no PATH lookup.
	Args []string

	// Env overrides entries of the parent environment. Parent variables not
	// named here are inherited unchanged.
	Env map[string]string

	// Output receives output chunks. May be nil, in which case output is
	// drained and discarded.
	Output OutputFunc

	// Dir is the child's working directory. Empty means the parent's.
	Dir string

	// Charset names the encoding of the child's output (WHATWG labels such
	// as "utf-8", "latin1", "shift_jis"). Empty means UTF-8.
	Charset string

	// Reassemble carries incomplete multi-byte sequences over to the next
	// chunk instead of decoding each chunk in isolation.
	Reassemble bool

	// Logger receives debug events. Nil discards them.
	Logger *slog.Logger
}

// Spawn launches args with envs merged over the parent environment and
// streams output to the callback.
func Spawn(args []string, envs map[string]string, output OutputFunc) (*Handle, error) {
	return Start(Request{Args: args, Env: envs, Output: output})
}

// Start launches the process described by req.
//
// On failure no handle is returned, no reader goroutine is running and every
// descriptor opened along the way has been closed. Errors wrap ErrPipe or
// ErrSpawn.
func Start(req Request) (*Handle, error) {
	log := req.Logger
	if log == nil {
		log = slogger.Discard()
	}

	args := slices.Clone(req.Args)
	if len(args) == 0 || args[0] == "" {
		return nil, fmt.Errorf("%w: %w", ErrSpawn, ErrNoArgs)
	}

	dec, err := newDecoder(req.Charset, req.Reassemble)
	if err != nil {
		return nil, err
	}

	env := environ.Merge(os.Environ(), req.Env)

	p, err := pipe.Open()
	if err != nil {
		return nil, err
	}

	proc, err := launch(args, env, req.Dir, p)
	if err != nil {
		if cerr := p.Close(); cerr != nil {
			log.Debug("close pipe after failed spawn", "error", cerr)
		}
		return nil, err
	}

	// The child holds its own copies now. os.File releases the descriptor even
	// when Close reports an error, so EOF is still observable.
	if err := p.CloseWriter(); err != nil {
		log.Debug("close write end", "error", err)
	}

	log.Debug("spawned process", "pid", proc.Pid, "path", args[0], "args", len(args)-1)

	r := &streamReader{
		src:    p.Reader(),
		close:  p.CloseReader,
		decode: dec,
		output: req.Output,
		log:    log.With("pid", proc.Pid),
	}
	return newHandle(proc, args, log, r), nil
}

// Run starts req and waits for it.
func Run(req Request) (Status, error) {
	h, err := Start(req)
	if err != nil {
		return Status{}, err
	}
	return h.Wait()
}
