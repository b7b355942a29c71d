package spawn

import (
	"errors"

	"github.com/jmgilman/spawn/internal/pipe"
)

// Sentinel errors for spawn operations. Construction errors wrap both the
// kind and the underlying OS error, so errors.Is matches either.
var (
	// ErrPipe is returned when the output pipe cannot be allocated.
	ErrPipe = pipe.ErrCreate

	// ErrSpawn is returned when the OS refuses to create the child process.
	ErrSpawn = errors.New("could not spawn")

	// ErrNoArgs is returned when a request has an empty argument vector.
	ErrNoArgs = errors.New("no program to execute")

	// ErrWait is returned when the OS wait call fails.
	ErrWait = errors.New("could not wait for process")

	// ErrOutputPanic is returned by Wait when the output callback panicked.
	// The child is still reaped and its status is still reported.
	ErrOutputPanic = errors.New("output callback panicked")

	// ErrUnknownEncoding is returned for an unrecognized charset name.
	ErrUnknownEncoding = errors.New("unknown encoding")
)
