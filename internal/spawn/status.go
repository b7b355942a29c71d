package spawn

import (
	"fmt"
	"syscall"
)

// Status is a child's termination status as reported by the OS wait call.
// Raw returns the undecoded encoding; the other methods decode it.
type Status struct {
	ws syscall.WaitStatus
}

// Raw returns the wait status exactly as the OS reported it.
func (s Status) Raw() int {
	return int(s.ws)
}

// Exited reports whether the child terminated by calling exit.
func (s Status) Exited() bool {
	return s.ws.Exited()
}

// ExitCode returns the child's exit code, or -1 if it did not exit normally.
func (s Status) ExitCode() int {
	if !s.ws.Exited() {
		return -1
	}
	return s.ws.ExitStatus()
}

// Signaled reports whether the child was terminated by a signal.
func (s Status) Signaled() bool {
	return s.ws.Signaled()
}

// Signal returns the terminating signal. Only meaningful when Signaled is true.
func (s Status) Signal() syscall.Signal {
	return s.ws.Signal()
}

// Success reports whether the child exited with code 0.
func (s Status) Success() bool {
	return s.ws.Exited() && s.ws.ExitStatus() == 0
}

func (s Status) String() string {
	switch {
	case s.ws.Exited():
		return fmt.Sprintf("exit status %d", s.ws.ExitStatus())
	case s.ws.Signaled():
		return "signal: " + s.ws.Signal().String()
	default:
		return fmt.Sprintf("wait status %#x", uint32(s.ws))
	}
}
