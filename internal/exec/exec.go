// Package exec runs helper programs for the CLI, such as the user's editor,
// and resolves program names on PATH.
//
// Runs that spawn manages and records go through package spawn instead;
// helpers here are attached directly to the terminal and never recorded.
package exec

import (
	"context"
	"errors"
	"io"
	"strings"
)

// ErrEmptyCommand is returned when there is no program to run.
var ErrEmptyCommand = errors.New("empty command")

// RunOptions configures a helper program.
type RunOptions struct {
	Name   string    // Program name or path (required)
	Args   []string  // Program arguments
	Dir    string    // Working directory (empty = current)
	Env    []string  // Extra environment variables (NAME=VALUE)
	Stdin  io.Reader // Defaults to os.Stdin
	Stdout io.Writer // Defaults to os.Stdout
	Stderr io.Writer // Defaults to os.Stderr
}

// Executor runs helper programs.
type Executor interface {
	// Run starts the program, waits for it and returns its exit code.
	// A non-zero exit is reported through the code and an *os/exec.ExitError.
	Run(ctx context.Context, opts RunOptions) (int, error)

	// LookPath searches PATH for an executable.
	LookPath(name string) (string, error)
}

// SplitCommand splits a command line such as "code --wait" into a program
// and its arguments. Quoting is not supported.
func SplitCommand(line string) (string, []string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil, ErrEmptyCommand
	}
	return fields[0], fields[1:], nil
}
