package exec

import (
	"context"
	"os"
	"os/exec"
)

type executor struct{}

// New returns an Executor backed by os/exec.
func New() Executor {
	return &executor{}
}

func (e *executor) Run(ctx context.Context, opts RunOptions) (int, error) {
	if opts.Name == "" {
		return -1, ErrEmptyCommand
	}

	cmd := exec.CommandContext(ctx, opts.Name, opts.Args...) //nolint:gosec // G204: helper programs are chosen by the user

	cmd.Dir = opts.Dir
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}

	cmd.Stdin = opts.Stdin
	if cmd.Stdin == nil {
		cmd.Stdin = os.Stdin
	}
	cmd.Stdout = opts.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = opts.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	err := cmd.Run()
	if cmd.ProcessState == nil {
		return -1, err
	}
	return cmd.ProcessState.ExitCode(), err
}

func (e *executor) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}
