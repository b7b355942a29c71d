// Package cmd implements the spawn CLI commands using Cobra.
// It provides commands for running programs with streamed output, and for
// inspecting, tailing and pruning the recorded history of those runs.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmgilman/spawn/internal/config"
	"github.com/jmgilman/spawn/internal/slogger"
)

var rootCmd = &cobra.Command{
	Use:   "spawn",
	Short: "Run programs and stream their combined output",
	Long: `Spawn runs a program with its stdout and stderr merged into a single
stream, printing output as it arrives and exiting with the program's status.

Runs are recorded in a local history together with a log of their output,
so they can be listed, replayed or followed later.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initRoot,
}

// ExitError carries a process exit code out of a command without printing
// an error message.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// Main runs the CLI and returns the process exit code.
func Main() int {
	err := Execute(context.Background())
	if err == nil {
		return 0
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	fmt.Fprintln(os.Stderr, "Error:", err)
	return 1
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "increase log verbosity (-v info, -vv debug)")
}

// initRoot loads configuration and stores it with a logger in the command
// context for subcommands.
func initRoot(cmd *cobra.Command, _ []string) error {
	loader, err := config.NewLoader()
	if err != nil {
		return fmt.Errorf("init config loader: %w", err)
	}

	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := cmd.Context()
	ctx = WithConfig(ctx, cfg)
	ctx = WithLoader(ctx, loader)
	ctx = slogger.WithLogger(ctx, newLogger(cmd, cfg.Log.Format))
	cmd.SetContext(ctx)

	return nil
}

func newLogger(cmd *cobra.Command, format string) *slog.Logger {
	verbosity, _ := cmd.Flags().GetCount("verbose")
	return slogger.New(slogger.Config{
		Verbosity: verbosity,
		Format:    format,
		Output:    cmd.ErrOrStderr(),
	})
}
