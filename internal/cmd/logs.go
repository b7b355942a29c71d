package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jmgilman/spawn/internal/history"
	"github.com/jmgilman/spawn/internal/logging"
)

var logsCmd = &cobra.Command{
	Use:   "logs <run>",
	Short: "View output from a recorded run",
	Long: `View the output a run produced, read from its log file.

The run may be given by ID, unique ID prefix or name. With --follow, output
is streamed until the run finishes or spawn is interrupted.`,
	Example: `  # View recent output (last 100 lines)
  spawn logs focused_turing

  # Follow a run that is still going
  spawn logs 01JB -f

  # Show last 500 lines
  spawn logs focused_turing -n 500

  # Show every line
  spawn logs focused_turing -n 0

  # Show the entire log byte for byte
  spawn logs focused_turing --full`,
	Args: cobra.ExactArgs(1),
	RunE: runLogsCmd,
}

func runLogsCmd(cmd *cobra.Command, args []string) error {
	follow, err := cmd.Flags().GetBool("follow")
	if err != nil {
		return fmt.Errorf("get follow flag: %w", err)
	}

	lines, err := cmd.Flags().GetInt("lines")
	if err != nil {
		return fmt.Errorf("get lines flag: %w", err)
	}

	full, err := cmd.Flags().GetBool("full")
	if err != nil {
		return fmt.Errorf("get full flag: %w", err)
	}

	ctx := cmd.Context()
	cfg, err := requireConfig(ctx)
	if err != nil {
		return err
	}

	store := openHistory(cfg)
	entry, err := store.Resolve(ctx, args[0])
	if err != nil {
		return fmt.Errorf("find run %s: %w", args[0], err)
	}

	pathMgr := logPaths(cfg)
	if !pathMgr.LogExists(entry.ID) {
		return fmt.Errorf("no log file found for run %s", entry.Name)
	}
	reader := logging.NewReader(pathMgr)
	out := cmd.OutOrStdout()

	if follow && !entry.Finished() {
		return reader.FollowWithHistory(ctx, entry.ID, out, lines, logging.DefaultPollInterval, runFinished(ctx, store, entry.ID))
	}

	return outputLogs(reader, entry.ID, out, lines, full)
}

// runFinished reports whether the run has left the running state, has gone
// stale, or has vanished from the history.
func runFinished(ctx context.Context, store history.Store, id string) func() bool {
	return func() bool {
		e, err := store.Get(ctx, id)
		return err != nil || e.Finished()
	}
}

func outputLogs(reader *logging.Reader, runID string, out io.Writer, lines int, full bool) error {
	if full {
		return reader.Copy(runID, out)
	}

	var logLines []string
	var err error
	if lines == 0 {
		logLines, err = reader.ReadAll(runID)
	} else {
		logLines, err = reader.ReadLastN(runID, lines)
	}
	if err != nil {
		return fmt.Errorf("read log: %w", err)
	}

	for _, line := range logLines {
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().BoolP("follow", "f", false, "follow log output until the run finishes")
	logsCmd.Flags().IntP("lines", "n", logging.DefaultTailLines, "number of lines to show (0 for all)")
	logsCmd.Flags().Bool("full", false, "show the entire log exactly as recorded")
}
