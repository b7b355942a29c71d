package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmgilman/spawn/internal/history"
)

// Output formats for the history command.
const (
	outputTable = "table"
	outputYAML  = "yaml"
	outputJSON  = "json"
)

var historyCmd = &cobra.Command{
	Use:     "history",
	Aliases: []string{"ls"},
	Short:   "List recorded runs",
	Long: `List runs recorded by "spawn run", oldest first.

Runs can be referred to in other commands by ID, by unique ID prefix or by
name.

A run shows as stale when it was recorded as running but neither the program
nor the spawn process recording it is alive any more, for example after the
terminal running spawn was killed.`,
	Example: `  # List all runs
  spawn history

  # Only runs that were killed by a signal
  spawn history --status signaled

  # Machine-readable output
  spawn history -o json`,
	Args: cobra.NoArgs,
	RunE: runHistoryCmd,
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	status, err := cmd.Flags().GetString("status")
	if err != nil {
		return fmt.Errorf("get status flag: %w", err)
	}

	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return fmt.Errorf("get output flag: %w", err)
	}

	want := history.Status(status)
	if err := validateStatus(want); err != nil {
		return err
	}

	// Stale is derived from running entries, so filter those after listing.
	filter := history.ListFilter{Status: want}
	if want == history.StatusStale {
		filter.Status = history.StatusRunning
	}

	cfg, err := requireConfig(cmd.Context())
	if err != nil {
		return err
	}

	entries, err := openHistory(cfg).List(cmd.Context(), filter)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	entries = withCurrentStatus(entries, want)

	out := cmd.OutOrStdout()
	switch output {
	case outputTable:
		return writeHistoryTable(out, entries)
	case outputJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case outputYAML:
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		return enc.Encode(entries)
	default:
		return fmt.Errorf("unknown output format %q (valid: %s, %s, %s)", output, outputTable, outputYAML, outputJSON)
	}
}

func validateStatus(s history.Status) error {
	switch s {
	case "", history.StatusRunning, history.StatusExited, history.StatusSignaled, history.StatusFailed, history.StatusStale:
		return nil
	}
	return fmt.Errorf("unknown status %q (valid: running, exited, signaled, failed, stale)", s)
}

// withCurrentStatus replaces each stored status with the current one and
// keeps entries matching want (all when empty).
func withCurrentStatus(entries []history.Entry, want history.Status) []history.Entry {
	out := []history.Entry{}
	for _, e := range entries {
		e.Status = e.CurrentStatus()
		if want == "" || e.Status == want {
			out = append(out, e)
		}
	}
	return out
}

func writeHistoryTable(out io.Writer, entries []history.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(out, "No runs recorded")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "ID\tNAME\tSTATUS\tEXIT\tSTARTED\tDURATION\tCOMMAND"); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, e := range entries {
		exit := "-"
		if e.Finished() && e.Status != history.StatusStale {
			exit = fmt.Sprint(e.ExitCode)
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.Name, e.Status, exit,
			e.StartedAt.Local().Format(time.DateTime),
			formatDuration(e.Duration()),
			truncateCommand(e.Args, 40),
		); err != nil {
			return fmt.Errorf("write run: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

func truncateCommand(args []string, width int) string {
	s := strings.Join(args, " ")
	if r := []rune(s); len(r) > width {
		return string(r[:width-3]) + "..."
	}
	return s
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().String("status", "", "filter by status (running, exited, signaled, failed, stale)")
	historyCmd.Flags().StringP("output", "o", outputTable, "output format (table, yaml, json)")
}
