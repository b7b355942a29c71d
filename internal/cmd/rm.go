package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jmgilman/spawn/internal/history"
	"github.com/jmgilman/spawn/internal/prompt"
	"github.com/jmgilman/spawn/internal/slogger"
)

var rmCmd = &cobra.Command{
	Use:   "rm <run>... | --all",
	Short: "Remove recorded runs",
	Long: `Remove runs from the history together with their log files.

Runs that are still running are skipped unless --force is given; stale runs
are removed like finished ones. With --all, every run is removed along with
any log file no run refers to.

Removal is confirmed interactively unless --yes or --force is given.`,
	Example: `  # Remove a run with confirmation prompt
  spawn rm focused_turing

  # Remove several finished runs without confirmation
  spawn rm 01JB 01JC --yes

  # Clear the whole history
  spawn rm --all --force`,
	RunE: runRmCmd,
}

func runRmCmd(cmd *cobra.Command, args []string) error {
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return fmt.Errorf("get force flag: %w", err)
	}

	all, err := cmd.Flags().GetBool("all")
	if err != nil {
		return fmt.Errorf("get all flag: %w", err)
	}

	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return fmt.Errorf("get yes flag: %w", err)
	}

	if all == (len(args) > 0) {
		return errors.New("specify runs to remove or --all, not both")
	}

	ctx := cmd.Context()
	log := slogger.L(ctx)
	cfg, err := requireConfig(ctx)
	if err != nil {
		return err
	}
	store := openHistory(cfg)

	var targets []history.Entry
	if all {
		if targets, err = store.List(ctx, history.ListFilter{}); err != nil {
			return fmt.Errorf("list runs: %w", err)
		}
	} else {
		for _, ref := range args {
			entry, err := store.Resolve(ctx, ref)
			if err != nil {
				return fmt.Errorf("find run %s: %w", ref, err)
			}
			targets = append(targets, *entry)
		}
	}

	var skipped []string
	if !force {
		targets, skipped = withoutRunning(targets)
	}
	for _, name := range skipped {
		fmt.Fprintf(cmd.ErrOrStderr(), "Skipping %s: still running (use --force)\n", name)
	}

	if len(targets) == 0 && !all {
		return nil
	}

	p := prompt.New(cmd.ErrOrStderr())
	if !force && !yes && len(targets) > 0 {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return errors.New("cannot confirm removal without a terminal (use --yes)")
		}
		ok, err := p.Confirm(fmt.Sprintf("Remove %d run(s)?", len(targets)), "Their log files are deleted too.")
		if err != nil {
			return err
		}
		if !ok {
			p.Print("Canceled")
			return nil
		}
	}

	pathMgr := logPaths(cfg)
	var removed []string
	for _, e := range targets {
		if err := store.Remove(ctx, e.ID); err != nil && !errors.Is(err, history.ErrNotFound) {
			return fmt.Errorf("remove run %s: %w", e.Name, err)
		}
		if err := pathMgr.RemoveRunLog(e.ID); err != nil {
			return err
		}
		removed = append(removed, e.Name)
	}

	if all {
		orphans, err := pathMgr.Prune(func(id string) bool {
			_, err := store.Get(ctx, id)
			return err == nil
		})
		if err != nil {
			return fmt.Errorf("prune logs: %w", err)
		}
		log.Info("pruned orphaned logs", "dir", pathMgr.BaseDir(), "count", len(orphans))
	}

	if len(removed) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing to remove")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", formatList(removed))
	return nil
}

func withoutRunning(entries []history.Entry) (keep []history.Entry, skipped []string) {
	for _, e := range entries {
		if e.Finished() {
			keep = append(keep, e)
		} else {
			skipped = append(skipped, e.Name)
		}
	}
	return keep, skipped
}

func init() {
	rootCmd.AddCommand(rmCmd)

	rmCmd.Flags().BoolP("force", "f", false, "skip confirmation and remove running runs too")
	rmCmd.Flags().BoolP("all", "a", false, "remove every recorded run")
	rmCmd.Flags().BoolP("yes", "y", false, "skip confirmation")
}
