package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmgilman/spawn/internal/config"
	"github.com/jmgilman/spawn/internal/exec"
	"github.com/jmgilman/spawn/internal/slogger"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "View and modify configuration",
	Long: `View and modify spawn configuration.

With no arguments, displays all configuration.
With one argument, displays the value for the specified key.
With two arguments, sets the value for the specified key.

The env key holds a comma-separated list of NAME=VALUE pairs when set here.`,
	Example: `  # Show all config
  spawn config

  # Show value for a specific key
  spawn config default.shell

  # Set a value
  spawn config default.encoding latin1

  # Open config file in editor
  spawn config --edit`,
	Args: cobra.RangeArgs(0, 2),
	// Config must stay usable when the file does not validate, so the root
	// hook that loads it is replaced with one that only sets up logging.
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cmd.SetContext(slogger.WithLogger(cmd.Context(), newLogger(cmd, "")))
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		loader, err := config.NewLoader()
		if err != nil {
			return fmt.Errorf("init config loader: %w", err)
		}

		editFlag, _ := cmd.Flags().GetBool("edit")
		if editFlag {
			return runEdit(cmd, loader)
		}

		out := cmd.OutOrStdout()
		switch len(args) {
		case 0:
			return runShowAll(loader, out)
		case 1:
			return runShowKey(loader, out, args[0])
		default:
			return runSetKey(loader, out, args[0], args[1])
		}
	},
}

func runEdit(cmd *cobra.Command, loader *config.Loader) error {
	name, args, err := exec.SplitCommand(os.Getenv("EDITOR"))
	if err != nil {
		return config.ErrNoEditor
	}

	// Load creates the file when missing. A file that fails validation is
	// exactly what the user may want to fix, so that error is ignored.
	if _, err := os.Stat(loader.Path()); err != nil {
		if _, err := loader.Load(); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}

	_, err = executor.Run(cmd.Context(), exec.RunOptions{
		Name:   name,
		Args:   append(args, loader.Path()),
		Stdin:  cmd.InOrStdin(),
		Stdout: cmd.OutOrStdout(),
		Stderr: cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("run editor: %w", err)
	}
	return nil
}

func runShowAll(loader *config.Loader, out io.Writer) error {
	if _, err := loader.Load(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	data, err := yaml.Marshal(loader.All())
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	_, err = out.Write(data)
	return err
}

func runShowKey(loader *config.Loader, out io.Writer, key string) error {
	if err := config.ValidateKey(key); err != nil {
		return err
	}

	if _, err := loader.Load(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	value, err := loader.Get(key)
	if err != nil {
		return err
	}

	switch v := value.(type) {
	case nil:
		_, err = fmt.Fprintln(out)
	case string:
		_, err = fmt.Fprintln(out, v)
	case map[string]any, []any, []string:
		var data []byte
		if data, err = yaml.Marshal(v); err == nil {
			_, err = out.Write(data)
		}
	default:
		_, err = fmt.Fprintln(out, value)
	}
	return err
}

func runSetKey(loader *config.Loader, out io.Writer, key, value string) error {
	if _, err := loader.Load(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := loader.Set(key, value); err != nil {
		return err
	}

	_, err := fmt.Fprintf(out, "Set %s = %s\n", key, value)
	return err
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.Flags().Bool("edit", false, "open config file in $EDITOR")
}
