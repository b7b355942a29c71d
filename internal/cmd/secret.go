package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmgilman/spawn/internal/keychain"
	"github.com/jmgilman/spawn/internal/prompt"
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage secrets injected into runs",
	Long: `Manage secrets stored in the system keyring.

A secret named NAME is exported to a run as the environment variable NAME
when passed with "spawn run --secret NAME". Values are never written to the
history.`,
}

var secretSetCmd = &cobra.Command{
	Use:   "set <name> [value]",
	Short: "Store a secret",
	Long:  `Store a secret. When the value is omitted it is prompted for without echo.`,
	Example: `  # Prompt for the value
  spawn secret set API_TOKEN

  # Pass the value directly
  spawn secret set API_TOKEN s3cret`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if err := keychain.ValidateName(name); err != nil {
			return err
		}

		p := prompt.New(cmd.ErrOrStderr())
		kc, err := secretKeychain(cmd, p)
		if err != nil {
			return err
		}

		var value string
		if len(args) == 2 {
			value = args[1]
		} else if value, err = p.Secret("Value for " + name); err != nil {
			return err
		}

		if err := kc.Set(name, value); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Stored secret %s\n", name)
		return nil
	},
}

var secretRmCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Delete a secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kc, err := secretKeychain(cmd, prompt.New(cmd.ErrOrStderr()))
		if err != nil {
			return err
		}

		if err := kc.Delete(args[0]); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Deleted secret %s\n", args[0])
		return nil
	},
}

var secretListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored secret names",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		kc, err := secretKeychain(cmd, prompt.New(cmd.ErrOrStderr()))
		if err != nil {
			return err
		}

		names, err := kc.List()
		if err != nil {
			return err
		}

		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

func secretKeychain(cmd *cobra.Command, p prompt.Prompter) (keychain.Keychain, error) {
	cfg, err := requireConfig(cmd.Context())
	if err != nil {
		return nil, err
	}
	return openKeychain(cfg, p)
}

func init() {
	rootCmd.AddCommand(secretCmd)
	secretCmd.AddCommand(secretSetCmd)
	secretCmd.AddCommand(secretRmCmd)
	secretCmd.AddCommand(secretListCmd)
}
