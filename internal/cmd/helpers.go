package cmd

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/99designs/keyring"

	"github.com/jmgilman/spawn/internal/config"
	"github.com/jmgilman/spawn/internal/exec"
	"github.com/jmgilman/spawn/internal/history"
	"github.com/jmgilman/spawn/internal/keychain"
	"github.com/jmgilman/spawn/internal/logging"
	"github.com/jmgilman/spawn/internal/prompt"
	"github.com/jmgilman/spawn/internal/spawn"
)

// keyringPasswordEnv supplies the file keyring password without prompting.
const keyringPasswordEnv = "SPAWN_KEYRING_PASSWORD"

// executor runs helper programs such as the editor.
var executor = exec.New()

func requireConfig(ctx context.Context) (*config.Config, error) {
	cfg := ConfigFromContext(ctx)
	if cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}

func openHistory(cfg *config.Config) history.Store {
	return history.NewStore(cfg.Storage.History)
}

func logPaths(cfg *config.Config) *logging.PathManager {
	return logging.NewPathManager(cfg.Storage.Logs)
}

func openKeychain(cfg *config.Config, p prompt.Prompter) (keychain.Keychain, error) {
	opts := keychain.Options{
		FileDir: cfg.Storage.Keyring,
		FilePassword: func(title string) (string, error) {
			if pw, ok := os.LookupEnv(keyringPasswordEnv); ok {
				return pw, nil
			}
			return p.Secret(title)
		},
	}
	if cfg.Keyring.Backend != "" {
		opts.Backends = []keyring.BackendType{keyring.BackendType(cfg.Keyring.Backend)}
	}
	return keychain.Open(opts)
}

// exitCode maps a wait status to a shell-style exit code.
func exitCode(s spawn.Status) int {
	switch {
	case s.Exited():
		return s.ExitCode()
	case s.Signaled():
		return 128 + int(s.Signal())
	default:
		return 1
	}
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return d.Round(100 * time.Millisecond).String()
	default:
		return d.Round(time.Second).String()
	}
}

// formatList joins strings with commas and "and" before the last item.
func formatList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	default:
		return strings.Join(items[:len(items)-1], ", ") + ", and " + items[len(items)-1]
	}
}
