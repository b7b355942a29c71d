package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmgilman/spawn/internal/config"
	"github.com/jmgilman/spawn/internal/environ"
	"github.com/jmgilman/spawn/internal/history"
	"github.com/jmgilman/spawn/internal/keychain"
	"github.com/jmgilman/spawn/internal/logging"
	"github.com/jmgilman/spawn/internal/prompt"
	"github.com/jmgilman/spawn/internal/slogger"
	"github.com/jmgilman/spawn/internal/spawn"
	"github.com/jmgilman/spawn/internal/spinner"
)

// exitSpawnFailed matches the shell convention for a command that could
// not be executed.
const exitSpawnFailed = 127

type runOptions struct {
	env        []string
	envFiles   []string
	secrets    []string
	dir        string
	encoding   string
	script     string
	name       string
	reassemble bool
	spinner    bool
	noRecord   bool
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run [flags] [--] PROGRAM [ARGS...]",
	Short: "Run a program and stream its output",
	Long: `Run a program with stdout and stderr merged into one stream.

Output is printed as it arrives, decoded from the configured encoding, and
spawn exits with the program's exit code (128+N when killed by signal N).

The child inherits spawn's environment. Overrides are layered in this order,
later sources winning: the config "env" list, --env-file files, --secret
values from the keychain, then --env flags.

Unless recording is disabled, the run is added to the history and its output
is saved to a log file that "spawn logs" can replay.`,
	Example: `  # Run a program
  spawn run -- ls -la /tmp

  # Run a shell script with the configured shell
  spawn run -c 'echo out; echo err >&2; exit 3'

  # Override environment variables
  spawn run -e GREETING=hello --env-file .env -c 'echo $GREETING'

  # Inject a secret stored with "spawn secret set"
  spawn run --secret API_TOKEN -- ./deploy.sh

  # Name the run for "spawn logs"
  spawn run --name build -- make

  # Decode Latin-1 output and show a spinner instead of raw output
  spawn run --encoding latin1 --spinner -- make build`,
	Args: cobra.ArbitraryArgs,
	RunE: runRunCmd,
}

func runRunCmd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := slogger.L(ctx)

	cfg, err := requireConfig(ctx)
	if err != nil {
		return err
	}

	argv, err := buildArgv(cfg.Default.Shell, runOpts.script, args)
	if err != nil {
		return err
	}

	env, err := buildEnv(cfg, runOpts, prompt.New(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}

	charset := runOpts.encoding
	if charset == "" {
		charset = cfg.Default.Encoding
	}
	if !spawn.ValidCharset(charset) {
		return fmt.Errorf("%w: %s", spawn.ErrUnknownEncoding, charset)
	}

	var out io.Writer = cmd.OutOrStdout()
	var sp *spinner.Spinner
	spinnerDone := make(chan error, 1)
	if runOpts.spinner {
		sp = spinner.New(cmd.ErrOrStderr())
		out = sp
		go func() { spinnerDone <- sp.Start() }()
	}
	stopSpinner := func() {
		if sp == nil {
			return
		}
		sp.Stop()
		if err := <-spinnerDone; err != nil {
			log.Debug("spinner", "error", err)
		}
		sp = nil
	}
	defer stopSpinner()

	var rec *recorder
	if cfg.Default.Record && !runOpts.noRecord {
		rec, err = startRecording(ctx, cfg, runOpts.name, argv, environ.Keys(env), runOpts.dir, out)
		if err != nil {
			return err
		}
		defer rec.close(log)
		out = rec.tee
		log.Info("recording run", "id", rec.entry.ID, "name", rec.entry.Name)
	}

	h, err := spawn.Start(spawn.Request{
		Args:       argv,
		Env:        env,
		Output:     func(chunk string) { _, _ = io.WriteString(out, chunk) },
		Dir:        runOpts.dir,
		Charset:    charset,
		Reassemble: runOpts.reassemble || cfg.Default.Reassemble,
		Logger:     log,
	})
	if err != nil {
		if rec != nil {
			rec.failed(ctx, log, err)
		}
		if errors.Is(err, spawn.ErrSpawn) {
			stopSpinner()
			fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
			return &ExitError{Code: exitSpawnFailed}
		}
		return err
	}

	if rec != nil {
		rec.started(ctx, log, h.Pid())
	}

	stopSignals := forwardSignals(h, log)
	status, waitErr := h.Wait()
	stopSignals()
	stopSpinner()

	if rec != nil {
		rec.finished(ctx, log, status, waitErr)
	}

	if errors.Is(waitErr, spawn.ErrWait) {
		return waitErr
	}
	if waitErr != nil {
		log.Error("run finished with error", "error", waitErr)
	}

	log.Info("process finished", "pid", h.Pid(), "status", status.String())

	if code := exitCode(status); code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

// buildArgv returns the argument vector to execute. A script runs through
// shell; otherwise a bare program name is resolved on PATH.
func buildArgv(shell, script string, args []string) ([]string, error) {
	if script != "" {
		return append([]string{shell, "-c", script}, args...), nil
	}
	if len(args) == 0 {
		return nil, errors.New("no program given: pass PROGRAM [ARGS...] or use -c SCRIPT")
	}

	argv := append([]string(nil), args...)
	if !strings.Contains(argv[0], "/") {
		path, err := executor.LookPath(argv[0])
		if err != nil {
			return nil, fmt.Errorf("find program: %w", err)
		}
		argv[0] = path
	}
	return argv, nil
}

// buildEnv layers environment overrides from lowest to highest priority.
func buildEnv(cfg *config.Config, opts runOptions, p prompt.Prompter) (map[string]string, error) {
	base, err := cfg.EnvOverrides()
	if err != nil {
		return nil, fmt.Errorf("config env: %w", err)
	}

	files, err := environ.ReadFiles(opts.envFiles...)
	if err != nil {
		return nil, err
	}

	secrets := map[string]string{}
	if len(opts.secrets) > 0 {
		kc, err := openKeychain(cfg, p)
		if err != nil {
			return nil, err
		}
		if secrets, err = keychain.Resolve(kc, opts.secrets); err != nil {
			return nil, err
		}
	}

	flags, err := environ.Parse(opts.env)
	if err != nil {
		return nil, err
	}

	return environ.Layer(base, files, secrets, flags), nil
}

// forwardedSignals are passed on to the child. SIGINT is not among them: from
// a terminal it already reaches the child through the process group.
var forwardedSignals = []os.Signal{syscall.SIGTERM, syscall.SIGHUP}

// forwardSignals keeps spawn alive on SIGINT, SIGTERM and SIGHUP until the
// child has been reaped, so the run is always recorded as finished.
func forwardSignals(h *spawn.Handle, log *slog.Logger) (stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, append([]os.Signal{os.Interrupt}, forwardedSignals...)...)

	quit := make(chan struct{})
	go func() {
		for {
			select {
			case <-quit:
				return
			case <-h.Done():
				return
			case sig := <-sigCh:
				log.Info("received signal, waiting for process", "signal", sig, "pid", h.Pid())
				if s, ok := sig.(syscall.Signal); ok && slices.Contains(forwardedSignals, sig) {
					if err := syscall.Kill(h.Pid(), s); err != nil {
						log.Debug("forward signal", "error", err)
					}
				}
			}
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(quit)
	}
}

// runName returns requested, or a generated name when it is empty. Whether a
// requested name is free is decided when the entry is added.
func runName(ctx context.Context, store history.Store, requested string) (string, error) {
	if requested != "" {
		return requested, nil
	}
	name, err := history.UniqueName(ctx, store)
	if err != nil {
		return "", fmt.Errorf("name run: %w", err)
	}
	return name, nil
}

// recorder tracks one run in the history and tees its output to a log file.
// The entry is added before launch, which also claims its name. Once the
// child runs, history failures are logged rather than returned.
type recorder struct {
	store history.Store
	entry history.Entry
	tee   *logging.TeeWriter
}

func startRecording(ctx context.Context, cfg *config.Config, name string, argv, envKeys []string, dir string, out io.Writer) (*recorder, error) {
	store := openHistory(cfg)

	name, err := runName(ctx, store, name)
	if err != nil {
		return nil, err
	}

	id := history.NewID()
	logPath, err := logPaths(cfg).EnsureRunLog(id)
	if err != nil {
		return nil, err
	}

	tee, err := logging.NewTeeWriter(out, logPath)
	if err != nil {
		return nil, err
	}

	entry := history.Entry{
		ID:        id,
		Name:      name,
		Args:      argv,
		EnvKeys:   envKeys,
		Dir:       dir,
		Owner:     os.Getpid(),
		Status:    history.StatusRunning,
		LogPath:   logPath,
		StartedAt: time.Now(),
	}
	if err := store.Add(ctx, entry); err != nil {
		_ = tee.Close()
		_ = logPaths(cfg).RemoveRunLog(id)
		return nil, fmt.Errorf("record run %s: %w", name, err)
	}

	return &recorder{store: store, tee: tee, entry: entry}, nil
}

func (r *recorder) started(ctx context.Context, log *slog.Logger, pid int) {
	r.entry.Pid = pid
	if err := r.store.Update(ctx, r.entry); err != nil {
		log.Warn("record run start", "id", r.entry.ID, "error", err)
	}
}

func (r *recorder) failed(ctx context.Context, log *slog.Logger, spawnErr error) {
	r.entry.Status = history.StatusFailed
	r.entry.Error = spawnErr.Error()
	r.entry.ExitCode = exitSpawnFailed
	r.entry.FinishedAt = time.Now()
	if err := r.store.Update(ctx, r.entry); err != nil {
		log.Warn("record failed run", "id", r.entry.ID, "error", err)
	}
}

func (r *recorder) finished(ctx context.Context, log *slog.Logger, status spawn.Status, waitErr error) {
	r.entry.FinishedAt = time.Now()
	r.entry.RawStatus = status.Raw()
	r.entry.ExitCode = exitCode(status)

	switch {
	case errors.Is(waitErr, spawn.ErrWait):
		r.entry.Status = history.StatusFailed
	case status.Signaled():
		r.entry.Status = history.StatusSignaled
	default:
		r.entry.Status = history.StatusExited
	}
	if waitErr != nil {
		r.entry.Error = waitErr.Error()
	}

	if err := r.store.Update(ctx, r.entry); err != nil {
		log.Warn("record run result", "id", r.entry.ID, "error", err)
	}
}

func (r *recorder) close(log *slog.Logger) {
	path := r.tee.LogPath()
	if err := r.tee.Err(); err != nil {
		log.Warn("run log incomplete", "path", path, "error", err)
	}
	if err := r.tee.Sync(); err != nil {
		log.Warn("sync run log", "path", path, "error", err)
	}
	if err := r.tee.Close(); err != nil {
		log.Warn("close run log", "path", path, "error", err)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.SetInterspersed(false)
	f.StringArrayVarP(&runOpts.env, "env", "e", nil, "set an environment variable (NAME=VALUE, repeatable)")
	f.StringArrayVar(&runOpts.envFiles, "env-file", nil, "read environment variables from a dotenv file (repeatable)")
	f.StringArrayVar(&runOpts.secrets, "secret", nil, "inject a keychain secret as an environment variable (repeatable)")
	f.StringVarP(&runOpts.dir, "dir", "C", "", "working directory for the program")
	f.StringVar(&runOpts.encoding, "encoding", "", "encoding of the program's output (default from config)")
	f.StringVarP(&runOpts.script, "command", "c", "", "run SCRIPT with the configured shell")
	f.StringVar(&runOpts.name, "name", "", "name the recorded run (default: generated)")
	f.BoolVar(&runOpts.reassemble, "reassemble", false, "keep multi-byte characters intact across read boundaries")
	f.BoolVar(&runOpts.spinner, "spinner", false, "show a spinner with the latest output line instead of raw output")
	f.BoolVar(&runOpts.noRecord, "no-record", false, "do not record the run in history")
}
