package cmd

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmgilman/spawn/internal/config"
	"github.com/jmgilman/spawn/internal/environ"
	"github.com/jmgilman/spawn/internal/history"
	"github.com/jmgilman/spawn/internal/logging"
	"github.com/jmgilman/spawn/internal/slogger"
	"github.com/jmgilman/spawn/internal/spawn"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   int
	}{
		{name: "success", script: "exit 0", want: 0},
		{name: "exit status", script: "exit 3", want: 3},
		{name: "signal", script: "kill -TERM $$", want: 128 + 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, err := spawn.Run(spawn.Request{Args: []string{"/bin/sh", "-c", tt.script}})
			require.NoError(t, err)
			assert.Equal(t, tt.want, exitCode(status))
		})
	}
}

func TestBuildArgv(t *testing.T) {
	t.Run("script uses shell", func(t *testing.T) {
		argv, err := buildArgv("/bin/sh", "echo $0 $1", []string{"zero", "one"})
		require.NoError(t, err)
		assert.Equal(t, []string{"/bin/sh", "-c", "echo $0 $1", "zero", "one"}, argv)
	})

	t.Run("absolute program kept", func(t *testing.T) {
		argv, err := buildArgv("/bin/sh", "", []string{"/bin/echo", "hi"})
		require.NoError(t, err)
		assert.Equal(t, []string{"/bin/echo", "hi"}, argv)
	})

	t.Run("bare program resolved on PATH", func(t *testing.T) {
		argv, err := buildArgv("/bin/sh", "", []string{"sh", "-c", "true"})
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(argv[0]), "got %q", argv[0])
		assert.Equal(t, []string{"-c", "true"}, argv[1:])
	})

	t.Run("unknown program", func(t *testing.T) {
		_, err := buildArgv("/bin/sh", "", []string{"definitely-not-a-program-xyz"})
		assert.ErrorContains(t, err, "find program")
	})

	t.Run("nothing to run", func(t *testing.T) {
		_, err := buildArgv("/bin/sh", "", nil)
		assert.Error(t, err)
	})
}

func TestBuildEnv_Precedence(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("A=file\nB=file\nC=file\n"), 0o644))

	cfg := &config.Config{Env: []string{"A=config", "D=config"}}
	opts := runOptions{
		envFiles: []string{envFile},
		env:      []string{"B=flag"},
	}

	env, err := buildEnv(cfg, opts, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"A": "file",
		"B": "flag",
		"C": "file",
		"D": "config",
	}, env)
}

func TestBuildEnv_BadFlag(t *testing.T) {
	_, err := buildEnv(&config.Config{}, runOptions{env: []string{"novalue"}}, nil)
	assert.ErrorIs(t, err, environ.ErrInvalidPair)
}

func TestFormatList(t *testing.T) {
	assert.Equal(t, "", formatList(nil))
	assert.Equal(t, "a", formatList([]string{"a"}))
	assert.Equal(t, "a and b", formatList([]string{"a", "b"}))
	assert.Equal(t, "a, b, and c", formatList([]string{"a", "b", "c"}))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "12ms", formatDuration(12345*time.Microsecond))
	assert.Equal(t, "1.5s", formatDuration(1520*time.Millisecond))
	assert.Equal(t, "2m5s", formatDuration(125*time.Second+300*time.Millisecond))
}

func TestTruncateCommand(t *testing.T) {
	assert.Equal(t, "/bin/echo hi", truncateCommand([]string{"/bin/echo", "hi"}, 40))
	assert.Equal(t, "/bin/sh -c ...", truncateCommand([]string{"/bin/sh", "-c", "echo something long"}, 14))
}

func TestValidateStatus(t *testing.T) {
	assert.NoError(t, validateStatus(""))
	assert.NoError(t, validateStatus(history.StatusSignaled))
	assert.NoError(t, validateStatus(history.StatusStale))
	assert.Error(t, validateStatus("paused"))
}

// reapedPid returns the pid of a process that has already exited.
func reapedPid(t *testing.T) int {
	t.Helper()
	c := exec.Command("true")
	require.NoError(t, c.Run())
	return c.Process.Pid
}

func TestWithoutRunning(t *testing.T) {
	keep, skipped := withoutRunning([]history.Entry{
		{Name: "a", Status: history.StatusExited},
		{Name: "b", Status: history.StatusRunning, Pid: os.Getpid()},
		{Name: "c", Status: history.StatusFailed},
		{Name: "d", Status: history.StatusRunning, Pid: reapedPid(t)},
	})

	require.Len(t, keep, 3)
	assert.Equal(t, "a", keep[0].Name)
	assert.Equal(t, "c", keep[1].Name)
	assert.Equal(t, "d", keep[2].Name, "stale runs are removable")
	assert.Equal(t, []string{"b"}, skipped)
}

func TestWithCurrentStatus(t *testing.T) {
	entries := []history.Entry{
		{Name: "live", Status: history.StatusRunning, Pid: os.Getpid()},
		{Name: "gone", Status: history.StatusRunning, Pid: reapedPid(t)},
		{Name: "done", Status: history.StatusExited},
	}

	all := withCurrentStatus(entries, "")
	require.Len(t, all, 3)
	assert.Equal(t, history.StatusRunning, all[0].Status)
	assert.Equal(t, history.StatusStale, all[1].Status)
	assert.Equal(t, history.StatusExited, all[2].Status)

	stale := withCurrentStatus(entries, history.StatusStale)
	require.Len(t, stale, 1)
	assert.Equal(t, "gone", stale[0].Name)

	running := withCurrentStatus(entries, history.StatusRunning)
	require.Len(t, running, 1)
	assert.Equal(t, "live", running[0].Name)

	assert.NotNil(t, withCurrentStatus(nil, ""))
}

func TestRunFinished_StaleRun(t *testing.T) {
	ctx := context.Background()
	store := history.NewStore(filepath.Join(t.TempDir(), "history.json"))
	require.NoError(t, store.Add(ctx, history.Entry{
		ID:     history.NewID(),
		Name:   "hup",
		Status: history.StatusRunning,
		Pid:    reapedPid(t),
	}))

	entry, err := store.GetByName(ctx, "hup")
	require.NoError(t, err)
	assert.True(t, runFinished(ctx, store, entry.ID)())
	assert.True(t, runFinished(ctx, store, "missing")())
}

func TestForwardSignals(t *testing.T) {
	for _, sig := range []syscall.Signal{syscall.SIGTERM, syscall.SIGHUP} {
		t.Run(sig.String(), func(t *testing.T) {
			h, err := spawn.Start(spawn.Request{Args: []string{"/bin/sh", "-c", "exec sleep 30"}})
			require.NoError(t, err)

			stop := forwardSignals(h, slogger.Discard())
			defer stop()

			require.NoError(t, syscall.Kill(os.Getpid(), sig))

			status, err := h.Wait()
			require.NoError(t, err)
			require.True(t, status.Signaled(), "status %s", status)
			assert.Equal(t, sig, status.Signal())
		})
	}
}

func TestRunName(t *testing.T) {
	ctx := context.Background()
	store := history.NewStore(filepath.Join(t.TempDir(), "history.json"))

	name, err := runName(ctx, store, "build")
	require.NoError(t, err)
	assert.Equal(t, "build", name)

	name, err = runName(ctx, store, "")
	require.NoError(t, err)
	assert.Contains(t, name, "_")
}

func testRecordingConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{Storage: config.StorageConfig{
		History: filepath.Join(dir, "history.json"),
		Logs:    filepath.Join(dir, "logs"),
	}}
}

func TestStartRecording(t *testing.T) {
	ctx := context.Background()
	cfg := testRecordingConfig(t)
	log := slogger.Discard()

	rec, err := startRecording(ctx, cfg, "build", []string{"/bin/true"}, nil, "", &bytes.Buffer{})
	require.NoError(t, err)
	defer rec.close(log)

	t.Run("entry is reserved before launch", func(t *testing.T) {
		got, err := openHistory(cfg).GetByName(ctx, "build")
		require.NoError(t, err)
		assert.Equal(t, history.StatusRunning, got.Status)
		assert.Equal(t, os.Getpid(), got.Owner)
		assert.Zero(t, got.Pid)
		assert.False(t, got.Finished())
	})

	t.Run("duplicate name fails without orphaning a log", func(t *testing.T) {
		before, err := logPaths(cfg).ListRunLogs()
		require.NoError(t, err)

		_, err = startRecording(ctx, cfg, "build", []string{"/bin/true"}, nil, "", &bytes.Buffer{})
		require.ErrorIs(t, err, history.ErrAlreadyExists)

		after, err := logPaths(cfg).ListRunLogs()
		require.NoError(t, err)
		assert.ElementsMatch(t, before, after)
	})

	t.Run("started and finished update the same entry", func(t *testing.T) {
		status, err := spawn.Run(spawn.Request{Args: []string{"/bin/sh", "-c", "exit 4"}})
		require.NoError(t, err)

		rec.started(ctx, log, 4242)
		rec.finished(ctx, log, status, nil)

		entries, err := openHistory(cfg).List(ctx, history.ListFilter{})
		require.NoError(t, err)
		var builds []history.Entry
		for _, e := range entries {
			if e.Name == "build" {
				builds = append(builds, e)
			}
		}
		require.Len(t, builds, 1)
		assert.Equal(t, 4242, builds[0].Pid)
		assert.Equal(t, history.StatusExited, builds[0].Status)
		assert.Equal(t, 4, builds[0].ExitCode)
	})
}

func TestOutputLogs(t *testing.T) {
	pm := logging.NewPathManager(t.TempDir())
	path, err := pm.EnsureRunLog("run1")
	require.NoError(t, err)

	var content bytes.Buffer
	for i := range 150 {
		content.WriteString(time.Duration(i).String() + "\n")
	}
	require.NoError(t, os.WriteFile(path, content.Bytes(), 0o644))
	reader := logging.NewReader(pm)

	var tail bytes.Buffer
	require.NoError(t, outputLogs(reader, "run1", &tail, 10, false))
	assert.Equal(t, 10, bytes.Count(tail.Bytes(), []byte("\n")))

	var all bytes.Buffer
	require.NoError(t, outputLogs(reader, "run1", &all, 0, false))
	assert.Equal(t, content.String(), all.String())
}

func TestExitError(t *testing.T) {
	err := &ExitError{Code: 42}
	assert.EqualError(t, err, "exit status 42")
}
