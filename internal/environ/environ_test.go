package environ

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge(t *testing.T) {
	parent := []string{"PATH=/usr/bin:/bin", "HOME=/home/test", "LANG=C"}

	t.Run("empty overrides returns parent unchanged", func(t *testing.T) {
		got := Merge(parent, nil)
		assert.Equal(t, parent, got)
	})

	t.Run("override replaces parent value in place", func(t *testing.T) {
		got := Merge(parent, map[string]string{"HOME": "/tmp"})
		assert.Equal(t, []string{"PATH=/usr/bin:/bin", "HOME=/tmp", "LANG=C"}, got)
	})

	t.Run("new keys are appended sorted", func(t *testing.T) {
		got := Merge(parent, map[string]string{"ZED": "z", "TEST": "Hello World!"})
		assert.Equal(t, []string{
			"PATH=/usr/bin:/bin", "HOME=/home/test", "LANG=C",
			"TEST=Hello World!", "ZED=z",
		}, got)
	})

	t.Run("unrelated parent keys survive", func(t *testing.T) {
		got := envMap(Merge(parent, map[string]string{"TEST": "x"}))
		assert.Equal(t, "/usr/bin:/bin", got["PATH"])
		assert.Equal(t, "/home/test", got["HOME"])
		assert.Equal(t, "x", got["TEST"])
	})

	t.Run("duplicate parent keys collapse to last", func(t *testing.T) {
		got := Merge([]string{"A=1", "B=2", "A=3"}, nil)
		assert.Equal(t, []string{"A=3", "B=2"}, got)
	})

	t.Run("override empties a value", func(t *testing.T) {
		got := Merge(parent, map[string]string{"LANG": ""})
		assert.Contains(t, got, "LANG=")
	})

	t.Run("values containing equals are preserved", func(t *testing.T) {
		got := Merge([]string{"OPTS=a=b"}, map[string]string{"X": "c=d"})
		assert.Equal(t, []string{"OPTS=a=b", "X=c=d"}, got)
	})

	t.Run("no key duplicated", func(t *testing.T) {
		got := Merge(os.Environ(), map[string]string{"PATH": "/nowhere", "NEW_KEY": "1"})
		seen := make(map[string]bool)
		for _, kv := range got {
			name, _ := split(kv)
			assert.False(t, seen[name], "duplicate key %s", name)
			seen[name] = true
		}
	})
}

func TestParse(t *testing.T) {
	t.Run("parses pairs", func(t *testing.T) {
		got, err := Parse([]string{"A=1", "B=", "C=x=y"})
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"A": "1", "B": "", "C": "x=y"}, got)
	})

	t.Run("rejects missing equals", func(t *testing.T) {
		_, err := Parse([]string{"NOPE"})
		assert.ErrorIs(t, err, ErrInvalidPair)
	})

	t.Run("rejects empty name", func(t *testing.T) {
		_, err := Parse([]string{"=value"})
		assert.ErrorIs(t, err, ErrInvalidPair)
	})
}

func TestReadFiles(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.env")
	second := filepath.Join(dir, "second.env")
	require.NoError(t, os.WriteFile(first, []byte("A=1\nB=\"two words\"\n"), 0o600))
	require.NoError(t, os.WriteFile(second, []byte("# comment\nA=override\n"), 0o600))

	t.Run("later files win", func(t *testing.T) {
		got, err := ReadFiles(first, second)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"A": "override", "B": "two words"}, got)
	})

	t.Run("missing file errors", func(t *testing.T) {
		_, err := ReadFiles(filepath.Join(dir, "missing.env"))
		assert.Error(t, err)
	})
}

func TestLayer(t *testing.T) {
	got := Layer(
		map[string]string{"A": "base", "B": "base"},
		nil,
		map[string]string{"B": "top"},
	)
	assert.Equal(t, map[string]string{"A": "base", "B": "top"}, got)
	assert.Equal(t, []string{"A", "B"}, Keys(got))
}

func envMap(env []string) map[string]string {
	m := make(map[string]string, len(env))
	for _, kv := range env {
		name, value := split(kv)
		m[name] = value
	}
	return m
}
