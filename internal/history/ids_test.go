package history

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID(t *testing.T) {
	a := NewID()
	b := NewID()

	_, err := ulid.ParseStrict(a)
	require.NoError(t, err)
	assert.Len(t, a, 26)
	assert.NotEqual(t, a, b)
}

func TestUniqueName(t *testing.T) {
	ctx := context.Background()
	store := NewStore(filepath.Join(t.TempDir(), "history.json"))

	seen := make(map[string]bool)
	for range 10 {
		name, err := UniqueName(ctx, store)
		require.NoError(t, err)

		parts := strings.Split(name, "_")
		require.Len(t, parts, 2, "expected adjective_surname, got %q", name)
		assert.False(t, seen[name], "duplicate name %q", name)
		seen[name] = true

		require.NoError(t, store.Add(ctx, Entry{ID: NewID(), Name: name}))
	}
}
