package slogger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Verbosity(t *testing.T) {
	tests := []struct {
		name      string
		verbosity int
		wantInfo  bool
		wantDebug bool
	}{
		{name: "default logs errors only", verbosity: 0},
		{name: "-v enables info", verbosity: 1, wantInfo: true},
		{name: "-vv enables debug", verbosity: 2, wantInfo: true, wantDebug: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(Config{Verbosity: tt.verbosity, Output: &buf})

			log.Debug("debug-line")
			log.Info("info-line")
			log.Error("error-line")

			out := buf.String()
			assert.Contains(t, out, "error-line")
			assert.Equal(t, tt.wantInfo, bytes.Contains(buf.Bytes(), []byte("info-line")))
			assert.Equal(t, tt.wantDebug, bytes.Contains(buf.Bytes(), []byte("debug-line")))
		})
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Format: FormatJSON, Output: &buf})

	log.Error("boom", "pid", 42)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "boom", record["msg"])
	assert.Contains(t, buf.String(), "spawn")
}

func TestFromContext(t *testing.T) {
	t.Run("returns stored logger", func(t *testing.T) {
		log := New(Config{})
		ctx := WithLogger(context.Background(), log)
		assert.Same(t, log, FromContext(ctx))
		assert.Same(t, log, L(ctx))
	})

	t.Run("falls back to discard logger", func(t *testing.T) {
		log := FromContext(context.Background())
		require.NotNil(t, log)
		assert.False(t, log.Enabled(context.Background(), 12))
		assert.Equal(t, slog.DiscardHandler, log.Handler())
	})
}

func TestDiscard(t *testing.T) {
	log := Discard()
	assert.Equal(t, slog.DiscardHandler, log.Handler())
	assert.False(t, log.Enabled(context.Background(), slog.LevelError))
}
