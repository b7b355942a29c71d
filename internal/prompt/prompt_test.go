package prompt

import (
	"bytes"
	"errors"
	"testing"

	"github.com/charmbracelet/huh"
	"github.com/stretchr/testify/assert"
)

func TestHuhPrompter_Print(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Print("removed 2 runs")

	assert.Equal(t, "removed 2 runs\n", buf.String())
}

func TestNotBlank(t *testing.T) {
	assert.Error(t, notBlank(""))
	assert.Error(t, notBlank("  \t"))
	assert.NoError(t, notBlank("x"))
}

func TestWrap(t *testing.T) {
	assert.ErrorIs(t, wrap("confirm prompt", huh.ErrUserAborted), ErrCanceled)

	err := wrap("secret prompt", errors.New("no tty"))
	assert.EqualError(t, err, "secret prompt: no tty")
	assert.NotErrorIs(t, err, ErrCanceled)
}
