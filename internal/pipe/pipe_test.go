package pipe

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	p, err := Open()
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	require.NotNil(t, p.Reader())
	files := p.ChildFiles(os.Stdin)
	require.Len(t, files, 3)
	assert.Same(t, os.Stdin, files[0])
	assert.Same(t, files[1], files[2], "stdout and stderr share the write end")
}

func TestPipe_CloseWriterSignalsEOF(t *testing.T) {
	p, err := Open()
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	w := p.ChildFiles(nil)[1]
	_, err = w.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, p.CloseWriter())

	data, err := io.ReadAll(p.Reader())
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestPipe_CloseIsIdempotent(t *testing.T) {
	p, err := Open()
	require.NoError(t, err)

	require.NoError(t, p.CloseWriter())
	require.NoError(t, p.CloseWriter())
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	require.NoError(t, p.CloseReader())
}

func TestPipe_ReadAfterCloseFails(t *testing.T) {
	p, err := Open()
	require.NoError(t, err)
	require.NoError(t, p.Close())

	_, err = p.Reader().Read(make([]byte, 1))
	assert.ErrorIs(t, err, os.ErrClosed)
}
