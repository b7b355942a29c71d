package spawn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDecoder(t *testing.T) {
	t.Run("utf-8 without reassembly passes bytes through", func(t *testing.T) {
		d, err := newDecoder("", false)
		require.NoError(t, err)
		assert.IsType(t, rawDecoder{}, d)

		assert.Equal(t, "\xc3", d.Decode([]byte{0xc3}), "split sequences are not repaired")
		assert.Equal(t, "", d.Flush())
	})

	t.Run("labels are case insensitive", func(t *testing.T) {
		_, err := newDecoder("UTF-8", false)
		require.NoError(t, err)
	})

	t.Run("unknown charset", func(t *testing.T) {
		_, err := newDecoder("klingon", false)
		assert.ErrorIs(t, err, ErrUnknownEncoding)
		assert.False(t, ValidCharset("klingon"))
		assert.True(t, ValidCharset("latin1"))
	})
}

func TestChunkDecoder(t *testing.T) {
	d, err := newDecoder("latin1", false)
	require.NoError(t, err)

	assert.Equal(t, "café", d.Decode([]byte("caf\xe9")))
	assert.Equal(t, "", d.Flush())
}

func TestCarryDecoder(t *testing.T) {
	t.Run("utf-8 rune split across chunks", func(t *testing.T) {
		d, err := newDecoder("utf-8", true)
		require.NoError(t, err)

		assert.Equal(t, "a", d.Decode([]byte("a\xc3")))
		assert.Equal(t, "éb", d.Decode([]byte("\xa9b")))
		assert.Equal(t, "", d.Flush())
	})

	t.Run("four byte rune split three ways", func(t *testing.T) {
		d, err := newDecoder("utf-8", true)
		require.NoError(t, err)

		emoji := []byte("🙂")
		require.Len(t, emoji, 4)

		assert.Equal(t, "", d.Decode(emoji[:1]))
		assert.Equal(t, "", d.Decode(emoji[1:3]))
		assert.Equal(t, "🙂!", d.Decode(append(emoji[3:], '!')))
	})

	t.Run("dangling bytes flush as replacement", func(t *testing.T) {
		d, err := newDecoder("utf-8", true)
		require.NoError(t, err)

		assert.Equal(t, "x", d.Decode([]byte("x\xe2\x82")))
		flushed := d.Flush()
		assert.Contains(t, flushed, "\uFFFD")
		assert.Equal(t, "", d.Flush())
	})

	t.Run("shift_jis double byte split", func(t *testing.T) {
		d, err := newDecoder("shift_jis", true)
		require.NoError(t, err)

		// 日本 is 93 FA 96 7B in Shift JIS.
		assert.Equal(t, "", d.Decode([]byte{0x93}))
		assert.Equal(t, "日本", d.Decode([]byte{0xfa, 0x96, 0x7b}))
	})

	t.Run("large chunk", func(t *testing.T) {
		d, err := newDecoder("latin1", true)
		require.NoError(t, err)

		src := make([]byte, ChunkSize)
		for i := range src {
			src[i] = 0xe9
		}
		out := d.Decode(src)
		assert.Len(t, []rune(out), ChunkSize)
	})
}
