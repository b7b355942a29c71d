package spawn

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// DefaultCharset is used when a request names no charset.
const DefaultCharset = "utf-8"

// decoder turns raw pipe chunks into text. One decoder serves one handle and
// is only used from that handle's reader goroutine.
type decoder interface {
	// Decode converts one chunk.
	Decode(chunk []byte) string
	// Flush returns text still held back at end of stream.
	Flush() string
}

// newDecoder returns a decoder for the named charset. When reassemble is
// false each chunk is decoded on its own and a multi-byte sequence split
// across two reads may decode incorrectly. When true, an incomplete trailing
// sequence is carried into the next chunk.
func newDecoder(charset string, reassemble bool) (decoder, error) {
	if charset == "" {
		charset = DefaultCharset
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEncoding, charset)
	}

	name, _ := htmlindex.Name(enc)
	if name == "utf-8" && !reassemble {
		return rawDecoder{}, nil
	}

	t := enc.NewDecoder()
	if !reassemble {
		return chunkDecoder{t: t}, nil
	}
	return &carryDecoder{t: t}, nil
}

// ValidCharset reports whether charset names a supported encoding.
func ValidCharset(charset string) bool {
	_, err := htmlindex.Get(charset)
	return err == nil
}

// rawDecoder passes UTF-8 bytes through untouched.
type rawDecoder struct{}

func (rawDecoder) Decode(chunk []byte) string { return string(chunk) }
func (rawDecoder) Flush() string              { return "" }

// chunkDecoder converts each chunk independently.
type chunkDecoder struct {
	t transform.Transformer
}

func (d chunkDecoder) Decode(chunk []byte) string {
	out, _, err := transform.Bytes(d.t, chunk)
	if err != nil {
		return string(chunk)
	}
	return string(out)
}

func (chunkDecoder) Flush() string { return "" }

// carryDecoder holds back an incomplete trailing sequence until the next
// chunk completes it.
type carryDecoder struct {
	t       transform.Transformer
	pending []byte
}

func (d *carryDecoder) Decode(chunk []byte) string {
	src := append(d.pending, chunk...)
	d.pending = nil

	var out strings.Builder
	dst := make([]byte, 3*len(src)+8)
	for len(src) > 0 {
		nDst, nSrc, err := d.t.Transform(dst, src, false)
		out.Write(dst[:nDst])
		src = src[nSrc:]

		switch {
		case err == nil:
			return out.String()
		case errors.Is(err, transform.ErrShortDst):
			if nDst == 0 && nSrc == 0 {
				dst = make([]byte, 2*len(dst))
			}
		case errors.Is(err, transform.ErrShortSrc):
			d.pending = append([]byte(nil), src...)
			return out.String()
		default:
			out.Write(src)
			return out.String()
		}
	}
	return out.String()
}

func (d *carryDecoder) Flush() string {
	if len(d.pending) == 0 {
		return ""
	}
	pending := d.pending
	d.pending = nil

	out, _, err := transform.Bytes(d.t, pending)
	if err != nil {
		return string(pending)
	}
	return string(out)
}
