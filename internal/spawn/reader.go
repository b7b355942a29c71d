package spawn

import (
	"errors"
	"io"
	"log/slog"
)

// ChunkSize is the largest number of bytes read from the pipe at once, and
// so the largest raw chunk handed to the decoder.
const ChunkSize = 8 * 1024

// streamReader drains the pipe's read end and feeds the output callback.
type streamReader struct {
	src    io.Reader
	close  func() error
	decode decoder
	output OutputFunc
	log    *slog.Logger
}

// run reads until end-of-stream. Any read error ends the loop the same way
// EOF does. The read end is closed on return, including when the callback
// panics, so the child can never block on a full pipe nobody drains.
func (r *streamReader) run() {
	defer func() {
		if err := r.close(); err != nil {
			r.log.Debug("close read end", "error", err)
		}
	}()

	buf := make([]byte, ChunkSize)
	var chunks, total int
	for {
		n, err := r.src.Read(buf)
		if n > 0 {
			chunks++
			total += n
			r.emit(r.decode.Decode(buf[:n]))
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				r.log.Debug("read ended with error", "error", err)
			}
			break
		}
	}

	if tail := r.decode.Flush(); tail != "" {
		r.emit(tail)
	}
	r.log.Debug("output stream closed", "chunks", chunks, "bytes", total)
}

func (r *streamReader) emit(chunk string) {
	if r.output == nil || chunk == "" {
		return
	}
	r.output(chunk)
}
