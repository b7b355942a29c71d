// Package pipe provides the OS pipe that carries a child's combined output.
package pipe

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

// ErrCreate is returned when the OS refuses to allocate a pipe.
var ErrCreate = errors.New("could not open pipe")

// Pipe owns both ends of a unidirectional OS pipe.
//
// The read end belongs to the parent for the life of the child. The write end
// is handed to the child as its stdout and stderr and must then be closed in
// the parent, otherwise readers never observe end-of-stream.
type Pipe struct {
	r *os.File
	w *os.File

	rOnce sync.Once
	wOnce sync.Once
	rErr  error
	wErr  error
}

// Open allocates a fresh pipe. Both descriptors are close-on-exec.
func Open() (*Pipe, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreate, err)
	}
	return &Pipe{r: r, w: w}, nil
}

// Reader returns the parent-owned read end.
func (p *Pipe) Reader() *os.File {
	return p.r
}

// ChildFiles returns the descriptor table for a child wired to this pipe:
// stdin at slot 0 and the write end duplicated onto slots 1 and 2.
//
// os.StartProcess applies the table in the forked child before exec. The
// original descriptors are close-on-exec, so only the duplicated copies
// survive into the new program image.
func (p *Pipe) ChildFiles(stdin *os.File) []*os.File {
	return []*os.File{stdin, p.w, p.w}
}

// CloseWriter closes the parent's copy of the write end. Safe to call more
// than once.
func (p *Pipe) CloseWriter() error {
	p.wOnce.Do(func() {
		p.wErr = p.w.Close()
	})
	return p.wErr
}

// CloseReader closes the read end. Safe to call more than once.
func (p *Pipe) CloseReader() error {
	p.rOnce.Do(func() {
		p.rErr = p.r.Close()
	})
	return p.rErr
}

// Close releases both ends.
func (p *Pipe) Close() error {
	return errors.Join(p.CloseWriter(), p.CloseReader())
}
