// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import (
	"errors"
	"fmt"
	"io"
)

// GatherWriter is a non-blocking vectored sink. Writev returns
// ErrWouldBlock when the peer cannot accept more bytes yet.
type GatherWriter interface {
	Writev(bufs [][]byte) (int, error)
}

// AsyncWriter sends one packet across any number of readiness events.
type AsyncWriter struct {
	packet  *Packet
	toc     []byte
	scratch [][]byte
	vec     vector
	written int64
}

// NewAsyncWriter prepares p for writing.
func NewAsyncWriter(p *Packet) (*AsyncWriter, error) {
	w := &AsyncWriter{}
	if err := w.Reset(p); err != nil {
		return nil, err
	}
	return w, nil
}

// Reset prepares the writer for p, reusing its scratch buffers.
func (w *AsyncWriter) Reset(p *Packet) error {
	bufs, toc, err := p.appendBuffers(w.scratch[:0], w.toc)
	if err != nil {
		return err
	}
	w.toc = toc
	w.scratch = bufs
	w.packet = p
	w.written = 0
	w.vec.reset(bufs...)
	return nil
}

// BytesWritten returns the bytes sent for the current packet.
func (w *AsyncWriter) BytesWritten() int64 { return w.written }

// Step issues one vectored write over the unsent remainder. It reports
// true once every byte has been written, after which the writer holds no
// reference to the packet.
func (w *AsyncWriter) Step(dst GatherWriter) (bool, error) {
	if w.vec.empty() {
		w.release()
		return true, nil
	}
	n, err := dst.Writev(w.vec.head())
	if n > 0 {
		w.vec.advance(n)
		w.written += int64(n)
	}
	switch {
	case errors.Is(err, ErrWouldBlock):
		return false, nil
	case err != nil:
		w.release()
		return false, fmt.Errorf("protocol: write: %w", err)
	case n <= 0:
		w.release()
		return false, io.ErrNoProgress
	}
	if !w.vec.empty() {
		return false, nil
	}
	w.release()
	return true, nil
}

// Discard drops the packet being written without sending the rest.
func (w *AsyncWriter) Discard() { w.release() }

func (w *AsyncWriter) release() {
	w.packet = nil
	w.vec.reset()
	clear(w.scratch)
	w.scratch = w.scratch[:0]
}
