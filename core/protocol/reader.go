// File: core/protocol/reader.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Resumable packet reader for non-blocking sources. Each Step continues
// where the previous one stopped: header, then TOC, then field content.

package protocol

import (
	"errors"
	"fmt"
	"io"
)

// ScatterReader is a non-blocking vectored source. Readv returns
// ErrWouldBlock when no data is available and io.EOF when the peer closed.
type ScatterReader interface {
	Readv(bufs [][]byte) (int, error)
}

type readPhase uint8

const (
	phaseHeader readPhase = iota
	phaseTOC
	phaseContent
	phaseDone
)

// AsyncReader assembles one packet across any number of readiness events.
type AsyncReader struct {
	opts   options
	phase  readPhase
	header [HeaderSize]byte
	toc    []byte
	vec    vector
	packet *Packet
	read   int64
}

// NewAsyncReader returns a reader waiting for a header.
func NewAsyncReader(opts ...Option) *AsyncReader {
	r := &AsyncReader{opts: buildOptions(opts)}
	r.Reset()
	return r
}

// Reset discards any partial packet and waits for a new header.
func (r *AsyncReader) Reset() {
	r.Discard()
	r.phase = phaseHeader
	r.read = 0
	r.vec.reset(r.header[:])
}

// Discard releases the partially read packet, if any.
func (r *AsyncReader) Discard() {
	if r.packet != nil {
		r.packet.Dispose()
		r.packet = nil
	}
	r.toc = nil
	r.vec.reset()
	r.phase = phaseDone
}

// BytesRead returns the bytes consumed for the current packet.
func (r *AsyncReader) BytesRead() int64 { return r.read }

// Step reads what src has available. It returns the packet once it is
// complete, (nil, nil) when more readiness events are needed, or an error
// after which the reader is torn down and must be Reset before reuse.
func (r *AsyncReader) Step(src ScatterReader) (*Packet, error) {
	if r.phase == phaseDone {
		return nil, errors.New("protocol: reader not reset")
	}
	for {
		for r.vec.empty() {
			done, err := r.advance()
			if err != nil {
				r.Discard()
				return nil, err
			}
			if done {
				p := r.packet
				r.packet = nil
				r.Discard()
				return p, nil
			}
		}

		want := r.vec.remaining()
		n, err := src.Readv(r.vec.head())
		if n > 0 {
			r.vec.advance(n)
			r.read += int64(n)
		}
		switch {
		case errors.Is(err, ErrWouldBlock):
			return nil, nil
		case errors.Is(err, io.EOF) || (err == nil && n <= 0):
			r.Discard()
			return nil, fmt.Errorf("%w: after %d bytes", ErrConnectionClosed, r.read)
		case err != nil:
			r.Discard()
			return nil, fmt.Errorf("protocol: read: %w", err)
		}
		if n < want && !r.vec.empty() {
			return nil, nil
		}
	}
}

// advance moves to the next phase once the current one is filled.
func (r *AsyncReader) advance() (bool, error) {
	switch r.phase {
	case phaseHeader:
		count, err := ParseHeader(r.header[:])
		if err != nil {
			return false, err
		}
		if err := r.opts.limits.checkCount(count); err != nil {
			return false, err
		}
		r.toc = make([]byte, count*EntrySize)
		r.phase = phaseTOC
		r.vec.reset(r.toc)
		return false, nil

	case phaseTOC:
		count := len(r.toc) / EntrySize
		entries, err := ParseEntries(r.toc, count)
		if err != nil {
			return false, err
		}
		if err := r.opts.limits.checkEntries(entries); err != nil {
			return false, err
		}
		p, blocks, err := r.opts.assemble(entries)
		if err != nil {
			return false, err
		}
		r.packet = p
		r.toc = nil
		r.phase = phaseContent
		r.vec.reset()
		for _, b := range blocks {
			r.vec.push(b.Bytes())
		}
		return false, nil

	case phaseContent:
		return true, nil
	}
	return false, fmt.Errorf("protocol: reader in phase %d", r.phase)
}
