// File: core/buffer/allocator.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package buffer carves packet field views out of as few backing blocks as
// possible. Consecutive fields of the same allocation kind share one block,
// which keeps allocator pressure low and the scatter/gather vector short.

package buffer

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrAllocationTooLarge is returned when a single field exceeds the block limit.
	ErrAllocationTooLarge = errors.New("buffer: allocation too large")

	// ErrNegativeSize is returned for a spec with a negative size.
	ErrNegativeSize = errors.New("buffer: negative size")
)

// Spec describes one field to allocate.
type Spec struct {
	Size   int
	Direct bool
}

// Layout is the result of Allocate. Views[i] and Owners[i] describe field i.
type Layout struct {
	Blocks []*Block
	Views  [][]byte
	Owners []*Block
}

// Release drops every field reference held by the layout.
func (l *Layout) Release() {
	for i, b := range l.Owners {
		if b != nil {
			b.Release()
			l.Owners[i] = nil
		}
	}
	l.Views = nil
}

// Allocator groups field specs into runs and backs each run with one block.
// Direct and heap runs never share a block; both live on the Go heap.
type Allocator struct {
	maxBlock int
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithMaxBlockSize caps the size of a single backing block.
func WithMaxBlockSize(n int) Option {
	return func(a *Allocator) {
		if n > 0 {
			a.maxBlock = n
		}
	}
}

// NewAllocator returns an allocator with a block limit of math.MaxInt32.
func NewAllocator(opts ...Option) *Allocator {
	a := &Allocator{maxBlock: math.MaxInt32}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// MaxBlockSize returns the configured block limit.
func (a *Allocator) MaxBlockSize() int { return a.maxBlock }

// Allocate scans specs left to right, grouping maximal runs of fields that
// share the same kind and fit together under the block limit. Each run gets
// exactly one block; its fields get contiguous, non-overlapping views.
func (a *Allocator) Allocate(specs []Spec) (*Layout, error) {
	l := &Layout{
		Views:  make([][]byte, len(specs)),
		Owners: make([]*Block, len(specs)),
	}
	for i := 0; i < len(specs); {
		kind := specs[i].Direct
		total := specs[i].Size
		if total < 0 {
			l.Release()
			return nil, fmt.Errorf("%w: field %d", ErrNegativeSize, i)
		}
		if total > a.maxBlock {
			l.Release()
			return nil, fmt.Errorf("%w: field %d needs %d bytes, limit %d", ErrAllocationTooLarge, i, total, a.maxBlock)
		}
		j := i + 1
		for j < len(specs) && specs[j].Direct == kind && specs[j].Size >= 0 && total+specs[j].Size <= a.maxBlock {
			total += specs[j].Size
			j++
		}

		blk := newBlock(make([]byte, total), kind, j-i)
		off := 0
		for k := i; k < j; k++ {
			n := specs[k].Size
			l.Views[k] = blk.data[off : off+n : off+n]
			l.Owners[k] = blk
			off += n
		}
		l.Blocks = append(l.Blocks, blk)
		i = j
	}
	return l, nil
}
