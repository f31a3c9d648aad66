// File: core/buffer/block.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Reference-counted backing memory shared by consecutive packet fields.

package buffer

import "sync/atomic"

// Block is one backing allocation. Field views slice into Bytes and hold a
// reference each. Releasing the last reference detaches the block from its
// memory; the bytes themselves stay on the Go heap until no view aliases
// them, so a slice taken from a field never outlives its backing array.
type Block struct {
	data   []byte
	direct bool
	refs   atomic.Int32
	freed  atomic.Bool
}

func newBlock(data []byte, direct bool, refs int) *Block {
	b := &Block{data: data, direct: direct}
	b.refs.Store(int32(refs))
	return b
}

// Bytes returns the whole backing region. It is nil once the block is freed.
func (b *Block) Bytes() []byte { return b.data }

// Len is the size of the backing region in bytes.
func (b *Block) Len() int { return len(b.data) }

// Direct reports whether the block backs a run of direct fields.
func (b *Block) Direct() bool { return b.direct }

// Refs returns the current reference count.
func (b *Block) Refs() int { return int(b.refs.Load()) }

// Retain adds a reference and returns b.
func (b *Block) Retain() *Block {
	b.refs.Add(1)
	return b
}

// Release drops a reference. Dropping the last one frees the block.
func (b *Block) Release() {
	if b.refs.Add(-1) <= 0 {
		b.free()
	}
}

func (b *Block) free() {
	if b.freed.CompareAndSwap(false, true) {
		b.data = nil
	}
}
