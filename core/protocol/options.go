// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import (
	"fmt"

	"github.com/momentics/hioload-toc/core/buffer"
)

// Limits bound what a decoder is willing to allocate for a peer.
type Limits struct {
	// MaxFields caps the field count of an incoming packet.
	MaxFields int
	// MaxPacketBytes caps the summed field lengths of an incoming packet.
	MaxPacketBytes int64
}

// DefaultLimits allows the full field range and 64 MiB of content.
func DefaultLimits() Limits {
	return Limits{
		MaxFields:      MaxFields,
		MaxPacketBytes: 64 << 20,
	}
}

func (l Limits) checkCount(count int) error {
	if l.MaxFields > 0 && count > l.MaxFields {
		return fmt.Errorf("%w: %d fields, limit %d", ErrPacketTooLarge, count, l.MaxFields)
	}
	return nil
}

func (l Limits) checkEntries(entries []Entry) error {
	var total int64
	for _, e := range entries {
		total += int64(e.Length)
	}
	if l.MaxPacketBytes > 0 && total > l.MaxPacketBytes {
		return fmt.Errorf("%w: %d content bytes, limit %d", ErrPacketTooLarge, total, l.MaxPacketBytes)
	}
	return nil
}

type options struct {
	codec     ObjectCodec
	limits    Limits
	allocator *buffer.Allocator
}

// Option configures packets, readers and decoders.
type Option func(*options)

// WithObjectCodec sets the codec used by SetObject and GetObject.
func WithObjectCodec(c ObjectCodec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithLimits sets decoder limits.
func WithLimits(l Limits) Option {
	return func(o *options) { o.limits = l }
}

// WithAllocator sets the allocator used for incoming field buffers.
func WithAllocator(a *buffer.Allocator) Option {
	return func(o *options) {
		if a != nil {
			o.allocator = a
		}
	}
}

var defaultAllocator = buffer.NewAllocator()

func buildOptions(opts []Option) options {
	o := options{
		codec:     GobCodec{},
		limits:    DefaultLimits(),
		allocator: defaultAllocator,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// assemble allocates field buffers for entries and wraps them in a packet.
// The returned blocks cover every field in order and are what a vectored
// read should fill.
func (o *options) assemble(entries []Entry) (*Packet, []*buffer.Block, error) {
	specs := make([]buffer.Spec, len(entries))
	for i, e := range entries {
		specs[i] = buffer.Spec{Size: int(e.Length), Direct: e.Direct()}
	}
	layout, err := o.allocator.Allocate(specs)
	if err != nil {
		return nil, nil, fmt.Errorf("protocol: allocate: %w", err)
	}
	p := &Packet{fields: make([]field, len(entries)), codec: o.codec}
	for i, e := range entries {
		p.fields[i] = field{tag: e.Tag, data: layout.Views[i], block: layout.Owners[i]}
	}
	return p, layout.Blocks, nil
}
