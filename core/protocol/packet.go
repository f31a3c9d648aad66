// File: core/protocol/packet.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// In-memory packet: a fixed number of typed fields backed by byte views.

package protocol

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/momentics/hioload-toc/core/buffer"
)

type field struct {
	tag   Tag
	data  []byte
	block *buffer.Block // nil for heap views owned by the GC
}

// Packet is an ordered set of typed fields. The field count is fixed at
// construction; contents and tags change on every Set call.
//
// A Packet must have a single owner at a time. Slices returned by GetRaw
// alias the packet's buffers without copying; they keep the bytes alive on
// their own and stay readable after Dispose.
type Packet struct {
	fields   []field
	codec    ObjectCodec
	disposed bool
}

// NewPacket returns a packet with n empty fields. It panics if n is
// negative or larger than MaxFields.
func NewPacket(n int, opts ...Option) *Packet {
	if n < 0 || n > MaxFields {
		panic(fmt.Sprintf("protocol: field count %d out of range", n))
	}
	o := buildOptions(opts)
	return &Packet{fields: make([]field, n), codec: o.codec}
}

// EmptyPacket returns a packet without fields.
func EmptyPacket() *Packet { return NewPacket(0) }

// FieldCount returns the number of fields, or 0 after Dispose.
func (p *Packet) FieldCount() int { return len(p.fields) }

// Disposed reports whether Dispose has been called.
func (p *Packet) Disposed() bool { return p.disposed }

func (p *Packet) at(i int) (*field, error) {
	if p.disposed {
		return nil, ErrDisposed
	}
	if i < 0 || i >= len(p.fields) {
		return nil, fmt.Errorf("%w: %d of %d", ErrFieldIndex, i, len(p.fields))
	}
	return &p.fields[i], nil
}

func (p *Packet) expect(i int, want Tag) (*field, error) {
	f, err := p.at(i)
	if err != nil {
		return nil, err
	}
	if !f.tag.Has(want) {
		return nil, fmt.Errorf("%w: field %d is %s, want %s", ErrTypeMismatch, i, f.tag, want)
	}
	return f, nil
}

func (p *Packet) set(i int, tag Tag, data []byte, block *buffer.Block) error {
	f, err := p.at(i)
	if err != nil {
		return err
	}
	if f.block != nil {
		f.block.Release()
	}
	*f = field{tag: tag, data: data, block: block}
	return nil
}

// Tag returns the stored tag of field i.
func (p *Packet) Tag(i int) (Tag, error) {
	f, err := p.at(i)
	if err != nil {
		return TagEmpty, err
	}
	return f.tag, nil
}

// Len returns the byte length of field i.
func (p *Packet) Len(i int) (int, error) {
	f, err := p.at(i)
	if err != nil {
		return 0, err
	}
	return len(f.data), nil
}

// SetNumber stores v as an 8-byte big-endian integer.
func (p *Packet) SetNumber(i int, v int64) error {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return p.set(i, TagNumber, b, nil)
}

// GetNumber reads a Number field.
func (p *Packet) GetNumber(i int) (int64, error) {
	f, err := p.expect(i, TagNumber)
	if err != nil {
		return 0, err
	}
	if len(f.data) != 8 {
		return 0, fmt.Errorf("%w: number field %d has %d bytes", ErrDecode, i, len(f.data))
	}
	return int64(binary.BigEndian.Uint64(f.data)), nil
}

// SetCharacters stores s as UTF-16 text.
func (p *Packet) SetCharacters(i int, s string) error {
	b, err := encodeCharacters(s)
	if err != nil {
		return err
	}
	return p.set(i, TagCharacters, b, nil)
}

// GetCharacters reads a Characters field.
func (p *Packet) GetCharacters(i int) (string, error) {
	f, err := p.expect(i, TagCharacters)
	if err != nil {
		return "", err
	}
	return decodeCharacters(f.data)
}

// SetRaw stores b without copying. direct only marks the field so that a
// receiver backs it with a direct allocation.
func (p *Packet) SetRaw(i int, b []byte, direct bool) error {
	tag := TagRaw
	if direct {
		tag = TagRawDirect
	}
	return p.set(i, tag, b, nil)
}

// GetRaw returns the bytes of a Raw field without copying.
func (p *Packet) GetRaw(i int) ([]byte, error) {
	f, err := p.expect(i, TagRaw)
	if err != nil {
		return nil, err
	}
	return f.data, nil
}

// SetObject encodes v with the packet's codec.
func (p *Packet) SetObject(i int, v any) error {
	if _, err := p.at(i); err != nil {
		return err
	}
	b, err := p.codec.Encode(v)
	if err != nil {
		return err
	}
	return p.set(i, TagObject, b, nil)
}

// GetObject decodes an Object field into v.
func (p *Packet) GetObject(i int, v any) error {
	f, err := p.expect(i, TagObject)
	if err != nil {
		return err
	}
	return p.codec.Decode(f.data, v)
}

// Move copies field i into field j of dst, sharing the backing memory.
// Both packets may be disposed independently afterwards.
func (p *Packet) Move(i int, dst *Packet, j int) error {
	f, err := p.at(i)
	if err != nil {
		return err
	}
	if f.block != nil {
		f.block.Retain()
	}
	if err := dst.set(j, f.tag, f.data, f.block); err != nil {
		if f.block != nil {
			f.block.Release()
		}
		return err
	}
	return nil
}

// Dispose releases all field buffers. The packet reports zero fields and
// every accessor fails with ErrDisposed afterwards.
func (p *Packet) Dispose() {
	if p.disposed {
		return
	}
	for i := range p.fields {
		if b := p.fields[i].block; b != nil {
			b.Release()
		}
	}
	p.fields = nil
	p.disposed = true
}

// Entries returns the TOC projection of the packet.
func (p *Packet) Entries() []Entry {
	entries := make([]Entry, len(p.fields))
	for i, f := range p.fields {
		entries[i] = Entry{Tag: f.tag, Length: uint32(len(f.data))}
	}
	return entries
}

// Size returns the encoded size of the packet in bytes.
func (p *Packet) Size() int64 {
	n := int64(HeaderSize + EntrySize*len(p.fields))
	for _, f := range p.fields {
		n += int64(len(f.data))
	}
	return n
}

// appendBuffers appends the encoded TOC followed by every field view.
// toc is reused as scratch for the TOC bytes.
func (p *Packet) appendBuffers(bufs [][]byte, toc []byte) ([][]byte, []byte, error) {
	if p.disposed {
		return bufs, toc, ErrDisposed
	}
	toc = AppendHeader(toc[:0], len(p.fields))
	for i, f := range p.fields {
		if int64(len(f.data)) > MaxFieldSize {
			return bufs, toc, fmt.Errorf("%w: field %d has %d bytes", ErrPacketTooLarge, i, len(f.data))
		}
		toc = AppendEntry(toc, Entry{Tag: f.tag, Length: uint32(len(f.data))})
	}
	bufs = append(bufs, toc)
	for _, f := range p.fields {
		bufs = append(bufs, f.data)
	}
	return bufs, toc, nil
}

func (p *Packet) String() string {
	var sb strings.Builder
	sb.WriteString("Packet [")
	for i, f := range p.fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s=%db", f.tag, len(f.data))
	}
	sb.WriteString("]")
	return sb.String()
}
