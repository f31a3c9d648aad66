// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Blocking encode/decode over io streams and in-memory buffers.

package protocol

import (
	"errors"
	"fmt"
	"io"
	"net"
)

// WriteTo writes the packet to w. On connections that support it the
// TOC and all fields go out in one gather write.
func (p *Packet) WriteTo(w io.Writer) (int64, error) {
	bufs, _, err := p.appendBuffers(make([][]byte, 0, len(p.fields)+1), nil)
	if err != nil {
		return 0, err
	}
	nb := net.Buffers(bufs)
	return nb.WriteTo(w)
}

// MarshalBinary returns the wire encoding of the packet.
func (p *Packet) MarshalBinary() ([]byte, error) {
	bufs, _, err := p.appendBuffers(nil, nil)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, p.Size())
	for _, b := range bufs {
		out = append(out, b...)
	}
	return out, nil
}

// UnmarshalBinary replaces the packet with a copy decoded from data.
func (p *Packet) UnmarshalBinary(data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	codec := p.codec
	if codec == nil {
		codec = GobCodec{}
	}
	q, err := ParsePacket(cp, WithObjectCodec(codec))
	if err != nil {
		return err
	}
	p.Dispose()
	*p = *q
	return nil
}

// ReadPacket reads exactly one packet from a blocking reader.
func ReadPacket(r io.Reader, opts ...Option) (*Packet, error) {
	o := buildOptions(opts)

	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, streamErr(err)
	}
	count, err := ParseHeader(hdr[:])
	if err != nil {
		return nil, err
	}
	if err := o.limits.checkCount(count); err != nil {
		return nil, err
	}

	toc := make([]byte, count*EntrySize)
	if _, err := io.ReadFull(r, toc); err != nil {
		return nil, streamErr(err)
	}
	entries, err := ParseEntries(toc, count)
	if err != nil {
		return nil, err
	}
	if err := o.limits.checkEntries(entries); err != nil {
		return nil, err
	}

	p, _, err := o.assemble(entries)
	if err != nil {
		return nil, err
	}
	for i := range p.fields {
		if _, err := io.ReadFull(r, p.fields[i].data); err != nil {
			p.Dispose()
			return nil, streamErr(err)
		}
	}
	return p, nil
}

// ParsePacket decodes one packet from b. Field views alias b.
func ParsePacket(b []byte, opts ...Option) (*Packet, error) {
	o := buildOptions(opts)

	count, err := ParseHeader(b)
	if err != nil {
		return nil, err
	}
	if err := o.limits.checkCount(count); err != nil {
		return nil, err
	}
	b = b[HeaderSize:]
	entries, err := ParseEntries(b, count)
	if err != nil {
		return nil, err
	}
	if err := o.limits.checkEntries(entries); err != nil {
		return nil, err
	}
	b = b[count*EntrySize:]

	p := &Packet{fields: make([]field, count), codec: o.codec}
	for i, e := range entries {
		n := int(e.Length)
		if len(b) < n {
			return nil, fmt.Errorf("%w: field %d needs %d bytes, have %d", ErrConnectionClosed, i, n, len(b))
		}
		p.fields[i] = field{tag: e.Tag, data: b[:n:n]}
		b = b[n:]
	}
	return p, nil
}

func streamErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %v", ErrConnectionClosed, err)
	}
	return fmt.Errorf("protocol: read: %w", err)
}
