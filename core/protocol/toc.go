// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Table-of-contents encoding. Lengths are written as positive int32 values;
// the direct flag travels in the tag byte. On decode a negative length is
// also accepted as a direct marker and only its magnitude is kept.

package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	// HeaderSize is the size of magic plus field count.
	HeaderSize = 5
	// EntrySize is the size of one TOC entry.
	EntrySize = 5
	// MaxFields is the largest field count a header can carry.
	MaxFields = math.MaxUint16
	// MaxFieldSize is the largest length an entry can carry.
	MaxFieldSize = math.MaxInt32
)

var magic = [3]byte{'T', 'O', 'C'}

// Entry is a decoded TOC entry.
type Entry struct {
	Tag    Tag
	Length uint32
}

// Direct reports whether the field is backed by a direct allocation.
func (e Entry) Direct() bool { return e.Tag.Direct() }

// AppendHeader appends the magic and field count to dst.
func AppendHeader(dst []byte, count int) []byte {
	dst = append(dst, magic[:]...)
	return binary.BigEndian.AppendUint16(dst, uint16(count))
}

// AppendEntry appends one TOC entry to dst.
func AppendEntry(dst []byte, e Entry) []byte {
	dst = append(dst, byte(e.Tag))
	return binary.BigEndian.AppendUint32(dst, e.Length)
}

// EncodeTOC returns the header followed by all entries.
func EncodeTOC(entries []Entry) []byte {
	buf := make([]byte, 0, HeaderSize+EntrySize*len(entries))
	buf = AppendHeader(buf, len(entries))
	for _, e := range entries {
		buf = AppendEntry(buf, e)
	}
	return buf
}

// ParseHeader validates the magic and returns the field count.
func ParseHeader(b []byte) (int, error) {
	if len(b) < HeaderSize {
		return 0, fmt.Errorf("%w: short header (%d bytes)", ErrMalformedTOC, len(b))
	}
	if b[0] != magic[0] || b[1] != magic[1] || b[2] != magic[2] {
		return 0, fmt.Errorf("%w: % x", ErrBadMagic, b[:3])
	}
	return int(binary.BigEndian.Uint16(b[3:5])), nil
}

// ParseEntry decodes one entry.
func ParseEntry(b []byte) (Entry, error) {
	tag := Tag(b[0])
	if !tag.valid() {
		return Entry{}, fmt.Errorf("%w: unknown tag %#x", ErrMalformedTOC, b[0])
	}
	raw := int32(binary.BigEndian.Uint32(b[1:5]))
	if raw == math.MinInt32 {
		return Entry{}, fmt.Errorf("%w: length %d", ErrMalformedTOC, raw)
	}
	if raw < 0 {
		tag |= FlagDirect
		raw = -raw
	}
	return Entry{Tag: tag, Length: uint32(raw)}, nil
}

// ParseEntries decodes count entries from b.
func ParseEntries(b []byte, count int) ([]Entry, error) {
	if len(b) < count*EntrySize {
		return nil, fmt.Errorf("%w: toc needs %d bytes, have %d", ErrMalformedTOC, count*EntrySize, len(b))
	}
	entries := make([]Entry, count)
	for i := range entries {
		e, err := ParseEntry(b[i*EntrySize:])
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		entries[i] = e
	}
	return entries, nil
}
