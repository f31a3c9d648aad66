package protocol

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeTOCLayout(t *testing.T) {
	got := EncodeTOC([]Entry{
		{Tag: TagNumber, Length: 8},
		{Tag: TagRawDirect, Length: 0x01020304},
	})
	want := []byte{
		'T', 'O', 'C', 0x00, 0x02,
		0x02, 0x00, 0x00, 0x00, 0x08,
		0x11, 0x01, 0x02, 0x03, 0x04,
	}
	require.Equal(t, want, got)
}

func TestParseHeader(t *testing.T) {
	n, err := ParseHeader([]byte{'T', 'O', 'C', 0x01, 0x00})
	require.NoError(t, err)
	require.Equal(t, 256, n)

	n, err = ParseHeader([]byte{'T', 'O', 'C', 0, 0})
	require.NoError(t, err)
	require.Zero(t, n)

	_, err = ParseHeader([]byte{'X', 'O', 'C', 0, 1})
	require.ErrorIs(t, err, ErrBadMagic)

	_, err = ParseHeader([]byte{'T', 'O'})
	require.ErrorIs(t, err, ErrMalformedTOC)
}

func TestParseEntryNegativeLengthIsDirect(t *testing.T) {
	b := make([]byte, EntrySize)
	b[0] = byte(TagRaw)
	binary.BigEndian.PutUint32(b[1:], uint32(0xFFFFFFFC)) // -4

	e, err := ParseEntry(b)
	require.NoError(t, err)
	require.Equal(t, uint32(4), e.Length)
	require.True(t, e.Direct())
	require.Equal(t, TagRawDirect, e.Tag)
}

func TestParseEntryRejectsGarbage(t *testing.T) {
	b := make([]byte, EntrySize)
	b[0] = 0x06
	_, err := ParseEntry(b)
	require.ErrorIs(t, err, ErrMalformedTOC)

	b[0] = byte(TagRaw)
	binary.BigEndian.PutUint32(b[1:], uint32(1)<<31)
	_, err = ParseEntry(b)
	require.ErrorIs(t, err, ErrMalformedTOC)

	_, err = ParseEntries(make([]byte, 4), 1)
	require.ErrorIs(t, err, ErrMalformedTOC)
}

func TestEntriesRoundTrip(t *testing.T) {
	in := []Entry{
		{Tag: TagEmpty},
		{Tag: TagCharacters, Length: 24},
		{Tag: TagObject, Length: 100},
		{Tag: TagRaw, Length: math.MaxInt32},
	}
	toc := EncodeTOC(in)
	n, err := ParseHeader(toc)
	require.NoError(t, err)
	out, err := ParseEntries(toc[HeaderSize:], n)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestTagHelpers(t *testing.T) {
	require.True(t, TagRawDirect.Has(TagRaw))
	require.False(t, TagNumber.Has(TagCharacters))
	require.False(t, TagEmpty.Has(TagEmpty))
	require.Equal(t, TagRaw, TagRawDirect.Type())
	require.Equal(t, "NUMDIRECT", (TagNumber | FlagDirect).String())
	require.Equal(t, "Tag(0x6)", Tag(6).String())
}
