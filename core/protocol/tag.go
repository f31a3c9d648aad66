// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import "fmt"

// Tag is the type byte of a TOC entry.
type Tag uint8

const (
	TagEmpty      Tag = 0
	TagNumber     Tag = 2
	TagCharacters Tag = 4
	TagObject     Tag = 8
	TagRaw        Tag = 16

	// FlagDirect marks a field backed by a direct allocation.
	FlagDirect Tag = 0x01

	TagRawDirect = TagRaw | FlagDirect
)

// Type strips the direct flag.
func (t Tag) Type() Tag { return t &^ FlagDirect }

// Direct reports whether the direct flag is set.
func (t Tag) Direct() bool { return t&FlagDirect != 0 }

// Has reports whether t includes the type bit of want.
func (t Tag) Has(want Tag) bool { return t&want.Type() != 0 }

func (t Tag) valid() bool {
	switch t.Type() {
	case TagEmpty, TagNumber, TagCharacters, TagObject, TagRaw:
		return true
	}
	return false
}

func (t Tag) String() string {
	switch t {
	case TagEmpty:
		return "NUL"
	case TagNumber:
		return "NUM"
	case TagCharacters:
		return "CHAR"
	case TagObject:
		return "OBJ"
	case TagRaw:
		return "RAW"
	case TagRawDirect:
		return "RAWDIRECT"
	}
	if t.Direct() && t.Type().valid() {
		return t.Type().String() + "DIRECT"
	}
	return fmt.Sprintf("Tag(%#x)", uint8(t))
}
