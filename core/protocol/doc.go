// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Implements the TOC packet format used by hioload-toc.
//
// A packet is a fixed number of typed fields described by a table of
// contents (TOC) that precedes the field bytes on the wire:
//
//	header:   'T' 'O' 'C' | field_count uint16 BE
//	entry[i]: tag byte (| 0x01 when direct) | length int32 BE
//	fields:   field[0] ++ field[1] ++ ... (no padding)
//
// Includes:
//   - Packet with typed, tag-gated accessors
//   - TOC encode/decode
//   - Blocking stream and in-memory decoding
//   - Resumable non-blocking reader and writer state machines
//   - Pluggable object codecs (gob, JSON, protobuf)
package protocol
