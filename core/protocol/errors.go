// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Error definitions for the protocol module.

package protocol

import "errors"

var (
	// ErrBadMagic indicates the header does not start with "TOC".
	ErrBadMagic = errors.New("protocol: bad magic")

	// ErrConnectionClosed indicates the peer closed the stream mid-packet.
	ErrConnectionClosed = errors.New("protocol: connection closed")

	// ErrTypeMismatch indicates an accessor was used on a field of another type.
	ErrTypeMismatch = errors.New("protocol: type mismatch")

	// ErrDecode indicates a field payload could not be decoded.
	ErrDecode = errors.New("protocol: decode error")

	// ErrFieldIndex indicates a field index outside 0..FieldCount.
	ErrFieldIndex = errors.New("protocol: field index out of range")

	// ErrDisposed indicates use of a packet after Dispose.
	ErrDisposed = errors.New("protocol: packet disposed")

	// ErrPacketTooLarge indicates a TOC exceeding the configured limits.
	ErrPacketTooLarge = errors.New("protocol: packet too large")

	// ErrMalformedTOC indicates an unknown tag or an unrepresentable length.
	ErrMalformedTOC = errors.New("protocol: malformed toc")

	// ErrWouldBlock is returned by non-blocking sources and sinks that
	// cannot make progress until the next readiness event.
	ErrWouldBlock = errors.New("protocol: operation would block")
)
