// File: reactor/poller.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral readiness types.

package reactor

// Interest is the readiness a descriptor is registered for.
type Interest uint8

const (
	InterestNone  Interest = 0
	InterestRead  Interest = 1 << 0
	InterestWrite Interest = 1 << 1
)

func (i Interest) String() string {
	switch i {
	case InterestNone:
		return "none"
	case InterestRead:
		return "read"
	case InterestWrite:
		return "write"
	}
	return "read|write"
}

// EventType is the readiness reported for a descriptor.
type EventType uint8

const (
	EventRead EventType = 1 << iota
	EventWrite
	EventError
)

// Event is one readiness notification.
type Event struct {
	Fd   int
	Type EventType
}
