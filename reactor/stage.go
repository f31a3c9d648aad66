// File: reactor/stage.go
// Author: momentics <momentics@gmail.com>
//
// Per-connection pipeline stages. The transition table is the whole
// state machine; the reactor only decides when to move.

package reactor

import "fmt"

// Stage is where a connection is in its request/response cycle.
type Stage uint8

const (
	StageReceiving Stage = iota
	StageProcessing
	StageSending
	StageFinished
)

var transitions = [...]Stage{
	StageReceiving:  StageProcessing,
	StageProcessing: StageSending,
	StageSending:    StageFinished,
	StageFinished:   StageReceiving,
}

var interests = [...]Interest{
	StageReceiving:  InterestRead,
	StageProcessing: InterestNone,
	StageSending:    InterestWrite,
	StageFinished:   InterestNone,
}

// Next returns the stage that follows s.
func (s Stage) Next() Stage { return transitions[s] }

// Interest returns the readiness a connection in stage s waits for.
func (s Stage) Interest() Interest { return interests[s] }

func (s Stage) String() string {
	switch s {
	case StageReceiving:
		return "receiving"
	case StageProcessing:
		return "processing"
	case StageSending:
		return "sending"
	case StageFinished:
		return "finished"
	}
	return fmt.Sprintf("Stage(%d)", uint8(s))
}
