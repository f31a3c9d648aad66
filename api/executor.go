// Package api
// Author: momentics
//
// Executor contract for running packet processing off the I/O thread.

package api

// Executor abstracts parallel task execution.
type Executor interface {
	// Submit schedules task for execution. Depending on the rejection
	// policy a saturated executor may fail, block, or run task inline.
	Submit(task func()) error

	// NumWorkers returns the number of worker routines.
	NumWorkers() int
}
