// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error values shared by the server, reactor and clients.

package api

import "fmt"

// Common errors used across the library.
var (
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrNotSupported    = fmt.Errorf("operation not supported")
	ErrAlreadyStarted  = fmt.Errorf("already started")
	ErrNotStarted      = fmt.Errorf("not started")
	ErrClosed          = fmt.Errorf("closed")
)
