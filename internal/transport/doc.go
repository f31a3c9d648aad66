// Package transport
// Author: momentics <momentics@gmail.com>
//
// Raw non-blocking TCP sockets for the reactor: listen and accept with
// socket tuning, plus an fd-backed connection exposing vectored reads and
// writes. Everything here is owned by the reactor goroutine; nothing is
// registered with the Go runtime netpoller.
package transport
