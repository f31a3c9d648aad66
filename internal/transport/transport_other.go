//go:build !linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"fmt"
	"net"

	"github.com/momentics/hioload-toc/api"
)

var errPlatform = fmt.Errorf("transport: %w on this platform", api.ErrNotSupported)

// Listener is unavailable off Linux.
type Listener struct{}

// Listen always fails off Linux.
func Listen(string, SocketOptions) (*Listener, error) { return nil, errPlatform }

func (l *Listener) Fd() int                { return -1 }
func (l *Listener) Addr() net.Addr         { return nil }
func (l *Listener) Accept() (*Conn, error) { return nil, errPlatform }
func (l *Listener) Close() error           { return nil }
func Tune(int, SocketOptions) error        { return errPlatform }
func IsTemporary(error) bool               { return false }

// Conn is unavailable off Linux.
type Conn struct{}

func (c *Conn) Fd() int                      { return -1 }
func (c *Conn) RemoteAddr() net.Addr         { return nil }
func (c *Conn) Readv([][]byte) (int, error)  { return 0, errPlatform }
func (c *Conn) Writev([][]byte) (int, error) { return 0, errPlatform }
func (c *Conn) Close() error                 { return nil }
