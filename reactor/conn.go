// File: reactor/conn.go
// Author: momentics <momentics@gmail.com>
//
// Connection state owned by the loop goroutine.

package reactor

import (
	"github.com/momentics/hioload-toc/core/protocol"
	"github.com/momentics/hioload-toc/internal/transport"
)

type conn struct {
	sock  *transport.Conn
	fd    int
	stage Stage
	// interest mirrors the poller registration.
	interest Interest
	reader   *protocol.AsyncReader
	writer   protocol.AsyncWriter
	// packet is the request while Receiving completes and the response
	// from Sending through Finished. It is nil while a worker owns it.
	packet *protocol.Packet
	closed bool
}

func newConn(sock *transport.Conn, opts []protocol.Option) *conn {
	return &conn{
		sock:     sock,
		fd:       sock.Fd(),
		stage:    StageReceiving,
		interest: InterestRead,
		reader:   protocol.NewAsyncReader(opts...),
	}
}

func (c *conn) remote() string {
	if a := c.sock.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}

// release drops every buffer the connection still holds.
func (c *conn) release() {
	c.reader.Discard()
	c.writer.Discard()
	if c.packet != nil {
		c.packet.Dispose()
		c.packet = nil
	}
}
