// File: client/client.go
// Package client talks to a packet server over blocking sockets.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/momentics/hioload-toc/api"
	"github.com/momentics/hioload-toc/core/protocol"
)

// Client owns one connection and runs one exchange at a time. It satisfies
// api.Processor, so a server can forward to another server.
type Client struct {
	mu     sync.Mutex
	conn   net.Conn
	opts   options
	closed bool
}

// Dial connects to addr.
func Dial(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	d := net.Dialer{Timeout: o.dialTimeout, KeepAlive: o.keepAlive}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", addr, err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(o.noDelay)
	}
	return &Client{conn: conn, opts: o}, nil
}

// Process sends p and waits for the response. p stays with the caller.
func (c *Client) Process(p *protocol.Packet) (*protocol.Packet, error) {
	return c.ProcessContext(context.Background(), p)
}

// ProcessContext is Process bounded by ctx. Any failure leaves the stream
// in an unknown position, so the client closes itself.
func (c *Client) ProcessContext(ctx context.Context, p *protocol.Packet) (*protocol.Packet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, fmt.Errorf("client: %w", api.ErrClosed)
	}

	deadline, ok := ctx.Deadline()
	if c.opts.timeout > 0 {
		if d := time.Now().Add(c.opts.timeout); !ok || d.Before(deadline) {
			deadline, ok = d, true
		}
	}
	if ok {
		_ = c.conn.SetDeadline(deadline)
		defer c.conn.SetDeadline(time.Time{})
	}
	stop := context.AfterFunc(ctx, func() { _ = c.conn.SetDeadline(time.Now()) })
	defer stop()

	if _, err := p.WriteTo(c.conn); err != nil {
		return nil, c.fail(ctx, "write", err)
	}
	res, err := protocol.ReadPacket(c.conn, c.opts.popts...)
	if err != nil {
		return nil, c.fail(ctx, "read", err)
	}
	return res, nil
}

func (c *Client) fail(ctx context.Context, op string, err error) error {
	c.closed = true
	_ = c.conn.Close()
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, os.ErrDeadlineExceeded) {
		err = ctxErr
	}
	return fmt.Errorf("client: %s: %w", op, err)
}

// Broken reports whether the connection has been closed.
func (c *Client) Broken() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// RemoteAddr returns the server address.
func (c *Client) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// Close closes the connection. It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// Proxy adapts a client to the server-side ownership rules: the request is
// disposed once the upstream response has arrived.
func Proxy(up interface {
	Process(*protocol.Packet) (*protocol.Packet, error)
}) api.Processor {
	return api.ProcessorFunc(func(req *protocol.Packet) (*protocol.Packet, error) {
		res, err := up.Process(req)
		req.Dispose()
		return res, err
	})
}
