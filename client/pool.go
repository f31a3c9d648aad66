// File: client/pool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Pool spreads requests over a bounded set of connections.

package client

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-toc/api"
	"github.com/momentics/hioload-toc/core/protocol"
)

// Pool dials lazily and keeps at most size connections open.
type Pool struct {
	addr string
	size int
	opts []Option

	idle  chan *Client
	slots chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewPool returns a pool for addr. No connection is made until first use.
func NewPool(addr string, size int, opts ...Option) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("client: %w: pool size %d", api.ErrInvalidArgument, size)
	}
	return &Pool{
		addr:  addr,
		size:  size,
		opts:  opts,
		idle:  make(chan *Client, size),
		slots: make(chan struct{}, size),
	}, nil
}

// Size returns the connection limit.
func (p *Pool) Size() int { return p.size }

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Pool) get(ctx context.Context) (*Client, error) {
	select {
	case c := <-p.idle:
		return c, nil
	default:
	}
	select {
	case c := <-p.idle:
		return c, nil
	case p.slots <- struct{}{}:
		c, err := Dial(ctx, p.addr, p.opts...)
		if err != nil {
			<-p.slots
			return nil, err
		}
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pool) put(c *Client) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || c.Broken() {
		_ = c.Close()
		<-p.slots
		return
	}
	p.idle <- c
}

// Process runs one exchange on a pooled connection, waiting for one to
// become free when all size connections are busy.
func (p *Pool) Process(ctx context.Context, pkt *protocol.Packet) (*protocol.Packet, error) {
	if p.isClosed() {
		return nil, fmt.Errorf("client: pool: %w", api.ErrClosed)
	}
	c, err := p.get(ctx)
	if err != nil {
		return nil, err
	}
	defer p.put(c)
	return c.ProcessContext(ctx, pkt)
}

// ProcessAll sends every packet with at most size exchanges in flight.
// Responses are returned in request order. On the first failure the
// remaining requests are cancelled and any responses already received are
// disposed.
func (p *Pool) ProcessAll(ctx context.Context, packets []*protocol.Packet) ([]*protocol.Packet, error) {
	out := make([]*protocol.Packet, len(packets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.size)
	for i, pkt := range packets {
		g.Go(func() error {
			res, err := p.Process(gctx, pkt)
			if err != nil {
				return fmt.Errorf("packet %d: %w", i, err)
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, res := range out {
			if res != nil {
				res.Dispose()
			}
		}
		return nil, err
	}
	return out, nil
}

// Close closes idle connections now and busy ones when they are returned.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	for {
		select {
		case c := <-p.idle:
			_ = c.Close()
			<-p.slots
		default:
			return nil
		}
	}
}
