// File: server/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server wires listener, executor and reactor into one lifecycle.

package server

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/hashicorp/go-metrics"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-toc/api"
	"github.com/momentics/hioload-toc/core/concurrency"
	"github.com/momentics/hioload-toc/core/protocol"
	"github.com/momentics/hioload-toc/internal/transport"
	"github.com/momentics/hioload-toc/reactor"
)

// Server serves one Processor on one listening address.
type Server struct {
	cfg    *Config
	proc   api.Processor
	logger api.Logger
	sink   metrics.MetricSink
	popts  []protocol.Option
	exec   api.Executor

	mu      sync.Mutex
	pool    *concurrency.Executor // nil when the executor came from WithExecutor
	reactor *reactor.Reactor
	addr    net.Addr
	group   *errgroup.Group
}

// New validates cfg and builds an idle server. A nil cfg means DefaultConfig.
func New(cfg *Config, proc api.Processor, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if proc == nil {
		return nil, fmt.Errorf("server: %w: nil processor", api.ErrInvalidArgument)
	}
	s := &Server{
		cfg:    cfg,
		proc:   proc,
		logger: api.DefaultLogger(),
		sink:   &metrics.BlackholeSink{},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Start binds the listener and runs the event loop in the background.
// Cancelling ctx has the same effect as Shutdown on the loop: connections
// are closed without draining.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reactor != nil {
		return fmt.Errorf("server: %w", api.ErrAlreadyStarted)
	}

	ln, err := transport.Listen(s.cfg.ListenAddr, s.cfg.socketOptions())
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}

	exec := s.exec
	if exec == nil {
		policy, _ := concurrency.ParseRejectPolicy(s.cfg.RejectPolicy)
		s.pool = concurrency.NewExecutor(s.cfg.Workers, s.cfg.QueueSize, policy)
		exec = s.pool
	}

	sink, err := s.metricSink()
	if err != nil {
		ln.Close()
		s.closePool()
		return err
	}

	r, err := reactor.New(s.cfg.reactorConfig(), ln, s.proc, exec,
		reactor.WithLogger(s.logger),
		reactor.WithMetricSink(sink),
		reactor.WithProtocolOptions(s.popts...),
	)
	if err != nil {
		ln.Close()
		s.closePool()
		return fmt.Errorf("server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.Serve(gctx) })
	g.Go(func() error {
		<-r.Done()
		s.closePool()
		return nil
	})

	s.reactor, s.addr, s.group = r, ln.Addr(), g
	s.logger.Info("server started", "addr", s.addr.String(), "workers", exec.NumWorkers())
	return nil
}

func (s *Server) metricSink() (metrics.MetricSink, error) {
	if s.cfg.MetricsPrefix == "" {
		return s.sink, nil
	}
	mc := metrics.DefaultConfig(s.cfg.MetricsPrefix)
	mc.EnableHostname = false
	mc.EnableRuntimeMetrics = false
	m, err := metrics.New(mc, s.sink)
	if err != nil {
		return nil, fmt.Errorf("server: metrics: %w", err)
	}
	return m, nil
}

func (s *Server) closePool() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Stop closes the listener, lets queued requests finish, then closes every
// connection and waits for the loop to exit. Without a deadline on ctx,
// Config.ShutdownTimeout bounds the drain.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	r := s.reactor
	s.mu.Unlock()
	if r == nil {
		return fmt.Errorf("server: %w", api.ErrNotStarted)
	}
	if _, ok := ctx.Deadline(); !ok && s.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()
	}

	if err := r.StopAccepting(ctx); err != nil {
		s.logger.Warn("stop accepting", "error", err)
	}
	if s.pool != nil {
		drained := make(chan struct{})
		go func() {
			s.pool.Close()
			close(drained)
		}()
		select {
		case <-drained:
		case <-ctx.Done():
			s.logger.Warn("executor drain timed out", "error", ctx.Err())
		}
	}
	r.Shutdown()
	err := s.Wait()
	s.logger.Info("server stopped")
	return err
}

// Wait blocks until the event loop has exited and returns its error.
func (s *Server) Wait() error {
	s.mu.Lock()
	g := s.group
	s.mu.Unlock()
	if g == nil {
		return nil
	}
	return g.Wait()
}

// IsActive reports whether any client connection is open.
func (s *Server) IsActive() bool {
	return s.ActiveConnections() > 0
}

// ActiveConnections returns the number of open client connections.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	r := s.reactor
	s.mu.Unlock()
	if r == nil {
		return 0
	}
	return r.ActiveConnections()
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}
