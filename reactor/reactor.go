// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Event loop and stage chaining.

package reactor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-metrics"
	"github.com/momentics/hioload-toc/affinity"
	"github.com/momentics/hioload-toc/api"
	"github.com/momentics/hioload-toc/core/protocol"
	"github.com/momentics/hioload-toc/internal/transport"
)

const acceptBatch = 64

var errPeerHangup = errors.New("reactor: peer hung up")

// Config holds loop settings.
type Config struct {
	MaxEvents int
	LoopCPU   int // -1 leaves the loop unpinned
	Limits    protocol.Limits
}

// DefaultConfig returns an unpinned loop with default packet limits.
func DefaultConfig() Config {
	return Config{MaxEvents: 256, LoopCPU: -1, Limits: protocol.DefaultLimits()}
}

// Option configures a Reactor.
type Option func(*Reactor)

// WithLogger sets the logger.
func WithLogger(l api.Logger) Option {
	return func(r *Reactor) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetricSink sets the metrics sink.
func WithMetricSink(s metrics.MetricSink) Option {
	return func(r *Reactor) {
		if s != nil {
			r.sink = s
		}
	}
}

// WithProtocolOptions passes options to every packet reader.
func WithProtocolOptions(opts ...protocol.Option) Option {
	return func(r *Reactor) { r.popts = append(r.popts, opts...) }
}

// Reactor drives every accepted connection through its stages.
type Reactor struct {
	cfg       Config
	poller    *Poller
	listener  *transport.Listener
	listenFd  int
	processor api.Processor
	executor  api.Executor
	popts     []protocol.Option
	logger    api.Logger
	sink      metrics.MetricSink

	conns   map[int]*conn
	mailbox *mailbox
	pending []func()

	active   atomic.Int64
	running  atomic.Bool
	stopping atomic.Bool
	done     chan struct{}
}

// New registers ln with a fresh poller. The reactor takes ownership of ln.
func New(cfg Config, ln *transport.Listener, proc api.Processor, exec api.Executor, opts ...Option) (*Reactor, error) {
	if ln == nil || proc == nil || exec == nil {
		return nil, fmt.Errorf("reactor: %w: listener, processor and executor are required", api.ErrInvalidArgument)
	}
	poller, err := NewPoller(cfg.MaxEvents)
	if err != nil {
		return nil, err
	}
	if err := poller.Add(ln.Fd(), InterestRead); err != nil {
		poller.Close()
		return nil, err
	}
	r := &Reactor{
		cfg:       cfg,
		poller:    poller,
		listener:  ln,
		listenFd:  ln.Fd(),
		processor: proc,
		executor:  exec,
		popts:     []protocol.Option{protocol.WithLimits(cfg.Limits)},
		logger:    api.DefaultLogger(),
		sink:      &metrics.BlackholeSink{},
		conns:     make(map[int]*conn),
		mailbox:   newMailbox(),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// ActiveConnections returns the number of open connections.
func (r *Reactor) ActiveConnections() int { return int(r.active.Load()) }

// Done is closed once Serve has returned and every resource is released.
func (r *Reactor) Done() <-chan struct{} { return r.done }

// Post runs fn on the loop goroutine and wakes the loop. After the loop
// has stopped fn runs on the caller.
func (r *Reactor) Post(fn func()) {
	if !r.mailbox.push(fn) {
		fn()
		return
	}
	if err := r.poller.Wake(); err != nil {
		r.logger.Error("reactor wake failed", "error", err)
	}
}

// Shutdown asks the loop to exit. Serve closes every connection on its way out.
func (r *Reactor) Shutdown() {
	r.stopping.Store(true)
	_ = r.poller.Wake()
}

// StopAccepting closes the listener from the loop goroutine and waits
// until that has happened.
func (r *Reactor) StopAccepting(ctx context.Context) error {
	if !r.running.Load() {
		r.closeListener()
		return nil
	}
	stopped := make(chan struct{})
	r.Post(func() {
		r.closeListener()
		close(stopped)
	})
	select {
	case <-stopped:
		return nil
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Serve runs the loop until Shutdown is called or ctx is cancelled.
func (r *Reactor) Serve(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return fmt.Errorf("reactor: %w", api.ErrAlreadyStarted)
	}
	defer r.teardown()

	if r.cfg.LoopCPU >= 0 {
		if err := affinity.Pin(r.cfg.LoopCPU); err != nil {
			r.logger.Warn("reactor loop not pinned", "cpu", r.cfg.LoopCPU, "error", err)
		}
		defer affinity.Unpin()
	}
	stop := context.AfterFunc(ctx, r.Shutdown)
	defer stop()

	events := make([]Event, max(r.cfg.MaxEvents, 1))
	for !r.stopping.Load() {
		n, err := r.poller.Wait(events, -1)
		if err != nil {
			return fmt.Errorf("reactor: %w", err)
		}
		for _, ev := range events[:n] {
			if ev.Fd == r.listenFd && r.listener != nil {
				r.acceptReady()
				continue
			}
			if c, ok := r.conns[ev.Fd]; ok {
				r.handle(c, ev)
			}
		}
		r.runMailbox()
	}
	return nil
}

func (r *Reactor) runMailbox() {
	r.pending = r.mailbox.drain(r.pending[:0])
	for i, fn := range r.pending {
		fn()
		r.pending[i] = nil
	}
}

func (r *Reactor) teardown() {
	r.runMailbox()
	for _, c := range r.conns {
		r.closeConn(c, nil)
	}
	r.closeListener()
	// Completions posted after this point run on their worker and only
	// see closed connections.
	for _, fn := range r.mailbox.close() {
		fn()
	}
	r.poller.Close()
	close(r.done)
}

func (r *Reactor) closeListener() {
	if r.listener == nil {
		return
	}
	_ = r.poller.Remove(r.listenFd)
	if err := r.listener.Close(); err != nil {
		r.logger.Warn("listener close failed", "error", err)
	}
	r.listener = nil
	r.listenFd = -1
}

func (r *Reactor) acceptReady() {
	for i := 0; i < acceptBatch && r.listener != nil; i++ {
		sock, err := r.listener.Accept()
		if errors.Is(err, protocol.ErrWouldBlock) {
			return
		}
		if err != nil {
			r.sink.IncrCounter(MetricConnAcceptErrCount, 1)
			r.logger.Warn("accept failed", "error", err, "temporary", transport.IsTemporary(err))
			return
		}
		c := newConn(sock, r.popts)
		if err := r.poller.Add(c.fd, c.interest); err != nil {
			r.logger.Warn("register connection failed", "remote", c.remote(), "error", err)
			sock.Close()
			continue
		}
		r.conns[c.fd] = c
		r.sink.IncrCounter(MetricConnAcceptedCount, 1)
		r.sink.SetGauge(MetricConnActive, float32(r.active.Add(1)))
		r.logger.Debug("connection accepted", "remote", c.remote())
	}
}

// handle advances c on a readiness event.
func (r *Reactor) handle(c *conn, ev Event) {
	switch c.stage {
	case StageReceiving:
		if ev.Type&(EventRead|EventError) == 0 {
			return
		}
		p, err := c.reader.Step(c.sock)
		if err != nil {
			if errors.Is(err, protocol.ErrConnectionClosed) && c.reader.BytesRead() == 0 {
				err = nil
			}
			r.closeConn(c, err)
			return
		}
		if p == nil {
			return
		}
		r.sink.IncrCounter(MetricPacketInCount, 1)
		r.sink.IncrCounter(MetricPacketInBytes, float32(c.reader.BytesRead()))
		c.packet = p
		r.transition(c)

	case StageSending:
		if ev.Type&(EventWrite|EventError) == 0 {
			return
		}
		if err := r.send(c); err != nil {
			r.closeConn(c, err)
		}

	default:
		if ev.Type&EventError != 0 {
			r.closeConn(c, errPeerHangup)
		}
	}
}

// transition moves c to its next stage and runs the entry action.
func (r *Reactor) transition(c *conn) {
	if err := r.enter(c, c.stage.Next()); err != nil {
		r.closeConn(c, err)
	}
}

func (r *Reactor) enter(c *conn, s Stage) error {
	c.stage = s
	switch s {
	case StageReceiving:
		c.reader.Reset()
	case StageProcessing:
		if err := r.watch(c, s.Interest()); err != nil {
			return err
		}
		return r.submit(c)
	case StageSending:
		if err := c.writer.Reset(c.packet); err != nil {
			return err
		}
		// Try the write before waiting for EPOLLOUT.
		return r.send(c)
	case StageFinished:
		c.packet.Dispose()
		c.packet = nil
		return r.enter(c, s.Next())
	}
	return r.watch(c, s.Interest())
}

// watch updates the poller registration only when the interest changes.
func (r *Reactor) watch(c *conn, in Interest) error {
	if c.interest == in {
		return nil
	}
	if err := r.poller.Modify(c.fd, in); err != nil {
		return err
	}
	c.interest = in
	return nil
}

// send writes what the socket accepts now. An unfinished response waits
// for writability; a finished one moves c on.
func (r *Reactor) send(c *conn) error {
	done, err := c.writer.Step(c.sock)
	if err != nil {
		return err
	}
	if !done {
		return r.watch(c, InterestWrite)
	}
	r.sink.IncrCounter(MetricPacketOutCount, 1)
	r.sink.IncrCounter(MetricPacketOutBytes, float32(c.writer.BytesWritten()))
	return r.enter(c, c.stage.Next())
}

// submit hands the request to the executor. The worker posts the result
// back; nothing on the worker side touches c directly.
func (r *Reactor) submit(c *conn) error {
	req := c.packet
	c.packet = nil
	start := time.Now()
	err := r.executor.Submit(func() {
		res, err := r.invoke(req)
		r.Post(func() { r.complete(c, req, res, err, start) })
	})
	if err != nil {
		c.packet = req
		r.sink.IncrCounter(MetricSubmitRejectedCount, 1)
		return fmt.Errorf("reactor: submit: %w", err)
	}
	return nil
}

func (r *Reactor) invoke(req *protocol.Packet) (res *protocol.Packet, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("reactor: processor panic: %v", v)
		}
	}()
	return r.processor.Process(req)
}

// complete runs on the loop goroutine once the processor has returned.
func (r *Reactor) complete(c *conn, req, res *protocol.Packet, err error, start time.Time) {
	r.sink.AddSample(MetricProcessLatencyMs, float32(time.Since(start).Seconds()*1000))
	if err != nil {
		r.sink.IncrCounter(MetricProcessErrorCount, 1)
		req.Dispose()
		if res != nil {
			res.Dispose()
		}
		r.closeConn(c, err)
		return
	}
	if res == nil {
		req.Dispose()
		res = protocol.EmptyPacket()
	}
	if c.closed {
		res.Dispose()
		return
	}
	c.packet = res
	r.transition(c)
}

// closeConn deregisters and closes c. A nil cause marks an orderly close.
func (r *Reactor) closeConn(c *conn, cause error) {
	if c.closed {
		return
	}
	c.closed = true
	_ = r.poller.Remove(c.fd)
	if err := c.sock.Close(); err != nil {
		r.logger.Debug("connection close failed", "remote", c.remote(), "error", err)
	}
	delete(r.conns, c.fd)
	c.release()
	r.sink.SetGauge(MetricConnActive, float32(r.active.Add(-1)))

	reason := "closed"
	if cause != nil {
		reason = "error"
		r.logger.Warn("connection dropped", "remote", c.remote(), "stage", c.stage, "error", cause)
	} else {
		r.logger.Debug("connection closed", "remote", c.remote(), "stage", c.stage)
	}
	r.sink.IncrCounterWithLabels(MetricConnClosedCount, 1, []metrics.Label{LabelReason.M(reason), LabelStage.M(c.stage.String())})
}
