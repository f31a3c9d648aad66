//go:build linux

package reactor

import (
	"bytes"
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-metrics"
	"github.com/momentics/hioload-toc/api"
	"github.com/momentics/hioload-toc/core/concurrency"
	"github.com/momentics/hioload-toc/core/protocol"
	"github.com/momentics/hioload-toc/internal/transport"
	"github.com/stretchr/testify/require"
)

type testReactor struct {
	*Reactor
	addr string
}

func startReactor(t *testing.T, proc api.Processor, opts ...Option) *testReactor {
	t.Helper()
	ln, err := transport.Listen("127.0.0.1:0", transport.DefaultSocketOptions())
	require.NoError(t, err)
	exec := concurrency.NewExecutor(4, 64, concurrency.RejectCallerRuns)
	r, err := New(DefaultConfig(), ln, proc, exec, opts...)
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() { errc <- r.Serve(context.Background()) }()
	t.Cleanup(func() {
		r.Shutdown()
		require.NoError(t, <-errc)
		exec.Close()
	})
	return &testReactor{Reactor: r, addr: ln.Addr().String()}
}

func helloPacket(t *testing.T) *protocol.Packet {
	t.Helper()
	p := protocol.NewPacket(2)
	require.NoError(t, p.SetCharacters(0, "hello world"))
	require.NoError(t, p.SetNumber(1, 42))
	return p
}

func roundTrip(t *testing.T, c net.Conn, p *protocol.Packet) (*protocol.Packet, error) {
	t.Helper()
	if _, err := p.WriteTo(c); err != nil {
		return nil, err
	}
	return protocol.ReadPacket(c)
}

func TestEchoSequentialRequests(t *testing.T) {
	r := startReactor(t, api.Echo)
	c, err := net.Dial("tcp", r.addr)
	require.NoError(t, err)
	defer c.Close()

	for range 5 {
		res, err := roundTrip(t, c, helloPacket(t))
		require.NoError(t, err)
		s, err := res.GetCharacters(0)
		require.NoError(t, err)
		require.Equal(t, "hello world", s)
		n, err := res.GetNumber(1)
		require.NoError(t, err)
		require.EqualValues(t, 42, n)
	}
}

func TestEchoManyConnections(t *testing.T) {
	r := startReactor(t, api.Echo)
	payload := bytes.Repeat([]byte("0123456789abcdef"), 4096)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := net.Dial("tcp", r.addr)
			if err != nil {
				errs <- err
				return
			}
			defer c.Close()
			for j := range 10 {
				p := protocol.NewPacket(2)
				_ = p.SetNumber(0, int64(i*100+j))
				_ = p.SetRaw(1, payload, j%2 == 0)
				if _, err := p.WriteTo(c); err != nil {
					errs <- err
					return
				}
				res, err := protocol.ReadPacket(c)
				if err != nil {
					errs <- err
					return
				}
				n, _ := res.GetNumber(0)
				raw, _ := res.GetRaw(1)
				if n != int64(i*100+j) || !bytes.Equal(raw, payload) {
					errs <- errors.New("echo mismatch")
					return
				}
				res.Dispose()
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

func TestLargePacket(t *testing.T) {
	r := startReactor(t, api.Echo)
	c, err := net.Dial("tcp", r.addr)
	require.NoError(t, err)
	defer c.Close()

	big := bytes.Repeat([]byte{0x5A}, 8<<20)
	p := protocol.NewPacket(3)
	require.NoError(t, p.SetRaw(0, big, true))
	require.NoError(t, p.SetRaw(1, big[:1000], false))
	require.NoError(t, p.SetNumber(2, 7))

	res, err := roundTrip(t, c, p)
	require.NoError(t, err)
	got, err := res.GetRaw(0)
	require.NoError(t, err)
	require.True(t, bytes.Equal(big, got))
	res.Dispose()
}

func TestNilResultSendsEmptyPacket(t *testing.T) {
	r := startReactor(t, api.ProcessorFunc(func(p *protocol.Packet) (*protocol.Packet, error) {
		return nil, nil
	}))
	c, err := net.Dial("tcp", r.addr)
	require.NoError(t, err)
	defer c.Close()

	res, err := roundTrip(t, c, helloPacket(t))
	require.NoError(t, err)
	require.Zero(t, res.FieldCount())
}

func TestProcessorBuildsNewResponse(t *testing.T) {
	r := startReactor(t, api.ProcessorFunc(func(p *protocol.Packet) (*protocol.Packet, error) {
		n, err := p.GetNumber(1)
		if err != nil {
			return nil, err
		}
		out := protocol.NewPacket(2)
		if err := p.Move(0, out, 0); err != nil {
			return nil, err
		}
		p.Dispose()
		return out, out.SetNumber(1, n*2)
	}))
	c, err := net.Dial("tcp", r.addr)
	require.NoError(t, err)
	defer c.Close()

	res, err := roundTrip(t, c, helloPacket(t))
	require.NoError(t, err)
	s, err := res.GetCharacters(0)
	require.NoError(t, err)
	require.Equal(t, "hello world", s)
	n, err := res.GetNumber(1)
	require.NoError(t, err)
	require.EqualValues(t, 84, n)
}

func TestBadMagicDropsOnlyThatConnection(t *testing.T) {
	r := startReactor(t, api.Echo)

	good, err := net.Dial("tcp", r.addr)
	require.NoError(t, err)
	defer good.Close()
	_, err = roundTrip(t, good, helloPacket(t))
	require.NoError(t, err)

	bad, err := net.Dial("tcp", r.addr)
	require.NoError(t, err)
	defer bad.Close()
	_, err = bad.Write([]byte("HELLO"))
	require.NoError(t, err)
	_ = bad.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = protocol.ReadPacket(bad)
	require.ErrorIs(t, err, protocol.ErrConnectionClosed)

	res, err := roundTrip(t, good, helloPacket(t))
	require.NoError(t, err)
	require.Equal(t, 2, res.FieldCount())
}

func TestProcessorFailureClosesConnection(t *testing.T) {
	for name, proc := range map[string]api.ProcessorFunc{
		"error": func(*protocol.Packet) (*protocol.Packet, error) { return nil, errors.New("nope") },
		"panic": func(*protocol.Packet) (*protocol.Packet, error) { panic("nope") },
	} {
		t.Run(name, func(t *testing.T) {
			r := startReactor(t, proc)
			c, err := net.Dial("tcp", r.addr)
			require.NoError(t, err)
			defer c.Close()
			_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
			_, err = roundTrip(t, c, helloPacket(t))
			require.ErrorIs(t, err, protocol.ErrConnectionClosed)
		})
	}
}

func TestActiveConnections(t *testing.T) {
	r := startReactor(t, api.Echo)
	c, err := net.Dial("tcp", r.addr)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return r.ActiveConnections() == 1 }, 2*time.Second, time.Millisecond)

	require.NoError(t, c.Close())
	require.Eventually(t, func() bool { return r.ActiveConnections() == 0 }, 2*time.Second, time.Millisecond)
}

func TestStopAcceptingKeepsExistingConnections(t *testing.T) {
	r := startReactor(t, api.Echo)
	c, err := net.Dial("tcp", r.addr)
	require.NoError(t, err)
	defer c.Close()
	_, err = roundTrip(t, c, helloPacket(t))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, r.StopAccepting(ctx))

	_, err = net.DialTimeout("tcp", r.addr, time.Second)
	require.Error(t, err)

	_, err = roundTrip(t, c, helloPacket(t))
	require.NoError(t, err)
}

func TestShutdownClosesConnections(t *testing.T) {
	ln, err := transport.Listen("127.0.0.1:0", transport.DefaultSocketOptions())
	require.NoError(t, err)
	exec := concurrency.NewExecutor(2, 16, concurrency.RejectBlock)
	defer exec.Close()
	r, err := New(DefaultConfig(), ln, api.Echo, exec)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- r.Serve(ctx) }()

	c, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer c.Close()
	_, err = roundTrip(t, c, helloPacket(t))
	require.NoError(t, err)

	cancel()
	require.NoError(t, <-errc)
	<-r.Done()
	require.Zero(t, r.ActiveConnections())

	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = protocol.ReadPacket(c)
	require.ErrorIs(t, err, protocol.ErrConnectionClosed)

	require.Error(t, r.Serve(context.Background()))
}

func TestMetricsAreEmitted(t *testing.T) {
	sink := metrics.NewInmemSink(time.Minute, time.Minute)
	r := startReactor(t, api.Echo, WithMetricSink(sink))
	c, err := net.Dial("tcp", r.addr)
	require.NoError(t, err)
	defer c.Close()
	_, err = roundTrip(t, c, helloPacket(t))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		data := sink.Data()
		if len(data) == 0 {
			return false
		}
		data[0].RLock()
		defer data[0].RUnlock()
		in, ok := data[0].Counters["toc.packet.in.count"]
		out, ok2 := data[0].Counters["toc.packet.out.count"]
		return ok && ok2 && in.Count == 1 && out.Count == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSaturatedExecutorDropsOnlyOverflowingConnection(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	proc := api.ProcessorFunc(func(p *protocol.Packet) (*protocol.Packet, error) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		return p, nil
	})

	ln, err := transport.Listen("127.0.0.1:0", transport.DefaultSocketOptions())
	require.NoError(t, err)
	// One worker and a two-slot queue: the fourth request overflows.
	exec := concurrency.NewExecutor(1, 1, concurrency.RejectAbort)
	sink := metrics.NewInmemSink(time.Minute, time.Minute)
	r, err := New(DefaultConfig(), ln, proc, exec, WithMetricSink(sink))
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() { errc <- r.Serve(context.Background()) }()
	t.Cleanup(func() {
		r.Shutdown()
		require.NoError(t, <-errc)
		exec.Close()
	})
	unblock := sync.OnceFunc(func() { close(release) })
	t.Cleanup(unblock)

	dial := func() net.Conn {
		c, err := net.Dial("tcp", ln.Addr().String())
		require.NoError(t, err)
		t.Cleanup(func() { _ = c.Close() })
		_ = c.SetDeadline(time.Now().Add(5 * time.Second))
		return c
	}
	send := func(c net.Conn) {
		_, err := helloPacket(t).WriteTo(c)
		require.NoError(t, err)
	}

	inflight := dial()
	send(inflight)
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("processor never started")
	}

	queued := []net.Conn{dial(), dial()}
	for _, c := range queued {
		send(c)
	}
	require.Eventually(t, func() bool { return exec.Stats().Queued == 2 }, 2*time.Second, time.Millisecond)

	overflow := dial()
	send(overflow)
	_, err = protocol.ReadPacket(overflow)
	require.ErrorIs(t, err, protocol.ErrConnectionClosed)
	require.Equal(t, uint64(1), exec.Stats().Rejected)

	require.Eventually(t, func() bool {
		data := sink.Data()
		if len(data) == 0 {
			return false
		}
		data[0].RLock()
		defer data[0].RUnlock()
		c, ok := data[0].Counters["toc.submit.rejected.count"]
		return ok && c.Count == 1
	}, 2*time.Second, 10*time.Millisecond)

	unblock()
	for _, c := range append([]net.Conn{inflight}, queued...) {
		res, err := protocol.ReadPacket(c)
		require.NoError(t, err)
		n, err := res.GetNumber(1)
		require.NoError(t, err)
		require.EqualValues(t, 42, n)
	}
	require.Eventually(t, func() bool { return r.ActiveConnections() == 3 }, 2*time.Second, time.Millisecond)
}
