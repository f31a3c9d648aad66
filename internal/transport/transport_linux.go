// internal/transport/transport_linux.go
//go:build linux

//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux sockets via x/sys/unix. Writes use SendmsgBuffers with
// MSG_NOSIGNAL so a vanished peer yields EPIPE instead of a signal.

package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync/atomic"

	"github.com/momentics/hioload-toc/core/protocol"
	"golang.org/x/sys/unix"
)

// Listener is a non-blocking listening socket.
type Listener struct {
	fd     int
	addr   *net.TCPAddr
	opts   SocketOptions
	closed atomic.Bool
}

// Listen binds address ("host:port", port 0 picks a free one).
func Listen(address string, opts SocketOptions) (*Listener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve %q: %w", address, err)
	}
	sa, family := toSockaddr(tcpAddr)
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}
	fail := func(op string, err error) (*Listener, error) {
		unix.Close(fd)
		return nil, fmt.Errorf("transport: listen %s: %w", address, os.NewSyscallError(op, err))
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fail("setsockopt", err)
	}
	if opts.RecvBuffer > 0 {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, opts.RecvBuffer); err != nil {
			return fail("setsockopt", err)
		}
	}
	if err := unix.Bind(fd, sa); err != nil {
		return fail("bind", err)
	}
	backlog := opts.Backlog
	if backlog <= 0 {
		backlog = unix.SOMAXCONN
	}
	if err := unix.Listen(fd, backlog); err != nil {
		return fail("listen", err)
	}
	local, err := unix.Getsockname(fd)
	if err != nil {
		return fail("getsockname", err)
	}
	return &Listener{fd: fd, addr: fromSockaddr(local), opts: opts}, nil
}

// Fd returns the listening descriptor.
func (l *Listener) Fd() int { return l.fd }

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr { return l.addr }

// Accept returns the next pending connection, already non-blocking and
// tuned, or protocol.ErrWouldBlock when none is pending.
func (l *Listener) Accept() (*Conn, error) {
	for {
		nfd, sa, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		switch {
		case err == unix.EINTR || err == unix.ECONNABORTED:
			continue
		case err == unix.EAGAIN:
			return nil, protocol.ErrWouldBlock
		case err != nil:
			return nil, fmt.Errorf("transport: %w", os.NewSyscallError("accept4", err))
		}
		if err := Tune(nfd, l.opts); err != nil {
			unix.Close(nfd)
			return nil, err
		}
		return &Conn{fd: nfd, remote: fromSockaddr(sa)}, nil
	}
}

// Close closes the listening socket.
func (l *Listener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	return unix.Close(l.fd)
}

// Tune applies per-connection socket options to fd.
func Tune(fd int, opts SocketOptions) error {
	set := func(level, opt, v int) error {
		if err := unix.SetsockoptInt(fd, level, opt, v); err != nil {
			return fmt.Errorf("transport: tune: %w", os.NewSyscallError("setsockopt", err))
		}
		return nil
	}
	if opts.SendBuffer > 0 {
		if err := set(unix.SOL_SOCKET, unix.SO_SNDBUF, opts.SendBuffer); err != nil {
			return err
		}
	}
	if opts.NoDelay {
		if err := set(unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
			return err
		}
	}
	if opts.KeepAlive {
		if err := set(unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); err != nil {
			return err
		}
	}
	return nil
}

// Conn is a connected non-blocking socket.
type Conn struct {
	fd     int
	remote net.Addr
	closed atomic.Bool
}

// Fd returns the socket descriptor.
func (c *Conn) Fd() int { return c.fd }

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr { return c.remote }

// Readv scatters incoming bytes over bufs.
func (c *Conn) Readv(bufs [][]byte) (int, error) {
	n, err := unix.Readv(c.fd, bufs)
	switch {
	case err == unix.EAGAIN || err == unix.EINTR:
		return 0, protocol.ErrWouldBlock
	case err != nil:
		return 0, os.NewSyscallError("readv", err)
	case n == 0:
		return 0, io.EOF
	}
	return n, nil
}

// Writev gathers bufs into one send.
func (c *Conn) Writev(bufs [][]byte) (int, error) {
	n, err := unix.SendmsgBuffers(c.fd, bufs, nil, nil, unix.MSG_NOSIGNAL|unix.MSG_DONTWAIT)
	switch {
	case err == unix.EAGAIN || err == unix.EINTR:
		return 0, protocol.ErrWouldBlock
	case err != nil:
		return 0, os.NewSyscallError("sendmsg", err)
	}
	return n, nil
}

// Close closes the socket.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return unix.Close(c.fd)
}

// IsTemporary reports whether err leaves a listener usable, such as
// running out of descriptors.
func IsTemporary(err error) bool {
	return errors.Is(err, unix.EMFILE) || errors.Is(err, unix.ENFILE) ||
		errors.Is(err, unix.ENOBUFS) || errors.Is(err, unix.ENOMEM)
}

func toSockaddr(a *net.TCPAddr) (unix.Sockaddr, int) {
	if a.IP == nil || a.IP.To4() != nil {
		sa := &unix.SockaddrInet4{Port: a.Port}
		if ip4 := a.IP.To4(); ip4 != nil {
			copy(sa.Addr[:], ip4)
		}
		return sa, unix.AF_INET
	}
	sa := &unix.SockaddrInet6{Port: a.Port}
	copy(sa.Addr[:], a.IP.To16())
	return sa, unix.AF_INET6
}

func fromSockaddr(sa unix.Sockaddr) *net.TCPAddr {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(append([]byte(nil), sa.Addr[:]...)), Port: sa.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(append([]byte(nil), sa.Addr[:]...)), Port: sa.Port}
	}
	return &net.TCPAddr{}
}
