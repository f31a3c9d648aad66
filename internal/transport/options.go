// File: internal/transport/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

// SocketOptions tune listening and accepted sockets.
type SocketOptions struct {
	RecvBuffer int  // SO_RCVBUF, set on the listener so accepted sockets inherit it
	SendBuffer int  // SO_SNDBUF
	NoDelay    bool // TCP_NODELAY
	KeepAlive  bool // SO_KEEPALIVE
	Backlog    int
}

// DefaultSocketOptions uses 128 KiB buffers with Nagle disabled.
func DefaultSocketOptions() SocketOptions {
	return SocketOptions{
		RecvBuffer: 128 << 10,
		SendBuffer: 128 << 10,
		NoDelay:    true,
		KeepAlive:  true,
		Backlog:    1024,
	}
}
