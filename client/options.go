// File: client/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package client

import (
	"time"

	"github.com/momentics/hioload-toc/core/protocol"
)

type options struct {
	popts       []protocol.Option
	timeout     time.Duration
	dialTimeout time.Duration
	noDelay     bool
	keepAlive   time.Duration
}

func defaultOptions() options {
	return options{
		dialTimeout: 10 * time.Second,
		noDelay:     true,
		keepAlive:   30 * time.Second,
	}
}

// Option customizes a Client or Pool.
type Option func(*options)

// WithObjectCodec sets the codec of every response packet.
func WithObjectCodec(c protocol.ObjectCodec) Option {
	return func(o *options) { o.popts = append(o.popts, protocol.WithObjectCodec(c)) }
}

// WithLimits bounds the responses the client accepts.
func WithLimits(l protocol.Limits) Option {
	return func(o *options) { o.popts = append(o.popts, protocol.WithLimits(l)) }
}

// WithTimeout bounds each request/response exchange. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithDialTimeout bounds connection setup.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) { o.dialTimeout = d }
}

// WithNoDelay toggles TCP_NODELAY.
func WithNoDelay(on bool) Option {
	return func(o *options) { o.noDelay = on }
}
