// File: server/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"github.com/hashicorp/go-metrics"
	"github.com/momentics/hioload-toc/api"
	"github.com/momentics/hioload-toc/core/protocol"
)

// Option customizes server initialization.
type Option func(*Server)

// WithLogger replaces the slog default.
func WithLogger(l api.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetricSink sends reactor metrics to ms.
func WithMetricSink(ms metrics.MetricSink) Option {
	return func(s *Server) {
		if ms != nil {
			s.sink = ms
		}
	}
}

// WithObjectCodec sets the codec of every request packet.
func WithObjectCodec(c protocol.ObjectCodec) Option {
	return func(s *Server) {
		s.popts = append(s.popts, protocol.WithObjectCodec(c))
	}
}

// WithExecutor runs processors on exec instead of a server-owned pool.
// The caller keeps ownership: Stop does not close it.
func WithExecutor(exec api.Executor) Option {
	return func(s *Server) {
		s.exec = exec
	}
}
