// File: server/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/momentics/hioload-toc/api"
	"github.com/momentics/hioload-toc/core/concurrency"
	"github.com/momentics/hioload-toc/core/protocol"
	"github.com/momentics/hioload-toc/internal/transport"
	"github.com/momentics/hioload-toc/reactor"
)

// Config holds all server-side configuration parameters.
type Config struct {
	ListenAddr      string        // TCP bind address, e.g. ":7777"
	Workers         int           // processor goroutines, 0 = runtime.NumCPU()
	QueueSize       int           // pending requests before RejectPolicy applies
	RejectPolicy    string        // "abort", "caller-runs" or "block"
	Backlog         int           // listen(2) backlog
	MaxEvents       int           // epoll events per wait
	RecvBufferSize  int           // SO_RCVBUF, 0 keeps the kernel default
	SendBufferSize  int           // SO_SNDBUF, 0 keeps the kernel default
	NoDelay         bool          // TCP_NODELAY on accepted sockets
	KeepAlive       bool          // SO_KEEPALIVE on accepted sockets
	MaxPacketBytes  int64         // summed field bytes accepted per request, must be positive
	MaxFields       int           // fields accepted per request
	LoopCPU         int           // CPU the event loop is pinned to, -1 = unpinned
	MetricsPrefix   string        // prepended to every metric key when set
	ShutdownTimeout time.Duration // bound on Stop when the caller gives no deadline
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	sock := transport.DefaultSocketOptions()
	limits := protocol.DefaultLimits()
	return &Config{
		ListenAddr:      ":7777",
		Workers:         runtime.NumCPU(),
		QueueSize:       1024,
		RejectPolicy:    concurrency.RejectCallerRuns.String(),
		Backlog:         sock.Backlog,
		MaxEvents:       reactor.DefaultConfig().MaxEvents,
		RecvBufferSize:  sock.RecvBuffer,
		SendBufferSize:  sock.SendBuffer,
		NoDelay:         sock.NoDelay,
		KeepAlive:       sock.KeepAlive,
		MaxPacketBytes:  limits.MaxPacketBytes,
		MaxFields:       limits.MaxFields,
		LoopCPU:         -1,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Validate reports every unusable value at once.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("server config: %w: "+format, append([]any{api.ErrInvalidArgument}, args...)...))
	}
	if strings.TrimSpace(c.ListenAddr) == "" {
		bad("listen address is empty")
	}
	if c.Workers < 0 {
		bad("workers %d", c.Workers)
	}
	if c.QueueSize < 0 {
		bad("queue size %d", c.QueueSize)
	}
	if _, err := concurrency.ParseRejectPolicy(c.RejectPolicy); err != nil {
		bad("%v", err)
	}
	if c.Backlog < 0 || c.MaxEvents < 0 || c.RecvBufferSize < 0 || c.SendBufferSize < 0 {
		bad("negative socket or poller setting")
	}
	if c.MaxFields < 0 || c.MaxFields > protocol.MaxFields {
		bad("max fields %d outside [0, %d]", c.MaxFields, protocol.MaxFields)
	}
	if c.MaxPacketBytes <= 0 {
		bad("max packet bytes %d, want a positive limit", c.MaxPacketBytes)
	}
	if c.LoopCPU < -1 {
		bad("loop cpu %d", c.LoopCPU)
	}
	if c.ShutdownTimeout < 0 {
		bad("shutdown timeout %s", c.ShutdownTimeout)
	}
	return errors.Join(errs...)
}

func (c *Config) socketOptions() transport.SocketOptions {
	return transport.SocketOptions{
		RecvBuffer: c.RecvBufferSize,
		SendBuffer: c.SendBufferSize,
		NoDelay:    c.NoDelay,
		KeepAlive:  c.KeepAlive,
		Backlog:    c.Backlog,
	}
}

func (c *Config) reactorConfig() reactor.Config {
	return reactor.Config{
		MaxEvents: c.MaxEvents,
		LoopCPU:   c.LoopCPU,
		Limits:    protocol.Limits{MaxFields: c.MaxFields, MaxPacketBytes: c.MaxPacketBytes},
	}
}

// config.toml key mapping to Config.
type fileConfig struct {
	ListenAddr      string        `toml:"listen_addr"`
	Workers         int           `toml:"workers"`
	QueueSize       int           `toml:"queue_size"`
	RejectPolicy    string        `toml:"reject_policy"`
	Backlog         int           `toml:"backlog"`
	MaxEvents       int           `toml:"max_events"`
	RecvBufferSize  int           `toml:"recv_buffer_size"`
	SendBufferSize  int           `toml:"send_buffer_size"`
	NoDelay         bool          `toml:"no_delay"`
	KeepAlive       bool          `toml:"keep_alive"`
	MaxPacketBytes  int64         `toml:"max_packet_bytes"`
	MaxFields       int           `toml:"max_fields"`
	LoopCPU         int           `toml:"loop_cpu"`
	MetricsPrefix   string        `toml:"metrics_prefix"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
}

// LoadConfig reads a TOML file and overlays the keys it defines on
// DefaultConfig. Unknown keys are an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, fmt.Errorf("load server config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("load server config: unknown keys %s", strings.Join(keys, ", "))
	}

	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("workers") {
		cfg.Workers = raw.Workers
	}
	if meta.IsDefined("queue_size") {
		cfg.QueueSize = raw.QueueSize
	}
	if meta.IsDefined("reject_policy") {
		cfg.RejectPolicy = strings.TrimSpace(raw.RejectPolicy)
	}
	if meta.IsDefined("backlog") {
		cfg.Backlog = raw.Backlog
	}
	if meta.IsDefined("max_events") {
		cfg.MaxEvents = raw.MaxEvents
	}
	if meta.IsDefined("recv_buffer_size") {
		cfg.RecvBufferSize = raw.RecvBufferSize
	}
	if meta.IsDefined("send_buffer_size") {
		cfg.SendBufferSize = raw.SendBufferSize
	}
	if meta.IsDefined("no_delay") {
		cfg.NoDelay = raw.NoDelay
	}
	if meta.IsDefined("keep_alive") {
		cfg.KeepAlive = raw.KeepAlive
	}
	if meta.IsDefined("max_packet_bytes") {
		cfg.MaxPacketBytes = raw.MaxPacketBytes
	}
	if meta.IsDefined("max_fields") {
		cfg.MaxFields = raw.MaxFields
	}
	if meta.IsDefined("loop_cpu") {
		cfg.LoopCPU = raw.LoopCPU
	}
	if meta.IsDefined("metrics_prefix") {
		cfg.MetricsPrefix = strings.TrimSpace(raw.MetricsPrefix)
	}
	if meta.IsDefined("shutdown_timeout") {
		cfg.ShutdownTimeout = raw.ShutdownTimeout
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load server config %q: %w", path, err)
	}
	return cfg, nil
}
