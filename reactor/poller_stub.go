//go:build !linux

// File: reactor/poller_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package reactor

import (
	"fmt"

	"github.com/momentics/hioload-toc/api"
)

var errPlatform = fmt.Errorf("reactor: %w on this platform", api.ErrNotSupported)

// Poller is unavailable off Linux.
type Poller struct{}

// NewPoller returns an error for unsupported platforms.
func NewPoller(int) (*Poller, error) { return nil, errPlatform }

func (p *Poller) Add(int, Interest) error        { return errPlatform }
func (p *Poller) Modify(int, Interest) error     { return errPlatform }
func (p *Poller) Remove(int) error               { return errPlatform }
func (p *Poller) Wait([]Event, int) (int, error) { return 0, errPlatform }
func (p *Poller) Wake() error                    { return nil }
func (p *Poller) Close() error                   { return nil }
