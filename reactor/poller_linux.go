//go:build linux

// File: reactor/poller_linux.go
// Author: momentics <momentics@gmail.com>
//
// Level-triggered epoll(7) poller with an eventfd for cross-goroutine wake-ups.

package reactor

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// Poller is owned by the loop goroutine; only Wake may be called elsewhere.
type Poller struct {
	epfd   int
	wakefd int
	raw    []unix.EpollEvent
	woken  atomic.Bool
	closed atomic.Bool
}

// NewPoller creates an epoll instance able to report maxEvents per Wait.
func NewPoller(maxEvents int) (*Poller, error) {
	if maxEvents <= 0 {
		maxEvents = 256
	}
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	p := &Poller{epfd: epfd, wakefd: wakefd, raw: make([]unix.EpollEvent, maxEvents)}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		p.Close()
		return nil, fmt.Errorf("epoll ctl add eventfd: %w", err)
	}
	return p, nil
}

func epollEvents(in Interest) uint32 {
	var ev uint32
	if in&InterestRead != 0 {
		ev |= unix.EPOLLIN
	}
	if in&InterestWrite != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

// Add registers fd with the given interest.
func (p *Poller) Add(fd int, in Interest) error {
	ev := unix.EpollEvent{Events: epollEvents(in), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl add: %w", err)
	}
	return nil
}

// Modify replaces the interest set of fd.
func (p *Poller) Modify(fd int, in Interest) error {
	ev := unix.EpollEvent{Events: epollEvents(in), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl mod: %w", err)
	}
	return nil
}

// Remove deregisters fd.
func (p *Poller) Remove(fd int) error {
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll ctl del: %w", err)
	}
	return nil
}

// Wait blocks up to timeoutMs (negative blocks indefinitely) and fills
// events. Wake-ups are consumed here and never reported.
func (p *Poller) Wait(events []Event, timeoutMs int) (int, error) {
	raw := p.raw
	if len(events) < len(raw) {
		raw = raw[:len(events)]
	}
	n, err := unix.EpollWait(p.epfd, raw, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("epoll wait: %w", err)
	}
	out := 0
	for i := 0; i < n; i++ {
		fd := int(raw[i].Fd)
		if fd == p.wakefd {
			p.drainWake()
			continue
		}
		var t EventType
		if raw[i].Events&unix.EPOLLIN != 0 {
			t |= EventRead
		}
		if raw[i].Events&unix.EPOLLOUT != 0 {
			t |= EventWrite
		}
		if raw[i].Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
			t |= EventError
		}
		events[out] = Event{Fd: fd, Type: t}
		out++
	}
	return out, nil
}

func (p *Poller) drainWake() {
	var buf [8]byte
	_, _ = unix.Read(p.wakefd, buf[:])
	p.woken.Store(false)
}

// Wake interrupts a blocked Wait. Concurrent wake-ups coalesce.
func (p *Poller) Wake() error {
	if p.closed.Load() || !p.woken.CompareAndSwap(false, true) {
		return nil
	}
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	if _, err := unix.Write(p.wakefd, buf[:]); err != nil && err != unix.EAGAIN {
		p.woken.Store(false)
		return fmt.Errorf("eventfd write: %w", err)
	}
	return nil
}

// Close releases the epoll instance and the eventfd.
func (p *Poller) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	unix.Close(p.wakefd)
	return unix.Close(p.epfd)
}
