// File: reactor/mailbox.go
// Author: momentics <momentics@gmail.com>
//
// Mailbox carries closures from executor workers to the loop goroutine.

package reactor

import (
	"sync"

	"github.com/eapache/queue"
)

type mailbox struct {
	mu     sync.Mutex
	q      *queue.Queue
	closed bool
}

func newMailbox() *mailbox {
	return &mailbox{q: queue.New()}
}

// push enqueues fn; it reports false once the mailbox is closed.
func (m *mailbox) push(fn func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.q.Add(fn)
	return true
}

// drain moves everything queued so far into buf.
func (m *mailbox) drain(buf []func()) []func() {
	m.mu.Lock()
	for m.q.Length() > 0 {
		buf = append(buf, m.q.Remove().(func()))
	}
	m.mu.Unlock()
	return buf
}

// close rejects further pushes and returns what was still queued.
func (m *mailbox) close() []func() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return m.drain(nil)
}

func (m *mailbox) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.q.Length()
}
