// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor runs the packet pipeline: one goroutine owns an epoll
// instance, accepts connections and moves every connection through
// Receiving, Processing, Sending and Finished. Processing happens on an
// executor; workers hand results back through a mailbox and an eventfd
// wake-up, never by touching the poller.
package reactor
