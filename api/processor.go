// Package api
// Author: momentics <momentics@gmail.com>
//
// Processor is the application hook invoked for every received packet.

package api

import "github.com/momentics/hioload-toc/core/protocol"

// Processor turns a request packet into a response packet.
//
// The processor owns the request for the duration of the call. Returning
// the request itself is allowed. A nil result sends an empty packet and
// disposes the request; an error disposes both and drops the connection.
// A processor that returns a different packet should Dispose the request
// itself, moving fields it still needs with Packet.Move first.
type Processor interface {
	Process(p *protocol.Packet) (*protocol.Packet, error)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(p *protocol.Packet) (*protocol.Packet, error)

// Process calls f(p).
func (f ProcessorFunc) Process(p *protocol.Packet) (*protocol.Packet, error) { return f(p) }

// Echo returns every request unchanged.
var Echo Processor = ProcessorFunc(func(p *protocol.Packet) (*protocol.Packet, error) {
	return p, nil
})
