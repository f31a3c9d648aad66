// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

// maxIOV bounds the number of buffers handed to one vectored syscall.
const maxIOV = 1024

// vector tracks the unfinished part of a scatter/gather buffer list.
// Empty buffers are never stored, so an empty vector means done.
type vector struct {
	bufs [][]byte
}

func (v *vector) reset(bufs ...[]byte) {
	clear(v.bufs[:cap(v.bufs)])
	v.bufs = v.bufs[:0]
	for _, b := range bufs {
		v.push(b)
	}
}

func (v *vector) push(b []byte) {
	if len(b) > 0 {
		v.bufs = append(v.bufs, b)
	}
}

func (v *vector) empty() bool { return len(v.bufs) == 0 }

func (v *vector) head() [][]byte {
	if len(v.bufs) > maxIOV {
		return v.bufs[:maxIOV]
	}
	return v.bufs
}

func (v *vector) remaining() int {
	n := 0
	for _, b := range v.bufs {
		n += len(b)
	}
	return n
}

// advance consumes n bytes from the front.
func (v *vector) advance(n int) {
	for n > 0 && len(v.bufs) > 0 {
		if n < len(v.bufs[0]) {
			v.bufs[0] = v.bufs[0][n:]
			return
		}
		n -= len(v.bufs[0])
		v.bufs[0] = nil
		v.bufs = v.bufs[1:]
	}
}
