// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral API for CPU affinity. Platform-specific implementations are located
// in separate files guarded by build tags.

package affinity

import (
	"fmt"
	"runtime"
)

// Pin locks the calling goroutine to its OS thread and binds that thread
// to cpu. The thread stays locked even when binding fails; release it with
// Unpin.
func Pin(cpu int) error {
	runtime.LockOSThread()
	if cpu < 0 {
		return fmt.Errorf("affinity: invalid cpu %d", cpu)
	}
	return setAffinityPlatform(cpu)
}

// Unpin releases the OS thread locked by Pin.
func Unpin() {
	runtime.UnlockOSThread()
}

// Current returns the CPUs the calling thread may run on.
func Current() ([]int, error) {
	return currentPlatform()
}
