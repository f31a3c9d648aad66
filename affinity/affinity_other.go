//go:build !linux

// File: affinity/affinity_other.go
// Author: momentics <momentics@gmail.com>

package affinity

import "errors"

var errUnsupported = errors.New("affinity: not supported on this platform")

func setAffinityPlatform(int) error { return errUnsupported }

func currentPlatform() ([]int, error) { return nil, errUnsupported }
