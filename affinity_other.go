//go:build !linux

package prioq

import "errors"

// PinToCPU is only implemented on Linux.
func PinToCPU(int) error {
	return errors.New("prioq: cpu pinning is not supported on this platform")
}
