//go:build !linux

package hashpart

import (
	"errors"
	"runtime"
)

var errAffinityUnsupported = errors.New("hashpart: thread affinity not supported on " + runtime.GOOS)

// allowedCPUs reports every logical CPU; the list is only used for
// round-robin assignment, and pinning itself is unsupported here.
func allowedCPUs() ([]int, error) {
	cpus := make([]int, runtime.NumCPU())
	for i := range cpus {
		cpus[i] = i
	}
	return cpus, nil
}

func pinCurrentThread(int) error {
	return errAffinityUnsupported
}
