package hashpart

// AffinityProvider pins the calling worker's OS thread to a CPU.
//
// Pin reports whether the request succeeded. A refused pin only costs
// locality: the worker partitions its chunk either way.
type AffinityProvider interface {
	Pin(thread int) bool
}

// AffinityFunc adapts a function to AffinityProvider.
type AffinityFunc func(thread int) bool

// Pin calls f(thread).
func (f AffinityFunc) Pin(thread int) bool {
	return f(thread)
}

// CPUAffinity distributes workers round-robin over the CPUs the process is
// allowed to run on: worker i goes to CPU cpus[i % len(cpus)].
type CPUAffinity struct {
	cpus []int
}

// NewCPUAffinity captures the current process CPU set. On platforms without
// thread affinity support every Pin call fails.
func NewCPUAffinity() *CPUAffinity {
	cpus, err := allowedCPUs()
	if err != nil {
		cpus = nil
	}
	return &CPUAffinity{cpus: cpus}
}

// CPUs returns the CPU ids workers are distributed over.
func (a *CPUAffinity) CPUs() []int {
	return a.cpus
}

// Pin binds the calling OS thread to the CPU assigned to thread. The caller
// must hold runtime.LockOSThread for the binding to stick to its goroutine.
func (a *CPUAffinity) Pin(thread int) bool {
	if len(a.cpus) == 0 || thread < 0 {
		return false
	}
	return pinCurrentThread(a.cpus[thread%len(a.cpus)]) == nil
}
