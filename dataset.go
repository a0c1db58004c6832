package hashpart

import (
	"github.com/edsrzf/mmap-go"
)

// Tuple is one fixed-size input record.
type Tuple struct {
	Key     uint64
	Payload uint64
}

// Dataset is a read-only sequence of tuples shared by all workers of a
// partitioning pass.
//
// A Dataset returned by OpenMapped views the file's pages directly and must
// be closed after the last pass that uses it. Heap-backed datasets (NewDataset,
// Load) have a no-op Close.
type Dataset struct {
	tuples []Tuple
	mm     mmap.MMap
}

// NewDataset wraps tuples without copying. The caller must not modify
// tuples while a partitioning pass is running.
func NewDataset(tuples []Tuple) *Dataset {
	return &Dataset{tuples: tuples}
}

// Len returns the number of tuples N.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.tuples)
}

// Tuples returns the underlying tuples. The slice must be treated as read-only.
func (d *Dataset) Tuples() []Tuple {
	if d == nil {
		return nil
	}
	return d.tuples
}

// Close releases the mapping backing a dataset opened with OpenMapped.
// Idempotent.
func (d *Dataset) Close() error {
	if d == nil || d.mm == nil {
		return nil
	}
	err := d.mm.Unmap()
	d.mm = nil
	d.tuples = nil
	return err
}
