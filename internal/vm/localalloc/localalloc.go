// Package localalloc implements the per-process façade interpreters call
// into for ordinary allocation: a young generation collected every minor
// cycle and a mature generation promoted survivors land in.
package localalloc

import (
	"math"

	"github.com/netinmax/inko/internal/vm/block"
	"github.com/netinmax/inko/internal/vm/bucket"
	"github.com/netinmax/inko/internal/vm/globalalloc"
	"github.com/netinmax/inko/internal/vm/object"
)

// Allocator is created once per process and dropped when the process
// exits, returning every block it owns to the GlobalAllocator.
type Allocator struct {
	global *globalalloc.Allocator

	Young  *bucket.Bucket
	Mature *bucket.Bucket

	youngBlockAllocations int

	threshold float64
}

// defaultThreshold is the starting allocation-count threshold before a
// collection is requested.
const defaultThreshold = 32

// New returns an Allocator backed by global, with fresh young and mature
// buckets.
func New(global *globalalloc.Allocator) *Allocator {
	return &Allocator{
		global:    global,
		Young:     bucket.New(block.Young, "young"),
		Mature:    bucket.New(block.Mature, "mature"),
		threshold: defaultThreshold,
	}
}

// Allocate places value with the given prototype into the young bucket.
func (a *Allocator) Allocate(value object.Value, prototype object.Pointer) object.Pointer {
	newBlock, ptr := a.Young.Allocate(a.global, value, prototype)
	if newBlock {
		a.youngBlockAllocations++
	}
	return ptr
}

// AllocateWithoutPrototype allocates value with a nil prototype, the common
// case for array and string literals.
func (a *Allocator) AllocateWithoutPrototype(value object.Value) object.Pointer {
	return a.Allocate(value, object.Nil)
}

// AllocateEmpty allocates a None-valued object with no prototype.
func (a *Allocator) AllocateEmpty() object.Pointer {
	return a.Allocate(object.NewNone(), object.Nil)
}

// Promote copies an object that survived a young collection into the
// mature bucket. The original object's slot is left for the young block's
// reclamation pass; callers are expected to rewrite any references to the
// returned pointer (the collector's job, not this allocator's).
func (a *Allocator) Promote(ptr object.Pointer) object.Pointer {
	v := ptr.Get()
	proto := ptr.Prototype()
	_, newPtr := a.Mature.Allocate(a.global, v, proto)
	ptr.SetForward(newPtr)
	return newPtr
}

// SetThreshold overrides the starting allocation-count threshold, letting a
// caller apply a configured AllocatorConfig.YoungBlockThreshold instead of
// defaultThreshold.
func (a *Allocator) SetThreshold(threshold int) {
	a.threshold = float64(threshold)
}

// AllocationThresholdExceeded reports whether enough young-bucket blocks
// have been requested since the last GC to warrant a collection.
func (a *Allocator) AllocationThresholdExceeded() bool {
	return float64(a.youngBlockAllocations) >= a.threshold
}

// IncrementThreshold raises the threshold by factor (ceil(threshold*factor))
// and resets the young allocation counter, called after a collection with a
// high survivor ratio.
func (a *Allocator) IncrementThreshold(factor float64) {
	a.threshold = math.Ceil(a.threshold * factor)
	a.youngBlockAllocations = 0
}

// ResetCycleCounters zeroes the young allocation counter without touching
// the threshold, called after a collection with a low survivor ratio.
func (a *Allocator) ResetCycleCounters() {
	a.youngBlockAllocations = 0
}

// Drop returns every block owned by both buckets to the global pool.
func (a *Allocator) Drop() {
	a.Young.Drop(a.global)
	a.Mature.Drop(a.global)
}
