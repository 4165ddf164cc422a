// Package mailbox implements the per-process inbound-message heap: a
// single bucket tagged MAILBOX that incoming messages are deep-copied into
// by the sender, so the receiver ends up owning a private copy with no
// shared mutable state crossing process boundaries.
package mailbox

import (
	"math"

	"github.com/netinmax/inko/internal/vm/block"
	"github.com/netinmax/inko/internal/vm/bucket"
	"github.com/netinmax/inko/internal/vm/copyobject"
	"github.com/netinmax/inko/internal/vm/globalalloc"
	"github.com/netinmax/inko/internal/vm/object"
)

// blockAllocationThreshold is the number of blocks (1 MiB worth, at 32 KiB
// each) a mailbox heap can grow by before a collection is requested.
const blockAllocationThreshold = (1 * 1024 * 1024) / block.Size

// Allocator is created once per process alongside its LocalAllocator.
type Allocator struct {
	global *globalalloc.Allocator
	Bucket *bucket.Bucket

	blockAllocations int
	threshold        int
}

// New returns a mailbox allocator backed by global, with a fresh MAILBOX
// bucket.
func New(global *globalalloc.Allocator) *Allocator {
	return &Allocator{
		global:    global,
		Bucket:    bucket.New(block.Mailbox, "mailbox"),
		threshold: blockAllocationThreshold,
	}
}

// Allocate places value directly into the mailbox heap, returning a pointer
// whose IsMailbox() reports true.
func (a *Allocator) Allocate(value object.Value) object.Pointer {
	return a.AllocateCopy(value, object.Nil)
}

// AllocateCopy implements copyobject.Destination: it's the hook the CopyObject
// protocol calls once per source object to obtain a fresh destination slot.
func (a *Allocator) AllocateCopy(value object.Value, prototype object.Pointer) object.Pointer {
	newBlock, ptr := a.Bucket.Allocate(a.global, value, prototype)
	if newBlock {
		a.blockAllocations++
	}
	return ptr
}

// CopyObject deep-copies src's object graph into this mailbox heap.
func (a *Allocator) CopyObject(src object.Pointer) object.Pointer {
	return copyobject.Copy(a, src)
}

// PrepareForCollection decides whether this mailbox's next collection needs
// to evacuate fragmented blocks.
func (a *Allocator) PrepareForCollection() bool {
	return a.Bucket.PrepareForCollection()
}

// ReclaimBlocks returns empty blocks to the global pool after a mark phase.
func (a *Allocator) ReclaimBlocks() {
	for _, b := range a.Bucket.ReclaimBlocks() {
		a.global.AddBlock(b)
	}
}

// SetThreshold overrides the starting allocation-count threshold, letting a
// caller apply a configured AllocatorConfig.MailboxBlockThreshold instead of
// blockAllocationThreshold.
func (a *Allocator) SetThreshold(threshold int) {
	a.threshold = threshold
}

// AllocationThresholdExceeded reports whether enough blocks have been
// requested since the last collection to warrant one now.
func (a *Allocator) AllocationThresholdExceeded() bool {
	return a.blockAllocations >= a.threshold
}

// IncrementThreshold raises the threshold by factor and resets the
// per-cycle allocation counter.
func (a *Allocator) IncrementThreshold(factor float64) {
	a.threshold = int(math.Ceil(float64(a.threshold) * factor))
	a.blockAllocations = 0
}

// ResetCycleCounters zeroes the allocation counter without touching the
// threshold, called after a collection with a low survivor ratio.
func (a *Allocator) ResetCycleCounters() {
	a.blockAllocations = 0
}

// Drop returns every block this mailbox owns to the global pool, each reset
// first, mirroring the reference implementation's Drop impl.
func (a *Allocator) Drop() {
	a.Bucket.Drop(a.global)
}
