// Package bucket implements an age-tagged collection of blocks: a
// generation (young, mature), the mailbox heap, or the permanent space.
// A Bucket owns allocation policy across its blocks -- which block is
// currently being bump-allocated into, when to ask the GlobalAllocator for
// another, and which blocks come back empty-handed after a collection.
package bucket

import (
	"github.com/netinmax/inko/internal/vm/block"
	"github.com/netinmax/inko/internal/vm/object"
)

// Global is the subset of GlobalAllocator a Bucket needs: a source of fresh
// blocks. Kept as an interface so bucket doesn't import globalalloc and its
// tests can supply their own block source.
type Global interface {
	RequestBlock() *block.Block
}

// Bucket owns an ordered collection of blocks and an index into that
// collection marking the current allocation block.
type Bucket struct {
	Age  block.Age
	Name string

	blocks  []*block.Block
	current int
}

// New returns an empty bucket tagged with the given age. Name is a
// human-readable identifier used only for logging and debugging.
func New(age block.Age, name string) *Bucket {
	return &Bucket{Age: age, Name: name}
}

// Blocks exposes the bucket's owned blocks, mostly for the collector and
// tests.
func (bk *Bucket) Blocks() []*block.Block { return bk.blocks }

// Allocate places value (with the given prototype) into the bucket,
// returning whether a new block had to be requested from global and the
// resulting pointer. Mirrors §4.3's three-step allocate policy: bump the
// current block, else hunt for a hole in it, else advance/request a block.
func (bk *Bucket) Allocate(global Global, value object.Value, prototype object.Pointer) (newBlock bool, ptr object.Pointer) {
	if cur := bk.currentBlock(); cur != nil && cur.CanBumpAllocate() {
		return false, bk.place(cur, value, prototype)
	}

	if cur := bk.currentBlock(); cur != nil {
		cur.FindAvailableHole()
		if cur.CanBumpAllocate() {
			return false, bk.place(cur, value, prototype)
		}
	}

	for i := bk.current + 1; i < len(bk.blocks); i++ {
		if bk.blocks[i].IsAvailable() {
			bk.current = i
			return false, bk.place(bk.blocks[i], value, prototype)
		}
	}

	b := global.RequestBlock()
	b.SetBucket(bk.Age, bk.Name)
	bk.blocks = append(bk.blocks, b)
	bk.current = len(bk.blocks) - 1
	return true, bk.place(b, value, prototype)
}

func (bk *Bucket) currentBlock() *block.Block {
	if bk.current < 0 || bk.current >= len(bk.blocks) {
		return nil
	}
	return bk.blocks[bk.current]
}

func (bk *Bucket) place(b *block.Block, value object.Value, prototype object.Pointer) object.Pointer {
	addr := b.BumpAllocate()
	return object.Place(addr, value, prototype)
}

// fragmentationThreshold is the minimum hole count a block must have to be
// considered for evacuation during PrepareForCollection.
const fragmentationThreshold = 6

// PrepareForCollection decides whether this cycle should evacuate: it
// recomputes every block's hole count and marks each block at or above
// fragmentationThreshold Fragmented. Blocks are not ranked against each
// other and the number of blocks marked is not capped. Returns true when at
// least one block was marked, telling the collector to copy-forward live
// objects out of those blocks during mark.
func (bk *Bucket) PrepareForCollection() bool {
	evacuate := false
	for _, b := range bk.blocks {
		b.UpdateHoleCount()
		if b.Holes >= fragmentationThreshold {
			b.SetFragmented()
			evacuate = true
		}
	}
	return evacuate
}

// ReclaimBlocks walks the bucket's blocks post-mark: empty blocks are
// detached and returned to the caller (who hands them back to the
// GlobalAllocator); survivors are reclassified Recyclable or Full based on
// their recomputed hole count.
func (bk *Bucket) ReclaimBlocks() []*block.Block {
	var reclaimed []*block.Block
	kept := bk.blocks[:0]

	for _, b := range bk.blocks {
		if b.IsEmpty() {
			object.ReleaseBlock(b.Base())
			b.ClearBucket()
			b.Reset()
			reclaimed = append(reclaimed, b)
			continue
		}

		b.UpdateHoleCount()
		if b.Holes > 0 {
			b.SetRecyclable()
		} else {
			b.SetFull()
		}
		kept = append(kept, b)
	}

	bk.blocks = kept
	if bk.current >= len(bk.blocks) {
		bk.current = len(bk.blocks) - 1
	}
	return reclaimed
}

// Drop releases every block this bucket owns back to global, resetting each
// first. Used when a LocalAllocator or MailboxAllocator is torn down.
func (bk *Bucket) Drop(global interface{ AddBlock(*block.Block) }) {
	for _, b := range bk.blocks {
		object.ReleaseBlock(b.Base())
		b.ClearBucket()
		b.Reset()
		global.AddBlock(b)
	}
	bk.blocks = nil
	bk.current = -1
}
