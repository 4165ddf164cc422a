// Package block implements Immix's unit of allocation and reclamation: a
// 32 KiB, 32 KiB-aligned region subdivided into 256 lines of 128 bytes, each
// line holding 4 object slots of 32 bytes. See internal/vm/bitmap for the
// mark/line bit arrays and internal/vm/object for the slot contents.
package block

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/netinmax/inko/internal/vm/bitmap"
)

const (
	// Size is the number of bytes in a block. Bit-exact per the memory
	// layout guarantees in the spec: 32768 == 32 * 1024.
	Size = 32 * 1024

	// LineSize is the number of bytes in a single line.
	LineSize = 128

	// LinesPerBlock is the number of lines in a block.
	LinesPerBlock = Size / LineSize

	// BytesPerObject is the size of a single object slot.
	BytesPerObject = 32

	// ObjectsPerBlock is the number of object slots that fit in a block.
	ObjectsPerBlock = Size / BytesPerObject

	// ObjectsPerLine is the number of object slots that fit in a line.
	ObjectsPerLine = LineSize / BytesPerObject

	// ObjectStartSlot is the first slot objects may be allocated into; slots
	// [0, ObjectStartSlot) -- one line's worth -- are reserved for the
	// BlockHeader and are never overwritten while the block is live.
	ObjectStartSlot = LineSize / BytesPerObject

	// LineStartSlot is the first line objects may be allocated into.
	LineStartSlot = 1

	// blockMask recovers a block's base address from any pointer into it.
	blockMask = ^uintptr(Size - 1)

	// lineMask recovers a line's base address from any pointer into it.
	lineMask = ^uintptr(LineSize - 1)
)

// BaseMask returns the mask used to recover a block's start address from a
// raw pointer: ptr &^ (Size-1) == ptr & blockMask.
func BaseMask() uintptr { return blockMask }

// LineBaseMask returns the mask used to recover a line's start address from
// a raw pointer.
func LineBaseMask() uintptr { return lineMask }

// Status is a block's place in the Free -> {Full, Recyclable} -> Fragmented
// -> Free state machine (spec.md Block state machine).
type Status int

const (
	Free Status = iota
	Recyclable
	Full
	Fragmented
)

func (s Status) String() string {
	switch s {
	case Free:
		return "free"
	case Recyclable:
		return "recyclable"
	case Full:
		return "full"
	case Fragmented:
		return "fragmented"
	default:
		return "unknown"
	}
}

// Age tags the generation or region a bucket -- and by extension every
// block it owns -- belongs to.
type Age int

const (
	Young Age = iota
	Mature
	Mailbox
	Permanent
)

// Header is written conceptually into slot 0 of every block: "conceptually"
// because Go cannot safely stash a live, GC-traced *Block pointer inside
// unmanaged mmap'd memory (the runtime would have no way to find and
// update it). Instead the registry below plays the role BlockHeader plays
// in the reference implementation -- recovering the owning *Block from a
// masked address -- without writing a pointer into raw memory.
type Header struct {
	Block *Block
}

var (
	registryMu sync.RWMutex
	registry   = map[uintptr]*Block{}
)

// HeaderFor recovers the Header (and therefore the owning Block) for any
// address that was handed out by a Block's bump allocator. It implements
// the "masking ptr & ~0x7FFF yields the block header" invariant from the
// spec without requiring unsafe writes into unmanaged memory.
func HeaderFor(addr uintptr) (Header, bool) {
	base := addr & blockMask
	registryMu.RLock()
	b, ok := registry[base]
	registryMu.RUnlock()
	if !ok {
		return Header{}, false
	}
	return Header{Block: b}, true
}

// Block is a 32 KiB aligned region divided into lines, the unit Immix
// reclaims as a whole.
type Block struct {
	mem []byte // raw, 32 KiB aligned mmap'd region; reserved for address arithmetic only

	base uintptr

	Status Status
	Holes  int

	MarkedObjects bitmap.ObjectMap
	UsedLines     bitmap.LineMap

	freePointer uintptr
	endPointer  uintptr

	bucketAge  Age
	hasBucket  bool
	bucketName string // human-readable owner id, for debugging/logging only
}

// New mmaps a fresh 32 KiB, 32 KiB-aligned region and returns a Block ready
// for allocation. Grounded on the Go runtime's own over-allocate-then-trim
// alignment technique (cloudfly-readgo/runtime/malloc.go's round/sysAlloc)
// and on golang.org/x/sys/unix.Mmap usage shown in
// lukechampine-talks/unsafe/freeze.go.
func New() *Block {
	raw, err := unix.Mmap(-1, 0, 2*Size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		panic(fmt.Sprintf("block: failed to allocate memory for a new block: %v", err))
	}

	base := uintptr(0)
	if len(raw) > 0 {
		// Using the slice header address is sufficient here because the Go
		// runtime does not move heap/mmap-backed byte slices.
		base = uintptr(unsafeSliceAddr(raw))
	}
	aligned := (base + Size - 1) &^ (Size - 1)
	front := aligned - base
	back := uintptr(2*Size) - front - Size

	if front > 0 {
		if err := unix.Munmap(raw[:front]); err != nil {
			panic(fmt.Sprintf("block: failed to trim alignment padding: %v", err))
		}
	}
	mem := raw[front : front+Size]
	if back > 0 {
		if err := unix.Munmap(raw[front+Size:]); err != nil {
			panic(fmt.Sprintf("block: failed to trim alignment padding: %v", err))
		}
	}

	b := &Block{
		mem:    mem,
		base:   aligned,
		Status: Free,
		Holes:  1,
	}
	b.freePointer = b.StartAddress()
	b.endPointer = b.EndAddress()

	registryMu.Lock()
	registry[b.base] = b
	registryMu.Unlock()

	return b
}

// Release returns the block's backing memory to the OS. Called only when a
// block is permanently discarded (never for blocks cycling through the
// GlobalAllocator's free list, which are reused in place).
func (b *Block) Release() {
	registryMu.Lock()
	delete(registry, b.base)
	registryMu.Unlock()

	_ = unix.Munmap(b.mem)
}

// Base returns the block's aligned start address.
func (b *Block) Base() uintptr { return b.base }

// StartAddress returns the first address objects may be allocated into.
func (b *Block) StartAddress() uintptr {
	return b.base + uintptr(ObjectStartSlot*BytesPerObject)
}

// EndAddress returns the address just past the block; never dereferenced,
// only used as an exclusive upper bound.
func (b *Block) EndAddress() uintptr {
	return b.base + uintptr(ObjectsPerBlock*BytesPerObject)
}

// SetBucket records which bucket (by age tag) currently owns this block.
// A zero-value hasBucket means "unowned", matching the spec's null
// back-pointer.
func (b *Block) SetBucket(age Age, name string) {
	b.bucketAge = age
	b.hasBucket = true
	b.bucketName = name
}

// ClearBucket marks the block as unowned.
func (b *Block) ClearBucket() {
	b.hasBucket = false
	b.bucketName = ""
}

// HasBucket reports whether the block currently belongs to a bucket.
func (b *Block) HasBucket() bool { return b.hasBucket }

// BucketAge returns the age tag of the owning bucket. Only valid when
// HasBucket is true.
func (b *Block) BucketAge() Age { return b.bucketAge }

// CanBumpAllocate reports whether the next slot can be carved out of the
// current cursor without crossing the end pointer.
func (b *Block) CanBumpAllocate() bool {
	return b.freePointer < b.endPointer
}

// BumpAllocate hands out the next slot address and advances the cursor by
// one object. The caller (internal/vm/object) is responsible for writing
// the object's content, keyed by the returned address.
func (b *Block) BumpAllocate() uintptr {
	if !b.CanBumpAllocate() {
		panic("block: bump_allocate called without checking can_bump_allocate")
	}
	p := b.freePointer
	b.freePointer += BytesPerObject
	return p
}

// FreePointer exposes the current allocation cursor, mostly for tests.
func (b *Block) FreePointer() uintptr { return b.freePointer }

// EndPointer exposes the current allocation limit, mostly for tests.
func (b *Block) EndPointer() uintptr { return b.endPointer }

// LineIndexOfPointer derives a line index from an address within this
// block: (p & ~127 - block_start) / 128.
func (b *Block) LineIndexOfPointer(p uintptr) int {
	lineAddr := p & lineMask
	return int((lineAddr - b.base) / LineSize)
}

// SlotIndexOfPointer derives the object slot index addressed by p.
func (b *Block) SlotIndexOfPointer(p uintptr) int {
	return int((p - b.base) / BytesPerObject)
}

// FindAvailableHole scans used_lines_bitmap forward from the cursor's
// current line for the next entirely unused line, and narrows the
// allocation window to just that line. If the cursor has already consumed
// the whole block this is a no-op.
func (b *Block) FindAvailableHole() {
	if b.freePointer == b.EndAddress() {
		return
	}

	lineIndex := b.LineIndexOfPointer(b.freePointer)
	next := b.UsedLines.NextUnset(lineIndex)
	if next == -1 {
		return
	}

	linePointer := b.base + uintptr(next*LineSize)
	b.freePointer = linePointer
	b.endPointer = linePointer + uintptr(ObjectsPerLine*BytesPerObject)
}

// ResetBitmaps clears both the object-mark and line-use bitmaps, leaving
// cursors and status untouched. Used at the start of a collection cycle.
func (b *Block) ResetBitmaps() {
	b.UsedLines.Reset()
	b.MarkedObjects.Reset()
}

// Reset returns the block to a pristine Free state. Object payloads are not
// individually destroyed -- the whole block is recycled wholesale by
// whichever allocator holds it next.
func (b *Block) Reset() {
	b.Status = Free
	b.Holes = 1
	b.freePointer = b.StartAddress()
	b.endPointer = b.EndAddress()
	b.ClearBucket()
	b.ResetBitmaps()
}

// UpdateHoleCount recomputes Holes as the number of maximal runs of unset
// bits in UsedLines[LineStartSlot:LinesPerBlock).
func (b *Block) UpdateHoleCount() {
	inHole := false
	holes := 0

	for i := LineStartSlot; i < LinesPerBlock; i++ {
		set := b.UsedLines.IsSet(i)
		switch {
		case inHole && set:
			inHole = false
		case !inHole && !set:
			inHole = true
			holes++
		}
	}

	b.Holes = holes
}

// MarkedLinesCount returns the number of lines with at least one reachable
// object.
func (b *Block) MarkedLinesCount() int { return b.UsedLines.Len() }

// AvailableLinesCount returns the number of lines still free for use,
// excluding the reserved header line.
func (b *Block) AvailableLinesCount() int {
	return (LinesPerBlock - 1) - b.MarkedLinesCount()
}

// IsEmpty reports whether no line in the block is marked in use.
func (b *Block) IsEmpty() bool { return b.UsedLines.IsEmpty() }

// IsAvailable reports whether the block can accept new allocations right
// now (without first calling FindAvailableHole).
func (b *Block) IsAvailable() bool {
	return b.Status == Free || b.Status == Recyclable
}

// ShouldEvacuate reports whether the collector should consider moving this
// block's survivors elsewhere before reclaiming it.
func (b *Block) ShouldEvacuate() bool {
	return b.Status == Recyclable || b.Status == Fragmented
}

func (b *Block) SetFull()       { b.Status = Full }
func (b *Block) SetRecyclable() { b.Status = Recyclable }
func (b *Block) SetFragmented() { b.Status = Fragmented }
