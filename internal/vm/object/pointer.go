// Package object implements the tagged ObjectPointer handle and the Value
// every live slot holds. A Pointer is either a raw address into some Block
// (resolved through block.HeaderFor) or an immediate integer packed directly
// into the handle's bits -- no allocation, no slot, no block.
//
// Go cannot safely store a live, GC-traced value inside memory the Go
// runtime doesn't own (a block's mmap'd bytes), so slot content itself lives
// in an ordinary Go-managed side table keyed by address; see slots below. The
// block package only ever hands out and recycles addresses.
package object

import (
	"sync"

	"github.com/netinmax/inko/internal/vm/block"
)

// Pointer is a tagged handle: bit 0 set means "immediate integer", value in
// the remaining bits; bit 0 clear means "address of a slot inside some
// block", always 32-byte aligned so bit 0 is naturally zero there.
//
// This tagging assumes a machine word wide enough to hold a shifted int64,
// i.e. a 64-bit address space -- the only target the rest of the allocator
// (block-size and line-size masking) assumes too.
type Pointer uintptr

// Nil is the zero Pointer: "no object", used for empty prototype links and
// uninitialized fields. It is never a valid address because block.New never
// hands out block base address 0 on a real mmap-backed platform, and it is
// never a valid immediate-integer encoding because that always sets bit 0.
const Nil Pointer = 0

const immediateTag = uintptr(1)

// NewImmediateInteger packs a signed integer directly into a Pointer with no
// heap allocation and no backing slot.
func NewImmediateInteger(v int64) Pointer {
	return Pointer((uintptr(v) << 1) | immediateTag)
}

// IsImmediateInteger reports whether p encodes an integer inline rather than
// addressing a slot.
func (p Pointer) IsImmediateInteger() bool {
	return uintptr(p)&immediateTag == immediateTag
}

// IsNil reports whether p is the zero handle.
func (p Pointer) IsNil() bool { return p == Nil }

// ImmediateIntegerValue decodes the integer packed by NewImmediateInteger.
// Only valid when IsImmediateInteger is true.
func (p Pointer) ImmediateIntegerValue() int64 {
	return int64(p) >> 1
}

// Block resolves the owning block.Block for an address pointer. Returns
// false for nil handles and for immediate integers, neither of which live in
// a block.
func (p Pointer) Block() (*block.Block, bool) {
	if p.IsNil() || p.IsImmediateInteger() {
		return nil, false
	}
	hdr, ok := block.HeaderFor(uintptr(p))
	if !ok {
		return nil, false
	}
	return hdr.Block, true
}

// LineIndex returns the index of the line this pointer falls in, within its
// owning block. Panics if p has no owning block.
func (p Pointer) LineIndex() int {
	b, ok := p.Block()
	if !ok {
		panic("object: LineIndex called on a pointer with no owning block")
	}
	return b.LineIndexOfPointer(uintptr(p))
}

// SlotIndex returns the index of the object slot this pointer addresses,
// within its owning block. Panics if p has no owning block.
func (p Pointer) SlotIndex() int {
	b, ok := p.Block()
	if !ok {
		panic("object: SlotIndex called on a pointer with no owning block")
	}
	return b.SlotIndexOfPointer(uintptr(p))
}

// IsMailbox reports whether this pointer's object lives in a bucket tagged
// block.Mailbox. Immediate integers are never mailbox objects; copying them is always a
// plain value copy.
func (p Pointer) IsMailbox() bool {
	if p.IsImmediateInteger() || p.IsNil() {
		return false
	}
	b, ok := p.Block()
	if !ok || !b.HasBucket() {
		return false
	}
	return b.BucketAge() == block.Mailbox
}

// Mark sets this pointer's slot as reachable in its owning block's mark
// bitmap. The marked bit lives solely on the block, never duplicated in the
// per-slot Flags (flags.go). The block's line bitmap is left to the caller.
func (p Pointer) Mark() {
	b, ok := p.Block()
	if !ok {
		return
	}
	b.MarkedObjects.Set(p.SlotIndex())
}

// IsMarked reports this pointer's mark bit. Immediate integers are always
// considered marked: they need no tracing and are never collected.
func (p Pointer) IsMarked() bool {
	if p.IsImmediateInteger() || p.IsNil() {
		return true
	}
	b, ok := p.Block()
	if !ok {
		return false
	}
	return b.MarkedObjects.IsSet(p.SlotIndex())
}

var (
	slotsMu sync.RWMutex
	slots   = map[uintptr]*storedSlot{}
)

type storedSlot struct {
	value     Value
	prototype Pointer
	flags     Flags
	forward   Pointer
}

// Place commits value and prototype into the slot at addr (an address
// handed out by some block.Block's BumpAllocate) and returns the handle for
// it. Called by the allocators once they've chosen a block and address;
// Place itself never touches block state.
func Place(addr uintptr, value Value, prototype Pointer) Pointer {
	slotsMu.Lock()
	slots[addr] = &storedSlot{value: value, prototype: prototype}
	slotsMu.Unlock()
	return Pointer(addr)
}

func (p Pointer) entry() (*storedSlot, bool) {
	slotsMu.RLock()
	defer slotsMu.RUnlock()
	s, ok := slots[uintptr(p)]
	return s, ok
}

// Get returns the value held at p. Immediate integers synthesize their
// Value on the fly rather than consulting the slot table.
func (p Pointer) Get() Value {
	if p.IsImmediateInteger() {
		return NewInteger(p.ImmediateIntegerValue())
	}
	s, ok := p.entry()
	if !ok {
		return NewNone()
	}
	return s.value
}

// Set overwrites the value stored at p, keeping its prototype and flags.
// Panics for immediate integers and nil handles, neither of which have a
// mutable slot.
func (p Pointer) Set(v Value) {
	if p.IsImmediateInteger() || p.IsNil() {
		panic("object: Set called on a pointer with no backing slot")
	}
	slotsMu.Lock()
	defer slotsMu.Unlock()
	s, ok := slots[uintptr(p)]
	if !ok {
		s = &storedSlot{}
		slots[uintptr(p)] = s
	}
	s.value = v
}

// Prototype returns the handle this object was cloned from, or Nil.
func (p Pointer) Prototype() Pointer {
	s, ok := p.entry()
	if !ok {
		return Nil
	}
	return s.prototype
}

// SetPrototype rewrites the prototype link, used by the collector when
// relinking evacuated objects.
func (p Pointer) SetPrototype(proto Pointer) {
	slotsMu.Lock()
	defer slotsMu.Unlock()
	s, ok := slots[uintptr(p)]
	if !ok {
		s = &storedSlot{}
		slots[uintptr(p)] = s
	}
	s.prototype = proto
}

// ReleaseBlock drops every slot entry whose address falls within [base,
// base+block.Size) -- called when a block is permanently unmapped so the
// side table doesn't keep stale values alive indefinitely.
func ReleaseBlock(base uintptr) {
	slotsMu.Lock()
	defer slotsMu.Unlock()
	for addr := range slots {
		if addr >= base && addr < base+block.Size {
			delete(slots, addr)
		}
	}
}
