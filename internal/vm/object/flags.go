package object

// Flags holds the per-slot header bits that aren't tracked by a block-level
// bitmap: forwarded (evacuated to a new address), pinned (ineligible for
// evacuation), and remembered (holds a mature-to-young reference, a write
// barrier target for a future generational collector). The mark bit is
// deliberately not duplicated here -- it lives solely in the owning block's
// MarkedObjects bitmap; see Pointer.Mark/IsMarked.
type Flags uint8

const (
	FlagForwarded Flags = 1 << iota
	FlagPinned
	FlagRemembered
)

func (p Pointer) flagsLocked() Flags {
	s, ok := p.entry()
	if !ok {
		return 0
	}
	return s.flags
}

func (p Pointer) setFlag(f Flags, set bool) {
	slotsMu.Lock()
	defer slotsMu.Unlock()
	s, ok := slots[uintptr(p)]
	if !ok {
		s = &storedSlot{}
		slots[uintptr(p)] = s
	}
	if set {
		s.flags |= f
	} else {
		s.flags &^= f
	}
}

// IsForwarded reports whether this object has been evacuated; Forward
// returns the address it now lives at.
func (p Pointer) IsForwarded() bool { return p.flagsLocked()&FlagForwarded != 0 }

// Resolve follows a single forwarding hop if one is set, returning the
// pointer callers should actually dereference. Only one hop is ever needed:
// the collector never forwards the same object twice within one cycle.
func (p Pointer) Resolve() Pointer {
	if p.IsForwarded() {
		return p.Forward()
	}
	return p
}

// Forward returns the forwarding destination set by SetForward. Only
// meaningful when IsForwarded is true.
func (p Pointer) Forward() Pointer {
	s, ok := p.entry()
	if !ok {
		return Nil
	}
	return s.forward
}

// SetForward records that p's object has moved to dest, setting the
// forwarded flag. The reference implementation allows only a single hop:
// callers must always follow a chain to its end themselves if they chase
// stale handles across more than one collection cycle.
func (p Pointer) SetForward(dest Pointer) {
	slotsMu.Lock()
	defer slotsMu.Unlock()
	s, ok := slots[uintptr(p)]
	if !ok {
		s = &storedSlot{}
		slots[uintptr(p)] = s
	}
	s.forward = dest
	s.flags |= FlagForwarded
}

func (p Pointer) IsPinned() bool       { return p.flagsLocked()&FlagPinned != 0 }
func (p Pointer) SetPinned(v bool)     { p.setFlag(FlagPinned, v) }
func (p Pointer) IsRemembered() bool   { return p.flagsLocked()&FlagRemembered != 0 }
func (p Pointer) SetRemembered(v bool) { p.setFlag(FlagRemembered, v) }
