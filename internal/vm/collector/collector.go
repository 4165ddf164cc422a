// Package collector implements the per-process, stop-the-world mark-region
// cycle: root enumeration is the interpreter's job (it hands Collect a root
// set), but marking, copy-forwarding fragmented survivors, reclaiming empty
// blocks, and adjusting each heap's allocation threshold all happen here.
package collector

import (
	"github.com/netinmax/inko/internal/vm/block"
	"github.com/netinmax/inko/internal/vm/bucket"
	"github.com/netinmax/inko/internal/vm/globalalloc"
	"github.com/netinmax/inko/internal/vm/object"
)

// Heaps bundles the three buckets a single process's memory is spread
// across, plus the global pool blocks are reclaimed into. Young and Mature
// come from a localalloc.Allocator, Mailbox from a mailbox.Allocator; both
// of those types expose their buckets and share the same *globalalloc.Allocator,
// so a Heaps value is cheap to build at collection time.
type Heaps struct {
	Global  *globalalloc.Allocator
	Young   *bucket.Bucket
	Mature  *bucket.Bucket
	Mailbox *bucket.Bucket
}

func (h *Heaps) bucketFor(age block.Age) *bucket.Bucket {
	switch age {
	case block.Young:
		return h.Young
	case block.Mature:
		return h.Mature
	case block.Mailbox:
		return h.Mailbox
	default:
		return nil
	}
}

// Stats summarizes one collection cycle, enough for the caller to decide
// (see UpdateThreshold) whether the next cycle should be delayed. Collect
// itself does not adjust any threshold.
type Stats struct {
	Visited              int
	Evacuated            int
	YoungSurvivorRatio   float64
	MatureSurvivorRatio  float64
	MailboxSurvivorRatio float64
}

// survivorRatioHigh is the fraction of a bucket's reachable lines, relative
// to its total available lines, at or above which the next collection is delayed
// by raising that heap's threshold instead of kept where it is. Overridable
// at startup from AllocatorConfig.SurvivorRatioHigh.
var survivorRatioHigh = 0.5

// growthFactor is applied to a heap's threshold when its survivor ratio is
// high -- it bought itself more room before the next GC is worth running.
// Overridable at startup from AllocatorConfig.ThresholdGrowthFactor.
var growthFactor = 2.0

// SetThresholdPolicy overrides the survivor-ratio cutoff and growth factor
// UpdateThreshold applies. Zero values are ignored, leaving the
// corresponding default in place.
func SetThresholdPolicy(survivorRatioHighCfg, growthFactorCfg float64) {
	if survivorRatioHighCfg != 0 {
		survivorRatioHigh = survivorRatioHighCfg
	}
	if growthFactorCfg != 0 {
		growthFactor = growthFactorCfg
	}
}

// Collect runs one full cycle: prepare (decide evacuation candidates per
// bucket, then clear every block's mark and line bitmaps), mark (traverse
// roots, setting each survivor's object and line bits, and copy-forward
// fragmented survivors),
// reclaim (return empty blocks to global), and report stats. It returns the
// root set with every entry resolved to its post-collection address --
// callers must install these back into registers/call-frame slots, since
// Collect has no way to reach into interpreter state itself.
func Collect(heaps *Heaps, roots []object.Pointer) ([]object.Pointer, Stats) {
	evacuate := map[block.Age]bool{
		block.Young:   heaps.Young.PrepareForCollection(),
		block.Mature:  heaps.Mature.PrepareForCollection(),
		block.Mailbox: heaps.Mailbox.PrepareForCollection(),
	}

	for _, bk := range []*bucket.Bucket{heaps.Young, heaps.Mature, heaps.Mailbox} {
		for _, b := range bk.Blocks() {
			b.ResetBitmaps()
		}
	}

	visited := make(map[object.Pointer]object.Pointer)
	stats := Stats{}

	resolved := make([]object.Pointer, len(roots))
	for i, r := range roots {
		resolved[i] = mark(heaps, r, evacuate, visited, &stats)
	}

	for _, b := range heaps.Young.ReclaimBlocks() {
		heaps.Global.AddBlock(b)
	}
	for _, b := range heaps.Mature.ReclaimBlocks() {
		heaps.Global.AddBlock(b)
	}
	for _, b := range heaps.Mailbox.ReclaimBlocks() {
		heaps.Global.AddBlock(b)
	}

	stats.YoungSurvivorRatio = survivorRatio(heaps.Young)
	stats.MatureSurvivorRatio = survivorRatio(heaps.Mature)
	stats.MailboxSurvivorRatio = survivorRatio(heaps.Mailbox)

	return resolved, stats
}

// mark visits p and everything reachable from it, setting mark bits,
// copy-forwarding p itself if its bucket requested evacuation this cycle
// and p isn't pinned, and returns the pointer callers should keep (p's
// post-evacuation address, or p unchanged).
//
// Children are resolved before p's own possible evacuation so that an
// evacuated copy is placed with already-updated references -- a parent
// never needs a second pass to notice one of its children moved. A cyclic
// back-edge instead relies on the single-hop forwarding contract: the stale
// copy still visible through the cycle carries the forwarded flag, and any
// reader following it resolves to the current address via Pointer.Resolve.
func mark(heaps *Heaps, p object.Pointer, evacuate map[block.Age]bool, visited map[object.Pointer]object.Pointer, stats *Stats) object.Pointer {
	if p.IsNil() || p.IsImmediateInteger() {
		return p
	}
	if p.IsForwarded() {
		return p.Forward()
	}
	if already, ok := visited[p]; ok {
		return already
	}

	visited[p] = p
	p.Mark()
	if owner, ok := p.Block(); ok {
		owner.UsedLines.Set(p.LineIndex())
	}
	stats.Visited++

	v := p.Get()
	if v.Kind == object.KindArray {
		changed := false
		elems := make([]object.Pointer, len(v.Elements))
		for i, e := range v.Elements {
			r := mark(heaps, e, evacuate, visited, stats)
			elems[i] = r
			if r != e {
				changed = true
			}
		}
		if changed {
			p.Set(object.NewArray(elems))
		}
	}

	if proto := p.Prototype(); !proto.IsNil() {
		newProto := mark(heaps, proto, evacuate, visited, stats)
		if newProto != proto {
			p.SetPrototype(newProto)
		}
	}

	b, ok := p.Block()
	if !ok {
		return p
	}
	if !evacuate[b.BucketAge()] || p.IsPinned() {
		return p
	}

	target := heaps.bucketFor(b.BucketAge())
	if target == nil {
		return p
	}
	_, newPtr := target.Allocate(heaps.Global, p.Get(), p.Prototype())
	newPtr.Mark()
	if owner, ok := newPtr.Block(); ok {
		owner.UsedLines.Set(newPtr.LineIndex())
	}
	p.SetForward(newPtr)
	visited[p] = newPtr
	stats.Evacuated++
	return newPtr
}

func survivorRatio(bk *bucket.Bucket) float64 {
	var marked, available int
	for _, b := range bk.Blocks() {
		marked += b.MarkedLinesCount()
		available += block.LinesPerBlock - 1
	}
	if available == 0 {
		return 0
	}
	return float64(marked) / float64(available)
}

// UpdateThreshold raises threshold (via increment) when ratio indicates a
// high survivor rate, or leaves it where it is (via reset) otherwise. The
// caller supplies its own allocator's increment/reset hooks since
// localalloc.Allocator and mailbox.Allocator don't share an interface for
// them beyond this shape.
func UpdateThreshold(ratio float64, increment func(factor float64), reset func()) {
	if ratio >= survivorRatioHigh {
		increment(growthFactor)
		return
	}
	reset()
}
