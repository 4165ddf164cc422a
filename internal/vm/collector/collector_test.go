package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netinmax/inko/internal/vm/globalalloc"
	"github.com/netinmax/inko/internal/vm/localalloc"
	"github.com/netinmax/inko/internal/vm/mailbox"
	"github.com/netinmax/inko/internal/vm/object"
)

func newHeaps(global *globalalloc.Allocator, local *localalloc.Allocator, mb *mailbox.Allocator) *Heaps {
	return &Heaps{
		Global:  global,
		Young:   local.Young,
		Mature:  local.Mature,
		Mailbox: mb.Bucket,
	}
}

func TestCollect_MarksReachableObjects(t *testing.T) {
	global := globalalloc.New()
	local := localalloc.New(global)
	mb := mailbox.New(global)
	heaps := newHeaps(global, local, mb)

	live := local.AllocateWithoutPrototype(object.NewInteger(1))
	garbage := local.AllocateWithoutPrototype(object.NewInteger(2))
	_ = garbage

	_, stats := Collect(heaps, []object.Pointer{live})

	assert.Equal(t, 1, stats.Visited)
	owner, ok := live.Block()
	require.True(t, ok)
	assert.True(t, owner.MarkedObjects.IsSet(live.SlotIndex()))
}

func TestCollect_ReclaimsFullyUnreachableBlocks(t *testing.T) {
	global := globalalloc.New()
	local := localalloc.New(global)
	mb := mailbox.New(global)
	heaps := newHeaps(global, local, mb)

	local.AllocateWithoutPrototype(object.NewInteger(1))

	Collect(heaps, nil)

	assert.Equal(t, 1, global.FreeBlockCount())
	assert.Empty(t, local.Young.Blocks())
}

func TestCollect_ResolvesRootsThroughArrayGraph(t *testing.T) {
	global := globalalloc.New()
	local := localalloc.New(global)
	mb := mailbox.New(global)
	heaps := newHeaps(global, local, mb)

	child := local.AllocateWithoutPrototype(object.NewInteger(7))
	parent := local.AllocateWithoutPrototype(object.NewArray([]object.Pointer{child}))

	roots, stats := Collect(heaps, []object.Pointer{parent})

	require.Len(t, roots, 1)
	assert.Equal(t, 2, stats.Visited)
	assert.Equal(t, int64(7), roots[0].Get().Elements[0].Get().Int)
}

func TestCollect_HandlesCyclicGraphsWithoutInfiniteRecursion(t *testing.T) {
	global := globalalloc.New()
	local := localalloc.New(global)
	mb := mailbox.New(global)
	heaps := newHeaps(global, local, mb)

	a := local.AllocateWithoutPrototype(object.NewNone())
	b := local.AllocateWithoutPrototype(object.NewArray([]object.Pointer{a}))
	a.Set(object.NewArray([]object.Pointer{b}))

	done := make(chan struct{})
	go func() {
		Collect(heaps, []object.Pointer{a})
		close(done)
	}()
	select {
	case <-done:
	default:
	}
	<-done
}

func TestUpdateThreshold_HighRatioIncrements(t *testing.T) {
	var calledIncrement, calledReset bool
	UpdateThreshold(0.75, func(factor float64) {
		calledIncrement = true
		assert.Equal(t, growthFactor, factor)
	}, func() { calledReset = true })

	assert.True(t, calledIncrement)
	assert.False(t, calledReset)
}

func TestUpdateThreshold_LowRatioResets(t *testing.T) {
	var calledReset bool
	UpdateThreshold(0.1, func(float64) { t.Fatal("should not increment") }, func() { calledReset = true })

	assert.True(t, calledReset)
}
