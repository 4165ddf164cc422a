package mailbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netinmax/inko/internal/vm/globalalloc"
	"github.com/netinmax/inko/internal/vm/localalloc"
	"github.com/netinmax/inko/internal/vm/object"
)

func TestAllocator_Allocate_ReportsIsMailbox(t *testing.T) {
	global := globalalloc.New()
	a := New(global)

	ptr := a.Allocate(object.NewNone())

	assert.True(t, ptr.IsMailbox())
	assert.Equal(t, object.KindNone, ptr.Get().Kind)
}

// S6 -- Mailbox copy preserves value.
func TestAllocator_CopyObject_PreservesIntegerValue(t *testing.T) {
	global := globalalloc.New()
	local := localalloc.New(global)
	mb := New(global)

	original := local.AllocateWithoutPrototype(object.NewInteger(5))
	copy := mb.CopyObject(original)

	assert.True(t, copy.IsMailbox())
	assert.Equal(t, int64(5), copy.Get().Int)
}

func TestAllocator_CopyObject_DeepCopiesArraysAndHandlesCycles(t *testing.T) {
	global := globalalloc.New()
	local := localalloc.New(global)
	mb := New(global)

	a := local.AllocateWithoutPrototype(object.NewNone())
	b := local.AllocateWithoutPrototype(object.NewArray([]object.Pointer{a}))
	a.Set(object.NewArray([]object.Pointer{b})) // a <-> b cycle

	copyA := mb.CopyObject(a)

	require.Equal(t, object.KindArray, copyA.Get().Kind)
	copyB := copyA.Get().Elements[0]
	require.Equal(t, object.KindArray, copyB.Get().Kind)
	assert.Equal(t, copyA, copyB.Get().Elements[0], "cycle must round-trip to the same destination pointer")
	assert.NotEqual(t, a, copyA, "copy must be a distinct object from the source")
}

// S4 -- Reclamation returns empty block.
func TestAllocator_Drop_ReturnsBlocksToGlobal(t *testing.T) {
	global := globalalloc.New()
	a := New(global)

	a.Allocate(object.NewNone())
	a.Drop()

	assert.Equal(t, 1, global.FreeBlockCount())
}

func TestAllocator_AllocationThresholdExceeded(t *testing.T) {
	global := globalalloc.New()
	a := New(global)
	a.threshold = 1

	assert.False(t, a.AllocationThresholdExceeded())

	a.Allocate(object.NewNone())
	assert.True(t, a.AllocationThresholdExceeded())
}

// S5 -- Threshold increment.
func TestAllocator_IncrementThreshold(t *testing.T) {
	global := globalalloc.New()
	a := New(global)
	a.threshold = 1

	a.IncrementThreshold(1.5)

	assert.Equal(t, 2, a.threshold)
}
