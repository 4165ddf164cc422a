package process

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netinmax/inko/internal/vm/globalalloc"
	"github.com/netinmax/inko/internal/vm/object"
)

func TestNew_AssignsDistinctPIDs(t *testing.T) {
	global := globalalloc.New()
	a := New(global)
	b := New(global)

	assert.NotEqual(t, a.PID, b.PID)
}

func TestSend_Receive_FIFO(t *testing.T) {
	global := globalalloc.New()
	sender := New(global)
	receiver := New(global)

	one := sender.Local.AllocateWithoutPrototype(object.NewInteger(1))
	two := sender.Local.AllocateWithoutPrototype(object.NewInteger(2))

	receiver.Send(one)
	receiver.Send(two)

	require.Equal(t, 2, receiver.InboxLen())

	first, ok := receiver.Receive()
	require.True(t, ok)
	assert.Equal(t, int64(1), first.Get().Int)

	second, ok := receiver.Receive()
	require.True(t, ok)
	assert.Equal(t, int64(2), second.Get().Int)

	_, ok = receiver.Receive()
	assert.False(t, ok)
}

func TestReceive_CopiesOutOfMailboxHeap(t *testing.T) {
	global := globalalloc.New()
	sender := New(global)
	receiver := New(global)

	src := sender.Local.AllocateWithoutPrototype(object.NewInteger(5))
	receiver.Send(src)

	msg, ok := receiver.Receive()
	require.True(t, ok)
	assert.False(t, msg.IsMailbox(), "Receive should copy into the process's own local heap")
	assert.Equal(t, int64(5), msg.Get().Int)
}

func TestExit_ReturnsAllBlocksToGlobal(t *testing.T) {
	global := globalalloc.New()
	p := New(global)
	p.Local.Allocate(object.NewInteger(1), object.Nil)
	p.Mailbox.Allocate(object.NewInteger(2))

	p.Exit()

	assert.Equal(t, 2, global.FreeBlockCount())
}

func TestTable_RegisterLookupUnregister(t *testing.T) {
	tbl := NewTable()
	global := globalalloc.New()
	p := New(global)

	tbl.Register(p)
	assert.Equal(t, 1, tbl.Len())

	found, ok := tbl.Lookup(p.PID)
	require.True(t, ok)
	assert.Same(t, p, found)

	tbl.Unregister(p.PID)
	assert.Equal(t, 0, tbl.Len())
	_, ok = tbl.Lookup(p.PID)
	assert.False(t, ok)
}
