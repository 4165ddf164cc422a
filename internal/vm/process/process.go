// Package process implements the lightweight process table and scheduler
// hooks the interpreter drives a VM instance through: each process owns a
// private young/mature heap and mailbox heap, and exchanges messages with
// other processes through a FIFO single-sender-to-single-receiver inbox.
package process

import (
	"sync"

	"github.com/google/uuid"

	"github.com/netinmax/inko/common"
	"github.com/netinmax/inko/internal/vm/copyobject"
	"github.com/netinmax/inko/internal/vm/globalalloc"
	"github.com/netinmax/inko/internal/vm/localalloc"
	"github.com/netinmax/inko/internal/vm/mailbox"
	"github.com/netinmax/inko/internal/vm/object"
)

// Process is a single lightweight process: private heaps, a mailbox heap
// messages are deep-copied into on send, and an inbox queue the process
// drains on receive.
type Process struct {
	PID uint64

	Local   *localalloc.Allocator
	Mailbox *mailbox.Allocator

	inboxMu sync.Mutex
	inbox   common.Queue[object.Pointer]

	suspended bool
}

// pidCounter is a process-table-wide counter seeded once from a UUID so PIDs stay dense and register-friendly (a uint64, not a 128-bit UUID)
// while still being generated the way the rest of this codebase generates
// identifiers (github.com/google/uuid).
var pidCounter struct {
	mu   sync.Mutex
	next uint64
}

func newPID() uint64 {
	pidCounter.mu.Lock()
	defer pidCounter.mu.Unlock()
	if pidCounter.next == 0 {
		// Seed once from a real UUID's first 8 bytes so PIDs aren't a
		// predictable 1, 2, 3... sequence across process restarts.
		id := uuid.New()
		seed := uint64(0)
		for _, b := range id[:8] {
			seed = seed<<8 | uint64(b)
		}
		if seed == 0 {
			seed = 1
		}
		pidCounter.next = seed
	}
	pid := pidCounter.next
	pidCounter.next++
	return pid
}

// New spawns a process with fresh heaps backed by global.
func New(global *globalalloc.Allocator) *Process {
	return &Process{
		PID:     newPID(),
		Local:   localalloc.New(global),
		Mailbox: mailbox.New(global),
		inbox:   common.NewLinkedListQueue[object.Pointer](),
	}
}

// Send deep-copies value (rooted at src, allocated in the sender's heap)
// into the receiver's mailbox heap and appends it to the receiver's inbox.
// Delivery from a single sender to a single receiver is FIFO; this method
// holds only the receiver's inbox lock, never the sender's heap lock, so it
// never needs to cross two processes' locks at once.
func (p *Process) Send(src object.Pointer) {
	copied := p.Mailbox.CopyObject(src)

	p.inboxMu.Lock()
	p.inbox.Push(copied)
	p.inboxMu.Unlock()
}

// Receive pops the oldest message from the inbox, copying it from the
// mailbox heap into the process's own local heap so its lifetime is no
// longer tied to the mailbox allocator's collection cycle. ok is false when
// the inbox is empty -- the caller (the scheduler) is expected to suspend
// the process rather than busy-wait.
func (p *Process) Receive() (msg object.Pointer, ok bool) {
	p.inboxMu.Lock()
	defer p.inboxMu.Unlock()

	if p.inbox.IsEmpty() {
		return object.Nil, false
	}
	mailboxCopy := p.inbox.Pop()
	return copyobject.Copy(localDestination{p.Local}, mailboxCopy), true
}

// InboxLen reports the number of undelivered messages, mostly for tests and
// the scheduler's should-suspend check.
func (p *Process) InboxLen() int {
	p.inboxMu.Lock()
	defer p.inboxMu.Unlock()
	return p.inbox.Len()
}

// Suspended reports whether the scheduler has parked this process (empty
// inbox on receive, GC requested, or explicit yield).
func (p *Process) Suspended() bool {
	p.inboxMu.Lock()
	defer p.inboxMu.Unlock()
	return p.suspended
}

// SetSuspended records the process's scheduling state. Suspension never
// touches heap state -- resumption finds both allocators exactly as they
// were left.
func (p *Process) SetSuspended(v bool) {
	p.inboxMu.Lock()
	p.suspended = v
	p.inboxMu.Unlock()
}

// Exit returns every block owned by this process's heaps to global.
func (p *Process) Exit() {
	p.Local.Drop()
	p.Mailbox.Drop()
}

type localDestination struct {
	local *localalloc.Allocator
}

func (d localDestination) AllocateCopy(value object.Value, prototype object.Pointer) object.Pointer {
	return d.local.Allocate(value, prototype)
}
