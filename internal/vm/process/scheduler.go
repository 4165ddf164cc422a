package process

import (
	"context"

	"github.com/netinmax/inko/common"
	"github.com/netinmax/inko/internal/vm/collector"
	"github.com/netinmax/inko/internal/vm/globalalloc"
	"github.com/netinmax/inko/internal/vm/object"
	"github.com/netinmax/inko/internal/workerpool"
)

// Scheduler dispatches runnable processes onto a static worker pool and
// implements the §6 hooks the interpreter's dispatch loop calls between
// instructions: ShouldCollect, Collect, OnProcessExit.
type Scheduler struct {
	global  *globalalloc.Allocator
	table   *Table
	pool    *workerpool.Pool
	runQ    common.Queue[*Process]
	metrics common.MetricHandle
}

// NewScheduler builds a scheduler backed by a static worker pool with the
// given worker counts (see workerpool.NewStaticWorkerPool). Metrics are
// discarded until WithMetrics installs a handle.
func NewScheduler(global *globalalloc.Allocator, priorityWorkers, normalWorkers uint32) (*Scheduler, error) {
	pool, err := workerpool.NewStaticWorkerPool(priorityWorkers, normalWorkers)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		global:  global,
		table:   NewTable(),
		pool:    pool,
		runQ:    common.NewLinkedListQueue[*Process](),
		metrics: common.NewNoopMetrics(),
	}, nil
}

// WithMetrics installs the MetricHandle spawn, exit, and collection events
// are reported through. Returns the scheduler for chaining at construction.
func (s *Scheduler) WithMetrics(m common.MetricHandle) *Scheduler {
	s.metrics = m
	return s
}

// Table exposes the process table so callers can look processes up by PID
// to send them messages.
func (s *Scheduler) Table() *Table { return s.table }

// Spawn creates a process, registers it, and enqueues it to run.
func (s *Scheduler) Spawn() *Process {
	p := New(s.global)
	s.table.Register(p)
	s.runQ.Push(p)
	s.metrics.ProcessesSpawned(context.Background(), 1)
	return p
}

// Dispatch submits every process currently in the run queue to the worker
// pool, running fn for each. fn is expected to run the process until it
// yields, blocks on an empty mailbox, or hits its allocation threshold.
func (s *Scheduler) Dispatch(fn func(*Process)) {
	for !s.runQ.IsEmpty() {
		p := s.runQ.Pop()
		proc := p
		s.pool.Submit(func() { fn(proc) })
	}
}

// Reschedule re-enqueues a process that was dispatched and is ready to run
// again (e.g. a message arrived for a process suspended on receive).
func (s *Scheduler) Reschedule(p *Process) {
	p.SetSuspended(false)
	s.runQ.Push(p)
}

// ShouldCollect reports whether p's young heap or mailbox heap has crossed
// its allocation threshold and a GC should run before p is dispatched
// again.
func (s *Scheduler) ShouldCollect(p *Process) bool {
	return p.Local.AllocationThresholdExceeded() || p.Mailbox.AllocationThresholdExceeded()
}

// Collect runs one stop-the-world cycle over p's heaps using the supplied
// root set (registers and live call-frame variables; gathering them is the
// interpreter's job, outside this package). It returns the resolved roots
// the interpreter must install back into its own state, and adjusts both
// heaps' thresholds from the cycle's survivor ratios.
func (s *Scheduler) Collect(p *Process, roots []object.Pointer) []object.Pointer {
	heaps := &collector.Heaps{
		Global:  s.global,
		Young:   p.Local.Young,
		Mature:  p.Local.Mature,
		Mailbox: p.Mailbox.Bucket,
	}

	resolved, stats := collector.Collect(heaps, roots)

	collector.UpdateThreshold(stats.YoungSurvivorRatio, p.Local.IncrementThreshold, p.Local.ResetCycleCounters)
	collector.UpdateThreshold(stats.MailboxSurvivorRatio, p.Mailbox.IncrementThreshold, p.Mailbox.ResetCycleCounters)

	ctx := context.Background()
	s.metrics.CyclesRun(ctx, 1, "young", stats.Evacuated > 0)
	s.metrics.SurvivorRatio(ctx, stats.YoungSurvivorRatio, "young")
	s.metrics.SurvivorRatio(ctx, stats.MatureSurvivorRatio, "mature")
	s.metrics.SurvivorRatio(ctx, stats.MailboxSurvivorRatio, "mailbox")

	return resolved
}

// OnProcessExit releases p's heaps and removes it from the table.
func (s *Scheduler) OnProcessExit(p *Process) {
	before := s.global.FreeBlockCount()
	p.Exit()
	s.table.Unregister(p.PID)

	ctx := context.Background()
	s.metrics.ProcessesExited(ctx, 1)
	if reclaimed := s.global.FreeBlockCount() - before; reclaimed > 0 {
		s.metrics.BlocksReclaimed(ctx, int64(reclaimed), "young")
	}
}

// Stop shuts down the worker pool.
func (s *Scheduler) Stop() {
	s.pool.Stop()
}
