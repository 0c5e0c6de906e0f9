package core

import (
	"container/heap"
	"errors"
	"sync"
)

// queueEntry is the heap element: a command plus the sort key it was
// (re)inserted with and its FIFO insertion sequence number.
type queueEntry struct {
	cmd     *Command
	sortKey uint64
	seq     uint64
	index   int // maintained by heap.Interface for O(log n) Remove
}

// commandHeap implements container/heap.Interface, ordered by (sortKey, seq)
// so that equal keys are returned in insertion order (FIFO tie-break).
type commandHeap []*queueEntry

func (h commandHeap) Len() int { return len(h) }

func (h commandHeap) Less(i, j int) bool {
	if h[i].sortKey != h[j].sortKey {
		return h[i].sortKey < h[j].sortKey
	}
	return h[i].seq < h[j].seq
}

func (h commandHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *commandHeap) Push(x any) {
	e := x.(*queueEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *commandHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// CommandQueue is the min-heap priority structure over pending commands
// described in §4.1: keyed by accumulated runtime, FIFO tie-broken, with a
// bounded eligible-command scan that never holds its mutex across device
// allocation I/O.
type CommandQueue struct {
	mu      sync.Mutex
	h       commandHeap
	byCmd   map[*Command]*queueEntry
	nextSeq uint64
}

// NewCommandQueue constructs an empty queue.
func NewCommandQueue() *CommandQueue {
	return &CommandQueue{byCmd: make(map[*Command]*queueEntry)}
}

// Add inserts cmd with sort_key = cmd.TotalExecTime() at the moment of the
// call. A fresh command (TotalExecTime == 0) therefore sorts ahead of any
// command that has already accumulated runtime — the bootstrapping bias.
// The command's FIFO sequence number is assigned here, once, and reused by
// every subsequent Requeue.
func (q *CommandQueue) Add(cmd *Command) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !cmd.hasSeq {
		cmd.seq = q.nextSeq
		q.nextSeq++
		cmd.hasSeq = true
	}
	cmd.SetStatus(StatusQueued)
	e := &queueEntry{cmd: cmd, sortKey: cmd.TotalExecTime(), seq: cmd.seq}
	heap.Push(&q.h, e)
	q.byCmd[cmd] = e
}

// Requeue resamples cmd's sort key from its current TotalExecTime and
// reinserts it under its original FIFO sequence number, so that two commands
// requeued with the same fresh key keep the relative order they were first
// added in (property 5 in spec §8).
func (q *CommandQueue) Requeue(cmd *Command) {
	q.Add(cmd)
}

// Remove deletes cmd from the queue by identity. Returns false if cmd was
// not present.
func (q *CommandQueue) Remove(cmd *Command) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.byCmd[cmd]
	if !ok {
		return false
	}
	heap.Remove(&q.h, e.index)
	delete(q.byCmd, cmd)
	return true
}

// RemoveAll drains the queue and returns every command that was in it.
// Running workers are untouched — this only affects queued commands.
func (q *CommandQueue) RemoveAll() []*Command {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*Command, 0, len(q.h))
	for _, e := range q.h {
		out = append(out, e.cmd)
		e.cmd.SetStatus(StatusTerminated)
	}
	q.h = nil
	q.byCmd = make(map[*Command]*queueEntry)
	return out
}

// Len returns the number of queued commands.
func (q *CommandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.h)
}

// Snapshot returns every command currently queued, in no particular order.
// It is a read-only operational-visibility helper (SPEC_FULL.md §12's
// ListCommands/Stats supplement) — it never removes or reorders entries.
func (q *CommandQueue) Snapshot() []*Command {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*Command, 0, len(q.h))
	for _, e := range q.h {
		out = append(out, e.cmd)
	}
	return out
}

// deviceAllocator is the subset of DevicePool that PeekEligible needs. It is
// a local interface (rather than a concrete *DevicePool parameter) so queue
// tests can exercise PeekEligible against a fake.
type deviceAllocator interface {
	TryAllocate(reqs DeviceRequirements) (*DeviceHandle, uint64, error)
}

// PeekEligible scans at most k entries in increasing sort-key order — k
// should be >= the device pool size, per §4.1 — looking for the first
// command whose DeviceRequirements are satisfied by some currently-free
// device. On a match it removes the command from the queue, marks it
// RUNNING, and returns the command, its allocated device, and the device's
// release token. It never blocks: if no free device matches within the scan
// window, it returns ok == false having changed nothing.
//
// The queue mutex is held only while popping and re-pushing heap entries;
// TryAllocate itself is always called outside the mutex so the allocator's
// own bookkeeping never blocks other queue operations, and no lock is ever
// held across it.
func (q *CommandQueue) PeekEligible(pool deviceAllocator, k int) (cmd *Command, device *DeviceHandle, token uint64, ok bool) {
	popped := make([]*queueEntry, 0, k)

	defer func() {
		q.mu.Lock()
		for _, e := range popped {
			heap.Push(&q.h, e)
			q.byCmd[e.cmd] = e
		}
		q.mu.Unlock()
	}()

	for i := 0; i < k; i++ {
		q.mu.Lock()
		if q.h.Len() == 0 {
			q.mu.Unlock()
			break
		}
		e := heap.Pop(&q.h).(*queueEntry)
		delete(q.byCmd, e.cmd)
		q.mu.Unlock()

		dev, tok, err := pool.TryAllocate(e.cmd.DeviceRequirements)
		if err == nil {
			e.cmd.SetStatus(StatusRunning)
			return e.cmd, dev, tok, true
		}
		if !errors.Is(err, ErrNoDeviceFree) {
			// An unexpected allocator error: put the entry back and stop
			// scanning rather than silently discarding the command.
			popped = append(popped, e)
			break
		}
		popped = append(popped, e)
	}

	return nil, nil, 0, false
}
