package core

import (
	"errors"
	"testing"
)

// fakeAllocator is a deviceAllocator test double that always allocates
// successfully unless deny is set, recording every requirements value it
// was asked to match against.
type fakeAllocator struct {
	deny     bool
	requests []DeviceRequirements
}

func (f *fakeAllocator) TryAllocate(reqs DeviceRequirements) (*DeviceHandle, uint64, error) {
	f.requests = append(f.requests, reqs)
	if f.deny {
		return nil, 0, ErrNoDeviceFree
	}
	return &DeviceHandle{Serial: "fake"}, 1, nil
}

func TestCommandQueueAddOrdersByTotalExecTime(t *testing.T) {
	t.Parallel()

	q := NewCommandQueue()

	slow := NewCommand([]string{"slow"}, Configuration{DeviceRequirements: DeviceRequirements{}, LoopMode: false})
	slow.AddExecTime(500)
	fast := NewCommand([]string{"fast"}, Configuration{DeviceRequirements: DeviceRequirements{}, LoopMode: false})

	q.Add(slow)
	q.Add(fast)

	alloc := &fakeAllocator{}
	cmd, _, _, ok := q.PeekEligible(alloc, 2)
	if !ok {
		t.Fatal("PeekEligible returned no match")
	}
	if cmd != fast {
		t.Errorf("PeekEligible returned %v, want the fresh (zero exec time) command", cmd.Args)
	}
}

func TestCommandQueueFIFOTieBreak(t *testing.T) {
	t.Parallel()

	q := NewCommandQueue()
	a := NewCommand([]string{"a"}, Configuration{DeviceRequirements: DeviceRequirements{}, LoopMode: false})
	b := NewCommand([]string{"b"}, Configuration{DeviceRequirements: DeviceRequirements{}, LoopMode: false})
	q.Add(a)
	q.Add(b)

	alloc := &fakeAllocator{}
	first, _, _, ok := q.PeekEligible(alloc, 2)
	if !ok || first != a {
		t.Fatalf("expected a to be dispatched first, got %v (ok=%v)", first, ok)
	}
	second, _, _, ok := q.PeekEligible(alloc, 2)
	if !ok || second != b {
		t.Fatalf("expected b to be dispatched second, got %v (ok=%v)", second, ok)
	}
}

func TestCommandQueueRequeuePreservesFIFOSequence(t *testing.T) {
	t.Parallel()

	q := NewCommandQueue()
	a := NewCommand([]string{"a"}, Configuration{DeviceRequirements: DeviceRequirements{}, LoopMode: true})
	b := NewCommand([]string{"b"}, Configuration{DeviceRequirements: DeviceRequirements{}, LoopMode: true})
	q.Add(a)
	q.Add(b)

	alloc := &fakeAllocator{}
	// Dispatch both.
	dispatched1, _, _, _ := q.PeekEligible(alloc, 2)
	dispatched2, _, _, _ := q.PeekEligible(alloc, 2)
	if dispatched1 != a || dispatched2 != b {
		t.Fatalf("unexpected dispatch order: %v, %v", dispatched1, dispatched2)
	}

	// Both finish with identical new exec time and are requeued in reverse
	// order; FIFO among equal keys must still reflect original insertion
	// order (a before b), not reinsertion order.
	a.AddExecTime(100)
	b.AddExecTime(100)
	q.Requeue(b)
	q.Requeue(a)

	first, _, _, ok := q.PeekEligible(alloc, 2)
	if !ok || first != a {
		t.Fatalf("expected a to win the equal-key tie-break, got %v", first)
	}
}

func TestCommandQueuePeekEligibleSkipsIneligible(t *testing.T) {
	t.Parallel()

	q := NewCommandQueue()
	cmd := NewCommand([]string{"x"}, Configuration{DeviceRequirements: DeviceRequirements{ProductType: "phone"}, LoopMode: false})
	q.Add(cmd)

	alloc := &fakeAllocator{deny: true}
	_, _, _, ok := q.PeekEligible(alloc, 1)
	if ok {
		t.Fatal("expected no match when the allocator denies every candidate")
	}
	if q.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (command must remain queued)", q.Len())
	}
}

func TestCommandQueuePeekEligibleStopsOnUnexpectedError(t *testing.T) {
	t.Parallel()

	q := NewCommandQueue()
	cmd := NewCommand([]string{"x"}, Configuration{DeviceRequirements: DeviceRequirements{}, LoopMode: false})
	q.Add(cmd)

	errBoom := errors.New("boom")
	alloc := allocatorFunc(func(DeviceRequirements) (*DeviceHandle, uint64, error) {
		return nil, 0, errBoom
	})
	_, _, _, ok := q.PeekEligible(alloc, 1)
	if ok {
		t.Fatal("expected no match on unexpected allocator error")
	}
	if q.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (command must be restored to the queue)", q.Len())
	}
}

type allocatorFunc func(DeviceRequirements) (*DeviceHandle, uint64, error)

func (f allocatorFunc) TryAllocate(reqs DeviceRequirements) (*DeviceHandle, uint64, error) {
	return f(reqs)
}

func TestCommandQueueRemoveAll(t *testing.T) {
	t.Parallel()

	q := NewCommandQueue()
	a := NewCommand([]string{"a"}, Configuration{DeviceRequirements: DeviceRequirements{}, LoopMode: false})
	b := NewCommand([]string{"b"}, Configuration{DeviceRequirements: DeviceRequirements{}, LoopMode: false})
	q.Add(a)
	q.Add(b)

	drained := q.RemoveAll()
	if len(drained) != 2 {
		t.Fatalf("RemoveAll returned %d commands, want 2", len(drained))
	}
	if q.Len() != 0 {
		t.Fatalf("Len() after RemoveAll = %d, want 0", q.Len())
	}
	for _, c := range drained {
		if c.Status() != StatusTerminated {
			t.Errorf("drained command status = %v, want TERMINATED", c.Status())
		}
	}
}

func TestCommandQueueRemoveByIdentity(t *testing.T) {
	t.Parallel()

	q := NewCommandQueue()
	a := NewCommand([]string{"a"}, Configuration{DeviceRequirements: DeviceRequirements{}, LoopMode: false})
	q.Add(a)

	if !q.Remove(a) {
		t.Fatal("Remove of a present command returned false")
	}
	if q.Remove(a) {
		t.Fatal("Remove of an already-removed command returned true")
	}
}
