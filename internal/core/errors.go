package core

import "github.com/opentestharness/cmdsched/internal/sentinel"

// Sentinel errors returned by the scheduler engine and its collaborators.
const (
	// ErrShuttingDown is returned by AddCommand once the engine has entered
	// CLOSING or CLOSED.
	ErrShuttingDown = sentinel.Error("cmdsched: scheduler is shutting down")

	// ErrNotStarted reports that Start has not been called. No Engine
	// operation returns it: AddCommand queues commands before Start as well.
	ErrNotStarted = sentinel.Error("cmdsched: scheduler has not been started")

	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = sentinel.Error("cmdsched: scheduler already started")

	// ErrInterrupted is raised by a suspension-point helper when the owning
	// worker's InterruptToken is (forced && allowed) at the time of the call.
	ErrInterrupted = sentinel.Error("cmdsched: invocation interrupted")

	// ErrDeviceNotAvailable is raised by an Invocation Runner to signal that
	// the device it was handed has become unusable. It is terminal for the
	// worker: the command is not requeued and the device is released and
	// marked unhealthy.
	ErrDeviceNotAvailable = sentinel.Error("cmdsched: device not available")

	// ErrNoDeviceFree is returned by DeviceManager.Allocate (and passed
	// through by DevicePool.TryAllocate) when no free device currently
	// satisfies the requested predicates. Callers (the scheduler
	// loop's peek_eligible) treat this as "no match", not a failure.
	ErrNoDeviceFree = sentinel.Error("cmdsched: no free device matches requirements")

	// ErrPoolClosed is returned by DevicePool operations once the pool has
	// been closed by Engine shutdown.
	ErrPoolClosed = sentinel.Error("cmdsched: device pool is closed")
)
