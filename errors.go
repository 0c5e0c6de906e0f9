package cmdsched

import "github.com/opentestharness/cmdsched/internal/core"

// Sentinel errors for error inspection with errors.Is.
//
// These re-export internal/sentinel.Error constants declared in
// internal/core/errors.go, matching the teacher's errors.go re-export of
// core.Err* under the public package.
const (
	// ErrShuttingDown is returned by AddCommand once the scheduler has
	// entered CLOSING or CLOSED.
	ErrShuttingDown = core.ErrShuttingDown

	// ErrNotStarted reports that Start has not been called. No Scheduler
	// operation returns it: AddCommand queues commands before Start as well.
	ErrNotStarted = core.ErrNotStarted

	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = core.ErrAlreadyStarted

	// ErrInterrupted is raised by a suspension-point helper when the
	// owning worker's InterruptToken is (forced && allowed) at the time of
	// the call.
	ErrInterrupted = core.ErrInterrupted

	// ErrDeviceNotAvailable is raised by an InvocationRunner to signal that
	// the device it was handed has become unusable. Terminal for the
	// worker: the command is not requeued and the device is released and
	// marked unhealthy.
	ErrDeviceNotAvailable = core.ErrDeviceNotAvailable

	// ErrNoDeviceFree is returned by a DeviceManager's Allocate when no
	// free device currently satisfies the requested predicates.
	ErrNoDeviceFree = core.ErrNoDeviceFree

	// ErrPoolClosed is returned by device-pool operations once the
	// scheduler has closed.
	ErrPoolClosed = core.ErrPoolClosed
)
