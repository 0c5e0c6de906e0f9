package cmdsched

import "github.com/opentestharness/cmdsched/internal/core"

// DeviceHandle is an opaque reference to an allocated device, carrying the
// capability attributes DeviceRequirements matches against.
type DeviceHandle = core.DeviceHandle

// DeviceRequirements is the capability predicate a command's device must
// satisfy (spec.md §3): serial allowlist, product type, state, emulator/
// physical, and minimum battery.
type DeviceRequirements = core.DeviceRequirements

// DeviceOptions carries device-side policy that is not a matching
// predicate: the battery level below which the Interruption Controller
// requests cooperative termination of the worker holding the device.
type DeviceOptions = core.DeviceOptions

// Configuration is what a ConfigFactory produces from a command's argv.
type Configuration = core.Configuration

// InterruptToken is the cooperative interruption flag pair described in
// spec.md §4.4. It is a type alias (not a named type) so its Allowed,
// Forced, SetInterruptible, and CheckSuspension methods are part of the
// public API automatically — new InvocationRunner implementations consult
// it the same way internal/invocation's reference helpers do.
type InterruptToken = core.InterruptToken

// RescheduleFunc lets an InvocationRunner enqueue a derived command (the
// Rescheduler seam in spec.md §6.2/GLOSSARY).
type RescheduleFunc = core.RescheduleFunc

// Status is the lifecycle state of a Command: QUEUED, RUNNING, SLEEPING, or
// TERMINATED.
type Status = core.Status

// Status values, re-exported so callers inspecting CommandSnapshot.Status
// never need to import internal/core.
const (
	StatusQueued     = core.StatusQueued
	StatusRunning    = core.StatusRunning
	StatusSleeping   = core.StatusSleeping
	StatusTerminated = core.StatusTerminated
)

// CommandSnapshot is a read-only view of one command's state, returned by
// ListCommands. See SPEC_FULL.md §12.
type CommandSnapshot = core.CommandSnapshot

// Stats is an aggregate queued/running command count, returned by Stats.
type Stats = core.Stats
