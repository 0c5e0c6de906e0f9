package core

import (
	"sync/atomic"
)

// Status is the lifecycle state of a Command.
type Status uint32

const (
	StatusQueued Status = iota
	StatusRunning
	StatusSleeping
	StatusTerminated
)

// String implements fmt.Stringer for log output.
func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "QUEUED"
	case StatusRunning:
		return "RUNNING"
	case StatusSleeping:
		return "SLEEPING"
	case StatusTerminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// DeviceRequirements is the capability predicate a command's device must
// satisfy. A zero-value field is treated as "don't care" except
// MinBattery, which is only applied when HasMinBattery is true (since 0 is a
// meaningful minimum).
type DeviceRequirements struct {
	// SerialAllowlist, if non-empty, restricts matching to one of these
	// serials.
	SerialAllowlist []string
	// ProductType, if non-empty, must equal the device's product type.
	ProductType string
	// State, if non-empty, must equal the device's reported state.
	State string
	// EmulatorOnly/PhysicalOnly narrow to emulators or physical devices.
	// Both false means either is acceptable.
	EmulatorOnly  bool
	PhysicalOnly  bool
	MinBattery    int
	HasMinBattery bool
}

// Matches reports whether d satisfies every predicate in r. The minimum
// battery predicate is checked here too, against the BatteryLevel d carries
// at the moment Matches is called (i.e. when the Device Manager evaluates an
// Allocate), so it reflects the level at allocation time only.
func (r DeviceRequirements) Matches(d *DeviceHandle) bool {
	if len(r.SerialAllowlist) > 0 {
		found := false
		for _, s := range r.SerialAllowlist {
			if s == d.Serial {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if r.ProductType != "" && r.ProductType != d.ProductType {
		return false
	}
	if r.State != "" && r.State != d.State {
		return false
	}
	if r.EmulatorOnly && !d.IsEmulator {
		return false
	}
	if r.PhysicalOnly && d.IsEmulator {
		return false
	}
	if r.HasMinBattery {
		if d.BatteryLevel == nil || *d.BatteryLevel < r.MinBattery {
			return false
		}
	}
	return true
}

// DeviceOptions carries device-side policy that is not a matching predicate,
// recognized from Configuration (§6.3 of the configuration key set):
// the battery level below which the Interruption Controller requests
// cooperative termination of the worker holding the device.
type DeviceOptions struct {
	CutoffBattery    int
	HasCutoffBattery bool
}

// Command is a queued, re-runnable unit of work. All fields set at
// construction (Args, LoopMode, MinLoopTime, InvocationTimeout,
// DeviceRequirements, DeviceOptions, Config) are immutable afterwards.
// TotalExecTime and Status are mutated only by the worker that currently
// owns the command (or, before any worker has claimed it, by the engine
// performing dispatch bookkeeping), so they are held in atomics rather than
// guarded by the queue's mutex: the queue only ever reads TotalExecTime when
// the command is not enqueued (just removed at dispatch, or about to be
// reinserted by Requeue).
type Command struct {
	Args               []string
	LoopMode           bool
	MinLoopTime        uint64 // milliseconds
	InvocationTimeout  uint64 // milliseconds, 0 = none
	DeviceRequirements DeviceRequirements
	DeviceOptions      DeviceOptions
	Config             Configuration // produced by the Configuration Factory at add_command time

	totalExecTimeMs atomic.Uint64
	status          atomic.Uint32

	// seq is the insertion sequence number used by CommandQueue for FIFO
	// tie-breaking among equal sort keys. It is assigned once, at the first
	// Add, and never changes even across Requeue. Both fields are accessed
	// only by CommandQueue under its own mutex.
	seq    uint64
	hasSeq bool
}

// NewCommand constructs a Command in QUEUED status with zero accumulated
// runtime — new commands are preferred over long-running ones by the queue's
// bootstrapping bias. LoopMode, MinLoopTime, InvocationTimeout,
// DeviceRequirements and DeviceOptions are all taken from cfg, the
// Configuration the factory produced from this command's argv.
func NewCommand(args []string, cfg Configuration) *Command {
	c := &Command{
		Args:               args,
		LoopMode:           cfg.LoopMode,
		MinLoopTime:        cfg.MinLoopTimeMs,
		InvocationTimeout:  cfg.InvocationTimeoutMs,
		DeviceRequirements: cfg.DeviceRequirements,
		DeviceOptions:      cfg.DeviceOptions,
		Config:             cfg,
	}
	c.status.Store(uint32(StatusQueued))
	return c
}

// TotalExecTime returns the current accumulated runtime in milliseconds.
func (c *Command) TotalExecTime() uint64 {
	return c.totalExecTimeMs.Load()
}

// AddExecTime adds elapsed milliseconds to the accumulated runtime. Must be
// called only by the worker that owns the command.
func (c *Command) AddExecTime(elapsedMs uint64) {
	c.totalExecTimeMs.Add(elapsedMs)
}

// Status returns the current status.
func (c *Command) Status() Status {
	return Status(c.status.Load())
}

// SetStatus updates the status.
func (c *Command) SetStatus(s Status) {
	c.status.Store(uint32(s))
}
