package core

// CommandSnapshot is a read-only view of one command's state, for the
// operational-visibility supplement named in SPEC_FULL.md §12 (grounded on
// Pool.Instances()'s read-only snapshot pattern). It is a value type copied
// out of the live Command so callers can inspect it without racing the
// worker that owns the original.
type CommandSnapshot struct {
	Args           []string
	Status         Status
	TotalExecTime  uint64
	LoopMode       bool
	DeviceSerial   string // empty for queued commands; otherwise the device its live worker was dispatched on (also while SLEEPING, after the device was released)
}

// Stats is an aggregate count of commands by where they currently sit in
// the scheduler.
type Stats struct {
	Queued  int
	Running int
}

// ListCommands returns a snapshot of every command the engine currently
// knows about: queued commands from the Command Queue plus the command
// bound to each active worker. The order is unspecified.
func (e *Engine) ListCommands() []CommandSnapshot {
	queued := e.queue.Snapshot()
	out := make([]CommandSnapshot, 0, len(queued)+int(e.inflight.Load()))
	for _, cmd := range queued {
		out = append(out, snapshotOf(cmd, ""))
	}

	e.workersMu.Lock()
	defer e.workersMu.Unlock()
	for _, rec := range e.workers {
		out = append(out, snapshotOf(rec.worker.cmd, rec.worker.device.Serial))
	}
	return out
}

func snapshotOf(cmd *Command, deviceSerial string) CommandSnapshot {
	return CommandSnapshot{
		Args:          cmd.Args,
		Status:        cmd.Status(),
		TotalExecTime: cmd.TotalExecTime(),
		LoopMode:      cmd.LoopMode,
		DeviceSerial:  deviceSerial,
	}
}

// Stats returns aggregate queued/running counts, cheaper than ListCommands
// for callers that only need counts (e.g. a periodic status line).
func (e *Engine) Stats() Stats {
	e.workersMu.Lock()
	running := len(e.workers)
	e.workersMu.Unlock()
	return Stats{Queued: e.queue.Len(), Running: running}
}
