package core

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

// WorkerState is the worker lifecycle state machine from §3:
// IDLE -> STARTING -> RUNNING -> STOPPING -> DONE.
type WorkerState uint32

const (
	WorkerIdle WorkerState = iota
	WorkerStarting
	WorkerRunning
	WorkerStopping
	WorkerDone
)

func (s WorkerState) String() string {
	switch s {
	case WorkerIdle:
		return "IDLE"
	case WorkerStarting:
		return "STARTING"
	case WorkerRunning:
		return "RUNNING"
	case WorkerStopping:
		return "STOPPING"
	case WorkerDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// workerHost is the subset of Engine a Worker needs, kept as an interface so
// worker_test.go can exercise Worker against a fake rather than a live
// Engine.
type workerHost interface {
	// isOpen reports whether the shutdown state is still OPEN, consulted
	// right before a loop-mode requeue per the "finish after shutdown must
	// not requeue" rule in §9.
	isOpen() bool
	// requeue reinserts cmd into the Command Queue.
	requeue(cmd *Command)
	// terminate marks cmd TERMINATED without requeuing it.
	terminate(cmd *Command)
	// reschedule implements the Rescheduler seam for the Invocation Runner.
	reschedule(args []string) error
	// workerFinished is called exactly once, after the worker reaches DONE,
	// so the engine can release its inflight count and wake the scheduler
	// loop.
	workerFinished(w *Worker)
}

// Worker binds exactly one Command to exactly one DeviceHandle for the
// duration of one invocation (§4.3). It is created fresh for every
// dispatch — there is no worker reuse across invocations, matching the
// teacher's one-shot Instance-per-acquisition model adapted to a
// cooperative rather than OS-process lifecycle.
type Worker struct {
	id          uint64
	cmd         *Command
	device      *DeviceHandle
	deviceToken uint64
	token       *InterruptToken
	runner      InvocationRunner
	pool        *DevicePool
	host        workerHost
	log         *slog.Logger

	state     atomic.Uint32
	startedAt atomic.Int64 // unix nanos, set when entering RUNNING
}

// NewWorker constructs a worker in the IDLE state. id is an opaque
// diagnostic label (typically a monotonically increasing counter from the
// Engine).
func NewWorker(id uint64, cmd *Command, device *DeviceHandle, deviceToken uint64, runner InvocationRunner, pool *DevicePool, host workerHost) *Worker {
	w := &Worker{
		id:          id,
		cmd:         cmd,
		device:      device,
		deviceToken: deviceToken,
		token:       NewInterruptToken(),
		runner:      runner,
		pool:        pool,
		host:        host,
		log:         Logger().With("worker_id", id, "device", device.Serial),
	}
	w.state.Store(uint32(WorkerIdle))
	return w
}

// State returns the worker's current lifecycle state.
func (w *Worker) State() WorkerState { return WorkerState(w.state.Load()) }

// Token returns the worker's InterruptToken, shared with the Shutdown
// Coordinator and any watchdogs that may force termination.
func (w *Worker) Token() *InterruptToken { return w.token }

// RunningSince returns how long the worker has been RUNNING, or 0 if it has
// not yet reached that state. Used by the invocation-timeout watchdog.
func (w *Worker) RunningSince() time.Duration {
	ns := w.startedAt.Load()
	if ns == 0 {
		return 0
	}
	return time.Since(time.Unix(0, ns))
}

// Run executes the worker's full STARTING -> RUNNING -> STOPPING -> DONE
// lifecycle synchronously. The caller (the Engine's scheduler loop) invokes
// it in its own goroutine per dispatch.
func (w *Worker) Run(ctx context.Context) {
	w.state.Store(uint32(WorkerStarting))

	w.state.Store(uint32(WorkerRunning))
	w.startedAt.Store(time.Now().UnixNano())
	w.cmd.SetStatus(StatusRunning)

	invokeErr := w.runner.Invoke(ctx, w.device, w.cmd.Config, w.host.reschedule, w.token)

	w.state.Store(uint32(WorkerStopping))
	elapsedMs := uint64(time.Since(time.Unix(0, w.startedAt.Load())).Milliseconds())
	w.cmd.AddExecTime(elapsedMs)

	w.stop(invokeErr, elapsedMs)

	w.state.Store(uint32(WorkerDone))
	w.host.workerFinished(w)
}

// stop implements the error-handling policy of §7 and the STOPPING step of
// §4.3: release (or quarantine) the device, then either requeue a loop-mode
// command or terminate it.
func (w *Worker) stop(invokeErr error, elapsedMs uint64) {
	switch {
	case errors.Is(invokeErr, ErrDeviceNotAvailable):
		// Terminal for this worker regardless of loop_mode; the device is
		// released and marked unhealthy, never returned healthy.
		w.pool.ReleaseUnhealthy(w.device, w.deviceToken)
		w.host.terminate(w.cmd)
		return

	case invokeErr != nil:
		w.pool.Release(w.device, w.deviceToken)
		if errors.Is(invokeErr, ErrInterrupted) {
			// Cause was shutdown, invocation timeout, or battery — never
			// requeued, per §7.
			w.log.Info("invocation interrupted", "args", w.cmd.Args)
		} else {
			w.log.Warn("invocation failed", "args", w.cmd.Args, "err", invokeErr)
		}
		w.host.terminate(w.cmd)
		return

	default:
		w.pool.Release(w.device, w.deviceToken)
		w.finishSuccessfully(elapsedMs)
	}
}

// finishSuccessfully implements the normal-completion branch of §4.3 item 3:
// loop-mode commands sleep out the remainder of min_loop_time_ms and
// requeue, unless shutdown has already moved past OPEN (§9's ordering rule),
// in which case the command is terminated like any other non-loop command.
func (w *Worker) finishSuccessfully(elapsedMs uint64) {
	if !w.cmd.LoopMode || !w.host.isOpen() {
		w.host.terminate(w.cmd)
		return
	}

	remaining := int64(w.cmd.MinLoopTime) - int64(elapsedMs)
	if remaining > 0 {
		w.cmd.SetStatus(StatusSleeping)
		time.Sleep(time.Duration(remaining) * time.Millisecond)
	}
	w.host.requeue(w.cmd)
}
