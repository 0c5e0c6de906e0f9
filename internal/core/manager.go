package core

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// escalationConcurrency bounds how many workers escalateAll tears down at
// once, matching the teacher's gvrCleanupConcurrency/errgroup.SetLimit(10)
// pattern for a fan-out over a variable-size, possibly large set.
const escalationConcurrency = 10

// shutdownState is the Shutdown Coordinator's state machine (§4.6):
// OPEN -> CLOSING -> CLOSED.
type shutdownState uint32

const (
	shutdownOpen shutdownState = iota
	shutdownClosing
	shutdownClosed
)

// workerRecord tracks one in-flight worker alongside the cancel function for
// its private context — the only lever the Engine has for the final,
// non-cooperative escalation step described in SPEC_FULL.md's grounding of
// §9's "platform thread interrupt or equivalent": canceling a worker's
// context forces its suspension-point helpers to return Interrupted
// regardless of the InterruptToken's allowed flag.
type workerRecord struct {
	worker *Worker
	cancel context.CancelFunc

	// timeoutGraceDeadline is set by the invocation-timeout watchdog the
	// first time it observes this worker over its InvocationTimeout; 0
	// means the grace window has not been armed yet.
	timeoutGraceDeadline atomic.Int64
}

// Engine is the Scheduler Loop (§4.5) and Shutdown Coordinator (§4.6)
// combined — in the teacher's own architecture these two responsibilities
// live in one Manager, since both need the same atomic lifecycle state and
// inflight bookkeeping.
type Engine struct {
	cfg           SchedulerConfig
	queue         *CommandQueue
	pool          *DevicePool
	configFactory ConfigFactory
	runner        InvocationRunner

	started atomic.Bool
	state   atomic.Uint32 // shutdownState

	workersMu sync.Mutex
	workers   map[uint64]*workerRecord
	nextID    atomic.Uint64

	inflight     atomic.Int64
	closedCh     chan struct{}
	closedOnce   sync.Once
	wake         chan struct{}
	loopExitedCh chan struct{}

	hard          atomic.Bool
	graceDeadline atomic.Int64 // unix nanos; 0 means not armed

	baseCtx    context.Context
	cancelBase context.CancelFunc

	log *slog.Logger
}

// NewEngine validates cfg and constructs an Engine bound to dm, cf, and
// runner. It does not start the scheduler loop — call Start for that.
func NewEngine(cfg SchedulerConfig, dm DeviceManager, cf ConfigFactory, runner InvocationRunner) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cf == nil {
		panic("cmdsched: NewEngine config factory must not be nil")
	}
	if runner == nil {
		panic("cmdsched: NewEngine invocation runner must not be nil")
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:           cfg,
		queue:         NewCommandQueue(),
		pool:          NewDevicePool(dm),
		configFactory: cf,
		runner:        runner,
		workers:       make(map[uint64]*workerRecord),
		closedCh:      make(chan struct{}),
		wake:          make(chan struct{}, 1),
		loopExitedCh:  make(chan struct{}),
		baseCtx:       baseCtx,
		cancelBase:    cancel,
		log:           Logger(),
	}
	e.state.Store(uint32(shutdownOpen))
	return e, nil
}

// Start launches the scheduler loop activity. Calling Start twice returns
// ErrAlreadyStarted.
func (e *Engine) Start() error {
	if !e.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	go e.loop()
	go e.batteryWatchdog()
	go e.invocationWatchdog()
	return nil
}

// AddCommand implements add_command (§6.1): fails with ErrShuttingDown once
// the coordinator has left OPEN, or with whatever error the Configuration
// Factory raises while rejecting argv.
func (e *Engine) AddCommand(args []string) error {
	if shutdownState(e.state.Load()) != shutdownOpen {
		return ErrShuttingDown
	}

	cfg, err := e.configFactory.CreateConfiguration(args)
	if err != nil {
		return err
	}

	// Re-check after the (potentially slow) factory call: shutdown()
	// observed before add_command must cause the add to fail, and a
	// shutdown that raced in during CreateConfiguration must not slip a
	// command past it either.
	if shutdownState(e.state.Load()) != shutdownOpen {
		return ErrShuttingDown
	}

	cmd := NewCommand(args, cfg)
	e.queue.Add(cmd)
	e.notify()
	return nil
}

// RemoveAllCommands implements remove_all_commands (§6.1): drains the queue
// without touching any running worker.
func (e *Engine) RemoveAllCommands() {
	e.queue.RemoveAll()
}

// Shutdown implements shutdown (§6.1): idempotent transition to CLOSING.
func (e *Engine) Shutdown() {
	e.state.CompareAndSwap(uint32(shutdownOpen), uint32(shutdownClosing))
	e.notify()
}

// ShutdownHard implements shutdown_hard (§6.1): Shutdown plus forced=true on
// every active worker and an armed grace window, after which still-live
// workers are escalated (their context is canceled).
func (e *Engine) ShutdownHard() {
	e.Shutdown()
	if !e.hard.CompareAndSwap(false, true) {
		return // idempotent: grace window already armed
	}

	e.workersMu.Lock()
	for _, rec := range e.workers {
		rec.worker.Token().SetForced()
	}
	e.workersMu.Unlock()

	e.graceDeadline.Store(time.Now().Add(e.cfg.ShutdownTimeout).UnixNano())
	time.AfterFunc(e.cfg.ShutdownTimeout, e.escalateAll)
}

// escalateAll cancels the context of every worker still active once the
// hard-shutdown grace window has expired, forcing their suspension-point
// helpers to return Interrupted regardless of the allowed flag. This is
// logged as a scheduler-level warning per the error-handling policy in §7.
//
// Teardown fans out through an errgroup (bounded at escalationConcurrency)
// rather than a plain loop: rec.cancel() itself is cheap, but a real
// invocation's suspension-point helper may still need to observe the
// cancellation and unwind before workerFinished fires, so logging and
// canceling concurrently keeps one stuck worker from delaying the warning
// for the rest.
func (e *Engine) escalateAll() {
	e.workersMu.Lock()
	records := make([]*workerRecord, 0, len(e.workers))
	ids := make([]uint64, 0, len(e.workers))
	for id, rec := range e.workers {
		records = append(records, rec)
		ids = append(ids, id)
	}
	e.workersMu.Unlock()

	var g errgroup.Group
	g.SetLimit(escalationConcurrency)
	for i, rec := range records {
		id, rec := ids[i], rec
		g.Go(func() error {
			e.log.Warn("forced termination after shutdown grace window expired", "worker_id", id)
			rec.cancel()
			return nil
		})
	}
	_ = g.Wait()
}

// isOpen implements workerHost.
func (e *Engine) isOpen() bool {
	return shutdownState(e.state.Load()) == shutdownOpen
}

// requeue implements workerHost.
func (e *Engine) requeue(cmd *Command) {
	e.queue.Requeue(cmd)
	e.notify()
}

// terminate implements workerHost.
func (e *Engine) terminate(cmd *Command) {
	cmd.SetStatus(StatusTerminated)
}

// reschedule implements workerHost / the Rescheduler seam: it queues a
// derived command the same way add_command does, including the
// shutdown-state check.
func (e *Engine) reschedule(args []string) error {
	return e.AddCommand(args)
}

// workerFinished implements workerHost: releases the inflight slot and wakes
// the scheduler loop so it can both dispatch replacement work and re-check
// the CLOSED condition.
func (e *Engine) workerFinished(w *Worker) {
	e.workersMu.Lock()
	delete(e.workers, w.id)
	e.workersMu.Unlock()

	if e.inflight.Add(-1) == 0 {
		e.maybeClose()
	}
	e.notify()
}

// maybeClose transitions CLOSING -> CLOSED once no worker is active, per
// §4.6, and unblocks every Join waiter exactly once.
func (e *Engine) maybeClose() {
	if shutdownState(e.state.Load()) != shutdownClosing {
		return
	}
	if e.inflight.Load() != 0 {
		return
	}
	if e.state.CompareAndSwap(uint32(shutdownClosing), uint32(shutdownClosed)) {
		e.pool.Close()
		e.cancelBase()
		e.closedOnce.Do(func() { close(e.closedCh) })
	}
}

// Join implements join(timeout_ms) (§6.1): blocks until CLOSED or timeout
// elapses, returning true only in the former case. A zero or negative
// timeout is treated as "wait forever", matching join(∞) in property 3.
func (e *Engine) Join(timeout time.Duration) bool {
	if timeout <= 0 {
		<-e.closedCh
		return true
	}
	select {
	case <-e.closedCh:
		return true
	case <-time.After(timeout):
		return false
	}
}

// notify wakes the scheduler loop without blocking if it is already awake.
func (e *Engine) notify() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// loop is the Scheduler Loop (§4.5): a single coordinator activity.
func (e *Engine) loop() {
	defer close(e.loopExitedCh)

	deviceStateCh := e.pool.SubscribeState()
	ticker := time.NewTicker(e.cfg.LoopPollInterval)
	defer ticker.Stop()

	for {
		closing := shutdownState(e.state.Load()) != shutdownOpen
		if closing && e.inflight.Load() == 0 {
			e.maybeClose()
			return
		}

		if !closing {
			e.dispatchAll()
		}

		select {
		case <-e.wake:
		case <-deviceStateCh:
		case <-ticker.C:
		case <-e.baseCtx.Done():
			return
		}
	}
}

// dispatchAll marks every currently eligible head-of-queue command RUNNING,
// allocates its device, and spawns a worker, until peek_eligible finds no
// further match — implementing §4.5 item 3.
func (e *Engine) dispatchAll() {
	for {
		cmd, device, token, ok := e.queue.PeekEligible(e.pool, e.cfg.EligibleScanWindow)
		if !ok {
			return
		}
		e.spawnWorker(cmd, device, token)
	}
}

func (e *Engine) spawnWorker(cmd *Command, device *DeviceHandle, token uint64) {
	id := e.nextID.Add(1)
	w := NewWorker(id, cmd, device, token, e.runner, e.pool, e)

	ctx, cancel := context.WithCancel(e.baseCtx)
	e.workersMu.Lock()
	e.workers[id] = &workerRecord{worker: w, cancel: cancel}
	e.workersMu.Unlock()

	e.inflight.Add(1)
	go w.Run(ctx)
}

