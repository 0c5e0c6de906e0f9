package core

import (
	"context"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

// watchdogTick is the invocation-timeout watchdog's scan cadence. It is
// intentionally finer than LoopPollInterval's 250ms ceiling since
// invocation_timeout_ms budgets can be much shorter than a typical loop
// period (scenario S7 uses 500ms).
const watchdogTick = 25 * time.Millisecond

// invocationWatchdog implements the invocation-timeout half of the
// Interruption Controller (§4.4 item 4): once a worker's RunningSince
// exceeds its command's InvocationTimeout, it sets forced=true; if the
// worker has not stopped by the end of a secondary grace window, its
// context is canceled, forcing any suspension-point helper to return
// regardless of the allowed flag.
//
// The scan-forever-until-cancel shape is exactly waitForSystemNamespaces'
// readiness-poll loop turned into a perpetual scan: the condition function
// never reports done, so wait.PollUntilContextCancel only returns once
// e.baseCtx is canceled by the engine's own shutdown.
func (e *Engine) invocationWatchdog() {
	_ = wait.PollUntilContextCancel(e.baseCtx, watchdogTick, false, func(context.Context) (bool, error) {
		e.scanInvocationTimeouts()
		return false, nil
	})
}

func (e *Engine) scanInvocationTimeouts() {
	e.workersMu.Lock()
	defer e.workersMu.Unlock()

	now := time.Now()
	for id, rec := range e.workers {
		w := rec.worker
		timeout := w.cmd.InvocationTimeout
		if timeout == 0 {
			continue
		}
		if w.RunningSince() < time.Duration(timeout)*time.Millisecond {
			continue
		}

		w.Token().SetForced()

		deadline := rec.timeoutGraceDeadline.Load()
		if deadline == 0 {
			rec.timeoutGraceDeadline.Store(now.Add(e.cfg.InvocationWatchdogGrace).UnixNano())
			continue
		}
		if now.UnixNano() >= deadline {
			e.log.Warn("forced termination after invocation timeout grace expired", "worker_id", id, "args", w.cmd.Args)
			rec.cancel()
		}
	}
}

// batteryWatchdog implements the battery half of the Interruption Controller
// (§4.4 item 1): a device whose reported battery level drops below the
// command's cutoff_battery sets forced=true on that worker's token. Unlike
// the invocation-timeout and hard-shutdown watchdogs, a low battery never
// escalates to context cancellation — a non-interruptible invocation is
// allowed to run to completion, per scenario S2.
func (e *Engine) batteryWatchdog() {
	_ = wait.PollUntilContextCancel(e.baseCtx, e.cfg.BatteryPollInterval, false, func(context.Context) (bool, error) {
		e.scanBatteryLevels()
		return false, nil
	})
}

func (e *Engine) scanBatteryLevels() {
	e.workersMu.Lock()
	defer e.workersMu.Unlock()

	for _, rec := range e.workers {
		w := rec.worker
		opts := w.cmd.DeviceOptions
		if !opts.HasCutoffBattery {
			continue
		}
		lvl := w.device.BatteryLevel
		if lvl == nil {
			continue
		}
		if *lvl < opts.CutoffBattery {
			w.Token().SetForced()
		}
	}
}
