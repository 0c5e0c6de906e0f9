package cmdsched

import (
	"fmt"
	"time"
)

// requirePositive panics if v <= 0 with a descriptive message.
func requirePositive[T int | time.Duration](name string, v T) {
	if v <= 0 {
		panic(fmt.Sprintf("cmdsched: %s must be greater than 0, got %v", name, v))
	}
}

// SchedulerOption configures a Scheduler during construction via
// NewScheduler. Each With* function returns a SchedulerOption that sets a
// specific field.
//
// Several With* functions panic on invalid input (non-positive durations,
// non-positive window sizes). These panics are intentional: option values
// are typically compile-time constants, so an invalid value indicates a
// programmer error rather than a runtime condition — the same [regexp.MustCompile]-style
// fail-fast the teacher repo's ManagerOption constructors use.
type SchedulerOption func(*schedulerConfig)

// WithEligibleScanWindow sets K, the number of queue entries peek_eligible
// scans before giving up (spec.md §4.1). Should be >= the expected number of
// concurrently free devices.
//
// Default: DefaultEligibleScanWindow.
//
// Panics if k <= 0.
func WithEligibleScanWindow(k int) SchedulerOption {
	requirePositive("eligible scan window", k)
	return func(c *schedulerConfig) {
		c.EligibleScanWindow = k
	}
}

// WithLoopPollInterval sets the Scheduler Loop's bounded wait step.
//
// Default: DefaultLoopPollInterval.
//
// Panics if d <= 0 or d > 250ms (spec.md §4.5 item 1's ceiling).
func WithLoopPollInterval(d time.Duration) SchedulerOption {
	requirePositive("loop poll interval", d)
	if d > 250*time.Millisecond {
		panic(fmt.Sprintf("cmdsched: loop poll interval must not exceed 250ms, got %s", d))
	}
	return func(c *schedulerConfig) {
		c.LoopPollInterval = d
	}
}

// WithShutdownTimeout sets the default shutdown_timeout_ms: the grace
// window after ShutdownHard before still-live workers are escalated to
// forced termination.
//
// Default: DefaultShutdownTimeout.
//
// Panics if d <= 0.
func WithShutdownTimeout(d time.Duration) SchedulerOption {
	requirePositive("shutdown timeout", d)
	return func(c *schedulerConfig) {
		c.ShutdownTimeout = d
	}
}

// WithInvocationWatchdogGrace sets the secondary grace period the
// invocation-timeout watchdog waits for cooperative abort before escalating
// (spec.md §4.4 item 4: "implementation-chosen, ≤ a few seconds").
//
// Default: DefaultInvocationWatchdogGrace.
//
// Panics if d <= 0.
func WithInvocationWatchdogGrace(d time.Duration) SchedulerOption {
	requirePositive("invocation watchdog grace", d)
	return func(c *schedulerConfig) {
		c.InvocationWatchdogGrace = d
	}
}

// WithBatteryPollInterval sets how often the battery watchdog re-checks
// each running worker's device against its cutoff_battery requirement.
//
// Default: DefaultBatteryPollInterval.
//
// Panics if d <= 0.
func WithBatteryPollInterval(d time.Duration) SchedulerOption {
	requirePositive("battery poll interval", d)
	return func(c *schedulerConfig) {
		c.BatteryPollInterval = d
	}
}
