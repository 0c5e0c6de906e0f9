package core

import (
	"errors"
	"fmt"
	"time"
)

// SchedulerConfig holds configuration for an Engine. All fields are
// immutable after construction via NewEngine.
type SchedulerConfig struct {
	// EligibleScanWindow is K in peek_eligible's "scan at most the first K
	// keys" rule (§4.1). Should be >= the expected number of concurrently
	// free devices.
	EligibleScanWindow int

	// LoopPollInterval bounds the Scheduler Loop's wait step (§4.5 item 1)
	// when no other wake condition fires. Must be <= 250ms.
	LoopPollInterval time.Duration

	// ShutdownTimeout is shutdown_timeout_ms (§6.3): the grace window after
	// shutdown_hard() before still-live workers are escalated to forced
	// termination.
	ShutdownTimeout time.Duration

	// InvocationWatchdogGrace is the secondary grace period the invocation-
	// timeout watchdog waits for cooperative abort before escalating,
	// per §4.4 item 4 ("a small secondary grace, implementation-chosen, <= a
	// few seconds").
	InvocationWatchdogGrace time.Duration

	// BatteryPollInterval is how often the battery watchdog re-checks each
	// running worker's device against its cutoff_battery requirement.
	BatteryPollInterval time.Duration
}

// Validate checks all SchedulerConfig invariants and returns an error
// describing every violation found, using errors.Join to report multiple
// issues in a single pass.
func (c SchedulerConfig) Validate() error {
	var errs []error

	if c.EligibleScanWindow <= 0 {
		errs = append(errs, fmt.Errorf("eligible scan window must be greater than 0, got %d", c.EligibleScanWindow))
	}
	if c.LoopPollInterval <= 0 {
		errs = append(errs, fmt.Errorf("loop poll interval must be greater than 0, got %s", c.LoopPollInterval))
	}
	if c.LoopPollInterval > 250*time.Millisecond {
		errs = append(errs, fmt.Errorf("loop poll interval must not exceed 250ms, got %s", c.LoopPollInterval))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("shutdown timeout must be greater than 0, got %s", c.ShutdownTimeout))
	}
	if c.InvocationWatchdogGrace <= 0 {
		errs = append(errs, fmt.Errorf("invocation watchdog grace must be greater than 0, got %s", c.InvocationWatchdogGrace))
	}
	if c.BatteryPollInterval <= 0 {
		errs = append(errs, fmt.Errorf("battery poll interval must be greater than 0, got %s", c.BatteryPollInterval))
	}

	return errors.Join(errs...)
}
