package cmdsched

import "time"

// Default configuration values for NewScheduler. Exported so callers can
// reference the defaults when building custom configurations relative to
// them (e.g. 2 * DefaultShutdownTimeout).
const (
	// DefaultEligibleScanWindow is K in peek_eligible's "scan at most the
	// first K keys" rule (spec.md §4.1). 16 comfortably covers typical
	// device-pool sizes; enlarge it if the pool is bigger.
	DefaultEligibleScanWindow = 16

	// DefaultLoopPollInterval bounds the Scheduler Loop's wait step when no
	// other wake condition fires (spec.md §4.5 item 1's "≤ 250 ms" ceiling).
	DefaultLoopPollInterval = 200 * time.Millisecond

	// DefaultShutdownTimeout is shutdown_timeout_ms's default (spec.md
	// §6.3): the grace window after ShutdownHard before still-live workers
	// are escalated to forced termination.
	DefaultShutdownTimeout = 30 * time.Second

	// DefaultInvocationWatchdogGrace is the secondary grace period the
	// invocation-timeout watchdog waits for cooperative abort before
	// escalating (spec.md §4.4 item 4).
	DefaultInvocationWatchdogGrace = 2 * time.Second

	// DefaultBatteryPollInterval is how often the battery watchdog
	// re-checks each running worker's device against its cutoff_battery
	// requirement.
	DefaultBatteryPollInterval = 1 * time.Second
)
