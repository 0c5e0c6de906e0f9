package cmdsched

import "github.com/opentestharness/cmdsched/internal/core"

// schedulerConfig holds configuration for a Scheduler. This unexported type
// wraps core.SchedulerConfig via embedding, keeping internal/core types out
// of the public API signature while avoiding field-by-field duplication,
// matching the teacher's managerConfig/core.ManagerConfig split.
type schedulerConfig struct {
	core.SchedulerConfig
}

// toCoreConfig returns the embedded core.SchedulerConfig.
func (c schedulerConfig) toCoreConfig() core.SchedulerConfig {
	return c.SchedulerConfig
}

// defaultSchedulerConfig returns a schedulerConfig populated with all
// default values.
func defaultSchedulerConfig() schedulerConfig {
	return schedulerConfig{core.SchedulerConfig{
		EligibleScanWindow:      DefaultEligibleScanWindow,
		LoopPollInterval:        DefaultLoopPollInterval,
		ShutdownTimeout:         DefaultShutdownTimeout,
		InvocationWatchdogGrace: DefaultInvocationWatchdogGrace,
		BatteryPollInterval:     DefaultBatteryPollInterval,
	}}
}
