package invocation

import (
	"context"
	"time"

	"github.com/opentestharness/cmdsched/internal/core"
)

// Workload configures Runner's simulated invocation: Steps sleeps of
// StepDuration each, consulting the InterruptToken between every step, then
// returning FinalErr (nil on ordinary success). It is the value a
// Configuration's CommandOptions carries for commands meant to run against
// Runner — the reference/fake Invocation Runner named in SPEC_FULL.md §12,
// standing in for whatever real test-execution engine a deployment would
// plug in at this seam.
type Workload struct {
	Steps         int
	StepDuration  time.Duration
	Interruptible bool
	FinalErr      error
}

// Runner is a reference core.InvocationRunner used by cmd/cmdschedctl's run
// subcommand (the repository's tests drive Sleep directly through their own
// runners rather than using Runner). Production deployments
// supply their own InvocationRunner wired to whatever test-execution engine
// they drive.
type Runner struct{}

// NewRunner constructs a Runner.
func NewRunner() *Runner { return &Runner{} }

// Invoke implements core.InvocationRunner.
func (r *Runner) Invoke(ctx context.Context, device *core.DeviceHandle, cfg core.Configuration, reschedule core.RescheduleFunc, token *core.InterruptToken) error {
	wl, _ := cfg.CommandOptions.(Workload)

	token.SetInterruptible(wl.Interruptible)

	steps := wl.Steps
	if steps <= 0 {
		steps = 1
	}
	for i := 0; i < steps; i++ {
		if err := Sleep(ctx, token, wl.StepDuration); err != nil {
			return err
		}
	}
	return wl.FinalErr
}
