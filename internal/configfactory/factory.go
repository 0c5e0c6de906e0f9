package configfactory

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/opentestharness/cmdsched/internal/core"
	"github.com/opentestharness/cmdsched/internal/invocation"
)

// Factory implements core.ConfigFactory. Every call to CreateConfiguration
// builds its own flag.FlagSet — the teacher repo has no CLI-flag-parsing
// precedent (see DESIGN.md), but each add_command call parses an
// independent argv, so a fresh, ContinueOnError FlagSet per call is the
// correct granularity rather than a single package-level flag.CommandLine.
//
// Recognized flags must appear as a contiguous prefix of args (the flag
// package stops parsing at the first non-flag token), matching the common
// "global flags before the test's own arguments" CLI convention.
type Factory struct {
	// DeviceRequirements and DeviceOptions are the defaults applied to every
	// command this factory produces. DeviceOptions.CutoffBattery is
	// overridden per-command by --cutoff-battery; DeviceRequirements is not
	// recognized from argv at all (§10.3: "device requirements ... beyond
	// those keys are supplied programmatically").
	DeviceRequirements core.DeviceRequirements
	DeviceOptions      core.DeviceOptions
}

// New constructs a Factory with the given defaults.
func New(reqs core.DeviceRequirements, opts core.DeviceOptions) *Factory {
	return &Factory{DeviceRequirements: reqs, DeviceOptions: opts}
}

// CreateConfiguration implements core.ConfigFactory, recognizing the
// per-command keys of spec.md §6.3 (--loop, --min-loop-time,
// --invocation-timeout, --cutoff-battery; the shutdown timeout is a
// scheduler-wide setting and is not parsed here, so --shutdown-timeout is
// rejected as unknown) plus a handful of workload flags (--workload-steps,
// --workload-step-ms, --interruptible, --final-error) that configure the
// reference internal/invocation.Runner's simulated workload — the concrete
// stand-in this repository ships for the out-of-scope Invocation Runner
// collaborator.
func (f *Factory) CreateConfiguration(args []string) (core.Configuration, error) {
	fs := flag.NewFlagSet("add_command", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	loop := fs.Bool("loop", false, "re-enqueue this command after each invocation")
	minLoopTimeMs := fs.Uint64("min-loop-time", 0, "minimum milliseconds between loop-mode invocations")
	invocationTimeoutMs := fs.Uint64("invocation-timeout", 0, "milliseconds before the invocation is forcibly interrupted, 0 = none")
	cutoffBattery := fs.Int("cutoff-battery", -1, "battery percentage below which this command's worker is asked to interrupt, -1 = unset")
	steps := fs.Int("workload-steps", 1, "number of sleep steps the reference invocation runner performs")
	stepMs := fs.Uint64("workload-step-ms", 1000, "milliseconds slept per workload step")
	interruptible := fs.Bool("interruptible", false, "mark the reference workload's region as interruptible")
	finalErrMsg := fs.String("final-error", "", "if non-empty, the reference workload fails with this error after completing its steps")

	if err := fs.Parse(args); err != nil {
		return core.Configuration{}, fmt.Errorf("configfactory: parse command args: %w", err)
	}

	devOpts := f.DeviceOptions
	if *cutoffBattery >= 0 {
		devOpts.HasCutoffBattery = true
		devOpts.CutoffBattery = *cutoffBattery
	}

	var finalErr error
	if *finalErrMsg != "" {
		finalErr = errors.New(*finalErrMsg)
	}

	return core.Configuration{
		DeviceRequirements:  f.DeviceRequirements,
		DeviceOptions:       devOpts,
		LoopMode:            *loop,
		MinLoopTimeMs:       *minLoopTimeMs,
		InvocationTimeoutMs: *invocationTimeoutMs,
		CommandOptions: invocation.Workload{
			Steps:         *steps,
			StepDuration:  time.Duration(*stepMs) * time.Millisecond,
			Interruptible: *interruptible,
			FinalErr:      finalErr,
		},
	}, nil
}
