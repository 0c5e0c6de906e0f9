package cmdsched

import (
	"time"

	"github.com/opentestharness/cmdsched/internal/core"
)

// Compile-time interface satisfaction check.
var _ Scheduler = (*schedulerWrapper)(nil)

// schedulerWrapper wraps core.Engine to implement Scheduler. The core.Engine
// is stored as a named (unexported) field rather than embedded so callers
// cannot type-assert their way to engine internals that are not part of the
// public Scheduler interface, mirroring managerWrapper's wrapping of
// core.Manager in the teacher repo.
type schedulerWrapper struct {
	engine *core.Engine
}

// NewScheduler validates opts against the defaults and constructs a
// Scheduler bound to dm, cf, and runner. It performs no I/O and does not
// start the scheduler loop — call Start for that.
//
// Panics if any option receives an invalid value (see individual With*
// functions); returns an error if the resulting SchedulerConfig itself
// fails validation (e.g. a LoopPollInterval exceeding 250ms set directly
// through an option chain that skipped its own guard).
func NewScheduler(dm DeviceManager, cf ConfigFactory, runner InvocationRunner, opts ...SchedulerOption) (Scheduler, error) {
	cfg := defaultSchedulerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	engine, err := core.NewEngine(cfg.toCoreConfig(), dm, cf, runner)
	if err != nil {
		return nil, err
	}
	return &schedulerWrapper{engine: engine}, nil
}

func (s *schedulerWrapper) Start() error                    { return s.engine.Start() }
func (s *schedulerWrapper) AddCommand(args []string) error  { return s.engine.AddCommand(args) }
func (s *schedulerWrapper) RemoveAllCommands()               { s.engine.RemoveAllCommands() }
func (s *schedulerWrapper) Shutdown()                       { s.engine.Shutdown() }
func (s *schedulerWrapper) ShutdownHard()                   { s.engine.ShutdownHard() }
func (s *schedulerWrapper) Join(timeout time.Duration) bool { return s.engine.Join(timeout) }
func (s *schedulerWrapper) ListCommands() []CommandSnapshot { return s.engine.ListCommands() }
func (s *schedulerWrapper) Stats() Stats                    { return s.engine.Stats() }
