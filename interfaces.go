package cmdsched

import (
	"time"

	"github.com/opentestharness/cmdsched/internal/core"
)

// DeviceManager is the external device-inventory collaborator (spec.md
// §6.2). internal/deviceinventory ships a SQLite-backed reference
// implementation; production deployments wire this to their lab's real
// device-inventory service.
type DeviceManager = core.DeviceManager

// ConfigFactory is the Configuration Factory collaborator (spec.md §6.2):
// it turns a command's argv into a Configuration, or rejects it
// synchronously. internal/configfactory ships a flag-based reference
// implementation.
type ConfigFactory = core.ConfigFactory

// InvocationRunner is the Invocation Runner collaborator (spec.md §6.2):
// opaque work — flashing, test execution, result reporting — that may take
// seconds to hours, consulting the worker's InterruptToken at its own
// suspension points. internal/invocation ships a reference implementation
// used by cmd/cmdschedctl's run subcommand, and the Sleep suspension-point
// helper this repository's scenario tests use.
type InvocationRunner = core.InvocationRunner

// Scheduler is the Control API (spec.md §6.1): add, remove, and drain
// commands, and drive the three termination paths (graceful drain, hard
// shutdown with grace, and per-invocation timeout, the last driven
// internally once a command's InvocationTimeoutMs is set).
type Scheduler interface {
	// Start launches the scheduler loop. Calling Start twice returns
	// ErrAlreadyStarted.
	Start() error

	// AddCommand implements add_command: it builds a Configuration via the
	// ConfigFactory and queues the resulting command. Fails with
	// ErrShuttingDown once Shutdown or ShutdownHard has been called, or with
	// whatever error the ConfigFactory raises while rejecting argv.
	AddCommand(args []string) error

	// RemoveAllCommands drains the queue. Running workers are untouched.
	RemoveAllCommands()

	// Shutdown transitions to CLOSING: no further commands are dispatched,
	// but already-running workers run to completion. Idempotent.
	Shutdown()

	// ShutdownHard is Shutdown plus forced=true on every active worker and
	// an armed grace window, after which still-live workers are escalated
	// to forced termination. Idempotent.
	ShutdownHard()

	// Join blocks until CLOSED or timeout elapses, returning true only in
	// the former case. timeout <= 0 waits forever.
	Join(timeout time.Duration) bool

	// ListCommands returns a snapshot of every queued and running command.
	ListCommands() []CommandSnapshot

	// Stats returns aggregate queued/running counts.
	Stats() Stats
}
