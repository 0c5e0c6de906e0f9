package core

import "context"

// Configuration is what the Configuration Factory collaborator (§6.2)
// produces from a command's argv. CommandOptions is opaque to the
// scheduler — it is passed straight through to the Invocation Runner.
type Configuration struct {
	CommandOptions          any
	DeviceRequirements      DeviceRequirements
	DeviceOptions           DeviceOptions
	TestInvocationListeners []any

	// Recognized configuration keys (§6.3).
	LoopMode          bool
	MinLoopTimeMs     uint64
	InvocationTimeoutMs uint64
}

// ConfigFactory is the Configuration Factory collaborator seam: it turns an
// argv into a Configuration, or rejects it synchronously. AddCommand
// surfaces a rejection to the caller without ever queuing the command.
type ConfigFactory interface {
	CreateConfiguration(args []string) (Configuration, error)
}

// RescheduleFunc lets an Invocation Runner enqueue a derived command — the
// Rescheduler seam in §6.2/GLOSSARY. Implementations beyond accepting new
// argv and queuing it like a fresh add_command call are out of scope.
type RescheduleFunc func(args []string) error

// InvocationRunner is the Invocation Runner collaborator seam (§6.2): opaque
// work that may take seconds to hours, consulting token at its own
// suspension points via the helpers in internal/invocation. It returns
// ErrInterrupted if a suspension point aborted the run, ErrDeviceNotAvailable
// if the device became unusable, or any other error for an unexpected
// failure — the worker treats all three per the policy in §7.
type InvocationRunner interface {
	Invoke(ctx context.Context, device *DeviceHandle, cfg Configuration, reschedule RescheduleFunc, token *InterruptToken) error
}
