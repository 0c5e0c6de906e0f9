package core

import "sync/atomic"

// InterruptToken is the cooperative interruption flag pair described in
// §4.4: `allowed`, toggled by the worker itself to mark interruption-safe
// regions, and `forced`, set by the Shutdown Coordinator, the invocation-
// timeout watchdog, or the battery watchdog to request termination.
//
// Per the Open Question decision in SPEC_FULL.md §14, forced is sticky: once
// set it is never cleared, even if allowed is toggled false and back to true
// again — the worker is expected to terminate at the first interruptible
// region it subsequently enters, not just the next one after forced was set.
type InterruptToken struct {
	allowed atomic.Bool
	forced  atomic.Bool
}

// NewInterruptToken returns a token in its initial (false, false) state.
func NewInterruptToken() *InterruptToken {
	return &InterruptToken{}
}

// SetInterruptible marks the region the worker is about to enter as
// interruption-safe (true) or not (false). Called only by the worker that
// owns this token.
func (t *InterruptToken) SetInterruptible(allowed bool) {
	t.allowed.Store(allowed)
}

// Allowed reports whether the worker currently considers itself
// interruptible.
func (t *InterruptToken) Allowed() bool {
	return t.allowed.Load()
}

// Forced reports whether termination has been requested.
func (t *InterruptToken) Forced() bool {
	return t.forced.Load()
}

// SetForced requests termination. It is sticky: calling it multiple times,
// or calling it before any interruptible region has been entered, all have
// the same effect — the first suspension point reached inside an
// interruptible region raises Interrupted.
func (t *InterruptToken) SetForced() {
	t.forced.Store(true)
}

// CheckSuspension implements the wait/sleep consultation rule in §4.4:
//
//	if forced and allowed: raise Interrupted
//	else:                  sleep/wait as requested
//
// It is called by every suspension-point helper handed to the Invocation
// Runner (internal/invocation). No lock is held across the call — both
// flags are plain atomics.
func (t *InterruptToken) CheckSuspension() error {
	if t.forced.Load() && t.allowed.Load() {
		return ErrInterrupted
	}
	return nil
}
