// Package invocation provides the suspension-point helpers that an
// Invocation Runner collaborator calls into while it runs (Sleep, also used
// by the scheduler's scenario tests), plus a reference runner implementation
// used by cmd/cmdschedctl's run subcommand.
package invocation

import (
	"context"
	"time"

	"github.com/opentestharness/cmdsched/internal/core"
)

// pollTick bounds how often Sleep re-checks the InterruptToken while
// waiting, so a forced interrupt that arrives mid-sleep is observed promptly
// rather than only at the end of the wait.
const pollTick = 25 * time.Millisecond

// Sleep is the suspension-point helper (§6.2's "helpers that consult the
// token") an Invocation Runner should call at every point where it is safe
// to be interrupted. It returns core.ErrInterrupted immediately if the token
// is already (forced && allowed), otherwise waits up to d, re-checking the
// token on a short tick so a forced+allowed transition during the wait is
// honored without waiting for d to elapse.
//
// ctx cancellation always aborts the wait with ErrInterrupted regardless of
// the token's allowed flag — this is the one non-cooperative escalation
// path, driven by the Shutdown Coordinator and the invocation-timeout
// watchdog after their respective grace windows expire.
func Sleep(ctx context.Context, token *core.InterruptToken, d time.Duration) error {
	if err := token.CheckSuspension(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	ticker := time.NewTicker(pollTick)
	defer ticker.Stop()

	for {
		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return core.ErrInterrupted
		case <-ticker.C:
			if err := token.CheckSuspension(); err != nil {
				return err
			}
		}
	}
}
