// Package cmdsched implements the Command Scheduler: it continuously
// dispatches pending test-invocation commands onto a pool of managed
// devices, enforcing fairness by accumulated runtime, honoring cooperative
// interruption, and terminating invocations under bounded shutdown and
// per-invocation timeouts.
//
// Callers construct a Scheduler via NewScheduler, supplying their own
// DeviceManager, ConfigFactory, and InvocationRunner collaborators (or the
// reference implementations in internal/deviceinventory, internal/configfactory,
// and internal/invocation), then follow this lifecycle:
//
//	sched, err := cmdsched.NewScheduler(dm, cf, runner, opts...)
//	sched.Start()
//	sched.AddCommand([]string{"--loop", "run-my-test"})
//	...
//	sched.Shutdown() // or ShutdownHard()
//	sched.Join(0)
package cmdsched
