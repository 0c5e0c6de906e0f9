// Package core provides the internal implementation of the command scheduler.
//
// The primary types are:
//   - [Engine]: the scheduler loop and shutdown coordinator, with two-phase
//     lifecycle (NewEngine / Start) and parallel worker teardown with a grace
//     window.
//   - [CommandQueue]: a min-heap over accumulated runtime with FIFO
//     tie-breaking and a bounded eligible-command scan.
//   - [DevicePool]: an exclusive-allocation facade over a [DeviceManager]
//     collaborator, with double-release detection via generation tokens.
//   - [Worker]: the STARTING/RUNNING/STOPPING state machine bound to one
//     command and one device for the duration of an invocation.
//   - [InterruptToken]: the cooperative allowed/forced flag pair consulted at
//     every suspension point.
package core
