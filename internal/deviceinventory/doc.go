// Package deviceinventory is a reference core.DeviceManager backed by a
// local SQLite fixture file, so the scheduler is exercisable end to end
// without a real lab's device-inventory service (SPEC_FULL.md §12).
package deviceinventory
