package core

import (
	"fmt"
	"sync"
)

// DeviceHandle is an opaque reference to an allocated device, carrying the
// capability attributes the Command Queue's DeviceRequirements match
// against.
type DeviceHandle struct {
	Serial      string
	ProductType string
	State       string
	IsEmulator  bool
	// BatteryLevel is nil when the Device Manager does not report battery for
	// this device (e.g. some emulators); MinBattery requirements and the
	// cutoff-battery watchdog then never fire for it.
	BatteryLevel *int
}

// DeviceManager is the external device-inventory collaborator specified at
// its seam in §6.2. Implementations are expected to enforce allocation
// exclusivity themselves — Allocate must never hand out a device that is
// already held by another caller.
type DeviceManager interface {
	// Allocate returns a handle for any free device matching reqs, or
	// ErrNoDeviceFree if none currently qualifies.
	Allocate(reqs DeviceRequirements) (*DeviceHandle, error)
	// Release returns handle to the free pool.
	Release(handle *DeviceHandle) error
	// MarkUnhealthy excludes handle from future Allocate calls until the
	// Device Manager's own health probe clears it. Supplements §12 of
	// SPEC_FULL.md's device-health feature.
	MarkUnhealthy(handle *DeviceHandle) error
	// SubscribeState returns a channel that receives a value whenever device
	// availability may have changed (a release, a health-probe recovery, or
	// inventory discovering a new device). The Scheduler Loop selects on it
	// as one of its wake conditions.
	SubscribeState() <-chan struct{}
}

// DevicePool is the Device Manager Facade (§4.2): a thin, exclusive-
// allocation mediator in front of a DeviceManager collaborator. It adds
// generation-token double-release detection on top of whatever the
// collaborator itself enforces, mirroring the guard the teacher's Pool/
// Instance pair applies to its own resource handles.
type DevicePool struct {
	dm DeviceManager

	mu     sync.Mutex
	closed bool
	gen    map[*DeviceHandle]uint64 // odd == held, even == free
}

// NewDevicePool wraps dm. dm must not be nil.
func NewDevicePool(dm DeviceManager) *DevicePool {
	if dm == nil {
		panic("cmdsched: NewDevicePool manager must not be nil")
	}
	return &DevicePool{dm: dm, gen: make(map[*DeviceHandle]uint64)}
}

// TryAllocate satisfies the deviceAllocator interface used by
// CommandQueue.PeekEligible. It returns ErrNoDeviceFree when the
// collaborator has no free match, ErrPoolClosed after Close, or the
// collaborator's own error otherwise.
func (p *DevicePool) TryAllocate(reqs DeviceRequirements) (*DeviceHandle, uint64, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, 0, ErrPoolClosed
	}
	p.mu.Unlock()

	dev, err := p.dm.Allocate(reqs)
	if err != nil {
		return nil, 0, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		// Lost the race with Close: give the device straight back.
		_ = p.dm.Release(dev)
		return nil, 0, ErrPoolClosed
	}
	gen := p.gen[dev] + 1 // first acquisition of this handle moves to odd
	if gen%2 == 0 {
		gen++
	}
	p.gen[dev] = gen
	p.mu.Unlock()
	return dev, gen, nil
}

// Release returns handle to the Device Manager. It panics on a stale token —
// a double-release — the same defensive contract the teacher's Pool.Release
// enforces, since a double-release here would let two workers believe they
// exclusively hold the same device.
func (p *DevicePool) Release(handle *DeviceHandle, token uint64) {
	p.mu.Lock()
	cur, ok := p.gen[handle]
	if !ok || cur != token {
		p.mu.Unlock()
		panic(fmt.Sprintf("cmdsched: double-release of device handle %s (token %d, current %d)", handle.Serial, token, cur))
	}
	p.gen[handle] = cur + 1 // advance to even: free
	p.mu.Unlock()

	if err := p.dm.Release(handle); err != nil {
		Logger().Warn("device release failed", "serial", handle.Serial, "err", err)
	}
}

// ReleaseUnhealthy marks handle unhealthy instead of returning it to the
// free pool, per the "device-not-available" error policy in §7: the device
// is released from this worker's exclusive hold but excluded from future
// allocation until the Device Manager clears it.
func (p *DevicePool) ReleaseUnhealthy(handle *DeviceHandle, token uint64) {
	p.mu.Lock()
	cur, ok := p.gen[handle]
	if !ok || cur != token {
		p.mu.Unlock()
		panic(fmt.Sprintf("cmdsched: double-release of device handle %s (token %d, current %d)", handle.Serial, token, cur))
	}
	p.gen[handle] = cur + 1
	p.mu.Unlock()

	if err := p.dm.MarkUnhealthy(handle); err != nil {
		Logger().Warn("mark device unhealthy failed", "serial", handle.Serial, "err", err)
	}
}

// SubscribeState forwards to the underlying DeviceManager.
func (p *DevicePool) SubscribeState() <-chan struct{} {
	return p.dm.SubscribeState()
}

// Close marks the pool closed; future TryAllocate calls fail with
// ErrPoolClosed. Idempotent.
func (p *DevicePool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}
