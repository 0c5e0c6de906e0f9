package deviceinventory

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/flock"
	// Register the pure-Go SQLite driver (no CGO required).
	_ "modernc.org/sqlite"

	"github.com/opentestharness/cmdsched/internal/core"
	"github.com/opentestharness/cmdsched/internal/fileutil"
)

// sqliteBusyTimeoutMs bounds how long a write waits for another connection's
// lock before giving up, matching the teacher's purge.go rationale: prevents
// "database is locked" errors under light concurrent access while keeping
// latency acceptable for a local, ephemeral fixture file.
const sqliteBusyTimeoutMs = 5000

// fileLockRetryInterval is how often Open retries the cross-process file
// lock while waiting for another scheduler process to release it, grounded
// on internal/crdcache/lock.go's acquireFileLock.
const fileLockRetryInterval = 50 * time.Millisecond

// Manager is a reference core.DeviceManager: a single SQLite file holds the
// device fixture table, an exclusive flock guards the file against another
// scheduler process opening it concurrently, and an in-process mutex
// serializes the select-then-mark-held Allocate sequence (SQLite itself only
// ever sees one writer at a time from this process).
type Manager struct {
	db   *sql.DB
	lock *flock.Flock

	mu      sync.Mutex
	stateCh chan struct{}
}

// Open creates (if needed) and migrates the SQLite fixture file at path,
// acquiring an exclusive cross-process file lock at path+".lock" for the
// lifetime of the returned Manager. ctx bounds how long Open waits for that
// lock.
func Open(ctx context.Context, path string) (*Manager, error) {
	if err := fileutil.EnsureDirForFile(path); err != nil {
		return nil, err
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLockContext(ctx, fileLockRetryInterval)
	if err != nil {
		return nil, fmt.Errorf("acquire device inventory lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("acquire device inventory lock %s: not acquired", path)
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)",
		path, sqliteBusyTimeoutMs,
	)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = lock.Close()
		return nil, fmt.Errorf("open device inventory %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close() //nolint:errcheck,gosec // best-effort cleanup on migration failure
		_ = lock.Close()
		return nil, fmt.Errorf("migrate device inventory %s: %w", path, err)
	}

	return &Manager{db: db, lock: lock, stateCh: make(chan struct{}, 1)}, nil
}

// Close closes the database connection and releases the file lock.
func (m *Manager) Close() error {
	dbErr := m.db.Close()
	lockErr := m.lock.Close()
	if dbErr != nil {
		return dbErr
	}
	return lockErr
}

// Seed inserts or replaces fixture rows, for test setup and the CLI's
// seed-devices subcommand.
func (m *Manager) Seed(ctx context.Context, fixtures []Fixture) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, f := range fixtures {
		emulator := 0
		if f.IsEmulator {
			emulator = 1
		}
		_, err := m.db.ExecContext(ctx,
			`INSERT INTO devices (serial, product_type, state, is_emulator, battery_level, healthy, held)
			 VALUES (?, ?, ?, ?, ?, 1, 0)
			 ON CONFLICT(serial) DO UPDATE SET
			   product_type = excluded.product_type,
			   state = excluded.state,
			   is_emulator = excluded.is_emulator,
			   battery_level = excluded.battery_level`,
			f.Serial, f.ProductType, f.State, emulator, f.BatteryLevel,
		)
		if err != nil {
			return fmt.Errorf("seed device %s: %w", f.Serial, err)
		}
	}
	m.notify()
	return nil
}

// Allocate implements core.DeviceManager: it scans free, healthy devices in
// serial order and returns the first one whose capabilities satisfy reqs,
// marking it held in the same critical section so no other Allocate call can
// claim it concurrently.
func (m *Manager) Allocate(reqs core.DeviceRequirements) (*core.DeviceHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, err := m.db.Query(
		`SELECT serial, product_type, state, is_emulator, battery_level
		 FROM devices WHERE healthy = 1 AND held = 0 ORDER BY serial`,
	)
	if err != nil {
		return nil, fmt.Errorf("query free devices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			serial, productType, state string
			isEmulator                 int
			battery                    sql.NullInt64
		)
		if err := rows.Scan(&serial, &productType, &state, &isEmulator, &battery); err != nil {
			return nil, fmt.Errorf("scan device row: %w", err)
		}

		handle := &core.DeviceHandle{
			Serial:      serial,
			ProductType: productType,
			State:       state,
			IsEmulator:  isEmulator != 0,
		}
		if battery.Valid {
			lvl := int(battery.Int64)
			handle.BatteryLevel = &lvl
		}

		if !reqs.Matches(handle) {
			continue
		}

		rows.Close() // release the read cursor before writing on the same connection
		if _, err := m.db.Exec(`UPDATE devices SET held = 1 WHERE serial = ?`, serial); err != nil {
			return nil, fmt.Errorf("mark device %s held: %w", serial, err)
		}
		return handle, nil
	}

	return nil, core.ErrNoDeviceFree
}

// Release implements core.DeviceManager: returns handle to the free pool.
func (m *Manager) Release(handle *core.DeviceHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.db.Exec(`UPDATE devices SET held = 0 WHERE serial = ?`, handle.Serial); err != nil {
		return fmt.Errorf("release device %s: %w", handle.Serial, err)
	}
	m.notify()
	return nil
}

// MarkUnhealthy implements core.DeviceManager: excludes handle from future
// Allocate calls until SetHealthy clears it.
func (m *Manager) MarkUnhealthy(handle *core.DeviceHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.db.Exec(`UPDATE devices SET held = 0, healthy = 0 WHERE serial = ?`, handle.Serial); err != nil {
		return fmt.Errorf("mark device %s unhealthy: %w", handle.Serial, err)
	}
	m.notify()
	return nil
}

// SetHealthy clears a previous MarkUnhealthy, standing in for the external
// health probe the real Device Manager collaborator would run.
func (m *Manager) SetHealthy(serial string, healthy bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := 0
	if healthy {
		v = 1
	}
	if _, err := m.db.Exec(`UPDATE devices SET healthy = ? WHERE serial = ?`, v, serial); err != nil {
		return fmt.Errorf("set device %s healthy=%v: %w", serial, healthy, err)
	}
	m.notify()
	return nil
}

// UpdateBattery sets a device's reported battery level, standing in for the
// external battery probe. The new level is seen by handles returned from
// later Allocate calls; a handle that is already allocated keeps the level
// it was read with, so the battery watchdog of a running worker does not
// observe the change.
func (m *Manager) UpdateBattery(serial string, level int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.db.Exec(`UPDATE devices SET battery_level = ? WHERE serial = ?`, level, serial); err != nil {
		return fmt.Errorf("update battery for %s: %w", serial, err)
	}
	m.notify()
	return nil
}

// SubscribeState implements core.DeviceManager.
func (m *Manager) SubscribeState() <-chan struct{} {
	return m.stateCh
}

// notify wakes any Scheduler Loop waiting on SubscribeState. Must be called
// with mu held. Non-blocking: at most one pending notification is buffered.
func (m *Manager) notify() {
	select {
	case m.stateCh <- struct{}{}:
	default:
	}
}
