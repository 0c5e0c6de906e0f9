package deviceinventory

// schemaSQL creates the device fixture table if it does not already exist.
// battery_level is nullable: a NULL row means the Device Manager does not
// report battery for that device, matching core.DeviceHandle.BatteryLevel's
// nil convention.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS devices (
	serial        TEXT PRIMARY KEY,
	product_type  TEXT NOT NULL DEFAULT '',
	state         TEXT NOT NULL DEFAULT '',
	is_emulator   INTEGER NOT NULL DEFAULT 0,
	battery_level INTEGER,
	healthy       INTEGER NOT NULL DEFAULT 1,
	held          INTEGER NOT NULL DEFAULT 0
);
`
