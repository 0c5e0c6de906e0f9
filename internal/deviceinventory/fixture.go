package deviceinventory

// Fixture describes one device row to seed into the inventory. It mirrors
// core.DeviceHandle's capability attributes only; the health/held
// bookkeeping columns are internal to this reference implementation and are
// not part of a Fixture (Seed inserts a new row healthy and not held, and
// leaves those columns untouched when updating an existing row).
type Fixture struct {
	Serial       string
	ProductType  string
	State        string
	IsEmulator   bool
	BatteryLevel *int // nil means this device does not report battery
}
