package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opentestharness/cmdsched/internal/deviceinventory"
)

var (
	seedDBPath  string
	seedDevices []string
)

var seedDevicesCmd = &cobra.Command{
	Use:   "seed-devices",
	Short: "Populate a device inventory database with fixture devices",
	RunE:  runSeedDevices,
}

func init() {
	flags := seedDevicesCmd.Flags()
	flags.StringVar(&seedDBPath, "db", "./devices.db", "path to the SQLite device inventory file")
	flags.StringArrayVar(&seedDevices, "device", nil,
		"serial,product_type,state,is_emulator,battery_level fixture (battery_level empty = unreported; repeatable)")
}

func runSeedDevices(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	fixtures := make([]deviceinventory.Fixture, 0, len(seedDevices))
	for _, raw := range seedDevices {
		f, err := parseFixture(raw)
		if err != nil {
			return fmt.Errorf("parse --device %q: %w", raw, err)
		}
		fixtures = append(fixtures, f)
	}

	inventory, err := deviceinventory.Open(ctx, seedDBPath)
	if err != nil {
		return fmt.Errorf("open device inventory: %w", err)
	}
	defer inventory.Close()

	if err := inventory.Seed(ctx, fixtures); err != nil {
		return fmt.Errorf("seed device inventory: %w", err)
	}
	fmt.Printf("seeded %d device(s) into %s\n", len(fixtures), seedDBPath)
	return nil
}

// parseFixture parses "serial,product_type,state,is_emulator,battery_level"
// into a Fixture. battery_level may be left empty for devices that don't
// report battery.
func parseFixture(raw string) (deviceinventory.Fixture, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 5 {
		return deviceinventory.Fixture{}, fmt.Errorf("expected 5 comma-separated fields, got %d", len(parts))
	}

	isEmulator, err := strconv.ParseBool(parts[3])
	if err != nil {
		return deviceinventory.Fixture{}, fmt.Errorf("is_emulator: %w", err)
	}

	f := deviceinventory.Fixture{
		Serial:      parts[0],
		ProductType: parts[1],
		State:       parts[2],
		IsEmulator:  isEmulator,
	}
	if parts[4] != "" {
		lvl, err := strconv.Atoi(parts[4])
		if err != nil {
			return deviceinventory.Fixture{}, fmt.Errorf("battery_level: %w", err)
		}
		f.BatteryLevel = &lvl
	}
	return f, nil
}
