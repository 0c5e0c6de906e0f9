package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opentestharness/cmdsched/internal/configfactory"
	"github.com/opentestharness/cmdsched/internal/core"
	"github.com/opentestharness/cmdsched/internal/deviceinventory"
	"github.com/opentestharness/cmdsched/internal/invocation"

	"github.com/opentestharness/cmdsched"
)

var (
	runDBPath          string
	runCommands        []string
	runProductType     string
	runState           string
	runMinBattery      int
	runEmulatorOnly    bool
	runPhysicalOnly    bool
	runCutoffBattery   int
	runShutdownTimeout time.Duration
	runStatsInterval   time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a scheduler against a device inventory database",
	RunE:  runRun,
}

func init() {
	flags := runCmd.Flags()
	flags.StringVar(&runDBPath, "db", "./devices.db", "path to the SQLite device inventory file")
	flags.StringArrayVar(&runCommands, "command", nil, "argv for a command to queue at startup, e.g. --command=\"--loop suite-a\" (repeatable)")
	flags.StringVar(&runProductType, "product-type", "", "default required product type, empty = any")
	flags.StringVar(&runState, "state", "", "default required device state, empty = any")
	flags.IntVar(&runMinBattery, "min-battery", 0, "default minimum battery percentage required to run a command")
	flags.BoolVar(&runEmulatorOnly, "emulator-only", false, "default requirement: emulator devices only")
	flags.BoolVar(&runPhysicalOnly, "physical-only", false, "default requirement: physical devices only")
	flags.IntVar(&runCutoffBattery, "cutoff-battery", -1, "default cutoff battery percentage, -1 = unset")
	flags.DurationVar(&runShutdownTimeout, "shutdown-timeout", cmdsched.DefaultShutdownTimeout, "grace window after a second interrupt signal (hard shutdown) before still-running commands are forcibly terminated")
	flags.DurationVar(&runStatsInterval, "stats-interval", 5*time.Second, "how often to print queued/running stats, 0 disables")
}

func runRun(cmd *cobra.Command, args []string) error {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil)).With("component", "cmdschedctl")
	cmdsched.SetLogger(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inventory, err := deviceinventory.Open(ctx, runDBPath)
	if err != nil {
		return fmt.Errorf("open device inventory: %w", err)
	}
	defer inventory.Close()

	reqs := core.DeviceRequirements{
		ProductType:  runProductType,
		State:        runState,
		EmulatorOnly: runEmulatorOnly,
		PhysicalOnly: runPhysicalOnly,
	}
	if runMinBattery > 0 {
		reqs.MinBattery = runMinBattery
		reqs.HasMinBattery = true
	}
	devOpts := core.DeviceOptions{}
	if runCutoffBattery >= 0 {
		devOpts.HasCutoffBattery = true
		devOpts.CutoffBattery = runCutoffBattery
	}

	factory := configfactory.New(reqs, devOpts)
	runner := invocation.NewRunner()

	sched, err := cmdsched.NewScheduler(inventory, factory, runner,
		cmdsched.WithShutdownTimeout(runShutdownTimeout),
	)
	if err != nil {
		return fmt.Errorf("construct scheduler: %w", err)
	}
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	log.Info("scheduler started", "db", runDBPath)

	for _, raw := range runCommands {
		argv := strings.Fields(raw)
		if len(argv) == 0 {
			continue
		}
		if err := sched.AddCommand(argv); err != nil {
			log.Warn("rejected startup command", "argv", argv, "err", err)
			continue
		}
		log.Info("queued startup command", "argv", argv)
	}

	done := make(chan struct{})
	go statsLoop(ctx, done, log, sched)

	<-ctx.Done()
	log.Info("shutdown signal received, draining running commands")
	sched.Shutdown()

	secondSignal := make(chan os.Signal, 1)
	signal.Notify(secondSignal, os.Interrupt, syscall.SIGTERM)
	joined := make(chan struct{})
	go func() {
		sched.Join(0)
		close(joined)
	}()

	select {
	case <-joined:
	case <-secondSignal:
		log.Warn("second signal received, forcing termination")
		sched.ShutdownHard()
		<-joined
	}

	close(done)
	log.Info("scheduler stopped")
	return nil
}

func statsLoop(ctx context.Context, done <-chan struct{}, log *slog.Logger, sched cmdsched.Scheduler) {
	if runStatsInterval <= 0 {
		return
	}
	ticker := time.NewTicker(runStatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			stats := sched.Stats()
			log.Info("scheduler stats", "queued", stats.Queued, "running", stats.Running)
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}
