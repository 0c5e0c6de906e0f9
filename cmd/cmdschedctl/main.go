// Command cmdschedctl runs a Command Scheduler against a SQLite-backed
// reference device inventory, or seeds that inventory with fixture devices.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cmdschedctl",
	Short: "Run and inspect a Command Scheduler instance",
}

func main() {
	rootCmd.AddCommand(runCmd, seedDevicesCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
