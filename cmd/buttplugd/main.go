package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "buttplugd",
	Short: "Buttplug wire-protocol server",
	Long: `A server that mediates between Buttplug client applications and
physical actuator/sensor hardware over BLE, HID, USB, serial, and XInput.

- serve: accept client connections and speak the v0-v4 session protocol
- devices: scan and print the devices the configured catalog would claim
- raw: bridge one connected device's raw endpoint to a PTY`,
	Version: version,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.SilenceErrors = true

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(rawCmd)

	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("config", "", "Path to the persisted device configuration YAML document")
}
