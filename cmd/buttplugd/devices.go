package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/srg/buttplug/internal/commhw/ble"
	"github.com/srg/buttplug/internal/devicemanager"
	"github.com/srg/buttplug/internal/protocol"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Scan and list the devices the configured catalog would claim",
	Long: `Starts scanning every transport in use by the registered protocols
for a fixed duration and prints every device that gets matched and brought
up, then exits.

Example:
  buttplugd devices --duration 5s --format json`,
	RunE: runDevices,
}

var (
	devicesDuration time.Duration
	devicesFormat   string
)

func init() {
	devicesCmd.Flags().DurationVarP(&devicesDuration, "duration", "d", 5*time.Second, "Scan duration")
	devicesCmd.Flags().StringVarP(&devicesFormat, "format", "f", "table", "Output format (table, json)")
}

func runDevices(cmd *cobra.Command, args []string) error {
	logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	registry := protocol.NewRegistry()
	cfgMgr, err := loadDeviceConfig(cmd, registry)
	if err != nil {
		return err
	}

	mgr := devicemanager.New(logger, cfgMgr, registry, devicemanager.Connectors{
		"ble": ble.NewConnector(logger),
	})

	ctx, cancel := context.WithTimeout(context.Background(), devicesDuration)
	defer cancel()

	if err := mgr.StartScanning(ctx); err != nil {
		return fmt.Errorf("starting scan: %w", err)
	}
	<-ctx.Done()
	mgr.StopScanning()

	return printDevices(mgr.Devices(), devicesFormat)
}

func printDevices(devs []*devicemanager.LiveDevice, format string) error {
	if format == "json" {
		type deviceRow struct {
			Index    uint32 `json:"index"`
			Address  string `json:"address"`
			Name     string `json:"name"`
			Features int    `json:"features"`
		}
		rows := make([]deviceRow, 0, len(devs))
		for _, d := range devs {
			rows = append(rows, deviceRow{
				Index: d.Index, Address: d.Identifier.Address,
				Name: d.Definition.Name, Features: len(d.Definition.OrderedFeatures()),
			})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tADDRESS\tNAME\tFEATURES")
	for _, d := range devs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", d.Index, d.Identifier.Address, d.Definition.Name, len(d.Definition.OrderedFeatures()))
	}
	return w.Flush()
}
