package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/buttplug/pkg/rawbridge"

	"github.com/srg/buttplug/internal/commhw/ble"
	"github.com/srg/buttplug/internal/devicemanager"
	"github.com/srg/buttplug/internal/hardware"
	"github.com/srg/buttplug/internal/protocol"
)

var rawCmd = &cobra.Command{
	Use:   "raw <device-address>",
	Short: "Bridge one connected device's raw endpoint to a PTY",
	Long: `Connects to one device by address, subscribes its raw endpoint, and
exposes a PTY that mirrors data in both directions: bytes written to the PTY
become raw writes to the endpoint, and data arriving on the endpoint is
written back to the PTY.

This bypasses protocol interpretation entirely (spec's raw command family),
and only finds a device at all once a protocol factory claiming it has been
registered; buttplugd's built-in registry carries none, so raw is exercised
by processes that embed pkg/buttplug and register their own factories.

Example:
  buttplugd raw aa:bb:cc:dd:ee:ff --endpoint Tx`,
	Args: cobra.ExactArgs(1),
	RunE: runRaw,
}

var (
	rawEndpoint       string
	rawConnectTimeout time.Duration
)

func init() {
	rawCmd.Flags().StringVar(&rawEndpoint, "endpoint", string(hardware.EndpointTx), "Symbolic endpoint to bridge")
	rawCmd.Flags().DurationVar(&rawConnectTimeout, "connect-timeout", 30*time.Second, "Time to wait for the device to be discovered and brought up")
}

func runRaw(cmd *cobra.Command, args []string) error {
	logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	address := args[0]
	if address == "" {
		return ErrNoDeviceAddress
	}

	registry := protocol.NewRegistry()
	cfgMgr, err := loadDeviceConfig(cmd, registry)
	if err != nil {
		return err
	}

	mgr := devicemanager.New(logger, cfgMgr, registry, devicemanager.Connectors{
		"ble": ble.NewConnector(logger),
	})

	ctx, cancel := context.WithTimeout(context.Background(), rawConnectTimeout)
	defer cancel()
	if err := mgr.StartScanning(ctx); err != nil {
		return fmt.Errorf("starting scan: %w", err)
	}

	dev, err := waitForDevice(ctx, mgr, address)
	cancel()
	if err != nil {
		return err
	}
	mgr.StopScanning()

	endpoint := hardware.Endpoint(rawEndpoint)
	if err := dev.Hardware.Execute(context.Background(), hardware.Command{Kind: hardware.CommandSubscribe, Endpoint: endpoint}); err != nil {
		return fmt.Errorf("subscribing endpoint %s: %w", endpoint, err)
	}

	bridge := rawbridge.NewBridge(logger)
	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	err = bridge.Start(runCtx, rawbridge.DefaultBridgeOptions(), func(data []byte) error {
		return dev.Hardware.Execute(runCtx, hardware.Command{Kind: hardware.CommandWrite, Endpoint: endpoint, Data: data})
	})
	if err != nil {
		return fmt.Errorf("starting PTY bridge: %w", err)
	}
	defer bridge.Stop()

	sub := dev.Hardware.Events().Subscribe()
	defer sub.Unsubscribe()
	go func() {
		for {
			ev, ok := sub.Next(runCtx)
			if !ok {
				return
			}
			if ev.Endpoint != endpoint || len(ev.Data) == 0 {
				continue
			}
			if err := bridge.WriteFromDevice(ev.Data); err != nil {
				logger.WithField("error", err).Warn("buttplugd raw: failed writing to PTY")
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logger.Info("buttplugd raw: shutting down")
	return nil
}

// waitForDevice polls the manager until address shows up as a live device
// or ctx expires.
func waitForDevice(ctx context.Context, mgr *devicemanager.Manager, address string) (*devicemanager.LiveDevice, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		for _, d := range mgr.Devices() {
			if d.Identifier.Address == address {
				return d, nil
			}
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("device %s not found within timeout: %w", address, ctx.Err())
		case <-ticker.C:
		}
	}
}
