package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/srg/buttplug/internal/deviceconfig"
	"github.com/srg/buttplug/internal/protocol"
	"github.com/srg/buttplug/pkg/buttplug"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept client connections and speak the Buttplug session protocol",
	Long: `Starts a server that accepts Buttplug client connections over a Unix
domain socket, serves each connection concurrently in its own session, and
routes their messages into the shared device manager.

Example:
  buttplugd serve --listen /tmp/buttplug.sock
  buttplugd serve --listen /tmp/buttplug.sock --config devices.yaml --max-ping-time 10s`,
	RunE: runServe,
}

var (
	serveListen      string
	serveName        string
	serveMaxPingTime time.Duration
)

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "/tmp/buttplugd.sock", "Unix domain socket path to listen on")
	serveCmd.Flags().StringVar(&serveName, "name", "buttplugd", "Server name reported in ServerInfo")
	serveCmd.Flags().DurationVar(&serveMaxPingTime, "max-ping-time", 0, "Ping watchdog period (0 disables pinging)")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	cfgMgr, err := loadDeviceConfig(cmd, protocol.NewRegistry())
	if err != nil {
		return err
	}

	srv, err := buttplug.NewServer(buttplug.Options{
		Logger:      logger,
		ServerName:  serveName,
		MaxPingTime: serveMaxPingTime,
		Config:      cfgMgr,
	})
	if err != nil {
		return fmt.Errorf("constructing server: %w", err)
	}

	_ = os.Remove(serveListen)
	ln, err := net.Listen("unix", serveListen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", serveListen, err)
	}
	defer ln.Close()
	logger.WithField("socket", serveListen).Info("buttplugd: listening")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("buttplugd: shutting down")
		cancel()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		go func() {
			defer conn.Close()
			if err := srv.Serve(ctx, conn); err != nil {
				logger.WithField("error", err).Warn("buttplugd: connection ended with error")
			}
		}()
	}
}

// loadDeviceConfig builds the device catalog a serve/devices/raw run
// against: every registered protocol factory's specifiers, plus the
// optional --config persisted document's user overrides.
func loadDeviceConfig(cmd *cobra.Command, registry *protocol.Registry) (*deviceconfig.Manager, error) {
	b := deviceconfig.NewBuilder(nil)
	for _, f := range registry.All() {
		for _, spec := range f.Specifiers() {
			b.AddBaseSpecifier(string(f.Name()), spec)
		}
	}

	path, _ := cmd.Flags().GetString("config")
	if strings.TrimSpace(path) == "" {
		return b.Build(), nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening device configuration %s: %w", path, err)
	}
	defer file.Close()

	doc, err := deviceconfig.LoadPersistedDocument(file)
	if err != nil {
		return nil, err
	}
	if err := deviceconfig.ApplyPersistedDocument(b, doc); err != nil {
		return nil, fmt.Errorf("applying device configuration %s: %w", path, err)
	}
	return b.Build(), nil
}
