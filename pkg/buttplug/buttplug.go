// Package buttplug is the public façade over internal/server,
// internal/devicemanager, and internal/deviceconfig: construct an Options,
// call NewServer, and Serve every accepted connection's
// io.ReadWriteCloser.
package buttplug

import (
	"context"
	"fmt"
	"io"
	"time"

	defaults "github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"

	"github.com/srg/buttplug/internal/checker"
	"github.com/srg/buttplug/internal/commhw/ble"
	"github.com/srg/buttplug/internal/deviceconfig"
	"github.com/srg/buttplug/internal/devicemanager"
	"github.com/srg/buttplug/internal/protocol"
	"github.com/srg/buttplug/internal/server"
	"github.com/srg/buttplug/internal/versionconvert"
	"github.com/srg/buttplug/internal/wire"
)

// Options configures a Server, tagged with go-defaults for zero-value
// defaults finer-grained than a single DefaultConfig() constructor would
// give.
type Options struct {
	Logger *logrus.Logger

	// ServerName is reported in ServerInfo's ServerName field.
	ServerName string `default:"buttplugd"`

	// MaxPingTime is the ping watchdog period. Zero disables pinging.
	MaxPingTime time.Duration `default:"0s"`

	// Registry supplies the protocol handlers available to this process.
	// Callers register brand Factories on it before calling NewServer.
	Registry *protocol.Registry

	// Config is the immutable device catalog/override set, normally built
	// via deviceconfig.NewBuilder and optionally
	// deviceconfig.ApplyPersistedDocument.
	Config *deviceconfig.Manager

	// Connectors maps a transport name to its HardwareConnector. A nil map
	// defaults to the built-in BLE connector alone.
	Connectors devicemanager.Connectors
}

// Server owns one devicemanager.Manager and hands out one server.Frontend
// per accepted connection, all sharing the same NameRegistry so a second
// client cannot claim a client_name the first is still using (spec §4.8).
type Server struct {
	logger  *logrus.Logger
	opts    Options
	devices *devicemanager.Manager
	names   *server.NameRegistry
}

// NewServer validates opts, fills in defaults, and constructs the shared
// device manager. It does not start scanning; call Serve per connection
// and StartScanning explicitly (typically from the first StartScanning
// message a client sends).
func NewServer(opts Options) (*Server, error) {
	defaults.SetDefaults(&opts)

	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.Config == nil {
		return nil, fmt.Errorf("buttplug: Options.Config is required")
	}
	if opts.Registry == nil {
		opts.Registry = protocol.NewRegistry()
	}
	if opts.Connectors == nil {
		opts.Connectors = devicemanager.Connectors{
			"ble": ble.NewConnector(opts.Logger),
		}
	}

	mgr := devicemanager.New(opts.Logger, opts.Config, opts.Registry, opts.Connectors)

	return &Server{
		logger:  opts.Logger,
		opts:    opts,
		devices: mgr,
		names:   server.NewNameRegistry(),
	}, nil
}

// Devices returns the shared device manager, for callers that want to
// drive scanning or inspect connected devices outside of a client session
// (e.g. the buttplugd devices CLI subcommand).
func (s *Server) Devices() *devicemanager.Manager { return s.devices }

// Serve decodes newline-delimited JSON message arrays from rwc, feeds them
// to a fresh per-connection Frontend, and writes every reply/unsolicited
// message back as its own JSON array. It blocks until ctx is cancelled, rwc
// returns an error, or the client disconnects, and closes rwc on return.
func (s *Server) Serve(ctx context.Context, rwc io.ReadWriteCloser) error {
	lookup := func(index uint32) (*deviceconfig.DeviceDefinition, bool) {
		dev, ok := s.devices.Device(index)
		if !ok {
			return nil, false
		}
		return &dev.Definition, true
	}

	writeErrCh := make(chan error, 1)
	send := func(msg wire.Message) {
		data, err := wire.EncodeArray([]wire.Message{msg})
		if err != nil {
			s.logger.WithField("error", err).Error("buttplug: failed to encode outgoing message")
			return
		}
		if _, err := rwc.Write(append(data, '\n')); err != nil {
			select {
			case writeErrCh <- err:
			default:
			}
		}
	}

	fe := server.New(server.Config{
		Logger:      s.logger,
		ServerName:  s.opts.ServerName,
		MaxPingTime: s.opts.MaxPingTime,
		Devices:     s.devices,
		Converter:   versionconvert.New(lookup),
		Checker:     checker.New(lookup),
		Names:       s.names,
		Send:        send,
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go fe.Run(runCtx)
	defer fe.Disconnect()
	go func() {
		<-runCtx.Done()
		_ = rwc.Close()
	}()

	dec := wire.NewStreamDecoder(rwc)
	for {
		select {
		case err := <-writeErrCh:
			return err
		default:
		}

		msgs, err := dec.Next()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err == io.EOF {
				return nil
			}
			return err
		}
		for _, msg := range msgs {
			fe.HandleMessage(ctx, msg)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}
