// Package devicemanager runs the scanning state machine and owns the live
// device map: the set of currently connected devices, keyed by the
// device index the Device Configuration Manager assigned them
// (spec §4.3).
package devicemanager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"

	"github.com/srg/buttplug/internal/deviceconfig"
	"github.com/srg/buttplug/internal/devicetask"
	"github.com/srg/buttplug/internal/feature"
	"github.com/srg/buttplug/internal/groutine"
	"github.com/srg/buttplug/internal/hardware"
	"github.com/srg/buttplug/internal/protocol"
)

// ScanState is the scanning state machine's closed set of states
// (spec §4.3): Idle -> BringupInProgress -> Active -> (ActiveStopRequested) -> Idle.
type ScanState int

const (
	ScanIdle ScanState = iota
	ScanBringupInProgress
	ScanActive
	ScanActiveStopRequested
)

func (s ScanState) String() string {
	switch s {
	case ScanIdle:
		return "Idle"
	case ScanBringupInProgress:
		return "BringupInProgress"
	case ScanActive:
		return "Active"
	case ScanActiveStopRequested:
		return "ActiveStopRequested"
	default:
		return fmt.Sprintf("ScanState(%d)", int(s))
	}
}

// LiveDevice is one connected device's runtime state: its realized
// definition, the hardware session, the protocol handler bound to it, and
// the task driving its command loop.
type LiveDevice struct {
	Index      uint32
	Identifier deviceconfig.UserDeviceIdentifier
	Definition deviceconfig.DeviceDefinition
	Hardware   hardware.Hardware
	Handler    protocol.Handler
	Task       *devicetask.Task
}

// EventKind distinguishes device-added/removed notifications published to
// the server layer (spec §4.3's device list change events).
type EventKind int

const (
	EventDeviceAdded EventKind = iota
	EventDeviceRemoved
	EventScanFinished
)

// Event is one device-list change, delivered to subscribers of Manager's
// broadcast.
type Event struct {
	Kind   EventKind
	Device *LiveDevice
}

// Manager owns the scanning state machine and the live device table.
// The live device set uses a cornelk/hashmap (read far more often than
// written); a plain mutex guards the small scan-state word.
type Manager struct {
	logger    *logrus.Logger
	config    *deviceconfig.Manager
	registry  *protocol.Registry
	connector func(transport string) (hardware.HardwareConnector, bool)

	mu        sync.Mutex
	scanState ScanState
	scanStop  context.CancelFunc

	// connecting tracks addresses currently mid-handshake, so two
	// concurrent advertisements for the same address don't race to
	// connect twice (spec §4.3's connecting_devices dedup set).
	connecting sync.Map

	devices *hashmap.Map[uint32, *LiveDevice]
	events  *hardware.Broadcast[Event]
}

// Connectors maps a transport name ("ble", "hid", ...) to its
// HardwareConnector.
type Connectors map[string]hardware.HardwareConnector

// New constructs a Manager. connectors supplies the transports available
// to this process; registry supplies the protocols.
func New(logger *logrus.Logger, config *deviceconfig.Manager, registry *protocol.Registry, connectors Connectors) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	return &Manager{
		logger:   logger,
		config:   config,
		registry: registry,
		connector: func(transport string) (hardware.HardwareConnector, bool) {
			c, ok := connectors[transport]
			return c, ok
		},
		devices: hashmap.New[uint32, *LiveDevice](),
		events:  hardware.NewBroadcast[Event](logger, 0),
	}
}

// Events returns the broadcast of device-list change events.
func (m *Manager) Events() *hardware.Broadcast[Event] { return m.events }

// State returns the current scanning state.
func (m *Manager) State() ScanState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scanState
}

// StartScanning transitions Idle -> BringupInProgress -> Active and begins
// scanning every registered transport. Returns an error if scanning is
// already in progress, matching spec §4.3's single-scan invariant.
func (m *Manager) StartScanning(ctx context.Context) error {
	m.mu.Lock()
	if m.scanState != ScanIdle {
		m.mu.Unlock()
		return fmt.Errorf("devicemanager: scan already in state %s", m.scanState)
	}
	m.scanState = ScanBringupInProgress
	scanCtx, cancel := context.WithCancel(ctx)
	m.scanStop = cancel
	m.mu.Unlock()

	transports := m.transportsInUse()
	found := make(chan hardware.DiscoveredDevice, 32)

	for _, transport := range transports {
		connector, ok := m.connector(transport)
		if !ok {
			m.logger.WithField("transport", transport).Warn("devicemanager: no connector registered for transport in use")
			continue
		}
		connector := connector
		transport := transport
		raw := make(chan hardware.DiscoveredDevice, 32)
		groutine.GoSupervised(scanCtx, m.logger, "scan-"+transport, func(gctx context.Context) {
			if err := connector.Scan(gctx, raw); err != nil && gctx.Err() == nil {
				m.logger.WithFields(logrus.Fields{"transport": transport, "error": err}).Error("devicemanager: scan ended with error")
			}
		})
		// A connector only knows its own discoveries, not the Transport
		// tag specifier matching needs; stamp it here rather than asking
		// every connector implementation to do it.
		groutine.GoSupervised(scanCtx, m.logger, "scan-tag-"+transport, func(gctx context.Context) {
			for {
				select {
				case <-gctx.Done():
					return
				case dd, ok := <-raw:
					if !ok {
						return
					}
					dd.Transport = transport
					select {
					case found <- dd:
					case <-gctx.Done():
						return
					}
				}
			}
		})
	}

	m.mu.Lock()
	m.scanState = ScanActive
	m.mu.Unlock()

	groutine.GoSupervised(scanCtx, m.logger, "scan-dispatch", func(gctx context.Context) {
		m.dispatchDiscoveries(gctx, found)
	})

	return nil
}

// StopScanning transitions Active -> ActiveStopRequested -> Idle. Safe to
// call when already idle.
func (m *Manager) StopScanning() {
	m.mu.Lock()
	switch m.scanState {
	case ScanIdle, ScanActiveStopRequested:
		// Already idle, or another caller is already stopping this scan.
		m.mu.Unlock()
		return
	}
	m.scanState = ScanActiveStopRequested
	stop := m.scanStop
	m.mu.Unlock()

	if stop != nil {
		stop()
	}

	m.mu.Lock()
	m.scanState = ScanIdle
	m.scanStop = nil
	m.mu.Unlock()

	m.events.Publish(Event{Kind: EventScanFinished})
}

func (m *Manager) transportsInUse() []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range m.registry.All() {
		for _, spec := range f.Specifiers() {
			t := transportOf(spec.Kind)
			if t != "" && !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}

func transportOf(kind deviceconfig.SpecifierKind) string {
	switch kind {
	case deviceconfig.SpecifierBluetoothLE, deviceconfig.SpecifierLovenseConnectService:
		return "ble"
	case deviceconfig.SpecifierHid:
		return "hid"
	case deviceconfig.SpecifierUsb:
		return "usb"
	case deviceconfig.SpecifierSerial:
		return "serial"
	case deviceconfig.SpecifierXInput:
		return "xinput"
	case deviceconfig.SpecifierWebsocket:
		return "websocket"
	default:
		return ""
	}
}

func (m *Manager) dispatchDiscoveries(ctx context.Context, found <-chan hardware.DiscoveredDevice) {
	for {
		select {
		case <-ctx.Done():
			return
		case dd, ok := <-found:
			if !ok {
				return
			}
			m.handleDiscovery(ctx, dd)
		}
	}
}

func (m *Manager) handleDiscovery(ctx context.Context, dd hardware.DiscoveredDevice) {
	addr := string(dd.Address)
	if _, alreadyConnecting := m.connecting.LoadOrStore(addr, struct{}{}); alreadyConnecting {
		return
	}
	defer m.connecting.Delete(addr)

	if !m.config.AddressAllowed(addr) {
		return
	}

	for _, f := range m.registry.All() {
		if !specifiersMatchDiscovery(f.Specifiers(), dd) {
			continue
		}
		if err := m.bringUp(ctx, f, dd); err != nil {
			m.logger.WithFields(logrus.Fields{
				"protocol": f.Name(), "address": addr, "error": err,
			}).Debug("devicemanager: bring-up attempt failed")
			continue
		}
		return
	}
}

func specifiersMatchDiscovery(specs []deviceconfig.ProtocolCommunicationSpecifier, dd hardware.DiscoveredDevice) bool {
	for _, candidate := range candidatesForDiscovery(dd) {
		for _, s := range specs {
			if s.Matches(candidate) {
				return true
			}
		}
	}
	return false
}

// candidatesForDiscovery builds the ProtocolCommunicationSpecifier shape(s)
// that a discovery on dd.Transport could match against. BLE discoveries can
// satisfy either a BluetoothLE specifier or the singleton
// LovenseConnectService specifier, so both are offered.
func candidatesForDiscovery(dd hardware.DiscoveredDevice) []deviceconfig.ProtocolCommunicationSpecifier {
	switch dd.Transport {
	case "ble":
		return []deviceconfig.ProtocolCommunicationSpecifier{
			{
				Kind: deviceconfig.SpecifierBluetoothLE,
				BluetoothLE: &deviceconfig.BluetoothLESpecifier{
					Names:    []string{dd.Name},
					Services: dd.ServiceUUIDs,
				},
			},
			{Kind: deviceconfig.SpecifierLovenseConnectService},
		}
	case "usb":
		return []deviceconfig.ProtocolCommunicationSpecifier{{
			Kind: deviceconfig.SpecifierUsb,
			Usb:  &deviceconfig.UsbSpecifier{VendorID: dd.VendorID, ProductID: dd.ProductID},
		}}
	case "hid":
		return []deviceconfig.ProtocolCommunicationSpecifier{{
			Kind: deviceconfig.SpecifierHid,
			Hid:  &deviceconfig.HidSpecifier{VendorID: dd.VendorID, ProductID: dd.ProductID},
		}}
	case "serial":
		return []deviceconfig.ProtocolCommunicationSpecifier{{
			Kind:   deviceconfig.SpecifierSerial,
			Serial: &deviceconfig.SerialSpecifier{Port: string(dd.Address)},
		}}
	case "xinput":
		return []deviceconfig.ProtocolCommunicationSpecifier{{Kind: deviceconfig.SpecifierXInput}}
	case "websocket":
		return []deviceconfig.ProtocolCommunicationSpecifier{{
			Kind:      deviceconfig.SpecifierWebsocket,
			Websocket: &deviceconfig.WebsocketSpecifier{Names: []string{dd.Name}},
		}}
	default:
		return nil
	}
}

// bringUp connects, identifies, initializes, resolves the device
// definition, allocates a Task, and publishes an EventDeviceAdded.
func (m *Manager) bringUp(ctx context.Context, f protocol.Factory, dd hardware.DiscoveredDevice) error {
	transport := transportOf(f.Specifiers()[0].Kind)
	connector, ok := m.connector(transport)
	if !ok {
		return fmt.Errorf("no connector for transport %q", transport)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	hw, err := connector.Connect(connectCtx, dd.Address)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	identifier := f.NewIdentifier(hw)
	baseID, err := identifier.Identify(connectCtx)
	if err != nil {
		_ = hw.Close()
		return fmt.Errorf("identify: %w", err)
	}

	userID := deviceconfig.UserDeviceIdentifier{
		Address:    string(dd.Address),
		Protocol:   string(f.Name()),
		Identifier: baseID.Identifier,
	}
	def, err := m.config.DeviceDefinition(userID)
	if err != nil {
		_ = hw.Close()
		return fmt.Errorf("resolve definition: %w", err)
	}
	if def == nil {
		_ = hw.Close()
		return fmt.Errorf("no device definition for %+v", userID)
	}

	if init, ok := identifier.(protocol.Initializer); ok {
		if err := init.Initialize(connectCtx, hw, def); err != nil {
			_ = hw.Close()
			return fmt.Errorf("initialize: %w", err)
		}
	}

	handler, ok := identifier.(protocol.Handler)
	if !ok {
		_ = hw.Close()
		return fmt.Errorf("identifier for protocol %q does not provide a Handler", f.Name())
	}

	live := &LiveDevice{
		Index:      def.UserConfig.Index,
		Identifier: userID,
		Definition: *def,
		Hardware:   hw,
		Handler:    handler,
	}
	stopCmds, inputs := precomputeStopState(connectCtx, m.logger, handler, def)
	live.Task = devicetask.New(devicetask.Config{
		Logger:       m.logger,
		Hardware:     hw,
		Handler:      handler,
		MessageGap:   messageGapOf(def),
		StopCommands: stopCmds,
		Inputs:       inputs,
	})

	// An index collision (stale catalog entry reusing an index still held
	// by a live device) must surface the old device's removal before the
	// new one's arrival, never the reverse.
	if old, ok := m.devices.Get(live.Index); ok {
		m.devices.Del(live.Index)
		old.Task.Close(context.Background())
		if err := old.Hardware.Close(); err != nil {
			m.logger.WithField("error", err).Warn("devicemanager: error closing hardware on index collision")
		}
		m.events.Publish(Event{Kind: EventDeviceRemoved, Device: old})
	}

	m.devices.Set(live.Index, live)
	m.events.Publish(Event{Kind: EventDeviceAdded, Device: live})
	m.logger.WithFields(logrus.Fields{"protocol": f.Name(), "address": dd.Address, "index": live.Index}).Info("device connected")
	return nil
}

// precomputeStopState derives, once at bring-up, the zero-valued stop
// commands and the subscribable input list a Task needs to implement
// spec §4.5's "Stop-command precomputation": one zero-valued command for
// the first OutputType in feature.Stoppable a feature declares, merged
// into a single overlap-deduplicated deque; Position and
// PositionWithDuration are never included since there is no universally
// safe "stop position" to synthesize.
func precomputeStopState(ctx context.Context, logger *logrus.Logger, handler protocol.Handler, def *deviceconfig.DeviceDefinition) ([]hardware.Command, []devicetask.SubscribableInput) {
	var deque []hardware.Command
	var inputs []devicetask.SubscribableInput

	for i, f := range def.OrderedFeatures() {
		ref := protocol.FeatureRef{FeatureID: f.ID.String(), Index: uint32(i)}

		for _, kind := range feature.Stoppable {
			if !f.Output.Has(kind) {
				continue
			}
			cmds, err := handler.HandleOutputCommand(ctx, ref, kind, 0)
			if err != nil {
				logger.WithFields(logrus.Fields{"feature": ref.FeatureID, "kind": kind, "error": err}).
					Warn("devicemanager: could not precompute stop command for feature")
				break
			}
			for _, c := range cmds {
				deque = hardware.MergeCommand(deque, c)
			}
			break
		}

		for _, kind := range f.Input.Kinds() {
			if f.Input.Get(kind).Supports(feature.InputCommandSubscribe) {
				inputs = append(inputs, devicetask.SubscribableInput{Ref: ref, Kind: kind})
			}
		}
	}

	return deque, inputs
}

func messageGapOf(def *deviceconfig.DeviceDefinition) time.Duration {
	if def.UserConfig.MessageGap != nil {
		return *def.UserConfig.MessageGap
	}
	return devicetask.DefaultMessageGap
}

// Device returns the live device at index, if connected.
func (m *Manager) Device(index uint32) (*LiveDevice, bool) {
	return m.devices.Get(index)
}

// Devices returns every currently connected device.
func (m *Manager) Devices() []*LiveDevice {
	out := make([]*LiveDevice, 0)
	m.devices.Range(func(_ uint32, d *LiveDevice) bool {
		out = append(out, d)
		return true
	})
	return out
}

// RemoveDevice disconnects and forgets the device at index, if present.
func (m *Manager) RemoveDevice(index uint32) {
	live, ok := m.devices.Get(index)
	if !ok {
		return
	}
	m.devices.Del(index)
	live.Task.Close(context.Background())
	if err := live.Hardware.Close(); err != nil {
		m.logger.WithField("error", err).Warn("devicemanager: error closing hardware on removal")
	}
	m.events.Publish(Event{Kind: EventDeviceRemoved, Device: live})
}
