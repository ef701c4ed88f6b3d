// Package server implements the v0-v4 session state machine fronting the
// device manager: handshake, ping timer, per-client spec-version latch,
// and routing of checked commands into internal/checker,
// internal/versionconvert, and internal/devicemanager (spec §4.8).
//
// Frontend is transport-agnostic: it consumes decoded wire.Message values
// and calls a Send callback with the replies, so the same state machine
// serves a websocket, a unix socket, or an in-process pipe without any
// framing logic living here.
package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/buttplug/internal/checker"
	"github.com/srg/buttplug/internal/devicemanager"
	"github.com/srg/buttplug/internal/feature"
	"github.com/srg/buttplug/internal/groutine"
	"github.com/srg/buttplug/internal/protocol"
	"github.com/srg/buttplug/internal/versionconvert"
	"github.com/srg/buttplug/internal/wire"
)

// Config collects the collaborators one Frontend needs. Devices/Converter/
// Checker are normally all built against the same devicemanager.Manager.
type Config struct {
	Logger      *logrus.Logger
	ServerName  string
	MaxPingTime time.Duration

	Devices   *devicemanager.Manager
	Converter *versionconvert.Converter
	Checker   *checker.Checker
	Names     *NameRegistry

	// Send delivers one unsolicited or reply message to the client's
	// transport. Called from whatever goroutine produced the message;
	// implementations must be safe for concurrent use.
	Send func(msg wire.Message)
}

// Frontend is one client session (spec §4.8's "at most one client per
// server instance at a time" scoped to one accepted connection, per
// SPEC_FULL's multi-transport resolution).
type Frontend struct {
	cfg    Config
	logger *logrus.Logger

	mu          sync.Mutex
	connected   bool
	clientName  string
	specVersion wire.SpecVersion
	specLatched bool
	pingedOut   bool

	ping *pingTimer

	cancelForward context.CancelFunc
	forwarderWG   sync.WaitGroup
}

// New constructs a Frontend. Call Run to start event forwarding before
// feeding it HandleMessage calls.
func New(cfg Config) *Frontend {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = "buttplugd"
	}
	f := &Frontend{cfg: cfg, logger: logger}
	f.ping = newPingTimer(cfg.MaxPingTime, f.onPingTimeout)
	return f
}

// Run starts the background forwarder that turns devicemanager.Events and
// per-device hardware.Events into unsolicited wire messages. It returns
// once ctx is cancelled or Disconnect is called.
func (f *Frontend) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	f.mu.Lock()
	f.cancelForward = cancel
	f.mu.Unlock()

	sub := f.cfg.Devices.Events().Subscribe()
	defer sub.Unsubscribe()

	deviceCancels := make(map[uint32]context.CancelFunc)
	defer func() {
		for _, c := range deviceCancels {
			c()
		}
	}()

	for {
		ev, ok := sub.Next(ctx)
		if !ok {
			return
		}
		switch ev.Kind {
		case devicemanager.EventDeviceAdded:
			f.emit(wire.DeviceAdded{DeviceInfo: deviceInfoOf(ev.Device)})
			devCtx, devCancel := context.WithCancel(ctx)
			deviceCancels[ev.Device.Index] = devCancel
			f.forwarderWG.Add(1)
			groutine.GoSupervised(devCtx, f.logger, fmt.Sprintf("notify-device-%d", ev.Device.Index), func(gctx context.Context) {
				defer f.forwarderWG.Done()
				f.forwardDeviceEvents(gctx, ev.Device)
			})
		case devicemanager.EventDeviceRemoved:
			if c, ok := deviceCancels[ev.Device.Index]; ok {
				c()
				delete(deviceCancels, ev.Device.Index)
			}
			f.emit(wire.DeviceRemoved{DeviceIndex: ev.Device.Index})
		case devicemanager.EventScanFinished:
			f.emit(wire.ScanningFinished{})
		}
	}
}

// forwardDeviceEvents decodes one device's hardware events into
// InputReading messages for as long as devCtx is live.
func (f *Frontend) forwardDeviceEvents(devCtx context.Context, dev *devicemanager.LiveDevice) {
	sub := dev.Hardware.Events().Subscribe()
	defer sub.Unsubscribe()

	for {
		ev, ok := sub.Next(devCtx)
		if !ok {
			return
		}
		ref, value, ok := dev.Handler.DecodeEvent(ev)
		if !ok {
			continue
		}
		f.emit(wire.InputReading{
			DeviceIndex: dev.Index,
			FeatureId:   ref.FeatureID,
			Data:        []int32{int32(value)},
		})
	}
}

func deviceInfoOf(dev *devicemanager.LiveDevice) wire.DeviceInfo {
	feats := dev.Definition.OrderedFeatures()
	out := wire.DeviceInfo{DeviceIndex: dev.Index, DeviceName: dev.Definition.Name, Features: make([]wire.DeviceFeatureInfo, 0, len(feats))}
	for _, feat := range feats {
		out.Features = append(out.Features, wire.DeviceFeatureInfo{
			FeatureId:   feat.ID.String(),
			Description: feat.Description,
		})
	}
	return out
}

// emit down-converts msg to the session's latched spec version, if any
// has been negotiated yet, and hands it to Send.
func (f *Frontend) emit(msg wire.Message) {
	f.mu.Lock()
	target := f.specVersion
	latched := f.specLatched
	f.mu.Unlock()

	if latched && target < wire.CurrentSpecVersion {
		down, err := f.cfg.Converter.DownConvert(msg, target)
		if err == nil {
			msg = down
		} else {
			f.logger.WithField("error", err).Debug("server: down-conversion failed, sending v4 shape")
		}
	}
	f.cfg.Send(msg)
}

// HandleMessage processes one inbound client message and delivers its reply
// through Config.Send; it returns nothing. Every message gets exactly one
// reply: Ok, Error, or a typed response.
func (f *Frontend) HandleMessage(ctx context.Context, msg wire.Message) {
	id := wire.IdOf(msg)

	f.mu.Lock()
	connected := f.connected
	f.mu.Unlock()

	if req, ok := msg.(wire.RequestServerInfo); ok {
		f.handleHandshake(req)
		return
	}

	if !connected {
		if f.ping.expired() {
			f.emit(mapError(id, wire.ErrPingedOut))
			return
		}
		f.emit(mapError(id, wire.ErrRequestServerInfoExpected))
		return
	}

	if p, ok := msg.(wire.Ping); ok {
		f.handlePing(p)
		return
	}

	v4, err := f.cfg.Converter.UpConvert(msg)
	if err != nil {
		f.emit(mapError(id, err))
		return
	}

	if err := f.route(ctx, id, v4); err != nil {
		f.emit(mapError(id, err))
		return
	}
}

func (f *Frontend) handleHandshake(req wire.RequestServerInfo) {
	f.mu.Lock()
	if f.connected {
		f.mu.Unlock()
		f.emit(mapError(req.Id, wire.ErrHandshakeAlreadyHappened))
		return
	}
	f.mu.Unlock()

	if !f.cfg.Names.Claim(req.ClientName) {
		f.emit(mapError(req.Id, wire.ErrReconnectDenied))
		return
	}

	f.mu.Lock()
	f.connected = true
	f.clientName = req.ClientName
	f.specVersion = req.MessageVersion
	f.specLatched = true
	f.mu.Unlock()

	if f.cfg.MaxPingTime > 0 {
		f.ping.start()
	}

	maxPing := uint32(f.cfg.MaxPingTime / time.Millisecond)
	info := wire.ServerInfo{Id: req.Id, ServerName: f.cfg.ServerName, MessageVersion: wire.CurrentSpecVersion, MaxPingTime: maxPing}
	// Major-version compatibility quirk (spec §4.7): pre-v4 clients get
	// their own version echoed back, not the server's.
	if req.MessageVersion < wire.CurrentSpecVersion {
		info.MessageVersion = req.MessageVersion
	}
	f.cfg.Send(info)
}

func (f *Frontend) handlePing(p wire.Ping) {
	if f.cfg.MaxPingTime <= 0 {
		f.emit(mapError(p.Id, wire.ErrPingTimerNotRunning))
		return
	}
	f.ping.reset()
	f.emit(wire.Ok{Id: p.Id})
}

func (f *Frontend) onPingTimeout() {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	f.emit(wire.Error{Id: 0, ErrorCode: wire.ErrorPing, ErrorMessage: wire.ErrPingedOut.Error()})
}

// Disconnect issues StopScanning + StopAllDevices bypassing version
// checking and stops the ping timer (spec §4.8).
func (f *Frontend) Disconnect() {
	f.cfg.Devices.StopScanning()
	for _, dev := range f.cfg.Devices.Devices() {
		dev.Task.Stop(context.Background())
	}
	f.ping.stop()

	f.mu.Lock()
	f.connected = false
	cancel := f.cancelForward
	f.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	f.forwarderWG.Wait()
}

// route dispatches an already-up-converted v4 message to the device
// manager, checker, and per-device task queue.
func (f *Frontend) route(ctx context.Context, id wire.Id, msg wire.Message) error {
	switch m := msg.(type) {
	case wire.StartScanning:
		if err := f.cfg.Devices.StartScanning(ctx); err != nil {
			return err
		}
		f.cfg.Send(wire.Ok{Id: id})
	case wire.StopScanning:
		f.cfg.Devices.StopScanning()
		f.cfg.Send(wire.Ok{Id: id})
	case wire.RequestDeviceList:
		f.cfg.Send(wire.DeviceList{Id: id, Devices: f.deviceList()})
	case wire.StopAllDevices:
		for _, dev := range f.cfg.Devices.Devices() {
			dev.Task.Stop(ctx)
		}
		f.cfg.Send(wire.Ok{Id: id})
	case wire.StopDeviceCmd:
		if err := f.cfg.Checker.CheckStop(m.DeviceIndex); err != nil {
			return err
		}
		dev, _ := f.cfg.Devices.Device(m.DeviceIndex)
		dev.Task.Stop(ctx)
		f.cfg.Send(wire.Ok{Id: id})
	case wire.OutputCmd:
		if err := f.routeOutput(m); err != nil {
			return err
		}
		f.cfg.Send(wire.Ok{Id: id})
	case wire.OutputVecCmd:
		for _, cmd := range m.Cmds {
			if err := f.routeOutput(cmd); err != nil {
				return err
			}
		}
		f.cfg.Send(wire.Ok{Id: id})
	case wire.InputCmd:
		if err := f.routeInput(ctx, m); err != nil {
			return err
		}
		f.cfg.Send(wire.Ok{Id: id})
	default:
		return fmt.Errorf("%w: %s", wire.ErrUnexpectedMessageType, msg.Name())
	}
	return nil
}

func (f *Frontend) deviceList() []wire.DeviceInfo {
	devs := f.cfg.Devices.Devices()
	out := make([]wire.DeviceInfo, 0, len(devs))
	for _, d := range devs {
		out = append(out, deviceInfoOf(d))
	}
	return out
}

func (f *Frontend) routeOutput(cmd wire.OutputCmd) error {
	resolved, err := f.cfg.Checker.CheckOutput(cmd)
	if err != nil {
		return err
	}
	dev, ok := f.cfg.Devices.Device(cmd.DeviceIndex)
	if !ok {
		return &wire.DeviceNotAvailableError{Index: cmd.DeviceIndex}
	}
	for i, oc := range cmd.Commands {
		feat := resolved[i]
		kind := feature.OutputType(oc.Output)
		scaled, err := scaleOutput(feat, kind, oc.Value)
		if err != nil {
			return fmt.Errorf("%w: %s", wire.ErrProtocolRequirement, err)
		}
		index, _ := dev.Definition.FeatureIndex(feat.ID)
		ref := protocol.FeatureRef{FeatureID: oc.FeatureId, Index: index}
		dev.Task.SendOutput(ref, kind, scaled)
	}
	return nil
}

func (f *Frontend) routeInput(ctx context.Context, cmd wire.InputCmd) error {
	feat, err := f.cfg.Checker.CheckInput(cmd)
	if err != nil {
		return err
	}
	dev, ok := f.cfg.Devices.Device(cmd.DeviceIndex)
	if !ok {
		return &wire.DeviceNotAvailableError{Index: cmd.DeviceIndex}
	}
	index, _ := dev.Definition.FeatureIndex(feat.ID)
	ref := protocol.FeatureRef{FeatureID: feat.ID.String(), Index: index}
	kind := feature.InputType(cmd.Input)
	inputCmd := feature.InputCommandType(cmd.Command)
	return dev.Task.Input(ctx, ref, kind, inputCmd)
}

// scaleOutput resolves the output block matching kind and scales v through
// its configured range (spec §4.1).
func scaleOutput(feat feature.ServerDeviceFeature, kind feature.OutputType, v float64) (int32, error) {
	o := feat.Output
	switch kind {
	case feature.OutputVibrate:
		return o.Vibrate.CalculateScaledFloat(v)
	case feature.OutputRotate:
		return o.Rotate.CalculateScaledFloat(v)
	case feature.OutputRotateWithDirection:
		return o.RotateWithDirection.ValueProperties.CalculateScaledFloat(v)
	case feature.OutputOscillate:
		return o.Oscillate.CalculateScaledFloat(v)
	case feature.OutputConstrict:
		return o.Constrict.CalculateScaledFloat(v)
	case feature.OutputHeater:
		return o.Heater.CalculateScaledFloat(v)
	case feature.OutputLed:
		return o.Led.CalculateScaledFloat(v)
	case feature.OutputPosition:
		return o.Position.CalculateScaledFloat(v)
	case feature.OutputPositionWithDuration:
		return o.PositionWithDuration.Position.CalculateScaledFloat(v)
	case feature.OutputSpray:
		return o.Spray.CalculateScaledFloat(v)
	default:
		return 0, fmt.Errorf("unscalable output kind %q", kind)
	}
}
