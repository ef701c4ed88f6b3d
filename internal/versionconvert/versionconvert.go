// Package versionconvert implements spec §4.7's up/down message
// conversion between the legacy v0-v3 wire shapes and the v4 shapes the
// rest of the server speaks internally. Conversion needs live device
// state (to resolve positional feature indices), so the converter is
// constructed per-session against a device-lookup callback rather than
// being a pure function of the message alone.
package versionconvert

import (
	"fmt"

	"github.com/srg/buttplug/internal/deviceconfig"
	"github.com/srg/buttplug/internal/feature"
	"github.com/srg/buttplug/internal/wire"
)

// DeviceLookup resolves a connected device's realized definition, the
// same shape the device manager materializes. Conversion fails with
// DeviceNotAvailableError if the device is not found.
type DeviceLookup func(index uint32) (*deviceconfig.DeviceDefinition, bool)

// Converter up/down-converts between legacy wire shapes and v4.
type Converter struct {
	lookup DeviceLookup
	// originating, when set, remembers the inbound v<4 message a
	// SensorReading/BatteryLevelReading/RSSILevelReading must be
	// down-converted against (spec §4.7's down-conversion quirk).
	originating map[uint32]wire.Message
}

// New constructs a Converter bound to lookup.
func New(lookup DeviceLookup) *Converter {
	return &Converter{lookup: lookup, originating: make(map[uint32]wire.Message)}
}

// RememberOriginating records msg as the client request that produced
// outbound Id, so a later down-conversion of a reading can recover the
// legacy reply shape the client expects.
func (c *Converter) RememberOriginating(id wire.Id, msg wire.Message) {
	c.originating[uint32(id)] = msg
}

func (c *Converter) takeOriginating(id wire.Id) (wire.Message, bool) {
	m, ok := c.originating[uint32(id)]
	if ok {
		delete(c.originating, uint32(id))
	}
	return m, ok
}

// positionalOutputFeatures returns, in definition order, the features whose
// output map contains kind. This is the "kind-filtered positional list"
// spec §9's open question calls out: recomputed fresh on every call,
// never cached, because definitions can change between calls (device
// reconnect, user config edit).
func positionalOutputFeatures(def *deviceconfig.DeviceDefinition, kind feature.OutputType) []feature.ServerDeviceFeature {
	var out []feature.ServerDeviceFeature
	for _, f := range def.OrderedFeatures() {
		if f.Output.Has(kind) {
			out = append(out, f)
		}
	}
	return out
}

func positionalInputFeatures(def *deviceconfig.DeviceDefinition, kind feature.InputType) []feature.ServerDeviceFeature {
	var out []feature.ServerDeviceFeature
	for _, f := range def.OrderedFeatures() {
		if f.Input.Has(kind) {
			out = append(out, f)
		}
	}
	return out
}

// allScalarFeatures returns, in definition order, every feature exposing
// any output kind at all -- the "all ScalarCmd-accepting features" list
// v3 ScalarCmd indexes into (spec §4.7 table).
func allScalarFeatures(def *deviceconfig.DeviceDefinition) []feature.ServerDeviceFeature {
	var out []feature.ServerDeviceFeature
	for _, f := range def.OrderedFeatures() {
		if f.Output != nil && len(f.Output.Kinds()) > 0 {
			out = append(out, f)
		}
	}
	return out
}

func allReadableInputFeatures(def *deviceconfig.DeviceDefinition) []feature.ServerDeviceFeature {
	var out []feature.ServerDeviceFeature
	for _, f := range def.OrderedFeatures() {
		if f.Input == nil {
			continue
		}
		for _, k := range f.Input.Kinds() {
			if f.Input.Get(k).Supports(feature.InputCommandRead) {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

// UpConvert translates any supported inbound message into its v4
// OutputCmd/InputCmd equivalent. Messages already at v4 pass through
// (the caller decodes those directly from the wire). Forbidden messages
// return ErrMessageConversion.
func (c *Converter) UpConvert(msg wire.Message) (wire.Message, error) {
	switch m := msg.(type) {
	case wire.RequestLog, wire.FleshlightLaunchFW12Cmd, wire.KiirooCmd, wire.LovenseCmd:
		return nil, fmt.Errorf("%w: %s is forbidden", wire.ErrMessageConversion, msg.Name())

	case wire.SingleMotorVibrateCmd:
		def, ok := c.lookup(m.DeviceIndex)
		if !ok {
			return nil, &wire.DeviceNotAvailableError{Index: m.DeviceIndex}
		}
		feats := positionalOutputFeatures(def, feature.OutputVibrate)
		if len(feats) == 0 {
			return nil, fmt.Errorf("%w: device has no Vibrate feature", wire.ErrMessageConversion)
		}
		cmds := make([]wire.OutputCommand, len(feats))
		for i, f := range feats {
			cmds[i] = wire.OutputCommand{FeatureId: f.ID.String(), Output: string(feature.OutputVibrate), Value: m.Speed}
		}
		return wire.OutputCmd{Id: m.Id, DeviceIndex: m.DeviceIndex, Commands: cmds}, nil

	case wire.VorzeA10CycloneCmd:
		def, ok := c.lookup(m.DeviceIndex)
		if !ok {
			return nil, &wire.DeviceNotAvailableError{Index: m.DeviceIndex}
		}
		feats := positionalOutputFeatures(def, feature.OutputRotate)
		if len(feats) == 0 {
			return nil, fmt.Errorf("%w: device has no Rotate feature", wire.ErrMessageConversion)
		}
		speed := float64(m.Speed) / 99.0
		cmds := make([]wire.OutputCommand, len(feats))
		for i, f := range feats {
			cmds[i] = wire.OutputCommand{FeatureId: f.ID.String(), Output: string(feature.OutputRotate), Value: speed}
		}
		return wire.OutputCmd{Id: m.Id, DeviceIndex: m.DeviceIndex, Commands: cmds}, nil

	case wire.VibrateCmd:
		def, ok := c.lookup(m.DeviceIndex)
		if !ok {
			return nil, &wire.DeviceNotAvailableError{Index: m.DeviceIndex}
		}
		feats := positionalOutputFeatures(def, feature.OutputVibrate)
		cmds := make([]wire.OutputCommand, 0, len(m.Speeds))
		for _, sc := range m.Speeds {
			if int(sc.Index) >= len(feats) {
				return nil, fmt.Errorf("%w: vibrate index %d out of range", wire.ErrDeviceFeatureIndex, sc.Index)
			}
			f := feats[sc.Index]
			cmds = append(cmds, wire.OutputCommand{FeatureId: f.ID.String(), Output: string(feature.OutputVibrate), Value: sc.Speed})
		}
		return wire.OutputCmd{Id: m.Id, DeviceIndex: m.DeviceIndex, Commands: cmds}, nil

	case wire.RotateCmd:
		def, ok := c.lookup(m.DeviceIndex)
		if !ok {
			return nil, &wire.DeviceNotAvailableError{Index: m.DeviceIndex}
		}
		feats := positionalOutputFeatures(def, feature.OutputRotateWithDirection)
		cmds := make([]wire.OutputCommand, 0, len(m.Rotations))
		for _, rc := range m.Rotations {
			if int(rc.Index) >= len(feats) {
				return nil, fmt.Errorf("%w: rotate index %d out of range", wire.ErrDeviceFeatureIndex, rc.Index)
			}
			f := feats[rc.Index]
			speed := rc.Speed
			if !rc.Clockwise {
				speed = -speed
			}
			cmds = append(cmds, wire.OutputCommand{FeatureId: f.ID.String(), Output: string(feature.OutputRotateWithDirection), Value: speed})
		}
		return wire.OutputCmd{Id: m.Id, DeviceIndex: m.DeviceIndex, Commands: cmds}, nil

	case wire.LinearCmd:
		def, ok := c.lookup(m.DeviceIndex)
		if !ok {
			return nil, &wire.DeviceNotAvailableError{Index: m.DeviceIndex}
		}
		feats := positionalOutputFeatures(def, feature.OutputPositionWithDuration)
		cmds := make([]wire.OutputCommand, 0, len(m.Vectors))
		for _, vc := range m.Vectors {
			if int(vc.Index) >= len(feats) {
				return nil, fmt.Errorf("%w: linear index %d out of range", wire.ErrDeviceFeatureIndex, vc.Index)
			}
			f := feats[vc.Index]
			cmds = append(cmds, wire.OutputCommand{FeatureId: f.ID.String(), Output: string(feature.OutputPositionWithDuration), Value: vc.Position})
		}
		return wire.OutputCmd{Id: m.Id, DeviceIndex: m.DeviceIndex, Commands: cmds}, nil

	case wire.BatteryLevelCmd:
		def, ok := c.lookup(m.DeviceIndex)
		if !ok {
			return nil, &wire.DeviceNotAvailableError{Index: m.DeviceIndex}
		}
		feats := positionalInputFeatures(def, feature.InputBattery)
		if len(feats) == 0 {
			return nil, fmt.Errorf("%w: device has no Battery feature", wire.ErrMessageConversion)
		}
		return wire.InputCmd{Id: m.Id, DeviceIndex: m.DeviceIndex, FeatureId: feats[0].ID.String(), Input: string(feature.InputBattery), Command: wire.InputCommandRead}, nil

	case wire.RSSILevelCmd:
		def, ok := c.lookup(m.DeviceIndex)
		if !ok {
			return nil, &wire.DeviceNotAvailableError{Index: m.DeviceIndex}
		}
		feats := positionalInputFeatures(def, feature.InputRssi)
		if len(feats) == 0 {
			return nil, fmt.Errorf("%w: device has no Rssi feature", wire.ErrMessageConversion)
		}
		return wire.InputCmd{Id: m.Id, DeviceIndex: m.DeviceIndex, FeatureId: feats[0].ID.String(), Input: string(feature.InputRssi), Command: wire.InputCommandRead}, nil

	case wire.ScalarCmdV3:
		def, ok := c.lookup(m.DeviceIndex)
		if !ok {
			return nil, &wire.DeviceNotAvailableError{Index: m.DeviceIndex}
		}
		feats := allScalarFeatures(def)
		cmds := make([]wire.OutputCommand, 0, len(m.Scalars))
		for _, sc := range m.Scalars {
			if int(sc.Index) >= len(feats) {
				return nil, fmt.Errorf("%w: scalar index %d out of range", wire.ErrDeviceFeatureIndex, sc.Index)
			}
			f := feats[sc.Index]
			cmds = append(cmds, wire.OutputCommand{FeatureId: f.ID.String(), Output: sc.Actuator, Value: sc.Scalar})
		}
		return wire.OutputCmd{Id: m.Id, DeviceIndex: m.DeviceIndex, Commands: cmds}, nil

	case wire.SensorReadCmdV3:
		def, ok := c.lookup(m.DeviceIndex)
		if !ok {
			return nil, &wire.DeviceNotAvailableError{Index: m.DeviceIndex}
		}
		feats := allReadableInputFeatures(def)
		if int(m.SensorIndex) >= len(feats) {
			return nil, fmt.Errorf("%w: sensor index %d out of range", wire.ErrDeviceSensorIndex, m.SensorIndex)
		}
		f := feats[m.SensorIndex]
		return wire.InputCmd{Id: m.Id, DeviceIndex: m.DeviceIndex, FeatureId: f.ID.String(), Input: m.SensorType, Command: wire.InputCommandRead}, nil

	default:
		// Already v4, or a message with no conversion (Ping,
		// StartScanning, ...): pass through unchanged.
		return msg, nil
	}
}

// DownConvert translates a v4 outbound message to target, recovering the
// legacy reply shape for readings via the originating client message when
// one was remembered (spec §4.7).
func (c *Converter) DownConvert(msg wire.Message, target wire.SpecVersion) (wire.Message, error) {
	if target >= wire.SpecV4 {
		return msg, nil
	}

	switch m := msg.(type) {
	case wire.InputReading:
		orig, hasOrig := c.takeOriginating(m.Id)
		if !hasOrig {
			return nil, fmt.Errorf("%w: no originating message remembered for reading %d", wire.ErrMessageConversion, m.Id)
		}
		switch orig.(type) {
		case wire.BatteryLevelCmd:
			level := 0.0
			if len(m.Data) > 0 {
				level = float64(m.Data[0]) / 100.0
			}
			return wire.BatteryLevelReading{Id: m.Id, DeviceIndex: m.DeviceIndex, BatteryLevel: level}, nil
		case wire.RSSILevelCmd:
			var level int32
			if len(m.Data) > 0 {
				level = m.Data[0]
			}
			return wire.RSSILevelReading{Id: m.Id, DeviceIndex: m.DeviceIndex, RSSILevel: level}, nil
		default:
			return wire.SensorReading{Id: m.Id, DeviceIndex: m.DeviceIndex, SensorType: m.Input, Data: m.Data}, nil
		}
	case wire.ServerInfo:
		// Major-version compatibility quirk (spec §4.7): for requested
		// major < 4 the server must echo the client's own version back.
		if target < wire.SpecV4 {
			m.MessageVersion = target
		}
		return m, nil
	default:
		return msg, nil
	}
}
