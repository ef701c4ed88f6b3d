// Package checker validates v4 OutputCmd/InputCmd requests against a
// connected device's realized feature set before they reach the device
// task queue (spec §4.6, §7). It never touches hardware; its only job is
// to turn a malformed or out-of-range request into the right typed error
// before any output reaches an actuator.
package checker

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/srg/buttplug/internal/deviceconfig"
	"github.com/srg/buttplug/internal/feature"
	"github.com/srg/buttplug/internal/wire"
)

// DeviceLookup resolves a connected device's realized definition.
type DeviceLookup func(index uint32) (*deviceconfig.DeviceDefinition, bool)

// Checker validates commands against live device state.
type Checker struct {
	lookup DeviceLookup
}

// New constructs a Checker bound to lookup.
func New(lookup DeviceLookup) *Checker {
	return &Checker{lookup: lookup}
}

// CheckOutput validates cmd, returning the resolved feature for each
// OutputCommand in order, or the first error encountered.
func (c *Checker) CheckOutput(cmd wire.OutputCmd) ([]feature.ServerDeviceFeature, error) {
	def, ok := c.lookup(cmd.DeviceIndex)
	if !ok {
		return nil, &wire.DeviceNotAvailableError{Index: cmd.DeviceIndex}
	}

	resolved := make([]feature.ServerDeviceFeature, 0, len(cmd.Commands))
	for _, oc := range cmd.Commands {
		id, err := uuid.Parse(oc.FeatureId)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed feature id %q", wire.ErrProtocolRequirement, oc.FeatureId)
		}
		f, ok := def.FeatureByID(id)
		if !ok {
			return nil, fmt.Errorf("%w: feature %s", wire.ErrDeviceFeatureIndex, oc.FeatureId)
		}
		kind := feature.OutputType(oc.Output)
		if !f.Output.Has(kind) {
			return nil, &wire.MessageNotSupportedError{Kind: oc.Output}
		}
		resolved = append(resolved, f)
	}
	return resolved, nil
}

// CheckInput validates cmd, returning the resolved feature or the error.
func (c *Checker) CheckInput(cmd wire.InputCmd) (feature.ServerDeviceFeature, error) {
	def, ok := c.lookup(cmd.DeviceIndex)
	if !ok {
		return feature.ServerDeviceFeature{}, &wire.DeviceNotAvailableError{Index: cmd.DeviceIndex}
	}

	id, err := uuid.Parse(cmd.FeatureId)
	if err != nil {
		return feature.ServerDeviceFeature{}, fmt.Errorf("%w: malformed feature id %q", wire.ErrProtocolRequirement, cmd.FeatureId)
	}
	f, ok := def.FeatureByID(id)
	if !ok {
		return feature.ServerDeviceFeature{}, fmt.Errorf("%w: feature %s", wire.ErrDeviceSensorIndex, cmd.FeatureId)
	}
	kind := feature.InputType(cmd.Input)
	block := f.Input.Get(kind)
	if block == nil {
		return feature.ServerDeviceFeature{}, &wire.MessageNotSupportedError{Kind: cmd.Input}
	}
	inputCmdKind := feature.InputCommandType(cmd.Command)
	if !block.Supports(inputCmdKind) {
		return feature.ServerDeviceFeature{}, fmt.Errorf("%w: %s does not support %s", wire.ErrDeviceSensorTypeMismatch, cmd.Input, cmd.Command)
	}
	return f, nil
}

// CheckStop validates that index names a connected device; StopDeviceCmd
// carries no feature-level payload to check.
func (c *Checker) CheckStop(index uint32) error {
	if _, ok := c.lookup(index); !ok {
		return &wire.DeviceNotAvailableError{Index: index}
	}
	return nil
}

// IsIdempotent reports whether next is identical to last for output
// deduplication purposes (spec's testable property 3): same device, same
// set of feature/output/value triples regardless of order.
func IsIdempotent(last, next wire.OutputCmd) bool {
	if last.DeviceIndex != next.DeviceIndex || len(last.Commands) != len(next.Commands) {
		return false
	}
	key := func(c wire.OutputCommand) string { return c.FeatureId + "\x00" + c.Output }
	lastByKey := make(map[string]float64, len(last.Commands))
	for _, c := range last.Commands {
		lastByKey[key(c)] = c.Value
	}
	for _, c := range next.Commands {
		v, ok := lastByKey[key(c)]
		if !ok || v != c.Value {
			return false
		}
	}
	return true
}
