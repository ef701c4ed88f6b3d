package checker

import (
	"testing"

	"github.com/google/uuid"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/buttplug/internal/deviceconfig"
	"github.com/srg/buttplug/internal/feature"
	"github.com/srg/buttplug/internal/wire"
)

func newDef(feats ...feature.ServerDeviceFeature) *deviceconfig.DeviceDefinition {
	fm := orderedmap.New[uuid.UUID, feature.ServerDeviceFeature]()
	for _, f := range feats {
		fm.Set(f.ID, f)
	}
	return &deviceconfig.DeviceDefinition{Name: "test", Features: fm}
}

func TestCheckOutput_UnknownDevice(t *testing.T) {
	c := New(func(uint32) (*deviceconfig.DeviceDefinition, bool) { return nil, false })
	_, err := c.CheckOutput(wire.OutputCmd{DeviceIndex: 1})
	var notAvail *wire.DeviceNotAvailableError
	require.ErrorAs(t, err, &notAvail)
}

func TestCheckOutput_UnsupportedKind(t *testing.T) {
	id := uuid.New()
	def := newDef(feature.ServerDeviceFeature{ID: id, Output: &feature.ServerDeviceFeatureOutput{Vibrate: &feature.ValueProperties{}}})
	c := New(func(uint32) (*deviceconfig.DeviceDefinition, bool) { return def, true })

	_, err := c.CheckOutput(wire.OutputCmd{DeviceIndex: 1, Commands: []wire.OutputCommand{{FeatureId: id.String(), Output: "Rotate", Value: 1}}})
	var notSupported *wire.MessageNotSupportedError
	require.ErrorAs(t, err, &notSupported)
}

func TestCheckOutput_ResolvesFeature(t *testing.T) {
	id := uuid.New()
	def := newDef(feature.ServerDeviceFeature{ID: id, Output: &feature.ServerDeviceFeatureOutput{Vibrate: &feature.ValueProperties{}}})
	c := New(func(uint32) (*deviceconfig.DeviceDefinition, bool) { return def, true })

	feats, err := c.CheckOutput(wire.OutputCmd{DeviceIndex: 1, Commands: []wire.OutputCommand{{FeatureId: id.String(), Output: "Vibrate", Value: 1}}})
	require.NoError(t, err)
	require.Len(t, feats, 1)
	assert.Equal(t, id, feats[0].ID)
}

func TestCheckInput_CommandNotSupported(t *testing.T) {
	id := uuid.New()
	def := newDef(feature.ServerDeviceFeature{ID: id, Input: &feature.ServerDeviceFeatureInput{
		Battery: &feature.InputProperties{Commands: map[feature.InputCommandType]bool{feature.InputCommandRead: true}},
	}})
	c := New(func(uint32) (*deviceconfig.DeviceDefinition, bool) { return def, true })

	_, err := c.CheckInput(wire.InputCmd{DeviceIndex: 1, FeatureId: id.String(), Input: "Battery", Command: wire.InputCommandSubscribe})
	assert.ErrorIs(t, err, wire.ErrDeviceSensorTypeMismatch)
}

func TestIsIdempotent(t *testing.T) {
	a := wire.OutputCmd{DeviceIndex: 1, Commands: []wire.OutputCommand{{FeatureId: "x", Output: "Vibrate", Value: 0.5}}}
	b := wire.OutputCmd{DeviceIndex: 1, Commands: []wire.OutputCommand{{FeatureId: "x", Output: "Vibrate", Value: 0.5}}}
	assert.True(t, IsIdempotent(a, b))

	c := wire.OutputCmd{DeviceIndex: 1, Commands: []wire.OutputCommand{{FeatureId: "x", Output: "Vibrate", Value: 0.6}}}
	assert.False(t, IsIdempotent(a, c))
}
