package deviceconfig

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/buttplug/internal/feature"
)

func TestDeviceDefinition_FeatureIndex(t *testing.T) {
	f1 := vibrateFeature(t)
	f2 := vibrateFeature(t)
	f3 := vibrateFeature(t)

	fm, err := mergeFeatures(testLogger(), []feature.ServerDeviceFeature{f1, f2, f3}, nil)
	require.NoError(t, err)
	def := &DeviceDefinition{Features: fm}

	idx, ok := def.FeatureIndex(f1.ID)
	require.True(t, ok)
	assert.Equal(t, uint32(0), idx)

	idx, ok = def.FeatureIndex(f2.ID)
	require.True(t, ok)
	assert.Equal(t, uint32(1), idx)

	idx, ok = def.FeatureIndex(f3.ID)
	require.True(t, ok)
	assert.Equal(t, uint32(2), idx)

	_, ok = def.FeatureIndex(uuid.New())
	assert.False(t, ok)
}

func TestDeviceDefinition_FeatureIndex_NilFeatures(t *testing.T) {
	def := &DeviceDefinition{}
	_, ok := def.FeatureIndex(uuid.New())
	assert.False(t, ok)
}
