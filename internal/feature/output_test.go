package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionProperties_Reverse(t *testing.T) {
	r, err := NewRangeWithLimit(IntRange{0, 20}, nil)
	require.NoError(t, err)

	forward := PositionProperties{ValueProperties: ValueProperties{Range: r}}
	got, err := forward.CalculateScaledFloat(0.25)
	require.NoError(t, err)
	assert.Equal(t, int32(5), got)

	reversed := PositionProperties{ValueProperties: ValueProperties{Range: r}, Reverse: true}
	got, err = reversed.CalculateScaledFloat(0.25)
	require.NoError(t, err)
	assert.Equal(t, int32(15), got, "reverse mirrors final value around target.End")
}

func TestValueProperties_Disabled(t *testing.T) {
	r, err := NewRangeWithLimit(IntRange{0, 20}, nil)
	require.NoError(t, err)

	p := ValueProperties{Range: r, Disabled: true}
	_, err = p.CalculateScaledFloat(0.5)
	assert.Error(t, err)
}

func TestServerDeviceFeatureOutput_KindsOrder(t *testing.T) {
	r, err := NewRangeWithLimit(IntRange{0, 20}, nil)
	require.NoError(t, err)
	vp := &ValueProperties{Range: r}

	out := &ServerDeviceFeatureOutput{Led: vp, Vibrate: vp, Spray: vp}
	assert.Equal(t, []OutputType{OutputVibrate, OutputLed, OutputSpray}, out.Kinds())
}

func TestServerDeviceFeatureOutput_Has_NilReceiver(t *testing.T) {
	var out *ServerDeviceFeatureOutput
	assert.False(t, out.Has(OutputVibrate))
	assert.Nil(t, out.Kinds())
}
