package deviceconfig

import (
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/buttplug/internal/feature"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func vibrateFeature(t *testing.T) feature.ServerDeviceFeature {
	t.Helper()
	r, err := feature.NewRangeWithLimit(feature.IntRange{Start: 0, End: 20}, nil)
	require.NoError(t, err)
	return feature.ServerDeviceFeature{
		Description: "Vibrator",
		ID:          uuid.New(),
		Output:      &feature.ServerDeviceFeatureOutput{Vibrate: &feature.ValueProperties{Range: r}},
	}
}

// TestAllowDeny is testable property 6 of spec §8.
func TestAllowDeny(t *testing.T) {
	b := NewBuilder(testLogger())
	b.AddUserDeviceConfig(UserDeviceConfig{
		ID:         UserDeviceIdentifier{Address: "AA"},
		UserConfig: UserConfig{Allow: true},
	})
	b.AddUserDeviceConfig(UserDeviceConfig{
		ID:         UserDeviceIdentifier{Address: "BB"},
		UserConfig: UserConfig{Allow: false, Deny: false},
	})
	mgr := b.Build()

	assert.True(t, mgr.AddressAllowed("AA"), "explicit allow-list entry is allowed")
	assert.False(t, mgr.AddressAllowed("BB"), "allow-list is exclusive once non-empty")
	assert.False(t, mgr.AddressAllowed("CC"), "unknown address excluded once an allow entry exists")
}

func TestAllowDeny_DenyWinsOverAllow(t *testing.T) {
	b := NewBuilder(testLogger())
	b.AddUserDeviceConfig(UserDeviceConfig{
		ID:         UserDeviceIdentifier{Address: "AA"},
		UserConfig: UserConfig{Deny: true},
	})
	mgr := b.Build()

	assert.False(t, mgr.AddressAllowed("AA"))
	assert.True(t, mgr.AddressAllowed("BB"), "no allow-list entries means default allow")
}

func TestDeviceDefinition_LookupOrder(t *testing.T) {
	base := vibrateFeature(t)
	ident := "P"

	b := NewBuilder(testLogger())
	b.AddBaseDevice(BaseDeviceIdentifier{Protocol: "lovense", Identifier: &ident}, BaseDeviceDefinition{
		Name: "Lovense P", Features: []feature.ServerDeviceFeature{base},
	})
	b.AddBaseDevice(BaseDeviceIdentifier{Protocol: "lovense"}, BaseDeviceDefinition{
		Name: "Lovense Generic", Features: []feature.ServerDeviceFeature{base},
	})
	mgr := b.Build()

	// Exact sub-model match.
	def, err := mgr.DeviceDefinition(UserDeviceIdentifier{Address: "X", Protocol: "lovense", Identifier: &ident})
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Equal(t, "Lovense P", def.Name)

	// Protocol-default fallback.
	def, err = mgr.DeviceDefinition(UserDeviceIdentifier{Address: "Y", Protocol: "lovense"})
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Equal(t, "Lovense Generic", def.Name)

	// Write-back: the same identifier resolves to a stable index on a
	// second lookup, reusing the stored entry rather than reallocating.
	idxFirst := def.UserConfig.Index
	def2, err := mgr.DeviceDefinition(UserDeviceIdentifier{Address: "Y", Protocol: "lovense"})
	require.NoError(t, err)
	assert.Equal(t, idxFirst, def2.UserConfig.Index)

	// Unknown protocol.
	def, err = mgr.DeviceDefinition(UserDeviceIdentifier{Address: "Z", Protocol: "nope"})
	require.NoError(t, err)
	assert.Nil(t, def)
}

// TestIndexUniqueness is testable property 7 of spec §8.
func TestIndexUniqueness(t *testing.T) {
	base := vibrateFeature(t)
	b := NewBuilder(testLogger())
	b.AddBaseDevice(BaseDeviceIdentifier{Protocol: "lovense"}, BaseDeviceDefinition{
		Name: "Lovense Generic", Features: []feature.ServerDeviceFeature{base},
	})
	mgr := b.Build()

	seen := map[uint32]bool{}
	for _, addr := range []string{"A", "B", "C", "D"} {
		def, err := mgr.DeviceDefinition(UserDeviceIdentifier{Address: addr, Protocol: "lovense"})
		require.NoError(t, err)
		require.False(t, seen[def.UserConfig.Index], "index %d reused", def.UserConfig.Index)
		seen[def.UserConfig.Index] = true
	}
}

func TestAllocateIndex_HoleFilling(t *testing.T) {
	base := vibrateFeature(t)
	b := NewBuilder(testLogger())
	b.AddBaseDevice(BaseDeviceIdentifier{Protocol: "lovense"}, BaseDeviceDefinition{
		Name: "G", Features: []feature.ServerDeviceFeature{base},
	})
	mgr := b.Build()

	for _, addr := range []string{"A", "B", "C"} {
		_, err := mgr.DeviceDefinition(UserDeviceIdentifier{Address: addr, Protocol: "lovense"})
		require.NoError(t, err)
	}
	// Indices 0,1,2 now claimed. Remove the middle one and confirm the
	// next allocation fills the hole rather than using max+1.
	mgr.RemoveUserDeviceDefinition(UserDeviceIdentifier{Address: "B", Protocol: "lovense"})

	def, err := mgr.DeviceDefinition(UserDeviceIdentifier{Address: "D", Protocol: "lovense"})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), def.UserConfig.Index, "new registration fills the freed hole")
}

func TestSpecifier_Matches(t *testing.T) {
	cases := []struct {
		name string
		a, b ProtocolCommunicationSpecifier
		want bool
	}{
		{
			name: "ble exact name match",
			a:    ProtocolCommunicationSpecifier{Kind: SpecifierBluetoothLE, BluetoothLE: &BluetoothLESpecifier{Names: []string{"LVS-P"}}},
			b:    ProtocolCommunicationSpecifier{Kind: SpecifierBluetoothLE, BluetoothLE: &BluetoothLESpecifier{Names: []string{"LVS-P"}}},
			want: true,
		},
		{
			name: "ble wildcard prefix match",
			a:    ProtocolCommunicationSpecifier{Kind: SpecifierBluetoothLE, BluetoothLE: &BluetoothLESpecifier{Names: []string{"LVS-*"}}},
			b:    ProtocolCommunicationSpecifier{Kind: SpecifierBluetoothLE, BluetoothLE: &BluetoothLESpecifier{Names: []string{"LVS-P"}}},
			want: true,
		},
		{
			name: "ble service uuid match",
			a:    ProtocolCommunicationSpecifier{Kind: SpecifierBluetoothLE, BluetoothLE: &BluetoothLESpecifier{Services: []string{"abc"}}},
			b:    ProtocolCommunicationSpecifier{Kind: SpecifierBluetoothLE, BluetoothLE: &BluetoothLESpecifier{Services: []string{"abc"}}},
			want: true,
		},
		{
			name: "ble no overlap",
			a:    ProtocolCommunicationSpecifier{Kind: SpecifierBluetoothLE, BluetoothLE: &BluetoothLESpecifier{Names: []string{"LVS-P"}}},
			b:    ProtocolCommunicationSpecifier{Kind: SpecifierBluetoothLE, BluetoothLE: &BluetoothLESpecifier{Names: []string{"OTHER"}}},
			want: false,
		},
		{
			name: "usb exact vendor+product",
			a:    ProtocolCommunicationSpecifier{Kind: SpecifierUsb, Usb: &UsbSpecifier{VendorID: 1, ProductID: 2}},
			b:    ProtocolCommunicationSpecifier{Kind: SpecifierUsb, Usb: &UsbSpecifier{VendorID: 1, ProductID: 2}},
			want: true,
		},
		{
			name: "usb mismatched product",
			a:    ProtocolCommunicationSpecifier{Kind: SpecifierUsb, Usb: &UsbSpecifier{VendorID: 1, ProductID: 2}},
			b:    ProtocolCommunicationSpecifier{Kind: SpecifierUsb, Usb: &UsbSpecifier{VendorID: 1, ProductID: 3}},
			want: false,
		},
		{
			name: "xinput always matches",
			a:    ProtocolCommunicationSpecifier{Kind: SpecifierXInput},
			b:    ProtocolCommunicationSpecifier{Kind: SpecifierXInput},
			want: true,
		},
		{
			name: "different kinds never match",
			a:    ProtocolCommunicationSpecifier{Kind: SpecifierXInput},
			b:    ProtocolCommunicationSpecifier{Kind: SpecifierUsb, Usb: &UsbSpecifier{}},
			want: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.a.Matches(tc.b))
		})
	}
}

func TestBuild_DropsUnknownBaseDevice(t *testing.T) {
	b := NewBuilder(testLogger())
	b.AddUserDeviceConfig(UserDeviceConfig{
		ID:         UserDeviceIdentifier{Address: "A", Protocol: "ghost"},
		UserConfig: UserConfig{},
		BaseDevice: &BaseDeviceIdentifier{Protocol: "ghost"},
	})
	mgr := b.Build()

	_, ok := mgr.UserDeviceDefinition(UserDeviceIdentifier{Address: "A", Protocol: "ghost"})
	assert.False(t, ok, "user config with unresolvable base device is dropped, not fatal")
}

func TestBuild_DropsUnknownFeatureBaseID(t *testing.T) {
	base := vibrateFeature(t)
	b := NewBuilder(testLogger())
	b.AddBaseDevice(BaseDeviceIdentifier{Protocol: "lovense"}, BaseDeviceDefinition{
		Name: "G", Features: []feature.ServerDeviceFeature{base},
	})
	b.AddUserDeviceConfig(UserDeviceConfig{
		ID:         UserDeviceIdentifier{Address: "A", Protocol: "lovense"},
		BaseDevice: &BaseDeviceIdentifier{Protocol: "lovense"},
		UserConfig: UserConfig{
			FeatureOverrides: []feature.ServerDeviceFeature{{ID: uuid.New(), BaseID: uuid.New()}},
		},
	})
	mgr := b.Build()

	_, ok := mgr.UserDeviceDefinition(UserDeviceIdentifier{Address: "A", Protocol: "lovense"})
	assert.False(t, ok, "feature override with unknown base_id is dropped, not fatal")
}
