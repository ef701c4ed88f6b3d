package devicemanager

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/buttplug/internal/deviceconfig"
	"github.com/srg/buttplug/internal/hardware"
	"github.com/srg/buttplug/internal/protocol"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestScanState_String(t *testing.T) {
	assert.Equal(t, "Idle", ScanIdle.String())
	assert.Equal(t, "Active", ScanActive.String())
}

func TestTransportOf(t *testing.T) {
	cases := map[deviceconfig.SpecifierKind]string{
		deviceconfig.SpecifierBluetoothLE:           "ble",
		deviceconfig.SpecifierLovenseConnectService: "ble",
		deviceconfig.SpecifierHid:                   "hid",
		deviceconfig.SpecifierUsb:                   "usb",
		deviceconfig.SpecifierSerial:                "serial",
		deviceconfig.SpecifierXInput:                "xinput",
		deviceconfig.SpecifierWebsocket:              "websocket",

	}
	for kind, want := range cases {
		assert.Equal(t, want, transportOf(kind))
	}
}

func TestSpecifiersMatchDiscovery(t *testing.T) {
	specs := []deviceconfig.ProtocolCommunicationSpecifier{
		{Kind: deviceconfig.SpecifierBluetoothLE, BluetoothLE: &deviceconfig.BluetoothLESpecifier{Names: []string{"LVS-*"}}},
	}
	assert.True(t, specifiersMatchDiscovery(specs, hardware.DiscoveredDevice{Transport: "ble", Name: "LVS-P"}))
	assert.False(t, specifiersMatchDiscovery(specs, hardware.DiscoveredDevice{Transport: "ble", Name: "OTHER"}))
	assert.False(t, specifiersMatchDiscovery(specs, hardware.DiscoveredDevice{Name: "LVS-P"}), "a discovery with no transport tag matches nothing")
}

func TestSpecifiersMatchDiscovery_Usb(t *testing.T) {
	specs := []deviceconfig.ProtocolCommunicationSpecifier{
		{Kind: deviceconfig.SpecifierUsb, Usb: &deviceconfig.UsbSpecifier{VendorID: 0x1234, ProductID: 0x5678}},
	}
	assert.True(t, specifiersMatchDiscovery(specs, hardware.DiscoveredDevice{Transport: "usb", VendorID: 0x1234, ProductID: 0x5678}))
	assert.False(t, specifiersMatchDiscovery(specs, hardware.DiscoveredDevice{Transport: "usb", VendorID: 0x1234, ProductID: 0x9999}))
	// A BLE specifier must never match a USB discovery, even one that
	// happens to carry a matching name by coincidence.
	bleSpecs := []deviceconfig.ProtocolCommunicationSpecifier{
		{Kind: deviceconfig.SpecifierBluetoothLE, BluetoothLE: &deviceconfig.BluetoothLESpecifier{Names: []string{"X"}}},
	}
	assert.False(t, specifiersMatchDiscovery(bleSpecs, hardware.DiscoveredDevice{Transport: "usb", Name: "X"}))
}

// fakeFactory is a minimal protocol.Factory used only to exercise Manager's
// transport-selection and discovery-matching logic, not a real brand.
type fakeFactory struct {
	name  protocol.Name
	specs []deviceconfig.ProtocolCommunicationSpecifier
}

func (f fakeFactory) Name() protocol.Name { return f.name }
func (f fakeFactory) Specifiers() []deviceconfig.ProtocolCommunicationSpecifier {
	return f.specs
}
func (f fakeFactory) NewIdentifier(hardware.Hardware) protocol.Identifier { return nil }

func newBLERegistry(name string, names []string) *protocol.Registry {
	r := protocol.NewRegistry()
	r.Register(fakeFactory{
		name: protocol.Name(name),
		specs: []deviceconfig.ProtocolCommunicationSpecifier{
			{Kind: deviceconfig.SpecifierBluetoothLE, BluetoothLE: &deviceconfig.BluetoothLESpecifier{Names: names}},
		},
	})
	return r
}

type noopConnector struct{}

func (noopConnector) Transport() string { return "ble" }
func (noopConnector) Scan(ctx context.Context, found chan<- hardware.DiscoveredDevice) error {
	<-ctx.Done()
	return nil
}
func (noopConnector) Connect(context.Context, hardware.Address) (hardware.Hardware, error) {
	return nil, errNeverCalled
}

var errNeverCalled = assertNeverCalledErr("connect should not be called in this test")

type assertNeverCalledErr string

func (e assertNeverCalledErr) Error() string { return string(e) }

func TestManager_StartStopScanning(t *testing.T) {
	cfg := deviceconfig.NewBuilder(testLogger()).Build()
	registry := newBLERegistry("lovense", []string{"LVS-*"})
	m := New(testLogger(), cfg, registry, Connectors{"ble": &noopConnector{}})

	require.Equal(t, ScanIdle, m.State())
	require.NoError(t, m.StartScanning(context.Background()))
	assert.Equal(t, ScanActive, m.State())

	err := m.StartScanning(context.Background())
	assert.Error(t, err, "starting a second scan while active is rejected")

	m.StopScanning()
	assert.Equal(t, ScanIdle, m.State())

	// Idempotent: stopping an already-idle scan must not panic or hang.
	m.StopScanning()
	assert.Equal(t, ScanIdle, m.State())
}

func TestManager_DeviceLifecycle(t *testing.T) {
	cfg := deviceconfig.NewBuilder(testLogger()).Build()
	registry := newBLERegistry("lovense", nil)
	m := New(testLogger(), cfg, registry, Connectors{})

	_, ok := m.Device(0)
	assert.False(t, ok)
	assert.Empty(t, m.Devices())

	m.RemoveDevice(42) // no-op on unknown index, must not panic
}
