package hardware

import (
	"context"
	"time"
)

// Address identifies a discoverable device on a transport, independent of
// any protocol interpretation of its contents (spec §3's device_address).
type Address string

// DiscoveredDevice is one result of a transport's scan, handed to the
// device manager's protocol-matching pipeline (spec §4.3).
type DiscoveredDevice struct {
	Address Address
	Name    string
	// Transport is the connector that produced this discovery (e.g. "ble",
	// "usb"), stamped by the device manager rather than the connector
	// itself, so specifier matching knows which candidate shape to build.
	Transport string
	// ServiceUUIDs, when the transport is advertisement-based (BLE),
	// carries the advertised service UUIDs used for specifier matching.
	ServiceUUIDs []string
	// VendorID/ProductID, when the transport is descriptor-based
	// (USB/HID), carries the device's reported identity.
	VendorID  uint16
	ProductID uint16
	RSSI      int
}

// HardwareConnector discovers and connects devices on one transport. A
// concrete implementation lives under internal/commhw/<transport>.
type HardwareConnector interface {
	// Transport names the kind this connector serves, e.g. "ble", "hid".
	Transport() string

	// Scan streams discovered devices on found until ctx is cancelled.
	// Scan must return promptly once ctx is done; it does not close found.
	Scan(ctx context.Context, found chan<- DiscoveredDevice) error

	// Connect establishes a session with addr and returns a ready-to-use
	// Hardware. The returned Hardware's Close must be called by the
	// caller when done.
	Connect(ctx context.Context, addr Address) (Hardware, error)
}

// HardwareSpecializer narrows a freshly connected Hardware instance to a
// specific protocol's needs before a ProtocolHandler is attached, e.g.
// resolving a BLE characteristic's MTU or negotiating a HID report
// descriptor. Optional: most protocols use Hardware as given.
type HardwareSpecializer interface {
	Specialize(ctx context.Context, hw Hardware) error
}

// Hardware is a live, connected device session. ProtocolHandlers issue
// Commands and receive Events through it; they never see transport-native
// types (spec §4.4).
type Hardware interface {
	// Endpoints lists the symbolic endpoints this connection actually
	// exposes, a subset of the closed Endpoint set.
	Endpoints() []Endpoint

	// Execute issues cmd and blocks until it is sent (not until any
	// response arrives; reads are delivered as Events).
	Execute(ctx context.Context, cmd Command) error

	// Events returns the broadcast all asynchronous data from this
	// Hardware is published to. Safe to call from multiple goroutines;
	// each caller should Subscribe its own Subscription.
	Events() *Broadcast[Event]

	// RSSI returns the last known signal strength, where meaningful.
	RSSI(ctx context.Context) (int, error)

	// LastActivity returns when data was last sent or received, used by
	// keepalive strategies to decide whether a ping command is due.
	LastActivity() time.Time

	// Close tears the session down. Safe to call more than once.
	Close() error
}
