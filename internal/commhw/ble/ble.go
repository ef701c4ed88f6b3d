// Package ble is the BLE transport's HardwareConnector/Hardware
// implementation over github.com/go-ble/ble. Out of the spec's core
// scope (spec §1 treats transports as opaque), it exists so the BLE
// dependency and the device manager's scanning pipeline have a real
// implementation to run against in integration tests rather than a
// mock.
package ble

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	goble "github.com/go-ble/ble"
	"github.com/go-ble/ble/darwin"
	"github.com/sirupsen/logrus"

	"github.com/srg/buttplug/internal/hardware"
)

// DeviceFactory creates the platform's ble.Device. It is a var so tests
// can substitute a fake without touching real radios.
var DeviceFactory = func() (goble.Device, error) {
	return darwin.NewDevice()
}

// DefaultConnectTimeout bounds Connector.Connect's dial+discovery phase.
const DefaultConnectTimeout = 15 * time.Second

// Connector is the BLE HardwareConnector.
type Connector struct {
	logger *logrus.Logger
}

// NewConnector constructs a Connector. A nil logger is replaced by a new
// logrus logger.
func NewConnector(logger *logrus.Logger) *Connector {
	if logger == nil {
		logger = logrus.New()
	}
	return &Connector{logger: logger}
}

func (c *Connector) Transport() string { return "ble" }

// Scan streams BLE advertisements converted to hardware.DiscoveredDevice
// until ctx ends.
func (c *Connector) Scan(ctx context.Context, found chan<- hardware.DiscoveredDevice) error {
	dev, err := DeviceFactory()
	if err != nil {
		return fmt.Errorf("ble: creating scan device: %w", err)
	}
	goble.SetDefaultDevice(dev)

	handler := func(adv goble.Advertisement) {
		services := make([]string, len(adv.Services()))
		for i, s := range adv.Services() {
			services[i] = s.String()
		}
		dd := hardware.DiscoveredDevice{
			Address:      hardware.Address(adv.Addr().String()),
			Name:         adv.LocalName(),
			ServiceUUIDs: services,
			RSSI:         adv.RSSI(),
		}
		select {
		case found <- dd:
		case <-ctx.Done():
		}
	}

	err = dev.Scan(ctx, true, handler)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("ble: scan: %w", err)
	}
	return nil
}

// Connect dials addr, discovers its GATT profile, and returns a ready
// Hardware with no endpoints bound yet; a HardwareSpecializer binds
// protocol-specific characteristic UUIDs to symbolic Endpoints before a
// ProtocolHandler is attached.
func (c *Connector) Connect(ctx context.Context, addr hardware.Address) (hardware.Hardware, error) {
	dev, err := DeviceFactory()
	if err != nil {
		return nil, fmt.Errorf("ble: creating connect device: %w", err)
	}
	goble.SetDefaultDevice(dev)

	dialCtx, cancel := context.WithTimeout(ctx, DefaultConnectTimeout)
	defer cancel()

	client, err := goble.Dial(dialCtx, goble.NewAddr(string(addr)))
	if err != nil {
		return nil, fmt.Errorf("ble: dial %s: %w", addr, err)
	}

	profile, err := client.DiscoverProfile(true)
	if err != nil {
		_ = client.CancelConnection()
		return nil, fmt.Errorf("ble: discover profile for %s: %w", addr, err)
	}

	chars := make(map[string]*goble.Characteristic)
	for _, svc := range profile.Services {
		for _, ch := range svc.Characteristics {
			chars[normalizeUUID(ch.UUID.String())] = ch
		}
	}

	hw := &Hardware{
		logger:       c.logger,
		client:       client,
		chars:        chars,
		broadcast:    hardware.NewBroadcast[hardware.Event](c.logger, 0),
		lastActivity: time.Now(),
		bindings:     make(map[hardware.Endpoint]string),
	}
	return hw, nil
}

func normalizeUUID(u string) string {
	out := make([]byte, 0, len(u))
	for _, r := range u {
		if r == '-' {
			continue
		}
		if r >= 'A' && r <= 'Z' {
			r = r - 'A' + 'a'
		}
		out = append(out, byte(r))
	}
	return string(out)
}

// Hardware is the BLE hardware.Hardware implementation. Endpoint bindings
// are resolved by a HardwareSpecializer via BindEndpoint before a
// ProtocolHandler uses it; Execute/Subscribe on an unbound Endpoint
// returns an error rather than panicking.
type Hardware struct {
	logger *logrus.Logger
	client goble.Client

	mu           sync.RWMutex
	chars        map[string]*goble.Characteristic // normalized UUID -> characteristic
	bindings     map[hardware.Endpoint]string      // Endpoint -> normalized UUID
	subscribed   map[string]bool
	lastActivity time.Time

	broadcast *hardware.Broadcast[hardware.Event]
	closed    bool
}

// BindEndpoint associates a symbolic Endpoint with a characteristic UUID
// discovered on this connection. Returns an error if charUUID was not
// present in the discovered profile.
func (h *Hardware) BindEndpoint(ep hardware.Endpoint, charUUID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	norm := normalizeUUID(charUUID)
	if _, ok := h.chars[norm]; !ok {
		return fmt.Errorf("ble: characteristic %s not found on device", charUUID)
	}
	h.bindings[ep] = norm
	return nil
}

func (h *Hardware) Endpoints() []hardware.Endpoint {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]hardware.Endpoint, 0, len(h.bindings))
	for ep := range h.bindings {
		out = append(out, ep)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (h *Hardware) resolve(ep hardware.Endpoint) (*goble.Characteristic, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	uuid, ok := h.bindings[ep]
	if !ok {
		return nil, fmt.Errorf("ble: endpoint %s not bound", ep)
	}
	ch, ok := h.chars[uuid]
	if !ok {
		return nil, fmt.Errorf("ble: bound characteristic %s vanished", uuid)
	}
	return ch, nil
}

func (h *Hardware) Execute(ctx context.Context, cmd hardware.Command) error {
	ch, err := h.resolve(cmd.Endpoint)
	if err != nil {
		return err
	}

	switch cmd.Kind {
	case hardware.CommandWrite:
		err = h.client.WriteCharacteristic(ch, cmd.Data, true)
	case hardware.CommandWriteWithResponse:
		err = h.client.WriteCharacteristic(ch, cmd.Data, false)
	case hardware.CommandRead:
		var data []byte
		data, err = h.client.ReadCharacteristic(ch)
		if err == nil {
			h.broadcast.Publish(hardware.Event{Endpoint: cmd.Endpoint, Data: data})
		}
	case hardware.CommandSubscribe:
		err = h.subscribe(cmd.Endpoint, ch)
	case hardware.CommandUnsubscribe:
		err = h.client.Unsubscribe(ch, false)
	default:
		return fmt.Errorf("ble: unhandled command kind %s", cmd.Kind)
	}
	if err != nil {
		return fmt.Errorf("ble: %s on %s: %w", cmd.Kind, cmd.Endpoint, err)
	}

	h.mu.Lock()
	h.lastActivity = time.Now()
	h.mu.Unlock()
	return nil
}

func (h *Hardware) subscribe(ep hardware.Endpoint, ch *goble.Characteristic) error {
	h.mu.Lock()
	if h.subscribed == nil {
		h.subscribed = make(map[string]bool)
	}
	key := string(ep)
	if h.subscribed[key] {
		h.mu.Unlock()
		return nil
	}
	h.subscribed[key] = true
	h.mu.Unlock()

	return h.client.Subscribe(ch, false, func(data []byte) {
		h.mu.Lock()
		h.lastActivity = time.Now()
		h.mu.Unlock()
		h.broadcast.Publish(hardware.Event{Endpoint: ep, Data: data})
	})
}

func (h *Hardware) Events() *hardware.Broadcast[hardware.Event] { return h.broadcast }

func (h *Hardware) RSSI(ctx context.Context) (int, error) {
	return 0, fmt.Errorf("ble: RSSI not available on an established connection")
}

func (h *Hardware) LastActivity() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastActivity
}

func (h *Hardware) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	h.broadcast.Publish(hardware.Event{Disconnected: true})
	return h.client.CancelConnection()
}
