package deviceconfig

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/srg/buttplug/internal/feature"
)

// PersistedDocument is the on-disk shape of the optional user-configuration
// document described in spec §6: global allow/deny lists plus per-protocol,
// per-device overrides. This is an ambient I/O concern outside the core —
// the core only ever consumes the Builder calls this document is unpacked
// into, never the document itself.
type PersistedDocument struct {
	AllowList []string                        `yaml:"allow_list"`
	DenyList  []string                        `yaml:"deny_list"`
	Protocols map[string]PersistedProtocolDoc `yaml:"protocols"`
}

// PersistedProtocolDoc is one protocol's section of the persisted document.
type PersistedProtocolDoc struct {
	Communication []PersistedSpecifierDoc       `yaml:"communication"`
	Devices       map[string]PersistedDeviceDoc `yaml:"devices"`
}

// PersistedSpecifierDoc is the YAML shape of one ProtocolCommunicationSpecifier.
type PersistedSpecifierDoc struct {
	Kind      string   `yaml:"kind"`
	Names     []string `yaml:"names,omitempty"`
	Services  []string `yaml:"services,omitempty"`
	Port      string   `yaml:"port,omitempty"`
	VendorID  uint16   `yaml:"vendor_id,omitempty"`
	ProductID uint16   `yaml:"product_id,omitempty"`
}

// PersistedDeviceDoc is one device instance's persisted config: its
// feature overrides (referencing base features by base_id) plus the
// UserConfig fields named in spec §6.
type PersistedDeviceDoc struct {
	Address      string                `yaml:"address"`
	Identifier   *string               `yaml:"identifier,omitempty"`
	Features     []PersistedFeatureDoc `yaml:"features,omitempty"`
	Index        uint32                `yaml:"index"`
	DisplayName  string                `yaml:"display_name"`
	Allow        bool                  `yaml:"allow"`
	Deny         bool                  `yaml:"deny"`
	MessageGapMs *int64                `yaml:"message_gap_ms,omitempty"`
}

// PersistedFeatureDoc narrows or disables one base feature by UUID.
type PersistedFeatureDoc struct {
	BaseID   string `yaml:"base_id"`
	Disabled bool   `yaml:"disabled"`
}

// LoadPersistedDocument parses the YAML document shape from r.
func LoadPersistedDocument(r io.Reader) (*PersistedDocument, error) {
	var doc PersistedDocument
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing persisted device configuration: %w", err)
	}
	return &doc, nil
}

// specifierFromDoc converts one YAML specifier entry to its typed form.
func specifierFromDoc(d PersistedSpecifierDoc) (ProtocolCommunicationSpecifier, error) {
	switch SpecifierKind(d.Kind) {
	case SpecifierBluetoothLE:
		return ProtocolCommunicationSpecifier{Kind: SpecifierBluetoothLE, BluetoothLE: &BluetoothLESpecifier{Names: d.Names, Services: d.Services}}, nil
	case SpecifierWebsocket:
		return ProtocolCommunicationSpecifier{Kind: SpecifierWebsocket, Websocket: &WebsocketSpecifier{Names: d.Names}}, nil
	case SpecifierSerial:
		return ProtocolCommunicationSpecifier{Kind: SpecifierSerial, Serial: &SerialSpecifier{Port: d.Port}}, nil
	case SpecifierUsb:
		return ProtocolCommunicationSpecifier{Kind: SpecifierUsb, Usb: &UsbSpecifier{VendorID: d.VendorID, ProductID: d.ProductID}}, nil
	case SpecifierHid:
		return ProtocolCommunicationSpecifier{Kind: SpecifierHid, Hid: &HidSpecifier{VendorID: d.VendorID, ProductID: d.ProductID}}, nil
	case SpecifierXInput:
		return ProtocolCommunicationSpecifier{Kind: SpecifierXInput}, nil
	case SpecifierLovenseConnectService:
		return ProtocolCommunicationSpecifier{Kind: SpecifierLovenseConnectService}, nil
	default:
		return ProtocolCommunicationSpecifier{}, fmt.Errorf("unknown specifier kind %q", d.Kind)
	}
}

// ApplyPersistedDocument feeds a parsed document's contents into a Builder.
// Each device's base_id feature overrides are recorded as given; they are
// resolved against the base catalog later, in Builder.Build.
func ApplyPersistedDocument(b *Builder, doc *PersistedDocument) error {
	for protocol, pd := range doc.Protocols {
		for _, specDoc := range pd.Communication {
			spec, err := specifierFromDoc(specDoc)
			if err != nil {
				return fmt.Errorf("protocol %s: %w", protocol, err)
			}
			b.AddUserSpecifier(protocol, spec)
		}

		for identifier, devDoc := range pd.Devices {
			ident := identifier
			id := UserDeviceIdentifier{Address: devDoc.Address, Protocol: protocol, Identifier: &ident}

			overrides := make([]feature.ServerDeviceFeature, 0, len(devDoc.Features))
			for _, fd := range devDoc.Features {
				baseID, err := uuid.Parse(fd.BaseID)
				if err != nil {
					return fmt.Errorf("protocol %s device %s: invalid base_id %q: %w", protocol, identifier, fd.BaseID, err)
				}
				overrides = append(overrides, feature.ServerDeviceFeature{
					ID:     uuid.New(),
					BaseID: baseID,
					Output: disabledOutputOverride(fd.Disabled),
				})
			}

			cfg := UserDeviceConfig{
				ID: id,
				UserConfig: UserConfig{
					Index:            devDoc.Index,
					DisplayName:      devDoc.DisplayName,
					Allow:            devDoc.Allow,
					Deny:             devDoc.Deny,
					FeatureOverrides: overrides,
				},
				BaseDevice: &BaseDeviceIdentifier{Protocol: protocol, Identifier: &ident},
			}
			if devDoc.MessageGapMs != nil {
				d := time.Duration(*devDoc.MessageGapMs) * time.Millisecond
				cfg.UserConfig.MessageGap = &d
			}
			b.AddUserDeviceConfig(cfg)
		}
	}

	for _, addr := range doc.AllowList {
		b.AddUserDeviceConfig(UserDeviceConfig{ID: UserDeviceIdentifier{Address: addr}, UserConfig: UserConfig{Allow: true}})
	}
	for _, addr := range doc.DenyList {
		b.AddUserDeviceConfig(UserDeviceConfig{ID: UserDeviceIdentifier{Address: addr}, UserConfig: UserConfig{Deny: true}})
	}

	return nil
}

// disabledOutputOverride returns, when disabled is true, an output block
// holding only a disabled Vibrate entry, or nil otherwise. The override
// replaces the base feature's output block whole, so the feature's other
// output kinds are dropped. Narrower per-kind overrides are authored
// programmatically, not through this file format.
func disabledOutputOverride(disabled bool) *feature.ServerDeviceFeatureOutput {
	if !disabled {
		return nil
	}
	off := feature.ValueProperties{Disabled: true}
	return &feature.ServerDeviceFeatureOutput{Vibrate: &off}
}
