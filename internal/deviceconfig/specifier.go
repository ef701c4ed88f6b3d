package deviceconfig

import "strings"

// SpecifierKind tags the ProtocolCommunicationSpecifier union (spec §3).
type SpecifierKind string

const (
	SpecifierBluetoothLE           SpecifierKind = "BluetoothLE"
	SpecifierHid                   SpecifierKind = "Hid"
	SpecifierUsb                   SpecifierKind = "Usb"
	SpecifierSerial                SpecifierKind = "Serial"
	SpecifierXInput                SpecifierKind = "XInput"
	SpecifierLovenseConnectService SpecifierKind = "LovenseConnectService"
	SpecifierWebsocket             SpecifierKind = "Websocket"
)

// BluetoothLESpecifier matches a BLE-advertising device by advertised name
// or service UUID; either side may wildcard a trailing "*" for a prefix
// match.
type BluetoothLESpecifier struct {
	Names    []string
	Services []string
}

// WebsocketSpecifier matches a device identifying itself over a websocket
// transport by name.
type WebsocketSpecifier struct {
	Names []string
}

// SerialSpecifier matches a serial device by port string.
type SerialSpecifier struct {
	Port string
}

// UsbSpecifier / HidSpecifier match by exact vendor+product id.
type UsbSpecifier struct {
	VendorID  uint16
	ProductID uint16
}

type HidSpecifier struct {
	VendorID  uint16
	ProductID uint16
}

// ProtocolCommunicationSpecifier is the tagged union over transport-specific
// device-matching criteria (spec §3). Exactly one of the typed fields is
// populated, selected by Kind. XInput and LovenseConnectService carry no
// payload: they are singleton specifiers that always match.
type ProtocolCommunicationSpecifier struct {
	Kind SpecifierKind

	BluetoothLE *BluetoothLESpecifier
	Websocket   *WebsocketSpecifier
	Serial      *SerialSpecifier
	Usb         *UsbSpecifier
	Hid         *HidSpecifier
}

// matchName reports whether candidate matches pattern, where a trailing "*"
// on either side means a prefix match.
func matchName(pattern, candidate string) bool {
	pWild := strings.HasSuffix(pattern, "*")
	cWild := strings.HasSuffix(candidate, "*")
	switch {
	case pWild && cWild:
		p := strings.TrimSuffix(pattern, "*")
		c := strings.TrimSuffix(candidate, "*")
		return strings.HasPrefix(p, c) || strings.HasPrefix(c, p)
	case pWild:
		return strings.HasPrefix(candidate, strings.TrimSuffix(pattern, "*"))
	case cWild:
		return strings.HasPrefix(pattern, strings.TrimSuffix(candidate, "*"))
	default:
		return pattern == candidate
	}
}

func anyNameMatches(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if matchName(x, y) {
				return true
			}
		}
	}
	return false
}

func anyStringMatches(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// Matches implements the pattern-match equality defined in spec §3: this is
// explicitly NOT structural equality.
func (s ProtocolCommunicationSpecifier) Matches(other ProtocolCommunicationSpecifier) bool {
	if s.Kind != other.Kind {
		return false
	}
	switch s.Kind {
	case SpecifierBluetoothLE:
		if s.BluetoothLE == nil || other.BluetoothLE == nil {
			return false
		}
		return anyNameMatches(s.BluetoothLE.Names, other.BluetoothLE.Names) ||
			anyStringMatches(s.BluetoothLE.Services, other.BluetoothLE.Services)
	case SpecifierWebsocket:
		if s.Websocket == nil || other.Websocket == nil {
			return false
		}
		return anyNameMatches(s.Websocket.Names, other.Websocket.Names)
	case SpecifierSerial:
		if s.Serial == nil || other.Serial == nil {
			return false
		}
		return s.Serial.Port == other.Serial.Port
	case SpecifierUsb:
		if s.Usb == nil || other.Usb == nil {
			return false
		}
		return s.Usb.VendorID == other.Usb.VendorID && s.Usb.ProductID == other.Usb.ProductID
	case SpecifierHid:
		if s.Hid == nil || other.Hid == nil {
			return false
		}
		return s.Hid.VendorID == other.Hid.VendorID && s.Hid.ProductID == other.Hid.ProductID
	case SpecifierXInput, SpecifierLovenseConnectService:
		return true
	default:
		return false
	}
}
