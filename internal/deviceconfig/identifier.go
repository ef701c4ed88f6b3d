// Package deviceconfig implements the Device Configuration Manager (DCM):
// the catalog of base device definitions, the overlay of user definitions
// and policy, and device-index allocation (spec §4.2).
package deviceconfig

// BaseDeviceIdentifier keys the base catalog: a protocol name plus an
// optional sub-model identifier (spec §3).
type BaseDeviceIdentifier struct {
	Protocol   string
	Identifier *string
}

// Key returns a value suitable for map lookups. BaseDeviceIdentifier is not
// itself comparable-by-content as a Go map key: two distinct *string
// pointers holding the same sub-model name must collide, which struct
// equality on a pointer field will not give us.
func (b BaseDeviceIdentifier) Key() string {
	if b.Identifier == nil {
		return b.Protocol + "\x00"
	}
	return b.Protocol + "\x00" + *b.Identifier
}

// UserDeviceIdentifier keys live device instances and user overrides
// (spec §3). Address is opaque bytes-of-whatever-the-transport-uses,
// represented as its wire/string form.
type UserDeviceIdentifier struct {
	Address    string
	Protocol   string
	Identifier *string
}

func (u UserDeviceIdentifier) key() string {
	id := ""
	if u.Identifier != nil {
		id = *u.Identifier
	}
	return u.Address + "\x00" + u.Protocol + "\x00" + id
}

// ProtocolDefault returns the BaseDeviceIdentifier for this identifier's
// protocol with no sub-model, used as the final lookup fallback in
// DeviceDefinition (spec §4.2 rule 3).
func (u UserDeviceIdentifier) ProtocolDefault() BaseDeviceIdentifier {
	return BaseDeviceIdentifier{Protocol: u.Protocol}
}

// AsBase returns the BaseDeviceIdentifier matching this instance's own
// protocol+identifier, used as lookup rule 2.
func (u UserDeviceIdentifier) AsBase() BaseDeviceIdentifier {
	return BaseDeviceIdentifier{Protocol: u.Protocol, Identifier: u.Identifier}
}
