package deviceconfig

import (
	"fmt"
	"sync"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
)

// userEntry is one row of the live user_device_definitions table: the
// identifier it was stored under plus its realized definition.
type userEntry struct {
	id  UserDeviceIdentifier
	def DeviceDefinition
}

// Manager is the built Device Configuration Manager: an immutable base
// catalog plus concurrently-mutable user overlays (spec §4.2).
//
// The base catalog is frozen after Build and needs only read access, so it
// is plain maps. user_device_definitions and user specifiers are mutated
// concurrently by the server frontend (config edits) and the device
// manager (index reservation on first connect): user_device_definitions is
// backed by cornelk/hashmap's lock-free, sharded map (spec §5), and user
// specifiers by a plain map guarded by an RWMutex.
type Manager struct {
	logger *logrus.Logger

	baseDefs       map[string]BaseDeviceDefinition
	baseSpecifiers map[string][]ProtocolCommunicationSpecifier

	userSpecifiersMu sync.RWMutex
	userSpecifiers   map[string][]ProtocolCommunicationSpecifier

	userDefs *hashmap.Map[string, *userEntry]
}

// BaseSpecifiers returns the communication specifiers registered for
// protocol, from the base catalog.
func (m *Manager) BaseSpecifiers(protocol string) []ProtocolCommunicationSpecifier {
	return m.baseSpecifiers[protocol]
}

// UserSpecifiers returns the communication specifiers registered for
// protocol by user configuration.
func (m *Manager) UserSpecifiers(protocol string) []ProtocolCommunicationSpecifier {
	m.userSpecifiersMu.RLock()
	defer m.userSpecifiersMu.RUnlock()
	return m.userSpecifiers[protocol]
}

// AddUserSpecifier registers an additional user-supplied specifier for
// protocol.
func (m *Manager) AddUserSpecifier(protocol string, spec ProtocolCommunicationSpecifier) {
	m.userSpecifiersMu.Lock()
	defer m.userSpecifiersMu.Unlock()
	m.userSpecifiers[protocol] = append(m.userSpecifiers[protocol], spec)
}

// AddressAllowed implements spec §4.2's address_allowed query and testable
// property 6: deny wins outright; otherwise, a non-empty allow-list makes
// itself exclusive.
func (m *Manager) AddressAllowed(addr string) bool {
	denied := false
	anyAllowEntry := false
	addrAllowed := false

	m.userDefs.Range(func(_ string, e *userEntry) bool {
		if e.id.Address != addr {
			return true
		}
		if e.def.UserConfig.Deny {
			denied = true
			return false
		}
		if e.def.UserConfig.Allow {
			addrAllowed = true
		}
		return true
	})
	if denied {
		return false
	}

	m.userDefs.Range(func(_ string, e *userEntry) bool {
		if e.def.UserConfig.Allow {
			anyAllowEntry = true
			return false
		}
		return true
	})

	if anyAllowEntry && !addrAllowed {
		return false
	}
	return true
}

// DeviceDefinition resolves the realized definition for id, per the
// four-step lookup in spec §4.2: exact user entry, base (protocol,
// identifier), base (protocol, nil), or not found. A definition
// materialized from the base catalog is written back into
// user_device_definitions, bound to a freshly allocated device index, so
// reconnections are stable for the rest of the session.
func (m *Manager) DeviceDefinition(id UserDeviceIdentifier) (*DeviceDefinition, error) {
	if e, ok := m.userDefs.Get(id.key()); ok {
		def := e.def
		return &def, nil
	}

	if base, ok := m.baseDefs[id.AsBase().Key()]; ok {
		return m.materialize(id, base)
	}
	if base, ok := m.baseDefs[id.ProtocolDefault().Key()]; ok {
		return m.materialize(id, base)
	}
	return nil, nil
}

func (m *Manager) materialize(id UserDeviceIdentifier, base BaseDeviceDefinition) (*DeviceDefinition, error) {
	fm, err := mergeFeatures(m.logger, base.Features, nil)
	if err != nil {
		return nil, fmt.Errorf("materializing %+v: %w", id, err)
	}
	def := DeviceDefinition{
		Name: base.Name,
		UserConfig: UserConfig{
			Index: m.allocateIndex(0),
		},
		Features: fm,
	}
	m.userDefs.Set(id.key(), &userEntry{id: id, def: def})
	m.logger.WithFields(logrus.Fields{
		"address": id.Address, "protocol": id.Protocol, "device_index": def.UserConfig.Index,
	}).Info("materialized device definition from base catalog")
	return &def, nil
}

// usedIndices returns the set of device_index values currently claimed by
// any user device definition.
func (m *Manager) usedIndices() map[uint32]bool {
	used := make(map[uint32]bool)
	m.userDefs.Range(func(_ string, e *userEntry) bool {
		used[e.def.UserConfig.Index] = true
		return true
	})
	return used
}

// allocateIndex picks the smallest unused u32 starting at start, wrapping
// on overflow (spec §4.2's hole-filling allocator, glossary "index hole").
func (m *Manager) allocateIndex(start uint32) uint32 {
	used := m.usedIndices()
	idx := start
	for used[idx] {
		idx++
		if idx == start {
			// Every u32 is in use; cannot happen in practice, but the
			// search must terminate.
			break
		}
	}
	return idx
}

// AddUserDeviceDefinition inserts or replaces the user definition for id.
// If preferredIndex is already claimed by a different identifier, the
// smallest free index at or after preferredIndex (wrapping) is used
// instead.
func (m *Manager) AddUserDeviceDefinition(id UserDeviceIdentifier, def DeviceDefinition, preferredIndex uint32) {
	used := m.usedIndices()
	if existing, ok := m.userDefs.Get(id.key()); ok {
		// Reuse of an existing identifier's own index is always allowed.
		delete(used, existing.def.UserConfig.Index)
	}
	idx := preferredIndex
	for used[idx] {
		idx++
	}
	def.UserConfig.Index = idx
	m.userDefs.Set(id.key(), &userEntry{id: id, def: def})
}

// RemoveUserDeviceDefinition deletes the stored override for id, freeing
// its index for reuse (the index becomes a hole).
func (m *Manager) RemoveUserDeviceDefinition(id UserDeviceIdentifier) {
	m.userDefs.Del(id.key())
}

// UserDeviceDefinition returns the stored override for id, if any, without
// falling back to the base catalog.
func (m *Manager) UserDeviceDefinition(id UserDeviceIdentifier) (DeviceDefinition, bool) {
	e, ok := m.userDefs.Get(id.key())
	if !ok {
		return DeviceDefinition{}, false
	}
	return e.def, true
}
