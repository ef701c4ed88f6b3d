package deviceconfig

import (
	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
)

// UserDeviceConfig is the builder-facing input shape for one user override:
// an identifier, its instance config, and feature overrides narrowing a
// base definition (or none, for an address-only allow/deny entry).
type UserDeviceConfig struct {
	ID         UserDeviceIdentifier
	UserConfig UserConfig
	// BaseDevice, when set, is resolved and merged at build time, same as
	// the runtime materialize() path. When nil, this entry only carries
	// allow/deny/display-name policy and has no features of its own yet.
	BaseDevice *BaseDeviceIdentifier
}

// Builder collects catalog and override data before producing an immutable
// Manager (spec §4.2 "Build").
type Builder struct {
	logger *logrus.Logger

	baseDefs       map[string]BaseDeviceDefinition
	baseSpecifiers map[string][]ProtocolCommunicationSpecifier
	userSpecifiers map[string][]ProtocolCommunicationSpecifier
	userConfigs    []UserDeviceConfig
}

// NewBuilder constructs an empty Builder. A nil logger is replaced by a new
// logrus logger.
func NewBuilder(logger *logrus.Logger) *Builder {
	if logger == nil {
		logger = logrus.New()
	}
	return &Builder{
		logger:         logger,
		baseDefs:       make(map[string]BaseDeviceDefinition),
		baseSpecifiers: make(map[string][]ProtocolCommunicationSpecifier),
		userSpecifiers: make(map[string][]ProtocolCommunicationSpecifier),
	}
}

// AddBaseDevice registers a catalog entry.
func (b *Builder) AddBaseDevice(id BaseDeviceIdentifier, def BaseDeviceDefinition) *Builder {
	b.baseDefs[id.Key()] = def
	return b
}

// AddBaseSpecifier registers a communication specifier for protocol in the
// base catalog.
func (b *Builder) AddBaseSpecifier(protocol string, spec ProtocolCommunicationSpecifier) *Builder {
	b.baseSpecifiers[protocol] = append(b.baseSpecifiers[protocol], spec)
	return b
}

// AddUserSpecifier registers a user-supplied communication specifier for
// protocol.
func (b *Builder) AddUserSpecifier(protocol string, spec ProtocolCommunicationSpecifier) *Builder {
	b.userSpecifiers[protocol] = append(b.userSpecifiers[protocol], spec)
	return b
}

// AddUserDeviceConfig queues a user override to be validated and merged at
// Build time.
func (b *Builder) AddUserDeviceConfig(cfg UserDeviceConfig) *Builder {
	b.userConfigs = append(b.userConfigs, cfg)
	return b
}

// Build validates and merges all queued user configuration into a Manager.
// A user config whose BaseDevice is not present in the catalog, or whose
// feature overrides reference an unknown base_id, is dropped with a logged
// warning rather than failing the build (spec §4.2).
func (b *Builder) Build() *Manager {
	userDefs := hashmap.New[string, *userEntry]()

	for _, cfg := range b.userConfigs {
		def := DeviceDefinition{UserConfig: cfg.UserConfig}

		if cfg.BaseDevice != nil {
			base, ok := b.baseDefs[cfg.BaseDevice.Key()]
			if !ok {
				b.logger.WithFields(logrus.Fields{
					"protocol": cfg.BaseDevice.Protocol, "address": cfg.ID.Address,
				}).Warn("dropping user device config: base_id not found in catalog")
				continue
			}
			def.Name = base.Name
			fm, err := mergeFeatures(b.logger, base.Features, cfg.UserConfig.FeatureOverrides)
			if err != nil {
				b.logger.WithFields(logrus.Fields{
					"protocol": cfg.BaseDevice.Protocol, "address": cfg.ID.Address, "error": err,
				}).Warn("dropping user device config: feature override inconsistent with base")
				continue
			}
			def.Features = fm
		} else {
			def.Features = newFeatureMap()
		}

		userDefs.Set(cfg.ID.key(), &userEntry{id: cfg.ID, def: def})
	}

	return &Manager{
		logger:         b.logger,
		baseDefs:       b.baseDefs,
		baseSpecifiers: b.baseSpecifiers,
		userSpecifiers: copySpecifierMap(b.userSpecifiers),
		userDefs:       userDefs,
	}
}

func copySpecifierMap(m map[string][]ProtocolCommunicationSpecifier) map[string][]ProtocolCommunicationSpecifier {
	out := make(map[string][]ProtocolCommunicationSpecifier, len(m))
	for k, v := range m {
		cp := make([]ProtocolCommunicationSpecifier, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}
