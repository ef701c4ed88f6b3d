package deviceconfig

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/srg/buttplug/internal/feature"
)

// BaseDeviceDefinition is the catalog-provided shape of a device model: a
// display name and its ordered feature list (spec §3).
type BaseDeviceDefinition struct {
	Name     string
	Features []feature.ServerDeviceFeature
}

// UserConfig is the per-instance, user-supplied configuration layered over
// a base or user device definition (spec §3, §6).
type UserConfig struct {
	Index            uint32
	DisplayName      string
	Allow            bool
	Deny             bool
	MessageGap       *time.Duration
	FeatureOverrides []feature.ServerDeviceFeature // may reference BaseID
}

// FeatureMap is an insertion-ordered, UUID-keyed map of a realized device's
// features: ordered traversal for positional indexing, O(1) lookup by id
// for BaseID resolution.
type FeatureMap = *orderedmap.OrderedMap[uuid.UUID, feature.ServerDeviceFeature]

func newFeatureMap() FeatureMap {
	return orderedmap.New[uuid.UUID, feature.ServerDeviceFeature]()
}

// DeviceDefinition is a realized definition for a device instance: the base
// definition's name plus the merged, ordered feature set and the user's
// instance config (spec §3).
type DeviceDefinition struct {
	Name       string
	UserConfig UserConfig
	Features   FeatureMap
}

// OrderedFeatures returns the merged features in catalog order.
func (d *DeviceDefinition) OrderedFeatures() []feature.ServerDeviceFeature {
	if d.Features == nil {
		return nil
	}
	out := make([]feature.ServerDeviceFeature, 0, d.Features.Len())
	for pair := d.Features.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// FeatureByID looks up a feature by its UUID.
func (d *DeviceDefinition) FeatureByID(id uuid.UUID) (feature.ServerDeviceFeature, bool) {
	if d.Features == nil {
		return feature.ServerDeviceFeature{}, false
	}
	return d.Features.Get(id)
}

// FeatureIndex returns a feature's catalog-order position, matching the
// index devicemanager.precomputeStopState assigns when it builds the same
// feature's stop command. Callers route live commands through this so a
// feature with siblings of the same BaseID never addresses a different
// physical actuator than its own precomputed stop command.
func (d *DeviceDefinition) FeatureIndex(id uuid.UUID) (uint32, bool) {
	if d.Features == nil {
		return 0, false
	}
	i := uint32(0)
	for pair := d.Features.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Key == id {
			return i, true
		}
		i++
	}
	return 0, false
}

// mergeFeatures builds the realized FeatureMap for a device instance: every
// base feature, with user overrides (matched by BaseID) applied on top, in
// base order.
//
// An override whose BaseID is not found in base is a build-time error
// (invariant 3, spec §3): mergeFeatures returns an *UnknownBaseIDError,
// and the caller adds the owning identifier when it reports it.
func mergeFeatures(logger *logrus.Logger, base []feature.ServerDeviceFeature, overrides []feature.ServerDeviceFeature) (FeatureMap, error) {
	byBase := make(map[uuid.UUID]feature.ServerDeviceFeature, len(overrides))
	for _, o := range overrides {
		if !o.HasBaseID() {
			continue
		}
		byBase[o.BaseID] = o
	}

	fm := newFeatureMap()
	baseIDs := make(map[uuid.UUID]bool, len(base))
	for _, bf := range base {
		baseIDs[bf.ID] = true
		merged := bf
		if ov, ok := byBase[bf.ID]; ok {
			merged = applyOverride(bf, ov)
			if logger != nil {
				logFeatureOverrideDiff(logger, bf.Description, bf, merged)
			}
		}
		fm.Set(merged.ID, merged)
	}

	for baseID := range byBase {
		if !baseIDs[baseID] {
			return nil, &UnknownBaseIDError{BaseID: baseID}
		}
	}

	// Overrides with no BaseID are additional, protocol-private features
	// (e.g. a feature the user config adds that has no catalog analog).
	for _, o := range overrides {
		if !o.HasBaseID() {
			fm.Set(o.ID, o)
		}
	}

	return fm, nil
}

// applyOverride layers a user override's narrower ranges / disabled flags
// onto a base feature. The override's own Output/Input blocks, when
// present, replace the base's wholesale: range narrowing happens once, at
// override-authoring time, not by further composing ranges at merge time.
func applyOverride(base, override feature.ServerDeviceFeature) feature.ServerDeviceFeature {
	merged := base
	merged.BaseID = base.ID
	if override.Description != "" {
		merged.Description = override.Description
	}
	if override.Output != nil {
		merged.Output = override.Output
	}
	if override.Input != nil {
		merged.Input = override.Input
	}
	if override.AltProtocolIndex != nil {
		merged.AltProtocolIndex = override.AltProtocolIndex
	}
	return merged
}

// UnknownBaseIDError reports a user feature override whose BaseID does not
// resolve within the owning device's base feature set (spec §3 invariant 3).
type UnknownBaseIDError struct {
	BaseID uuid.UUID
}

func (e *UnknownBaseIDError) Error() string {
	return "feature override references unknown base_id " + e.BaseID.String()
}
