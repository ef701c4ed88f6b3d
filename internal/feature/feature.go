package feature

import (
	"fmt"

	"github.com/google/uuid"
)

// ServerDeviceFeature is one addressable capability on a device: one
// vibrator, one sensor, etc. (spec §3).
type ServerDeviceFeature struct {
	Description string
	ID          uuid.UUID

	// BaseID links a user-override feature back to the catalog entry it
	// narrows. Empty (uuid.Nil) on catalog-native features.
	BaseID uuid.UUID

	// AltProtocolIndex is an opaque, driver-private discriminator some
	// protocol handlers use to pick a sub-addressing scheme; the core
	// never interprets it.
	AltProtocolIndex *uint32

	Output *ServerDeviceFeatureOutput
	Input  *ServerDeviceFeatureInput
}

// HasBaseID reports whether this feature links back to a catalog entry.
func (f *ServerDeviceFeature) HasBaseID() bool {
	return f.BaseID != uuid.Nil
}

// String renders a stable, human-readable summary of the feature's output
// and input capabilities, used for debug diffing between a base feature and
// its user-overridden form.
func (f ServerDeviceFeature) String() string {
	s := fmt.Sprintf("%s (%s)\n", f.Description, f.ID)
	for _, k := range f.Output.Kinds() {
		s += fmt.Sprintf("  output %s\n", k)
	}
	for _, k := range f.Input.Kinds() {
		s += fmt.Sprintf("  input %s\n", k)
	}
	return s
}
