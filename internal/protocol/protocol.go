// Package protocol defines the four-stage contract a brand implementation
// plugs into the device manager: Factory identifies candidate protocols
// for a discovered device, Identifier narrows to exactly one device
// definition, Initializer brings the hardware session up to a steady
// state, and Handler translates checked actuator/sensor commands into
// hardware Commands (spec §4.3-§4.4).
//
// Concrete brand protocols (Lovense, WeVibe, ...) are out of scope here;
// this package only fixes the staircase concrete handlers are written
// against, plus default dispatch plumbing every handler can embed.
package protocol

import (
	"context"
	"time"

	"github.com/srg/buttplug/internal/deviceconfig"
	"github.com/srg/buttplug/internal/feature"
	"github.com/srg/buttplug/internal/hardware"
)

// Name is a protocol's registry key, e.g. "lovense".
type Name string

// Factory is the entry point a brand package registers. It reports
// whether it recognizes data discovered on a transport at all (spec
// §4.3's protocol matching over ProtocolCommunicationSpecifier), without
// yet committing to a sub-model.
type Factory interface {
	Name() Name

	// Specifiers lists the communication patterns this protocol can ever
	// claim. The device manager matches discoveries against these alone;
	// user-supplied specifiers held by deviceconfig.Manager are not
	// consulted during matching.
	Specifiers() []deviceconfig.ProtocolCommunicationSpecifier

	// NewIdentifier returns an Identifier bound to one freshly connected
	// Hardware session, to resolve the exact sub-model.
	NewIdentifier(hw hardware.Hardware) Identifier
}

// Identifier narrows a matched Factory down to a concrete
// BaseDeviceIdentifier by probing the connected hardware (e.g. reading a
// model characteristic), per spec §4.3 step 2.
type Identifier interface {
	// Identify returns the sub-model identifier to look up in the base
	// catalog. A nil Identifier field in the result means "protocol
	// default".
	Identify(ctx context.Context) (deviceconfig.BaseDeviceIdentifier, error)
}

// Initializer brings a connected, identified hardware session up to the
// steady state a Handler expects: subscribing notification endpoints,
// sending any required handshake bytes, reading static info such as
// battery level (spec §4.3 step 3).
type Initializer interface {
	Initialize(ctx context.Context, hw hardware.Hardware, def *deviceconfig.DeviceDefinition) error
}

// Handler translates checked feature commands into hardware Commands and
// interprets hardware Events back into feature-level values (spec §4.4).
// It never touches a Hardware session itself: it returns the Commands the
// device task should issue, so the task can batch them, deduplicate
// overlapping writes to the same endpoint across features, and precompute
// per-feature stop commands at bring-up by calling HandleOutputCommand with
// a zero value instead of a separate stop-specific method. Concrete brand
// handlers normally embed BaseHandler and override only the output kinds
// they actually support.
type Handler interface {
	// HandleOutputCommand translates one scaled output value for
	// featureID's kind into the hardware Commands that realize it. value
	// has already been validated by the checker and scaled into the
	// feature's step range by the server frontend; the handler only needs
	// to encode it. The device task
	// merges the returned commands into its pending deque (spec §4.5)
	// rather than executing them directly.
	HandleOutputCommand(ctx context.Context, featureID FeatureRef, kind feature.OutputType, value int32) ([]hardware.Command, error)

	// HandleInputCommand translates a read or subscription-change request
	// for featureID's kind into the hardware Commands that realize it.
	HandleInputCommand(ctx context.Context, featureID FeatureRef, kind feature.InputType, cmd feature.InputCommandType) ([]hardware.Command, error)

	// DecodeEvent interprets an asynchronous hardware Event, returning the
	// feature it concerns and the decoded value, or ok=false when the
	// event carries no feature-level meaning (e.g. an unrelated notify).
	DecodeEvent(ev hardware.Event) (ref FeatureRef, value float64, ok bool)
}

// FeatureRef identifies one feature by its stable UUID plus its position
// in the device's full ordered feature list, for handlers that need a
// positional index into a protocol-native command layout (spec §4.7's
// feature_index, reused here for encoding, not just version conversion).
type FeatureRef struct {
	FeatureID string
	Index     uint32
}

// KeepaliveStrategy decides whether a protocol needs synthetic traffic to
// keep its transport session alive, and what to send (spec §4.4).
// Most protocols need none. BaseHandler does not implement it, so a
// handler that only embeds BaseHandler sends no keepalive.
type KeepaliveStrategy interface {
	// KeepaliveCommand returns the command to send when idleFor has
	// elapsed since the hardware's LastActivity, or ok=false if no
	// keepalive is needed yet.
	KeepaliveCommand(idleFor time.Duration) (cmd hardware.Command, ok bool)
}

// ValueCommandPrefilterStrategy lets a protocol collapse or reorder the
// hardware commands Handler produced for one message-gap window before
// they are sent to the hardware, beyond the generic same-endpoint overlap
// rule in hardware.Command.Overlaps (spec §4.5).
type ValueCommandPrefilterStrategy interface {
	Prefilter(cmds []hardware.Command) []hardware.Command
}
