package protocol

import (
	"context"
	"fmt"

	"github.com/srg/buttplug/internal/feature"
	"github.com/srg/buttplug/internal/hardware"
)

// BaseHandler is an embeddable default implementation of Handler. Concrete
// protocol handlers embed it and override only the output/input kinds
// they actually support; every method not overridden returns
// ErrUnsupported, and DecodeEvent returns ok=false.
//
// This is a base struct that a concrete handler embeds and narrows,
// the same shape as a base connection/device struct a wrapper narrows
// for one transport, generalized from "wraps a transport" to "wraps a
// command set".
type BaseHandler struct{}

// ErrUnsupported is returned by a handler for a command kind it does not
// implement. The checker never issues one (it only dispatches kinds a
// device's features declare), so this surfaces as a wiring bug rather
// than a client error if it ever appears in practice.
var ErrUnsupported = fmt.Errorf("protocol: command not supported by this handler")

func (BaseHandler) HandleOutputCommand(context.Context, FeatureRef, feature.OutputType, int32) ([]hardware.Command, error) {
	return nil, ErrUnsupported
}

func (BaseHandler) HandleInputCommand(context.Context, FeatureRef, feature.InputType, feature.InputCommandType) ([]hardware.Command, error) {
	return nil, ErrUnsupported
}

func (BaseHandler) DecodeEvent(hardware.Event) (FeatureRef, float64, bool) {
	return FeatureRef{}, 0, false
}
