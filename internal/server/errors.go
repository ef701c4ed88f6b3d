package server

import (
	"errors"

	"github.com/srg/buttplug/internal/wire"
)

// mapError translates an internal error into the wire ErrorCode it belongs
// to (spec §7's "every error reply is a single Error object"). The
// translation happens only at this outermost boundary rather than
// threading wire types through the core.
func mapError(id wire.Id, err error) wire.Error {
	code := wire.ErrorUnknown
	switch {
	case errors.Is(err, wire.ErrRequestServerInfoExpected),
		errors.Is(err, wire.ErrHandshakeAlreadyHappened),
		errors.Is(err, wire.ErrReconnectDenied),
		errors.Is(err, wire.ErrMessageSpecVersionMismatch):
		code = wire.ErrorInit
	case errors.Is(err, wire.ErrPingedOut),
		errors.Is(err, wire.ErrPingTimerNotRunning):
		code = wire.ErrorPing
	case errors.Is(err, wire.ErrUnexpectedMessageType),
		errors.Is(err, wire.ErrMessageConversion):
		code = wire.ErrorMessage
	case isDeviceError(err):
		code = wire.ErrorDevice
	}
	return wire.Error{Id: id, ErrorCode: code, ErrorMessage: err.Error()}
}

func isDeviceError(err error) bool {
	var notAvail *wire.DeviceNotAvailableError
	var notSupported *wire.MessageNotSupportedError
	if errors.As(err, &notAvail) || errors.As(err, &notSupported) {
		return true
	}
	for _, sentinel := range []error{
		wire.ErrDeviceFeatureCountMismatch, wire.ErrDeviceFeatureIndex,
		wire.ErrDeviceSensorIndex, wire.ErrDeviceSensorTypeMismatch,
		wire.ErrInvalidEndpoint, wire.ErrDeviceConnection,
		wire.ErrDeviceConfiguration, wire.ErrProtocolRequirement,
		wire.ErrUnhandledCommand,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
