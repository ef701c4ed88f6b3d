package wire

import "fmt"

// ErrorCode is the closed wire error-category enum every Error message
// carries (spec §6, §7).
type ErrorCode string

const (
	ErrorUnknown ErrorCode = "ErrorUnknown"
	ErrorInit    ErrorCode = "ErrorInit"
	ErrorPing    ErrorCode = "ErrorPing"
	ErrorMessage ErrorCode = "ErrorMessage"
	ErrorDevice  ErrorCode = "ErrorDevice"
)

// ProtocolError is the typed form of a wire Error reply: a code plus a
// human-readable message, carrying the Id of the message it answers.
// The server does not use it: internal/server's mapError builds the
// wire Error reply directly from an internal error.
type ProtocolError struct {
	Id      uint32
	Code    ErrorCode
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewProtocolError constructs a ProtocolError carrying a formatted
// message.
func NewProtocolError(id uint32, code ErrorCode, format string, args ...any) *ProtocolError {
	return &ProtocolError{Id: id, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Handshake errors (spec §7), wrapped in ErrorInit on the wire.
var (
	ErrRequestServerInfoExpected = fmt.Errorf("RequestServerInfoExpected")
	ErrHandshakeAlreadyHappened  = fmt.Errorf("HandshakeAlreadyHappened")
	ErrReconnectDenied           = fmt.Errorf("ReconnectDenied")
	ErrMessageSpecVersionMismatch = fmt.Errorf("MessageSpecVersionMismatch")
)

// Ping errors (spec §7), wrapped in ErrorPing on the wire.
var (
	ErrPingedOut           = fmt.Errorf("PingedOut")
	ErrPingTimerNotRunning = fmt.Errorf("PingTimerNotRunning")
)

// Message errors (spec §7), wrapped in ErrorMessage on the wire.
var (
	ErrUnexpectedMessageType = fmt.Errorf("UnexpectedMessageType")
	ErrMessageConversion     = fmt.Errorf("MessageConversionError")
)

// Device errors (spec §7), wrapped in ErrorDevice on the wire.
type DeviceNotAvailableError struct{ Index uint32 }

func (e *DeviceNotAvailableError) Error() string {
	return fmt.Sprintf("DeviceNotAvailable(%d)", e.Index)
}

type MessageNotSupportedError struct{ Kind string }

func (e *MessageNotSupportedError) Error() string {
	return fmt.Sprintf("MessageNotSupported(%s)", e.Kind)
}

var (
	ErrDeviceFeatureCountMismatch = fmt.Errorf("DeviceFeatureCountMismatch")
	ErrDeviceFeatureIndex         = fmt.Errorf("DeviceFeatureIndexError")
	ErrDeviceSensorIndex          = fmt.Errorf("DeviceSensorIndexError")
	ErrDeviceSensorTypeMismatch   = fmt.Errorf("DeviceSensorTypeMismatch")
	ErrInvalidEndpoint            = fmt.Errorf("InvalidEndpoint")
	ErrDeviceConnection           = fmt.Errorf("DeviceConnectionError")
	ErrDeviceConfiguration        = fmt.Errorf("DeviceConfigurationError")
	ErrProtocolRequirement        = fmt.Errorf("ProtocolRequirementError")
	ErrUnhandledCommand           = fmt.Errorf("UnhandledCommand")
)
