package feature

import "errors"

// Configuration errors raised while composing or scaling a feature's value
// range (spec §7, "Configuration errors").
var (
	ErrInvalidUserRange       = errors.New("invalid user range")
	ErrBaseRangeRequired      = errors.New("base range required")
	ErrInvalidFloatConversion = errors.New("invalid float conversion")
	ErrInvalidOutputValue     = errors.New("invalid output value")
)

// InvalidOutputError reports that a feature does not support a requested
// OutputType.
type InvalidOutputError struct {
	Output OutputType
}

func (e *InvalidOutputError) Error() string {
	return "invalid output: " + string(e.Output)
}
