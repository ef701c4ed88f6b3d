package feature

// OutputType is the closed set of actuator kinds a feature may expose
// (spec §3).
type OutputType string

const (
	OutputVibrate              OutputType = "Vibrate"
	OutputRotate               OutputType = "Rotate"
	OutputRotateWithDirection  OutputType = "RotateWithDirection"
	OutputOscillate            OutputType = "Oscillate"
	OutputConstrict            OutputType = "Constrict"
	OutputHeater               OutputType = "Heater"
	OutputLed                  OutputType = "Led"
	OutputPosition             OutputType = "Position"
	OutputPositionWithDuration OutputType = "PositionWithDuration"
	OutputSpray                OutputType = "Spray"
	OutputUnknown              OutputType = "Unknown"
)

// Stoppable is the set of output types that have a well-defined zero/off
// value and are therefore included in stop-command precomputation
// (spec §4.5). Position and PositionWithDuration are deliberately excluded:
// there is no universally safe "stop position".
var Stoppable = []OutputType{
	OutputVibrate,
	OutputRotate,
	OutputRotateWithDirection,
	OutputOscillate,
	OutputConstrict,
	OutputHeater,
	OutputLed,
	OutputSpray,
}

// InputType is the closed set of sensor kinds a feature may expose
// (spec §3).
type InputType string

const (
	InputBattery  InputType = "Battery"
	InputRssi     InputType = "Rssi"
	InputPressure InputType = "Pressure"
	InputButton   InputType = "Button"
	InputUnknown  InputType = "Unknown"
)

// InputCommandType is the set of operations that may be performed against
// an input feature.
type InputCommandType string

const (
	InputCommandRead        InputCommandType = "Read"
	InputCommandSubscribe   InputCommandType = "Subscribe"
	InputCommandUnsubscribe InputCommandType = "Unsubscribe"
)
