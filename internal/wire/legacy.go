package wire

// Legacy message shapes (v0-v3), retained only as up-conversion sources
// and down-conversion targets for internal/versionconvert (spec §4.7).
// Nothing outside that package and internal/server should construct
// these directly; the rest of the system speaks v4 (OutputCmd/InputCmd).

// SingleMotorVibrateCmd is the oldest (v0) single-actuator vibrate
// message: it silently addresses every Vibrate-capable feature on the
// device (spec §9's open question — preserved on purpose).
type SingleMotorVibrateCmd struct {
	Id          Id
	DeviceIndex uint32
	Speed       float64
}

func (SingleMotorVibrateCmd) Name() string { return "SingleMotorVibrateCmd" }

type VorzeA10CycloneCmd struct {
	Id          Id
	DeviceIndex uint32
	Speed       uint32 // 0..99
	Clockwise   bool
}

func (VorzeA10CycloneCmd) Name() string { return "VorzeA10CycloneCmd" }

// SpeedSubcommand is one positional entry in a v2 VibrateCmd, keyed by a
// v2-native "Index" that is positional among Vibrate features only, not
// a stable feature id (spec §4.7, §9).
type SpeedSubcommand struct {
	Index uint32
	Speed float64
}

type VibrateCmd struct {
	Id          Id
	DeviceIndex uint32
	Speeds      []SpeedSubcommand
}

func (VibrateCmd) Name() string { return "VibrateCmd" }

type RotateSubcommand struct {
	Index     uint32
	Speed     float64
	Clockwise bool
}

type RotateCmd struct {
	Id          Id
	DeviceIndex uint32
	Rotations   []RotateSubcommand
}

func (RotateCmd) Name() string { return "RotateCmd" }

type VectorSubcommand struct {
	Index    uint32
	Duration uint32 // milliseconds
	Position float64
}

type LinearCmd struct {
	Id          Id
	DeviceIndex uint32
	Vectors     []VectorSubcommand
}

func (LinearCmd) Name() string { return "LinearCmd" }

type BatteryLevelCmd struct {
	Id          Id
	DeviceIndex uint32
}

func (BatteryLevelCmd) Name() string { return "BatteryLevelCmd" }

type BatteryLevelReading struct {
	Id          Id
	DeviceIndex uint32
	BatteryLevel float64
}

func (BatteryLevelReading) Name() string { return "BatteryLevelReading" }

type RSSILevelCmd struct {
	Id          Id
	DeviceIndex uint32
}

func (RSSILevelCmd) Name() string { return "RSSILevelCmd" }

type RSSILevelReading struct {
	Id          Id
	DeviceIndex uint32
	RSSILevel   int32
}

func (RSSILevelReading) Name() string { return "RSSILevelReading" }

// ScalarSubcommand is a v3 ScalarCmd entry: Index is positional among all
// ScalarCmd-accepting features (spec §4.7 table), Actuator names the
// output kind being targeted.
type ScalarSubcommand struct {
	Index    uint32
	Scalar   float64
	Actuator string
}

type ScalarCmdV3 struct {
	Id          Id
	DeviceIndex uint32
	Scalars     []ScalarSubcommand
}

func (ScalarCmdV3) Name() string { return "ScalarCmd" }

type SensorReadCmdV3 struct {
	Id          Id
	DeviceIndex uint32
	SensorIndex uint32
	SensorType  string
}

func (SensorReadCmdV3) Name() string { return "SensorReadCmd" }

type SensorReading struct {
	Id          Id
	DeviceIndex uint32
	SensorIndex uint32
	SensorType  string
	Data        []int32
}

func (SensorReading) Name() string { return "SensorReading" }

// Forbidden legacy messages (spec §4.7): any occurrence always yields
// MessageConversionError, regardless of spec version. Defined here only
// so the converter's decode step has a concrete type to recognize and
// reject rather than silently falling through to "unknown message".
type RequestLog struct{ Id Id }

func (RequestLog) Name() string { return "RequestLog" }

type FleshlightLaunchFW12Cmd struct{ Id Id }

func (FleshlightLaunchFW12Cmd) Name() string { return "FleshlightLaunchFW12Cmd" }

type KiirooCmd struct{ Id Id }

func (KiirooCmd) Name() string { return "KiirooCmd" }

type LovenseCmd struct{ Id Id }

func (LovenseCmd) Name() string { return "LovenseCmd" }
