// Package wire defines the v0-v4 message shapes, the single-key envelope
// they travel in, and the error taxonomy's wire encoding (spec §6, §7).
// It has no knowledge of devices or protocols; internal/versionconvert and
// internal/server build meaning on top of it.
package wire

// Id is the message-correlation field every wire message carries.
// Id == 0 denotes a server-originated, unsolicited event.
type Id uint32

// SpecVersion is the negotiated major message-spec version (spec §4.7).
type SpecVersion uint32

const (
	SpecV0 SpecVersion = 0
	SpecV1 SpecVersion = 1
	SpecV2 SpecVersion = 2
	SpecV3 SpecVersion = 3
	SpecV4 SpecVersion = 4

	// CurrentSpecVersion is the version the server speaks internally;
	// every inbound message is up-converted to this version before the
	// rest of the system sees it (spec §4.7).
	CurrentSpecVersion = SpecV4
)

// Message is implemented by every wire message type; Name returns the
// JSON key the single-key envelope wraps the payload in.
type Message interface {
	Name() string
}

// IdOf extracts msg's correlation Id. The legacy forbidden messages carry
// one too, so the Error reply rejecting them answers the client's Id.
func IdOf(msg Message) Id {
	switch m := msg.(type) {
	case RequestServerInfo:
		return m.Id
	case Ping:
		return m.Id
	case StartScanning:
		return m.Id
	case StopScanning:
		return m.Id
	case RequestDeviceList:
		return m.Id
	case StopAllDevices:
		return m.Id
	case StopDeviceCmd:
		return m.Id
	case OutputCmd:
		return m.Id
	case OutputVecCmd:
		return m.Id
	case InputCmd:
		return m.Id
	case RawReadCmd:
		return m.Id
	case RawWriteCmd:
		return m.Id
	case RawSubscribeCmd:
		return m.Id
	case RawUnsubscribeCmd:
		return m.Id
	case Ok:
		return m.Id
	case Error:
		return m.Id
	case ServerInfo:
		return m.Id
	case DeviceList:
		return m.Id
	case DeviceAdded:
		return m.Id
	case DeviceRemoved:
		return m.Id
	case ScanningFinished:
		return m.Id
	case InputReading:
		return m.Id
	case RawReading:
		return m.Id
	case SingleMotorVibrateCmd:
		return m.Id
	case VorzeA10CycloneCmd:
		return m.Id
	case VibrateCmd:
		return m.Id
	case RotateCmd:
		return m.Id
	case LinearCmd:
		return m.Id
	case BatteryLevelCmd:
		return m.Id
	case BatteryLevelReading:
		return m.Id
	case RSSILevelCmd:
		return m.Id
	case RSSILevelReading:
		return m.Id
	case ScalarCmdV3:
		return m.Id
	case SensorReadCmdV3:
		return m.Id
	case SensorReading:
		return m.Id
	case RequestLog:
		return m.Id
	case FleshlightLaunchFW12Cmd:
		return m.Id
	case KiirooCmd:
		return m.Id
	case LovenseCmd:
		return m.Id
	default:
		return 0
	}
}

// --- client -> server, v4 ---

type RequestServerInfo struct {
	Id            Id
	ClientName    string
	MessageVersion SpecVersion
}

func (RequestServerInfo) Name() string { return "RequestServerInfo" }

type Ping struct{ Id Id }

func (Ping) Name() string { return "Ping" }

type StartScanning struct{ Id Id }

func (StartScanning) Name() string { return "StartScanning" }

type StopScanning struct{ Id Id }

func (StopScanning) Name() string { return "StopScanning" }

type RequestDeviceList struct{ Id Id }

func (RequestDeviceList) Name() string { return "RequestDeviceList" }

type StopAllDevices struct{ Id Id }

func (StopAllDevices) Name() string { return "StopAllDevices" }

type StopDeviceCmd struct {
	Id          Id
	DeviceIndex uint32
}

func (StopDeviceCmd) Name() string { return "StopDeviceCmd" }

// OutputCommand is one scalar actuator instruction within an OutputCmd,
// addressed by v4's stable feature_id.
type OutputCommand struct {
	FeatureId string
	Output    string // feature.OutputType value, e.g. "Vibrate"
	Value     float64
}

type OutputCmd struct {
	Id          Id
	DeviceIndex uint32
	Commands    []OutputCommand
}

func (OutputCmd) Name() string { return "OutputCmd" }

// OutputVecCmd batches several OutputCmd payloads addressed to possibly
// different devices in one message.
type OutputVecCmd struct {
	Id   Id
	Cmds []OutputCmd
}

func (OutputVecCmd) Name() string { return "OutputVecCmd" }

type InputCommandKind string

const (
	InputCommandRead        InputCommandKind = "Read"
	InputCommandSubscribe   InputCommandKind = "Subscribe"
	InputCommandUnsubscribe InputCommandKind = "Unsubscribe"
)

type InputCmd struct {
	Id          Id
	DeviceIndex uint32
	FeatureId   string
	Input       string // feature.InputType value, e.g. "Battery"
	Command     InputCommandKind
}

func (InputCmd) Name() string { return "InputCmd" }

type RawReadCmd struct {
	Id            Id
	DeviceIndex   uint32
	Endpoint      string
	ExpectedLength uint32
	WaitForData   bool
}

func (RawReadCmd) Name() string { return "RawReadCmd" }

type RawWriteCmd struct {
	Id            Id
	DeviceIndex   uint32
	Endpoint      string
	Data          []byte
	WriteWithResponse bool
}

func (RawWriteCmd) Name() string { return "RawWriteCmd" }

type RawSubscribeCmd struct {
	Id          Id
	DeviceIndex uint32
	Endpoint    string
}

func (RawSubscribeCmd) Name() string { return "RawSubscribeCmd" }

type RawUnsubscribeCmd struct {
	Id          Id
	DeviceIndex uint32
	Endpoint    string
}

func (RawUnsubscribeCmd) Name() string { return "RawUnsubscribeCmd" }

// --- server -> client, v4 ---

type Ok struct{ Id Id }

func (Ok) Name() string { return "Ok" }

type Error struct {
	Id           Id
	ErrorCode    ErrorCode
	ErrorMessage string
}

func (Error) Name() string { return "Error" }

type ServerInfo struct {
	Id             Id
	ServerName     string
	MessageVersion SpecVersion
	MaxPingTime    uint32 // milliseconds
}

func (ServerInfo) Name() string { return "ServerInfo" }

// DeviceFeatureInfo is the wire shape of one feature within a DeviceAdded
// / DeviceList entry.
type DeviceFeatureInfo struct {
	FeatureId   string
	Description string
	Output      map[string]any
	Input       map[string]any
}

type DeviceInfo struct {
	DeviceIndex uint32
	DeviceName  string
	Features    []DeviceFeatureInfo
}

type DeviceList struct {
	Id      Id
	Devices []DeviceInfo
}

func (DeviceList) Name() string { return "DeviceList" }

type DeviceAdded struct {
	Id Id
	DeviceInfo
}

func (DeviceAdded) Name() string { return "DeviceAdded" }

type DeviceRemoved struct {
	Id          Id
	DeviceIndex uint32
}

func (DeviceRemoved) Name() string { return "DeviceRemoved" }

type ScanningFinished struct{ Id Id }

func (ScanningFinished) Name() string { return "ScanningFinished" }

type InputReading struct {
	Id          Id
	DeviceIndex uint32
	FeatureId   string
	Input       string
	Data        []int32
}

func (InputReading) Name() string { return "InputReading" }

type RawReading struct {
	Id          Id
	DeviceIndex uint32
	Endpoint    string
	Data        []byte
}

func (RawReading) Name() string { return "RawReading" }
