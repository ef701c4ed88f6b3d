package wire

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// constructors maps every message's wire name to a fresh, zero-valued
// instance the envelope decoder unmarshals into. Built once at package
// init from every message type message.go and legacy.go define.
var constructors = map[string]func() Message{
	"RequestServerInfo":       func() Message { return &RequestServerInfo{} },
	"Ping":                    func() Message { return &Ping{} },
	"StartScanning":           func() Message { return &StartScanning{} },
	"StopScanning":            func() Message { return &StopScanning{} },
	"RequestDeviceList":       func() Message { return &RequestDeviceList{} },
	"StopAllDevices":          func() Message { return &StopAllDevices{} },
	"StopDeviceCmd":           func() Message { return &StopDeviceCmd{} },
	"OutputCmd":               func() Message { return &OutputCmd{} },
	"OutputVecCmd":            func() Message { return &OutputVecCmd{} },
	"InputCmd":                func() Message { return &InputCmd{} },
	"RawReadCmd":              func() Message { return &RawReadCmd{} },
	"RawWriteCmd":             func() Message { return &RawWriteCmd{} },
	"RawSubscribeCmd":         func() Message { return &RawSubscribeCmd{} },
	"RawUnsubscribeCmd":       func() Message { return &RawUnsubscribeCmd{} },
	"Ok":                      func() Message { return &Ok{} },
	"Error":                   func() Message { return &Error{} },
	"ServerInfo":              func() Message { return &ServerInfo{} },
	"DeviceList":              func() Message { return &DeviceList{} },
	"DeviceAdded":             func() Message { return &DeviceAdded{} },
	"DeviceRemoved":           func() Message { return &DeviceRemoved{} },
	"ScanningFinished":        func() Message { return &ScanningFinished{} },
	"InputReading":            func() Message { return &InputReading{} },
	"RawReading":              func() Message { return &RawReading{} },
	"SingleMotorVibrateCmd":   func() Message { return &SingleMotorVibrateCmd{} },
	"VorzeA10CycloneCmd":      func() Message { return &VorzeA10CycloneCmd{} },
	"VibrateCmd":              func() Message { return &VibrateCmd{} },
	"RotateCmd":               func() Message { return &RotateCmd{} },
	"LinearCmd":               func() Message { return &LinearCmd{} },
	"BatteryLevelCmd":         func() Message { return &BatteryLevelCmd{} },
	"BatteryLevelReading":     func() Message { return &BatteryLevelReading{} },
	"RSSILevelCmd":            func() Message { return &RSSILevelCmd{} },
	"RSSILevelReading":        func() Message { return &RSSILevelReading{} },
	"ScalarCmd":               func() Message { return &ScalarCmdV3{} },
	"SensorReadCmd":           func() Message { return &SensorReadCmdV3{} },
	"SensorReading":           func() Message { return &SensorReading{} },
	"RequestLog":              func() Message { return &RequestLog{} },
	"FleshlightLaunchFW12Cmd": func() Message { return &FleshlightLaunchFW12Cmd{} },
	"KiirooCmd":               func() Message { return &KiirooCmd{} },
	"LovenseCmd":              func() Message { return &LovenseCmd{} },
}

// DecodeArray parses one transport frame: a JSON array of single-key
// message objects (spec §6).
func DecodeArray(data []byte) ([]Message, error) {
	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("wire: decode frame: %w", err)
	}
	out := make([]Message, 0, len(raw))
	for _, obj := range raw {
		if len(obj) != 1 {
			return nil, fmt.Errorf("wire: message object must have exactly one key, got %d", len(obj))
		}
		for name, payload := range obj {
			ctor, ok := constructors[name]
			if !ok {
				return nil, fmt.Errorf("%w: unknown message %q", ErrUnexpectedMessageType, name)
			}
			msg := ctor()
			if err := json.Unmarshal(payload, msg); err != nil {
				return nil, fmt.Errorf("wire: decode %s: %w", name, err)
			}
			out = append(out, derefMessage(msg))
		}
	}
	return out, nil
}

// derefMessage unwraps the pointer constructors produce back to the value
// type every Message method set is defined on, so callers can type-switch
// against the same value types UpConvert/DownConvert expect.
func derefMessage(msg Message) Message {
	switch m := msg.(type) {
	case *RequestServerInfo:
		return *m
	case *Ping:
		return *m
	case *StartScanning:
		return *m
	case *StopScanning:
		return *m
	case *RequestDeviceList:
		return *m
	case *StopAllDevices:
		return *m
	case *StopDeviceCmd:
		return *m
	case *OutputCmd:
		return *m
	case *OutputVecCmd:
		return *m
	case *InputCmd:
		return *m
	case *RawReadCmd:
		return *m
	case *RawWriteCmd:
		return *m
	case *RawSubscribeCmd:
		return *m
	case *RawUnsubscribeCmd:
		return *m
	case *Ok:
		return *m
	case *Error:
		return *m
	case *ServerInfo:
		return *m
	case *DeviceList:
		return *m
	case *DeviceAdded:
		return *m
	case *DeviceRemoved:
		return *m
	case *ScanningFinished:
		return *m
	case *InputReading:
		return *m
	case *RawReading:
		return *m
	case *SingleMotorVibrateCmd:
		return *m
	case *VorzeA10CycloneCmd:
		return *m
	case *VibrateCmd:
		return *m
	case *RotateCmd:
		return *m
	case *LinearCmd:
		return *m
	case *BatteryLevelCmd:
		return *m
	case *BatteryLevelReading:
		return *m
	case *RSSILevelCmd:
		return *m
	case *RSSILevelReading:
		return *m
	case *ScalarCmdV3:
		return *m
	case *SensorReadCmdV3:
		return *m
	case *SensorReading:
		return *m
	case *RequestLog:
		return *m
	case *FleshlightLaunchFW12Cmd:
		return *m
	case *KiirooCmd:
		return *m
	case *LovenseCmd:
		return *m
	default:
		return msg
	}
}

// StreamDecoder reads successive newline-delimited DecodeArray frames off
// an underlying stream, the shape pkg/buttplug.Server.Serve consumes per
// connection. Buttplug clients in the wild send one array per line rather
// than a bare JSON stream, so bufio.Scanner's line splitting is enough;
// json.Decoder's token-boundary streaming is unnecessary here.
type StreamDecoder struct {
	scanner *bufio.Scanner
}

// NewStreamDecoder wraps r. The caller owns r's lifecycle.
func NewStreamDecoder(r io.Reader) *StreamDecoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &StreamDecoder{scanner: scanner}
}

// Next blocks for the next line and decodes it as one message array. It
// returns io.EOF once the underlying stream is exhausted.
func (d *StreamDecoder) Next() ([]Message, error) {
	for d.scanner.Scan() {
		line := d.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		return DecodeArray(line)
	}
	if err := d.scanner.Err(); err != nil {
		return nil, fmt.Errorf("wire: read frame: %w", err)
	}
	return nil, io.EOF
}

// EncodeArray serializes one transport frame from msgs.
func EncodeArray(msgs []Message) ([]byte, error) {
	raw := make([]map[string]Message, 0, len(msgs))
	for _, m := range msgs {
		raw = append(raw, map[string]Message{m.Name(): m})
	}
	return json.Marshal(raw)
}
