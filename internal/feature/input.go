package feature

// InputProperties describes one sensor-reading block: the set of
// InputCommandType operations it supports and the native range its raw
// reading is reported in.
type InputProperties struct {
	Range    RangeWithLimit
	Commands map[InputCommandType]bool
}

// Supports reports whether this block permits cmd.
func (p *InputProperties) Supports(cmd InputCommandType) bool {
	if p == nil {
		return false
	}
	return p.Commands[cmd]
}

// ServerDeviceFeatureInput is the sparse set of input property blocks a
// feature may expose, one optional block per InputType.
type ServerDeviceFeatureInput struct {
	Battery  *InputProperties
	Rssi     *InputProperties
	Pressure *InputProperties
	Button   *InputProperties
}

// Get returns the block for kind, or nil if unsupported.
func (i *ServerDeviceFeatureInput) Get(kind InputType) *InputProperties {
	if i == nil {
		return nil
	}
	switch kind {
	case InputBattery:
		return i.Battery
	case InputRssi:
		return i.Rssi
	case InputPressure:
		return i.Pressure
	case InputButton:
		return i.Button
	default:
		return nil
	}
}

// Has reports whether this input block declares support for kind.
func (i *ServerDeviceFeatureInput) Has(kind InputType) bool {
	return i.Get(kind) != nil
}

// Kinds returns every InputType declared by this block, in fixed
// spec-order, used for positional sensor-index remapping (spec §4.7).
func (i *ServerDeviceFeatureInput) Kinds() []InputType {
	if i == nil {
		return nil
	}
	var kinds []InputType
	for _, k := range []InputType{InputBattery, InputRssi, InputPressure, InputButton} {
		if i.Has(k) {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
