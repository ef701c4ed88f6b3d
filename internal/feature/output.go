package feature

// ValueProperties is the common shape for a plain scalar output block
// (Vibrate, Rotate, Oscillate, Constrict, Heater, Led, Spray).
type ValueProperties struct {
	Range    RangeWithLimit
	Disabled bool
}

// CalculateScaledFloat scales v (a normalized [0,1] float) through the
// block's range, or returns an error if the block is disabled.
func (p ValueProperties) CalculateScaledFloat(v float64) (int32, error) {
	if p.Disabled {
		return 0, &InvalidOutputError{}
	}
	return p.Range.CalculateScaledFloat(v)
}

// RotateWithDirectionProperties is the output block of a rotator that can
// change direction. It holds the same fields as ValueProperties and no
// separate clockwise flag.
type RotateWithDirectionProperties struct {
	ValueProperties
}

// PositionProperties is a scalar position target, optionally mirrored.
type PositionProperties struct {
	ValueProperties
	Reverse bool
}

// CalculateScaledFloat scales v and mirrors it around the target range's end
// when Reverse is set (spec §4.1).
func (p PositionProperties) CalculateScaledFloat(v float64) (int32, error) {
	scaled, err := p.ValueProperties.CalculateScaledFloat(v)
	if err != nil {
		return 0, err
	}
	if !p.Reverse {
		return scaled, nil
	}
	t := p.Range.target()
	return t.End - scaled, nil
}

// PositionWithDurationProperties carries independent ranges for the target
// position and the move duration.
type PositionWithDurationProperties struct {
	Position PositionProperties
	Duration ValueProperties
}

// ServerDeviceFeatureOutput is the sparse set of output property blocks a
// feature may expose, one optional block per OutputType.
type ServerDeviceFeatureOutput struct {
	Vibrate              *ValueProperties
	Rotate               *ValueProperties
	RotateWithDirection  *RotateWithDirectionProperties
	Oscillate            *ValueProperties
	Constrict            *ValueProperties
	Heater               *ValueProperties
	Led                  *ValueProperties
	Position             *PositionProperties
	PositionWithDuration *PositionWithDurationProperties
	Spray                *ValueProperties
}

// Has reports whether this output block declares support for kind.
func (o *ServerDeviceFeatureOutput) Has(kind OutputType) bool {
	if o == nil {
		return false
	}
	switch kind {
	case OutputVibrate:
		return o.Vibrate != nil
	case OutputRotate:
		return o.Rotate != nil
	case OutputRotateWithDirection:
		return o.RotateWithDirection != nil
	case OutputOscillate:
		return o.Oscillate != nil
	case OutputConstrict:
		return o.Constrict != nil
	case OutputHeater:
		return o.Heater != nil
	case OutputLed:
		return o.Led != nil
	case OutputPosition:
		return o.Position != nil
	case OutputPositionWithDuration:
		return o.PositionWithDuration != nil
	case OutputSpray:
		return o.Spray != nil
	default:
		return false
	}
}

// Kinds returns every OutputType declared by this block, in the fixed
// spec-order used for positional feature-index remapping (spec §4.7).
func (o *ServerDeviceFeatureOutput) Kinds() []OutputType {
	if o == nil {
		return nil
	}
	var kinds []OutputType
	for _, k := range []OutputType{
		OutputVibrate, OutputRotate, OutputRotateWithDirection, OutputOscillate,
		OutputConstrict, OutputHeater, OutputLed, OutputPosition,
		OutputPositionWithDuration, OutputSpray,
	} {
		if o.Has(k) {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
