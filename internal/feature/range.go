// Package feature implements the value-range composition and scaling rules
// a device feature uses to turn a client-supplied normalized command into a
// device-native step value.
package feature

import (
	"fmt"
	"math"
)

// IntRange is an inclusive [Start, End] interval.
type IntRange struct {
	Start int32
	End   int32
}

// Contains reports whether v lies within the inclusive range.
func (r IntRange) Contains(v int32) bool {
	return v >= r.Start && v <= r.End
}

// Empty reports whether the range contains no values (End < Start).
func (r IntRange) Empty() bool {
	return r.End < r.Start
}

// RangeWithLimit composes a catalog-supplied base range with an optional,
// narrower user-supplied sub-range. See spec §3/§4.1.
type RangeWithLimit struct {
	base IntRange
	user *IntRange
}

// NewRangeWithLimit validates and constructs a RangeWithLimit.
//
// base must be non-empty. user, if provided, must be non-empty and fully
// contained within [0, base.End].
func NewRangeWithLimit(base IntRange, user *IntRange) (RangeWithLimit, error) {
	if base.Empty() {
		return RangeWithLimit{}, ErrBaseRangeRequired
	}
	if user != nil {
		if user.Empty() {
			return RangeWithLimit{}, fmt.Errorf("%w: user range %v is empty", ErrInvalidUserRange, *user)
		}
		bounds := IntRange{Start: 0, End: base.End}
		if !bounds.Contains(user.Start) || !bounds.Contains(user.End) {
			return RangeWithLimit{}, fmt.Errorf("%w: user range %v not within [0, %d]", ErrInvalidUserRange, *user, base.End)
		}
	}
	return RangeWithLimit{base: base, user: user}, nil
}

// Base returns the catalog-supplied base range.
func (r RangeWithLimit) Base() IntRange { return r.base }

// User returns the user-narrowed range, if any.
func (r RangeWithLimit) User() (IntRange, bool) {
	if r.user == nil {
		return IntRange{}, false
	}
	return *r.user, true
}

// target returns the interval scaled values are mapped onto: the user range
// if present, else the truncated base range [0, base.End].
func (r RangeWithLimit) target() IntRange {
	if r.user != nil {
		return *r.user
	}
	return IntRange{Start: 0, End: r.base.End}
}

// StepCount returns the integer resolution of this range: the width of the
// user range if set, else the base range's End.
func (r RangeWithLimit) StepCount() uint32 {
	if r.user != nil {
		return uint32(r.user.End - r.user.Start)
	}
	return uint32(r.base.End)
}

// StepLimit returns the symmetric step limit: when the base range starts
// below zero (a bidirectional actuator), the limit is mirrored around 0.
func (r RangeWithLimit) StepLimit() IntRange {
	if r.base.Start < 0 {
		bound := r.base.End
		if -r.base.Start > bound {
			bound = -r.base.Start
		}
		return IntRange{Start: -bound, End: bound}
	}
	return r.base
}

// CalculateScaledValue maps a normalized integer v onto the target interval,
// preserving sign for bidirectional ranges. v = 0 maps to 0. For v != 0, the
// magnitude is offset by the target's start; the result must land inside the
// target interval or InvalidOutputValue is returned.
func (r RangeWithLimit) CalculateScaledValue(v int32) (int32, error) {
	if v == 0 {
		return 0, nil
	}
	t := r.target()
	sign := int32(1)
	mag := v
	if v < 0 {
		sign = -1
		mag = -v
	}
	candidate := t.Start + mag
	if !t.Contains(candidate) {
		return 0, fmt.Errorf("%w: %d maps to %d, outside target range %v", ErrInvalidOutputValue, v, candidate, t)
	}
	return sign * candidate, nil
}

// floatZeroThreshold is the cutoff below which a normalized float input is
// treated as exactly zero.
const floatZeroThreshold = 1e-6

// CalculateScaledFloat maps a normalized float v in [0.0, 1.0] to a scaled
// step value, per spec §4.1.
func (r RangeWithLimit) CalculateScaledFloat(v float64) (int32, error) {
	if v < 0.0 || v > 1.0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidFloatConversion, v)
	}
	if v < floatZeroThreshold {
		return 0, nil
	}
	scaled := int32(math.Ceil(float64(r.StepCount()) * v))
	return r.CalculateScaledValue(scaled)
}
