package mediatime

import (
	"fmt"
	"math"
	"strings"

	"github.com/zsiec/mediatime/internal/checked"
)

// RoundingMode selects how a rescale that leaves a remainder is rounded.
type RoundingMode int

const (
	// RoundHalfAwayFromZero rounds to nearest, ties away from zero.
	RoundHalfAwayFromZero RoundingMode = iota
	// RoundTowardZero truncates.
	RoundTowardZero
	// RoundAwayFromZero rounds any remainder away from zero.
	RoundAwayFromZero
	// RoundTowardPositiveInfinity rounds up.
	RoundTowardPositiveInfinity
	// RoundTowardNegativeInfinity rounds down.
	RoundTowardNegativeInfinity
)

var roundingModeNames = map[RoundingMode]string{
	RoundHalfAwayFromZero:       "half-away-from-zero",
	RoundTowardZero:             "toward-zero",
	RoundAwayFromZero:           "away-from-zero",
	RoundTowardPositiveInfinity: "toward-positive-infinity",
	RoundTowardNegativeInfinity: "toward-negative-infinity",
}

// String returns the name used by ParseRoundingMode.
func (m RoundingMode) String() string {
	if name, ok := roundingModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("RoundingMode(%d)", int(m))
}

// ParseRoundingMode parses a rounding mode name such as "toward-zero".
// Underscores are accepted in place of dashes and case is ignored.
func ParseRoundingMode(s string) (RoundingMode, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	for mode, n := range roundingModeNames {
		if n == name {
			return mode, nil
		}
	}
	return 0, fmt.Errorf("unknown rounding mode %q", s)
}

// ToTimeScale returns t expressed with the given scale. See SetTimeScale.
func (t MediaTime) ToTimeScale(scale uint32, mode RoundingMode) MediaTime {
	t.SetTimeScale(scale, mode)
	return t
}

// SetTimeScale rescales t in place.
//
// A double is converted with FromDoubleWithScale. A scale of zero turns t
// into the infinity of its sign, and scales above MaxScale are capped. When
// the new numerator does not fit in an int64 t becomes the matching infinity.
// A nonzero remainder marks t as rounded and is resolved by mode. Special
// states are left unchanged.
func (t *MediaTime) SetTimeScale(scale uint32, mode RoundingMode) {
	switch t.kind {
	case kindDouble:
		*t = FromDoubleWithScale(t.seconds, scale)
		return
	case kindRational:
	default:
		return
	}

	if scale == 0 {
		*t = infinityFor(t.value < 0)
		return
	}
	if scale == t.scale {
		return
	}
	if scale > MaxScale {
		scale = MaxScale
	}

	negative := t.value < 0
	mag, rem, ok := checked.MulDiv(checked.Abs64(t.value), scale, t.scale)
	if !ok {
		*t = infinityFor(negative)
		return
	}

	if rem != 0 {
		t.rounded = true
		if roundsAway(mode, negative, rem, t.scale) {
			mag++
		}
	}

	// int64 holds magnitudes up to 1<<63 for negative values and one less
	// for positive ones.
	if (!negative && mag > math.MaxInt64) || (negative && mag > 1<<63) {
		*t = infinityFor(negative)
		return
	}

	if negative {
		t.value = int64(-mag)
	} else {
		t.value = int64(mag)
	}
	t.scale = scale
}

// roundsAway reports whether the truncated magnitude must grow by one. rem is
// the remainder magnitude against the old scale.
func roundsAway(mode RoundingMode, negative bool, rem uint64, oldScale uint32) bool {
	switch mode {
	case RoundHalfAwayFromZero:
		return rem*2 >= uint64(oldScale)
	case RoundAwayFromZero:
		return true
	case RoundTowardPositiveInfinity:
		return !negative
	case RoundTowardNegativeInfinity:
		return negative
	default:
		return false
	}
}
