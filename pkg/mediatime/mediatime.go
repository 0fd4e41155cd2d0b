// Package mediatime implements MediaTime, a rational time value for media
// timestamps and durations.
//
// A MediaTime is either an exact rational (value / scale), a double stored as
// is, or one of four special states: invalid, indefinite, positive infinity
// and negative infinity. Arithmetic never wraps on overflow; it degrades to
// the correctly signed infinity. Invalid and indefinite propagate through
// arithmetic the way NaN does for floats.
//
// The zero value of MediaTime is the invalid time.
package mediatime

import (
	"math"
)

// MaxScale bounds the time scale used when rescaling and when two scales are
// combined by arithmetic.
const MaxScale uint32 = 1000000000

// DefaultTimeScale is the scale reported by values stored as doubles.
const DefaultTimeScale uint32 = 10000000

// Flags are the diagnostic flag bits of a MediaTime.
type Flags uint8

const (
	FlagValid            Flags = 1 << 0
	FlagHasBeenRounded   Flags = 1 << 1
	FlagPositiveInfinite Flags = 1 << 2
	FlagNegativeInfinite Flags = 1 << 3
	FlagIndefinite       Flags = 1 << 4
	FlagDoubleValue      Flags = 1 << 5
)

// kind selects the active representation. The zero kind is invalid so that
// the zero value of MediaTime is the invalid time.
type kind uint8

const (
	kindInvalid kind = iota
	kindIndefinite
	kindPositiveInfinite
	kindNegativeInfinite
	kindRational
	kindDouble
)

// MediaTime is a point in time or a duration. Values are immutable; every
// operation returns a new MediaTime except SetTimeScale.
//
// Only the fields of the active kind are meaningful: value and scale for
// rational times, seconds for double times, none for special states.
type MediaTime struct {
	value   int64
	scale   uint32
	seconds float64
	kind    kind
	rounded bool
}

var (
	zeroTime             = MediaTime{kind: kindRational, value: 0, scale: 1}
	invalidTime          = MediaTime{kind: kindInvalid}
	indefiniteTime       = MediaTime{kind: kindIndefinite}
	positiveInfiniteTime = MediaTime{kind: kindPositiveInfinite}
	negativeInfiniteTime = MediaTime{kind: kindNegativeInfinite}
)

// Zero returns the canonical zero time, 0/1.
func Zero() MediaTime { return zeroTime }

// Invalid returns the canonical invalid time.
func Invalid() MediaTime { return invalidTime }

// Indefinite returns the canonical indefinite time.
func Indefinite() MediaTime { return indefiniteTime }

// PositiveInfinity returns the canonical positive infinite time.
func PositiveInfinity() MediaTime { return positiveInfiniteTime }

// NegativeInfinity returns the canonical negative infinite time.
func NegativeInfinity() MediaTime { return negativeInfiniteTime }

// New returns the exact time value/scale. A zero scale yields negative
// infinity for a negative value and positive infinity otherwise.
func New(value int64, scale uint32) MediaTime {
	if scale == 0 {
		return infinityFor(value < 0)
	}
	return MediaTime{kind: kindRational, value: value, scale: scale}
}

// FromRational builds a time from raw rational components and flag bits.
//
// Special-state flags win over the numeric fields: a missing FlagValid gives
// the invalid time, then the infinite and indefinite flags are tried in that
// order. FlagDoubleValue converts value/scale to a double-stored time.
// FlagHasBeenRounded is kept.
func FromRational(value int64, scale uint32, flags Flags) MediaTime {
	switch {
	case flags&FlagValid == 0:
		return invalidTime
	case flags&FlagPositiveInfinite != 0:
		return positiveInfiniteTime
	case flags&FlagNegativeInfinite != 0:
		return negativeInfiniteTime
	case flags&FlagIndefinite != 0:
		return indefiniteTime
	}

	var t MediaTime
	if flags&FlagDoubleValue != 0 && scale != 0 {
		t = FromDouble(float64(value) / float64(scale))
	} else {
		t = New(value, scale)
	}
	if flags&FlagHasBeenRounded != 0 && t.IsFinite() {
		t.rounded = true
	}
	return t
}

// FromDouble returns x stored as a double. NaN gives the invalid time and an
// infinite x gives the matching infinity.
func FromDouble(x float64) MediaTime {
	if math.IsNaN(x) {
		return invalidTime
	}
	if math.IsInf(x, 0) {
		return infinityFor(math.Signbit(x))
	}
	return MediaTime{kind: kindDouble, seconds: x}
}

// FromFloat is FromDouble for single precision input.
func FromFloat(x float32) MediaTime {
	return FromDouble(float64(x))
}

// FromDoubleWithScale converts x to the exact time round(x*scale)/scale. The
// scale is halved until x*scale fits in an int64. Values outside the int64
// range and a zero scale give the infinity matching the sign of x.
func FromDoubleWithScale(x float64, scale uint32) MediaTime {
	return fromFloatingWithScale(x, scale, math.Round)
}

// FromFloatWithScale converts x to the exact time trunc(x*scale)/scale, with
// the same range handling as FromDoubleWithScale.
func FromFloatWithScale(x float32, scale uint32) MediaTime {
	return fromFloatingWithScale(float64(x), scale, math.Trunc)
}

// int64 bounds as floats. 1<<63 is exact; float64(math.MaxInt64) rounds up to
// the same value, so comparisons must be strict against it.
const int64Limit = float64(1 << 63)

func fitsInt64(x float64) bool {
	return x < int64Limit && x >= -int64Limit
}

func fromFloatingWithScale(x float64, scale uint32, round func(float64) float64) MediaTime {
	if math.IsNaN(x) {
		return invalidTime
	}
	if math.IsInf(x, 0) {
		return infinityFor(math.Signbit(x))
	}
	if x >= int64Limit {
		return positiveInfiniteTime
	}
	if x < -int64Limit {
		return negativeInfiniteTime
	}
	if scale == 0 {
		return infinityFor(math.Signbit(x))
	}

	for scale > 1 && !fitsInt64(round(x*float64(scale))) {
		scale /= 2
	}
	return MediaTime{kind: kindRational, value: int64(round(x * float64(scale))), scale: scale}
}

func infinityFor(negative bool) MediaTime {
	if negative {
		return negativeInfiniteTime
	}
	return positiveInfiniteTime
}

// IsValid reports whether t is anything other than the invalid time.
func (t MediaTime) IsValid() bool { return t.kind != kindInvalid }

// IsInvalid reports whether t is the invalid time.
func (t MediaTime) IsInvalid() bool { return t.kind == kindInvalid }

// IsIndefinite reports whether t is the indefinite time.
func (t MediaTime) IsIndefinite() bool { return t.kind == kindIndefinite }

// IsPositiveInfinite reports whether t is positive infinity.
func (t MediaTime) IsPositiveInfinite() bool { return t.kind == kindPositiveInfinite }

// IsNegativeInfinite reports whether t is negative infinity.
func (t MediaTime) IsNegativeInfinite() bool { return t.kind == kindNegativeInfinite }

// IsFinite reports whether t holds a number, rational or double.
func (t MediaTime) IsFinite() bool { return t.kind == kindRational || t.kind == kindDouble }

// HasDoubleValue reports whether t is stored as a double.
func (t MediaTime) HasDoubleValue() bool { return t.kind == kindDouble }

// HasBeenRounded reports whether a lossy rescale produced t.
func (t MediaTime) HasBeenRounded() bool { return t.rounded }

// TimeValue returns the numerator of a rational time. It is zero for doubles
// and special states.
func (t MediaTime) TimeValue() int64 {
	if t.kind != kindRational {
		return 0
	}
	return t.value
}

// TimeScale returns the denominator of a rational time, DefaultTimeScale for
// doubles and zero for special states.
func (t MediaTime) TimeScale() uint32 {
	switch t.kind {
	case kindRational:
		return t.scale
	case kindDouble:
		return DefaultTimeScale
	default:
		return 0
	}
}

// Flags returns the diagnostic flag bits describing t.
func (t MediaTime) Flags() Flags {
	var f Flags
	switch t.kind {
	case kindInvalid:
		return 0
	case kindIndefinite:
		f = FlagValid | FlagIndefinite
	case kindPositiveInfinite:
		f = FlagValid | FlagPositiveInfinite
	case kindNegativeInfinite:
		f = FlagValid | FlagNegativeInfinite
	case kindRational:
		f = FlagValid
	case kindDouble:
		f = FlagValid | FlagDoubleValue
	}
	if t.rounded {
		f |= FlagHasBeenRounded
	}
	return f
}

// ToDouble converts t to seconds. Invalid and indefinite times give NaN.
func (t MediaTime) ToDouble() float64 {
	switch t.kind {
	case kindPositiveInfinite:
		return math.Inf(1)
	case kindNegativeInfinite:
		return math.Inf(-1)
	case kindDouble:
		return t.seconds
	case kindRational:
		return float64(t.value) / float64(t.scale)
	default:
		return math.NaN()
	}
}

// ToFloat is ToDouble narrowed to single precision.
func (t MediaTime) ToFloat() float32 {
	switch t.kind {
	case kindRational:
		return float32(t.value) / float32(t.scale)
	default:
		return float32(t.ToDouble())
	}
}

// Bool reports whether t is a meaningful nonzero time. Exact zero and the
// invalid time are both false; infinities and indefinite are true.
//
// A zero that has been rounded is not exact and is true, so
// New(1, 3).ToTimeScale(1, RoundTowardZero) is true though it equals Zero().
func (t MediaTime) Bool() bool {
	switch t.kind {
	case kindInvalid:
		return false
	case kindRational:
		return t.value != 0 || t.rounded
	case kindDouble:
		return t.seconds != 0 || t.rounded
	default:
		return true
	}
}
