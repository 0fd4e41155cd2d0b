package mediatime

import (
	"github.com/zsiec/mediatime/internal/checked"
)

// Comparison is the result of a three-way comparison.
type Comparison int

const (
	LessThan    Comparison = -1
	EqualTo     Comparison = 0
	GreaterThan Comparison = 1
)

// String returns the comparison as "<", "=" or ">".
func (c Comparison) String() string {
	switch c {
	case LessThan:
		return "<"
	case GreaterThan:
		return ">"
	default:
		return "="
	}
}

func (k kind) isInfiniteOrIndefinite() bool {
	return k == kindPositiveInfinite || k == kindNegativeInfinite || k == kindIndefinite
}

// Compare orders t against u.
//
// Two times of the same special class (both +inf, both -inf or both
// indefinite) are equal, as are two invalid times. An invalid time sorts after
// every valid one. Negative infinity is below everything else, positive
// infinity above, and indefinite above every finite time. Doubles compare as
// floats; a double against a rational converts the rational to a float.
// Rationals compare exactly.
func (t MediaTime) Compare(u MediaTime) Comparison {
	switch {
	case t.kind == u.kind && t.kind.isInfiniteOrIndefinite():
		return EqualTo
	case t.kind == kindInvalid && u.kind == kindInvalid:
		return EqualTo
	case t.kind == kindInvalid:
		return GreaterThan
	case u.kind == kindInvalid:
		return LessThan
	case t.kind == kindNegativeInfinite:
		return LessThan
	case u.kind == kindNegativeInfinite:
		return GreaterThan
	case t.kind == kindPositiveInfinite:
		return GreaterThan
	case u.kind == kindPositiveInfinite:
		return LessThan
	case t.kind == kindIndefinite:
		return GreaterThan
	case u.kind == kindIndefinite:
		return LessThan
	case t.kind == kindDouble && u.kind == kindDouble:
		if t.seconds == u.seconds {
			return EqualTo
		}
		if t.seconds < u.seconds {
			return LessThan
		}
		return GreaterThan
	case t.kind == kindDouble || u.kind == kindDouble:
		a, b := t.ToDouble(), u.ToDouble()
		if a > b {
			return GreaterThan
		}
		if a < b {
			return LessThan
		}
		return EqualTo
	}
	return compareRational(t.value, t.scale, u.value, u.scale)
}

func compareRational(lv int64, ls uint32, rv int64, rs uint32) Comparison {
	if (lv < 0) != (rv < 0) {
		if lv < 0 {
			return LessThan
		}
		return GreaterThan
	}

	if lv == 0 && rv == 0 {
		return EqualTo
	}

	if ls == rs {
		return compareInt64(lv, rv)
	}

	// Same nonzero numerator: the smaller scale has the larger magnitude.
	if lv == rv {
		if (ls < rs) == (lv > 0) {
			return GreaterThan
		}
		return LessThan
	}

	if lv >= 0 {
		if lv < rv && ls > rs {
			return LessThan
		}
		if lv > rv && ls < rs {
			return GreaterThan
		}
	} else {
		if lv < rv && ls < rs {
			return LessThan
		}
		if lv > rv && ls > rs {
			return GreaterThan
		}
	}

	lf, lok := checked.Mul64(lv, int64(rs))
	rf, rok := checked.Mul64(rv, int64(ls))
	if lok && rok {
		return compareInt64(lf, rf)
	}

	lw, rw := lv/int64(ls), rv/int64(rs)
	if c := compareInt64(lw, rw); c != EqualTo {
		return c
	}

	// Equal whole parts, so the remainders share the sign of the numerators.
	// Each magnitude is below 2^32, so their cross products fit in a uint64.
	lr := checked.Abs64(lv%int64(ls)) * uint64(rs)
	rr := checked.Abs64(rv%int64(rs)) * uint64(ls)
	if lr == rr {
		return EqualTo
	}
	if (lr > rr) == (lv >= 0) {
		return GreaterThan
	}
	return LessThan
}

func compareInt64(a, b int64) Comparison {
	switch {
	case a < b:
		return LessThan
	case a > b:
		return GreaterThan
	default:
		return EqualTo
	}
}

// Equal reports whether t and u compare equal.
func (t MediaTime) Equal(u MediaTime) bool { return t.Compare(u) == EqualTo }

// NotEqual reports whether t and u do not compare equal.
func (t MediaTime) NotEqual(u MediaTime) bool { return t.Compare(u) != EqualTo }

// Less reports whether t < u.
func (t MediaTime) Less(u MediaTime) bool { return t.Compare(u) == LessThan }

// LessOrEqual reports whether t <= u.
func (t MediaTime) LessOrEqual(u MediaTime) bool { return t.Compare(u) != GreaterThan }

// Greater reports whether t > u.
func (t MediaTime) Greater(u MediaTime) bool { return t.Compare(u) == GreaterThan }

// GreaterOrEqual reports whether t >= u.
func (t MediaTime) GreaterOrEqual(u MediaTime) bool { return t.Compare(u) != LessThan }

// IsBetween reports whether t lies strictly between a and b, in either order.
func (t MediaTime) IsBetween(a, b MediaTime) bool {
	if a.Greater(b) {
		return t.Greater(b) && t.Less(a)
	}
	return t.Greater(a) && t.Less(b)
}
