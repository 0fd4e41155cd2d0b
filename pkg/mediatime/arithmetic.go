package mediatime

import (
	"math"

	"github.com/zsiec/mediatime/internal/checked"
)

// Add returns t + u.
//
// Invalid beats indefinite, which beats infinities. Adding opposite
// infinities is invalid. If either operand is a double the sum is computed in
// floating point. Otherwise both operands are brought to a common scale and
// added exactly; on overflow the scale is halved until the sum fits, and at
// scale one the overflow becomes the infinity of the sum's sign.
func (t MediaTime) Add(u MediaTime) MediaTime {
	switch {
	case t.kind == kindInvalid || u.kind == kindInvalid:
		return invalidTime
	case t.kind == kindIndefinite || u.kind == kindIndefinite:
		return indefiniteTime
	case t.kind == kindPositiveInfinite && u.kind == kindNegativeInfinite,
		t.kind == kindNegativeInfinite && u.kind == kindPositiveInfinite:
		return invalidTime
	case t.kind == kindPositiveInfinite || u.kind == kindPositiveInfinite:
		return positiveInfiniteTime
	case t.kind == kindNegativeInfinite || u.kind == kindNegativeInfinite:
		return negativeInfiniteTime
	case t.kind == kindDouble || u.kind == kindDouble:
		return FromDouble(t.ToDouble() + u.ToDouble())
	}
	return combineRational(t, u, checked.Add64)
}

// Sub returns t - u. Subtracting an infinity from itself is invalid;
// otherwise the rules of Add apply with the sign of u flipped.
func (t MediaTime) Sub(u MediaTime) MediaTime {
	switch {
	case t.kind == kindInvalid || u.kind == kindInvalid:
		return invalidTime
	case t.kind == kindIndefinite || u.kind == kindIndefinite:
		return indefiniteTime
	case t.kind == kindPositiveInfinite && u.kind == kindPositiveInfinite,
		t.kind == kindNegativeInfinite && u.kind == kindNegativeInfinite:
		return invalidTime
	case t.kind == kindPositiveInfinite || u.kind == kindNegativeInfinite:
		return positiveInfiniteTime
	case t.kind == kindNegativeInfinite || u.kind == kindPositiveInfinite:
		return negativeInfiniteTime
	case t.kind == kindDouble || u.kind == kindDouble:
		return FromDouble(t.ToDouble() - u.ToDouble())
	}
	return combineRational(t, u, checked.Sub64)
}

// Neg returns -t.
func (t MediaTime) Neg() MediaTime {
	switch t.kind {
	case kindInvalid:
		return invalidTime
	case kindIndefinite:
		return indefiniteTime
	case kindPositiveInfinite:
		return negativeInfiniteTime
	case kindNegativeInfinite:
		return positiveInfiniteTime
	case kindDouble:
		t.seconds = -t.seconds
		return t
	}
	return scaleRational(t, -1)
}

// Mul returns t * n. Multiplying by zero gives exact zero unless t is invalid
// or indefinite. On overflow the scale of t is halved until the product fits.
func (t MediaTime) Mul(n int32) MediaTime {
	switch {
	case t.kind == kindInvalid:
		return invalidTime
	case t.kind == kindIndefinite:
		return indefiniteTime
	case n == 0:
		return zeroTime
	case t.kind == kindPositiveInfinite:
		return infinityFor(n < 0)
	case t.kind == kindNegativeInfinite:
		return infinityFor(n > 0)
	case t.kind == kindDouble:
		return FromDouble(t.seconds * float64(n))
	}
	return scaleRational(t, int64(n))
}

// Abs returns |t|. Either infinity gives positive infinity.
func (t MediaTime) Abs() MediaTime {
	switch t.kind {
	case kindInvalid:
		return invalidTime
	case kindIndefinite:
		return indefiniteTime
	case kindPositiveInfinite, kindNegativeInfinite:
		return positiveInfiniteTime
	case kindDouble:
		return FromDouble(math.Abs(t.seconds))
	}
	if t.value < 0 {
		return scaleRational(t, -1)
	}
	return t
}

// combineRational applies op to two rational times at their least common
// scale, capped at MaxScale, backing off the scale on overflow.
func combineRational(a, b MediaTime, op func(int64, int64) (int64, bool)) MediaTime {
	scale, ok := checked.LCM(a.scale, b.scale)
	if !ok || scale > MaxScale {
		scale = MaxScale
	}

	for {
		x := a.ToTimeScale(scale, RoundHalfAwayFromZero)
		y := b.ToTimeScale(scale, RoundHalfAwayFromZero)
		if x.kind == kindRational && y.kind == kindRational {
			if v, ok := op(x.value, y.value); ok {
				return MediaTime{
					kind:    kindRational,
					value:   v,
					scale:   scale,
					rounded: x.rounded || y.rounded,
				}
			}
		}
		if scale == 1 {
			// Rescaling down to one cannot overflow, so op failed. A failed
			// add or sub is negative exactly when the left operand is.
			return infinityFor(x.value < 0)
		}
		scale /= 2
	}
}

// scaleRational multiplies a rational time by n, halving its scale on
// overflow. At scale one the overflow becomes the infinity of the product's
// sign.
func scaleRational(t MediaTime, n int64) MediaTime {
	for {
		if v, ok := checked.Mul64(t.value, n); ok {
			t.value = v
			return t
		}
		if t.scale == 1 {
			return infinityFor((t.value < 0) != (n < 0))
		}
		t = t.ToTimeScale(t.scale/2, RoundHalfAwayFromZero)
	}
}
