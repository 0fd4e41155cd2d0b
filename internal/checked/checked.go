// Package checked provides integer arithmetic that reports overflow instead of
// wrapping. Every operation returns the result together with an ok flag; when
// ok is false the result must not be used.
package checked

import (
	"math"
	"math/bits"
)

// Add64 returns a+b.
func Add64(a, b int64) (int64, bool) {
	c := a + b
	if (b > 0 && c < a) || (b < 0 && c > a) {
		return 0, false
	}
	return c, true
}

// Sub64 returns a-b.
func Sub64(a, b int64) (int64, bool) {
	c := a - b
	if (b < 0 && c < a) || (b > 0 && c > a) {
		return 0, false
	}
	return c, true
}

// Mul64 returns a*b.
func Mul64(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	c := a * b
	if (c < 0) != ((a < 0) != (b < 0)) || c/b != a {
		return 0, false
	}
	return c, true
}

// Neg64 returns -a. It fails only for math.MinInt64.
func Neg64(a int64) (int64, bool) {
	if a == math.MinInt64 {
		return 0, false
	}
	return -a, true
}

// MulUint32 returns a*b.
func MulUint32(a, b uint32) (uint32, bool) {
	p := uint64(a) * uint64(b)
	if p > math.MaxUint32 {
		return 0, false
	}
	return uint32(p), true
}

// GCD returns the greatest common divisor of a and b using Euclid's algorithm.
// GCD(a, 0) is a.
func GCD(a, b uint32) uint32 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// LCM returns the least common multiple of a and b. It fails when the result
// does not fit in a uint32 or when either argument is zero.
func LCM(a, b uint32) (uint32, bool) {
	if a == 0 || b == 0 {
		return 0, false
	}
	return MulUint32(a, b/GCD(a, b))
}

// Abs64 returns |v| as an unsigned magnitude. Abs64(math.MinInt64) is 1<<63.
func Abs64(v int64) uint64 {
	u := uint64(v)
	if v < 0 {
		u = -u
	}
	return u
}

// MulDiv computes mag*mul/div with a 128-bit intermediate product and returns
// the quotient and the remainder. It fails when div is zero or the quotient
// does not fit in a uint64.
func MulDiv(mag uint64, mul, div uint32) (quo, rem uint64, ok bool) {
	if div == 0 {
		return 0, 0, false
	}
	hi, lo := bits.Mul64(mag, uint64(mul))
	if hi >= uint64(div) {
		return 0, 0, false
	}
	quo, rem = bits.Div64(hi, lo, uint64(div))
	return quo, rem, true
}
