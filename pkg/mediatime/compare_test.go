package mediatime

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name     string
		a, b     MediaTime
		expected Comparison
	}{
		{"Larger fraction", New(1, 2), New(1, 3), GreaterThan},
		{"Equivalent fractions", New(1, 3), New(2, 6), EqualTo},
		{"Same scale", New(3, 90000), New(4, 90000), LessThan},
		{"Different signs", New(-1, 1000), New(1, 1000000), LessThan},
		{"Zeros at different scales", New(0, 5), New(0, 7), EqualTo},
		{"Same positive numerator", New(1, 2), New(1, 3), GreaterThan},
		{"Same negative numerator", New(-1, 2), New(-1, 3), LessThan},
		{"Same negative numerator reversed", New(-1, 3), New(-1, 2), GreaterThan},
		{"Negative fractions", New(-2, 3), New(-3, 4), GreaterThan},
		{"Clock rates", New(90000, 90000), New(48000, 48000), EqualTo},

		// Cross products overflow, so the whole and fractional parts decide.
		{"Whole parts", New(9000000000000000000, 1000), New(8000000000000000000, 999), GreaterThan},
		{"Fractional parts", New(9000000000000000001, 9), New(8000000000000000001, 8), LessThan},
		{"Equal large values", New(9000000000000000000, 9), New(8000000000000000000, 8), EqualTo},
		{"Negative fractional parts", New(-9000000000000000001, 9), New(-8000000000000000001, 8), GreaterThan},

		{"Doubles", FromDouble(0.5), FromDouble(0.25), GreaterThan},
		{"Equal doubles", FromDouble(0.5), FromDouble(0.5), EqualTo},
		{"Double against rational", FromDouble(0.5), New(1, 2), EqualTo},
		{"Rational against double", New(1, 3), FromDouble(0.3), GreaterThan},

		{"Negative infinity below finite", NegativeInfinity(), New(math.MinInt64, 1), LessThan},
		{"Positive infinity above finite", PositiveInfinity(), New(math.MaxInt64, 1), GreaterThan},
		{"Finite below positive infinity", FromDouble(1e300), PositiveInfinity(), LessThan},
		{"Indefinite above finite", Indefinite(), New(math.MaxInt64, 1), GreaterThan},
		{"Finite below indefinite", New(1, 1), Indefinite(), LessThan},
		{"Indefinite against itself", Indefinite(), Indefinite(), EqualTo},
		{"Positive infinity against itself", PositiveInfinity(), PositiveInfinity(), EqualTo},
		{"Negative infinity against itself", NegativeInfinity(), NegativeInfinity(), EqualTo},
		{"Indefinite below positive infinity", Indefinite(), PositiveInfinity(), LessThan},
		{"Indefinite above negative infinity", Indefinite(), NegativeInfinity(), GreaterThan},
		{"Invalid against itself", Invalid(), Invalid(), EqualTo},
		{"Invalid above finite", Invalid(), New(1, 1), GreaterThan},
		{"Finite below invalid", New(1, 1), Invalid(), LessThan},
		{"Invalid above positive infinity", Invalid(), PositiveInfinity(), GreaterThan},
		{"Negative infinity below invalid", NegativeInfinity(), Invalid(), LessThan},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.a.Compare(tt.b))
		})
	}
}

func TestCompareIsAntisymmetric(t *testing.T) {
	values := append(sampleTimes(), PositiveInfinity(), NegativeInfinity(), Indefinite(), Invalid())
	for _, a := range values {
		for _, b := range values {
			assert.Equal(t, -a.Compare(b), b.Compare(a), "%s vs %s", a, b)
		}
	}
}

func TestComparisonOperators(t *testing.T) {
	a, b := New(1, 3), New(1, 2)

	assert.True(t, a.Less(b))
	assert.True(t, a.LessOrEqual(b))
	assert.True(t, a.LessOrEqual(a))
	assert.False(t, a.Greater(b))
	assert.True(t, b.Greater(a))
	assert.True(t, b.GreaterOrEqual(a))
	assert.True(t, b.GreaterOrEqual(b))
	assert.True(t, a.NotEqual(b))
	assert.False(t, a.Equal(b))
	assert.True(t, a.Equal(New(3, 9)))
}

func TestComparisonString(t *testing.T) {
	assert.Equal(t, "<", LessThan.String())
	assert.Equal(t, "=", EqualTo.String())
	assert.Equal(t, ">", GreaterThan.String())
}

func TestIsBetween(t *testing.T) {
	tests := []struct {
		name     string
		value    MediaTime
		a, b     MediaTime
		expected bool
	}{
		{"Inside", New(1, 2), Zero(), New(1, 1), true},
		{"Inside reversed bounds", New(1, 2), New(1, 1), Zero(), true},
		{"At lower bound", Zero(), Zero(), New(1, 1), false},
		{"At upper bound", New(1, 1), Zero(), New(1, 1), false},
		{"Outside", New(3, 2), Zero(), New(1, 1), false},
		{"Empty interval", Zero(), Zero(), Zero(), false},
		{"Between infinities", New(42, 1), NegativeInfinity(), PositiveInfinity(), true},
		{"Mixed representations", FromDouble(0.25), Zero(), New(1, 2), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.value.IsBetween(tt.a, tt.b))
		})
	}
}

func TestIsBetweenIsSymmetric(t *testing.T) {
	values := sampleTimes()
	for _, x := range values {
		for _, a := range values {
			for _, b := range values {
				assert.Equal(t, x.IsBetween(a, b), x.IsBetween(b, a), "%s between %s and %s", x, a, b)
			}
		}
	}
}
