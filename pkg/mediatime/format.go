package mediatime

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Sentinel strings used in place of a numeric value in the diagnostic object.
const (
	ValueNaN              = "NaN"
	ValuePositiveInfinity = "POSITIVE_INFINITY"
	ValueNegativeInfinity = "NEGATIVE_INFINITY"
)

// ErrMalformedJSON is returned by UnmarshalJSON for objects that do not
// describe a MediaTime.
var ErrMalformedJSON = errors.New("mediatime: malformed time object")

// components returns the numerator and denominator shown for t. Special
// states use a scale of 1: -1/1 for invalid and negative infinity, 0/1 for
// positive infinity and indefinite.
func (t MediaTime) components() (int64, uint32) {
	switch t.kind {
	case kindInvalid, kindNegativeInfinite:
		return -1, 1
	case kindPositiveInfinite, kindIndefinite:
		return 0, 1
	default:
		return t.value, t.scale
	}
}

// String returns "{value/scale = seconds}", or "{seconds}" for doubles.
func (t MediaTime) String() string {
	var b strings.Builder
	b.WriteByte('{')
	if t.kind != kindDouble {
		value, scale := t.components()
		b.WriteString(strconv.FormatInt(value, 10))
		b.WriteByte('/')
		b.WriteString(strconv.FormatUint(uint64(scale), 10))
		b.WriteString(" = ")
	}
	b.WriteString(strconv.FormatFloat(t.ToDouble(), 'g', 6, 64))
	b.WriteByte('}')
	return b.String()
}

// Diagnostic is the structured form of a MediaTime. Value is a float64 or one
// of the sentinel strings. Numerator, Denominator and Flags are nil for
// doubles.
type Diagnostic struct {
	Value       interface{} `json:"value"`
	Numerator   *int64      `json:"numerator,omitempty"`
	Denominator *uint32     `json:"denominator,omitempty"`
	Flags       *Flags      `json:"flags,omitempty"`
}

// Diagnostic returns the structured form of t.
func (t MediaTime) Diagnostic() Diagnostic {
	if t.kind == kindDouble {
		return Diagnostic{Value: t.seconds}
	}

	var d Diagnostic
	switch t.kind {
	case kindInvalid, kindIndefinite:
		d.Value = ValueNaN
	case kindPositiveInfinite:
		d.Value = ValuePositiveInfinity
	case kindNegativeInfinite:
		d.Value = ValueNegativeInfinity
	default:
		d.Value = t.ToDouble()
	}

	value, scale := t.components()
	flags := t.Flags()
	d.Numerator = &value
	d.Denominator = &scale
	d.Flags = &flags
	return d
}

// MarshalJSON encodes the diagnostic object of t.
func (t MediaTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Diagnostic())
}

// JSONString returns the diagnostic object of t as a JSON string.
func (t MediaTime) JSONString() string {
	data, err := t.MarshalJSON()
	if err != nil {
		return "{}"
	}
	return string(data)
}

// UnmarshalJSON decodes an object written by MarshalJSON. Objects carrying
// flags are rebuilt with FromRational; objects with only a numeric value are
// doubles.
func (t *MediaTime) UnmarshalJSON(data []byte) error {
	var obj struct {
		Value       json.RawMessage `json:"value"`
		Numerator   *int64          `json:"numerator"`
		Denominator *uint32         `json:"denominator"`
		Flags       *Flags          `json:"flags"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}

	if obj.Flags != nil {
		if obj.Numerator == nil || obj.Denominator == nil {
			return fmt.Errorf("%w: flags without numerator and denominator", ErrMalformedJSON)
		}
		*t = FromRational(*obj.Numerator, *obj.Denominator, *obj.Flags)
		return nil
	}

	if len(obj.Value) == 0 {
		return fmt.Errorf("%w: missing value", ErrMalformedJSON)
	}

	var seconds float64
	if err := json.Unmarshal(obj.Value, &seconds); err == nil {
		*t = FromDouble(seconds)
		return nil
	}

	var sentinel string
	if err := json.Unmarshal(obj.Value, &sentinel); err != nil {
		return fmt.Errorf("%w: value is neither a number nor a string", ErrMalformedJSON)
	}
	switch sentinel {
	case ValueNaN:
		*t = invalidTime
	case ValuePositiveInfinity:
		*t = positiveInfiniteTime
	case ValueNegativeInfinity:
		*t = negativeInfiniteTime
	default:
		return fmt.Errorf("%w: unknown value %q", ErrMalformedJSON, sentinel)
	}
	return nil
}
