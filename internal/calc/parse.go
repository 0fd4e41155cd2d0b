// Package calc parses, formats and evaluates time expressions for the API
// and the command line.
//
// The text syntax is:
//
//	invalid, nan          the invalid time
//	indefinite            the indefinite time
//	+inf, inf, -inf       the infinities ("infinity" is also accepted)
//	N/S                   the exact rational N/S
//	N                     the integer N seconds, N/1
//	D                     a decimal or exponent literal, stored as a double
//	D@S                   D converted to the nearest multiple of 1/S
//
// Keywords are case-insensitive and surrounding whitespace is ignored.
package calc

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/zsiec/mediatime/pkg/mediatime"
)

var (
	// ErrSyntax is wrapped by every Parse failure.
	ErrSyntax = errors.New("syntax error")
	// ErrUnknownOperation is returned for operation names Evaluate does not know.
	ErrUnknownOperation = errors.New("unknown operation")
	// ErrArgument is wrapped when an operation gets the wrong operands or options.
	ErrArgument = errors.New("invalid argument")
)

var keywords = map[string]mediatime.MediaTime{
	"invalid":    mediatime.Invalid(),
	"nan":        mediatime.Invalid(),
	"indefinite": mediatime.Indefinite(),
	"inf":        mediatime.PositiveInfinity(),
	"+inf":       mediatime.PositiveInfinity(),
	"infinity":   mediatime.PositiveInfinity(),
	"+infinity":  mediatime.PositiveInfinity(),
	"-inf":       mediatime.NegativeInfinity(),
	"-infinity":  mediatime.NegativeInfinity(),
}

// Parse reads a time in the package syntax.
func Parse(s string) (mediatime.MediaTime, error) {
	text := strings.TrimSpace(s)
	if text == "" {
		return mediatime.Invalid(), fmt.Errorf("%w: empty time", ErrSyntax)
	}

	if t, ok := keywords[strings.ToLower(text)]; ok {
		return t, nil
	}

	if num, scale, ok := strings.Cut(text, "/"); ok {
		value, err := strconv.ParseInt(strings.TrimSpace(num), 10, 64)
		if err != nil {
			return mediatime.Invalid(), fmt.Errorf("%w: numerator %q: %v", ErrSyntax, num, numError(err))
		}
		ts, err := parseScale(scale)
		if err != nil {
			return mediatime.Invalid(), err
		}
		return mediatime.New(value, ts), nil
	}

	if dec, scale, ok := strings.Cut(text, "@"); ok {
		x, err := parseDecimal(dec)
		if err != nil {
			return mediatime.Invalid(), err
		}
		ts, err := parseScale(scale)
		if err != nil {
			return mediatime.Invalid(), err
		}
		return mediatime.FromDoubleWithScale(x, ts), nil
	}

	if value, err := strconv.ParseInt(text, 10, 64); err == nil {
		return mediatime.New(value, 1), nil
	}

	x, err := parseDecimal(text)
	if err != nil {
		return mediatime.Invalid(), err
	}
	return mediatime.FromDouble(x), nil
}

func parseScale(s string) (uint32, error) {
	scale, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: scale %q: %v", ErrSyntax, s, numError(err))
	}
	return uint32(scale), nil
}

// parseDecimal accepts finite literals only; NaN and infinities are keywords.
func parseDecimal(s string) (float64, error) {
	text := strings.TrimSpace(s)
	x, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: number %q: %v", ErrSyntax, text, numError(err))
	}
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, fmt.Errorf("%w: number %q is not finite", ErrSyntax, text)
	}
	return x, nil
}

func numError(err error) error {
	var ne *strconv.NumError
	if errors.As(err, &ne) {
		return ne.Err
	}
	return err
}

// Format writes t in the syntax Parse reads. Rationals keep their scale and
// doubles always carry a decimal point or exponent, so Parse(Format(t)) gives
// back the same representation. The rounded flag is not written.
func Format(t mediatime.MediaTime) string {
	switch {
	case t.IsInvalid():
		return "invalid"
	case t.IsIndefinite():
		return "indefinite"
	case t.IsPositiveInfinite():
		return "+inf"
	case t.IsNegativeInfinite():
		return "-inf"
	case t.HasDoubleValue():
		s := strconv.FormatFloat(t.ToDouble(), 'g', -1, 64)
		if !strings.ContainsAny(s, ".e") {
			s += ".0"
		}
		return s
	}
	return strconv.FormatInt(t.TimeValue(), 10) + "/" + strconv.FormatUint(uint64(t.TimeScale()), 10)
}
