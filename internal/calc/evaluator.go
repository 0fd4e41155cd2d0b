package calc

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zsiec/mediatime/internal/logger"
	"github.com/zsiec/mediatime/internal/metrics"
	"github.com/zsiec/mediatime/pkg/mediatime"
)

// Operation names accepted by Evaluate.
const (
	OpAdd     = "add"
	OpSub     = "sub"
	OpNeg     = "neg"
	OpAbs     = "abs"
	OpMul     = "mul"
	OpCompare = "compare"
	OpBetween = "between"
	OpRescale = "rescale"
	OpParse   = "parse"
)

// Request is one operation on operands written in the package syntax.
//
// Multiplier is required by mul. Scale and Rounding are used by rescale; a
// zero Scale or empty Rounding selects the evaluator defaults.
type Request struct {
	Op         string   `json:"op"`
	Operands   []string `json:"operands"`
	Multiplier *int32   `json:"multiplier,omitempty"`
	Scale      uint32   `json:"scale,omitempty"`
	Rounding   string   `json:"rounding,omitempty"`
}

// Result is the outcome of Evaluate. Value and Text are set by operations that
// produce a time; Comparison by compare; Bool by between and compare.
type Result struct {
	Op         string               `json:"op"`
	Value      *mediatime.MediaTime `json:"value,omitempty"`
	Text       string               `json:"text,omitempty"`
	Comparison string               `json:"comparison,omitempty"`
	Bool       *bool                `json:"result,omitempty"`
	Rounded    bool                 `json:"rounded"`
}

// Options are the defaults applied to rescale requests.
type Options struct {
	DefaultScale    uint32
	DefaultRounding mediatime.RoundingMode
}

// DefaultOptions rescales to 90kHz rounding half away from zero.
func DefaultOptions() Options {
	return Options{DefaultScale: 90000, DefaultRounding: mediatime.RoundHalfAwayFromZero}
}

// Evaluator runs Requests and records metrics for each one. It holds no
// mutable state and is safe for concurrent use.
type Evaluator struct {
	opts    Options
	logger  logger.Logger
	sampled *logger.SampledLogger
}

func NewEvaluator(opts Options, log logger.Logger) *Evaluator {
	if opts.DefaultScale == 0 {
		opts.DefaultScale = DefaultOptions().DefaultScale
	}
	log = log.WithField("component", "calc")
	return &Evaluator{
		opts:    opts,
		logger:  log,
		sampled: logger.NewSampledLogger(log).WithSampler(logger.CategoryRoundedResult, 5, 10),
	}
}

// Evaluate runs req. Operand parse failures wrap ErrSyntax, bad operand counts
// or options wrap ErrArgument, and unknown operations return
// ErrUnknownOperation.
func (e *Evaluator) Evaluate(req Request) (Result, error) {
	start := time.Now()
	op := strings.ToLower(strings.TrimSpace(req.Op))

	res, operands, err := e.evaluate(op, req)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		metrics.RecordOperation(metricLabel(op), metrics.OutcomeError, false, false, elapsed)
		e.logger.WithError(err).WithField("op", op).Debug("Evaluation failed")
		return Result{}, err
	}

	outcome, overflow := metrics.OutcomeCompare, false
	if res.Value != nil {
		outcome = outcomeOf(*res.Value)
		overflow = outcome == metrics.OutcomeInfinite && allFinite(operands)
	}
	metrics.RecordOperation(op, outcome, res.Rounded, overflow, elapsed)

	fields := logger.Fields{"op": op, "operands": req.Operands}
	if res.Rounded {
		e.sampled.DebugWithCategory(logger.CategoryRoundedResult, "Result was rounded", fields)
	} else {
		e.logger.WithFields(fields).Debug("Evaluated")
	}

	return res, nil
}

func (e *Evaluator) evaluate(op string, req Request) (Result, []mediatime.MediaTime, error) {
	arity, ok := operandCounts[op]
	if !ok {
		return Result{}, nil, fmt.Errorf("%w: %q", ErrUnknownOperation, req.Op)
	}
	if len(req.Operands) < arity.min || (arity.max > 0 && len(req.Operands) > arity.max) {
		return Result{}, nil, fmt.Errorf("%w: %s takes %s, got %d", ErrArgument, op, arity, len(req.Operands))
	}

	operands := make([]mediatime.MediaTime, len(req.Operands))
	for i, s := range req.Operands {
		t, err := Parse(s)
		if err != nil {
			return Result{}, nil, fmt.Errorf("operand %d: %w", i+1, err)
		}
		operands[i] = t
	}

	res := Result{Op: op}
	switch op {
	case OpAdd:
		sum := operands[0]
		for _, t := range operands[1:] {
			sum = sum.Add(t)
		}
		res.setValue(sum)
	case OpSub:
		res.setValue(operands[0].Sub(operands[1]))
	case OpNeg:
		res.setValue(operands[0].Neg())
	case OpAbs:
		res.setValue(operands[0].Abs())
	case OpParse:
		res.setValue(operands[0])
	case OpMul:
		if req.Multiplier == nil {
			return Result{}, nil, fmt.Errorf("%w: mul requires a multiplier", ErrArgument)
		}
		res.setValue(operands[0].Mul(*req.Multiplier))
	case OpRescale:
		scale, mode, err := e.rescaleOptions(req)
		if err != nil {
			return Result{}, nil, err
		}
		res.setValue(operands[0].ToTimeScale(scale, mode))
	case OpCompare:
		c := operands[0].Compare(operands[1])
		eq := c == mediatime.EqualTo
		res.Comparison = c.String()
		res.Bool = &eq
	case OpBetween:
		in := operands[0].IsBetween(operands[1], operands[2])
		res.Bool = &in
	}
	return res, operands, nil
}

func (e *Evaluator) rescaleOptions(req Request) (uint32, mediatime.RoundingMode, error) {
	scale := req.Scale
	if scale == 0 {
		scale = e.opts.DefaultScale
	}
	mode := e.opts.DefaultRounding
	if req.Rounding != "" {
		m, err := mediatime.ParseRoundingMode(req.Rounding)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %v", ErrArgument, err)
		}
		mode = m
	}
	return scale, mode, nil
}

func (r *Result) setValue(t mediatime.MediaTime) {
	r.Value = &t
	r.Text = Format(t)
	r.Rounded = t.HasBeenRounded()
}

type arity struct{ min, max int }

func (a arity) String() string {
	switch {
	case a.max == 0:
		return fmt.Sprintf("at least %d operands", a.min)
	case a.min == 1 && a.max == 1:
		return "1 operand"
	default:
		return fmt.Sprintf("%d operands", a.min)
	}
}

// max 0 means unbounded.
var operandCounts = map[string]arity{
	OpAdd:     {2, 0},
	OpSub:     {2, 2},
	OpNeg:     {1, 1},
	OpAbs:     {1, 1},
	OpMul:     {1, 1},
	OpCompare: {2, 2},
	OpBetween: {3, 3},
	OpRescale: {1, 1},
	OpParse:   {1, 1},
}

// Operations lists the accepted operation names.
func Operations() []string {
	return []string{OpAdd, OpSub, OpNeg, OpAbs, OpMul, OpCompare, OpBetween, OpRescale, OpParse}
}

// metricLabel keeps arbitrary client input out of label values.
func metricLabel(op string) string {
	if _, ok := operandCounts[op]; ok {
		return op
	}
	return "unknown"
}

func outcomeOf(t mediatime.MediaTime) string {
	switch {
	case t.IsInvalid():
		return metrics.OutcomeInvalid
	case t.IsIndefinite():
		return metrics.OutcomeIndefinite
	case t.IsPositiveInfinite(), t.IsNegativeInfinite():
		return metrics.OutcomeInfinite
	}
	return metrics.OutcomeFinite
}

func allFinite(ts []mediatime.MediaTime) bool {
	for _, t := range ts {
		if !t.IsFinite() {
			return false
		}
	}
	return len(ts) > 0
}

// ParseLine reads the command line form "op operand... [key=value...]".
// Keys are scale, rounding and by (the mul multiplier). For mul a second
// positional argument is taken as the multiplier.
func ParseLine(line string) (Request, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Request{}, fmt.Errorf("%w: empty line", ErrArgument)
	}

	req := Request{Op: strings.ToLower(fields[0])}
	for _, f := range fields[1:] {
		key, value, ok := strings.Cut(f, "=")
		if !ok {
			req.Operands = append(req.Operands, f)
			continue
		}
		switch strings.ToLower(key) {
		case "scale":
			scale, err := strconv.ParseUint(value, 10, 32)
			if err != nil {
				return Request{}, fmt.Errorf("%w: scale %q", ErrArgument, value)
			}
			req.Scale = uint32(scale)
		case "rounding":
			req.Rounding = value
		case "by", "multiplier":
			n, err := parseMultiplier(value)
			if err != nil {
				return Request{}, err
			}
			req.Multiplier = &n
		default:
			return Request{}, fmt.Errorf("%w: unknown option %q", ErrArgument, key)
		}
	}

	if req.Op == OpMul && req.Multiplier == nil && len(req.Operands) == 2 {
		n, err := parseMultiplier(req.Operands[1])
		if err != nil {
			return Request{}, err
		}
		req.Multiplier = &n
		req.Operands = req.Operands[:1]
	}

	return req, nil
}

func parseMultiplier(s string) (int32, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: multiplier %q", ErrArgument, s)
	}
	return int32(n), nil
}

// EvaluateLine parses line with ParseLine and evaluates it.
func (e *Evaluator) EvaluateLine(line string) (Result, error) {
	req, err := ParseLine(line)
	if err != nil {
		return Result{}, err
	}
	return e.Evaluate(req)
}
