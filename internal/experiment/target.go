package experiment

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/spf13/cast"

	"github.com/san-kum/batsim/internal/dynamo"
	"github.com/san-kum/batsim/internal/sim"
)

// functions available to target expressions.
var functions = map[string]govaluate.ExpressionFunction{
	"sin":  unary(math.Sin),
	"cos":  unary(math.Cos),
	"exp":  unary(math.Exp),
	"sqrt": unary(math.Sqrt),
	"abs":  unary(math.Abs),
	"min":  binary(math.Min),
	"max":  binary(math.Max),
}

func unary(f func(float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("want 1 argument, got %d", len(args))
		}
		x, err := cast.ToFloat64E(args[0])
		if err != nil {
			return nil, err
		}
		return f(x), nil
	}
}

func binary(f func(float64, float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("want 2 arguments, got %d", len(args))
		}
		x, err := cast.ToFloat64E(args[0])
		if err != nil {
			return nil, err
		}
		y, err := cast.ToFloat64E(args[1])
		if err != nil {
			return nil, err
		}
		return f(x, y), nil
	}
}

// Expression compiles src into a target of t, the time since the start of
// the step [s]. The expression is checked once at t = 0. Evaluation errors
// during integration yield NaN, which the solver rejects.
func Expression(src string) (sim.TargetFunc, error) {
	expr, err := govaluate.NewEvaluableExpressionWithFunctions(src, functions)
	if err != nil {
		return nil, fmt.Errorf("%w: target %q: %v", dynamo.ErrConfig, src, err)
	}
	for _, v := range expr.Vars() {
		if v != "t" {
			return nil, fmt.Errorf("%w: target %q uses unknown variable %q", dynamo.ErrConfig, src, v)
		}
	}

	eval := func(t float64) (float64, error) {
		out, err := expr.Evaluate(map[string]interface{}{"t": t})
		if err != nil {
			return 0, err
		}
		return cast.ToFloat64E(out)
	}
	if _, err := eval(0); err != nil {
		return nil, fmt.Errorf("%w: target %q: %v", dynamo.ErrConfig, src, err)
	}

	return func(t float64) float64 {
		v, err := eval(t)
		if err != nil {
			return math.NaN()
		}
		return v
	}, nil
}

// Target converts a step value into a TargetFunc. Numbers and numeric
// strings are constants, other strings are expressions in t, and a
// TargetFunc or plain func(float64) float64 is used as given.
func Target(value any) (sim.TargetFunc, error) {
	switch v := value.(type) {
	case nil:
		return nil, fmt.Errorf("%w: step has no value", dynamo.ErrConfig)
	case sim.TargetFunc:
		return v, nil
	case func(float64) float64:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return sim.Constant(f), nil
		}
		return Expression(s)
	}
	f, err := cast.ToFloat64E(value)
	if err != nil {
		return nil, fmt.Errorf("%w: step value %v: %v", dynamo.ErrConfig, value, err)
	}
	return sim.Constant(f), nil
}
