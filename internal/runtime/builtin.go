package runtime

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Builtins returns the side-effect-free built-in functions available to expressions.
func Builtins() MapScope {
	scope := MapScope{}
	for _, b := range []*BuiltinVal{
		{Name: "len", Fn: builtinLen},
		{Name: "str", Fn: builtinStr},
		{Name: "int", Fn: builtinInt},
		{Name: "float", Fn: builtinFloat},
		{Name: "bool", Fn: builtinBool},
		{Name: "abs", Fn: builtinAbs},
		{Name: "min", Fn: func(ctx context.Context, args []Value) (Value, error) { return extremum("min", args, -1) }},
		{Name: "max", Fn: func(ctx context.Context, args []Value) (Value, error) { return extremum("max", args, 1) }},
		{Name: "round", Fn: builtinRound},
	} {
		scope[b.Name] = b
	}
	return scope
}

// ArgCount checks that a builtin received between lo and hi arguments.
func ArgCount(name string, args []Value, lo, hi int) error {
	if len(args) >= lo && len(args) <= hi {
		return nil
	}
	switch {
	case lo == hi:
		return fmt.Errorf("%s() takes exactly %d argument(s) (%d given)", name, lo, len(args))
	case len(args) < lo:
		return fmt.Errorf("%s() takes at least %d argument(s) (%d given)", name, lo, len(args))
	default:
		return fmt.Errorf("%s() takes at most %d argument(s) (%d given)", name, hi, len(args))
	}
}

func builtinLen(_ context.Context, args []Value) (Value, error) {
	if err := ArgCount("len", args, 1, 1); err != nil {
		return nil, err
	}
	switch v := args[0].(type) {
	case StringVal:
		return IntVal(utf8.RuneCountInString(string(v))), nil
	case *ListVal:
		return IntVal(len(v.Elements)), nil
	case *RangeVal:
		return IntVal(v.Len()), nil
	case *DictVal:
		return IntVal(v.Len()), nil
	case *SetVal:
		return IntVal(v.Len()), nil
	default:
		return nil, fmt.Errorf("object of type '%s' has no len()", args[0].TypeName())
	}
}

func builtinStr(_ context.Context, args []Value) (Value, error) {
	if err := ArgCount("str", args, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return StringVal(""), nil
	}
	return StringVal(args[0].String()), nil
}

func builtinInt(_ context.Context, args []Value) (Value, error) {
	if err := ArgCount("int", args, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return IntVal(0), nil
	}
	switch v := args[0].(type) {
	case IntVal:
		return v, nil
	case BoolVal:
		i, _ := ToInt64(v)
		return IntVal(i), nil
	case FloatVal:
		f := float64(v)
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return nil, fmt.Errorf("cannot convert float %s to integer", v)
		}
		return IntVal(int64(f)), nil
	case StringVal:
		s := strings.ReplaceAll(strings.TrimSpace(string(v)), "_", "")
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid literal for int() with base 10: %s", Repr(v))
		}
		return IntVal(i), nil
	default:
		return nil, fmt.Errorf("int() argument must be a string or a number, not '%s'", args[0].TypeName())
	}
}

func builtinFloat(_ context.Context, args []Value) (Value, error) {
	if err := ArgCount("float", args, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return FloatVal(0), nil
	}
	if s, ok := args[0].(StringVal); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(string(s)), 64)
		if err != nil {
			return nil, fmt.Errorf("could not convert string to float: %s", Repr(s))
		}
		return FloatVal(f), nil
	}
	if f, ok := ToFloat64(args[0]); ok {
		return FloatVal(f), nil
	}
	return nil, fmt.Errorf("float() argument must be a string or a number, not '%s'", args[0].TypeName())
}

func builtinBool(_ context.Context, args []Value) (Value, error) {
	if err := ArgCount("bool", args, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return BoolVal(false), nil
	}
	return BoolVal(IsTruthy(args[0])), nil
}

func builtinAbs(_ context.Context, args []Value) (Value, error) {
	if err := ArgCount("abs", args, 1, 1); err != nil {
		return nil, err
	}
	switch v := args[0].(type) {
	case FloatVal:
		return FloatVal(math.Abs(float64(v))), nil
	default:
		if i, ok := ToInt64(v); ok {
			if i < 0 {
				i = -i
			}
			return IntVal(i), nil
		}
	}
	return nil, fmt.Errorf("bad operand type for abs(): '%s'", args[0].TypeName())
}

// extremum implements min (sign -1) and max (sign 1).
func extremum(name string, args []Value, sign int) (Value, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%s expected at least 1 argument, got 0", name)
	}
	items := args
	if len(args) == 1 {
		var err error
		if items, err = Iterate(args[0]); err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return nil, fmt.Errorf("%s() arg is an empty sequence", name)
		}
	}
	best := items[0]
	for _, item := range items[1:] {
		c, err := Compare(item, best)
		if err != nil {
			return nil, err
		}
		if c*sign > 0 {
			best = item
		}
	}
	return best, nil
}

func builtinRound(_ context.Context, args []Value) (Value, error) {
	if err := ArgCount("round", args, 1, 2); err != nil {
		return nil, err
	}
	x, ok := ToFloat64(args[0])
	if !ok {
		return nil, fmt.Errorf("type %s doesn't define __round__ method", args[0].TypeName())
	}
	if len(args) == 1 {
		if i, isInt := ToInt64(args[0]); isInt {
			return IntVal(i), nil
		}
		return IntVal(int64(math.RoundToEven(x))), nil
	}
	digits, ok := ToInt64(args[1])
	if !ok {
		return nil, fmt.Errorf("'%s' object cannot be interpreted as an integer", args[1].TypeName())
	}
	if _, isInt := ToInt64(args[0]); isInt && digits >= 0 {
		return args[0], nil
	}
	pow := math.Pow(10, float64(digits))
	return FloatVal(math.RoundToEven(x*pow) / pow), nil
}
