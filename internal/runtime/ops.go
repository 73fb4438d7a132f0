package runtime

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"xpp/internal/token"
)

// MaxSequenceLen bounds strings and lists built by repetition or materialized from a range.
const MaxSequenceLen = 1 << 20

// ErrDivisionByZero is returned by /, // and % with a zero divisor.
var ErrDivisionByZero = errors.New("division by zero")

// ErrIntegerOverflow is returned when an int result does not fit in 64 bits.
var ErrIntegerOverflow = errors.New("integer overflow")

// ============================================================
// Unary operators
// ============================================================

// UnaryOp applies a prefix operator.
func UnaryOp(op token.Kind, v Value) (Value, error) {
	switch op {
	case token.KW_NOT, token.BANG:
		return BoolVal(!IsTruthy(v)), nil
	case token.MINUS:
		switch val := v.(type) {
		case FloatVal:
			return FloatVal(-float64(val)), nil
		default:
			if i, ok := ToInt64(v); ok {
				if i == math.MinInt64 {
					return nil, ErrIntegerOverflow
				}
				return IntVal(-i), nil
			}
		}
		return nil, fmt.Errorf("bad operand type for unary -: '%s'", v.TypeName())
	default:
		return nil, fmt.Errorf("unknown unary operator: %s", op)
	}
}

// ============================================================
// Binary operators
// ============================================================

// BinaryOp applies a non-short-circuit binary operator.
func BinaryOp(op token.Kind, left, right Value) (Value, error) {
	switch op {
	case token.EQ:
		return BoolVal(Equal(left, right)), nil
	case token.NEQ:
		return BoolVal(!Equal(left, right)), nil
	case token.LT, token.LTE, token.GT, token.GTE:
		return compareOp(op, left, right)
	case token.PLUS:
		return add(left, right)
	case token.STAR:
		return multiply(left, right)
	case token.MINUS, token.SLASH, token.DSLASH, token.PERCENT:
		return arith(op, left, right)
	default:
		return nil, fmt.Errorf("unknown binary operator: %s", op)
	}
}

func unsupported(op token.Kind, left, right Value) error {
	return fmt.Errorf("unsupported operand type(s) for %s: '%s' and '%s'", op, left.TypeName(), right.TypeName())
}

func add(left, right Value) (Value, error) {
	switch l := left.(type) {
	case StringVal:
		if r, ok := right.(StringVal); ok {
			if len(l)+len(r) > MaxSequenceLen {
				return nil, errors.New("string too long")
			}
			return l + r, nil
		}
		return nil, fmt.Errorf("can only concatenate str (not \"%s\") to str", right.TypeName())
	case *ListVal:
		r, ok := right.(*ListVal)
		if !ok || r.Frozen != l.Frozen {
			return nil, fmt.Errorf("can only concatenate %s (not \"%s\") to %s", l.TypeName(), right.TypeName(), l.TypeName())
		}
		if len(l.Elements)+len(r.Elements) > MaxSequenceLen {
			return nil, errors.New("list too long")
		}
		elems := make([]Value, 0, len(l.Elements)+len(r.Elements))
		elems = append(elems, l.Elements...)
		elems = append(elems, r.Elements...)
		return &ListVal{Elements: elems, Frozen: l.Frozen}, nil
	}
	return arith(token.PLUS, left, right)
}

func multiply(left, right Value) (Value, error) {
	if n, ok := ToInt64(right); ok {
		if v, handled, err := repeat(left, n); handled {
			return v, err
		}
	}
	if n, ok := ToInt64(left); ok {
		if v, handled, err := repeat(right, n); handled {
			return v, err
		}
	}
	return arith(token.STAR, left, right)
}

// repeat implements sequence * int. handled is false when seq is not a sequence.
func repeat(seq Value, n int64) (Value, bool, error) {
	if n < 0 {
		n = 0
	}
	switch s := seq.(type) {
	case StringVal:
		if len(s) > 0 && n > int64(MaxSequenceLen/len(s)) {
			return nil, true, errors.New("string too long")
		}
		return StringVal(strings.Repeat(string(s), int(n))), true, nil
	case *ListVal:
		if len(s.Elements) > 0 && n > int64(MaxSequenceLen/len(s.Elements)) {
			return nil, true, errors.New("list too long")
		}
		elems := make([]Value, 0, len(s.Elements)*int(n))
		for i := int64(0); i < n; i++ {
			elems = append(elems, s.Elements...)
		}
		return &ListVal{Elements: elems, Frozen: s.Frozen}, true, nil
	}
	return nil, false, nil
}

// arith handles the numeric operators. Two ints stay int except for true division.
func arith(op token.Kind, left, right Value) (Value, error) {
	if !isNumber(left) || !isNumber(right) {
		return nil, unsupported(op, left, right)
	}
	li, lInt := ToInt64(left)
	ri, rInt := ToInt64(right)
	if lInt && rInt {
		return intArith(op, li, ri)
	}
	lf, _ := ToFloat64(left)
	rf, _ := ToFloat64(right)
	return floatArith(op, lf, rf)
}

func intArith(op token.Kind, a, b int64) (Value, error) {
	switch op {
	case token.PLUS:
		c := a + b
		if (c^a)&(c^b) < 0 {
			return nil, ErrIntegerOverflow
		}
		return IntVal(c), nil
	case token.MINUS:
		c := a - b
		if (a^b)&(c^a) < 0 {
			return nil, ErrIntegerOverflow
		}
		return IntVal(c), nil
	case token.STAR:
		if a == 0 || b == 0 {
			return IntVal(0), nil
		}
		c := a * b
		if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) || c/b != a {
			return nil, ErrIntegerOverflow
		}
		return IntVal(c), nil
	case token.SLASH:
		if b == 0 {
			return nil, ErrDivisionByZero
		}
		return FloatVal(float64(a) / float64(b)), nil
	case token.DSLASH:
		if b == 0 {
			return nil, fmt.Errorf("integer %w", ErrDivisionByZero)
		}
		if a == math.MinInt64 && b == -1 {
			return nil, ErrIntegerOverflow
		}
		return IntVal(floorDiv(a, b)), nil
	case token.PERCENT:
		if b == 0 {
			return nil, fmt.Errorf("integer modulo by zero: %w", ErrDivisionByZero)
		}
		return IntVal(a - floorDiv(a, b)*b), nil
	}
	return nil, fmt.Errorf("unknown arithmetic operator: %s", op)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floatArith(op token.Kind, a, b float64) (Value, error) {
	switch op {
	case token.PLUS:
		return FloatVal(a + b), nil
	case token.MINUS:
		return FloatVal(a - b), nil
	case token.STAR:
		return FloatVal(a * b), nil
	case token.SLASH:
		if b == 0 {
			return nil, fmt.Errorf("float %w", ErrDivisionByZero)
		}
		return FloatVal(a / b), nil
	case token.DSLASH:
		if b == 0 {
			return nil, fmt.Errorf("float floor %w", ErrDivisionByZero)
		}
		return FloatVal(math.Floor(a / b)), nil
	case token.PERCENT:
		if b == 0 {
			return nil, fmt.Errorf("float modulo by zero: %w", ErrDivisionByZero)
		}
		m := math.Mod(a, b)
		if m != 0 && (m < 0) != (b < 0) {
			m += b
		}
		return FloatVal(m), nil
	}
	return nil, fmt.Errorf("unknown arithmetic operator: %s", op)
}

// ============================================================
// Comparison
// ============================================================

func compareOp(op token.Kind, left, right Value) (Value, error) {
	c, err := Compare(left, right)
	if err != nil {
		return nil, fmt.Errorf("'%s' not supported between instances of '%s' and '%s'", op, left.TypeName(), right.TypeName())
	}
	switch op {
	case token.LT:
		return BoolVal(c < 0), nil
	case token.LTE:
		return BoolVal(c <= 0), nil
	case token.GT:
		return BoolVal(c > 0), nil
	default:
		return BoolVal(c >= 0), nil
	}
}

// Compare orders two numbers, two strings, or two sequences of the same kind.
func Compare(a, b Value) (int, error) {
	if isNumber(a) && isNumber(b) {
		ai, aInt := ToInt64(a)
		bi, bInt := ToInt64(b)
		if aInt && bInt {
			return cmp3(ai < bi, ai > bi), nil
		}
		af, _ := ToFloat64(a)
		bf, _ := ToFloat64(b)
		return cmp3(af < bf, af > bf), nil
	}
	switch av := a.(type) {
	case StringVal:
		if bv, ok := b.(StringVal); ok {
			return strings.Compare(string(av), string(bv)), nil
		}
	case *ListVal:
		if bv, ok := b.(*ListVal); ok && av.Frozen == bv.Frozen {
			for i := 0; i < len(av.Elements) && i < len(bv.Elements); i++ {
				if Equal(av.Elements[i], bv.Elements[i]) {
					continue
				}
				return Compare(av.Elements[i], bv.Elements[i])
			}
			return cmp3(len(av.Elements) < len(bv.Elements), len(av.Elements) > len(bv.Elements)), nil
		}
	}
	return 0, fmt.Errorf("cannot compare '%s' and '%s'", a.TypeName(), b.TypeName())
}

func cmp3(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	default:
		return 0
	}
}

// ============================================================
// Value equality
// ============================================================

// Equal reports Python-style equality. Numbers compare by value across int, float and bool.
func Equal(a, b Value) bool {
	if isNumber(a) && isNumber(b) {
		c, _ := Compare(a, b)
		return c == 0
	}
	switch av := a.(type) {
	case StringVal:
		bv, ok := b.(StringVal)
		return ok && av == bv
	case NoneVal:
		_, ok := b.(NoneVal)
		return ok
	case *ListVal:
		bv, ok := b.(*ListVal)
		if !ok || av.Frozen != bv.Frozen || len(av.Elements) != len(bv.Elements) {
			return false
		}
		for i := range av.Elements {
			if !Equal(av.Elements[i], bv.Elements[i]) {
				return false
			}
		}
		return true
	case *RangeVal:
		bv, ok := b.(*RangeVal)
		return ok && *av == *bv
	case *DictVal:
		bv, ok := b.(*DictVal)
		if !ok || av.Len() != bv.Len() {
			return false
		}
		for i, k := range av.keys {
			other, found, err := bv.Get(k)
			if err != nil || !found || !Equal(av.vals[i], other) {
				return false
			}
		}
		return true
	case *SetVal:
		bv, ok := b.(*SetVal)
		if !ok || av.Len() != bv.Len() {
			return false
		}
		for _, item := range av.items {
			if found, err := bv.Contains(item); err != nil || !found {
				return false
			}
		}
		return true
	}
	// Reference equality for builtins
	return a == b
}
