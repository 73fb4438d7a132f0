package runtime

import (
	"context"
	"errors"
	"fmt"
	"xpp/internal/ast"
	"xpp/internal/span"
	"xpp/internal/token"
)

// BuiltinFn is the Go signature for built-in functions.
type BuiltinFn func(ctx context.Context, args []Value) (Value, error)

// Scope resolves identifiers during evaluation.
type Scope interface {
	Lookup(name string) (Value, bool)
}

// MapScope is a Scope over a plain map.
type MapScope map[string]Value

// Lookup implements Scope.
func (m MapScope) Lookup(name string) (Value, bool) {
	v, ok := m[name]
	return v, ok
}

type chain []Scope

func (c chain) Lookup(name string) (Value, bool) {
	for _, s := range c {
		if v, ok := s.Lookup(name); ok {
			return v, true
		}
	}
	return nil, false
}

// Chain returns a Scope that consults each scope in order.
func Chain(scopes ...Scope) Scope {
	return chain(scopes)
}

// ============================================================
// Runtime error
// ============================================================

// RuntimeError represents an error during evaluation.
type RuntimeError struct {
	Message string
	Span    span.Span
	Cause   error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error at %d:%d: %s", e.Span.Start.Line, e.Span.Start.Column, e.Message)
}

func (e *RuntimeError) Unwrap() error { return e.Cause }

func runtimeErr(s span.Span, format string, args ...interface{}) *RuntimeError {
	return &RuntimeError{Message: fmt.Sprintf(format, args...), Span: s}
}

// wrapErr attaches a span to err. Context errors and errors that already carry a span pass through.
func wrapErr(s span.Span, err error) error {
	var re *RuntimeError
	if errors.As(err, &re) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &RuntimeError{Message: err.Error(), Span: s, Cause: err}
}

// ============================================================
// Expression evaluation
// ============================================================

// Eval evaluates expr against scope. Calls stop early once ctx is done.
func Eval(ctx context.Context, expr ast.Expr, scope Scope) (Value, error) {
	switch e := expr.(type) {
	case *ast.IntLiteral:
		return IntVal(e.Value), nil
	case *ast.FloatLiteral:
		return FloatVal(e.Value), nil
	case *ast.StringLiteral:
		return StringVal(e.Value), nil
	case *ast.BoolLiteral:
		return BoolVal(e.Value), nil
	case *ast.NoneLiteral:
		return NoneVal{}, nil
	case *ast.IdentExpr:
		if v, ok := scope.Lookup(e.Name); ok {
			return v, nil
		}
		return nil, runtimeErr(e.GetSpan(), "name '%s' is not defined", e.Name)
	case *ast.UnaryExpr:
		operand, err := Eval(ctx, e.Operand, scope)
		if err != nil {
			return nil, err
		}
		v, err := UnaryOp(e.Op, operand)
		if err != nil {
			return nil, wrapErr(e.GetSpan(), err)
		}
		return v, nil
	case *ast.BinaryExpr:
		return evalBinary(ctx, e, scope)
	case *ast.CallExpr:
		return evalCall(ctx, e, scope)
	case *ast.IndexExpr:
		obj, err := Eval(ctx, e.Object, scope)
		if err != nil {
			return nil, err
		}
		idx, err := Eval(ctx, e.Index, scope)
		if err != nil {
			return nil, err
		}
		v, err := Index(obj, idx)
		if err != nil {
			return nil, wrapErr(e.GetSpan(), err)
		}
		return v, nil
	case *ast.ListLiteral:
		elems := make([]Value, len(e.Elements))
		for i, elemExpr := range e.Elements {
			v, err := Eval(ctx, elemExpr, scope)
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return &ListVal{Elements: elems}, nil
	case nil:
		return nil, errors.New("missing expression")
	default:
		return nil, runtimeErr(expr.GetSpan(), "unhandled expression type: %T", expr)
	}
}

func evalBinary(ctx context.Context, e *ast.BinaryExpr, scope Scope) (Value, error) {
	left, err := Eval(ctx, e.Left, scope)
	if err != nil {
		return nil, err
	}

	// Short-circuit for logical operators; the deciding operand is the result.
	switch e.Op {
	case token.AND:
		if !IsTruthy(left) {
			return left, nil
		}
		return Eval(ctx, e.Right, scope)
	case token.OR:
		if IsTruthy(left) {
			return left, nil
		}
		return Eval(ctx, e.Right, scope)
	}

	right, err := Eval(ctx, e.Right, scope)
	if err != nil {
		return nil, err
	}
	v, err := BinaryOp(e.Op, left, right)
	if err != nil {
		return nil, wrapErr(e.GetSpan(), err)
	}
	return v, nil
}

func evalCall(ctx context.Context, e *ast.CallExpr, scope Scope) (Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	callee, err := Eval(ctx, e.Callee, scope)
	if err != nil {
		return nil, err
	}
	fn, ok := callee.(*BuiltinVal)
	if !ok {
		return nil, runtimeErr(e.GetSpan(), "'%s' object is not callable", callee.TypeName())
	}

	args := make([]Value, len(e.Args))
	for i, argExpr := range e.Args {
		v, err := Eval(ctx, argExpr, scope)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	v, err := fn.Fn(ctx, args)
	if err != nil {
		return nil, wrapErr(e.GetSpan(), err)
	}
	if v == nil {
		return NoneVal{}, nil
	}
	return v, nil
}

// ============================================================
// Indexing and iteration
// ============================================================

func normIndex(idx Value, length int, what string) (int, error) {
	i, ok := ToInt64(idx)
	if !ok {
		return 0, fmt.Errorf("%s indices must be integers, not %s", what, idx.TypeName())
	}
	if i < 0 {
		i += int64(length)
	}
	if i < 0 || i >= int64(length) {
		return 0, fmt.Errorf("%s index out of range", what)
	}
	return int(i), nil
}

// Index implements obj[idx] for strings, lists, tuples, ranges and dicts.
func Index(obj, idx Value) (Value, error) {
	switch o := obj.(type) {
	case StringVal:
		runes := []rune(string(o))
		i, err := normIndex(idx, len(runes), "string")
		if err != nil {
			return nil, err
		}
		return StringVal(runes[i]), nil
	case *ListVal:
		i, err := normIndex(idx, len(o.Elements), o.TypeName())
		if err != nil {
			return nil, err
		}
		return o.Elements[i], nil
	case *RangeVal:
		n := o.Len()
		if n > MaxSequenceLen {
			n = MaxSequenceLen
		}
		i, err := normIndex(idx, int(n), "range object")
		if err != nil {
			return nil, err
		}
		return o.At(int64(i)), nil
	case *DictVal:
		v, found, err := o.Get(idx)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("key not found: %s", Repr(idx))
		}
		return v, nil
	default:
		return nil, fmt.Errorf("'%s' object is not subscriptable", obj.TypeName())
	}
}

// SetIndex implements obj[idx] = val for lists and dicts.
func SetIndex(obj, idx, val Value) error {
	switch o := obj.(type) {
	case *ListVal:
		if o.Frozen {
			return errors.New("'tuple' object does not support item assignment")
		}
		i, err := normIndex(idx, len(o.Elements), "list assignment")
		if err != nil {
			return err
		}
		o.Elements[i] = val
		return nil
	case *DictVal:
		return o.Set(idx, val)
	default:
		return fmt.Errorf("'%s' object does not support item assignment", obj.TypeName())
	}
}

// Iterate materializes the items of an iterable value.
func Iterate(v Value) ([]Value, error) {
	switch val := v.(type) {
	case *ListVal:
		return append([]Value(nil), val.Elements...), nil
	case StringVal:
		runes := []rune(string(val))
		items := make([]Value, len(runes))
		for i, r := range runes {
			items[i] = StringVal(r)
		}
		return items, nil
	case *RangeVal:
		n := val.Len()
		if n > MaxSequenceLen {
			return nil, fmt.Errorf("range too large to materialize (%d items)", n)
		}
		items := make([]Value, n)
		for i := int64(0); i < n; i++ {
			items[i] = val.At(i)
		}
		return items, nil
	case *DictVal:
		return val.Keys(), nil
	case *SetVal:
		return val.Items(), nil
	default:
		return nil, fmt.Errorf("'%s' object is not iterable", v.TypeName())
	}
}
