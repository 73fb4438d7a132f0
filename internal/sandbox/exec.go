package sandbox

import (
	"context"
	"fmt"

	"xpp/internal/ast"
	"xpp/internal/diag"
	"xpp/internal/lexer"
	"xpp/internal/parser"
	"xpp/internal/runtime"
	"xpp/internal/span"
	"xpp/internal/token"
)

// ============================================================
// Control flow signals
// ============================================================

type signal int

const (
	sigNone     signal = iota
	sigBreak           // break from loop
	sigContinue        // continue in loop
)

// compoundOps maps compound assignment tokens to their binary operator.
var compoundOps = map[token.Kind]token.Kind{
	token.PLUS_ASSIGN:  token.PLUS,
	token.MINUS_ASSIGN: token.MINUS,
	token.STAR_ASSIGN:  token.STAR,
	token.SLASH_ASSIGN: token.SLASH,
}

// ParseScript parses a sandbox snippet into a program.
func ParseScript(code string) (*ast.Program, error) {
	tokens, lexDiags := lexer.New(code, "<sandbox>").Tokenize()
	if err := diag.AsError(lexDiags); err != nil {
		return nil, err
	}
	prog, parseDiags := parser.New(tokens).ParseProgram()
	if err := diag.AsError(parseDiags); err != nil {
		return nil, err
	}
	return prog, nil
}

// ============================================================
// Executor
// ============================================================

// executor walks a parsed snippet. Globals receive every assignment; the namespace is read-only.
type executor struct {
	ctx     context.Context
	globals runtime.MapScope
	scope   runtime.Scope
}

func newExecutor(ctx context.Context, globals runtime.MapScope, ns *Namespace) *executor {
	return &executor{
		ctx:     ctx,
		globals: globals,
		scope:   runtime.Chain(globals, ns),
	}
}

func stmtErr(s span.Span, format string, args ...interface{}) *runtime.RuntimeError {
	return &runtime.RuntimeError{Message: fmt.Sprintf(format, args...), Span: s}
}

// run executes every statement of prog, stopping at the first error.
func (x *executor) run(prog *ast.Program) error {
	for _, stmt := range prog.Body {
		sig, err := x.execStmt(stmt)
		if err != nil {
			return err
		}
		switch sig {
		case sigBreak:
			return stmtErr(stmt.GetSpan(), "'break' outside loop")
		case sigContinue:
			return stmtErr(stmt.GetSpan(), "'continue' not properly in loop")
		}
	}
	return nil
}

func (x *executor) eval(e ast.Expr) (runtime.Value, error) {
	return runtime.Eval(x.ctx, e, x.scope)
}

func (x *executor) execStmt(stmt ast.Stmt) (signal, error) {
	if err := x.ctx.Err(); err != nil {
		return sigNone, err
	}

	switch s := stmt.(type) {
	case *ast.ExprStmt:
		_, err := x.eval(s.Expr)
		return sigNone, err
	case *ast.AssignStmt:
		return sigNone, x.execAssign(s)
	case *ast.PassStmt:
		return sigNone, nil
	case *ast.BreakStmt:
		return sigBreak, nil
	case *ast.ContinueStmt:
		return sigContinue, nil
	case *ast.BlockStmt:
		return x.execBlock(s)
	case *ast.IfStmt:
		return x.execIf(s)
	case *ast.WhileStmt:
		return x.execWhile(s)
	case *ast.ForStmt:
		return x.execFor(s)
	default:
		return sigNone, stmtErr(stmt.GetSpan(), "unhandled statement type: %T", stmt)
	}
}

func (x *executor) execBlock(block *ast.BlockStmt) (signal, error) {
	for _, stmt := range block.Stmts {
		sig, err := x.execStmt(stmt)
		if err != nil || sig != sigNone {
			return sig, err
		}
	}
	return sigNone, nil
}

func (x *executor) execAssign(s *ast.AssignStmt) error {
	val, err := x.eval(s.Value)
	if err != nil {
		return err
	}

	if op, ok := compoundOps[s.Op]; ok {
		cur, err := x.eval(s.Target)
		if err != nil {
			return err
		}
		if val, err = runtime.BinaryOp(op, cur, val); err != nil {
			return stmtErr(s.GetSpan(), "%s", err)
		}
	}

	switch target := s.Target.(type) {
	case *ast.IdentExpr:
		x.globals[target.Name] = val
		return nil
	case *ast.IndexExpr:
		obj, err := x.eval(target.Object)
		if err != nil {
			return err
		}
		idx, err := x.eval(target.Index)
		if err != nil {
			return err
		}
		if err := runtime.SetIndex(obj, idx, val); err != nil {
			return stmtErr(s.GetSpan(), "%s", err)
		}
		return nil
	default:
		return stmtErr(s.GetSpan(), "invalid assignment target")
	}
}

func (x *executor) execIf(s *ast.IfStmt) (signal, error) {
	cond, err := x.eval(s.Condition)
	if err != nil {
		return sigNone, err
	}
	if runtime.IsTruthy(cond) {
		return x.execBlock(s.Body)
	}
	if s.Else != nil {
		return x.execStmt(s.Else)
	}
	return sigNone, nil
}

func (x *executor) execWhile(s *ast.WhileStmt) (signal, error) {
	for {
		if err := x.ctx.Err(); err != nil {
			return sigNone, err
		}
		cond, err := x.eval(s.Condition)
		if err != nil {
			return sigNone, err
		}
		if !runtime.IsTruthy(cond) {
			return sigNone, nil
		}

		sig, err := x.execBlock(s.Body)
		if err != nil {
			return sigNone, err
		}
		if sig == sigBreak {
			return sigNone, nil
		}
		// sigContinue: next iteration
	}
}

func (x *executor) execFor(s *ast.ForStmt) (signal, error) {
	iterable, err := x.eval(s.Iter)
	if err != nil {
		return sigNone, err
	}

	// Ranges are walked lazily.
	var next func() (runtime.Value, bool)
	if r, ok := iterable.(*runtime.RangeVal); ok {
		n, i := r.Len(), int64(0)
		next = func() (runtime.Value, bool) {
			if i >= n {
				return nil, false
			}
			v := r.At(i)
			i++
			return v, true
		}
	} else {
		items, err := runtime.Iterate(iterable)
		if err != nil {
			return sigNone, stmtErr(s.Iter.GetSpan(), "%s", err)
		}
		i := 0
		next = func() (runtime.Value, bool) {
			if i >= len(items) {
				return nil, false
			}
			v := items[i]
			i++
			return v, true
		}
	}

	for {
		if err := x.ctx.Err(); err != nil {
			return sigNone, err
		}
		item, ok := next()
		if !ok {
			return sigNone, nil
		}
		x.globals[s.Var] = item

		sig, err := x.execBlock(s.Body)
		if err != nil {
			return sigNone, err
		}
		if sig == sigBreak {
			return sigNone, nil
		}
	}
}
