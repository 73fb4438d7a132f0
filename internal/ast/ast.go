// Package ast defines the syntax tree for X++ expressions and sandbox programs.
package ast

import (
	"xpp/internal/span"
	"xpp/internal/token"
)

// ============================================================
// Node interfaces
// ============================================================

// Node is the interface implemented by all AST nodes.
type Node interface {
	nodeNode()
	GetSpan() span.Span
}

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	exprNode()
}

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmtNode()
}

// ============================================================
// Base types (embedded to provide common fields)
// ============================================================

// NodeBase provides the common Span field for all AST nodes.
type NodeBase struct {
	Span span.Span
}

func (n NodeBase) nodeNode()          {}
func (n NodeBase) GetSpan() span.Span { return n.Span }

// ExprBase is embedded by all expression nodes.
type ExprBase struct{ NodeBase }

func (ExprBase) exprNode() {}

// StmtBase is embedded by all statement nodes.
type StmtBase struct{ NodeBase }

func (StmtBase) stmtNode() {}

// ============================================================
// Program (sandbox AST root)
// ============================================================

// Program is a parsed sandbox snippet.
type Program struct {
	NodeBase
	Body []Stmt
}

// ============================================================
// Expressions
// ============================================================

// IdentExpr represents an identifier reference.
type IdentExpr struct {
	ExprBase
	Name string
}

// IntLiteral represents an integer literal.
type IntLiteral struct {
	ExprBase
	Value int64
}

// FloatLiteral represents a floating-point literal.
type FloatLiteral struct {
	ExprBase
	Value float64
}

// StringLiteral represents a string literal.
type StringLiteral struct {
	ExprBase
	Value string
}

// BoolLiteral represents True or False.
type BoolLiteral struct {
	ExprBase
	Value bool
}

// NoneLiteral represents None.
type NoneLiteral struct {
	ExprBase
}

// UnaryExpr represents a unary operation: not x, -x.
type UnaryExpr struct {
	ExprBase
	Op      token.Kind
	Operand Expr
}

// BinaryExpr represents a binary operation: a + b, x == y, p and q.
type BinaryExpr struct {
	ExprBase
	Op    token.Kind
	Left  Expr
	Right Expr
}

// CallExpr represents a function call: f(a, b).
type CallExpr struct {
	ExprBase
	Callee Expr
	Args   []Expr
}

// IndexExpr represents indexing: a[i].
type IndexExpr struct {
	ExprBase
	Object Expr
	Index  Expr
}

// ListLiteral represents a list literal: [a, b, c].
type ListLiteral struct {
	ExprBase
	Elements []Expr
}

// ============================================================
// Statements
// ============================================================

// ExprStmt wraps an expression used as a statement.
type ExprStmt struct {
	StmtBase
	Expr Expr
}

// AssignStmt represents target = value, or a compound form when Op is not ASSIGN.
type AssignStmt struct {
	StmtBase
	Target Expr // IdentExpr or IndexExpr
	Op     token.Kind
	Value  Expr
}

// PassStmt represents pass.
type PassStmt struct {
	StmtBase
}

// BreakStmt represents a break statement.
type BreakStmt struct {
	StmtBase
}

// ContinueStmt represents a continue statement.
type ContinueStmt struct {
	StmtBase
}

// BlockStmt represents a body: { ... } or the statements after ':' on one line.
type BlockStmt struct {
	StmtBase
	Stmts []Stmt
}

// IfStmt represents an if/elif/else chain. An elif is an IfStmt nested in Else.
type IfStmt struct {
	StmtBase
	Condition Expr
	Body      *BlockStmt
	Else      Stmt // *BlockStmt, *IfStmt, or nil
}

// WhileStmt represents a while loop.
type WhileStmt struct {
	StmtBase
	Condition Expr
	Body      *BlockStmt
}

// ForStmt represents for name in iterable body.
type ForStmt struct {
	StmtBase
	Var  string
	Iter Expr
	Body *BlockStmt
}
