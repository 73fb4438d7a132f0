// Package parser implements the syntax analysis for X++.
// It uses Pratt parsing for expressions and recursive descent for sandbox statements.
package parser

import (
	"fmt"
	"strconv"
	"xpp/internal/ast"
	"xpp/internal/diag"
	"xpp/internal/span"
	"xpp/internal/token"
)

// ============================================================
// Binding power (precedence) levels
// ============================================================

const (
	bpNone       = 0
	bpOr         = 10 // or ||
	bpAnd        = 20 // and &&
	bpNot        = 25 // not (prefix, looser than comparisons)
	bpEquality   = 30 // == !=
	bpComparison = 40 // < <= > >=
	bpAdditive   = 50 // + -
	bpMultiply   = 60 // * / // %
	bpPrefix     = 70 // ! -
	bpPostfix    = 80 // () []
)

// infixBP returns the left binding power for an infix/postfix operator.
func infixBP(kind token.Kind) int {
	switch kind {
	case token.OR:
		return bpOr
	case token.AND:
		return bpAnd
	case token.EQ, token.NEQ:
		return bpEquality
	case token.LT, token.LTE, token.GT, token.GTE:
		return bpComparison
	case token.PLUS, token.MINUS:
		return bpAdditive
	case token.STAR, token.SLASH, token.DSLASH, token.PERCENT:
		return bpMultiply
	case token.LPAREN, token.LBRACKET:
		return bpPostfix
	default:
		return bpNone
	}
}

// ============================================================
// Parser
// ============================================================

// Parser performs syntax analysis on a stream of tokens.
type Parser struct {
	tokens []token.Token
	pos    int
	diags  []diag.Diagnostic
}

// New creates a new parser from a token slice.
func New(tokens []token.Token) *Parser {
	return &Parser{tokens: tokens, pos: 0}
}

// ParseExpression parses a single expression that must span the whole input.
func (p *Parser) ParseExpression() (ast.Expr, []diag.Diagnostic) {
	p.skipNewlines()
	if p.isAtEnd() {
		p.error("E2003", p.peek().Span, "empty expression")
		return nil, p.diags
	}

	expr := p.parseExpr(bpNone)
	p.skipNewlines()
	if expr != nil && !p.isAtEnd() {
		tok := p.peek()
		p.error("E2004", tok.Span, fmt.Sprintf("unexpected '%s' after expression", tok.Lexeme))
	}
	return expr, p.diags
}

// ParseProgram parses a sequence of statements separated by newlines or ';'.
func (p *Parser) ParseProgram() (*ast.Program, []diag.Diagnostic) {
	prog := &ast.Program{}
	startPos := p.peek().Span.Start

	p.skipSep()
	for !p.isAtEnd() {
		if p.check(token.RBRACE) {
			tok := p.advance()
			p.error("E2005", tok.Span, "unmatched '}'")
			p.skipSep()
			continue
		}
		stmt := p.parseStmt()
		if stmt != nil {
			prog.Body = append(prog.Body, stmt)
		}
		p.endStmt()
		p.skipSep()
	}

	endPos := p.peek().Span.End
	prog.Span = span.Span{Start: startPos, End: endPos}
	return prog, p.diags
}

// ---- navigation helpers ----

func (p *Parser) peek() token.Token {
	if p.pos >= len(p.tokens) {
		return token.Token{Kind: token.EOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) peekKind() token.Kind {
	return p.peek().Kind
}

func (p *Parser) advance() token.Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) check(kind token.Kind) bool {
	return p.peekKind() == kind
}

func (p *Parser) match(kinds ...token.Kind) bool {
	for _, k := range kinds {
		if p.check(k) {
			return true
		}
	}
	return false
}

func (p *Parser) expect(kind token.Kind) (token.Token, bool) {
	if p.check(kind) {
		return p.advance(), true
	}
	tok := p.peek()
	p.error("E2001", tok.Span, fmt.Sprintf("expected '%s', got '%s'", kind, tok.Kind))
	return tok, false
}

func (p *Parser) isAtEnd() bool {
	return p.peekKind() == token.EOF
}

// skipSep skips NEWLINE and SEMICOLON tokens (separators).
func (p *Parser) skipSep() {
	for p.match(token.NEWLINE, token.SEMICOLON) {
		p.advance()
	}
}

// skipNewlines skips NEWLINE tokens only.
func (p *Parser) skipNewlines() {
	for p.check(token.NEWLINE) {
		p.advance()
	}
}

// peekPastNewlines reports whether the first token after any newlines is one of kinds.
func (p *Parser) peekPastNewlines(kinds ...token.Kind) bool {
	i := p.pos
	for i < len(p.tokens) && p.tokens[i].Kind == token.NEWLINE {
		i++
	}
	if i >= len(p.tokens) {
		return false
	}
	for _, k := range kinds {
		if p.tokens[i].Kind == k {
			return true
		}
	}
	return false
}

func (p *Parser) error(code string, s span.Span, msg string) {
	p.diags = append(p.diags, diag.Errorf(code, s, "%s", msg))
}

// ============================================================
// Error recovery
// ============================================================

// synchronize skips tokens until a likely statement boundary.
// Separators and '}' are left for the caller to consume.
func (p *Parser) synchronize() {
	for !p.isAtEnd() {
		if p.match(token.NEWLINE, token.SEMICOLON, token.RBRACE) {
			return
		}
		if p.match(token.KW_IF, token.KW_WHILE, token.KW_FOR, token.KW_PASS,
			token.KW_BREAK, token.KW_CONTINUE) {
			return
		}
		p.advance()
	}
}

// endStmt requires a statement boundary after a statement.
func (p *Parser) endStmt() {
	if p.match(token.NEWLINE, token.SEMICOLON, token.RBRACE, token.EOF) {
		return
	}
	tok := p.peek()
	p.error("E2006", tok.Span, fmt.Sprintf("expected newline or ';' after statement, got '%s'", tok.Lexeme))
	p.synchronize()
}

// ============================================================
// Statement parsing
// ============================================================

func (p *Parser) parseStmt() ast.Stmt {
	switch p.peekKind() {
	case token.KW_IF:
		return p.parseIfStmt()
	case token.KW_WHILE:
		return p.parseWhileStmt()
	case token.KW_FOR:
		return p.parseForStmt()
	default:
		return p.parseSimpleStmt()
	}
}

// parseIfStmt parses: if expr body { elif expr body } [ else body ]
func (p *Parser) parseIfStmt() *ast.IfStmt {
	start := p.advance() // consume 'if' or 'elif'
	stmt := &ast.IfStmt{}

	stmt.Condition = p.parseExpr(bpNone)
	if stmt.Condition == nil {
		p.synchronize()
		stmt.Span = p.makeSpan(start.Span.Start)
		return stmt
	}
	stmt.Body = p.parseBody()

	if p.peekPastNewlines(token.KW_ELIF) {
		p.skipNewlines()
		stmt.Else = p.parseIfStmt()
	} else if p.peekPastNewlines(token.KW_ELSE) {
		p.skipNewlines()
		p.advance() // consume 'else'
		stmt.Else = p.parseBody()
	}

	stmt.Span = p.makeSpan(start.Span.Start)
	return stmt
}

// parseWhileStmt parses: while expr body
func (p *Parser) parseWhileStmt() *ast.WhileStmt {
	start := p.advance() // consume 'while'
	stmt := &ast.WhileStmt{}

	stmt.Condition = p.parseExpr(bpNone)
	if stmt.Condition == nil {
		p.synchronize()
		stmt.Span = p.makeSpan(start.Span.Start)
		return stmt
	}
	stmt.Body = p.parseBody()
	stmt.Span = p.makeSpan(start.Span.Start)
	return stmt
}

// parseForStmt parses: for IDENT in expr body
func (p *Parser) parseForStmt() *ast.ForStmt {
	start := p.advance() // consume 'for'
	stmt := &ast.ForStmt{}

	nameTok, ok := p.expect(token.IDENT)
	if !ok {
		p.synchronize()
		stmt.Span = p.makeSpan(start.Span.Start)
		return stmt
	}
	stmt.Var = nameTok.Lexeme

	if _, ok := p.expect(token.KW_IN); !ok {
		p.synchronize()
		stmt.Span = p.makeSpan(start.Span.Start)
		return stmt
	}
	stmt.Iter = p.parseExpr(bpNone)
	if stmt.Iter == nil {
		p.synchronize()
		stmt.Span = p.makeSpan(start.Span.Start)
		return stmt
	}
	stmt.Body = p.parseBody()
	stmt.Span = p.makeSpan(start.Span.Start)
	return stmt
}

// parseBody parses either a braced block or ': simple; simple' on one line.
// A ':' may also precede a braced block.
func (p *Parser) parseBody() *ast.BlockStmt {
	if p.check(token.COLON) {
		colon := p.advance()
		if p.peekPastNewlines(token.LBRACE) {
			p.skipNewlines()
			return p.parseBlock()
		}
		return p.parseInlineBody(colon)
	}
	p.skipNewlines()
	return p.parseBlock()
}

// parseInlineBody parses simple statements up to the end of the line.
func (p *Parser) parseInlineBody(colon token.Token) *ast.BlockStmt {
	block := &ast.BlockStmt{}
	for {
		if p.match(token.NEWLINE, token.EOF, token.RBRACE) {
			break
		}
		if p.match(token.KW_IF, token.KW_WHILE, token.KW_FOR) {
			tok := p.peek()
			p.error("E2007", tok.Span, fmt.Sprintf("'%s' is not allowed after ':', use a braced block", tok.Lexeme))
			p.synchronize()
			break
		}
		block.Stmts = append(block.Stmts, p.parseSimpleStmt())
		if !p.check(token.SEMICOLON) {
			break
		}
		p.advance()
	}
	if len(block.Stmts) == 0 {
		p.error("E2008", colon.Span, "expected a statement after ':'")
	}
	block.Span = p.makeSpan(colon.Span.Start)
	return block
}

// parseSimpleStmt parses pass/break/continue, an expression statement, or an assignment.
func (p *Parser) parseSimpleStmt() ast.Stmt {
	switch p.peekKind() {
	case token.KW_PASS:
		tok := p.advance()
		return &ast.PassStmt{StmtBase: makeStmtBase(tok.Span.Start, tok.Span.End)}
	case token.KW_BREAK:
		tok := p.advance()
		return &ast.BreakStmt{StmtBase: makeStmtBase(tok.Span.Start, tok.Span.End)}
	case token.KW_CONTINUE:
		tok := p.advance()
		return &ast.ContinueStmt{StmtBase: makeStmtBase(tok.Span.Start, tok.Span.End)}
	}

	expr := p.parseExpr(bpNone)
	if expr == nil {
		tok := p.peek()
		p.synchronize()
		return &ast.ExprStmt{
			StmtBase: makeStmtBase(tok.Span.Start, tok.Span.End),
		}
	}

	if p.peekKind().IsAssign() {
		opTok := p.advance()
		switch expr.(type) {
		case *ast.IdentExpr, *ast.IndexExpr:
		default:
			p.error("E2009", expr.GetSpan(), "invalid assignment target")
		}
		value := p.parseExpr(bpNone)
		if value == nil {
			p.synchronize()
			value = &ast.NoneLiteral{ExprBase: makeExprBase(opTok.Span.End, opTok.Span.End)}
		}
		return &ast.AssignStmt{
			StmtBase: makeStmtBase(expr.GetSpan().Start, p.prevEnd()),
			Target:   expr,
			Op:       opTok.Kind,
			Value:    value,
		}
	}

	return &ast.ExprStmt{
		StmtBase: makeStmtBase(expr.GetSpan().Start, expr.GetSpan().End),
		Expr:     expr,
	}
}

// parseBlock parses: { stmts }
func (p *Parser) parseBlock() *ast.BlockStmt {
	start := p.peek()
	block := &ast.BlockStmt{}

	if _, ok := p.expect(token.LBRACE); !ok {
		p.synchronize()
		block.Span = p.makeSpan(start.Span.Start)
		return block
	}

	p.skipSep()
	for !p.check(token.RBRACE) && !p.isAtEnd() {
		stmt := p.parseStmt()
		if stmt != nil {
			block.Stmts = append(block.Stmts, stmt)
		}
		p.endStmt()
		p.skipSep()
	}

	p.expect(token.RBRACE)
	block.Span = p.makeSpan(start.Span.Start)
	return block
}

// ============================================================
// Expression parsing (Pratt / precedence climbing)
// ============================================================

// parseExpr parses an expression with the given minimum binding power.
func (p *Parser) parseExpr(minBP int) ast.Expr {
	left := p.nud()
	if left == nil {
		return nil
	}

	for {
		kind := p.peekKind()
		bp := infixBP(kind)
		if bp <= minBP {
			break
		}
		next := p.led(left)
		if next == nil {
			return left
		}
		left = next
	}

	return left
}

// nud handles prefix (null denotation) parsing.
func (p *Parser) nud() ast.Expr {
	tok := p.peek()

	switch tok.Kind {
	case token.INT:
		p.advance()
		val, err := strconv.ParseInt(tok.Lexeme, 10, 64)
		if err != nil {
			p.error("E2010", tok.Span, fmt.Sprintf("integer literal out of range: %s", tok.Lexeme))
		}
		return &ast.IntLiteral{
			ExprBase: makeExprBase(tok.Span.Start, tok.Span.End),
			Value:    val,
		}

	case token.FLOAT:
		p.advance()
		val, _ := strconv.ParseFloat(tok.Lexeme, 64)
		return &ast.FloatLiteral{
			ExprBase: makeExprBase(tok.Span.Start, tok.Span.End),
			Value:    val,
		}

	case token.STRING:
		p.advance()
		return &ast.StringLiteral{
			ExprBase: makeExprBase(tok.Span.Start, tok.Span.End),
			Value:    tok.Lexeme,
		}

	case token.KW_TRUE, token.KW_FALSE:
		p.advance()
		return &ast.BoolLiteral{
			ExprBase: makeExprBase(tok.Span.Start, tok.Span.End),
			Value:    tok.Kind == token.KW_TRUE,
		}

	case token.KW_NONE:
		p.advance()
		return &ast.NoneLiteral{
			ExprBase: makeExprBase(tok.Span.Start, tok.Span.End),
		}

	case token.IDENT:
		p.advance()
		return &ast.IdentExpr{
			ExprBase: makeExprBase(tok.Span.Start, tok.Span.End),
			Name:     tok.Lexeme,
		}

	case token.LPAREN:
		// Grouped expression: ( expr )
		p.advance() // consume '('
		p.skipNewlines()
		expr := p.parseExpr(bpNone)
		if expr == nil {
			return nil
		}
		p.skipNewlines()
		p.expect(token.RPAREN)
		return expr

	case token.KW_NOT, token.BANG, token.MINUS:
		p.advance()
		bp := bpPrefix
		if tok.Kind == token.KW_NOT {
			bp = bpNot
		}
		operand := p.parseExpr(bp)
		if operand == nil {
			return nil
		}
		op := tok.Kind
		if op == token.BANG {
			op = token.KW_NOT
		}
		return &ast.UnaryExpr{
			ExprBase: makeExprBase(tok.Span.Start, operand.GetSpan().End),
			Op:       op,
			Operand:  operand,
		}

	case token.LBRACKET:
		return p.parseListLiteral()

	case token.EOF, token.NEWLINE:
		p.error("E2003", tok.Span, "unexpected end of expression")
		return nil

	default:
		p.error("E2002", tok.Span, fmt.Sprintf("unexpected token: '%s'", tok.Lexeme))
		return nil
	}
}

// led handles infix/postfix (left denotation) parsing.
func (p *Parser) led(left ast.Expr) ast.Expr {
	tok := p.peek()

	switch tok.Kind {
	case token.PLUS, token.MINUS, token.STAR, token.SLASH, token.DSLASH, token.PERCENT,
		token.EQ, token.NEQ, token.LT, token.LTE, token.GT, token.GTE,
		token.AND, token.OR:
		// Binary infix operator (left-associative)
		bp := infixBP(tok.Kind)
		p.advance()
		right := p.parseExpr(bp)
		if right == nil {
			return nil
		}
		return &ast.BinaryExpr{
			ExprBase: makeExprBase(left.GetSpan().Start, right.GetSpan().End),
			Op:       tok.Kind,
			Left:     left,
			Right:    right,
		}

	case token.LPAREN:
		return p.parseCallExpr(left)

	case token.LBRACKET:
		p.advance() // consume '['
		p.skipNewlines()
		index := p.parseExpr(bpNone)
		if index == nil {
			return nil
		}
		p.skipNewlines()
		end, _ := p.expect(token.RBRACKET)
		return &ast.IndexExpr{
			ExprBase: makeExprBase(left.GetSpan().Start, end.Span.End),
			Object:   left,
			Index:    index,
		}

	default:
		return left
	}
}

// parseCallExpr parses: callee ( args )
func (p *Parser) parseCallExpr(callee ast.Expr) ast.Expr {
	p.advance() // consume '('
	var args []ast.Expr

	p.skipNewlines()
	if !p.check(token.RPAREN) {
		for {
			arg := p.parseExpr(bpNone)
			if arg == nil {
				return nil
			}
			args = append(args, arg)
			p.skipNewlines()
			if !p.check(token.COMMA) {
				break
			}
			p.advance() // consume ','
			p.skipNewlines()
			if p.check(token.RPAREN) {
				break // trailing comma
			}
		}
	}
	p.skipNewlines()
	end, _ := p.expect(token.RPAREN)

	return &ast.CallExpr{
		ExprBase: makeExprBase(callee.GetSpan().Start, end.Span.End),
		Callee:   callee,
		Args:     args,
	}
}

// parseListLiteral parses: [ a, b, c ]
func (p *Parser) parseListLiteral() ast.Expr {
	start := p.advance() // consume '['
	var elements []ast.Expr

	p.skipNewlines()
	if !p.check(token.RBRACKET) {
		for {
			elem := p.parseExpr(bpNone)
			if elem == nil {
				return nil
			}
			elements = append(elements, elem)
			p.skipNewlines()
			if !p.check(token.COMMA) {
				break
			}
			p.advance() // consume ','
			p.skipNewlines()
			if p.check(token.RBRACKET) {
				break // trailing comma
			}
		}
	}
	p.skipNewlines()
	end, _ := p.expect(token.RBRACKET)

	return &ast.ListLiteral{
		ExprBase: makeExprBase(start.Span.Start, end.Span.End),
		Elements: elements,
	}
}

// ============================================================
// Span helpers
// ============================================================

func (p *Parser) prevEnd() span.Position {
	if p.pos > 0 && p.pos-1 < len(p.tokens) {
		return p.tokens[p.pos-1].Span.End
	}
	return p.peek().Span.Start
}

func (p *Parser) makeSpan(start span.Position) span.Span {
	return span.Span{Start: start, End: p.prevEnd()}
}

func makeExprBase(start, end span.Position) ast.ExprBase {
	return ast.ExprBase{NodeBase: ast.NodeBase{Span: span.Span{Start: start, End: end}}}
}

func makeStmtBase(start, end span.Position) ast.StmtBase {
	return ast.StmtBase{NodeBase: ast.NodeBase{Span: span.Span{Start: start, End: end}}}
}
