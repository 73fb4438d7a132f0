// Package lexer implements the lexical analysis (tokenization) for X++ expressions and sandbox programs.
package lexer

import (
	"fmt"
	"unicode"
	"unicode/utf8"
	"xpp/internal/diag"
	"xpp/internal/span"
	"xpp/internal/token"
)

// Lexer tokenizes source text into a sequence of tokens.
type Lexer struct {
	source   string
	filename string

	pos  int // current read position in source
	line int // current line (1-based)
	col  int // current column (1-based)

	diags []diag.Diagnostic
}

// New creates a new Lexer for the given source text.
func New(source, filename string) *Lexer {
	return &Lexer{
		source:   source,
		filename: filename,
		pos:      0,
		line:     1,
		col:      1,
	}
}

// Tokenize scans the entire source and returns all tokens and diagnostics.
func (l *Lexer) Tokenize() ([]token.Token, []diag.Diagnostic) {
	var tokens []token.Token
	for {
		tok := l.nextToken()
		tokens = append(tokens, tok)
		if tok.Kind == token.EOF {
			break
		}
	}
	return tokens, l.diags
}

// ---- internal helpers ----

// peek returns the current byte without advancing, or 0 if at end.
func (l *Lexer) peek() byte {
	if l.pos >= len(l.source) {
		return 0
	}
	return l.source[l.pos]
}

// peekNext returns the byte after current, or 0 if at end.
func (l *Lexer) peekNext() byte {
	if l.pos+1 >= len(l.source) {
		return 0
	}
	return l.source[l.pos+1]
}

// peekRune decodes the rune at the current position.
func (l *Lexer) peekRune() (rune, int) {
	if l.pos >= len(l.source) {
		return utf8.RuneError, 0
	}
	return utf8.DecodeRuneInString(l.source[l.pos:])
}

// advance consumes the current byte and returns it.
func (l *Lexer) advance() byte {
	ch := l.source[l.pos]
	l.pos++
	if ch == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return ch
}

// advanceRune consumes one whole rune, counting it as a single column.
func (l *Lexer) advanceRune() {
	_, size := l.peekRune()
	if size == 0 {
		return
	}
	if size == 1 {
		l.advance()
		return
	}
	l.pos += size
	l.col++
}

// curPos returns the current position as a span.Position.
func (l *Lexer) curPos() span.Position {
	return span.Position{Offset: l.pos, Line: l.line, Column: l.col}
}

// makeSpan returns a span from start to current position.
func (l *Lexer) makeSpan(start span.Position) span.Span {
	return span.Span{Start: start, End: l.curPos()}
}

// skipWhitespace skips spaces and tabs (not newlines).
func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.source) {
		ch := l.source[l.pos]
		if ch == ' ' || ch == '\t' || ch == '\r' {
			l.advance()
		} else {
			break
		}
	}
}

// skipLineComment skips from # to end of line.
func (l *Lexer) skipLineComment() {
	for l.pos < len(l.source) && l.source[l.pos] != '\n' {
		l.advance()
	}
}

// addError records a diagnostic error.
func (l *Lexer) addError(code string, s span.Span, msg string) {
	l.diags = append(l.diags, diag.Errorf(code, s, "%s", msg))
}

// ---- token reading ----

func (l *Lexer) nextToken() token.Token {
	l.skipWhitespace()

	if l.pos >= len(l.source) {
		return token.Token{Kind: token.EOF, Lexeme: "", Span: l.makeSpan(l.curPos())}
	}

	start := l.curPos()
	ch := l.peek()

	if ch == '\n' {
		l.advance()
		return token.Token{Kind: token.NEWLINE, Lexeme: "\\n", Span: l.makeSpan(start)}
	}

	if ch == '#' {
		l.skipLineComment()
		return l.nextToken()
	}

	if ch == '"' || ch == '\'' {
		return l.readString(start, ch)
	}

	if isDigit(ch) {
		return l.readNumber(start)
	}

	if r, _ := l.peekRune(); isIdentStart(r) {
		return l.readIdentifier(start)
	}

	return l.readOperator(start)
}

// readString reads a string literal delimited by quote (" or ').
func (l *Lexer) readString(start span.Position, quote byte) token.Token {
	l.advance() // skip opening quote
	var value []byte

	for l.pos < len(l.source) {
		ch := l.peek()
		if ch == quote {
			l.advance() // skip closing quote
			return token.Token{
				Kind:   token.STRING,
				Lexeme: string(value),
				Span:   l.makeSpan(start),
			}
		}
		if ch == '\n' {
			break
		}
		if ch == '\\' && l.pos+1 < len(l.source) {
			l.advance()
			esc := l.peek()
			switch esc {
			case 'n':
				value = append(value, '\n')
			case 't':
				value = append(value, '\t')
			case '\\':
				value = append(value, '\\')
			case '"':
				value = append(value, '"')
			case '\'':
				value = append(value, '\'')
			case '0':
				value = append(value, 0)
			default:
				// unknown escapes are kept as written
				value = append(value, '\\', esc)
			}
			l.advance()
			continue
		}
		value = append(value, ch)
		l.advance()
	}

	l.addError("E1001", l.makeSpan(start), "unterminated string literal")
	return token.Token{Kind: token.STRING, Lexeme: string(value), Span: l.makeSpan(start)}
}

// readNumber reads an integer or float literal. Floats take an optional exponent.
func (l *Lexer) readNumber(start span.Position) token.Token {
	isFloat := false
	numStart := l.pos

	for l.pos < len(l.source) && isDigit(l.peek()) {
		l.advance()
	}

	if l.pos < len(l.source) && l.peek() == '.' && isDigit(l.peekNext()) {
		isFloat = true
		l.advance() // skip '.'
		for l.pos < len(l.source) && isDigit(l.peek()) {
			l.advance()
		}
	}

	if l.pos < len(l.source) && (l.peek() == 'e' || l.peek() == 'E') {
		n := 1
		if c := l.peekNext(); c == '+' || c == '-' {
			n = 2
		}
		if l.pos+n < len(l.source) && isDigit(l.source[l.pos+n]) {
			isFloat = true
			for ; n > 0; n-- {
				l.advance()
			}
			for l.pos < len(l.source) && isDigit(l.peek()) {
				l.advance()
			}
		}
	}

	lexeme := l.source[numStart:l.pos]
	kind := token.INT
	if isFloat {
		kind = token.FLOAT
	}
	return token.Token{Kind: kind, Lexeme: lexeme, Span: l.makeSpan(start)}
}

// readIdentifier reads an identifier or keyword.
func (l *Lexer) readIdentifier(start span.Position) token.Token {
	identStart := l.pos

	for l.pos < len(l.source) {
		r, _ := l.peekRune()
		if !isIdentPart(r) {
			break
		}
		l.advanceRune()
	}

	lexeme := l.source[identStart:l.pos]
	kind := token.LookupIdent(lexeme)
	return token.Token{Kind: kind, Lexeme: lexeme, Span: l.makeSpan(start)}
}

// readOperator reads an operator or delimiter token.
func (l *Lexer) readOperator(start span.Position) token.Token {
	if r, size := l.peekRune(); size > 1 {
		l.advanceRune()
		l.addError("E1003", l.makeSpan(start), fmt.Sprintf("unexpected character: '%c'", r))
		return token.Token{Kind: token.ILLEGAL, Lexeme: string(r), Span: l.makeSpan(start)}
	}

	ch := l.advance()

	switch ch {
	case '(':
		return l.emit(token.LPAREN, "(", start)
	case ')':
		return l.emit(token.RPAREN, ")", start)
	case '{':
		return l.emit(token.LBRACE, "{", start)
	case '}':
		return l.emit(token.RBRACE, "}", start)
	case '[':
		return l.emit(token.LBRACKET, "[", start)
	case ']':
		return l.emit(token.RBRACKET, "]", start)
	case ',':
		return l.emit(token.COMMA, ",", start)
	case ';':
		return l.emit(token.SEMICOLON, ";", start)
	case ':':
		return l.emit(token.COLON, ":", start)
	case '+':
		if l.peek() == '=' {
			l.advance()
			return l.emit(token.PLUS_ASSIGN, "+=", start)
		}
		return l.emit(token.PLUS, "+", start)
	case '-':
		if l.peek() == '=' {
			l.advance()
			return l.emit(token.MINUS_ASSIGN, "-=", start)
		}
		return l.emit(token.MINUS, "-", start)
	case '*':
		if l.peek() == '=' {
			l.advance()
			return l.emit(token.STAR_ASSIGN, "*=", start)
		}
		return l.emit(token.STAR, "*", start)
	case '/':
		if l.peek() == '/' {
			l.advance()
			return l.emit(token.DSLASH, "//", start)
		}
		if l.peek() == '=' {
			l.advance()
			return l.emit(token.SLASH_ASSIGN, "/=", start)
		}
		return l.emit(token.SLASH, "/", start)
	case '%':
		return l.emit(token.PERCENT, "%", start)
	case '!':
		if l.peek() == '=' {
			l.advance()
			return l.emit(token.NEQ, "!=", start)
		}
		return l.emit(token.BANG, "!", start)
	case '=':
		if l.peek() == '=' {
			l.advance()
			return l.emit(token.EQ, "==", start)
		}
		return l.emit(token.ASSIGN, "=", start)
	case '<':
		if l.peek() == '=' {
			l.advance()
			return l.emit(token.LTE, "<=", start)
		}
		return l.emit(token.LT, "<", start)
	case '>':
		if l.peek() == '=' {
			l.advance()
			return l.emit(token.GTE, ">=", start)
		}
		return l.emit(token.GT, ">", start)
	case '&':
		if l.peek() == '&' {
			l.advance()
			return l.emit(token.AND, "&&", start)
		}
		l.addError("E1003", l.makeSpan(start), fmt.Sprintf("unexpected character: '%c', did you mean 'and'?", ch))
		return l.emit(token.ILLEGAL, string(ch), start)
	case '|':
		if l.peek() == '|' {
			l.advance()
			return l.emit(token.OR, "||", start)
		}
		l.addError("E1003", l.makeSpan(start), fmt.Sprintf("unexpected character: '%c', did you mean 'or'?", ch))
		return l.emit(token.ILLEGAL, string(ch), start)
	default:
		l.addError("E1003", l.makeSpan(start), fmt.Sprintf("unexpected character: '%c'", ch))
		return l.emit(token.ILLEGAL, string(ch), start)
	}
}

func (l *Lexer) emit(kind token.Kind, lexeme string, start span.Position) token.Token {
	return token.Token{Kind: kind, Lexeme: lexeme, Span: l.makeSpan(start)}
}

// ---- character classification ----

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(r rune) bool {
	if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
		return true
	}
	return r >= 0x80 && unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9') || (r >= 0x80 && unicode.IsDigit(r))
}

// IsIdentifier reports whether s is a single well-formed identifier that is not a keyword.
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if i == 0 && !isIdentStart(r) {
			return false
		}
		if !isIdentPart(r) {
			return false
		}
	}
	return token.LookupIdent(s) == token.IDENT
}
