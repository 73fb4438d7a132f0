// Package token defines the token types produced by the lexer.
package token

import (
	"fmt"
	"xpp/internal/span"
)

// Kind represents the type of a token.
type Kind int

const (
	// Special tokens
	ILLEGAL Kind = iota
	EOF
	NEWLINE

	// Literals
	IDENT  // identifiers: x, total, 名字
	INT    // integer literals: 123
	FLOAT  // float literals: 3.14
	STRING // string literals: "hello", 'hello'

	// Operators
	ASSIGN  // =
	PLUS    // +
	MINUS   // -
	STAR    // *
	SLASH   // /
	DSLASH  // //
	PERCENT // %
	BANG    // !  (alias of not)

	EQ  // ==
	NEQ // !=
	LT  // <
	LTE // <=
	GT  // >
	GTE // >=

	AND // and, &&
	OR  // or, ||

	// Compound assignment
	PLUS_ASSIGN  // +=
	MINUS_ASSIGN // -=
	STAR_ASSIGN  // *=
	SLASH_ASSIGN // /=

	// Delimiters
	LPAREN    // (
	RPAREN    // )
	LBRACE    // {
	RBRACE    // }
	LBRACKET  // [
	RBRACKET  // ]
	COMMA     // ,
	SEMICOLON // ;
	COLON     // :

	// Keywords
	KW_IF
	KW_ELIF
	KW_ELSE
	KW_WHILE
	KW_FOR
	KW_IN
	KW_BREAK
	KW_CONTINUE
	KW_PASS
	KW_TRUE
	KW_FALSE
	KW_NONE
	KW_NOT
)

var kindNames = map[Kind]string{
	ILLEGAL: "ILLEGAL",
	EOF:     "EOF",
	NEWLINE: "NEWLINE",

	IDENT:  "IDENT",
	INT:    "INT",
	FLOAT:  "FLOAT",
	STRING: "STRING",

	ASSIGN:       "=",
	PLUS:         "+",
	MINUS:        "-",
	STAR:         "*",
	SLASH:        "/",
	DSLASH:       "//",
	PERCENT:      "%",
	BANG:         "!",
	EQ:           "==",
	NEQ:          "!=",
	LT:           "<",
	LTE:          "<=",
	GT:           ">",
	GTE:          ">=",
	AND:          "and",
	OR:           "or",
	PLUS_ASSIGN:  "+=",
	MINUS_ASSIGN: "-=",
	STAR_ASSIGN:  "*=",
	SLASH_ASSIGN: "/=",

	LPAREN:    "(",
	RPAREN:    ")",
	LBRACE:    "{",
	RBRACE:    "}",
	LBRACKET:  "[",
	RBRACKET:  "]",
	COMMA:     ",",
	SEMICOLON: ";",
	COLON:     ":",

	KW_IF:       "if",
	KW_ELIF:     "elif",
	KW_ELSE:     "else",
	KW_WHILE:    "while",
	KW_FOR:      "for",
	KW_IN:       "in",
	KW_BREAK:    "break",
	KW_CONTINUE: "continue",
	KW_PASS:     "pass",
	KW_TRUE:     "True",
	KW_FALSE:    "False",
	KW_NONE:     "None",
	KW_NOT:      "not",
}

// String returns the human-readable name for a token kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsKeyword returns true if the kind is a keyword.
func (k Kind) IsKeyword() bool {
	return k >= KW_IF && k <= KW_NOT
}

// IsLiteral returns true if the kind is a literal (ident/int/float/string).
func (k Kind) IsLiteral() bool {
	return k >= IDENT && k <= STRING
}

// IsAssign reports whether the kind is '=' or a compound assignment.
func (k Kind) IsAssign() bool {
	return k == ASSIGN || (k >= PLUS_ASSIGN && k <= SLASH_ASSIGN)
}

// and/or are operators rather than keywords, but they are spelled like identifiers.
var keywords = map[string]Kind{
	"if":       KW_IF,
	"elif":     KW_ELIF,
	"else":     KW_ELSE,
	"while":    KW_WHILE,
	"for":      KW_FOR,
	"in":       KW_IN,
	"break":    KW_BREAK,
	"continue": KW_CONTINUE,
	"pass":     KW_PASS,
	"True":     KW_TRUE,
	"true":     KW_TRUE,
	"False":    KW_FALSE,
	"false":    KW_FALSE,
	"None":     KW_NONE,
	"not":      KW_NOT,
	"and":      AND,
	"or":       OR,
}

// LookupIdent returns the keyword Kind for ident, or IDENT if it is not a keyword.
func LookupIdent(ident string) Kind {
	if kind, ok := keywords[ident]; ok {
		return kind
	}
	return IDENT
}

// Token represents a lexical token with its kind, text, and source location.
type Token struct {
	Kind   Kind      `json:"kind"`
	Lexeme string    `json:"lexeme"`
	Span   span.Span `json:"span"`
}

// String returns a human-readable representation of the token.
func (t Token) String() string {
	return fmt.Sprintf("%s %q %s", t.Kind, t.Lexeme, t.Span.Start)
}
