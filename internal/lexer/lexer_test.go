package lexer

import (
	"testing"
	"xpp/internal/token"
)

func expectKinds(t *testing.T, source string, expected []token.Kind) []token.Token {
	t.Helper()
	l := New(source, "test.xpp")
	tokens, diags := l.Tokenize()

	if len(diags) > 0 {
		t.Errorf("unexpected diagnostics: %v", diags)
	}
	if len(tokens) != len(expected) {
		t.Fatalf("expected %d tokens, got %d: %v", len(expected), len(tokens), tokens)
	}
	for i, exp := range expected {
		if tokens[i].Kind != exp {
			t.Errorf("token[%d]: expected %s, got %s (%q)", i, exp, tokens[i].Kind, tokens[i].Lexeme)
		}
	}
	return tokens
}

func TestTokenizeSimple(t *testing.T) {
	expectKinds(t, `x = 1 + 2`, []token.Kind{
		token.IDENT, token.ASSIGN, token.INT, token.PLUS, token.INT, token.EOF,
	})
}

func TestTokenizeKeywords(t *testing.T) {
	expectKinds(t, `if elif else while for in break continue pass True False None not and or`, []token.Kind{
		token.KW_IF, token.KW_ELIF, token.KW_ELSE, token.KW_WHILE, token.KW_FOR, token.KW_IN,
		token.KW_BREAK, token.KW_CONTINUE, token.KW_PASS,
		token.KW_TRUE, token.KW_FALSE, token.KW_NONE, token.KW_NOT,
		token.AND, token.OR,
		token.EOF,
	})
}

func TestTokenizeOperators(t *testing.T) {
	expectKinds(t, `= == != < <= > >= + - * / // % ! && || += -= *= /=`, []token.Kind{
		token.ASSIGN, token.EQ, token.NEQ,
		token.LT, token.LTE, token.GT, token.GTE,
		token.PLUS, token.MINUS, token.STAR, token.SLASH, token.DSLASH, token.PERCENT,
		token.BANG, token.AND, token.OR,
		token.PLUS_ASSIGN, token.MINUS_ASSIGN, token.STAR_ASSIGN, token.SLASH_ASSIGN,
		token.EOF,
	})
}

func TestTokenizeDelimiters(t *testing.T) {
	expectKinds(t, `( ) { } [ ] , ; :`, []token.Kind{
		token.LPAREN, token.RPAREN, token.LBRACE, token.RBRACE,
		token.LBRACKET, token.RBRACKET, token.COMMA,
		token.SEMICOLON, token.COLON,
		token.EOF,
	})
}

func TestTokenizeString(t *testing.T) {
	tokens := expectKinds(t, `"hello" 'single' "line1\nline2" "C:\dir"`, []token.Kind{
		token.STRING, token.STRING, token.STRING, token.STRING, token.EOF,
	})

	want := []string{"hello", "single", "line1\nline2", `C:\dir`}
	for i, w := range want {
		if tokens[i].Lexeme != w {
			t.Errorf("token[%d]: expected %q, got %q", i, w, tokens[i].Lexeme)
		}
	}
}

func TestTokenizeUnterminatedString(t *testing.T) {
	l := New(`"abc`, "test.xpp")
	_, diags := l.Tokenize()
	if len(diags) != 1 || diags[0].Code != "E1001" {
		t.Fatalf("expected one E1001 diagnostic, got %v", diags)
	}
}

func TestTokenizeNumbers(t *testing.T) {
	tokens := expectKinds(t, `123 3.14 0 42`, []token.Kind{
		token.INT, token.FLOAT, token.INT, token.INT, token.EOF,
	})
	if tokens[0].Lexeme != "123" {
		t.Errorf("token[0]: expected '123', got %q", tokens[0].Lexeme)
	}
	if tokens[1].Lexeme != "3.14" {
		t.Errorf("token[1]: expected '3.14', got %q", tokens[1].Lexeme)
	}
}

func TestTokenizeExponent(t *testing.T) {
	tokens := expectKinds(t, `1e5 2.5E-3 7e+2 3e`, []token.Kind{
		token.FLOAT, token.FLOAT, token.FLOAT, token.INT, token.IDENT, token.EOF,
	})
	for i, want := range []string{"1e5", "2.5E-3", "7e+2", "3", "e"} {
		if tokens[i].Lexeme != want {
			t.Errorf("token[%d]: expected %q, got %q", i, want, tokens[i].Lexeme)
		}
	}
}

func TestTokenizeNewlines(t *testing.T) {
	expectKinds(t, "a\nb\n", []token.Kind{
		token.IDENT, token.NEWLINE, token.IDENT, token.NEWLINE, token.EOF,
	})
}

func TestTokenizeComment(t *testing.T) {
	expectKinds(t, "x # this is a comment\ny", []token.Kind{
		token.IDENT, token.NEWLINE, token.IDENT, token.EOF,
	})
}

func TestTokenizeUnicodeIdent(t *testing.T) {
	tokens := expectKinds(t, "名字 = 1", []token.Kind{
		token.IDENT, token.ASSIGN, token.INT, token.EOF,
	})
	if tokens[0].Lexeme != "名字" {
		t.Errorf("expected identifier 名字, got %q", tokens[0].Lexeme)
	}
	if tokens[1].Span.Start.Column != 4 {
		t.Errorf("'=' column: expected 4, got %d", tokens[1].Span.Start.Column)
	}
}

func TestTokenizePositions(t *testing.T) {
	l := New("x = 1\n  y", "test.xpp")
	tokens, _ := l.Tokenize()

	if tokens[0].Span.Start.Line != 1 || tokens[0].Span.Start.Column != 1 {
		t.Errorf("'x' position: expected 1:1, got %s", tokens[0].Span.Start)
	}
	if tokens[2].Span.Start.Column != 5 {
		t.Errorf("'1' column: expected 5, got %d", tokens[2].Span.Start.Column)
	}
	// tokens: x = 1 \n y
	if tokens[4].Span.Start.Line != 2 || tokens[4].Span.Start.Column != 3 {
		t.Errorf("'y' position: expected 2:3, got %s", tokens[4].Span.Start)
	}
}

func TestTokenizeIllegal(t *testing.T) {
	l := New("a . b", "test.xpp")
	tokens, diags := l.Tokenize()
	if len(diags) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", len(diags))
	}
	if tokens[1].Kind != token.ILLEGAL {
		t.Errorf("expected ILLEGAL for '.', got %s", tokens[1].Kind)
	}
}

func TestIsIdentifier(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"x", true},
		{"_tmp1", true},
		{"名字", true},
		{"1x", false},
		{"a b", false},
		{"while", false},
		{"and", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsIdentifier(tt.input); got != tt.want {
			t.Errorf("IsIdentifier(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
