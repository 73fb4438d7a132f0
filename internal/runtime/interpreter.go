package runtime

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"xpp/internal/diag"
	"xpp/internal/lexer"
	"xpp/internal/parser"
	"xpp/internal/token"
)

// ============================================================
// Syntax error
// ============================================================

// SyntaxError is the single failure kind of the line interpreter. Text is the offending
// line or expression; Cause, when set, is the underlying parse or evaluation error.
type SyntaxError struct {
	Msg   string
	Text  string
	Cause error
}

func (e *SyntaxError) Error() string {
	msg := e.Msg
	if e.Text != "" {
		msg += ": " + e.Text
	}
	if e.Cause != nil {
		msg += " (" + e.Cause.Error() + ")"
	}
	return msg
}

func (e *SyntaxError) Unwrap() error { return e.Cause }

// ============================================================
// Line patterns
// ============================================================

var (
	inputLine  = regexp.MustCompile(`^([\p{L}_][\p{L}\p{N}_]*)\s*=\s*input\(\s*\)$`)
	assignLine = regexp.MustCompile(`^([\p{L}_][\p{L}\p{N}_]*)\s*=(.*)$`)
	printLine  = regexp.MustCompile(`^print\s*\((.*)\)$`)
	ifLine     = regexp.MustCompile(`^if[\s(]`)
	elifLine   = regexp.MustCompile(`^(elif|else\s+if)[\s(]`)
	elseLine   = regexp.MustCompile(`^else(\s|\{|:|$)`)
)

// normalize maps the full-width colon to ':' and trims surrounding whitespace.
func normalize(line string) string {
	return strings.TrimSpace(strings.ReplaceAll(line, "：", ":"))
}

// ============================================================
// Interpreter
// ============================================================

// Interpreter runs X++ lines and blocks against one persistent Environment.
type Interpreter struct {
	env      *Environment
	builtins MapScope
	in       *bufio.Reader
	out      io.Writer

	// outcome of the most recent if/elif chain; nil once any other statement runs
	lastIf *bool
}

// NewInterpreter creates an interpreter reading input() lines from in and printing to out.
func NewInterpreter(in io.Reader, out io.Writer) *Interpreter {
	if in == nil {
		in = strings.NewReader("")
	}
	return &Interpreter{
		env:      NewEnvironment(),
		builtins: Builtins(),
		in:       bufio.NewReader(in),
		out:      out,
	}
}

// Env returns the interpreter's environment.
func (i *Interpreter) Env() *Environment {
	return i.env
}

// EvalExpr evaluates expr. It tries, in order: a double-quoted literal, an exact variable
// name, a numeric literal, and finally a full expression over the environment.
func (i *Interpreter) EvalExpr(expr string) (Value, error) {
	expr = strings.TrimSpace(expr)

	quoted := len(expr) >= 2 && expr[0] == '"' && expr[len(expr)-1] == '"'
	if quoted && !strings.Contains(expr[1:len(expr)-1], `"`) {
		return StringVal(expr[1 : len(expr)-1]), nil
	}
	if v, ok := i.env.Get(expr); ok {
		return v, nil
	}
	if strings.Contains(expr, ".") {
		if f, err := strconv.ParseFloat(expr, 64); err == nil {
			return FloatVal(f), nil
		}
	} else if n, err := strconv.ParseInt(expr, 10, 64); err == nil {
		return IntVal(n), nil
	}

	tokens, lexDiags := lexer.New(expr, "<expr>").Tokenize()
	// A single string token covering the whole text is a literal: its interior is kept raw.
	if quoted && len(lexDiags) == 0 && len(tokens) == 2 && tokens[0].Kind == token.STRING {
		return StringVal(expr[1 : len(expr)-1]), nil
	}
	if err := diag.AsError(lexDiags); err != nil {
		return nil, &SyntaxError{Msg: "expression evaluation failed", Text: expr, Cause: err}
	}
	node, parseDiags := parser.New(tokens).ParseExpression()
	if err := diag.AsError(parseDiags); err != nil {
		return nil, &SyntaxError{Msg: "expression evaluation failed", Text: expr, Cause: err}
	}
	v, err := Eval(context.Background(), node, Chain(i.env, i.builtins))
	if err != nil {
		return nil, &SyntaxError{Msg: "expression evaluation failed", Text: expr, Cause: err}
	}
	return v, nil
}

// RunLine executes one statement: name = input(), name = expr, or print(expr).
func (i *Interpreter) RunLine(line string) error {
	i.lastIf = nil
	line = strings.TrimSpace(strings.TrimRight(normalize(line), ";"))
	if line == "" {
		return nil
	}

	if m := inputLine.FindStringSubmatch(line); m != nil {
		text, err := i.in.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || text == "") {
			return &SyntaxError{Msg: "input() has no more lines", Text: line, Cause: err}
		}
		i.env.Set(m[1], StringVal(strings.TrimRight(text, "\r\n")))
		return nil
	}

	if m := assignLine.FindStringSubmatch(line); m != nil && lexer.IsIdentifier(m[1]) && !strings.HasPrefix(m[2], "=") {
		v, err := i.EvalExpr(m[2])
		if err != nil {
			return err
		}
		i.env.Set(m[1], v)
		return nil
	}

	if m := printLine.FindStringSubmatch(line); m != nil {
		if strings.TrimSpace(m[1]) == "" {
			fmt.Fprintln(i.out)
			return nil
		}
		v, err := i.EvalExpr(m[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(i.out, v.String())
		return nil
	}

	return &SyntaxError{Msg: "invalid statement", Text: line}
}

// RunBlock executes lines in order against the shared environment. if/elif/else headers
// consume the brace-delimited block that follows them; their bodies run recursively.
func (i *Interpreter) RunBlock(lines []string) error {
	// Local copy: text after a closing brace ("} else {") is re-queued in place.
	lines = append([]string(nil), lines...)

	for idx := 0; idx < len(lines); {
		line := strings.TrimSpace(strings.TrimRight(normalize(lines[idx]), ";"))
		if line == "" || strings.HasPrefix(line, "#") {
			idx++
			continue
		}

		switch {
		case ifLine.MatchString(line):
			next, err := i.runConditional(lines, idx, condition(line, "if"), true)
			if err != nil {
				return err
			}
			idx = next

		case elifLine.MatchString(line):
			if i.lastIf == nil {
				return &SyntaxError{Msg: "elif without a preceding if", Text: line}
			}
			kw := "elif"
			if strings.HasPrefix(line, "else") {
				kw = line[:strings.Index(line, "if")+2]
			}
			next, err := i.runConditional(lines, idx, condition(line, kw), !*i.lastIf)
			if err != nil {
				return err
			}
			idx = next

		case elseLine.MatchString(line):
			if i.lastIf == nil {
				return &SyntaxError{Msg: "else without a preceding if", Text: line}
			}
			taken := *i.lastIf
			i.lastIf = nil
			blk := extractBlock(lines, idx)
			if !blk.opened {
				return &SyntaxError{Msg: "expected '{' after else", Text: line}
			}
			if !taken {
				if err := i.RunBlock(blk.lines); err != nil {
					return err
				}
				// an if inside the body must not pair with a later else
				i.lastIf = nil
			}
			idx = blk.resume(lines, idx)

		default:
			if err := i.RunLine(line); err != nil {
				return err
			}
			idx++
		}
	}
	return nil
}

// runConditional evaluates cond (when eligible) and runs the block at lines[idx] if it holds.
// It returns the index to resume at.
func (i *Interpreter) runConditional(lines []string, idx int, cond string, eligible bool) (int, error) {
	header := lines[idx]
	blk := extractBlock(lines, idx)
	if !blk.opened {
		return 0, &SyntaxError{Msg: "expected '{' after condition", Text: strings.TrimSpace(header)}
	}
	if cond == "" {
		return 0, &SyntaxError{Msg: "missing condition", Text: strings.TrimSpace(header)}
	}

	taken := false
	if eligible {
		v, err := i.EvalExpr(cond)
		if err != nil {
			return 0, err
		}
		if IsTruthy(v) {
			if err := i.RunBlock(blk.lines); err != nil {
				return 0, err
			}
			taken = true
		}
	} else {
		taken = true // an earlier branch of the chain already ran
	}
	i.lastIf = &taken
	return blk.resume(lines, idx), nil
}

// condition extracts the condition text between the keyword and the opening brace.
func condition(line, keyword string) string {
	cond := strings.TrimPrefix(line, keyword)
	if pos := unquotedBraces(cond); len(pos) > 0 && cond[pos[0]] == '{' {
		cond = cond[:pos[0]]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(cond), ":"))
}

// ============================================================
// Block extraction
// ============================================================

type block struct {
	lines    []string
	consumed int    // source lines from the header through the closing line
	opened   bool   // an opening brace was found
	rest     string // text after the closing brace on the closing line
}

// resume returns the index to continue at after the block, re-queuing any trailing text.
func (b block) resume(lines []string, start int) int {
	next := start + b.consumed
	if b.rest != "" {
		next--
		lines[next] = b.rest
	}
	return next
}

// ExtractBlock collects the body of the brace-delimited block opened at or after
// lines[start]. It returns the body lines (trimmed) and the number of lines consumed,
// including the header and closing lines. Unbalanced braces consume to the end of input.
func ExtractBlock(lines []string, start int) ([]string, int) {
	b := extractBlock(lines, start)
	return b.lines, b.consumed
}

func extractBlock(lines []string, start int) block {
	var b block
	depth := 0
	for j := start; j < len(lines); j++ {
		line := lines[j]
		segStart := 0   // where the body text on this line begins
		inside := depth // depth at the start of the line
		for _, p := range unquotedBraces(line) {
			if line[p] == '{' {
				depth++
				if depth == 1 && !b.opened {
					b.opened = true
					segStart = p + 1
					inside = 1
				}
				continue
			}
			if depth == 0 {
				continue // stray '}' before the block opens
			}
			depth--
			if depth == 0 && b.opened {
				if body := strings.TrimSpace(line[segStart:p]); body != "" {
					b.lines = append(b.lines, body)
				}
				b.rest = strings.TrimSpace(line[p+1:])
				b.consumed = j - start + 1
				return b
			}
		}
		if !b.opened || inside == 0 {
			continue
		}
		body := strings.TrimSpace(line[segStart:])
		if segStart == 0 || body != "" {
			b.lines = append(b.lines, body)
		}
	}
	b.consumed = len(lines) - start
	return b
}

// unquotedBraces returns the byte offsets of '{' and '}' outside string literals.
func unquotedBraces(line string) []int {
	var out []int
	var quote byte
	for p := 0; p < len(line); p++ {
		ch := line[p]
		switch {
		case quote != 0:
			if ch == '\\' {
				p++
			} else if ch == quote {
				quote = 0
			}
		case ch == '"' || ch == '\'':
			quote = ch
		case ch == '#':
			return out
		case ch == '{' || ch == '}':
			out = append(out, p)
		}
	}
	return out
}

// braceDelta returns the net change in brace depth contributed by line.
func braceDelta(line string) int {
	d := 0
	for _, p := range unquotedBraces(line) {
		if line[p] == '{' {
			d++
		} else {
			d--
		}
	}
	return d
}
