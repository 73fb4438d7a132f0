package runtime

import "strings"

// Session drives interactive mode: it buffers lines while a brace block is open and runs
// the buffer as one block once the braces balance. Lines outside a block run on their own.
type Session struct {
	interp *Interpreter
	buf    []string
	depth  int
}

// NewSession creates a session over interp.
func NewSession(interp *Interpreter) *Session {
	return &Session{interp: interp}
}

// Interpreter returns the underlying interpreter.
func (s *Session) Interpreter() *Interpreter {
	return s.interp
}

// Feed processes one input line. exit is true when the line asks to leave the session.
func (s *Session) Feed(line string) (exit bool, err error) {
	if s.depth == 0 && strings.EqualFold(strings.TrimSpace(line), "exit") {
		return true, nil
	}

	s.buf = append(s.buf, line)
	s.depth += braceDelta(line)
	if s.depth > 0 {
		return false, nil
	}

	lines := s.buf
	s.Reset()
	return false, s.interp.RunBlock(lines)
}

// Pending reports whether a block is open and more lines are expected.
func (s *Session) Pending() bool {
	return s.depth > 0
}

// Reset discards any buffered, unexecuted lines.
func (s *Session) Reset() {
	s.buf = nil
	s.depth = 0
}

// Version is the X++ language version reported by the REPL and the bridge.
const Version = "0.4"

// Banner is printed when interactive mode starts.
const Banner = "X++ v" + Version + " Interactive Mode | type 'exit' to quit"
