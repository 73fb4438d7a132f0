// Package diag provides diagnostic (error/warning) types for the lexer and parser.
package diag

import (
	"fmt"
	"strings"

	"xpp/internal/span"
)

// Severity indicates the severity of a diagnostic.
type Severity int

const (
	Error Severity = iota
	Warning
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	default:
		return "unknown"
	}
}

// Diagnostic represents a lexer or parser message.
type Diagnostic struct {
	Code     string    `json:"code"`           // stable error code, e.g. "E2001"
	Severity Severity  `json:"severity"`       // error or warning
	Message  string    `json:"message"`        // human-readable description
	Span     span.Span `json:"span"`           // source location
	Hint     string    `json:"hint,omitempty"` // optional hint
}

// String returns a human-readable representation of the diagnostic.
func (d Diagnostic) String() string {
	prefix := d.Severity.String()
	loc := fmt.Sprintf("%d:%d", d.Span.Start.Line, d.Span.Start.Column)
	msg := fmt.Sprintf("[%s] %s at %s: %s", d.Code, prefix, loc, d.Message)
	if d.Hint != "" {
		msg += " (hint: " + d.Hint + ")"
	}
	return msg
}

// Errorf creates an error diagnostic at the given span.
func Errorf(code string, s span.Span, format string, args ...interface{}) Diagnostic {
	return Diagnostic{
		Code:     code,
		Severity: Error,
		Message:  fmt.Sprintf(format, args...),
		Span:     s,
	}
}

// ListError is the error form of a non-empty diagnostic list.
type ListError struct {
	Diags []Diagnostic
}

func (e *ListError) Error() string {
	if len(e.Diags) == 0 {
		return "no diagnostics"
	}
	first := e.Diags[0]
	msg := fmt.Sprintf("syntax error at %d:%d: %s", first.Span.Start.Line, first.Span.Start.Column, first.Message)
	if len(e.Diags) > 1 {
		msg += fmt.Sprintf(" (and %d more)", len(e.Diags)-1)
	}
	return msg
}

// Detail returns every diagnostic on its own line.
func (e *ListError) Detail() string {
	lines := make([]string, len(e.Diags))
	for i, d := range e.Diags {
		lines[i] = d.String()
	}
	return strings.Join(lines, "\n")
}

// AsError returns nil when diags has no errors, otherwise a *ListError holding all of them.
func AsError(diags []Diagnostic) error {
	for _, d := range diags {
		if d.Severity == Error {
			return &ListError{Diags: diags}
		}
	}
	return nil
}
