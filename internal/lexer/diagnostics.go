package lexer

import (
	"fmt"
	"strings"
)

// Diagnostic is one lexer or preprocessor message tied to a source location.
type Diagnostic struct {
	File    string
	Line    int
	Col     int
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d:%d: %s", d.File, d.Line, d.Col, d.Message)
}

// DiagnosticError aggregates every diagnostic produced while lexing one
// file. The rendered error carries all messages, not just the first, so a
// caller surfacing the failure shows the complete picture at once.
type DiagnosticError struct {
	Diags []Diagnostic
}

func (e *DiagnosticError) Error() string {
	lines := make([]string, len(e.Diags))
	for i, d := range e.Diags {
		lines[i] = d.String()
	}
	return strings.Join(lines, "\n")
}
