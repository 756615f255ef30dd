package lexer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/svtools/svpickle/internal/token"
)

const (
	maxIncludeDepth = 32
	maxMacroDepth   = 64
)

type macro struct {
	body       string
	isFunction bool
}

// preprocessor holds the state shared by every scanner of one lex call:
// the macro table, the output token stream, pending trivia, and the
// collected diagnostics.
type preprocessor struct {
	includeDirs []string
	macros      map[string]macro
	tokens      []token.Token
	pending     []token.Trivia
	diags       []Diagnostic
}

func newPreprocessor(opts Options) *preprocessor {
	pp := &preprocessor{
		includeDirs: opts.IncludeDirs,
		macros:      make(map[string]macro),
	}
	for _, def := range opts.Defines {
		name, body, _ := strings.Cut(def, "=")
		pp.macros[name] = macro{body: body}
	}
	return pp
}

func (s *scanner) addTrivia(kind token.TriviaKind, text string) {
	s.pp.pending = append(s.pp.pending, token.Trivia{
		Kind:         kind,
		Text:         text,
		IncludeDepth: s.depth,
	})
}

func (pp *preprocessor) takePending() []token.Trivia {
	t := pp.pending
	pp.pending = nil
	return t
}

func (pp *preprocessor) errorAt(path string, line, col int, format string, args ...interface{}) {
	pp.diags = append(pp.diags, Diagnostic{
		File:    path,
		Line:    line,
		Col:     col,
		Message: fmt.Sprintf(format, args...),
	})
}

// handleDirective dispatches on the word after a backtick. The scanner is
// positioned on the backtick when called.
func (s *scanner) handleDirective() {
	start := s.position
	line, col := s.line, s.col
	s.readChar() // consume `
	if !isIdentStart(s.ch) {
		s.errorAt(line, col, "stray '`' in source")
		s.emitAt(token.OTHER, "`", line, col)
		return
	}
	word := s.readIdentifier()

	switch word {
	case "include":
		s.handleInclude(start, line, col)
	case "define":
		s.handleDefine(start, line, col)
	case "undef":
		s.skipSpaces()
		if isIdentStart(s.ch) {
			delete(s.pp.macros, s.readIdentifier())
		}
		s.addTrivia(token.Directive, s.restOfLine(start))
	case "ifdef", "ifndef":
		s.handleIf(word == "ifdef", line, col)
	case "elsif":
		s.handleElsif(line, col)
	case "else":
		s.handleElse(line, col)
	case "endif":
		s.handleEndif(line, col)
	case "timescale", "default_nettype", "resetall", "pragma",
		"celldefine", "endcelldefine", "line", "unconnected_drive",
		"nounconnected_drive", "begin_keywords", "end_keywords":
		s.addTrivia(token.Directive, s.restOfLine(start))
	default:
		s.expandMacro(word, start, line, col)
	}
}

// restOfLine consumes through the next newline and returns the raw text
// from start, newline included.
func (s *scanner) restOfLine(start int) string {
	for s.ch != '\n' && s.ch != 0 {
		s.readChar()
	}
	if s.ch == '\n' {
		s.readChar()
	}
	return s.input[start:s.position]
}

func (s *scanner) skipSpaces() {
	for s.ch == ' ' || s.ch == '\t' {
		s.readChar()
	}
}

func (s *scanner) handleInclude(start, line, col int) {
	s.skipSpaces()
	var name string
	switch s.ch {
	case '"':
		s.readChar()
		nameStart := s.position
		for s.ch != '"' && s.ch != '\n' && s.ch != 0 {
			s.readChar()
		}
		name = s.input[nameStart:s.position]
		if s.ch == '"' {
			s.readChar()
		}
	case '<':
		s.readChar()
		nameStart := s.position
		for s.ch != '>' && s.ch != '\n' && s.ch != 0 {
			s.readChar()
		}
		name = s.input[nameStart:s.position]
		if s.ch == '>' {
			s.readChar()
		}
	default:
		s.errorAt(line, col, "`include expects a quoted file name")
		s.restOfLine(start)
		return
	}
	raw := s.restOfLine(start)

	if name == "" {
		s.errorAt(line, col, "`include expects a quoted file name")
		return
	}
	if s.depth+1 > maxIncludeDepth {
		s.errorAt(line, col, "`include nesting exceeds %d levels", maxIncludeDepth)
		return
	}

	resolved, data, err := s.pp.resolveInclude(name, filepath.Dir(s.path))
	if err != nil {
		s.errorAt(line, col, "could not find include file %q", name)
		return
	}

	s.addTrivia(token.IncludeDirective, raw)
	child := newScanner(s.pp, resolved, data, s.depth+1)
	child.macro = s.macro
	child.macroDepth = s.macroDepth
	child.run()
}

func (pp *preprocessor) resolveInclude(name, fromDir string) (string, string, error) {
	dirs := append([]string{fromDir}, pp.includeDirs...)
	for _, dir := range dirs {
		candidate := filepath.Join(dir, name)
		data, err := os.ReadFile(candidate)
		if err == nil {
			return candidate, string(data), nil
		}
	}
	return "", "", os.ErrNotExist
}

// handleDefine records a macro. Function-like macros (name immediately
// followed by an open paren) are recorded but never expanded; their uses
// are preserved verbatim in the token stream.
func (s *scanner) handleDefine(start, line, col int) {
	s.skipSpaces()
	if !isIdentStart(s.ch) {
		s.errorAt(line, col, "`define expects a macro name")
		s.restOfLine(start)
		return
	}
	name := s.readIdentifier()
	isFunction := s.ch == '('

	bodyStart := s.position
	// Consume through end of line, honoring backslash continuations.
	for {
		lastNonWS := rune(0)
		for s.ch != '\n' && s.ch != 0 {
			if s.ch != ' ' && s.ch != '\t' && s.ch != '\r' {
				lastNonWS = s.ch
			}
			s.readChar()
		}
		if s.ch == '\n' {
			s.readChar()
		}
		if lastNonWS != '\\' || s.ch == 0 {
			break
		}
	}
	raw := s.input[start:s.position]

	body := strings.TrimSuffix(s.input[bodyStart:s.position], "\n")
	body = strings.ReplaceAll(body, "\\\r\n", "\n")
	body = strings.ReplaceAll(body, "\\\n", "\n")
	if isFunction {
		body = ""
	}
	s.pp.macros[name] = macro{body: strings.TrimSpace(body), isFunction: isFunction}
	s.addTrivia(token.Directive, raw)
}

// expandMacro splices an object-like macro body into the token stream.
// Every spliced token is tagged with the MacroUse so the printer can emit
// the original usage text instead of the expansion. Unknown and
// function-like macros are emitted as single MACRO tokens.
func (s *scanner) expandMacro(word string, start, line, col int) {
	raw := s.input[start:s.position]
	mac, ok := s.pp.macros[word]
	if !ok || mac.isFunction {
		s.emitAt(token.MACRO, raw, line, col)
		return
	}
	if s.macroDepth+1 > maxMacroDepth {
		s.errorAt(line, col, "macro expansion of `%s exceeds %d levels", word, maxMacroDepth)
		return
	}

	use := s.macro
	if use == nil {
		use = &token.MacroUse{Name: word, Raw: raw}
	}
	body := newScanner(s.pp, s.path, mac.body, s.depth)
	body.line, body.col = line, col
	body.macro = use
	body.macroDepth = s.macroDepth + 1

	if s.macro != nil {
		// Nested use inside another expansion: everything already belongs
		// to the outer use.
		body.run()
		return
	}

	idx := len(s.pp.tokens)
	outside := s.pp.takePending()
	body.run()
	s.pp.pending = nil
	if len(s.pp.tokens) > idx {
		// The usage site's trivia replaces the body's leading whitespace.
		s.pp.tokens[idx].Leading = outside
	} else {
		// Empty expansion: keep the usage text as trivia so non-expanding
		// printing still reproduces it.
		s.pp.pending = append(outside, token.Trivia{
			Kind:         token.MacroUsage,
			Text:         raw,
			IncludeDepth: s.depth,
		})
	}
}

// Conditional compilation. Regions whose guard fails are consumed without
// emitting tokens or trivia; the conditional directive lines themselves are
// dropped from the output stream.

type cond struct {
	active     bool // this branch is being kept
	everActive bool // some earlier branch of this conditional was kept
	inElse     bool
}

func (s *scanner) active() bool {
	for _, c := range s.conds {
		if !c.active {
			return false
		}
	}
	return true
}

func (s *scanner) activeAbove(n int) bool {
	for _, c := range s.conds[:n] {
		if !c.active {
			return false
		}
	}
	return true
}

func (s *scanner) handleIf(wantDefined bool, line, col int) {
	s.skipSpaces()
	if !isIdentStart(s.ch) {
		s.errorAt(line, col, "conditional directive expects a macro name")
		s.conds = append(s.conds, cond{})
		s.skipInactive()
		return
	}
	name := s.readIdentifier()
	_, defined := s.pp.macros[name]
	taken := s.activeAbove(len(s.conds)) && (defined == wantDefined)
	s.conds = append(s.conds, cond{active: taken, everActive: taken})
	if !s.active() {
		s.skipInactive()
	}
}

func (s *scanner) handleElsif(line, col int) {
	s.skipSpaces()
	name := ""
	if isIdentStart(s.ch) {
		name = s.readIdentifier()
	}
	if len(s.conds) == 0 {
		s.errorAt(line, col, "`elsif without matching `ifdef")
		return
	}
	top := &s.conds[len(s.conds)-1]
	if top.inElse {
		s.errorAt(line, col, "`elsif after `else")
	}
	_, defined := s.pp.macros[name]
	if !top.everActive && s.activeAbove(len(s.conds)-1) && defined {
		top.active = true
		top.everActive = true
	} else {
		top.active = false
	}
	if !s.active() {
		s.skipInactive()
	}
}

func (s *scanner) handleElse(line, col int) {
	if len(s.conds) == 0 {
		s.errorAt(line, col, "`else without matching `ifdef")
		return
	}
	top := &s.conds[len(s.conds)-1]
	if top.inElse {
		s.errorAt(line, col, "duplicate `else")
	}
	top.inElse = true
	top.active = !top.everActive && s.activeAbove(len(s.conds)-1)
	if top.active {
		top.everActive = true
	}
	if !s.active() {
		s.skipInactive()
	}
}

func (s *scanner) handleEndif(line, col int) {
	if len(s.conds) == 0 {
		s.errorAt(line, col, "`endif without matching `ifdef")
		return
	}
	s.conds = s.conds[:len(s.conds)-1]
}

// skipInactive consumes source text until the conditional stack becomes
// active again, tracking nested conditionals and skipping over strings and
// comments so directive-looking text inside them is ignored.
func (s *scanner) skipInactive() {
	for s.ch != 0 && !s.active() {
		switch {
		case s.ch == '"':
			s.readChar()
			for s.ch != '"' && s.ch != '\n' && s.ch != 0 {
				if s.ch == '\\' {
					s.readChar()
				}
				s.readChar()
			}
			if s.ch == '"' {
				s.readChar()
			}
		case s.ch == '/' && s.peekChar() == '/':
			for s.ch != '\n' && s.ch != 0 {
				s.readChar()
			}
		case s.ch == '/' && s.peekChar() == '*':
			s.readChar()
			s.readChar()
			for s.ch != 0 {
				if s.ch == '*' && s.peekChar() == '/' {
					s.readChar()
					s.readChar()
					break
				}
				s.readChar()
			}
		case s.ch == '`':
			line, col := s.line, s.col
			s.readChar()
			if !isIdentStart(s.ch) {
				continue
			}
			switch word := s.readIdentifier(); word {
			case "ifdef", "ifndef":
				// Guard is irrelevant inside a dead region; mark the nested
				// conditional as spent so its other branches stay dead too.
				s.skipSpaces()
				if isIdentStart(s.ch) {
					s.readIdentifier()
				}
				s.conds = append(s.conds, cond{active: false, everActive: true})
			case "elsif":
				s.handleElsif(line, col)
			case "else":
				s.handleElse(line, col)
			case "endif":
				s.handleEndif(line, col)
			}
		default:
			s.readChar()
		}
	}
}
