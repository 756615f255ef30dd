package lexer

import (
	"os"
	"unicode"
	"unicode/utf8"

	"github.com/svtools/svpickle/internal/token"
)

// Options configure preprocessing for one lex call.
type Options struct {
	// IncludeDirs are searched, after the including file's own directory,
	// when resolving `include directives.
	IncludeDirs []string

	// Defines are command-line style macro definitions, "NAME" or
	// "NAME=value".
	Defines []string
}

// LexFile reads and lexes one source file, applying the light preprocessor
// (`include splicing, object-like `define expansion, `ifdef conditionals).
// On failure the returned error is a *DiagnosticError carrying every
// diagnostic produced for the file.
func LexFile(path string, opts Options) ([]token.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LexSource(path, string(data), opts)
}

// LexSource lexes source text under the given path name. The token stream
// always ends with an EOF token carrying the file's trailing trivia.
func LexSource(path, src string, opts Options) ([]token.Token, error) {
	pp := newPreprocessor(opts)
	s := newScanner(pp, path, src, 0)
	s.run()
	if len(pp.diags) > 0 {
		return nil, &DiagnosticError{Diags: pp.diags}
	}
	return pp.tokens, nil
}

// scanner lexes one input buffer: a source file, an included file, or a
// macro body. All scanners of one lex call share the preprocessor state and
// append to the same output stream.
type scanner struct {
	pp    *preprocessor
	path  string
	input string

	position     int
	readPosition int
	ch           rune
	line         int
	col          int

	depth      int             // include depth of emitted tokens
	macro      *token.MacroUse // non-nil while expanding a macro body
	macroDepth int

	conds []cond
}

func newScanner(pp *preprocessor, path, input string, depth int) *scanner {
	s := &scanner{pp: pp, path: path, input: input, depth: depth, line: 1}
	s.readChar()
	return s
}

func (s *scanner) readChar() {
	if s.ch == '\n' {
		s.line++
		s.col = 0
	}
	if s.readPosition >= len(s.input) {
		s.ch = 0
		s.position = len(s.input)
		s.readPosition = len(s.input) + 1
		s.col++
		return
	}
	r, w := utf8.DecodeRuneInString(s.input[s.readPosition:])
	s.ch = r
	s.position = s.readPosition
	s.readPosition += w
	s.col++
}

func (s *scanner) peekChar() rune {
	if s.readPosition >= len(s.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(s.input[s.readPosition:])
	return r
}

func (s *scanner) run() {
	for {
		s.collectTrivia()
		if s.ch == 0 {
			break
		}
		s.lexToken()
	}
	if len(s.conds) > 0 {
		s.errorf("unterminated `ifdef/`ifndef region at end of file")
	}
	if s.depth == 0 && s.macro == nil {
		s.pp.tokens = append(s.pp.tokens, token.Token{
			Kind:    token.EOF,
			Line:    s.line,
			Col:     s.col,
			Leading: s.pp.takePending(),
		})
	}
}

// collectTrivia gathers whitespace, comments, and directives in front of
// the next token. Directives may splice tokens (includes, macro uses); the
// loop continues until a plain token or end of input is next.
func (s *scanner) collectTrivia() {
	for {
		switch {
		case s.ch == ' ' || s.ch == '\t' || s.ch == '\r' || s.ch == '\n':
			start := s.position
			for s.ch == ' ' || s.ch == '\t' || s.ch == '\r' || s.ch == '\n' {
				s.readChar()
			}
			s.addTrivia(token.Whitespace, s.input[start:s.position])
		case s.ch == '/' && s.peekChar() == '/':
			start := s.position
			for s.ch != '\n' && s.ch != 0 {
				s.readChar()
			}
			s.addTrivia(token.LineComment, s.input[start:s.position])
		case s.ch == '/' && s.peekChar() == '*':
			start := s.position
			line, col := s.line, s.col
			s.readChar()
			s.readChar()
			closed := false
			for s.ch != 0 {
				if s.ch == '*' && s.peekChar() == '/' {
					s.readChar()
					s.readChar()
					closed = true
					break
				}
				s.readChar()
			}
			if !closed {
				s.errorAt(line, col, "unterminated block comment")
			}
			s.addTrivia(token.BlockComment, s.input[start:s.position])
		case s.ch == '`':
			s.handleDirective()
		default:
			return
		}
	}
}

func (s *scanner) lexToken() {
	line, col := s.line, s.col
	switch {
	case isIdentStart(s.ch):
		s.emitAt(token.IDENT, s.readIdentifier(), line, col)
	case s.ch == '$' && isIdentStart(s.peekChar()):
		start := s.position
		s.readChar()
		s.readIdentifier()
		s.emitAt(token.IDENT, s.input[start:s.position], line, col)
	case isDigit(s.ch):
		s.emitAt(token.NUMBER, s.readNumber(), line, col)
	case s.ch == '\'' && isBasePrefix(s.peekChar()):
		s.emitAt(token.NUMBER, s.readBasedValue(), line, col)
	case s.ch == '"':
		s.emitAt(token.STRING, s.readString(), line, col)
	case s.ch == '\\':
		// Escaped identifier: backslash through the next whitespace.
		start := s.position
		for s.ch != 0 && s.ch != ' ' && s.ch != '\t' && s.ch != '\n' && s.ch != '\r' {
			s.readChar()
		}
		s.emitAt(token.IDENT, s.input[start:s.position], line, col)
	default:
		s.lexPunct(line, col)
	}
}

func (s *scanner) lexPunct(line, col int) {
	ch := s.ch
	switch ch {
	case '(':
		s.readChar()
		s.emitAt(token.LPAREN, "(", line, col)
	case ')':
		s.readChar()
		s.emitAt(token.RPAREN, ")", line, col)
	case '[':
		s.readChar()
		s.emitAt(token.LBRACKET, "[", line, col)
	case ']':
		s.readChar()
		s.emitAt(token.RBRACKET, "]", line, col)
	case '{':
		s.readChar()
		s.emitAt(token.LBRACE, "{", line, col)
	case '}':
		s.readChar()
		s.emitAt(token.RBRACE, "}", line, col)
	case ';':
		s.readChar()
		s.emitAt(token.SEMI, ";", line, col)
	case ',':
		s.readChar()
		s.emitAt(token.COMMA, ",", line, col)
	case '.':
		s.readChar()
		s.emitAt(token.DOT, ".", line, col)
	case '#':
		s.readChar()
		s.emitAt(token.HASH, "#", line, col)
	case '*':
		s.readChar()
		s.emitAt(token.STAR, "*", line, col)
	case ':':
		s.readChar()
		if s.ch == ':' {
			s.readChar()
			s.emitAt(token.SCOPE, "::", line, col)
		} else {
			s.emitAt(token.COLON, ":", line, col)
		}
	default:
		s.readChar()
		s.emitAt(token.OTHER, string(ch), line, col)
	}
}

func (s *scanner) readIdentifier() string {
	start := s.position
	for isIdentPart(s.ch) {
		s.readChar()
	}
	return s.input[start:s.position]
}

// readNumber accepts decimal, real, and sized based literals (8'hFF).
// The lexer is lenient: it never rejects a malformed literal, it just stops
// consuming where the literal grammar ends.
func (s *scanner) readNumber() string {
	start := s.position
	for isDigit(s.ch) || s.ch == '_' {
		s.readChar()
	}
	if s.ch == '.' && isDigit(s.peekChar()) {
		s.readChar()
		for isDigit(s.ch) || s.ch == '_' {
			s.readChar()
		}
	}
	if s.ch == 'e' || s.ch == 'E' {
		if next := s.peekChar(); isDigit(next) || next == '+' || next == '-' {
			s.readChar()
			if s.ch == '+' || s.ch == '-' {
				s.readChar()
			}
			for isDigit(s.ch) {
				s.readChar()
			}
			return s.input[start:s.position]
		}
	}
	if s.ch == '\'' && isBasePrefix(s.peekChar()) {
		s.readBasedValue()
	}
	return s.input[start:s.position]
}

// readBasedValue consumes the '<base><digits> part of a literal, or the
// short unbased forms '0, '1, 'x, 'z.
func (s *scanner) readBasedValue() string {
	start := s.position
	s.readChar() // '
	if s.ch == 's' || s.ch == 'S' {
		s.readChar()
	}
	if isBaseChar(s.ch) || isValueDigit(s.ch) {
		s.readChar()
	}
	for isValueDigit(s.ch) || s.ch == '_' || s.ch == '?' {
		s.readChar()
	}
	return s.input[start:s.position]
}

func (s *scanner) readString() string {
	start := s.position
	line, col := s.line, s.col
	s.readChar() // opening quote
	for s.ch != '"' {
		if s.ch == 0 || s.ch == '\n' {
			s.errorAt(line, col, "unterminated string literal")
			return s.input[start:s.position]
		}
		if s.ch == '\\' {
			s.readChar()
		}
		s.readChar()
	}
	s.readChar() // closing quote
	return s.input[start:s.position]
}

func (s *scanner) emitAt(kind token.Kind, text string, line, col int) {
	s.pp.tokens = append(s.pp.tokens, token.Token{
		Kind:         kind,
		Text:         text,
		Line:         line,
		Col:          col,
		Leading:      s.pp.takePending(),
		IncludeDepth: s.depth,
		Macro:        s.macro,
	})
}

func (s *scanner) errorf(format string, args ...interface{}) {
	s.errorAt(s.line, s.col, format, args...)
}

func (s *scanner) errorAt(line, col int, format string, args ...interface{}) {
	s.pp.errorAt(s.path, line, col, format, args...)
}

func isIdentStart(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isIdentPart(ch rune) bool {
	return ch == '_' || ch == '$' || unicode.IsLetter(ch) || unicode.IsDigit(ch)
}

func isDigit(ch rune) bool { return ch >= '0' && ch <= '9' }

func isBaseChar(ch rune) bool {
	switch ch {
	case 'b', 'B', 'o', 'O', 'd', 'D', 'h', 'H':
		return true
	}
	return false
}

func isBasePrefix(ch rune) bool {
	return isBaseChar(ch) || isValueDigit(ch) || ch == 's' || ch == 'S'
}

func isValueDigit(ch rune) bool {
	switch {
	case ch >= '0' && ch <= '9':
		return true
	case ch >= 'a' && ch <= 'f', ch >= 'A' && ch <= 'F':
		return true
	case ch == 'x' || ch == 'X' || ch == 'z' || ch == 'Z':
		return true
	}
	return false
}
