package token

import "fmt"

// Kind identifies the lexical class of a token. The lexer only
// distinguishes classes the parser dispatches on; every remaining
// punctuation or operator is OTHER with its text preserved.
type Kind int

const (
	EOF Kind = iota
	IDENT
	NUMBER
	STRING
	LPAREN
	RPAREN
	LBRACKET
	RBRACKET
	LBRACE
	RBRACE
	SEMI
	COMMA
	DOT
	HASH
	COLON
	SCOPE  // ::
	STAR   // needed for "import pkg::*"
	MACRO  // unexpanded macro usage, e.g. `MY_MACRO
	OTHER  // any other operator or punctuation
)

var kindNames = map[Kind]string{
	EOF:      "EOF",
	IDENT:    "IDENT",
	NUMBER:   "NUMBER",
	STRING:   "STRING",
	LPAREN:   "LPAREN",
	RPAREN:   "RPAREN",
	LBRACKET: "LBRACKET",
	RBRACKET: "RBRACKET",
	LBRACE:   "LBRACE",
	RBRACE:   "RBRACE",
	SEMI:     "SEMI",
	COMMA:    "COMMA",
	DOT:      "DOT",
	HASH:     "HASH",
	COLON:    "COLON",
	SCOPE:    "SCOPE",
	STAR:     "STAR",
	MACRO:    "MACRO",
	OTHER:    "OTHER",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// TriviaKind classifies the non-token source text attached in front of a
// token: whitespace, comments, and preserved preprocessor directives.
type TriviaKind int

const (
	Whitespace TriviaKind = iota
	LineComment
	BlockComment
	Directive        // a preserved directive line, e.g. `define or `timescale
	IncludeDirective // an `include line whose content was spliced into the stream
	MacroUsage       // a macro use that expanded to zero tokens
)

// Trivia is a run of non-token source text. Trivia text is stored verbatim,
// including the trailing newline of line comments and directive lines, so
// that printing trivia plus tokens reproduces the input.
type Trivia struct {
	Kind TriviaKind
	Text string

	// IncludeDepth mirrors Token.IncludeDepth: zero for trivia of the main
	// file, N for trivia read from a file N `include levels deep.
	IncludeDepth int
}

// MacroUse ties every token produced by one object-like macro expansion back
// to the usage site. The printer emits Raw once per use when macro expansion
// is disabled.
type MacroUse struct {
	Name string // macro name without the backtick
	Raw  string // original usage text, e.g. "`WIDTH"
}

// Token is one lexical token with its leading trivia. Tokens are value
// types and are never mutated after the lexer produces them; renaming
// constructs a fresh token via WithText.
type Token struct {
	Kind Kind
	Text string
	Line int
	Col  int

	// Leading is the trivia between the previous token and this one.
	Leading []Trivia

	// IncludeDepth is zero for tokens of the main file and N for tokens
	// spliced from a file N `include levels deep.
	IncludeDepth int

	// Macro is non-nil for tokens produced by expanding an object-like
	// macro; all tokens of one expansion share the same MacroUse.
	Macro *MacroUse
}

// WithText returns a copy of the token carrying new text. Trivia and
// position are preserved so the printed output keeps the original layout.
func (t Token) WithText(text string) Token {
	t.Text = text
	return t
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%d:%d", t.Kind, t.Text, t.Line, t.Col)
}
