package syntax

import (
	"strings"

	"github.com/svtools/svpickle/internal/token"
)

// PrintOptions control how a tree is rendered back to source text.
type PrintOptions struct {
	// IncludeDirectives emits preserved directive lines (`define,
	// `timescale, non-expanded `include lines, ...).
	IncludeDirectives bool

	// ExpandIncludes emits the tokens spliced from included files; when
	// false the original `include line is emitted instead.
	ExpandIncludes bool

	// ExpandMacros emits macro-expansion tokens; when false the original
	// usage text (`NAME) is emitted once per use.
	ExpandMacros bool

	// SquashNewlines collapses blank-line runs to a single newline.
	SquashNewlines bool

	// IncludeComments emits comment trivia.
	IncludeComments bool
}

// IdentityOptions print a tree so that an unmodified parse reproduces its
// input text byte-for-byte.
func IdentityOptions() PrintOptions {
	return PrintOptions{
		IncludeDirectives: true,
		ExpandIncludes:    false,
		ExpandMacros:      false,
		SquashNewlines:    false,
		IncludeComments:   true,
	}
}

// Print renders a tree to source text under the given options.
func Print(t *Tree, opts PrintOptions) string {
	p := &printer{opts: opts}
	p.printNode(t.Root)
	p.emitTrivia(t.EOF.Leading)
	return p.b.String()
}

type printer struct {
	opts      PrintOptions
	b         strings.Builder
	lastUse *token.MacroUse

	// blankLine is true while the output ends with a newline followed by
	// nothing but spaces and tabs.
	blankLine bool
}

func (p *printer) printNode(n Node) {
	switch n := n.(type) {
	case *Leaf:
		p.emitToken(n.Tok)
	case *Group:
		p.emitToken(n.Open)
		for _, c := range n.Children {
			p.printNode(c)
		}
		p.emitToken(n.Close)
	case *ModuleDecl:
		p.emitToken(n.Keyword)
		if n.Lifetime != nil {
			p.emitToken(*n.Lifetime)
		}
		p.emitToken(n.Name)
		for _, c := range n.Rest {
			p.printNode(c)
		}
	case *Instantiation:
		p.emitToken(n.Type)
		for _, c := range n.Rest {
			p.printNode(c)
		}
	case *ImportItem:
		p.emitToken(n.Package)
		p.emitToken(n.Sep)
		p.emitToken(n.Item)
	case *VirtualInterface:
		p.emitToken(n.Virtual)
		if n.Interface != nil {
			p.emitToken(*n.Interface)
		}
		p.emitToken(n.Name)
	case *ScopedName:
		p.printNode(n.Left)
		p.emitToken(n.Sep)
		p.printNode(n.Right)
	case *SourceText:
		for _, c := range n.Items {
			p.printNode(c)
		}
	}
}

func (p *printer) emitToken(tok token.Token) {
	if !p.opts.ExpandIncludes && tok.IncludeDepth > 0 {
		// A spliced token can still carry depth-zero trivia from the
		// including file, such as the `include line itself. emitTrivia
		// filters out the rest.
		p.emitTrivia(tok.Leading)
		return
	}

	if !p.opts.ExpandMacros && tok.Macro != nil {
		if tok.Macro == p.lastUse {
			return
		}
		p.lastUse = tok.Macro
		p.emitTrivia(tok.Leading)
		p.write(tok.Macro.Raw)
		return
	}

	p.lastUse = nil
	p.emitTrivia(tok.Leading)
	p.write(tok.Text)
}

func (p *printer) emitTrivia(trivia []token.Trivia) {
	for _, tr := range trivia {
		if !p.opts.ExpandIncludes && tr.IncludeDepth > 0 {
			continue
		}
		switch tr.Kind {
		case token.Whitespace:
			if p.opts.SquashNewlines {
				p.writeSquashed(tr.Text)
			} else {
				p.write(tr.Text)
			}
		case token.LineComment, token.BlockComment:
			if p.opts.IncludeComments {
				p.write(tr.Text)
			}
		case token.Directive:
			if p.opts.IncludeDirectives {
				p.write(tr.Text)
			}
		case token.IncludeDirective:
			if p.opts.IncludeDirectives && !p.opts.ExpandIncludes {
				p.write(tr.Text)
			}
		case token.MacroUsage:
			if !p.opts.ExpandMacros {
				p.write(tr.Text)
			}
		}
	}
}

func (p *printer) write(s string) {
	if s == "" {
		return
	}
	p.b.WriteString(s)
	for i := len(s) - 1; i >= 0; i-- {
		c := s[i]
		if c == ' ' || c == '\t' {
			continue
		}
		p.blankLine = c == '\n'
		return
	}
}

// writeSquashed copies whitespace while dropping newlines that would make a
// second blank line in a row. Spaces and tabs do not end a blank line.
func (p *printer) writeSquashed(s string) {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\n' && p.blankLine:
			continue
		case c == '\n':
			p.blankLine = true
		case c != ' ' && c != '\t':
			p.blankLine = false
		}
		p.b.WriteByte(c)
	}
}
