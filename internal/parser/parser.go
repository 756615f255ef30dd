// Package parser builds the immutable syntax tree consumed by the analysis
// and rewrite layers. It structures only what those layers act on: module,
// interface, program, and package declarations, hierarchical instantiations,
// package import items, virtual interface types, and scoped names. All other
// source text is preserved as leaves and balanced groups.
package parser

import (
	"fmt"

	"github.com/svtools/svpickle/internal/lexer"
	"github.com/svtools/svpickle/internal/syntax"
	"github.com/svtools/svpickle/internal/token"
)

// ParseFile lexes and parses one source file.
func ParseFile(path string, opts lexer.Options) (*syntax.Tree, error) {
	toks, err := lexer.LexFile(path, opts)
	if err != nil {
		return nil, err
	}
	return parseTokens(path, toks)
}

// ParseSource lexes and parses source text under the given path name.
func ParseSource(path, src string, opts lexer.Options) (*syntax.Tree, error) {
	toks, err := lexer.LexSource(path, src, opts)
	if err != nil {
		return nil, err
	}
	return parseTokens(path, toks)
}

func parseTokens(path string, toks []token.Token) (*syntax.Tree, error) {
	p := &parser{path: path, toks: toks}
	root := &syntax.SourceText{Items: p.parseNodes(func(token.Token) bool { return false })}
	if len(p.diags) > 0 {
		return nil, &lexer.DiagnosticError{Diags: p.diags}
	}
	tree := &syntax.Tree{
		Path: path,
		Root: root,
		EOF:  p.cur(),
	}
	tree.Metadata = syntax.ComputeMetadata(root)
	return tree, nil
}

type parser struct {
	path  string
	toks  []token.Token
	pos   int
	diags []lexer.Diagnostic

	// prevLeaf is the text of the most recently consumed plain leaf token,
	// used to keep "extern module" prototypes out of declaration parsing.
	prevLeaf string
}

func (p *parser) cur() token.Token {
	if p.pos >= len(p.toks) {
		return token.Token{Kind: token.EOF}
	}
	return p.toks[p.pos]
}

func (p *parser) peek(n int) token.Token {
	if p.pos+n >= len(p.toks) {
		return token.Token{Kind: token.EOF}
	}
	return p.toks[p.pos+n]
}

func (p *parser) advance() token.Token {
	tok := p.cur()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return tok
}

func (p *parser) atEOF() bool { return p.cur().Kind == token.EOF }

func (p *parser) errorAt(tok token.Token, format string, args ...interface{}) {
	p.diags = append(p.diags, lexer.Diagnostic{
		File:    p.path,
		Line:    tok.Line,
		Col:     tok.Col,
		Message: fmt.Sprintf(format, args...),
	})
}

// parseNodes parses items until the stop predicate matches the current
// token or the stream ends. The itemStart flag tracks whether the current
// position can begin a statement-like item, which gates the instantiation
// heuristic.
func (p *parser) parseNodes(stop func(token.Token) bool) []syntax.Node {
	var items []syntax.Node
	itemStart := true
	for !p.atEOF() && !stop(p.cur()) {
		before := len(items)
		items = p.parseNode(items, itemStart)
		itemStart = false
		if len(items) > before {
			itemStart = startsItem(items)
		}
	}
	return items
}

// startsItem reports whether, after the nodes parsed so far, the next token
// is at a statement-like boundary.
func startsItem(items []syntax.Node) bool {
	switch n := items[len(items)-1].(type) {
	case *syntax.Instantiation, *syntax.ModuleDecl:
		return true
	case *syntax.Group:
		// A conditional or loop header "if (...)" / "for (...)" is followed
		// directly by the item it guards.
		if n.Open.Kind == token.LPAREN && len(items) >= 2 {
			if l, ok := items[len(items)-2].(*syntax.Leaf); ok &&
				(l.Tok.Text == "if" || l.Tok.Text == "for") {
				return true
			}
		}
	case *syntax.Leaf:
		if n.Tok.Kind == token.SEMI || n.Tok.Kind == token.COLON {
			return true
		}
		if boundaryKeyword(n.Tok.Text) {
			return true
		}
		// A block or end label "begin : name" keeps the boundary open.
		if n.Tok.Kind == token.IDENT && len(items) >= 3 {
			if c, ok := items[len(items)-2].(*syntax.Leaf); ok && c.Tok.Kind == token.COLON {
				if k, ok := items[len(items)-3].(*syntax.Leaf); ok && boundaryKeyword(k.Tok.Text) {
					return true
				}
			}
		}
	}
	return false
}

func boundaryKeyword(text string) bool {
	switch text {
	case "begin", "end", "generate", "endgenerate", "else", "fork",
		"join", "join_any", "join_none", "endcase", "endfunction",
		"endtask", "endclass", "endclocking", "endgroup":
		return true
	}
	return false
}

// parseNode appends one or more nodes for the construct at the current
// position.
func (p *parser) parseNode(items []syntax.Node, itemStart bool) []syntax.Node {
	tok := p.cur()
	switch {
	case tok.Kind == token.IDENT && endKeywordFor(tok.Text) != "" && p.prevLeaf != "extern":
		return append(items, p.parseModuleDecl())
	case tok.Kind == token.IDENT && tok.Text == "import" &&
		p.peek(1).Kind == token.IDENT && p.peek(2).Kind == token.SCOPE:
		return p.parseImport(items)
	case tok.Kind == token.IDENT && tok.Text == "virtual":
		if n, ok := p.parseVirtualInterface(); ok {
			return append(items, n)
		}
		return append(items, p.leaf())
	case tok.Kind == token.IDENT && p.peek(1).Kind == token.SCOPE:
		return append(items, p.parseScopedName())
	case itemStart && tok.Kind == token.IDENT && !reserved[tok.Text] && p.looksLikeInstantiation():
		return append(items, p.parseInstantiation())
	case tok.Kind == token.LPAREN || tok.Kind == token.LBRACKET || tok.Kind == token.LBRACE:
		return append(items, p.parseGroup())
	default:
		return append(items, p.leaf())
	}
}

func (p *parser) leaf() syntax.Node {
	tok := p.advance()
	p.prevLeaf = tok.Text
	return &syntax.Leaf{Tok: tok}
}

// parseModuleDecl parses "module name ... endmodule" and its interface /
// package / program / macromodule siblings. Everything between the name and
// the end keyword is parsed as regular nodes; nested declarations of the
// same family are handled by recursion, so the end keyword seen at this
// level always closes this declaration.
func (p *parser) parseModuleDecl() syntax.Node {
	keyword := p.advance()
	p.prevLeaf = keyword.Text
	endKw := endKeywordFor(keyword.Text)

	var lifetime *token.Token
	if t := p.cur(); t.Kind == token.IDENT && (t.Text == "automatic" || t.Text == "static") &&
		p.peek(1).Kind == token.IDENT {
		lt := p.advance()
		lifetime = &lt
	}
	if p.cur().Kind != token.IDENT {
		p.errorAt(p.cur(), "expected a name after '%s'", keyword.Text)
		return &syntax.Leaf{Tok: keyword}
	}
	name := p.advance()
	p.prevLeaf = name.Text

	rest := p.parseNodes(func(t token.Token) bool {
		return t.Kind == token.IDENT && t.Text == endKw
	})
	if p.atEOF() {
		p.errorAt(keyword, "missing '%s' for '%s %s'", endKw, keyword.Text, name.Text)
	} else {
		rest = append(rest, p.leaf()) // the end keyword
		if p.cur().Kind == token.COLON && p.peek(1).Kind == token.IDENT {
			rest = append(rest, p.leaf(), p.leaf()) // ": label"
		}
	}
	return &syntax.ModuleDecl{Keyword: keyword, Lifetime: lifetime, Name: name, Rest: rest}
}

// parseImport parses "import a::*, b::name;". The import keyword, commas,
// and semicolon stay plain leaves; each package item becomes an ImportItem.
func (p *parser) parseImport(items []syntax.Node) []syntax.Node {
	items = append(items, p.leaf()) // import
	for {
		if p.cur().Kind == token.IDENT && p.peek(1).Kind == token.SCOPE {
			pkg := p.advance()
			sep := p.advance()
			item := p.cur()
			if item.Kind == token.IDENT || item.Kind == token.STAR {
				p.advance()
				p.prevLeaf = item.Text
				items = append(items, &syntax.ImportItem{Package: pkg, Sep: sep, Item: item})
			} else {
				p.errorAt(item, "expected an identifier or '*' after '%s::'", pkg.Text)
				items = append(items, &syntax.Leaf{Tok: pkg}, &syntax.Leaf{Tok: sep})
			}
		} else {
			break
		}
		if p.cur().Kind == token.COMMA {
			items = append(items, p.leaf())
			continue
		}
		break
	}
	if p.cur().Kind == token.SEMI {
		items = append(items, p.leaf())
	}
	return items
}

// parseVirtualInterface recognizes "virtual [interface] bus_intf" at a
// variable or port type position. It rejects "virtual function|task|class",
// which are method and class modifiers.
func (p *parser) parseVirtualInterface() (syntax.Node, bool) {
	next := p.peek(1)
	if next.Kind != token.IDENT {
		return nil, false
	}
	switch next.Text {
	case "function", "task", "class":
		return nil, false
	}

	if next.Text == "interface" {
		name := p.peek(2)
		if name.Kind != token.IDENT || reserved[name.Text] {
			return nil, false
		}
		virtual := p.advance()
		intf := p.advance()
		nameTok := p.advance()
		p.prevLeaf = nameTok.Text
		return &syntax.VirtualInterface{Virtual: virtual, Interface: &intf, Name: nameTok}, true
	}

	if reserved[next.Text] {
		return nil, false
	}
	// "virtual bus_intf v_if": the type name must be followed by a
	// declarator identifier, otherwise this is some other use of virtual.
	after := p.peek(2)
	if after.Kind != token.IDENT || reserved[after.Text] {
		return nil, false
	}
	virtual := p.advance()
	nameTok := p.advance()
	p.prevLeaf = nameTok.Text
	return &syntax.VirtualInterface{Virtual: virtual, Interface: nil, Name: nameTok}, true
}

// parseScopedName parses "a::b::c" left-associatively.
func (p *parser) parseScopedName() syntax.Node {
	left := syntax.Node(&syntax.Leaf{Tok: p.advance()})
	for p.cur().Kind == token.SCOPE {
		sep := p.advance()
		right := p.cur()
		if right.Kind != token.IDENT && right.Kind != token.STAR {
			p.errorAt(right, "expected an identifier after '::'")
			return left
		}
		p.advance()
		p.prevLeaf = right.Text
		left = &syntax.ScopedName{Left: left, Sep: sep, Right: &syntax.Leaf{Tok: right}}
	}
	return left
}

// looksLikeInstantiation scans ahead for the shape
// "type [#(...)] instance [ranges] (" without consuming anything.
func (p *parser) looksLikeInstantiation() bool {
	i := 1
	if p.peek(i).Kind == token.HASH {
		if p.peek(i+1).Kind != token.LPAREN {
			return false
		}
		i = p.skipBalanced(i+1, token.LPAREN, token.RPAREN)
		if i < 0 {
			return false
		}
	}
	inst := p.peek(i)
	if inst.Kind != token.IDENT || reserved[inst.Text] {
		return false
	}
	i++
	for p.peek(i).Kind == token.LBRACKET {
		i = p.skipBalanced(i, token.LBRACKET, token.RBRACKET)
		if i < 0 {
			return false
		}
	}
	return p.peek(i).Kind == token.LPAREN
}

// skipBalanced returns the offset just past the group opening at offset i,
// or -1 if the group never closes.
func (p *parser) skipBalanced(i int, open, close token.Kind) int {
	depth := 0
	for {
		tok := p.peek(i)
		switch tok.Kind {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i + 1
			}
		case token.EOF:
			return -1
		}
		i++
	}
}

// parseInstantiation parses "type [#(...)] inst (...), inst2 (...);" with
// the type as the structured token and everything else as regular nodes, so
// nested scoped names in parameter and port lists are still visited.
func (p *parser) parseInstantiation() syntax.Node {
	typ := p.advance()
	p.prevLeaf = typ.Text
	rest := p.parseNodes(func(t token.Token) bool { return t.Kind == token.SEMI })
	if p.cur().Kind == token.SEMI {
		rest = append(rest, p.leaf())
	}
	return &syntax.Instantiation{Type: typ, Rest: rest}
}

func (p *parser) parseGroup() syntax.Node {
	open := p.advance()
	p.prevLeaf = open.Text
	var close token.Kind
	switch open.Kind {
	case token.LPAREN:
		close = token.RPAREN
	case token.LBRACKET:
		close = token.RBRACKET
	default:
		close = token.RBRACE
	}
	children := p.parseNodes(func(t token.Token) bool { return t.Kind == close })
	if p.atEOF() {
		p.errorAt(open, "unbalanced '%s'", open.Text)
		return &syntax.Group{Open: open, Children: children}
	}
	closeTok := p.advance()
	p.prevLeaf = closeTok.Text
	return &syntax.Group{Open: open, Children: children, Close: closeTok}
}

func endKeywordFor(keyword string) string {
	switch keyword {
	case "module", "macromodule":
		return "endmodule"
	case "interface":
		return "endinterface"
	case "package":
		return "endpackage"
	case "program":
		return "endprogram"
	}
	return ""
}
