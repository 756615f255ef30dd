package lexer

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/svtools/svpickle/internal/token"
)

func lexOK(t *testing.T, src string, opts Options) []token.Token {
	t.Helper()
	toks, err := LexSource("test.sv", src, opts)
	if err != nil {
		t.Fatalf("lex failed: %v", err)
	}
	return toks
}

func kindsAndTexts(toks []token.Token) []string {
	var out []string
	for _, tok := range toks {
		if tok.Kind == token.EOF {
			continue
		}
		out = append(out, tok.Text)
	}
	return out
}

func TestLexBasicTokens(t *testing.T) {
	toks := lexOK(t, "module top; endmodule", Options{})

	want := []struct {
		kind token.Kind
		text string
	}{
		{token.IDENT, "module"},
		{token.IDENT, "top"},
		{token.SEMI, ";"},
		{token.IDENT, "endmodule"},
		{token.EOF, ""},
	}
	if len(toks) != len(want) {
		t.Fatalf("expected %d tokens, got %d: %v", len(want), len(toks), kindsAndTexts(toks))
	}
	for i, w := range want {
		if toks[i].Kind != w.kind || toks[i].Text != w.text {
			t.Fatalf("token %d: expected (%v, %q), got (%v, %q)",
				i, w.kind, w.text, toks[i].Kind, toks[i].Text)
		}
	}
}

func TestLexLiterals(t *testing.T) {
	cases := []struct {
		src  string
		kind token.Kind
		text string
	}{
		{"42", token.NUMBER, "42"},
		{"3.14", token.NUMBER, "3.14"},
		{"1_000", token.NUMBER, "1_000"},
		{"8'hFF", token.NUMBER, "8'hFF"},
		{"4'b10x1", token.NUMBER, "4'b10x1"},
		{"'0", token.NUMBER, "'0"},
		{"'x", token.NUMBER, "'x"},
		{`"a \"quoted\" string"`, token.STRING, `"a \"quoted\" string"`},
		{"$clog2", token.IDENT, "$clog2"},
		{"_under_score", token.IDENT, "_under_score"},
	}
	for _, c := range cases {
		toks := lexOK(t, c.src, Options{})
		if toks[0].Kind != c.kind || toks[0].Text != c.text {
			t.Errorf("%q: expected (%v, %q), got (%v, %q)",
				c.src, c.kind, c.text, toks[0].Kind, toks[0].Text)
		}
	}
}

func TestLexScopeOperator(t *testing.T) {
	toks := lexOK(t, "my_pkg::my_type x;", Options{})
	if toks[1].Kind != token.SCOPE || toks[1].Text != "::" {
		t.Fatalf("expected SCOPE token, got (%v, %q)", toks[1].Kind, toks[1].Text)
	}
	if toks[0].Text != "my_pkg" || toks[2].Text != "my_type" {
		t.Fatalf("unexpected neighbors: %v", kindsAndTexts(toks))
	}
}

func TestLexPositions(t *testing.T) {
	toks := lexOK(t, "module top;\n  wire x;\n", Options{})
	// "wire" is the first token of line 2, after two spaces.
	var wire token.Token
	for _, tok := range toks {
		if tok.Text == "wire" {
			wire = tok
		}
	}
	if wire.Line != 2 || wire.Col != 3 {
		t.Fatalf("expected wire at 2:3, got %d:%d", wire.Line, wire.Col)
	}
}

func TestLexTriviaAttachment(t *testing.T) {
	toks := lexOK(t, "// header\nmodule top;", Options{})
	if len(toks[0].Leading) != 2 {
		t.Fatalf("expected 2 leading trivia, got %v", toks[0].Leading)
	}
	if toks[0].Leading[0].Kind != token.LineComment || toks[0].Leading[0].Text != "// header" {
		t.Fatalf("unexpected comment trivia: %+v", toks[0].Leading[0])
	}
	if toks[0].Leading[1].Kind != token.Whitespace {
		t.Fatalf("unexpected second trivia: %+v", toks[0].Leading[1])
	}
}

func TestLexEOFCarriesTrailingTrivia(t *testing.T) {
	toks := lexOK(t, "module top; endmodule\n// trailing\n", Options{})
	eof := toks[len(toks)-1]
	if eof.Kind != token.EOF {
		t.Fatalf("expected EOF last, got %v", eof.Kind)
	}
	found := false
	for _, tr := range eof.Leading {
		if tr.Kind == token.LineComment && tr.Text == "// trailing" {
			found = true
		}
	}
	if !found {
		t.Fatalf("trailing comment not attached to EOF: %+v", eof.Leading)
	}
}

func TestDefineExpansion(t *testing.T) {
	src := "`define WIDTH 8\nwire [`WIDTH-1:0] x;\n"
	toks := lexOK(t, src, Options{})

	var expanded token.Token
	for _, tok := range toks {
		if tok.Macro != nil {
			expanded = tok
			break
		}
	}
	if expanded.Macro == nil {
		t.Fatalf("no expanded token found: %v", kindsAndTexts(toks))
	}
	if expanded.Kind != token.NUMBER || expanded.Text != "8" {
		t.Fatalf("expected expansion token (NUMBER, 8), got (%v, %q)", expanded.Kind, expanded.Text)
	}
	if expanded.Macro.Name != "WIDTH" || expanded.Macro.Raw != "`WIDTH" {
		t.Fatalf("unexpected macro use: %+v", expanded.Macro)
	}
}

func TestDefineFromOptions(t *testing.T) {
	toks := lexOK(t, "`WIDTH", Options{Defines: []string{"WIDTH=16"}})
	if toks[0].Kind != token.NUMBER || toks[0].Text != "16" {
		t.Fatalf("expected (NUMBER, 16), got (%v, %q)", toks[0].Kind, toks[0].Text)
	}
}

func TestUnknownMacroPreserved(t *testing.T) {
	toks := lexOK(t, "`SOME_VENDOR_MACRO x;", Options{})
	if toks[0].Kind != token.MACRO || toks[0].Text != "`SOME_VENDOR_MACRO" {
		t.Fatalf("expected MACRO token, got (%v, %q)", toks[0].Kind, toks[0].Text)
	}
}

func TestFunctionLikeMacroNotExpanded(t *testing.T) {
	src := "`define MAX(a,b) ((a)>(b)?(a):(b))\nassign y = `MAX;\n"
	toks := lexOK(t, src, Options{})
	found := false
	for _, tok := range toks {
		if tok.Kind == token.MACRO && tok.Text == "`MAX" {
			found = true
		}
		if tok.Macro != nil {
			t.Fatalf("function-like macro was expanded: %+v", tok)
		}
	}
	if !found {
		t.Fatalf("`MAX usage not preserved: %v", kindsAndTexts(toks))
	}
}

func TestUndef(t *testing.T) {
	src := "`define FOO 1\n`undef FOO\n`FOO\n"
	toks := lexOK(t, src, Options{})
	if toks[0].Kind != token.MACRO {
		t.Fatalf("expected undefined macro use to stay a MACRO token, got %v", toks[0].Kind)
	}
}

func TestInclude(t *testing.T) {
	dir := t.TempDir()
	header := filepath.Join(dir, "defs.svh")
	if err := os.WriteFile(header, []byte("wire included_wire;\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	main := filepath.Join(dir, "top.sv")
	src := "`include \"defs.svh\"\nmodule top; endmodule\n"
	if err := os.WriteFile(main, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	toks, err := LexFile(main, Options{})
	if err != nil {
		t.Fatalf("lex failed: %v", err)
	}

	if toks[0].Text != "wire" || toks[0].IncludeDepth != 1 {
		t.Fatalf("expected spliced token at depth 1, got %q depth %d", toks[0].Text, toks[0].IncludeDepth)
	}
	hasDirective := false
	for _, tr := range toks[0].Leading {
		if tr.Kind == token.IncludeDirective && strings.Contains(tr.Text, "defs.svh") {
			hasDirective = true
		}
	}
	if !hasDirective {
		t.Fatalf("include directive trivia missing: %+v", toks[0].Leading)
	}

	var mod token.Token
	for _, tok := range toks {
		if tok.Text == "module" {
			mod = tok
		}
	}
	if mod.IncludeDepth != 0 {
		t.Fatalf("token after include should be at depth 0, got %d", mod.IncludeDepth)
	}
}

func TestIncludeSearchPath(t *testing.T) {
	incDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(incDir, "pkg.svh"), []byte("typedef int t;\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	srcDir := t.TempDir()
	main := filepath.Join(srcDir, "top.sv")
	if err := os.WriteFile(main, []byte("`include \"pkg.svh\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LexFile(main, Options{}); err == nil {
		t.Fatal("expected missing include error without search path")
	}
	toks, err := LexFile(main, Options{IncludeDirs: []string{incDir}})
	if err != nil {
		t.Fatalf("lex with include dir failed: %v", err)
	}
	if toks[0].Text != "typedef" {
		t.Fatalf("unexpected first token: %q", toks[0].Text)
	}
}

func TestIfdefSkipsUndefined(t *testing.T) {
	src := "`ifdef FPGA\nmodule a; endmodule\n`endif\nmodule b; endmodule\n"

	toks := lexOK(t, src, Options{})
	texts := kindsAndTexts(toks)
	for _, txt := range texts {
		if txt == "a" {
			t.Fatalf("inactive region leaked tokens: %v", texts)
		}
	}

	toks = lexOK(t, src, Options{Defines: []string{"FPGA"}})
	texts = kindsAndTexts(toks)
	if texts[1] != "a" {
		t.Fatalf("defined guard should keep region: %v", texts)
	}
}

func TestIfdefElse(t *testing.T) {
	src := "`ifdef FPGA\nwire a;\n`else\nwire b;\n`endif\n"
	texts := kindsAndTexts(lexOK(t, src, Options{}))
	if len(texts) != 3 || texts[1] != "b" {
		t.Fatalf("expected else branch, got %v", texts)
	}
	texts = kindsAndTexts(lexOK(t, src, Options{Defines: []string{"FPGA"}}))
	if len(texts) != 3 || texts[1] != "a" {
		t.Fatalf("expected then branch, got %v", texts)
	}
}

func TestIfdefNested(t *testing.T) {
	src := "`ifdef A\n`ifdef B\nwire ab;\n`endif\nwire a;\n`endif\n"
	texts := kindsAndTexts(lexOK(t, src, Options{Defines: []string{"A"}}))
	if len(texts) != 3 || texts[1] != "a" {
		t.Fatalf("nested undefined guard leaked: %v", texts)
	}
	texts = kindsAndTexts(lexOK(t, src, Options{Defines: []string{"A", "B"}}))
	if len(texts) != 6 {
		t.Fatalf("expected both regions, got %v", texts)
	}
}

func TestElsif(t *testing.T) {
	src := "`ifdef A\nwire a;\n`elsif B\nwire b;\n`else\nwire c;\n`endif\n"
	texts := kindsAndTexts(lexOK(t, src, Options{Defines: []string{"B"}}))
	if len(texts) != 3 || texts[1] != "b" {
		t.Fatalf("expected elsif branch, got %v", texts)
	}
	texts = kindsAndTexts(lexOK(t, src, Options{}))
	if len(texts) != 3 || texts[1] != "c" {
		t.Fatalf("expected else branch, got %v", texts)
	}
}

func TestDiagnosticFormat(t *testing.T) {
	_, err := LexSource("bad.sv", "wire x = \"oops;\n", Options{})
	if err == nil {
		t.Fatal("expected error for unterminated string")
	}
	var de *DiagnosticError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DiagnosticError, got %T", err)
	}
	if !strings.Contains(err.Error(), "bad.sv:1:10: unterminated string literal") {
		t.Fatalf("unexpected diagnostic: %v", err)
	}
}

func TestUnterminatedConditional(t *testing.T) {
	_, err := LexSource("bad.sv", "`ifdef FOO\nwire x;\n", Options{})
	if err == nil || !strings.Contains(err.Error(), "unterminated `ifdef") {
		t.Fatalf("expected unterminated conditional error, got %v", err)
	}
}
