package syntax_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/svtools/svpickle/internal/lexer"
	"github.com/svtools/svpickle/internal/parser"
	"github.com/svtools/svpickle/internal/syntax"
)

func parse(t *testing.T, src string) *syntax.Tree {
	t.Helper()
	tree, err := parser.ParseSource("test.sv", src, lexer.Options{})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	return tree
}

func TestPrintIdentity(t *testing.T) {
	sources := []string{
		"module top;\n  wire x;\nendmodule\n",

		"// copyright header\n\n`timescale 1ns/1ps\n\nmodule alu #(\n" +
			"  parameter WIDTH = 32\n) (\n  input  logic [WIDTH-1:0] a, b,\n" +
			"  output logic [WIDTH-1:0] y\n);\n  /* pick one */\n" +
			"  assign y = a + b;\nendmodule : alu\n",

		"package my_pkg;\n  typedef logic [7:0] byte_t;\n  localparam byte_t INIT = 8'hA5;\nendpackage\n",

		"import my_pkg::*;\n\nmodule top;\n  my_pkg::byte_t v = 'x;\n" +
			"  fifo #(.DEPTH(4)) u_fifo (.clk, .q());\nendmodule\n",

		"`define WIDTH 8\nmodule top;\n  wire [`WIDTH-1:0] bus;\nendmodule\n",

		"module weird;\n  initial $display(\"esc \\\"q\\\" end\");\nendmodule\n",
	}

	for _, src := range sources {
		tree := parse(t, src)
		got := syntax.Print(tree, syntax.IdentityOptions())
		if got != src {
			t.Errorf("round trip changed the source.\ninput:\n%s\noutput:\n%s", src, got)
		}
	}
}

func TestPrintIdentityWithInclude(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "defs.svh"), []byte("`define ANSWER 42\nwire included_wire;\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	src := "// top\n`include \"defs.svh\"\nmodule top; endmodule\n"
	main := filepath.Join(dir, "top.sv")
	if err := os.WriteFile(main, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	tree, err := parser.ParseFile(main, lexer.Options{})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	got := syntax.Print(tree, syntax.IdentityOptions())
	if got != src {
		t.Fatalf("round trip changed the source.\ninput:\n%s\noutput:\n%s", src, got)
	}
}

func TestPrintIdentityConsecutiveIncludes(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"a.svh": "wire a_wire;\n",
		"b.svh": "wire b_wire;\n",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	src := "`include \"a.svh\"\n`include \"b.svh\"\nmodule top; endmodule\n"
	main := filepath.Join(dir, "top.sv")
	if err := os.WriteFile(main, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	tree, err := parser.ParseFile(main, lexer.Options{})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	got := syntax.Print(tree, syntax.IdentityOptions())
	if got != src {
		t.Fatalf("round trip changed the source.\ninput:\n%s\noutput:\n%s", src, got)
	}
}

func TestPrintExpandIncludes(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "defs.svh"), []byte("wire included_wire;\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	main := filepath.Join(dir, "top.sv")
	src := "`include \"defs.svh\"\nmodule top; endmodule\n"
	if err := os.WriteFile(main, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	tree, err := parser.ParseFile(main, lexer.Options{})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	opts := syntax.IdentityOptions()
	opts.ExpandIncludes = true
	got := syntax.Print(tree, opts)

	if strings.Contains(got, "`include") {
		t.Fatalf("include line survived expansion:\n%s", got)
	}
	if !strings.Contains(got, "included_wire") {
		t.Fatalf("spliced content missing:\n%s", got)
	}
}

func TestPrintStripComments(t *testing.T) {
	src := "// header\nmodule top;\n  /* note */ wire x;\nendmodule\n"
	tree := parse(t, src)
	opts := syntax.IdentityOptions()
	opts.IncludeComments = false
	got := syntax.Print(tree, opts)

	if strings.Contains(got, "header") || strings.Contains(got, "note") {
		t.Fatalf("comments survived stripping:\n%s", got)
	}
	if !strings.Contains(got, "wire x;") {
		t.Fatalf("code lost while stripping comments:\n%s", got)
	}
}

func TestPrintSquashNewlines(t *testing.T) {
	src := "module a; endmodule\n\n\n\nmodule b; endmodule\n"
	tree := parse(t, src)
	opts := syntax.IdentityOptions()
	opts.SquashNewlines = true
	got := syntax.Print(tree, opts)

	want := "module a; endmodule\nmodule b; endmodule\n"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestPrintSquashWhitespaceOnlyLines(t *testing.T) {
	src := "module a; endmodule\n  \t\nmodule b; endmodule\n"
	tree := parse(t, src)
	opts := syntax.IdentityOptions()
	opts.SquashNewlines = true
	got := syntax.Print(tree, opts)

	if strings.Count(got, "\n") != 2 {
		t.Fatalf("whitespace-only line survived squashing: %q", got)
	}
}

func TestPrintMacroRawVsExpanded(t *testing.T) {
	src := "`define WIDTH 8\nwire [`WIDTH-1:0] bus;\n"
	tree := parse(t, src)

	raw := syntax.Print(tree, syntax.IdentityOptions())
	if !strings.Contains(raw, "[`WIDTH-1:0]") {
		t.Fatalf("macro usage not preserved:\n%s", raw)
	}

	opts := syntax.IdentityOptions()
	opts.ExpandMacros = true
	expanded := syntax.Print(tree, opts)
	if !strings.Contains(expanded, "[8-1:0]") {
		t.Fatalf("macro not expanded:\n%s", expanded)
	}
}

func TestPrintEmptyMacroPreserved(t *testing.T) {
	src := "`define NOTHING\nmodule top;\n  `NOTHING\n  wire x;\nendmodule\n"
	tree := parse(t, src)
	got := syntax.Print(tree, syntax.IdentityOptions())
	if got != src {
		t.Fatalf("empty macro usage lost.\ninput:\n%s\noutput:\n%s", src, got)
	}
}

func TestPrintWithoutDirectives(t *testing.T) {
	src := "`timescale 1ns/1ps\nmodule top; endmodule\n"
	tree := parse(t, src)
	opts := syntax.IdentityOptions()
	opts.IncludeDirectives = false
	got := syntax.Print(tree, opts)
	if strings.Contains(got, "`timescale") {
		t.Fatalf("directive survived:\n%s", got)
	}
}

func TestConditionalsResolvedAtParse(t *testing.T) {
	src := "`ifdef FPGA\nwire a;\n`else\nwire b;\n`endif\n"
	tree := parse(t, src)
	got := syntax.Print(tree, syntax.IdentityOptions())
	if strings.Contains(got, "`ifdef") || strings.Contains(got, "wire a") {
		t.Fatalf("dead branch or directive survived:\n%s", got)
	}
	if !strings.Contains(got, "wire b;") {
		t.Fatalf("live branch missing:\n%s", got)
	}
}
