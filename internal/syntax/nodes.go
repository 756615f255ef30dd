// Package syntax defines the immutable syntax tree the parser produces and
// the rewriter transforms. Only the constructs the rewriter acts on get
// structured node kinds; everything else is preserved as leaves and balanced
// groups so printing a tree reproduces the source text.
package syntax

import "github.com/svtools/svpickle/internal/token"

// Node is the sealed sum type over all tree node kinds.
type Node interface {
	node()
}

// Leaf is a single token.
type Leaf struct {
	Tok token.Token
}

// Group is a balanced (), [] or {} region with its parsed children.
type Group struct {
	Open     token.Token
	Children []Node
	Close    token.Token
}

// ModuleDecl is a module, macromodule, interface, program, or package
// declaration. Name is the header name token; Rest holds everything after
// the name through the matching end keyword, including any end label.
type ModuleDecl struct {
	Keyword  token.Token
	Lifetime *token.Token // optional "automatic" / "static"
	Name     token.Token
	Rest     []Node
}

// Instantiation is a hierarchical instantiation statement,
// "core u_core ( ... );". Type is the instantiated type name; Rest holds
// the parameter assignment, instance list, and terminating semicolon.
type Instantiation struct {
	Type token.Token
	Rest []Node
}

// ImportItem is one item of a package import, "pkg::*" or "pkg::name".
type ImportItem struct {
	Package token.Token
	Sep     token.Token
	Item    token.Token
}

// VirtualInterface is a virtual-interface-typed variable's type portion,
// "virtual [interface] bus_intf". Interface is nil when the optional
// keyword is absent.
type VirtualInterface struct {
	Virtual   token.Token
	Interface *token.Token
	Name      token.Token
}

// ScopedName is "left::right". Left is a *Leaf for a simple identifier or
// a *ScopedName for longer chains; chains associate left.
type ScopedName struct {
	Left  Node
	Sep   token.Token
	Right Node
}

// SourceText is the root node of one translation unit.
type SourceText struct {
	Items []Node
}

func (*Leaf) node()             {}
func (*Group) node()            {}
func (*ModuleDecl) node()       {}
func (*Instantiation) node()    {}
func (*ImportItem) node()       {}
func (*VirtualInterface) node() {}
func (*ScopedName) node()       {}
func (*SourceText) node()       {}

// Tree is one parsed translation unit: immutable after parse. A rewrite
// produces a new Tree sharing every unchanged subtree with the original.
type Tree struct {
	Path     string
	Root     *SourceText
	EOF      token.Token
	Metadata Metadata
}

// Metadata is the surface-syntax symbol summary of one unit: the names its
// declarations introduce and the names its reference sites mention, both in
// source order.
type Metadata struct {
	Declared   []string `json:"declared"`
	Referenced []string `json:"referenced"`
}

// IsReservedScope reports whether a scoped-name left segment is one of the
// language's pseudo-scopes, which are never user symbols.
func IsReservedScope(name string) bool {
	switch name {
	case "$unit", "local", "super", "this":
		return true
	}
	return false
}
