// Package rewrite renames declared design symbols and their references
// across syntax trees. One Rewriter carries one rename campaign: the map is
// built from every tree's declarations first, then applied to each tree, so
// cross-file references resolve through the same map the declaring file
// populated.
package rewrite

import (
	"github.com/svtools/svpickle/internal/syntax"
	"github.com/svtools/svpickle/internal/token"
)

// Rewriter accumulates a rename map and applies it to trees. It is owned by
// a single campaign; the counters are plain integers and callers that
// rewrite from multiple goroutines must serialize access themselves.
type Rewriter struct {
	prefix   string
	suffix   string
	excludes map[string]struct{}
	renames  map[string]string

	declRenamed uint64
	refRenamed  uint64
}

func New() *Rewriter {
	return &Rewriter{
		excludes: make(map[string]struct{}),
		renames:  make(map[string]string),
	}
}

// Reset clears the rename map and zeroes both counters, starting an
// independent campaign. Prefix, suffix, and excludes are kept.
func (r *Rewriter) Reset() {
	r.renames = make(map[string]string)
	r.declRenamed = 0
	r.refRenamed = 0
}

func (r *Rewriter) SetPrefix(prefix string) { r.prefix = prefix }
func (r *Rewriter) SetSuffix(suffix string) { r.suffix = suffix }

func (r *Rewriter) SetExcludes(names []string) {
	r.excludes = make(map[string]struct{}, len(names))
	for _, n := range names {
		r.excludes[n] = struct{}{}
	}
}

// RenamedDeclarations returns the number of declaration sites renamed since
// the last Reset.
func (r *Rewriter) RenamedDeclarations() uint64 { return r.declRenamed }

// RenamedReferences returns the number of reference sites renamed since the
// last Reset.
func (r *Rewriter) RenamedReferences() uint64 { return r.refRenamed }

// RegisterDeclarations adds rename entries for every symbol the tree
// declares, except excluded names. A no-op when both prefix and suffix are
// empty. Call once per tree, for every tree of the campaign, before any
// Rewrite call.
func (r *Rewriter) RegisterDeclarations(t *syntax.Tree) {
	if r.prefix == "" && r.suffix == "" {
		return
	}
	seen := make(map[string]struct{})
	for _, name := range t.Metadata.Declared {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if _, excluded := r.excludes[name]; excluded {
			continue
		}
		r.renames[name] = r.prefix + name + r.suffix
	}
}

func (r *Rewriter) mapped(name string) (string, bool) {
	newName, ok := r.renames[name]
	return newName, ok
}

// Rewrite applies the rename map to one tree, producing a new tree. Only
// nodes on the path from a renamed token to the root are rebuilt; every
// other subtree is shared with the input. With an empty map the input tree
// is returned as is.
func (r *Rewriter) Rewrite(t *syntax.Tree) *syntax.Tree {
	if len(r.renames) == 0 {
		return t
	}
	items, changed := r.rewriteNodes(t.Root.Items)
	if !changed {
		return t
	}
	root := &syntax.SourceText{Items: items}
	return &syntax.Tree{
		Path:     t.Path,
		Root:     root,
		EOF:      t.EOF,
		Metadata: syntax.ComputeMetadata(root),
	}
}

// rewriteNodes rewrites a child slice, copying it only when some child
// actually changed.
func (r *Rewriter) rewriteNodes(nodes []syntax.Node) ([]syntax.Node, bool) {
	var out []syntax.Node
	for i, n := range nodes {
		rewritten, changed := r.rewriteNode(n)
		if changed && out == nil {
			out = make([]syntax.Node, len(nodes))
			copy(out, nodes[:i])
		}
		if out != nil {
			out[i] = rewritten
		}
	}
	if out == nil {
		return nodes, false
	}
	return out, true
}

func (r *Rewriter) rewriteNode(n syntax.Node) (syntax.Node, bool) {
	switch n := n.(type) {
	case *syntax.Leaf:
		return n, false

	case *syntax.Group:
		children, changed := r.rewriteNodes(n.Children)
		if !changed {
			return n, false
		}
		return &syntax.Group{Open: n.Open, Children: children, Close: n.Close}, true

	case *syntax.ModuleDecl:
		// e.g. "module top;" -> "module p_top_s;". A match on the header
		// does not stop the walk: nested occurrences are still visited.
		rest, restChanged := r.rewriteNodes(n.Rest)
		name := n.Name
		nameChanged := false
		if newName, ok := r.mapped(n.Name.Text); ok {
			name = n.Name.WithText(newName)
			nameChanged = true
			r.declRenamed++
		}
		if !restChanged && !nameChanged {
			return n, false
		}
		return &syntax.ModuleDecl{Keyword: n.Keyword, Lifetime: n.Lifetime, Name: name, Rest: rest}, true

	case *syntax.Instantiation:
		// e.g. "core u_core();" -> "p_core_s u_core();". Only plain
		// identifier types participate; macro-born types never match.
		rest, restChanged := r.rewriteNodes(n.Rest)
		typ := n.Type
		typChanged := false
		if n.Type.Kind == token.IDENT {
			if newName, ok := r.mapped(n.Type.Text); ok {
				typ = n.Type.WithText(newName)
				typChanged = true
				r.refRenamed++
			}
		}
		if !restChanged && !typChanged {
			return n, false
		}
		return &syntax.Instantiation{Type: typ, Rest: rest}, true

	case *syntax.ImportItem:
		// e.g. "import common_pkg::*;" -> "import p_common_pkg_s::*;".
		if newName, ok := r.mapped(n.Package.Text); ok {
			r.refRenamed++
			return &syntax.ImportItem{
				Package: n.Package.WithText(newName),
				Sep:     n.Sep,
				Item:    n.Item,
			}, true
		}
		return n, false

	case *syntax.VirtualInterface:
		// e.g. "virtual bus_intf v_if;" -> "virtual p_bus_intf_s v_if;".
		if newName, ok := r.mapped(n.Name.Text); ok {
			r.refRenamed++
			return &syntax.VirtualInterface{
				Virtual:   n.Virtual,
				Interface: n.Interface,
				Name:      n.Name.WithText(newName),
			}, true
		}
		return n, false

	case *syntax.ScopedName:
		// e.g. "common_pkg::state_t" -> "p_common_pkg_s::state_t". Only a
		// simple-identifier left segment is a rename site, and the
		// language pseudo-scopes never are.
		left := n.Left
		leftChanged := false
		if leaf, ok := n.Left.(*syntax.Leaf); ok {
			if leaf.Tok.Kind == token.IDENT && !syntax.IsReservedScope(leaf.Tok.Text) {
				if newName, ok := r.mapped(leaf.Tok.Text); ok {
					left = &syntax.Leaf{Tok: leaf.Tok.WithText(newName)}
					leftChanged = true
					r.refRenamed++
				}
			}
		} else {
			left, leftChanged = r.rewriteNode(n.Left)
		}
		right, rightChanged := r.rewriteNode(n.Right)
		if !leftChanged && !rightChanged {
			return n, false
		}
		return &syntax.ScopedName{Left: left, Sep: n.Sep, Right: right}, true

	case *syntax.SourceText:
		items, changed := r.rewriteNodes(n.Items)
		if !changed {
			return n, false
		}
		return &syntax.SourceText{Items: items}, true
	}
	return n, false
}
