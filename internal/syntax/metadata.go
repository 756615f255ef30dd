package syntax

import "github.com/svtools/svpickle/internal/token"

// ComputeMetadata walks a tree and collects declared and referenced symbol
// names in source order. Reference collection mirrors the rewriter's five
// reference-site grammars so that dependency edges and renames always agree
// on what counts as a reference.
func ComputeMetadata(root *SourceText) Metadata {
	var md Metadata
	for _, item := range root.Items {
		collectMetadata(item, &md)
	}
	return md
}

func collectMetadata(n Node, md *Metadata) {
	switch n := n.(type) {
	case *Leaf:
	case *Group:
		for _, c := range n.Children {
			collectMetadata(c, md)
		}
	case *ModuleDecl:
		md.Declared = append(md.Declared, n.Name.Text)
		for _, c := range n.Rest {
			collectMetadata(c, md)
		}
	case *Instantiation:
		if n.Type.Kind == token.IDENT {
			md.Referenced = append(md.Referenced, n.Type.Text)
		}
		for _, c := range n.Rest {
			collectMetadata(c, md)
		}
	case *ImportItem:
		md.Referenced = append(md.Referenced, n.Package.Text)
	case *VirtualInterface:
		md.Referenced = append(md.Referenced, n.Name.Text)
	case *ScopedName:
		if left, ok := n.Left.(*Leaf); ok {
			if left.Tok.Kind == token.IDENT && !IsReservedScope(left.Tok.Text) {
				md.Referenced = append(md.Referenced, left.Tok.Text)
			}
		} else {
			collectMetadata(n.Left, md)
		}
		collectMetadata(n.Right, md)
	case *SourceText:
		for _, c := range n.Items {
			collectMetadata(c, md)
		}
	}
}
