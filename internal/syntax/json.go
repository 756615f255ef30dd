package syntax

import "encoding/json"

type jsonNode struct {
	Kind     string     `json:"kind"`
	Text     string     `json:"text,omitempty"`
	Children []jsonNode `json:"children,omitempty"`
}

// DebugJSON renders a tree as indented JSON for inspection and golden-file
// comparison. Trivia is omitted; token order matches source order.
func DebugJSON(t *Tree) (string, error) {
	root := toJSON(t.Root)
	data, err := json.MarshalIndent(root, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func toJSON(n Node) jsonNode {
	switch n := n.(type) {
	case *Leaf:
		return jsonNode{Kind: "Token", Text: n.Tok.Text}
	case *Group:
		children := []jsonNode{{Kind: "Token", Text: n.Open.Text}}
		for _, c := range n.Children {
			children = append(children, toJSON(c))
		}
		children = append(children, jsonNode{Kind: "Token", Text: n.Close.Text})
		return jsonNode{Kind: "Group", Children: children}
	case *ModuleDecl:
		children := []jsonNode{{Kind: "Token", Text: n.Keyword.Text}}
		if n.Lifetime != nil {
			children = append(children, jsonNode{Kind: "Token", Text: n.Lifetime.Text})
		}
		for _, c := range n.Rest {
			children = append(children, toJSON(c))
		}
		return jsonNode{Kind: "ModuleDecl", Text: n.Name.Text, Children: children}
	case *Instantiation:
		var children []jsonNode
		for _, c := range n.Rest {
			children = append(children, toJSON(c))
		}
		return jsonNode{Kind: "Instantiation", Text: n.Type.Text, Children: children}
	case *ImportItem:
		return jsonNode{Kind: "ImportItem", Text: n.Package.Text + "::" + n.Item.Text}
	case *VirtualInterface:
		return jsonNode{Kind: "VirtualInterface", Text: n.Name.Text}
	case *ScopedName:
		return jsonNode{Kind: "ScopedName", Children: []jsonNode{toJSON(n.Left), toJSON(n.Right)}}
	case *SourceText:
		var children []jsonNode
		for _, c := range n.Items {
			children = append(children, toJSON(c))
		}
		return jsonNode{Kind: "SourceText", Children: children}
	}
	return jsonNode{Kind: "Unknown"}
}
