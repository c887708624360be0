package xmltree

import "encoding/json"

// JSONOptions controls the shape of Query.ToJSON output.
type JSONOptions struct {
	// IncludeAttributes emits an "attributes" object per element.
	IncludeAttributes bool
	// IncludeMetadata emits "path", "depth" and "index" per element.
	IncludeMetadata bool
	// SimplifyLeaves renders an attribute-less leaf element as its bare
	// text value instead of an object.
	SimplifyLeaves bool
}

// ToJSON renders the members as a JSON array.
func (q *Query) ToJSON(opts JSONOptions) ([]byte, error) {
	out := make([]any, 0, len(q.nodes))
	for _, n := range q.nodes {
		out = append(out, jsonValue(n, opts))
	}
	return json.Marshal(out)
}

func jsonValue(n *Node, opts JSONOptions) any {
	if opts.SimplifyLeaves && n.IsLeaf() && len(n.Attrs) == 0 && !opts.IncludeMetadata {
		if v, ok := n.NumericValue(); ok {
			return v
		}
		return n.Text
	}

	obj := map[string]any{"name": n.QualifiedName()}
	if n.Text != "" {
		obj["text"] = n.Text
	}
	if opts.IncludeAttributes && len(n.Attrs) > 0 {
		attrs := make(map[string]string, len(n.Attrs))
		for _, a := range n.Attrs {
			attrs[a.Name] = a.Value
		}
		obj["attributes"] = attrs
	}
	if opts.IncludeMetadata {
		obj["path"] = n.Path()
		obj["depth"] = n.Depth()
		obj["index"] = n.IndexInParent()
	}
	if len(n.Children) > 0 {
		children := make([]any, 0, len(n.Children))
		for _, c := range n.Children {
			children = append(children, jsonValue(c, opts))
		}
		obj["children"] = children
	}
	return obj
}
