package xmltree

import (
	"strconv"
	"strings"
)

// Attr is a single element attribute. Attribute order is preserved and
// names are unique per element; the name may carry a namespace prefix.
type Attr struct {
	Name  string
	Value string
}

// Node is one XML element: local name, optional namespace prefix/URI,
// ordered attributes, optional xmlns declarations, direct text and an
// ordered child list. Parent is a back-reference only; a Node without a
// parent is a tree root.
//
// depth and path are derived values kept consistent synchronously: every
// structural mutation recomputes them for the whole affected subtree
// before returning. A detached subtree keeps its stale depth/path until
// it is reattached.
type Node struct {
	Name         string
	Prefix       string
	NamespaceURI string
	Attrs        []Attr
	// Namespaces holds xmlns declarations carried by this element.
	// The empty prefix is the default namespace. Nil when the element
	// declares nothing.
	Namespaces map[string]string
	Text       string
	Children   []*Node
	Parent     *Node

	depth int
	path  string
}

// ChildSpec describes a child element for CreateChild.
type ChildSpec struct {
	Name         string
	Prefix       string
	NamespaceURI string
	Attrs        []Attr
	Text         string
}

// NodeUpdate is a partial update merged into a node by Update and
// Query.UpdateElements. Nil fields are left untouched; Attrs entries
// overwrite same-named attributes and append new ones.
type NodeUpdate struct {
	Name  *string
	Text  *string
	Attrs []Attr
}

// NewElement returns a parentless element with the given qualified name
// ("local" or "prefix:local").
func NewElement(qualified string) *Node {
	n := &Node{}
	if i := strings.IndexByte(qualified, ':'); i >= 0 {
		n.Prefix, n.Name = qualified[:i], qualified[i+1:]
	} else {
		n.Name = qualified
	}
	n.refresh()
	return n
}

// LocalName returns the tag name without its prefix.
func (n *Node) LocalName() string { return n.Name }

// QualifiedName returns "prefix:local", or just the local name when the
// element carries no prefix.
func (n *Node) QualifiedName() string {
	if n.Prefix == "" {
		return n.Name
	}
	return n.Prefix + ":" + n.Name
}

// Depth returns the number of ancestors; a root has depth 0.
func (n *Node) Depth() int { return n.depth }

// Path returns the qualified names from the root down to this node,
// joined by "/".
func (n *Node) Path() string { return n.path }

// IndexInParent returns this node's position among its parent's children,
// or -1 for a root.
func (n *Node) IndexInParent() int {
	if n.Parent == nil {
		return -1
	}
	for i, c := range n.Parent.Children {
		if c == n {
			return i
		}
	}
	return -1
}

// Siblings returns the parent's other children in document order.
func (n *Node) Siblings() []*Node {
	if n.Parent == nil {
		return nil
	}
	out := make([]*Node, 0, len(n.Parent.Children)-1)
	for _, c := range n.Parent.Children {
		if c != n {
			out = append(out, c)
		}
	}
	return out
}

// Root walks the parent chain to the tree root.
func (n *Node) Root() *Node {
	cur := n
	for cur.Parent != nil {
		cur = cur.Parent
	}
	return cur
}

func (n *Node) HasChildren() bool { return len(n.Children) > 0 }

func (n *Node) IsLeaf() bool { return len(n.Children) == 0 }

// NumericValue parses the node's text as a float. The second return is
// false when the text is empty or unparsable.
func (n *Node) NumericValue() (float64, bool) {
	s := strings.TrimSpace(n.Text)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// GetAttribute returns the attribute value and whether it is present.
func (n *Node) GetAttribute(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// HasAttribute reports whether the attribute is present.
func (n *Node) HasAttribute(name string) bool {
	_, ok := n.GetAttribute(name)
	return ok
}

// SetAttribute sets or replaces an attribute, preserving the position of
// an existing attribute with the same name.
func (n *Node) SetAttribute(name, value string) {
	for i := range n.Attrs {
		if n.Attrs[i].Name == name {
			n.Attrs[i].Value = value
			return
		}
	}
	n.Attrs = append(n.Attrs, Attr{Name: name, Value: value})
}

// RemoveAttribute removes the named attribute, reporting whether it was
// present.
func (n *Node) RemoveAttribute(name string) bool {
	for i := range n.Attrs {
		if n.Attrs[i].Name == name {
			n.Attrs = append(n.Attrs[:i], n.Attrs[i+1:]...)
			return true
		}
	}
	return false
}

// SetText replaces the node's direct text.
func (n *Node) SetText(value string) { n.Text = value }

// SetNamespaceDeclaration records an xmlns declaration on this element.
// The empty prefix declares the default namespace.
func (n *Node) SetNamespaceDeclaration(prefix, uri string) {
	if n.Namespaces == nil {
		n.Namespaces = map[string]string{}
	}
	n.Namespaces[prefix] = uri
}

// ResolvePrefix looks up a namespace prefix against this element's xmlns
// declarations and then up the ancestor chain.
func (n *Node) ResolvePrefix(prefix string) (string, bool) {
	for cur := n; cur != nil; cur = cur.Parent {
		if uri, ok := cur.Namespaces[prefix]; ok {
			return uri, true
		}
	}
	return "", false
}

// CreateChild builds a child element from spec, appends it and returns it.
// It always succeeds.
func (n *Node) CreateChild(spec ChildSpec) *Node {
	child := &Node{
		Name:         spec.Name,
		Prefix:       spec.Prefix,
		NamespaceURI: spec.NamespaceURI,
		Text:         spec.Text,
	}
	if len(spec.Attrs) > 0 {
		child.Attrs = append([]Attr(nil), spec.Attrs...)
	}
	n.AddChild(child)
	return child
}

// AddChild appends an existing node as the last child. A node already
// attached elsewhere is detached from its old parent first, so the
// single-parent invariant holds. Adopting the node itself or one of its
// own ancestors would create a cycle and is a no-op.
func (n *Node) AddChild(child *Node) {
	if child == nil || child == n {
		return
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if p == child {
			return
		}
	}
	if child.Parent != nil {
		child.Parent.RemoveChild(child)
	}
	child.Parent = n
	n.Children = append(n.Children, child)
	child.refresh()
}

// RemoveChild detaches child, reporting whether it was a current child.
// Removing a node that is not (or no longer) a child is a no-op returning
// false, so bulk operations never abort mid-batch.
func (n *Node) RemoveChild(child *Node) bool {
	for i, c := range n.Children {
		if c == child {
			return n.RemoveChildAt(i)
		}
	}
	return false
}

// RemoveChildAt detaches the child at index i, reporting whether the
// index was valid.
func (n *Node) RemoveChildAt(i int) bool {
	if i < 0 || i >= len(n.Children) {
		return false
	}
	child := n.Children[i]
	n.Children = append(n.Children[:i], n.Children[i+1:]...)
	child.Parent = nil
	return true
}

// Remove detaches this node from its parent, reporting whether it was
// attached. The detached node remains a usable subtree root.
func (n *Node) Remove() bool {
	if n.Parent == nil {
		return false
	}
	return n.Parent.RemoveChild(n)
}

// ReplaceChild swaps new into old's position. It fails (returning false,
// mutating nothing) when old is not a current child. Replacing a child
// with itself is a successful no-op; new may be a sibling of old, in
// which case it moves into old's slot.
func (n *Node) ReplaceChild(old, new *Node) bool {
	if new == nil {
		return false
	}
	if n.indexOfChild(old) < 0 {
		return false
	}
	if old == new {
		return true
	}
	// Detach new before resolving old's slot: when new is a sibling its
	// removal shifts the child list.
	if new.Parent != nil {
		new.Parent.RemoveChild(new)
	}
	i := n.indexOfChild(old)
	if i < 0 {
		return false
	}
	n.Children[i] = new
	new.Parent = n
	old.Parent = nil
	new.refresh()
	return true
}

func (n *Node) indexOfChild(child *Node) int {
	for i, c := range n.Children {
		if c == child {
			return i
		}
	}
	return -1
}

// Update merges a partial update in place. A name change recomputes the
// path of the whole subtree.
func (n *Node) Update(u NodeUpdate) {
	renamed := false
	if u.Name != nil && *u.Name != n.QualifiedName() {
		if i := strings.IndexByte(*u.Name, ':'); i >= 0 {
			n.Prefix, n.Name = (*u.Name)[:i], (*u.Name)[i+1:]
		} else {
			n.Prefix, n.Name = "", *u.Name
		}
		renamed = true
	}
	if u.Text != nil {
		n.Text = *u.Text
	}
	for _, a := range u.Attrs {
		n.SetAttribute(a.Name, a.Value)
	}
	if renamed {
		n.refresh()
	}
}

// Clone returns a deep, parentless copy sharing no mutable state with the
// original. The copy is its own root: depth 0, path starting at itself.
func (n *Node) Clone() *Node {
	out := &Node{
		Name:         n.Name,
		Prefix:       n.Prefix,
		NamespaceURI: n.NamespaceURI,
		Text:         n.Text,
	}
	if len(n.Attrs) > 0 {
		out.Attrs = append([]Attr(nil), n.Attrs...)
	}
	if n.Namespaces != nil {
		out.Namespaces = make(map[string]string, len(n.Namespaces))
		for k, v := range n.Namespaces {
			out.Namespaces[k] = v
		}
	}
	for _, c := range n.Children {
		cc := c.Clone()
		cc.Parent = out
		out.Children = append(out.Children, cc)
	}
	out.refresh()
	return out
}

// Walk visits the subtree rooted at n in document order (depth-first
// pre-order). Returning false from fn prunes that node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// descendants appends the subtree below n (excluding n) in document order.
func (n *Node) descendants(out []*Node) []*Node {
	for _, c := range n.Children {
		out = append(out, c)
		out = c.descendants(out)
	}
	return out
}

// refresh recomputes depth and path for n and everything below it from
// n's current parent link.
func (n *Node) refresh() {
	if n.Parent == nil {
		n.depth = 0
		n.path = n.QualifiedName()
	} else {
		n.depth = n.Parent.depth + 1
		n.path = n.Parent.path + "/" + n.QualifiedName()
	}
	for _, c := range n.Children {
		c.refresh()
	}
}
