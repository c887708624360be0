package xmltree

import (
	"path"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Query is an ordered view over zero or more tree nodes. Members are the
// tree's own nodes, so mutating a member mutates the tree. Navigation and
// filtering return a fresh Query; bulk mutations apply eagerly in member
// order. Every operation tolerates an empty query: aggregates return
// identity values and nothing ever panics.
type Query struct {
	nodes []*Node
}

// NewQuery wraps the given nodes. Nil entries are dropped.
func NewQuery(nodes ...*Node) *Query {
	out := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		if n != nil {
			out = append(out, n)
		}
	}
	return &Query{nodes: out}
}

// Query returns a single-member query rooted at this node.
func (n *Node) Query() *Query { return NewQuery(n) }

// Nodes returns the member list. The slice is a copy; the nodes are not.
func (q *Query) Nodes() []*Node { return append([]*Node(nil), q.nodes...) }

// Count returns the number of members.
func (q *Query) Count() int { return len(q.nodes) }

// First returns the first member or nil.
func (q *Query) First() *Node {
	if len(q.nodes) == 0 {
		return nil
	}
	return q.nodes[0]
}

// matchName tests a node against a qualified-name pattern: exact
// qualified name, "prefix:*" or "*".
func matchName(n *Node, pattern string) bool {
	switch {
	case pattern == "*":
		return true
	case strings.HasSuffix(pattern, ":*"):
		return n.Prefix == pattern[:len(pattern)-2]
	default:
		return n.QualifiedName() == pattern
	}
}

// Find returns descendants, at any depth, matching the qualified-name
// pattern ("item", "ns:item", "ns:*" or "*").
func (q *Query) Find(pattern string) *Query {
	var out []*Node
	for _, n := range q.nodes {
		for _, d := range n.descendants(nil) {
			if matchName(d, pattern) {
				out = append(out, d)
			}
		}
	}
	return &Query{nodes: out}
}

// Children returns the direct children of every member, in order.
func (q *Query) Children() *Query {
	var out []*Node
	for _, n := range q.nodes {
		out = append(out, n.Children...)
	}
	return &Query{nodes: out}
}

// ChildrenNamed returns direct children matching the name pattern.
func (q *Query) ChildrenNamed(pattern string) *Query {
	var out []*Node
	for _, n := range q.nodes {
		for _, c := range n.Children {
			if matchName(c, pattern) {
				out = append(out, c)
			}
		}
	}
	return &Query{nodes: out}
}

// Parent returns each member's parent, deduplicated, in member order.
func (q *Query) Parent() *Query {
	var out []*Node
	seen := map[*Node]bool{}
	for _, n := range q.nodes {
		if p := n.Parent; p != nil && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return &Query{nodes: out}
}

// Ancestors returns each member's ancestor chain, nearest first,
// deduplicated across members.
func (q *Query) Ancestors() *Query {
	var out []*Node
	seen := map[*Node]bool{}
	for _, n := range q.nodes {
		for p := n.Parent; p != nil; p = p.Parent {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return &Query{nodes: out}
}

// Descendants returns every node below each member in document order.
func (q *Query) Descendants() *Query {
	var out []*Node
	for _, n := range q.nodes {
		out = n.descendants(out)
	}
	return &Query{nodes: out}
}

// Namespace keeps members whose namespace prefix equals prefix.
func (q *Query) Namespace(prefix string) *Query {
	return q.Where(func(n *Node) bool { return n.Prefix == prefix })
}

// Where keeps members satisfying pred.
func (q *Query) Where(pred func(*Node) bool) *Query {
	var out []*Node
	for _, n := range q.nodes {
		if pred(n) {
			out = append(out, n)
		}
	}
	return &Query{nodes: out}
}

// WhereAttribute keeps members whose attribute equals value.
func (q *Query) WhereAttribute(name, value string) *Query {
	return q.Where(func(n *Node) bool {
		v, ok := n.GetAttribute(name)
		return ok && v == value
	})
}

// WhereAttributePredicate keeps members whose attribute is present and
// satisfies pred.
func (q *Query) WhereAttributePredicate(name string, pred func(string) bool) *Query {
	return q.Where(func(n *Node) bool {
		v, ok := n.GetAttribute(name)
		return ok && pred(v)
	})
}

// WhereText keeps members whose direct text equals value.
func (q *Query) WhereText(value string) *Query {
	return q.Where(func(n *Node) bool { return n.Text == value })
}

// WhereBooleanEquals keeps members whose attribute parses as a boolean
// equal to want ("true"/"false"/"1"/"0", per strconv.ParseBool).
func (q *Query) WhereBooleanEquals(attr string, want bool) *Query {
	return q.Where(func(n *Node) bool {
		v, ok := n.GetAttribute(attr)
		if !ok {
			return false
		}
		b, err := strconv.ParseBool(v)
		return err == nil && b == want
	})
}

// HasAttribute keeps members carrying the named attribute.
func (q *Query) HasAttribute(name string) *Query {
	return q.Where(func(n *Node) bool { return n.HasAttribute(name) })
}

// HasNumericValue keeps members whose text parses as a number.
func (q *Query) HasNumericValue() *Query {
	return q.Where(func(n *Node) bool {
		_, ok := n.NumericValue()
		return ok
	})
}

// AtDepth keeps members at the given tree depth (root = 0).
func (q *Query) AtDepth(depth int) *Query {
	return q.Where(func(n *Node) bool { return n.Depth() == depth })
}

// WherePath keeps members whose path equals exact.
func (q *Query) WherePath(exact string) *Query {
	return q.Where(func(n *Node) bool { return n.Path() == exact })
}

// WherePathMatches keeps members whose path matches the glob pattern
// (path.Match syntax; "*" does not cross "/").
func (q *Query) WherePathMatches(glob string) *Query {
	return q.Where(func(n *Node) bool {
		ok, err := path.Match(glob, n.Path())
		return err == nil && ok
	})
}

// Sum adds the numeric values of all members; non-numeric members
// contribute nothing. Empty query sums to 0.
func (q *Query) Sum() float64 {
	total := 0.0
	for _, n := range q.nodes {
		if v, ok := n.NumericValue(); ok {
			total += v
		}
	}
	return total
}

// Average returns the mean of the members' numeric values, 0 when no
// member is numeric.
func (q *Query) Average() float64 {
	total, count := 0.0, 0
	for _, n := range q.nodes {
		if v, ok := n.NumericValue(); ok {
			total += v
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// Texts returns each member's direct text, in order.
func (q *Query) Texts() []string {
	out := make([]string, 0, len(q.nodes))
	for _, n := range q.nodes {
		out = append(out, n.Text)
	}
	return out
}

// Attributes returns the named attribute's value for each member that
// carries it.
func (q *Query) Attributes(name string) []string {
	var out []string
	for _, n := range q.nodes {
		if v, ok := n.GetAttribute(name); ok {
			out = append(out, v)
		}
	}
	return out
}

// ToMap indexes members by keyFn. Later members win on key collisions.
func (q *Query) ToMap(keyFn func(*Node) string) map[string]*Node {
	out := make(map[string]*Node, len(q.nodes))
	for _, n := range q.nodes {
		out[keyFn(n)] = n
	}
	return out
}

// GroupBy buckets members by keyFn, preserving member order per bucket.
func (q *Query) GroupBy(keyFn func(*Node) string) map[string][]*Node {
	out := map[string][]*Node{}
	for _, n := range q.nodes {
		k := keyFn(n)
		out[k] = append(out[k], n)
	}
	return out
}

// GroupByAttribute buckets members by the named attribute's value;
// members without the attribute are skipped.
func (q *Query) GroupByAttribute(name string) map[string][]*Node {
	out := map[string][]*Node{}
	for _, n := range q.nodes {
		if v, ok := n.GetAttribute(name); ok {
			out[v] = append(out[v], n)
		}
	}
	return out
}

// Stats summarizes the members' numeric values.
type Stats struct {
	Count   int // members with a numeric value
	Sum     float64
	Min     float64
	Max     float64
	Average float64
}

// Stats computes numeric summary statistics over the members. With no
// numeric members all fields are zero.
func (q *Query) Stats() Stats {
	var s Stats
	for _, n := range q.nodes {
		v, ok := n.NumericValue()
		if !ok {
			continue
		}
		if s.Count == 0 || v < s.Min {
			s.Min = v
		}
		if s.Count == 0 || v > s.Max {
			s.Max = v
		}
		s.Sum += v
		s.Count++
	}
	if s.Count > 0 {
		s.Average = s.Sum / float64(s.Count)
	}
	return s
}

// SortByAttribute returns a new query sorted by the named attribute's
// string value (stable; members without the attribute sort first with an
// empty key).
func (q *Query) SortByAttribute(name string) *Query {
	out := q.Nodes()
	sort.SliceStable(out, func(i, j int) bool {
		vi, _ := out[i].GetAttribute(name)
		vj, _ := out[j].GetAttribute(name)
		return vi < vj
	})
	return &Query{nodes: out}
}

// SortByValue returns a new query sorted ascending by numeric value;
// non-numeric members sort after numeric ones, keeping their order.
func (q *Query) SortByValue() *Query {
	out := q.Nodes()
	sort.SliceStable(out, func(i, j int) bool {
		vi, oki := out[i].NumericValue()
		vj, okj := out[j].NumericValue()
		if oki != okj {
			return oki
		}
		return vi < vj
	})
	return &Query{nodes: out}
}

// Take returns the first n members (all of them when n exceeds Count).
func (q *Query) Take(n int) *Query {
	if n < 0 {
		n = 0
	}
	if n > len(q.nodes) {
		n = len(q.nodes)
	}
	return &Query{nodes: append([]*Node(nil), q.nodes[:n]...)}
}

// Skip drops the first n members.
func (q *Query) Skip(n int) *Query {
	if n < 0 {
		n = 0
	}
	if n > len(q.nodes) {
		n = len(q.nodes)
	}
	return &Query{nodes: append([]*Node(nil), q.nodes[n:]...)}
}

// SetAttr sets the attribute on every member.
func (q *Query) SetAttr(name, value string) *Query {
	for _, n := range q.nodes {
		n.SetAttribute(name, value)
	}
	return q
}

// SetAttrFunc sets the attribute on every member to fn's result for that
// member.
func (q *Query) SetAttrFunc(name string, fn func(*Node) string) *Query {
	for _, n := range q.nodes {
		n.SetAttribute(name, fn(n))
	}
	return q
}

// RemoveAttr removes the attribute from every member.
func (q *Query) RemoveAttr(name string) *Query {
	for _, n := range q.nodes {
		n.RemoveAttribute(name)
	}
	return q
}

// SetText sets the direct text of every member.
func (q *Query) SetText(value string) *Query {
	for _, n := range q.nodes {
		n.SetText(value)
	}
	return q
}

// UpdateElements merges the partial update into every member.
func (q *Query) UpdateElements(u NodeUpdate) *Query {
	for _, n := range q.nodes {
		n.Update(u)
	}
	return q
}

// RemoveElements detaches every member from its parent and returns how
// many were actually detached. Already-detached members count as misses,
// not errors.
func (q *Query) RemoveElements() int {
	removed := 0
	for _, n := range q.nodes {
		if n.Remove() {
			removed++
		}
	}
	logger.Debug("bulk remove", zap.Int("members", len(q.nodes)), zap.Int("removed", removed))
	return removed
}

// AppendChild appends fn(member) to every member. A nil result skips
// that member.
func (q *Query) AppendChild(fn func(parent *Node) *Node) *Query {
	for _, n := range q.nodes {
		if child := fn(n); child != nil {
			n.AddChild(child)
		}
	}
	return q
}

// ClearChildren detaches all children of every member.
func (q *Query) ClearChildren() *Query {
	for _, n := range q.nodes {
		for _, c := range n.Children {
			c.Parent = nil
		}
		n.Children = nil
	}
	return q
}

// ToXMLStrings serializes each member separately.
func (q *Query) ToXMLStrings(opts WriteOptions) []string {
	out := make([]string, 0, len(q.nodes))
	for _, n := range q.nodes {
		out = append(out, n.ToXML(opts))
	}
	return out
}
