package xmltree

import (
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// evalContext threads the XPath evaluation context: the context node and
// its 1-based position within, and the size of, the current candidate
// sequence.
type evalContext struct {
	node     *Node
	position int
	size     int
}

// attrItem is an attribute occurrence inside an evaluation sequence.
// Keeping the owner lets predicates and dedup work on attribute steps.
type attrItem struct {
	owner *Node
	name  string
	value string
}

// XPath evaluates the expression with each member as context node and
// returns the selected elements, de-duplicated, in first-seen order.
// Parse and evaluation failures are returned as *SyntaxError.
func (q *Query) XPath(expr string) (*Query, error) {
	ast, err := Compile(expr)
	if err != nil {
		return nil, err
	}
	logger.Debug("xpath compiled", zap.String("expr", expr), zap.Int("context", len(q.nodes)))

	var out []*Node
	seen := map[*Node]bool{}
	for i, n := range q.nodes {
		seq, err := evalExpr(ast, evalContext{node: n, position: i + 1, size: len(q.nodes)})
		if err != nil {
			return nil, err
		}
		for _, item := range seq {
			if node, ok := item.(*Node); ok && !seen[node] {
				seen[node] = true
				out = append(out, node)
			}
		}
	}
	return &Query{nodes: out}, nil
}

// XPathFirst evaluates the expression and returns the first selected
// element, or nil when nothing matches.
func (q *Query) XPathFirst(expr string) (*Node, error) {
	res, err := q.XPath(expr)
	if err != nil {
		return nil, err
	}
	return res.First(), nil
}

// XPathValue evaluates the expression against the first member and
// returns the raw XPath value: float64, string, bool, a []*Node node-set,
// or nil for an empty result. Useful for top-level function expressions
// such as "sum(item/@price)".
func (q *Query) XPathValue(expr string) (any, error) {
	ast, err := Compile(expr)
	if err != nil {
		return nil, err
	}
	seq, err := evalExpr(ast, evalContext{node: q.First(), position: 1, size: 1})
	if err != nil {
		return nil, err
	}
	switch len(seq) {
	case 0:
		return nil, nil
	case 1:
		switch v := seq[0].(type) {
		case float64, string, bool:
			return v, nil
		case attrItem:
			return v.value, nil
		}
	}
	nodes := make([]*Node, 0, len(seq))
	for _, item := range seq {
		if n, ok := item.(*Node); ok {
			nodes = append(nodes, n)
		}
	}
	return nodes, nil
}

// XPath is shorthand for n.Query().XPath(expr).
func (n *Node) XPath(expr string) (*Query, error) { return n.Query().XPath(expr) }

// XPathFirst is shorthand for n.Query().XPathFirst(expr).
func (n *Node) XPathFirst(expr string) (*Node, error) { return n.Query().XPathFirst(expr) }

func evalExpr(e Expr, ctx evalContext) ([]any, error) {
	switch e := e.(type) {
	case NumberLit:
		return []any{e.Value}, nil
	case StringLit:
		return []any{e.Value}, nil
	case UnaryExpr:
		seq, err := evalExpr(e.Operand, ctx)
		if err != nil {
			return nil, err
		}
		return []any{-toNumber(seq)}, nil
	case BinaryExpr:
		return evalBinary(e, ctx)
	case UnionExpr:
		return evalUnion(e, ctx)
	case FuncCall:
		return evalFuncCall(e, ctx)
	case PathExpr:
		return evalPath(e, ctx)
	}
	// Unreachable for ASTs produced by Compile.
	return nil, &SyntaxError{Msg: "unsupported expression"}
}

func evalBinary(e BinaryExpr, ctx evalContext) ([]any, error) {
	switch e.Op {
	case "and":
		left, err := evalExpr(e.Left, ctx)
		if err != nil {
			return nil, err
		}
		if !toBool(left) {
			return []any{false}, nil
		}
		right, err := evalExpr(e.Right, ctx)
		if err != nil {
			return nil, err
		}
		return []any{toBool(right)}, nil
	case "or":
		left, err := evalExpr(e.Left, ctx)
		if err != nil {
			return nil, err
		}
		if toBool(left) {
			return []any{true}, nil
		}
		right, err := evalExpr(e.Right, ctx)
		if err != nil {
			return nil, err
		}
		return []any{toBool(right)}, nil
	}

	left, err := evalExpr(e.Left, ctx)
	if err != nil {
		return nil, err
	}
	right, err := evalExpr(e.Right, ctx)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case "=", "!=", "<", ">", "<=", ">=":
		return []any{compare(e.Op, left, right)}, nil
	}

	l, r := toNumber(left), toNumber(right)
	switch e.Op {
	case "+":
		return []any{l + r}, nil
	case "-":
		return []any{l - r}, nil
	case "*":
		return []any{l * r}, nil
	case "div":
		return []any{l / r}, nil
	case "mod":
		return []any{math.Mod(l, r)}, nil
	}
	return nil, &SyntaxError{Msg: "unsupported operator " + e.Op}
}

func evalUnion(e UnionExpr, ctx evalContext) ([]any, error) {
	var out []any
	seenNodes := map[*Node]bool{}
	seenAttrs := map[[2]any]bool{}
	for _, branch := range e.Exprs {
		seq, err := evalExpr(branch, ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range seq {
			switch v := item.(type) {
			case *Node:
				if seenNodes[v] {
					continue
				}
				seenNodes[v] = true
			case attrItem:
				key := [2]any{v.owner, v.name}
				if seenAttrs[key] {
					continue
				}
				seenAttrs[key] = true
			}
			out = append(out, item)
		}
	}
	return out, nil
}

func evalFuncCall(e FuncCall, ctx evalContext) ([]any, error) {
	args := make([][]any, 0, len(e.Args))
	for _, a := range e.Args {
		seq, err := evalExpr(a, ctx)
		if err != nil {
			return nil, err
		}
		args = append(args, seq)
	}
	return builtins[e.Name].fn(ctx, args)
}

// docNode stands for the document node above the root element at the
// start of an absolute path, so the first step is matched against the
// root element itself: /store selects the root when it is named store.
type docNode struct{ root *Node }

func evalPath(e PathExpr, ctx evalContext) ([]any, error) {
	if ctx.node == nil {
		return nil, nil
	}
	var current []any
	if e.Absolute {
		root := ctx.node.Root()
		if len(e.Steps) == 0 {
			// A bare "/" selects the root element.
			return []any{root}, nil
		}
		current = []any{docNode{root: root}}
	} else {
		current = []any{ctx.node}
	}
	for _, step := range e.Steps {
		next, err := applyStep(current, step)
		if err != nil {
			return nil, err
		}
		current = next
	}
	return current, nil
}

func applyStep(items []any, step Step) ([]any, error) {
	var out []any
	seen := map[*Node]bool{}
	for _, item := range items {
		var candidates []any
		switch v := item.(type) {
		case *Node:
			candidates = axisCandidates(v, step)
		case docNode:
			candidates = docAxisCandidates(v, step)
		default:
			// Attribute and scalar items have no further structure.
			continue
		}

		// Predicates run left to right against the current candidate
		// sequence; a numeric result is a positional match, anything
		// else is tested for truthiness. Each predicate narrows the
		// sequence the next one positions against.
		for _, pred := range step.Predicates {
			var kept []any
			for i, cand := range candidates {
				pctx := evalContext{node: contextNodeOf(cand), position: i + 1, size: len(candidates)}
				seq, err := evalExpr(pred, pctx)
				if err != nil {
					return nil, err
				}
				if predicateHolds(seq, i+1) {
					kept = append(kept, cand)
				}
			}
			candidates = kept
		}

		for _, cand := range candidates {
			if n, ok := cand.(*Node); ok {
				if seen[n] {
					continue
				}
				seen[n] = true
			}
			out = append(out, cand)
		}
	}
	return out, nil
}

func contextNodeOf(item any) *Node {
	switch v := item.(type) {
	case *Node:
		return v
	case attrItem:
		return v.owner
	}
	return nil
}

func predicateHolds(seq []any, position int) bool {
	if len(seq) == 1 {
		if f, ok := seq[0].(float64); ok {
			return f == float64(position)
		}
	}
	return toBool(seq)
}

func axisCandidates(node *Node, step Step) []any {
	if step.Axis == AxisAttribute {
		return attributeCandidates(node, step.Test)
	}
	var nodes []*Node
	switch step.Axis {
	case AxisSelf:
		nodes = []*Node{node}
	case AxisChild:
		nodes = node.Children
	case AxisDescendant:
		nodes = node.descendants(nil)
	case AxisDescendantOrSelf:
		nodes = append([]*Node{node}, node.descendants(nil)...)
	case AxisParent:
		if node.Parent != nil {
			nodes = []*Node{node.Parent}
		}
	case AxisAncestor:
		for p := node.Parent; p != nil; p = p.Parent {
			nodes = append(nodes, p)
		}
	case AxisAncestorOrSelf:
		for p := node; p != nil; p = p.Parent {
			nodes = append(nodes, p)
		}
	case AxisFollowingSibling:
		if node.Parent != nil {
			sibs := node.Parent.Children
			if i := node.IndexInParent(); i >= 0 {
				nodes = sibs[i+1:]
			}
		}
	case AxisPrecedingSibling:
		// Forward document order, a documented deviation from the
		// XPath 1.0 reverse axis.
		if node.Parent != nil {
			if i := node.IndexInParent(); i >= 0 {
				nodes = node.Parent.Children[:i]
			}
		}
	case AxisFollowing:
		nodes = followingNodes(node)
	case AxisPreceding:
		nodes = precedingNodes(node)
	}

	out := make([]any, 0, len(nodes))
	for _, n := range nodes {
		if matchTest(step.Test, n) {
			out = append(out, n)
		}
	}
	return out
}

// docAxisCandidates resolves a step taken from the document node. Only
// the downward axes lead anywhere; the document itself is not an
// element, so it can only satisfy the unnamed any-node test (as in the
// implicit step of a leading //).
func docAxisCandidates(d docNode, step Step) []any {
	var nodes []*Node
	switch step.Axis {
	case AxisChild:
		nodes = []*Node{d.root}
	case AxisDescendant:
		nodes = append([]*Node{d.root}, d.root.descendants(nil)...)
	case AxisDescendantOrSelf:
		nodes = append([]*Node{d.root}, d.root.descendants(nil)...)
		out := make([]any, 0, len(nodes)+1)
		if step.Test.Kind == testAny {
			out = append(out, d)
		}
		for _, n := range nodes {
			if matchTest(step.Test, n) {
				out = append(out, n)
			}
		}
		return out
	case AxisSelf:
		if step.Test.Kind == testAny {
			return []any{d}
		}
		return nil
	default:
		return nil
	}

	out := make([]any, 0, len(nodes))
	for _, n := range nodes {
		if matchTest(step.Test, n) {
			out = append(out, n)
		}
	}
	return out
}

func attributeCandidates(node *Node, test NodeTest) []any {
	switch test.Kind {
	case testName:
		if v, ok := node.GetAttribute(test.Name); ok {
			return []any{attrItem{owner: node, name: test.Name, value: v}}
		}
		return nil
	default:
		out := make([]any, 0, len(node.Attrs))
		for _, a := range node.Attrs {
			out = append(out, attrItem{owner: node, name: a.Name, value: a.Value})
		}
		return out
	}
}

func matchTest(t NodeTest, n *Node) bool {
	switch t.Kind {
	case testAny, testWildcard:
		return true
	case testPrefixWildcard:
		return n.Prefix == t.Name
	case testName:
		return n.QualifiedName() == t.Name
	}
	return false
}

// followingNodes returns every node after n in document order, excluding
// n's own descendants.
func followingNodes(n *Node) []*Node {
	root := n.Root()
	all := append([]*Node{root}, root.descendants(nil)...)
	idx := -1
	for i, cand := range all {
		if cand == n {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	skip := len(n.descendants(nil))
	return all[idx+1+skip:]
}

// precedingNodes returns every node before n in document order,
// excluding n's ancestors. Results stay in forward document order.
func precedingNodes(n *Node) []*Node {
	root := n.Root()
	ancestors := map[*Node]bool{}
	for p := n.Parent; p != nil; p = p.Parent {
		ancestors[p] = true
	}
	all := append([]*Node{root}, root.descendants(nil)...)
	var out []*Node
	for _, cand := range all {
		if cand == n {
			break
		}
		if !ancestors[cand] {
			out = append(out, cand)
		}
	}
	return out
}

// stringValue is the XPath string value of an element: its direct text
// followed by the string values of its children in document order.
func stringValue(n *Node) string {
	if n == nil {
		return ""
	}
	if len(n.Children) == 0 {
		return n.Text
	}
	var b strings.Builder
	b.WriteString(n.Text)
	for _, c := range n.Children {
		b.WriteString(stringValue(c))
	}
	return b.String()
}

func itemString(item any) string {
	switch v := item.(type) {
	case *Node:
		return stringValue(v)
	case attrItem:
		return v.value
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	case float64:
		return formatNumber(v)
	}
	return ""
}

func itemNumber(item any) float64 {
	switch v := item.(type) {
	case float64:
		return v
	case bool:
		if v {
			return 1
		}
		return 0
	default:
		s := strings.TrimSpace(itemString(item))
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	}
}

func isNodeItem(item any) bool {
	switch item.(type) {
	case *Node, attrItem:
		return true
	}
	return false
}

// toBool applies XPath truthiness to a sequence: a node-set is true when
// non-empty, a number when non-zero and not NaN, a string when
// non-empty.
func toBool(seq []any) bool {
	for _, item := range seq {
		if isNodeItem(item) {
			return true
		}
	}
	for _, item := range seq {
		switch v := item.(type) {
		case bool:
			if v {
				return true
			}
		case float64:
			if v != 0 && !math.IsNaN(v) {
				return true
			}
		case string:
			if v != "" {
				return true
			}
		}
	}
	return false
}

// toNumber casts per XPath 1.0: the empty sequence and unparsable
// values become NaN, never an error.
func toNumber(seq []any) float64 {
	if len(seq) == 0 {
		return math.NaN()
	}
	return itemNumber(seq[0])
}

func toString(seq []any) string {
	if len(seq) == 0 {
		return ""
	}
	return itemString(seq[0])
}

func formatNumber(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	case v == math.Trunc(v) && math.Abs(v) < 1e15:
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// compare implements XPath comparison: node-set operands compare
// existentially (true when any pair satisfies the operator), relational
// operators compare numerically, and equality picks number, boolean or
// string comparison from the operand types.
func compare(op string, left, right []any) bool {
	if op == "=" || op == "!=" {
		for _, li := range left {
			for _, ri := range right {
				if equalityHolds(op, li, ri) {
					return true
				}
			}
		}
		return false
	}
	for _, li := range left {
		for _, ri := range right {
			if numericCompare(op, itemNumber(li), itemNumber(ri)) {
				return true
			}
		}
	}
	return false
}

func equalityHolds(op string, li, ri any) bool {
	eq := false
	lf, lIsNum := li.(float64)
	rf, rIsNum := ri.(float64)
	lb, lIsBool := li.(bool)
	rb, rIsBool := ri.(bool)
	switch {
	case lIsNum || rIsNum:
		if !lIsNum {
			lf = itemNumber(li)
		}
		if !rIsNum {
			rf = itemNumber(ri)
		}
		eq = lf == rf
	case lIsBool || rIsBool:
		if !lIsBool {
			lb = toBool([]any{li})
		}
		if !rIsBool {
			rb = toBool([]any{ri})
		}
		eq = lb == rb
	default:
		eq = itemString(li) == itemString(ri)
	}
	if op == "!=" {
		return !eq
	}
	return eq
}

func numericCompare(op string, l, r float64) bool {
	switch op {
	case "<":
		return l < r
	case "<=":
		return l <= r
	case ">":
		return l > r
	case ">=":
		return l >= r
	}
	return false
}
