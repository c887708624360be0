package xmltree

// Expr is a parsed XPath expression node. The AST is transient: it owns
// no tree nodes and can be evaluated any number of times.
type Expr interface{}

type NumberLit struct{ Value float64 }

type StringLit struct{ Value string }

// UnaryExpr is unary minus.
type UnaryExpr struct {
	Op      string
	Operand Expr
}

// BinaryExpr covers boolean ("and"/"or"), comparison and arithmetic
// operators, including the XPath keywords "div" and "mod".
type BinaryExpr struct {
	Op    string
	Left  Expr
	Right Expr
}

// UnionExpr is 'a | b | c'. Evaluation concatenates branch results in
// first-seen order and de-duplicates nodes by identity.
type UnionExpr struct {
	Exprs []Expr
}

// FuncCall is a call into the builtin function library. Name and arity
// are validated at parse time.
type FuncCall struct {
	Name string
	Args []Expr
	Pos  int
}

// Axis names accepted in location steps, plus the internal "attribute"
// axis produced by '@'.
const (
	AxisChild            = "child"
	AxisDescendant       = "descendant"
	AxisDescendantOrSelf = "descendant-or-self"
	AxisParent           = "parent"
	AxisAncestor         = "ancestor"
	AxisAncestorOrSelf   = "ancestor-or-self"
	AxisFollowing        = "following"
	AxisFollowingSibling = "following-sibling"
	AxisPreceding        = "preceding"
	AxisPrecedingSibling = "preceding-sibling"
	AxisSelf             = "self"
	AxisAttribute        = "attribute"
)

// axisNames is the supported-axis table, also the candidate list for
// nearest-match suggestions on unknown axis names.
var axisNames = []string{
	AxisChild, AxisDescendant, AxisDescendantOrSelf, AxisParent,
	AxisAncestor, AxisAncestorOrSelf, AxisFollowing, AxisFollowingSibling,
	AxisPreceding, AxisPrecedingSibling, AxisSelf, AxisAttribute,
}

type testKind int

const (
	// testAny matches every element; used for '.', '..' and the implicit
	// descendant-or-self step of '//'.
	testAny testKind = iota
	// testWildcard is the explicit '*' node test.
	testWildcard
	// testPrefixWildcard is 'prefix:*'; Name holds the prefix.
	testPrefixWildcard
	// testName is an exact qualified-name test; Name holds the QName.
	testName
)

// NodeTest is the name-filtering part of a location step.
type NodeTest struct {
	Kind testKind
	Name string
}

// Step is one location step: axis, node test and zero or more
// predicates, applied left to right.
type Step struct {
	Axis       string
	Test       NodeTest
	Predicates []Expr
}

// PathExpr is a sequence of location steps, optionally rooted at the
// document root.
type PathExpr struct {
	Absolute bool
	Steps    []Step
}
