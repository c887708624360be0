package xmltree

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// checkDerivedValues walks an attached tree and verifies the depth/path
// invariants hold for every node.
func checkDerivedValues(t *rapid.T, root *Node) {
	root.Walk(func(n *Node) bool {
		if n.Parent == nil {
			if n.Depth() != 0 || n.Path() != n.QualifiedName() {
				t.Fatalf("root %s: depth=%d path=%q", n.QualifiedName(), n.Depth(), n.Path())
			}
			return true
		}
		if n.Depth() != n.Parent.Depth()+1 {
			t.Fatalf("node %s: depth=%d parent depth=%d", n.Path(), n.Depth(), n.Parent.Depth())
		}
		if want := n.Parent.Path() + "/" + n.QualifiedName(); n.Path() != want {
			t.Fatalf("node path=%q want %q", n.Path(), want)
		}
		return true
	})
}

func elementName(t *rapid.T, label string) string {
	return rapid.StringMatching(`[a-z][a-z0-9]{0,7}`).Draw(t, label)
}

func TestMutationsPreserveDerivedValues(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		root := NewElement(elementName(t, "root"))
		attached := []*Node{root}

		ops := rapid.IntRange(1, 40).Draw(t, "ops")
		for i := 0; i < ops; i++ {
			switch rapid.IntRange(0, 3).Draw(t, "op") {
			case 0: // create a child under a random attached node
				parent := attached[rapid.IntRange(0, len(attached)-1).Draw(t, "parent")]
				child := parent.CreateChild(ChildSpec{Name: elementName(t, "name")})
				attached = append(attached, child)
			case 1: // detach a random non-root node
				idx := rapid.IntRange(0, len(attached)-1).Draw(t, "victim")
				n := attached[idx]
				if n == root {
					continue
				}
				n.Remove()
				keep := attached[:0]
				for _, c := range attached {
					if c.Root() == root {
						keep = append(keep, c)
					}
				}
				attached = keep
			case 2: // move a node under another; cycle-forming moves no-op
				src := attached[rapid.IntRange(0, len(attached)-1).Draw(t, "src")]
				dst := attached[rapid.IntRange(0, len(attached)-1).Draw(t, "dst")]
				dst.AddChild(src)
			case 3: // rename a random node
				n := attached[rapid.IntRange(0, len(attached)-1).Draw(t, "target")]
				name := elementName(t, "newname")
				n.Update(NodeUpdate{Name: &name})
			}
			checkDerivedValues(t, root)
		}
	})
}

func TestSerializeParseRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		root := NewElement(elementName(t, "root"))
		nodes := []*Node{root}

		count := rapid.IntRange(0, 20).Draw(t, "count")
		for i := 0; i < count; i++ {
			parent := nodes[rapid.IntRange(0, len(nodes)-1).Draw(t, "parent")]
			child := parent.CreateChild(ChildSpec{Name: elementName(t, "name")})
			if rapid.Bool().Draw(t, "hasText") {
				// No surrounding whitespace: the reader trims it, which
				// would diverge the round trip for cosmetic reasons only.
				child.SetText(rapid.StringMatching(`[a-zA-Z0-9<>&]{1,12}`).Draw(t, "text"))
			}
			if rapid.Bool().Draw(t, "hasAttr") {
				child.SetAttribute(elementName(t, "attr"),
					rapid.StringMatching(`[a-zA-Z0-9"'&]{0,8}`).Draw(t, "attrval"))
			}
			nodes = append(nodes, child)
		}

		first := root.ToXML(WriteOptions{})
		parsed, err := Parse(first)
		if err != nil {
			t.Fatalf("parse back: %v", err)
		}
		second := parsed.ToXML(WriteOptions{})
		if first != second {
			t.Fatalf("round trip diverged:\n%s\n%s", first, second)
		}
	})
}

func TestCompileNeverPanics(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		expr := rapid.StringMatching(`[a-z0-9/@\[\]()'". <>=|&*+:-]{0,30}`).Draw(t, "expr")
		expr = strings.ToValidUTF8(expr, "")
		// Result is irrelevant; compiling arbitrary input must either
		// succeed or return a *SyntaxError, never panic.
		if _, err := Compile(expr); err != nil {
			var serr *SyntaxError
			require.ErrorAs(t, err, &serr)
		}
	})
}

func TestEvalNeverPanicsOnValidExprs(t *testing.T) {
	root := mustParse(t, storeXML)
	exprs := []string{
		"//item", "//item[@price]", "count(//item)", "sum(//item/@price)",
		"//item[1]/following-sibling::*", "//*[. = 'first']",
		"//item[@price div 0 > 1]", "number('x') + 1", "//item[text()]",
	}
	rapid.Check(t, func(t *rapid.T) {
		expr := rapid.SampledFrom(exprs).Draw(t, "expr")
		if _, err := root.XPath(expr); err != nil {
			t.Fatalf("eval %q: %v", expr, err)
		}
	})
}
