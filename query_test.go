package xmltree

import (
	"encoding/json"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogXML = `<catalog>
	<item id="1" price="10" sale="true">10</item>
	<item id="2" price="20">20</item>
	<item id="3" price="30" sale="false">30</item>
	<note xml:lang="en-US">hello</note>
</catalog>`

func catalogQuery(t *testing.T) (*Node, *Query) {
	t.Helper()
	root := mustParse(t, catalogXML)
	return root, root.Query()
}

func TestEmptyQueryIdentities(t *testing.T) {
	q := NewQuery()
	assert.Equal(t, 0, q.Count())
	assert.Nil(t, q.First())
	assert.Empty(t, q.Nodes())
	assert.Equal(t, 0.0, q.Sum())
	assert.Equal(t, 0.0, q.Average())
	assert.Empty(t, q.Texts())
	assert.Equal(t, Stats{}, q.Stats())
	assert.Equal(t, 0, q.RemoveElements())
	assert.Equal(t, 0, q.Find("*").Count())
}

func TestNewQueryDropsNil(t *testing.T) {
	q := NewQuery(nil, NewElement("a"), nil)
	assert.Equal(t, 1, q.Count())
}

func TestFindAndChildren(t *testing.T) {
	_, q := catalogQuery(t)

	assert.Equal(t, 3, q.Find("item").Count())
	assert.Equal(t, 4, q.Children().Count())
	assert.Equal(t, 3, q.ChildrenNamed("item").Count())
	assert.Equal(t, 4, q.Find("*").Count())
	assert.Equal(t, 4, q.Descendants().Count())
}

func TestFindPrefixWildcard(t *testing.T) {
	root := mustParse(t, `<r xmlns:a="urn:a"><a:x/><a:y/><z/></r>`)
	assert.Equal(t, 2, root.Query().Find("a:*").Count())
	assert.Equal(t, 1, root.Query().Find("a:x").Count())
}

func TestParentAndAncestorsDedup(t *testing.T) {
	root, q := catalogQuery(t)
	items := q.Find("item")

	parents := items.Parent()
	assert.Equal(t, 1, parents.Count())
	assert.Same(t, root, parents.First())

	anc := items.Ancestors()
	assert.Equal(t, 1, anc.Count())
}

func TestFilters(t *testing.T) {
	_, q := catalogQuery(t)
	items := q.Find("item")

	assert.Equal(t, []string{"2"}, items.WhereAttribute("id", "2").Attributes("id"))
	assert.Equal(t, 2, items.WhereAttributePredicate("price", func(v string) bool {
		f, err := strconv.ParseFloat(v, 64)
		return err == nil && f >= 20
	}).Count())
	assert.Equal(t, 1, items.WhereText("20").Count())
	assert.Equal(t, 2, items.HasAttribute("sale").Count())
	assert.Equal(t, 1, items.WhereBooleanEquals("sale", true).Count())
	assert.Equal(t, 1, items.WhereBooleanEquals("sale", false).Count())
	assert.Equal(t, 3, items.HasNumericValue().Count())
	assert.Equal(t, 4, q.Descendants().AtDepth(1).Count())
	assert.Equal(t, 3, q.Descendants().WherePathMatches("catalog/item").Count())
	assert.Equal(t, 1, q.Descendants().WherePath("catalog/note").Count())
}

func TestAggregates(t *testing.T) {
	_, q := catalogQuery(t)
	items := q.Find("item")

	assert.Equal(t, 60.0, items.Sum())
	assert.Equal(t, 20.0, items.Average())
	assert.Equal(t, []string{"10", "20", "30"}, items.Texts())

	s := items.Stats()
	want := Stats{Count: 3, Sum: 60, Min: 10, Max: 30, Average: 20}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Fatalf("stats mismatch (-want +got):\n%s", diff)
	}

	// Non-numeric members contribute nothing.
	all := q.Descendants()
	assert.Equal(t, 60.0, all.Sum())
	assert.Equal(t, 20.0, all.Average())
}

func TestGrouping(t *testing.T) {
	_, q := catalogQuery(t)
	items := q.Find("item")

	bySale := items.GroupByAttribute("sale")
	assert.Len(t, bySale, 2)
	assert.Len(t, bySale["true"], 1)
	assert.Len(t, bySale["false"], 1)

	byName := q.Descendants().GroupBy(func(n *Node) string { return n.Name })
	assert.Len(t, byName["item"], 3)
	assert.Len(t, byName["note"], 1)

	m := items.ToMap(func(n *Node) string {
		v, _ := n.GetAttribute("id")
		return v
	})
	require.Len(t, m, 3)
	assert.Equal(t, "20", m["2"].Text)
}

func TestSorting(t *testing.T) {
	root := mustParse(t, `<r><v n="c">3</v><v n="a">1</v><v>x</v><v n="b">2</v></r>`)
	vs := root.Query().Find("v")

	sorted := vs.SortByAttribute("n")
	assert.Equal(t, []string{"x", "1", "2", "3"}, sorted.Texts())

	byValue := vs.SortByValue()
	assert.Equal(t, []string{"1", "2", "3", "x"}, byValue.Texts())

	// Sorting returned a copy; the original order is untouched.
	assert.Equal(t, []string{"3", "1", "x", "2"}, vs.Texts())
}

func TestTakeSkip(t *testing.T) {
	_, q := catalogQuery(t)
	items := q.Find("item")

	assert.Equal(t, 2, items.Take(2).Count())
	assert.Equal(t, 3, items.Take(10).Count())
	assert.Equal(t, 0, items.Take(-1).Count())
	assert.Equal(t, []string{"30"}, items.Skip(2).Texts())
	assert.Equal(t, 0, items.Skip(10).Count())
}

func TestBulkMutation(t *testing.T) {
	_, q := catalogQuery(t)
	items := q.Find("item")

	items.SetAttr("checked", "yes").SetAttrFunc("label", func(n *Node) string {
		v, _ := n.GetAttribute("id")
		return "item-" + v
	})
	assert.Equal(t, []string{"yes", "yes", "yes"}, items.Attributes("checked"))
	assert.Equal(t, []string{"item-1", "item-2", "item-3"}, items.Attributes("label"))

	items.RemoveAttr("checked")
	assert.Empty(t, items.Attributes("checked"))

	items.SetText("0")
	assert.Equal(t, 0.0, items.Sum())

	name := "product"
	items.UpdateElements(NodeUpdate{Name: &name})
	assert.Equal(t, 3, q.Find("product").Count())
	assert.Equal(t, 0, q.Find("item").Count())
}

func TestRemoveElements(t *testing.T) {
	root, q := catalogQuery(t)
	items := q.Find("item")

	assert.Equal(t, 3, items.RemoveElements())
	assert.Equal(t, 0, root.Query().Find("item").Count())
	// Members are already detached; repeating counts zero removals.
	assert.Equal(t, 0, items.RemoveElements())
}

func TestAppendChildAndClearChildren(t *testing.T) {
	_, q := catalogQuery(t)
	items := q.Find("item")

	items.AppendChild(func(parent *Node) *Node {
		if parent.Text == "20" {
			return nil
		}
		return NewElement("tag")
	})
	assert.Equal(t, 2, q.Find("tag").Count())

	items.ClearChildren()
	assert.Equal(t, 0, q.Find("tag").Count())
	for _, n := range items.Nodes() {
		assert.True(t, n.IsLeaf())
	}
}

func TestToXMLStrings(t *testing.T) {
	root := mustParse(t, `<r><a/><b/></r>`)
	got := root.Query().Children().ToXMLStrings(WriteOptions{SelfClose: true})
	assert.Equal(t, []string{"<a/>", "<b/>"}, got)
}

func TestToJSON(t *testing.T) {
	root := mustParse(t, `<catalog><item id="1">10</item><name>w</name></catalog>`)
	items := root.Query().Children()

	data, err := items.ToJSON(JSONOptions{IncludeAttributes: true, IncludeMetadata: true})
	require.NoError(t, err)

	var out []map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	require.Len(t, out, 2)
	assert.Equal(t, "item", out[0]["name"])
	assert.Equal(t, "10", out[0]["text"])
	assert.Equal(t, map[string]any{"id": "1"}, out[0]["attributes"])
	assert.Equal(t, "catalog/item", out[0]["path"])
	assert.Equal(t, 1.0, out[0]["depth"])
	assert.Equal(t, 0.0, out[0]["index"])
	assert.Equal(t, 1.0, out[1]["index"])
}

func TestToJSONSimplifyLeaves(t *testing.T) {
	root := mustParse(t, `<r><v>12.5</v><v>text</v><v id="1">9</v></r>`)
	data, err := root.Query().Children().ToJSON(JSONOptions{SimplifyLeaves: true, IncludeAttributes: true})
	require.NoError(t, err)

	var out []any
	require.NoError(t, json.Unmarshal(data, &out))
	require.Len(t, out, 3)
	assert.Equal(t, 12.5, out[0])
	assert.Equal(t, "text", out[1])
	// Attribute-carrying leaves stay objects.
	obj, ok := out[2].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "9", obj["text"])
}
