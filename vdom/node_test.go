package vdom

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestElParts(t *testing.T) {
	n := El("button", Class("btn"), ID("inc"), OnClick("increment"), Text("+"), nil)

	assert.Equal(t, ElementNode, n.Kind)
	assert.Equal(t, []Attr{{"class", "btn"}, {"id", "inc"}}, n.Attrs)
	assert.Equal(t, []Handler{{Event: "click", Msg: "increment"}}, n.Handlers)
	assert.Equal(t, "+", n.TextContent())
}

func TestSetAttrKeepsOrder(t *testing.T) {
	n := El("a", Attribute("href", "/"), Class("x"))
	n.SetAttr("href", "/home")
	n.SetAttr("title", "Home")
	assert.Equal(t, []Attr{{"href", "/home"}, {"class", "x"}, {"title", "Home"}}, n.Attrs)

	v, ok := n.Attr("title")
	assert.True(t, ok)
	assert.Equal(t, "Home", v)
	_, ok = n.Attr("Title")
	assert.False(t, ok)
}

func TestReplaceText(t *testing.T) {
	n := El("span", El("b", Text("a")), Text("b"))
	n.ReplaceText("7")
	assert.Equal(t, []*Node{Text("7")}, n.Children)

	txt := Text("old")
	txt.ReplaceText("new")
	assert.Equal(t, "new", txt.Text)
}

func TestCloneIsDeep(t *testing.T) {
	orig := El("div", ID("a"), OnClick(1), El("span", Text("x")))
	c := orig.Clone()
	if diff := cmp.Diff(orig, c); diff != "" {
		t.Fatalf("clone differs:\n%s", diff)
	}

	c.SetAttr("id", "b")
	c.Children[0].ReplaceText("y")
	c.AddEventHandler("click", 2)

	assert.Equal(t, "a", orig.ID())
	assert.Equal(t, "x", orig.TextContent())
	assert.Len(t, orig.Handlers, 1)
}

func TestElements(t *testing.T) {
	forest := []*Node{Text("a"), El("b"), Text("c"), El("d")}
	els := Elements(forest)
	assert.Len(t, els, 2)
	assert.Equal(t, "b", els[0].Tag)
	assert.Equal(t, "d", els[1].Tag)
}
