package counter

import (
	"strconv"

	"github.com/ryanhamamura/tally/vdom"
)

const (
	classIncrement = "ml-4 mt-4 bg-green-500 text-white p-2 rounded text-2xl font-bold"
	classDecrement = "ml-4 mt-4 bg-red-500 text-white p-2 rounded text-2xl font-bold"
	classValue     = "ml-4 mt-4 bg-blue-500 text-white p-2 rounded text-2xl font-bold"
)

// ViewButtons builds the counter by hand: "+" button, "-" button, value.
func ViewButtons(m Model) []*vdom.Node {
	return []*vdom.Node{
		vdom.El("button", vdom.Class(classIncrement), vdom.OnClick(Increment), vdom.Text("+")),
		vdom.El("button", vdom.Class(classDecrement), vdom.OnClick(Decrement), vdom.Text("-")),
		vdom.El("span", vdom.Class(classValue), vdom.Text(strconv.Itoa(m.Val))),
	}
}

// ViewTemplate patches a copy of the template by element id. Ids missing from
// the template are skipped.
func ViewTemplate(m Model) []*vdom.Node {
	if m.Template == nil {
		return nil
	}
	nodes := m.Template.Nodes()
	vdom.UpdateByID("decrement", nodes, func(n *vdom.Node) {
		n.AddEventHandler("click", Decrement)
	})
	vdom.UpdateByID("counter", nodes, func(n *vdom.Node) {
		n.ReplaceText(strconv.Itoa(m.Val))
	})
	vdom.UpdateByID("increment", nodes, func(n *vdom.Node) {
		n.AddEventHandler("click", Increment)
	})
	return nodes
}

// ViewPositional patches the template's three top-level elements by position
// (decrement, value, increment). Any other shape is returned untouched.
func ViewPositional(m Model) []*vdom.Node {
	if m.Template == nil {
		return nil
	}
	nodes := m.Template.Nodes()
	els := vdom.Elements(nodes)
	if len(els) != 3 {
		return nodes
	}
	decrement, value, increment := els[0], els[1], els[2]
	decrement.AddEventHandler("click", Decrement)
	value.ReplaceText(strconv.Itoa(m.Val))
	increment.AddEventHandler("click", Increment)
	return nodes
}

// ViewMixed wraps the id-patched template in a hand-built container.
func ViewMixed(m Model) []*vdom.Node {
	parts := []vdom.Part{
		vdom.Class("p-4"),
		vdom.El("h2", vdom.Class("ml-4 text-xl"), vdom.Text("Counter")),
	}
	for _, n := range ViewTemplate(m) {
		parts = append(parts, n)
	}
	return []*vdom.Node{vdom.El("div", parts...)}
}
