// Package vdom holds a small in-memory UI node tree: element and text nodes
// with ordered attributes, children and event handlers carrying messages.
//
// Trees are built either with the constructors in this package or by parsing
// an HTML fragment into a [Template]. Nodes are addressed by their id
// attribute with [FindByID] and [UpdateByID], and converted to [h.H] with
// [Render] for the runtime to send to the browser.
package vdom

// Kind distinguishes element nodes from text nodes.
type Kind uint8

const (
	ElementNode Kind = iota
	TextNode
)

func (k Kind) String() string {
	switch k {
	case ElementNode:
		return "element"
	case TextNode:
		return "text"
	}
	return "unknown"
}

// Attr is a single attribute. Attributes keep their source order.
type Attr struct {
	Key string
	Val string
}

// Handler binds a DOM event name (e.g. "click") to the message it produces.
type Handler struct {
	Event string
	Msg   any
}

// Node is an element or a text node.
type Node struct {
	Kind     Kind
	Tag      string
	Attrs    []Attr
	Children []*Node
	Handlers []Handler
	Text     string
}

// Part is something that can be placed inside El: an attribute, a handler or
// a child node.
type Part interface {
	applyTo(n *Node)
}

func (a Attr) applyTo(n *Node)    { n.SetAttr(a.Key, a.Val) }
func (h Handler) applyTo(n *Node) { n.Handlers = append(n.Handlers, h) }
func (n *Node) applyTo(parent *Node) {
	if n != nil {
		parent.Children = append(parent.Children, n)
	}
}

// El creates an element node.
//
//	vdom.El("button", vdom.Class("btn"), vdom.OnClick(Increment), vdom.Text("+"))
func El(tag string, parts ...Part) *Node {
	n := &Node{Kind: ElementNode, Tag: tag}
	for _, p := range parts {
		if p != nil {
			p.applyTo(n)
		}
	}
	return n
}

// Text creates a text node.
func Text(s string) *Node {
	return &Node{Kind: TextNode, Text: s}
}

// Attribute creates an attribute with the given key and value.
func Attribute(key, val string) Attr { return Attr{Key: key, Val: val} }

// Class creates a class attribute.
func Class(v string) Attr { return Attr{Key: "class", Val: v} }

// ID creates an id attribute.
func ID(v string) Attr { return Attr{Key: "id", Val: v} }

// On creates a handler producing msg when event fires.
func On(event string, msg any) Handler { return Handler{Event: event, Msg: msg} }

// OnClick creates a click handler producing msg.
func OnClick(msg any) Handler { return On("click", msg) }

// IsElement reports whether n is an element node.
func (n *Node) IsElement() bool {
	return n != nil && n.Kind == ElementNode
}

// Attr returns the value of the attribute with the exact given key.
func (n *Node) Attr(key string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// ID returns the id attribute or "".
func (n *Node) ID() string {
	v, _ := n.Attr("id")
	return v
}

// SetAttr replaces the value of an existing attribute in place or appends a
// new one.
func (n *Node) SetAttr(key, val string) {
	for i := range n.Attrs {
		if n.Attrs[i].Key == key {
			n.Attrs[i].Val = val
			return
		}
	}
	n.Attrs = append(n.Attrs, Attr{Key: key, Val: val})
}

// ReplaceText drops all children of an element and puts a single text node
// in their place. On a text node it replaces the text itself.
func (n *Node) ReplaceText(s string) {
	if n.Kind == TextNode {
		n.Text = s
		return
	}
	n.Children = []*Node{Text(s)}
}

// AddEventHandler attaches a handler producing msg on event.
func (n *Node) AddEventHandler(event string, msg any) {
	n.Handlers = append(n.Handlers, Handler{Event: event, Msg: msg})
}

// TextContent concatenates the text of n and all its descendants.
func (n *Node) TextContent() string {
	if n.Kind == TextNode {
		return n.Text
	}
	var s string
	for _, c := range n.Children {
		s += c.TextContent()
	}
	return s
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := &Node{Kind: n.Kind, Tag: n.Tag, Text: n.Text}
	if n.Attrs != nil {
		c.Attrs = append([]Attr(nil), n.Attrs...)
	}
	if n.Handlers != nil {
		c.Handlers = append([]Handler(nil), n.Handlers...)
	}
	if n.Children != nil {
		c.Children = CloneAll(n.Children)
	}
	return c
}

// CloneAll deep-copies a forest.
func CloneAll(forest []*Node) []*Node {
	out := make([]*Node, len(forest))
	for i, n := range forest {
		out[i] = n.Clone()
	}
	return out
}

// Elements returns the element nodes of forest, skipping text.
func Elements(forest []*Node) []*Node {
	var out []*Node
	for _, n := range forest {
		if n.IsElement() {
			out = append(out, n)
		}
	}
	return out
}
