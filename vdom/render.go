package vdom

import (
	"bytes"

	"github.com/ryanhamamura/tally/h"
)

// Binder turns an event handler into an attribute understood by the browser.
// Returning nil drops the handler.
type Binder func(event string, msg any) h.H

// Render converts forest into a single h.H. Handlers are passed to bind; a
// nil bind drops them.
func Render(forest []*Node, bind Binder) h.H {
	nodes := make([]h.H, 0, len(forest))
	for _, n := range forest {
		if r := renderNode(n, bind); r != nil {
			nodes = append(nodes, r)
		}
	}
	return h.Group(nodes...)
}

func renderNode(n *Node, bind Binder) h.H {
	if n == nil {
		return nil
	}
	if n.Kind == TextNode {
		return h.Text(n.Text)
	}
	parts := make([]h.H, 0, len(n.Attrs)+len(n.Handlers)+len(n.Children))
	for _, a := range n.Attrs {
		parts = append(parts, h.Attr(a.Key, a.Val))
	}
	if bind != nil {
		for _, hd := range n.Handlers {
			if attr := bind(hd.Event, hd.Msg); attr != nil {
				parts = append(parts, attr)
			}
		}
	}
	for _, c := range n.Children {
		if r := renderNode(c, bind); r != nil {
			parts = append(parts, r)
		}
	}
	return h.El(n.Tag, parts...)
}

// String renders forest as HTML without handlers.
func String(forest []*Node) string {
	var b bytes.Buffer
	if err := Render(forest, nil).Render(&b); err != nil {
		return ""
	}
	return b.String()
}
