package vdom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Template is a parsed, immutable HTML fragment. Nodes hands out copies that
// callers may patch freely.
type Template struct {
	src    string
	forest []*Node
}

// NewTemplate parses src as the contents of a <body> element.
func NewTemplate(src string) (*Template, error) {
	forest, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return &Template{src: src, forest: forest}, nil
}

// Source returns the text the template was parsed from.
func (t *Template) Source() string { return t.src }

// Nodes returns a fresh copy of the parsed forest.
func (t *Template) Nodes() []*Node {
	return CloneAll(t.forest)
}

// Parse converts an HTML fragment into a forest. Comments, doctypes and
// whitespace-only text nodes are dropped.
func Parse(src string) ([]*Node, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(src), body)
	if err != nil {
		return nil, fmt.Errorf("vdom: parse fragment: %w", err)
	}
	var forest []*Node
	for _, n := range nodes {
		if c := convert(n); c != nil {
			forest = append(forest, c)
		}
	}
	return forest, nil
}

func convert(n *html.Node) *Node {
	switch n.Type {
	case html.TextNode:
		if strings.TrimSpace(n.Data) == "" {
			return nil
		}
		return Text(n.Data)
	case html.ElementNode:
		el := &Node{Kind: ElementNode, Tag: n.Data}
		for _, a := range n.Attr {
			key := a.Key
			if a.Namespace != "" {
				key = a.Namespace + ":" + a.Key
			}
			el.Attrs = append(el.Attrs, Attr{Key: key, Val: a.Val})
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if cc := convert(c); cc != nil {
				el.Children = append(el.Children, cc)
			}
		}
		return el
	}
	return nil
}
