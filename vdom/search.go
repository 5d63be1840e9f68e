package vdom

// Path addresses a node in a forest: the index in the forest, then the child
// index at each level below it.
type Path []int

// FindByID walks forest depth-first in document order and returns the path of
// the first element whose id attribute equals id. Text nodes never match and
// the subtree of a match is not searched.
func FindByID(id string, forest []*Node) (Path, bool) {
	return findByID(id, forest, nil)
}

func findByID(id string, nodes []*Node, prefix Path) (Path, bool) {
	for i, n := range nodes {
		if !n.IsElement() {
			continue
		}
		if v, ok := n.Attr("id"); ok && v == id {
			return append(prefix[:len(prefix):len(prefix)], i), true
		}
		if p, ok := findByID(id, n.Children, append(prefix[:len(prefix):len(prefix)], i)); ok {
			return p, true
		}
	}
	return nil, false
}

// At resolves path against forest. It returns nil if any index is out of range.
func At(forest []*Node, path Path) *Node {
	if len(path) == 0 {
		return nil
	}
	var n *Node
	nodes := forest
	for _, i := range path {
		if i < 0 || i >= len(nodes) {
			return nil
		}
		n = nodes[i]
		nodes = n.Children
	}
	return n
}

// UpdateByID calls fn on the first element in forest whose id equals id and
// reports whether one was found. When nothing matches, fn is not called and
// forest is left as it was.
func UpdateByID(id string, forest []*Node, fn func(*Node)) bool {
	p, ok := FindByID(id, forest)
	if !ok {
		return false
	}
	fn(At(forest, p))
	return true
}
