package model

import "github.com/rotisserie/eris"

// ErrMalformedLevels is returned when the level sequence of an item list
// cannot describe a tree.
var ErrMalformedLevels = eris.New("model: malformed item levels")

// Node is an item together with the indexes of its immediate children.
type Node struct {
	Index    int
	Parent   int // -1 for roots
	Children []int
}

// Tree is the explicit parent/child structure implied by item levels.
type Tree struct {
	Nodes []Node
	Roots []int
}

// BuildTree derives the tree once from the level sequence. An item at level
// L+1 directly after an item at level L, up to the next item at level <= L,
// is its child. The first item must be at level 0 and no item may be more
// than one level deeper than its predecessor.
func BuildTree(items []*EstimateItem) (*Tree, error) {
	t := &Tree{Nodes: make([]Node, len(items))}
	// stack[l] is the index of the open item at level l.
	stack := make([]int, 0, 4)
	for i, it := range items {
		if it.Level < 0 {
			return nil, eris.Wrapf(ErrMalformedLevels, "item %d (%s) has negative level %d", i, it.Name, it.Level)
		}
		if it.Level > len(stack) {
			return nil, eris.Wrapf(ErrMalformedLevels, "item %d (%s) jumps to level %d after level %d", i, it.Name, it.Level, len(stack)-1)
		}
		stack = stack[:it.Level]
		t.Nodes[i] = Node{Index: i, Parent: -1}
		if it.Level == 0 {
			t.Roots = append(t.Roots, i)
		} else {
			parent := stack[it.Level-1]
			t.Nodes[i].Parent = parent
			t.Nodes[parent].Children = append(t.Nodes[parent].Children, i)
		}
		stack = append(stack, i)
	}
	return t, nil
}

// IsLeaf reports whether node i has no children.
func (t *Tree) IsLeaf(i int) bool {
	return len(t.Nodes[i].Children) == 0
}

// RootOf returns the index of the level-0 ancestor of node i.
func (t *Tree) RootOf(i int) int {
	for t.Nodes[i].Parent >= 0 {
		i = t.Nodes[i].Parent
	}
	return i
}
