package cbz

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

// Node is one element of an archive tree: a directory with children or a
// leaf with a byte size. The root node has an empty Path.
type Node struct {
	Name     string
	Path     string
	Dir      bool
	Size     int64
	Children []*Node
}

// Walk visits n and its descendants depth-first, parents before children,
// children in name order. Returning false from fn skips the subtree.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

func (n *Node) child(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// treeBuilder assembles a Node tree from flat slash paths, synthesizing
// missing ancestor directories.
type treeBuilder struct {
	root *Node
}

func newTreeBuilder() *treeBuilder {
	return &treeBuilder{root: &Node{Dir: true}}
}

// dir returns the directory node for p, creating it and its ancestors.
func (b *treeBuilder) dir(p string) (*Node, error) {
	cur := b.root
	if p == "" || p == "." {
		return cur, nil
	}
	for _, seg := range strings.Split(p, "/") {
		next := cur.child(seg)
		switch {
		case next == nil:
			next = &Node{Name: seg, Path: path.Join(cur.Path, seg), Dir: true}
			cur.Children = append(cur.Children, next)
		case !next.Dir:
			return nil, fmt.Errorf("%s is both a file and a directory", next.Path)
		}
		cur = next
	}
	return cur, nil
}

// leaf adds a leaf at p. A duplicate leaf path keeps the later size, the
// same entry archive/zip resolves when opening by name.
func (b *treeBuilder) leaf(p string, size int64) (*Node, error) {
	parent, err := b.dir(path.Dir(p))
	if err != nil {
		return nil, err
	}
	name := path.Base(p)
	if n := parent.child(name); n != nil {
		if n.Dir {
			return nil, fmt.Errorf("%s is both a file and a directory", p)
		}
		n.Size = size
		return n, nil
	}
	n := &Node{Name: name, Path: p, Size: size}
	parent.Children = append(parent.Children, n)
	return n, nil
}

func (b *treeBuilder) build() *Node {
	sortTree(b.root)
	return b.root
}

func sortTree(n *Node) {
	sort.Slice(n.Children, func(i, j int) bool {
		return n.Children[i].Name < n.Children[j].Name
	})
	for _, c := range n.Children {
		sortTree(c)
	}
}
