// Package tree gives a FileIndex an explicit tree shape: a lookup table from
// path to node with non-owning parent references, copy-on-write updates and
// helpers to carry UI state across rebuilds.
package tree

import (
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/mattsolo1/grove-mdpad/pkg/models"
)

type ref struct {
	node   *models.Node
	parent string // empty for top-level entries
	depth  int
}

// Tree is an immutable snapshot of a FileIndex rooted at a directory.
type Tree struct {
	root  string
	index models.FileIndex
	refs  map[string]ref
}

// New indexes every node under root. The index is not copied; callers must
// treat it as immutable from here on.
func New(root string, index models.FileIndex) *Tree {
	if index == nil {
		index = models.FileIndex{}
	}
	t := &Tree{
		root:  root,
		index: index,
		refs:  make(map[string]ref),
	}
	t.register(index, "", 0)
	return t
}

func (t *Tree) register(index models.FileIndex, parent string, depth int) {
	for path, n := range index {
		t.refs[path] = ref{node: n, parent: parent, depth: depth}
		if n.IsFolder() {
			t.register(n.Files, path, depth+1)
		}
	}
}

// Root returns the directory the tree is rooted at.
func (t *Tree) Root() string { return t.root }

// Index returns the top-level index.
func (t *Tree) Index() models.FileIndex { return t.index }

// Len returns the number of nodes at every depth.
func (t *Tree) Len() int { return len(t.refs) }

// Lookup finds a node anywhere in the tree.
func (t *Tree) Lookup(path string) (*models.Node, bool) {
	r, ok := t.refs[path]
	if !ok {
		return nil, false
	}
	return r.node, true
}

// Depth returns how many folders separate path from the root.
func (t *Tree) Depth(path string) int {
	return t.refs[path].depth
}

// Parent returns the containing folder of path, or nil for top-level entries.
func (t *Tree) Parent(path string) *models.Node {
	r, ok := t.refs[path]
	if !ok || r.parent == "" {
		return nil
	}
	return t.refs[r.parent].node
}

// Ancestors lists the folders containing path, outermost first.
func (t *Tree) Ancestors(path string) []string {
	var chain []string
	r, ok := t.refs[path]
	for ok && r.parent != "" {
		chain = append(chain, r.parent)
		r, ok = t.refs[r.parent]
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// Upsert replaces the node at node.Path, or inserts it into its parent folder.
// Only the folders on the way to the node are copied; everything else is
// shared with t. When the parent folder is not part of the tree, t is
// returned unchanged with false.
func (t *Tree) Upsert(node *models.Node) (*Tree, bool) {
	var chain []string
	switch {
	case t.has(node.Path):
		chain = t.Ancestors(node.Path)
	case node.ParentDir == t.root:
	case t.isFolder(node.ParentDir):
		chain = append(t.Ancestors(node.ParentDir), node.ParentDir)
	default:
		return t, false
	}

	index, container := t.copyChain(chain)
	container[node.Path] = node
	return New(t.root, index), true
}

// Remove drops path and its subtree. Missing paths return t unchanged with false.
func (t *Tree) Remove(path string) (*Tree, bool) {
	if !t.has(path) {
		return t, false
	}
	index, container := t.copyChain(t.Ancestors(path))
	delete(container, path)
	return New(t.root, index), true
}

// Update applies fn to a copy of the node at path and stores the result.
func (t *Tree) Update(path string, fn func(*models.Node)) (*Tree, bool) {
	n, ok := t.Lookup(path)
	if !ok {
		return t, false
	}
	c := n.Clone()
	fn(c)
	return t.Upsert(c)
}

func (t *Tree) has(path string) bool {
	_, ok := t.refs[path]
	return ok
}

func (t *Tree) isFolder(path string) bool {
	n, ok := t.Lookup(path)
	return ok && n.IsFolder()
}

// copyChain copies the top-level index and every folder along chain, returning
// the new index and the Files map of the innermost folder.
func (t *Tree) copyChain(chain []string) (models.FileIndex, models.FileIndex) {
	index := t.index.Clone()
	container := index
	for _, dir := range chain {
		folder := container[dir].Clone()
		if folder.Files == nil {
			folder.Files = models.FileIndex{}
		}
		container[dir] = folder
		container = folder.Files
	}
	return index, container
}

// MergeOpen carries the Open flag of folders in old onto fresh. Folders only in
// fresh keep their default; entries only in old are dropped. fresh is not
// modified.
func MergeOpen(old, fresh models.FileIndex) models.FileIndex {
	merged := make(models.FileIndex, len(fresh))
	for path, n := range fresh {
		prev, ok := old[path]
		if !n.IsFolder() || !ok || !prev.IsFolder() {
			merged[path] = n
			continue
		}
		c := n.Clone()
		c.Open = prev.Open
		c.Files = MergeOpen(prev.Files, n.Files)
		merged[path] = c
	}
	return merged
}

// Row is one line of the flattened directory listing.
type Row struct {
	Node  *models.Node
	Depth int
}

// Rows flattens the index into the visible listing: children of closed
// folders are hidden.
func Rows(index models.FileIndex) []Row {
	return flatten(index, 0, false)
}

// AllRows flattens the index ignoring the Open flags.
func AllRows(index models.FileIndex) []Row {
	return flatten(index, 0, true)
}

func flatten(index models.FileIndex, depth int, all bool) []Row {
	var rows []Row
	for _, n := range Sorted(index) {
		rows = append(rows, Row{Node: n, Depth: depth})
		if n.IsFolder() && (n.Open || all) {
			rows = append(rows, flatten(n.Files, depth+1, all)...)
		}
	}
	return rows
}

// Sorted returns the direct entries of index, folders first, then by name.
func Sorted(index models.FileIndex) []*models.Node {
	nodes := lo.Values(map[string]*models.Node(index))
	sort.Slice(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if a.IsDirectory != b.IsDirectory {
			return a.IsDirectory
		}
		an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
		if an != bn {
			return an < bn
		}
		return a.Path < b.Path
	})
	return nodes
}

// Walk visits every node depth-first in listing order. Returning an error stops the walk.
func Walk(index models.FileIndex, fn func(*models.Node) error) error {
	for _, n := range Sorted(index) {
		if err := fn(n); err != nil {
			return err
		}
		if n.IsFolder() {
			if err := Walk(n.Files, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Files returns every file node in the index, flattened.
func Files(index models.FileIndex) []*models.Node {
	return lo.FilterMap(flatten(index, 0, true), func(r Row, _ int) (*models.Node, bool) {
		return r.Node, !r.Node.IsFolder()
	})
}
