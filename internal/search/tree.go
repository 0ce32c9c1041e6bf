package search

import (
	"math"

	"github.com/jaminalder/codex-minimax/internal/domain"
)

// NodeKey identifies a searched state. The same state reached at the same
// depth with the same player to move shares one node.
type NodeKey struct {
	Depth  int
	State  string
	Player domain.Player
}

// Node is one recorded state of a search.
type Node struct {
	Key   NodeKey
	State domain.State
	// Value is the differential still to be collected from this node to
	// the end of the game, from Max's point of view. Scores taken before
	// the node was reached are not included, so two paths into the same
	// key agree on it.
	Value  float64
	Valued bool
	// Best is NoAction until the node's children have been backed up.
	Best domain.Action
	// Pruned nodes were never explored; Value holds +Inf or -Inf.
	Pruned bool
}

// Edge links a node to one of its successors.
type Edge struct {
	From NodeKey
	To   NodeKey
}

// Tree records the states visited by one search. It is not safe for
// concurrent use.
type Tree struct {
	nodes    map[NodeKey]*Node
	order    []NodeKey
	children map[NodeKey][]NodeKey
	edges    map[Edge]struct{}
	edgeList []Edge
}

// NewTree returns an empty recorder.
func NewTree() *Tree {
	return &Tree{
		nodes:    make(map[NodeKey]*Node),
		children: make(map[NodeKey][]NodeKey),
		edges:    make(map[Edge]struct{}),
	}
}

// AddNode registers s at depth with p to move. It reports whether the node
// is new; re-adding an existing key changes nothing.
func (t *Tree) AddNode(depth int, s domain.State, p domain.Player) (NodeKey, bool) {
	key := NodeKey{Depth: depth, State: s.Key(), Player: p}
	if _, ok := t.nodes[key]; ok {
		return key, false
	}
	t.nodes[key] = &Node{Key: key, State: s.Clone(), Best: domain.NoAction}
	t.order = append(t.order, key)
	return key, true
}

// AddEdge links parent to child once; both must have been added.
func (t *Tree) AddEdge(parent, child NodeKey) {
	e := Edge{From: parent, To: child}
	if _, ok := t.edges[e]; ok {
		return
	}
	t.edges[e] = struct{}{}
	t.edgeList = append(t.edgeList, e)
	t.children[parent] = append(t.children[parent], child)
}

// SetValue overwrites the backed-up value of key. A node that gets a real
// value has been explored, so it no longer counts as pruned.
func (t *Tree) SetValue(key NodeKey, v float64) {
	if n, ok := t.nodes[key]; ok {
		n.Value, n.Valued = v, true
		n.Pruned = false
	}
}

// SetBestMove overwrites the best action of key.
func (t *Tree) SetBestMove(key NodeKey, a domain.Action) {
	if n, ok := t.nodes[key]; ok {
		n.Best = a
	}
}

// MarkPruned flags key as skipped by a cutoff and stores the sentinel
// (+Inf or -Inf) as its value. The sentinel is display-only.
func (t *Tree) MarkPruned(key NodeKey, sentinel float64) {
	if n, ok := t.nodes[key]; ok {
		n.Pruned = true
		n.Value, n.Valued = sentinel, true
	}
}

// Node returns a copy of the node stored under key.
func (t *Tree) Node(key NodeKey) (Node, bool) {
	n, ok := t.nodes[key]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Nodes returns copies of all nodes in insertion order.
func (t *Tree) Nodes() []Node {
	out := make([]Node, 0, len(t.order))
	for _, k := range t.order {
		out = append(out, *t.nodes[k])
	}
	return out
}

// Edges returns all edges in insertion order.
func (t *Tree) Edges() []Edge {
	return append([]Edge(nil), t.edgeList...)
}

// Children returns the successors of key in the order they were linked.
func (t *Tree) Children(key NodeKey) []NodeKey {
	return append([]NodeKey(nil), t.children[key]...)
}

// Root returns the first node added, which is the searched state.
func (t *Tree) Root() (NodeKey, bool) {
	if len(t.order) == 0 {
		return NodeKey{}, false
	}
	return t.order[0], true
}

// Len returns the number of recorded nodes.
func (t *Tree) Len() int { return len(t.order) }

// Sentinel returns the value marking a branch pruned below a node where p
// was to move: +Inf under Max, -Inf under Min.
func Sentinel(p domain.Player) float64 {
	if p == domain.Max {
		return math.Inf(1)
	}
	return math.Inf(-1)
}
