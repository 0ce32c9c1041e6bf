// Package viz exports recorded search trees for display: a JSON graph for
// clients, an ECharts page for the browser and coloured text for terminals.
package viz

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/jaminalder/codex-minimax/internal/domain"
	"github.com/jaminalder/codex-minimax/internal/search"
)

// ErrEmptyTree is returned when a tree holds no nodes.
var ErrEmptyTree = errors.New("empty search tree")

// GraphNode carries the attributes of one recorded node.
type GraphNode struct {
	ID     string `json:"id"`
	Depth  int    `json:"depth"`
	State  []int  `json:"state"`
	Player string `json:"player"`
	// Value is formatted so that pruning sentinels survive JSON: "+Inf", "-Inf".
	Value  string `json:"value,omitempty"`
	Best   *int   `json:"best,omitempty"`
	Pruned bool   `json:"pruned,omitempty"`
}

// GraphEdge links two node ids.
type GraphEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Graph is the JSON shape of a search tree.
type Graph struct {
	Root  string      `json:"root"`
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// NodeID renders a node key as a stable string id.
func NodeID(k search.NodeKey) string {
	return fmt.Sprintf("%d:%s:%s", k.Depth, k.State, k.Player)
}

// FormatValue prints a search value, keeping infinities readable.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// NewGraph converts t into its JSON shape.
func NewGraph(t *search.Tree) (Graph, error) {
	root, ok := t.Root()
	if !ok {
		return Graph{}, ErrEmptyTree
	}
	g := Graph{Root: NodeID(root)}
	for _, n := range t.Nodes() {
		gn := GraphNode{
			ID:     NodeID(n.Key),
			Depth:  n.Key.Depth,
			State:  []int(n.State.Clone()),
			Player: n.Key.Player.String(),
			Pruned: n.Pruned,
		}
		if n.Valued {
			gn.Value = FormatValue(n.Value)
		}
		if n.Best != domain.NoAction {
			best := int(n.Best)
			gn.Best = &best
		}
		g.Nodes = append(g.Nodes, gn)
	}
	for _, e := range t.Edges() {
		g.Edges = append(g.Edges, GraphEdge{From: NodeID(e.From), To: NodeID(e.To)})
	}
	return g, nil
}

// Label is the one-line caption of a node used by the renderers.
func Label(n search.Node) string {
	if n.Pruned {
		return fmt.Sprintf("%s pruned %s", n.Key.State, FormatValue(n.Value))
	}
	label := n.Key.State
	if n.Valued {
		label += " v=" + FormatValue(n.Value)
	}
	if n.Best != domain.NoAction {
		label += fmt.Sprintf(" best=%d", n.Best)
	}
	return label
}
