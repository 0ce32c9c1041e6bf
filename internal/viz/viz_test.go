package viz

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jaminalder/codex-minimax/internal/domain"
	"github.com/jaminalder/codex-minimax/internal/search"
)

func pileTree(t *testing.T) *search.Tree {
	t.Helper()
	d, err := search.New(domain.Pile{}).BestMove(domain.State{3, 1}, domain.Max)
	require.NoError(t, err)
	return d.Tree
}

func TestNewGraph(t *testing.T) {
	g, err := NewGraph(pileTree(t))
	require.NoError(t, err)
	require.Equal(t, "0:(3, 1):Max", g.Root)
	// (3,1) -> (1) -> () and (3,1) -> ()
	require.Len(t, g.Nodes, 4)
	require.Len(t, g.Edges, 3)

	root := g.Nodes[0]
	require.Equal(t, []int{3, 1}, root.State)
	require.Equal(t, "4", root.Value)
	require.NotNil(t, root.Best)
	require.Equal(t, 2, *root.Best)

	b, err := json.Marshal(g)
	require.NoError(t, err)
	require.Contains(t, string(b), `"player":"Min"`)
}

func TestGraphKeepsSentinels(t *testing.T) {
	d, err := search.New(domain.Grid{}).BestMove(domain.NewGrid(), domain.Max)
	require.NoError(t, err)
	g, err := NewGraph(d.Tree)
	require.NoError(t, err)
	found := false
	for _, n := range g.Nodes {
		if n.Pruned {
			found = true
			require.Contains(t, []string{"+Inf", "-Inf"}, n.Value)
		}
	}
	require.True(t, found)
	_, err = json.Marshal(g)
	require.NoError(t, err)
}

func TestEmptyTree(t *testing.T) {
	_, err := NewGraph(search.NewTree())
	require.ErrorIs(t, err, ErrEmptyTree)
	require.ErrorIs(t, RenderTree(&bytes.Buffer{}, search.NewTree(), "x", 0), ErrEmptyTree)
	require.ErrorIs(t, WriteText(&bytes.Buffer{}, search.NewTree(), -1, false), ErrEmptyTree)
}

func TestFormatValue(t *testing.T) {
	require.Equal(t, "+Inf", FormatValue(math.Inf(1)))
	require.Equal(t, "-Inf", FormatValue(math.Inf(-1)))
	require.Equal(t, "-1", FormatValue(-1))
	require.Equal(t, "0.5", FormatValue(0.5))
}

func TestRenderTreePage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderTree(&buf, pileTree(t), "pile (3, 1)", 0))
	html := buf.String()
	require.Contains(t, html, "echarts")
	require.Contains(t, html, "(3, 1) v=4 best=2")
}

func TestWriteTextOutline(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, pileTree(t), -1, false))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	require.Equal(t, "^ (3, 1) v=4 best=2", lines[0])
	require.Equal(t, "  v (1) v=-1 best=1", lines[1])
	require.Equal(t, "    ^ () v=0", lines[2])
	require.Equal(t, "  v () v=0", lines[3])

	buf.Reset()
	require.NoError(t, WriteText(&buf, pileTree(t), 0, false))
	require.Equal(t, "^ (3, 1) v=4 best=2\n", buf.String())
}

func TestGridBoardPlain(t *testing.T) {
	got := GridBoard(domain.State{1, 0, -1, 0, 1, 0, 0, 0, -1}, false)
	want := "    0   1   2\n" +
		"0   X | . | O\n" +
		"1   . | X | .\n" +
		"2   . | . | O\n"
	require.Equal(t, want, got)
}

func TestPileLinePlain(t *testing.T) {
	require.Equal(t, "[3 1 4 1]", PileLine(domain.State{3, 1, 4, 1}, false))
	require.Equal(t, "[]", PileLine(domain.State{}, false))
}
