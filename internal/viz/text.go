package viz

import (
	"fmt"
	"io"
	"strings"

	"github.com/logrusorgru/aurora"

	"github.com/jaminalder/codex-minimax/internal/domain"
	"github.com/jaminalder/codex-minimax/internal/search"
)

// WriteText prints t as an indented outline down to maxDepth plies below
// the root (maxDepth < 0 prints everything). Max nodes are green, Min
// nodes red, pruned nodes yellow when color is on.
func WriteText(w io.Writer, t *search.Tree, maxDepth int, color bool) error {
	root, ok := t.Root()
	if !ok {
		return ErrEmptyTree
	}
	au := aurora.NewAurora(color)
	return writeNode(w, au, t, root, maxDepth)
}

func writeNode(w io.Writer, au aurora.Aurora, t *search.Tree, key search.NodeKey, maxDepth int) error {
	n, _ := t.Node(key)
	var label aurora.Value
	switch {
	case n.Pruned:
		label = au.Yellow(Label(n))
	case n.Key.Player == domain.Max:
		label = au.Green(Label(n))
	default:
		label = au.Red(Label(n))
	}
	if _, err := fmt.Fprintf(w, "%s%s %s\n", strings.Repeat("  ", n.Key.Depth), marker(n.Key.Player), label); err != nil {
		return err
	}
	if maxDepth >= 0 && n.Key.Depth >= maxDepth {
		return nil
	}
	for _, c := range t.Children(key) {
		if err := writeNode(w, au, t, c, maxDepth); err != nil {
			return err
		}
	}
	return nil
}

// marker draws Max nodes as an upward and Min nodes as a downward triangle.
func marker(p domain.Player) string {
	if p == domain.Max {
		return "^"
	}
	return "v"
}

// GridBoard renders a Tic-Tac-Toe board with row/column hints.
func GridBoard(s domain.State, color bool) string {
	au := aurora.NewAurora(color)
	var b strings.Builder
	b.WriteString("    0   1   2\n")
	for r := 0; r < 3; r++ {
		fmt.Fprintf(&b, "%d   ", r)
		for c := 0; c < 3; c++ {
			switch v := s[r*3+c]; v {
			case domain.X:
				b.WriteString(au.Green("X").String())
			case domain.O:
				b.WriteString(au.Red("O").String())
			default:
				b.WriteString(au.Faint(".").String())
			}
			if c < 2 {
				b.WriteString(" | ")
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// PileLine renders the remaining stones, front first.
func PileLine(s domain.State, color bool) string {
	au := aurora.NewAurora(color)
	parts := make([]string, len(s))
	for i, v := range s {
		if i < domain.MaxTake {
			parts[i] = au.Bold(au.Cyan(v)).String()
		} else {
			parts[i] = au.Blue(v).String()
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}
