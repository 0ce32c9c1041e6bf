package viz

import (
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/jaminalder/codex-minimax/internal/search"
)

// DefaultLimit caps the number of nodes drawn on one page.
const DefaultLimit = 2000

// RenderTree writes an HTML page showing t as an ECharts tree. At most
// limit nodes are drawn; limit <= 0 selects DefaultLimit.
func RenderTree(w io.Writer, t *search.Tree, title string, limit int) error {
	root, ok := t.Root()
	if !ok {
		return ErrEmptyTree
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	budget := limit
	data := treeData(t, root, &budget)

	tree := charts.NewTree()
	tree.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: title,
		}),
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: title,
			Width:     "1400px",
			Height:    "900px",
		}),
	)
	tree.AddSeries("search", []opts.TreeData{*data})

	page := components.NewPage()
	page.AddCharts(tree)
	return page.Render(w)
}

func treeData(t *search.Tree, key search.NodeKey, budget *int) *opts.TreeData {
	*budget--
	n, _ := t.Node(key)
	d := &opts.TreeData{Name: Label(n)}
	for _, c := range t.Children(key) {
		if *budget <= 0 {
			break
		}
		d.Children = append(d.Children, treeData(t, c, budget))
	}
	return d
}
