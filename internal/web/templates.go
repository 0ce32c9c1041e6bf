package web

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/jaminalder/codex-minimax/internal/app"
	"github.com/jaminalder/codex-minimax/internal/domain"
	"github.com/jaminalder/codex-minimax/internal/viz"
)

type templates struct {
	base  *template.Template
	game  *template.Template
	board *template.Template
	index *template.Template
}

func funcs() template.FuncMap {
	return template.FuncMap{
		"iter": func(n int) []int {
			a := make([]int, n)
			for i := range a {
				a[i] = i
			}
			return a
		},
		"cellSymbol": func(c int) string {
			if c == domain.Empty {
				return ""
			}
			return domain.Symbol(c)
		},
		"eq":    func(a, b any) bool { return a == b },
		"add":   func(a, b int) int { return a + b },
		"mul":   func(a, b int) int { return a * b },
		"value": viz.FormatValue,
	}
}

func loadTemplates() *templates {
	base := template.Must(template.New("base").Funcs(funcs()).Parse(`<!doctype html><html><head>
<meta charset="utf-8"/>
<script src="https://unpkg.com/htmx.org@1.9.12"></script>
<script src="https://unpkg.com/htmx.org/dist/ext/sse.js"></script>
</head><body>{{template "content" .}}</body></html>`))
	// Define the board template within the same set so game can include it
	template.Must(base.New("board").Funcs(funcs()).Parse(boardTemplate))
	index := template.Must(template.Must(base.Clone()).New("content").Parse(indexTemplate))
	game := template.Must(template.Must(base.Clone()).New("content").Parse(`
<div hx-ext="sse" hx-sse="connect:/game/{{.ID}}/events">
  <div id="board" hx-sse="swap:board">{{template "board" .Board}}</div>
</div>
<p><a href="/game/{{.ID}}/tree">search tree</a> · <a href="/game/{{.ID}}/tree.json">json</a></p>`))
	// Standalone board template used for fragment rendering
	board := template.Must(template.New("board_only").Funcs(funcs()).Parse(boardTemplate))
	return &templates{base: base, game: game, board: board, index: index}
}

func renderTemplate(t *template.Template, name string, data any) []byte {
	var buf bytes.Buffer
	if name == "" {
		_ = t.Execute(&buf, data)
	} else {
		_ = t.ExecuteTemplate(&buf, name, data)
	}
	return buf.Bytes()
}

const indexTemplate = `<h1>Minimax</h1>
<form action="/game" method="post">
  <select name="kind">
    <option value="grid">Tic-Tac-Toe</option>
    <option value="pile">Stone pile</option>
    <option value="nim">Nim (Lua)</option>
  </select>
  <label><input type="checkbox" name="computer_first"> computer opens</label>
  <input type="text" name="stones" placeholder="stones, e.g. 3,1,4">
  <input type="number" name="sticks" min="1" placeholder="sticks">
  <button>Create</button>
</form>`

const boardTemplate = `
<div id="board">
  {{if .Error}}
  <div class="alert">{{.Error}}</div>
  {{end}}
  <div class="status">{{.Status}}</div>
  {{if eq .Kind "grid"}}
  {{/* 3x3 grid */}}
  {{range $r := iter 3}}
  <div class="row">
    {{range $c := iter 3}}
      <form hx-post="/game/{{$.ID}}/play" hx-target="#board" hx-swap="outerHTML" method="post">
        <input type="hidden" name="r" value="{{$r}}">
        <input type="hidden" name="c" value="{{$c}}">
        <button type="submit">{{cellSymbol (index $.Cells (add (mul $r 3) $c))}}</button>
      </form>
    {{end}}
  </div>
  {{end}}
  {{else}}
  {{if eq .Kind "nim"}}
  <div class="heap">{{.Sticks}} sticks left</div>
  {{else}}
  <div class="pile">{{range .Pile}}<span class="stone">{{.}}</span> {{end}}</div>
  <div class="scores">you {{.HumanScore}} · computer {{.ComputerScore}}</div>
  {{if .Shuffle}}
  <form hx-post="/game/{{.ID}}/shuffle" hx-target="#board" hx-swap="outerHTML" method="post"><button type="submit">Shuffle</button></form>
  {{end}}
  {{end}}
  {{range .Actions}}
  <form hx-post="/game/{{$.ID}}/play" hx-target="#board" hx-swap="outerHTML" method="post">
    <input type="hidden" name="a" value="{{.}}">
    <button type="submit">Take {{.}}</button>
  </form>
  {{end}}
  {{end}}
  {{with .Search}}
  <div class="search">computer played {{.Move}} (value {{value .Value}}{{if not .Exact}}, estimate{{end}}, {{.Stats.Nodes}} nodes, {{.Stats.Cutoffs}} cutoffs)</div>
  {{end}}
</div>
`

// boardData is the view model of the board fragment.
type boardData struct {
	ID            string
	Kind          string
	Status        string
	Error         string
	Cells         []int
	Pile          []int
	Sticks        int
	Actions       []int
	HumanScore    int
	ComputerScore int
	Shuffle       bool
	Search        *app.SearchSummary
}

func newBoardData(gs app.GameState, errMsg string) boardData {
	m := gs.Match
	d := boardData{
		ID:            gs.ID,
		Kind:          string(gs.Kind),
		Status:        status(gs),
		Error:         errMsg,
		HumanScore:    m.Score(gs.Human),
		ComputerScore: m.Score(gs.Human.Opponent()),
		Search:        gs.Search,
	}
	switch gs.Kind {
	case app.KindGrid:
		d.Cells = []int(m.State.Clone())
	case app.KindNim:
		if len(m.State) > 0 {
			d.Sticks = m.State[0]
		}
	default:
		d.Pile = []int(m.State.Clone())
		d.Shuffle = m.Moves() == 0
	}
	if gs.Kind != app.KindGrid && !m.Over() && m.ToMove() == gs.Human {
		for _, a := range m.Game.Actions(m.State) {
			d.Actions = append(d.Actions, int(a))
		}
	}
	return d
}

func status(gs app.GameState) string {
	m := gs.Match
	if !m.Over() {
		if m.ToMove() == gs.Human {
			return "Your turn"
		}
		return "Computer to move"
	}
	switch m.Winner() {
	case gs.Human:
		return "You win"
	case gs.Human.Opponent():
		return "Computer wins"
	default:
		return "Tie"
	}
}

// Helper to set cookie
func ensurePlayerCookie(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie("player_id"); err == nil && c.Value != "" {
		return c.Value
	}
	v := app.NewPlayerID()
	http.SetCookie(w, &http.Cookie{Name: "player_id", Value: v, Path: "/"})
	return v
}
