package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/jaminalder/codex-minimax/internal/app"
	"github.com/jaminalder/codex-minimax/internal/domain"
	"github.com/jaminalder/codex-minimax/internal/viz"
)

const maxFormBytes = 64 << 10

type handlers struct {
	svc       *app.Service
	tpl       *templates
	log       zerolog.Logger
	heartbeat time.Duration
	origins   []string
}

func (h *handlers) renderBoard(gs app.GameState, errMsg string) []byte {
	return renderTemplate(h.tpl.board, "", newBoardData(gs, errMsg))
}

func (h *handlers) index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(renderTemplate(h.tpl.index, "base", nil))
}

func (h *handlers) create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	kind := app.KindGrid
	if v := r.Form.Get("kind"); v != "" {
		k, err := app.ParseKind(v)
		if err != nil {
			http.Error(w, "unknown game kind", http.StatusBadRequest)
			return
		}
		kind = k
	}
	o := app.CreateOptions{ComputerFirst: r.Form.Get("computer_first") != ""}
	if v := strings.TrimSpace(r.Form.Get("stones")); v != "" && kind == app.KindPile {
		pile, err := parseStones(v, h.svc.PileLimit())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		o.Pile = pile
	}
	if v := r.Form.Get("sticks"); v != "" && kind == app.KindNim {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "sticks must be a positive number", http.StatusBadRequest)
			return
		}
		o.Sticks = n
	}
	gs, err := h.svc.CreateGame(kind, o)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidMove) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Str("kind", string(kind)).Msg("create game")
		http.Error(w, "failed to create", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/game/"+gs.ID, http.StatusSeeOther)
}

// parseStones reads a comma separated pile such as "3, 1, 4" of at most
// limit stones.
func parseStones(v string, limit int) (domain.State, error) {
	var pile domain.State
	for _, f := range strings.Split(v, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if len(pile) == limit {
			return nil, fmt.Errorf("at most %d stones", limit)
		}
		n, err := strconv.Atoi(f)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("bad stone %q", f)
		}
		pile = append(pile, n)
	}
	return pile, nil
}

func (h *handlers) view(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	// ensure cookie and auto-claim seat
	pid := ensurePlayerCookie(w, r)
	_, _, _ = h.svc.Join(id, pid)

	gs, ok := h.svc.Get(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	data := struct {
		ID    string
		Board boardData
	}{ID: gs.ID, Board: newBoardData(*gs, "")}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	// Render page with embedded board container
	_, _ = w.Write(renderTemplate(h.tpl.game, "base", data))
}

func (h *handlers) join(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	pid := ensurePlayerCookie(w, r)
	_, gs, err := h.svc.Join(id, pid)
	if err != nil || gs == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(h.renderBoard(*gs, ""))
}

// action reads the move of a play request: r and c address a grid cell,
// a names the action directly.
func action(r *http.Request) (domain.Action, error) {
	if rs, cs := r.Form.Get("r"), r.Form.Get("c"); rs != "" || cs != "" {
		ri, err1 := strconv.Atoi(rs)
		ci, err2 := strconv.Atoi(cs)
		if err1 != nil || err2 != nil {
			return domain.NoAction, domain.ErrInvalidMove
		}
		return domain.Grid{}.Index(ri, ci)
	}
	a, err := strconv.Atoi(r.Form.Get("a"))
	if err != nil {
		return domain.NoAction, domain.ErrInvalidMove
	}
	return domain.Action(a), nil
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, app.ErrNotYourTurn):
		return "Not your turn"
	case errors.Is(err, app.ErrNotAPlayer):
		return "You are a spectator"
	case errors.Is(err, app.ErrCannotShuffle):
		return "The pile can only be shuffled before the first move"
	case errors.Is(err, domain.ErrOccupied):
		return "Cell is occupied"
	case errors.Is(err, domain.ErrOutOfBounds):
		return "Out of bounds"
	case errors.Is(err, domain.ErrGameOver):
		return "Game is over"
	case errors.Is(err, domain.ErrContractViolation):
		return "The computer could not move"
	default:
		return "Invalid move"
	}
}

func (h *handlers) play(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	pid := ensurePlayerCookie(w, r)
	_ = r.ParseForm()
	var gs *app.GameState
	a, err := action(r)
	if err == nil {
		gs, err = h.svc.Play(id, pid, a)
	}
	var errMsg string
	if err != nil {
		if gs == nil {
			if g, ok := h.svc.Get(id); ok {
				gs = g
			}
		}
		errMsg = errorMessage(err)
		h.log.Debug().Err(err).Str("game", id).Msg("play rejected")
	}
	if gs == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(h.renderBoard(*gs, errMsg))
}

func (h *handlers) shuffle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	pid := ensurePlayerCookie(w, r)
	gs, err := h.svc.Shuffle(id, pid)
	var errMsg string
	if err != nil {
		if errors.Is(err, app.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		gs, _ = h.svc.Get(id)
		errMsg = errorMessage(err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(h.renderBoard(*gs, errMsg))
}

func (h *handlers) events(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	// In tests or non-EventSource requests, just acknowledge headers and return
	if r.Header.Get("Accept") != "text/event-stream" {
		w.WriteHeader(http.StatusOK)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		w.WriteHeader(http.StatusOK)
		return
	}
	ctx := r.Context()
	ch, _ := h.svc.Subscribe(ctx, id)
	// heartbeat ticker
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	// Initial flush of headers
	flusher.Flush()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = io.WriteString(w, ": ping\n\n")
			flusher.Flush()
		case b, ok := <-ch:
			if !ok {
				return
			}
			// Emit board event; SSE data lines cannot carry raw newlines
			_, _ = fmt.Fprintf(w, "event: board\n")
			for _, line := range strings.Split(string(b), "\n") {
				_, _ = fmt.Fprintf(w, "data: %s\n", line)
			}
			_, _ = io.WriteString(w, "\n")
			flusher.Flush()
		}
	}
}

// ws streams the same board fragments as events over a websocket.
func (h *handlers) ws(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	gs, ok := h.svc.Get(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		h.log.Warn().Err(err).Str("game", id).Msg("websocket accept")
		return
	}
	defer c.Close(websocket.StatusInternalError, "unexpected close")

	// The client only listens; CloseRead handles its control frames.
	ctx := c.CloseRead(r.Context())
	ch, unsub := h.svc.Subscribe(ctx, id)
	defer unsub()

	if err := c.Write(ctx, websocket.MessageText, h.renderBoard(*gs, "")); err != nil {
		return
	}
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.Close(websocket.StatusNormalClosure, "")
			return
		case <-ticker.C:
			if err := c.Ping(ctx); err != nil {
				return
			}
		case b, ok := <-ch:
			if !ok {
				c.Close(websocket.StatusPolicyViolation, "subscriber too slow")
				return
			}
			if err := c.Write(ctx, websocket.MessageText, b); err != nil {
				h.log.Debug().Err(err).Str("game", id).Msg("websocket write")
				return
			}
		}
	}
}

func (h *handlers) treeHTML(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, ok := h.svc.Tree(id)
	if !ok {
		http.Error(w, "no search recorded yet", http.StatusNotFound)
		return
	}
	limit := viz.DefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := viz.RenderTree(w, t, "search "+id, limit); err != nil {
		h.log.Error().Err(err).Str("game", id).Msg("render tree")
	}
}

func (h *handlers) treeJSON(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, ok := h.svc.Tree(id)
	if !ok {
		http.Error(w, "no search recorded yet", http.StatusNotFound)
		return
	}
	g, err := viz.NewGraph(t)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(g); err != nil {
		h.log.Error().Err(err).Str("game", id).Msg("encode tree")
	}
}

func health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"ok":true}`)
}
