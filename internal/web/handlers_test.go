package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"github.com/jaminalder/codex-minimax/internal/app"
	"github.com/jaminalder/codex-minimax/internal/domain"
	"github.com/jaminalder/codex-minimax/internal/viz"
)

func newTestServer(t *testing.T) (*app.Service, http.Handler) {
	t.Helper()
	s := app.NewService(app.WithSeed(7))
	t.Cleanup(s.Close)
	h := NewServer(s, WithHeartbeat(time.Hour))
	return s, h
}

func postForm(h http.Handler, path string, form url.Values, pid string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if pid != "" {
		req.AddCookie(&http.Cookie{Name: "player_id", Value: pid})
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestIndexPage(t *testing.T) {
	_, h := newTestServer(t)
	req := httptest.NewRequest("GET", "/", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "<form") || !strings.Contains(body, "action=\"/game\"") {
		t.Fatalf("index should contain create form; got body: %q", body)
	}
	if !strings.Contains(body, `name="sticks"`) {
		t.Fatalf("index should accept a nim heap size")
	}
	for _, k := range app.Kinds {
		if !strings.Contains(body, "value=\""+string(k)+"\"") {
			t.Fatalf("index should offer kind %q", k)
		}
	}
}

func TestHealth(t *testing.T) {
	_, h := newTestServer(t)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "ok") {
		t.Fatalf("health: %d %q", rr.Code, rr.Body.String())
	}
}

func TestCreateRedirectsToGame(t *testing.T) {
	_, h := newTestServer(t)
	req := httptest.NewRequest("POST", "/game", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusSeeOther && rr.Code != http.StatusFound {
		t.Fatalf("expected redirect, got %d", rr.Code)
	}
	loc := rr.Result().Header.Get("Location")
	if !strings.HasPrefix(loc, "/game/") {
		t.Fatalf("expected redirect to /game/{id}, got %q", loc)
	}
}

func TestCreatePileWithStones(t *testing.T) {
	svc, h := newTestServer(t)
	rr := postForm(h, "/game", url.Values{"kind": {"pile"}, "stones": {"3, 1"}, "computer_first": {"on"}}, "")
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d: %s", rr.Code, rr.Body.String())
	}
	id := strings.TrimPrefix(rr.Result().Header.Get("Location"), "/game/")
	gs, ok := svc.Get(id)
	if !ok {
		t.Fatalf("game %q not registered", id)
	}
	if gs.Kind != app.KindPile || gs.Human != domain.Min {
		t.Fatalf("kind=%s human=%s", gs.Kind, gs.Human)
	}
	// The computer opened by taking both stones.
	if !gs.Match.Over() || gs.Match.Score(domain.Max) != 4 {
		t.Fatalf("expected finished game with Max=4, got %v score %d", gs.Match.State, gs.Match.Score(domain.Max))
	}
}

func TestCreateRejectsBadInput(t *testing.T) {
	_, h := newTestServer(t)
	cases := []url.Values{
		{"kind": {"chess"}},
		{"kind": {"pile"}, "stones": {"3,x"}},
		{"kind": {"pile"}, "stones": {"3,-1"}},
		{"kind": {"nim"}, "sticks": {"0"}},
		{"kind": {"nim"}, "sticks": {"40"}, "computer_first": {"on"}},
		{"kind": {"pile"}, "stones": {strings.Repeat("1,", 101)}, "computer_first": {"on"}},
	}
	for _, form := range cases {
		rr := postForm(h, "/game", form, "")
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%v: expected 400, got %d", form, rr.Code)
		}
	}
}

func TestParseStonesStopsAtTheLimit(t *testing.T) {
	pile, err := parseStones("3, 1,,4 ", 3)
	if err != nil || !pile.Equal(domain.State{3, 1, 4}) {
		t.Fatalf("unexpected pile %v, err %v", pile, err)
	}
	if _, err := parseStones("1,2,3,4", 3); err == nil {
		t.Fatalf("expected four stones to exceed a limit of three")
	}
	huge := strings.Repeat("1,", 10000) + "x"
	if _, err := parseStones(huge, 100); err == nil || !strings.Contains(err.Error(), "at most 100") {
		t.Fatalf("expected the limit to fire before the bad tail, got %v", err)
	}
}

func TestCreateRejectsOversizedForm(t *testing.T) {
	_, h := newTestServer(t)
	form := url.Values{"kind": {"pile"}, "stones": {strings.Repeat("1,", maxFormBytes)}}
	rr := postForm(h, "/game", form, "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestGamePageSetsCookieAndAutoClaims(t *testing.T) {
	svc, h := newTestServer(t)
	// Create a game via service to know ID
	gs, _ := svc.CreateGame(app.KindGrid, app.CreateOptions{})

	req := httptest.NewRequest("GET", "/game/"+url.PathEscape(gs.ID), nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	// Cookie set
	var playerID string
	for _, c := range rr.Result().Cookies() {
		if c.Name == "player_id" {
			playerID = c.Value
			break
		}
	}
	if playerID == "" {
		t.Fatalf("expected player_id cookie to be set")
	}
	// Auto-claimed seat
	latest, ok := svc.Get(gs.ID)
	if !ok || latest.Player != playerID {
		t.Fatalf("expected auto-claim; have %q pid=%q", latest.Player, playerID)
	}
	// SSE wiring present
	body := rr.Body.String()
	if !strings.Contains(body, "hx-ext=\"sse\"") || !strings.Contains(body, "/game/"+gs.ID+"/events") {
		t.Fatalf("expected SSE wiring in page; got body: %q", body)
	}
	if !strings.Contains(body, "Your turn") {
		t.Fatalf("expected status line in page; got body: %q", body)
	}
}

func TestGamePageNotFound(t *testing.T) {
	_, h := newTestServer(t)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/game/missing", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestJoinEndpointReturnsBoardFragment(t *testing.T) {
	svc, h := newTestServer(t)
	gs, _ := svc.CreateGame(app.KindGrid, app.CreateOptions{})
	svc.Join(gs.ID, "p1")

	rr := postForm(h, "/game/"+gs.ID+"/join", url.Values{}, "p2")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "id=\"board\"") {
		t.Fatalf("expected board fragment, got %q", rr.Body.String())
	}
	latest, _ := svc.Get(gs.ID)
	if latest.Player != "p1" {
		t.Fatalf("seat should stay with p1, got %q", latest.Player)
	}
}

func TestPlayEndpointUpdatesStateAndReturnsFragment(t *testing.T) {
	svc, h := newTestServer(t)
	gs, _ := svc.CreateGame(app.KindGrid, app.CreateOptions{})
	svc.Join(gs.ID, "p1")

	rr := postForm(h, "/game/"+gs.ID+"/play", url.Values{"r": {"1"}, "c": {"1"}}, "p1")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "id=\"board\"") || !strings.Contains(body, "computer played") {
		t.Fatalf("expected board fragment with search summary, got %q", body)
	}
	latest, _ := svc.Get(gs.ID)
	if latest.Match.Moves() != 2 {
		t.Fatalf("expected move and reply, moves=%d", latest.Match.Moves())
	}
	if latest.Match.State[4] != domain.X {
		t.Fatalf("centre not taken: %v", latest.Match.State)
	}
}

func TestPlayEndpointErrors(t *testing.T) {
	svc, h := newTestServer(t)
	gs, _ := svc.CreateGame(app.KindGrid, app.CreateOptions{})
	svc.Join(gs.ID, "p1")

	cases := []struct {
		form url.Values
		pid  string
		want string
	}{
		{url.Values{"r": {"0"}, "c": {"0"}}, "p2", "You are a spectator"},
		{url.Values{"r": {"3"}, "c": {"0"}}, "p1", "Out of bounds"},
		{url.Values{"r": {"x"}, "c": {"0"}}, "p1", "Invalid move"},
		{url.Values{"a": {"9"}}, "p1", "Out of bounds"},
		{url.Values{"a": {"-2"}}, "p1", "Out of bounds"},
	}
	for _, tc := range cases {
		rr := postForm(h, "/game/"+gs.ID+"/play", tc.form, tc.pid)
		if rr.Code != http.StatusOK {
			t.Fatalf("%v: expected 200, got %d", tc.form, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), tc.want) {
			t.Fatalf("%v: expected %q in %q", tc.form, tc.want, rr.Body.String())
		}
	}
	latest, _ := svc.Get(gs.ID)
	if latest.Match.Moves() != 0 {
		t.Fatalf("rejected moves must not change the game, moves=%d", latest.Match.Moves())
	}

	rr := postForm(h, "/game/missing/play", url.Values{"a": {"0"}}, "p1")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestPlayPileAction(t *testing.T) {
	svc, h := newTestServer(t)
	gs, _ := svc.CreateGame(app.KindPile, app.CreateOptions{Pile: domain.State{1, 5, 1, 1}})
	svc.Join(gs.ID, "p1")

	first := postForm(h, "/game/"+gs.ID+"/shuffle", url.Values{}, "p2")
	if !strings.Contains(first.Body.String(), "You are a spectator") {
		t.Fatalf("spectator shuffle: %q", first.Body.String())
	}
	rr := postForm(h, "/game/"+gs.ID+"/play", url.Values{"a": {"2"}}, "p1")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	latest, _ := svc.Get(gs.ID)
	if latest.Match.Score(domain.Max) != 6 {
		t.Fatalf("expected human score 6, got %d", latest.Match.Score(domain.Max))
	}
	if !latest.Match.Over() {
		t.Fatalf("computer should have taken the last two stones: %v", latest.Match.State)
	}
	if !strings.Contains(rr.Body.String(), "You win") {
		t.Fatalf("expected verdict in %q", rr.Body.String())
	}
}

func TestEventsEndpointSSEHeaders(t *testing.T) {
	_, h := newTestServer(t)
	// create a game via POST
	reqCreate := httptest.NewRequest("POST", "/game", nil)
	rrCreate := httptest.NewRecorder()
	h.ServeHTTP(rrCreate, reqCreate)
	loc := rrCreate.Result().Header.Get("Location")
	if loc == "" {
		t.Fatalf("missing redirect location")
	}
	// Request SSE
	req := httptest.NewRequest("GET", loc+"/events", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	ct := rr.Result().Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/event-stream") {
		io.Copy(io.Discard, rr.Result().Body)
		t.Fatalf("expected text/event-stream, got %q", ct)
	}
}

func TestTreeEndpoints(t *testing.T) {
	svc, h := newTestServer(t)
	gs, _ := svc.CreateGame(app.KindGrid, app.CreateOptions{})
	svc.Join(gs.ID, "p1")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/game/"+gs.ID+"/tree.json", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("no search yet: expected 404, got %d", rr.Code)
	}

	if _, err := svc.Play(gs.ID, "p1", 4); err != nil {
		t.Fatalf("play: %v", err)
	}
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/game/"+gs.ID+"/tree.json", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var g viz.Graph
	if err := json.Unmarshal(rr.Body.Bytes(), &g); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if g.Root == "" || len(g.Nodes) == 0 || len(g.Edges) == 0 {
		t.Fatalf("expected a populated graph, got root=%q nodes=%d edges=%d", g.Root, len(g.Nodes), len(g.Edges))
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/game/"+gs.ID+"/tree?limit=50", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "echarts") {
		t.Fatalf("expected an echarts page")
	}
}

func TestWebsocketStreamsBoard(t *testing.T) {
	svc, h := newTestServer(t)
	srv := httptest.NewServer(h)
	defer srv.Close()
	gs, _ := svc.CreateGame(app.KindGrid, app.CreateOptions{})
	svc.Join(gs.ID, "p1")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/game/"+gs.ID+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close(websocket.StatusNormalClosure, "")

	_, first, err := c.Read(ctx)
	if err != nil {
		t.Fatalf("read initial board: %v", err)
	}
	if !strings.Contains(string(first), "id=\"board\"") {
		t.Fatalf("expected board fragment, got %q", first)
	}

	if _, err := svc.Play(gs.ID, "p1", 0); err != nil {
		t.Fatalf("play: %v", err)
	}
	_, next, err := c.Read(ctx)
	if err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if !strings.Contains(string(next), "computer played") {
		t.Fatalf("expected updated board, got %q", next)
	}
}
