// Package script runs rule sets written in Lua behind the domain.Game
// contract. A script defines four global functions:
//
//	actions(state)         -> list of actions
//	result(state, action)  -> new state, score
//	is_terminal(state)     -> boolean
//	utility(state)         -> number, from Max's point of view
//
// States are passed as Lua arrays of numbers.
package script

import (
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/jaminalder/codex-minimax/internal/domain"
)

// ErrScript wraps every failure raised by a script.
var ErrScript = errors.New("script error")

var required = []string{"actions", "result", "is_terminal", "utility"}

//go:embed scripts/*.lua
var builtins embed.FS

// Game is a domain.Game backed by a Lua VM. Calls are serialised.
//
// The contract has no error returns, so the first script failure is kept
// (see Err) and every later call treats the state as terminal so a search
// unwinds quickly.
type Game struct {
	mu   sync.Mutex
	name string
	vm   *lua.LState
	err  error
}

var _ domain.Game = (*Game)(nil)

// Load compiles src and checks that it defines the required functions.
func Load(name, src string) (*Game, error) {
	L := lua.NewState()
	if err := L.DoString(src); err != nil {
		L.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrScript, name, err)
	}
	for _, fn := range required {
		if L.GetGlobal(fn).Type() != lua.LTFunction {
			L.Close()
			return nil, fmt.Errorf("%w: %s: function %s is not defined", ErrScript, name, fn)
		}
	}
	return &Game{name: name, vm: L}, nil
}

// Builtin loads one of the embedded scripts by name, e.g. "nim".
func Builtin(name string) (*Game, error) {
	src, err := builtins.ReadFile(path.Join("scripts", name+".lua"))
	if err != nil {
		return nil, fmt.Errorf("%w: no builtin script %q", ErrScript, name)
	}
	return Load(name, string(src))
}

// Builtins lists the embedded script names.
func Builtins() []string {
	entries, _ := builtins.ReadDir("scripts")
	var out []string
	for _, e := range entries {
		out = append(out, strings.TrimSuffix(e.Name(), ".lua"))
	}
	sort.Strings(out)
	return out
}

// Name returns the name the script was loaded under.
func (g *Game) Name() string { return g.name }

// Err returns the first error raised by the script, if any.
func (g *Game) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

// Close releases the Lua VM.
func (g *Game) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.vm.Close()
}

func (g *Game) Actions(s domain.State) []domain.Action {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil
	}
	ret, err := g.call("actions", 1, g.table(s))
	if err != nil {
		g.fail(err)
		return nil
	}
	vals, err := numbers(ret[0])
	if err != nil {
		g.fail(fmt.Errorf("%w: %s: actions: %v", ErrScript, g.name, err))
		return nil
	}
	out := make([]domain.Action, len(vals))
	for i, v := range vals {
		out[i] = domain.Action(v)
	}
	return out
}

func (g *Game) Result(s domain.State, a domain.Action) (domain.State, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return s.Clone(), 0
	}
	ret, err := g.call("result", 2, g.table(s), lua.LNumber(a))
	if err != nil {
		g.fail(err)
		return s.Clone(), 0
	}
	vals, err := numbers(ret[0])
	if err != nil {
		g.fail(fmt.Errorf("%w: %s: result: %v", ErrScript, g.name, err))
		return s.Clone(), 0
	}
	score, _ := ret[1].(lua.LNumber)
	return domain.State(vals), int(score)
}

func (g *Game) IsTerminal(s domain.State) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return true
	}
	ret, err := g.call("is_terminal", 1, g.table(s))
	if err != nil {
		g.fail(err)
		return true
	}
	return lua.LVAsBool(ret[0])
}

func (g *Game) Utility(s domain.State) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return 0
	}
	ret, err := g.call("utility", 1, g.table(s))
	if err != nil {
		g.fail(err)
		return 0
	}
	return float64(lua.LVAsNumber(ret[0]))
}

// call runs fn with g.mu held and returns its nret results in order.
func (g *Game) call(fn string, nret int, args ...lua.LValue) ([]lua.LValue, error) {
	err := g.vm.CallByParam(lua.P{Fn: g.vm.GetGlobal(fn), NRet: nret, Protect: true}, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s: %v", ErrScript, g.name, fn, err)
	}
	out := make([]lua.LValue, nret)
	for i := nret - 1; i >= 0; i-- {
		out[i] = g.vm.Get(-1)
		g.vm.Pop(1)
	}
	return out, nil
}

func (g *Game) fail(err error) {
	if g.err == nil {
		g.err = err
	}
}

func (g *Game) table(s domain.State) *lua.LTable {
	t := g.vm.NewTable()
	for _, v := range s {
		t.Append(lua.LNumber(v))
	}
	return t
}

func numbers(v lua.LValue) ([]int, error) {
	t, ok := v.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("expected a table, got %s", v.Type())
	}
	out := make([]int, 0, t.Len())
	for i := 1; i <= t.Len(); i++ {
		n, ok := t.RawGetInt(i).(lua.LNumber)
		if !ok {
			return nil, fmt.Errorf("element %d is not a number", i)
		}
		out = append(out, int(n))
	}
	return out, nil
}
