package domain

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
)

// State is a board or pile encoded as integers. States are values: a
// transition always returns a new slice.
type State []int

// Clone returns a copy that shares no storage with s.
func (s State) Clone() State {
	if s == nil {
		return State{}
	}
	return slices.Clone(s)
}

// Equal reports whether both states hold the same cells in the same order.
func (s State) Equal(o State) bool { return slices.Equal(s, o) }

// Key returns the canonical tuple form of the state, e.g. "(3, 1)".
func (s State) Key() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, v := range s {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Itoa(v))
	}
	b.WriteByte(')')
	return b.String()
}

func (s State) String() string { return s.Key() }

// Action identifies a move: a cell index for the grid, a take-count for the pile.
type Action int

// NoAction is returned where no move exists, e.g. on a terminal state.
const NoAction Action = -1

// Player is one side of the zero-sum search.
type Player int

const (
	Max Player = 1
	Min Player = -1
)

// Opponent returns the other player.
func (p Player) Opponent() Player { return -p }

func (p Player) String() string {
	switch p {
	case Max:
		return "Max"
	case Min:
		return "Min"
	default:
		return "Player(" + strconv.Itoa(int(p)) + ")"
	}
}

// Game is the capability set a game must provide to be searchable.
//
// Actions returns the legal moves of s in scan order and is empty iff s is
// terminal. Result must not modify s; the int is the score the mover earns
// with the move. Utility evaluates s from Max's point of view; it is exact on
// terminal states and a static estimate anywhere else.
type Game interface {
	Actions(s State) []Action
	Result(s State, a Action) (State, int)
	IsTerminal(s State) bool
	Utility(s State) float64
}

// Turner is implemented by games whose state encodes the player to move.
type Turner interface {
	ToMove(s State) Player
}

// Rejecter is implemented by games that can name why a move is illegal.
type Rejecter interface {
	Reject(s State, a Action) error
}

// Legal reports whether a is one of the actions g allows on s.
func Legal(g Game, s State, a Action) bool {
	return slices.Contains(g.Actions(s), a)
}

// Apply validates a against s and returns the successor and the mover's score.
func Apply(g Game, s State, a Action) (State, int, error) {
	if g.IsTerminal(s) {
		return nil, 0, ErrGameOver
	}
	if !Legal(g, s, a) {
		if r, ok := g.(Rejecter); ok {
			if err := r.Reject(s, a); err != nil {
				return nil, 0, fmt.Errorf("%w: %w", ErrInvalidMove, err)
			}
		}
		return nil, 0, fmt.Errorf("%w: %d on %s", ErrInvalidMove, a, s.Key())
	}
	next, score := g.Result(s, a)
	return next, score, nil
}
