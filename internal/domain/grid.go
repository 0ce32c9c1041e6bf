package domain

import "strings"

// Cell values of the 3x3 grid.
const (
	Empty = 0
	X     = 1
	O     = -1
)

// GridSize is the number of cells on the board, stored row-major.
const GridSize = 9

var lines = [8][3]int{
	// rows
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	// cols
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	// diags
	{0, 4, 8}, {2, 4, 6},
}

// Grid is Tic-Tac-Toe. X is Max and always opens.
type Grid struct{}

var _ Game = Grid{}
var _ Turner = Grid{}
var _ Rejecter = Grid{}

// NewGrid returns an empty board.
func NewGrid() State { return make(State, GridSize) }

// Index converts row r, column c (0..2) into a cell action.
func (Grid) Index(r, c int) (Action, error) {
	if r < 0 || r > 2 || c < 0 || c > 2 {
		return NoAction, ErrOutOfBounds
	}
	return Action(r*3 + c), nil
}

// Reject explains why a cannot be played on s.
func (Grid) Reject(s State, a Action) error {
	if a < 0 || int(a) >= len(s) {
		return ErrOutOfBounds
	}
	if s[a] != Empty {
		return ErrOccupied
	}
	return nil
}

// ToMove derives the mover from the number of marks on the board.
func (Grid) ToMove(s State) Player {
	marks := 0
	for _, c := range s {
		if c != Empty {
			marks++
		}
	}
	if marks%2 == 0 {
		return Max
	}
	return Min
}

func (g Grid) Actions(s State) []Action {
	if Winner(s) != Empty {
		return nil
	}
	var out []Action
	for i, c := range s {
		if c == Empty {
			out = append(out, Action(i))
		}
	}
	return out
}

func (g Grid) Result(s State, a Action) (State, int) {
	next := s.Clone()
	next[a] = int(g.ToMove(s))
	return next, 0
}

func (Grid) IsTerminal(s State) bool {
	if Winner(s) != Empty {
		return true
	}
	for _, c := range s {
		if c == Empty {
			return false
		}
	}
	return true
}

// Utility is +1 when X has a line, -1 when O has one, 0 otherwise.
func (Grid) Utility(s State) float64 { return float64(Winner(s)) }

// Winner returns the mark owning a complete line, or Empty.
func Winner(s State) int {
	if len(s) != GridSize {
		return Empty
	}
	if hasWin(s, X) {
		return X
	}
	if hasWin(s, O) {
		return O
	}
	return Empty
}

func hasWin(b State, side int) bool {
	for _, ln := range lines {
		if b[ln[0]] == side && b[ln[1]] == side && b[ln[2]] == side {
			return true
		}
	}
	return false
}

// Mirror swaps the marks of both players.
func Mirror(s State) State {
	out := make(State, len(s))
	for i, c := range s {
		out[i] = -c
	}
	return out
}

// FormatGrid renders the board as three rows, e.g. "X | O |  ".
func FormatGrid(s State) string {
	var b strings.Builder
	for i, c := range s {
		b.WriteString(Symbol(c))
		if i%3 == 2 {
			b.WriteByte('\n')
		} else {
			b.WriteString(" | ")
		}
	}
	return b.String()
}

// Symbol returns "X", "O" or a blank for a cell value.
func Symbol(c int) string {
	switch c {
	case X:
		return "X"
	case O:
		return "O"
	default:
		return " "
	}
}
