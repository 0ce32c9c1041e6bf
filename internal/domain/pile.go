package domain

import "golang.org/x/exp/rand"

// MaxTake is the most stones a player may take in one turn.
const MaxTake = 3

// Pile is the stone game: players alternately take 1-3 stones from the
// front of a shared pile and score their values. Max opens.
//
// Utility is zero for every pile. The score differential is carried by the
// search along the path, so a searched value is the differential from the
// searched state to the end of the game.
type Pile struct{}

var _ Game = Pile{}

func (Pile) Actions(s State) []Action {
	n := min(MaxTake, len(s))
	out := make([]Action, 0, n)
	for a := 1; a <= n; a++ {
		out = append(out, Action(a))
	}
	return out
}

func (Pile) Result(s State, a Action) (State, int) {
	score := 0
	for _, v := range s[:a] {
		score += v
	}
	return s[a:].Clone(), score
}

func (Pile) IsTerminal(s State) bool { return len(s) == 0 }

func (Pile) Utility(State) float64 { return 0 }

// Window returns the stones of s that can be taken within depth plies.
// Later stones can neither be scored nor change the moves available in
// that horizon, so a search capped at depth sees the same game on the
// window. depth <= 0 keeps the whole pile.
func Window(s State, depth int) State {
	if depth <= 0 || len(s) <= MaxTake*depth {
		return s.Clone()
	}
	return s[:MaxTake*depth].Clone()
}

// Total returns the summed value of every stone left in s.
func Total(s State) int {
	t := 0
	for _, v := range s {
		t += v
	}
	return t
}

// RandomPile draws between minLen and maxLen stones valued 0..maxStone.
func RandomPile(r *rand.Rand, minLen, maxLen, maxStone int) State {
	if maxLen < minLen {
		maxLen = minLen
	}
	n := minLen + r.Intn(maxLen-minLen+1)
	s := make(State, n)
	for i := range s {
		s[i] = r.Intn(maxStone + 1)
	}
	return s
}

// Shuffle permutes the stones of s into a new state.
func Shuffle(r *rand.Rand, s State) State {
	out := s.Clone()
	r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
