package domain

// Move is one ply of a match.
type Move struct {
	Player Player
	Action Action
	Score  int
}

// Match holds the current state of a game in progress. The player to move
// and the scores are derived from State and History, never stored.
type Match struct {
	Game    Game
	State   State
	History []Move
}

// NewMatch starts a match of g from s. Max moves first.
func NewMatch(g Game, s State) Match {
	return Match{Game: g, State: s.Clone()}
}

// ToMove returns the player whose turn it is.
func (m Match) ToMove() Player {
	if t, ok := m.Game.(Turner); ok {
		return t.ToMove(m.State)
	}
	if len(m.History)%2 == 0 {
		return Max
	}
	return Min
}

// Over reports whether the match reached a terminal state.
func (m Match) Over() bool { return m.Game.IsTerminal(m.State) }

// Moves returns the number of plies played so far.
func (m Match) Moves() int { return len(m.History) }

// Score returns the points p collected so far.
func (m Match) Score(p Player) int {
	total := 0
	for _, mv := range m.History {
		if mv.Player == p {
			total += mv.Score
		}
	}
	return total
}

// Value is the outcome from Max's point of view: collected score
// differential plus the utility of the current state.
func (m Match) Value() float64 {
	return float64(m.Score(Max)-m.Score(Min)) + m.Game.Utility(m.State)
}

// Winner returns Max or Min once the match is over, 0 on a tie or while
// the match is still running.
func (m Match) Winner() Player {
	if !m.Over() {
		return 0
	}
	switch v := m.Value(); {
	case v > 0:
		return Max
	case v < 0:
		return Min
	default:
		return 0
	}
}

// Verdict describes the finished match as "Max", "Min" or "Tie", and
// returns "" while it is still running.
func (m Match) Verdict() string {
	if !m.Over() {
		return ""
	}
	if w := m.Winner(); w != 0 {
		return w.String()
	}
	return "Tie"
}

// Play applies a for the player to move.
func (m *Match) Play(a Action) error {
	p := m.ToMove()
	next, score, err := Apply(m.Game, m.State, a)
	if err != nil {
		return err
	}
	m.State = next
	m.History = append(m.History, Move{Player: p, Action: a, Score: score})
	return nil
}
