// Package search implements depth-first minimax with alpha-beta pruning over
// any domain.Game, and records the explored tree for display.
package search

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/jaminalder/codex-minimax/internal/domain"
)

// Stats counts the work done by one search.
type Stats struct {
	Nodes    int
	Leaves   int
	Cutoffs  int
	MaxDepth int
}

// Decision is the outcome of BestMove.
type Decision struct {
	// Value is the game value from Max's point of view, counted from the
	// searched state: the score differential still to be collected plus the
	// utility of the final state.
	Value float64
	// Move is NoAction only when the searched state had no move.
	Move domain.Action
	// Exact is false when the depth limit cut the search and a static
	// utility estimate stood in for a deeper subtree. Such a value is a
	// heuristic, not the game-theoretic value.
	Exact bool
	Stats Stats
	// Tree is nil unless recording is enabled.
	Tree *Tree
}

// Engine searches one game. It holds no state between calls.
type Engine struct {
	game     domain.Game
	maxDepth int
	prune    bool
	record   bool
	log      zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxDepth limits the search to n plies; 0 means no limit.
func WithMaxDepth(n int) Option { return func(e *Engine) { e.maxDepth = n } }

// WithPruning turns alpha-beta cutoffs on or off. Without them the engine
// runs plain minimax.
func WithPruning(on bool) Option { return func(e *Engine) { e.prune = on } }

// WithRecorder turns tree recording on or off.
func WithRecorder(on bool) Option { return func(e *Engine) { e.record = on } }

// WithLogger sets the logger used for search diagnostics.
func WithLogger(l zerolog.Logger) Option { return func(e *Engine) { e.log = l } }

// New returns an engine for g with pruning and recording enabled.
func New(g domain.Game, opts ...Option) *Engine {
	e := &Engine{game: g, prune: true, record: true, log: zerolog.Nop()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// BestMove returns the value of s and the best action for toMove. The
// caller must check IsTerminal first: a terminal state yields ErrGameOver.
// s is never modified.
func (e *Engine) BestMove(s domain.State, toMove domain.Player) (Decision, error) {
	root := s.Clone()
	if e.game.IsTerminal(root) {
		return Decision{Value: e.game.Utility(root), Move: domain.NoAction, Exact: true}, domain.ErrGameOver
	}
	r := &run{Engine: e, exact: true}
	if e.record {
		r.tree = NewTree()
	}

	var (
		v   float64
		a   domain.Action
		err error
	)
	alpha, beta := math.Inf(-1), math.Inf(1)
	if toMove == domain.Min {
		v, a, err = r.minValue(root, alpha, beta, 0, 0, nil)
	} else {
		v, a, err = r.maxValue(root, alpha, beta, 0, 0, nil)
	}
	if err != nil {
		return Decision{Move: domain.NoAction}, err
	}
	e.log.Debug().
		Str("state", root.Key()).
		Stringer("player", toMove).
		Float64("value", v).
		Int("move", int(a)).
		Int("nodes", r.stats.Nodes).
		Int("cutoffs", r.stats.Cutoffs).
		Bool("exact", r.exact).
		Msg("search complete")
	return Decision{Value: v, Move: a, Exact: r.exact, Stats: r.stats, Tree: r.tree}, nil
}

// run carries the per-call state of one BestMove.
type run struct {
	*Engine
	tree  *Tree
	stats Stats
	exact bool
}

func (r *run) enter(depth int, s domain.State, p domain.Player, parent *NodeKey) NodeKey {
	r.stats.Nodes++
	if depth > r.stats.MaxDepth {
		r.stats.MaxDepth = depth
	}
	if r.tree == nil {
		return NodeKey{}
	}
	key, _ := r.tree.AddNode(depth, s, p)
	if parent != nil {
		r.tree.AddEdge(*parent, key)
	}
	return key
}

// leave records the value of key without the score collected on the way
// to it, so the node value does not depend on the path that reached it.
func (r *run) leave(key NodeKey, v, acc float64, best domain.Action) {
	if r.tree == nil {
		return
	}
	r.tree.SetValue(key, v-acc)
	if best != domain.NoAction {
		r.tree.SetBestMove(key, best)
	}
}

// leaf evaluates s when it is terminal or the depth limit is reached.
func (r *run) leaf(s domain.State, depth int, acc float64) (float64, bool) {
	if r.game.IsTerminal(s) {
		r.stats.Leaves++
		return acc + r.game.Utility(s), true
	}
	if r.maxDepth > 0 && depth >= r.maxDepth {
		r.stats.Leaves++
		r.exact = false
		return acc + r.game.Utility(s), true
	}
	return 0, false
}

// actions fetches the moves of a non-terminal state.
func (r *run) actions(s domain.State) ([]domain.Action, error) {
	acts := r.game.Actions(s)
	if len(acts) == 0 {
		return nil, fmt.Errorf("%w: no actions on non-terminal state %s", domain.ErrContractViolation, s.Key())
	}
	return acts, nil
}

// successor applies a and checks that Result left s untouched.
func (r *run) successor(s, snapshot domain.State, a domain.Action) (domain.State, int, error) {
	next, score := r.game.Result(s, a)
	if !s.Equal(snapshot) {
		return nil, 0, fmt.Errorf("%w: result(%s, %d) modified its input", domain.ErrContractViolation, snapshot.Key(), a)
	}
	return next, score, nil
}

// prunedRest records the actions a cutoff skipped. Sentinels only go on
// nodes created here so a transposed node keeps its real value.
func (r *run) prunedRest(parent NodeKey, s domain.State, rest []domain.Action, depth int, p domain.Player) {
	if r.tree == nil {
		return
	}
	for _, a := range rest {
		next, _ := r.game.Result(s, a)
		key, created := r.tree.AddNode(depth+1, next, p.Opponent())
		r.tree.AddEdge(parent, key)
		if created {
			r.tree.MarkPruned(key, Sentinel(p))
		}
	}
}

// maxValue backs up the best value for Max below s. acc is the score
// differential collected on the path from the root.
//
// Cutoffs are strict (v > beta here, v < alpha in minValue). Together with
// the later-move tie-break a non-strict cutoff could let a bound from a
// pruned subtree replace an exact best move, so the chosen action would
// differ from plain minimax.
func (r *run) maxValue(s domain.State, alpha, beta float64, depth int, acc float64, parent *NodeKey) (float64, domain.Action, error) {
	key := r.enter(depth, s, domain.Max, parent)
	if v, ok := r.leaf(s, depth, acc); ok {
		r.leave(key, v, acc, domain.NoAction)
		return v, domain.NoAction, nil
	}
	acts, err := r.actions(s)
	if err != nil {
		return 0, domain.NoAction, err
	}
	snapshot := s.Clone()

	v, best := math.Inf(-1), domain.NoAction
	for i, a := range acts {
		next, score, err := r.successor(s, snapshot, a)
		if err != nil {
			return 0, domain.NoAction, err
		}
		v2, _, err := r.minValue(next, alpha, beta, depth+1, acc+float64(score), &key)
		if err != nil {
			return 0, domain.NoAction, err
		}
		// equal values replace the incumbent: the later move wins ties
		if v2 >= v {
			v, best = v2, a
		}
		if !r.prune {
			continue
		}
		alpha = math.Max(alpha, v2)
		if v > beta {
			r.stats.Cutoffs++
			r.log.Debug().Int("depth", depth).Str("state", s.Key()).Float64("value", v).Float64("beta", beta).Msg("beta cutoff")
			r.prunedRest(key, s, acts[i+1:], depth, domain.Max)
			break
		}
	}
	r.leave(key, v, acc, best)
	return v, best, nil
}

// minValue is the mirror of maxValue for Min.
func (r *run) minValue(s domain.State, alpha, beta float64, depth int, acc float64, parent *NodeKey) (float64, domain.Action, error) {
	key := r.enter(depth, s, domain.Min, parent)
	if v, ok := r.leaf(s, depth, acc); ok {
		r.leave(key, v, acc, domain.NoAction)
		return v, domain.NoAction, nil
	}
	acts, err := r.actions(s)
	if err != nil {
		return 0, domain.NoAction, err
	}
	snapshot := s.Clone()

	v, best := math.Inf(1), domain.NoAction
	for i, a := range acts {
		next, score, err := r.successor(s, snapshot, a)
		if err != nil {
			return 0, domain.NoAction, err
		}
		v2, _, err := r.maxValue(next, alpha, beta, depth+1, acc-float64(score), &key)
		if err != nil {
			return 0, domain.NoAction, err
		}
		if v2 <= v {
			v, best = v2, a
		}
		if !r.prune {
			continue
		}
		beta = math.Min(beta, v2)
		if v < alpha {
			r.stats.Cutoffs++
			r.log.Debug().Int("depth", depth).Str("state", s.Key()).Float64("value", v).Float64("alpha", alpha).Msg("alpha cutoff")
			r.prunedRest(key, s, acts[i+1:], depth, domain.Min)
			break
		}
	}
	r.leave(key, v, acc, best)
	return v, best, nil
}
