package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"

	"github.com/jaminalder/codex-minimax/internal/config"
	"github.com/jaminalder/codex-minimax/internal/domain"
	"github.com/jaminalder/codex-minimax/internal/script"
	"github.com/jaminalder/codex-minimax/internal/search"
)

// Errors exposed by the service layer.
var (
	ErrNotFound      = errors.New("game not found")
	ErrNotYourTurn   = errors.New("not your turn")
	ErrNotAPlayer    = errors.New("not a player")
	ErrUnknownKind   = errors.New("unknown game kind")
	ErrCannotShuffle = errors.New("only an untouched pile can be shuffled")
)

// Kind selects the rule set of a game.
type Kind string

const (
	KindGrid Kind = "grid"
	KindPile Kind = "pile"
	KindNim  Kind = "nim"
)

// Kinds lists the supported rule sets.
var Kinds = []Kind{KindGrid, KindPile, KindNim}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Nim heaps are drawn from nimMin up to the configured NimMax when none
// is given.
const nimMin = 7

// CreateOptions tune a new game.
type CreateOptions struct {
	// ComputerFirst seats the human as Min; the computer opens as Max.
	ComputerFirst bool
	// Pile fixes the stones of a pile game instead of drawing them.
	Pile domain.State
	// Sticks fixes the heap of a nim game.
	Sticks int
}

// SearchSummary describes the computer's last decision.
type SearchSummary struct {
	Player domain.Player
	Move   domain.Action
	Value  float64
	Exact  bool
	Stats  search.Stats
}

// GameState is the in-memory state tracked per game.
type GameState struct {
	ID    string
	Kind  Kind
	Match domain.Match
	// Human is the side played by the seated player; the computer plays
	// the other one.
	Human   domain.Player
	Player  string
	Created time.Time
	Updated time.Time
	Search  *SearchSummary
}

type subscriber struct {
	ch        chan []byte
	closeOnce sync.Once
}

func (s *subscriber) close() { s.closeOnce.Do(func() { close(s.ch) }) }

// Service manages games against the computer and their subscribers.
type Service struct {
	mu       sync.Mutex
	games    map[string]*GameState
	trees    map[string]*search.Tree
	subs     map[string]map[*subscriber]struct{}
	render   func(GameState) []byte
	log      zerolog.Logger
	settings config.Config
	rng      *rand.Rand
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger; searches log through it as well.
func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.log = l } }

// WithConfig sets search limits and pile sizes.
func WithConfig(c config.Config) Option { return func(s *Service) { s.settings = c } }

// WithSeed makes random piles reproducible.
func WithSeed(seed uint64) Option {
	return func(s *Service) { s.rng = rand.New(rand.NewSource(seed)) }
}

// NewService creates a service with a default renderer (encodes nothing useful).
func NewService(opts ...Option) *Service {
	return NewServiceWithRenderer(func(gs GameState) []byte { return nil }, opts...)
}

// NewServiceWithRenderer allows injecting a renderer for broadcast payloads.
func NewServiceWithRenderer(renderer func(GameState) []byte, opts ...Option) *Service {
	if renderer == nil {
		renderer = func(gs GameState) []byte { return nil }
	}
	s := &Service{
		games:    make(map[string]*GameState),
		trees:    make(map[string]*search.Tree),
		subs:     make(map[string]map[*subscriber]struct{}),
		render:   renderer,
		log:      zerolog.Nop(),
		settings: config.Default(),
		rng:      rand.New(rand.NewSource(uint64(time.Now().UnixNano()))),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SetRenderer replaces the broadcast renderer function.
func (s *Service) SetRenderer(renderer func(GameState) []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if renderer == nil {
		s.render = func(gs GameState) []byte { return nil }
		return
	}
	s.render = renderer
}

// Close releases the Lua VMs of scripted games.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, gs := range s.games {
		closeScript(gs.Match.Game)
	}
}

func closeScript(g domain.Game) {
	if sg, ok := g.(*script.Game); ok {
		sg.Close()
	}
}

// scriptErr reports the failure of a scripted rule set. The contract has
// no error returns, so a search over a failed script ends early with a
// meaningless decision and only the script itself knows why.
func scriptErr(gs *GameState) error {
	if sg, ok := gs.Match.Game.(*script.Game); ok && sg.Err() != nil {
		return fmt.Errorf("%w: %w", domain.ErrContractViolation, sg.Err())
	}
	return nil
}

// PileLimit is the largest pile CreateGame accepts.
func (s *Service) PileLimit() int { return s.settings.PileLimit }

// CreateGame creates and registers a new game. When the computer opens,
// its first move is already played.
func (s *Service) CreateGame(kind Kind, o CreateOptions) (*GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, start, err := s.newGameLocked(kind, o)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	gs := &GameState{
		ID:      newGameID(),
		Kind:    kind,
		Match:   domain.NewMatch(g, start),
		Human:   domain.Max,
		Created: now,
		Updated: now,
	}
	if o.ComputerFirst {
		gs.Human = domain.Min
	}
	if err := s.replyLocked(gs); err != nil {
		closeScript(g)
		return nil, err
	}
	s.games[gs.ID] = gs
	s.log.Info().Str("game", gs.ID).Str("kind", string(kind)).Stringer("human", gs.Human).Str("state", gs.Match.State.Key()).Msg("game created")
	cp := *gs
	return &cp, nil
}

func (s *Service) newGameLocked(kind Kind, o CreateOptions) (domain.Game, domain.State, error) {
	switch kind {
	case KindGrid:
		return domain.Grid{}, domain.NewGrid(), nil
	case KindPile:
		pile := o.Pile
		if len(pile) == 0 {
			pile = domain.RandomPile(s.rng, s.settings.PileMin, s.settings.PileMax, s.settings.StoneMax)
		}
		if len(pile) > s.settings.PileLimit {
			return nil, nil, fmt.Errorf("%w: %d stones, at most %d", domain.ErrInvalidMove, len(pile), s.settings.PileLimit)
		}
		for _, v := range pile {
			if v < 0 {
				return nil, nil, fmt.Errorf("%w: negative stone %d", domain.ErrInvalidMove, v)
			}
		}
		return domain.Pile{}, pile, nil
	case KindNim:
		sticks := o.Sticks
		if sticks > s.settings.NimMax {
			return nil, nil, fmt.Errorf("%w: %d sticks, at most %d", domain.ErrInvalidMove, sticks, s.settings.NimMax)
		}
		if sticks <= 0 {
			lo := min(nimMin, s.settings.NimMax)
			sticks = lo + s.rng.Intn(s.settings.NimMax-lo+1)
		}
		// Each match owns its VM so a failing script cannot poison others.
		g, err := script.Builtin("nim")
		if err != nil {
			return nil, nil, err
		}
		return g, domain.State{sticks, int(domain.Max)}, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// depthFor returns the search depth cap of a game kind.
func (s *Service) depthFor(k Kind) int {
	switch k {
	case KindPile:
		return s.settings.PileDepth
	case KindNim:
		return s.settings.NimDepth
	default:
		return s.settings.MaxDepth
	}
}

// engineFor builds the searcher of one game.
func (s *Service) engineFor(gs *GameState) *search.Engine {
	return search.New(gs.Match.Game,
		search.WithMaxDepth(s.depthFor(gs.Kind)),
		search.WithLogger(s.log.With().Str("game", gs.ID).Logger()),
	)
}

// searchState is the part of the match state the computer searches. A
// depth capped pile search only sees the stones it can reach.
func (s *Service) searchState(gs *GameState) domain.State {
	if gs.Kind == KindPile {
		return domain.Window(gs.Match.State, s.settings.PileDepth)
	}
	return gs.Match.State
}

// replyLocked plays computer moves until the human is to move or the game
// is over.
func (s *Service) replyLocked(gs *GameState) error {
	for !gs.Match.Over() && gs.Match.ToMove() != gs.Human {
		p := gs.Match.ToMove()
		d, err := s.engineFor(gs).BestMove(s.searchState(gs), p)
		if serr := scriptErr(gs); serr != nil {
			err = serr
		}
		if err != nil {
			s.log.Error().Err(err).Str("game", gs.ID).Msg("computer search failed")
			return err
		}
		if err := gs.Match.Play(d.Move); err != nil {
			return fmt.Errorf("%w: engine chose %d: %w", domain.ErrContractViolation, d.Move, err)
		}
		gs.Search = &SearchSummary{Player: p, Move: d.Move, Value: d.Value, Exact: d.Exact, Stats: d.Stats}
		if d.Tree != nil {
			s.trees[gs.ID] = d.Tree
		}
		s.log.Debug().Str("game", gs.ID).Stringer("player", p).Int("move", int(d.Move)).Float64("value", d.Value).Bool("exact", d.Exact).Int("nodes", d.Stats.Nodes).Msg("computer moved")
	}
	if gs.Match.Over() {
		s.log.Info().Str("game", gs.ID).Str("verdict", gs.Match.Verdict()).Msg("game over")
	}
	return nil
}

// Get returns a copy of the game state if present.
func (s *Service) Get(id string) (*GameState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gs, ok := s.games[id]
	if !ok {
		return nil, false
	}
	cp := *gs
	return &cp, true
}

// Tree returns the search tree recorded for the computer's last move.
// The tree is never modified after it is stored.
func (s *Service) Tree(id string) (*search.Tree, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trees[id]
	return t, ok
}

// Join claims the human seat if it is free; returns 0 for spectators.
func (s *Service) Join(id, playerID string) (domain.Player, *GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gs, ok := s.games[id]
	if !ok {
		return 0, nil, ErrNotFound
	}
	var side domain.Player
	if gs.Player == "" || gs.Player == playerID {
		gs.Player = playerID
		side = gs.Human
	}
	gs.Updated = time.Now()
	cp := *gs
	return side, &cp, nil
}

// Play validates seat and turn, applies the human move, lets the computer
// answer, updates timestamps, and broadcasts.
func (s *Service) Play(id, playerID string, a domain.Action) (*GameState, error) {
	s.mu.Lock()
	gs, ok := s.games[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	// Validate player is seated
	if gs.Player == "" || gs.Player != playerID {
		s.mu.Unlock()
		return nil, ErrNotAPlayer
	}
	if err := scriptErr(gs); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if gs.Match.Over() {
		s.mu.Unlock()
		return nil, domain.ErrGameOver
	}
	// Validate turn
	if gs.Match.ToMove() != gs.Human {
		s.mu.Unlock()
		return nil, ErrNotYourTurn
	}
	// Apply move
	if err := gs.Match.Play(a); err != nil {
		if serr := scriptErr(gs); serr != nil {
			err = serr
		}
		s.mu.Unlock()
		return nil, err
	}
	err := s.replyLocked(gs)
	gs.Updated = time.Now()
	cp := *gs
	s.broadcastLocked(id, cp)
	if err != nil {
		return &cp, err
	}
	return &cp, nil
}

// Shuffle reorders the stones of a pile game nobody has moved in yet.
func (s *Service) Shuffle(id, playerID string) (*GameState, error) {
	s.mu.Lock()
	gs, ok := s.games[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	if gs.Player != playerID {
		s.mu.Unlock()
		return nil, ErrNotAPlayer
	}
	if gs.Kind != KindPile || gs.Match.Moves() > 0 {
		s.mu.Unlock()
		return nil, ErrCannotShuffle
	}
	gs.Match = domain.NewMatch(gs.Match.Game, domain.Shuffle(s.rng, gs.Match.State))
	gs.Updated = time.Now()
	cp := *gs
	s.broadcastLocked(id, cp)
	return &cp, nil
}

// broadcastLocked renders cp, releases s.mu and fans the payload out.
func (s *Service) broadcastLocked(id string, cp GameState) {
	var toDrop []*subscriber
	subs := s.copySubsLocked(id)
	payload := s.render(cp)
	s.mu.Unlock()

	// Fan-out; drop slow subscribers by closing and marking for deletion
	for sub := range subs {
		select {
		case sub.ch <- payload:
		default:
			sub.close()
			toDrop = append(toDrop, sub)
		}
	}
	if len(toDrop) > 0 {
		s.mu.Lock()
		for _, sub := range toDrop {
			if set, ok := s.subs[id]; ok {
				delete(set, sub)
			}
		}
		s.mu.Unlock()
		s.log.Debug().Str("game", id).Int("dropped", len(toDrop)).Msg("dropped slow subscribers")
	}
}

// Subscribe registers a subscriber for a game. Returns a channel and an unsubscribe func.
func (s *Service) Subscribe(ctx context.Context, id string) (<-chan []byte, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.subs[id]
	if set == nil {
		set = make(map[*subscriber]struct{})
		s.subs[id] = set
	}
	sub := &subscriber{ch: make(chan []byte, 1)}
	set[sub] = struct{}{}

	unsubOnce := &sync.Once{}
	unsub := func() {
		unsubOnce.Do(func() {
			s.mu.Lock()
			if set, ok := s.subs[id]; ok {
				delete(set, sub)
			}
			s.mu.Unlock()
			sub.close()
		})
	}
	go func() {
		<-ctx.Done()
		unsub()
	}()
	return sub.ch, unsub
}

func (s *Service) copySubsLocked(id string) map[*subscriber]struct{} {
	out := make(map[*subscriber]struct{})
	if set, ok := s.subs[id]; ok {
		for k := range set {
			out[k] = struct{}{}
		}
	}
	return out
}
