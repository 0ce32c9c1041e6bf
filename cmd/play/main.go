// Command play runs a game against the computer in the terminal.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jaminalder/codex-minimax/internal/app"
	"github.com/jaminalder/codex-minimax/internal/config"
	"github.com/jaminalder/codex-minimax/internal/domain"
	"github.com/jaminalder/codex-minimax/internal/viz"
)

const seat = "terminal"

func main() {
	var (
		kind      = flag.String("game", "grid", "rule set: grid, pile or nim")
		first     = flag.Bool("computer-first", false, "let the computer open")
		stones    = flag.String("stones", "", "comma separated pile, random when empty")
		sticks    = flag.Int("sticks", 0, "nim heap size, random when 0")
		treeDepth = flag.Int("tree", -1, "print the computer's search tree down to this depth")
		color     = flag.Bool("color", true, "colour the output")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	// Engine debug output would drown the board.
	if cfg.LogLevel < zerolog.WarnLevel {
		cfg.LogLevel = zerolog.WarnLevel
	}
	logger := cfg.Logger(os.Stderr)

	k, err := app.ParseKind(*kind)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	o := app.CreateOptions{ComputerFirst: *first, Sticks: *sticks}
	if *stones != "" {
		for _, f := range strings.Split(*stones, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(f))
			if err != nil {
				fmt.Fprintf(os.Stderr, "bad stone %q\n", f)
				os.Exit(2)
			}
			o.Pile = append(o.Pile, n)
		}
	}

	svc := app.NewService(app.WithLogger(logger), app.WithConfig(cfg))
	defer svc.Close()
	p := &player{svc: svc, out: os.Stdout, color: *color, treeDepth: *treeDepth}
	if err := p.run(k, o, bufio.NewScanner(os.Stdin)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type player struct {
	svc       *app.Service
	out       io.Writer
	color     bool
	treeDepth int
}

func (p *player) run(k app.Kind, o app.CreateOptions, in *bufio.Scanner) error {
	gs, err := p.svc.CreateGame(k, o)
	if err != nil {
		return err
	}
	if _, gs, err = p.svc.Join(gs.ID, seat); err != nil {
		return err
	}
	fmt.Fprintf(p.out, "you play %s\n", gs.Human)
	p.report(gs)
	for !gs.Match.Over() {
		p.show(gs)
		fmt.Fprint(p.out, prompt(gs.Kind))
		if !in.Scan() {
			return in.Err()
		}
		a, err := parseMove(gs.Kind, in.Text())
		if err == nil {
			var next *app.GameState
			next, err = p.svc.Play(gs.ID, seat, a)
			if next != nil {
				gs = next
			}
		}
		if err != nil {
			if errors.Is(err, domain.ErrContractViolation) {
				return err
			}
			fmt.Fprintf(p.out, "rejected: %v\n", err)
			continue
		}
		p.report(gs)
	}
	p.show(gs)
	switch gs.Match.Winner() {
	case gs.Human:
		fmt.Fprintln(p.out, "you win")
	case gs.Human.Opponent():
		fmt.Fprintln(p.out, "the computer wins")
	default:
		fmt.Fprintln(p.out, "tie")
	}
	return nil
}

func (p *player) show(gs *app.GameState) {
	switch gs.Kind {
	case app.KindGrid:
		fmt.Fprint(p.out, viz.GridBoard(gs.Match.State, p.color))
	case app.KindNim:
		fmt.Fprintf(p.out, "%d sticks\n", gs.Match.State[0])
	default:
		fmt.Fprintf(p.out, "%s  you %d, computer %d\n", viz.PileLine(gs.Match.State, p.color),
			gs.Match.Score(gs.Human), gs.Match.Score(gs.Human.Opponent()))
	}
}

// report prints the computer's last decision and, when asked, its tree.
func (p *player) report(gs *app.GameState) {
	if gs.Search == nil {
		return
	}
	sum := gs.Search
	fmt.Fprintf(p.out, "computer (%s) played %d, value %s, %d nodes, %d cutoffs\n",
		sum.Player, sum.Move, viz.FormatValue(sum.Value), sum.Stats.Nodes, sum.Stats.Cutoffs)
	if p.treeDepth < 0 {
		return
	}
	if t, ok := p.svc.Tree(gs.ID); ok {
		_ = viz.WriteText(p.out, t, p.treeDepth, p.color)
	}
}

func prompt(k app.Kind) string {
	if k == app.KindGrid {
		return "row col> "
	}
	return "take> "
}

// parseMove accepts "r c" or a cell index on the grid and a count elsewhere.
func parseMove(k app.Kind, line string) (domain.Action, error) {
	f := strings.Fields(line)
	if k == app.KindGrid && len(f) == 2 {
		r, err1 := strconv.Atoi(f[0])
		c, err2 := strconv.Atoi(f[1])
		if err1 != nil || err2 != nil {
			return domain.NoAction, fmt.Errorf("%w: %q", domain.ErrInvalidMove, line)
		}
		return domain.Grid{}.Index(r, c)
	}
	if len(f) != 1 {
		return domain.NoAction, fmt.Errorf("%w: %q", domain.ErrInvalidMove, line)
	}
	n, err := strconv.Atoi(f[0])
	if err != nil {
		return domain.NoAction, fmt.Errorf("%w: %q", domain.ErrInvalidMove, line)
	}
	return domain.Action(n), nil
}
