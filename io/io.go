// Package io drives a hotseat game on a terminal: it renders the table
// from one player's point of view and parses their typed move. The
// terminal is shared, so each prompt only shows what the prompted
// player is allowed to see.
package io

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	conspiracy "github.com/bcspragu/Conspiracy"
	"github.com/bcspragu/Conspiracy/consensus"
	"github.com/bcspragu/Conspiracy/game"
	"github.com/olekukonko/tablewriter"
)

// Prompter asks players on the terminal for their moves.
type Prompter struct {
	// In is a reader where the player's move is read from.
	In io.Reader
	// Out is where the table and prompts are written out to.
	Out io.Writer
}

// NextMove renders the table for the given player, prompts them, and
// parses what they type into a move. It keeps prompting until it parses
// something; engine-level legality is the caller's problem.
func (p *Prompter) NextMove(gs *conspiracy.GameState, pID conspiracy.PlayerID) (*game.Move, error) {
	p.printState(gs, pID)

	pl, ok := gs.Player(pID)
	if !ok {
		return nil, fmt.Errorf("unknown player %q", pID)
	}

	sc := bufio.NewScanner(p.In)
	for {
		fmt.Fprintf(p.Out, "%s, your move [ex. 'steal Bob', 'pass']: ", pl.Name)
		if !sc.Scan() {
			return nil, fmt.Errorf("scanner error: %v", sc.Err())
		}
		mv, err := parseMove(gs, pID, sc.Text())
		if err != nil {
			fmt.Fprintln(p.Out, err)
			continue
		}
		return mv, nil
	}
}

// WaitingOn returns the player whose input resolves the current turn
// state next, honoring the rule that a targeted player responds before
// the bystanders do.
func WaitingOn(gs *conspiracy.GameState) conspiracy.PlayerID {
	pa := gs.Pending
	switch gs.TurnState {
	case conspiracy.Idle:
		return gs.Current().ID
	case conspiracy.ActionPending:
		if pa.Target != conspiracy.NoPlayer && !consensus.HasVoted(pa.Votes, pa.Target) {
			if t, ok := gs.Player(pa.Target); ok && !t.Eliminated {
				return pa.Target
			}
		}
		return nextVoter(gs, pa.Actor)
	case conspiracy.BlockPending:
		return nextVoter(gs, pa.Blocker)
	case conspiracy.ChallengeResolve:
		return pa.Challenge.Accused
	case conspiracy.LoseCard:
		return pa.Loss.Player
	case conspiracy.ExchangeSelect:
		return pa.Actor
	}
	return conspiracy.NoPlayer
}

func nextVoter(gs *conspiracy.GameState, exempt conspiracy.PlayerID) conspiracy.PlayerID {
	for _, p := range gs.Players {
		if p.ID == exempt || p.Eliminated || consensus.HasVoted(gs.Pending.Votes, p.ID) {
			continue
		}
		return p.ID
	}
	return conspiracy.NoPlayer
}

func parseMove(gs *conspiracy.GameState, pID conspiracy.PlayerID, in string) (*game.Move, error) {
	fields := strings.Fields(strings.ToLower(in))
	if len(fields) == 0 {
		return nil, fmt.Errorf("enter a move")
	}
	cmd, args := fields[0], fields[1:]

	mv := &game.Move{Player: pID}
	switch cmd {
	case "income":
		mv.Action, mv.Kind = game.ActionDeclare, conspiracy.Income
	case "aid", "foreignaid":
		mv.Action, mv.Kind = game.ActionDeclare, conspiracy.ForeignAid
	case "tax":
		mv.Action, mv.Kind = game.ActionDeclare, conspiracy.Tax
	case "exchange":
		mv.Action, mv.Kind = game.ActionDeclare, conspiracy.Exchange
	case "steal", "assassinate", "coup":
		kinds := map[string]conspiracy.ActionKind{
			"steal":       conspiracy.Steal,
			"assassinate": conspiracy.Assassinate,
			"coup":        conspiracy.Coup,
		}
		if len(args) != 1 {
			return nil, fmt.Errorf("'%s' needs a target, like '%s Bob'", cmd, cmd)
		}
		target, err := playerNamed(gs, args[0])
		if err != nil {
			return nil, err
		}
		mv.Action, mv.Kind, mv.Target = game.ActionDeclare, kinds[cmd], target
	case "pass":
		mv.Action = game.ActionPass
	case "block":
		if len(args) != 1 {
			return nil, fmt.Errorf("'block' needs a role, like 'block contessa'")
		}
		role := conspiracy.Role(strings.ToUpper(args[0]))
		switch role {
		case conspiracy.Duke, conspiracy.Assassin, conspiracy.Captain, conspiracy.Ambassador, conspiracy.Contessa:
		default:
			return nil, fmt.Errorf("unknown role %q", args[0])
		}
		mv.Action, mv.Claim = game.ActionBlock, role
	case "challenge":
		mv.Action = game.ActionChallenge
	case "surrender":
		mv.Action = game.ActionSurrender
	case "reveal", "lose":
		if len(args) != 1 {
			return nil, fmt.Errorf("'%s' needs a card number, like '%s 1'", cmd, cmd)
		}
		i, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, fmt.Errorf("%q isn't a card number", args[0])
		}
		mv.Action, mv.CardIndex = game.ActionReveal, i-1
		if cmd == "lose" {
			mv.Action = game.ActionLoseCard
		}
	case "keep":
		if len(args) == 0 {
			return nil, fmt.Errorf("'keep' needs card numbers, like 'keep 1 3'")
		}
		for _, a := range args {
			i, err := strconv.Atoi(a)
			if err != nil {
				return nil, fmt.Errorf("%q isn't a card number", a)
			}
			mv.Keep = append(mv.Keep, i-1)
		}
		mv.Action = game.ActionKeep
	default:
		return nil, fmt.Errorf("unknown move %q", cmd)
	}
	return mv, nil
}

func playerNamed(gs *conspiracy.GameState, name string) (conspiracy.PlayerID, error) {
	for _, p := range gs.Players {
		if strings.EqualFold(p.Name, name) {
			return p.ID, nil
		}
	}
	return conspiracy.NoPlayer, fmt.Errorf("no player named %q", name)
}

func (p *Prompter) printState(gs *conspiracy.GameState, viewer conspiracy.PlayerID) {
	table := tablewriter.NewWriter(p.Out)
	table.SetHeader([]string{"Player", "Coins", "Cards"})

	for _, pl := range gs.Players {
		var c tablewriter.Colors
		switch {
		case pl.Eliminated:
			c = append(c, tablewriter.FgHiRedColor)
		case pl.ID == gs.Current().ID:
			c = append(c, tablewriter.Bold)
		}
		table.Rich(
			[]string{pl.Name, strconv.Itoa(pl.Coins), handStr(pl, viewer)},
			[]tablewriter.Colors{c, c, c},
		)
	}

	table.Render()

	if ex := gs.Pending; ex != nil && ex.Exchange != nil && ex.Actor == viewer {
		var pool []string
		for _, card := range ex.Exchange.Pool {
			pool = append(pool, string(card.Role))
		}
		fmt.Fprintf(p.Out, "Exchange pool: %s (keep %d)\n", strings.Join(pool, ", "), ex.Exchange.Keep)
	}
}

func handStr(pl *conspiracy.Player, viewer conspiracy.PlayerID) string {
	var cards []string
	for _, c := range pl.Hand {
		switch {
		case c.Revealed:
			cards = append(cards, fmt.Sprintf("[%s]", c.Role))
		case pl.ID == viewer:
			cards = append(cards, string(c.Role))
		default:
			cards = append(cards, "???")
		}
	}
	return strings.Join(cards, " ")
}
