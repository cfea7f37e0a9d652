// Binary conspiracy-local plays a hotseat game on a single terminal,
// passing the keyboard around the table.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"

	conspiracy "github.com/bcspragu/Conspiracy"
	"github.com/bcspragu/Conspiracy/cryptorand"
	"github.com/bcspragu/Conspiracy/deal"
	"github.com/bcspragu/Conspiracy/game"
	gio "github.com/bcspragu/Conspiracy/io"
)

func main() {
	var (
		players = flag.String("players", "", "Comma-separated list of player names.")
		cards   = flag.Int("cards", deal.DefaultStartingCards, "How many cards each player starts with.")
	)
	flag.Parse()

	names := strings.Split(*players, ",")
	if len(names) < deal.MinPlayers {
		log.Fatalf("Need at least %d players, got %q", deal.MinPlayers, *players)
	}

	var users []*conspiracy.User
	for i, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			log.Fatalf("Player %d has no name", i+1)
		}
		users = append(users, &conspiracy.User{
			ID:   conspiracy.PlayerID(fmt.Sprintf("player_%d", i)),
			Name: name,
		})
	}

	r := rand.New(cryptorand.NewSource())
	gs, err := deal.New(users, *cards, r)
	if err != nil {
		log.Fatalf("Failed to deal: %v", err)
	}

	p := &gio.Prompter{In: os.Stdin, Out: os.Stdout}
	for {
		pID := gio.WaitingOn(gs)
		if pID == conspiracy.NoPlayer {
			log.Fatalf("Nobody to prompt in turn state %q", gs.TurnState)
		}

		mv, err := p.NextMove(gs, pID)
		if err != nil {
			log.Fatalf("Failed to read a move: %v", err)
		}

		evs, status, err := game.New(gs, r).Move(mv)
		if err != nil {
			fmt.Println("Can't do that:", err)
			continue
		}

		for _, ev := range evs {
			fmt.Println(describe(gs, ev))
		}

		if status == conspiracy.Finished {
			if w, ok := gs.Player(gs.Winner()); ok {
				fmt.Printf("%s wins!\n", w.Name)
			}
			return
		}
	}
}

func describe(gs *conspiracy.GameState, ev conspiracy.Event) string {
	name := func(pID conspiracy.PlayerID) string {
		if p, ok := gs.Player(pID); ok {
			return p.Name
		}
		return string(pID)
	}

	switch ev.Kind {
	case conspiracy.EventActionDeclared:
		if ev.Target != conspiracy.NoPlayer {
			return fmt.Sprintf("%s declares %s against %s.", name(ev.Player), ev.Action, name(ev.Target))
		}
		return fmt.Sprintf("%s declares %s.", name(ev.Player), ev.Action)
	case conspiracy.EventCoinsGained:
		return fmt.Sprintf("%s gains %d coins.", name(ev.Player), ev.Amount)
	case conspiracy.EventCoinsStolen:
		return fmt.Sprintf("%s steals %d coins from %s.", name(ev.Player), ev.Amount, name(ev.Target))
	case conspiracy.EventPassed:
		return fmt.Sprintf("%s passes.", name(ev.Player))
	case conspiracy.EventBlocked:
		return fmt.Sprintf("%s blocks, claiming %s.", name(ev.Player), ev.Role)
	case conspiracy.EventBlockAccepted:
		return fmt.Sprintf("The table accepts %s's block.", name(ev.Player))
	case conspiracy.EventChallenged:
		return fmt.Sprintf("%s challenges %s's claim to %s.", name(ev.Player), name(ev.Target), ev.Role)
	case conspiracy.EventClaimProven:
		return fmt.Sprintf("%s reveals %s. The claim was true.", name(ev.Player), ev.Role)
	case conspiracy.EventClaimFailed:
		return fmt.Sprintf("%s was bluffing.", name(ev.Player))
	case conspiracy.EventCardLost:
		return fmt.Sprintf("%s turns a %s face up.", name(ev.Player), ev.Role)
	case conspiracy.EventPlayerEliminated:
		return fmt.Sprintf("%s is out of the game.", name(ev.Player))
	case conspiracy.EventExchangeOffered:
		return fmt.Sprintf("%s draws from the deck to exchange.", name(ev.Player))
	case conspiracy.EventExchangeDone:
		return fmt.Sprintf("%s finishes exchanging.", name(ev.Player))
	case conspiracy.EventTurnAdvanced:
		return fmt.Sprintf("It's %s's turn.", name(ev.Player))
	case conspiracy.EventGameOver:
		return "The game is over."
	default:
		return fmt.Sprintf("%s: %s", ev.Kind, name(ev.Player))
	}
}
