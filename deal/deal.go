// Package deal sets up a fresh round: a shuffled supply, dealt hands,
// starting coins, and a random starting player.
package deal

import (
	"fmt"
	"math/rand"

	conspiracy "github.com/bcspragu/Conspiracy"
)

const (
	// DefaultStartingCards is the hand size when the room doesn't pick one.
	DefaultStartingCards = 2

	// MinPlayers is the fewest players a round can start with.
	MinPlayers = 2
)

// New deals a round for the given users, in order. startingCards of 0
// means DefaultStartingCards.
func New(users []*conspiracy.User, startingCards int, r *rand.Rand) (*conspiracy.GameState, error) {
	if startingCards == 0 {
		startingCards = DefaultStartingCards
	}

	if len(users) < MinPlayers {
		return nil, fmt.Errorf("need at least %d players, got %d", MinPlayers, len(users))
	}

	supply := freshSupply(r)
	if need := len(users) * startingCards; need >= len(supply.Deck) {
		return nil, fmt.Errorf("%d players at %d cards each would exhaust the %d-card supply", len(users), startingCards, len(supply.Deck))
	}

	players := make([]*conspiracy.Player, len(users))
	for i, u := range users {
		players[i] = &conspiracy.Player{
			ID:    u.ID,
			Name:  u.Name,
			Coins: conspiracy.StartingCoins,
			Hand:  supply.Draw(startingCards),
		}
	}

	return &conspiracy.GameState{
		Players:   players,
		TurnIndex: r.Intn(len(players)),
		Supply:    supply,
		TurnState: conspiracy.Idle,
	}, nil
}

func freshSupply(r *rand.Rand) *conspiracy.Supply {
	s := &conspiracy.Supply{}
	for _, role := range conspiracy.Roles {
		for i := 0; i < conspiracy.CopiesPerRole; i++ {
			s.Deck = append(s.Deck, conspiracy.Card{Role: role})
		}
	}
	s.Shuffle(r)
	return s
}
