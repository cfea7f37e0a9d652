package game

import (
	"errors"
	"math/rand"
	"testing"

	conspiracy "github.com/bcspragu/Conspiracy"
	"github.com/google/go-cmp/cmp"
)

// player builds a test player with a fixed hand.
func player(id string, coins int, roles ...conspiracy.Role) *conspiracy.Player {
	p := &conspiracy.Player{
		ID:    conspiracy.PlayerID(id),
		Name:  id,
		Coins: coins,
	}
	for _, role := range roles {
		p.Hand = append(p.Hand, conspiracy.Card{Role: role})
	}
	return p
}

// testState builds a round with the given players, player zero to act,
// and a deck holding whatever copies the hands didn't use.
func testState(t *testing.T, players ...*conspiracy.Player) *conspiracy.GameState {
	t.Helper()

	used := make(map[conspiracy.Role]int)
	for _, p := range players {
		for _, c := range p.Hand {
			used[c.Role]++
		}
	}

	supply := &conspiracy.Supply{}
	for _, role := range conspiracy.Roles {
		if used[role] > conspiracy.CopiesPerRole {
			t.Fatalf("test hands use %d copies of %q, only %d exist", used[role], role, conspiracy.CopiesPerRole)
		}
		for i := used[role]; i < conspiracy.CopiesPerRole; i++ {
			supply.Deck = append(supply.Deck, conspiracy.Card{Role: role})
		}
	}

	return &conspiracy.GameState{
		Players:   players,
		TurnIndex: 0,
		Supply:    supply,
		TurnState: conspiracy.Idle,
	}
}

func newGame(gs *conspiracy.GameState) *Game {
	return New(gs, rand.New(rand.NewSource(0)))
}

// mustMove applies a move that the test expects to succeed.
func mustMove(t *testing.T, g *Game, mv *Move) []conspiracy.Event {
	t.Helper()
	evs, _, err := g.Move(mv)
	if err != nil {
		t.Fatalf("Move(%+v): %v", mv, err)
	}
	return evs
}

// checkConservation verifies that no card was created or destroyed:
// deck + hands + any exchange pool always add up to the full supply.
func checkConservation(t *testing.T, gs *conspiracy.GameState) {
	t.Helper()

	total := len(gs.Supply.Deck)
	for _, p := range gs.Players {
		total += len(p.Hand)
	}
	if gs.Pending != nil && gs.Pending.Exchange != nil {
		total += len(gs.Pending.Exchange.Pool)
	}

	if want := len(conspiracy.Roles) * conspiracy.CopiesPerRole; total != want {
		t.Errorf("state holds %d cards, want %d", total, want)
	}
}

// checkElimination verifies eliminated == "every card revealed" for
// every player.
func checkElimination(t *testing.T, gs *conspiracy.GameState) {
	t.Helper()
	for _, p := range gs.Players {
		if got, want := p.Eliminated, p.UnrevealedCount() == 0; got != want {
			t.Errorf("player %q: eliminated = %t, but has %d unrevealed cards", p.ID, got, p.UnrevealedCount())
		}
	}
}

func checkIdle(t *testing.T, gs *conspiracy.GameState) {
	t.Helper()
	if gs.TurnState != conspiracy.Idle {
		t.Errorf("turn state = %q, want %q", gs.TurnState, conspiracy.Idle)
	}
	if gs.Pending != nil {
		t.Errorf("pending action %+v remains after resolution", gs.Pending)
	}
}

func TestIncome(t *testing.T) {
	// Scenario A: unopposed income resolves on the spot.
	gs := testState(t,
		player("alice", 2, conspiracy.Duke, conspiracy.Captain),
		player("bob", 2, conspiracy.Assassin, conspiracy.Contessa),
		player("carol", 2, conspiracy.Ambassador, conspiracy.Duke),
	)
	g := newGame(gs)

	mustMove(t, g, &Move{Player: "alice", Action: ActionDeclare, Kind: conspiracy.Income})

	if got, want := gs.Players[0].Coins, 3; got != want {
		t.Errorf("alice has %d coins, want %d", got, want)
	}
	if got, want := gs.Current().ID, conspiracy.PlayerID("bob"); got != want {
		t.Errorf("turn went to %q, want %q", got, want)
	}
	checkIdle(t, gs)
	checkConservation(t, gs)
}

func TestStealUnopposed(t *testing.T) {
	// Scenario B: everyone passes, the steal lands, clamped at the
	// nominal amount.
	gs := testState(t,
		player("alice", 2, conspiracy.Captain, conspiracy.Duke),
		player("bob", 5, conspiracy.Assassin, conspiracy.Contessa),
		player("carol", 2, conspiracy.Ambassador, conspiracy.Duke),
	)
	g := newGame(gs)

	mustMove(t, g, &Move{Player: "alice", Action: ActionDeclare, Kind: conspiracy.Steal, Target: "bob"})
	if gs.TurnState != conspiracy.ActionPending {
		t.Fatalf("turn state = %q, want %q", gs.TurnState, conspiracy.ActionPending)
	}

	mustMove(t, g, &Move{Player: "bob", Action: ActionPass})
	// One vote in, quorum is two; nothing resolves yet.
	if gs.TurnState != conspiracy.ActionPending {
		t.Fatalf("resolved with %d of %d votes", 1, 2)
	}
	mustMove(t, g, &Move{Player: "carol", Action: ActionPass})

	if got, want := gs.Players[0].Coins, 4; got != want {
		t.Errorf("alice has %d coins, want %d", got, want)
	}
	if got, want := gs.Players[1].Coins, 3; got != want {
		t.Errorf("bob has %d coins, want %d", got, want)
	}
	checkIdle(t, gs)
	checkConservation(t, gs)
}

func TestStealClampsToTargetCoins(t *testing.T) {
	gs := testState(t,
		player("alice", 2, conspiracy.Captain, conspiracy.Duke),
		player("bob", 1, conspiracy.Assassin, conspiracy.Contessa),
	)
	g := newGame(gs)

	mustMove(t, g, &Move{Player: "alice", Action: ActionDeclare, Kind: conspiracy.Steal, Target: "bob"})
	mustMove(t, g, &Move{Player: "bob", Action: ActionPass})

	if got, want := gs.Players[0].Coins, 3; got != want {
		t.Errorf("alice has %d coins, want %d", got, want)
	}
	if got, want := gs.Players[1].Coins, 0; got != want {
		t.Errorf("bob has %d coins, want %d", got, want)
	}
}

func TestVictimRespondsFirst(t *testing.T) {
	gs := testState(t,
		player("alice", 2, conspiracy.Captain, conspiracy.Duke),
		player("bob", 2, conspiracy.Assassin, conspiracy.Contessa),
		player("carol", 2, conspiracy.Ambassador, conspiracy.Duke),
	)
	g := newGame(gs)

	mustMove(t, g, &Move{Player: "alice", Action: ActionDeclare, Kind: conspiracy.Steal, Target: "bob"})

	// Carol is a bystander; she can't pass until bob has responded.
	if _, _, err := g.Move(&Move{Player: "carol", Action: ActionPass}); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("bystander pass before target: got %v, want ErrIllegalTransition", err)
	}

	mustMove(t, g, &Move{Player: "bob", Action: ActionPass})
	mustMove(t, g, &Move{Player: "carol", Action: ActionPass})
	checkIdle(t, gs)
}

func TestDuplicatePassIsNoOp(t *testing.T) {
	gs := testState(t,
		player("alice", 2, conspiracy.Duke, conspiracy.Duke),
		player("bob", 2, conspiracy.Assassin, conspiracy.Contessa),
		player("carol", 2, conspiracy.Ambassador, conspiracy.Captain),
		player("dave", 2, conspiracy.Contessa, conspiracy.Captain),
	)
	g := newGame(gs)

	mustMove(t, g, &Move{Player: "alice", Action: ActionDeclare, Kind: conspiracy.Tax})
	mustMove(t, g, &Move{Player: "bob", Action: ActionPass})
	mustMove(t, g, &Move{Player: "bob", Action: ActionPass})
	mustMove(t, g, &Move{Player: "bob", Action: ActionPass})

	// Three submissions, one vote. Quorum is three, so nothing resolves.
	if gs.TurnState != conspiracy.ActionPending {
		t.Fatalf("duplicate votes resolved the action, turn state = %q", gs.TurnState)
	}
	if got, want := len(gs.Pending.Votes), 1; got != want {
		t.Errorf("got %d votes, want %d", got, want)
	}

	mustMove(t, g, &Move{Player: "carol", Action: ActionPass})
	mustMove(t, g, &Move{Player: "dave", Action: ActionPass})
	if got, want := gs.Players[0].Coins, 5; got != want {
		t.Errorf("alice has %d coins, want %d", got, want)
	}
	checkIdle(t, gs)
}

func TestBluffCaught(t *testing.T) {
	// Scenario C: alice claims Duke without one, gets challenged, and
	// reveals a mismatch. The tax never lands.
	gs := testState(t,
		player("alice", 2, conspiracy.Captain, conspiracy.Assassin),
		player("bob", 2, conspiracy.Duke, conspiracy.Contessa),
		player("carol", 2, conspiracy.Ambassador, conspiracy.Duke),
	)
	g := newGame(gs)

	mustMove(t, g, &Move{Player: "alice", Action: ActionDeclare, Kind: conspiracy.Tax})
	mustMove(t, g, &Move{Player: "bob", Action: ActionChallenge})

	if gs.TurnState != conspiracy.ChallengeResolve {
		t.Fatalf("turn state = %q, want %q", gs.TurnState, conspiracy.ChallengeResolve)
	}

	mustMove(t, g, &Move{Player: "alice", Action: ActionReveal, CardIndex: 0})

	if gs.TurnState != conspiracy.LoseCard {
		t.Fatalf("turn state = %q, want %q", gs.TurnState, conspiracy.LoseCard)
	}
	if got, want := gs.Pending.Loss.Player, conspiracy.PlayerID("alice"); got != want {
		t.Fatalf("loss belongs to %q, want %q", got, want)
	}

	mustMove(t, g, &Move{Player: "alice", Action: ActionLoseCard, CardIndex: 0})

	// The bluffed tax was cancelled.
	if got, want := gs.Players[0].Coins, 2; got != want {
		t.Errorf("alice has %d coins, want %d", got, want)
	}
	if !gs.Players[0].Hand[0].Revealed {
		t.Error("alice's lost card isn't revealed")
	}
	if got, want := gs.Current().ID, conspiracy.PlayerID("bob"); got != want {
		t.Errorf("turn went to %q, want %q", got, want)
	}
	checkIdle(t, gs)
	checkElimination(t, gs)
	checkConservation(t, gs)
}

func TestTruthfulClaim(t *testing.T) {
	// A real Duke survives the challenge: the proven card is swapped
	// for a fresh one, the challenger pays, and the tax still lands.
	gs := testState(t,
		player("alice", 2, conspiracy.Captain, conspiracy.Duke),
		player("bob", 2, conspiracy.Assassin, conspiracy.Contessa),
		player("carol", 2, conspiracy.Ambassador, conspiracy.Duke),
	)
	g := newGame(gs)

	mustMove(t, g, &Move{Player: "alice", Action: ActionDeclare, Kind: conspiracy.Tax})
	mustMove(t, g, &Move{Player: "bob", Action: ActionChallenge})
	mustMove(t, g, &Move{Player: "alice", Action: ActionReveal, CardIndex: 1})

	// Truthful-claim stability: same hand size, same lives since a
	// replacement was drawn into the slot.
	alice := gs.Players[0]
	if got, want := len(alice.Hand), 2; got != want {
		t.Errorf("alice's hand has %d cards, want %d", got, want)
	}
	if got, want := alice.UnrevealedCount(), 2; got != want {
		t.Errorf("alice has %d lives, want %d", got, want)
	}

	// The challenger owes a card before anything else happens.
	if got, want := gs.Pending.Loss.Player, conspiracy.PlayerID("bob"); got != want {
		t.Fatalf("loss belongs to %q, want %q", got, want)
	}
	mustMove(t, g, &Move{Player: "bob", Action: ActionLoseCard, CardIndex: 0})

	// The proven tax cascades after the loss.
	if got, want := alice.Coins, 5; got != want {
		t.Errorf("alice has %d coins, want %d", got, want)
	}
	checkIdle(t, gs)
	checkElimination(t, gs)
	checkConservation(t, gs)
}

func TestBlockThenChallengeFailsForBlocker(t *testing.T) {
	// Scenario D: bob fakes a Contessa to block an assassination, gets
	// called on it, and eats both the challenge loss and the original
	// contract.
	gs := testState(t,
		player("alice", 3, conspiracy.Assassin, conspiracy.Duke),
		player("bob", 2, conspiracy.Captain, conspiracy.Duke),
		player("carol", 2, conspiracy.Ambassador, conspiracy.Contessa),
	)
	g := newGame(gs)

	mustMove(t, g, &Move{Player: "alice", Action: ActionDeclare, Kind: conspiracy.Assassinate, Target: "bob"})
	// The payment is sunk on declaration.
	if got, want := gs.Players[0].Coins, 0; got != want {
		t.Fatalf("alice has %d coins after declaring, want %d", got, want)
	}

	mustMove(t, g, &Move{Player: "bob", Action: ActionBlock, Claim: conspiracy.Contessa})
	mustMove(t, g, &Move{Player: "alice", Action: ActionChallenge})
	mustMove(t, g, &Move{Player: "bob", Action: ActionReveal, CardIndex: 0})

	// First loss: the failed block.
	if got, want := gs.Pending.Loss.Player, conspiracy.PlayerID("bob"); got != want {
		t.Fatalf("loss belongs to %q, want %q", got, want)
	}
	mustMove(t, g, &Move{Player: "bob", Action: ActionLoseCard, CardIndex: 0})

	// Second loss: the assassination cascades through.
	if gs.TurnState != conspiracy.LoseCard {
		t.Fatalf("turn state = %q, want %q for the cascaded assassination", gs.TurnState, conspiracy.LoseCard)
	}
	if got, want := gs.Pending.Loss.Reason, conspiracy.LossAssassination; got != want {
		t.Fatalf("loss reason = %q, want %q", got, want)
	}
	mustMove(t, g, &Move{Player: "bob", Action: ActionLoseCard, CardIndex: 1})

	if !gs.Players[1].Eliminated {
		t.Error("bob survived losing both cards")
	}
	if got, want := gs.Current().ID, conspiracy.PlayerID("carol"); got != want {
		t.Errorf("turn went to %q, want %q", got, want)
	}
	checkIdle(t, gs)
	checkElimination(t, gs)
	checkConservation(t, gs)
}

func TestCascadeSkipsEliminatedTarget(t *testing.T) {
	// Same shape as scenario D, but the first loss already eliminates
	// the target, so the cascaded assassination has no one to hit.
	gs := testState(t,
		player("alice", 3, conspiracy.Assassin, conspiracy.Duke),
		player("bob", 2, conspiracy.Captain),
		player("carol", 2, conspiracy.Ambassador, conspiracy.Contessa),
	)
	g := newGame(gs)

	mustMove(t, g, &Move{Player: "alice", Action: ActionDeclare, Kind: conspiracy.Assassinate, Target: "bob"})
	mustMove(t, g, &Move{Player: "bob", Action: ActionBlock, Claim: conspiracy.Contessa})
	mustMove(t, g, &Move{Player: "alice", Action: ActionChallenge})
	mustMove(t, g, &Move{Player: "bob", Action: ActionSurrender})
	mustMove(t, g, &Move{Player: "bob", Action: ActionLoseCard, CardIndex: 0})

	if !gs.Players[1].Eliminated {
		t.Fatal("bob should be out after his only card")
	}
	// No second loss; play moves on.
	checkIdle(t, gs)
	checkElimination(t, gs)
	checkConservation(t, gs)
}

func TestBlockAccepted(t *testing.T) {
	gs := testState(t,
		player("alice", 2, conspiracy.Captain, conspiracy.Assassin),
		player("bob", 2, conspiracy.Duke, conspiracy.Contessa),
		player("carol", 2, conspiracy.Ambassador, conspiracy.Duke),
	)
	g := newGame(gs)

	mustMove(t, g, &Move{Player: "alice", Action: ActionDeclare, Kind: conspiracy.ForeignAid})
	mustMove(t, g, &Move{Player: "bob", Action: ActionBlock, Claim: conspiracy.Duke})

	if gs.TurnState != conspiracy.BlockPending {
		t.Fatalf("turn state = %q, want %q", gs.TurnState, conspiracy.BlockPending)
	}

	// Everyone but the blocker accepts, actor included.
	mustMove(t, g, &Move{Player: "alice", Action: ActionPass})
	mustMove(t, g, &Move{Player: "carol", Action: ActionPass})

	// The aid never lands.
	if got, want := gs.Players[0].Coins, 2; got != want {
		t.Errorf("alice has %d coins, want %d", got, want)
	}
	checkIdle(t, gs)
	checkConservation(t, gs)
}

func TestBlockChallengedAndProven(t *testing.T) {
	// Bob really has the Duke: the block stands, the challenger pays,
	// and the foreign aid is dead for good.
	gs := testState(t,
		player("alice", 2, conspiracy.Captain, conspiracy.Assassin),
		player("bob", 2, conspiracy.Duke, conspiracy.Contessa),
		player("carol", 2, conspiracy.Ambassador, conspiracy.Duke),
	)
	g := newGame(gs)

	mustMove(t, g, &Move{Player: "alice", Action: ActionDeclare, Kind: conspiracy.ForeignAid})
	mustMove(t, g, &Move{Player: "bob", Action: ActionBlock, Claim: conspiracy.Duke})
	mustMove(t, g, &Move{Player: "alice", Action: ActionChallenge})
	mustMove(t, g, &Move{Player: "bob", Action: ActionReveal, CardIndex: 0})

	if got, want := gs.Pending.Loss.Player, conspiracy.PlayerID("alice"); got != want {
		t.Fatalf("loss belongs to %q, want %q", got, want)
	}
	mustMove(t, g, &Move{Player: "alice", Action: ActionLoseCard, CardIndex: 1})

	if got, want := gs.Players[0].Coins, 2; got != want {
		t.Errorf("alice has %d coins, want %d", got, want)
	}
	if got, want := gs.Players[1].UnrevealedCount(), 2; got != want {
		t.Errorf("bob has %d lives, want %d", got, want)
	}
	checkIdle(t, gs)
	checkConservation(t, gs)
}

func TestForeignAidCannotBeChallenged(t *testing.T) {
	gs := testState(t,
		player("alice", 2, conspiracy.Captain, conspiracy.Assassin),
		player("bob", 2, conspiracy.Duke, conspiracy.Contessa),
	)
	g := newGame(gs)

	mustMove(t, g, &Move{Player: "alice", Action: ActionDeclare, Kind: conspiracy.ForeignAid})
	if _, _, err := g.Move(&Move{Player: "bob", Action: ActionChallenge}); !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("challenging foreign aid: got %v, want ErrIllegalTransition", err)
	}
}

func TestCoup(t *testing.T) {
	gs := testState(t,
		player("alice", 7, conspiracy.Duke, conspiracy.Captain),
		player("bob", 2, conspiracy.Assassin, conspiracy.Contessa),
		player("carol", 2, conspiracy.Ambassador, conspiracy.Duke),
	)
	g := newGame(gs)

	mustMove(t, g, &Move{Player: "alice", Action: ActionDeclare, Kind: conspiracy.Coup, Target: "bob"})

	if got, want := gs.Players[0].Coins, 0; got != want {
		t.Errorf("alice has %d coins, want %d", got, want)
	}
	// No voting, no blocking: bob owes a card immediately.
	if gs.TurnState != conspiracy.LoseCard {
		t.Fatalf("turn state = %q, want %q", gs.TurnState, conspiracy.LoseCard)
	}
	if got, want := gs.Pending.Loss.Reason, conspiracy.LossCoup; got != want {
		t.Errorf("loss reason = %q, want %q", got, want)
	}

	mustMove(t, g, &Move{Player: "bob", Action: ActionLoseCard, CardIndex: 0})
	checkIdle(t, gs)
	checkElimination(t, gs)
	checkConservation(t, gs)
}

func TestCoupNeedsCoins(t *testing.T) {
	gs := testState(t,
		player("alice", 6, conspiracy.Duke, conspiracy.Captain),
		player("bob", 2, conspiracy.Assassin, conspiracy.Contessa),
	)
	g := newGame(gs)

	if _, _, err := g.Move(&Move{Player: "alice", Action: ActionDeclare, Kind: conspiracy.Coup, Target: "bob"}); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("coup at 6 coins: got %v, want ErrInsufficientFunds", err)
	}
}

func TestForcedCoup(t *testing.T) {
	// Scenario E: at ten coins, nothing but a coup may be declared, and
	// a rejected declaration leaves the state untouched.
	gs := testState(t,
		player("alice", 10, conspiracy.Duke, conspiracy.Captain),
		player("bob", 2, conspiracy.Assassin, conspiracy.Contessa),
	)
	before := gs.Clone()
	g := newGame(gs)

	for _, kind := range []conspiracy.ActionKind{
		conspiracy.Income, conspiracy.ForeignAid, conspiracy.Tax, conspiracy.Exchange,
	} {
		if _, _, err := g.Move(&Move{Player: "alice", Action: ActionDeclare, Kind: kind}); !errors.Is(err, ErrForcedAction) {
			t.Errorf("declaring %q at 10 coins: got %v, want ErrForcedAction", kind, err)
		}
	}
	if _, _, err := g.Move(&Move{Player: "alice", Action: ActionDeclare, Kind: conspiracy.Steal, Target: "bob"}); !errors.Is(err, ErrForcedAction) {
		t.Errorf("declaring steal at 10 coins: got %v, want ErrForcedAction", err)
	}

	if diff := cmp.Diff(before, gs); diff != "" {
		t.Errorf("rejected declarations mutated state (-want +got)\n%s", diff)
	}

	mustMove(t, g, &Move{Player: "alice", Action: ActionDeclare, Kind: conspiracy.Coup, Target: "bob"})
}

func TestExchange(t *testing.T) {
	gs := testState(t,
		player("alice", 2, conspiracy.Ambassador, conspiracy.Duke),
		player("bob", 2, conspiracy.Assassin, conspiracy.Contessa),
	)
	g := newGame(gs)
	deckBefore := len(gs.Supply.Deck)

	mustMove(t, g, &Move{Player: "alice", Action: ActionDeclare, Kind: conspiracy.Exchange})
	mustMove(t, g, &Move{Player: "bob", Action: ActionPass})

	if gs.TurnState != conspiracy.ExchangeSelect {
		t.Fatalf("turn state = %q, want %q", gs.TurnState, conspiracy.ExchangeSelect)
	}
	offer := gs.Pending.Exchange
	if got, want := len(offer.Pool), 4; got != want {
		t.Fatalf("pool has %d cards, want %d", got, want)
	}
	if got, want := offer.Keep, 2; got != want {
		t.Fatalf("keep count = %d, want %d", got, want)
	}
	checkConservation(t, gs)

	// Wrong selection sizes are rejected without touching anything.
	if _, _, err := g.Move(&Move{Player: "alice", Action: ActionKeep, Keep: []int{0}}); !errors.Is(err, ErrSelectionCount) {
		t.Errorf("keeping 1 of 2: got %v, want ErrSelectionCount", err)
	}
	if _, _, err := g.Move(&Move{Player: "alice", Action: ActionKeep, Keep: []int{1, 1}}); !errors.Is(err, ErrSelectionCount) {
		t.Errorf("keeping a duplicate index: got %v, want ErrSelectionCount", err)
	}

	mustMove(t, g, &Move{Player: "alice", Action: ActionKeep, Keep: []int{0, 3}})

	alice := gs.Players[0]
	if got, want := len(alice.Hand), 2; got != want {
		t.Errorf("alice's hand has %d cards, want %d", got, want)
	}
	if got, want := len(gs.Supply.Deck), deckBefore; got != want {
		t.Errorf("deck has %d cards, want %d", got, want)
	}
	checkIdle(t, gs)
	checkConservation(t, gs)
}

func TestExchangeKeepsRevealedCards(t *testing.T) {
	gs := testState(t,
		player("alice", 2, conspiracy.Ambassador, conspiracy.Duke),
		player("bob", 2, conspiracy.Assassin, conspiracy.Contessa),
		player("carol", 2, conspiracy.Captain, conspiracy.Captain),
	)
	gs.Players[0].Hand[1].Revealed = true
	g := newGame(gs)

	mustMove(t, g, &Move{Player: "alice", Action: ActionDeclare, Kind: conspiracy.Exchange})
	mustMove(t, g, &Move{Player: "bob", Action: ActionPass})
	mustMove(t, g, &Move{Player: "carol", Action: ActionPass})

	offer := gs.Pending.Exchange
	// One unrevealed card plus two draws; the dead Duke stays put.
	if got, want := len(offer.Pool), 3; got != want {
		t.Fatalf("pool has %d cards, want %d", got, want)
	}
	if got, want := offer.Keep, 1; got != want {
		t.Fatalf("keep count = %d, want %d", got, want)
	}

	mustMove(t, g, &Move{Player: "alice", Action: ActionKeep, Keep: []int{2}})

	alice := gs.Players[0]
	if got, want := len(alice.Hand), 2; got != want {
		t.Errorf("alice's hand has %d cards, want %d", got, want)
	}
	if got, want := alice.UnrevealedCount(), 1; got != want {
		t.Errorf("alice has %d lives, want %d", got, want)
	}
	checkElimination(t, gs)
	checkConservation(t, gs)
}

func TestDeclareValidation(t *testing.T) {
	gs := testState(t,
		player("alice", 3, conspiracy.Duke, conspiracy.Captain),
		player("bob", 2, conspiracy.Assassin, conspiracy.Contessa),
		player("carol", 2, conspiracy.Ambassador, conspiracy.Duke),
	)
	gs.Players[2].Hand[0].Revealed = true
	gs.Players[2].Hand[1].Revealed = true
	gs.Players[2].Eliminated = true
	g := newGame(gs)

	tests := []struct {
		desc string
		mv   *Move
		want error
	}{
		{
			desc: "out of turn",
			mv:   &Move{Player: "bob", Action: ActionDeclare, Kind: conspiracy.Income},
			want: ErrIllegalTransition,
		},
		{
			desc: "self target",
			mv:   &Move{Player: "alice", Action: ActionDeclare, Kind: conspiracy.Steal, Target: "alice"},
			want: ErrInvalidTarget,
		},
		{
			desc: "eliminated target",
			mv:   &Move{Player: "alice", Action: ActionDeclare, Kind: conspiracy.Steal, Target: "carol"},
			want: ErrInvalidTarget,
		},
		{
			desc: "target on untargeted kind",
			mv:   &Move{Player: "alice", Action: ActionDeclare, Kind: conspiracy.Tax, Target: "bob"},
			want: ErrInvalidTarget,
		},
		{
			desc: "coup without funds",
			mv:   &Move{Player: "alice", Action: ActionDeclare, Kind: conspiracy.Coup, Target: "bob"},
			want: ErrInsufficientFunds,
		},
	}

	for _, tc := range tests {
		t.Run(tc.desc, func(t *testing.T) {
			before := gs.Clone()
			if _, _, err := g.Move(tc.mv); !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
			if diff := cmp.Diff(before, gs); diff != "" {
				t.Errorf("rejected move mutated state (-want +got)\n%s", diff)
			}
		})
	}
}

func TestDeclareWhilePending(t *testing.T) {
	gs := testState(t,
		player("alice", 2, conspiracy.Duke, conspiracy.Captain),
		player("bob", 2, conspiracy.Assassin, conspiracy.Contessa),
	)
	g := newGame(gs)

	mustMove(t, g, &Move{Player: "alice", Action: ActionDeclare, Kind: conspiracy.Tax})
	if _, _, err := g.Move(&Move{Player: "alice", Action: ActionDeclare, Kind: conspiracy.Income}); !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("declaring over a pending action: got %v, want ErrIllegalTransition", err)
	}
}

func TestLoseCardAlreadyRevealed(t *testing.T) {
	gs := testState(t,
		player("alice", 7, conspiracy.Duke, conspiracy.Captain),
		player("bob", 2, conspiracy.Assassin, conspiracy.Contessa),
		player("carol", 2, conspiracy.Ambassador, conspiracy.Duke),
	)
	gs.Players[1].Hand[0].Revealed = true
	g := newGame(gs)

	mustMove(t, g, &Move{Player: "alice", Action: ActionDeclare, Kind: conspiracy.Coup, Target: "bob"})
	if _, _, err := g.Move(&Move{Player: "bob", Action: ActionLoseCard, CardIndex: 0}); !errors.Is(err, ErrAlreadyRevealed) {
		t.Errorf("flipping a dead card: got %v, want ErrAlreadyRevealed", err)
	}

	mustMove(t, g, &Move{Player: "bob", Action: ActionLoseCard, CardIndex: 1})
	checkElimination(t, gs)
}

func TestGameOver(t *testing.T) {
	gs := testState(t,
		player("alice", 7, conspiracy.Duke, conspiracy.Captain),
		player("bob", 2, conspiracy.Assassin),
	)
	g := newGame(gs)

	mustMove(t, g, &Move{Player: "alice", Action: ActionDeclare, Kind: conspiracy.Coup, Target: "bob"})

	evs, status, err := g.Move(&Move{Player: "bob", Action: ActionLoseCard, CardIndex: 0})
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if status != conspiracy.Finished {
		t.Errorf("status = %q, want %q", status, conspiracy.Finished)
	}
	if got, want := gs.Winner(), conspiracy.PlayerID("alice"); got != want {
		t.Errorf("winner = %q, want %q", got, want)
	}

	var sawGameOver bool
	for _, ev := range evs {
		if ev.Kind == conspiracy.EventGameOver {
			sawGameOver = true
			if got, want := ev.Player, conspiracy.PlayerID("alice"); got != want {
				t.Errorf("game-over event names %q, want %q", got, want)
			}
		}
	}
	if !sawGameOver {
		t.Errorf("no game-over event in %+v", evs)
	}
	checkIdle(t, gs)
}

func TestTurnSkipsEliminated(t *testing.T) {
	gs := testState(t,
		player("alice", 2, conspiracy.Duke, conspiracy.Captain),
		player("bob", 2, conspiracy.Assassin, conspiracy.Contessa),
		player("carol", 2, conspiracy.Ambassador, conspiracy.Duke),
	)
	gs.Players[1].Hand[0].Revealed = true
	gs.Players[1].Hand[1].Revealed = true
	gs.Players[1].Eliminated = true
	g := newGame(gs)

	mustMove(t, g, &Move{Player: "alice", Action: ActionDeclare, Kind: conspiracy.Income})

	if got, want := gs.Current().ID, conspiracy.PlayerID("carol"); got != want {
		t.Errorf("turn went to %q, want %q", got, want)
	}
}

func TestEventsAreCausallyOrdered(t *testing.T) {
	gs := testState(t,
		player("alice", 2, conspiracy.Duke, conspiracy.Captain),
		player("bob", 2, conspiracy.Assassin, conspiracy.Contessa),
	)
	g := newGame(gs)

	evs := mustMove(t, g, &Move{Player: "alice", Action: ActionDeclare, Kind: conspiracy.Income})

	want := []conspiracy.EventKind{
		conspiracy.EventActionDeclared,
		conspiracy.EventCoinsGained,
		conspiracy.EventTurnAdvanced,
	}
	var got []conspiracy.EventKind
	for _, ev := range evs {
		got = append(got, ev.Kind)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected event order (-want +got)\n%s", diff)
	}
}
