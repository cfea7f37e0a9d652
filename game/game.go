// Package game is the action-resolution engine: it turns a player's
// declared action into a fully resolved state transition, through
// bluffs, blocks, challenges, card losses, and turn rotation. The
// engine is pure; it mutates the *conspiracy.GameState it's given and
// reports what happened as an ordered event feed. Persistence,
// concurrency control, and transport live elsewhere.
package game

import (
	"errors"
	"fmt"
	"math/rand"

	conspiracy "github.com/bcspragu/Conspiracy"
	"github.com/bcspragu/Conspiracy/consensus"
)

var (
	// ErrIllegalTransition covers operations attempted outside their
	// legal turn state, or by a player who has no business making them.
	ErrIllegalTransition = errors.New("game: operation not legal now")
	ErrInsufficientFunds = errors.New("game: not enough coins")
	// ErrForcedAction means the player sat on enough coins that only the
	// forced action may be declared.
	ErrForcedAction    = errors.New("game: coin total forces a coup")
	ErrInvalidTarget   = errors.New("game: invalid target")
	ErrAlreadyRevealed = errors.New("game: card is already revealed")
	ErrSelectionCount  = errors.New("game: wrong number of cards selected")
)

// Game wraps a round's state for a single move. It's cheap to build:
// construct one against the latest state, apply the move, persist the
// state, throw the Game away.
type Game struct {
	state  *conspiracy.GameState
	r      *rand.Rand
	events []conspiracy.Event
}

// New wraps state for move application. The *rand.Rand feeds the
// reshuffles that challenges and exchanges trigger.
func New(state *conspiracy.GameState, r *rand.Rand) *Game {
	return &Game{state: state, r: r}
}

// Action is what a Move asks the engine to do.
type Action string

const (
	// ActionDeclare declares a turn action, opening a resolution window
	// for contestable kinds.
	ActionDeclare = Action("DECLARE")
	// ActionPass acknowledges a pending action or block without a fight.
	ActionPass = Action("PASS")
	// ActionBlock interposes a counter-claim against the pending action.
	ActionBlock = Action("BLOCK")
	// ActionChallenge accuses the pending claim (action or block) of
	// being a bluff.
	ActionChallenge = Action("CHALLENGE")
	// ActionReveal answers a challenge by showing a card.
	ActionReveal = Action("REVEAL")
	// ActionSurrender concedes a challenge without showing anything.
	ActionSurrender = Action("SURRENDER")
	// ActionLoseCard picks which card to flip when a loss is owed.
	ActionLoseCard = Action("LOSE_CARD")
	// ActionKeep picks which cards to keep out of an exchange pool.
	ActionKeep = Action("KEEP")
)

// Move is a single player input. Only the fields its Action reads need
// to be set.
type Move struct {
	Player conspiracy.PlayerID `json:"player"`
	Action Action              `json:"action"`

	// Kind and Target are for ActionDeclare.
	Kind   conspiracy.ActionKind `json:"kind,omitempty"`
	Target conspiracy.PlayerID   `json:"target,omitempty"`
	// Claim is the blocking role for ActionBlock.
	Claim conspiracy.Role `json:"claim,omitempty"`
	// CardIndex is for ActionReveal and ActionLoseCard.
	CardIndex int `json:"card_index,omitempty"`
	// Keep is for ActionKeep.
	Keep []int `json:"keep,omitempty"`
}

// Move applies a single player input to the state. On error the state
// is untouched; validation happens before any mutation. On success it
// returns the events the move produced, in causal order, and whether
// the round is still going.
func (g *Game) Move(mv *Move) ([]conspiracy.Event, conspiracy.GameStatus, error) {
	g.events = nil

	var err error
	switch mv.Action {
	case ActionDeclare:
		err = g.handleDeclare(mv.Player, mv.Kind, mv.Target)
	case ActionPass:
		err = g.handlePass(mv.Player)
	case ActionBlock:
		err = g.handleBlock(mv.Player, mv.Claim)
	case ActionChallenge:
		err = g.handleChallenge(mv.Player)
	case ActionReveal:
		err = g.handleReveal(mv.Player, mv.CardIndex)
	case ActionSurrender:
		err = g.handleSurrender(mv.Player)
	case ActionLoseCard:
		err = g.handleLoseCard(mv.Player, mv.CardIndex)
	case ActionKeep:
		err = g.handleKeep(mv.Player, mv.Keep)
	default:
		err = fmt.Errorf("unknown action %q", mv.Action)
	}
	if err != nil {
		return nil, conspiracy.NoStatus, err
	}

	status := conspiracy.Playing
	if over, _ := g.GameOver(); over {
		status = conspiracy.Finished
	}
	return g.events, status, nil
}

// GameOver reports whether at most one player is left standing, and who
// that is.
func (g *Game) GameOver() (bool, conspiracy.PlayerID) {
	if g.state.Living() > 1 {
		return false, conspiracy.NoPlayer
	}
	return true, g.state.Winner()
}

func (g *Game) emit(ev conspiracy.Event) {
	g.events = append(g.events, ev)
}

// livingPlayer resolves an ID to a non-eliminated player.
func (g *Game) livingPlayer(id conspiracy.PlayerID) (*conspiracy.Player, error) {
	p, ok := g.state.Player(id)
	if !ok {
		return nil, fmt.Errorf("no player %q in this game: %w", id, ErrIllegalTransition)
	}
	if p.Eliminated {
		return nil, fmt.Errorf("player %q is eliminated: %w", id, ErrIllegalTransition)
	}
	return p, nil
}

func (g *Game) handleDeclare(actorID conspiracy.PlayerID, kind conspiracy.ActionKind, targetID conspiracy.PlayerID) error {
	if g.state.TurnState != conspiracy.Idle {
		return fmt.Errorf("can't declare while %q is being resolved: %w", g.state.TurnState, ErrIllegalTransition)
	}

	actor, err := g.livingPlayer(actorID)
	if err != nil {
		return err
	}
	if g.state.Current().ID != actorID {
		return fmt.Errorf("it's %q's turn, not %q's: %w", g.state.Current().ID, actorID, ErrIllegalTransition)
	}

	switch kind {
	case conspiracy.Income, conspiracy.ForeignAid, conspiracy.Tax, conspiracy.Steal,
		conspiracy.Assassinate, conspiracy.Exchange, conspiracy.Coup:
	default:
		return fmt.Errorf("unknown action kind %q: %w", kind, ErrIllegalTransition)
	}

	if actor.Coins >= conspiracy.ForcedCoinThreshold && kind != conspiracy.Coup {
		return fmt.Errorf("%d coins force a coup: %w", actor.Coins, ErrForcedAction)
	}

	cost := kind.Cost()
	if actor.Coins < cost {
		return fmt.Errorf("%q costs %d, %q has %d: %w", kind, cost, actorID, actor.Coins, ErrInsufficientFunds)
	}

	if kind.Targeted() {
		if targetID == actorID {
			return fmt.Errorf("can't target yourself: %w", ErrInvalidTarget)
		}
		if _, err := g.livingPlayer(targetID); err != nil {
			return fmt.Errorf("bad target %q: %w", targetID, ErrInvalidTarget)
		}
	} else if targetID != conspiracy.NoPlayer {
		return fmt.Errorf("%q takes no target: %w", kind, ErrInvalidTarget)
	}

	// Validation is done; everything below mutates.
	g.emit(conspiracy.Event{
		Kind:   conspiracy.EventActionDeclared,
		Player: actorID,
		Target: targetID,
		Action: kind,
		Role:   kind.ClaimedRole(),
	})

	switch kind {
	case conspiracy.Income:
		// Pure income can't be contested, so it resolves on the spot.
		actor.Coins++
		g.emit(conspiracy.Event{Kind: conspiracy.EventCoinsGained, Player: actorID, Amount: 1})
		g.advance()
	case conspiracy.Coup:
		// The payment is sunk immediately, and the target owes a card
		// with no resolution window: a coup can't be blocked or
		// challenged.
		actor.Coins -= cost
		g.state.Pending = &conspiracy.PendingAction{
			Kind:   kind,
			Actor:  actorID,
			Target: targetID,
		}
		g.setLoss(targetID, conspiracy.LossCoup)
	default:
		// Assassinate pays up front too, and the payment stays sunk even
		// if the assassination is blocked or challenged away. Bluffing
		// is free; a real attack isn't.
		actor.Coins -= cost
		g.state.Pending = &conspiracy.PendingAction{
			Kind:   kind,
			Actor:  actorID,
			Target: targetID,
		}
		g.state.TurnState = conspiracy.ActionPending
	}
	return nil
}

func (g *Game) handlePass(voterID conspiracy.PlayerID) error {
	pa := g.state.Pending

	switch g.state.TurnState {
	case conspiracy.ActionPending:
		voter, err := g.livingPlayer(voterID)
		if err != nil {
			return err
		}
		if voter.ID == pa.Actor {
			return fmt.Errorf("the actor doesn't vote on their own action: %w", ErrIllegalTransition)
		}
		if consensus.BystanderMustWait(pa, voterID) {
			return fmt.Errorf("waiting on target %q to respond first: %w", pa.Target, ErrIllegalTransition)
		}

		votes, added := consensus.Record(pa.Votes, voterID)
		pa.Votes = votes
		if !added {
			// Duplicate votes are a no-op, not an error.
			return nil
		}
		g.emit(conspiracy.Event{Kind: conspiracy.EventPassed, Player: voterID, Action: pa.Kind})

		if consensus.Reached(pa.Votes, g.state.Living()) {
			g.applyAction()
		}
		return nil
	case conspiracy.BlockPending:
		return g.handleAcceptBlock(voterID)
	default:
		return fmt.Errorf("nothing to pass on in state %q: %w", g.state.TurnState, ErrIllegalTransition)
	}
}

// handleAcceptBlock collects acknowledgements that a block stands. At
// quorum the blocked action fails outright; sunk costs stay sunk.
func (g *Game) handleAcceptBlock(voterID conspiracy.PlayerID) error {
	pa := g.state.Pending

	voter, err := g.livingPlayer(voterID)
	if err != nil {
		return err
	}
	if voter.ID == pa.Blocker {
		return fmt.Errorf("the blocker doesn't vote on their own block: %w", ErrIllegalTransition)
	}

	votes, added := consensus.Record(pa.Votes, voterID)
	pa.Votes = votes
	if !added {
		return nil
	}
	g.emit(conspiracy.Event{Kind: conspiracy.EventPassed, Player: voterID, Action: pa.Kind})

	if consensus.Reached(pa.Votes, g.state.Living()) {
		g.emit(conspiracy.Event{
			Kind:   conspiracy.EventBlockAccepted,
			Player: pa.Blocker,
			Target: pa.Actor,
			Action: pa.Kind,
			Role:   pa.BlockClaim,
		})
		g.advance()
	}
	return nil
}

func (g *Game) handleBlock(blockerID conspiracy.PlayerID, claim conspiracy.Role) error {
	if g.state.TurnState != conspiracy.ActionPending {
		return fmt.Errorf("nothing to block in state %q: %w", g.state.TurnState, ErrIllegalTransition)
	}
	pa := g.state.Pending

	blocker, err := g.livingPlayer(blockerID)
	if err != nil {
		return err
	}
	if blocker.ID == pa.Actor {
		return fmt.Errorf("can't block your own action: %w", ErrIllegalTransition)
	}
	if !conspiracy.Blocks(claim, pa.Kind) {
		return fmt.Errorf("%q doesn't block %q: %w", claim, pa.Kind, ErrIllegalTransition)
	}
	// Targeted actions can only be blocked by their victim. Anyone may
	// block an untargeted one.
	if pa.Kind.Targeted() && blockerID != pa.Target {
		return fmt.Errorf("only the target %q may block %q: %w", pa.Target, pa.Kind, ErrIllegalTransition)
	}

	pa.Blocker = blockerID
	pa.BlockClaim = claim
	pa.Votes = nil
	g.state.TurnState = conspiracy.BlockPending

	g.emit(conspiracy.Event{
		Kind:   conspiracy.EventBlocked,
		Player: blockerID,
		Target: pa.Actor,
		Action: pa.Kind,
		Role:   claim,
	})
	return nil
}

func (g *Game) handleChallenge(challengerID conspiracy.PlayerID) error {
	pa := g.state.Pending

	var (
		accused conspiracy.PlayerID
		claimed conspiracy.Role
		against bool
	)
	switch g.state.TurnState {
	case conspiracy.ActionPending:
		claimed = pa.Kind.ClaimedRole()
		if claimed == conspiracy.NoRole {
			return fmt.Errorf("%q claims no role, there's nothing to challenge: %w", pa.Kind, ErrIllegalTransition)
		}
		accused = pa.Actor
	case conspiracy.BlockPending:
		accused = pa.Blocker
		claimed = pa.BlockClaim
		against = true
	default:
		return fmt.Errorf("nothing to challenge in state %q: %w", g.state.TurnState, ErrIllegalTransition)
	}

	if _, err := g.livingPlayer(challengerID); err != nil {
		return err
	}
	if challengerID == accused {
		return fmt.Errorf("can't challenge your own claim: %w", ErrIllegalTransition)
	}

	pa.Challenge = &conspiracy.Challenge{
		Accused:      accused,
		Challenger:   challengerID,
		Claimed:      claimed,
		AgainstBlock: against,
	}
	// A challenge supersedes whatever voting was underway.
	pa.Votes = nil
	g.state.TurnState = conspiracy.ChallengeResolve

	g.emit(conspiracy.Event{
		Kind:   conspiracy.EventChallenged,
		Player: challengerID,
		Target: accused,
		Role:   claimed,
	})
	return nil
}

func (g *Game) handleReveal(playerID conspiracy.PlayerID, cardIndex int) error {
	if g.state.TurnState != conspiracy.ChallengeResolve {
		return fmt.Errorf("no challenge to answer in state %q: %w", g.state.TurnState, ErrIllegalTransition)
	}
	pa := g.state.Pending
	ch := pa.Challenge

	if playerID != ch.Accused {
		return fmt.Errorf("only the accused %q may reveal: %w", ch.Accused, ErrIllegalTransition)
	}
	accused, ok := g.state.Player(playerID)
	if !ok {
		return fmt.Errorf("no player %q in this game: %w", playerID, ErrIllegalTransition)
	}
	if cardIndex < 0 || cardIndex >= len(accused.Hand) {
		return fmt.Errorf("card index %d out of range: %w", cardIndex, ErrIllegalTransition)
	}
	card := accused.Hand[cardIndex]
	if card.Revealed {
		return fmt.Errorf("card %d: %w", cardIndex, ErrAlreadyRevealed)
	}

	if card.Role != ch.Claimed {
		// Bluff caught. Same consequences as surrendering.
		g.failClaim()
		return nil
	}

	// The claim was truthful. The proven card goes back into the deck,
	// a fresh unknown replaces it in the same slot, and the challenger
	// pays for the accusation with a card.
	g.state.Supply.Return([]conspiracy.Card{card}, g.r)
	drawn := g.state.Supply.Draw(1)
	accused.Hand[cardIndex] = drawn[0]

	g.emit(conspiracy.Event{
		Kind:   conspiracy.EventClaimProven,
		Player: ch.Accused,
		Target: ch.Challenger,
		Role:   ch.Claimed,
	})

	if ch.AgainstBlock {
		// The block was real, so it stands and the original action is
		// defeated for good. Nothing left to resume after the
		// challenger's loss.
		pa.Followups = nil
	} else {
		// The action claim was real; its effect resumes once the
		// challenger has paid.
		pa.Followups = append(pa.Followups, conspiracy.FollowupApplyAction)
	}

	loser := ch.Challenger
	pa.Challenge = nil
	g.setLoss(loser, conspiracy.LossChallenge)
	return nil
}

func (g *Game) handleSurrender(playerID conspiracy.PlayerID) error {
	if g.state.TurnState != conspiracy.ChallengeResolve {
		return fmt.Errorf("no challenge to surrender in state %q: %w", g.state.TurnState, ErrIllegalTransition)
	}
	if playerID != g.state.Pending.Challenge.Accused {
		return fmt.Errorf("only the accused %q may surrender: %w", g.state.Pending.Challenge.Accused, ErrIllegalTransition)
	}

	// Conceding scores identically to a caught bluff; it just lets the
	// accused keep their hand secret.
	g.failClaim()
	return nil
}

// failClaim resolves a challenge against the accused: a caught bluff or
// a surrender. The accused owes a card. A failed action claim cancels
// the action; a failed block claim revives it, to resume after the
// card-loss.
func (g *Game) failClaim() {
	pa := g.state.Pending
	ch := pa.Challenge

	g.emit(conspiracy.Event{
		Kind:   conspiracy.EventClaimFailed,
		Player: ch.Accused,
		Target: ch.Challenger,
		Role:   ch.Claimed,
	})

	if ch.AgainstBlock {
		pa.Followups = append(pa.Followups, conspiracy.FollowupApplyAction)
	}

	loser := ch.Accused
	pa.Challenge = nil
	g.setLoss(loser, conspiracy.LossChallenge)
}

// setLoss routes a player into the lose-a-card state.
func (g *Game) setLoss(playerID conspiracy.PlayerID, reason conspiracy.LossReason) {
	g.state.Pending.Loss = &conspiracy.Loss{Player: playerID, Reason: reason}
	g.state.TurnState = conspiracy.LoseCard
}

func (g *Game) handleLoseCard(playerID conspiracy.PlayerID, cardIndex int) error {
	if g.state.TurnState != conspiracy.LoseCard {
		return fmt.Errorf("no card loss outstanding in state %q: %w", g.state.TurnState, ErrIllegalTransition)
	}
	pa := g.state.Pending
	loss := pa.Loss

	if playerID != loss.Player {
		return fmt.Errorf("the loss belongs to %q, not %q: %w", loss.Player, playerID, ErrIllegalTransition)
	}
	p, ok := g.state.Player(playerID)
	if !ok {
		return fmt.Errorf("no player %q in this game: %w", playerID, ErrIllegalTransition)
	}
	if cardIndex < 0 || cardIndex >= len(p.Hand) {
		return fmt.Errorf("card index %d out of range: %w", cardIndex, ErrIllegalTransition)
	}
	if p.Hand[cardIndex].Revealed {
		return fmt.Errorf("card %d: %w", cardIndex, ErrAlreadyRevealed)
	}

	p.Hand[cardIndex].Revealed = true
	pa.Loss = nil

	g.emit(conspiracy.Event{
		Kind:   conspiracy.EventCardLost,
		Player: playerID,
		Role:   p.Hand[cardIndex].Role,
		Reason: loss.Reason,
	})

	if p.UnrevealedCount() == 0 {
		p.Eliminated = true
		g.emit(conspiracy.Event{Kind: conspiracy.EventPlayerEliminated, Player: playerID})
	}

	if over, winner := g.GameOver(); over {
		g.state.Pending = nil
		g.state.TurnState = conspiracy.Idle
		g.emit(conspiracy.Event{Kind: conspiracy.EventGameOver, Player: winner})
		return nil
	}

	// The interrupting loss is settled; resume whatever it interrupted.
	if len(pa.Followups) > 0 {
		next := pa.Followups[0]
		pa.Followups = pa.Followups[1:]
		switch next {
		case conspiracy.FollowupApplyAction:
			g.applyAction()
		}
		return nil
	}

	g.advance()
	return nil
}

// applyAction applies the pending action's effect after it has survived
// its resolution window: unopposed quorum, a proven claim, or an
// invalidated block.
func (g *Game) applyAction() {
	pa := g.state.Pending
	actor, _ := g.state.Player(pa.Actor)

	switch pa.Kind {
	case conspiracy.ForeignAid:
		actor.Coins += 2
		g.emit(conspiracy.Event{Kind: conspiracy.EventCoinsGained, Player: pa.Actor, Amount: 2})
		g.advance()
	case conspiracy.Tax:
		actor.Coins += 3
		g.emit(conspiracy.Event{Kind: conspiracy.EventCoinsGained, Player: pa.Actor, Amount: 3})
		g.advance()
	case conspiracy.Steal:
		target, _ := g.state.Player(pa.Target)
		if target.Eliminated {
			// The target fell during resolution; nothing left to steal
			// from.
			g.advance()
			return
		}
		amount := conspiracy.StealAmount
		if target.Coins < amount {
			amount = target.Coins
		}
		target.Coins -= amount
		actor.Coins += amount
		g.emit(conspiracy.Event{
			Kind:   conspiracy.EventCoinsStolen,
			Player: pa.Actor,
			Target: pa.Target,
			Amount: amount,
		})
		g.advance()
	case conspiracy.Assassinate:
		target, _ := g.state.Player(pa.Target)
		if target.Eliminated {
			// The cascade already finished them off; the contract is
			// complete.
			g.advance()
			return
		}
		g.setLoss(pa.Target, conspiracy.LossAssassination)
	case conspiracy.Exchange:
		g.openExchange(actor)
	default:
		// Income and Coup never come through here; they resolve at
		// declaration.
		g.advance()
	}
}

// openExchange moves the actor's unrevealed cards into a temporary pool
// alongside fresh draws and waits for them to choose what to keep.
func (g *Game) openExchange(actor *conspiracy.Player) {
	pa := g.state.Pending

	var pool, kept []conspiracy.Card
	for _, c := range actor.Hand {
		if c.Revealed {
			kept = append(kept, c)
		} else {
			pool = append(pool, c)
		}
	}
	keep := len(pool)
	pool = append(pool, g.state.Supply.Draw(conspiracy.ExchangeDraw)...)

	actor.Hand = kept
	pa.Exchange = &conspiracy.ExchangeOffer{Pool: pool, Keep: keep}
	g.state.TurnState = conspiracy.ExchangeSelect

	g.emit(conspiracy.Event{
		Kind:   conspiracy.EventExchangeOffered,
		Player: actor.ID,
		Amount: keep,
	})
}

func (g *Game) handleKeep(playerID conspiracy.PlayerID, keep []int) error {
	if g.state.TurnState != conspiracy.ExchangeSelect {
		return fmt.Errorf("no exchange to finish in state %q: %w", g.state.TurnState, ErrIllegalTransition)
	}
	pa := g.state.Pending
	offer := pa.Exchange

	if playerID != pa.Actor {
		return fmt.Errorf("the exchange belongs to %q, not %q: %w", pa.Actor, playerID, ErrIllegalTransition)
	}
	if len(keep) != offer.Keep {
		return fmt.Errorf("selected %d cards, must keep %d: %w", len(keep), offer.Keep, ErrSelectionCount)
	}
	chosen := make(map[int]bool)
	for _, idx := range keep {
		if idx < 0 || idx >= len(offer.Pool) {
			return fmt.Errorf("pool index %d out of range: %w", idx, ErrSelectionCount)
		}
		if chosen[idx] {
			return fmt.Errorf("pool index %d selected twice: %w", idx, ErrSelectionCount)
		}
		chosen[idx] = true
	}

	actor, _ := g.state.Player(playerID)
	var returned []conspiracy.Card
	for i, c := range offer.Pool {
		if chosen[i] {
			actor.Hand = append(actor.Hand, c)
		} else {
			returned = append(returned, c)
		}
	}
	g.state.Supply.Return(returned, g.r)

	g.emit(conspiracy.Event{
		Kind:   conspiracy.EventExchangeDone,
		Player: playerID,
		Amount: offer.Keep,
	})

	pa.Exchange = nil
	g.advance()
	return nil
}

// advance hands the turn to the next living player and resets the
// resolution machinery. It must only run once no card-loss or exchange
// is outstanding.
func (g *Game) advance() {
	n := len(g.state.Players)
	next := -1
	for i := 1; i <= n; i++ {
		j := (g.state.TurnIndex + i) % n
		if !g.state.Players[j].Eliminated {
			next = j
			break
		}
	}
	if next == -1 {
		// Wraparound failed; fall back to scanning from the top for
		// anyone still standing.
		for j, p := range g.state.Players {
			if !p.Eliminated {
				next = j
				break
			}
		}
	}
	if next != -1 {
		g.state.TurnIndex = next
	}

	g.state.Pending = nil
	g.state.TurnState = conspiracy.Idle

	g.emit(conspiracy.Event{
		Kind:   conspiracy.EventTurnAdvanced,
		Player: g.state.Current().ID,
	})
}
