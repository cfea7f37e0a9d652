package conspiracy

// Role is one of the hidden identities a card can represent. A player
// claims a role implicitly by declaring its action or its block; claims
// can be lies, and lies can be challenged.
type Role string

const (
	// NoRole is an error case, and also what redacted cards show.
	NoRole     = Role("")
	Duke       = Role("DUKE")
	Assassin   = Role("ASSASSIN")
	Captain    = Role("CAPTAIN")
	Ambassador = Role("AMBASSADOR")
	Contessa   = Role("CONTESSA")
)

// Roles is every role in the game, in deck order.
var Roles = []Role{Duke, Assassin, Captain, Ambassador, Contessa}

// ActionKind is a declarable turn action.
type ActionKind string

const (
	// NoAction is an error case.
	NoAction    = ActionKind("")
	Income      = ActionKind("INCOME")
	ForeignAid  = ActionKind("FOREIGN_AID")
	Tax         = ActionKind("TAX")
	Steal       = ActionKind("STEAL")
	Assassinate = ActionKind("ASSASSINATE")
	Exchange    = ActionKind("EXCHANGE")
	Coup        = ActionKind("COUP")
)

const (
	// ForcedCoinThreshold is the coin count at or above which a player
	// must declare a Coup and may declare nothing else.
	ForcedCoinThreshold = 10

	// StealAmount is the nominal number of coins a Steal transfers.
	StealAmount = 2
	// ExchangeDraw is how many fresh cards an Exchange pulls from the deck.
	ExchangeDraw = 2
	// StartingCoins is how many coins each player is dealt at round start.
	StartingCoins = 2
	// CopiesPerRole is how many cards of each role the supply holds.
	CopiesPerRole = 3
)

// Cost returns the upfront coin cost of declaring the action. The cost
// is deducted at declaration time and is never refunded, even if the
// action is later blocked or challenged away.
func (k ActionKind) Cost() int {
	switch k {
	case Assassinate:
		return 3
	case Coup:
		return 7
	}
	return 0
}

// Targeted reports whether the action is declared against another player.
func (k ActionKind) Targeted() bool {
	switch k {
	case Steal, Assassinate, Coup:
		return true
	}
	return false
}

// ClaimedRole returns the role a player implicitly claims by declaring
// the action, or NoRole if the action claims nothing (and so can't be
// challenged).
func (k ActionKind) ClaimedRole() Role {
	switch k {
	case Tax:
		return Duke
	case Steal:
		return Captain
	case Assassinate:
		return Assassin
	case Exchange:
		return Ambassador
	}
	return NoRole
}

// Contested reports whether declaring the action opens a resolution
// window at all. Income and Coup resolve without one.
func (k ActionKind) Contested() bool {
	switch k {
	case Income, Coup:
		return false
	}
	return true
}

// Blocks reports whether a claim of role r can block action kind k.
func Blocks(r Role, k ActionKind) bool {
	switch k {
	case ForeignAid:
		return r == Duke
	case Steal:
		return r == Captain || r == Ambassador
	case Assassinate:
		return r == Contessa
	}
	return false
}

// Card is a single role card. A revealed card is permanently dead: it
// can't back a claim, block anything, or count as a life.
type Card struct {
	Role     Role `json:"role"`
	Revealed bool `json:"revealed"`
}

// Player is a participant in a round.
type Player struct {
	ID    PlayerID `json:"id"`
	Name  string   `json:"name"`
	Coins int      `json:"coins"`
	Hand  []Card   `json:"hand"`
	// Eliminated is true exactly when every card in Hand is revealed.
	Eliminated bool `json:"eliminated"`
}

// UnrevealedCount returns how many lives the player has left.
func (p *Player) UnrevealedCount() int {
	var n int
	for _, c := range p.Hand {
		if !c.Revealed {
			n++
		}
	}
	return n
}

func (p *Player) Clone() *Player {
	pc := *p
	pc.Hand = append([]Card(nil), p.Hand...)
	return &pc
}

// Supply is the shared draw pile. Cards only ever move between the
// supply and hands; nothing creates or destroys them.
type Supply struct {
	Deck []Card `json:"deck"`
}

// Draw removes and returns the top n cards from the deck, or fewer if
// the deck runs short.
func (s *Supply) Draw(n int) []Card {
	if n > len(s.Deck) {
		n = len(s.Deck)
	}
	drawn := append([]Card(nil), s.Deck[:n]...)
	s.Deck = s.Deck[n:]
	return drawn
}

// Return puts cards back into the deck and reshuffles it.
func (s *Supply) Return(cards []Card, r Shuffler) {
	for _, c := range cards {
		c.Revealed = false
		s.Deck = append(s.Deck, c)
	}
	s.Shuffle(r)
}

// Shuffle is a Fisher-Yates shuffle of the deck.
func (s *Supply) Shuffle(r Shuffler) {
	r.Shuffle(len(s.Deck), func(i, j int) {
		s.Deck[i], s.Deck[j] = s.Deck[j], s.Deck[i]
	})
}

func (s *Supply) Clone() *Supply {
	return &Supply{Deck: append([]Card(nil), s.Deck...)}
}

// Shuffler is the randomness a Supply needs, satisfied by *rand.Rand.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// TurnState says which resolution step the round is waiting on.
type TurnState string

const (
	Idle             = TurnState("IDLE")
	ActionPending    = TurnState("ACTION_PENDING")
	BlockPending     = TurnState("BLOCK_PENDING")
	ChallengeResolve = TurnState("CHALLENGE_RESOLVE")
	LoseCard         = TurnState("LOSE_CARD")
	ExchangeSelect   = TurnState("EXCHANGE_SELECT")
)

// PendingAction is the single in-flight contested action. At most one
// exists at a time; it's created when a contested action is declared and
// cleared when the turn advances. Each resolution context (challenge,
// card loss, exchange) carries its own sub-struct so that fields for
// one context can't leak into another.
type PendingAction struct {
	Kind   ActionKind `json:"kind"`
	Actor  PlayerID   `json:"actor"`
	Target PlayerID   `json:"target,omitempty"`

	// Votes are the pass acknowledgements collected so far, for the
	// action (ACTION_PENDING) or the block (BLOCK_PENDING). Reset on
	// every transition between those states.
	Votes []PlayerID `json:"votes,omitempty"`

	Blocker    PlayerID `json:"blocker,omitempty"`
	BlockClaim Role     `json:"block_claim,omitempty"`

	Challenge *Challenge     `json:"challenge,omitempty"`
	Loss      *Loss          `json:"loss,omitempty"`
	Exchange  *ExchangeOffer `json:"exchange,omitempty"`

	// Followups are deferred effects to run once an interrupting
	// card-loss resolves, in order.
	Followups []Followup `json:"followups,omitempty"`
}

func (pa *PendingAction) Clone() *PendingAction {
	pc := *pa
	pc.Votes = append([]PlayerID(nil), pa.Votes...)
	pc.Followups = append([]Followup(nil), pa.Followups...)
	if pa.Challenge != nil {
		ch := *pa.Challenge
		pc.Challenge = &ch
	}
	if pa.Loss != nil {
		l := *pa.Loss
		pc.Loss = &l
	}
	if pa.Exchange != nil {
		pc.Exchange = &ExchangeOffer{
			Pool: append([]Card(nil), pa.Exchange.Pool...),
			Keep: pa.Exchange.Keep,
		}
	}
	return &pc
}

// Challenge is a pending bluff accusation, against either the actor's
// claimed role or the blocker's.
type Challenge struct {
	Accused    PlayerID `json:"accused"`
	Challenger PlayerID `json:"challenger"`
	Claimed    Role     `json:"claimed"`
	// AgainstBlock is true if the blocker's claim is the one on trial.
	AgainstBlock bool `json:"against_block"`
}

// LossReason says why a player is losing a card.
type LossReason string

const (
	LossChallenge     = LossReason("CHALLENGE")
	LossAssassination = LossReason("ASSASSINATION")
	LossCoup          = LossReason("COUP")
)

// Loss is an outstanding card-loss owed by a single player.
type Loss struct {
	Player PlayerID   `json:"player"`
	Reason LossReason `json:"reason"`
}

// ExchangeOffer is the temporary pool an exchanging player chooses from.
// The player's unrevealed cards move into the pool alongside the fresh
// draws; Keep is how many they get to take back.
type ExchangeOffer struct {
	Pool []Card `json:"pool"`
	Keep int    `json:"keep"`
}

// Followup is a deferred effect queued behind a card-loss.
type Followup string

const (
	// FollowupApplyAction resumes the pending action's effect, used when
	// a block is invalidated or an action claim survives a challenge.
	FollowupApplyAction = Followup("APPLY_ACTION")
)

// GameState is the whole mutable state of a round. It is only ever
// mutated through game.Move, and only ever persisted through the DB's
// conditional UpdateState, keyed on Version.
type GameState struct {
	Players   []*Player      `json:"players"`
	TurnIndex int            `json:"turn_index"`
	Supply    *Supply        `json:"supply"`
	TurnState TurnState      `json:"turn_state"`
	Pending   *PendingAction `json:"pending,omitempty"`

	// Version increases by one on every committed mutation. Writers that
	// read version N may only commit against version N.
	Version int64 `json:"version"`
}

func (gs *GameState) Clone() *GameState {
	gc := *gs
	gc.Players = make([]*Player, len(gs.Players))
	for i, p := range gs.Players {
		gc.Players[i] = p.Clone()
	}
	if gs.Supply != nil {
		gc.Supply = gs.Supply.Clone()
	}
	if gs.Pending != nil {
		gc.Pending = gs.Pending.Clone()
	}
	return &gc
}

// Player returns the player with the given ID, if any.
func (gs *GameState) Player(id PlayerID) (*Player, bool) {
	for _, p := range gs.Players {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// Current returns the player whose turn it is.
func (gs *GameState) Current() *Player {
	return gs.Players[gs.TurnIndex]
}

// Living returns how many players haven't been eliminated.
func (gs *GameState) Living() int {
	var n int
	for _, p := range gs.Players {
		if !p.Eliminated {
			n++
		}
	}
	return n
}

// Winner returns the last living player, or NoPlayer if more than one
// player is still alive.
func (gs *GameState) Winner() PlayerID {
	if gs.Living() > 1 {
		return NoPlayer
	}
	for _, p := range gs.Players {
		if !p.Eliminated {
			return p.ID
		}
	}
	return NoPlayer
}

// Redacted returns a copy of the state as the given viewer is allowed
// to see it: other players' unrevealed cards, the deck, and anyone
// else's exchange pool are hidden.
func Redacted(gs *GameState, viewer PlayerID) *GameState {
	gc := gs.Clone()
	for _, p := range gc.Players {
		if p.ID == viewer {
			continue
		}
		for i := range p.Hand {
			if !p.Hand[i].Revealed {
				p.Hand[i].Role = NoRole
			}
		}
	}
	for i := range gc.Supply.Deck {
		gc.Supply.Deck[i].Role = NoRole
	}
	if pa := gc.Pending; pa != nil && pa.Exchange != nil && pa.Actor != viewer {
		for i := range pa.Exchange.Pool {
			pa.Exchange.Pool[i].Role = NoRole
		}
	}
	return gc
}

// EventKind tags an entry in the game's event feed.
type EventKind string

const (
	EventActionDeclared   = EventKind("ACTION_DECLARED")
	EventCoinsGained      = EventKind("COINS_GAINED")
	EventCoinsStolen      = EventKind("COINS_STOLEN")
	EventPassed           = EventKind("PASSED")
	EventBlocked          = EventKind("BLOCKED")
	EventBlockAccepted    = EventKind("BLOCK_ACCEPTED")
	EventChallenged       = EventKind("CHALLENGED")
	EventClaimProven      = EventKind("CLAIM_PROVEN")
	EventClaimFailed      = EventKind("CLAIM_FAILED")
	EventCardLost         = EventKind("CARD_LOST")
	EventPlayerEliminated = EventKind("PLAYER_ELIMINATED")
	EventExchangeOffered  = EventKind("EXCHANGE_OFFERED")
	EventExchangeDone     = EventKind("EXCHANGE_DONE")
	EventTurnAdvanced     = EventKind("TURN_ADVANCED")
	EventGameOver         = EventKind("GAME_OVER")
)

// Event is one entry in the ordered, human-readable feed of what
// happened during a move. Events come out of the engine in causal order
// and go to every member of the room as-is; they never contain hidden
// information.
type Event struct {
	Kind   EventKind  `json:"kind"`
	Player PlayerID   `json:"player,omitempty"`
	Target PlayerID   `json:"target,omitempty"`
	Action ActionKind `json:"action,omitempty"`
	Role   Role       `json:"role,omitempty"`
	Reason LossReason `json:"reason,omitempty"`
	Amount int        `json:"amount,omitempty"`
}
