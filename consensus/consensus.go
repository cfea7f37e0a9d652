// Package consensus implements the pass-vote bookkeeping for pending
// actions and blocks: who has acknowledged, who must respond first, and
// when enough acknowledgements are in to resolve without a fight.
package consensus

import (
	conspiracy "github.com/bcspragu/Conspiracy"
)

// Quorum is how many pass votes let a pending action or block stand
// unopposed: every living player except the one making the claim.
func Quorum(living int) int {
	return living - 1
}

// HasVoted reports whether the player has already passed.
func HasVoted(votes []conspiracy.PlayerID, id conspiracy.PlayerID) bool {
	for _, v := range votes {
		if v == id {
			return true
		}
	}
	return false
}

// Record adds a pass vote and returns the updated set. The second
// return is false if the player had already voted, which callers treat
// as an idempotent no-op rather than an error.
func Record(votes []conspiracy.PlayerID, id conspiracy.PlayerID) ([]conspiracy.PlayerID, bool) {
	if HasVoted(votes, id) {
		return votes, false
	}
	return append(votes, id), true
}

// Reached reports whether the vote set has hit quorum for the given
// living-player count.
func Reached(votes []conspiracy.PlayerID, living int) bool {
	return len(votes) >= Quorum(living)
}

// BystanderMustWait reports whether the voter's pass has to wait for
// the action's target to respond. The victim of a targeted action
// responds first: until they have passed, blocked, or challenged,
// bystander passes don't count.
func BystanderMustWait(pa *conspiracy.PendingAction, voter conspiracy.PlayerID) bool {
	if !pa.Kind.Targeted() || pa.Target == conspiracy.NoPlayer {
		return false
	}
	if voter == pa.Target {
		return false
	}
	return !HasVoted(pa.Votes, pa.Target)
}
