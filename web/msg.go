package web

import (
	conspiracy "github.com/bcspragu/Conspiracy"
)

// GameEvent is a single engine event, broadcast to everyone in the
// room. Events never carry hidden information.
type GameEvent struct {
	Action string           `json:"action"`
	Event  conspiracy.Event `json:"event"`
}

// GameUpdate is a player's own view of the game after a move: the
// state with everyone else's unrevealed cards redacted.
type GameUpdate struct {
	Action string                `json:"action"`
	Status conspiracy.GameStatus `json:"status"`
	State  *conspiracy.GameState `json:"state"`
}
