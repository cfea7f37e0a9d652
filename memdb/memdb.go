// Package memdb is an in-memory conspiracy.DB, used in tests and for
// local play. It hands out deep copies and enforces the same versioned
// update contract as the real datastore.
package memdb

import (
	"fmt"
	"sync"

	conspiracy "github.com/bcspragu/Conspiracy"
)

type idNamespace string

const (
	gameID = idNamespace("game")
	userID = idNamespace("user")
)

type DB struct {
	mu    sync.Mutex
	ids   map[idNamespace]int
	games map[conspiracy.GameID]*conspiracy.Game
	users map[conspiracy.PlayerID]*conspiracy.User
}

func New() *DB {
	return &DB{
		ids:   make(map[idNamespace]int),
		games: make(map[conspiracy.GameID]*conspiracy.Game),
		users: make(map[conspiracy.PlayerID]*conspiracy.User),
	}
}

func (db *DB) NewUser(u *conspiracy.User) (conspiracy.PlayerID, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	uID := conspiracy.PlayerID(db.newID(userID))

	uc := u.Clone()
	uc.ID = uID
	db.users[uID] = uc

	return uID, nil
}

func (db *DB) User(uID conspiracy.PlayerID) (*conspiracy.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	u, ok := db.users[uID]
	if !ok {
		return nil, conspiracy.ErrUserNotFound
	}

	return u.Clone(), nil
}

func (db *DB) NewGame(g *conspiracy.Game) (conspiracy.GameID, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	gID := conspiracy.GameID(db.newID(gameID))

	gc := g.Clone()
	gc.ID = gID
	gc.Status = conspiracy.Pending
	db.games[gID] = gc

	return gID, nil
}

func (db *DB) Game(gID conspiracy.GameID) (*conspiracy.Game, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	g, ok := db.games[gID]
	if !ok {
		return nil, conspiracy.ErrGameNotFound
	}

	return g.Clone(), nil
}

func (db *DB) PendingGames() ([]conspiracy.GameID, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var pending []conspiracy.GameID
	for _, g := range db.games {
		if g.Status == conspiracy.Pending {
			pending = append(pending, g.ID)
		}
	}
	return pending, nil
}

func (db *DB) JoinGame(gID conspiracy.GameID, pID conspiracy.PlayerID) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	g, ok := db.games[gID]
	if !ok {
		return conspiracy.ErrGameNotFound
	}

	// The SQLite implementation fails if the player is already in the
	// game, so we should do the same.
	for _, id := range g.Joined {
		if id == pID {
			return fmt.Errorf("player %q is already in game %q", pID, gID)
		}
	}

	g.Joined = append(g.Joined, pID)
	return nil
}

func (db *DB) StartGame(gID conspiracy.GameID, gs *conspiracy.GameState) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	g, ok := db.games[gID]
	if !ok {
		return conspiracy.ErrGameNotFound
	}

	g.Status = conspiracy.Playing
	g.State = gs.Clone()
	return nil
}

// UpdateState commits the given state only if it was computed from the
// version currently stored, and bumps the stored version. Anything else
// is a lost race.
func (db *DB) UpdateState(gID conspiracy.GameID, gs *conspiracy.GameState) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	g, ok := db.games[gID]
	if !ok {
		return conspiracy.ErrGameNotFound
	}
	if g.State == nil || g.State.Version != gs.Version {
		return conspiracy.ErrVersionConflict
	}

	gc := gs.Clone()
	gc.Version++
	g.State = gc
	return nil
}

func (db *DB) FinishGame(gID conspiracy.GameID) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	g, ok := db.games[gID]
	if !ok {
		return conspiracy.ErrGameNotFound
	}

	g.Status = conspiracy.Finished
	return nil
}

func (db *DB) newID(ns idNamespace) string {
	idx := db.ids[ns]
	id := fmt.Sprintf("%s_%d", ns, idx)
	db.ids[ns]++
	return id
}
