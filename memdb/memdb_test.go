package memdb

import (
	"errors"
	"testing"

	conspiracy "github.com/bcspragu/Conspiracy"
)

func testState(version int64) *conspiracy.GameState {
	return &conspiracy.GameState{
		Players: []*conspiracy.Player{
			{ID: "user_0", Name: "Alice", Coins: 2},
			{ID: "user_1", Name: "Bob", Coins: 2},
		},
		Supply:    &conspiracy.Supply{},
		TurnState: conspiracy.Idle,
		Version:   version,
	}
}

func setupGame(t *testing.T, db *DB) conspiracy.GameID {
	t.Helper()

	gID, err := db.NewGame(&conspiracy.Game{CreatedBy: "user_0", StartingCards: 2})
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	if err := db.StartGame(gID, testState(0)); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	return gID
}

func TestUpdateStateBumpsVersion(t *testing.T) {
	db := New()
	gID := setupGame(t, db)

	g, err := db.Game(gID)
	if err != nil {
		t.Fatalf("Game: %v", err)
	}

	g.State.Players[0].Coins = 3
	if err := db.UpdateState(gID, g.State); err != nil {
		t.Fatalf("UpdateState: %v", err)
	}

	g, err = db.Game(gID)
	if err != nil {
		t.Fatalf("Game: %v", err)
	}
	if got, want := g.State.Version, int64(1); got != want {
		t.Errorf("version = %d, want %d", got, want)
	}
	if got, want := g.State.Players[0].Coins, 3; got != want {
		t.Errorf("coins = %d, want %d", got, want)
	}
}

func TestUpdateStateRejectsStaleVersion(t *testing.T) {
	db := New()
	gID := setupGame(t, db)

	// Two writers read the same snapshot.
	first, err := db.Game(gID)
	if err != nil {
		t.Fatalf("Game: %v", err)
	}
	second, err := db.Game(gID)
	if err != nil {
		t.Fatalf("Game: %v", err)
	}

	first.State.Players[0].Coins = 3
	if err := db.UpdateState(gID, first.State); err != nil {
		t.Fatalf("UpdateState: %v", err)
	}

	// The slower writer must lose, not silently clobber the first.
	second.State.Players[1].Coins = 7
	if err := db.UpdateState(gID, second.State); !errors.Is(err, conspiracy.ErrVersionConflict) {
		t.Fatalf("stale update: got %v, want ErrVersionConflict", err)
	}

	g, err := db.Game(gID)
	if err != nil {
		t.Fatalf("Game: %v", err)
	}
	if got, want := g.State.Players[0].Coins, 3; got != want {
		t.Errorf("winning write lost: coins = %d, want %d", got, want)
	}
	if got, want := g.State.Players[1].Coins, 2; got != want {
		t.Errorf("losing write landed: coins = %d, want %d", got, want)
	}
}

func TestUpdateGameRetries(t *testing.T) {
	db := New()
	gID := setupGame(t, db)

	// Sneak a competing write in during the first attempt, so the
	// helper has to retry against fresh state.
	var attempts int
	_, err := conspiracy.UpdateGame(db, gID, func(g *conspiracy.Game) error {
		attempts++
		if attempts == 1 {
			interloper, err := db.Game(gID)
			if err != nil {
				return err
			}
			interloper.State.Players[1].Coins = 9
			if err := db.UpdateState(gID, interloper.State); err != nil {
				return err
			}
		}
		g.State.Players[0].Coins++
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateGame: %v", err)
	}
	if attempts != 2 {
		t.Errorf("apply ran %d times, want 2", attempts)
	}

	g, err := db.Game(gID)
	if err != nil {
		t.Fatalf("Game: %v", err)
	}
	// Both writes survive: the interloper's and the retried one.
	if got, want := g.State.Players[0].Coins, 3; got != want {
		t.Errorf("retried write: coins = %d, want %d", got, want)
	}
	if got, want := g.State.Players[1].Coins, 9; got != want {
		t.Errorf("interloper write: coins = %d, want %d", got, want)
	}
}

func TestJoinGame(t *testing.T) {
	db := New()

	gID, err := db.NewGame(&conspiracy.Game{CreatedBy: "user_0"})
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}

	if err := db.JoinGame(gID, "user_1"); err != nil {
		t.Fatalf("JoinGame: %v", err)
	}
	if err := db.JoinGame(gID, "user_1"); err == nil {
		t.Error("joining twice should fail")
	}

	g, err := db.Game(gID)
	if err != nil {
		t.Fatalf("Game: %v", err)
	}
	if got, want := len(g.Joined), 1; got != want {
		t.Errorf("%d players joined, want %d", got, want)
	}
}
