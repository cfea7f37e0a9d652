package conspiracy

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"strings"
)

var (
	ErrOperationNotImplemented = errors.New("conspiracy: operation not implemented")
	ErrUserNotFound            = errors.New("conspiracy: user not found")
	ErrGameNotFound            = errors.New("conspiracy: game not found")
	// ErrVersionConflict means a conditional state update lost a race
	// with another writer and must be recomputed against fresh state.
	ErrVersionConflict = errors.New("conspiracy: game state version conflict")
)

// PlayerID is the stable, opaque identity of a participant. The engine
// never inspects it.
type PlayerID string

// NoPlayer is the zero PlayerID.
const NoPlayer = PlayerID("")

type GameID string

type GameStatus string

const (
	// NoStatus is an error case.
	NoStatus = GameStatus("")
	// Game hasn't started yet, players can still join.
	Pending = GameStatus("PENDING")
	// Game is in progress.
	Playing = GameStatus("PLAYING")
	// Game is finished.
	Finished = GameStatus("FINISHED")
)

type User struct {
	ID PlayerID `json:"id"`
	// Name is the name that gets displayed.
	Name string `json:"name"`
}

func (u *User) Clone() *User {
	uc := *u
	return &uc
}

// Game is a room and its round, if one has started.
type Game struct {
	ID        GameID     `json:"id"`
	CreatedBy PlayerID   `json:"created_by"`
	Status    GameStatus `json:"status"`
	// StartingCards is the hand size dealt at round start.
	StartingCards int `json:"starting_cards"`
	// Joined is everyone in the room, in join order. It becomes the
	// player order when the round starts.
	Joined []PlayerID `json:"joined"`
	// State is nil until the round starts.
	State *GameState `json:"state,omitempty"`
}

func (g *Game) Clone() *Game {
	gc := *g
	gc.Joined = append([]PlayerID(nil), g.Joined...)
	if g.State != nil {
		gc.State = g.State.Clone()
	}
	return &gc
}

// DB is the persistence/sync boundary. UpdateState is conditional: it
// only commits if the stored state's version matches the version the
// given state was computed from, and bumps the version on commit.
// Losing writers get ErrVersionConflict and must recompute.
type DB interface {
	NewUser(*User) (PlayerID, error)
	User(PlayerID) (*User, error)

	NewGame(*Game) (GameID, error)
	Game(GameID) (*Game, error)
	PendingGames() ([]GameID, error)
	JoinGame(GameID, PlayerID) error

	StartGame(GameID, *GameState) error
	UpdateState(GameID, *GameState) error
	FinishGame(GameID) error
}

// maxUpdateAttempts bounds the optimistic-concurrency retry loop. A
// legitimate writer should win well before this; hitting the bound
// means something is re-mutating the game in a tight loop.
const maxUpdateAttempts = 10

// UpdateGame runs apply against the latest copy of the game and commits
// the result conditionally, retrying on version conflicts. apply gets a
// fresh copy on every attempt, so it must not carry side effects
// outside the game itself.
func UpdateGame(db DB, gID GameID, apply func(*Game) error) (*Game, error) {
	for i := 0; i < maxUpdateAttempts; i++ {
		g, err := db.Game(gID)
		if err != nil {
			return nil, err
		}

		if err := apply(g); err != nil {
			return nil, err
		}

		err = db.UpdateState(gID, g.State)
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to update game %q: %w", gID, err)
		}
		return g, nil
	}
	return nil, ErrVersionConflict
}

// RandomGameID returns a human-readable room ID, like "CipherVaultEnvoy".
func RandomGameID(r *rand.Rand) GameID {
	var buf bytes.Buffer
	for i := 0; i < 3; i++ {
		buf.WriteString(randomWord(r))
	}
	return GameID(buf.String())
}

var letters = []byte("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")

func RandomPlayerID(r *rand.Rand) PlayerID {
	b := make([]byte, 64)
	for i := range b {
		b[i] = letters[r.Intn(len(letters))]
	}
	return PlayerID(b)
}

func randomWord(r *rand.Rand) string {
	return strings.Title(Words[r.Intn(len(Words))])
}
