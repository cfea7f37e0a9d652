// Package sqldb implements the Conspiracy database API, backed by a
// SQLite database.
package sqldb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"

	conspiracy "github.com/bcspragu/Conspiracy"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS Users (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS Games (
	id TEXT PRIMARY KEY,
	created_by TEXT NOT NULL,
	status TEXT NOT NULL,
	starting_cards INTEGER NOT NULL,
	version INTEGER NOT NULL DEFAULT 0,
	state BLOB
);

CREATE TABLE IF NOT EXISTS GamePlayers (
	game_id TEXT NOT NULL,
	player_id TEXT NOT NULL,
	join_order INTEGER NOT NULL,
	PRIMARY KEY (game_id, player_id)
);
`

// DB implements the Conspiracy database API, backed by a SQLite
// database. NOTE: Since the database doesn't support concurrent
// writers, we don't actually hold the *sql.DB in this struct, we force
// all callers to get a handle via channels.
type DB struct {
	dbChan   chan func(*sql.DB)
	doneChan chan struct{}
	r        *rand.Rand
}

// New creates a new *DB that is stored on disk at the given filename.
func New(fn string, src rand.Source) (*DB, error) {
	sdb, err := sql.Open("sqlite3", fn)
	if err != nil {
		return nil, err
	}

	if _, err := sdb.Exec(schema); err != nil {
		sdb.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	db := &DB{
		dbChan:   make(chan func(*sql.DB)),
		doneChan: make(chan struct{}),
		r:        rand.New(src),
	}
	go db.run(sdb)
	return db, nil
}

// run handles all database calls, and ensures that only one thing is
// happening against the database at a time.
func (db *DB) run(sdb *sql.DB) {
	for {
		select {
		case dbFn := <-db.dbChan:
			dbFn(sdb)
		case <-db.doneChan:
			sdb.Close()
			return
		}
	}
}

func (db *DB) Close() error {
	close(db.doneChan)
	return nil
}

// do runs fn on the database goroutine and waits for it.
func (db *DB) do(fn func(*sql.DB) error) error {
	errChan := make(chan error, 1)
	db.dbChan <- func(sdb *sql.DB) {
		errChan <- fn(sdb)
	}
	return <-errChan
}

func (db *DB) NewUser(u *conspiracy.User) (conspiracy.PlayerID, error) {
	var id conspiracy.PlayerID
	err := db.do(func(sdb *sql.DB) error {
		id = conspiracy.RandomPlayerID(db.r)
		_, err := sdb.Exec("INSERT INTO Users (id, name) VALUES (?, ?)", string(id), u.Name)
		return err
	})
	if err != nil {
		return conspiracy.NoPlayer, fmt.Errorf("failed to create user: %w", err)
	}
	return id, nil
}

func (db *DB) User(uID conspiracy.PlayerID) (*conspiracy.User, error) {
	u := &conspiracy.User{ID: uID}
	err := db.do(func(sdb *sql.DB) error {
		err := sdb.QueryRow("SELECT name FROM Users WHERE id = ?", string(uID)).Scan(&u.Name)
		if err == sql.ErrNoRows {
			return conspiracy.ErrUserNotFound
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (db *DB) NewGame(g *conspiracy.Game) (conspiracy.GameID, error) {
	var id conspiracy.GameID
	err := db.do(func(sdb *sql.DB) error {
		id = conspiracy.RandomGameID(db.r)
		_, err := sdb.Exec(
			"INSERT INTO Games (id, created_by, status, starting_cards) VALUES (?, ?, ?, ?)",
			string(id), string(g.CreatedBy), string(conspiracy.Pending), g.StartingCards)
		return err
	})
	if err != nil {
		return conspiracy.GameID(""), fmt.Errorf("failed to create game: %w", err)
	}
	return id, nil
}

func (db *DB) Game(gID conspiracy.GameID) (*conspiracy.Game, error) {
	g := &conspiracy.Game{ID: gID}
	err := db.do(func(sdb *sql.DB) error {
		var (
			createdBy, status string
			state             []byte
		)
		err := sdb.QueryRow(
			"SELECT created_by, status, starting_cards, state FROM Games WHERE id = ?",
			string(gID)).Scan(&createdBy, &status, &g.StartingCards, &state)
		if err == sql.ErrNoRows {
			return conspiracy.ErrGameNotFound
		}
		if err != nil {
			return err
		}
		g.CreatedBy = conspiracy.PlayerID(createdBy)
		g.Status = conspiracy.GameStatus(status)

		if len(state) > 0 {
			g.State = &conspiracy.GameState{}
			if err := json.Unmarshal(state, g.State); err != nil {
				return fmt.Errorf("failed to decode state for game %q: %w", gID, err)
			}
		}

		rows, err := sdb.Query(
			"SELECT player_id FROM GamePlayers WHERE game_id = ? ORDER BY join_order ASC",
			string(gID))
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var pID string
			if err := rows.Scan(&pID); err != nil {
				return err
			}
			g.Joined = append(g.Joined, conspiracy.PlayerID(pID))
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (db *DB) PendingGames() ([]conspiracy.GameID, error) {
	var ids []conspiracy.GameID
	err := db.do(func(sdb *sql.DB) error {
		rows, err := sdb.Query("SELECT id FROM Games WHERE status = ?", string(conspiracy.Pending))
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, conspiracy.GameID(id))
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (db *DB) JoinGame(gID conspiracy.GameID, pID conspiracy.PlayerID) error {
	return db.do(func(sdb *sql.DB) error {
		var n int
		if err := sdb.QueryRow(
			"SELECT COUNT(1) FROM GamePlayers WHERE game_id = ?", string(gID)).Scan(&n); err != nil {
			return err
		}
		// The primary key makes a double-join fail loudly.
		_, err := sdb.Exec(
			"INSERT INTO GamePlayers (game_id, player_id, join_order) VALUES (?, ?, ?)",
			string(gID), string(pID), n)
		return err
	})
}

func (db *DB) StartGame(gID conspiracy.GameID, gs *conspiracy.GameState) error {
	return db.do(func(sdb *sql.DB) error {
		dat, err := json.Marshal(gs)
		if err != nil {
			return fmt.Errorf("failed to encode state: %w", err)
		}
		res, err := sdb.Exec(
			"UPDATE Games SET status = ?, state = ?, version = ? WHERE id = ?",
			string(conspiracy.Playing), dat, gs.Version, string(gID))
		if err != nil {
			return err
		}
		return checkFound(res)
	})
}

// UpdateState commits the state only if nobody else has committed since
// it was read, per the version the caller computed from.
func (db *DB) UpdateState(gID conspiracy.GameID, gs *conspiracy.GameState) error {
	return db.do(func(sdb *sql.DB) error {
		gc := gs.Clone()
		gc.Version++
		dat, err := json.Marshal(gc)
		if err != nil {
			return fmt.Errorf("failed to encode state: %w", err)
		}

		res, err := sdb.Exec(
			"UPDATE Games SET state = ?, version = ? WHERE id = ? AND version = ?",
			dat, gc.Version, string(gID), gs.Version)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			// Either the game is gone or someone beat us to the write.
			var exists int
			if err := sdb.QueryRow(
				"SELECT COUNT(1) FROM Games WHERE id = ?", string(gID)).Scan(&exists); err != nil {
				return err
			}
			if exists == 0 {
				return conspiracy.ErrGameNotFound
			}
			return conspiracy.ErrVersionConflict
		}
		return nil
	})
}

func (db *DB) FinishGame(gID conspiracy.GameID) error {
	return db.do(func(sdb *sql.DB) error {
		res, err := sdb.Exec(
			"UPDATE Games SET status = ? WHERE id = ?",
			string(conspiracy.Finished), string(gID))
		if err != nil {
			return err
		}
		return checkFound(res)
	})
}

func checkFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return conspiracy.ErrGameNotFound
	}
	return nil
}
