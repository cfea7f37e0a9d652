// Package web serves the HTTP and websocket API for Conspiracy rooms.
// Handlers never mutate game state directly: every move runs through
// the engine against the latest snapshot and commits with a conditional
// update, retrying if another player's move lands first.
package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strings"

	conspiracy "github.com/bcspragu/Conspiracy"
	"github.com/bcspragu/Conspiracy/deal"
	"github.com/bcspragu/Conspiracy/game"
	"github.com/bcspragu/Conspiracy/hub"
	"github.com/gorilla/mux"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/websocket"
)

type Srv struct {
	sc  *securecookie.SecureCookie
	h   *hub.Hub
	mux *mux.Router
	db  conspiracy.DB
	r   *rand.Rand
}

// New returns an initialized server.
func New(db conspiracy.DB, r *rand.Rand, sc *securecookie.SecureCookie) *Srv {
	s := &Srv{
		sc: sc,
		h:  hub.New(),
		db: db,
		r:  r,
	}

	s.mux = s.initMux()

	return s
}

func (s *Srv) initMux() *mux.Router {
	m := mux.NewRouter()
	// New user.
	m.HandleFunc("/api/user", s.handleErr(s.serveCreateUser)).Methods("POST")
	// Load user.
	m.HandleFunc("/api/user", s.handleErr(s.serveUser)).Methods("GET")
	// New game.
	m.HandleFunc("/api/game", s.handleErr(s.serveCreateGame)).Methods("POST")
	// Pending games.
	m.HandleFunc("/api/games", s.handleErr(s.servePendingGames)).Methods("GET")
	// Get game, redacted for the viewer.
	m.HandleFunc("/api/game/{id}", s.handleErr(s.requireGameAuth(s.serveGame))).Methods("GET")
	// Join game.
	m.HandleFunc("/api/game/{id}/join", s.handleErr(s.requireGameAuth(s.serveJoinGame, isGamePending()))).Methods("POST")
	// Start game.
	m.HandleFunc("/api/game/{id}/start", s.handleErr(s.requireGameAuth(s.serveStartGame, isGameCreator(), isGamePending()))).Methods("POST")

	// Game moves.
	move := func(fn gameHandler) http.HandlerFunc {
		return s.handleErr(s.requireGameAuth(fn, isGamePlaying(), isInGame()))
	}
	m.HandleFunc("/api/game/{id}/action", move(s.serveDeclare)).Methods("POST")
	m.HandleFunc("/api/game/{id}/pass", move(s.servePass)).Methods("POST")
	m.HandleFunc("/api/game/{id}/block", move(s.serveBlock)).Methods("POST")
	m.HandleFunc("/api/game/{id}/challenge", move(s.serveChallenge)).Methods("POST")
	m.HandleFunc("/api/game/{id}/reveal", move(s.serveReveal)).Methods("POST")
	m.HandleFunc("/api/game/{id}/surrender", move(s.serveSurrender)).Methods("POST")
	m.HandleFunc("/api/game/{id}/lose", move(s.serveLoseCard)).Methods("POST")
	m.HandleFunc("/api/game/{id}/keep", move(s.serveKeep)).Methods("POST")

	// WebSocket handler for live game updates.
	m.HandleFunc("/api/game/{id}/ws", s.handleErr(s.requireGameAuth(s.serveData, isInGame()))).Methods("GET")

	return m
}

func (s *Srv) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// handleErr translates domain errors from a handler into HTTP statuses.
func (s *Srv) handleErr(fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}
		switch {
		case errors.Is(err, errUnauthenticated):
			http.Error(w, err.Error(), http.StatusUnauthorized)
		case errors.Is(err, errForbidden):
			http.Error(w, err.Error(), http.StatusForbidden)
		case errors.Is(err, conspiracy.ErrUserNotFound), errors.Is(err, conspiracy.ErrGameNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, game.ErrIllegalTransition),
			errors.Is(err, game.ErrInsufficientFunds),
			errors.Is(err, game.ErrForcedAction),
			errors.Is(err, game.ErrInvalidTarget),
			errors.Is(err, game.ErrAlreadyRevealed),
			errors.Is(err, game.ErrSelectionCount),
			errors.Is(err, errBadRequest):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			log.Printf("internal error serving %q: %v", r.URL.Path, err)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}

var (
	errUnauthenticated = errors.New("web: not logged in")
	errForbidden       = errors.New("web: not allowed")
	errBadRequest      = errors.New("web: bad request")
)

type gameCtx struct {
	user *conspiracy.User
	game *conspiracy.Game
}

type gameHandler func(http.ResponseWriter, *http.Request, *gameCtx) error

type gameCheck func(*gameCtx) error

func isGameCreator() gameCheck {
	return func(ctx *gameCtx) error {
		if ctx.game.CreatedBy != ctx.user.ID {
			return fmt.Errorf("only the game's creator may do that: %w", errForbidden)
		}
		return nil
	}
}

func isGamePending() gameCheck {
	return func(ctx *gameCtx) error {
		if ctx.game.Status != conspiracy.Pending {
			return fmt.Errorf("game %q has already started: %w", ctx.game.ID, errBadRequest)
		}
		return nil
	}
}

func isGamePlaying() gameCheck {
	return func(ctx *gameCtx) error {
		if ctx.game.Status != conspiracy.Playing {
			return fmt.Errorf("game %q isn't in progress: %w", ctx.game.ID, errBadRequest)
		}
		return nil
	}
}

func isInGame() gameCheck {
	return func(ctx *gameCtx) error {
		for _, id := range ctx.game.Joined {
			if id == ctx.user.ID {
				return nil
			}
		}
		return fmt.Errorf("player %q isn't in game %q: %w", ctx.user.ID, ctx.game.ID, errForbidden)
	}
}

// requireGameAuth loads the authenticated user and the game from the
// URL, runs the checks, and hands both to the wrapped handler.
func (s *Srv) requireGameAuth(fn gameHandler, checks ...gameCheck) handlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		u, err := s.loadUser(r)
		if err != nil {
			return err
		}
		if u == nil {
			return errUnauthenticated
		}

		gID := conspiracy.GameID(mux.Vars(r)["id"])
		g, err := s.db.Game(gID)
		if err != nil {
			return fmt.Errorf("failed to load game %q: %w", gID, err)
		}

		ctx := &gameCtx{user: u, game: g}
		for _, check := range checks {
			if err := check(ctx); err != nil {
				return err
			}
		}

		return fn(w, r, ctx)
	}
}

func (s *Srv) serveCreateUser(w http.ResponseWriter, r *http.Request) error {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return fmt.Errorf("failed to decode request: %w", errBadRequest)
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return fmt.Errorf("no name given: %w", errBadRequest)
	}

	id, err := s.db.NewUser(&conspiracy.User{Name: name})
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	encoded, err := s.sc.Encode("auth", id)
	if err != nil {
		return fmt.Errorf("failed to encode auth cookie: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:  "Authorization",
		Value: encoded,
	})

	return jsonResp(w, struct {
		Success bool `json:"success"`
	}{true})
}

func (s *Srv) serveUser(w http.ResponseWriter, r *http.Request) error {
	u, err := s.loadUser(r)
	if err != nil {
		return err
	}
	if u == nil {
		return errUnauthenticated
	}

	return jsonResp(w, u)
}

func (s *Srv) serveCreateGame(w http.ResponseWriter, r *http.Request) error {
	u, err := s.loadUser(r)
	if err != nil {
		return err
	}
	if u == nil {
		return errUnauthenticated
	}

	var req struct {
		StartingCards int `json:"starting_cards"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return fmt.Errorf("failed to decode request: %w", errBadRequest)
	}
	if req.StartingCards == 0 {
		req.StartingCards = deal.DefaultStartingCards
	}

	id, err := s.db.NewGame(&conspiracy.Game{
		CreatedBy:     u.ID,
		StartingCards: req.StartingCards,
	})
	if err != nil {
		return fmt.Errorf("failed to create game: %w", err)
	}

	return jsonResp(w, struct {
		ID string `json:"id"`
	}{string(id)})
}

func (s *Srv) servePendingGames(w http.ResponseWriter, r *http.Request) error {
	gIDs, err := s.db.PendingGames()
	if err != nil {
		return fmt.Errorf("failed to load pending games: %w", err)
	}

	return jsonResp(w, gIDs)
}

func (s *Srv) serveGame(w http.ResponseWriter, r *http.Request, ctx *gameCtx) error {
	g := ctx.game
	if g.State != nil {
		g.State = conspiracy.Redacted(g.State, ctx.user.ID)
	}
	return jsonResp(w, g)
}

func (s *Srv) serveJoinGame(w http.ResponseWriter, r *http.Request, ctx *gameCtx) error {
	if err := s.db.JoinGame(ctx.game.ID, ctx.user.ID); err != nil {
		return fmt.Errorf("failed to join game: %w", err)
	}

	return jsonResp(w, struct {
		Success bool `json:"success"`
	}{true})
}

func (s *Srv) serveStartGame(w http.ResponseWriter, r *http.Request, ctx *gameCtx) error {
	g := ctx.game

	users := make([]*conspiracy.User, 0, len(g.Joined))
	for _, pID := range g.Joined {
		u, err := s.db.User(pID)
		if err != nil {
			return fmt.Errorf("failed to load player %q: %w", pID, err)
		}
		users = append(users, u)
	}

	gs, err := deal.New(users, g.StartingCards, s.r)
	if err != nil {
		return fmt.Errorf("can't deal this game: %w: %v", errBadRequest, err)
	}

	if err := s.db.StartGame(g.ID, gs); err != nil {
		return fmt.Errorf("failed to start game: %w", err)
	}

	g.Status = conspiracy.Playing
	g.State = gs
	s.broadcastUpdate(g, []conspiracy.Event{{
		Kind:   conspiracy.EventTurnAdvanced,
		Player: gs.Current().ID,
	}})

	return jsonResp(w, struct {
		Success bool `json:"success"`
	}{true})
}

func (s *Srv) serveDeclare(w http.ResponseWriter, r *http.Request, ctx *gameCtx) error {
	var req struct {
		Kind   string `json:"kind"`
		Target string `json:"target"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return fmt.Errorf("failed to decode request: %w", errBadRequest)
	}

	return s.applyMove(ctx, &game.Move{
		Player: ctx.user.ID,
		Action: game.ActionDeclare,
		Kind:   conspiracy.ActionKind(req.Kind),
		Target: conspiracy.PlayerID(req.Target),
	})
}

func (s *Srv) servePass(w http.ResponseWriter, r *http.Request, ctx *gameCtx) error {
	return s.applyMove(ctx, &game.Move{
		Player: ctx.user.ID,
		Action: game.ActionPass,
	})
}

func (s *Srv) serveBlock(w http.ResponseWriter, r *http.Request, ctx *gameCtx) error {
	var req struct {
		Claim string `json:"claim"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return fmt.Errorf("failed to decode request: %w", errBadRequest)
	}

	return s.applyMove(ctx, &game.Move{
		Player: ctx.user.ID,
		Action: game.ActionBlock,
		Claim:  conspiracy.Role(req.Claim),
	})
}

func (s *Srv) serveChallenge(w http.ResponseWriter, r *http.Request, ctx *gameCtx) error {
	return s.applyMove(ctx, &game.Move{
		Player: ctx.user.ID,
		Action: game.ActionChallenge,
	})
}

func (s *Srv) serveReveal(w http.ResponseWriter, r *http.Request, ctx *gameCtx) error {
	var req struct {
		CardIndex int `json:"card_index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return fmt.Errorf("failed to decode request: %w", errBadRequest)
	}

	return s.applyMove(ctx, &game.Move{
		Player:    ctx.user.ID,
		Action:    game.ActionReveal,
		CardIndex: req.CardIndex,
	})
}

func (s *Srv) serveSurrender(w http.ResponseWriter, r *http.Request, ctx *gameCtx) error {
	return s.applyMove(ctx, &game.Move{
		Player: ctx.user.ID,
		Action: game.ActionSurrender,
	})
}

func (s *Srv) serveLoseCard(w http.ResponseWriter, r *http.Request, ctx *gameCtx) error {
	var req struct {
		CardIndex int `json:"card_index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return fmt.Errorf("failed to decode request: %w", errBadRequest)
	}

	return s.applyMove(ctx, &game.Move{
		Player:    ctx.user.ID,
		Action:    game.ActionLoseCard,
		CardIndex: req.CardIndex,
	})
}

func (s *Srv) serveKeep(w http.ResponseWriter, r *http.Request, ctx *gameCtx) error {
	var req struct {
		Keep []int `json:"keep"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return fmt.Errorf("failed to decode request: %w", errBadRequest)
	}

	return s.applyMove(ctx, &game.Move{
		Player: ctx.user.ID,
		Action: game.ActionKeep,
		Keep:   req.Keep,
	})
}

// applyMove runs a move through the engine against the latest state and
// commits it conditionally, retrying if a concurrent move wins the
// race. On success it notifies the room.
func (s *Srv) applyMove(ctx *gameCtx, mv *game.Move) error {
	var (
		evs    []conspiracy.Event
		status conspiracy.GameStatus
	)
	g, err := conspiracy.UpdateGame(s.db, ctx.game.ID, func(g *conspiracy.Game) error {
		if g.Status != conspiracy.Playing {
			return fmt.Errorf("game %q isn't in progress: %w", g.ID, errBadRequest)
		}
		var err error
		evs, status, err = game.New(g.State, s.r).Move(mv)
		return err
	})
	if err != nil {
		return err
	}

	if status == conspiracy.Finished {
		if err := s.db.FinishGame(g.ID); err != nil {
			return fmt.Errorf("failed to mark game %q finished: %w", g.ID, err)
		}
		g.Status = conspiracy.Finished
	}

	s.broadcastUpdate(g, evs)
	return nil
}

// broadcastUpdate pushes the move's events to the whole room, and each
// player their own redacted view of the new state.
func (s *Srv) broadcastUpdate(g *conspiracy.Game, evs []conspiracy.Event) {
	for _, ev := range evs {
		if err := s.h.ToGame(g.ID, &GameEvent{Action: "GAME_EVENT", Event: ev}); err != nil {
			log.Printf("failed to broadcast event to game %q: %v", g.ID, err)
		}
	}

	for _, pID := range g.Joined {
		msg := &GameUpdate{
			Action: "GAME_STATE",
			Status: g.Status,
			State:  conspiracy.Redacted(g.State, pID),
		}
		if err := s.h.ToUser(g.ID, pID, msg); err != nil {
			log.Printf("failed to send state to player %q: %v", pID, err)
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func (s *Srv) serveData(w http.ResponseWriter, r *http.Request, ctx *gameCtx) error {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	s.h.Register(ws, ctx.game.ID, ctx.user.ID)
	return nil
}

func jsonResp(w http.ResponseWriter, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	return nil
}

func (s *Srv) loadUser(r *http.Request) (*conspiracy.User, error) {
	c, err := r.Cookie("Authorization")
	if err == http.ErrNoCookie {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var uID conspiracy.PlayerID
	if err := s.sc.Decode("auth", c.Value, &uID); err != nil {
		// If we can't parse it, assume it's an old auth cookie and treat
		// them as not logged in.
		return nil, nil
	}

	u, err := s.db.User(uID)
	if err == conspiracy.ErrUserNotFound {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return u, nil
}
