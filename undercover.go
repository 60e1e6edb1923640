// Undercover
//
// One device is passed around the table. Everyone gets the same secret word
// except the undercovers, who get a related one, and the blanks, who get
// nothing. Players take turns looking at their word, then discuss and vote
// players out until the undercovers are all gone or outnumber the civilians.
//
// Features:
// - Sessions per game ID: /undercover/:gameid and /undercover/:gameid/ws
// - Every action is processed by the session's hub, one at a time
// - Words and roles are only ever sent to the client that asked, and only
//   for the player whose turn it is
// - Game state is snapshotted after every change and restored when a
//   session is reopened, even after a restart
// - Idle sessions are closed after a configurable timeout
// - In-browser QR button to open the current session on another device

package main

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Seednode/undercover/internal/game"
	"github.com/Seednode/undercover/internal/store"
	"github.com/gorilla/websocket"
)

// Messages coming from clients
type ClientMessage struct {
	Type     string `json:"type"`                // see handleAction
	Name     string `json:"name,omitempty"`      // add_player
	Index    int    `json:"index,omitempty"`     // remove_player
	Count    int    `json:"count,omitempty"`     // set_undercover / set_blank
	PlayerID string `json:"player_id,omitempty"` // nominate / eliminate
}

// PublicPlayer is the part of a player everyone may see.
type PublicPlayer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type RevealSlot struct {
	Index int    `json:"index"`
	Total int    `json:"total"`
	Name  string `json:"name"`
}

// StateMessage is broadcast after every change. It never carries words or
// roles.
type StateMessage struct {
	Type            string         `json:"type"` // "state"
	Phase           string         `json:"phase"`
	Players         []PublicPlayer `json:"players"`
	UndercoverCount int            `json:"undercover_count"`
	BlankCount      int            `json:"blank_count"`
	Reveal          *RevealSlot    `json:"reveal,omitempty"` // reveal phase only
	Tally           *game.Tally    `json:"tally,omitempty"`  // discuss phase only
}

// SecretMessage answers a reveal request, to the requesting client only.
type SecretMessage struct {
	Type string `json:"type"` // "secret"
	RevealSlot
	Role string `json:"role"`
	Word string `json:"word"`
}

// NominationMessage asks the requesting client to confirm an elimination.
type NominationMessage struct {
	Type     string `json:"type"` // "nomination"
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
}

// EliminationMessage announces who was voted out and whether that decided
// the game.
type EliminationMessage struct {
	Type    string `json:"type"` // "elimination"
	Name    string `json:"name"`
	Role    string `json:"role"`
	Winner  string `json:"winner"`
	Message string `json:"message,omitempty"`
}

// SimpleMessage is for generic notifications ("error").
type SimpleMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type Client struct {
	conn *websocket.Conn
	send chan any
}

type action struct {
	client *Client
	msg    ClientMessage
}

type Hub struct {
	id        string
	clients   map[*Client]bool
	game      *game.Controller
	snapshots *store.Snapshots

	register chan *Client
	unreg    chan *Client
	actions  chan action
	saves    chan game.State
	quit     chan struct{}
	stopOnce sync.Once

	mu         sync.RWMutex
	createdAt  time.Time
	lastActive time.Time
}

func newHub(ctx context.Context, cfg *Config, gameID string, catalog game.Catalog, snapshots *store.Snapshots) *Hub {
	now := time.Now()

	h := &Hub{
		id:         gameID,
		clients:    make(map[*Client]bool),
		game:       game.New(game.WithCatalog(catalog)),
		snapshots:  snapshots,
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		actions:    make(chan action),
		saves:      make(chan game.State, 1),
		quit:       make(chan struct{}),
		createdAt:  now,
		lastActive: now,
	}

	loadCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	state, err := snapshots.Load(loadCtx, store.Key(gameID))
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		errorf("STORE: Ignoring snapshot for %s: %v", gameID, err)
	default:
		if err := h.game.Restore(state); err != nil {
			errorf("STORE: Ignoring snapshot for %s: %v", gameID, err)
		} else {
			logf(cfg, "STORE: Restored %s in %s phase with %d players", gameID, state.Phase, len(state.Players))
		}
	}

	return h
}

func (h *Hub) run(cfg *Config) {
	defer close(h.saves)

	for {
		select {
		case c := <-h.register:
			h.touch()
			h.clients[c] = true
			h.deliver(c, h.stateMessage())

		case c := <-h.unreg:
			h.touch()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}

		case a := <-h.actions:
			h.touch()
			h.handleAction(cfg, a)

		case <-h.quit:
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			return
		}
	}
}

func (h *Hub) stop() {
	h.stopOnce.Do(func() {
		close(h.quit)
	})
}

func (h *Hub) touch() {
	h.mu.Lock()
	h.lastActive = time.Now()
	h.mu.Unlock()
}

func (h *Hub) idleSince() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.lastActive
}

// deliver queues msg for c, dropping the client if it can't keep up.
func (h *Hub) deliver(c *Client, msg any) {
	if !h.clients[c] {
		return
	}

	select {
	case c.send <- msg:
	default:
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) broadcast(msg any) {
	for c := range h.clients {
		h.deliver(c, msg)
	}
}

func (h *Hub) fail(c *Client, err error) {
	h.deliver(c, SimpleMessage{
		Type:    "error",
		Message: errorMessage(err),
	})
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, game.ErrNotEnoughPlayers):
		return "Need at least 3 players."
	case errors.Is(err, game.ErrTooManySpecialRoles):
		return "Too many special roles."
	case errors.Is(err, game.ErrEmptyName):
		return "Enter a player name."
	case errors.Is(err, game.ErrWrongPhase):
		return "That can't be done right now."
	case errors.Is(err, game.ErrPlayerNotFound):
		return "That player is not in the game."
	case errors.Is(err, game.ErrEmptyCatalog):
		return "No word pairs are available."
	default:
		return "Something went wrong."
	}
}

func (h *Hub) stateMessage() StateMessage {
	state := h.game.State()

	players := make([]PublicPlayer, 0, len(state.Players))
	for _, p := range state.Players {
		players = append(players, PublicPlayer{
			ID:   p.ID,
			Name: p.Name,
		})
	}

	msg := StateMessage{
		Type:            "state",
		Phase:           state.Phase.String(),
		Players:         players,
		UndercoverCount: state.UndercoverCount,
		BlankCount:      state.BlankCount,
	}

	switch state.Phase {
	case game.PhaseReveal:
		if slot, err := h.game.Current(); err == nil {
			msg.Reveal = &RevealSlot{
				Index: slot.Index,
				Total: slot.Total,
				Name:  slot.Name,
			}
		}
	case game.PhaseDiscuss:
		tally := h.game.Tally()
		msg.Tally = &tally
	}

	return msg
}

// handleAction applies one client action to the game. Rejected actions are
// reported to the sender only and change nothing.
func (h *Hub) handleAction(cfg *Config, a action) {
	c := a.client
	msg := a.msg

	var err error

	switch msg.Type {
	case "add_player":
		var p game.Player
		p, err = h.game.AddPlayer(msg.Name)
		if err == nil {
			logf(cfg, "GAMES: Player %q joined %s", p.Name, h.id)
		}

	case "remove_player":
		err = h.game.RemovePlayer(msg.Index)

	case "clear_players":
		err = h.game.ClearPlayers()

	case "set_undercover":
		_, err = h.game.SetUndercoverCount(msg.Count)

	case "set_blank":
		_, err = h.game.SetBlankCount(msg.Count)

	case "start_game":
		err = h.game.StartGame()
		if err == nil {
			logf(cfg, "GAMES: Started %s with %d players", h.id, len(h.game.State().Players))
		}

	case "reveal":
		secret, err := h.game.Reveal()
		if err != nil {
			h.fail(c, err)
			return
		}

		h.deliver(c, SecretMessage{
			Type: "secret",
			RevealSlot: RevealSlot{
				Index: secret.Index,
				Total: secret.Total,
				Name:  secret.Name,
			},
			Role: secret.Role.String(),
			Word: secret.Word,
		})

		return

	case "advance":
		_, err = h.game.Advance()

	case "nominate":
		p, err := h.game.PreviewElimination(msg.PlayerID)
		if err != nil {
			h.fail(c, err)
			return
		}

		h.deliver(c, NominationMessage{
			Type:     "nomination",
			PlayerID: p.ID,
			Name:     p.Name,
		})

		return

	case "eliminate":
		var outcome game.Outcome
		outcome, err = h.game.ConfirmElimination(msg.PlayerID)
		if err == nil {
			logf(cfg, "GAMES: %q (%s) was eliminated from %s, winner: %s",
				outcome.Eliminated.Name, outcome.Eliminated.Role, h.id, outcome.Winner)

			h.broadcast(EliminationMessage{
				Type:    "elimination",
				Name:    outcome.Eliminated.Name,
				Role:    outcome.Eliminated.Role.String(),
				Winner:  outcome.Winner.String(),
				Message: outcome.Winner.Message(),
			})
		}

	case "reset":
		h.game.Reset()
		logf(cfg, "GAMES: Reset %s", h.id)

	default:
		// ignore unknown types
		return
	}

	if err != nil {
		h.fail(c, err)
		return
	}

	h.broadcast(h.stateMessage())
	h.scheduleSave()
}

// scheduleSave hands the current state to the saver, replacing any snapshot
// that has not been written yet.
func (h *Hub) scheduleSave() {
	state := h.game.State()

	for {
		select {
		case h.saves <- state:
			return
		default:
		}

		select {
		case <-h.saves:
		default:
		}
	}
}

// saveLoop writes snapshots until the hub stops. Failures are logged and
// otherwise ignored.
func (h *Hub) saveLoop() {
	key := store.Key(h.id)

	for state := range h.saves {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		err := h.snapshots.Save(ctx, key, state)
		cancel()

		if err != nil {
			errorf("STORE: %v", err)
		}
	}
}
