package main

import (
	"context"
	"crypto/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Seednode/undercover/internal/game"
	"github.com/Seednode/undercover/internal/store"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const gamePath = "/undercover"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// GameManager holds a set of hubs keyed by game ID, so each
// /undercover/:gameid is its own isolated session.
type GameManager struct {
	mu          sync.Mutex
	hubs        map[string]*Hub
	idleTimeout time.Duration

	ctx       context.Context
	cfg       *Config
	catalog   game.Catalog
	snapshots *store.Snapshots
}

func newGameManager(ctx context.Context, cfg *Config, catalog game.Catalog, snapshots *store.Snapshots) *GameManager {
	gm := &GameManager{
		hubs:        make(map[string]*Hub),
		idleTimeout: cfg.sessionTimeout,
		ctx:         ctx,
		cfg:         cfg,
		catalog:     catalog,
		snapshots:   snapshots,
	}
	if gm.idleTimeout > 0 {
		go gm.reaperLoop()
	}
	return gm
}

func (gm *GameManager) getHub(gameID string) *Hub {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if hub, ok := gm.hubs[gameID]; ok {
		return hub
	}

	hub := newHub(gm.ctx, gm.cfg, gameID, gm.catalog, gm.snapshots)
	gm.hubs[gameID] = hub
	go hub.run(gm.cfg)
	go hub.saveLoop()

	logf(gm.cfg, "GAMES: Opened session %s", gameID)

	return hub
}

// newGameID generates a crypto-random game ID and ensures it doesn't
// collide with open sessions.
func (gm *GameManager) newGameID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	for {
		buf := make([]byte, 8)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 8)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		id := string(out)

		gm.mu.Lock()
		_, exists := gm.hubs[id]
		gm.mu.Unlock()

		if !exists {
			return id
		}
	}
}

// reaperLoop periodically closes hubs that have been idle longer than
// idleTimeout. Their snapshots stay behind, so the session can be reopened.
func (gm *GameManager) reaperLoop() {
	ticker := time.NewTicker(gm.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-gm.ctx.Done():
			gm.closeAll()
			return
		case <-ticker.C:
		}

		cutoff := time.Now().Add(-gm.idleTimeout)

		gm.mu.Lock()
		for id, hub := range gm.hubs {
			if hub.idleSince().Before(cutoff) {
				delete(gm.hubs, id)
				hub.stop()
				logf(gm.cfg, "GAMES: Closed idle session %s", id)
			}
		}
		gm.mu.Unlock()
	}
}

func (gm *GameManager) closeAll() {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	for id, hub := range gm.hubs {
		delete(gm.hubs, id)
		hub.stop()
	}
}

// WebSocket handler that picks the hub based on :gameid
func serveWSForManager(gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")
		if gameID == "" {
			http.Error(w, "missing game id", http.StatusBadRequest)
			return
		}

		hub := gm.getHub(gameID)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			errorf("upgrade error: %v", err)
			return
		}

		client := &Client{
			conn: conn,
			send: make(chan any, 16),
		}

		select {
		case hub.register <- client:
		case <-hub.quit:
			_ = conn.Close()
			return
		}

		logf(gm.cfg, "SERVE: Client %s attached to %s", realIP(r), gameID)

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.quit:
		}
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		select {
		case h.actions <- action{client: c, msg: msg}:
		case <-h.quit:
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// QR handler: generates a PNG QR code for the current game URL using go-qrcode.
func qrHandler(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if ps.ByName("gameid") == "" {
			http.Error(w, "missing game id", http.StatusBadRequest)
			return
		}

		// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
		scheme := cfg.scheme()
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		// We are at /.../:gameid/qr; strip trailing "/qr" to get the game URL.
		url := scheme + "://" + r.Host + strings.TrimSuffix(r.URL.Path, "/qr")

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		securityHeaders(cfg, w)

		if _, err := w.Write(png); err != nil {
			errs <- err
		}
	}
}

// redirectNewGame handles GET /undercover by generating a new random game ID
// and redirecting to /undercover/:gameid.
func redirectNewGame(cfg *Config, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		gameID := gm.newGameID()
		logf(cfg, "GAMES: Created game %s", gameID)
		securityHeaders(cfg, w)
		http.Redirect(w, r, cfg.prefix+gamePath+"/"+gameID, http.StatusTemporaryRedirect)
	}
}

// registerUndercoverGame sets up routes so that:
//   - /undercover                  → redirects to new random game (8-char ID)
//   - /undercover/:gameid          → HTML client
//   - /undercover/:gameid/ws       → WebSocket for that game
//   - /undercover/:gameid/qr       → PNG QR code for that game URL
func registerUndercoverGame(cfg *Config, mux *httprouter.Router, gm *GameManager, errs chan<- error) {
	path := cfg.prefix + gamePath

	mux.GET(path, redirectNewGame(cfg, gm))
	mux.GET(path+"/:gameid", serveGamePage(cfg, errs))
	mux.GET(path+"/:gameid/ws", serveWSForManager(gm))
	mux.GET(path+"/:gameid/qr", qrHandler(cfg, errs))
}
