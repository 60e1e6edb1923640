package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/Seednode/undercover/internal/game"
	"github.com/Seednode/undercover/internal/store"
	"github.com/Seednode/undercover/internal/store/memory"
	"github.com/Seednode/undercover/internal/words"
	"github.com/gorilla/websocket"
)

type testServer struct {
	*httptest.Server
	snapshots *store.Snapshots
}

func newTestServer(t *testing.T, cfg *Config) *testServer {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	catalog := words.NewCatalog()
	if err := catalog.Replace([]words.Pair{{"sun", "lamp"}}); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	snapshots := store.NewSnapshots(memory.New())

	errs := make(chan error, 64)
	go drainErrors(errs)

	srv := httptest.NewServer(newRouter(ctx, cfg, catalog, snapshots, errs))
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, snapshots: snapshots}
}

func (s *testServer) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(s.URL, "http") + path

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	if resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })

	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg ClientMessage) {
	t.Helper()

	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", msg.Type, err)
	}
}

// expect reads until a message of type typ arrives and returns it raw.
func expect(t *testing.T, conn *websocket.Conn, typ string) []byte {
	t.Helper()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %q: %v", typ, err)
		}

		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			t.Fatalf("bad message %s: %v", data, err)
		}

		switch {
		case envelope.Type == typ:
			return data
		case envelope.Type == "error":
			t.Fatalf("waiting for %q, got error %s", typ, data)
		}
	}
}

// expectState reads state broadcasts until one satisfies match. Every state
// seen on the way must be free of secret words.
func expectState(t *testing.T, conn *websocket.Conn, match func(StateMessage) bool) StateMessage {
	t.Helper()

	for {
		data := expect(t, conn, "state")

		for _, word := range []string{"sun", "lamp"} {
			if bytes.Contains(data, []byte(word)) {
				t.Fatalf("state broadcast leaks %q: %s", word, data)
			}
		}

		var msg StateMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("bad state %s: %v", data, err)
		}

		if match(msg) {
			return msg
		}
	}
}

func anyState(StateMessage) bool { return true }

func TestFullGameOverWebSocket(t *testing.T) {
	srv := newTestServer(t, &Config{store: storeMemory})
	conn := srv.dial(t, gamePath+"/e2e/ws")

	initial := expectState(t, conn, anyState)
	if initial.Phase != "setup" || len(initial.Players) != 0 || initial.UndercoverCount != 1 {
		t.Fatalf("initial state = %+v", initial)
	}

	for _, name := range []string{"Ann", "Bob", "Cy"} {
		send(t, conn, ClientMessage{Type: "add_player", Name: name})
	}
	expectState(t, conn, func(s StateMessage) bool { return len(s.Players) == 3 })

	send(t, conn, ClientMessage{Type: "start_game"})
	started := expectState(t, conn, func(s StateMessage) bool { return s.Phase == "reveal" })
	if started.Reveal == nil || started.Reveal.Index != 0 || started.Reveal.Total != 3 {
		t.Fatalf("reveal slot = %+v", started.Reveal)
	}

	roles := make(map[string]string)
	wordOf := make(map[string]string)

	for i := range 3 {
		send(t, conn, ClientMessage{Type: "reveal"})

		var secret SecretMessage
		if err := json.Unmarshal(expect(t, conn, "secret"), &secret); err != nil {
			t.Fatal(err)
		}
		if secret.Index != i {
			t.Fatalf("secret index = %d, want %d", secret.Index, i)
		}

		roles[secret.Name] = secret.Role
		wordOf[secret.Role] = secret.Word

		send(t, conn, ClientMessage{Type: "advance"})
		expectState(t, conn, func(s StateMessage) bool {
			return s.Phase == "discuss" || (s.Reveal != nil && s.Reveal.Index == i+1)
		})
	}

	civilian, undercoverWord := wordOf["civilian"], wordOf["undercover"]
	if civilian == undercoverWord || !strings.Contains("sun lamp", civilian) || !strings.Contains("sun lamp", undercoverWord) {
		t.Fatalf("words = %v", wordOf)
	}

	// a client joining mid-game sees the discussion without any secrets
	conn2 := srv.dial(t, gamePath+"/e2e/ws")
	discuss := expectState(t, conn2, anyState)
	if discuss.Phase != "discuss" {
		t.Fatalf("phase = %q, want discuss", discuss.Phase)
	}
	if discuss.Tally == nil || *discuss.Tally != (game.Tally{Civilians: 2, Undercovers: 1}) {
		t.Fatalf("tally = %+v", discuss.Tally)
	}

	var undercover PublicPlayer
	for _, p := range discuss.Players {
		if roles[p.Name] == "undercover" {
			undercover = p
		}
	}
	if undercover.ID == "" {
		t.Fatalf("no undercover among %+v (roles %v)", discuss.Players, roles)
	}

	send(t, conn, ClientMessage{Type: "nominate", PlayerID: undercover.ID})

	var nomination NominationMessage
	if err := json.Unmarshal(expect(t, conn, "nomination"), &nomination); err != nil {
		t.Fatal(err)
	}
	if nomination.Name != undercover.Name {
		t.Fatalf("nominated %q, want %q", nomination.Name, undercover.Name)
	}

	send(t, conn, ClientMessage{Type: "eliminate", PlayerID: undercover.ID})

	for _, c := range []*websocket.Conn{conn, conn2} {
		var elimination EliminationMessage
		if err := json.Unmarshal(expect(t, c, "elimination"), &elimination); err != nil {
			t.Fatal(err)
		}
		if elimination.Winner != "civilians" || elimination.Message != "Civilians win!" || elimination.Role != "undercover" {
			t.Fatalf("elimination = %+v", elimination)
		}

		expectState(t, c, func(s StateMessage) bool { return s.Phase == "setup" && len(s.Players) == 0 })
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		state, err := srv.snapshots.Load(context.Background(), store.Key("e2e"))
		if err == nil && state.Phase == game.PhaseSetup && len(state.Players) == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("snapshot never reset: %+v, %v", state, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRejectedActions(t *testing.T) {
	srv := newTestServer(t, &Config{store: storeMemory})

	sender := srv.dial(t, gamePath+"/rejects/ws")
	expectState(t, sender, anyState)

	tests := []struct {
		msg  ClientMessage
		want string
	}{
		{ClientMessage{Type: "start_game"}, "Need at least 3 players."},
		{ClientMessage{Type: "add_player", Name: "   "}, "Enter a player name."},
		{ClientMessage{Type: "reveal"}, "That can't be done right now."},
		{ClientMessage{Type: "nominate", PlayerID: "nobody"}, "That can't be done right now."},
	}

	for _, tt := range tests {
		send(t, sender, tt.msg)

		var msg SimpleMessage
		if err := json.Unmarshal(expect(t, sender, "error"), &msg); err != nil {
			t.Fatal(err)
		}
		if msg.Message != tt.want {
			t.Errorf("%s: error = %q, want %q", tt.msg.Type, msg.Message, tt.want)
		}
	}

	_, err := srv.snapshots.Load(context.Background(), store.Key("rejects"))
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("rejected actions saved a snapshot: %v", err)
	}
}

func TestSessionRestoredFromSnapshot(t *testing.T) {
	srv := newTestServer(t, &Config{store: storeMemory})

	saved := game.DefaultState()
	saved.BlankCount = 1
	saved.Players = []game.Player{
		{ID: "a", Name: "Ann"},
		{ID: "b", Name: "Bob"},
		{ID: "c", Name: "Cy"},
	}

	if err := srv.snapshots.Save(context.Background(), store.Key("saved"), saved); err != nil {
		t.Fatal(err)
	}

	conn := srv.dial(t, gamePath+"/saved/ws")
	state := expectState(t, conn, anyState)

	if len(state.Players) != 3 || state.Players[1].Name != "Bob" || state.BlankCount != 1 {
		t.Fatalf("restored state = %+v", state)
	}

	other := srv.dial(t, gamePath+"/other/ws")
	if fresh := expectState(t, other, anyState); len(fresh.Players) != 0 {
		t.Fatalf("other session shares players: %+v", fresh)
	}
}

func TestHTTPRoutes(t *testing.T) {
	srv := newTestServer(t, &Config{store: storeMemory})

	client := srv.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	gameURL := regexp.MustCompile(`^` + gamePath + `/[A-Za-z0-9]{8}$`)

	tests := []struct {
		path        string
		status      int
		contentType string
		body        string
		location    *regexp.Regexp
	}{
		{path: "/", status: http.StatusTemporaryRedirect, location: regexp.MustCompile(`^` + gamePath + `$`)},
		{path: gamePath, status: http.StatusTemporaryRedirect, location: gameURL},
		{path: gamePath + "/abc", status: http.StatusOK, contentType: "text/html; charset=utf-8", body: "app.js"},
		{path: gamePath + "/abc/qr", status: http.StatusOK, contentType: "image/png"},
		{path: "/assets/undercover/app.js", status: http.StatusOK, contentType: "text/javascript; charset=utf-8"},
		{path: "/assets/undercover/missing.js", status: http.StatusNotFound},
		{path: "/favicons/favicon.svg", status: http.StatusOK, contentType: "image/svg+xml"},
		{path: "/healthz", status: http.StatusOK, body: "Ok\n"},
		{path: "/robots.txt", status: http.StatusOK, body: "Disallow: /"},
		{path: "/version", status: http.StatusOK, body: "undercover v" + releaseVersion},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := client.Get(srv.URL + tt.path)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				t.Fatal(err)
			}

			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if tt.contentType != "" && resp.Header.Get("Content-Type") != tt.contentType {
				t.Errorf("Content-Type = %q, want %q", resp.Header.Get("Content-Type"), tt.contentType)
			}
			if tt.body != "" && !strings.Contains(string(body), tt.body) {
				t.Errorf("body %q does not contain %q", body, tt.body)
			}
			if tt.location != nil && !tt.location.MatchString(resp.Header.Get("Location")) {
				t.Errorf("Location = %q", resp.Header.Get("Location"))
			}
			if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
				t.Errorf("missing security headers")
			}
		})
	}
}

func TestPrefixedRoutes(t *testing.T) {
	srv := newTestServer(t, &Config{store: storeMemory, prefix: "/games"})

	resp, err := srv.Client().Get(srv.URL + "/games/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	conn := srv.dial(t, "/games"+gamePath+"/prefixed/ws")
	if state := expectState(t, conn, anyState); state.Phase != "setup" {
		t.Fatalf("phase = %q", state.Phase)
	}
}

func TestIdleSessionsAreClosed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := &Config{store: storeMemory, sessionTimeout: 20 * time.Millisecond}
	gm := newGameManager(ctx, cfg, words.NewCatalog(), store.NewSnapshots(memory.New()))

	hub := gm.getHub("idle")

	select {
	case <-hub.quit:
	case <-time.After(5 * time.Second):
		t.Fatal("idle hub was never stopped")
	}

	gm.mu.Lock()
	defer gm.mu.Unlock()

	if _, ok := gm.hubs["idle"]; ok {
		t.Error("idle hub still registered")
	}
}

func TestNewGameID(t *testing.T) {
	gm := &GameManager{hubs: make(map[string]*Hub)}
	valid := regexp.MustCompile(`^[A-Za-z0-9]{8}$`)

	seen := make(map[string]bool)
	for range 100 {
		id := gm.newGameID()
		if !valid.MatchString(id) {
			t.Fatalf("bad game id %q", id)
		}
		seen[id] = true
	}

	if len(seen) < 99 {
		t.Errorf("only %d distinct ids out of 100", len(seen))
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			port:         8080,
			store:        storeBolt,
			storePath:    "undercover.db",
			wordsTimeout: time.Second,
		}
	}

	tests := []struct {
		name   string
		modify func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"memory without path", func(c *Config) { c.store = storeMemory; c.storePath = "" }, true},
		{"sqlite", func(c *Config) { c.store = storeSQLite }, true},
		{"postgres", func(c *Config) { c.store = storePostgres; c.storePath = "postgres://localhost/undercover" }, true},
		{"tls pair", func(c *Config) { c.tlsCert = "cert.pem"; c.tlsKey = "key.pem" }, true},
		{"words file", func(c *Config) { c.words = "words.yaml" }, true},
		{"cert without key", func(c *Config) { c.tlsCert = "cert.pem" }, false},
		{"key without cert", func(c *Config) { c.tlsKey = "key.pem" }, false},
		{"port zero", func(c *Config) { c.port = 0 }, false},
		{"port too large", func(c *Config) { c.port = 65536 }, false},
		{"unknown store", func(c *Config) { c.store = "redis" }, false},
		{"bolt without path", func(c *Config) { c.storePath = "" }, false},
		{"words without timeout", func(c *Config) { c.words = "words.yaml"; c.wordsTimeout = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(&cfg)

			err := cfg.validate()
			if (err == nil) != tt.ok {
				t.Errorf("validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestOpenSnapshots(t *testing.T) {
	dir := t.TempDir()

	for _, kind := range []string{storeBolt, storeSQLite, storeMemory} {
		t.Run(kind, func(t *testing.T) {
			cfg := &Config{store: kind, storePath: dir + "/" + kind + ".db"}

			snapshots, err := openSnapshots(cfg)
			if err != nil {
				t.Fatalf("openSnapshots: %v", err)
			}
			defer snapshots.Close()

			state := game.DefaultState()
			state.UndercoverCount = 2

			if err := snapshots.Save(context.Background(), store.Key("s"), state); err != nil {
				t.Fatal(err)
			}

			got, err := snapshots.Load(context.Background(), store.Key("s"))
			if err != nil {
				t.Fatal(err)
			}
			if got.UndercoverCount != 2 {
				t.Errorf("UndercoverCount = %d", got.UndercoverCount)
			}
		})
	}

	if _, err := openSnapshots(&Config{store: "redis"}); err == nil {
		t.Error("unknown store accepted")
	}
}
