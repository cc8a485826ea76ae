package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Seednode/smingo/games/bingo"
	"github.com/Seednode/smingo/games/bingo/cards"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRouter(t *testing.T, cfg *Config) http.Handler {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	hub := newHub(cfg)

	done := make(chan struct{})
	go func() {
		_ = hub.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return newRouter(cfg, hub, cards.Default(), make(chan error, 64))
}

func get(t *testing.T, h http.Handler, path, identity string) *httptest.ResponseRecorder {
	t.Helper()

	r := httptest.NewRequest(http.MethodGet, path, nil)
	if identity != "" {
		r.Header.Set("X-Forwarded-User", identity)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	return w
}

func TestPlumbingRoutes(t *testing.T) {
	h := testRouter(t, testConfig())

	w := get(t, h, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Ok\n", w.Body.String())

	w = get(t, h, "/version", "")
	assert.Equal(t, "smingo v"+releaseVersion+"\n", w.Body.String())

	w = get(t, h, "/robots.txt", "")
	assert.Contains(t, w.Body.String(), "Disallow: /")

	w = get(t, h, "/assets/app.js", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/javascript; charset=utf-8", w.Header().Get("Content-Type"))

	w = get(t, h, "/assets/missing.js", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = get(t, h, "/favicons/favicon.svg", "")
	assert.Equal(t, "image/svg+xml", w.Header().Get("Content-Type"))

	w = get(t, h, "/qr", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "\x89PNG"))
}

func TestBoardPage(t *testing.T) {
	h := testRouter(t, testConfig())

	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/", "").Code)

	w := get(t, h, "/", "alice")
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Equal(t, cards.BoardSize, strings.Count(body, `class="cell"`))
	assert.Contains(t, body, `data-identity="alice"`)
	assert.Contains(t, body, `data-max-chat="300"`)
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "imgcdn.dev")

	again := get(t, h, "/", "alice")
	assert.Equal(t, body, again.Body.String(), "same identity and day yield the same board")
}

func TestAdminGates(t *testing.T) {
	h := testRouter(t, testConfig())

	for _, path := range []string{"/admin", "/talman", "/api/stats", "/ws?role=admin"} {
		t.Run(path, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, get(t, h, path, "").Code)
			assert.Equal(t, http.StatusForbidden, get(t, h, path, "alice").Code)
		})
	}

	assert.Equal(t, http.StatusOK, get(t, h, "/admin", "root").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/talman", "Chair").Code)
	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/ws", "").Code)
}

func TestStatsEndpoint(t *testing.T) {
	h := testRouter(t, testConfig())

	w := get(t, h, "/api/stats", "root")
	require.Equal(t, http.StatusOK, w.Code)

	var stats bingo.Stats
	require.NoError(t, json.NewDecoder(w.Body).Decode(&stats))
	assert.Equal(t, bingo.Stats{}, stats)
}

func TestPrefixAndUploadToggle(t *testing.T) {
	cfg := testConfig()
	cfg.prefix = "/smingo"
	h := testRouter(t, cfg)

	assert.Equal(t, http.StatusOK, get(t, h, "/smingo/healthz", "").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/healthz", "").Code)

	r := httptest.NewRequest(http.MethodPost, "/smingo/api/upload", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusNotFound, w.Code, "uploads are off without an endpoint")
}

func TestWebsocketThroughRouter(t *testing.T) {
	cfg := testConfig()
	cfg.dev = true
	srv := httptest.NewServer(testRouter(t, cfg))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?role=player&kthid=alice"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":        "join",
		"identity":    "mallory",
		"displayName": "Alice",
		"board":       cards.Default().Board("alice", time.Now()),
		"marked":      []int{0, 6, 12, 18, 24},
	}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var msg map[string]any
		require.NoError(t, conn.ReadJSON(&msg))
		if msg["type"] != "leaderboard" {
			continue
		}

		players := msg["players"].([]any)
		require.Len(t, players, 1)
		entry := players[0].(map[string]any)
		assert.Equal(t, "alice", entry["identity"])
		assert.Equal(t, 1.0, entry["completedLineCount"])
		return
	}
}
