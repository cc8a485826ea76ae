/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"net/http"
	"time"

	"github.com/Seednode/smingo/games/bingo"
	"github.com/Seednode/smingo/games/bingo/cards"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

func newUpgrader(cfg *Config) *websocket.Upgrader {
	u := &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}

	// Dev builds are often opened through a different host than they bind to.
	if cfg.dev {
		u.CheckOrigin = func(r *http.Request) bool {
			return true
		}
	}

	return u
}

func newHub(cfg *Config) *bingo.Hub {
	return bingo.NewHub(bingo.Options{
		HistoryLimit:  cfg.chatHistory,
		MaxChatLength: cfg.chatMaxLength,
		Attachments:   bingo.AttachmentPolicy{Host: cfg.attachmentHost},
		Logger:        cfg.log.With().Str("component", "hub").Logger(),
	})
}

func loadCatalog(ctx context.Context, cfg *Config) (*cards.Catalog, error) {
	if cfg.cardsDSN == "" {
		return cards.Default(), nil
	}

	return cards.FromDSN(ctx, cfg.cardsDSN)
}

func serveWS(cfg *Config, hub *bingo.Hub) httprouter.Handle {
	upgrader := newUpgrader(cfg)

	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		role := bingo.RolePlayer
		if r.URL.Query().Get("role") == string(bingo.RoleAdmin) {
			role = bingo.RoleAdmin
		}

		var (
			identity string
			ok       bool
		)
		if role == bingo.RoleAdmin {
			identity, ok = requireAdmin(cfg, w, r)
		} else {
			identity, ok = requireIdentity(cfg, w, r)
		}
		if !ok {
			return
		}

		client := hub.NewClient(role, identity)
		hub.Register(client)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.Leave(client)
			logf(cfg, "GAMES: Upgrade failed for %s (%s): %v", identity, realIP(r), err)
			return
		}

		logf(cfg, "GAMES: %s %s connected as %s from %s", role, client.ID(), identity, realIP(r))

		hub.Serve(conn, client)

		logf(cfg, "GAMES: %s %s disconnected", role, client.ID())
	}
}

func serveQR(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		scheme := cfg.scheme()
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		url := scheme + "://" + r.Host + cfg.prefix + "/"

		const qrSize = 320
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

func serveStats(cfg *Config, hub *bingo.Hub, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if _, ok := requireAdmin(cfg, w, r); !ok {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()

		stats, err := hub.Stats(ctx)
		if err != nil {
			http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
			return
		}

		securityHeaders(cfg, w)
		if err := writeJSON(w, http.StatusOK, stats); err != nil {
			errs <- err
		}
	}
}

func registerSmingo(cfg *Config, mux *httprouter.Router, hub *bingo.Hub, catalog *cards.Catalog, errs chan<- error) {
	dir := newDirectory(cfg)

	mux.GET(cfg.prefix+"/", serveHomePage(cfg, catalog, dir, errs))
	mux.GET(cfg.prefix+"/admin", serveAdminPage(cfg, errs))
	mux.GET(cfg.prefix+"/talman", serveTalmanPage(cfg, errs))
	mux.GET(cfg.prefix+"/ws", serveWS(cfg, hub))
	mux.GET(cfg.prefix+"/qr", serveQR(cfg, errs))
	mux.GET(cfg.prefix+"/api/stats", serveStats(cfg, hub, errs))

	if cfg.uploadEndpoint != "" {
		uploader := newUploader(cfg, bingo.AttachmentPolicy{Host: cfg.attachmentHost})
		mux.POST(cfg.prefix+"/api/upload", uploader.serve(errs))
	}
}
