/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Seednode/smingo/games/bingo/cards"
	"github.com/julienschmidt/httprouter"
)

//go:embed assets/*
var assets embed.FS

//go:embed templates/*.html
var templateFiles embed.FS

var pages = template.Must(template.New("").ParseFS(templateFiles, "templates/*.html"))

type pageData struct {
	Title       string
	Prefix      string
	Favicon     template.HTML
	Dev         bool
	Identity    string
	DisplayName string
	Board       []string
	MaxChat     int
	Uploads     bool
}

func newPageData(cfg *Config, title string) pageData {
	return pageData{
		Title:   title,
		Prefix:  cfg.prefix,
		Favicon: template.HTML(getFavicon()),
		Dev:     cfg.dev,
		MaxChat: cfg.chatMaxLength,
		Uploads: cfg.uploadEndpoint != "",
	}
}

// cspHome relaxes the default policy so pages can embed attachments from the
// image host and open the websocket.
func cspHome(cfg *Config, w http.ResponseWriter) {
	host := strings.ToLower(cfg.attachmentHost)
	media := "https://" + host + " https://*." + host

	w.Header().Set("Cross-Origin-Embedder-Policy", "credentialless")
	w.Header().Set("Content-Security-Policy", strings.Join([]string{
		"default-src 'self'",
		"img-src 'self' data: " + media,
		"media-src 'self' " + media,
		"connect-src 'self' ws: wss:",
	}, "; "))
}

func renderPage(cfg *Config, w http.ResponseWriter, r *http.Request, name string, data pageData, errs chan<- error) {
	startTime := time.Now()

	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		errs <- err
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	securityHeaders(cfg, w)
	cspHome(cfg, w)

	written, err := w.Write(buf.Bytes())
	if err != nil {
		errs <- err

		return
	}

	logf(cfg, "SERVE: %s page (%s) to %s in %s",
		data.Title,
		humanReadableSize(int64(written)),
		realIP(r),
		time.Since(startTime).Round(time.Microsecond),
	)
}

func serveHomePage(cfg *Config, catalog *cards.Catalog, dir *Directory, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		identity, ok := requireIdentity(cfg, w, r)
		if !ok {
			return
		}

		profile := dir.Lookup(r.Context(), identity)

		data := newPageData(cfg, "SMingo")
		data.Identity = identity
		data.DisplayName = profile.DisplayName()
		data.Board = catalog.Board(identity, time.Now())

		renderPage(cfg, w, r, "board.html", data, errs)
	}
}

func serveAdminPage(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		identity, ok := requireAdmin(cfg, w, r)
		if !ok {
			return
		}

		data := newPageData(cfg, "SMingo admin")
		data.Identity = identity

		renderPage(cfg, w, r, "admin.html", data, errs)
	}
}

func serveTalmanPage(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		identity, ok := requireAdmin(cfg, w, r)
		if !ok {
			return
		}

		data := newPageData(cfg, "SMingo talman")
		data.Identity = identity

		renderPage(cfg, w, r, "talman.html", data, errs)
	}
}

func serveHealthCheck(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)

		_, err := w.Write([]byte("Ok\n"))
		if err != nil {
			errs <- err

			return
		}
	}
}

func serveAssets(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		fname := "assets/" + strings.TrimPrefix(p.ByName("asset"), "/")

		data, err := assets.ReadFile(fname)
		if err != nil {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		securityHeaders(cfg, w)

		ext := strings.ToLower(filepath.Ext(fname))
		switch ext {
		case ".css":
			w.Header().Set("Content-Type", "text/css; charset=utf-8")
		case ".js":
			w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		case ".svg":
			w.Header().Set("Content-Type", "image/svg+xml")
		}

		_, err = w.Write(data)
		if err != nil {
			errs <- err

			return
		}
	}
}

func serveRobots(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		data := `User-agent: *
Disallow: /`

		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		securityHeaders(cfg, w)

		_, err := w.Write([]byte(data))
		if err != nil {
			errs <- err

			return
		}
	}
}
