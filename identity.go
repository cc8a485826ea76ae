/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"net/url"
	"strings"
)

const (
	identityCookieName = "smingo_id"
	defaultDevUser     = "devuser"
)

// identify returns the pre-validated identity behind r, or "" if there is
// none. Outside of dev mode only the trusted proxy header is consulted.
func identify(cfg *Config, w http.ResponseWriter, r *http.Request) string {
	if !cfg.dev {
		return strings.TrimSpace(r.Header.Get(cfg.identityHeader))
	}

	if id := strings.TrimSpace(r.URL.Query().Get("kthid")); id != "" {
		setIdentityCookie(w, id)
		return id
	}

	if c, err := r.Cookie(identityCookieName); err == nil && c.Value != "" {
		if id, err := url.QueryUnescape(c.Value); err == nil && id != "" {
			return id
		}
	}

	setIdentityCookie(w, defaultDevUser)

	return defaultDevUser
}

func setIdentityCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     identityCookieName,
		Value:    url.QueryEscape(id),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// requireAdmin answers 401 or 403 and reports false unless r belongs to a
// configured admin.
func requireAdmin(cfg *Config, w http.ResponseWriter, r *http.Request) (string, bool) {
	id := identify(cfg, w, r)

	switch {
	case id == "":
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return "", false
	case !cfg.isAdmin(id):
		logf(cfg, "SERVE: Refused admin access for %s (%s)", id, realIP(r))
		http.Error(w, "Forbidden", http.StatusForbidden)
		return "", false
	}

	return id, true
}

// requireIdentity answers 401 and reports false if r carries no identity.
func requireIdentity(cfg *Config, w http.ResponseWriter, r *http.Request) (string, bool) {
	id := identify(cfg, w, r)
	if id == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return "", false
	}

	return id, true
}
