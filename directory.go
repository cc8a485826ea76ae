/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

type Profile struct {
	Identity   string `json:"-"`
	Email      string `json:"email"`
	FirstName  string `json:"firstName"`
	FamilyName string `json:"familyName"`
	YearTag    string `json:"yearTag"`
}

// DisplayName is the full name if known, otherwise the identity.
func (p Profile) DisplayName() string {
	name := strings.TrimSpace(p.FirstName + " " + p.FamilyName)
	if name == "" {
		return p.Identity
	}
	return name
}

type Directory struct {
	cfg    *Config
	client *http.Client
}

func newDirectory(cfg *Config) *Directory {
	return &Directory{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.upstreamTimeout},
	}
}

// Lookup never fails; any problem yields a profile carrying only the
// identity.
func (d *Directory) Lookup(ctx context.Context, identity string) Profile {
	profile := Profile{Identity: identity}

	if d.cfg.dev {
		profile.Email = "dev@example.com"
		profile.FirstName = "User"
		profile.FamilyName = identity
		profile.YearTag = "D00"
		return profile
	}

	if d.cfg.directoryURL == "" || identity == "" {
		return profile
	}

	found, err := d.fetch(ctx, identity)
	if err != nil {
		d.cfg.log.Warn().Err(err).Str("identity", identity).Msg("directory lookup failed")
		return profile
	}

	found.Identity = identity
	found.Email = strings.TrimSpace(found.Email)
	found.FirstName = strings.TrimSpace(found.FirstName)
	found.FamilyName = strings.TrimSpace(found.FamilyName)
	found.YearTag = strings.TrimSpace(found.YearTag)

	return found
}

func (d *Directory) fetch(ctx context.Context, identity string) (Profile, error) {
	u, err := url.Parse(d.cfg.directoryURL)
	if err != nil {
		return Profile{}, err
	}

	q := u.Query()
	q.Set("format", "single")
	q.Set("u", identity)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Profile{}, err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return Profile{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Profile{}, fmt.Errorf("directory answered %s", resp.Status)
	}

	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return Profile{}, fmt.Errorf("decode profile: %w", err)
	}

	return p, nil
}
