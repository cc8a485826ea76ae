/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package bingo

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/go-playground/validator/v10"
)

var (
	ErrUnknownType = errors.New("unknown message type")
	ErrInvalid     = errors.New("invalid message")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Inbound is a validated message received from a player socket.
type Inbound interface{ isInbound() }

// JoinMessage establishes or replaces the sender's session.
type JoinMessage struct {
	Identity    string   `json:"identity" validate:"required"`
	DisplayName string   `json:"displayName"`
	Board       Phrases  `json:"board" validate:"required,min=1"`
	Marked      Indices  `json:"marked"`
}

// StateMessage carries the full set of currently marked cells.
type StateMessage struct {
	Marked Indices `json:"marked" validate:"required"`
}

// ChatMessage is a player chat line with an optional attachment.
type ChatMessage struct {
	Message        string `json:"message"`
	AttachmentURL  string `json:"attachmentUrl"`
	AttachmentType string `json:"attachmentType"`
	AttachmentName string `json:"attachmentName"`
}

func (JoinMessage) isInbound()  {}
func (StateMessage) isInbound() {}
func (ChatMessage) isInbound()  {}

// Phrases decodes a JSON array of board phrases, skipping non-string entries.
type Phrases []string

func (ps *Phrases) UnmarshalJSON(data []byte) error {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*ps = nil
		return nil
	}

	out := make(Phrases, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}

	*ps = out
	return nil
}

// Indices decodes a JSON array of cell indices, keeping integral numbers
// and numeric strings and skipping everything else.
type Indices []int

func (ix *Indices) UnmarshalJSON(data []byte) error {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*ix = nil
		return nil
	}

	out := make(Indices, 0, len(raw))
	for _, v := range raw {
		var f float64
		switch n := v.(type) {
		case float64:
			f = n
		case string:
			parsed, err := strconv.ParseFloat(n, 64)
			if err != nil {
				continue
			}
			f = parsed
		default:
			continue
		}
		if f != math.Trunc(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
			continue
		}
		out = append(out, int(f))
	}

	*ix = out
	return nil
}

type envelope struct {
	Type string `json:"type"`
}

// DecodeInbound parses and validates a client frame. A non-empty identity
// replaces whatever identity a join message claims.
func DecodeInbound(data []byte, identity string) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	var msg Inbound
	switch env.Type {
	case "join":
		var m JoinMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		if identity != "" {
			m.Identity = identity
		}
		if err := validate.Struct(m); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		msg = m
	case "state":
		var m StateMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		if err := validate.Struct(m); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		msg = m
	case "chat":
		var m ChatMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		msg = m
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}

	return msg, nil
}

// Outbound messages. Each carries its own "type" discriminator.

type chatOut struct {
	Type string `json:"type"`
	ChatRecord
}

type chatHistoryOut struct {
	Type     string       `json:"type"`
	Messages []ChatRecord `json:"messages"`
}

type highlightOut struct {
	Type      string `json:"type"`
	UserID    string `json:"userId"`
	Cell      string `json:"cell"`
	Timestamp int64  `json:"timestamp"`
}

type peerSelectionsOut struct {
	Type       string            `json:"type"`
	Selections map[string][]Peer `json:"selections"`
}

type LeaderboardEntry struct {
	DisplayName        string `json:"displayName"`
	Identity           string `json:"identity"`
	CompletedLineCount int    `json:"completedLineCount"`
	MarkedCount        int    `json:"markedCount"`
}

type leaderboardOut struct {
	Type      string             `json:"type"`
	Players   []LeaderboardEntry `json:"players"`
	UpdatedAt int64              `json:"updatedAt"`
}

type AdminPlayer struct {
	ID                 string   `json:"id"`
	DisplayName        string   `json:"displayName"`
	Identity           string   `json:"identity"`
	Board              []string `json:"board"`
	Marked             []int    `json:"marked"`
	ConnectedAt        int64    `json:"connectedAt"`
	LastUpdateAt       int64    `json:"lastUpdateAt"`
	CompletedLineCount int      `json:"completedLineCount"`
}

type activeOut struct {
	Type    string        `json:"type"`
	Players []AdminPlayer `json:"players"`
}

func newActive(sessions []Session) activeOut {
	players := make([]AdminPlayer, 0, len(sessions))
	for _, s := range sessions {
		players = append(players, AdminPlayer{
			ID:                 s.ConnectionID,
			DisplayName:        s.DisplayName,
			Identity:           s.Identity,
			Board:              s.Board,
			Marked:             s.Marked,
			ConnectedAt:        s.ConnectedAt,
			LastUpdateAt:       s.LastUpdateAt,
			CompletedLineCount: s.CompletedLines,
		})
	}

	return activeOut{Type: "active", Players: players}
}

func newLeaderboard(sessions []Session, updatedAt int64) leaderboardOut {
	players := make([]LeaderboardEntry, 0, len(sessions))
	for _, s := range sessions {
		players = append(players, LeaderboardEntry{
			DisplayName:        s.DisplayName,
			Identity:           s.Identity,
			CompletedLineCount: s.CompletedLines,
			MarkedCount:        len(s.Marked),
		})
	}

	return leaderboardOut{Type: "leaderboard", Players: players, UpdatedAt: updatedAt}
}
