/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package bingo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrHubStopped = errors.New("hub stopped")

// Options configures a Hub. Zero values select the defaults.
type Options struct {
	HistoryLimit  int
	MaxChatLength int
	Attachments   AttachmentPolicy
	Logger        zerolog.Logger
	Now           func() time.Time
}

// Stats is a point-in-time view of the hub.
type Stats struct {
	Players      int `json:"players"`
	Admins       int `json:"admins"`
	Sessions     int `json:"sessions"`
	ChatMessages int `json:"chatMessages"`
}

type event interface{ isHubEvent() }

type registerEvent struct{ client *Client }

type openEvent struct{ client *Client }

type leaveEvent struct{ client *Client }

type messageEvent struct {
	client *Client
	msg    Inbound
}

type statsEvent struct{ reply chan Stats }

func (registerEvent) isHubEvent() {}
func (openEvent) isHubEvent()     {}
func (leaveEvent) isHubEvent()    {}
func (messageEvent) isHubEvent()  {}
func (statsEvent) isHubEvent()    {}

// Hub serializes every connection event through a single loop. The
// registry, chat history and dispatcher are only touched from that loop.
type Hub struct {
	events chan event
	done   chan struct{}

	registry *Registry
	history  *History
	dispatch *Dispatcher

	maxChatLength int
	attachments   AttachmentPolicy
	log           zerolog.Logger
	now           func() time.Time
}

func NewHub(opts Options) *Hub {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	maxChat := opts.MaxChatLength
	if maxChat <= 0 {
		maxChat = DefaultMaxChatLength
	}

	return &Hub{
		events:        make(chan event, 256),
		done:          make(chan struct{}),
		registry:      NewRegistry(now),
		history:       NewHistory(opts.HistoryLimit),
		dispatch:      NewDispatcher(opts.Logger),
		maxChatLength: maxChat,
		attachments:   opts.Attachments,
		log:           opts.Logger,
		now:           now,
	}
}

// Run processes events until ctx is cancelled, then closes every socket.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.dispatch.CloseAll()
			return nil
		case ev := <-h.events:
			h.handle(ev)
		}
	}
}

// NewClient allocates a client with a fresh connection id. identity is the
// pre-validated account key of whoever opened the socket, if known.
func (h *Hub) NewClient(role Role, identity string) *Client {
	if role != RoleAdmin {
		role = RolePlayer
	}

	return &Client{
		id:       uuid.NewString(),
		role:     role,
		identity: identity,
		send:     make(chan []byte, sendBuffer),
	}
}

// Register attaches c in the connecting state.
func (h *Hub) Register(c *Client) { h.submit(registerEvent{client: c}) }

// Open marks c as having completed its handshake.
func (h *Hub) Open(c *Client) { h.submit(openEvent{client: c}) }

// Leave detaches c and discards its session.
func (h *Hub) Leave(c *Client) { h.submit(leaveEvent{client: c}) }

// Deliver queues an inbound message from c.
func (h *Hub) Deliver(c *Client, msg Inbound) { h.submit(messageEvent{client: c, msg: msg}) }

func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	reply := make(chan Stats, 1)

	select {
	case h.events <- statsEvent{reply: reply}:
	case <-h.done:
		return Stats{}, ErrHubStopped
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}

	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
}

func (h *Hub) submit(ev event) {
	select {
	case h.events <- ev:
	case <-h.done:
	}
}

func (h *Hub) handle(ev event) {
	switch e := ev.(type) {
	case registerEvent:
		h.dispatch.Add(e.client)

	case openEvent:
		h.dispatch.Open(e.client)
		if e.client.role == RoleAdmin {
			h.dispatch.ToOne(e.client, h.encode(newActive(h.registry.Snapshot())))
		}

	case leaveEvent:
		h.dispatch.Remove(e.client)
		if h.registry.Remove(e.client.id) {
			h.log.Info().Str("conn", e.client.id).Msg("player left")
			h.broadcastState()
		}

	case messageEvent:
		if e.client.state == stateClosed || e.client.role != RolePlayer {
			return
		}
		switch m := e.msg.(type) {
		case JoinMessage:
			h.handleJoin(e.client, m)
		case StateMessage:
			h.handleState(e.client, m)
		case ChatMessage:
			h.handleChat(e.client, m)
		}

	case statsEvent:
		e.reply <- Stats{
			Players:      h.dispatch.Players(),
			Admins:       h.dispatch.Admins(),
			Sessions:     h.registry.Len(),
			ChatMessages: h.history.Len(),
		}
	}
}

func (h *Hub) handleJoin(c *Client, m JoinMessage) {
	s, err := h.registry.Upsert(c.id, m.Identity, m.DisplayName, m.Board, m.Marked)
	if err != nil {
		h.log.Debug().Err(err).Str("conn", c.id).Msg("rejected join")
		return
	}

	h.log.Info().
		Str("conn", c.id).
		Str("identity", s.Identity).
		Str("name", s.DisplayName).
		Int("lines", s.CompletedLines).
		Msg("player joined")

	h.broadcastState()

	if h.history.Len() > 0 {
		h.dispatch.ToOne(c, h.encode(chatHistoryOut{Type: "chatHistory", Messages: h.history.All()}))
	}
}

func (h *Hub) handleState(c *Client, m StateMessage) {
	upd, ok := h.registry.UpdateMarks(c.id, m.Marked)
	if !ok {
		return
	}

	h.broadcastState()

	s := upd.Session
	for _, idx := range upd.Added {
		h.dispatch.ToAllPlayers(h.encode(highlightOut{
			Type:      "highlight",
			UserID:    s.DisplayName,
			Cell:      s.Board[idx],
			Timestamp: h.now().UnixMilli(),
		}))
	}

	if upd.LinesIncreased {
		h.log.Info().
			Str("conn", c.id).
			Str("name", s.DisplayName).
			Int("lines", s.CompletedLines).
			Msg("bingo")

		h.publishChat(ChatRecord{
			AuthorIdentity: s.Identity,
			Text:           fmt.Sprintf("%s got bingo #%d!", s.DisplayName, s.CompletedLines),
			Timestamp:      h.now().UnixMilli(),
			Categories:     []string{CategoryBingo},
		})
	}
}

func (h *Hub) handleChat(c *Client, m ChatMessage) {
	s, ok := h.registry.Get(c.id)
	if !ok {
		return
	}

	text := SanitizeChatText(m.Message, h.maxChatLength)
	att, hasAttachment := h.attachments.Sanitize(m.AttachmentURL, m.AttachmentType, m.AttachmentName)
	if text == "" && !hasAttachment {
		return
	}

	rec := ChatRecord{
		Author:         s.DisplayName,
		AuthorIdentity: s.Identity,
		Text:           text,
		Timestamp:      h.now().UnixMilli(),
		Categories:     []string{},
	}
	if hasAttachment {
		rec.Attachment = &att
	}

	h.publishChat(rec)
}

func (h *Hub) publishChat(rec ChatRecord) {
	h.history.Append(rec)
	h.dispatch.ToAllPlayers(h.encode(chatOut{Type: "chat", ChatRecord: rec}))
}

// broadcastState pushes the admin snapshot, the peer selections and the
// leaderboard after any change to the registry.
func (h *Hub) broadcastState() {
	if h.dispatch.Admins() > 0 {
		h.dispatch.ToAllAdmins(h.encode(newActive(h.registry.Snapshot())))
	}

	if h.dispatch.Players() == 0 {
		return
	}

	h.dispatch.ToAllPlayers(h.encode(peerSelectionsOut{
		Type:       "peerSelections",
		Selections: PeerSelections(h.registry),
	}))

	h.dispatch.ToAllPlayers(h.encode(newLeaderboard(h.registry.Leaderboard(), h.now().UnixMilli())))
}

func (h *Hub) encode(v any) []byte {
	payload, err := json.Marshal(v)
	if err != nil {
		h.log.Error().Err(err).Msg("encode payload")
		return nil
	}
	return payload
}
