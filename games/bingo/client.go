/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package bingo

import (
	"github.com/gorilla/websocket"
)

const (
	maxMessageSize = 64 << 10
	sendBuffer     = 64
)

type Role string

const (
	RolePlayer Role = "player"
	RoleAdmin  Role = "admin"
)

type connState int

const (
	stateConnecting connState = iota
	stateOpen
	stateClosed
)

// Client is one socket attached to the Hub. state and pending are only
// touched from the Hub loop.
type Client struct {
	id       string
	role     Role
	identity string
	send     chan []byte

	state   connState
	pending [][]byte
}

func (c *Client) ID() string { return c.id }

func (c *Client) Role() Role { return c.role }

// Outbox yields every payload queued for this client and is closed once the
// client has been pruned or removed.
func (c *Client) Outbox() <-chan []byte { return c.send }

// Serve pumps frames between conn and the hub until either side closes.
// c must already be registered.
func (h *Hub) Serve(conn *websocket.Conn, c *Client) {
	h.Open(c)

	go c.writePump(conn)
	c.readPump(h, conn)
}

func (c *Client) readPump(h *Hub, conn *websocket.Conn) {
	defer func() {
		h.Leave(c)
		_ = conn.Close()
	}()

	// Disconnects are only noticed through read errors; there is no heartbeat.
	conn.SetReadLimit(maxMessageSize)

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				h.log.Debug().Err(err).Str("conn", c.id).Msg("read error")
			}
			return
		}

		// Admin sockets only listen.
		if c.role != RolePlayer || kind != websocket.TextMessage {
			continue
		}

		msg, err := DecodeInbound(data, c.identity)
		if err != nil {
			h.log.Debug().Err(err).Str("conn", c.id).Msg("dropped message")
			continue
		}

		h.Deliver(c, msg)
	}
}

func (c *Client) writePump(conn *websocket.Conn) {
	defer conn.Close()

	for payload := range c.send {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}

	_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
}
