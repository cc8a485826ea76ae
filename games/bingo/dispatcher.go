/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package bingo

import (
	"github.com/rs/zerolog"
)

// Dispatcher fans pre-serialized payloads out to player and admin sockets.
// Sockets that are closed or cannot keep up are pruned as a side effect of
// sending. It is owned by the Hub loop and is not safe for concurrent use.
type Dispatcher struct {
	players map[*Client]struct{}
	admins  map[*Client]struct{}
	log     zerolog.Logger
}

func NewDispatcher(log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		players: make(map[*Client]struct{}),
		admins:  make(map[*Client]struct{}),
		log:     log,
	}
}

func (d *Dispatcher) set(c *Client) map[*Client]struct{} {
	if c.role == RoleAdmin {
		return d.admins
	}
	return d.players
}

// Add tracks c. It receives broadcasts once it has been marked open.
func (d *Dispatcher) Add(c *Client) {
	d.set(c)[c] = struct{}{}
}

// Open marks c as open and flushes anything queued for it while connecting.
func (d *Dispatcher) Open(c *Client) {
	if c.state != stateConnecting {
		return
	}

	c.state = stateOpen

	pending := c.pending
	c.pending = nil
	for _, payload := range pending {
		if !d.deliver(c, payload) {
			d.Prune(c)
			return
		}
	}
}

// Remove stops tracking c and closes it.
func (d *Dispatcher) Remove(c *Client) {
	d.Prune(c)
}

// Prune drops c from its target set and closes its outbound queue. It is
// safe to call more than once.
func (d *Dispatcher) Prune(c *Client) {
	delete(d.set(c), c)

	if c.state == stateClosed {
		return
	}

	c.state = stateClosed
	c.pending = nil
	close(c.send)

	d.log.Debug().Str("conn", c.id).Str("role", string(c.role)).Msg("pruned socket")
}

func (d *Dispatcher) ToAllPlayers(payload []byte) int {
	return d.broadcast(d.players, payload)
}

func (d *Dispatcher) ToAllAdmins(payload []byte) int {
	return d.broadcast(d.admins, payload)
}

// ToOne sends payload to c alone. A socket still completing its handshake
// gets the payload once it opens; a closed socket never does.
func (d *Dispatcher) ToOne(c *Client, payload []byte) bool {
	if payload == nil {
		return false
	}

	switch c.state {
	case stateConnecting:
		c.pending = append(c.pending, payload)
		return true
	case stateOpen:
		if d.deliver(c, payload) {
			return true
		}
		d.Prune(c)
	}
	return false
}

func (d *Dispatcher) Players() int {
	return len(d.players)
}

func (d *Dispatcher) Admins() int {
	return len(d.admins)
}

// CloseAll prunes every tracked socket.
func (d *Dispatcher) CloseAll() {
	for c := range d.players {
		d.Prune(c)
	}
	for c := range d.admins {
		d.Prune(c)
	}
}

func (d *Dispatcher) broadcast(targets map[*Client]struct{}, payload []byte) int {
	if payload == nil {
		return 0
	}

	delivered := 0

	for c := range targets {
		switch c.state {
		case stateConnecting:
			continue
		case stateOpen:
			if d.deliver(c, payload) {
				delivered++
				continue
			}
		}
		d.Prune(c)
	}

	return delivered
}

// deliver never blocks; a full queue means the reader has fallen behind.
func (d *Dispatcher) deliver(c *Client, payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}
