// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/autobrr/quilist/internal/torrentlist"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	sendBuffer   = 8
)

// StateSource publishes list states.
type StateSource interface {
	State() *torrentlist.State
	Subscribe() (<-chan *torrentlist.State, func())
}

type message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub pushes published list states to websocket clients. Pushes are throttled;
// a state that arrives while throttled replaces any state still waiting, so
// clients always end up with the newest one.
type Hub struct {
	source  StateSource
	limiter *rate.Limiter
	log     zerolog.Logger

	clients    map[*client]struct{}
	register   chan *client
	unregister chan *client
	done       chan struct{}

	// hub goroutine owned
	latest        []byte
	latestVersion uint64
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func NewHub(source StateSource, interval time.Duration) *Hub {
	return &Hub{
		source:     source,
		limiter:    rate.NewLimiter(limitFor(interval), 1),
		log:        log.With().Str("module", "ws").Logger(),
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
	}
}

func limitFor(interval time.Duration) rate.Limit {
	if interval <= 0 {
		return rate.Inf
	}
	return rate.Every(interval)
}

// SetInterval changes the minimum time between pushes.
func (h *Hub) SetInterval(interval time.Duration) {
	h.limiter.SetLimit(limitFor(interval))
	h.log.Debug().Dur("interval", interval).Msg("Updated broadcast interval")
}

// Run forwards states to clients until ctx is done, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) error {
	states, unsubscribe := h.source.Subscribe()
	defer unsubscribe()

	var (
		pending *torrentlist.State
		timer   *time.Timer
		timerC  <-chan time.Time
	)

	defer func() {
		if timer != nil {
			timer.Stop()
		}
		close(h.done)
		for c := range h.clients {
			_ = c.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(2*time.Second),
			)
			close(c.send)
			delete(h.clients, c)
		}
		h.log.Debug().Msg("Websocket hub stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case c := <-h.register:
			h.clients[c] = struct{}{}
			if h.latest == nil {
				h.remember(h.source.State())
			}
			if h.latest != nil {
				c.send <- h.latest
			}
			h.log.Debug().Int("clients", len(h.clients)).Msg("Websocket client connected")

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.log.Debug().Int("clients", len(h.clients)).Msg("Websocket client disconnected")
			}

		case state := <-states:
			pending = state
			if timer == nil {
				timer = time.NewTimer(h.limiter.Reserve().Delay())
				timerC = timer.C
			}

		case <-timerC:
			timer, timerC = nil, nil
			if pending == nil || (h.latest != nil && pending.Version <= h.latestVersion) {
				pending = nil
				continue
			}
			if h.remember(pending) {
				h.broadcast(h.latest)
			}
			pending = nil
		}
	}
}

// remember encodes state as the message new clients receive first.
func (h *Hub) remember(state *torrentlist.State) bool {
	if state == nil {
		return false
	}
	payload, err := json.Marshal(message{Type: "state", Data: state})
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to encode list state")
		return false
	}
	h.latest = payload
	h.latestVersion = state.Version
	return true
}

func (h *Hub) broadcast(payload []byte) {
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			// the client fell behind; drop it and let it reconnect
			close(c.send)
			delete(h.clients, c)
			h.log.Warn().Msg("Dropping slow websocket client")
		}
	}
}

// ServeWS upgrades the request and streams list states until the client leaves.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("Websocket upgrade failed")
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}

	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go c.writePump()
	c.readPump()
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only handles control frames; clients talk to the list through the REST endpoints.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
