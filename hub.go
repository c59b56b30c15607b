/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Barkeep Room
//
// Everyone at the party logs in with their name and how much they can
// drink, then lands in a shared room. A bluetooth scale under the
// bottle reports each pour; every pour counts against everyone present,
// and the room shows who is still fine, who should slow down, and who
// is done for the night.
//
// Features:
// - Single shared room with WebSocket roster + chat: /room and /ws
// - Login form hands out a session cookie; the websocket is rejected
//   with a redirect when no claim exists for that cookie
// - Each scale reading increments every connected participant
// - Status (normal/caution/danger) derived from consumption vs. capacity
// - Periodic feedback written back to the scale (a=consumed, b=capacity)
// - In-browser QR button to share the room, backed by go-qrcode

package main

import (
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

// Messages coming from clients
type clientMessage struct {
	Type string `json:"type"` // "chat"
	Body string `json:"body,omitempty"`
}

// rosterEntry is one row of the roster as sent to clients.
type rosterEntry struct {
	Name     string  `json:"name"`
	Capacity float64 `json:"capacity"`
	Consumed float64 `json:"consumed"`
	Status   Status  `json:"status"`
}

type rosterMessage struct {
	Type  string        `json:"type"` // "roster"
	Users []rosterEntry `json:"users"`
}

type chatMessage struct {
	Type   string `json:"type"` // "chat"
	Sender string `json:"sender"`
	Body   string `json:"body"`
}

// redirectMessage is sent to a single client before its connection is
// dropped, pointing it back at the login page.
type redirectMessage struct {
	Type string `json:"type"` // "redirect"
	URL  string `json:"url"`
}

type Client struct {
	conn   *websocket.Conn
	send   chan any
	connID string

	// set by the run loop once the roster accepts this connection; only
	// admitted clients may evict their connID on disconnect
	admitted bool

	// claim seed, filled in by the session gate before registration
	name     string
	capacity float64
	consumed float64
}

type chatRequest struct {
	client *Client
	body   string
}

// Hub owns the roster and fans events out to every connected client.
// All mutations run on the hub's single run loop, one event at a time.
type Hub struct {
	cfg    *Config
	roster *Roster
	tiers  SensorTiers

	clients  map[*Client]bool
	register chan *Client
	unreg    chan *Client
	chats    chan chatRequest
	readings chan []byte
}

func newHub(cfg *Config, roster *Roster) *Hub {
	return &Hub{
		cfg:      cfg,
		roster:   roster,
		tiers:    cfg.tiers(),
		clients:  make(map[*Client]bool),
		register: make(chan *Client),
		unreg:    make(chan *Client),
		chats:    make(chan chatRequest),
		readings: make(chan []byte, 8),
	}
}

// run dispatches one event to completion before starting the next, so
// roster mutations and their broadcasts are never interleaved. With no
// device channel configured, readings simply never fires.
func (h *Hub) run(done <-chan struct{}) {
	for {
		select {
		case c := <-h.register:
			p, err := h.roster.Admit(c.connID, c.name, c.capacity, c.consumed)
			if err != nil {
				log.Printf("WARN: admit refused for %q: %v", c.name, err)
				c.send <- redirectMessage{
					Type: "redirect",
					URL:  h.cfg.prefix + "/",
				}
				close(c.send)
				continue
			}

			c.admitted = true
			h.clients[c] = true
			logf(h.cfg, "ROOM: %q joined (capacity %g, consumed %g, status %s)", p.Name, p.Capacity, p.Consumed, p.Status)

			h.broadcastRoster()

		case c := <-h.unreg:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}

			if !c.admitted {
				logf(h.cfg, "ROOM: disconnect for unadmitted connection %s ignored", c.connID)
				continue
			}

			if p, ok := h.roster.Remove(c.connID); ok {
				logf(h.cfg, "ROOM: %q left", p.Name)
				h.broadcastRoster()
			} else {
				logf(h.cfg, "ROOM: connection %s already removed", c.connID)
			}

		case cr := <-h.chats:
			h.broadcastChat(cr.client.name, cr.body)

		case payload := <-h.readings:
			delta, err := h.tiers.Normalize(payload)
			if err != nil {
				log.Printf("DEVICE: %v", err)
				continue
			}

			h.roster.ApplyGroupIncrement(delta)
			logf(h.cfg, "DEVICE: applied increment %g to %d participants", delta, h.roster.Len())

			h.broadcastRoster()

		case <-done:
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
				_ = c.conn.Close()
			}
			return
		}
	}
}

// broadcastRoster sends the current snapshot to every connected client.
// Delivery is fire-and-forget: a client whose send buffer is full is
// dropped and left for its read pump to unregister.
func (h *Hub) broadcastRoster() {
	snapshot := h.roster.Snapshot()

	users := make([]rosterEntry, 0, len(snapshot))
	for _, p := range snapshot {
		users = append(users, rosterEntry{
			Name:     p.Name,
			Capacity: p.Capacity,
			Consumed: p.Consumed,
			Status:   p.Status,
		})
	}

	msg := rosterMessage{
		Type:  "roster",
		Users: users,
	}

	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			delete(h.clients, client)
			close(client.send)
		}
	}
}

// broadcastChat relays a chat line to every client, the sender
// included.
func (h *Hub) broadcastChat(sender, body string) {
	msg := chatMessage{
		Type:   "chat",
		Sender: sender,
		Body:   body,
	}

	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			delete(h.clients, client)
			close(client.send)
		}
	}
}

// rejectUnauthenticated points one client back at the login page and
// closes its send channel. No roster entry is created or removed.
func (h *Hub) rejectUnauthenticated(c *Client) {
	c.send <- redirectMessage{
		Type: "redirect",
		URL:  h.cfg.prefix + "/",
	}
	close(c.send)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// serveWS admits the connection into the room if its session cookie
// maps to a login claim, and rejects it with a redirect otherwise.
func serveWS(cfg *Config, hub *Hub, store *ClaimStore) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		claim, authenticated := store.claimFor(r)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn:   conn,
			send:   make(chan any, 8),
			connID: uuid.NewString(),
		}

		go client.writePump()

		if !authenticated {
			logf(cfg, "ROOM: rejected unauthenticated connection from %s", realIP(r))
			hub.rejectUnauthenticated(client)
			return
		}

		client.name = claim.Name
		client.capacity = claim.Capacity
		client.consumed = claim.Consumed

		hub.register <- client
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		h.unreg <- c
		_ = c.conn.Close()
	}()

	for {
		var msg clientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "chat":
			if msg.Body == "" {
				continue
			}
			h.chats <- chatRequest{
				client: c,
				body:   msg.Body,
			}
		default:
			// ignore unknown types
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// QR handler: generates a PNG QR code for the room URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /room/qr; strip trailing "/qr" to get the room URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}
