package main

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Match notifications ride a small websocket hub: the coordinator announces
// a freshly created match and both parties get the event if they are
// connected. Delivery is best-effort; the match list endpoint is the source
// of truth.

// MatchEvent is pushed to each side of a new match.
type MatchEvent struct {
	Type      string    `json:"type"` // "match_created" | "info"
	MatchID   string    `json:"match_id,omitempty"`
	PeerID    int       `json:"peer_id,omitempty"`
	MatchedAt time.Time `json:"matched_at,omitempty"`
	Data      any       `json:"data,omitempty"`
}

// Client represents a WebSocket client connection
type Client struct {
	userID int
	conn   *websocket.Conn
	send   chan MatchEvent
}

// Hub manages WebSocket client connections
type Hub struct {
	clientsByUser map[int]map[*Client]bool
	mu            sync.RWMutex
}

func newHub() *Hub {
	return &Hub{
		clientsByUser: make(map[int]map[*Client]bool),
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clientsByUser[c.userID] == nil {
		h.clientsByUser[c.userID] = make(map[*Client]bool)
	}
	h.clientsByUser[c.userID][c] = true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if peers, ok := h.clientsByUser[c.userID]; ok {
		delete(peers, c)
		if len(peers) == 0 {
			delete(h.clientsByUser, c.userID)
		}
	}
}

func (h *Hub) sendToUser(userID int, evt MatchEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if peers, ok := h.clientsByUser[userID]; ok {
		for c := range peers {
			select {
			case c.send <- evt:
			default:
				// Drop event if user's buffer is full
			}
		}
	}
}

// matchCreated announces a new match to both parties, each seeing the other
// as the peer.
func (h *Hub) matchCreated(matchID string, userA, userB int, matchedAt time.Time) {
	h.sendToUser(userA, MatchEvent{Type: "match_created", MatchID: matchID, PeerID: userB, MatchedAt: matchedAt})
	h.sendToUser(userB, MatchEvent{Type: "match_created", MatchID: matchID, PeerID: userA, MatchedAt: matchedAt})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// global hub
var notifyHub = newHub()

func wsNotificationsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := getUserIDFromRequest(r)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WS upgrade error for user %d: %v", userID, err)
			return
		}

		client := &Client{
			userID: userID,
			conn:   conn,
			send:   make(chan MatchEvent, 16),
		}
		notifyHub.register(client)

		// Announce connection to this client
		client.send <- MatchEvent{Type: "info", Data: "connected"}

		go clientWriter(client)
		clientReader(client)
	}
}

// getUserIDFromRequest authenticates a websocket upgrade: Authorization
// header first, then a token query param (browsers can't set headers on
// websocket connects).
func getUserIDFromRequest(r *http.Request) (int, bool) {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && auth[:7] == "Bearer " {
		if id, ok := parseUserIDFromJWT(auth[7:]); ok {
			return id, true
		}
	}
	if q := r.URL.Query().Get("token"); q != "" {
		return parseUserIDFromJWT(q)
	}
	return 0, false
}

func clientWriter(c *Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case evt, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			// ping to keep the connection alive
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// clientReader only watches for disconnects; the notification socket is
// one-way.
func clientReader(c *Client) {
	defer func() {
		notifyHub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(1 << 16)
	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	}
}
