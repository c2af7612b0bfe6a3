package handler

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Event types pushed to game subscribers. Turn events reuse the
// engine's event kinds (unit_destroyed, famine, plague and so on).
const (
	EventConnected         = "connected"
	EventGameStarted       = "game_started"
	EventPlayerDone        = "player_done"
	EventPlayerSurrendered = "player_surrendered"
	EventDeadlineExtended  = "deadline_extended"
	EventPhaseResolved     = "phase_resolved"
	EventNewPhase          = "new_phase"
	EventGameEnded         = "game_ended"
	EventOrdersVoided      = "orders_voided"
	EventSubscribeDenied   = "subscribe_denied"
)

// WSEvent is the envelope for all WebSocket messages.
type WSEvent struct {
	Type   string `json:"type"`
	GameID string `json:"game_id"`
	Data   any    `json:"data"`
}

// ClientMessage is sent by the client to follow or leave a game.
type ClientMessage struct {
	Action string `json:"action"` // "subscribe" or "unsubscribe"
	GameID string `json:"game_id"`
}

// WSConn is one player's socket and its outgoing queue.
type WSConn struct {
	conn   *websocket.Conn
	userID string
	send   chan []byte
}

// Hub tracks live connections and which games each one follows.
type Hub struct {
	mu          sync.RWMutex
	connections map[*WSConn]bool
	games       map[string]map[*WSConn]bool // gameID -> subscribers
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[*WSConn]bool),
		games:       make(map[string]map[*WSConn]bool),
	}
}

func (h *Hub) Register(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[c] = true
}

// Unregister drops the connection from every game and closes its queue.
func (h *Hub) Unregister(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.connections[c] {
		return
	}
	delete(h.connections, c)
	for gameID := range h.games {
		h.leave(c, gameID)
	}
	close(c.send)
}

func (h *Hub) Subscribe(c *WSConn, gameID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.games[gameID] == nil {
		h.games[gameID] = make(map[*WSConn]bool)
	}
	h.games[gameID][c] = true
}

func (h *Hub) Unsubscribe(c *WSConn, gameID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leave(c, gameID)
}

// leave must be called with mu held.
func (h *Hub) leave(c *WSConn, gameID string) {
	conns, ok := h.games[gameID]
	if !ok {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.games, gameID)
	}
}

// BroadcastToGame queues an event for every subscriber of a game. Slow
// clients with a full queue miss the event.
func (h *Hub) BroadcastToGame(gameID string, event WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("gameId", gameID).Str("type", event.Type).Msg("Failed to marshal WebSocket event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.games[gameID] {
		h.enqueue(c, data, event)
	}
}

// BroadcastToUser queues an event on all of a user's connections.
func (h *Hub) BroadcastToUser(userID string, event WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("userId", userID).Str("type", event.Type).Msg("Failed to marshal WebSocket event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.connections {
		if c.userID == userID {
			h.enqueue(c, data, event)
		}
	}
}

func (h *Hub) enqueue(c *WSConn, data []byte, event WSEvent) {
	select {
	case c.send <- data:
	default:
		log.Warn().Str("userId", c.userID).Str("gameId", event.GameID).Str("type", event.Type).Msg("Dropping WebSocket message, buffer full")
	}
}

func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

func (h *Hub) GameSubscriberCount(gameID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.games[gameID])
}
