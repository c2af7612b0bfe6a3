package handler

import "github.com/freeeve/machiavelli/internal/service"

var _ service.Broadcaster = (*Hub)(nil)

// BroadcastGameEvent pushes an event to everyone following the game.
func (h *Hub) BroadcastGameEvent(gameID string, eventType string, data any) {
	h.BroadcastToGame(gameID, WSEvent{Type: eventType, GameID: gameID, Data: data})
}

// BroadcastUserEvent pushes an event meant for a single player only, such
// as the list of orders voided when they confirmed.
func (h *Hub) BroadcastUserEvent(userID, gameID string, eventType string, data any) {
	h.BroadcastToUser(userID, WSEvent{Type: eventType, GameID: gameID, Data: data})
}
