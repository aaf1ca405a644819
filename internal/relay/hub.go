package relay

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/fairtrace/trace-core/internal/domain"
	"github.com/fairtrace/trace-core/internal/logger"
)

// Hub implements the relay semantics on top of the room registry: at-most-once
// per publish, best-effort fan-out to all current subscribers of a room.
// It is transport-independent; websocket sessions are just one Subscriber
// implementation.
type Hub struct {
	rooms *Rooms
}

// NewHub creates a hub with an empty room registry
func NewHub() *Hub {
	return &Hub{rooms: NewRooms()}
}

// Subscribe adds sub to the named room. Idempotent.
func (h *Hub) Subscribe(sub Subscriber, room string) {
	h.rooms.Add(room, sub)
	logger.Debug("subscribed",
		zap.String("conn", sub.ID()),
		zap.String("room", room))
}

// Unsubscribe removes sub from the named room. Unsubscribing from a room
// never joined is a no-op.
func (h *Hub) Unsubscribe(sub Subscriber, room string) {
	h.rooms.Remove(room, sub.ID())
	logger.Debug("unsubscribed",
		zap.String("conn", sub.ID()),
		zap.String("room", room))
}

// Disconnect removes sub from every room it had joined
func (h *Hub) Disconnect(sub Subscriber) {
	h.rooms.RemoveAll(sub.ID())
	logger.Debug("disconnected", zap.String("conn", sub.ID()))
}

// Publish validates a location update and fans it out to every current
// subscriber of the product's room, the publisher included if subscribed.
// Updates without a product identifier are dropped without error: broadcast
// is fire-and-forget and per-subscriber delivery failures are never surfaced
// to the publisher. Returns the number of successful deliveries.
func (h *Hub) Publish(data json.RawMessage) int {
	var update domain.LocationUpdate
	if err := json.Unmarshal(data, &update); err != nil || !update.Valid() {
		logger.Debug("dropping location update without product id")
		return 0
	}

	room := update.Room()
	frame, err := json.Marshal(Envelope{Event: EventLocationUpdate, Data: data})
	if err != nil {
		logger.Error(fmt.Errorf("failed to encode fan-out frame: %w", err))
		return 0
	}

	delivered := 0
	for _, sub := range h.rooms.Members(room) {
		if err := sub.Send(frame); err != nil {
			// Isolation: one slow or dead subscriber must not affect the rest.
			logger.Warn("fan-out delivery failed",
				zap.String("conn", sub.ID()),
				zap.String("room", room),
				zap.Error(err))
			continue
		}
		delivered++
	}

	logger.Debug("published location update",
		zap.String("room", room),
		zap.Int("delivered", delivered))
	return delivered
}

// Rooms exposes the registry for stats endpoints
func (h *Hub) Rooms() *Rooms {
	return h.rooms
}
