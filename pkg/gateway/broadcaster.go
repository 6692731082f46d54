package gateway

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// EventBroadcaster fans server-initiated events out to all authenticated
// clients. Delivery is best-effort per client.
type EventBroadcaster struct {
	clients *ClientRegistry
	logger  zerolog.Logger
	seq     uint64
}

// NewEventBroadcaster creates a new event broadcaster.
func NewEventBroadcaster(clients *ClientRegistry, logger zerolog.Logger) *EventBroadcaster {
	return &EventBroadcaster{
		clients: clients,
		logger:  logger,
	}
}

// Broadcast sends an event to all authenticated clients.
func (b *EventBroadcaster) Broadcast(event string, data interface{}) {
	msg := EventMessage{
		Type:      "event",
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
		Seq:       int64(atomic.AddUint64(&b.seq, 1)),
	}

	clients := b.clients.GetAuthenticatedClients()
	if len(clients) == 0 {
		return
	}

	for _, client := range clients {
		if err := client.WriteJSON(msg); err != nil {
			b.logger.Warn().
				Err(err).
				Str("client_id", client.ID).
				Str("event", event).
				Msg("Failed to broadcast to client")
		}
	}

	b.logger.Debug().
		Str("event", event).
		Int("clients", len(clients)).
		Msg("Event broadcast")
}
