package hub

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Event names published over the real-time channel.
const (
	EventNewFollow       = "new-follow"
	EventFollowSuccess   = "follow-success"
	EventFollowUpdate    = "follow-update"
	EventNewNotification = "new-notification"
	EventNewPost         = "new-post"
	EventNewStory        = "new-story"
)

// Event represents a real-time event to be sent to clients.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Client represents a single client connection. It's essentially a channel
// that the SSE handler will listen to.
type Client chan []byte

// NewClient returns a client channel with enough buffer to absorb a burst
// without blocking the publisher.
func NewClient() Client {
	return make(Client, 16)
}

// Hub owns the registry of live connections, one room per user. Rooms are
// created on first subscribe and pruned when the last client leaves; no state
// about a user survives their disconnection.
type Hub struct {
	rooms map[uint]map[Client]bool
	mu    sync.RWMutex
	log   *zap.Logger
}

// NewHub creates a new Hub.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		rooms: make(map[uint]map[Client]bool),
		log:   log,
	}
}

// Subscribe adds a client to the room of the given user.
func (h *Hub) Subscribe(userID uint, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[userID]; !ok {
		h.rooms[userID] = make(map[Client]bool)
	}
	h.rooms[userID][client] = true
	h.log.Debug("client subscribed", zap.Uint("user_id", userID), zap.Int("room_size", len(h.rooms[userID])))
}

// Unsubscribe removes a client from a user's room and closes its channel,
// signalling the SSE handler to stop.
func (h *Hub) Unsubscribe(userID uint, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.rooms[userID]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			close(client)
			if len(clients) == 0 {
				delete(h.rooms, userID)
			}
		}
	}
}

// Publish sends an event to every client in one user's room. Delivery is
// best-effort: a slow or gone client is skipped, never waited on.
func (h *Hub) Publish(userID uint, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.rooms[userID]
	if !ok {
		return
	}

	message, err := json.Marshal(event)
	if err != nil {
		h.log.Warn("dropping event, marshal failed", zap.String("event", event.Type), zap.Error(err))
		return
	}

	for client := range clients {
		select {
		case client <- message:
		default:
			h.log.Warn("dropping event, client buffer full",
				zap.String("event", event.Type), zap.Uint("user_id", userID))
		}
	}
}

// Broadcast sends an event to every connected client in every room.
func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	message, err := json.Marshal(event)
	if err != nil {
		h.log.Warn("dropping broadcast, marshal failed", zap.String("event", event.Type), zap.Error(err))
		return
	}

	for userID, clients := range h.rooms {
		for client := range clients {
			select {
			case client <- message:
			default:
				h.log.Warn("dropping broadcast, client buffer full",
					zap.String("event", event.Type), zap.Uint("user_id", userID))
			}
		}
	}
}

// ClientCount returns the number of live connections for a user.
func (h *Hub) ClientCount(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[userID])
}
