package chat

import (
	"sync"

	"github.com/gorilla/websocket"
)

// client is one websocket connection in a room.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans messages out to every connection in an appointment's room.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*client]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*client]struct{})}
}

func (h *Hub) join(appointmentID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[appointmentID]
	if !ok {
		room = make(map[*client]struct{})
		h.rooms[appointmentID] = room
	}
	room[c] = struct{}{}
}

func (h *Hub) leave(appointmentID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[appointmentID]
	if !ok {
		return
	}
	if _, present := room[c]; present {
		delete(room, c)
		close(c.send)
	}
	if len(room) == 0 {
		delete(h.rooms, appointmentID)
	}
}

// broadcast queues raw bytes to every client in the room. Clients whose send
// buffer is full are dropped from the room.
func (h *Hub) broadcast(appointmentID string, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[appointmentID]
	for c := range room {
		select {
		case c.send <- payload:
		default:
			delete(room, c)
			close(c.send)
		}
	}
	if len(room) == 0 {
		delete(h.rooms, appointmentID)
	}
}

// roomSize reports how many connections a room holds.
func (h *Hub) roomSize(appointmentID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[appointmentID])
}
