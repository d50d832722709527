// Package notify fans order events out to connected websocket sessions.
//
// Sessions join named rooms: every admin dashboard joins the admin room, and a
// customer joins the room of the order they placed. Delivery is best-effort
// and at-most-once; nothing is buffered for sessions that connect later.
package notify

import (
	"encoding/json"
	"strconv"
	"sync"

	"cafe-ordering-api/metrics"

	"github.com/sirupsen/logrus"
)

const (
	RoomAdmin = "admin-room"

	EventNewOrder     = "new-order"
	EventOrderUpdated = "order-updated"
	EventJoinAdmin    = "join-admin"
	EventJoinCustomer = "join-customer"
	EventError        = "error"
)

// OrderRoom names the room that tracks a single order.
func OrderRoom(orderID uint) string {
	return OrderRoomFor(strconv.FormatUint(uint64(orderID), 10))
}

func OrderRoomFor(orderID string) string {
	return "order-" + orderID
}

// Message is the frame exchanged in both directions.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Publisher hands an event to every session in any of the given rooms.
// Implementations must not block the caller on subscribers.
type Publisher interface {
	Publish(rooms []string, event string, data any)
}

// Hub is the registry of live sessions and the rooms they joined. Room
// membership ends when the session's connection is torn down.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*Session]struct{}
	sessions map[*Session]struct{}
	log      logrus.FieldLogger
}

func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{
		rooms:    make(map[string]map[*Session]struct{}),
		sessions: make(map[*Session]struct{}),
		log:      log,
	}
}

func (h *Hub) register(s *Session) {
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	h.mu.Unlock()
	metrics.SessionOpened()
}

// unregister removes s from every room and closes its send queue. Safe to
// call more than once.
func (h *Hub) unregister(s *Session) {
	h.mu.Lock()
	if _, ok := h.sessions[s]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, s)
	for room := range s.rooms {
		h.removeFromRoom(s, room)
	}
	close(s.send)
	h.mu.Unlock()
	metrics.SessionClosed()
}

// Join adds s to room. Unknown (already closed) sessions are ignored.
func (h *Hub) Join(s *Session, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[s]; !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Session]struct{})
		h.rooms[room] = members
	}
	members[s] = struct{}{}
	s.rooms[room] = struct{}{}
}

// Leave removes s from room.
func (h *Hub) Leave(s *Session, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromRoom(s, room)
}

func (h *Hub) removeFromRoom(s *Session, room string) {
	delete(s.rooms, room)
	members := h.rooms[room]
	delete(members, s)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// RoomSize reports how many sessions are in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// SessionCount reports how many sessions are connected.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Publish encodes data and delivers it to the given rooms.
func (h *Hub) Publish(rooms []string, event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		h.log.WithError(err).WithField("event", event).Error("encode event payload")
		return
	}
	h.Deliver(rooms, event, raw)
}

// Deliver sends a pre-encoded payload to every session in any of rooms. A
// session in several of the rooms receives the frame once. Sessions whose
// queue is full are disconnected rather than waited on.
func (h *Hub) Deliver(rooms []string, event string, data json.RawMessage) {
	frame, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		h.log.WithError(err).WithField("event", event).Error("encode event frame")
		return
	}

	var slow []*Session
	seen := make(map[*Session]struct{})
	h.mu.RLock()
	for _, room := range rooms {
		for s := range h.rooms[room] {
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			select {
			case s.send <- frame:
			default:
				slow = append(slow, s)
			}
		}
	}
	h.mu.RUnlock()

	metrics.RecordEvent(event)
	for _, s := range slow {
		h.log.WithField("session", s.ID).Warn("send queue full, dropping session")
		metrics.RecordDroppedSession()
		h.unregister(s)
	}
}

// reply queues a frame for a single session if it is still registered.
func (h *Hub) reply(s *Session, event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		return
	}
	frame, err := json.Marshal(Message{Event: event, Data: raw})
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.sessions[s]; !ok {
		return
	}
	select {
	case s.send <- frame:
	default:
	}
}
