package notify

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"cafe-ordering-api/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The ordering pages are served to any origin, same as the JSON API.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Session is one connected browser tab.
type Session struct {
	ID    string
	Admin bool

	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	rooms map[string]struct{} // guarded by hub.mu
}

func newSession(hub *Hub, conn *websocket.Conn, admin bool) *Session {
	return &Session{
		ID:    uuid.NewString(),
		Admin: admin,
		hub:   hub,
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
		rooms: make(map[string]struct{}),
	}
}

type joinCustomerData struct {
	OrderID models.LooseString `json:"orderId"`
}

// ServeWS upgrades the request and runs the session until the connection
// closes. admin marks sessions that presented a valid admin token; only they
// may join the admin room.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, admin bool) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	s := newSession(h, conn, admin)
	h.register(s)
	h.log.WithField("session", s.ID).WithField("admin", admin).Debug("client connected")

	go s.writePump()
	s.readPump()

	h.log.WithField("session", s.ID).Debug("client disconnected")
	return nil
}

func (s *Session) readPump() {
	defer func() {
		s.hub.unregister(s)
		s.conn.Close()
	}()
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.hub.log.WithError(err).WithField("session", s.ID).Debug("websocket read")
			}
			return
		}
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.hub.reply(s, EventError, map[string]string{"error": "malformed message"})
			continue
		}
		s.handle(msg)
	}
}

func (s *Session) handle(msg Message) {
	switch msg.Event {
	case EventJoinAdmin:
		if !s.Admin {
			s.hub.reply(s, EventError, map[string]string{"error": "Authorization required to join admin room"})
			return
		}
		s.hub.Join(s, RoomAdmin)
	case EventJoinCustomer:
		var data joinCustomerData
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				return
			}
		}
		id := strings.TrimSpace(string(data.OrderID))
		if id == "" {
			return
		}
		s.hub.Join(s, OrderRoomFor(id))
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
