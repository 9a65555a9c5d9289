package websocket

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Event is pushed to connected users when something they own changes.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

const (
	EventWalletUpdated  = "wallet.updated"
	EventLessonUpdated  = "lesson.updated"
	EventPayoutUpdated  = "payout.updated"
	EventTeacherUpdated = "teacher.updated"
)

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

type Client struct {
	UserID uuid.UUID
	Conn   Conn
}

type message struct {
	userID uuid.UUID
	event  Event
}

// Hub keeps one connection per user and fans events out to them. All map
// access happens on the Run goroutine.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client
	broadcast  chan message
	done       chan struct{}
	log        *slog.Logger

	clients map[uuid.UUID]Conn
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		broadcast:  make(chan message, 256),
		done:       make(chan struct{}),
		log:        log,
		clients:    make(map[uuid.UUID]Conn),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for id, conn := range h.clients {
				conn.Close()
				delete(h.clients, id)
			}
			return

		case client := <-h.Register:
			h.log.Info("Client registered", slog.String("user_id", client.UserID.String()))
			if old, ok := h.clients[client.UserID]; ok && old != client.Conn {
				old.Close()
			}
			h.clients[client.UserID] = client.Conn

		case client := <-h.Unregister:
			h.log.Info("Client unregistered", slog.String("user_id", client.UserID.String()))
			if conn, ok := h.clients[client.UserID]; ok && conn == client.Conn {
				delete(h.clients, client.UserID)
			}

		case msg := <-h.broadcast:
			conn, ok := h.clients[msg.userID]
			if !ok {
				continue
			}
			if err := conn.WriteJSON(msg.event); err != nil {
				h.log.Warn("Error sending event to client",
					slog.String("user_id", msg.userID.String()), slog.Any("error", err))
				conn.Close()
				delete(h.clients, msg.userID)
			}
		}
	}
}

// Publish queues event for userID. It never blocks: events for a full queue
// or a stopped hub are dropped.
func (h *Hub) Publish(userID uuid.UUID, eventType string, data interface{}) {
	select {
	case <-h.done:
	case h.broadcast <- message{userID: userID, event: Event{Type: eventType, Data: data}}:
	default:
		h.log.Warn("event queue full, dropping event", slog.String("type", eventType))
	}
}

// Join registers client. It returns false if the hub has stopped.
func (h *Hub) Join(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Leave(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}
