package handlers

import (
	"log/slog"

	"github.com/anjiri1684/tutor_ledger/websocket"
	websocketcontrib "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type wsAuthMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// ServeWs authenticates the socket with a first {"type":"auth"} message and
// then keeps it registered with the hub until the client goes away. The hub
// is the only writer after registration.
func (h *Handler) ServeWs(c *websocketcontrib.Conn) {
	var authMsg wsAuthMessage
	if err := c.ReadJSON(&authMsg); err != nil || authMsg.Type != "auth" {
		h.Log.Warn("WebSocket auth failed: invalid or missing auth message", slog.Any("error", err))
		_ = c.WriteJSON(fiber.Map{"error": "Invalid or missing auth message"})
		c.Close()
		return
	}

	userID, err := h.Accounts.ParseToken(authMsg.Token)
	if err != nil {
		h.Log.Warn("WebSocket auth failed: invalid token", slog.Any("error", err))
		_ = c.WriteJSON(fiber.Map{"error": "Invalid token"})
		c.Close()
		return
	}

	client := &websocket.Client{UserID: userID, Conn: c}
	if h.Hub == nil || !h.Hub.Join(client) {
		c.Close()
		return
	}
	defer h.Hub.Leave(client)

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			if !websocketcontrib.IsCloseError(err, websocketcontrib.CloseGoingAway, websocketcontrib.CloseNormalClosure) {
				h.Log.Warn("WebSocket read error", slog.String("user_id", userID.String()), slog.Any("error", err))
			}
			return
		}
	}
}
