package handlers

import (
	"time"

	"github.com/anjiri1684/social_messaging/middleware"
	"github.com/anjiri1684/social_messaging/websocket"
	websocketcontrib "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const authFrameTimeout = 10 * time.Second

type authFrame struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

type RealtimeHandler struct {
	hub         *websocket.Hub
	secret      string
	log         *logrus.Entry
	authTimeout time.Duration
}

func NewRealtimeHandler(hub *websocket.Hub, secret string, log *logrus.Entry) *RealtimeHandler {
	return &RealtimeHandler{hub: hub, secret: secret, log: log, authTimeout: authFrameTimeout}
}

// ServeWs authenticates the connection with its first frame, then keeps it registered
// with the hub until the client goes away. An accepted connection first receives a
// "connected" event. Inbound frames after the handshake are ignored.
func (h *RealtimeHandler) ServeWs(c *websocketcontrib.Conn) {
	_ = c.SetReadDeadline(time.Now().Add(h.authTimeout))

	var auth authFrame
	if err := c.ReadJSON(&auth); err != nil || auth.Type != "auth" {
		h.log.WithError(err).Info("WebSocket auth failed: invalid or missing auth message")
		_ = c.WriteJSON(fiber.Map{"error": "Invalid or missing auth message"})
		c.Close()
		return
	}

	userID, err := middleware.ParseToken(h.secret, auth.Token)
	if err != nil {
		h.log.WithError(err).Info("WebSocket auth failed: invalid token")
		_ = c.WriteJSON(fiber.Map{"error": "Invalid token"})
		c.Close()
		return
	}
	_ = c.SetReadDeadline(time.Time{})

	client := &websocket.Client{UserID: userID, Conn: c}
	if !h.hub.Register(client) {
		c.Close()
		return
	}
	log := h.log.WithField("user_id", userID)
	log.Debug("WebSocket client authenticated")
	defer func() {
		h.hub.Unregister(client)
		c.Close()
		<-client.Done()
	}()

	connected := websocket.Event{
		ID:       uuid.New(),
		Type:     websocket.EventConnected,
		Data:     fiber.Map{"user_id": userID},
		Audience: []uuid.UUID{userID},
	}
	if err := h.hub.Publish(connected); err != nil {
		log.WithError(err).Warn("Could not acknowledge WebSocket client")
	}

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			if websocketcontrib.IsCloseError(err, websocketcontrib.CloseGoingAway, websocketcontrib.CloseNormalClosure) {
				log.Debug("WebSocket closed")
			} else {
				log.WithError(err).Debug("WebSocket read error")
			}
			return
		}
	}
}
