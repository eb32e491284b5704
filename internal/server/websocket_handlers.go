package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"civicpulse/internal/middleware"
	"civicpulse/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type streamEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// NotificationStream upgrades GET /api/v1/notifications/ws. Each new
// notification arrives as {"type":"notification","payload":{...}}; the first
// frame carries the current unread count.
func (s *Server) NotificationStream() fiber.Handler {
	stream := websocket.New(func(conn *websocket.Conn) {
		userID, ok := conn.Locals("userID").(uint)
		if !ok || userID == 0 {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","payload":{"message":"unauthorized"}}`))
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			middleware.Logger.Warn("notification stream rejected",
				slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
			msg, _ := json.Marshal(streamEvent{Type: "error", Payload: fiber.Map{"message": err.Error()}})
			_ = conn.WriteMessage(websocket.TextMessage, msg)
			_ = conn.Close()
			return
		}
		middleware.Logger.Info("notification stream opened", slog.Uint64("user_id", uint64(userID)))

		if count, err := s.notificationService.UnreadCount(context.Background(), userID); err == nil {
			if msg, err := json.Marshal(streamEvent{Type: "unread_count", Payload: fiber.Map{"count": count}}); err == nil {
				client.TrySend(msg)
			}
		}

		client.Serve()
	})

	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return models.RespondWithError(c, fiber.StatusUpgradeRequired,
				models.NewValidationError("WebSocket upgrade required"))
		}
		return stream(c)
	}
}
