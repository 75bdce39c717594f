package routes

import (
	"github.com/anjiri1684/social_messaging/handlers"
	"github.com/anjiri1684/social_messaging/middleware"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

func MessagingRoutes(app *fiber.App, secret string, messages *handlers.MessageHandler, notifications *handlers.NotificationHandler) {
	api := app.Group("/api/v1")

	msgs := api.Group("/messages", middleware.Protected(secret))
	msgs.Post("", messages.SendMessage)
	msgs.Get("", messages.GetMessages)
	msgs.Put("/status", messages.UpdateMessageStatus)
	msgs.Delete("/:messageId", messages.DeleteMessage)

	notes := api.Group("/notifications", middleware.Protected(secret))
	notes.Get("", notifications.GetNotifications)
	notes.Get("/unread-count", notifications.GetUnreadCount)
	notes.Patch("/:id/read", notifications.MarkNotificationRead)
}

// RealtimeRoutes is not behind Protected; the token arrives in the first frame.
func RealtimeRoutes(app *fiber.App, realtime *handlers.RealtimeHandler) {
	app.Use("/api/v1/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	})
	app.Get("/api/v1/ws", websocket.New(realtime.ServeWs))
}
