package routes

import (
	"time"

	"github.com/anjiri1684/social_messaging/handlers"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
)

const maxBodySize = 20 * 1024 * 1024

// NewApp builds the Fiber app with the shared middleware stack and error rendering.
// Routes are added by the caller.
func NewApp(allowOrigins string, log *logrus.Entry) *fiber.App {
	app := fiber.New(fiber.Config{
		Prefork:       false,
		AppName:       "Social Messaging",
		CaseSensitive: true,
		StrictRouting: true,
		BodyLimit:     maxBodySize,
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  15 * time.Second,
		IdleTimeout:   60 * time.Second,
		ErrorHandler:  handlers.ErrorHandler(log),
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  allowOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Authorization",
		MaxAge:        86400,
	}))
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		Output:     log.Logger.Out,
	}))

	return app
}
