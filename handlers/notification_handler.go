package handlers

import (
	"github.com/anjiri1684/social_messaging/apperrors"
	"github.com/anjiri1684/social_messaging/middleware"
	"github.com/anjiri1684/social_messaging/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type NotificationHandler struct {
	notifications *services.NotificationService
}

func NewNotificationHandler(notifications *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

func (h *NotificationHandler) GetNotifications(c *fiber.Ctx) error {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		return err
	}
	list, err := h.notifications.List(c.UserContext(), userID, c.QueryBool("unread"))
	if err != nil {
		return err
	}
	return c.JSON(list)
}

func (h *NotificationHandler) GetUnreadCount(c *fiber.Ctx) error {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		return err
	}
	count, err := h.notifications.UnreadCount(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"count": count})
}

func (h *NotificationHandler) MarkNotificationRead(c *fiber.Ctx) error {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return apperrors.InvalidRequest("Invalid notification id")
	}
	n, err := h.notifications.MarkRead(c.UserContext(), userID, id)
	if err != nil {
		return err
	}
	return c.JSON(n)
}
