package handlers

import (
	"io"

	"github.com/anjiri1684/social_messaging/apperrors"
	"github.com/anjiri1684/social_messaging/middleware"
	"github.com/anjiri1684/social_messaging/models"
	"github.com/anjiri1684/social_messaging/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type sendMessageRequest struct {
	IsGroupMessage   bool   `json:"is_group_message" form:"is_group_message"`
	GroupName        string `json:"group_name" form:"group_name" validate:"max=100"`
	ReceiverUsername string `json:"receiver_username" form:"receiver_username" validate:"max=100"`
	Message          string `json:"message" form:"message" validate:"max=4000"`
}

type updateStatusRequest struct {
	MessageID string `json:"message_id" validate:"required,uuid"`
	Status    string `json:"status" validate:"required"`
}

type MessageHandler struct {
	messages *services.MessagingService
}

func NewMessageHandler(messages *services.MessagingService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// SendMessage accepts JSON or multipart bodies. A multipart "file" field becomes the
// attachment.
func (h *MessageHandler) SendMessage(c *fiber.Ctx) error {
	senderID, err := middleware.CurrentUserID(c)
	if err != nil {
		return err
	}

	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.InvalidRequest("Cannot parse request body")
	}
	if err := validate.Struct(req); err != nil {
		return validationError(err)
	}

	in := services.SendInput{
		SenderID:         senderID,
		IsGroup:          req.IsGroupMessage,
		GroupName:        req.GroupName,
		ReceiverUsername: req.ReceiverUsername,
		Body:             req.Message,
	}

	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return apperrors.InvalidRequest("Cannot read uploaded file")
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return apperrors.InvalidRequest("Cannot read uploaded file")
		}
		in.Attachment = &services.Attachment{Filename: fh.Filename, Data: data}
	}

	msg, err := h.messages.Send(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

func (h *MessageHandler) GetMessages(c *fiber.Ctx) error {
	callerID, err := middleware.CurrentUserID(c)
	if err != nil {
		return err
	}

	views, err := h.messages.List(c.UserContext(), services.ListInput{
		CallerID:         callerID,
		GroupName:        c.Query("group_name"),
		ReceiverUsername: c.Query("receiver_username"),
	})
	if err != nil {
		return err
	}
	return c.JSON(views)
}

func (h *MessageHandler) UpdateMessageStatus(c *fiber.Ctx) error {
	callerID, err := middleware.CurrentUserID(c)
	if err != nil {
		return err
	}

	var req updateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.InvalidRequest("Cannot parse JSON")
	}
	if err := validate.Struct(req); err != nil {
		return validationError(err)
	}
	messageID, _ := uuid.Parse(req.MessageID)

	msg, err := h.messages.UpdateStatus(c.UserContext(), callerID, messageID, models.MessageStatus(req.Status))
	if err != nil {
		return err
	}
	return c.JSON(msg)
}

func (h *MessageHandler) DeleteMessage(c *fiber.Ctx) error {
	callerID, err := middleware.CurrentUserID(c)
	if err != nil {
		return err
	}
	messageID, err := uuid.Parse(c.Params("messageId"))
	if err != nil {
		return apperrors.InvalidRequest("Invalid message id")
	}

	res, err := h.messages.Delete(c.UserContext(), callerID, messageID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": res.Message, "sender_only": res.SenderOnly})
}
