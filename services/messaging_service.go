package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anjiri1684/social_messaging/apperrors"
	"github.com/anjiri1684/social_messaging/metrics"
	"github.com/anjiri1684/social_messaging/models"
	"github.com/anjiri1684/social_messaging/uploads"
	"github.com/anjiri1684/social_messaging/websocket"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Attachment is a file sent along with a message.
type Attachment struct {
	Filename string
	Data     []byte
}

type SendInput struct {
	SenderID         uuid.UUID
	IsGroup          bool
	GroupName        string
	ReceiverUsername string
	Body             string
	Attachment       *Attachment
}

// ListInput selects a conversation. GroupName wins over ReceiverUsername; with neither
// set every message visible to the caller is returned.
type ListInput struct {
	CallerID         uuid.UUID
	GroupName        string
	ReceiverUsername string
}

type MessageView struct {
	models.Message
	SenderUsername   string  `json:"sender_username"`
	ReceiverUsername *string `json:"receiver_username"`
}

type DeleteResult struct {
	MessageID  uuid.UUID `json:"message_id"`
	SenderOnly bool      `json:"sender_only"`
	Message    string    `json:"message"`
}

type messageReadPayload struct {
	MessageID uuid.UUID `json:"message_id"`
	Sender    string    `json:"sender"`
}

type messageDeletedPayload struct {
	MessageID uuid.UUID `json:"message_id"`
	Sender    string    `json:"sender"`
}

type notificationPayload struct {
	NotificationID uuid.UUID `json:"notification_id"`
	User           string    `json:"user"`
	Message        string    `json:"message"`
}

type MessagingDeps struct {
	DB         *gorm.DB
	Identities IdentityDirectory
	Friends    FriendshipGraph
	Groups     GroupDirectory
	Uploader   uploads.Uploader
	Outbox     *Outbox
	Log        *logrus.Entry
}

// MessagingService owns the message lifecycle. It keeps no state between calls.
type MessagingService struct {
	db         *gorm.DB
	identities IdentityDirectory
	friends    FriendshipGraph
	groups     GroupDirectory
	uploader   uploads.Uploader
	outbox     *Outbox
	log        *logrus.Entry
	now        func() time.Time
}

func NewMessagingService(deps MessagingDeps) *MessagingService {
	return &MessagingService{
		db:         deps.DB,
		identities: deps.Identities,
		friends:    deps.Friends,
		groups:     deps.Groups,
		uploader:   deps.Uploader,
		outbox:     deps.Outbox,
		log:        deps.Log,
		now:        time.Now,
	}
}

// Send validates addressing, uploads the attachment, and persists the message together
// with its notification and outbox events in one transaction.
func (s *MessagingService) Send(ctx context.Context, in SendInput) (*models.Message, error) {
	groupName := strings.TrimSpace(in.GroupName)
	receiverUsername := strings.TrimSpace(in.ReceiverUsername)
	hasFile := in.Attachment != nil && len(in.Attachment.Data) > 0

	if in.IsGroup && groupName == "" {
		return nil, apperrors.InvalidRequest("Group name is required for group messages")
	}
	if !in.IsGroup && receiverUsername == "" {
		return nil, apperrors.InvalidRequest("Receiver username is required")
	}
	if in.Body == "" && !hasFile {
		return nil, apperrors.InvalidRequest("Message content or file is required")
	}

	sender, err := s.identities.UserByID(ctx, in.SenderID)
	if err != nil {
		return nil, err
	}

	msg := models.Message{
		SenderID:       sender.ID,
		Body:           in.Body,
		IsGroupMessage: in.IsGroup,
		Status:         models.StatusSent,
	}

	var (
		audience []uuid.UUID
		receiver *models.User
	)
	if in.IsGroup {
		group, err := s.groups.MemberGroupByName(ctx, groupName, sender.ID)
		if err != nil {
			s.log.WithField("group", groupName).WithField("sender", sender.Username).
				Info("Group not found or sender is not a member")
			return nil, err
		}
		msg.GroupID = &group.ID
		if audience, err = s.groups.MemberIDs(ctx, group.ID); err != nil {
			return nil, err
		}
		audience = lo.Uniq(append(audience, sender.ID))
	} else {
		if receiver, err = s.identities.UserByUsername(ctx, receiverUsername); err != nil {
			return nil, err
		}
		msg.ReceiverID = &receiver.ID
		friends, err := s.friends.AreFriends(ctx, sender.ID, receiver.ID)
		if err != nil {
			return nil, err
		}
		if friends {
			msg.Status = models.StatusDelivered
		}
		audience = []uuid.UUID{sender.ID, receiver.ID}
	}

	if hasFile {
		url, err := s.uploader.Upload(ctx, in.Attachment.Data, in.Attachment.Filename, uploads.MessageFilesFolder)
		if err != nil {
			s.log.WithError(err).WithField("file", in.Attachment.Filename).Error("Error uploading file")
			return nil, apperrors.UploadFailed(err)
		}
		msg.AttachmentURL = url
	}

	if err := msg.Validate(); err != nil {
		return nil, apperrors.InvalidRequest(err.Error())
	}
	now := s.now()
	msg.CreatedAt, msg.UpdatedAt = now, now

	var events []models.OutboxEvent
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		ev, err := models.NewOutboxEvent(websocket.EventMessage, msg.ID, msg, audience)
		if err != nil {
			return err
		}
		events = append(events, ev)

		if receiver != nil {
			notification := models.Notification{
				UserID:    receiver.ID,
				Type:      models.NotificationMessageReceived,
				RelatedID: msg.ID,
				Message:   fmt.Sprintf("New message from %s", sender.Username),
				CreatedAt: now,
			}
			if err := tx.Create(&notification).Error; err != nil {
				return err
			}
			ev, err := models.NewOutboxEvent(websocket.EventNotification, notification.ID, notificationPayload{
				NotificationID: notification.ID,
				User:           receiver.Username,
				Message:        notification.Message,
			}, []uuid.UUID{receiver.ID})
			if err != nil {
				return err
			}
			events = append(events, ev)
		}
		return s.outbox.Enqueue(tx, events...)
	})
	if err != nil {
		s.log.WithError(err).WithField("sender", sender.Username).Error("Error sending message")
		return nil, apperrors.Server(err)
	}

	kind := "direct"
	if msg.IsGroupMessage {
		kind = "group"
	} else {
		metrics.NotificationsCreated.WithLabelValues(string(models.NotificationMessageReceived)).Inc()
	}
	metrics.MessagesSent.WithLabelValues(kind, string(msg.Status)).Inc()

	s.outbox.Flush(ctx, events)
	return &msg, nil
}

// List returns a conversation in chronological order. Listing a direct conversation
// acknowledges it: every unread message addressed to the caller becomes read and one
// message_read event is emitted per transitioned message.
func (s *MessagingService) List(ctx context.Context, in ListInput) ([]MessageView, error) {
	groupName := strings.TrimSpace(in.GroupName)
	receiverUsername := strings.TrimSpace(in.ReceiverUsername)

	query := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("NOT EXISTS (SELECT 1 FROM message_tombstones t WHERE t.message_id = messages.id AND t.user_id = ?)", in.CallerID)

	directScope := false
	switch {
	case groupName != "":
		group, err := s.groups.MemberGroupByName(ctx, groupName, in.CallerID)
		if err != nil {
			return nil, err
		}
		query = query.Where("group_id = ?", group.ID)
	case receiverUsername != "":
		other, err := s.identities.UserByUsername(ctx, receiverUsername)
		if err != nil {
			return nil, err
		}
		query = query.Where("((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))",
			in.CallerID, other.ID, other.ID, in.CallerID)
		directScope = true
	default:
		groupIDs, err := s.groups.GroupIDsForMember(ctx, in.CallerID)
		if err != nil {
			return nil, err
		}
		if len(groupIDs) > 0 {
			query = query.Where("(sender_id = ? OR receiver_id = ? OR group_id IN ?)", in.CallerID, in.CallerID, groupIDs)
		} else {
			query = query.Where("(sender_id = ? OR receiver_id = ?)", in.CallerID, in.CallerID)
		}
	}

	var messages []models.Message
	if err := query.Order("created_at asc, id asc").Find(&messages).Error; err != nil {
		return nil, apperrors.Server(err)
	}

	userIDs := make([]uuid.UUID, 0, len(messages)*2)
	for _, m := range messages {
		userIDs = append(userIDs, m.SenderID)
		if m.ReceiverID != nil {
			userIDs = append(userIDs, *m.ReceiverID)
		}
	}
	usernames, err := s.identities.UsernamesByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	if directScope {
		if err := s.acknowledge(ctx, in.CallerID, messages, usernames); err != nil {
			return nil, err
		}
	}

	views := make([]MessageView, 0, len(messages))
	for _, m := range messages {
		view := MessageView{Message: m, SenderUsername: usernames[m.SenderID]}
		if m.ReceiverID != nil {
			view.ReceiverUsername = lo.ToPtr(usernames[*m.ReceiverID])
		}
		views = append(views, view)
	}
	return views, nil
}

// acknowledge marks the caller's unread received messages as read in place.
func (s *MessagingService) acknowledge(ctx context.Context, callerID uuid.UUID, messages []models.Message, usernames map[uuid.UUID]string) error {
	unread := lo.Filter(messages, func(m models.Message, _ int) bool {
		return m.IsReceiver(callerID) && m.Status != models.StatusRead
	})
	if len(unread) == 0 {
		return nil
	}

	ids := lo.Map(unread, func(m models.Message, _ int) uuid.UUID { return m.ID })
	now := s.now()

	var events []models.OutboxEvent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Message{}).Where("id IN ?", ids).
			Updates(map[string]interface{}{"status": models.StatusRead, "updated_at": now}).Error
		if err != nil {
			return err
		}
		for _, m := range unread {
			ev, err := models.NewOutboxEvent(websocket.EventMessageRead, m.ID, messageReadPayload{
				MessageID: m.ID,
				Sender:    usernames[m.SenderID],
			}, []uuid.UUID{m.SenderID, callerID})
			if err != nil {
				return err
			}
			events = append(events, ev)
		}
		return s.outbox.Enqueue(tx, events...)
	})
	if err != nil {
		s.log.WithError(err).WithField("caller", callerID).Error("Error marking messages as read")
		return apperrors.Server(err)
	}
	metrics.MessagesRead.Add(float64(len(unread)))

	for i := range messages {
		if messages[i].IsReceiver(callerID) && messages[i].Status != models.StatusRead {
			messages[i].Status = models.StatusRead
			messages[i].UpdatedAt = now
		}
	}

	s.outbox.Flush(ctx, events)
	return nil
}

// UpdateStatus lets the receiver move a direct message forward to delivered or read.
func (s *MessagingService) UpdateStatus(ctx context.Context, callerID, messageID uuid.UUID, status models.MessageStatus) (*models.Message, error) {
	if status != models.StatusDelivered && status != models.StatusRead {
		return nil, apperrors.InvalidRequest("Invalid request")
	}

	msg, err := s.load(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if !msg.IsReceiver(callerID) {
		return nil, apperrors.Forbidden("Permission denied")
	}

	friends, err := s.friends.AreFriends(ctx, msg.SenderID, callerID)
	if err != nil {
		return nil, err
	}
	if !friends {
		return nil, apperrors.Forbidden("Cannot update message status for non-friends")
	}

	if msg.Status == status {
		return msg, nil
	}
	if status.Rank() < msg.Status.Rank() {
		return nil, apperrors.InvalidRequest(fmt.Sprintf("Message status cannot move from %s to %s", msg.Status, status))
	}

	var events []models.OutboxEvent
	if status == models.StatusRead {
		names, err := s.identities.UsernamesByIDs(ctx, []uuid.UUID{msg.SenderID})
		if err != nil {
			return nil, err
		}
		ev, err := models.NewOutboxEvent(websocket.EventMessageRead, msg.ID, messageReadPayload{
			MessageID: msg.ID,
			Sender:    names[msg.SenderID],
		}, []uuid.UUID{msg.SenderID, callerID})
		if err != nil {
			return nil, apperrors.Server(err)
		}
		events = append(events, ev)
	}

	msg.Status = status
	msg.UpdatedAt = s.now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Message{}).Where("id = ?", msg.ID).
			Updates(map[string]interface{}{"status": msg.Status, "updated_at": msg.UpdatedAt}).Error
		if err != nil {
			return err
		}
		return s.outbox.Enqueue(tx, events...)
	})
	if err != nil {
		s.log.WithError(err).WithField("message_id", msg.ID).Error("Error updating message status")
		return nil, apperrors.Server(err)
	}
	if status == models.StatusRead {
		metrics.MessagesRead.Inc()
	}

	s.outbox.Flush(ctx, events)
	return msg, nil
}

// Delete removes a message on behalf of its sender. A message the receiver has read is
// only hidden from the sender; anything else is removed for every participant.
func (s *MessagingService) Delete(ctx context.Context, callerID, messageID uuid.UUID) (*DeleteResult, error) {
	msg, err := s.load(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != callerID {
		return nil, apperrors.Forbidden("Permission denied")
	}

	var hidden int64
	if err := s.db.WithContext(ctx).Model(&models.MessageTombstone{}).
		Where("message_id = ? AND user_id = ?", msg.ID, callerID).Count(&hidden).Error; err != nil {
		return nil, apperrors.Server(err)
	}
	if hidden > 0 {
		return nil, apperrors.NotFound("Message not found")
	}

	sender, err := s.identities.UserByID(ctx, callerID)
	if err != nil {
		return nil, err
	}

	audience := []uuid.UUID{msg.SenderID}
	if msg.ReceiverID != nil {
		audience = append(audience, *msg.ReceiverID)
	} else if msg.GroupID != nil {
		members, err := s.groups.MemberIDs(ctx, *msg.GroupID)
		if err != nil {
			return nil, err
		}
		audience = lo.Uniq(append(members, msg.SenderID))
	}

	ev, err := models.NewOutboxEvent(websocket.EventMessageDeleted, msg.ID, messageDeletedPayload{
		MessageID: msg.ID,
		Sender:    sender.Username,
	}, audience)
	if err != nil {
		return nil, apperrors.Server(err)
	}
	events := []models.OutboxEvent{ev}

	result := &DeleteResult{MessageID: msg.ID}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if msg.Status == models.StatusRead {
			result.SenderOnly = true
			result.Message = "Message deleted for sender"
			tomb := models.MessageTombstone{MessageID: msg.ID, UserID: callerID, CreatedAt: s.now()}
			if err := tx.Create(&tomb).Error; err != nil {
				return err
			}
		} else {
			result.Message = "Message deleted for both sender and receiver"
			if msg.IsGroupMessage {
				result.Message = "Message deleted for all group members"
			}
			if err := tx.Where("message_id = ?", msg.ID).Delete(&models.MessageTombstone{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&models.Message{}, "id = ?", msg.ID).Error; err != nil {
				return err
			}
		}
		return s.outbox.Enqueue(tx, events...)
	})
	if err != nil {
		s.log.WithError(err).WithField("message_id", msg.ID).Error("Error deleting message")
		return nil, apperrors.Server(err)
	}

	s.outbox.Flush(ctx, events)
	return result, nil
}

func (s *MessagingService) load(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	var msg models.Message
	if err := s.db.WithContext(ctx).First(&msg, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Message not found")
		}
		return nil, apperrors.Server(err)
	}
	return &msg, nil
}
