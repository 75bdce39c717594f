package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationLike                  NotificationType = "like"
	NotificationComment               NotificationType = "comment"
	NotificationView                  NotificationType = "view"
	NotificationFriendRequest         NotificationType = "friend_request"
	NotificationFriendRequestAccepted NotificationType = "friend_request_accepted"
	NotificationFriendRequestRejected NotificationType = "friend_request_rejected"
	NotificationGroupCreated          NotificationType = "group_created"
	NotificationGroupUpdated          NotificationType = "group_updated"
	NotificationGroupDeleted          NotificationType = "group_deleted"
	NotificationMessageReceived       NotificationType = "message_received"
	NotificationGroupMemberAdded      NotificationType = "group_member_added"
)

type Notification struct {
	ID        uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID        `gorm:"type:uuid;not null;index" json:"user_id"`
	Type      NotificationType `gorm:"size:40;not null" json:"type"`
	RelatedID uuid.UUID        `gorm:"type:uuid;not null" json:"related_id"`
	Message   string           `gorm:"type:text;not null" json:"message"`
	Read      bool             `gorm:"not null;default:false;index" json:"read"`
	CreatedAt time.Time        `gorm:"index" json:"created_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
