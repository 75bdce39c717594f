package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusDeleted   MessageStatus = "deleted"
)

var (
	ErrMessageTarget = errors.New("message must have exactly one of receiver or group")
	ErrMessageEmpty  = errors.New("message body or file is required")
)

// Rank orders the delivery states. Deleted sorts after read.
func (s MessageStatus) Rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	case StatusDeleted:
		return 4
	}
	return 0
}

type Message struct {
	ID             uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	SenderID       uuid.UUID     `gorm:"type:uuid;not null;index" json:"sender_id"`
	ReceiverID     *uuid.UUID    `gorm:"type:uuid;index" json:"receiver_id"`
	GroupID        *uuid.UUID    `gorm:"type:uuid;index" json:"group_id"`
	IsGroupMessage bool          `gorm:"not null" json:"is_group_message"`
	Body           string        `gorm:"type:text;not null" json:"body"`
	AttachmentURL  string        `gorm:"size:512;not null" json:"attachment_url"`
	Status         MessageStatus `gorm:"size:20;not null;index" json:"status"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Status == "" {
		m.Status = StatusSent
	}
	return m.Validate()
}

func (m *Message) Validate() error {
	if (m.ReceiverID == nil) == (m.GroupID == nil) {
		return ErrMessageTarget
	}
	if m.Body == "" && m.AttachmentURL == "" {
		return ErrMessageEmpty
	}
	return nil
}

// IsReceiver reports whether userID is the direct receiver of the message.
func (m *Message) IsReceiver(userID uuid.UUID) bool {
	return m.ReceiverID != nil && *m.ReceiverID == userID
}

// MessageTombstone hides a message from a single participant without removing it
// for the others.
type MessageTombstone struct {
	MessageID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time
}
