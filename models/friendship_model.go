package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "pending"
	FriendshipAccepted FriendshipStatus = "accepted"
	FriendshipRejected FriendshipStatus = "rejected"
)

// Friendship is a directed edge. Accepting a request writes the reverse edge as well,
// so an accepted friendship is stored as two rows.
type Friendship struct {
	ID       uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	UserID   uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_friendship_pair" json:"user_id"`
	FriendID uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_friendship_pair" json:"friend_id"`
	Status   FriendshipStatus `gorm:"size:20;not null;default:'pending'" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (f *Friendship) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}
