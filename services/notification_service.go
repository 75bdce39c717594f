package services

import (
	"context"
	"errors"

	"github.com/anjiri1684/social_messaging/apperrors"
	"github.com/anjiri1684/social_messaging/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationService struct {
	db *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{db: db}
}

// List returns the user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]models.Notification, error) {
	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("read = ?", false)
	}

	var notifications []models.Notification
	if err := query.Order("created_at desc, id desc").Find(&notifications).Error; err != nil {
		return nil, apperrors.Server(err)
	}
	return notifications, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, apperrors.Server(err)
	}
	return count, nil
}

// MarkRead flags a notification as read. Only its owner may do so.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) (*models.Notification, error) {
	var n models.Notification
	if err := s.db.WithContext(ctx).First(&n, "id = ?", notificationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Notification not found")
		}
		return nil, apperrors.Server(err)
	}
	if n.UserID != userID {
		return nil, apperrors.Forbidden("Permission denied")
	}
	if n.Read {
		return &n, nil
	}

	if err := s.db.WithContext(ctx).Model(&n).Update("read", true).Error; err != nil {
		return nil, apperrors.Server(err)
	}
	n.Read = true
	return &n, nil
}
