package services

import (
	"context"
	"errors"

	"github.com/anjiri1684/social_messaging/apperrors"
	"github.com/anjiri1684/social_messaging/models"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// IdentityDirectory resolves users by id or username.
type IdentityDirectory interface {
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UserByUsername(ctx context.Context, username string) (*models.User, error)
	UsernamesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

// FriendshipGraph answers whether two users share an accepted friendship.
type FriendshipGraph interface {
	AreFriends(ctx context.Context, a, b uuid.UUID) (bool, error)
}

// GroupDirectory answers membership questions about groups.
type GroupDirectory interface {
	MemberGroupByName(ctx context.Context, name string, userID uuid.UUID) (*models.Group, error)
	GroupIDsForMember(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	MemberIDs(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error)
}

// Directory implements the three collaborator interfaces on top of the users,
// friendships and chat_groups tables.
type Directory struct {
	db *gorm.DB
}

func NewDirectory(db *gorm.DB) *Directory {
	return &Directory{db: db}
}

func (d *Directory) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := d.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("User not found")
		}
		return nil, apperrors.Server(err)
	}
	return &user, nil
}

func (d *Directory) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := d.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("User not found")
		}
		return nil, apperrors.Server(err)
	}
	return &user, nil
}

func (d *Directory) UsernamesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	names := make(map[uuid.UUID]string, len(ids))
	ids = lo.Uniq(ids)
	if len(ids) == 0 {
		return names, nil
	}

	var users []models.User
	if err := d.db.WithContext(ctx).Select("id", "username").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, apperrors.Server(err)
	}
	for _, u := range users {
		names[u.ID] = u.Username
	}
	return names, nil
}

func (d *Directory) AreFriends(ctx context.Context, a, b uuid.UUID) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&models.Friendship{}).
		Where("status = ?", models.FriendshipAccepted).
		Where("((user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?))", a, b, b, a).
		Count(&count).Error
	if err != nil {
		return false, apperrors.Server(err)
	}
	return count > 0, nil
}

// MemberGroupByName does not distinguish a missing group from one the user is not in.
func (d *Directory) MemberGroupByName(ctx context.Context, name string, userID uuid.UUID) (*models.Group, error) {
	var group models.Group
	err := d.db.WithContext(ctx).
		Joins("JOIN group_members gm ON gm.group_id = chat_groups.id AND gm.user_id = ?", userID).
		Where("chat_groups.name = ?", name).
		First(&group).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFoundOrForbidden("Group not found or not a member")
		}
		return nil, apperrors.Server(err)
	}
	return &group, nil
}

func (d *Directory) GroupIDsForMember(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := d.db.WithContext(ctx).Table("group_members").
		Where("user_id = ?", userID).
		Pluck("group_id", &ids).Error
	if err != nil {
		return nil, apperrors.Server(err)
	}
	return ids, nil
}

func (d *Directory) MemberIDs(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := d.db.WithContext(ctx).Table("group_members").
		Where("group_id = ?", groupID).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, apperrors.Server(err)
	}
	return ids, nil
}
