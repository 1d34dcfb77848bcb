package repository

import (
	"context"
	"time"

	"relay-service/internal/models"

	"gorm.io/gorm"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindUserByID(ctx context.Context, id string) (*models.UserProfile, error)
	FindUserByEmail(ctx context.Context, email string) (*models.UserProfile, error)
	UpdateLastSeen(ctx context.Context, userID string, at time.Time) error
	Follow(ctx context.Context, followerID, followingID string) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return writeError(err, "user")
	}
	return nil
}

func (r *userRepository) FindUserByID(ctx context.Context, id string) (*models.UserProfile, error) {
	return r.findProfile(ctx, "id = ?", id)
}

func (r *userRepository) FindUserByEmail(ctx context.Context, email string) (*models.UserProfile, error) {
	return r.findProfile(ctx, "email = ?", email)
}

func (r *userRepository) findProfile(ctx context.Context, query string, key string) (*models.UserProfile, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where(query, key).First(&user).Error; err != nil {
		return nil, lookupError(err, "user", key)
	}

	var followers int64
	if err := r.db.WithContext(ctx).Model(&models.Follow{}).Where("following_id = ?", user.ID).Count(&followers).Error; err != nil {
		return nil, lookupError(err, "followers of user", user.ID)
	}

	return &models.UserProfile{
		ID:             user.ID,
		Username:       user.Username,
		Image:          user.Image,
		City:           user.City,
		Premium:        user.Premium,
		FollowersCount: int(followers),
	}, nil
}

func (r *userRepository) UpdateLastSeen(ctx context.Context, userID string, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("last_seen", at).Error
	if err != nil {
		return writeError(err, "last seen")
	}
	return nil
}

func (r *userRepository) Follow(ctx context.Context, followerID, followingID string) error {
	edge := &models.Follow{FollowerID: followerID, FollowingID: followingID}
	if err := r.db.WithContext(ctx).Create(edge).Error; err != nil {
		return writeError(err, "follow")
	}
	return nil
}
