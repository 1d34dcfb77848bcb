package repository

import (
	"context"

	"relay-service/internal/models"

	"gorm.io/gorm"
)

type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	CreateComment(ctx context.Context, comment *models.Comment) error
	FindPostOwner(ctx context.Context, postID string) (string, error)
	FindComment(ctx context.Context, commentID string) (*models.Comment, error)
}

type postRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) CreatePost(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return writeError(err, "post")
	}
	return nil
}

func (r *postRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		return writeError(err, "comment")
	}
	return nil
}

func (r *postRepository) FindPostOwner(ctx context.Context, postID string) (string, error) {
	var post models.Post
	err := r.db.WithContext(ctx).Select("id", "user_id").Where("id = ?", postID).First(&post).Error
	if err != nil {
		return "", lookupError(err, "post", postID)
	}
	return post.UserID, nil
}

func (r *postRepository) FindComment(ctx context.Context, commentID string) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).Where("id = ?", commentID).First(&comment).Error; err != nil {
		return nil, lookupError(err, "comment", commentID)
	}
	return &comment, nil
}
