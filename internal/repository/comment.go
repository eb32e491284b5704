package repository

import (
	"context"

	"civicpulse/internal/cache"
	"civicpulse/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommentRepository defines the interface for comment data operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, postID, commentID, viewerID uint) (*models.Comment, error)
	SetLike(ctx context.Context, postID, commentID, userID uint, liked *bool) (models.LikeResult, error)
}

type commentRepository struct {
	db    *gorm.DB
	cache *cache.Cache
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(db *gorm.DB, c *cache.Cache) CommentRepository {
	return &commentRepository{db: db, cache: c}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensurePost(tx, comment.PostID); err != nil {
			return err
		}
		return tx.Create(comment).Error
	})
	if err != nil {
		return wrapNotFound(err, "Post", comment.PostID)
	}
	r.invalidate(ctx, comment.PostID)
	return nil
}

// GetByID loads a comment of postID with its author and like details.
func (r *commentRepository) GetByID(ctx context.Context, postID, commentID, viewerID uint) (*models.Comment, error) {
	var comment models.Comment
	err := applyCommentDetails(r.db.WithContext(ctx), viewerID).
		Where("comments.id = ? AND comments.post_id = ?", commentID, postID).
		First(&comment).Error
	if err != nil {
		return nil, wrapNotFound(err, "Comment", commentID)
	}
	return &comment, nil
}

func (r *commentRepository) SetLike(ctx context.Context, postID, commentID, userID uint, liked *bool) (models.LikeResult, error) {
	var result models.LikeResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensurePost(tx, postID); err != nil {
			return err
		}
		var count int64
		err := tx.Model(&models.Comment{}).
			Where("id = ? AND post_id = ?", commentID, postID).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count == 0 {
			return models.NewNotFoundError("Comment", commentID)
		}

		var current int64
		err = tx.Model(&models.CommentLike{}).
			Where("comment_id = ? AND user_id = ?", commentID, userID).
			Count(&current).Error
		if err != nil {
			return err
		}
		target := current == 0
		if liked != nil {
			target = *liked
		}

		switch {
		case target && current == 0:
			err = tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&models.CommentLike{CommentID: commentID, UserID: userID}).Error
		case !target && current > 0:
			err = tx.Where("comment_id = ? AND user_id = ?", commentID, userID).
				Delete(&models.CommentLike{}).Error
		}
		if err != nil {
			return err
		}

		var likes int64
		if err := tx.Model(&models.CommentLike{}).Where("comment_id = ?", commentID).Count(&likes).Error; err != nil {
			return err
		}
		result = models.LikeResult{Likes: int(likes), Liked: target}
		return nil
	})
	if err != nil {
		return result, wrapNotFound(err, "Comment", commentID)
	}
	r.invalidate(ctx, postID)
	return result, nil
}

func (r *commentRepository) invalidate(ctx context.Context, postID uint) {
	r.cache.Invalidate(ctx, cache.PostKey(postID), cache.TopContributorsKey)
	r.cache.BumpVersion(ctx, cache.PostListVersionKey)
}

// applyCommentDetails selects author fields, like count and the viewer's like state.
func applyCommentDetails(db *gorm.DB, viewerID uint) *gorm.DB {
	selectQuery := "comments.*, " + authorColumns("comments") + ", " +
		"(SELECT COUNT(*) FROM comment_likes WHERE comment_likes.comment_id = comments.id) AS likes_count"

	if viewerID != 0 {
		return db.Select(selectQuery+
			", EXISTS(SELECT 1 FROM comment_likes WHERE comment_likes.comment_id = comments.id AND comment_likes.user_id = ?) AS user_liked",
			viewerID)
	}
	return db.Select(selectQuery + ", false AS user_liked")
}
