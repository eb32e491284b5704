package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"civicpulse/internal/models"
	"civicpulse/internal/repository"
)

const maxCommentLen = 1000

type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	notifier    ActivityNotifier
}

type CreateCommentInput struct {
	PostID  uint
	Content string
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	notifier ActivityNotifier,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		notifier:    notifier,
	}
}

// CreateComment adds a comment to a post and notifies the post's author.
func (s *CommentService) CreateComment(ctx context.Context, author *models.User, in CreateCommentInput) (*models.Comment, error) {
	if author == nil {
		return nil, models.NewUnauthorizedError("Not authenticated")
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, models.NewValidationError("content is required")
	}
	if utf8.RuneCountInString(content) > maxCommentLen {
		return nil, models.NewValidationError("content must be at most 1000 characters")
	}

	post, err := s.postRepo.Summary(ctx, in.PostID)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{
		PostID:  post.ID,
		UserID:  author.ID,
		Content: content,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}

	created, err := s.commentRepo.GetByID(ctx, post.ID, comment.ID, author.ID)
	if err != nil {
		// The row is committed; fall back to what we already know.
		created = comment
		created.AuthorName = author.Name
		created.AuthorUsername = author.Username
		created.AuthorAvatar = author.Avatar
	}
	created.TimeAgo = TimeAgo(created.CreatedAt)

	if s.notifier != nil {
		s.notifier.NotifyComment(ctx, post, created, author)
	}
	return created, nil
}

// LikeComment sets the caller's like to liked, or toggles it when liked is nil.
func (s *CommentService) LikeComment(ctx context.Context, userID, postID, commentID uint, liked *bool) (models.LikeResult, error) {
	return s.commentRepo.SetLike(ctx, postID, commentID, userID, liked)
}
