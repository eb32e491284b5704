package service

import (
	"context"
	"log/slog"
	"strings"

	"civicpulse/internal/middleware"
	"civicpulse/internal/models"
	"civicpulse/internal/repository"
	"civicpulse/internal/validation"
)

const (
	maxPostLimit     = 100
)

// ActivityNotifier receives the side effects of user activity.
type ActivityNotifier interface {
	NotifyComment(ctx context.Context, post *models.Post, comment *models.Comment, actor *models.User)
	NotifyVote(ctx context.Context, post *models.Post, actor *models.User)
	NotifyFollow(ctx context.Context, followedID uint, actor *models.User)
}

type PostService struct {
	postRepo repository.PostRepository
	uploads  *UploadService
	notifier ActivityNotifier
}

type CreatePostInput struct {
	Title       string `json:"title" validate:"required,min=3,max=200"`
	Description string `json:"description" validate:"required,min=10,max=10000"`
	Category    string `json:"category" validate:"required,category"`
	Image       *UploadInput
}

type ListPostsInput struct {
	Sort     string
	Category string
	Limit    int
	Offset   int
	ViewerID uint
}

// VoteOutcome is the new aggregate and the caller's recorded vote.
type VoteOutcome struct {
	Votes    int `json:"votes"`
	UserVote int `json:"user_vote"`
}

func NewPostService(postRepo repository.PostRepository, uploads *UploadService, notifier ActivityNotifier) *PostService {
	return &PostService{
		postRepo: postRepo,
		uploads:  uploads,
		notifier: notifier,
	}
}

func (s *PostService) CreatePost(ctx context.Context, author *models.User, in CreatePostInput) (*models.Post, error) {
	if author == nil {
		return nil, models.NewUnauthorizedError("Not authenticated")
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	post := &models.Post{
		Title:       in.Title,
		Description: in.Description,
		Category:    models.PostCategory(in.Category),
		UserID:      author.ID,
	}

	var stored *StoredUpload
	if in.Image != nil {
		var err error
		if stored, err = s.uploads.SavePostImage(ctx, *in.Image); err != nil {
			return nil, err
		}
		post.ImageURL = stored.URL
		post.ImagePreviewURL = stored.PreviewURL
	}

	if err := s.postRepo.Create(ctx, post); err != nil {
		s.uploads.Remove(ctx, stored)
		return nil, err
	}

	post.AuthorName = author.Name
	post.AuthorUsername = author.Username
	post.AuthorAvatar = author.Avatar
	shapePost(post)
	return post, nil
}

func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) ([]*models.Post, error) {
	sort := strings.ToLower(strings.TrimSpace(in.Sort))
	switch sort {
	case repository.SortVotes, repository.SortNew, repository.SortTrending:
	default:
		sort = repository.SortVotes
	}

	category := models.PostCategory(strings.TrimSpace(in.Category))
	if category != "" && !category.Valid() {
		return nil, models.NewValidationError("Invalid category")
	}

	// Without a limit the whole feed is returned.
	limit := 0
	if in.Limit > 0 {
		limit = min(in.Limit, maxPostLimit)
	}

	posts, err := s.postRepo.List(ctx, repository.PostQuery{
		Sort:     sort,
		Category: category,
		Limit:    limit,
		Offset:   max(in.Offset, 0),
	}, in.ViewerID)
	if err != nil {
		return nil, err
	}
	for _, p := range posts {
		shapePost(p)
	}
	return posts, nil
}

func (s *PostService) GetPost(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, id, viewerID)
	if err != nil {
		return nil, err
	}
	shapePost(post)
	return post, nil
}

// Vote records the caller's vote. Moving to an upvote notifies the author.
func (s *PostService) Vote(ctx context.Context, voter *models.User, postID uint, direction int) (*VoteOutcome, error) {
	if voter == nil {
		return nil, models.NewUnauthorizedError("Not authenticated")
	}
	if direction < -1 || direction > 1 {
		return nil, models.NewValidationError("Invalid vote direction")
	}

	result, err := s.postRepo.Vote(ctx, postID, voter.ID, direction)
	if err != nil {
		return nil, err
	}

	if direction == 1 && result.Previous != 1 && s.notifier != nil {
		post, err := s.postRepo.Summary(ctx, postID)
		if err != nil {
			middleware.Logger.WarnContext(ctx, "vote notification skipped",
				slog.Uint64("post_id", uint64(postID)), slog.String("error", err.Error()))
		} else {
			s.notifier.NotifyVote(ctx, post, voter)
		}
	}
	return &VoteOutcome{Votes: result.Votes, UserVote: direction}, nil
}

// Like sets the caller's like to liked, or toggles it when liked is nil.
func (s *PostService) Like(ctx context.Context, userID, postID uint, liked *bool) (models.LikeResult, error) {
	return s.postRepo.SetLike(ctx, postID, userID, liked)
}

func (s *PostService) Share(ctx context.Context, postID uint) (int, error) {
	return s.postRepo.IncrementShares(ctx, postID)
}
