package repository

import (
	"context"

	"civicpulse/internal/cache"
	"civicpulse/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Post list orderings.
const (
	SortVotes    = "votes"
	SortNew      = "new"
	SortTrending = "trending"
)

// PostQuery filters and pages the post feed.
type PostQuery struct {
	Sort     string
	Category models.PostCategory
	Limit    int
	Offset   int
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error)
	List(ctx context.Context, q PostQuery, viewerID uint) ([]*models.Post, error)
	Summary(ctx context.Context, id uint) (*models.Post, error)
	Vote(ctx context.Context, postID, userID uint, direction int) (models.VoteResult, error)
	SetLike(ctx context.Context, postID, userID uint, liked *bool) (models.LikeResult, error)
	IncrementShares(ctx context.Context, postID uint) (int, error)
	SearchIssues(ctx context.Context, query string, limit int) ([]models.IssueRow, error)
	SuggestTitles(ctx context.Context, query string, limit int) ([]models.IssueRow, error)
}

type postRepository struct {
	db    *gorm.DB
	cache *cache.Cache
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB, c *cache.Cache) PostRepository {
	return &postRepository{db: db, cache: c}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(post).Error; err != nil {
		return wrapWrite(err, "Post already exists")
	}
	r.cache.BumpVersion(ctx, cache.PostListVersionKey)
	r.cache.Invalidate(ctx, cache.TopContributorsKey)
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error) {
	load := func(ctx context.Context) (models.Post, error) {
		var post models.Post
		err := applyPostDetails(r.db.WithContext(ctx), viewerID).
			Preload("Comments", func(db *gorm.DB) *gorm.DB {
				return applyCommentDetails(db, viewerID).Order("comments.created_at ASC, comments.id ASC")
			}).
			First(&post, "posts.id = ?", id).Error
		if err != nil {
			return post, wrapNotFound(err, "Post", id)
		}
		if post.Comments == nil {
			post.Comments = []models.Comment{}
		}
		return post, nil
	}

	var (
		post models.Post
		err  error
	)
	if viewerID == 0 {
		post, err = cache.Aside(ctx, r.cache, cache.PostKey(id), cache.PostTTL, load)
	} else {
		post, err = load(ctx)
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, q PostQuery, viewerID uint) ([]*models.Post, error) {
	load := func(ctx context.Context) ([]*models.Post, error) {
		posts := make([]*models.Post, 0, q.Limit)
		base := applyPostDetails(r.db.WithContext(ctx), viewerID)
		if q.Category != "" {
			base = base.Where("posts.category = ?", q.Category)
		}
		query := applySort(base, q.Sort)
		if q.Limit > 0 {
			query = query.Limit(q.Limit)
		}
		if q.Offset > 0 {
			query = query.Offset(q.Offset)
		}
		err := query.Find(&posts).Error
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		return posts, nil
	}

	if viewerID != 0 {
		return load(ctx)
	}
	version := r.cache.Version(ctx, cache.PostListVersionKey)
	key := cache.PostListKey(version, q.Sort, string(q.Category), q.Limit, q.Offset)
	return cache.Aside(ctx, r.cache, key, cache.PostListTTL, load)
}

// Summary loads only the id, title and author of a post.
func (r *postRepository) Summary(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Select("id", "title", "user_id").First(&post, id).Error; err != nil {
		return nil, wrapNotFound(err, "Post", id)
	}
	return &post, nil
}

// Vote upserts the user's vote and returns the previous value together with
// the new aggregate.
func (r *postRepository) Vote(ctx context.Context, postID, userID uint, direction int) (models.VoteResult, error) {
	var result models.VoteResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensurePost(tx, postID); err != nil {
			return err
		}

		var existing models.PostVote
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("post_id = ? AND user_id = ?", postID, userID).
			Limit(1).
			Find(&existing).Error
		if err != nil {
			return err
		}
		result.Previous = existing.Value

		vote := models.PostVote{PostID: postID, UserID: userID, Value: direction}
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "post_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&vote).Error
		if err != nil {
			return err
		}

		return tx.Model(&models.PostVote{}).
			Select("COALESCE(SUM(value), 0)").
			Where("post_id = ?", postID).
			Scan(&result.Votes).Error
	})
	if err != nil {
		return result, wrapNotFound(err, "Post", postID)
	}
	r.invalidatePost(ctx, postID)
	return result, nil
}

// SetLike moves the like to the target state, or toggles it when liked is nil.
func (r *postRepository) SetLike(ctx context.Context, postID, userID uint, liked *bool) (models.LikeResult, error) {
	var result models.LikeResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensurePost(tx, postID); err != nil {
			return err
		}

		var current int64
		pair := tx.Model(&models.PostLike{}).Where("post_id = ? AND user_id = ?", postID, userID)
		if err := pair.Count(&current).Error; err != nil {
			return err
		}
		target := current == 0
		if liked != nil {
			target = *liked
		}

		switch {
		case target && current == 0:
			err := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&models.PostLike{PostID: postID, UserID: userID}).Error
			if err != nil {
				return err
			}
		case !target && current > 0:
			err := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.PostLike{}).Error
			if err != nil {
				return err
			}
		}

		var likes int64
		if err := tx.Model(&models.PostLike{}).Where("post_id = ?", postID).Count(&likes).Error; err != nil {
			return err
		}
		result = models.LikeResult{Likes: int(likes), Liked: target}
		return nil
	})
	if err != nil {
		return result, wrapNotFound(err, "Post", postID)
	}
	r.invalidatePost(ctx, postID)
	return result, nil
}

// IncrementShares bumps the share counter at the store and returns the new value.
func (r *postRepository) IncrementShares(ctx context.Context, postID uint) (int, error) {
	res := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", postID).
		UpdateColumn("shares", gorm.Expr("shares + ?", 1))
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, models.NewNotFoundError("Post", postID)
	}

	var post models.Post
	if err := r.db.WithContext(ctx).Select("id", "shares").First(&post, postID).Error; err != nil {
		return 0, wrapNotFound(err, "Post", postID)
	}
	r.invalidatePost(ctx, postID)
	return post.Shares, nil
}

func (r *postRepository) SearchIssues(ctx context.Context, query string, limit int) ([]models.IssueRow, error) {
	pattern := containsPattern(query)
	rows := make([]models.IssueRow, 0, limit)
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Select("posts.id, posts.title, posts.description, posts.category, posts.created_at, " +
			authorColumns("posts") + ", " +
			votesSubquery + " AS votes, " +
			commentsSubquery + " AS comments").
		Where(ilike("posts.title")+" OR "+ilike("posts.description")+" OR "+ilike("posts.category"),
			pattern, pattern, pattern).
		Order("votes DESC, posts.created_at DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return rows, nil
}

func (r *postRepository) SuggestTitles(ctx context.Context, query string, limit int) ([]models.IssueRow, error) {
	rows := make([]models.IssueRow, 0, limit)
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Select("posts.id, posts.title").
		Where(ilike("posts.title"), containsPattern(query)).
		Order("posts.created_at DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return rows, nil
}

func (r *postRepository) invalidatePost(ctx context.Context, postID uint) {
	r.cache.Invalidate(ctx, cache.PostKey(postID), cache.TopContributorsKey)
	r.cache.BumpVersion(ctx, cache.PostListVersionKey)
}

func ensurePost(tx *gorm.DB, postID uint) error {
	var count int64
	if err := tx.Model(&models.Post{}).Where("id = ?", postID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return models.NewNotFoundError("Post", postID)
	}
	return nil
}

const (
	votesSubquery    = "(SELECT COALESCE(SUM(post_votes.value), 0) FROM post_votes WHERE post_votes.post_id = posts.id)"
	likesSubquery    = "(SELECT COUNT(*) FROM post_likes WHERE post_likes.post_id = posts.id)"
	commentsSubquery = "(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id)"
)

// authorColumns selects the author's display fields for a row of table.
func authorColumns(table string) string {
	return "(SELECT users.name FROM users WHERE users.id = " + table + ".user_id) AS author_name, " +
		"(SELECT users.username FROM users WHERE users.id = " + table + ".user_id) AS author_username, " +
		"(SELECT users.avatar FROM users WHERE users.id = " + table + ".user_id) AS author_avatar"
}

// applyPostDetails adds subqueries to fetch author fields, counts and the
// viewer's vote and like state in a single query.
func applyPostDetails(db *gorm.DB, viewerID uint) *gorm.DB {
	selectQuery := "posts.*, " + authorColumns("posts") + ", " +
		votesSubquery + " AS votes_count, " +
		likesSubquery + " AS likes_count, " +
		commentsSubquery + " AS comments_count"

	if viewerID != 0 {
		return db.Select(selectQuery+
			", COALESCE((SELECT post_votes.value FROM post_votes WHERE post_votes.post_id = posts.id AND post_votes.user_id = ?), 0) AS user_vote"+
			", EXISTS(SELECT 1 FROM post_likes WHERE post_likes.post_id = posts.id AND post_likes.user_id = ?) AS user_liked",
			viewerID, viewerID)
	}
	return db.Select(selectQuery + ", 0 AS user_vote, false AS user_liked")
}

// applySort appends the ORDER BY clause for the requested feed order.
// votes_count is a SELECT alias from applyPostDetails.
func applySort(db *gorm.DB, sort string) *gorm.DB {
	switch sort {
	case SortNew:
		return db.Order("posts.created_at DESC, posts.id DESC")
	case SortTrending:
		return db.Order("posts.shares DESC, votes_count DESC, posts.created_at DESC")
	default:
		return db.Order("votes_count DESC, posts.created_at DESC, posts.id DESC")
	}
}
