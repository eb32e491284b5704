package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"civicpulse/internal/cache"
	"civicpulse/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository defines persistence operations for users and follows.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, user *models.User) error
	UpdateProfile(ctx context.Context, user *models.User) error
	TouchLastActive(ctx context.Context, id uint) error
	Stats(ctx context.Context, id uint) (models.UserStats, error)
	TopContributors(ctx context.Context, limit int) ([]models.Contributor, error)
	Search(ctx context.Context, query string, limit int) ([]models.PersonRow, error)
	Follow(ctx context.Context, followerID, followedID uint) (bool, error)
	Unfollow(ctx context.Context, followerID, followedID uint) (bool, error)
	FollowerCount(ctx context.Context, id uint) (int64, error)
}

type userRepository struct {
	db    *gorm.DB
	cache *cache.Cache
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB, c *cache.Cache) UserRepository {
	return &userRepository{db: db, cache: c}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	user, err := cache.Aside(ctx, r.cache, cache.UserKey(id), cache.UserTTL, func(ctx context.Context) (models.User, error) {
		var user models.User
		if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
			return user, wrapNotFound(err, "User", id)
		}
		return user, nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail returns nil, nil when no user has the address.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, wrapNotFound(err, "User", username)
	}
	return &user, nil
}

func (r *userRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.LastActive.IsZero() {
		user.LastActive = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return wrapWrite(err, "User already exists")
	}
	return nil
}

// UpdateProfile persists the user-editable profile columns only.
func (r *userRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).Model(user).
		Select("name", "bio", "avatar", "last_active").
		Updates(user).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	r.cache.Invalidate(ctx, cache.UserKey(user.ID), cache.TopContributorsKey)
	return nil
}

func (r *userRepository) TouchLastActive(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		UpdateColumn("last_active", time.Now().UTC()).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userRepository) Stats(ctx context.Context, id uint) (models.UserStats, error) {
	var stats models.UserStats
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			(SELECT COUNT(*) FROM posts WHERE posts.user_id = ?) AS total_posts,
			(SELECT COUNT(*) FROM comments WHERE comments.user_id = ?) AS total_comments,
			(SELECT COALESCE(SUM(post_votes.value), 0) FROM post_votes
				JOIN posts ON posts.id = post_votes.post_id
				WHERE posts.user_id = ?) AS total_votes`,
		id, id, id).Scan(&stats).Error
	if err != nil {
		return stats, models.NewInternalError(err)
	}
	return stats, nil
}

type contributorRow struct {
	ID            uint
	Name          string
	Username      string
	Avatar        string
	Posts         int64
	Comments      int64
	VotesReceived int64
	Points        int64
}

// TopContributors ranks users by posts*10 + comments*5 + votes received*2.
func (r *userRepository) TopContributors(ctx context.Context, limit int) ([]models.Contributor, error) {
	var rows []contributorRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT ranked.*, ranked.posts * 10 + ranked.comments * 5 + ranked.votes_received * 2 AS points
		FROM (
			SELECT users.id, users.name, users.username, users.avatar,
				(SELECT COUNT(*) FROM posts WHERE posts.user_id = users.id) AS posts,
				(SELECT COUNT(*) FROM comments WHERE comments.user_id = users.id) AS comments,
				(SELECT COALESCE(SUM(post_votes.value), 0) FROM post_votes
					JOIN posts ON posts.id = post_votes.post_id
					WHERE posts.user_id = users.id) AS votes_received
			FROM users
		) ranked
		ORDER BY points DESC, ranked.id ASC
		LIMIT ?`, limit).Scan(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	out := make([]models.Contributor, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.Contributor{
			ID:       row.ID,
			Name:     row.Name,
			Username: row.Username,
			Avatar:   row.Avatar,
			Points:   row.Points,
			Stats: models.ContributorStats{
				Posts:         row.Posts,
				Comments:      row.Comments,
				VotesReceived: row.VotesReceived,
			},
		})
	}
	return out, nil
}

func (r *userRepository) Search(ctx context.Context, query string, limit int) ([]models.PersonRow, error) {
	pattern := containsPattern(query)
	var rows []models.PersonRow
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Select("users.id, users.name, users.username, users.avatar, users.bio, "+
			"(SELECT COUNT(*) FROM user_follows WHERE user_follows.followed_id = users.id) AS followers").
		Where(ilike("users.name")+" OR "+ilike("users.username")+" OR "+ilike("users.bio"), pattern, pattern, pattern).
		Order("users.name ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return rows, nil
}

// Follow reports whether a new follow was created.
func (r *userRepository) Follow(ctx context.Context, followerID, followedID uint) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.UserFollow{FollowerID: followerID, FollowedID: followedID})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Unfollow reports whether a follow was removed.
func (r *userRepository) Unfollow(ctx context.Context, followerID, followedID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("follower_id = ? AND followed_id = ?", followerID, followedID).
		Delete(&models.UserFollow{})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *userRepository) FollowerCount(ctx context.Context, id uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.UserFollow{}).Where("followed_id = ?", id).Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}
