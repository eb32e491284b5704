package repository

import (
	"context"

	"civicpulse/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// topicFollower is the join row behind Topic.Followers.
type topicFollower struct {
	TopicID uint `gorm:"primaryKey"`
	UserID  uint `gorm:"primaryKey"`
}

func (topicFollower) TableName() string { return "topic_followers" }

// TopicRepository stores followable topics.
type TopicRepository interface {
	List(ctx context.Context, limit int) ([]models.Topic, error)
	Create(ctx context.Context, topic *models.Topic) error
	GetBySlug(ctx context.Context, slug string) (*models.Topic, error)
	Follow(ctx context.Context, topicID, userID uint) (bool, error)
	Unfollow(ctx context.Context, topicID, userID uint) (bool, error)
	Search(ctx context.Context, query string, limit int) ([]models.Topic, error)
}

// LocationRepository stores named places.
type LocationRepository interface {
	List(ctx context.Context, limit int) ([]models.Location, error)
	Create(ctx context.Context, location *models.Location) error
	Search(ctx context.Context, query string, limit int) ([]models.Location, error)
}

type topicRepository struct {
	db *gorm.DB
}

func NewTopicRepository(db *gorm.DB) TopicRepository {
	return &topicRepository{db: db}
}

const topicFollowerCount = "(SELECT COUNT(*) FROM topic_followers WHERE topic_followers.topic_id = topics.id) AS follower_count"

func (r *topicRepository) List(ctx context.Context, limit int) ([]models.Topic, error) {
	topics := make([]models.Topic, 0, limit)
	err := r.db.WithContext(ctx).
		Select("topics.*, "+topicFollowerCount).
		Where("topics.is_active = ?", true).
		Order("topics.post_count DESC, topics.name ASC").
		Limit(limit).
		Find(&topics).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return topics, nil
}

func (r *topicRepository) Create(ctx context.Context, topic *models.Topic) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(topic).Error; err != nil {
		return wrapWrite(err, "Topic already exists")
	}
	return nil
}

func (r *topicRepository) GetBySlug(ctx context.Context, slug string) (*models.Topic, error) {
	var topic models.Topic
	err := r.db.WithContext(ctx).
		Select("topics.*, "+topicFollowerCount).
		Where("topics.slug = ?", slug).
		First(&topic).Error
	if err != nil {
		return nil, wrapNotFound(err, "Topic", slug)
	}
	return &topic, nil
}

func (r *topicRepository) Follow(ctx context.Context, topicID, userID uint) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&topicFollower{TopicID: topicID, UserID: userID})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *topicRepository) Unfollow(ctx context.Context, topicID, userID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("topic_id = ? AND user_id = ?", topicID, userID).
		Delete(&topicFollower{})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *topicRepository) Search(ctx context.Context, query string, limit int) ([]models.Topic, error) {
	pattern := containsPattern(query)
	topics := make([]models.Topic, 0, limit)
	err := r.db.WithContext(ctx).
		Where("topics.is_active = ?", true).
		Where(ilike("topics.name")+" OR "+ilike("topics.description"), pattern, pattern).
		Order("topics.post_count DESC, topics.name ASC").
		Limit(limit).
		Find(&topics).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return topics, nil
}

type locationRepository struct {
	db *gorm.DB
}

func NewLocationRepository(db *gorm.DB) LocationRepository {
	return &locationRepository{db: db}
}

func (r *locationRepository) List(ctx context.Context, limit int) ([]models.Location, error) {
	locations := make([]models.Location, 0, limit)
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("post_count DESC, name ASC").
		Limit(limit).
		Find(&locations).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return locations, nil
}

func (r *locationRepository) Create(ctx context.Context, location *models.Location) error {
	if err := r.db.WithContext(ctx).Create(location).Error; err != nil {
		return wrapWrite(err, "Location already exists")
	}
	return nil
}

func (r *locationRepository) Search(ctx context.Context, query string, limit int) ([]models.Location, error) {
	pattern := containsPattern(query)
	locations := make([]models.Location, 0, limit)
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where(ilike("name")+" OR "+ilike("description"), pattern, pattern).
		Order("post_count DESC, name ASC").
		Limit(limit).
		Find(&locations).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return locations, nil
}
