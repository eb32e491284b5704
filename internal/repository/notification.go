package repository

import (
	"context"

	"civicpulse/internal/models"

	"gorm.io/gorm"
)

// NotificationRepository persists per-recipient notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, recipientID uint, f models.NotificationFilter) ([]models.Notification, int64, error)
	UnreadCount(ctx context.Context, recipientID uint) (int64, error)
	MarkRead(ctx context.Context, id, recipientID uint) error
	MarkAllRead(ctx context.Context, recipientID uint) (int64, error)
	Delete(ctx context.Context, id, recipientID uint) error
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if err := r.db.WithContext(ctx).Omit("Sender").Create(n).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// List returns one page of the recipient's notifications and the total that
// matches the filter.
func (r *notificationRepository) List(ctx context.Context, recipientID uint, f models.NotificationFilter) ([]models.Notification, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.Notification{}).Where("recipient_id = ?", recipientID)
	if f.Read != nil {
		base = base.Where("read = ?", *f.Read)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	order := "created_at DESC, id DESC"
	if f.OldestFirst {
		order = "created_at ASC, id ASC"
	}
	items := make([]models.Notification, 0, f.Limit)
	err := base.Session(&gorm.Session{}).
		Preload("Sender", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "name", "username", "avatar")
		}).
		Order(order).
		Limit(f.Limit).
		Offset(f.Skip).
		Find(&items).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return items, total, nil
}

func (r *notificationRepository) UnreadCount(ctx context.Context, recipientID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND read = ?", recipientID, false).
		Count(&count).Error
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

// MarkRead is idempotent for an owned notification and NotFound otherwise.
func (r *notificationRepository) MarkRead(ctx context.Context, id, recipientID uint) error {
	var count int64
	owned := r.db.WithContext(ctx).Model(&models.Notification{}).Where("id = ? AND recipient_id = ?", id, recipientID)
	if err := owned.Count(&count).Error; err != nil {
		return models.NewInternalError(err)
	}
	if count == 0 {
		return models.NewNotFoundError("Notification", id)
	}
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Update("read", true).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// MarkAllRead returns how many notifications changed state.
func (r *notificationRepository) MarkAllRead(ctx context.Context, recipientID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND read = ?", recipientID, false).
		Update("read", true)
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

func (r *notificationRepository) Delete(ctx context.Context, id, recipientID uint) error {
	res := r.db.WithContext(ctx).Where("id = ? AND recipient_id = ?", id, recipientID).Delete(&models.Notification{})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Notification", id)
	}
	return nil
}
