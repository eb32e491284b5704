package database

import (
	"context"
	"fmt"
	"log/slog"

	"civicpulse/internal/middleware"
	"civicpulse/internal/models"

	"gorm.io/gorm"
)

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []any {
	return []any{
		&models.User{},
		&models.UserFollow{},
		&models.Post{},
		&models.PostVote{},
		&models.PostLike{},
		&models.Comment{},
		&models.CommentLike{},
		&models.Notification{},
		&models.Topic{},
		&models.Location{},
	}
}

// Migrate brings the schema up to date with PersistentModels.
func Migrate(ctx context.Context, db *gorm.DB) error {
	middleware.Logger.InfoContext(ctx, "Running schema migration", slog.Int("models", len(PersistentModels())))
	if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}
