// Package bootstrap owns the store handles a process runs with.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"civicpulse/internal/cache"
	"civicpulse/internal/config"
	"civicpulse/internal/database"
	"civicpulse/internal/middleware"
	"civicpulse/internal/models"
	"civicpulse/internal/seed"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedCatalog inserts the built-in topics and locations.
	SeedCatalog bool
}

// InitRuntime connects to the database and Redis, brings the schema up to date
// outside production and optionally seeds the catalog. The Redis client is nil
// when Redis is unreachable; the process then runs without caching, rate
// limiting, token revocation and live delivery.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	if !cfg.IsProduction() {
		if err := database.Migrate(ctx, db); err != nil {
			_ = database.Close(db)
			return nil, nil, err
		}
	}

	rdb, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "Redis unavailable, continuing without it", slog.String("error", err.Error()))
		rdb = nil
	}

	if err := ensureDevRootAdmin(ctx, cfg, db); err != nil {
		_ = database.Close(db)
		return nil, nil, fmt.Errorf("failed to bootstrap development root admin: %w", err)
	}

	if opts.SeedCatalog {
		created, err := seed.SeedCatalog(ctx, db)
		if err != nil {
			_ = database.Close(db)
			return nil, nil, fmt.Errorf("failed to seed catalog: %w", err)
		}
		middleware.Logger.InfoContext(ctx, "catalog seeded", slog.Int("created", created))
	}

	return db, rdb, nil
}

// ensureDevRootAdmin creates or promotes the development administrator
// identified by DEV_ROOT_EMAIL.
func ensureDevRootAdmin(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapRoot {
		return nil
	}

	name := strings.TrimSpace(cfg.DevRootName)
	if name == "" {
		name = "Civic Admin"
	}
	email := strings.TrimSpace(strings.ToLower(cfg.DevRootEmail))
	if email == "" {
		email = "admin@civicpulse.local"
	}
	if cfg.DevRootPassword == "" {
		return errors.New("DEV_ROOT_PASSWORD must be set when DEV_BOOTSTRAP_ROOT is enabled")
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var root models.User
		findErr := tx.Where("email = ?", email).First(&root).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			hashed, err := bcrypt.GenerateFromPassword([]byte(cfg.DevRootPassword), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hash root password: %w", err)
			}
			root = models.User{
				Name:     name,
				Username: "admin",
				Email:    email,
				Password: string(hashed),
				IsAdmin:  true,
			}
			if err := tx.Create(&root).Error; err != nil {
				return err
			}
		case findErr != nil:
			return findErr
		case !root.IsAdmin:
			if err := tx.Model(&root).Update("is_admin", true).Error; err != nil {
				return err
			}
		}
		middleware.Logger.InfoContext(ctx, "development root admin ensured",
			slog.Uint64("user_id", uint64(root.ID)), slog.String("email", email))
		return nil
	})
}
