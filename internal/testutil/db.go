// Package testutil provides shared fixtures for backend tests.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"civicpulse/internal/database"
	"civicpulse/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var dbSeq atomic.Int64

// NewTestDB opens a private in-memory SQLite database with the full schema.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_foreign_keys=1", name, dbSeq.Add(1))
	db, err := database.Open(sqlite.Open(dsn))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(context.Background(), db))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// CreateUser inserts a user whose username and email derive from username.
func CreateUser(t testing.TB, db *gorm.DB, name, username string) *models.User {
	t.Helper()
	user := &models.User{
		Name:     name,
		Username: username,
		Email:    username + "@example.com",
		Password: "not-a-real-hash",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreatePost inserts a post by author.
func CreatePost(t testing.TB, db *gorm.DB, authorID uint, title string, category models.PostCategory) *models.Post {
	t.Helper()
	post := &models.Post{
		Title:       title,
		Description: "Description for " + title,
		Category:    category,
		UserID:      authorID,
		ImageURL:    "/uploads/fixture.png",
	}
	require.NoError(t, db.Create(post).Error)
	return post
}
