package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"civicpulse/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertAppCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertAppCode(t, err, models.CodeValidation)
}

// assertUnauthorizedError asserts that err is an AppError with code UNAUTHORIZED.
func assertUnauthorizedError(t *testing.T, err error) {
	t.Helper()
	assertAppCode(t, err, models.CodeUnauthorized)
}

func assertNotFound(t *testing.T, err error) {
	t.Helper()
	assertAppCode(t, err, models.CodeNotFound)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func boolPtr(b bool) *bool { return &b }

func strPtr(s string) *string { return &s }

// notifierSpy records activity notifications.
type notifierSpy struct {
	mu       sync.Mutex
	comments []uint
	votes    []uint
	follows  []uint
}

func (n *notifierSpy) NotifyComment(_ context.Context, post *models.Post, _ *models.Comment, _ *models.User) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.comments = append(n.comments, post.ID)
}

func (n *notifierSpy) NotifyVote(_ context.Context, post *models.Post, _ *models.User) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.votes = append(n.votes, post.ID)
}

func (n *notifierSpy) NotifyFollow(_ context.Context, followedID uint, _ *models.User) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.follows = append(n.follows, followedID)
}
