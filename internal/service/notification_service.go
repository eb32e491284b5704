package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"civicpulse/internal/middleware"
	"civicpulse/internal/models"
	"civicpulse/internal/observability"
	"civicpulse/internal/repository"
)

// Publisher pushes an already persisted notification to a user's live streams.
type Publisher interface {
	PublishUser(ctx context.Context, userID uint, payload []byte) error
}

const (
	defaultNotificationLimit = 20
	maxNotificationLimit     = 100
)

// NotificationService owns notification side effects and the recipient inbox.
type NotificationService struct {
	repo      repository.NotificationRepository
	publisher Publisher
}

func NewNotificationService(repo repository.NotificationRepository, publisher Publisher) *NotificationService {
	return &NotificationService{repo: repo, publisher: publisher}
}

// NotificationPage is one page of an inbox.
type NotificationPage struct {
	Items       []models.Notification
	Limit       int
	Skip        int
	Total       int64
	UnreadCount int64
}

// ListNotificationsInput carries the raw inbox query.
type ListNotificationsInput struct {
	Limit  int
	Skip   int
	Read   *bool
	Oldest bool
}

func (s *NotificationService) List(ctx context.Context, userID uint, in ListNotificationsInput) (*NotificationPage, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}
	skip := max(in.Skip, 0)

	items, total, err := s.repo.List(ctx, userID, models.NotificationFilter{
		Read:        in.Read,
		Limit:       limit,
		Skip:        skip,
		OldestFirst: in.Oldest,
	})
	if err != nil {
		return nil, err
	}
	unread, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &NotificationPage{Items: items, Limit: limit, Skip: skip, Total: total, UnreadCount: unread}, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.repo.UnreadCount(ctx, userID)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID uint) error {
	return s.repo.MarkRead(ctx, notificationID, userID)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *NotificationService) Delete(ctx context.Context, userID, notificationID uint) error {
	return s.repo.Delete(ctx, notificationID, userID)
}

// NotifyComment tells the post's author about a new comment.
func (s *NotificationService) NotifyComment(ctx context.Context, post *models.Post, comment *models.Comment, actor *models.User) {
	if post == nil || comment == nil || actor == nil {
		return
	}
	s.dispatch(ctx, actor.ID, &models.Notification{
		RecipientID: post.UserID,
		Type:        models.NotificationNewComment,
		Title:       "New Comment",
		Message:     fmt.Sprintf("%s commented on your post: %q", actor.Name, post.Title),
		Related:     models.PostRef(post.ID),
		URL:         fmt.Sprintf("/post/%d?comment=%d", post.ID, comment.ID),
	})
}

// NotifyVote tells the post's author about an upvote.
func (s *NotificationService) NotifyVote(ctx context.Context, post *models.Post, actor *models.User) {
	if post == nil || actor == nil {
		return
	}
	s.dispatch(ctx, actor.ID, &models.Notification{
		RecipientID: post.UserID,
		Type:        models.NotificationVote,
		Title:       "New Vote",
		Message:     fmt.Sprintf("%s voted on your post: %q", actor.Name, post.Title),
		Related:     models.PostRef(post.ID),
		URL:         fmt.Sprintf("/post/%d", post.ID),
	})
}

// NotifyFollow tells followedID that actor started following them.
func (s *NotificationService) NotifyFollow(ctx context.Context, followedID uint, actor *models.User) {
	if actor == nil {
		return
	}
	s.dispatch(ctx, actor.ID, &models.Notification{
		RecipientID: followedID,
		Type:        models.NotificationNewFollower,
		Title:       "New Follower",
		Message:     actor.Name + " started following you",
		Related:     models.UserRef(actor.ID),
		URL:         "/@" + actor.Username,
		Image:       actor.Avatar,
	})
}

// CreateTest sends the caller a sample notification of the requested kind.
func (s *NotificationService) CreateTest(ctx context.Context, user *models.User, kind string) (*models.Notification, error) {
	if user == nil {
		return nil, models.NewUnauthorizedError("Not authenticated")
	}

	n := &models.Notification{
		RecipientID: user.ID,
		SenderID:    &user.ID,
		URL:         "/test",
	}
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "comment":
		n.Type = models.NotificationNewComment
		n.Title = "Test Comment Notification"
		n.Message = "This is a test comment notification"
	case "follower":
		n.Type = models.NotificationNewFollower
		n.Title = "Test Follower Notification"
		n.Message = "This is a test follower notification"
	case "vote":
		n.Type = models.NotificationVote
		n.Title = "Test Vote Notification"
		n.Message = "This is a test vote notification"
	default:
		n.Type = models.NotificationSystem
		n.Title = "Test System Notification"
		n.Message = "This is a test system notification"
	}

	if err := s.send(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// dispatch persists and publishes n on behalf of actorID. Failures are logged
// and counted; they never reach the caller.
func (s *NotificationService) dispatch(ctx context.Context, actorID uint, n *models.Notification) {
	typ := string(n.Type)
	if n.RecipientID == 0 || n.RecipientID == actorID {
		observability.NotificationsDispatched.WithLabelValues(typ, "suppressed").Inc()
		return
	}
	n.SenderID = &actorID

	if err := s.send(ctx, n); err != nil {
		observability.NotificationsDispatched.WithLabelValues(typ, "failed").Inc()
		middleware.Logger.WarnContext(ctx, "notification dispatch failed",
			slog.String("type", typ),
			slog.Uint64("recipient_id", uint64(n.RecipientID)),
			slog.String("error", err.Error()))
		return
	}
	observability.NotificationsDispatched.WithLabelValues(typ, "sent").Inc()
}

// send stores n and then publishes it. A publish failure is only logged since
// the row is already committed.
func (s *NotificationService) send(ctx context.Context, n *models.Notification) error {
	if err := s.repo.Create(ctx, n); err != nil {
		return err
	}
	if s.publisher == nil {
		return nil
	}

	payload, err := json.Marshal(map[string]any{"type": "notification", "payload": n})
	if err == nil {
		err = s.publisher.PublishUser(ctx, n.RecipientID, payload)
	}
	if err != nil {
		middleware.Logger.WarnContext(ctx, "notification publish failed",
			slog.Uint64("notification_id", uint64(n.ID)),
			slog.String("error", err.Error()))
	}
	return nil
}
