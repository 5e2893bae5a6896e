package notification

import (
	"context"
	"time"

	"github.com/webmatcha/matcha-go/internal/app"
	"github.com/webmatcha/matcha-go/internal/db"
	svcErr "github.com/webmatcha/matcha-go/internal/errors"
	"github.com/webmatcha/matcha-go/internal/repository"
)

// Pusher delivers an event to a user's live connection, wherever it is.
// The presence hub implements it; delivery is fire-and-forget.
type Pusher interface {
	Push(userID uint64, event string, payload any)
}

// Service is the notification sink: it persists the event log and hands
// each entry to the realtime transport. Nothing here feeds back into
// matching invariants.
type Service struct {
	appCtx *app.AppContext
	repo   *repository.NotificationRepository
	pusher Pusher
}

// NewService creates the notification service. pusher may be nil (e.g.
// in tests), in which case events are only persisted.
func NewService(appCtx *app.AppContext, pusher Pusher) *Service {
	return &Service{
		appCtx: appCtx,
		repo:   repository.NewNotificationRepository(appCtx.DB),
		pusher: pusher,
	}
}

// Emit records a notification for the recipient and pushes it to their
// live connection if any.
func (s *Service) Emit(ctx context.Context, userID uint64, typ db.NotificationType, message string) error {
	n := &db.Notification{
		UserID:  userID,
		Type:    typ,
		Message: message,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return svcErr.Store(err)
	}

	if s.pusher != nil {
		s.pusher.Push(userID, "notification", map[string]any{
			"id":      n.ID,
			"type":    string(n.Type),
			"message": n.Message,
		})
	}
	return nil
}

// List returns the user's notifications, newest first.
func (s *Service) List(ctx context.Context, userID uint64, unreadOnly bool) ([]db.Notification, error) {
	notifications, err := s.repo.ListForUser(ctx, userID, unreadOnly)
	if err != nil {
		return nil, svcErr.Store(err)
	}
	return notifications, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID uint64) (int64, error) {
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, svcErr.Store(err)
	}
	return count, nil
}

func (s *Service) MarkRead(ctx context.Context, id uint64) error {
	return svcErr.Store(s.repo.MarkRead(ctx, id))
}

func (s *Service) MarkAllRead(ctx context.Context, userID uint64) error {
	return svcErr.Store(s.repo.MarkAllRead(ctx, userID))
}

func (s *Service) Delete(ctx context.Context, id uint64) error {
	return svcErr.Store(s.repo.Delete(ctx, id))
}

func (s *Service) DeleteAll(ctx context.Context, userID uint64) error {
	return svcErr.Store(s.repo.DeleteAllForUser(ctx, userID))
}

// PurgeOlderThan removes notifications older than the retention window.
func (s *Service) PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	n, err := s.repo.DeleteOlderThan(ctx, time.Now().UTC().Add(-age))
	if err != nil {
		return 0, svcErr.Store(err)
	}
	if n > 0 {
		s.appCtx.Logger.Info("purged old notifications", "count", n)
	}
	return n, nil
}
