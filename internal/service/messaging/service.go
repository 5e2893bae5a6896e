package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/webmatcha/matcha-go/internal/app"
	"github.com/webmatcha/matcha-go/internal/db"
	svcErr "github.com/webmatcha/matcha-go/internal/errors"
	"github.com/webmatcha/matcha-go/internal/repository"
	"github.com/webmatcha/matcha-go/internal/service/notification"
)

// ConversationSummary is one row of the conversation list: the
// counterpart, the most recent message, and the unread count.
type ConversationSummary struct {
	OtherUserID     uint64    `json:"other_user_id"`
	OtherUsername   string    `json:"other_username"`
	OtherUserPhoto  string    `json:"other_user_photo"`
	LastMessage     string    `json:"last_message"`
	LastMessageTime time.Time `json:"last_message_time"`
	UnreadCount     int64     `json:"unread_count"`
	IsOnline        bool      `json:"is_online"`
}

// Service is the messaging gate: it authorizes and records messages,
// enforcing that only matched, unblocked pairs may exchange them.
type Service struct {
	appCtx   *app.AppContext
	users    *repository.UserRepository
	rels     *repository.RelationshipRepository
	messages *repository.MessageRepository
	notifier *notification.Service
	pusher   notification.Pusher
}

// NewService creates the messaging service. pusher may be nil in tests.
func NewService(appCtx *app.AppContext, notifier *notification.Service, pusher notification.Pusher) *Service {
	return &Service{
		appCtx:   appCtx,
		users:    repository.NewUserRepository(appCtx.DB),
		rels:     repository.NewRelationshipRepository(appCtx.DB),
		messages: repository.NewMessageRepository(appCtx.DB),
		notifier: notifier,
		pusher:   pusher,
	}
}

// Send stores a message after the two relationship checks: the pair must
// be matched and free of blocks in either direction. Each refusal has
// its own AuthorizationError reason so the caller can tell "not matched
// yet" from "blocked".
func (s *Service) Send(ctx context.Context, senderID, receiverID uint64, content string) (*db.Message, error) {
	if senderID == receiverID {
		return nil, svcErr.Validation("cannot message yourself")
	}
	if content == "" {
		return nil, svcErr.Validation("message content is required")
	}

	sender, err := s.users.GetByID(ctx, senderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.NotFound(fmt.Sprintf("user %d not found", senderID))
	} else if err != nil {
		return nil, svcErr.Store(err)
	}
	if _, err := s.users.GetByID(ctx, receiverID); errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.NotFound(fmt.Sprintf("user %d not found", receiverID))
	} else if err != nil {
		return nil, svcErr.Store(err)
	}

	blocked, err := s.rels.IsBlocked(ctx, senderID, receiverID)
	if err != nil {
		return nil, svcErr.Store(err)
	}
	if blocked {
		return nil, svcErr.Blocked()
	}

	matched, err := s.rels.HasMatch(ctx, senderID, receiverID)
	if err != nil {
		return nil, svcErr.Store(err)
	}
	if !matched {
		return nil, svcErr.NotMatched()
	}

	msg := &db.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, svcErr.Store(err)
	}

	if s.pusher != nil {
		s.pusher.Push(receiverID, "message", msg)
	}
	if s.notifier != nil {
		err := s.notifier.Emit(ctx, receiverID, db.NotificationMessage,
			fmt.Sprintf("%s sent you a message", sender.Username))
		if err != nil {
			s.appCtx.Logger.Warn("message notification failed", "receiver", receiverID, "err", err)
		}
	}

	return msg, nil
}

// Conversation returns the full message history between two users.
func (s *Service) Conversation(ctx context.Context, userID, otherID uint64) ([]db.Message, error) {
	messages, err := s.messages.Conversation(ctx, userID, otherID)
	if err != nil {
		return nil, svcErr.Store(err)
	}
	return messages, nil
}

// Recent returns the last count messages of a conversation in
// chronological order.
func (s *Service) Recent(ctx context.Context, userID, otherID uint64, count int) ([]db.Message, error) {
	if count <= 0 {
		count = 50
	}
	messages, err := s.messages.Recent(ctx, userID, otherID, count)
	if err != nil {
		return nil, svcErr.Store(err)
	}
	return messages, nil
}

// MarkRead flips the read flag on everything the counterpart sent to the
// receiver and tells the counterpart their messages were read.
func (s *Service) MarkRead(ctx context.Context, receiverID, senderID uint64) error {
	n, err := s.messages.MarkRead(ctx, receiverID, senderID)
	if err != nil {
		return svcErr.Store(err)
	}
	if n > 0 && s.pusher != nil {
		s.pusher.Push(senderID, "messages_read", map[string]any{"reader_id": receiverID})
	}
	return nil
}

// UnreadCount returns the user's total unread messages.
func (s *Service) UnreadCount(ctx context.Context, userID uint64) (int64, error) {
	count, err := s.messages.UnreadCount(ctx, userID)
	if err != nil {
		return 0, svcErr.Store(err)
	}
	return count, nil
}

// LastMessage returns the newest message between two users, or nil.
func (s *Service) LastMessage(ctx context.Context, userID, otherID uint64) (*db.Message, error) {
	msg, err := s.messages.LastMessage(ctx, userID, otherID)
	if err != nil {
		return nil, svcErr.Store(err)
	}
	return msg, nil
}

// Conversations groups the user's messages per counterpart, newest
// thread first, each with its last message and unread count.
func (s *Service) Conversations(ctx context.Context, userID uint64) ([]ConversationSummary, error) {
	messages, err := s.messages.AllForUser(ctx, userID)
	if err != nil {
		return nil, svcErr.Store(err)
	}

	unread, err := s.messages.UnreadCountBySender(ctx, userID)
	if err != nil {
		return nil, svcErr.Store(err)
	}

	// messages are newest first, so the first one seen per counterpart
	// is the thread's latest
	var order []uint64
	latest := make(map[uint64]db.Message)
	for _, m := range messages {
		other := m.SenderID
		if other == userID {
			other = m.ReceiverID
		}
		if _, seen := latest[other]; !seen {
			latest[other] = m
			order = append(order, other)
		}
	}

	users, err := s.users.ListByIDs(ctx, order)
	if err != nil {
		return nil, svcErr.Store(err)
	}
	byID := make(map[uint64]db.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	summaries := make([]ConversationSummary, 0, len(order))
	for _, other := range order {
		m := latest[other]
		sum := ConversationSummary{
			OtherUserID:     other,
			LastMessage:     m.Content,
			LastMessageTime: m.SentAt,
			UnreadCount:     unread[other],
		}
		if u, ok := byID[other]; ok {
			sum.OtherUsername = u.Username
			sum.OtherUserPhoto = u.ProfilePhotoURL
			sum.IsOnline = u.IsOnline
		}
		summaries = append(summaries, sum)
	}
	return summaries, nil
}
