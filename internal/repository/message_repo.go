package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/webmatcha/matcha-go/internal/db"
)

// MessageRepository provides data access for the Message model.
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new repository bound to the given DB connection.
func NewMessageRepository(database *gorm.DB) *MessageRepository {
	return &MessageRepository{db: database}
}

func (r *MessageRepository) Create(ctx context.Context, m *db.Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// Conversation returns all messages between two users, oldest first.
func (r *MessageRepository) Conversation(ctx context.Context, a, b uint64) ([]db.Message, error) {
	var messages []db.Message
	err := r.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a).
		Order("sent_at ASC").
		Find(&messages).Error
	return messages, err
}

// Recent returns the last count messages of a conversation, in
// chronological order.
func (r *MessageRepository) Recent(ctx context.Context, a, b uint64, count int) ([]db.Message, error) {
	var messages []db.Message
	err := r.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a).
		Order("sent_at DESC").
		Limit(count).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	// reverse into chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// MarkRead flips the read flag on every message sent by sender to
// receiver. Returns the number of rows updated.
func (r *MessageRepository) MarkRead(ctx context.Context, receiverID, senderID uint64) (int64, error) {
	res := r.db.WithContext(ctx).Model(&db.Message{}).
		Where("sender_id = ? AND receiver_id = ? AND `read` = ?", senderID, receiverID, false).
		Update("read", true)
	return res.RowsAffected, res.Error
}

// UnreadCount returns the user's total unread messages.
func (r *MessageRepository) UnreadCount(ctx context.Context, userID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&db.Message{}).
		Where("receiver_id = ? AND `read` = ?", userID, false).
		Count(&count).Error
	return count, err
}

// UnreadCountBySender returns unread counts keyed by sender id.
func (r *MessageRepository) UnreadCountBySender(ctx context.Context, userID uint64) (map[uint64]int64, error) {
	type row struct {
		SenderID uint64
		Count    int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&db.Message{}).
		Select("sender_id, COUNT(*) as count").
		Where("receiver_id = ? AND `read` = ?", userID, false).
		Group("sender_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[uint64]int64, len(rows))
	for _, r := range rows {
		counts[r.SenderID] = r.Count
	}
	return counts, nil
}

// LastMessage returns the newest message between two users, or nil.
func (r *MessageRepository) LastMessage(ctx context.Context, a, b uint64) (*db.Message, error) {
	var msg db.Message
	err := r.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a).
		Order("sent_at DESC").
		First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// AllForUser returns every message the user sent or received, newest
// first. Conversation summaries are grouped from this in the service.
func (r *MessageRepository) AllForUser(ctx context.Context, userID uint64) ([]db.Message, error) {
	var messages []db.Message
	err := r.db.WithContext(ctx).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order("sent_at DESC").
		Find(&messages).Error
	return messages, err
}
