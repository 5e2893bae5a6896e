package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/webmatcha/matcha-go/internal/db"
)

// TokenRepository provides data access for one-shot auth tokens
// (email verification and password reset).
type TokenRepository struct {
	db *gorm.DB
}

// NewTokenRepository creates a new repository bound to the given DB connection.
func NewTokenRepository(database *gorm.DB) *TokenRepository {
	return &TokenRepository{db: database}
}

func (r *TokenRepository) CreateEmailVerification(ctx context.Context, userID uint64, token string, ttl time.Duration) error {
	v := db.EmailVerification{
		UserID:    userID,
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(ttl),
	}
	return r.db.WithContext(ctx).Create(&v).Error
}

// FindActiveEmailVerification returns the unused verification row for the
// token, or nil when the token is unknown or already used. Expiry is
// checked by the caller so the same "invalid or expired" answer applies.
func (r *TokenRepository) FindActiveEmailVerification(ctx context.Context, token string) (*db.EmailVerification, error) {
	var v db.EmailVerification
	err := r.db.WithContext(ctx).
		Where("token = ? AND used = ?", token, false).
		First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *TokenRepository) MarkEmailVerificationUsed(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Model(&db.EmailVerification{}).
		Where("id = ?", id).
		Update("used", true).Error
}

func (r *TokenRepository) CreatePasswordReset(ctx context.Context, userID uint64, token string, ttl time.Duration) error {
	p := db.PasswordReset{
		UserID:    userID,
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(ttl),
	}
	return r.db.WithContext(ctx).Create(&p).Error
}

func (r *TokenRepository) FindActivePasswordReset(ctx context.Context, token string) (*db.PasswordReset, error) {
	var p db.PasswordReset
	err := r.db.WithContext(ctx).
		Where("token = ? AND used = ?", token, false).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *TokenRepository) MarkPasswordResetUsed(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Model(&db.PasswordReset{}).
		Where("id = ?", id).
		Update("used", true).Error
}
