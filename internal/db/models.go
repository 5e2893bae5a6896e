package db

import (
	"time"
)

// NotificationType is the closed set of events the notification feed carries.
type NotificationType string

const (
	NotificationLike    NotificationType = "like"
	NotificationUnlike  NotificationType = "unlike"
	NotificationView    NotificationType = "view"
	NotificationMatch   NotificationType = "match"
	NotificationMessage NotificationType = "message"
)

// User table
type User struct {
	ID               uint64 `gorm:"primaryKey;autoIncrement"`
	Username         string `gorm:"uniqueIndex;size:64;not null"`
	Email            string `gorm:"uniqueIndex;size:128;not null"`
	PasswordHash     string `gorm:"size:255;not null"`
	FirstName        string `gorm:"size:64"`
	LastName         string `gorm:"size:64"`
	BirthDate        time.Time
	Gender           string   `gorm:"size:16;not null"`
	SexualPreference string   `gorm:"size:16"`
	Biography        string   `gorm:"type:text"`
	InterestTags     []string `gorm:"serializer:json"`
	ProfilePhotoURL  string   `gorm:"size:255;default:'/images/default-avatar.png'"`
	PhotoURLs        []string `gorm:"serializer:json"`
	Latitude         float64
	Longitude        float64
	FameRating       int  `gorm:"default:0"`
	IsOnline         bool `gorm:"default:false"`
	LastSeen         time.Time
	IsEmailVerified  bool `gorm:"default:false"`
	EmailVerifiedAt  *time.Time
	Active           bool `gorm:"default:true"`
	DeactivatedAt    *time.Time
	CreatedAt        time.Time `gorm:"autoCreateTime"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}

// Like is a directed "liker likes liked" fact.
//
// Composite PK: (LikerID, LikedID)
//   - At most one like per ordered pair; re-liking is a no-op upstream.
//
// Index idx_liked_created(liked_id, created_at DESC) backs "who liked me"
// listings with cursor pagination.
type Like struct {
	LikerID   uint64    `gorm:"primaryKey"`
	LikedID   uint64    `gorm:"primaryKey;index:idx_liked_created,priority:1"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_liked_created,priority:2,sort:desc"`
}

// Match is the derived reciprocal-like relationship.
//
// The pair is stored canonically as (min(id), max(id)) so a match formed
// from either direction lands on the same composite PK. That key is the
// guard against duplicate rows under concurrent reciprocal likes.
type Match struct {
	UserAID   uint64    `gorm:"primaryKey"`
	UserBID   uint64    `gorm:"primaryKey"`
	MatchedAt time.Time `gorm:"autoCreateTime"`
}

// Block is a directed "blocker blocked" fact. Creating one cascades:
// both like directions and any match between the pair are removed in the
// same transaction.
type Block struct {
	BlockerID uint64    `gorm:"primaryKey"`
	BlockedID uint64    `gorm:"primaryKey;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Report of one user against another. Filing a report auto-blocks the
// reported user for the reporter.
type Report struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	ReporterID uint64    `gorm:"not null;index"`
	ReportedID uint64    `gorm:"not null;index"`
	Reason     string    `gorm:"size:255;not null"`
	Resolved   bool      `gorm:"default:false"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

// ProfileView records one user viewing another's profile. Repeat views
// inside the cool-down window are not recorded (checked upstream against
// the most recent row for the pair).
type ProfileView struct {
	ID       uint64    `gorm:"primaryKey;autoIncrement"`
	ViewerID uint64    `gorm:"not null;index:idx_viewer_viewed,priority:1"`
	ViewedID uint64    `gorm:"not null;index:idx_viewer_viewed,priority:2;index:idx_viewed_at,priority:1"`
	ViewedAt time.Time `gorm:"autoCreateTime;index:idx_viewer_viewed,priority:3,sort:desc;index:idx_viewed_at,priority:2,sort:desc"`
}

// Notification is a pure event log entry for a recipient.
type Notification struct {
	ID        uint64           `gorm:"primaryKey;autoIncrement"`
	UserID    uint64           `gorm:"not null;index:idx_user_created,priority:1"`
	Type      NotificationType `gorm:"size:16;not null"`
	Message   string           `gorm:"size:255;not null"`
	Read      bool             `gorm:"default:false"`
	CreatedAt time.Time        `gorm:"autoCreateTime;index:idx_user_created,priority:2,sort:desc"`
}

// Message between two matched users.
type Message struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	SenderID   uint64    `gorm:"not null;index:idx_sender_receiver,priority:1"`
	ReceiverID uint64    `gorm:"not null;index:idx_sender_receiver,priority:2;index"`
	Content    string    `gorm:"type:text;not null"`
	SentAt     time.Time `gorm:"autoCreateTime"`
	Read       bool      `gorm:"default:false"`
}

// EmailVerification holds a one-shot token mailed after registration.
type EmailVerification struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	UserID    uint64    `gorm:"not null;index"`
	Token     string    `gorm:"uniqueIndex;size:64;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	ExpiresAt time.Time `gorm:"not null"`
	Used      bool      `gorm:"default:false"`
}

// PasswordReset holds a one-shot token mailed on a reset request.
type PasswordReset struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	UserID    uint64    `gorm:"not null;index"`
	Token     string    `gorm:"uniqueIndex;size:64;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	ExpiresAt time.Time `gorm:"not null"`
	Used      bool      `gorm:"default:false"`
}
