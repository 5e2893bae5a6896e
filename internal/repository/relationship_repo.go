package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/webmatcha/matcha-go/internal/db"
	"github.com/webmatcha/matcha-go/internal/utils/pagination"
)

// CanonicalPair orders two user ids as (min, max), the storage key for a
// match. Both like directions resolve to the same pair, which is what
// prevents duplicate-direction match rows under concurrent reciprocal likes.
func CanonicalPair(a, b uint64) (uint64, uint64) {
	if a < b {
		return a, b
	}
	return b, a
}

// RelationshipRepository provides data access for the Like/Match/Block/
// Report fact tables. Mutations that must stay mutually consistent are
// run by the service layer inside one transaction via WithTx.
type RelationshipRepository struct {
	db *gorm.DB
}

// NewRelationshipRepository creates a new repository bound to the given DB connection.
func NewRelationshipRepository(database *gorm.DB) *RelationshipRepository {
	return &RelationshipRepository{db: database}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *RelationshipRepository) WithTx(tx *gorm.DB) *RelationshipRepository {
	return &RelationshipRepository{db: tx}
}

// --- likes ---

// CreateLike inserts the directed like and reports whether a row was
// actually created. A conflicting row (duplicate like) is left untouched,
// the composite PK plus DoNothing make the call race-safe.
func (r *RelationshipRepository) CreateLike(ctx context.Context, likerID, likedID uint64) (bool, error) {
	like := db.Like{LikerID: likerID, LikedID: likedID}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&like)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *RelationshipRepository) DeleteLike(ctx context.Context, likerID, likedID uint64) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("liker_id = ? AND liked_id = ?", likerID, likedID).
		Delete(&db.Like{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteLikesBetween removes both like directions between the pair.
// Part of the block cascade.
func (r *RelationshipRepository) DeleteLikesBetween(ctx context.Context, a, b uint64) error {
	return r.db.WithContext(ctx).
		Where("(liker_id = ? AND liked_id = ?) OR (liker_id = ? AND liked_id = ?)", a, b, b, a).
		Delete(&db.Like{}).Error
}

func (r *RelationshipRepository) HasLiked(ctx context.Context, likerID, likedID uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&db.Like{}).
		Where("liker_id = ? AND liked_id = ?", likerID, likedID).
		Count(&count).Error
	return count > 0, err
}

// GetLikers returns the likes received by a user, newest first, with
// cursor-based pagination.
func (r *RelationshipRepository) GetLikers(ctx context.Context, likedID uint64, paginationToken *string, limit int) ([]db.Like, *string, error) {
	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).Model(&db.Like{}).
		Where("liked_id = ?", likedID).
		Order("created_at DESC, liker_id DESC").
		Limit(limit + 1)

	if cursor.UserID > 0 && cursor.CreatedUnix > 0 {
		ts := time.UnixMilli(cursor.CreatedUnix)
		query = query.Where(
			"(created_at < ? OR (created_at = ? AND liker_id < ?))",
			ts, ts, cursor.UserID,
		)
	}

	var likes []db.Like
	if err := query.Find(&likes).Error; err != nil {
		return nil, nil, err
	}

	var nextToken *string
	if len(likes) > limit {
		last := likes[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			UserID:      last.LikerID,
			CreatedUnix: last.CreatedAt.UnixMilli(),
		})
		nextToken = &token
		likes = likes[:limit]
	}

	return likes, nextToken, nil
}

func (r *RelationshipRepository) CountLikesReceived(ctx context.Context, likedID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&db.Like{}).
		Where("liked_id = ?", likedID).
		Count(&count).Error
	return count, err
}

func (r *RelationshipRepository) ListLikedIDs(ctx context.Context, likerID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).Model(&db.Like{}).
		Where("liker_id = ?", likerID).
		Pluck("liked_id", &ids).Error
	return ids, err
}

func (r *RelationshipRepository) ListLikerIDs(ctx context.Context, likedID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).Model(&db.Like{}).
		Where("liked_id = ?", likedID).
		Pluck("liker_id", &ids).Error
	return ids, err
}

// --- matches ---

// CreateMatch inserts the match row keyed by the canonical (min,max)
// pair. Returns false if the row already existed.
func (r *RelationshipRepository) CreateMatch(ctx context.Context, a, b uint64) (bool, error) {
	lo, hi := CanonicalPair(a, b)
	match := db.Match{UserAID: lo, UserBID: hi}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&match)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *RelationshipRepository) DeleteMatch(ctx context.Context, a, b uint64) (bool, error) {
	lo, hi := CanonicalPair(a, b)
	res := r.db.WithContext(ctx).
		Where("user_a_id = ? AND user_b_id = ?", lo, hi).
		Delete(&db.Match{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *RelationshipRepository) HasMatch(ctx context.Context, a, b uint64) (bool, error) {
	lo, hi := CanonicalPair(a, b)
	var count int64
	err := r.db.WithContext(ctx).Model(&db.Match{}).
		Where("user_a_id = ? AND user_b_id = ?", lo, hi).
		Count(&count).Error
	return count > 0, err
}

func (r *RelationshipRepository) CountMatches(ctx context.Context, userID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&db.Match{}).
		Where("user_a_id = ? OR user_b_id = ?", userID, userID).
		Count(&count).Error
	return count, err
}

// ListMatchPartnerIDs returns the other side of every match the user is in.
func (r *RelationshipRepository) ListMatchPartnerIDs(ctx context.Context, userID uint64) ([]uint64, error) {
	var matches []db.Match
	err := r.db.WithContext(ctx).
		Where("user_a_id = ? OR user_b_id = ?", userID, userID).
		Find(&matches).Error
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(matches))
	for _, m := range matches {
		if m.UserAID == userID {
			ids = append(ids, m.UserBID)
		} else {
			ids = append(ids, m.UserAID)
		}
	}
	return ids, nil
}

// --- blocks ---

// CreateBlock inserts the directed block row. Returns false on duplicate.
func (r *RelationshipRepository) CreateBlock(ctx context.Context, blockerID, blockedID uint64) (bool, error) {
	block := db.Block{BlockerID: blockerID, BlockedID: blockedID}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&block)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *RelationshipRepository) DeleteBlock(ctx context.Context, blockerID, blockedID uint64) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Delete(&db.Block{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// IsBlocked is symmetric: a block in either direction counts.
func (r *RelationshipRepository) IsBlocked(ctx context.Context, a, b uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&db.Block{}).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)", a, b, b, a).
		Count(&count).Error
	return count > 0, err
}

// ListBlockedIDs returns users the given user has blocked (directed).
func (r *RelationshipRepository) ListBlockedIDs(ctx context.Context, blockerID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).Model(&db.Block{}).
		Where("blocker_id = ?", blockerID).
		Pluck("blocked_id", &ids).Error
	return ids, err
}

// ListBlockedEitherIDs returns every user involved in a block with the
// given user, in either direction. Used to filter suggestions and search.
func (r *RelationshipRepository) ListBlockedEitherIDs(ctx context.Context, userID uint64) ([]uint64, error) {
	var blocks []db.Block
	err := r.db.WithContext(ctx).
		Where("blocker_id = ? OR blocked_id = ?", userID, userID).
		Find(&blocks).Error
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(blocks))
	for _, b := range blocks {
		if b.BlockerID == userID {
			ids = append(ids, b.BlockedID)
		} else {
			ids = append(ids, b.BlockerID)
		}
	}
	return ids, nil
}

// --- reports ---

func (r *RelationshipRepository) CreateReport(ctx context.Context, reporterID, reportedID uint64, reason string) error {
	report := db.Report{
		ReporterID: reporterID,
		ReportedID: reportedID,
		Reason:     reason,
	}
	return r.db.WithContext(ctx).Create(&report).Error
}

// getString safely dereferences a string pointer for pagination tokens.
func getString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
