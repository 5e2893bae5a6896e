package relationship

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/webmatcha/matcha-go/internal/app"
	"github.com/webmatcha/matcha-go/internal/db"
	svcErr "github.com/webmatcha/matcha-go/internal/errors"
	"github.com/webmatcha/matcha-go/internal/repository"
	"github.com/webmatcha/matcha-go/internal/service/fame"
	"github.com/webmatcha/matcha-go/internal/service/notification"
)

// Outcome tells the caller what a mutating ledger operation actually did.
// Duplicates are benign no-ops, not failures.
type Outcome string

const (
	OutcomeCreated  Outcome = "created"
	OutcomeAlready  Outcome = "already"
	OutcomeRemoved  Outcome = "removed"
	OutcomeNotFound Outcome = "not_found"
)

// LikeResult is the outcome of Like, with Matched set when the like
// completed a reciprocal pair and materialized a match.
type LikeResult struct {
	Outcome Outcome
	Matched bool
}

// PairStatus is the derived relationship state of a user pair. It is
// never stored, always recomputed from the fact tables.
type PairStatus string

const (
	StatusUnconnected PairStatus = "unconnected"
	StatusOneWayLiked PairStatus = "one_way_liked"
	StatusMatched     PairStatus = "matched"
	StatusBlocked     PairStatus = "blocked"
)

// Service is the relationship ledger plus the match engine: likes,
// blocks, reports, and the transactional rules keeping the Like/Match/
// Block tables mutually consistent.
//
// Every mutating operation runs its storage steps inside one
// transaction; notifications, cache updates and fame recomputes happen
// after commit and are best-effort.
type Service struct {
	appCtx   *app.AppContext
	users    *repository.UserRepository
	rels     *repository.RelationshipRepository
	notifier *notification.Service
	scorer   *fame.Scorer
}

// NewService creates the relationship service with dependencies from AppContext.
func NewService(appCtx *app.AppContext, notifier *notification.Service, scorer *fame.Scorer) *Service {
	return &Service{
		appCtx:   appCtx,
		users:    repository.NewUserRepository(appCtx.DB),
		rels:     repository.NewRelationshipRepository(appCtx.DB),
		notifier: notifier,
		scorer:   scorer,
	}
}

// Like records liker -> liked and, when the reciprocal like already
// exists and no block is in place, forms the match in the same
// transaction.
//
// Outcomes:
//   - OutcomeCreated: the like was inserted; Matched reports whether a
//     match was formed.
//   - OutcomeAlready: the ordered pair was already liked; nothing changed.
//
// Self-likes are rejected with a ValidationError, unknown users with a
// NotFoundError.
func (s *Service) Like(ctx context.Context, likerID, likedID uint64) (LikeResult, error) {
	if likerID == likedID {
		return LikeResult{}, svcErr.Validation("cannot like yourself")
	}

	liker, liked, err := s.lookupPair(ctx, likerID, likedID)
	if err != nil {
		return LikeResult{}, err
	}

	var result LikeResult
	err = s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rels := s.rels.WithTx(tx)

		created, err := rels.CreateLike(ctx, likerID, likedID)
		if err != nil {
			return err
		}
		if !created {
			result = LikeResult{Outcome: OutcomeAlready}
			return nil
		}

		matched, err := s.tryFormMatch(ctx, rels, likerID, likedID)
		if err != nil {
			return err
		}
		result = LikeResult{Outcome: OutcomeCreated, Matched: matched}
		return nil
	})
	if err != nil {
		return LikeResult{}, svcErr.Store(err)
	}

	if result.Outcome != OutcomeCreated {
		return result, nil
	}

	if err := s.appCtx.RedisCache.IncrLikeCount(ctx, likedID); err != nil {
		s.appCtx.Logger.Warn("like count cache incr failed", "user", likedID, "err", err)
	}

	if result.Matched {
		s.emit(ctx, likedID, db.NotificationMatch, fmt.Sprintf("You matched with %s!", liker.Username))
		s.emit(ctx, likerID, db.NotificationMatch, fmt.Sprintf("You matched with %s!", liked.Username))
		s.recomputeFame(ctx, likerID)
	} else {
		s.emit(ctx, likedID, db.NotificationLike, fmt.Sprintf("%s liked your profile", liker.Username))
	}
	s.recomputeFame(ctx, likedID)

	return result, nil
}

// Unlike removes liker -> liked. A match resting on that like is
// dissolved in the same transaction; the reverse like, if present, is
// untouched.
func (s *Service) Unlike(ctx context.Context, likerID, likedID uint64) (Outcome, error) {
	liker, _, err := s.lookupPair(ctx, likerID, likedID)
	if err != nil {
		return "", err
	}

	outcome := OutcomeNotFound
	dissolved := false
	err = s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rels := s.rels.WithTx(tx)

		removed, err := rels.DeleteLike(ctx, likerID, likedID)
		if err != nil {
			return err
		}
		if !removed {
			return nil
		}
		outcome = OutcomeRemoved
		dissolved, err = s.dissolveMatch(ctx, rels, likerID, likedID)
		return err
	})
	if err != nil {
		return "", svcErr.Store(err)
	}

	if outcome != OutcomeRemoved {
		return outcome, nil
	}

	if err := s.appCtx.RedisCache.DecrLikeCount(ctx, likedID); err != nil {
		s.appCtx.Logger.Warn("like count cache decr failed", "user", likedID, "err", err)
	}

	s.emit(ctx, likedID, db.NotificationUnlike, fmt.Sprintf("%s unliked your profile", liker.Username))
	s.recomputeFame(ctx, likedID)
	if dissolved {
		// the unliker lost a match too
		s.recomputeFame(ctx, likerID)
	}

	return outcome, nil
}

// Block inserts the block and cascades: both like directions and any
// match between the pair are deleted in the same transaction. All steps
// commit or none do.
func (s *Service) Block(ctx context.Context, blockerID, blockedID uint64) (Outcome, error) {
	if blockerID == blockedID {
		return "", svcErr.Validation("cannot block yourself")
	}
	if _, _, err := s.lookupPair(ctx, blockerID, blockedID); err != nil {
		return "", err
	}

	outcome := OutcomeAlready
	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rels := s.rels.WithTx(tx)

		created, err := rels.CreateBlock(ctx, blockerID, blockedID)
		if err != nil {
			return err
		}
		if !created {
			return nil
		}
		outcome = OutcomeCreated

		if err := rels.DeleteLikesBetween(ctx, blockerID, blockedID); err != nil {
			return err
		}
		_, err = s.dissolveMatch(ctx, rels, blockerID, blockedID)
		return err
	})
	if err != nil {
		return "", svcErr.Store(err)
	}

	if outcome == OutcomeCreated {
		// like counts for both sides may have changed; drop the cached values
		_ = s.appCtx.RedisCache.Del(ctx, s.appCtx.RedisCache.KeyForLikeCount(blockerID))
		_ = s.appCtx.RedisCache.Del(ctx, s.appCtx.RedisCache.KeyForLikeCount(blockedID))
		s.recomputeFame(ctx, blockerID)
		s.recomputeFame(ctx, blockedID)
	}

	return outcome, nil
}

// Unblock removes blocker -> blocked. Likes and matches are not
// restored; the pair starts over from Unconnected.
func (s *Service) Unblock(ctx context.Context, blockerID, blockedID uint64) (Outcome, error) {
	removed, err := s.rels.DeleteBlock(ctx, blockerID, blockedID)
	if err != nil {
		return "", svcErr.Store(err)
	}
	if !removed {
		return OutcomeNotFound, nil
	}
	return OutcomeRemoved, nil
}

// Report files a report and auto-blocks the reported user for the
// reporter, with the full block cascade, in one transaction.
func (s *Service) Report(ctx context.Context, reporterID, reportedID uint64, reason string) error {
	if reporterID == reportedID {
		return svcErr.Validation("cannot report yourself")
	}
	if reason == "" {
		return svcErr.Validation("report reason is required")
	}
	if _, _, err := s.lookupPair(ctx, reporterID, reportedID); err != nil {
		return err
	}

	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rels := s.rels.WithTx(tx)

		if err := rels.CreateReport(ctx, reporterID, reportedID, reason); err != nil {
			return err
		}
		if _, err := rels.CreateBlock(ctx, reporterID, reportedID); err != nil {
			return err
		}
		if err := rels.DeleteLikesBetween(ctx, reporterID, reportedID); err != nil {
			return err
		}
		_, err := s.dissolveMatch(ctx, rels, reporterID, reportedID)
		return err
	})
	if err != nil {
		return svcErr.Store(err)
	}

	_ = s.appCtx.RedisCache.Del(ctx, s.appCtx.RedisCache.KeyForLikeCount(reporterID))
	_ = s.appCtx.RedisCache.Del(ctx, s.appCtx.RedisCache.KeyForLikeCount(reportedID))
	s.recomputeFame(ctx, reporterID)
	s.recomputeFame(ctx, reportedID)

	return nil
}

// IsBlocked reports whether a block exists in either direction.
func (s *Service) IsBlocked(ctx context.Context, a, b uint64) (bool, error) {
	blocked, err := s.rels.IsBlocked(ctx, a, b)
	if err != nil {
		return false, svcErr.Store(err)
	}
	return blocked, nil
}

// IsMatched reports whether the pair has a match.
func (s *Service) IsMatched(ctx context.Context, a, b uint64) (bool, error) {
	matched, err := s.rels.HasMatch(ctx, a, b)
	if err != nil {
		return false, svcErr.Store(err)
	}
	return matched, nil
}

// Status derives the pair's relationship state from the fact tables.
// Blocked wins over everything; Matched over one-way likes.
func (s *Service) Status(ctx context.Context, a, b uint64) (PairStatus, error) {
	blocked, err := s.rels.IsBlocked(ctx, a, b)
	if err != nil {
		return "", svcErr.Store(err)
	}
	if blocked {
		return StatusBlocked, nil
	}

	matched, err := s.rels.HasMatch(ctx, a, b)
	if err != nil {
		return "", svcErr.Store(err)
	}
	if matched {
		return StatusMatched, nil
	}

	ab, err := s.rels.HasLiked(ctx, a, b)
	if err != nil {
		return "", svcErr.Store(err)
	}
	ba, err := s.rels.HasLiked(ctx, b, a)
	if err != nil {
		return "", svcErr.Store(err)
	}
	if ab || ba {
		return StatusOneWayLiked, nil
	}
	return StatusUnconnected, nil
}

// GetLikers lists users who liked the recipient, newest first, paged.
func (s *Service) GetLikers(ctx context.Context, userID uint64, paginationToken *string, limit int) ([]db.User, *string, error) {
	likes, nextToken, err := s.rels.GetLikers(ctx, userID, paginationToken, limit)
	if err != nil {
		return nil, nil, svcErr.Store(err)
	}

	ids := make([]uint64, 0, len(likes))
	for _, l := range likes {
		ids = append(ids, l.LikerID)
	}
	users, err := s.users.ListByIDs(ctx, ids)
	if err != nil {
		return nil, nil, svcErr.Store(err)
	}
	return orderByIDs(users, ids), nextToken, nil
}

// CountLikesReceived is cache-first: Redis likes:count key, DB fallback
// with a cache refresh on miss.
func (s *Service) CountLikesReceived(ctx context.Context, userID uint64) (int64, error) {
	if n, hit, err := s.appCtx.RedisCache.GetLikeCount(ctx, userID); err == nil && hit {
		return n, nil
	}

	count, err := s.rels.CountLikesReceived(ctx, userID)
	if err != nil {
		return 0, svcErr.Store(err)
	}
	if err := s.appCtx.RedisCache.SetLikeCount(ctx, userID, count); err != nil {
		s.appCtx.Logger.Warn("like count cache set failed", "user", userID, "err", err)
	}
	return count, nil
}

// ListMatches returns the user's match partners.
func (s *Service) ListMatches(ctx context.Context, userID uint64) ([]db.User, error) {
	ids, err := s.rels.ListMatchPartnerIDs(ctx, userID)
	if err != nil {
		return nil, svcErr.Store(err)
	}
	users, err := s.users.ListByIDs(ctx, ids)
	if err != nil {
		return nil, svcErr.Store(err)
	}
	return users, nil
}

// ListBlocked returns the users this user has blocked.
func (s *Service) ListBlocked(ctx context.Context, userID uint64) ([]db.User, error) {
	ids, err := s.rels.ListBlockedIDs(ctx, userID)
	if err != nil {
		return nil, svcErr.Store(err)
	}
	users, err := s.users.ListByIDs(ctx, ids)
	if err != nil {
		return nil, svcErr.Store(err)
	}
	return users, nil
}

// tryFormMatch is the match engine's derivation rule: a match exists iff
// both like directions exist and no block does. Runs inside the caller's
// transaction; the canonical key makes the insert race-safe.
func (s *Service) tryFormMatch(ctx context.Context, rels *repository.RelationshipRepository, a, b uint64) (bool, error) {
	reciprocal, err := rels.HasLiked(ctx, b, a)
	if err != nil {
		return false, err
	}
	if !reciprocal {
		return false, nil
	}

	blocked, err := rels.IsBlocked(ctx, a, b)
	if err != nil {
		return false, err
	}
	if blocked {
		return false, nil
	}

	return rels.CreateMatch(ctx, a, b)
}

// dissolveMatch removes the match row if present. Called whenever a like
// is removed or a block is created between the pair.
func (s *Service) dissolveMatch(ctx context.Context, rels *repository.RelationshipRepository, a, b uint64) (bool, error) {
	return rels.DeleteMatch(ctx, a, b)
}

func (s *Service) lookupPair(ctx context.Context, aID, bID uint64) (*db.User, *db.User, error) {
	a, err := s.users.GetByID(ctx, aID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, svcErr.NotFound(fmt.Sprintf("user %d not found", aID))
	} else if err != nil {
		return nil, nil, svcErr.Store(err)
	}
	b, err := s.users.GetByID(ctx, bID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, svcErr.NotFound(fmt.Sprintf("user %d not found", bID))
	} else if err != nil {
		return nil, nil, svcErr.Store(err)
	}
	return a, b, nil
}

func (s *Service) emit(ctx context.Context, userID uint64, typ db.NotificationType, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Emit(ctx, userID, typ, message); err != nil {
		s.appCtx.Logger.Warn("notification emit failed", "user", userID, "type", typ, "err", err)
	}
}

func (s *Service) recomputeFame(ctx context.Context, userID uint64) {
	if s.scorer == nil {
		return
	}
	if _, err := s.scorer.Recompute(ctx, userID); err != nil {
		s.appCtx.Logger.Warn("fame recompute failed", "user", userID, "err", err)
	}
}

// orderByIDs re-sorts users into the order of ids (the page order).
func orderByIDs(users []db.User, ids []uint64) []db.User {
	byID := make(map[uint64]db.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	out := make([]db.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, u)
		}
	}
	return out
}
