package fame

import (
	"context"

	"github.com/webmatcha/matcha-go/internal/app"
	"github.com/webmatcha/matcha-go/internal/db"
	"github.com/webmatcha/matcha-go/internal/repository"
)

// defaultAvatar is the placeholder assigned at registration; having it
// means the user never uploaded a profile photo.
const defaultAvatar = "/images/default-avatar.png"

// Scorer recomputes the bounded [0,100] fame score from profile
// completeness and interaction counts. Recompute is idempotent, callers
// fire it after views, likes and match changes without coordination.
type Scorer struct {
	appCtx *app.AppContext
	users  *repository.UserRepository
	rels   *repository.RelationshipRepository
	views  *repository.ProfileViewRepository
}

// NewScorer creates a Scorer with dependencies from AppContext.
func NewScorer(appCtx *app.AppContext) *Scorer {
	return &Scorer{
		appCtx: appCtx,
		users:  repository.NewUserRepository(appCtx.DB),
		rels:   repository.NewRelationshipRepository(appCtx.DB),
		views:  repository.NewProfileViewRepository(appCtx.DB),
	}
}

// Score is the pure formula.
//
// Profile completeness contributes up to 20 points (5 each for a
// non-default avatar, at least one extra photo, a biography over 50
/// chars, and 3+ interest tags). Popularity contributes up to 80:
// min(views/10, 20) + min(likes*2, 30) + min(matches*5, 30). All terms
// saturate, so arbitrarily large counts stay inside [0,100].
func Score(u *db.User, viewCount, likeCount, matchCount int64) int {
	score := 0

	if u.ProfilePhotoURL != "" && u.ProfilePhotoURL != defaultAvatar {
		score += 5
	}
	if len(u.PhotoURLs) > 0 {
		score += 5
	}
	if len(u.Biography) > 50 {
		score += 5
	}
	if len(u.InterestTags) >= 3 {
		score += 5
	}

	score += capInt(viewCount/10, 20)
	score += capInt(likeCount*2, 30)
	score += capInt(matchCount*5, 30)

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// Recompute reloads the counts, recalculates the score and persists it.
// The fresh value is also written to the Redis cache.
func (s *Scorer) Recompute(ctx context.Context, userID uint64) (int, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return 0, err
	}

	viewCount, err := s.views.CountViews(ctx, userID)
	if err != nil {
		return 0, err
	}
	likeCount, err := s.rels.CountLikesReceived(ctx, userID)
	if err != nil {
		return 0, err
	}
	matchCount, err := s.rels.CountMatches(ctx, userID)
	if err != nil {
		return 0, err
	}

	score := Score(user, viewCount, likeCount, matchCount)
	if err := s.users.UpdateFame(ctx, userID, score); err != nil {
		return 0, err
	}

	if cacheErr := s.appCtx.RedisCache.SetFame(ctx, userID, score); cacheErr != nil {
		s.appCtx.Logger.Warn("fame cache update failed", "user", userID, "err", cacheErr)
	}

	return score, nil
}

func capInt(v int64, max int64) int {
	if v > max {
		return int(max)
	}
	return int(v)
}
