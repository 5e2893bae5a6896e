package profile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/webmatcha/matcha-go/internal/app"
	"github.com/webmatcha/matcha-go/internal/db"
	svcErr "github.com/webmatcha/matcha-go/internal/errors"
	"github.com/webmatcha/matcha-go/internal/repository"
	"github.com/webmatcha/matcha-go/internal/service/fame"
	"github.com/webmatcha/matcha-go/internal/service/notification"
	"github.com/webmatcha/matcha-go/internal/utils/geo"
)

// Candidate is a profile scored for browsing: the user plus their
// distance from the requester.
type Candidate struct {
	User       db.User `json:"user"`
	DistanceKm float64 `json:"distance_km"`
}

// SearchFilter narrows a profile search. Zero values mean "no filter".
type SearchFilter struct {
	AgeMin        int
	AgeMax        int
	FameMin       int
	MaxDistanceKm float64
	Tags          []string
}

// UpdateInput carries the editable profile fields. Nil pointers leave
// the current value untouched.
type UpdateInput struct {
	FirstName        *string
	LastName         *string
	Biography        *string
	Gender           *string
	SexualPreference *string
	InterestTags     []string
	ProfilePhotoURL  *string
	PhotoURLs        []string
	Latitude         *float64
	Longitude        *float64
}

// Service covers profile reads, edits, browsing and the view log.
type Service struct {
	appCtx   *app.AppContext
	users    *repository.UserRepository
	rels     *repository.RelationshipRepository
	views    *repository.ProfileViewRepository
	notifier *notification.Service
	scorer   *fame.Scorer
}

func NewService(appCtx *app.AppContext, notifier *notification.Service, scorer *fame.Scorer) *Service {
	return &Service{
		appCtx:   appCtx,
		users:    repository.NewUserRepository(appCtx.DB),
		rels:     repository.NewRelationshipRepository(appCtx.DB),
		views:    repository.NewProfileViewRepository(appCtx.DB),
		notifier: notifier,
		scorer:   scorer,
	}
}

// Get returns a user's profile.
func (s *Service) Get(ctx context.Context, userID uint64) (*db.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.NotFound(fmt.Sprintf("user %d not found", userID))
	} else if err != nil {
		return nil, svcErr.Store(err)
	}
	return u, nil
}

// RecordView logs that viewer looked at viewed. Self views and views
// across a block are silently skipped, and a repeat view inside the
// cool-down window does not produce a new row or notification.
func (s *Service) RecordView(ctx context.Context, viewerID, viewedID uint64) error {
	if viewerID == viewedID {
		return nil
	}

	blocked, err := s.rels.IsBlocked(ctx, viewerID, viewedID)
	if err != nil {
		return svcErr.Store(err)
	}
	if blocked {
		return nil
	}

	last, err := s.views.LatestView(ctx, viewerID, viewedID)
	if err != nil {
		return svcErr.Store(err)
	}
	if last != nil && time.Since(last.ViewedAt) < s.appCtx.Config.Profile.ViewCooldown {
		return nil
	}

	if err := s.views.Create(ctx, viewerID, viewedID); err != nil {
		return svcErr.Store(err)
	}

	if s.notifier != nil {
		viewer, err := s.users.GetByID(ctx, viewerID)
		if err == nil {
			err = s.notifier.Emit(ctx, viewedID, db.NotificationView,
				fmt.Sprintf("%s viewed your profile", viewer.Username))
		}
		if err != nil {
			s.appCtx.Logger.Warn("view notification failed", "viewed", viewedID, "err", err)
		}
	}
	if s.scorer != nil {
		if _, err := s.scorer.Recompute(ctx, viewedID); err != nil {
			s.appCtx.Logger.Warn("fame recompute failed", "user", viewedID, "err", err)
		}
	}
	return nil
}

// ListViewers returns who viewed the user's profile, most recent first.
func (s *Service) ListViewers(ctx context.Context, userID uint64, limit int) ([]db.User, error) {
	if limit <= 0 {
		limit = 50
	}
	ids, err := s.views.ListViewerIDs(ctx, userID, limit)
	if err != nil {
		return nil, svcErr.Store(err)
	}
	users, err := s.users.ListByIDs(ctx, ids)
	if err != nil {
		return nil, svcErr.Store(err)
	}
	return orderByIDs(users, ids), nil
}

// Update applies profile edits and recomputes fame, since completeness
// feeds the score.
func (s *Service) Update(ctx context.Context, userID uint64, in UpdateInput) (*db.User, error) {
	u, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	var problems []string
	if in.Gender != nil && !validGender(*in.Gender) {
		problems = append(problems, "gender must be male, female or other")
	}
	if in.SexualPreference != nil && !validPreference(*in.SexualPreference) {
		problems = append(problems, "sexual preference must be male, female or both")
	}
	if in.Biography != nil && len(*in.Biography) > 2000 {
		problems = append(problems, "biography must be at most 2000 characters")
	}
	if len(problems) > 0 {
		return nil, svcErr.Validation(problems...)
	}

	if in.FirstName != nil {
		u.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		u.LastName = *in.LastName
	}
	if in.Biography != nil {
		u.Biography = *in.Biography
	}
	if in.Gender != nil {
		u.Gender = *in.Gender
	}
	if in.SexualPreference != nil {
		u.SexualPreference = *in.SexualPreference
	}
	if in.InterestTags != nil {
		u.InterestTags = in.InterestTags
	}
	if in.ProfilePhotoURL != nil {
		u.ProfilePhotoURL = *in.ProfilePhotoURL
	}
	if in.PhotoURLs != nil {
		u.PhotoURLs = in.PhotoURLs
	}
	if in.Latitude != nil {
		u.Latitude = *in.Latitude
	}
	if in.Longitude != nil {
		u.Longitude = *in.Longitude
	}

	if err := s.users.Save(ctx, u); err != nil {
		return nil, svcErr.Store(err)
	}

	if s.scorer != nil {
		if fameScore, err := s.scorer.Recompute(ctx, userID); err != nil {
			s.appCtx.Logger.Warn("fame recompute failed", "user", userID, "err", err)
		} else {
			u.FameRating = fameScore
		}
	}
	return u, nil
}

// Suggestions returns browsable candidates for the user: active profiles
// matching their gender preference, minus anyone blocked in either
// direction or already liked, nearest first with fame breaking ties.
func (s *Service) Suggestions(ctx context.Context, userID uint64, limit int) ([]Candidate, error) {
	if limit <= 0 {
		limit = 20
	}

	self, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	exclude, err := s.excludedIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	gender := ""
	if pref := strings.ToLower(self.SexualPreference); pref == "male" || pref == "female" {
		gender = pref
	}

	// over-fetch so post-filtering still fills the page
	users, err := s.users.ListCandidates(ctx, userID, exclude, gender, limit*2)
	if err != nil {
		return nil, svcErr.Store(err)
	}

	candidates := make([]Candidate, 0, len(users))
	for _, u := range users {
		candidates = append(candidates, Candidate{
			User:       u,
			DistanceKm: geo.DistanceKm(self.Latitude, self.Longitude, u.Latitude, u.Longitude),
		})
	}
	sortCandidates(candidates)

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// Search filters the candidate pool by age, fame, distance and shared
// tags, returning the same ordering as Suggestions.
func (s *Service) Search(ctx context.Context, userID uint64, filter SearchFilter, limit int) ([]Candidate, error) {
	if limit <= 0 {
		limit = 20
	}
	if filter.AgeMin > 0 && filter.AgeMax > 0 && filter.AgeMin > filter.AgeMax {
		return nil, svcErr.Validation("age minimum exceeds maximum")
	}

	self, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	exclude, err := s.excludedIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	users, err := s.users.ListCandidates(ctx, userID, exclude, "", 0)
	if err != nil {
		return nil, svcErr.Store(err)
	}

	now := time.Now().UTC()
	candidates := make([]Candidate, 0, len(users))
	for _, u := range users {
		if filter.FameMin > 0 && u.FameRating < filter.FameMin {
			continue
		}
		age := ageAt(u.BirthDate, now)
		if filter.AgeMin > 0 && age < filter.AgeMin {
			continue
		}
		if filter.AgeMax > 0 && age > filter.AgeMax {
			continue
		}
		if len(filter.Tags) > 0 && !sharesTag(u.InterestTags, filter.Tags) {
			continue
		}
		dist := geo.DistanceKm(self.Latitude, self.Longitude, u.Latitude, u.Longitude)
		if filter.MaxDistanceKm > 0 && dist > filter.MaxDistanceKm {
			continue
		}
		candidates = append(candidates, Candidate{User: u, DistanceKm: dist})
	}
	sortCandidates(candidates)

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// Deactivate soft-disables the account, hiding it from browsing.
func (s *Service) Deactivate(ctx context.Context, userID uint64) error {
	if _, err := s.Get(ctx, userID); err != nil {
		return err
	}
	return svcErr.Store(s.users.Deactivate(ctx, userID))
}

// Delete permanently removes the account and everything referencing it.
func (s *Service) Delete(ctx context.Context, userID uint64) error {
	if _, err := s.Get(ctx, userID); err != nil {
		return err
	}
	if err := s.users.HardDelete(ctx, userID); err != nil {
		return svcErr.Store(err)
	}
	s.appCtx.Logger.Info("account deleted", "user", userID)
	return nil
}

// excludedIDs is the browse exclusion set: anyone blocked in either
// direction plus anyone already liked.
func (s *Service) excludedIDs(ctx context.Context, userID uint64) ([]uint64, error) {
	blocked, err := s.rels.ListBlockedEitherIDs(ctx, userID)
	if err != nil {
		return nil, svcErr.Store(err)
	}
	liked, err := s.rels.ListLikedIDs(ctx, userID)
	if err != nil {
		return nil, svcErr.Store(err)
	}

	seen := make(map[uint64]struct{}, len(blocked)+len(liked))
	out := make([]uint64, 0, len(blocked)+len(liked))
	for _, id := range append(blocked, liked...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

func sortCandidates(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].DistanceKm != candidates[j].DistanceKm {
			return candidates[i].DistanceKm < candidates[j].DistanceKm
		}
		return candidates[i].User.FameRating > candidates[j].User.FameRating
	})
}

func ageAt(birth time.Time, now time.Time) int {
	if birth.IsZero() {
		return 0
	}
	age := now.Year() - birth.Year()
	if now.YearDay() < birth.YearDay() {
		age--
	}
	return age
}

func sharesTag(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if strings.EqualFold(h, w) {
				return true
			}
		}
	}
	return false
}

func validGender(g string) bool {
	switch strings.ToLower(g) {
	case "male", "female", "other":
		return true
	}
	return false
}

func validPreference(p string) bool {
	switch strings.ToLower(p) {
	case "male", "female", "both":
		return true
	}
	return false
}

func orderByIDs(users []db.User, ids []uint64) []db.User {
	byID := make(map[uint64]db.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	ordered := make([]db.User, 0, len(users))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			ordered = append(ordered, u)
		}
	}
	return ordered
}
