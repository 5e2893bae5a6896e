package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/webmatcha/matcha-go/internal/db"
)

// ProfileViewRepository provides data access for the ProfileView model.
type ProfileViewRepository struct {
	db *gorm.DB
}

// NewProfileViewRepository creates a new repository bound to the given DB connection.
func NewProfileViewRepository(database *gorm.DB) *ProfileViewRepository {
	return &ProfileViewRepository{db: database}
}

// LatestView returns the most recent view from viewer to viewed, or nil
// if there is none. The cool-down check compares against this row.
func (r *ProfileViewRepository) LatestView(ctx context.Context, viewerID, viewedID uint64) (*db.ProfileView, error) {
	var view db.ProfileView
	err := r.db.WithContext(ctx).
		Where("viewer_id = ? AND viewed_id = ?", viewerID, viewedID).
		Order("viewed_at DESC").
		First(&view).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (r *ProfileViewRepository) Create(ctx context.Context, viewerID, viewedID uint64) error {
	view := db.ProfileView{
		ViewerID: viewerID,
		ViewedID: viewedID,
		ViewedAt: time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(&view).Error
}

func (r *ProfileViewRepository) CountViews(ctx context.Context, viewedID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&db.ProfileView{}).
		Where("viewed_id = ?", viewedID).
		Count(&count).Error
	return count, err
}

// ListViewerIDs returns the distinct viewers of a profile, most recent
// first, capped at limit.
func (r *ProfileViewRepository) ListViewerIDs(ctx context.Context, viewedID uint64, limit int) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).Model(&db.ProfileView{}).
		Where("viewed_id = ?", viewedID).
		Group("viewer_id").
		Order("MAX(viewed_at) DESC").
		Limit(limit).
		Pluck("viewer_id", &ids).Error
	return ids, err
}
