package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/webmatcha/matcha-go/internal/db"
)

// UserRepository provides data access methods for the User model.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new repository bound to the given DB connection.
func NewUserRepository(database *gorm.DB) *UserRepository {
	return &UserRepository{db: database}
}

func (r *UserRepository) GetByID(ctx context.Context, id uint64) (*db.User, error) {
	var u db.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*db.User, error) {
	var u db.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*db.User, error) {
	var u db.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByLogin looks a user up by username or email, the login form accepts either.
func (r *UserRepository) GetByLogin(ctx context.Context, login string) (*db.User, error) {
	var u db.User
	err := r.db.WithContext(ctx).
		Where("username = ? OR email = ?", login, login).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UsernameOrEmailTaken reports which of the two uniqueness constraints an
// intended registration would violate.
func (r *UserRepository) UsernameOrEmailTaken(ctx context.Context, username, email string) (usernameTaken, emailTaken bool, err error) {
	var existing db.User
	err = r.db.WithContext(ctx).
		Where("username = ? OR email = ?", username, email).
		First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return existing.Username == username, existing.Email == email, nil
}

func (r *UserRepository) Create(ctx context.Context, u *db.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *UserRepository) Save(ctx context.Context, u *db.User) error {
	return r.db.WithContext(ctx).Save(u).Error
}

func (r *UserRepository) UpdateFame(ctx context.Context, id uint64, fame int) error {
	return r.db.WithContext(ctx).Model(&db.User{}).
		Where("id = ?", id).
		Update("fame_rating", fame).Error
}

// SetOnline flips the online flag and refreshes last_seen.
func (r *UserRepository) SetOnline(ctx context.Context, id uint64, online bool) error {
	return r.db.WithContext(ctx).Model(&db.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_online": online,
			"last_seen": time.Now().UTC(),
		}).Error
}

// Deactivate soft-disables the account; relationship rows stay in place.
func (r *UserRepository) Deactivate(ctx context.Context, id uint64) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&db.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"active":         false,
			"deactivated_at": &now,
			"is_online":      false,
		}).Error
}

// HardDelete removes the user and every relationship entity referencing
// them, in one transaction.
func (r *UserRepository) HardDelete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		steps := []*gorm.DB{
			tx.Where("liker_id = ? OR liked_id = ?", id, id).Delete(&db.Like{}),
			tx.Where("user_a_id = ? OR user_b_id = ?", id, id).Delete(&db.Match{}),
			tx.Where("blocker_id = ? OR blocked_id = ?", id, id).Delete(&db.Block{}),
			tx.Where("reporter_id = ? OR reported_id = ?", id, id).Delete(&db.Report{}),
			tx.Where("viewer_id = ? OR viewed_id = ?", id, id).Delete(&db.ProfileView{}),
			tx.Where("user_id = ?", id).Delete(&db.Notification{}),
			tx.Where("sender_id = ? OR receiver_id = ?", id, id).Delete(&db.Message{}),
			tx.Where("user_id = ?", id).Delete(&db.EmailVerification{}),
			tx.Where("user_id = ?", id).Delete(&db.PasswordReset{}),
			tx.Delete(&db.User{}, id),
		}
		for _, step := range steps {
			if step.Error != nil {
				return step.Error
			}
		}
		return nil
	})
}

// ListByIDs returns the users for a set of ids, in no particular order.
func (r *UserRepository) ListByIDs(ctx context.Context, ids []uint64) ([]db.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []db.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// ListCandidates returns active users excluding the given ids, optionally
// restricted by gender. Fetches up to limit rows; distance ranking happens
// in the service layer where both coordinates are known.
func (r *UserRepository) ListCandidates(ctx context.Context, selfID uint64, excludeIDs []uint64, gender string, limit int) ([]db.User, error) {
	query := r.db.WithContext(ctx).
		Where("id != ?", selfID).
		Where("active = ?", true)
	if len(excludeIDs) > 0 {
		query = query.Where("id NOT IN ?", excludeIDs)
	}
	if gender != "" {
		query = query.Where("gender = ?", gender)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var users []db.User
	if err := query.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
