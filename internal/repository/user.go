// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/inner-byte/i2bt-v1/internal/cache"
	"github.com/inner-byte/i2bt-v1/internal/models"
)

// SearchParams filters and pages the member directory.
type SearchParams struct {
	Search string
	Skill  string
	Page   int
	Limit  int
}

// UserRepository defines persistence operations for users and profiles.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByIDWithProfile(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id uint, hash string) error
	Search(ctx context.Context, params SearchParams) ([]models.User, int64, error)
	UpsertProfile(ctx context.Context, profile *models.Profile) error
}

type userRepository struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewUserRepository returns a new UserRepository implementation. rdb may be
// nil; the repository then skips its read-through cache.
func NewUserRepository(db *gorm.DB, rdb *redis.Client) UserRepository {
	return &userRepository{db: db, rdb: rdb}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	key := cache.UserKey(id)

	err := cache.Aside(ctx, r.rdb, key, &user, cache.UserTTL, func() error {
		if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("User", id)
			}
			return models.NewInternalError(err)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByIDWithProfile(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Preload("Profile").First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

// GetByEmail returns (nil, nil) when no user matches, so callers can keep
// the "user exists" distinction server-side.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(user.Email)
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("User already exists")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateUser(ctx, r.rdb, user.ID)
	return nil
}

// UpdatePassword replaces only the stored hash, leaving other columns alone.
func (r *userRepository) UpdatePassword(ctx context.Context, id uint, hash string) error {
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Update("password", hash).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateUser(ctx, r.rdb, id)
	return nil
}

func (r *userRepository) Search(ctx context.Context, params SearchParams) ([]models.User, int64, error) {
	if params.Limit <= 0 {
		params.Limit = 10
	}
	if params.Limit > 100 {
		params.Limit = 100
	}
	if params.Page <= 0 {
		params.Page = 1
	}

	q := r.db.WithContext(ctx).Model(&models.User{})

	if s := strings.TrimSpace(params.Search); s != "" {
		pattern := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", pattern, pattern)
	}
	if skill := strings.TrimSpace(params.Skill); skill != "" {
		q = q.Joins("JOIN profiles ON profiles.user_id = users.id").
			Where("LOWER(profiles.skills) LIKE ?", "%"+strings.ToLower(skill)+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var users []models.User
	offset := (params.Page - 1) * params.Limit
	if err := q.Preload("Profile").
		Order("users.created_at DESC").
		Limit(params.Limit).Offset(offset).
		Find(&users).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return users, total, nil
}

// UpsertProfile creates the profile row on first write and updates it after.
func (r *userRepository) UpsertProfile(ctx context.Context, profile *models.Profile) error {
	var existing models.Profile
	err := r.db.WithContext(ctx).Where("user_id = ?", profile.UserID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := r.db.WithContext(ctx).Create(profile).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	case err != nil:
		return models.NewInternalError(err)
	}

	profile.ID = existing.ID
	profile.CreatedAt = existing.CreatedAt
	if err := r.db.WithContext(ctx).Save(profile).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// isUniqueConstraintError checks if a DB error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	// PostgreSQL unique violation SQLSTATE 23505
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "23505")
}
