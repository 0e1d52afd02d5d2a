package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/inner-byte/i2bt-v1/internal/cache"
	"github.com/inner-byte/i2bt-v1/internal/models"
)

// ActionTokenRepository persists single-use capabilities (password reset,
// email verification). Consuming a token and applying its effect happen in
// one transaction: a failed effect rolls the consumption back.
type ActionTokenRepository interface {
	Create(ctx context.Context, token *models.ActionToken) error
	ConsumePasswordReset(ctx context.Context, digest, hash string) (*models.ActionToken, error)
	ConsumeEmailVerification(ctx context.Context, digest string, at time.Time) (*models.ActionToken, error)
	DeleteForUser(ctx context.Context, userID uint, purpose models.TokenPurpose) error
}

type actionTokenRepository struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewActionTokenRepository returns a new ActionTokenRepository implementation.
// rdb may be nil; cached user reads are then never invalidated because none exist.
func NewActionTokenRepository(db *gorm.DB, rdb *redis.Client) ActionTokenRepository {
	return &actionTokenRepository{db: db, rdb: rdb}
}

func (r *actionTokenRepository) Create(ctx context.Context, token *models.ActionToken) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// ConsumePasswordReset consumes the reset token and stores the new password
// hash. If the password write fails the consumption rolls back, so the link
// stays valid for a retry instead of being burned with the old password in
// place.
func (r *actionTokenRepository) ConsumePasswordReset(ctx context.Context, digest, hash string) (*models.ActionToken, error) {
	token, err := r.consume(ctx, digest, models.TokenPurposeReset, func(tx *gorm.DB, t *models.ActionToken) error {
		res := tx.Model(&models.User{}).Where("id = ?", t.UserID).Update("password", hash)
		if res.Error != nil {
			return models.NewInternalError(res.Error)
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("User", t.UserID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	cache.InvalidateUser(ctx, r.rdb, token.UserID)
	return token, nil
}

// ConsumeEmailVerification consumes the verification token and marks the
// account's email verified, both in the same transaction.
func (r *actionTokenRepository) ConsumeEmailVerification(ctx context.Context, digest string, at time.Time) (*models.ActionToken, error) {
	token, err := r.consume(ctx, digest, models.TokenPurposeVerify, func(tx *gorm.DB, t *models.ActionToken) error {
		res := tx.Model(&models.User{}).Where("id = ?", t.UserID).Update("email_verified_at", at)
		if res.Error != nil {
			return models.NewInternalError(res.Error)
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("User", t.UserID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	cache.InvalidateUser(ctx, r.rdb, token.UserID)
	return token, nil
}

// consume finds the unexpired token, marks it used and runs apply, all inside
// one transaction. The mark is a single UPDATE guarded by "used_at IS NULL",
// so concurrent submissions of the same token have exactly one winner; losers
// get a TokenUsed error.
func (r *actionTokenRepository) consume(ctx context.Context, digest string, purpose models.TokenPurpose, apply func(tx *gorm.DB, token *models.ActionToken) error) (*models.ActionToken, error) {
	var token models.ActionToken
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("digest = ? AND purpose = ?", digest, purpose).First(&token).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Token", shortDigest(digest))
			}
			return models.NewInternalError(err)
		}

		now := time.Now()
		if token.Expired(now) {
			return models.NewTokenExpiredError()
		}

		res := tx.Model(&models.ActionToken{}).
			Where("id = ? AND used_at IS NULL", token.ID).
			Update("used_at", now)
		if res.Error != nil {
			return models.NewInternalError(res.Error)
		}
		if res.RowsAffected == 0 {
			return models.NewTokenUsedError()
		}

		token.UsedAt = &now
		return apply(tx, &token)
	})
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// DeleteForUser drops outstanding tokens of one purpose, invalidating
// previously issued links when a new one is requested.
func (r *actionTokenRepository) DeleteForUser(ctx context.Context, userID uint, purpose models.TokenPurpose) error {
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND purpose = ? AND used_at IS NULL", userID, purpose).
		Delete(&models.ActionToken{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func shortDigest(digest string) string {
	if len(digest) > 8 {
		return digest[:8]
	}
	return digest
}
