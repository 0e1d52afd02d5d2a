package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inner-byte/i2bt-v1/internal/models"
)

const testDigest = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func createToken(t *testing.T, repo ActionTokenRepository, userID uint, purpose models.TokenPurpose, expiresAt time.Time) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &models.ActionToken{
		UserID:    userID,
		Purpose:   purpose,
		Digest:    testDigest,
		ExpiresAt: expiresAt,
	}))
}

func TestActionTokenRepository_ConsumeOnce(t *testing.T) {
	db := newTestDB(t)
	repo := NewActionTokenRepository(db, nil)
	ctx := context.Background()

	user := seedUser(t, NewUserRepository(db, nil), "Ada", "ada@example.org")
	createToken(t, repo, user.ID, models.TokenPurposeReset, time.Now().Add(time.Hour))

	tok, err := repo.ConsumePasswordReset(ctx, testDigest, "new-hash")
	require.NoError(t, err)
	assert.Equal(t, user.ID, tok.UserID)
	assert.NotNil(t, tok.UsedAt)

	var stored models.User
	require.NoError(t, db.First(&stored, user.ID).Error)
	assert.Equal(t, "new-hash", stored.Password, "the password write commits with the consumption")

	// The second consumption of the same token must lose.
	_, err = repo.ConsumePasswordReset(ctx, testDigest, "other-hash")
	require.Error(t, err)
	appErr, ok := err.(*models.AppError)
	require.True(t, ok)
	assert.Equal(t, models.CodeTokenUsed, appErr.Code)
}

func TestActionTokenRepository_FailedEffectKeepsToken(t *testing.T) {
	db := newTestDB(t)
	repo := NewActionTokenRepository(db, nil)
	ctx := context.Background()

	// The token points at an account that no longer exists, so the password
	// write inside the transaction affects no rows and the whole consumption
	// rolls back.
	createToken(t, repo, 4242, models.TokenPurposeReset, time.Now().Add(time.Hour))

	_, err := repo.ConsumePasswordReset(ctx, testDigest, "new-hash")
	require.Error(t, err)
	appErr, ok := err.(*models.AppError)
	require.True(t, ok)
	assert.Equal(t, models.CodeNotFound, appErr.Code)

	var stored models.ActionToken
	require.NoError(t, db.Where("digest = ?", testDigest).First(&stored).Error)
	assert.Nil(t, stored.UsedAt, "a rolled-back consumption does not burn the token")

	// A retry reports the same failure, not "already used".
	_, err = repo.ConsumePasswordReset(ctx, testDigest, "new-hash")
	require.Error(t, err)
	appErr, ok = err.(*models.AppError)
	require.True(t, ok)
	assert.Equal(t, models.CodeNotFound, appErr.Code)
}

func TestActionTokenRepository_ConsumeExpired(t *testing.T) {
	db := newTestDB(t)
	repo := NewActionTokenRepository(db, nil)
	ctx := context.Background()

	user := seedUser(t, NewUserRepository(db, nil), "Ada", "ada@example.org")
	createToken(t, repo, user.ID, models.TokenPurposeReset, time.Now().Add(-time.Minute))

	_, err := repo.ConsumePasswordReset(ctx, testDigest, "new-hash")
	require.Error(t, err)
	appErr, ok := err.(*models.AppError)
	require.True(t, ok)
	assert.Equal(t, models.CodeTokenExpired, appErr.Code)

	var stored models.User
	require.NoError(t, db.First(&stored, user.ID).Error)
	assert.Equal(t, "hash", stored.Password, "an expired token changes nothing")
}

func TestActionTokenRepository_PurposeMismatch(t *testing.T) {
	db := newTestDB(t)
	repo := NewActionTokenRepository(db, nil)
	ctx := context.Background()

	user := seedUser(t, NewUserRepository(db, nil), "Ada", "ada@example.org")
	createToken(t, repo, user.ID, models.TokenPurposeVerify, time.Now().Add(time.Hour))

	// A verification token cannot be spent on a password reset.
	_, err := repo.ConsumePasswordReset(ctx, testDigest, "new-hash")
	require.Error(t, err)
	appErr, ok := err.(*models.AppError)
	require.True(t, ok)
	assert.Equal(t, models.CodeNotFound, appErr.Code)
}

func TestActionTokenRepository_ConsumeEmailVerification(t *testing.T) {
	db := newTestDB(t)
	repo := NewActionTokenRepository(db, nil)
	ctx := context.Background()

	user := seedUser(t, NewUserRepository(db, nil), "Ada", "ada@example.org")
	createToken(t, repo, user.ID, models.TokenPurposeVerify, time.Now().Add(time.Hour))

	at := time.Now()
	tok, err := repo.ConsumeEmailVerification(ctx, testDigest, at)
	require.NoError(t, err)
	assert.Equal(t, user.ID, tok.UserID)

	var stored models.User
	require.NoError(t, db.First(&stored, user.ID).Error)
	require.NotNil(t, stored.EmailVerifiedAt)

	_, err = repo.ConsumeEmailVerification(ctx, testDigest, time.Now())
	require.Error(t, err, "verification links are single-use")
}

func TestActionTokenRepository_DeleteForUser(t *testing.T) {
	db := newTestDB(t)
	repo := NewActionTokenRepository(db, nil)
	ctx := context.Background()

	user := seedUser(t, NewUserRepository(db, nil), "Ada", "ada@example.org")
	createToken(t, repo, user.ID, models.TokenPurposeReset, time.Now().Add(time.Hour))

	require.NoError(t, repo.DeleteForUser(ctx, user.ID, models.TokenPurposeReset))

	_, err := repo.ConsumePasswordReset(ctx, testDigest, "new-hash")
	require.Error(t, err, "a superseded token is gone")
}
