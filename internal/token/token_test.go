package token

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inner-byte/i2bt-v1/internal/models"
)

const testSecret = "test-secret-at-least-32-characters!!"

func newTestIssuer(t *testing.T) (*Issuer, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewIssuer(testSecret, 15*time.Minute, 7*24*time.Hour, rdb), mr
}

func testIdentity(role models.Role) models.Identity {
	return models.Identity{ID: 42, Email: "u@example.org", Name: "U", Role: role}
}

func TestIssueAndParseAccess(t *testing.T) {
	issuer, _ := newTestIssuer(t)
	ctx := context.Background()

	for _, role := range []models.Role{models.RoleMember, models.RoleModerator, models.RoleAdmin} {
		t.Run(string(role), func(t *testing.T) {
			access, err := issuer.IssueAccess(testIdentity(role))
			require.NoError(t, err)

			claims, err := issuer.ParseAccess(ctx, access)
			require.NoError(t, err)
			assert.Equal(t, uint(42), claims.UserID)
			assert.Equal(t, role, claims.Role)
			assert.NotEmpty(t, claims.JTI)
			assert.WithinDuration(t, time.Now().Add(15*time.Minute), claims.ExpiresAt, 5*time.Second)
		})
	}
}

func TestParseAccess_Rejections(t *testing.T) {
	issuer, _ := newTestIssuer(t)
	ctx := context.Background()

	t.Run("garbage token", func(t *testing.T) {
		_, err := issuer.ParseAccess(ctx, "not-a-jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewIssuer("another-secret-also-32-chars-long!!!", time.Minute, time.Hour, nil)
		access, err := other.IssueAccess(testIdentity(models.RoleMember))
		require.NoError(t, err)

		_, err = issuer.ParseAccess(ctx, access)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired token", func(t *testing.T) {
		short := NewIssuer(testSecret, -time.Minute, time.Hour, nil)
		access, err := short.IssueAccess(testIdentity(models.RoleMember))
		require.NoError(t, err)

		_, err = issuer.ParseAccess(ctx, access)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestRevokeAccess(t *testing.T) {
	issuer, _ := newTestIssuer(t)
	ctx := context.Background()

	access, err := issuer.IssueAccess(testIdentity(models.RoleMember))
	require.NoError(t, err)

	claims, err := issuer.ParseAccess(ctx, access)
	require.NoError(t, err)

	require.NoError(t, issuer.RevokeAccess(ctx, claims))

	_, err = issuer.ParseAccess(ctx, access)
	assert.ErrorIs(t, err, ErrInvalidToken, "revoked token must be rejected before expiry")
}

func TestRefreshRotation(t *testing.T) {
	issuer, _ := newTestIssuer(t)
	ctx := context.Background()

	first, err := issuer.IssueRefresh(ctx, 42)
	require.NoError(t, err)

	userID, second, err := issuer.RotateRefresh(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, uint(42), userID)
	assert.NotEqual(t, first, second)

	// Reusing the rotated token fails: rotation is single-winner.
	_, _, err = issuer.RotateRefresh(ctx, first)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// The replacement still works.
	userID, _, err = issuer.RotateRefresh(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, uint(42), userID)
}

func TestRefreshExpiry(t *testing.T) {
	issuer, mr := newTestIssuer(t)
	ctx := context.Background()

	raw, err := issuer.IssueRefresh(ctx, 42)
	require.NoError(t, err)

	mr.FastForward(8 * 24 * time.Hour)

	_, _, err = issuer.RotateRefresh(ctx, raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRevokeRefresh(t *testing.T) {
	issuer, _ := newTestIssuer(t)
	ctx := context.Background()

	raw, err := issuer.IssueRefresh(ctx, 42)
	require.NoError(t, err)

	require.NoError(t, issuer.RevokeRefresh(ctx, raw))

	_, _, err = issuer.RotateRefresh(ctx, raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
