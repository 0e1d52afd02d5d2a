// Package token issues and verifies session credentials: stateless signed
// access tokens and Redis-backed rotating refresh tokens.
package token

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/inner-byte/i2bt-v1/internal/models"
)

const (
	issuer   = "i2bt-api"
	audience = "i2bt-web"

	denylistPrefix = "denylist:"
	refreshPrefix  = "refresh:"
)

// ErrInvalidToken is returned for any token that fails verification. Callers
// map it to a 401; the specific reason is not exposed.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the verified projection of an access token. It is the sole
// authority for authorization decisions; no DB lookup happens per request.
type Claims struct {
	UserID    uint
	Role      models.Role
	JTI       string
	ExpiresAt time.Time
}

// Issuer mints and verifies session tokens. The access token is a
// self-contained HS256 JWT; revocation before expiry goes through a Redis
// jti denylist, and refresh tokens live only in Redis.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	rdb        *redis.Client
}

// NewIssuer returns an Issuer signing with secret. rdb may be nil, in which
// case refresh tokens and revocation are unavailable.
func NewIssuer(secret string, accessTTL, refreshTTL time.Duration, rdb *redis.Client) *Issuer {
	return &Issuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		rdb:        rdb,
	}
}

// IssueAccess mints a signed access token embedding the user's id and role.
// The role claim reflects the User row at issuance time; it is not refreshed
// until the token expires or is re-issued.
func (i *Issuer) IssueAccess(id models.Identity) (string, error) {
	if len(i.secret) == 0 {
		return "", fmt.Errorf("JWT secret not configured")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  strconv.FormatUint(uint64(id.ID), 10),
		"role": string(id.Role),
		"iss":  issuer,
		"aud":  audience,
		"exp":  now.Add(i.accessTTL).Unix(),
		"iat":  now.Unix(),
		"nbf":  now.Unix(),
		"jti":  newJTI(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// ParseAccess verifies signature, expiry, issuer, audience and the denylist,
// and returns the embedded claims.
func (i *Issuer) ParseAccess(ctx context.Context, tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithAudience(audience))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	sub, ok := mapClaims["sub"].(string)
	if !ok {
		return nil, ErrInvalidToken
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil {
		return nil, ErrInvalidToken
	}

	roleStr, _ := mapClaims["role"].(string)
	role := models.Role(roleStr)
	if !role.Valid() {
		return nil, ErrInvalidToken
	}

	claims := &Claims{
		UserID: uint(userID),
		Role:   role,
	}
	if jti, ok := mapClaims["jti"].(string); ok {
		claims.JTI = jti
	}
	if exp, ok := mapClaims["exp"].(float64); ok {
		claims.ExpiresAt = time.Unix(int64(exp), 0)
	}

	// Check the jti against the revocation denylist.
	if claims.JTI != "" && i.rdb != nil {
		revoked, err := i.rdb.Exists(ctx, denylistPrefix+claims.JTI).Result()
		if err == nil && revoked > 0 {
			return nil, ErrInvalidToken
		}
	}

	return claims, nil
}

// RevokeAccess denylists the token's jti until its natural expiry. Without
// Redis the access token stays valid until it expires; this is the
// documented limitation of the stateless strategy.
func (i *Issuer) RevokeAccess(ctx context.Context, claims *Claims) error {
	if i.rdb == nil || claims.JTI == "" {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return i.rdb.Set(ctx, denylistPrefix+claims.JTI, "1", ttl).Err()
}

// IssueRefresh creates an opaque refresh token bound to the user. Only a
// digest of the token is stored.
func (i *Issuer) IssueRefresh(ctx context.Context, userID uint) (string, error) {
	if i.rdb == nil {
		return "", fmt.Errorf("refresh tokens require redis")
	}
	raw := uuid.New().String() + uuid.New().String()
	key := refreshPrefix + digest(raw)
	if err := i.rdb.Set(ctx, key, strconv.FormatUint(uint64(userID), 10), i.refreshTTL).Err(); err != nil {
		return "", err
	}
	return raw, nil
}

// RotateRefresh consumes a refresh token and issues a replacement. GETDEL
// makes consumption single-winner: a rotated or reused token is gone before
// the new one is minted, so replays fail with ErrInvalidToken.
func (i *Issuer) RotateRefresh(ctx context.Context, raw string) (uint, string, error) {
	if i.rdb == nil {
		return 0, "", ErrInvalidToken
	}
	val, err := i.rdb.GetDel(ctx, refreshPrefix+digest(raw)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, "", ErrInvalidToken
	}
	if err != nil {
		return 0, "", err
	}
	userID, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, "", ErrInvalidToken
	}

	next, err := i.IssueRefresh(ctx, uint(userID))
	if err != nil {
		return 0, "", err
	}
	return uint(userID), next, nil
}

// RevokeRefresh invalidates a refresh token without issuing a replacement.
func (i *Issuer) RevokeRefresh(ctx context.Context, raw string) error {
	if i.rdb == nil {
		return nil
	}
	return i.rdb.Del(ctx, refreshPrefix+digest(raw)).Err()
}

// newJTI creates a unique JWT ID so individual tokens can be revoked.
func newJTI() string {
	return fmt.Sprintf("%d-%s", time.Now().Unix(), uuid.New().String()[:8])
}

func digest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
