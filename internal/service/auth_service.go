// Package service contains the business logic between HTTP handlers and repositories.
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/inner-byte/i2bt-v1/internal/middleware"
	"github.com/inner-byte/i2bt-v1/internal/models"
	"github.com/inner-byte/i2bt-v1/internal/oauth"
	"github.com/inner-byte/i2bt-v1/internal/repository"
	"github.com/inner-byte/i2bt-v1/internal/validation"
)

// HashCost is the bcrypt cost factor for all stored password hashes.
const HashCost = 12

// dummyHash keeps the bcrypt comparison on the failure path so "no such
// user" and "wrong password" take comparable time.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("i2bt-timing-pad"), HashCost)

// AuthService verifies credentials and links social identities to local accounts.
type AuthService struct {
	userRepo repository.UserRepository
}

// NewAuthService returns a new AuthService.
func NewAuthService(userRepo repository.UserRepository) *AuthService {
	return &AuthService{userRepo: userRepo}
}

// VerifyCredentials checks an email/password pair and returns the identity
// projection used for token issuance. Missing account, social-only account
// and wrong password all fail with the same InvalidCredentials error so the
// endpoint cannot be used to probe which emails are registered.
func (s *AuthService) VerifyCredentials(ctx context.Context, email, password string) (*models.Identity, error) {
	if email == "" || password == "" {
		return nil, models.NewValidationError("Email and password are required")
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.HasPassword() {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		middleware.AuthFailures.WithLabelValues("unknown_account").Inc()
		return nil, models.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		middleware.AuthFailures.WithLabelValues("bad_password").Inc()
		return nil, models.NewInvalidCredentialsError()
	}

	identity := models.IdentityOf(user)
	return &identity, nil
}

// RegisterInput is the payload for account creation.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// Register creates a credentials-based account with the default member role
// and an empty profile.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))

	if in.Email == "" || in.Password == "" {
		return nil, models.NewValidationError("Email and password are required")
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	existing, err := s.userRepo.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("User already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), HashCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Name:     strings.TrimSpace(in.Name),
		Email:    in.Email,
		Password: string(hash),
		Role:     models.RoleMember,
		Profile:  &models.Profile{},
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SocialLogin maps a provider-verified identity to a local user, creating
// the account on first login. Social accounts carry no local password and
// their email counts as verified by the provider.
func (s *AuthService) SocialLogin(ctx context.Context, provider string, info *oauth.UserInfo) (*models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, info.Email)
	if err != nil {
		return nil, err
	}

	if user == nil {
		now := time.Now()
		user = &models.User{
			Name:            info.Name,
			Email:           strings.ToLower(info.Email),
			Image:           info.AvatarURL,
			Role:            models.RoleMember,
			Provider:        provider,
			EmailVerifiedAt: &now,
			Profile:         &models.Profile{},
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			return nil, err
		}
		middleware.Logger.InfoContext(ctx, "created account from social login",
			slog.String("provider", provider), slog.Uint64("user_id", uint64(user.ID)))
		return user, nil
	}

	// Backfill display data the provider knows and we don't.
	changed := false
	if user.Name == "" && info.Name != "" {
		user.Name = info.Name
		changed = true
	}
	if user.Image == "" && info.AvatarURL != "" {
		user.Image = info.AvatarURL
		changed = true
	}
	if changed {
		if err := s.userRepo.Update(ctx, user); err != nil {
			return nil, err
		}
	}
	return user, nil
}
