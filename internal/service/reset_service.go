package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/inner-byte/i2bt-v1/internal/mail"
	"github.com/inner-byte/i2bt-v1/internal/middleware"
	"github.com/inner-byte/i2bt-v1/internal/models"
	"github.com/inner-byte/i2bt-v1/internal/repository"
	"github.com/inner-byte/i2bt-v1/internal/validation"
)

const (
	resetTokenTTL  = time.Hour
	verifyTokenTTL = 24 * time.Hour
)

// ResetService issues and consumes single-use email-delivered tokens for
// password resets and email verification.
type ResetService struct {
	userRepo  repository.UserRepository
	tokenRepo repository.ActionTokenRepository
	mailer    mail.Mailer
	baseURL   string
}

// NewResetService returns a new ResetService.
func NewResetService(userRepo repository.UserRepository, tokenRepo repository.ActionTokenRepository, mailer mail.Mailer, baseURL string) *ResetService {
	return &ResetService{
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
		mailer:    mailer,
		baseURL:   baseURL,
	}
}

// RequestPasswordReset mails a reset link if the address has an account.
// The caller always gets a nil error for well-formed input: whether the
// account exists, and whether delivery succeeded, stays server-side.
func (s *ResetService) RequestPasswordReset(ctx context.Context, email string) error {
	if err := validation.ValidateEmail(email); err != nil {
		return models.NewValidationError(err.Error())
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		middleware.Logger.InfoContext(ctx, "password reset requested for unknown email")
		return nil
	}

	raw, err := s.issueToken(ctx, user.ID, models.TokenPurposeReset, resetTokenTTL)
	if err != nil {
		return err
	}

	link := fmt.Sprintf("%s/reset-password/%s", s.baseURL, raw)
	if err := s.mailer.SendPasswordReset(ctx, user.Email, link); err != nil {
		// Delivery failure is logged in the mailer; the response stays uniform.
		middleware.Logger.WarnContext(ctx, "reset mail not delivered", slog.Uint64("user_id", uint64(user.ID)))
	}
	return nil
}

// ConfirmPasswordReset consumes a reset token and stores the new password.
// Consumption and the password write commit together, so a failed write
// never burns the link.
func (s *ResetService) ConfirmPasswordReset(ctx context.Context, rawToken, newPassword string) error {
	if rawToken == "" {
		return models.NewValidationError("Token is required")
	}
	if err := validation.ValidatePassword(newPassword); err != nil {
		return models.NewValidationError(err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), HashCost)
	if err != nil {
		return models.NewInternalError(err)
	}

	token, err := s.tokenRepo.ConsumePasswordReset(ctx, digestOf(rawToken), string(hash))
	if err != nil {
		return err
	}

	middleware.Logger.InfoContext(ctx, "password reset completed", slog.Uint64("user_id", uint64(token.UserID)))
	return nil
}

// ChangePassword updates the password of an authenticated user after
// re-verifying the current one. The read bypasses the user cache so the
// comparison always sees the stored hash.
func (s *ResetService) ChangePassword(ctx context.Context, userID uint, current, next string) error {
	if err := validation.ValidatePassword(next); err != nil {
		return models.NewValidationError(err.Error())
	}

	user, err := s.userRepo.GetByIDWithProfile(ctx, userID)
	if err != nil {
		return err
	}
	if !user.HasPassword() {
		return models.NewValidationError("This account uses social sign-in and has no password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(current)); err != nil {
		middleware.AuthFailures.WithLabelValues("bad_current_password").Inc()
		return models.NewUnauthorizedError("Current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), HashCost)
	if err != nil {
		return models.NewInternalError(err)
	}
	return s.userRepo.UpdatePassword(ctx, userID, string(hash))
}

// RequestEmailVerification mails a verification link to the user's address.
func (s *ResetService) RequestEmailVerification(ctx context.Context, userID uint) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.EmailVerifiedAt != nil {
		return models.NewValidationError("Email is already verified")
	}

	raw, err := s.issueToken(ctx, user.ID, models.TokenPurposeVerify, verifyTokenTTL)
	if err != nil {
		return err
	}

	link := fmt.Sprintf("%s/verify-email/%s", s.baseURL, raw)
	if err := s.mailer.SendVerification(ctx, user.Email, link); err != nil {
		return models.NewUpstreamError(err)
	}
	return nil
}

// ConfirmEmailVerification consumes a verification token and marks the
// account's email as verified in the same transaction.
func (s *ResetService) ConfirmEmailVerification(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return models.NewValidationError("Token is required")
	}

	_, err := s.tokenRepo.ConsumeEmailVerification(ctx, digestOf(rawToken), time.Now())
	return err
}

// issueToken replaces outstanding tokens of the same purpose, stores the
// digest, and returns the raw token that goes in the email link.
func (s *ResetService) issueToken(ctx context.Context, userID uint, purpose models.TokenPurpose, ttl time.Duration) (string, error) {
	if err := s.tokenRepo.DeleteForUser(ctx, userID, purpose); err != nil {
		return "", err
	}

	raw, err := randomToken()
	if err != nil {
		return "", models.NewInternalError(err)
	}

	token := &models.ActionToken{
		UserID:    userID,
		Purpose:   purpose,
		Digest:    digestOf(raw),
		ExpiresAt: time.Now().Add(ttl),
	}
	if err := s.tokenRepo.Create(ctx, token); err != nil {
		return "", err
	}
	return raw, nil
}

// randomToken returns 32 bytes of entropy, hex encoded. Only its SHA-256
// digest is persisted.
func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func digestOf(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
