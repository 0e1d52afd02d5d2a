package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/inner-byte/i2bt-v1/internal/middleware"
	"github.com/inner-byte/i2bt-v1/internal/models"
	"github.com/inner-byte/i2bt-v1/internal/service"
	"github.com/inner-byte/i2bt-v1/internal/token"
)

// sessionResponse is the token pair returned by login, signup, refresh and
// the OAuth callback.
type sessionResponse struct {
	User         models.Identity `json:"user"`
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token,omitempty"`
	ExpiresIn    int             `json:"expires_in"`
}

// issueSession mints an access/refresh pair for the identity and sets the
// session cookie used by browser page navigation.
func (s *Server) issueSession(c *fiber.Ctx, identity models.Identity) (*sessionResponse, error) {
	access, err := s.issuer.IssueAccess(identity)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	resp := &sessionResponse{
		User:        identity,
		AccessToken: access,
		ExpiresIn:   s.config.AccessTokenTTLMin * 60,
	}

	if s.redis != nil {
		refresh, err := s.issuer.IssueRefresh(c.UserContext(), identity.ID)
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		resp.RefreshToken = refresh
	}

	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    access,
		Path:     "/",
		MaxAge:   s.config.AccessTokenTTLMin * 60,
		HTTPOnly: true,
		Secure:   s.config.Env == "production" || s.config.Env == "prod",
		SameSite: "Lax",
	})
	return resp, nil
}

func clearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HTTPOnly: true,
	})
}

// Signup handles account registration.
func (s *Server) Signup(c *fiber.Ctx) error {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, models.NewValidationError("Invalid request body"))
	}

	user, err := s.authService.Register(c.UserContext(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return fail(c, err)
	}

	// Verification mail is best-effort; the account works without it.
	if err := s.resetService.RequestEmailVerification(c.UserContext(), user.ID); err != nil {
		middleware.Logger.WarnContext(c.UserContext(), "verification mail not sent", "error", err.Error())
	}

	resp, err := s.issueSession(c, models.IdentityOf(user))
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// Login handles credentials authentication.
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, models.NewValidationError("Invalid request body"))
	}

	identity, err := s.authService.VerifyCredentials(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return fail(c, err)
	}

	resp, err := s.issueSession(c, *identity)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(resp)
}

// Refresh rotates a refresh token and returns a new session pair. A reused
// or unknown token fails with 401.
func (s *Server) Refresh(c *fiber.Ctx) error {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
		return fail(c, models.NewValidationError("refresh_token is required"))
	}

	userID, next, err := s.issuer.RotateRefresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		middleware.AuthFailures.WithLabelValues("refresh_rejected").Inc()
		return fail(c, models.NewUnauthorizedError("Invalid or expired refresh token"))
	}

	// Role is re-read at rotation so a demotion takes effect within one
	// access-token lifetime.
	user, err := s.userRepo.GetByID(c.UserContext(), userID)
	if err != nil {
		return fail(c, err)
	}

	access, err := s.issuer.IssueAccess(models.IdentityOf(user))
	if err != nil {
		return fail(c, models.NewInternalError(err))
	}

	return c.JSON(sessionResponse{
		User:         models.IdentityOf(user),
		AccessToken:  access,
		RefreshToken: next,
		ExpiresIn:    s.config.AccessTokenTTLMin * 60,
	})
}

// Logout revokes the current access token and, when supplied, the refresh
// token.
func (s *Server) Logout(c *fiber.Ctx) error {
	claims, _ := c.Locals("claims").(*token.Claims)
	if claims != nil {
		if err := s.issuer.RevokeAccess(c.UserContext(), claims); err != nil {
			middleware.Logger.WarnContext(c.UserContext(), "access revocation failed", "error", err.Error())
		}
	}

	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.BodyParser(&req); err == nil && req.RefreshToken != "" {
		if err := s.issuer.RevokeRefresh(c.UserContext(), req.RefreshToken); err != nil {
			middleware.Logger.WarnContext(c.UserContext(), "refresh revocation failed", "error", err.Error())
		}
	}

	clearSessionCookie(c)
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// RequestReset starts a password reset. The response is identical whether
// or not the address has an account.
func (s *Server) RequestReset(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, models.NewValidationError("Invalid request body"))
	}

	if err := s.resetService.RequestPasswordReset(c.UserContext(), req.Email); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "If an account exists for that email, a reset link has been sent",
	})
}

// ConfirmReset consumes a reset token and sets the new password.
func (s *Server) ConfirmReset(c *fiber.Ctx) error {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, models.NewValidationError("Invalid request body"))
	}

	if err := s.resetService.ConfirmPasswordReset(c.UserContext(), req.Token, req.Password); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Password has been reset"})
}

// ChangePassword updates the password of the authenticated user.
func (s *Server) ChangePassword(c *fiber.Ctx) error {
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, models.NewValidationError("Invalid request body"))
	}

	if err := s.resetService.ChangePassword(c.UserContext(), currentUserID(c), req.CurrentPassword, req.NewPassword); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Password updated"})
}

// RequestVerifyEmail re-sends the verification mail for the authenticated
// user.
func (s *Server) RequestVerifyEmail(c *fiber.Ctx) error {
	if err := s.resetService.RequestEmailVerification(c.UserContext(), currentUserID(c)); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Verification email sent"})
}

// VerifyEmail consumes an email-verification token.
func (s *Server) VerifyEmail(c *fiber.Ctx) error {
	var req struct {
		Token string `json:"token"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, models.NewValidationError("Invalid request body"))
	}

	if err := s.resetService.ConfirmEmailVerification(c.UserContext(), req.Token); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Email verified"})
}

// OAuthStart redirects the browser to the provider's consent screen. The
// state value is pinned to the browser via a short-lived cookie.
func (s *Server) OAuthStart(c *fiber.Ctx) error {
	provider, ok := s.providers[c.Params("provider")]
	if !ok {
		return fail(c, models.NewNotFoundError("Provider", c.Params("provider")))
	}

	state := uuid.New().String()
	c.Cookie(&fiber.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/api/auth",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HTTPOnly: true,
		SameSite: "Lax",
	})
	return c.Redirect(provider.AuthCodeURL(state), fiber.StatusSeeOther)
}

// OAuthCallback completes the provider exchange, maps the identity to a
// local account and opens a session. Browsers land on /dashboard; API
// clients get the session JSON.
func (s *Server) OAuthCallback(c *fiber.Ctx) error {
	provider, ok := s.providers[c.Params("provider")]
	if !ok {
		return fail(c, models.NewNotFoundError("Provider", c.Params("provider")))
	}

	state := c.Query("state")
	if state == "" || state != c.Cookies(oauthStateCookie) {
		middleware.AuthFailures.WithLabelValues("oauth_state_mismatch").Inc()
		return fail(c, models.NewUnauthorizedError("OAuth state mismatch"))
	}
	c.Cookie(&fiber.Cookie{Name: oauthStateCookie, Value: "", Path: "/api/auth", MaxAge: -1, HTTPOnly: true})

	code := c.Query("code")
	if code == "" {
		return fail(c, models.NewValidationError("Missing authorization code"))
	}

	info, err := provider.Exchange(c.UserContext(), code)
	if err != nil {
		middleware.AuthFailures.WithLabelValues("oauth_exchange").Inc()
		return fail(c, models.NewAuthenticationFailedError(err))
	}

	user, err := s.authService.SocialLogin(c.UserContext(), provider.Name(), info)
	if err != nil {
		return fail(c, err)
	}

	resp, err := s.issueSession(c, models.IdentityOf(user))
	if err != nil {
		return fail(c, err)
	}
	if wantsHTML(c) {
		return c.Redirect("/dashboard", fiber.StatusSeeOther)
	}
	return c.JSON(resp)
}
