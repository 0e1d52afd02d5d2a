// Package server contains the HTTP surface of the API: routing, request
// guards and handlers.
package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/inner-byte/i2bt-v1/internal/cache"
	"github.com/inner-byte/i2bt-v1/internal/config"
	"github.com/inner-byte/i2bt-v1/internal/database"
	"github.com/inner-byte/i2bt-v1/internal/mail"
	"github.com/inner-byte/i2bt-v1/internal/middleware"
	"github.com/inner-byte/i2bt-v1/internal/models"
	"github.com/inner-byte/i2bt-v1/internal/oauth"
	"github.com/inner-byte/i2bt-v1/internal/repository"
	"github.com/inner-byte/i2bt-v1/internal/service"
	"github.com/inner-byte/i2bt-v1/internal/token"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	limiter        *middleware.Limiter
	issuer         *token.Issuer
	providers      oauth.Registry
	mailer         mail.Mailer
	userRepo       repository.UserRepository
	tokenRepo      repository.ActionTokenRepository
	authService    *service.AuthService
	resetService   *service.ResetService
	userService    *service.UserService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	redisClient := cache.Connect(cfg.RedisURL)

	return NewServerWithDeps(cfg, db, redisClient, mail.NewSMTPMailer(cfg), oauth.NewRegistry(cfg))
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Tests use this to swap in sqlite, miniredis, fake mailers and stub OAuth
// providers.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, mailer mail.Mailer, providers oauth.Registry) (*Server, error) {
	userRepo := repository.NewUserRepository(db, redisClient)
	tokenRepo := repository.NewActionTokenRepository(db, redisClient)

	issuer := token.NewIssuer(
		cfg.JWTSecret,
		time.Duration(cfg.AccessTokenTTLMin)*time.Minute,
		time.Duration(cfg.RefreshTokenTTLHrs)*time.Hour,
		redisClient,
	)

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("i2bt-api"),
		limiter:        middleware.NewLimiter(redisClient),
		issuer:         issuer,
		providers:      providers,
		mailer:         mailer,
		userRepo:       userRepo,
		tokenRepo:      tokenRepo,
	}
	server.authService = service.NewAuthService(userRepo)
	server.resetService = service.NewResetService(userRepo, tokenRepo, mailer, cfg.PublicBaseURL)
	server.userService = service.NewUserService(userRepo)

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	// Distributed tracing
	app.Use(middleware.TracingMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit
	// (e.g. limiter) so browser clients still receive CORS headers on error
	// responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global in-process rate limit as a backstop; the per-route Redis limiter
	// does the precise counting.
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			c.Set("Retry-After", "60")
			return models.RespondWithError(c, fiber.StatusTooManyRequests, models.NewRateLimitedError())
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	// Page guards for browser navigation. Role misses redirect to
	// /unauthorized; missing sessions go to /login.
	app.Use("/dashboard", s.PageGuard(models.RoleMember))
	app.Use("/profile", s.PageGuard(models.RoleMember))
	app.Use("/moderator", s.PageGuard(models.RoleModerator))
	app.Use("/admin", s.PageGuard(models.RoleAdmin))

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(
		s.limiter, 3, 10*time.Minute, "signup"), s.Signup)
	auth.Post("/login", middleware.RateLimit(
		s.limiter, 10, 5*time.Minute, "login"), s.Login)
	auth.Post("/refresh", middleware.RateLimit(
		s.limiter, 30, 5*time.Minute, "refresh"), s.Refresh)
	auth.Post("/logout", s.AuthRequired(), s.Logout)

	// Password reset: request, confirm, and authenticated change.
	auth.Post("/reset-password", middleware.RateLimit(
		s.limiter, 3, 15*time.Minute, "reset_request"), s.RequestReset)
	auth.Post("/reset-password/confirm", middleware.RateLimit(
		s.limiter, 10, 15*time.Minute, "reset_confirm"), s.ConfirmReset)
	auth.Put("/reset-password", s.AuthRequired(), s.ChangePassword)

	// Email verification
	auth.Post("/verify-email", middleware.RateLimit(
		s.limiter, 10, 15*time.Minute, "verify_email"), s.VerifyEmail)
	auth.Post("/verify-email/request", s.AuthRequired(), middleware.RateLimit(
		s.limiter, 3, 15*time.Minute, "verify_request"), s.RequestVerifyEmail)

	// OAuth; the callback must be registered before the generic start route.
	auth.Get("/:provider/callback", s.OAuthCallback)
	auth.Get("/:provider", middleware.RateLimit(
		s.limiter, 20, 5*time.Minute, "oauth_start"), s.OAuthStart)

	// Member directory (authenticated, any role)
	api.Get("/members", s.AuthRequired(), s.Members)

	// Profile routes
	profile := api.Group("/profile", s.AuthRequired())
	profile.Get("/", s.GetProfile)
	profile.Put("/", s.UpdateProfile)
	profile.Patch("/image", s.UpdateImage)

	// Current session
	api.Get("/users/me", s.AuthRequired(), s.Me)

	// Moderation surface: the member directory with roles, gated at moderator.
	moderator := api.Group("/moderator", s.AuthRequired(), s.RoleRequired(models.RoleModerator))
	moderator.Get("/users", s.Members)

	// Admin routes
	admin := api.Group("/admin", s.AuthRequired(), s.RoleRequired(models.RoleAdmin))
	admin.Put("/users/:id/role", s.SetRole)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		// Redis backs refresh tokens, revocation and rate limiting; without
		// it the service is degraded, not ready.
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AuthRequired returns middleware that verifies the Bearer token and stores
// the session identity in locals and the request context.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := s.sessionClaims(c)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}
		s.storeSession(c, claims)
		return c.Next()
	}
}

// RoleRequired returns middleware enforcing a minimum role. It must run
// after AuthRequired. Browser navigations get a redirect to /unauthorized;
// API clients get a JSON 403.
func (s *Server) RoleRequired(min models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals("userRole").(models.Role)
		if !role.AtLeast(min) {
			if wantsHTML(c) {
				return c.Redirect("/unauthorized", fiber.StatusSeeOther)
			}
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Insufficient role"))
		}
		return c.Next()
	}
}

// PageGuard protects browser page prefixes. Unlike RoleRequired it never
// returns JSON: an anonymous visitor is sent to /login with the original
// destination preserved, and an authenticated visitor lacking the role is
// sent to /unauthorized.
func (s *Server) PageGuard(min models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := s.sessionClaims(c)
		if err != nil {
			return c.Redirect("/login?from="+c.Path(), fiber.StatusSeeOther)
		}
		if !claims.Role.AtLeast(min) {
			return c.Redirect("/unauthorized", fiber.StatusSeeOther)
		}
		s.storeSession(c, claims)
		return c.Next()
	}
}

// sessionClaims extracts and verifies the access token from the
// Authorization header or, for page navigation, the session cookie.
func (s *Server) sessionClaims(c *fiber.Ctx) (*token.Claims, error) {
	tokenString := ""
	if authHeader := c.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			tokenString = parts[1]
		}
	}
	if tokenString == "" {
		tokenString = c.Cookies(sessionCookie)
	}
	if tokenString == "" {
		return nil, token.ErrInvalidToken
	}
	return s.issuer.ParseAccess(c.UserContext(), tokenString)
}

// storeSession records the verified identity in locals and the request
// context so downstream handlers and the logger see it.
func (s *Server) storeSession(c *fiber.Ctx, claims *token.Claims) {
	c.Locals("userID", claims.UserID)
	c.Locals("userRole", claims.Role)
	c.Locals("claims", claims)

	ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, claims.UserID)
	ctx = context.WithValue(ctx, middleware.UserRoleKey, string(claims.Role))
	c.SetUserContext(ctx)
}

// wantsHTML reports whether the client is a browser navigation rather than
// an API call.
func wantsHTML(c *fiber.Ctx) bool {
	return strings.Contains(c.Get("Accept"), "text/html")
}

// Start starts the server
func (s *Server) Start() error {
	app := fiber.New(fiber.Config{
		AppName: "i2bt community API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err.Error())
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	middleware.Logger.Info("server starting", "port", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", "error", err.Error())
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", "error", cerr.Error())
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", "error", rerr.Error())
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
