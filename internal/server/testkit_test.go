package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/inner-byte/i2bt-v1/internal/config"
	"github.com/inner-byte/i2bt-v1/internal/models"
	"github.com/inner-byte/i2bt-v1/internal/oauth"
)

// recordingMailer captures links instead of dialing SMTP.
type recordingMailer struct {
	resetLinks  []string
	verifyLinks []string
}

func (m *recordingMailer) SendPasswordReset(_ context.Context, _, link string) error {
	m.resetLinks = append(m.resetLinks, link)
	return nil
}

func (m *recordingMailer) SendVerification(_ context.Context, _, link string) error {
	m.verifyLinks = append(m.verifyLinks, link)
	return nil
}

// stubProvider completes the OAuth dance without any network traffic.
type stubProvider struct {
	name string
	info *oauth.UserInfo
	err  error
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) AuthCodeURL(state string) string {
	return "https://provider.example/authorize?state=" + state
}

func (p *stubProvider) Exchange(_ context.Context, code string) (*oauth.UserInfo, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.info, nil
}

type testEnv struct {
	srv    *Server
	app    *fiber.App
	db     *gorm.DB
	redis  *miniredis.Miniredis
	mailer *recordingMailer
	google *stubProvider
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Profile{}, &models.ActionToken{}))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := &config.Config{
		Port:               "0",
		Env:                "test",
		PublicBaseURL:      "http://localhost:3000",
		JWTSecret:          "test-secret-at-least-32-characters!!",
		AccessTokenTTLMin:  15,
		RefreshTokenTTLHrs: 168,
	}

	mailer := &recordingMailer{}
	google := &stubProvider{
		name: "google",
		info: &oauth.UserInfo{Email: "social@example.org", Name: "Social User"},
	}

	srv, err := NewServerWithDeps(cfg, db, rdb, mailer, oauth.Registry{"google": google})
	require.NoError(t, err)

	app := fiber.New()
	srv.SetupMiddleware(app)
	srv.SetupRoutes(app)

	// Stand-in page targets behind the page guards.
	for _, page := range []string{"/dashboard", "/profile", "/moderator", "/admin"} {
		page := page
		app.Get(page, func(c *fiber.Ctx) error { return c.SendString("page " + page) })
	}

	return &testEnv{srv: srv, app: app, db: db, redis: mr, mailer: mailer, google: google}
}

// createUser inserts a user directly, bypassing the signup endpoint, so
// tests can set roles and providers freely.
func (e *testEnv) createUser(t *testing.T, email, password string, role models.Role) *models.User {
	t.Helper()
	user := &models.User{
		Name:    "Test " + string(role),
		Email:   email,
		Role:    role,
		Profile: &models.Profile{},
	}
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		require.NoError(t, err)
		user.Password = string(hash)
	}
	require.NoError(t, e.db.Create(user).Error)
	return user
}

func (e *testEnv) tokenFor(t *testing.T, user *models.User) string {
	t.Helper()
	access, err := e.srv.issuer.IssueAccess(models.IdentityOf(user))
	require.NoError(t, err)
	return access
}

func (e *testEnv) request(t *testing.T, method, path string, body any, token string) *http.Response {
	t.Helper()

	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, 15000)
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &out), "body: %s", raw)
	return out
}

func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%d@example.org", prefix, emailSeq())
}

var seq int

func emailSeq() int {
	seq++
	return seq
}
