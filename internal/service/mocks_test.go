package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/inner-byte/i2bt-v1/internal/models"
	"github.com/inner-byte/i2bt-v1/internal/repository"
)

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) GetByID(ctx context.Context, id uint) (*models.User, error) {
	args := m.Called(ctx, id)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserRepo) GetByIDWithProfile(ctx context.Context, id uint) (*models.User, error) {
	args := m.Called(ctx, id)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, id uint, hash string) error {
	return m.Called(ctx, id, hash).Error(0)
}

func (m *mockUserRepo) Search(ctx context.Context, params repository.SearchParams) ([]models.User, int64, error) {
	args := m.Called(ctx, params)
	var users []models.User
	if u := args.Get(0); u != nil {
		users = u.([]models.User)
	}
	return users, args.Get(1).(int64), args.Error(2)
}

func (m *mockUserRepo) UpsertProfile(ctx context.Context, profile *models.Profile) error {
	return m.Called(ctx, profile).Error(0)
}

type mockTokenRepo struct {
	mock.Mock
}

func (m *mockTokenRepo) Create(ctx context.Context, token *models.ActionToken) error {
	return m.Called(ctx, token).Error(0)
}

func (m *mockTokenRepo) ConsumePasswordReset(ctx context.Context, digest, hash string) (*models.ActionToken, error) {
	args := m.Called(ctx, digest, hash)
	if tok := args.Get(0); tok != nil {
		return tok.(*models.ActionToken), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTokenRepo) ConsumeEmailVerification(ctx context.Context, digest string, at time.Time) (*models.ActionToken, error) {
	args := m.Called(ctx, digest, at)
	if tok := args.Get(0); tok != nil {
		return tok.(*models.ActionToken), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTokenRepo) DeleteForUser(ctx context.Context, userID uint, purpose models.TokenPurpose) error {
	return m.Called(ctx, userID, purpose).Error(0)
}

// fakeMailer records sent links instead of dialing SMTP.
type fakeMailer struct {
	resetLinks  []string
	verifyLinks []string
	failWith    error
}

func (f *fakeMailer) SendPasswordReset(ctx context.Context, to, link string) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.resetLinks = append(f.resetLinks, link)
	return nil
}

func (f *fakeMailer) SendVerification(ctx context.Context, to, link string) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.verifyLinks = append(f.verifyLinks, link)
	return nil
}
