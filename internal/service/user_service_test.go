package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/inner-byte/i2bt-v1/internal/models"
	"github.com/inner-byte/i2bt-v1/internal/repository"
)

func TestListMembers_PageMath(t *testing.T) {
	ctx := context.Background()
	repo := new(mockUserRepo)
	svc := NewUserService(repo)

	repo.On("Search", ctx, mock.AnythingOfType("repository.SearchParams")).
		Return([]models.User{{ID: 1}, {ID: 2}}, int64(23), nil)

	page, err := svc.ListMembers(ctx, repository.SearchParams{Page: 2, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(23), page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 3, page.Pages, "23 results at 10 per page is 3 pages")
	assert.Len(t, page.Users, 2)
}

func TestGetProfile_LazyProfile(t *testing.T) {
	ctx := context.Background()
	repo := new(mockUserRepo)
	svc := NewUserService(repo)

	repo.On("GetByIDWithProfile", ctx, uint(7)).Return(&models.User{ID: 7}, nil)

	user, err := svc.GetProfile(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, user.Profile, "accounts without a profile row get an empty one")
	assert.Equal(t, uint(7), user.Profile.UserID)
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("trims and filters skills", func(t *testing.T) {
		repo := new(mockUserRepo)
		svc := NewUserService(repo)

		var stored *models.Profile
		repo.On("UpsertProfile", ctx, mock.AnythingOfType("*models.Profile")).
			Run(func(args mock.Arguments) { stored = args.Get(1).(*models.Profile) }).
			Return(nil)
		repo.On("GetByIDWithProfile", ctx, uint(7)).Return(&models.User{ID: 7, Profile: &models.Profile{}}, nil)

		_, err := svc.UpdateProfile(ctx, 7, ProfileInput{
			Bio:    "  hello  ",
			Skills: []string{" Go ", "", "React"},
		})
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, "hello", stored.Bio)
		assert.Equal(t, models.SkillList{"Go", "React"}, stored.Skills)
	})

	t.Run("rejects oversized bio", func(t *testing.T) {
		svc := NewUserService(new(mockUserRepo))
		_, err := svc.UpdateProfile(ctx, 7, ProfileInput{Bio: string(make([]byte, 1001))})
		require.Error(t, err)
		assert.Equal(t, models.CodeValidation, err.(*models.AppError).Code)
	})
}

func TestUpdateImage(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects non-absolute URL", func(t *testing.T) {
		svc := NewUserService(new(mockUserRepo))
		_, err := svc.UpdateImage(ctx, 7, "/relative.png")
		require.Error(t, err)
		assert.Equal(t, models.CodeValidation, err.(*models.AppError).Code)
	})

	t.Run("success", func(t *testing.T) {
		repo := new(mockUserRepo)
		svc := NewUserService(repo)

		repo.On("GetByIDWithProfile", ctx, uint(7)).Return(&models.User{ID: 7}, nil)
		repo.On("Update", ctx, mock.AnythingOfType("*models.User")).Return(nil)

		user, err := svc.UpdateImage(ctx, 7, "https://cdn.example.org/a.png")
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example.org/a.png", user.Image)
	})
}

func TestSetRole(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid role", func(t *testing.T) {
		svc := NewUserService(new(mockUserRepo))
		_, err := svc.SetRole(ctx, 1, 2, models.Role("overlord"))
		require.Error(t, err)
		assert.Equal(t, models.CodeValidation, err.(*models.AppError).Code)
	})

	t.Run("cannot change own role", func(t *testing.T) {
		svc := NewUserService(new(mockUserRepo))
		_, err := svc.SetRole(ctx, 1, 1, models.RoleMember)
		require.Error(t, err)
	})

	t.Run("success", func(t *testing.T) {
		repo := new(mockUserRepo)
		svc := NewUserService(repo)

		repo.On("GetByIDWithProfile", ctx, uint(2)).Return(&models.User{ID: 2, Role: models.RoleMember}, nil)
		repo.On("Update", ctx, mock.AnythingOfType("*models.User")).Return(nil)

		user, err := svc.SetRole(ctx, 1, 2, models.RoleModerator)
		require.NoError(t, err)
		assert.Equal(t, models.RoleModerator, user.Role)
	})
}
