package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/inner-byte/i2bt-v1/internal/middleware"
	"github.com/inner-byte/i2bt-v1/internal/models"
	"github.com/inner-byte/i2bt-v1/internal/repository"
	"github.com/inner-byte/i2bt-v1/internal/validation"
)

// MemberPage is one page of the member directory.
type MemberPage struct {
	Users []models.User `json:"users"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Pages int           `json:"pages"`
}

// ProfileInput carries the editable profile fields.
type ProfileInput struct {
	Bio      string   `json:"bio"`
	Location string   `json:"location"`
	Website  string   `json:"website"`
	Github   string   `json:"github"`
	Linkedin string   `json:"linkedin"`
	Twitter  string   `json:"twitter"`
	Skills   []string `json:"skills"`
}

// UserService covers the member directory, profile management and role
// administration.
type UserService struct {
	userRepo repository.UserRepository
}

// NewUserService returns a new UserService.
func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// ListMembers pages through the directory. Password hashes never appear in
// the response; the model keeps that field out of JSON.
func (s *UserService) ListMembers(ctx context.Context, params repository.SearchParams) (*MemberPage, error) {
	users, total, err := s.userRepo.Search(ctx, params)
	if err != nil {
		return nil, err
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 10
	}
	pages := int((total + int64(limit) - 1) / int64(limit))

	page := params.Page
	if page <= 0 {
		page = 1
	}

	return &MemberPage{Users: users, Total: total, Page: page, Pages: pages}, nil
}

// GetProfile loads a user with their profile, creating an empty profile
// lazily for accounts that predate the profile table.
func (s *UserService) GetProfile(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.userRepo.GetByIDWithProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Profile == nil {
		user.Profile = &models.Profile{UserID: user.ID}
	}
	return user, nil
}

// UpdateProfile replaces the editable profile fields.
func (s *UserService) UpdateProfile(ctx context.Context, userID uint, in ProfileInput) (*models.User, error) {
	if err := validateProfile(in); err != nil {
		return nil, err
	}

	skills := make(models.SkillList, 0, len(in.Skills))
	for _, skill := range in.Skills {
		if trimmed := strings.TrimSpace(skill); trimmed != "" {
			skills = append(skills, trimmed)
		}
	}

	profile := &models.Profile{
		UserID:   userID,
		Bio:      strings.TrimSpace(in.Bio),
		Location: strings.TrimSpace(in.Location),
		Website:  strings.TrimSpace(in.Website),
		Github:   strings.TrimSpace(in.Github),
		Linkedin: strings.TrimSpace(in.Linkedin),
		Twitter:  strings.TrimSpace(in.Twitter),
		Skills:   skills,
	}
	if err := s.userRepo.UpsertProfile(ctx, profile); err != nil {
		return nil, err
	}
	return s.GetProfile(ctx, userID)
}

// UpdateImage sets the user's avatar URL.
func (s *UserService) UpdateImage(ctx context.Context, userID uint, imageURL string) (*models.User, error) {
	if err := validation.ValidateImageURL(imageURL); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	user, err := s.userRepo.GetByIDWithProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Image = imageURL
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SetRole changes a user's role. Only admins reach this; the handler
// enforces that.
func (s *UserService) SetRole(ctx context.Context, actorID, targetID uint, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, models.NewValidationError(fmt.Sprintf("invalid role %q", role))
	}
	if actorID == targetID {
		return nil, models.NewValidationError("You cannot change your own role")
	}

	user, err := s.userRepo.GetByIDWithProfile(ctx, targetID)
	if err != nil {
		return nil, err
	}

	previous := user.Role
	user.Role = role
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	middleware.Logger.InfoContext(ctx, "role changed",
		slog.Uint64("actor_id", uint64(actorID)),
		slog.Uint64("target_id", uint64(targetID)),
		slog.String("from", string(previous)),
		slog.String("to", string(role)))
	return user, nil
}

func validateProfile(in ProfileInput) error {
	if len(in.Bio) > 1000 {
		return models.NewValidationError("Bio must not exceed 1000 characters")
	}
	for name, value := range map[string]string{
		"location": in.Location,
		"website":  in.Website,
		"github":   in.Github,
		"linkedin": in.Linkedin,
		"twitter":  in.Twitter,
	} {
		if len(value) > 255 {
			return models.NewValidationError(fmt.Sprintf("%s must not exceed 255 characters", name))
		}
	}
	if len(in.Skills) > 50 {
		return models.NewValidationError("At most 50 skills are allowed")
	}
	return nil
}
