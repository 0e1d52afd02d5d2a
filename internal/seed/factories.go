// Package seed creates demo and test data for the application database.
// Development and testing only.
package seed

import (
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/inner-byte/i2bt-v1/internal/models"
	"github.com/inner-byte/i2bt-v1/internal/service"
)

// skillPool is the vocabulary the member directory's skill filter is
// exercised against.
var skillPool = []string{
	"Go", "TypeScript", "Python", "React", "Next.js", "Node.js",
	"PostgreSQL", "Redis", "Docker", "Kubernetes", "AWS", "GraphQL",
	"Rust", "Machine Learning", "UI Design", "Product Management",
}

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db   *gorm.DB
	opts Options
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	gofakeit.Seed(time.Now().UnixNano())
	return &Factory{db: db, opts: opts}
}

// BuildMember constructs a member with a populated profile but does not
// persist it.
func (f *Factory) BuildMember(overrides ...func(*models.User)) *models.User {
	name := gofakeit.Name()
	email := strings.ToLower(fmt.Sprintf("%s.%d@%s",
		strings.ReplaceAll(name, " ", "."), gofakeit.Number(100, 999), gofakeit.DomainName()))

	idx := indexes(len(skillPool))
	gofakeit.ShuffleInts(idx)
	skills := make(models.SkillList, 0, 4)
	for _, i := range idx[:gofakeit.Number(1, 4)] {
		skills = append(skills, skillPool[i])
	}

	user := &models.User{
		Name:  name,
		Email: email,
		Image: fmt.Sprintf("https://i.pravatar.cc/150?u=%s", gofakeit.UUID()),
		Role:  models.RoleMember,
		Profile: &models.Profile{
			Bio:      gofakeit.Sentence(12),
			Location: gofakeit.City(),
			Website:  gofakeit.URL(),
			Github:   gofakeit.Username(),
			Skills:   skills,
		},
	}

	// Demo accounts share one password; bcrypt can be skipped for fast
	// local reseeding.
	if f.opts.SkipBcrypt {
		user.Password = "Password123!demo"
	} else {
		hash, _ := bcrypt.GenerateFromPassword([]byte("Password123!demo"), service.HashCost)
		user.Password = string(hash)
	}

	for _, override := range overrides {
		override(user)
	}
	return user
}

// CreateMember persists a generated member.
func (f *Factory) CreateMember(overrides ...func(*models.User)) (*models.User, error) {
	user := f.BuildMember(overrides...)
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func indexes(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
