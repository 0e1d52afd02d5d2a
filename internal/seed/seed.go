package seed

import (
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/inner-byte/i2bt-v1/internal/models"
)

// Options configuration for the seeder
type Options struct {
	NumMembers  int
	ShouldClean bool
	SkipBcrypt  bool
}

// Seed populates the database with demo members, one moderator and one
// admin, so the directory and the role-guarded routes have something to
// show.
func Seed(db *gorm.DB, opts Options) error {
	if opts.NumMembers <= 0 {
		opts.NumMembers = 25
	}

	log.Printf("🌱 Seeding %d demo members...", opts.NumMembers)

	if opts.ShouldClean {
		if err := clearData(db); err != nil {
			log.Println("⚠️  Warning: could not clear all existing data, continuing anyway...")
		}
	}

	factory := NewFactory(db, opts)

	for i := 0; i < opts.NumMembers; i++ {
		if _, err := factory.CreateMember(); err != nil {
			return fmt.Errorf("failed to create member: %w", err)
		}
	}

	if _, err := factory.CreateMember(func(u *models.User) {
		u.Name = "Demo Moderator"
		u.Email = "moderator@i2bt.local"
		u.Role = models.RoleModerator
	}); err != nil {
		return fmt.Errorf("failed to create moderator: %w", err)
	}

	if _, err := factory.CreateMember(func(u *models.User) {
		u.Name = "Demo Admin"
		u.Email = "admin@i2bt.local"
		u.Role = models.RoleAdmin
	}); err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}

	log.Printf("✓ seeded %d members plus moderator and admin", opts.NumMembers)
	return nil
}

// clearData truncates seeded tables in dependency order.
func clearData(db *gorm.DB) error {
	for _, model := range []any{
		&models.ActionToken{},
		&models.Profile{},
		&models.User{},
	} {
		if err := db.Unscoped().Where("1 = 1").Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}
