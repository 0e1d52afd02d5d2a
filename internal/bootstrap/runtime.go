// Package bootstrap initializes runtime dependencies shared by the server
// and the command-line tools.
package bootstrap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/inner-byte/i2bt-v1/internal/cache"
	"github.com/inner-byte/i2bt-v1/internal/config"
	"github.com/inner-byte/i2bt-v1/internal/database"
	"github.com/inner-byte/i2bt-v1/internal/middleware"
	"github.com/inner-byte/i2bt-v1/internal/models"
	"github.com/inner-byte/i2bt-v1/internal/service"
)

// InitRuntime connects to the database and Redis and applies development
// bootstrapping. The Redis client may be nil when the store is unreachable;
// callers degrade instead of failing.
func InitRuntime(cfg *config.Config) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	rdb := cache.Connect(cfg.RedisURL)

	if err := ensureDevRootAdmin(cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development root admin: %w", err)
	}

	return db, rdb, nil
}

// ensureDevRootAdmin creates (or promotes) a known admin account in
// development so a fresh database is immediately usable. Production never
// runs this path.
func ensureDevRootAdmin(cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapRoot {
		return nil
	}

	email := strings.TrimSpace(strings.ToLower(cfg.DevRootEmail))
	if email == "" {
		email = "root@i2bt.local"
	}
	password := cfg.DevRootPassword
	if password == "" {
		return fmt.Errorf("DEV_ROOT_PASSWORD must be set when DEV_BOOTSTRAP_ROOT is enabled")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), service.HashCost)
	if err != nil {
		return fmt.Errorf("hash root password: %w", err)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		var root models.User
		findErr := tx.Where("email = ?", email).First(&root).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			root = models.User{
				Name:     "Root Admin",
				Email:    email,
				Password: string(hash),
				Role:     models.RoleAdmin,
				Profile:  &models.Profile{},
			}
			if err := tx.Create(&root).Error; err != nil {
				return err
			}
			middleware.Logger.Info("development root admin created", "email", email)
		case findErr != nil:
			return findErr
		default:
			if err := tx.Model(&models.User{}).Where("id = ?", root.ID).
				Updates(map[string]any{"role": string(models.RoleAdmin), "password": string(hash)}).Error; err != nil {
				return err
			}
			middleware.Logger.Info("development root admin refreshed", "email", email)
		}
		return nil
	})
}
