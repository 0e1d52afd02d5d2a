package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validBase() *Config {
	return &Config{
		Port:               "8420",
		Env:                "development",
		JWTSecret:          "secure-secret-at-least-32-chars-long",
		AccessTokenTTLMin:  15,
		RefreshTokenTTLHrs: 168,
		DBPassword:         "secure-password",
		SMTPHost:           "smtp.example.org",
		SMTPFrom:           "noreply@example.org",
		PublicBaseURL:      "https://community.example.org",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{"valid development config", func(c *Config) {}, false},
		{"missing port", func(c *Config) { c.Port = "" }, true},
		{"missing jwt secret", func(c *Config) { c.JWTSecret = "" }, true},
		{"zero access ttl", func(c *Config) { c.AccessTokenTTLMin = 0 }, true},
		{"negative refresh ttl", func(c *Config) { c.RefreshTokenTTLHrs = -1 }, true},
		{"production with default jwt secret", func(c *Config) {
			c.Env = "production"
			c.JWTSecret = "your-secret-key-change-in-production"
		}, true},
		{"production with short jwt secret", func(c *Config) {
			c.Env = "production"
			c.JWTSecret = "too-short"
		}, true},
		{"production with default db password", func(c *Config) {
			c.Env = "production"
			c.DBPassword = "password"
		}, true},
		{"production without smtp", func(c *Config) {
			c.Env = "production"
			c.SMTPHost = ""
		}, true},
		{"production without public base url", func(c *Config) {
			c.Env = "production"
			c.PublicBaseURL = ""
		}, true},
		{"valid production config", func(c *Config) {
			c.Env = "production"
		}, false},
		{"prod alias validated like production", func(c *Config) {
			c.Env = "prod"
			c.JWTSecret = "short"
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validBase()
			tt.mutate(c)

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_OAuthConfigured(t *testing.T) {
	c := &Config{
		GoogleClientID:     "id",
		GoogleClientSecret: "secret",
		GithubClientID:     "id",
	}

	assert.True(t, c.OAuthConfigured("google"))
	assert.False(t, c.OAuthConfigured("github"), "secret missing")
	assert.False(t, c.OAuthConfigured("gitlab"), "unknown provider")
}
