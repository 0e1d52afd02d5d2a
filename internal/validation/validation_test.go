package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name        string
		password    string
		expectError bool
	}{
		{"valid password", "Str0ng!Passw0rd", false},
		{"too short", "Sh0rt!pw", true},
		{"too long", strings.Repeat("Aa1!", 19), true},
		{"no uppercase", "weak!passw0rd1", true},
		{"no lowercase", "WEAK!PASSW0RD1", true},
		{"no digit", "Weak!Password!", true},
		{"no special character", "WeakPassword01", true},
		{"exactly twelve chars", "Aa1!aaaaaaaa", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name        string
		email       string
		expectError bool
	}{
		{"valid email", "user@example.org", false},
		{"subdomain", "user@mail.example.org", false},
		{"plus alias", "user+tag@example.org", false},
		{"missing at", "userexample.org", true},
		{"missing tld", "user@example", true},
		{"empty", "", true},
		{"too long", strings.Repeat("a", 250) + "@x.io", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateImageURL(t *testing.T) {
	assert.NoError(t, ValidateImageURL("https://cdn.example.org/avatar.png"))
	assert.NoError(t, ValidateImageURL("http://cdn.example.org/avatar.png"))
	assert.Error(t, ValidateImageURL("ftp://cdn.example.org/avatar.png"))
	assert.Error(t, ValidateImageURL("/relative/avatar.png"))
	assert.Error(t, ValidateImageURL("https://cdn.example.org/"+strings.Repeat("a", 500)))
}
