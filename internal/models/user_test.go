package models

import (
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// SkillList must satisfy the database/sql interfaces exactly, or gorm
// expands the slice into a multi-column row value instead of one text column.
var (
	_ driver.Valuer = SkillList{}
	_ sql.Scanner   = (*SkillList)(nil)
)

func TestRole_Valid(t *testing.T) {
	assert.True(t, RoleMember.Valid())
	assert.True(t, RoleModerator.Valid())
	assert.True(t, RoleAdmin.Valid())
	assert.False(t, Role("").Valid())
	assert.False(t, Role("superuser").Valid())
}

func TestRole_AtLeast(t *testing.T) {
	tests := []struct {
		name     string
		role     Role
		required Role
		want     bool
	}{
		{"admin satisfies admin", RoleAdmin, RoleAdmin, true},
		{"admin satisfies moderator", RoleAdmin, RoleModerator, true},
		{"admin satisfies member", RoleAdmin, RoleMember, true},
		{"moderator satisfies moderator", RoleModerator, RoleModerator, true},
		{"moderator fails admin", RoleModerator, RoleAdmin, false},
		{"member fails moderator", RoleMember, RoleModerator, false},
		{"unknown role fails member", Role("ghost"), RoleMember, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.role.AtLeast(tt.required))
		})
	}
}

func TestUser_HasPassword(t *testing.T) {
	assert.True(t, (&User{Password: "hash"}).HasPassword())
	assert.False(t, (&User{Provider: "google"}).HasPassword())
}

func TestIdentityOf(t *testing.T) {
	u := &User{
		ID:       7,
		Name:     "Ada",
		Email:    "ada@example.org",
		Image:    "https://example.org/ada.png",
		Role:     RoleModerator,
		Password: "never-exposed",
	}

	id := IdentityOf(u)
	assert.Equal(t, uint(7), id.ID)
	assert.Equal(t, "ada@example.org", id.Email)
	assert.Equal(t, RoleModerator, id.Role)
}

func TestSkillList_RoundTrip(t *testing.T) {
	skills := SkillList{"Go", "React", "PostgreSQL"}

	v, err := skills.Value()
	assert.NoError(t, err)
	assert.Equal(t, "Go,React,PostgreSQL", v)

	var out SkillList
	assert.NoError(t, out.Scan(v))
	assert.Equal(t, skills, out)
}

func TestSkillList_ScanEdgeCases(t *testing.T) {
	var s SkillList
	assert.NoError(t, s.Scan(""))
	assert.Nil(t, s)

	assert.NoError(t, s.Scan("Go, ,React,"))
	assert.Equal(t, SkillList{"Go", "React"}, s)

	assert.NoError(t, s.Scan(nil))
	assert.Nil(t, s)
}

func TestSkillList_Has(t *testing.T) {
	s := SkillList{"Go", "Machine Learning"}
	assert.True(t, s.Has("go"))
	assert.True(t, s.Has("machine learning"))
	assert.False(t, s.Has("Rust"))
}

func TestActionToken_Expired(t *testing.T) {
	now := time.Now()
	tok := &ActionToken{ExpiresAt: now.Add(time.Hour)}
	assert.False(t, tok.Expired(now))
	assert.True(t, tok.Expired(now.Add(2*time.Hour)))
}
