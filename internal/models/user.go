package models

import (
	"time"

	"gorm.io/gorm"
)

// Role defines the access level of a user. The set is closed so the route
// guard can branch exhaustively instead of comparing free-form strings.
type Role string

const (
	// RoleMember is the default role assigned on registration or first social login.
	RoleMember Role = "member"
	// RoleModerator grants access to moderation surfaces.
	RoleModerator Role = "moderator"
	// RoleAdmin grants access to everything, including role administration.
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleMember, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// rank orders roles for threshold checks. Unknown roles rank below member.
func (r Role) rank() int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleModerator:
		return 2
	case RoleMember:
		return 1
	}
	return 0
}

// AtLeast reports whether r satisfies the required access level.
func (r Role) AtLeast(required Role) bool {
	return r.rank() >= required.rank()
}

// User is a community member account. Password is empty for accounts created
// through a social provider; such accounts cannot log in with credentials.
type User struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Name            string         `gorm:"size:120" json:"name"`
	Email           string         `gorm:"size:254;not null;uniqueIndex" json:"email"`
	Password        string         `gorm:"size:120" json:"-"`
	Image           string         `gorm:"size:500" json:"image"`
	Role            Role           `gorm:"type:varchar(20);not null;default:'member'" json:"role"`
	Provider        string         `gorm:"size:20" json:"-"`
	EmailVerifiedAt *time.Time     `json:"email_verified_at,omitempty"`
	Profile         *Profile       `gorm:"foreignKey:UserID" json:"profile,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for GORM.
func (User) TableName() string {
	return "users"
}

// HasPassword reports whether the account can authenticate with credentials.
func (u *User) HasPassword() bool {
	return u.Password != ""
}

// Identity is the minimal projection returned by credential and social
// verification. It is what gets embedded in issued session tokens.
type Identity struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Image string `json:"image"`
	Role  Role   `json:"role"`
}

// IdentityOf projects a user into its token-facing identity.
func IdentityOf(u *User) Identity {
	return Identity{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
		Image: u.Image,
		Role:  u.Role,
	}
}
