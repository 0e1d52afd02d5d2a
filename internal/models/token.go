package models

import "time"

// TokenPurpose distinguishes the two single-use token flows that share the
// action_tokens table.
type TokenPurpose string

const (
	// TokenPurposeReset authorizes a password change without the old password.
	TokenPurposeReset TokenPurpose = "password_reset"
	// TokenPurposeVerify proves control of the account's email address.
	TokenPurposeVerify TokenPurpose = "email_verify"
)

// ActionToken is a single-use, time-boxed capability tied to a user. Only the
// SHA-256 digest of the raw token is stored; the raw value exists solely in
// the emailed link.
type ActionToken struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	UserID    uint         `gorm:"not null;index" json:"user_id"`
	User      *User        `gorm:"foreignKey:UserID" json:"-"`
	Purpose   TokenPurpose `gorm:"type:varchar(20);not null;index" json:"purpose"`
	Digest    string       `gorm:"size:64;not null;uniqueIndex" json:"-"`
	ExpiresAt time.Time    `gorm:"not null" json:"expires_at"`
	UsedAt    *time.Time   `json:"used_at,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (ActionToken) TableName() string {
	return "action_tokens"
}

// Expired reports whether the token is past its expiry at the given time.
func (t *ActionToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
