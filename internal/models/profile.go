package models

import (
	"database/sql/driver"
	"strings"
	"time"
)

// Profile holds the public, member-editable part of an account. One row per
// user, created lazily on first profile read or update.
type Profile struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	Bio       string    `gorm:"type:text" json:"bio"`
	Location  string    `gorm:"size:120" json:"location"`
	Website   string    `gorm:"size:500" json:"website"`
	Github    string    `gorm:"size:120" json:"github"`
	Linkedin  string    `gorm:"size:120" json:"linkedin"`
	Twitter   string    `gorm:"size:120" json:"twitter"`
	Skills    SkillList `gorm:"type:text" json:"skills"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Profile) TableName() string {
	return "profiles"
}

// SkillList stores a list of skill strings as a single comma-separated
// column so the same model works on PostgreSQL and the SQLite test driver.
type SkillList []string

// Value implements driver.Valuer. The return type must be driver.Value, not
// a plain interface, or gorm treats the slice as a multi-column row value.
func (s SkillList) Value() (driver.Value, error) {
	return strings.Join(s, ","), nil
}

// Scan implements sql.Scanner.
func (s *SkillList) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	case nil:
		*s = nil
		return nil
	}
	if raw == "" {
		*s = nil
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make(SkillList, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	*s = out
	return nil
}

// Has reports whether the list contains the given skill, case-insensitively.
func (s SkillList) Has(skill string) bool {
	for _, have := range s {
		if strings.EqualFold(have, skill) {
			return true
		}
	}
	return false
}
