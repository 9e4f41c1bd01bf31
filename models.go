package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role
type UserRole = string

const (
	// RoleUser is the default role assigned at registration
	RoleUser UserRole = "USER"
	// RoleManager can access manager and user resources
	RoleManager UserRole = "MANAGER"
	// RoleAdmin can access every resource
	RoleAdmin UserRole = "ADMIN"
)

// User is the user model. Email is the mandatory unique handle; username and
// country_code + mobile_number are optional secondary handles, unique when present.
// PasswordHash is empty for accounts provisioned through an external login pathway.
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Role           UserRole   `bun:"role,notnull" json:"role,omitempty"`
	FullName       string     `bun:"full_name,notnull" json:"full_name,omitempty"`
	Username       string     `bun:"username,nullzero,unique" json:"username,omitempty"`
	Email          string     `bun:"email,notnull,unique" json:"email,omitempty"`
	CountryCode    string     `bun:"country_code,nullzero" json:"country_code,omitempty"`
	MobileNumber   string     `bun:"mobile_number,nullzero" json:"mobile_number,omitempty"`
	PasswordHash   string     `bun:"password_hash" json:"-"`
	EmailValidated bool       `bun:"is_email_verified" json:"is_email_verified,omitempty"`
	PhoneValidated bool       `bun:"is_mobile_verified" json:"is_mobile_verified,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// Handle returns the user's display/lookup handle, preferring the username.
func (u *User) Handle() string {
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}

// Sanitized returns a copy safe to serialize in API responses.
// The password hash never leaves the process, json tag or not.
func (u *User) Sanitized() *User {
	if u == nil {
		return nil
	}
	clone := *u
	clone.PasswordHash = ""
	return &clone
}
