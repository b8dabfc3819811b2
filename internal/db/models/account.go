package models

import (
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/rs/zerolog/log"
)

// AuthSource represents the authentication source for a local account.
// It indicates how the account authenticates (local database password or
// platform-managed LTI identity).
type AuthSource string

const (
	// AuthSourceLocal indicates the account authenticates with a local database password.
	AuthSourceLocal AuthSource = "local"
	// AuthSourceLTI indicates the account was provisioned from LTI launch
	// claims and its profile is managed by the platform.
	AuthSourceLTI AuthSource = "lti"
)

// Account represents a local user account.
// Accounts are either created by an administrator (local) or auto-provisioned
// from validated launch claims (lti). Profile fields of lti accounts are
// refreshed on every launch; local accounts are never overwritten from claims.
type Account struct {
	// ID is the unique identifier for the account.
	ID uint64 `gorm:"primaryKey"`
	// Active indicates whether the account can log in.
	Active bool
	// Confirmed indicates the account needs no further email confirmation.
	// Auto-provisioned lti accounts are always confirmed.
	Confirmed bool
	// Username is the unique username for login.
	Username string `gorm:"unique;size:100;not null"`
	// Email is the account's email address.
	Email string `gorm:"size:255;not null"`
	// Password is the Argon2id hashed password (only used for local authentication).
	Password string `gorm:"size:255"`
	// FirstName is the account's first or given name.
	FirstName string `gorm:"size:100"`
	// LastName is the account's last or family name.
	LastName string `gorm:"size:100"`
	// AuthSource indicates how this account authenticates (local or lti).
	AuthSource AuthSource `gorm:"type:varchar(20);not null;default:'local'"`

	Locale      string `gorm:"size:30"`
	City        string `gorm:"size:120"`
	Country     string `gorm:"size:2"`
	Institution string `gorm:"size:255"`
	Timezone    string `gorm:"size:100"`
	MailDisplay int

	// CreatedAt is the timestamp when the account was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the account was last updated (managed by GORM).
	UpdatedAt time.Time
	// DeletedAt is the soft delete timestamp (nil if not deleted, managed by GORM).
	DeletedAt *time.Time
}

// TableName specifies the database table name for the Account model.
func (Account) TableName() string {
	return "accounts"
}

// HashPassword hashes a plaintext password using the Argon2id algorithm.
// This function should be used when creating or updating local account passwords.
// It uses the default Argon2id parameters for secure password hashing.
func HashPassword(password string) string {
	hashedPassword, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		log.Fatal().Msgf("failed to hash password: %v", err)
	}

	return hashedPassword
}

// VerifyPassword verifies a plaintext password against the account's stored hashed password.
// It uses constant-time comparison to prevent timing attacks.
// Returns true if the password matches, false otherwise.
func (a *Account) VerifyPassword(password string) bool {
	match, err := argon2id.ComparePasswordAndHash(password, a.Password)
	if err != nil {
		log.Error().Msgf("failed to verify password: %v", err)
		return false
	}

	return match
}
