package models

import "time"

// UserBinding represents an explicit link between a platform identity and a
// local account. Issuer and subject are stored as SHA-256 hex digests so raw
// platform identifiers never become lookup keys.
//
// A binding is created unconfirmed (with an expiring token) when a privileged
// user chooses to link an existing account; the token is cleared when the
// confirmation link is clicked within the expiry window, making the binding
// permanent. Auto-provisioned bindings are created with no token at all.
type UserBinding struct {
	// ID is the unique identifier for the binding.
	ID uint64 `gorm:"primaryKey"`
	// IssuerHash is the SHA-256 hex digest of the platform issuer.
	IssuerHash string `gorm:"size:64;not null;uniqueIndex:idx_issuer_subject"`
	// SubjectHash is the SHA-256 hex digest of the platform subject.
	SubjectHash string `gorm:"size:64;not null;uniqueIndex:idx_issuer_subject"`
	// AccountID is the bound local account.
	AccountID uint64 `gorm:"not null"`
	// Token is the single-use confirmation token, empty once confirmed.
	Token string `gorm:"size:64"`
	// TokenExpiry bounds the confirmation window, nil once confirmed.
	TokenExpiry *time.Time
	// ReturnURL is the launch URL to resume after confirmation.
	ReturnURL string `gorm:"size:2048"`
	// CreatedAt is the timestamp when the binding was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the binding was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the UserBinding model.
func (UserBinding) TableName() string {
	return "lti_user_bindings"
}

// Confirmed reports whether the binding is permanent.
func (b *UserBinding) Confirmed() bool {
	return b.Token == "" && b.TokenExpiry == nil
}
