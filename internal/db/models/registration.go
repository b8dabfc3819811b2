// Package models contains database model definitions.
package models

import "time"

// Registration represents an application registration with an LTI platform.
// It holds the credential material the tool needs to verify launches coming
// from one platform tenant: issuer, client id and the platform endpoints.
type Registration struct {
	// ID is the unique identifier for the registration.
	ID uint64 `gorm:"primaryKey"`
	// Name is the admin-facing display name of the platform.
	Name string `gorm:"size:255;not null" validate:"required"`
	// Issuer is the platform issuer URL. Together with ClientID it forms a
	// unique constraint; both are immutable after creation.
	Issuer string `gorm:"size:255;not null;uniqueIndex:idx_issuer_client" validate:"required,url"`
	// ClientID is the client identifier the platform issued to this tool.
	ClientID string `gorm:"size:255;not null;uniqueIndex:idx_issuer_client" validate:"required"`
	// AuthRequestURL is the platform's OIDC authentication endpoint.
	AuthRequestURL string `gorm:"size:2048" validate:"required,url"`
	// JWKSURL is the platform's public keyset endpoint.
	JWKSURL string `gorm:"size:2048" validate:"required,url"`
	// AccessTokenURL is the platform's access token endpoint for
	// LTI Advantage service calls.
	AccessTokenURL string `gorm:"size:2048" validate:"omitempty,url"`
	// CreatedAt is the timestamp when the registration was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the registration was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the Registration model.
func (Registration) TableName() string {
	return "lti_registrations"
}
