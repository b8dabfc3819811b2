package models

import "time"

// LTIContext represents a platform-side course or group container in which
// the tool has been launched. The platform ContextID is only unique within
// its deployment.
type LTIContext struct {
	// ID is the unique identifier for the context.
	ID uint64 `gorm:"primaryKey"`
	// DeploymentID is the owning deployment.
	DeploymentID uint64 `gorm:"not null;uniqueIndex:idx_deployment_context"`
	// ContextID is the platform context identifier.
	ContextID string `gorm:"size:255;not null;uniqueIndex:idx_deployment_context"`
	// Types holds the context type URIs asserted by the platform.
	Types []string `gorm:"serializer:json"`
	// CreatedAt is the timestamp when the context was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the context was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the LTIContext model.
func (LTIContext) TableName() string {
	return "lti_contexts"
}
