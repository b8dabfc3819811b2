package models

import "time"

// Deployment represents one installation instance of the tool within a
// platform registration. The platform-issued DeploymentID is only unique
// within its registration.
type Deployment struct {
	// ID is the unique identifier for the deployment.
	ID uint64 `gorm:"primaryKey"`
	// RegistrationID is the owning registration.
	RegistrationID uint64 `gorm:"not null;uniqueIndex:idx_reg_deployment"`
	// DeploymentID is the platform-issued deployment identifier.
	DeploymentID string `gorm:"size:255;not null;uniqueIndex:idx_reg_deployment"`
	// Name is the admin-facing display name of the deployment.
	Name string `gorm:"size:255"`
	// LegacyConsumerKey is the LTI 1.1 consumer key this deployment was
	// migrated from, nil when the deployment never saw a migrated launch.
	LegacyConsumerKey *string `gorm:"size:255"`
	// CreatedAt is the timestamp when the deployment was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the deployment was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the Deployment model.
func (Deployment) TableName() string {
	return "lti_deployments"
}
