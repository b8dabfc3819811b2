package models

import "time"

// ResourceLink represents one placement of the tool in a platform context,
// pointing at a locally published resource.
type ResourceLink struct {
	// ID is the unique identifier for the resource link.
	ID uint64 `gorm:"primaryKey"`
	// LinkID is the platform resource link identifier.
	LinkID string `gorm:"size:255;not null;uniqueIndex:idx_deployment_link"`
	// DeploymentID is the owning deployment.
	DeploymentID uint64 `gorm:"not null;uniqueIndex:idx_deployment_link"`
	// ResourceID references the locally published resource this link points at.
	ResourceID uint64 `gorm:"not null"`
	// LTIContextID is the platform context the link lives in, nil when the
	// launch carried no context claim.
	LTIContextID *uint64
	// CreatedAt is the timestamp when the resource link was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the resource link was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the ResourceLink model.
func (ResourceLink) TableName() string {
	return "lti_resource_links"
}
