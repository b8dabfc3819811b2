package models

import "time"

// LTIUser represents a platform user as seen through launches or NRPS
// membership sync, scoped to one published resource. AccountID points at the
// local account the platform identity resolved to; it stays stable across
// delete/recreate cycles of the row so migrated identities keep their local
// account.
type LTIUser struct {
	// ID is the unique identifier for the LTI user record.
	ID uint64 `gorm:"primaryKey"`
	// ResourceID is the published resource this user record belongs to.
	ResourceID uint64 `gorm:"not null;uniqueIndex:idx_resource_deployment_source"`
	// DeploymentID is the deployment the user launched through.
	DeploymentID uint64 `gorm:"not null;uniqueIndex:idx_resource_deployment_source"`
	// SourceID is the platform subject (LTI 1.3 sub or legacy user_id).
	SourceID string `gorm:"size:255;not null;uniqueIndex:idx_resource_deployment_source"`
	// AccountID is the local account reference, assigned on persistence.
	AccountID *uint64
	// ResourceLinkID is the most recent resource link the user arrived by.
	ResourceLinkID *uint64

	FirstName   string `gorm:"size:100"`
	LastName    string `gorm:"size:100"`
	Username    string `gorm:"size:100"`
	Email       string `gorm:"size:255"`
	Locale      string `gorm:"size:30"`
	City        string `gorm:"size:120"`
	Country     string `gorm:"size:2"`
	Institution string `gorm:"size:255"`
	Timezone    string `gorm:"size:100"`
	MailDisplay int
	LastAccess  *time.Time
	// LastGrade is the most recent grade reported for this placement, nil
	// until one exists.
	LastGrade *float64

	// CreatedAt is the timestamp when the record was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the record was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the LTIUser model.
func (LTIUser) TableName() string {
	return "lti_users"
}
