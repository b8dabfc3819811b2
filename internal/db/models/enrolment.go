package models

import "time"

// Enrolment represents a local account's membership in a course with a role.
type Enrolment struct {
	// ID is the unique identifier for the enrolment.
	ID uint64 `gorm:"primaryKey"`
	// AccountID is the enrolled account.
	AccountID uint64 `gorm:"not null;uniqueIndex:idx_account_course"`
	// CourseID is the course the account is enrolled into.
	CourseID uint64 `gorm:"not null;uniqueIndex:idx_account_course"`
	// Role is the local role granted by the enrolment.
	Role string `gorm:"size:30;not null"`
	// CreatedAt is the timestamp when the enrolment was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the enrolment was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the Enrolment model.
func (Enrolment) TableName() string {
	return "enrolments"
}
