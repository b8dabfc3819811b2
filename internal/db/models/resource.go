package models

import "time"

// Resource represents a locally published resource that platforms may place
// via resource links. The record itself is owned by the publishing subsystem;
// the launch core only reads it and never deletes it.
type Resource struct {
	// ID is the unique identifier for the resource.
	ID uint64 `gorm:"primaryKey"`
	// Name is the display name of the published resource.
	Name string `gorm:"size:255;not null"`
	// CourseID is the local course the resource belongs to.
	CourseID uint64 `gorm:"not null"`
	// GradingEnabled indicates whether grades are passed back for this resource.
	GradingEnabled bool
	// ForceEmbed requests the forced-embedding display hint for learners.
	ForceEmbed bool
	// Visible controls whether launched users may see the resource.
	Visible bool
	// CreatedAt is the timestamp when the resource was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the resource was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the Resource model.
func (Resource) TableName() string {
	return "resources"
}
