// Package ltiuser provides persistence for platform users seen through
// launches or NRPS membership sync.
package ltiuser

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/models"
)

const tripleQueryPattern = "resource_id = ? AND deployment_id = ? AND source_id = ?"

var (
	// ErrLTIUserNotFound is returned when an LTI user record is not found.
	ErrLTIUserNotFound = errors.New("lti user not found")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// Get retrieves an LTI user record by resource, deployment and platform subject.
func Get(db *gorm.DB, resourceID, deploymentID uint64, sourceID string) (*models.LTIUser, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var u models.LTIUser
	result := db.Where(tripleQueryPattern, resourceID, deploymentID, sourceID).First(&u)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrLTIUserNotFound
		}
		return nil, result.Error
	}

	return &u, nil
}

// Upsert creates the LTI user record on first contact and refreshes its
// profile fields afterwards. The AccountID assigned on first persistence is
// never overwritten by later saves, which keeps a migrated identity attached
// to its original local account.
func Upsert(db *gorm.DB, u *models.LTIUser) (*models.LTIUser, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	existing, err := Get(db, u.ResourceID, u.DeploymentID, u.SourceID)
	if errors.Is(err, ErrLTIUserNotFound) {
		now := time.Now()
		u.LastAccess = &now

		result := db.Create(u)
		if result.Error != nil {
			return nil, result.Error
		}

		return u, nil
	}
	if err != nil {
		return nil, err
	}

	existing.FirstName = u.FirstName
	existing.LastName = u.LastName
	existing.Email = u.Email
	existing.Locale = u.Locale
	existing.City = u.City
	existing.Country = u.Country
	existing.Institution = u.Institution
	existing.Timezone = u.Timezone
	existing.MailDisplay = u.MailDisplay

	// membership sync rows carry neither a placement nor a local username;
	// keep what launches recorded
	if u.Username != "" {
		existing.Username = u.Username
	}

	if u.ResourceLinkID != nil {
		existing.ResourceLinkID = u.ResourceLinkID
	}

	// AccountID is write-once; only fill it when it was never assigned.
	if existing.AccountID == nil {
		existing.AccountID = u.AccountID
	}

	now := time.Now()
	existing.LastAccess = &now

	result := db.Save(existing)
	if result.Error != nil {
		return nil, result.Error
	}

	return existing, nil
}

// ListByResource retrieves all LTI user records of a published resource.
func ListByResource(db *gorm.DB, resourceID uint64) ([]models.LTIUser, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var users []models.LTIUser
	result := db.Where("resource_id = ?", resourceID).Find(&users)
	if result.Error != nil {
		return nil, result.Error
	}

	return users, nil
}
