// Package resourcelink provides persistence for tool placements.
package resourcelink

import (
	"errors"

	"gorm.io/gorm"

	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/models"
)

const deploymentLinkQueryPattern = "deployment_id = ? AND link_id = ?"

var (
	// ErrResourceLinkNotFound is returned when a resource link is not found.
	ErrResourceLinkNotFound = errors.New("resource link not found")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// Get retrieves a resource link by deployment and platform link id.
func Get(db *gorm.DB, deploymentID uint64, linkID string) (*models.ResourceLink, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var link models.ResourceLink
	result := db.Where(deploymentLinkQueryPattern, deploymentID, linkID).First(&link)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrResourceLinkNotFound
		}
		return nil, result.Error
	}

	return &link, nil
}

// Upsert creates the resource link on first launch and refreshes its resource
// and context references afterwards. Relaunches never create duplicate rows.
func Upsert(db *gorm.DB, linkID string, deploymentID, resourceID uint64, ltiContextID *uint64) (*models.ResourceLink, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	link, err := Get(db, deploymentID, linkID)
	if errors.Is(err, ErrResourceLinkNotFound) {
		link = &models.ResourceLink{
			LinkID:       linkID,
			DeploymentID: deploymentID,
			ResourceID:   resourceID,
			LTIContextID: ltiContextID,
		}

		result := db.Create(link)
		if result.Error != nil {
			return nil, result.Error
		}

		return link, nil
	}
	if err != nil {
		return nil, err
	}

	link.ResourceID = resourceID
	link.LTIContextID = ltiContextID

	result := db.Save(link)
	if result.Error != nil {
		return nil, result.Error
	}

	return link, nil
}

// ListByResource retrieves all links placed for a published resource.
func ListByResource(db *gorm.DB, resourceID uint64) ([]models.ResourceLink, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var links []models.ResourceLink
	result := db.Where("resource_id = ?", resourceID).Find(&links)
	if result.Error != nil {
		return nil, result.Error
	}

	return links, nil
}
