// Package lticontext provides persistence for platform course/group contexts.
package lticontext

import (
	"errors"

	"gorm.io/gorm"

	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/models"
)

const deploymentContextQueryPattern = "deployment_id = ? AND context_id = ?"

var (
	// ErrContextNotFound is returned when a context is not found.
	ErrContextNotFound = errors.New("lti context not found")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// Get retrieves a context by deployment and platform context id.
func Get(db *gorm.DB, deploymentID uint64, contextID string) (*models.LTIContext, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var ctx models.LTIContext
	result := db.Where(deploymentContextQueryPattern, deploymentID, contextID).First(&ctx)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrContextNotFound
		}
		return nil, result.Error
	}

	return &ctx, nil
}

// Upsert creates the context on first launch and refreshes the asserted type
// URIs on every subsequent one. Relaunches never create duplicate rows.
func Upsert(db *gorm.DB, deploymentID uint64, contextID string, types []string) (*models.LTIContext, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	ctx, err := Get(db, deploymentID, contextID)
	if errors.Is(err, ErrContextNotFound) {
		ctx = &models.LTIContext{
			DeploymentID: deploymentID,
			ContextID:    contextID,
			Types:        types,
		}

		result := db.Create(ctx)
		if result.Error != nil {
			return nil, result.Error
		}

		return ctx, nil
	}
	if err != nil {
		return nil, err
	}

	ctx.Types = types
	result := db.Save(ctx)
	if result.Error != nil {
		return nil, result.Error
	}

	return ctx, nil
}
