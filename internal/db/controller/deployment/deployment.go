// Package deployment provides CRUD and cascade operations for tool deployments.
package deployment

import (
	"errors"

	"gorm.io/gorm"

	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/models"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/enrol"
)

const (
	regDeploymentQueryPattern = "registration_id = ? AND deployment_id = ?"
	deploymentFKQueryPattern  = "deployment_id = ?"
)

var (
	// ErrDeploymentNotFound is returned when a deployment is not found.
	ErrDeploymentNotFound = errors.New("deployment not found")
	// ErrDeploymentExists is returned when the registration already carries the deployment id.
	ErrDeploymentExists = errors.New("deployment already exists for registration")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// Create adds a tool deployment to a registration.
func Create(db *gorm.DB, registrationID uint64, deploymentID, name string) (*models.Deployment, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var existing models.Deployment
	result := db.Where(regDeploymentQueryPattern, registrationID, deploymentID).First(&existing)
	if result.Error == nil {
		return nil, ErrDeploymentExists
	}
	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, result.Error
	}

	dep := &models.Deployment{
		RegistrationID: registrationID,
		DeploymentID:   deploymentID,
		Name:           name,
	}

	result = db.Create(dep)
	if result.Error != nil {
		return nil, result.Error
	}

	return dep, nil
}

// Get retrieves a deployment by registration and platform deployment id.
func Get(db *gorm.DB, registrationID uint64, deploymentID string) (*models.Deployment, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var dep models.Deployment
	result := db.Where(regDeploymentQueryPattern, registrationID, deploymentID).First(&dep)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrDeploymentNotFound
		}
		return nil, result.Error
	}

	return &dep, nil
}

// ListByRegistration retrieves all deployments of a registration.
func ListByRegistration(db *gorm.DB, registrationID uint64) ([]models.Deployment, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var deps []models.Deployment
	result := db.Where("registration_id = ?", registrationID).Find(&deps)
	if result.Error != nil {
		return nil, result.Error
	}

	return deps, nil
}

// SetLegacyConsumerKey records the LTI 1.1 consumer key a deployment was
// migrated from. Written once on the first successfully migrated launch.
func SetLegacyConsumerKey(db *gorm.DB, id uint64, consumerKey string) error {
	if db == nil {
		return ErrDBNil
	}

	result := db.Model(&models.Deployment{}).
		Where("id = ?", id).
		Update("legacy_consumer_key", consumerKey)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDeploymentNotFound
	}

	return nil
}

// Delete removes a deployment and everything hanging off it: contexts,
// resource links and LTI user records. Affected accounts are unenrolled from
// the courses behind the linked resources, but neither the accounts nor the
// published resource records are deleted.
func Delete(db *gorm.DB, id uint64) error {
	if db == nil {
		return ErrDBNil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := unenrolDeploymentUsers(tx, id); err != nil {
			return err
		}

		if err := tx.Where(deploymentFKQueryPattern, id).Delete(&models.LTIUser{}).Error; err != nil {
			return err
		}

		if err := tx.Where(deploymentFKQueryPattern, id).Delete(&models.ResourceLink{}).Error; err != nil {
			return err
		}

		if err := tx.Where(deploymentFKQueryPattern, id).Delete(&models.LTIContext{}).Error; err != nil {
			return err
		}

		result := tx.Delete(&models.Deployment{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrDeploymentNotFound
		}

		return nil
	})
}

// DeleteByRegistration cascades Delete over all deployments of a registration
// and finally removes the registration itself.
func DeleteByRegistration(db *gorm.DB, registrationID uint64) error {
	if db == nil {
		return ErrDBNil
	}

	deps, err := ListByRegistration(db, registrationID)
	if err != nil {
		return err
	}

	for _, dep := range deps {
		if err := Delete(db, dep.ID); err != nil {
			return err
		}
	}

	return db.Delete(&models.Registration{}, registrationID).Error
}

// unenrolDeploymentUsers removes the enrolments granted through a
// deployment's LTI users.
func unenrolDeploymentUsers(tx *gorm.DB, deploymentID uint64) error {
	var users []models.LTIUser
	if err := tx.Where(deploymentFKQueryPattern, deploymentID).Find(&users).Error; err != nil {
		return err
	}

	enrolments := enrol.NewService(tx)

	for _, u := range users {
		if u.AccountID == nil {
			continue
		}

		var res models.Resource
		if err := tx.First(&res, u.ResourceID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return err
		}

		if err := enrolments.Unenrol(*u.AccountID, res.CourseID); err != nil {
			return err
		}
	}

	return nil
}
