// Package registration provides CRUD operations for platform registrations.
package registration

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/models"
)

const (
	issuerQueryPattern       = "issuer = ?"
	issuerClientQueryPattern = "issuer = ? AND client_id = ?"
)

var (
	// ErrRegistrationNotFound is returned when a registration is not found.
	ErrRegistrationNotFound = errors.New("registration not found")
	// ErrRegistrationExists is returned when a registration with the same issuer and client id already exists.
	ErrRegistrationExists = errors.New("registration for issuer and client id already exists")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// validate checks registration field constraints before persistence.
var validate = validator.New() //nolint:gochecknoglobals

// Create creates a new platform registration.
// Issuer and client id are immutable afterwards; only the endpoint URLs may
// change via UpdateEndpoints.
func Create(db *gorm.DB, reg *models.Registration) (*models.Registration, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	if err := validate.Struct(reg); err != nil {
		return nil, err
	}

	// Check if a registration for this issuer and client already exists
	var existing models.Registration
	result := db.Where(issuerClientQueryPattern, reg.Issuer, reg.ClientID).First(&existing)
	if result.Error == nil {
		return nil, ErrRegistrationExists
	}
	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, result.Error
	}

	result = db.Create(reg)
	if result.Error != nil {
		return nil, result.Error
	}

	return reg, nil
}

// GetByID retrieves a registration by its ID.
func GetByID(db *gorm.DB, id uint64) (*models.Registration, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var reg models.Registration
	result := db.First(&reg, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, result.Error
	}

	return &reg, nil
}

// GetByIssuer retrieves all registrations for a platform issuer.
// A platform may have registered this tool under more than one client id.
func GetByIssuer(db *gorm.DB, issuer string) ([]models.Registration, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var regs []models.Registration
	result := db.Where(issuerQueryPattern, issuer).Find(&regs)
	if result.Error != nil {
		return nil, result.Error
	}
	if len(regs) == 0 {
		return nil, ErrRegistrationNotFound
	}

	return regs, nil
}

// GetByIssuerClientID retrieves the registration matching issuer and client id.
func GetByIssuerClientID(db *gorm.DB, issuer, clientID string) (*models.Registration, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var reg models.Registration
	result := db.Where(issuerClientQueryPattern, issuer, clientID).First(&reg)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, result.Error
	}

	return &reg, nil
}

// List retrieves all registrations.
func List(db *gorm.DB) ([]models.Registration, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var regs []models.Registration
	result := db.Find(&regs)
	if result.Error != nil {
		return nil, result.Error
	}

	return regs, nil
}

// UpdateEndpoints updates the mutable endpoint URLs of a registration.
// Issuer and client id are left untouched.
func UpdateEndpoints(db *gorm.DB, id uint64, authRequestURL, jwksURL, accessTokenURL string) (*models.Registration, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	reg, err := GetByID(db, id)
	if err != nil {
		return nil, err
	}

	reg.AuthRequestURL = authRequestURL
	reg.JWKSURL = jwksURL
	reg.AccessTokenURL = accessTokenURL

	if err := validate.Struct(reg); err != nil {
		return nil, err
	}

	result := db.Save(reg)
	if result.Error != nil {
		return nil, result.Error
	}

	return reg, nil
}
