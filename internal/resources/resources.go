// Package resources exposes the published resource lookup the launch core
// consumes. Publishing itself lives outside the core; this package only reads.
package resources

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/models"
)

// ErrResourceNotFound is returned when no published resource carries the id.
var ErrResourceNotFound = errors.New("published resource not found")

// Store provides read access to published resources.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new resource store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Get retrieves a published resource by its local id.
func (s *Store) Get(id uint64) (*models.Resource, error) {
	var res models.Resource
	if err := s.db.First(&res, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrResourceNotFound
		}
		return nil, fmt.Errorf("failed to query resource: %w", err)
	}

	return &res, nil
}
