// Package enrol implements the enrolment side-effect applied after a
// successful launch: granting the resolved local account access to the course
// behind the published resource.
package enrol

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/models"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/lti"
)

const (
	// RoleTeacher is the local teacher-equivalent role.
	RoleTeacher = "teacher"
	// RoleStudent is the local student-equivalent role, also the
	// least-privilege default for unmapped platform roles.
	RoleStudent = "student"
)

// Service grants and revokes course access.
type Service struct {
	db *gorm.DB
}

// NewService creates a new enrolment service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Enrol grants an account the given role in a course. Re-enrolling is
// idempotent; an existing enrolment only has its role refreshed.
func (s *Service) Enrol(accountID, courseID uint64, role string) error {
	var existing models.Enrolment

	err := s.db.Where("account_id = ? AND course_id = ?", accountID, courseID).
		First(&existing).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		e := models.Enrolment{
			AccountID: accountID,
			CourseID:  courseID,
			Role:      role,
		}

		if err := s.db.Create(&e).Error; err != nil {
			return fmt.Errorf("failed to create enrolment: %w", err)
		}

		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to query enrolment: %w", err)
	}

	if existing.Role != role {
		existing.Role = role
		if err := s.db.Save(&existing).Error; err != nil {
			return fmt.Errorf("failed to update enrolment: %w", err)
		}
	}

	return nil
}

// Unenrol revokes an account's access to a course.
func (s *Service) Unenrol(accountID, courseID uint64) error {
	return s.db.Where("account_id = ? AND course_id = ?", accountID, courseID).
		Delete(&models.Enrolment{}).Error
}

// IsUserVisible reports whether a launched user may see the resource.
// Privileged users always see their own resources, hidden or not.
func (s *Service) IsUserVisible(res *models.Resource, role lti.Role) bool {
	if res == nil {
		return false
	}

	return res.Visible || role.Privileged()
}
