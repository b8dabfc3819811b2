package enrol

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/models"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/lti"
)

func testService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Enrolment{}))

	return NewService(db), db
}

func TestEnrolIsIdempotent(t *testing.T) {
	svc, db := testService(t)

	require.NoError(t, svc.Enrol(1, 77, RoleStudent))
	require.NoError(t, svc.Enrol(1, 77, RoleStudent))

	var count int64
	db.Model(&models.Enrolment{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestEnrolRefreshesRole(t *testing.T) {
	svc, db := testService(t)

	require.NoError(t, svc.Enrol(1, 77, RoleStudent))
	require.NoError(t, svc.Enrol(1, 77, RoleTeacher))

	var enr models.Enrolment
	require.NoError(t, db.First(&enr).Error)
	assert.Equal(t, RoleTeacher, enr.Role)
}

func TestUnenrol(t *testing.T) {
	svc, db := testService(t)

	require.NoError(t, svc.Enrol(1, 77, RoleStudent))
	require.NoError(t, svc.Unenrol(1, 77))

	var count int64
	db.Model(&models.Enrolment{}).Count(&count)
	assert.Zero(t, count)
}

func TestIsUserVisible(t *testing.T) {
	svc, _ := testService(t)

	visible := &models.Resource{Visible: true}
	hidden := &models.Resource{Visible: false}

	assert.True(t, svc.IsUserVisible(visible, lti.RoleLearner))
	assert.False(t, svc.IsUserVisible(hidden, lti.RoleLearner))
	assert.True(t, svc.IsUserVisible(hidden, lti.RoleStaff))
	assert.True(t, svc.IsUserVisible(hidden, lti.RoleAdmin))
	assert.False(t, svc.IsUserVisible(nil, lti.RoleAdmin))
}
