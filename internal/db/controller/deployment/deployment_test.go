package deployment

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Registration{},
		&models.Deployment{},
		&models.LTIContext{},
		&models.ResourceLink{},
		&models.LTIUser{},
		&models.Account{},
		&models.Resource{},
		&models.Enrolment{},
	))

	return db
}

func seedRegistration(t *testing.T, db *gorm.DB) *models.Registration {
	t.Helper()

	reg := &models.Registration{
		Name:           "Test LMS",
		Issuer:         "https://lms.example.org",
		ClientID:       "client-abc",
		AuthRequestURL: "https://lms.example.org/auth",
		JWKSURL:        "https://lms.example.org/jwks",
	}
	require.NoError(t, db.Create(reg).Error)

	return reg
}

func TestCreateAndGet(t *testing.T) {
	db := testDB(t)
	reg := seedRegistration(t, db)

	dep, err := Create(db, reg.ID, "dep-1", "Campus Moodle")
	require.NoError(t, err)

	got, err := Get(db, reg.ID, "dep-1")
	require.NoError(t, err)
	assert.Equal(t, dep.ID, got.ID)
	assert.Nil(t, got.LegacyConsumerKey)

	_, err = Get(db, reg.ID, "dep-unknown")
	assert.ErrorIs(t, err, ErrDeploymentNotFound)
}

func TestSetLegacyConsumerKey(t *testing.T) {
	db := testDB(t)
	reg := seedRegistration(t, db)

	dep, err := Create(db, reg.ID, "dep-1", "")
	require.NoError(t, err)

	require.NoError(t, SetLegacyConsumerKey(db, dep.ID, "CONSUMER_1"))

	got, err := Get(db, reg.ID, "dep-1")
	require.NoError(t, err)
	require.NotNil(t, got.LegacyConsumerKey)
	assert.Equal(t, "CONSUMER_1", *got.LegacyConsumerKey)
}

// seedLaunchGraph creates the entity graph one launch leaves behind.
func seedLaunchGraph(t *testing.T, db *gorm.DB, dep *models.Deployment) (*models.Account, *models.Resource) {
	t.Helper()

	account := &models.Account{Username: "user-1", Email: "u1@example.org", Active: true, AuthSource: models.AuthSourceLTI}
	require.NoError(t, db.Create(account).Error)

	res := &models.Resource{Name: "Quiz", CourseID: 77, Visible: true}
	require.NoError(t, db.Create(res).Error)

	ctx := &models.LTIContext{DeploymentID: dep.ID, ContextID: "course-7"}
	require.NoError(t, db.Create(ctx).Error)

	link := &models.ResourceLink{LinkID: "link-1", DeploymentID: dep.ID, ResourceID: res.ID, LTIContextID: &ctx.ID}
	require.NoError(t, db.Create(link).Error)

	user := &models.LTIUser{ResourceID: res.ID, DeploymentID: dep.ID, SourceID: "sub-1", AccountID: &account.ID}
	require.NoError(t, db.Create(user).Error)

	enr := &models.Enrolment{AccountID: account.ID, CourseID: res.CourseID, Role: "student"}
	require.NoError(t, db.Create(enr).Error)

	return account, res
}

func TestDeleteCascades(t *testing.T) {
	db := testDB(t)
	reg := seedRegistration(t, db)

	dep, err := Create(db, reg.ID, "dep-1", "")
	require.NoError(t, err)

	account, res := seedLaunchGraph(t, db, dep)

	require.NoError(t, Delete(db, dep.ID))

	var count int64

	db.Model(&models.LTIContext{}).Count(&count)
	assert.Zero(t, count)

	db.Model(&models.ResourceLink{}).Count(&count)
	assert.Zero(t, count)

	db.Model(&models.LTIUser{}).Count(&count)
	assert.Zero(t, count)

	db.Model(&models.Enrolment{}).Count(&count)
	assert.Zero(t, count)

	// local account and published resource survive
	assert.NoError(t, db.First(&models.Account{}, account.ID).Error)
	assert.NoError(t, db.First(&models.Resource{}, res.ID).Error)
}

func TestDeleteByRegistration(t *testing.T) {
	db := testDB(t)
	reg := seedRegistration(t, db)

	dep, err := Create(db, reg.ID, "dep-1", "")
	require.NoError(t, err)
	_, err = Create(db, reg.ID, "dep-2", "")
	require.NoError(t, err)

	seedLaunchGraph(t, db, dep)

	require.NoError(t, DeleteByRegistration(db, reg.ID))

	var count int64

	db.Model(&models.Deployment{}).Count(&count)
	assert.Zero(t, count)

	db.Model(&models.Registration{}).Count(&count)
	assert.Zero(t, count)
}
