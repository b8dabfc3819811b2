package binding

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/models"
)

const (
	testIssuer  = "https://lms.example.org"
	testSubject = "sub-1"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.UserBinding{}))

	return db
}

func TestCreateConfirmedAndGet(t *testing.T) {
	db := testDB(t)

	b, err := CreateConfirmed(db, testIssuer, testSubject, 10)
	require.NoError(t, err)
	assert.True(t, b.Confirmed())

	got, err := GetConfirmed(db, testIssuer, testSubject)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), got.AccountID)

	// raw identifiers never reach the table
	assert.Equal(t, HashIdentity(testIssuer), got.IssuerHash)
	assert.Equal(t, HashIdentity(testSubject), got.SubjectHash)
}

func TestCreateConfirmedTwice(t *testing.T) {
	db := testDB(t)

	_, err := CreateConfirmed(db, testIssuer, testSubject, 10)
	require.NoError(t, err)

	_, err = CreateConfirmed(db, testIssuer, testSubject, 11)
	assert.ErrorIs(t, err, ErrBindingExists)
}

func TestPendingBindingIsNotConfirmed(t *testing.T) {
	db := testDB(t)

	_, err := CreatePending(db, testIssuer, testSubject, 10, "token-1", time.Now().Add(time.Hour), "/resume")
	require.NoError(t, err)

	_, err = GetConfirmed(db, testIssuer, testSubject)
	assert.ErrorIs(t, err, ErrBindingNotFound)
}

func TestConfirmRoundTrip(t *testing.T) {
	db := testDB(t)

	_, err := CreatePending(db, testIssuer, testSubject, 10, "token-1", time.Now().Add(time.Hour), "/resume")
	require.NoError(t, err)

	returnURL, ok, err := Confirm(db, testIssuer, testSubject, 10, "token-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "/resume", returnURL)

	// now a permanent binding
	got, err := GetConfirmed(db, testIssuer, testSubject)
	require.NoError(t, err)
	assert.True(t, got.Confirmed())

	// the token is single use
	_, ok, err = Confirm(db, testIssuer, testSubject, 10, "token-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConfirmConcurrentClicks(t *testing.T) {
	// file backed so both goroutines share the rows
	db, err := gorm.Open(
		sqlite.Open(filepath.Join(t.TempDir(), "bindings.db")),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)},
	)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.UserBinding{}))

	_, err = CreatePending(db, testIssuer, testSubject, 10, "token-1", time.Now().Add(time.Hour), "/resume")
	require.NoError(t, err)

	var (
		wg  sync.WaitGroup
		oks [2]bool
	)

	for i := range oks {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			_, ok, confirmErr := Confirm(db, testIssuer, testSubject, 10, "token-1")
			assert.NoError(t, confirmErr)
			oks[i] = ok
		}(i)
	}

	wg.Wait()

	// the token is spent by exactly one of the two clicks
	assert.NotEqual(t, oks[0], oks[1])
}

func TestConfirmFailsClosed(t *testing.T) {
	tests := []struct {
		name      string
		token     string
		accountID uint64
		expiry    time.Time
	}{
		{name: "wrong token", token: "token-wrong", accountID: 10, expiry: time.Now().Add(time.Hour)},
		{name: "wrong account", token: "token-1", accountID: 99, expiry: time.Now().Add(time.Hour)},
		{name: "expired", token: "token-1", accountID: 10, expiry: time.Now().Add(-time.Minute)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testDB(t)

			_, err := CreatePending(db, testIssuer, testSubject, 10, "token-1", tt.expiry, "/resume")
			require.NoError(t, err)

			_, ok, err := Confirm(db, testIssuer, testSubject, tt.accountID, tt.token)
			require.NoError(t, err)
			assert.False(t, ok)

			_, err = GetConfirmed(db, testIssuer, testSubject)
			assert.ErrorIs(t, err, ErrBindingNotFound)
		})
	}
}

func TestConfirmUnknownIdentity(t *testing.T) {
	db := testDB(t)

	_, ok, err := Confirm(db, testIssuer, testSubject, 10, "token-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPendingReplacesStalePending(t *testing.T) {
	db := testDB(t)

	_, err := CreatePending(db, testIssuer, testSubject, 10, "token-old", time.Now().Add(time.Hour), "/old")
	require.NoError(t, err)

	_, err = CreatePending(db, testIssuer, testSubject, 11, "token-new", time.Now().Add(time.Hour), "/new")
	require.NoError(t, err)

	// only the fresh pending binding confirms
	_, ok, err := Confirm(db, testIssuer, testSubject, 10, "token-old")
	require.NoError(t, err)
	assert.False(t, ok)
}
