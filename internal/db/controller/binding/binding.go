// Package binding provides persistence for platform-identity to local-account
// bindings. Issuer and subject are hashed before they touch the database so
// raw platform identifiers never become lookup keys.
package binding

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/models"
)

const hashQueryPattern = "issuer_hash = ? AND subject_hash = ?"

var (
	// ErrBindingNotFound is returned when no binding exists for the identity.
	ErrBindingNotFound = errors.New("user binding not found")
	// ErrBindingExists is returned when the identity is already permanently bound.
	ErrBindingExists = errors.New("identity is already bound to an account")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// HashIdentity returns the SHA-256 hex digest used as lookup key for issuer
// and subject values.
func HashIdentity(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// get retrieves the binding row for an identity, confirmed or not.
func get(db *gorm.DB, issuer, subject string) (*models.UserBinding, error) {
	var b models.UserBinding
	result := db.Where(hashQueryPattern, HashIdentity(issuer), HashIdentity(subject)).First(&b)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrBindingNotFound
		}
		return nil, result.Error
	}

	return &b, nil
}

// GetConfirmed retrieves the permanent binding for an identity.
// Pending bindings (confirmation still outstanding) are not returned.
func GetConfirmed(db *gorm.DB, issuer, subject string) (*models.UserBinding, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	b, err := get(db, issuer, subject)
	if err != nil {
		return nil, err
	}

	if !b.Confirmed() {
		return nil, ErrBindingNotFound
	}

	return b, nil
}

// CreateConfirmed permanently binds an identity to an account without a
// confirmation step. Used by the automatic provisioning paths. A leftover
// pending binding for the same identity is replaced; a permanent one is not.
func CreateConfirmed(db *gorm.DB, issuer, subject string, accountID uint64) (*models.UserBinding, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	existing, err := get(db, issuer, subject)
	switch {
	case err == nil && existing.Confirmed():
		return nil, ErrBindingExists
	case err == nil:
		// replace the stale pending binding
		if err := db.Delete(&models.UserBinding{}, existing.ID).Error; err != nil {
			return nil, err
		}
	case !errors.Is(err, ErrBindingNotFound):
		return nil, err
	}

	b := &models.UserBinding{
		IssuerHash:  HashIdentity(issuer),
		SubjectHash: HashIdentity(subject),
		AccountID:   accountID,
	}

	// The unique index on (issuer_hash, subject_hash) makes a concurrent
	// double-create fail with a constraint violation instead of silently
	// producing two rows.
	result := db.Create(b)
	if result.Error != nil {
		return nil, result.Error
	}

	return b, nil
}

// CreatePending creates an unconfirmed binding carrying a single-use token
// that expires at the given time. An existing pending binding for the same
// identity is replaced so a restarted flow never leaves two outstanding
// tokens.
func CreatePending(db *gorm.DB, issuer, subject string, accountID uint64, token string, expiry time.Time, returnURL string) (*models.UserBinding, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	existing, err := get(db, issuer, subject)
	switch {
	case err == nil && existing.Confirmed():
		return nil, ErrBindingExists
	case err == nil:
		if err := db.Delete(&models.UserBinding{}, existing.ID).Error; err != nil {
			return nil, err
		}
	case !errors.Is(err, ErrBindingNotFound):
		return nil, err
	}

	b := &models.UserBinding{
		IssuerHash:  HashIdentity(issuer),
		SubjectHash: HashIdentity(subject),
		AccountID:   accountID,
		Token:       token,
		TokenExpiry: &expiry,
		ReturnURL:   returnURL,
	}

	result := db.Create(b)
	if result.Error != nil {
		return nil, result.Error
	}

	return b, nil
}

// Confirm finalizes a pending binding. It fails closed: any mismatch (absent
// binding, expired token, wrong token, wrong account) yields ok == false
// rather than an error, because the endpoint behind it is reached by
// untrusted direct navigation. Expired bindings are deleted on the way out.
// On success the token fields are cleared exactly once and the return URL
// cached at initiation time is handed back.
func Confirm(db *gorm.DB, issuer, subject string, accountID uint64, token string) (returnURL string, ok bool, err error) {
	if db == nil {
		return "", false, ErrDBNil
	}

	b, err := get(db, issuer, subject)
	if errors.Is(err, ErrBindingNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	// already confirmed: the token was spent, a second click fails
	if b.Confirmed() {
		return "", false, nil
	}

	if b.TokenExpiry == nil || time.Now().After(*b.TokenExpiry) {
		// expired: remove the record, the flow has to be restarted
		if err := db.Delete(&models.UserBinding{}, b.ID).Error; err != nil {
			return "", false, err
		}

		return "", false, nil
	}

	// MAC-style check: constant-time comparison of the presented token
	if subtle.ConstantTimeCompare([]byte(b.Token), []byte(token)) != 1 {
		return "", false, nil
	}

	// bind strictly by the account id embedded in the signed link, never by
	// the current session identity
	if b.AccountID != accountID {
		return "", false, nil
	}

	returnURL = b.ReturnURL

	// the token guard spends the token atomically: of two concurrent
	// confirmations only one update matches, the other sees zero rows
	result := db.Model(&models.UserBinding{}).
		Where("id = ? AND token = ?", b.ID, b.Token).
		Updates(map[string]interface{}{"token": "", "token_expiry": nil})
	if result.Error != nil {
		return "", false, result.Error
	}
	if result.RowsAffected == 0 {
		return "", false, nil
	}

	return returnURL, true, nil
}

// Delete removes the binding for an identity.
func Delete(db *gorm.DB, issuer, subject string) error {
	if db == nil {
		return ErrDBNil
	}

	result := db.Where(hashQueryPattern, HashIdentity(issuer), HashIdentity(subject)).
		Delete(&models.UserBinding{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBindingNotFound
	}

	return nil
}
