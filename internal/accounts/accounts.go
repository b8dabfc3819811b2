// Package accounts implements the local account store. The launch core treats
// it as authoritative identity storage and only ever creates accounts carrying
// the lti auth marker.
package accounts

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/models"
)

var (
	// ErrAccountNotFound is returned when an account cannot be found.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountDisabled is returned when attempting to authenticate a disabled account.
	ErrAccountDisabled = errors.New("account is disabled")

	// ErrInvalidPassword is returned when the provided password is incorrect during authentication.
	ErrInvalidPassword = errors.New("invalid password")

	// ErrUsernameOrEmailExists is returned when attempting to create an account
	// with a username or email that already exists.
	ErrUsernameOrEmailExists = errors.New("account with username or email already exists")
)

// Store provides access to local accounts.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new account store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Find retrieves an account by ID.
func (s *Store) Find(id uint64) (*models.Account, error) {
	var account models.Account
	if err := s.db.First(&account, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to query account: %w", err)
	}

	return &account, nil
}

// FindByUsername retrieves an account by username.
func (s *Store) FindByUsername(username string) (*models.Account, error) {
	var account models.Account
	if err := s.db.Where("username = ?", username).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to query account: %w", err)
	}

	return &account, nil
}

// Authenticate authenticates a local account against its stored password.
// Used only by the account-link login round-trip; platform identities never
// authenticate with a password.
func (s *Store) Authenticate(username, password string) (*models.Account, error) {
	var account models.Account

	err := s.db.Where("username = ? AND auth_source = ?", username, models.AuthSourceLocal).
		First(&account).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query account: %w", err)
	}

	if !account.Active {
		return nil, ErrAccountDisabled
	}

	if !account.VerifyPassword(password) {
		return nil, ErrInvalidPassword
	}

	return &account, nil
}

// Create persists a new account. The caller decides the auth source; launch
// provisioning always passes models.AuthSourceLTI with Confirmed set so the
// account never requires forced profile completion.
func (s *Store) Create(account *models.Account) (*models.Account, error) {
	var existing models.Account

	err := s.db.Where("username = ? OR email = ?", account.Username, account.Email).
		First(&existing).Error
	if err == nil {
		return nil, ErrUsernameOrEmailExists
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check existing account: %w", err)
	}

	if err := s.db.Create(account).Error; err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return account, nil
}

// UpdateProfile refreshes the mutable profile fields of an account.
// Callers are responsible for only doing this on lti-managed accounts.
func (s *Store) UpdateProfile(account *models.Account) error {
	updates := map[string]interface{}{
		"first_name":   account.FirstName,
		"last_name":    account.LastName,
		"email":        account.Email,
		"locale":       account.Locale,
		"city":         account.City,
		"country":      account.Country,
		"institution":  account.Institution,
		"timezone":     account.Timezone,
		"mail_display": account.MailDisplay,
		"updated_at":   time.Now(),
	}

	return s.db.Model(&models.Account{}).
		Where("id = ?", account.ID).
		Updates(updates).Error
}
