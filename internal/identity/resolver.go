// Package identity maps validated launch claims to exactly one local account.
// Three paths are attempted in priority order: an existing confirmed binding,
// legacy LTI 1.1 migration, and deterministic new-account provisioning.
// Privileged users without a binding are diverted into the manual
// account-choice flow instead of being auto-provisioned.
package identity

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/GoLTI-Tool/GoLTI-Tool/internal/accounts"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/controller/binding"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/models"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/lti"
)

// ErrAccountChoiceRequired is returned when a privileged user launches
// without an existing binding. The caller caches the launch and redirects to
// the account-choice page.
var ErrAccountChoiceRequired = errors.New("account choice required")

// Resolution is the outcome of resolving a launch identity.
type Resolution struct {
	// Account is the resolved local account.
	Account *models.Account
	// Role is the coarse role classification of the launch.
	Role lti.Role
	// MigratedConsumerKey is set when the account was found via a valid
	// LTI 1.1 migration claim; the caller records it on the deployment.
	MigratedConsumerKey string
}

// Resolver resolves launch identities against the local account store.
type Resolver struct {
	db            *gorm.DB
	accounts      *accounts.Store
	legacySecrets map[string][]string
}

// NewResolver creates a resolver. legacySecrets maps LTI 1.1 consumer keys to
// their rotated shared secrets; nil disables migration entirely.
func NewResolver(db *gorm.DB, accountStore *accounts.Store, legacySecrets map[string][]string) *Resolver {
	return &Resolver{
		db:            db,
		accounts:      accountStore,
		legacySecrets: legacySecrets,
	}
}

// Resolve maps validated launch claims to a local account.
func (r *Resolver) Resolve(claims *lti.LaunchClaims) (*Resolution, error) {
	role := lti.ClassifyRoles(claims.Roles)

	// 1. existing binding
	if res, err := r.resolveBound(claims, role); err == nil {
		return res, nil
	} else if !errors.Is(err, binding.ErrBindingNotFound) {
		return nil, err
	}

	// privileged users choose their account explicitly; they are never
	// auto-provisioned and never migrated
	if role.Privileged() {
		return nil, ErrAccountChoiceRequired
	}

	// 2. legacy migration
	res, err := r.resolveLegacy(claims, role)
	if err != nil {
		return nil, err
	}
	if res != nil {
		return res, nil
	}

	// 3. new account
	account, err := r.Provision(claims)
	if err != nil {
		return nil, err
	}

	return &Resolution{Account: account, Role: role}, nil
}

// resolveBound handles the existing-binding path.
func (r *Resolver) resolveBound(claims *lti.LaunchClaims, role lti.Role) (*Resolution, error) {
	b, err := binding.GetConfirmed(r.db, claims.Issuer, claims.Subject)
	if err != nil {
		return nil, err
	}

	account, err := r.accounts.Find(b.AccountID)
	if err != nil {
		return nil, fmt.Errorf("bound account %d: %w", b.AccountID, err)
	}

	if err := r.refreshProfile(account, claims); err != nil {
		return nil, err
	}

	return &Resolution{Account: account, Role: role}, nil
}

// resolveLegacy handles the migration path. A nil, nil return means migration
// does not apply and the caller falls through to provisioning.
func (r *Resolver) resolveLegacy(claims *lti.LaunchClaims, role lti.Role) (*Resolution, error) {
	if claims.Migration == nil || len(r.legacySecrets) == 0 {
		return nil, nil
	}

	legacyUserID, err := lti.ValidateMigration(claims.Migration, claims.Subject, r.legacySecrets)
	if err != nil {
		// unknown consumer key selects the fallback path, everything else
		// is a hard validation failure
		if errors.Is(err, lti.ErrMissingConsumerKey) {
			return nil, nil
		}

		return nil, err
	}

	if legacyUserID == "" {
		return nil, nil
	}

	username := lti.LegacyUsername(claims.Migration.ConsumerKey, legacyUserID)

	account, err := r.accounts.FindByUsername(username)
	if errors.Is(err, accounts.ErrAccountNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if _, err := binding.CreateConfirmed(r.db, claims.Issuer, claims.Subject, account.ID); err != nil {
		return nil, err
	}

	if err := r.refreshProfile(account, claims); err != nil {
		return nil, err
	}

	return &Resolution{
		Account:             account,
		Role:                role,
		MigratedConsumerKey: claims.Migration.ConsumerKey,
	}, nil
}

// Provision creates (or re-finds) the deterministic account for an LTI 1.3
// identity and permanently binds it. Also used when a privileged user picks
// "new account" on the choice page.
func (r *Resolver) Provision(claims *lti.LaunchClaims) (*models.Account, error) {
	username := lti.ProvisionedUsername(claims.Issuer, claims.Subject)

	email := claims.Email
	if email == "" {
		email = lti.PlaceholderEmail(claims.Issuer, claims.Subject)
	}

	account := &models.Account{
		Active:      true,
		Confirmed:   true,
		Username:    username,
		Email:       email,
		FirstName:   claims.GivenName,
		LastName:    claims.FamilyName,
		Locale:      claims.Locale,
		AuthSource:  models.AuthSourceLTI,
		MailDisplay: 2, //nolint:mnd // show email to course members only
	}

	account, err := r.accounts.Create(account)
	if errors.Is(err, accounts.ErrUsernameOrEmailExists) {
		// deterministic username: the account survived an earlier launch
		// whose binding got removed; reuse it
		account, err = r.accounts.FindByUsername(username)
	}
	if err != nil {
		return nil, err
	}

	if _, err := binding.CreateConfirmed(r.db, claims.Issuer, claims.Subject, account.ID); err != nil {
		if !errors.Is(err, binding.ErrBindingExists) {
			return nil, err
		}
	}

	return account, nil
}

// refreshProfile updates mutable profile fields from claims, but only for
// lti-managed accounts. Manually managed accounts are never overwritten.
func (r *Resolver) refreshProfile(account *models.Account, claims *lti.LaunchClaims) error {
	if account.AuthSource != models.AuthSourceLTI {
		return nil
	}

	if claims.GivenName != "" {
		account.FirstName = claims.GivenName
	}

	if claims.FamilyName != "" {
		account.LastName = claims.FamilyName
	}

	if claims.Email != "" {
		account.Email = claims.Email
	}

	if claims.Locale != "" {
		account.Locale = claims.Locale
	}

	return r.accounts.UpdateProfile(account)
}
