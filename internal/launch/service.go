// Package launch carries a validated launch from verified claims to a local
// session: resource resolution, entity persistence, enrolment and the cache
// that bridges multi-step flows.
package launch

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/controller/deployment"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/controller/lticontext"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/controller/ltiuser"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/controller/resourcelink"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/models"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/enrol"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/identity"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/lti"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/resources"
)

// ErrResourceHidden is returned when a learner launches into a resource whose
// owner has taken it offline.
var ErrResourceHidden = errors.New("resource is hidden")

// Service completes validated launches. It resolves the target resource,
// resolves or diverts the identity, persists the platform entity graph and
// enrols the account. All operations are idempotent so a relaunch of the same
// link by the same user changes nothing but timestamps.
type Service struct {
	db        *gorm.DB
	resolver  *identity.Resolver
	resources *resources.Store
	enrol     *enrol.Service
}

// Result is a completed launch ready to become a session.
type Result struct {
	// Account is the local account the launch resolved to.
	Account *models.Account
	// Resource is the published resource the launch targets.
	Resource *models.Resource
	// Deployment is the platform deployment the launch arrived through.
	Deployment *models.Deployment
	// Role is the coarse role classification of the launch.
	Role lti.Role
	// ForceEmbed is the forced-embedding display hint, only ever set for
	// learners.
	ForceEmbed bool
}

// NewService creates a launch service.
func NewService(db *gorm.DB, resolver *identity.Resolver, resourceStore *resources.Store, enrolService *enrol.Service) *Service {
	return &Service{
		db:        db,
		resolver:  resolver,
		resources: resourceStore,
		enrol:     enrolService,
	}
}

// Complete finishes a launch whose id_token already passed verification.
// identity.ErrAccountChoiceRequired diverts the caller into the manual
// account-choice flow; lti.ErrInvalidDeployment, lti.ErrMissingID and
// lti.ErrInvalidID reject the launch.
func (s *Service) Complete(reg *models.Registration, claims *lti.LaunchClaims) (*Result, error) {
	dep, res, err := s.resolveTarget(reg, claims)
	if err != nil {
		return nil, err
	}

	resolution, err := s.resolver.Resolve(claims)
	if err != nil {
		return nil, err
	}

	return s.persist(dep, res, claims, resolution)
}

// CompleteWithAccount finishes a cached launch after the user picked an
// account on the choice page. The binding has already been confirmed (or the
// account freshly provisioned) by the caller.
func (s *Service) CompleteWithAccount(reg *models.Registration, claims *lti.LaunchClaims, account *models.Account) (*Result, error) {
	dep, res, err := s.resolveTarget(reg, claims)
	if err != nil {
		return nil, err
	}

	resolution := &identity.Resolution{
		Account: account,
		Role:    lti.ClassifyRoles(claims.Roles),
	}

	return s.persist(dep, res, claims, resolution)
}

// resolveTarget maps the launch onto a known deployment and a published
// resource.
func (s *Service) resolveTarget(reg *models.Registration, claims *lti.LaunchClaims) (*models.Deployment, *models.Resource, error) {
	dep, err := deployment.Get(s.db, reg.ID, claims.DeploymentID)
	if err != nil {
		if errors.Is(err, deployment.ErrDeploymentNotFound) {
			return nil, nil, lti.ErrInvalidDeployment
		}

		return nil, nil, err
	}

	idParam := claims.CustomParam(lti.CustomIDParam)
	if idParam == "" {
		return nil, nil, lti.ErrMissingID
	}

	resourceID, err := strconv.ParseUint(idParam, 10, 64)
	if err != nil {
		return nil, nil, lti.ErrInvalidID
	}

	res, err := s.resources.Get(resourceID)
	if err != nil {
		if errors.Is(err, resources.ErrResourceNotFound) {
			return nil, nil, lti.ErrInvalidID
		}

		return nil, nil, err
	}

	return dep, res, nil
}

// persist records the platform entity graph and enrols the account.
func (s *Service) persist(dep *models.Deployment, res *models.Resource, claims *lti.LaunchClaims, resolution *identity.Resolution) (*Result, error) {
	if !s.enrol.IsUserVisible(res, resolution.Role) {
		return nil, ErrResourceHidden
	}

	var contextID *uint64

	if claims.Context != nil && claims.Context.ID != "" {
		ctx, err := lticontext.Upsert(s.db, dep.ID, claims.Context.ID, claims.Context.Types)
		if err != nil {
			return nil, fmt.Errorf("upsert context: %w", err)
		}

		contextID = &ctx.ID
	}

	var resourceLinkID *uint64

	if claims.ResourceLink != nil && claims.ResourceLink.ID != "" {
		link, err := resourcelink.Upsert(s.db, claims.ResourceLink.ID, dep.ID, res.ID, contextID)
		if err != nil {
			return nil, fmt.Errorf("upsert resource link: %w", err)
		}

		resourceLinkID = &link.ID
	}

	accountID := resolution.Account.ID

	ltiUser := &models.LTIUser{
		ResourceID:     res.ID,
		DeploymentID:   dep.ID,
		SourceID:       claims.Subject,
		AccountID:      &accountID,
		ResourceLinkID: resourceLinkID,
		Username:       resolution.Account.Username,
		Email:          claims.Email,
		FirstName:      claims.GivenName,
		LastName:       claims.FamilyName,
	}
	if _, err := ltiuser.Upsert(s.db, ltiUser); err != nil {
		return nil, fmt.Errorf("upsert lti user: %w", err)
	}

	// remember the consumer key of a successful 1.1 migration on the
	// deployment it arrived through
	if resolution.MigratedConsumerKey != "" && dep.LegacyConsumerKey == nil {
		if err := deployment.SetLegacyConsumerKey(s.db, dep.ID, resolution.MigratedConsumerKey); err != nil {
			return nil, fmt.Errorf("record consumer key: %w", err)
		}

		key := resolution.MigratedConsumerKey
		dep.LegacyConsumerKey = &key
	}

	role := enrol.RoleStudent
	if resolution.Role.Privileged() {
		role = enrol.RoleTeacher
	}

	if err := s.enrol.Enrol(accountID, res.CourseID, role); err != nil {
		return nil, fmt.Errorf("enrol account %d: %w", accountID, err)
	}

	forceEmbed := resolution.Role == lti.RoleLearner &&
		claims.CustomParam(lti.CustomForceEmbedParam) == "1"

	log.Debug().
		Str("subject", claims.Subject).
		Str("deployment", claims.DeploymentID).
		Uint64("resource", res.ID).
		Str("role", resolution.Role.String()).
		Msg("launch completed")

	return &Result{
		Account:    resolution.Account,
		Resource:   res,
		Deployment: dep,
		Role:       resolution.Role,
		ForceEmbed: forceEmbed,
	}, nil
}
