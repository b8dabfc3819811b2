package lti

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/GoLTI-Tool/GoLTI-Tool/internal/config"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/controller/registration"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/identity"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/launch"
	ltiauth "github.com/GoLTI-Tool/GoLTI-Tool/internal/lti"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/metrics"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/web/handler"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/web/session"
)

// LinkPath is the account-choice page privileged users are diverted to.
// Owned by the link handler; referenced here for the diversion redirect.
const LinkPath = "/lti/link"

// LaunchService receives id_token form posts and cached-launch re-entries.
type LaunchService struct {
	handler.Service
	cfg      *config.Config
	db       *gorm.DB
	verifier *ltiauth.Verifier
	launches *launch.Service
	cache    *launch.Cache
	login    *LoginService
}

// LaunchHandler is the launch receiver instance.
var LaunchHandler = LaunchService{} //nolint:gochecknoglobals

// Init initializes the launch receiver.
func (s *LaunchService) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, verifier *ltiauth.Verifier, launches *launch.Service, cache *launch.Cache, login *LoginService) error {
	if app == nil || cfg == nil || db == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.cfg = cfg
	s.db = db
	s.verifier = verifier
	s.launches = launches
	s.cache = cache
	s.login = login

	app.Post(LaunchPath, s.Launch)
	app.Get(LaunchPath, s.Launch)

	return nil
}

// EnsureSessionID returns the session id of the request, creating an
// anonymous one when the browser arrives without a cookie. The launch cache
// is scoped to it.
func EnsureSessionID(c *fiber.Ctx, cfg *config.Config) (string, error) {
	if id := c.Cookies("session"); id != "" {
		return id, nil
	}

	id, err := session.GenerateSessionID()
	if err != nil {
		return "", err
	}

	cookie := &fiber.Cookie{
		Name:     "session",
		Value:    id,
		MaxAge:   int(cfg.Webserver.Session.ExpiryTime.Seconds()),
		Secure:   !cfg.DevMode,
		HTTPOnly: true,
		SameSite: "None", // launch posts arrive cross-site from the platform
	}
	c.Cookie(cookie)

	return id, nil
}

// Launch handles both entry modes: a fresh id_token form post from the
// platform and a launch_id re-entry of a cached launch.
func (s *LaunchService) Launch(c *fiber.Ctx) error {
	sessionID, err := EnsureSessionID(c, s.cfg)
	if err != nil {
		return fiber.ErrInternalServerError
	}

	if launchID := param(c, "launch_id"); launchID != "" {
		return s.resume(c, sessionID, launchID)
	}

	return s.receive(c, sessionID)
}

// receive verifies a fresh id_token and completes the launch.
func (s *LaunchService) receive(c *fiber.Ctx, sessionID string) error {
	rawIDToken := c.FormValue("id_token")
	if rawIDToken == "" {
		metrics.Launches.WithLabelValues(metrics.OutcomeRejected).Inc()
		return c.Status(fiber.StatusBadRequest).Render("error", fiber.Map{
			"message": "launch carried no id_token",
		})
	}

	state := c.FormValue("state")

	st, ok := s.login.consumeState(state)
	if !ok {
		metrics.Launches.WithLabelValues(metrics.OutcomeRejected).Inc()
		return c.Status(fiber.StatusForbidden).Render("error", fiber.Map{
			"message": "login state is unknown or expired, relaunch from your platform",
		})
	}

	claims, reg, err := s.verifier.Verify(c.Context(), rawIDToken)
	if err != nil {
		return s.reject(c, err)
	}

	// the nonce must be the one bound to the state at initiation
	if claims.Nonce != st.Nonce || reg.ID != st.RegistrationID {
		metrics.Launches.WithLabelValues(metrics.OutcomeRejected).Inc()
		return c.Status(fiber.StatusForbidden).Render("error", fiber.Map{
			"message": "launch does not match the initiated login",
		})
	}

	if claims.MessageType != ltiauth.MessageTypeResourceLink {
		metrics.Launches.WithLabelValues(metrics.OutcomeRejected).Inc()
		return c.Status(fiber.StatusBadRequest).Render("error", fiber.Map{
			"message": "unsupported message type",
		})
	}

	result, err := s.launches.Complete(reg, claims)
	if err != nil {
		if errors.Is(err, identity.ErrAccountChoiceRequired) {
			return s.divert(c, sessionID, claims)
		}

		return s.reject(c, err)
	}

	metrics.Launches.WithLabelValues(metrics.OutcomeOK).Inc()

	return s.establish(c, sessionID, result)
}

// resume completes a launch cached before an account-choice or confirmation
// round trip.
func (s *LaunchService) resume(c *fiber.Ctx, sessionID, launchID string) error {
	claims, err := s.cache.Retrieve(sessionID, launchID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).Render("error", fiber.Map{
			"message": "this launch has expired, relaunch from your platform",
		})
	}

	reg, err := registration.GetByIssuerClientID(s.db, claims.Issuer, claims.ClientID)
	if err != nil {
		return s.reject(c, ltiauth.ErrInvalidRegistration)
	}

	result, err := s.launches.Complete(reg, claims)
	if err != nil {
		if errors.Is(err, identity.ErrAccountChoiceRequired) {
			// binding still unconfirmed, back to the choice page
			return c.Redirect(LinkPath + "?launch_id=" + launchID)
		}

		return s.reject(c, err)
	}

	if err := s.cache.Purge(sessionID, launchID); err != nil {
		log.Error().Err(err).Msg("failed to purge cached launch")
	}

	metrics.Launches.WithLabelValues(metrics.OutcomeOK).Inc()

	return s.establish(c, sessionID, result)
}

// divert caches the launch and sends the browser to the account-choice page.
func (s *LaunchService) divert(c *fiber.Ctx, sessionID string, claims *ltiauth.LaunchClaims) error {
	launchID, err := s.cache.Store(sessionID, claims)
	if err != nil {
		log.Error().Err(err).Msg("failed to cache launch")
		return fiber.ErrInternalServerError
	}

	metrics.Launches.WithLabelValues(metrics.OutcomeChoice).Inc()

	return c.Redirect(LinkPath + "?launch_id=" + launchID)
}

// establish writes the logged-in session and shows the launched resource.
func (s *LaunchService) establish(c *fiber.Ctx, sessionID string, result *launch.Result) error {
	data := &session.Data{
		Account:    *result.Account,
		ResourceID: result.Resource.ID,
		Embed:      result.ForceEmbed,
	}

	if err := data.Write(sessionID, s.cfg.Webserver.Session.ExpiryTime); err != nil {
		log.Error().Err(err).Msg("failed to write session")
		return fiber.ErrInternalServerError
	}

	return c.Redirect("/resource")
}

// reject maps a launch failure to an HTTP status and counts it.
func (s *LaunchService) reject(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	outcome := metrics.OutcomeError

	switch {
	case errors.Is(err, ltiauth.ErrUnknownIssuer),
		errors.Is(err, ltiauth.ErrInvalidRegistration),
		errors.Is(err, ltiauth.ErrInvalidDeployment),
		errors.Is(err, ltiauth.ErrMissingID),
		errors.Is(err, ltiauth.ErrInvalidID):
		status = fiber.StatusBadRequest
		outcome = metrics.OutcomeRejected
	case errors.Is(err, ltiauth.ErrInvalidSignature),
		errors.Is(err, ltiauth.ErrExpiredToken),
		errors.Is(err, ltiauth.ErrNonceReplay),
		errors.Is(err, ltiauth.ErrAudienceMismatch),
		errors.Is(err, ltiauth.ErrMissingSignature),
		errors.Is(err, launch.ErrResourceHidden):
		status = fiber.StatusForbidden
		outcome = metrics.OutcomeRejected
	}

	if outcome == metrics.OutcomeError {
		log.Error().Err(err).Msg("launch failed")
	} else {
		log.Warn().Err(err).Msg("launch rejected")
	}

	metrics.Launches.WithLabelValues(outcome).Inc()

	return c.Status(status).Render("error", fiber.Map{
		"message": err.Error(),
	})
}
