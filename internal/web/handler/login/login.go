package login

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/GoLTI-Tool/GoLTI-Tool/internal/accounts"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/config"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/web/handler"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/web/session"
)

const (
	// Path is the path to the login page.
	Path = "/login"
)

// Service is the login handler service.
type Service struct {
	handler.Service
	cfg      *config.Config
	db       *gorm.DB
	accounts *accounts.Store
}

// Handler is the login handler.
var Handler = Service{} //nolint:gochecknoglobals

// Init initializes the login handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, accountStore *accounts.Store) error {
	if app == nil || cfg == nil || db == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.db = db
	s.cfg = cfg
	s.accounts = accountStore

	// register routes
	app.Route(Path, func(router fiber.Router) {
		router.Get(handler.RouterRootPath, s.Get)
		router.Post(handler.RouterRootPath, s.Post)
	})

	return nil
}

// Get handles the login page rendering. A launch_id query parameter carries
// an interrupted account-link flow through the login round trip.
func (s *Service) Get(c *fiber.Ctx) error {
	return c.Render("login", fiber.Map{
		"launch_id": c.Query("launch_id"),
	})
}

// renderFailed re-renders the login page with an error message.
func (s *Service) renderFailed(c *fiber.Ctx, launchID, message string) error {
	return c.Render("login", fiber.Map{
		"launch_id": launchID,
		"error":     message,
	})
}

// Post handles the login form submission.
func (s *Service) Post(c *fiber.Ctx) error {
	username := c.FormValue("username")
	password := c.FormValue("password")
	launchID := c.FormValue("launch_id")

	if username == "" || password == "" {
		return s.renderFailed(c, launchID, ErrInvalidFormData.Error())
	}

	account, err := s.accounts.Authenticate(username, password)
	if err != nil {
		return s.renderFailed(c, launchID, ErrInvalidCredentials.Error())
	}

	// keep the session id of an anonymous launch session so cached launches
	// stay reachable after login
	sessionID := c.Cookies("session")
	if sessionID == "" {
		sessionID, err = session.GenerateSessionID()
		if err != nil {
			log.Error().Err(err).Msg("failed to generate session ID")
			return s.renderFailed(c, launchID, ErrInternalServerError.Error())
		}
	}

	userSession := &session.Data{
		Account: *account,
	}

	if err = userSession.Write(sessionID, s.cfg.Webserver.Session.ExpiryTime); err != nil {
		log.Error().Err(err).Msg("failed to write session")
		return s.renderFailed(c, launchID, ErrInternalServerError.Error())
	}

	// set login cookie
	cookieSettings := &fiber.Cookie{
		Name:     "session",
		Value:    sessionID,
		MaxAge:   int(s.cfg.Webserver.Session.ExpiryTime.Seconds()),
		Secure:   true,
		HTTPOnly: true,
		SameSite: "Lax", // TODO: make this configurable
	}

	if s.cfg.DevMode {
		cookieSettings.Secure = false
	}

	c.Cookie(cookieSettings)

	// resume an interrupted account-link flow
	if launchID != "" {
		return c.Redirect("/lti/link?launch_id=" + launchID)
	}

	return c.Redirect("/resource")
}
