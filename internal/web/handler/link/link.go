// Package link serves the manual account-binding flow for privileged
// launches: the choice page, the pending-binding start and the mailed
// confirmation endpoint.
package link

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/GoLTI-Tool/GoLTI-Tool/internal/config"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/controller/registration"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/identity"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/launch"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/web/handler"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/web/handler/login"
	ltihandler "github.com/GoLTI-Tool/GoLTI-Tool/internal/web/handler/lti"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/web/session"
)

const (
	// Path is the account-choice page.
	Path = "/lti/link"

	// ConfirmPath is the endpoint the mailed confirmation link points at.
	ConfirmPath = identity.ConfirmPath
)

// Service is the account-link handler service.
type Service struct {
	handler.Service
	cfg      *config.Config
	db       *gorm.DB
	cache    *launch.Cache
	resolver *identity.Resolver
	linker   *identity.Linker
	launches *launch.Service
}

// Handler is the account-link handler instance.
var Handler = Service{} //nolint:gochecknoglobals

// Init initializes the account-link handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, cache *launch.Cache, resolver *identity.Resolver, linker *identity.Linker, launches *launch.Service) error {
	if app == nil || cfg == nil || db == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.cfg = cfg
	s.db = db
	s.cache = cache
	s.resolver = resolver
	s.linker = linker
	s.launches = launches

	app.Get(Path, s.Choice)
	app.Post(Path, s.Choose)
	app.Get(ConfirmPath, s.Confirm)

	return nil
}

// Choice renders the account-choice page for a cached launch.
func (s *Service) Choice(c *fiber.Ctx) error {
	sessionID := c.Cookies("session")
	launchID := c.Query("launch_id")

	claims, err := s.cache.Retrieve(sessionID, launchID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).Render("error", fiber.Map{
			"message": "this launch has expired, relaunch from your platform",
		})
	}

	// an already logged-in account can be linked without the login detour
	sessData := new(session.Data)
	_ = sessData.Read(sessionID)

	return c.Render("link_choice", fiber.Map{
		"launch_id": launchID,
		"name":      claims.GivenName + " " + claims.FamilyName,
		"logged_in": sessData.Account.ID > 0,
		"username":  sessData.Account.Username,
	})
}

// Choose handles the submitted choice. "new" provisions the deterministic
// account immediately; "existing" starts the mail confirmation round trip.
func (s *Service) Choose(c *fiber.Ctx) error {
	sessionID := c.Cookies("session")
	launchID := c.FormValue("launch_id")

	claims, err := s.cache.Retrieve(sessionID, launchID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).Render("error", fiber.Map{
			"message": "this launch has expired, relaunch from your platform",
		})
	}

	switch c.FormValue("choice") {
	case "new":
		account, err := s.resolver.Provision(claims)
		if err != nil {
			log.Error().Err(err).Msg("failed to provision account")
			return fiber.ErrInternalServerError
		}

		reg, err := registration.GetByIssuerClientID(s.db, claims.Issuer, claims.ClientID)
		if err != nil {
			return fiber.ErrInternalServerError
		}

		result, err := s.launches.CompleteWithAccount(reg, claims, account)
		if err != nil {
			log.Error().Err(err).Msg("failed to complete launch")
			return fiber.ErrInternalServerError
		}

		if err := s.cache.Purge(sessionID, launchID); err != nil {
			log.Error().Err(err).Msg("failed to purge cached launch")
		}

		data := &session.Data{
			Account:    *result.Account,
			ResourceID: result.Resource.ID,
			Embed:      result.ForceEmbed,
		}
		if err := data.Write(sessionID, s.cfg.Webserver.Session.ExpiryTime); err != nil {
			return fiber.ErrInternalServerError
		}

		return c.Redirect("/resource")

	case "existing":
		// linking needs an authenticated account; detour through login when
		// the browser has none
		sessData := new(session.Data)
		_ = sessData.Read(sessionID)

		if sessData.Account.ID == 0 {
			return c.Redirect(login.Path + "?launch_id=" + launchID)
		}

		returnURL := ltihandler.LaunchPath + "?launch_id=" + launchID
		if err := s.linker.StartConfirmation(claims.Issuer, claims.Subject, &sessData.Account, returnURL); err != nil {
			return c.Status(fiber.StatusInternalServerError).Render("error", fiber.Map{
				"message": "sending the confirmation mail failed, try again",
			})
		}

		return c.Render("link_sent", fiber.Map{
			"email": sessData.Account.Email,
		})

	default:
		return c.Status(fiber.StatusBadRequest).Render("error", fiber.Map{
			"message": "unknown choice",
		})
	}
}

// Confirm finalizes a pending binding from the mailed link. Every mismatch
// fails closed with the same 403; the page never reveals which check failed.
func (s *Service) Confirm(c *fiber.Ctx) error {
	token := c.Query("token")
	iss := c.Query("iss")
	sub := c.Query("sub")

	accountID, err := strconv.ParseUint(c.Query("userid"), 10, 64)
	if err != nil || token == "" || iss == "" || sub == "" {
		return s.denied(c)
	}

	returnURL, ok, err := s.linker.Confirm(iss, sub, accountID, token)
	if err != nil {
		log.Error().Err(err).Msg("binding confirmation failed")
		return fiber.ErrInternalServerError
	}

	if !ok {
		return s.denied(c)
	}

	if returnURL != "" {
		return c.Redirect(returnURL)
	}

	return c.Render("link_confirmed", fiber.Map{})
}

func (s *Service) denied(c *fiber.Ctx) error {
	return c.Status(fiber.StatusForbidden).Render("error", fiber.Map{
		"message": "this confirmation link is invalid or expired",
	})
}
