// Package resource renders the launched resource. Rendering is a thin
// boundary; everything interesting happened during launch completion.
package resource

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/GoLTI-Tool/GoLTI-Tool/internal/config"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/resources"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/web/handler"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/web/session"
)

// Path is the resource page shown after a completed launch.
const Path = "/resource"

// Service is the resource page handler.
type Service struct {
	handler.Service
	cfg       *config.Config
	db        *gorm.DB
	resources *resources.Store
}

// Handler is the resource page handler instance.
var Handler = Service{} //nolint:gochecknoglobals

// Init initializes the resource page handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, resourceStore *resources.Store) error {
	if app == nil || cfg == nil || db == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.cfg = cfg
	s.db = db
	s.resources = resourceStore

	app.Get(Path, s.Get)

	return nil
}

// Get renders the resource the session was launched into.
func (s *Service) Get(c *fiber.Ctx) error {
	sessData := new(session.Data)
	if err := sessData.Read(c.Cookies("session")); err != nil || sessData.Account.ID == 0 {
		return c.Redirect("/login")
	}

	if sessData.ResourceID == 0 {
		return c.Render("resource", fiber.Map{
			"name":     "",
			"username": sessData.Account.Username,
			"message":  "no resource launched in this session",
		})
	}

	res, err := s.resources.Get(sessData.ResourceID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).Render("error", fiber.Map{
			"message": "resource not found",
		})
	}

	return c.Render("resource", fiber.Map{
		"name":     res.Name,
		"username": sessData.Account.Username,
		"embed":    sessData.Embed,
	})
}
