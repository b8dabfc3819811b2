package web

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/GoLTI-Tool/GoLTI-Tool/internal/web/handler/login"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/web/session"
)

// openPrefixes are reachable without a logged-in session. The whole /lti
// subtree must stay open: logins arrive unauthenticated from the platform and
// confirmation links are clicked from mail clients.
var openPrefixes = []string{ //nolint:gochecknoglobals
	"/static",
	"/lti",
	login.Path,
	"/logout",
	"/healthz",
	"/metrics",
}

// AuthMiddleware is a Fiber middleware that checks for a logged-in account.
func AuthMiddleware(c *fiber.Ctx) error {
	var (
		isLoginPage   = IsLoginPage(c)
		sessDataValid bool
	)

	originalURL := strings.ToLower(c.OriginalURL())
	for _, prefix := range openPrefixes {
		if prefix != login.Path && strings.HasPrefix(originalURL, prefix) {
			return c.Next()
		}
	}

	// get session cookie
	loginCookie := c.Cookies("session")

	// if no session cookie, redirect to login page
	if loginCookie == "" && !isLoginPage {
		return c.Redirect(login.Path)
	}

	// check session validity
	sessData := new(session.Data)
	_ = sessData.Read(loginCookie)

	// valid data in session
	if sessData.Account.ID > 0 {
		sessDataValid = true
	}

	if sessDataValid && isLoginPage {
		return c.Redirect("/")
	}

	if !sessDataValid && !isLoginPage {
		return c.Redirect(login.Path)
	}

	return c.Next()
}

// IsLoginPage checks if the current request is for the login page.
func IsLoginPage(c *fiber.Ctx) bool {
	originalURL := strings.ToLower(c.OriginalURL())
	return strings.HasPrefix(originalURL, login.Path)
}
