package lti

import (
	"errors"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/GoLTI-Tool/GoLTI-Tool/internal/config"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/controller/registration"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/models"
	ltiauth "github.com/GoLTI-Tool/GoLTI-Tool/internal/lti"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/uniuri"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/web/handler"
)

const (
	stateLifetime = 5 * time.Minute
	tokenLength   = 32
)

// loginState is what the launch receiver checks the returned state against.
type loginState struct {
	Nonce          string
	RegistrationID uint64
}

// LoginService is the OIDC login initiation handler.
type LoginService struct {
	handler.Service
	cfg    *config.Config
	db     *gorm.DB
	states *cache.Cache
}

// LoginHandler is the OIDC login initiation handler instance.
var LoginHandler = LoginService{} //nolint:gochecknoglobals

// Init initializes the login initiation handler.
func (s *LoginService) Init(app *fiber.App, cfg *config.Config, db *gorm.DB) error {
	if app == nil || cfg == nil || db == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.cfg = cfg
	s.db = db
	s.states = cache.New(stateLifetime, stateLifetime)

	// platforms use GET or POST at their discretion
	app.Get(LoginPath, s.Initiate)
	app.Post(LoginPath, s.Initiate)

	return nil
}

// param reads a request value from the form body or the query string.
func param(c *fiber.Ctx, key string) string {
	if v := c.FormValue(key); v != "" {
		return v
	}

	return c.Query(key)
}

// Initiate answers the third-party-initiated login by redirecting the
// browser to the platform authentication endpoint with a fresh state and
// nonce pair.
func (s *LoginService) Initiate(c *fiber.Ctx) error {
	iss := param(c, "iss")
	loginHint := param(c, "login_hint")
	targetLink := param(c, "target_link_uri")
	messageHint := param(c, "lti_message_hint")
	clientID := param(c, "client_id")

	if iss == "" || loginHint == "" {
		return c.Status(fiber.StatusBadRequest).SendString("missing iss or login_hint")
	}

	reg, err := s.findRegistration(iss, clientID)
	if err != nil {
		log.Warn().Str("iss", iss).Str("client_id", clientID).Msg("login from unknown platform")
		return c.Status(fiber.StatusBadRequest).SendString(ltiauth.ErrUnknownIssuer.Error())
	}

	state := uniuri.NewLen(tokenLength)
	nonce := uniuri.NewLen(tokenLength)

	if err := s.states.Add(state, loginState{Nonce: nonce, RegistrationID: reg.ID}, stateLifetime); err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("state collision")
	}

	q := url.Values{}
	q.Set("scope", "openid")
	q.Set("response_type", "id_token")
	q.Set("response_mode", "form_post")
	q.Set("prompt", "none")
	q.Set("client_id", reg.ClientID)
	// always our own launch receiver; target_link_uri is untrusted input
	q.Set("redirect_uri", s.cfg.Webserver.URL+LaunchPath)
	q.Set("login_hint", loginHint)
	q.Set("state", state)
	q.Set("nonce", nonce)

	if messageHint != "" {
		q.Set("lti_message_hint", messageHint)
	}

	log.Debug().
		Str("iss", iss).
		Str("target_link_uri", targetLink).
		Msg("login initiated")

	return c.Redirect(reg.AuthRequestURL+"?"+q.Encode(), fiber.StatusFound)
}

// findRegistration resolves the registration the login claims to come from.
// Platforms hosting a single tenant may omit client_id; the issuer must then
// resolve unambiguously.
func (s *LoginService) findRegistration(iss, clientID string) (*models.Registration, error) {
	if clientID != "" {
		return registration.GetByIssuerClientID(s.db, iss, clientID)
	}

	regs, err := registration.GetByIssuer(s.db, iss)
	if err != nil {
		return nil, err
	}

	if len(regs) != 1 {
		return nil, ltiauth.ErrInvalidRegistration
	}

	return &regs[0], nil
}

// consumeState validates and burns a state value, returning the nonce and
// registration bound at initiation.
func (s *LoginService) consumeState(state string) (*loginState, bool) {
	v, ok := s.states.Get(state)
	if !ok {
		return nil, false
	}

	s.states.Delete(state)

	st, ok := v.(loginState)
	if !ok {
		return nil, false
	}

	return &st, true
}
