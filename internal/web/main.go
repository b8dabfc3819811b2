// Package web wires the fiber application: templates, static files, access
// logging, the auth middleware and the handler services.
package web

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/template/html/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/GoLTI-Tool/GoLTI-Tool/internal/accounts"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/config"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/email"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/enrol"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/identity"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/launch"
	fiberlogger "github.com/GoLTI-Tool/GoLTI-Tool/internal/logger/adapter/fiber"
	ltiverify "github.com/GoLTI-Tool/GoLTI-Tool/internal/lti"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/resources"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/web/handler"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/web/handler/link"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/web/handler/login"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/web/handler/logout"
	ltihandler "github.com/GoLTI-Tool/GoLTI-Tool/internal/web/handler/lti"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/web/handler/resource"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/web/session"
)

// Service represents the web service.
type Service struct {
	App          *fiber.App
	cfg          *config.Config
	fastShutDown bool
	alive        atomic.Bool
	db           *gorm.DB
}

// Start starts the web service on the given address.
func (s *Service) Start(addr string) error {
	var doneFiber = make(chan bool)

	go func() {
		if err := s.App.Listen(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Msgf("fiber listen error: %v", err)
		}

		doneFiber <- true
	}()

	<-doneFiber // wait for fiber to stop

	return nil
}

// WaitShutdown waits for graceful shutdown of the web service.
func (s *Service) WaitShutdown() {
	irqSig := make(chan os.Signal, 1)
	signal.Notify(irqSig, syscall.SIGINT, syscall.SIGTERM)

	// Wait interrupt or shutdown request through /shutdown
	sig := <-irqSig
	log.Info().Msgf("shutdown request (signal: %v)", sig)

	// Graceful shutdown for reverse proxies: set status to fail, so checkalive returns fail.
	if !s.fastShutDown {
		log.Info().Msgf(
			"graceful shutdown: return 503 while %d seconds to let LB to remove this pod from active targets",
			s.cfg.Webserver.ShutDownTime,
		)

		s.alive.Store(false)
		time.Sleep(time.Duration(s.cfg.Webserver.ShutDownTime) * time.Second)
	}

	// stop fiber http server
	serverShutdown := make(chan struct{})

	go func() {
		log.Info().Msg("stopping http server ...")

		err := s.App.Shutdown()
		if err != nil {
			log.Error().Err(err).Msg("")
		}

		serverShutdown <- struct{}{}
	}()

	<-serverShutdown
	log.Info().Msg("http server was stopped ... good bye...")
}

// New creates a new web service with the given configuration.
func New(cfg *config.Config, db *gorm.DB) *Service {
	if cfg == nil {
		panic("config cannot be nil")
	}

	if db == nil {
		panic("db cannot be nil")
	}

	httpFS := http.FS(templateEmbedFS{embeddedTemplates})
	templateEngine := html.NewFileSystem(httpFS, ".gohtml")

	// in debug mode, use local filesystem for templates
	if cfg.DevMode {
		templateEngine = html.New("./internal/web/templates", ".gohtml")
		templateEngine.ShouldReload = true

		log.Warn().Msg("debug mode enabled: using local filesystem for templates")
	}

	// create fiber app
	app := fiber.New(
		fiber.Config{
			ReadBufferSize: 8192,
			AppName:        cfg.Title,
			CaseSensitive:  true,
			Prefork:        false,
			Immutable:      true,
			Views:          templateEngine,
			ViewsLayout:    handler.BaseLayout,
		},
	)

	// access log
	app.Use(fiberlogger.New(fiberlogger.Config{
		Config:        cfg.Log,
		CheckAliveURI: "/healthz",
	}))

	// serve embedded static files
	app.Use("/static",
		filesystem.New(
			filesystem.Config{
				Root:       http.FS(embeddedStaticFiles),
				PathPrefix: "static",
				Browse:     false,
			},
		),
	)

	// basic auth middleware
	app.Use(AuthMiddleware)

	// init web service
	service := &Service{
		cfg: cfg,
		App: app,
		db:  db,
	}
	service.alive.Store(true)

	// domain services shared by the handlers
	accountStore := accounts.NewStore(db)
	resourceStore := resources.NewStore(db)
	enrolService := enrol.NewService(db)
	resolver := identity.NewResolver(db, accountStore, cfg.Tool.LegacySecrets)
	linker := identity.NewLinker(db, email.NewSender(cfg.Email), cfg.Webserver.URL)
	verifier := ltiverify.NewVerifier(db, ltiverify.NewNonceStore())
	launchCache := launch.NewCache(session.Store.Storage, cfg.Webserver.Session.ExpiryTime)
	launchService := launch.NewService(db, resolver, resourceStore, enrolService)

	// init handlers (they register their own routes)
	initErr := errors.Join(
		login.Handler.Init(app, cfg, db, accountStore),
		ltihandler.LoginHandler.Init(app, cfg, db),
		ltihandler.LaunchHandler.Init(app, cfg, db, verifier, launchService, launchCache, &ltihandler.LoginHandler),
		link.Handler.Init(app, cfg, db, launchCache, resolver, linker, launchService),
		resource.Handler.Init(app, cfg, db, resourceStore),
	)
	if initErr != nil {
		log.Fatal().Err(initErr).Msg("handler init failed")
	}

	logout.Handler.Init(app, cfg)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		if !service.alive.Load() {
			return c.SendStatus(fiber.StatusServiceUnavailable)
		}

		return c.SendString("ok")
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// redirect root to the launched resource
	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect(resource.Path)
	})

	return service
}
