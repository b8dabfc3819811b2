// Package daemon assembles the process: database, migrations, seed, session
// storage and the web service.
package daemon

import (
	"fmt"

	"github.com/gofiber/storage"
	sessionmemory "github.com/gofiber/storage/memory"
	sessionmysql "github.com/gofiber/storage/mysql"
	sessionpostgres "github.com/gofiber/storage/postgres"
	"github.com/rs/zerolog/log"
	gormmysql "gorm.io/driver/mysql"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/GoLTI-Tool/GoLTI-Tool/internal/config"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/dsn"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/models"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/metrics"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/web"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/web/session"
)

// Daemon represents the main application daemon.
type Daemon struct {
	cfg        *config.Config
	webService web.Service
}

// Start starts the Daemon's web service and blocks until shutdown.
func (d *Daemon) Start() error {
	go d.webService.WaitShutdown()

	return d.webService.Start(fmt.Sprintf(":%d", d.cfg.Webserver.Port))
}

// New creates a new Daemon instance with the provided configuration.
func New(cfg *config.Config) *Daemon {
	if cfg == nil {
		log.Fatal().Msg("config is nil")
		return nil
	}

	db := OpenDatabase(cfg)

	if err := db.AutoMigrate(
		&models.Registration{},
		&models.Deployment{},
		&models.LTIContext{},
		&models.ResourceLink{},
		&models.LTIUser{},
		&models.Account{},
		&models.UserBinding{},
		&models.Resource{},
		&models.Enrolment{},
	); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	seed(cfg, db)

	session.Init(sessionStorage(cfg))

	metrics.Init(cfg.Title)

	return &Daemon{
		cfg:        cfg,
		webService: *web.New(cfg, db),
	}
}

// OpenDatabase opens gorm on the configured engine.
func OpenDatabase(cfg *config.Config) *gorm.DB {
	var dialector gorm.Dialector

	switch cfg.DB.GormEngine {
	case "postgres":
		dialector = gormpostgres.Open(dsn.Create(cfg))
	default:
		dialector = gormmysql.Open(dsn.Create(cfg))
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	return db
}

// sessionStorage selects the fiber storage backend for sessions and the
// launch cache. Dev mode keeps everything in process memory.
func sessionStorage(cfg *config.Config) storage.Storage {
	if cfg.DevMode {
		return sessionmemory.New()
	}

	if cfg.DB.GormEngine == "postgres" {
		return sessionpostgres.New(sessionpostgres.Config{
			ConnectionURI: dsn.Create(cfg),
			Table:         "sessions",
		})
	}

	return sessionmysql.New(sessionmysql.Config{
		ConnectionURI: dsn.Create(cfg),
		Table:         "sessions",
	})
}
