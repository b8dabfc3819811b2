package daemon

import (
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/GoLTI-Tool/GoLTI-Tool/internal/config"
	"github.com/GoLTI-Tool/GoLTI-Tool/internal/db/models"
)

// seed creates the default admin account on an empty accounts table.
func seed(_ *config.Config, db *gorm.DB) {
	var count int64
	db.Model(&models.Account{}).Count(&count)

	if count > 0 {
		return
	}

	db.Create(
		&models.Account{
			Username:   "admin",
			Email:      "admin@localhost",
			Password:   models.HashPassword("changeme"),
			Active:     true,
			Confirmed:  true,
			AuthSource: models.AuthSourceLocal,
		},
	)

	log.Info().Msg("seeded default admin account, change its password")
}
