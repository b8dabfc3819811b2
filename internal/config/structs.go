package config

import (
	"time"

	"github.com/GoLTI-Tool/GoLTI-Tool/internal/logger"
)

// Session settings.
type Session struct {
	ExpiryTime time.Duration
}

// Config overall data structure.
type Config struct {
	DevMode   bool // enable dev mode for development
	DB        DB
	Log       logger.Log
	Title     string
	Webserver Webserver
	Email     Email
	Tool      Tool
}

// Webserver implement webserver settings.
type Webserver struct {
	CacheEnabled        bool    // true = enable cache, false = disable cache
	CleanPath           bool    // use clean path middleware to allow multi slash requests
	DisableRecover      bool    // disable recover middleware
	Domain              string  // domain name for the webserver
	Port                int     // listening port for the webserver
	ShutDownTime        int     // wait time for shutdown
	URL                 string  // base url for the webserver
	CookieEncryptionKey string  // encryption key for cookies
	Session             Session // session settings
}

// Email holds SMTP settings for the account-link confirmation mails.
type Email struct {
	Enabled bool
	Host    string
	Port    int
	From    string
	User    string
	Pass    string
}

// Tool holds the LTI tool-side settings.
type Tool struct {
	// PrivateKeyPath points at the PEM-encoded RSA key used to sign
	// client assertions for LTI Advantage service calls (NRPS).
	PrivateKeyPath string
	// KeyID is the kid advertised with the signing key.
	KeyID string
	// LegacySecrets maps an LTI 1.1 consumer key to the list of shared
	// secrets it has rotated through. Used only to validate lti1p1
	// migration claims.
	LegacySecrets map[string][]string
}
