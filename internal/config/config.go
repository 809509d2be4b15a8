package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix = "SYNERGIZE"

	defaultHTTPAddress     = "0.0.0.0:8080"
	defaultDatabasePath    = "synergize.db"
	defaultLogLevel        = "info"
	defaultTokenTTLMinutes = 30
	defaultGoogleJWKSURL   = "https://www.googleapis.com/oauth2/v3/certs"
	defaultOrgID           = "groupmkl"
	defaultOrgName         = "Synergize CRM"
	defaultAllowedDomain   = "@groupmkl.com"
	defaultOwnerEmail      = "info@groupmkl.com"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress  string
	DatabasePath string
	LogLevel     string

	SessionSigningSecret string
	TokenTTL             time.Duration

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string
	GoogleJWKSURL      string

	OrgID         string
	OrgName       string
	AllowedDomain string
	OwnerEmail    string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("token.ttl_minutes", defaultTokenTTLMinutes)
	configViper.SetDefault("google.jwks_url", defaultGoogleJWKSURL)
	configViper.SetDefault("org.id", defaultOrgID)
	configViper.SetDefault("org.name", defaultOrgName)
	configViper.SetDefault("org.allowed_domain", defaultAllowedDomain)
	configViper.SetDefault("org.owner_email", defaultOwnerEmail)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:          configViper.GetString("http.address"),
		DatabasePath:         configViper.GetString("database.path"),
		LogLevel:             configViper.GetString("log.level"),
		SessionSigningSecret: configViper.GetString("auth.signing_secret"),
		TokenTTL:             time.Duration(configViper.GetInt("token.ttl_minutes")) * time.Minute,
		GoogleClientID:       configViper.GetString("google.client_id"),
		GoogleClientSecret:   configViper.GetString("google.client_secret"),
		GoogleRedirectURI:    configViper.GetString("google.redirect_uri"),
		GoogleJWKSURL:        configViper.GetString("google.jwks_url"),
		OrgID:                configViper.GetString("org.id"),
		OrgName:              configViper.GetString("org.name"),
		AllowedDomain:        configViper.GetString("org.allowed_domain"),
		OwnerEmail:           configViper.GetString("org.owner_email"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SessionSigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.GoogleClientID) == "" {
		return fmt.Errorf("google.client_id is required")
	}
	if strings.TrimSpace(c.GoogleClientSecret) == "" {
		return fmt.Errorf("google.client_secret is required")
	}
	if strings.TrimSpace(c.OrgID) == "" {
		return fmt.Errorf("org.id is required")
	}
	if !strings.HasPrefix(strings.TrimSpace(c.AllowedDomain), "@") {
		return fmt.Errorf("org.allowed_domain must start with '@'")
	}
	return nil
}
