package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port              string        `mapstructure:"PORT"`
	Env               string        `mapstructure:"ENV"`
	AuthMode          string        `mapstructure:"AUTH_MODE"`
	RecordsAPIURL     string        `mapstructure:"RECORDS_API_URL"`
	FetchTimeout      time.Duration `mapstructure:"FETCH_TIMEOUT"`
	DisplayTimezone   string        `mapstructure:"DISPLAY_TIMEZONE"`
	RedisURL          string        `mapstructure:"REDIS_URL"`
	SessionTTL        time.Duration `mapstructure:"SESSION_TTL"`
	CacheTTL          time.Duration `mapstructure:"CACHE_TTL"`
	FirebaseProjectID string        `mapstructure:"FIREBASE_PROJECT_ID"`
	FirebaseAPIKey    string        `mapstructure:"FIREBASE_API_KEY"`
	AuthIssuer        string        `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL       string        `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience      string        `mapstructure:"AUTH_AUDIENCE"`
	DatabaseURL       string        `mapstructure:"DATABASE_URL"`
	DBMaxConns        int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns        int32         `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins       []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS      float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst    int           `mapstructure:"RATE_LIMIT_BURST"`
	TLSEnabled        bool          `mapstructure:"TLS_ENABLED"`
	TLSCertFile       string        `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile        string        `mapstructure:"TLS_KEY_FILE"`
}

// Firebase publishes the signing keys for every project's ID tokens here.
const firebaseJWKSURL = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "3000")
	v.SetDefault("ENV", "development")
	v.SetDefault("AUTH_MODE", "") // auto-detect: "" -> inferred from ENV
	v.SetDefault("RECORDS_API_URL", "http://localhost:8000/backend")
	v.SetDefault("FETCH_TIMEOUT", "10s")
	v.SetDefault("DISPLAY_TIMEZONE", "Local")
	v.SetDefault("SESSION_TTL", "12h")
	v.SetDefault("CACHE_TTL", "168h")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "AUTH_MODE", "RECORDS_API_URL", "FETCH_TIMEOUT", "DISPLAY_TIMEZONE",
		"REDIS_URL", "SESSION_TTL", "CACHE_TTL", "FIREBASE_PROJECT_ID", "FIREBASE_API_KEY",
		"AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE",
		"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "CORS_ORIGINS",
		"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE",
	} {
		v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	// Firebase ID tokens use the project id as audience and a fixed issuer prefix.
	if cfg.FirebaseProjectID != "" {
		if cfg.AuthIssuer == "" {
			cfg.AuthIssuer = "https://securetoken.google.com/" + cfg.FirebaseProjectID
		}
		if cfg.AuthAudience == "" {
			cfg.AuthAudience = cfg.FirebaseProjectID
		}
		if cfg.AuthJWKSURL == "" {
			cfg.AuthJWKSURL = firebaseJWKSURL
		}
	}

	if cfg.RecordsAPIURL == "" {
		return nil, fmt.Errorf("RECORDS_API_URL is required")
	}
	cfg.RecordsAPIURL = strings.TrimRight(cfg.RecordsAPIURL, "/")

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active, requests without a token are")
		log.Println("WARNING: signed in as the X-Dev-User header or \"dev-user\".")
		log.Println("WARNING: Set ENV=production and FIREBASE_PROJECT_ID for production.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ResolvedAuthMode returns the effective auth mode. If AUTH_MODE is explicitly
// set, it is returned. Otherwise ENV=development means "development" and
// everything else means "firebase".
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.IsDev() {
		return "development"
	}
	return "firebase"
}

// Location resolves DISPLAY_TIMEZONE. Meeting dates are truncated to calendar
// days in this location before treatment durations are added.
func (c *Config) Location() (*time.Location, error) {
	if c.DisplayTimezone == "" || c.DisplayTimezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return nil, fmt.Errorf("DISPLAY_TIMEZONE: %w", err)
	}
	return loc, nil
}

// Validate checks that the configuration is safe to run the web server.
func (c *Config) Validate() error {
	mode := c.ResolvedAuthMode()
	if mode != "development" && mode != "firebase" {
		return fmt.Errorf("AUTH_MODE must be \"development\" or \"firebase\", got %q", mode)
	}
	if mode == "firebase" {
		if c.AuthIssuer == "" || c.AuthJWKSURL == "" {
			return fmt.Errorf(
				"FIREBASE_PROJECT_ID (or AUTH_ISSUER and AUTH_JWKS_URL) must be set when AUTH_MODE is \"firebase\" (current ENV=%q)", c.Env)
		}
		if c.FirebaseAPIKey == "" {
			return fmt.Errorf("FIREBASE_API_KEY is required when AUTH_MODE is \"firebase\"")
		}
	}

	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be positive, got %s", c.FetchTimeout)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.CacheTTL < c.SessionTTL {
		return fmt.Errorf("CACHE_TTL (%s) must not be shorter than SESSION_TTL (%s)", c.CacheTTL, c.SessionTTL)
	}
	if _, err := c.Location(); err != nil {
		return err
	}

	// TLS validation: when TLS is enabled, cert and key files must be specified.
	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	return nil
}

// ValidateDatabase is used by the records and migrate commands, the only
// ones that talk to Postgres.
func (c *Config) ValidateDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}
