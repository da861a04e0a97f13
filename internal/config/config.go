package config

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Port               string        `mapstructure:"PORT"`
	Env                string        `mapstructure:"ENV"`
	AuthMode           string        `mapstructure:"AUTH_MODE"`
	DatabaseURL        string        `mapstructure:"DATABASE_URL"`
	DBMaxConns         int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns         int32         `mapstructure:"DB_MIN_CONNS"`
	DBSchema           string        `mapstructure:"DB_SCHEMA"`
	AuthJWTSecret      string        `mapstructure:"AUTH_JWT_SECRET"`
	AuthTokenTTL       time.Duration `mapstructure:"AUTH_TOKEN_TTL"`
	AuthIssuer         string        `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL        string        `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience       string        `mapstructure:"AUTH_AUDIENCE"`
	CORSOrigins        []string      `mapstructure:"CORS_ORIGINS"`
	HIPAAEncryptionKey string        `mapstructure:"HIPAA_ENCRYPTION_KEY"`
	HIPAAKeyVersion    int           `mapstructure:"HIPAA_KEY_VERSION"`
	HIPAAPreviousKeys  string        `mapstructure:"HIPAA_PREVIOUS_KEYS"`
	RateLimitRPS       float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst     int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout     time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit          string        `mapstructure:"BODY_LIMIT"`
	UploadMaxSize      int64         `mapstructure:"UPLOAD_MAX_SIZE"`
	BlobBackend        string        `mapstructure:"BLOB_BACKEND"`
	BlobPath           string        `mapstructure:"BLOB_PATH"`
	TLSEnabled         bool          `mapstructure:"TLS_ENABLED"`
	TLSCertFile        string        `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile         string        `mapstructure:"TLS_KEY_FILE"`

	// Appointment lifecycle
	AppointmentInitialStatus      string `mapstructure:"APPOINTMENT_INITIAL_STATUS"`
	AppointmentEnforceTransitions bool   `mapstructure:"APPOINTMENT_ENFORCE_TRANSITIONS"`
	AdminFanoutPageSize           int    `mapstructure:"ADMIN_FANOUT_PAGE_SIZE"`
}

var envKeys = []string{
	"PORT", "ENV", "AUTH_MODE",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "DB_SCHEMA",
	"AUTH_JWT_SECRET", "AUTH_TOKEN_TTL", "AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE",
	"CORS_ORIGINS", "HIPAA_ENCRYPTION_KEY", "HIPAA_KEY_VERSION", "HIPAA_PREVIOUS_KEYS",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT", "BODY_LIMIT", "UPLOAD_MAX_SIZE",
	"BLOB_BACKEND", "BLOB_PATH",
	"TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE",
	"APPOINTMENT_INITIAL_STATUS", "APPOINTMENT_ENFORCE_TRANSITIONS", "ADMIN_FANOUT_PAGE_SIZE",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("AUTH_MODE", "") // auto-detect: "" -> inferred from ENV
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("AUTH_TOKEN_TTL", "120h")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("HIPAA_KEY_VERSION", 1)
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("UPLOAD_MAX_SIZE", 10<<20)
	v.SetDefault("BLOB_BACKEND", "memory")
	v.SetDefault("BLOB_PATH", "./data/blobs")
	v.SetDefault("APPOINTMENT_INITIAL_STATUS", "Pending")
	v.SetDefault("APPOINTMENT_ENFORCE_TRANSITIONS", true)
	v.SetDefault("ADMIN_FANOUT_PAGE_SIZE", 100)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.ResolvedAuthMode() == "development" {
		log.Warn().Msg("server is running with development auth: requests without X-User-ID act as admin; do not use in production")
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
// set, it is returned. Otherwise, the mode is inferred:
//   - ENV=development → "development" (identity taken from X-User-* headers)
//   - AUTH_ISSUER set → "external" (tokens verified against a JWKS endpoint)
//   - Otherwise       → "standalone" (HS256 tokens issued by /auth/login)
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.IsDev() {
		return "development"
	}
	if c.AuthIssuer != "" {
		return "external"
	}
	return "standalone"
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	mode := c.ResolvedAuthMode()
	switch mode {
	case "development":
	case "standalone":
		if len(c.AuthJWTSecret) < 32 {
			return fmt.Errorf("AUTH_JWT_SECRET must be at least 32 bytes when AUTH_MODE is \"standalone\"")
		}
	case "external":
		if c.AuthIssuer == "" {
			return fmt.Errorf("AUTH_ISSUER must be set when AUTH_MODE is \"external\" (current ENV=%q)", c.Env)
		}
	default:
		return fmt.Errorf("AUTH_MODE must be \"development\", \"standalone\", or \"external\", got %q", mode)
	}

	// HIPAA encryption key validation
	if c.IsProduction() && c.HIPAAEncryptionKey == "" {
		return fmt.Errorf("HIPAA_ENCRYPTION_KEY is required in production")
	}
	if c.HIPAAEncryptionKey != "" {
		keyBytes, err := hex.DecodeString(c.HIPAAEncryptionKey)
		if err != nil {
			return fmt.Errorf("HIPAA_ENCRYPTION_KEY is not valid hex: %w", err)
		}
		if len(keyBytes) != 32 {
			return fmt.Errorf("HIPAA_ENCRYPTION_KEY must be 32 bytes (64 hex chars), got %d bytes", len(keyBytes))
		}
	}

	if c.HIPAAPreviousKeys != "" && c.HIPAAEncryptionKey == "" {
		return fmt.Errorf("HIPAA_PREVIOUS_KEYS requires HIPAA_ENCRYPTION_KEY")
	}

	if c.AppointmentInitialStatus != "Pending" && c.AppointmentInitialStatus != "Booked" {
		return fmt.Errorf("APPOINTMENT_INITIAL_STATUS must be \"Pending\" or \"Booked\", got %q", c.AppointmentInitialStatus)
	}
	if c.AdminFanoutPageSize <= 0 {
		return fmt.Errorf("ADMIN_FANOUT_PAGE_SIZE must be positive, got %d", c.AdminFanoutPageSize)
	}

	switch c.BlobBackend {
	case "memory":
	case "leveldb":
		if c.BlobPath == "" {
			return fmt.Errorf("BLOB_PATH is required when BLOB_BACKEND is \"leveldb\"")
		}
	default:
		return fmt.Errorf("BLOB_BACKEND must be \"memory\" or \"leveldb\", got %q", c.BlobBackend)
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
