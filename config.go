package identity

import (
	"os"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
)

const (
	// EnvDevelopment exposes sanitized error detail in responses
	EnvDevelopment = "development"
	// EnvProduction redacts all internal error detail
	EnvProduction = "production"
	// EnvTest behaves like production with test fixtures
	EnvTest = "test"
)

// Config holds the process-wide configuration, loaded once at startup and
// immutable afterwards. The signing key is validated here, before the process
// serves any traffic, and must never be logged.
type Config struct {
	Port            int
	Host            string
	Environment     string
	DatabaseURL     string
	JWTSecret       string
	CORSOrigin      string
	TokenExpiration int // hours
	Issuer          string
}

// LoadConfig reads the environment-style configuration and validates it.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:            envInt("PORT", 3000),
		Host:            envDefault("HOST", "0.0.0.0"),
		Environment:     envDefault("NODE_ENV", EnvDevelopment),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		CORSOrigin:      envDefault("CORS_ORIGIN", "*"),
		TokenExpiration: envInt("TOKEN_EXPIRATION", 24),
		Issuer:          envDefault("TOKEN_ISSUER", "go-identity"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid environment configuration").
			WithCode(errors.CodeBadRequest)
	}

	return cfg, nil
}

// Validate runs the startup configuration rules. A weak signing key
// (< 10 chars) is rejected here so the process never serves with one.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.Host, validation.Required),
		validation.Field(&c.Environment, validation.Required, validation.In(
			EnvDevelopment,
			EnvProduction,
			EnvTest,
		)),
		validation.Field(&c.DatabaseURL, validation.Required),
		validation.Field(&c.JWTSecret, validation.Required, validation.Length(10, 0)),
		validation.Field(&c.TokenExpiration, validation.Min(1)),
	)
}

// IsDevelopment reports whether responses may carry sanitized error detail
func (c Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// Address returns the host:port pair the server binds to.
func (c Config) Address() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
