package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DefaultWhitelist lists routes reachable without an authenticated identity.
var DefaultWhitelist = []string{
	"/",
	"/favicon.ico/**",
	"/swagger-ui.html/**",
	"/swagger-ui/**",
	"/v3/api-docs/**",
	"/static/**",
	"/sw.js/**",
	"/api/v1/auth/**",
	"/health/**",
	"/metrics",
}

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	CORS     CORSConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string `env:"APP_NAME" envDefault:"secure-api"`
	Env                   string `env:"APP_ENV" envDefault:"development"`
	Host                  string `env:"APP_HOST" envDefault:"0.0.0.0"`
	Port                  string `env:"APP_PORT" envDefault:"8080"`
	Version               string `env:"APP_VERSION" envDefault:"dev"`
	RequestTimeoutSeconds int    `env:"HTTP_REQUEST_TIMEOUT_SECONDS" envDefault:"30"`
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string `env:"POSTGRES_DSN"`
	MaxConns       int32  `env:"POSTGRES_MAX_CONNS" envDefault:"10"`
	MinConns       int32  `env:"POSTGRES_MIN_CONNS" envDefault:"2"`
	RunMigrations  bool   `env:"POSTGRES_RUN_MIGRATIONS" envDefault:"true"`
	ConnMaxIdleSec int32  `env:"POSTGRES_CONN_MAX_IDLE_SECONDS" envDefault:"30"`
	ConnMaxLifeSec int32  `env:"POSTGRES_CONN_MAX_LIFE_SECONDS" envDefault:"300"`
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	// JWTSecret is the base64 encoded HMAC key.
	JWTSecret        string   `env:"AUTH_JWT_SECRET"`
	JWTExpirationMs  int64    `env:"AUTH_JWT_EXPIRATION_MS" envDefault:"86400000"`
	Whitelist        []string `env:"AUTH_WHITELIST" envSeparator:","`
	AdminEmail       string   `env:"AUTH_ADMIN_EMAIL" envDefault:"admin@example.com"`
	// AdminPassword has no default. It is required whenever the user store is empty at
	// startup, which is every start when POSTGRES_DSN is unset and users live in memory.
	AdminPassword    string        `env:"AUTH_ADMIN_PASSWORD"`
	BcryptCost       int           `env:"AUTH_BCRYPT_COST" envDefault:"10"`
	LoginMaxAttempts int           `env:"AUTH_LOGIN_MAX_ATTEMPTS" envDefault:"5"`
	LoginWindow      time.Duration `env:"AUTH_LOGIN_WINDOW" envDefault:"15m"`
	RateLimitRPS     float64       `env:"AUTH_RATE_LIMIT_RPS" envDefault:"5"`
	RateLimitBurst   int           `env:"AUTH_RATE_LIMIT_BURST" envDefault:"10"`
}

// CORSConfig configures cross-origin access.
type CORSConfig struct {
	AllowOrigins string `env:"CORS_ALLOW_ORIGINS" envDefault:"*"`
	AllowMethods string `env:"CORS_ALLOW_METHODS" envDefault:"GET,POST,DELETE,PUT"`
	AllowHeaders string `env:"CORS_ALLOW_HEADERS" envDefault:"Content-Type,Authorization"`
	MaxAgeSec    int    `env:"CORS_MAX_AGE_SECONDS" envDefault:"3600"`
}

// Load reads configuration from environment variables, applying defaults where possible.
// AUTH_JWT_SECRET has no default and is checked when the token manager is built;
// AUTH_ADMIN_PASSWORD must be set whenever the admin account has to be bootstrapped.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.Auth.Whitelist = normalizePatterns(cfg.Auth.Whitelist)
	if len(cfg.Auth.Whitelist) == 0 {
		cfg.Auth.Whitelist = append([]string(nil), DefaultWhitelist...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that cannot be defaulted. The signing secret itself is
// checked when the token manager is built.
func (c *Config) Validate() error {
	if c.Auth.JWTExpirationMs <= 0 {
		return fmt.Errorf("invalid AUTH_JWT_EXPIRATION_MS: %d", c.Auth.JWTExpirationMs)
	}
	if c.Auth.LoginMaxAttempts < 0 {
		return fmt.Errorf("invalid AUTH_LOGIN_MAX_ATTEMPTS: %d", c.Auth.LoginMaxAttempts)
	}
	if c.Auth.LoginMaxAttempts > 0 && c.Auth.LoginWindow <= 0 {
		return fmt.Errorf("invalid AUTH_LOGIN_WINDOW: %s", c.Auth.LoginWindow)
	}
	if c.Auth.RateLimitRPS < 0 || (c.Auth.RateLimitRPS > 0 && c.Auth.RateLimitBurst <= 0) {
		return fmt.Errorf("invalid AUTH_RATE_LIMIT_RPS/AUTH_RATE_LIMIT_BURST: %g/%d", c.Auth.RateLimitRPS, c.Auth.RateLimitBurst)
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// TokenTTL converts the configured expiration into a duration.
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.JWTExpirationMs) * time.Millisecond
}

func normalizePatterns(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
