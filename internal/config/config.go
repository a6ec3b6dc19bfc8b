package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = "POS"

type Config struct {
	App   AppConfig
	DB    DBConfig
	Redis RedisConfig
	Auth  AuthConfig
}

type AppConfig struct {
	Env            string   `envconfig:"ENV" default:"dev"`
	Port           string   `envconfig:"PORT" default:"8080"`
	LogLevel       string   `envconfig:"LOG_LEVEL" default:"info"`
	LogWarnStack   bool     `envconfig:"LOG_WARN_STACK" default:"false"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://127.0.0.1:3000"`
	Timezone       string   `envconfig:"TIMEZONE" default:"UTC"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, "dev")
}

// Location resolves the configured timezone used for dashboard day and month boundaries.
func (a AppConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(a.Timezone)
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}

type DBConfig struct {
	URL             string        `envconfig:"DATABASE_URL"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"30"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"8"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"30m"`
	AutoMigrate     bool          `envconfig:"DB_AUTO_MIGRATE" default:"true"`
}

type RedisConfig struct {
	Addr          string        `envconfig:"REDIS_ADDR"`
	Password      string        `envconfig:"REDIS_PASSWORD"`
	DB            int           `envconfig:"REDIS_DB" default:"0"`
	StatsCacheTTL time.Duration `envconfig:"STATS_CACHE_TTL" default:"30s"`
}

type AuthConfig struct {
	Secret                 string        `envconfig:"AUTH_SECRET" required:"true"`
	AccessTokenTTL         time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"8h"`
	LoginAttemptsPerMinute int           `envconfig:"LOGIN_ATTEMPTS_PER_MINUTE" default:"5"`
}

// Load reads POS_* variables. Sections are processed one by one so the section
// name never becomes part of the key (POS_PORT, not POS_APP_PORT).
func Load() (*Config, error) {
	var cfg Config
	sections := []any{&cfg.App, &cfg.DB, &cfg.Redis, &cfg.Auth}
	for _, section := range sections {
		if err := envconfig.Process(EnvPrefix, section); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}
	// envconfig only rejects an unset variable; an empty one must fail too.
	cfg.Auth.Secret = strings.TrimSpace(cfg.Auth.Secret)
	if cfg.Auth.Secret == "" {
		return nil, fmt.Errorf("parsing config: POS_AUTH_SECRET is required")
	}
	return &cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.App.Port)
}
