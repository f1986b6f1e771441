package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App   AppConfig
	DB    DBConfig
	Redis RedisConfig
	Auth  AuthConfig
}

type AppConfig struct {
	Port          string `envconfig:"PORT" default:"8080"`
	AllowedOrigin string `envconfig:"ALLOWED_ORIGIN" default:"http://127.0.0.1:3000"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat     string `envconfig:"LOG_FORMAT" default:"json"`
	Timezone      string `envconfig:"TIMEZONE" default:"Local"`
}

type DBConfig struct {
	URL         string `envconfig:"DATABASE_URL"`
	AutoMigrate bool   `envconfig:"AUTO_MIGRATE" default:"false"`
}

type RedisConfig struct {
	Addr           string        `envconfig:"REDIS_ADDR"`
	Password       string        `envconfig:"REDIS_PASSWORD"`
	DB             int           `envconfig:"REDIS_DB" default:"0"`
	ReportCacheTTL time.Duration `envconfig:"REPORT_CACHE_TTL" default:"5m"`
}

type AuthConfig struct {
	Secret        string        `envconfig:"AUTH_SECRET"`
	TokenTTL      time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"8h"`
	AdminPassword string        `envconfig:"ADMIN_PASSWORD"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Auth.Secret = strings.TrimSpace(cfg.Auth.Secret)
	cfg.Auth.AdminPassword = strings.TrimSpace(cfg.Auth.AdminPassword)
	if cfg.Redis.ReportCacheTTL <= 0 {
		cfg.Redis.ReportCacheTTL = 5 * time.Minute
	}
	if cfg.Auth.TokenTTL <= 0 {
		cfg.Auth.TokenTTL = 8 * time.Hour
	}
	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.App.Port)
}

// Location resolves the configured timezone used for same-day checks and report periods.
func (c Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.App.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", name, err)
	}
	return loc, nil
}
