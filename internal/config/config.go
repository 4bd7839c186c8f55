// Package config loads application configuration from environment
// variables, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds the core runtime configuration.  Each field maps to one
// environment variable; the optional subsystems (rate limiting, cache,
// redis, broker, scheduler) have their own loaders.
type Config struct {
	Env  string `env:"APP_ENV"  envDefault:"dev"  validate:"required"`
	Port string `env:"APP_PORT" envDefault:"8080" validate:"required,numeric"`

	DBDriver     string `env:"DB_DRIVER"      envDefault:"mysql" validate:"oneof=mysql sqlite"`
	DBUser       string `env:"DB_USER"        validate:"required_if=DBDriver mysql"`
	DBPass       string `env:"DB_PASS"` // empty allowed
	DBHost       string `env:"DB_HOST"        envDefault:"127.0.0.1"`
	DBPort       string `env:"DB_PORT"        envDefault:"3306"`
	DBName       string `env:"DB_NAME"        validate:"required_if=DBDriver mysql"`
	SQLitePath   string `env:"SQLITE_PATH"    envDefault:"data/vans.db" validate:"required_if=DBDriver sqlite"`
	DBAutoSchema bool   `env:"DB_AUTO_SCHEMA" envDefault:"false"`

	JWTSecret      string `env:"JWT_SECRET,required"                validate:"min=16"`
	AccessTTLMin   int    `env:"ACCESS_TOKEN_TTL_MIN"   envDefault:"15" validate:"min=1"`
	RefreshTTLDays int    `env:"REFRESH_TOKEN_TTL_DAYS" envDefault:"7"  validate:"min=1"`
	BcryptCost     int    `env:"BCRYPT_COST"            envDefault:"12" validate:"min=4,max=31"`

	// bootstrap admin, created at startup when both are set and the email is unknown
	AdminEmail    string `env:"ADMIN_EMAIL"    validate:"omitempty,email"`
	AdminPassword string `env:"ADMIN_PASSWORD" validate:"omitempty,min=8"`

	DefaultVanName     string `env:"DEFAULT_VAN_NAME"     envDefault:"Van Principal"`
	DefaultVanCapacity int    `env:"DEFAULT_VAN_CAPACITY" envDefault:"15" validate:"min=1,max=64"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadDotEnv reads .env (or the given files) into the process environment
// without overriding variables that are already set.  A missing file is
// not an error.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("config: load %s: %v", f, err)
		}
	}
}

// Parse reads and validates Config from the environment.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	if (cfg.AdminEmail == "") != (cfg.AdminPassword == "") {
		return Config{}, errors.New("validate config: ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}
	return cfg, nil
}

// Load is Parse for main: an invalid configuration logs a fatal error and
// exits.
func Load() Config {
	cfg, err := Parse()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

// parseSection parses and validates one of the optional sub-configurations.
func parseSection[T any]() (T, error) {
	var cfg T
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
