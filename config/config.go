/*
Package config loads server configuration from a TOML file.

A missing file is not an error: the server starts with defaults and the
stock court roster, which matches how the facility actually runs. The
file only needs to exist when an operator wants to change the port,
the timezone, the referee fee or the user list.

SEE ALSO:
  cmd/server/main.go — flag wiring and startup
*/
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
)

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Facility FacilityConfig `toml:"facility"`
	Auth     AuthConfig     `toml:"auth"`
}

type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type FacilityConfig struct {
	Name       string        `toml:"name"`
	Timezone   string        `toml:"timezone"`
	RefereeFee string        `toml:"referee_fee"`
	Courts     []CourtConfig `toml:"courts"`
}

type CourtConfig struct {
	ID   string `toml:"id"`
	Name string `toml:"name"`
}

type AuthConfig struct {
	JWTSecret   string       `toml:"jwt_secret"`
	TokenExpiry string       `toml:"token_expiry"`
	Users       []UserConfig `toml:"users"`
}

type UserConfig struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
	Role     string `toml:"role"`
}

// Roles understood by the access policy.
const (
	RoleOwner = "owner"
	RoleStaff = "staff"
)

// DefaultConfig returns the configuration the server runs with when no
// file is provided: five courts, local timezone America/Mexico_City,
// and a single owner account that must be changed in production.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Path: "./data/club.db",
		},
		Facility: FacilityConfig{
			Name:       "Courtside Club",
			Timezone:   "America/Mexico_City",
			RefereeFee: "240.00",
			Courts: []CourtConfig{
				{ID: "court-turf", Name: "Turf Court"},
				{ID: "court-1", Name: "Court 1"},
				{ID: "court-2", Name: "Court 2"},
				{ID: "court-3", Name: "Court 3"},
				{ID: "court-4", Name: "Court 4"},
			},
		},
		Auth: AuthConfig{
			JWTSecret:   "change-me-in-production",
			TokenExpiry: "12h",
			Users: []UserConfig{
				{Username: "admin", Password: "admin", Role: RoleOwner},
			},
		},
	}
}

// Load reads the TOML file at path, layered over defaults. If path is
// empty or the file does not exist, defaults are returned as-is.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the parts of the config that would otherwise fail
// deep inside startup with a worse error message.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.RefereeFee(); err != nil {
		return err
	}
	if _, err := c.TokenExpiry(); err != nil {
		return err
	}
	for _, u := range c.Auth.Users {
		if u.Role != RoleOwner && u.Role != RoleStaff {
			return fmt.Errorf("user %q has unknown role %q", u.Username, u.Role)
		}
	}
	return nil
}

// Location resolves the facility timezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Facility.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid facility timezone %q: %w", c.Facility.Timezone, err)
	}
	return loc, nil
}

// RefereeFee parses the configured per-match referee fee.
func (c Config) RefereeFee() (decimal.Decimal, error) {
	fee, err := decimal.NewFromString(c.Facility.RefereeFee)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid referee fee %q: %w", c.Facility.RefereeFee, err)
	}
	return fee, nil
}

// TokenExpiry parses the configured JWT lifetime.
func (c Config) TokenExpiry() (time.Duration, error) {
	d, err := time.ParseDuration(c.Auth.TokenExpiry)
	if err != nil {
		return 0, fmt.Errorf("invalid token expiry %q: %w", c.Auth.TokenExpiry, err)
	}
	return d, nil
}
