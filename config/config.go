/*
Package config loads the server configuration.

PURPOSE:
  One TOML file configures the HTTP server, the database location, and
  the loyalty coin settings. Everything has a default, so the server
  runs with no config file at all; flags in cmd/server override the
  file.

LOYALTY SETTINGS:
  The [loyalty] section is the admin-tunable half of the coin ledger:
  earn rates, multipliers, the festive window, and redemption bounds.
  Rates are written as TOML floats/strings and converted to
  decimal.Decimal on load so arithmetic stays exact.

USAGE:
  cfg, err := config.Load("ledger.toml")   // missing file -> defaults
  settings, err := cfg.LoyaltySettings()
*/
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"

	"github.com/storefront/ledger-core/coins"
)

// Config is the full server configuration.
type Config struct {
	Server  Server  `toml:"server"`
	Loyalty Loyalty `toml:"loyalty"`
}

// Server configures the HTTP listener and storage.
type Server struct {
	Port            int    `toml:"port"`
	DBPath          string `toml:"db_path"`
	ShutdownTimeout int    `toml:"shutdown_timeout_seconds"`

	// ReconcileInterval is how often the background sweep re-derives
	// cached projections, in minutes. Zero disables the sweep.
	ReconcileInterval int `toml:"reconcile_interval_minutes"`
}

// Loyalty mirrors coins.Settings in file-friendly types.
type Loyalty struct {
	Enabled           bool    `toml:"enabled"`
	CoinsPerUnit      float64 `toml:"coins_per_unit"`
	GlobalMultiplier  float64 `toml:"global_multiplier"`
	MinRedeemCoins    int64   `toml:"min_redeem_coins"`
	MaxCoinsPerOrder  int64   `toml:"max_coins_per_order"`
	FestiveMultiplier float64 `toml:"festive_multiplier"`
	FestiveStart      string  `toml:"festive_start"` // RFC 3339, empty = open
	FestiveEnd        string  `toml:"festive_end"`
}

// Default returns the configuration used when no file is present:
// loyalty disabled, 1:1 earn rate, server on :8080.
func Default() Config {
	return Config{
		Server: Server{
			Port:              8080,
			DBPath:            "./data/ledger.db",
			ShutdownTimeout:   10,
			ReconcileInterval: 60,
		},
		Loyalty: Loyalty{
			Enabled:          false,
			CoinsPerUnit:     1,
			GlobalMultiplier: 1,
			MinRedeemCoins:   1,
		},
	}
}

// Load reads the TOML file at path over the defaults. A missing file is
// not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Server.ReconcileInterval < 0 {
		return fmt.Errorf("server.reconcile_interval_minutes must not be negative")
	}
	if c.Loyalty.CoinsPerUnit < 0 {
		return fmt.Errorf("loyalty.coins_per_unit must not be negative")
	}
	if c.Loyalty.GlobalMultiplier < 0 {
		return fmt.Errorf("loyalty.global_multiplier must not be negative")
	}
	if c.Loyalty.MinRedeemCoins < 1 {
		return fmt.Errorf("loyalty.min_redeem_coins must be at least 1")
	}
	if c.Loyalty.MaxCoinsPerOrder < 0 {
		return fmt.Errorf("loyalty.max_coins_per_order must not be negative")
	}
	for _, raw := range []string{c.Loyalty.FestiveStart, c.Loyalty.FestiveEnd} {
		if raw == "" {
			continue
		}
		if _, err := time.Parse(time.RFC3339, raw); err != nil {
			return fmt.Errorf("invalid festive window time %q: %w", raw, err)
		}
	}
	return nil
}

// LoyaltySettings converts the [loyalty] section into the engine's
// settings type.
func (c Config) LoyaltySettings() (coins.Settings, error) {
	if err := c.validate(); err != nil {
		return coins.Settings{}, err
	}

	s := coins.Settings{
		Enabled:           c.Loyalty.Enabled,
		CoinsPerUnit:      decimal.NewFromFloat(c.Loyalty.CoinsPerUnit),
		GlobalMultiplier:  decimal.NewFromFloat(c.Loyalty.GlobalMultiplier),
		MinRedeemCoins:    c.Loyalty.MinRedeemCoins,
		MaxCoinsPerOrder:  c.Loyalty.MaxCoinsPerOrder,
		FestiveMultiplier: decimal.NewFromFloat(c.Loyalty.FestiveMultiplier),
	}
	if c.Loyalty.FestiveStart != "" {
		s.FestiveStart, _ = time.Parse(time.RFC3339, c.Loyalty.FestiveStart)
	}
	if c.Loyalty.FestiveEnd != "" {
		s.FestiveEnd, _ = time.Parse(time.RFC3339, c.Loyalty.FestiveEnd)
	}
	return s, nil
}
