/*
settings.go - Loyalty system settings and earn-event calculation

PURPOSE:
  The singleton loyalty configuration: enable flag, rates, multipliers,
  redemption minimum, per-order cap, and festive window. Settings are a
  read-only input to earn calculation - they are not part of the ledger
  invariants themselves.

CALCULATION:
  coins = floor(base * coins_per_unit * global_multiplier
                * festive_multiplier-if-within-window)
  clamped to max_coins_per_order when a cap is configured.

SEE ALSO:
  - config/config.go: Loads these settings from the TOML file
  - ledger.go: RecordEarn consumes the computed coin count
*/
package coins

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SETTINGS - Immutable loyalty configuration snapshot
// =============================================================================

// Settings is the loyalty system configuration. Each field has a single
// documented effect on earn calculation or redemption validation.
type Settings struct {
	// Enabled gates the whole system; when false, earn events are no-ops.
	Enabled bool

	// CoinsPerUnit is the base earn rate per currency unit spent.
	CoinsPerUnit decimal.Decimal

	// GlobalMultiplier scales every earn event.
	GlobalMultiplier decimal.Decimal

	// MinRedeemCoins is the smallest redeemable coin amount.
	MinRedeemCoins int64

	// MaxCoinsPerOrder caps coins earned from a single order. Zero means
	// no cap.
	MaxCoinsPerOrder int64

	// FestiveMultiplier is an extra factor applied inside the festive
	// window. A zero or one value means no festive boost.
	FestiveMultiplier decimal.Decimal

	// FestiveStart/FestiveEnd bound the festive window. Zero times leave
	// the window open on that side; if both are zero and the multiplier
	// is set, it applies year-round.
	FestiveStart time.Time
	FestiveEnd   time.Time
}

// DefaultSettings returns a disabled loyalty configuration with sane
// rates, matching the config file defaults.
func DefaultSettings() Settings {
	return Settings{
		Enabled:          false,
		CoinsPerUnit:     decimal.NewFromInt(1),
		GlobalMultiplier: decimal.NewFromInt(1),
		MinRedeemCoins:   1,
	}
}

// InFestiveWindow reports whether the festive multiplier applies at the
// given instant.
func (s Settings) InFestiveWindow(at time.Time) bool {
	if s.FestiveMultiplier.LessThanOrEqual(decimal.Zero) {
		return false
	}
	if !s.FestiveStart.IsZero() && at.Before(s.FestiveStart) {
		return false
	}
	if !s.FestiveEnd.IsZero() && at.After(s.FestiveEnd) {
		return false
	}
	return true
}

// EarnCoins computes the whole-coin amount earned on a base currency
// amount at the given time. Returns 0 when the system is disabled or the
// computed value rounds down to nothing.
func (s Settings) EarnCoins(base decimal.Decimal, at time.Time) int64 {
	if !s.Enabled || base.LessThanOrEqual(decimal.Zero) {
		return 0
	}

	coins := base.Mul(s.CoinsPerUnit).Mul(s.GlobalMultiplier)
	if s.InFestiveWindow(at) {
		coins = coins.Mul(s.FestiveMultiplier)
	}

	whole := coins.Floor().IntPart()
	if s.MaxCoinsPerOrder > 0 && whole > s.MaxCoinsPerOrder {
		whole = s.MaxCoinsPerOrder
	}
	return whole
}
