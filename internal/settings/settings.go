// Package settings provides booking.SettingsProvider implementations.
package settings

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-rental-booking/internal/booking"
	"github.com/ariefcatur/go-rental-booking/internal/config"
)

// Static serves fixed settings.
type Static struct{ S booking.Settings }

func (p Static) GetSettings(context.Context) (booking.Settings, error) { return p.S, nil }

// FromConfig parses the settings section of the process configuration.
func FromConfig(cfg config.Config) (Static, error) {
	gst, err := decimal.NewFromString(cfg.GSTPercent)
	if err != nil {
		return Static{}, fmt.Errorf("GST_PERCENT: %w", err)
	}
	rate, err := decimal.NewFromString(cfg.LateFeeRate)
	if err != nil {
		return Static{}, fmt.Errorf("LATE_FEE_RATE: %w", err)
	}
	grace, err := decimal.NewFromString(cfg.GracePeriodHours)
	if err != nil {
		return Static{}, fmt.Errorf("GRACE_PERIOD_HOURS: %w", err)
	}
	if gst.IsNegative() || rate.IsNegative() || grace.IsNegative() {
		return Static{}, fmt.Errorf("settings must not be negative")
	}
	return Static{S: booking.Settings{
		GSTPercent:       gst,
		LateFeeRate:      rate,
		GracePeriodHours: grace,
		Currency:         cfg.Currency,
		PaymentTermDays:  cfg.PaymentTermDays,
	}}, nil
}
