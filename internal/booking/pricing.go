package booking

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

var (
	secondsPerHour = decimal.NewFromInt(3600)
	hoursPerDay    = decimal.NewFromInt(24)
	daysPerWeek    = decimal.NewFromInt(7)
	hundred        = decimal.NewFromInt(100)
)

func durationHours(d time.Duration) decimal.Decimal {
	return decimal.NewFromInt(int64(d / time.Second)).Div(secondsPerHour)
}

func durationDays(d time.Duration) decimal.Decimal {
	return durationHours(d).Div(hoursPerDay)
}

// TierTotal prices one tier over a window: hourly is pro rata, daily and weekly round partial periods up.
func TierTotal(t RentalPeriodTier, window Interval) (decimal.Decimal, error) {
	d := window.Duration()
	switch t.Unit {
	case UnitHour:
		return t.Price.Mul(durationHours(d)), nil
	case UnitDay:
		return t.Price.Mul(durationDays(d).Ceil()), nil
	case UnitWeek:
		return t.Price.Mul(durationDays(d).Div(daysPerWeek).Ceil()), nil
	}
	return decimal.Zero, Validationf("tier %s has unknown unit %q", t.ID, t.Unit)
}

// CheapestPrice returns the lowest total across tiers for the window.
func CheapestPrice(productID string, tiers []RentalPeriodTier, window Interval) (decimal.Decimal, error) {
	if err := window.Validate(); err != nil {
		return decimal.Zero, err
	}
	if len(tiers) == 0 {
		return decimal.Zero, &Error{Kind: KindNoPricingAvailable, Msg: "no rental pricing for product " + productID}
	}
	var best decimal.Decimal
	for i, t := range tiers {
		total, err := TierTotal(t, window)
		if err != nil {
			return decimal.Zero, err
		}
		if i == 0 || total.LessThan(best) {
			best = total
		}
	}
	return best.Round(2), nil
}

func resolvePrice(ctx context.Context, q Queries, productID string, window Interval) (decimal.Decimal, error) {
	if _, err := q.GetProduct(ctx, productID); err != nil {
		return decimal.Zero, err
	}
	tiers, err := q.ListTiers(ctx, productID)
	if err != nil {
		return decimal.Zero, err
	}
	return CheapestPrice(productID, tiers, window)
}

// ResolvePrice returns the rental price of one unit of a product for [start, end).
func (s *Service) ResolvePrice(ctx context.Context, productID string, start, end time.Time) (decimal.Decimal, error) {
	if productID == "" {
		return decimal.Zero, Validationf("product_id is required")
	}
	window := Interval{Start: start, End: end}
	if err := window.Validate(); err != nil {
		return decimal.Zero, err
	}
	var price decimal.Decimal
	err := s.retryRead(ctx, "resolve price", func() error {
		return s.store.View(ctx, func(q Queries) error {
			p, err := resolvePrice(ctx, q, productID, window)
			price = p
			return err
		})
	})
	return price, err
}
