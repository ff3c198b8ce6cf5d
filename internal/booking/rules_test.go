package booking_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-rental-booking/internal/booking"
)

func day(d, h int) time.Time {
	return time.Date(2026, time.January, d, h, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestIntervalOverlaps(t *testing.T) {
	cases := []struct {
		name string
		a, b booking.Interval
		want bool
	}{
		{"touching", booking.Interval{Start: day(10, 0), End: day(15, 0)}, booking.Interval{Start: day(15, 0), End: day(20, 0)}, false},
		{"one day shared", booking.Interval{Start: day(10, 0), End: day(15, 0)}, booking.Interval{Start: day(14, 0), End: day(20, 0)}, true},
		{"contained", booking.Interval{Start: day(10, 0), End: day(15, 0)}, booking.Interval{Start: day(12, 0), End: day(13, 0)}, true},
		{"disjoint", booking.Interval{Start: day(10, 0), End: day(12, 0)}, booking.Interval{Start: day(16, 0), End: day(18, 0)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.a.Overlaps(tc.b))
			assert.Equal(t, tc.want, tc.b.Overlaps(tc.a))
		})
	}
}

func TestIntervalValidate(t *testing.T) {
	assert.NoError(t, booking.Interval{Start: day(10, 0), End: day(11, 0)}.Validate())
	assert.ErrorIs(t, booking.Interval{Start: day(11, 0), End: day(11, 0)}.Validate(), booking.ErrValidation)
	assert.ErrorIs(t, booking.Interval{Start: day(12, 0), End: day(11, 0)}.Validate(), booking.ErrValidation)
	assert.ErrorIs(t, booking.Interval{End: day(11, 0)}.Validate(), booking.ErrValidation)

	i := booking.Interval{Start: day(10, 0), End: day(11, 0)}
	assert.True(t, i.Contains(day(10, 0)))
	assert.False(t, i.Contains(day(11, 0)))
}

func TestClassify(t *testing.T) {
	cases := []struct {
		stock, booked, requested int
		status                   booking.AvailabilityStatus
		available                int
	}{
		{5, 3, 3, booking.AvailabilityPartial, 2},
		{5, 3, 2, booking.AvailabilityFull, 2},
		{5, 0, 5, booking.AvailabilityFull, 5},
		{5, 5, 1, booking.AvailabilityNone, 0},
		{5, 7, 1, booking.AvailabilityNone, 0},
		{5, 2, 0, booking.AvailabilityFull, 3},
	}
	for _, tc := range cases {
		status, available := booking.Classify(tc.stock, tc.booked, tc.requested)
		assert.Equal(t, tc.status, status, "stock=%d booked=%d requested=%d", tc.stock, tc.booked, tc.requested)
		assert.Equal(t, tc.available, available)
	}
}

func TestTransitions(t *testing.T) {
	happy := []struct {
		from booking.Status
		a    booking.Action
		to   booking.Status
	}{
		{booking.StatusQuotation, booking.ActionSend, booking.StatusSent},
		{booking.StatusSent, booking.ActionConfirm, booking.StatusConfirmed},
		{booking.StatusConfirmed, booking.ActionInvoice, booking.StatusInvoiced},
		{booking.StatusInvoiced, booking.ActionPickup, booking.StatusPickedUp},
		{booking.StatusPickedUp, booking.ActionReturn, booking.StatusReturned},
	}
	for _, tc := range happy {
		to, err := booking.Next(tc.from, tc.a)
		require.NoError(t, err)
		assert.Equal(t, tc.to, to)
		assert.True(t, booking.CanTransition(tc.from, tc.to))
	}

	for _, s := range []booking.Status{booking.StatusQuotation, booking.StatusSent, booking.StatusConfirmed, booking.StatusInvoiced, booking.StatusPickedUp} {
		to, err := booking.Next(s, booking.ActionCancel)
		require.NoError(t, err)
		assert.Equal(t, booking.StatusCancelled, to)
		assert.False(t, s.Terminal())
	}

	_, err := booking.Next(booking.StatusQuotation, booking.ActionConfirm)
	assert.ErrorIs(t, err, booking.ErrInvalidState)
	_, err = booking.Next(booking.StatusReturned, booking.ActionCancel)
	assert.ErrorIs(t, err, booking.ErrInvalidState)
	_, err = booking.Next(booking.StatusCancelled, booking.ActionSend)
	assert.ErrorIs(t, err, booking.ErrInvalidState)

	assert.True(t, booking.StatusReturned.Terminal())
	assert.True(t, booking.StatusCancelled.Terminal())
	assert.False(t, booking.Status("LOST").Valid())
	assert.False(t, booking.CanTransition(booking.StatusQuotation, booking.StatusConfirmed))
}

func TestHoldsReservations(t *testing.T) {
	assert.False(t, booking.StatusQuotation.HoldsReservations())
	assert.False(t, booking.StatusSent.HoldsReservations())
	assert.True(t, booking.StatusConfirmed.HoldsReservations())
	assert.True(t, booking.StatusInvoiced.HoldsReservations())
	assert.True(t, booking.StatusPickedUp.HoldsReservations())
	assert.False(t, booking.StatusReturned.HoldsReservations())
	assert.False(t, booking.StatusCancelled.HoldsReservations())
}

func TestCheapestPrice(t *testing.T) {
	tiers := []booking.RentalPeriodTier{
		{ID: "h", Unit: booking.UnitHour, Price: dec("10")},
		{ID: "d", Unit: booking.UnitDay, Price: dec("100")},
		{ID: "w", Unit: booking.UnitWeek, Price: dec("500")},
	}
	cases := []struct {
		name   string
		window booking.Interval
		want   string
	}{
		{"five hours hourly wins", booking.Interval{Start: day(10, 8), End: day(10, 13)}, "50"},
		{"partial day rounds up", booking.Interval{Start: day(10, 0), End: day(11, 6)}, "200"},
		{"five days daily wins", booking.Interval{Start: day(10, 0), End: day(15, 0)}, "500"},
		{"six days weekly wins", booking.Interval{Start: day(10, 0), End: day(16, 0)}, "500"},
		{"eight days daily beats two weeks", booking.Interval{Start: day(10, 0), End: day(18, 0)}, "800"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := booking.CheapestPrice("p1", tiers, tc.window)
			require.NoError(t, err)
			assert.True(t, dec(tc.want).Equal(got), "got %s want %s", got, tc.want)
		})
	}
}

func TestCheapestPriceErrors(t *testing.T) {
	_, err := booking.CheapestPrice("p1", nil, booking.Interval{Start: day(10, 0), End: day(11, 0)})
	assert.ErrorIs(t, err, booking.ErrNoPricingAvailable)

	_, err = booking.CheapestPrice("p1", []booking.RentalPeriodTier{{Unit: booking.UnitDay, Price: dec("1")}},
		booking.Interval{Start: day(11, 0), End: day(10, 0)})
	assert.ErrorIs(t, err, booking.ErrValidation)

	_, err = booking.CheapestPrice("p1", []booking.RentalPeriodTier{{ID: "x", Unit: "MONTH", Price: dec("1")}},
		booking.Interval{Start: day(10, 0), End: day(11, 0)})
	assert.ErrorIs(t, err, booking.ErrValidation)
}

func TestHourlyTierIsProRata(t *testing.T) {
	tier := booking.RentalPeriodTier{Unit: booking.UnitHour, Price: dec("12")}
	w := booking.Interval{Start: day(10, 8), End: day(10, 8).Add(90 * time.Minute)}
	got, err := booking.TierTotal(tier, w)
	require.NoError(t, err)
	assert.True(t, dec("18").Equal(got), "got %s", got)
}

func TestApplyCoupon(t *testing.T) {
	now := day(5, 12)
	maxTwo := 2
	base := booking.Coupon{
		ID: "c1", Code: "SAVE", DiscountType: booking.DiscountPercentage, Value: dec("10"),
		ValidFrom: day(1, 0), ValidTo: day(31, 0), Active: true,
	}
	fixed := base
	fixed.DiscountType, fixed.Value = booking.DiscountFixed, dec("500")
	inactive := base
	inactive.Active = false
	early := base
	early.ValidFrom = day(6, 0)
	expired := base
	expired.ValidTo = day(4, 0)
	exhausted := base
	exhausted.MaxUses, exhausted.UsedCount = &maxTwo, 2

	cases := []struct {
		name     string
		c        *booking.Coupon
		subtotal string
		discount string
		reason   string
	}{
		{"percentage", &base, "1000", "100", ""},
		{"fixed clamps to subtotal", &fixed, "200", "200", ""},
		{"fixed under subtotal", &fixed, "800", "500", ""},
		{"missing", nil, "1000", "0", booking.CouponNotFound},
		{"inactive", &inactive, "1000", "0", booking.CouponInactive},
		{"not yet valid", &early, "1000", "0", booking.CouponNotYet},
		{"expired", &expired, "1000", "0", booking.CouponExpired},
		{"exhausted", &exhausted, "1000", "0", booking.CouponExhausted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, reason := booking.ApplyCoupon(tc.c, dec(tc.subtotal), now)
			assert.Equal(t, tc.reason, reason)
			assert.True(t, dec(tc.discount).Equal(d), "got %s want %s", d, tc.discount)
		})
	}
}

func TestLateFee(t *testing.T) {
	rate, grace := dec("0.1"), dec("24")
	planned := day(10, 10)

	cases := []struct {
		name     string
		returned time.Time
		want     string
	}{
		{"on time", day(10, 10), "0"},
		{"early", day(9, 10), "0"},
		{"within grace", day(11, 9), "0"},
		{"exactly at grace", day(11, 10), "0"},
		{"fifty hours late", day(12, 12), "108.33"},
		{"three days late", day(13, 10), "200"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := booking.LateFee(dec("1000"), planned, tc.returned, rate, grace)
			assert.True(t, dec(tc.want).Equal(got), "got %s want %s", got, tc.want)
		})
	}
}

func TestTaxBreakdown(t *testing.T) {
	sub, tax := booking.TaxBreakdown(dec("118"), dec("18"))
	assert.True(t, dec("100").Equal(sub))
	assert.True(t, dec("18").Equal(tax))

	sub, tax = booking.TaxBreakdown(dec("100"), dec("18"))
	assert.True(t, dec("84.75").Equal(sub), "got %s", sub)
	assert.True(t, dec("15.25").Equal(tax), "got %s", tax)

	sub, tax = booking.TaxBreakdown(dec("50"), decimal.Zero)
	assert.True(t, dec("50").Equal(sub))
	assert.True(t, tax.IsZero())
}

func TestErrorKinds(t *testing.T) {
	err := booking.NotFoundf("order %s not found", "o1")
	assert.ErrorIs(t, err, booking.ErrNotFound)
	assert.NotErrorIs(t, err, booking.ErrValidation)
	assert.Equal(t, booking.KindNotFound, booking.KindOf(err))
	assert.False(t, booking.IsRetryable(err))

	serr := booking.StorageError("get order", assert.AnError)
	assert.ErrorIs(t, serr, booking.ErrStorage)
	assert.ErrorIs(t, serr, assert.AnError)
	assert.True(t, booking.IsRetryable(serr))

	// Already classified errors pass through unchanged.
	assert.Same(t, err, booking.StorageError("x", err))
	assert.Nil(t, booking.StorageError("x", nil))
}
