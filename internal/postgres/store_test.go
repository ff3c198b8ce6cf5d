package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-rental-booking/internal/booking"
)

func TestWrap(t *testing.T) {
	assert.Nil(t, wrap("op", nil))
	assert.ErrorIs(t, wrap("order o1", pgx.ErrNoRows), booking.ErrNotFound)
	assert.ErrorIs(t, wrap("insert order", &pgconn.PgError{Code: "23505", ConstraintName: "orders_external_id_key"}), booking.ErrValidation)
	assert.ErrorIs(t, wrap("insert order", &pgconn.PgError{Code: "23514"}), booking.ErrValidation)

	err := wrap("get order", errors.New("conn reset"))
	assert.ErrorIs(t, err, booking.ErrStorage)
	assert.True(t, booking.IsRetryable(err))
}

type fixedSettings struct{}

func (fixedSettings) GetSettings(context.Context) (booking.Settings, error) {
	return booking.Settings{GSTPercent: decimal.NewFromInt(18), LateFeeRate: decimal.RequireFromString("0.1"),
		GracePeriodHours: decimal.NewFromInt(24), Currency: "INR", PaymentTermDays: 7}, nil
}

// testStore connects to the disposable database named by POSTGRES_TEST_DSN and seeds one product.
func testStore(t *testing.T) (*Store, string) {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	ctx := context.Background()
	pool, err := Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, Migrate(ctx, pool))

	productID := "p-" + uuid.NewString()
	_, err = pool.Exec(ctx, `INSERT INTO products (id, vendor_id, name, total_stock) VALUES ($1, 'v1', 'Camera', 5)`, productID)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO rental_period_tiers (id, product_id, unit, price) VALUES ($1, $2, 'DAY', 100)`, uuid.NewString(), productID)
	require.NoError(t, err)
	return &Store{DB: pool}, productID
}

func TestConcurrentConfirmOnPostgres(t *testing.T) {
	store, productID := testStore(t)
	ctx := context.Background()

	// Separate lockers per service so only the row lock serializes the two confirms.
	svcA := booking.NewService(store, fixedSettings{})
	svcB := booking.NewService(store, fixedSettings{})
	c := booking.Principal{ID: "c1", Role: booking.RoleCustomer}
	v := booking.Principal{ID: "v1", Role: booking.RoleVendor}
	start := time.Date(2030, 1, 10, 0, 0, 0, 0, time.UTC)

	var ids []string
	for i := 0; i < 2; i++ {
		o, _, err := svcA.CreateQuotation(ctx, c, booking.CreateQuotationRequest{
			Start: start, End: start.AddDate(0, 0, 5),
			Lines: []booking.LineRequest{{ProductID: productID, Quantity: 3}},
		})
		require.NoError(t, err)
		_, err = svcA.Send(ctx, v, o.ID)
		require.NoError(t, err)
		ids = append(ids, o.ID)
	}

	errs := make([]error, 2)
	var g errgroup.Group
	for i, svc := range []*booking.Service{svcA, svcB} {
		g.Go(func() error {
			_, errs[i] = svc.Confirm(ctx, c, ids[i])
			return nil
		})
	}
	require.NoError(t, g.Wait())

	failed := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, booking.ErrInsufficientAvailability)
			failed++
		}
	}
	assert.Equal(t, 1, failed)

	a, err := svcA.CheckAvailability(ctx, booking.AvailabilityRequest{ProductID: productID, Start: start, End: start.AddDate(0, 0, 5), RequestedQty: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, a.BookedQty)
}

func TestConcurrentReturnOnPostgres(t *testing.T) {
	store, productID := testStore(t)
	ctx := context.Background()
	svcA := booking.NewService(store, fixedSettings{})
	svcB := booking.NewService(store, fixedSettings{})
	c := booking.Principal{ID: "c1", Role: booking.RoleCustomer}
	v := booking.Principal{ID: "v1", Role: booking.RoleVendor}
	start := time.Date(2031, 3, 1, 10, 0, 0, 0, time.UTC)

	o, _, err := svcA.CreateQuotation(ctx, c, booking.CreateQuotationRequest{
		Start: start, End: start.AddDate(0, 0, 5),
		Lines: []booking.LineRequest{{ProductID: productID, Quantity: 2}},
	})
	require.NoError(t, err)
	_, err = svcA.Send(ctx, v, o.ID)
	require.NoError(t, err)
	_, err = svcA.Confirm(ctx, c, o.ID)
	require.NoError(t, err)
	res, err := svcA.Invoice(ctx, v, o.ID)
	require.NoError(t, err)
	_, err = svcA.PostInvoice(ctx, v, res.Invoice.ID)
	require.NoError(t, err)
	_, err = svcA.Pickup(ctx, v, o.ID)
	require.NoError(t, err)

	returned := start.AddDate(0, 0, 8)
	errs := make([]error, 2)
	var g errgroup.Group
	for i, svc := range []*booking.Service{svcA, svcB} {
		g.Go(func() error {
			_, errs[i] = svc.Return(ctx, v, o.ID, &returned)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	failed := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, booking.ErrInvalidState)
			failed++
		}
	}
	assert.Equal(t, 1, failed)

	invs, err := svcA.ListInvoices(ctx, v, o.ID)
	require.NoError(t, err)
	assert.Len(t, invs, 2, "one primary, one adjustment")
}
