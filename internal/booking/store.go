package booking

import (
	"context"
	"time"
)

// Queries is the persistence surface the core needs inside one transaction.
// Implementations return *Error values: NotFound for missing rows, Storage for everything else.
type Queries interface {
	GetProduct(ctx context.Context, id string) (Product, error)
	// LockProducts takes row locks on the given products until the transaction ends.
	LockProducts(ctx context.Context, ids []string) error
	ListTiers(ctx context.Context, productID string) ([]RentalPeriodTier, error)
	// BookedQuantity sums reservations of productID overlapping window whose order status is in statuses.
	BookedQuantity(ctx context.Context, productID string, window Interval, statuses []Status) (int, error)

	GetOrder(ctx context.Context, id string) (Order, error)
	// LockOrder reads an order and holds its row lock until the transaction ends.
	LockOrder(ctx context.Context, id string) (Order, error)
	FindOrderByExternalID(ctx context.Context, externalID string) (Order, error)
	InsertOrder(ctx context.Context, o Order) error
	// UpdateOrder writes o only while the stored status is still from; otherwise it returns InvalidState.
	UpdateOrder(ctx context.Context, o Order, from Status) error

	InsertReservations(ctx context.Context, rs []Reservation) error
	ListReservations(ctx context.Context, orderID string) ([]Reservation, error)
	DeleteReservations(ctx context.Context, orderID string) (int, error)

	GetCouponByCode(ctx context.Context, code string) (Coupon, error)
	IncrementCouponUse(ctx context.Context, id string) error

	GetInvoice(ctx context.Context, id string) (Invoice, error)
	ListInvoices(ctx context.Context, orderID string) ([]Invoice, error)
	InsertInvoice(ctx context.Context, inv Invoice) error
	// ReplaceDraftInvoice overwrites a DRAFT invoice and its lines. POSTED invoices are rejected.
	ReplaceDraftInvoice(ctx context.Context, inv Invoice) error
	PostInvoice(ctx context.Context, id string, at time.Time) error
}

// Store runs functions inside transactions. A non-nil error from fn rolls everything back.
type Store interface {
	InTx(ctx context.Context, fn func(q Queries) error) error
	View(ctx context.Context, fn func(q Queries) error) error
}

// SettingsProvider supplies business settings. Caching is the provider's concern.
type SettingsProvider interface {
	GetSettings(ctx context.Context) (Settings, error)
}

// Locker serializes work on a set of keys. unlock must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, keys []string) (unlock func(), err error)
}
