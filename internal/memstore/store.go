// Package memstore is an in-memory booking.Store. Each transaction works on a private
// snapshot and its writes are replayed onto the shared state at commit, so an error
// anywhere in a transaction leaves nothing behind. Write transactions run one at a time,
// which stands in for row locks: every InTx sees all writes committed before it.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/ariefcatur/go-rental-booking/internal/booking"
)

type state struct {
	products     map[string]booking.Product
	tiers        map[string][]booking.RentalPeriodTier
	orders       map[string]booking.Order
	reservations []booking.Reservation
	coupons      map[string]booking.Coupon
	invoices     []booking.Invoice
}

func newState() *state {
	return &state{
		products: map[string]booking.Product{},
		tiers:    map[string][]booking.RentalPeriodTier{},
		orders:   map[string]booking.Order{},
		coupons:  map[string]booking.Coupon{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.tiers {
		c.tiers[k] = append([]booking.RentalPeriodTier(nil), v...)
	}
	for k, v := range s.orders {
		c.orders[k] = copyOrder(v)
	}
	c.reservations = append([]booking.Reservation(nil), s.reservations...)
	for k, v := range s.coupons {
		c.coupons[k] = v
	}
	c.invoices = make([]booking.Invoice, 0, len(s.invoices))
	for _, inv := range s.invoices {
		c.invoices = append(c.invoices, copyInvoice(inv))
	}
	return c
}

func copyOrder(o booking.Order) booking.Order {
	o.Lines = append([]booking.OrderLine(nil), o.Lines...)
	if o.ActualReturnDate != nil {
		t := *o.ActualReturnDate
		o.ActualReturnDate = &t
	}
	return o
}

func copyInvoice(inv booking.Invoice) booking.Invoice {
	inv.Lines = append([]booking.InvoiceLine(nil), inv.Lines...)
	if inv.PostedAt != nil {
		t := *inv.PostedAt
		inv.PostedAt = &t
	}
	return inv
}

type Store struct {
	txMu  sync.Mutex // held for the whole of InTx
	mu    sync.RWMutex
	st    *state
	fault func(op string) error
}

var _ booking.Store = (*Store)(nil)

func New() *Store {
	return &Store{st: newState()}
}

// SetFault installs a hook consulted before every query; a non-nil result fails the query
// as a storage error. Pass nil to clear it.
func (s *Store) SetFault(f func(op string) error) {
	s.mu.Lock()
	s.fault = f
	s.mu.Unlock()
}

func (s *Store) begin(ctx context.Context) (*tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, booking.StorageError("begin", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &tx{st: s.st.clone(), fault: s.fault}, nil
}

func (s *Store) InTx(ctx context.Context, fn func(q booking.Queries) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	t, err := s.begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return booking.StorageError("commit", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range t.ops {
		op(s.st)
	}
	return nil
}

func (s *Store) View(ctx context.Context, fn func(q booking.Queries) error) error {
	t, err := s.begin(ctx)
	if err != nil {
		return err
	}
	t.readOnly = true
	return fn(t)
}

// AddProduct seeds a product with its pricing tiers.
func (s *Store) AddProduct(p booking.Product, tiers ...booking.RentalPeriodTier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt, p.UpdatedAt = now, now
	}
	s.st.products[p.ID] = p
	for _, t := range tiers {
		t.ProductID = p.ID
		s.st.tiers[p.ID] = append(s.st.tiers[p.ID], t)
	}
}

func (s *Store) AddCoupon(c booking.Coupon) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.coupons[c.ID] = c
}

// Reservations returns the committed reservations of a product.
func (s *Store) Reservations(productID string) []booking.Reservation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []booking.Reservation
	for _, r := range s.st.reservations {
		if r.ProductID == productID {
			out = append(out, r)
		}
	}
	return out
}

func (s *Store) Coupon(id string) booking.Coupon {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.coupons[id]
}
