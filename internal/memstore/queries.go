package memstore

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/go-rental-booking/internal/booking"
)

var errReadOnly = errors.New("write in read-only transaction")

type tx struct {
	st       *state
	ops      []func(*state)
	fault    func(op string) error
	readOnly bool
}

func (t *tx) check(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return booking.StorageError(op, err)
	}
	if t.fault != nil {
		if err := t.fault(op); err != nil {
			return booking.StorageError(op, err)
		}
	}
	return nil
}

// write applies op to the snapshot now and to the shared state at commit.
func (t *tx) write(ctx context.Context, name string, op func(*state)) error {
	if err := t.check(ctx, name); err != nil {
		return err
	}
	if t.readOnly {
		return booking.StorageError(name, errReadOnly)
	}
	op(t.st)
	t.ops = append(t.ops, op)
	return nil
}

func (t *tx) GetProduct(ctx context.Context, id string) (booking.Product, error) {
	if err := t.check(ctx, "get product"); err != nil {
		return booking.Product{}, err
	}
	p, ok := t.st.products[id]
	if !ok {
		return booking.Product{}, booking.NotFoundf("product %s not found", id)
	}
	return p, nil
}

func (t *tx) LockProducts(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if _, err := t.GetProduct(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) ListTiers(ctx context.Context, productID string) ([]booking.RentalPeriodTier, error) {
	if err := t.check(ctx, "list tiers"); err != nil {
		return nil, err
	}
	return append([]booking.RentalPeriodTier(nil), t.st.tiers[productID]...), nil
}

func (t *tx) BookedQuantity(ctx context.Context, productID string, window booking.Interval, statuses []booking.Status) (int, error) {
	if err := t.check(ctx, "booked quantity"); err != nil {
		return 0, err
	}
	counts := map[booking.Status]bool{}
	for _, s := range statuses {
		counts[s] = true
	}
	total := 0
	for _, r := range t.st.reservations {
		if r.ProductID != productID {
			continue
		}
		if !window.Overlaps(booking.Interval{Start: r.StartDate, End: r.EndDate}) {
			continue
		}
		if o, ok := t.st.orders[r.OrderID]; ok && counts[o.Status] {
			total += r.Quantity
		}
	}
	return total, nil
}

func (t *tx) GetOrder(ctx context.Context, id string) (booking.Order, error) {
	if err := t.check(ctx, "get order"); err != nil {
		return booking.Order{}, err
	}
	o, ok := t.st.orders[id]
	if !ok {
		return booking.Order{}, booking.NotFoundf("order %s not found", id)
	}
	return copyOrder(o), nil
}

// LockOrder is GetOrder: write transactions are already serialized by the store.
func (t *tx) LockOrder(ctx context.Context, id string) (booking.Order, error) {
	if t.readOnly {
		return booking.Order{}, booking.StorageError("lock order", errReadOnly)
	}
	return t.GetOrder(ctx, id)
}

func (t *tx) FindOrderByExternalID(ctx context.Context, externalID string) (booking.Order, error) {
	if err := t.check(ctx, "find order"); err != nil {
		return booking.Order{}, err
	}
	for _, o := range t.st.orders {
		if o.ExternalID != "" && o.ExternalID == externalID {
			return copyOrder(o), nil
		}
	}
	return booking.Order{}, booking.NotFoundf("order with external id %s not found", externalID)
}

func (t *tx) InsertOrder(ctx context.Context, o booking.Order) error {
	if _, ok := t.st.orders[o.ID]; ok {
		return booking.StorageError("insert order", errors.New("duplicate order id "+o.ID))
	}
	o = copyOrder(o)
	return t.write(ctx, "insert order", func(s *state) { s.orders[o.ID] = copyOrder(o) })
}

func (t *tx) UpdateOrder(ctx context.Context, o booking.Order, from booking.Status) error {
	cur, ok := t.st.orders[o.ID]
	if !ok {
		return booking.NotFoundf("order %s not found", o.ID)
	}
	if cur.Status != from {
		return &booking.Error{Kind: booking.KindInvalidState, Msg: "order " + o.ID + " is no longer " + string(from)}
	}
	o = copyOrder(o)
	return t.write(ctx, "update order", func(s *state) { s.orders[o.ID] = copyOrder(o) })
}

func (t *tx) InsertReservations(ctx context.Context, rs []booking.Reservation) error {
	for _, r := range rs {
		if r.Quantity <= 0 {
			return booking.Validationf("reservation quantity must be positive, got %d", r.Quantity)
		}
	}
	rs = append([]booking.Reservation(nil), rs...)
	return t.write(ctx, "insert reservations", func(s *state) { s.reservations = append(s.reservations, rs...) })
}

func (t *tx) ListReservations(ctx context.Context, orderID string) ([]booking.Reservation, error) {
	if err := t.check(ctx, "list reservations"); err != nil {
		return nil, err
	}
	var out []booking.Reservation
	for _, r := range t.st.reservations {
		if r.OrderID == orderID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (t *tx) DeleteReservations(ctx context.Context, orderID string) (int, error) {
	n := 0
	for _, r := range t.st.reservations {
		if r.OrderID == orderID {
			n++
		}
	}
	err := t.write(ctx, "delete reservations", func(s *state) {
		kept := s.reservations[:0:0]
		for _, r := range s.reservations {
			if r.OrderID != orderID {
				kept = append(kept, r)
			}
		}
		s.reservations = kept
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (t *tx) GetCouponByCode(ctx context.Context, code string) (booking.Coupon, error) {
	if err := t.check(ctx, "get coupon"); err != nil {
		return booking.Coupon{}, err
	}
	for _, c := range t.st.coupons {
		if c.Code == code {
			return c, nil
		}
	}
	return booking.Coupon{}, booking.NotFoundf("coupon %s not found", code)
}

func (t *tx) IncrementCouponUse(ctx context.Context, id string) error {
	c, ok := t.st.coupons[id]
	if !ok {
		return booking.NotFoundf("coupon %s not found", id)
	}
	if c.MaxUses != nil && c.UsedCount >= *c.MaxUses {
		return booking.Validationf("coupon %s: %s", c.Code, booking.CouponExhausted)
	}
	return t.write(ctx, "increment coupon use", func(s *state) {
		c := s.coupons[id]
		c.UsedCount++
		s.coupons[id] = c
	})
}

func (t *tx) GetInvoice(ctx context.Context, id string) (booking.Invoice, error) {
	if err := t.check(ctx, "get invoice"); err != nil {
		return booking.Invoice{}, err
	}
	for _, inv := range t.st.invoices {
		if inv.ID == id {
			return copyInvoice(inv), nil
		}
	}
	return booking.Invoice{}, booking.NotFoundf("invoice %s not found", id)
}

func (t *tx) ListInvoices(ctx context.Context, orderID string) ([]booking.Invoice, error) {
	if err := t.check(ctx, "list invoices"); err != nil {
		return nil, err
	}
	var out []booking.Invoice
	for _, inv := range t.st.invoices {
		if inv.OrderID == orderID {
			out = append(out, copyInvoice(inv))
		}
	}
	return out, nil
}

func (t *tx) InsertInvoice(ctx context.Context, inv booking.Invoice) error {
	inv = copyInvoice(inv)
	return t.write(ctx, "insert invoice", func(s *state) { s.invoices = append(s.invoices, copyInvoice(inv)) })
}

func (t *tx) ReplaceDraftInvoice(ctx context.Context, inv booking.Invoice) error {
	cur, err := t.GetInvoice(ctx, inv.ID)
	if err != nil {
		return err
	}
	if cur.Status != booking.InvoiceDraft {
		return &booking.Error{Kind: booking.KindInvalidState, Msg: "invoice " + inv.ID + " is " + string(cur.Status)}
	}
	inv = copyInvoice(inv)
	return t.write(ctx, "replace invoice", func(s *state) {
		for i := range s.invoices {
			if s.invoices[i].ID == inv.ID {
				s.invoices[i] = copyInvoice(inv)
			}
		}
	})
}

func (t *tx) PostInvoice(ctx context.Context, id string, at time.Time) error {
	cur, err := t.GetInvoice(ctx, id)
	if err != nil {
		return err
	}
	if cur.Status != booking.InvoiceDraft {
		return &booking.Error{Kind: booking.KindInvalidState, Msg: "invoice " + id + " is " + string(cur.Status)}
	}
	return t.write(ctx, "post invoice", func(s *state) {
		for i := range s.invoices {
			if s.invoices[i].ID == id {
				s.invoices[i].Status = booking.InvoicePosted
				posted := at
				s.invoices[i].PostedAt = &posted
			}
		}
	})
}
