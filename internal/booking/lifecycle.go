package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type LineRequest struct {
	ProductID string
	Quantity  int
}

type CreateQuotationRequest struct {
	ExternalID string
	CustomerID string
	Start      time.Time
	End        time.Time
	Lines      []LineRequest
	CouponCode string
}

func (r CreateQuotationRequest) Validate() error {
	if err := (Interval{Start: r.Start, End: r.End}).Validate(); err != nil {
		return err
	}
	if len(r.Lines) == 0 {
		return Validationf("at least one line is required")
	}
	for i, l := range r.Lines {
		if strings.TrimSpace(l.ProductID) == "" {
			return Validationf("line %d: product_id is required", i)
		}
		if l.Quantity <= 0 {
			return Validationf("line %d: quantity must be positive, got %d", i, l.Quantity)
		}
	}
	return nil
}

// CreateQuotation prices and stores a new order in QUOTATION. No inventory is reserved.
// With an ExternalID already known, the existing order is returned and existed is true.
func (s *Service) CreateQuotation(ctx context.Context, p Principal, req CreateQuotationRequest) (order Order, existed bool, err error) {
	if err := req.Validate(); err != nil {
		return Order{}, false, err
	}
	customerID := req.CustomerID
	switch p.Role {
	case RoleCustomer:
		if customerID == "" {
			customerID = p.ID
		}
		if customerID != p.ID {
			return Order{}, false, Unauthorizedf("customer %q may not quote for customer %q", p.ID, customerID)
		}
	case RoleVendor, RoleAdmin:
		if customerID == "" {
			return Order{}, false, Validationf("customer_id is required")
		}
	default:
		return Order{}, false, Unauthorizedf("unknown role %q", p.Role)
	}

	window := Interval{Start: req.Start, End: req.End}
	now := s.now().UTC()

	err = s.store.InTx(ctx, func(q Queries) error {
		if req.ExternalID != "" {
			prev, err := q.FindOrderByExternalID(ctx, req.ExternalID)
			switch {
			case err == nil:
				if err := authorize(p, prev, actionView); err != nil {
					return err
				}
				order, existed = prev, true
				return nil
			case !errors.Is(err, ErrNotFound):
				return err
			}
		}

		o := Order{
			ID:         uuid.NewString(),
			ExternalID: req.ExternalID,
			CustomerID: customerID,
			Status:     StatusQuotation,
			StartDate:  req.Start,
			EndDate:    req.End,
			Subtotal:   decimal.Zero,
			Discount:   decimal.Zero,
			LateFee:    decimal.Zero,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		for _, l := range req.Lines {
			prod, err := q.GetProduct(ctx, l.ProductID)
			if err != nil {
				return err
			}
			if o.VendorID == "" {
				o.VendorID = prod.VendorID
			} else if prod.VendorID != o.VendorID {
				return Validationf("product %s belongs to vendor %s, order is for vendor %s", prod.ID, prod.VendorID, o.VendorID)
			}
			price, err := resolvePrice(ctx, q, l.ProductID, window)
			if err != nil {
				return err
			}
			line := OrderLine{ID: uuid.NewString(), OrderID: o.ID, ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: price}
			o.Lines = append(o.Lines, line)
			o.Subtotal = o.Subtotal.Add(line.Amount())
		}
		if p.Role == RoleVendor && p.ID != o.VendorID {
			return Unauthorizedf("vendor %q may not quote products of vendor %q", p.ID, o.VendorID)
		}

		if req.CouponCode != "" {
			c, err := q.GetCouponByCode(ctx, req.CouponCode)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					return NotFoundf("coupon %s: %s", req.CouponCode, CouponNotFound)
				}
				return err
			}
			discount, reason := ApplyCoupon(&c, o.Subtotal, now)
			if reason != "" {
				return Validationf("coupon %s: %s", req.CouponCode, reason)
			}
			if err := q.IncrementCouponUse(ctx, c.ID); err != nil {
				return err
			}
			o.Discount = discount
			o.CouponCode = c.Code
		}
		o.TotalAmount = o.Subtotal.Sub(o.Discount)

		if err := q.InsertOrder(ctx, o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return Order{}, false, err
	}
	if !existed {
		s.log.Info("quotation created",
			zap.String("order_id", order.ID),
			zap.String("vendor_id", order.VendorID),
			zap.String("customer_id", order.CustomerID),
			zap.String("total", order.TotalAmount.String()))
	}
	return order, existed, nil
}

// transition applies a to the order in one transaction. apply runs after the status check
// and before the order row is written; it sees the order with its old status.
func (s *Service) transition(ctx context.Context, p Principal, orderID string, a Action, apply func(q Queries, o *Order) error) (Order, error) {
	if orderID == "" {
		return Order{}, Validationf("order_id is required")
	}
	var out Order
	var from Status
	err := s.store.InTx(ctx, func(q Queries) error {
		o, err := q.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := authorize(p, o, a); err != nil {
			return err
		}
		to, err := Next(o.Status, a)
		if err != nil {
			return err
		}
		if apply != nil {
			if err := apply(q, &o); err != nil {
				return err
			}
		}
		from = o.Status
		o.Status = to
		o.UpdatedAt = s.now().UTC()
		if err := q.UpdateOrder(ctx, o, from); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	s.log.Info("order transition",
		zap.String("order_id", out.ID),
		zap.String("action", string(a)),
		zap.String("from", string(from)),
		zap.String("to", string(out.Status)))
	return out, nil
}

// Send moves a quotation to SENT. Still nothing is reserved.
func (s *Service) Send(ctx context.Context, p Principal, orderID string) (Order, error) {
	return s.transition(ctx, p, orderID, ActionSend, nil)
}

// Confirm re-checks availability of every product and commits the reservations in the same
// transaction that sets CONFIRMED. Confirms touching the same product are serialized by the
// product lock, and by row locks where the store supports them.
func (s *Service) Confirm(ctx context.Context, p Principal, orderID string) (Order, error) {
	if orderID == "" {
		return Order{}, Validationf("order_id is required")
	}
	var pre Order
	err := s.store.View(ctx, func(q Queries) error {
		o, err := q.GetOrder(ctx, orderID)
		pre = o
		return err
	})
	if err != nil {
		return Order{}, err
	}
	if err := authorize(p, pre, ActionConfirm); err != nil {
		return Order{}, err
	}
	if _, err := Next(pre.Status, ActionConfirm); err != nil {
		return Order{}, err
	}

	productIDs := orderProductIDs(pre)
	keys := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		keys = append(keys, productLockKey(id))
	}
	unlock, err := s.locker.Lock(ctx, keys)
	if err != nil {
		return Order{}, StorageError("lock products", err)
	}
	defer unlock()

	return s.transition(ctx, p, orderID, ActionConfirm, func(q Queries, o *Order) error {
		if err := q.LockProducts(ctx, orderProductIDs(*o)); err != nil {
			return err
		}
		requested := map[string]int{}
		for _, l := range o.Lines {
			requested[l.ProductID] += l.Quantity
		}
		var short []Shortfall
		for _, id := range orderProductIDs(*o) {
			a, err := availabilityOf(ctx, q, id, o.Window(), requested[id])
			if err != nil {
				return err
			}
			if a.Status != AvailabilityFull {
				short = append(short, Shortfall{ProductID: id, Requested: requested[id], Available: a.AvailableQty, Status: a.Status})
			}
		}
		if len(short) > 0 {
			s.log.Warn("confirm rejected", zap.String("order_id", o.ID), zap.Any("shortfalls", short))
			return &Error{Kind: KindInsufficientAvailability, Msg: shortfallMsg(short), Shortfalls: short}
		}

		now := s.now().UTC()
		rs := make([]Reservation, 0, len(o.Lines))
		for _, l := range o.Lines {
			rs = append(rs, Reservation{
				ID:        uuid.NewString(),
				OrderID:   o.ID,
				ProductID: l.ProductID,
				Quantity:  l.Quantity,
				StartDate: o.StartDate,
				EndDate:   o.EndDate,
				CreatedAt: now,
			})
		}
		return q.InsertReservations(ctx, rs)
	})
}

func orderProductIDs(o Order) []string {
	ids := make([]string, 0, len(o.Lines))
	for _, l := range o.Lines {
		ids = append(ids, l.ProductID)
	}
	return sortedUnique(ids)
}

func shortfallMsg(short []Shortfall) string {
	parts := make([]string, 0, len(short))
	for _, sf := range short {
		parts = append(parts, fmt.Sprintf("product %s: requested %d, available %d", sf.ProductID, sf.Requested, sf.Available))
	}
	return "insufficient availability: " + strings.Join(parts, "; ")
}

type InvoiceResult struct {
	Order   Order   `json:"order"`
	Invoice Invoice `json:"invoice"`
}

// Invoice creates the primary invoice of a confirmed order and moves it to INVOICED.
func (s *Service) Invoice(ctx context.Context, p Principal, orderID string) (InvoiceResult, error) {
	st, err := s.settings.GetSettings(ctx)
	if err != nil {
		return InvoiceResult{}, StorageError("load settings", err)
	}
	var inv Invoice
	o, err := s.transition(ctx, p, orderID, ActionInvoice, func(q Queries, o *Order) error {
		existing, err := q.ListInvoices(ctx, o.ID)
		if err != nil {
			return err
		}
		for _, e := range existing {
			if e.Kind == InvoicePrimary {
				return invalidStatef("order %s already has primary invoice %s", o.ID, e.ID)
			}
		}
		inv = newPrimaryInvoice(*o, st, s.now().UTC())
		return q.InsertInvoice(ctx, inv)
	})
	if err != nil {
		return InvoiceResult{}, err
	}
	return InvoiceResult{Order: o, Invoice: inv}, nil
}

// Pickup records the handoff of the goods.
func (s *Service) Pickup(ctx context.Context, p Principal, orderID string) (Order, error) {
	return s.transition(ctx, p, orderID, ActionPickup, nil)
}

type ReturnResult struct {
	Order    Order `json:"order"`
	Released int   `json:"released_reservations"`
	// FeeInvoice is the invoice carrying the late fee, nil when there is none.
	FeeInvoice *Invoice `json:"fee_invoice,omitempty"`
}

// Return releases the reservations, records the return time and the late fee. A posted
// primary invoice is never touched: the fee goes on a separate adjustment invoice.
func (s *Service) Return(ctx context.Context, p Principal, orderID string, returnedAt *time.Time) (ReturnResult, error) {
	at := s.now().UTC()
	if returnedAt != nil {
		if returnedAt.IsZero() {
			return ReturnResult{}, Validationf("returned_at must not be zero")
		}
		at = returnedAt.UTC()
	}
	st, err := s.settings.GetSettings(ctx)
	if err != nil {
		return ReturnResult{}, StorageError("load settings", err)
	}

	var res ReturnResult
	o, err := s.transition(ctx, p, orderID, ActionReturn, func(q Queries, o *Order) error {
		n, err := q.DeleteReservations(ctx, o.ID)
		if err != nil {
			return err
		}
		res.Released = n

		fee := LateFee(o.TotalAmount, o.EndDate, at, st.LateFeeRate, st.GracePeriodHours)
		o.ActualReturnDate = &at
		o.LateFee = fee
		if !fee.IsPositive() {
			return nil
		}

		invoices, err := q.ListInvoices(ctx, o.ID)
		if err != nil {
			return err
		}
		var primary *Invoice
		for i := range invoices {
			if invoices[i].Kind == InvoicePrimary {
				primary = &invoices[i]
				break
			}
		}
		switch {
		case primary == nil:
			return nil
		case primary.Status == InvoicePosted:
			adj := newAdjustmentInvoice(*o, fee, st, s.now().UTC())
			if err := q.InsertInvoice(ctx, adj); err != nil {
				return err
			}
			res.FeeInvoice = &adj
		default:
			amended := *primary
			amended.Lines = append(append([]InvoiceLine(nil), primary.Lines...), lateFeeLine(primary.ID, fee))
			retotal(&amended, st)
			if err := q.ReplaceDraftInvoice(ctx, amended); err != nil {
				return err
			}
			res.FeeInvoice = &amended
		}
		return nil
	})
	if err != nil {
		return ReturnResult{}, err
	}
	res.Order = o
	if o.LateFee.IsPositive() {
		s.log.Info("late fee charged", zap.String("order_id", o.ID), zap.String("late_fee", o.LateFee.String()))
	}
	return res, nil
}

// Cancel ends the order from any non-terminal status, releasing reservations it holds.
func (s *Service) Cancel(ctx context.Context, p Principal, orderID string) (Order, error) {
	return s.transition(ctx, p, orderID, ActionCancel, func(q Queries, o *Order) error {
		if !o.Status.HoldsReservations() {
			return nil
		}
		_, err := q.DeleteReservations(ctx, o.ID)
		return err
	})
}

// PostInvoice finalizes a draft invoice. Posted invoices are immutable.
func (s *Service) PostInvoice(ctx context.Context, p Principal, invoiceID string) (Invoice, error) {
	if invoiceID == "" {
		return Invoice{}, Validationf("invoice_id is required")
	}
	var out Invoice
	err := s.store.InTx(ctx, func(q Queries) error {
		inv, err := q.GetInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		o, err := q.GetOrder(ctx, inv.OrderID)
		if err != nil {
			return err
		}
		if err := authorize(p, o, ActionInvoice); err != nil {
			return err
		}
		if inv.Status != InvoiceDraft {
			return invalidStatef("invoice %s is %s", inv.ID, inv.Status)
		}
		if err := q.PostInvoice(ctx, inv.ID, s.now().UTC()); err != nil {
			return err
		}
		out, err = q.GetInvoice(ctx, inv.ID)
		return err
	})
	if err != nil {
		return Invoice{}, err
	}
	s.log.Info("invoice posted", zap.String("invoice_id", out.ID), zap.String("order_id", out.OrderID))
	return out, nil
}

func (s *Service) GetOrder(ctx context.Context, p Principal, orderID string) (Order, error) {
	if orderID == "" {
		return Order{}, Validationf("order_id is required")
	}
	var out Order
	err := s.retryRead(ctx, "get order", func() error {
		return s.store.View(ctx, func(q Queries) error {
			o, err := q.GetOrder(ctx, orderID)
			if err != nil {
				return err
			}
			out = o
			return authorize(p, o, actionView)
		})
	})
	return out, err
}

func (s *Service) ListInvoices(ctx context.Context, p Principal, orderID string) ([]Invoice, error) {
	if orderID == "" {
		return nil, Validationf("order_id is required")
	}
	var out []Invoice
	err := s.retryRead(ctx, "list invoices", func() error {
		return s.store.View(ctx, func(q Queries) error {
			o, err := q.GetOrder(ctx, orderID)
			if err != nil {
				return err
			}
			if err := authorize(p, o, actionView); err != nil {
				return err
			}
			out, err = q.ListInvoices(ctx, orderID)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
