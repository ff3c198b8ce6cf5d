package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-rental-booking/internal/booking"
)

type queries struct{ tx pgx.Tx }

var _ booking.Queries = (*queries)(nil)

func (q *queries) GetProduct(ctx context.Context, id string) (booking.Product, error) {
	var p booking.Product
	err := q.tx.QueryRow(ctx, `
		SELECT id, vendor_id, name, total_stock, created_at, updated_at
		FROM products WHERE id=$1`, id,
	).Scan(&p.ID, &p.VendorID, &p.Name, &p.TotalStock, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return booking.Product{}, wrap("product "+id, err)
	}
	return p, nil
}

// LockProducts locks rows in id order so concurrent lockers cannot deadlock.
func (q *queries) LockProducts(ctx context.Context, ids []string) error {
	rows, err := q.tx.Query(ctx, `SELECT id FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return wrap("lock products", err)
	}
	defer rows.Close()
	found := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return wrap("lock products", err)
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return wrap("lock products", err)
	}
	for _, id := range ids {
		if !found[id] {
			return booking.NotFoundf("product %s not found", id)
		}
	}
	return nil
}

func (q *queries) ListTiers(ctx context.Context, productID string) ([]booking.RentalPeriodTier, error) {
	rows, err := q.tx.Query(ctx, `
		SELECT id, product_id, unit, price FROM rental_period_tiers
		WHERE product_id=$1 ORDER BY id`, productID)
	if err != nil {
		return nil, wrap("list tiers", err)
	}
	defer rows.Close()
	var out []booking.RentalPeriodTier
	for rows.Next() {
		var t booking.RentalPeriodTier
		var unit string
		if err := rows.Scan(&t.ID, &t.ProductID, &unit, &t.Price); err != nil {
			return nil, wrap("list tiers", err)
		}
		t.Unit = booking.PeriodUnit(unit)
		out = append(out, t)
	}
	return out, wrap("list tiers", rows.Err())
}

func (q *queries) BookedQuantity(ctx context.Context, productID string, window booking.Interval, statuses []booking.Status) (int, error) {
	st := make([]string, 0, len(statuses))
	for _, s := range statuses {
		st = append(st, string(s))
	}
	var n int
	err := q.tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(r.quantity), 0)
		FROM reservations r
		JOIN orders o ON o.id = r.order_id
		WHERE r.product_id = $1
		  AND r.start_date < $3
		  AND $2 < r.end_date
		  AND o.status = ANY($4)`,
		productID, window.Start, window.End, st,
	).Scan(&n)
	if err != nil {
		return 0, wrap("booked quantity", err)
	}
	return n, nil
}

const orderColumns = `id, COALESCE(external_id, ''), vendor_id, customer_id, status, start_date, end_date,
	subtotal, discount, total_amount, late_fee, COALESCE(coupon_code, ''), actual_return_date, created_at, updated_at`

func scanOrder(row pgx.Row) (booking.Order, error) {
	var o booking.Order
	var status string
	err := row.Scan(&o.ID, &o.ExternalID, &o.VendorID, &o.CustomerID, &status, &o.StartDate, &o.EndDate,
		&o.Subtotal, &o.Discount, &o.TotalAmount, &o.LateFee, &o.CouponCode, &o.ActualReturnDate, &o.CreatedAt, &o.UpdatedAt)
	o.Status = booking.Status(status)
	return o, err
}

func (q *queries) loadLines(ctx context.Context, o *booking.Order) error {
	rows, err := q.tx.Query(ctx, `
		SELECT id, order_id, product_id, quantity, unit_price
		FROM order_lines WHERE order_id=$1 ORDER BY position`, o.ID)
	if err != nil {
		return wrap("order lines", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l booking.OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Quantity, &l.UnitPrice); err != nil {
			return wrap("order lines", err)
		}
		o.Lines = append(o.Lines, l)
	}
	return wrap("order lines", rows.Err())
}

func (q *queries) GetOrder(ctx context.Context, id string) (booking.Order, error) {
	o, err := scanOrder(q.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if err != nil {
		return booking.Order{}, wrap("order "+id, err)
	}
	if err := q.loadLines(ctx, &o); err != nil {
		return booking.Order{}, err
	}
	return o, nil
}

// LockOrder takes the order row with FOR UPDATE, so a second transition on the same order
// waits here and then reads the status the first one committed.
func (q *queries) LockOrder(ctx context.Context, id string) (booking.Order, error) {
	o, err := scanOrder(q.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return booking.Order{}, wrap("order "+id, err)
	}
	if err := q.loadLines(ctx, &o); err != nil {
		return booking.Order{}, err
	}
	return o, nil
}

func (q *queries) FindOrderByExternalID(ctx context.Context, externalID string) (booking.Order, error) {
	o, err := scanOrder(q.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE external_id=$1`, externalID))
	if err != nil {
		return booking.Order{}, wrap("order with external id "+externalID, err)
	}
	if err := q.loadLines(ctx, &o); err != nil {
		return booking.Order{}, err
	}
	return o, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (q *queries) InsertOrder(ctx context.Context, o booking.Order) error {
	_, err := q.tx.Exec(ctx, `
		INSERT INTO orders(id, external_id, vendor_id, customer_id, status, start_date, end_date,
			subtotal, discount, total_amount, late_fee, coupon_code, actual_return_date, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		o.ID, nullIfEmpty(o.ExternalID), o.VendorID, o.CustomerID, string(o.Status), o.StartDate, o.EndDate,
		o.Subtotal, o.Discount, o.TotalAmount, o.LateFee, nullIfEmpty(o.CouponCode), o.ActualReturnDate, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return wrap("insert order", err)
	}
	for i, l := range o.Lines {
		if _, err := q.tx.Exec(ctx, `
			INSERT INTO order_lines(id, order_id, product_id, quantity, unit_price, position)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			l.ID, o.ID, l.ProductID, l.Quantity, l.UnitPrice, i); err != nil {
			return wrap("insert order line", err)
		}
	}
	return nil
}

func (q *queries) UpdateOrder(ctx context.Context, o booking.Order, from booking.Status) error {
	ct, err := q.tx.Exec(ctx, `
		UPDATE orders SET status=$2, late_fee=$3, actual_return_date=$4, updated_at=$5
		WHERE id=$1 AND status=$6`,
		o.ID, string(o.Status), o.LateFee, o.ActualReturnDate, o.UpdatedAt, string(from))
	if err != nil {
		return wrap("update order", err)
	}
	if ct.RowsAffected() != 1 {
		return &booking.Error{Kind: booking.KindInvalidState, Msg: fmt.Sprintf("order %s is no longer %s", o.ID, from)}
	}
	return nil
}

func (q *queries) InsertReservations(ctx context.Context, rs []booking.Reservation) error {
	batch := &pgx.Batch{}
	for _, r := range rs {
		batch.Queue(`
			INSERT INTO reservations(id, order_id, product_id, quantity, start_date, end_date, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			r.ID, r.OrderID, r.ProductID, r.Quantity, r.StartDate, r.EndDate, r.CreatedAt)
	}
	if err := q.tx.SendBatch(ctx, batch).Close(); err != nil {
		return wrap("insert reservations", err)
	}
	return nil
}

func (q *queries) ListReservations(ctx context.Context, orderID string) ([]booking.Reservation, error) {
	rows, err := q.tx.Query(ctx, `
		SELECT id, order_id, product_id, quantity, start_date, end_date, created_at
		FROM reservations WHERE order_id=$1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, wrap("list reservations", err)
	}
	defer rows.Close()
	var out []booking.Reservation
	for rows.Next() {
		var r booking.Reservation
		if err := rows.Scan(&r.ID, &r.OrderID, &r.ProductID, &r.Quantity, &r.StartDate, &r.EndDate, &r.CreatedAt); err != nil {
			return nil, wrap("list reservations", err)
		}
		out = append(out, r)
	}
	return out, wrap("list reservations", rows.Err())
}

func (q *queries) DeleteReservations(ctx context.Context, orderID string) (int, error) {
	ct, err := q.tx.Exec(ctx, `DELETE FROM reservations WHERE order_id=$1`, orderID)
	if err != nil {
		return 0, wrap("delete reservations", err)
	}
	return int(ct.RowsAffected()), nil
}

func (q *queries) GetCouponByCode(ctx context.Context, code string) (booking.Coupon, error) {
	var c booking.Coupon
	var dt string
	var from, to *time.Time
	err := q.tx.QueryRow(ctx, `
		SELECT id, code, discount_type, value, valid_from, valid_to, max_uses, used_count, active
		FROM coupons WHERE code=$1`, code,
	).Scan(&c.ID, &c.Code, &dt, &c.Value, &from, &to, &c.MaxUses, &c.UsedCount, &c.Active)
	if err != nil {
		return booking.Coupon{}, wrap("coupon "+code, err)
	}
	c.DiscountType = booking.DiscountType(dt)
	if from != nil {
		c.ValidFrom = *from
	}
	if to != nil {
		c.ValidTo = *to
	}
	return c, nil
}

// IncrementCouponUse refuses to go past max_uses even when two quotations race for the last use.
func (q *queries) IncrementCouponUse(ctx context.Context, id string) error {
	ct, err := q.tx.Exec(ctx, `
		UPDATE coupons SET used_count = used_count + 1
		WHERE id=$1 AND (max_uses IS NULL OR used_count < max_uses)`, id)
	if err != nil {
		return wrap("increment coupon use", err)
	}
	if ct.RowsAffected() != 1 {
		return booking.Validationf("coupon %s: %s", id, booking.CouponExhausted)
	}
	return nil
}

const invoiceColumns = `id, order_id, kind, status, currency, subtotal, tax_amount, total_amount, due_date, created_at, posted_at`

func scanInvoice(row pgx.Row) (booking.Invoice, error) {
	var inv booking.Invoice
	var kind, status string
	err := row.Scan(&inv.ID, &inv.OrderID, &kind, &status, &inv.Currency, &inv.Subtotal, &inv.TaxAmount,
		&inv.TotalAmount, &inv.DueDate, &inv.CreatedAt, &inv.PostedAt)
	inv.Kind = booking.InvoiceKind(kind)
	inv.Status = booking.InvoiceStatus(status)
	return inv, err
}

func (q *queries) loadInvoiceLines(ctx context.Context, inv *booking.Invoice) error {
	rows, err := q.tx.Query(ctx, `
		SELECT id, invoice_id, description, COALESCE(product_id, ''), quantity, unit_price, amount
		FROM invoice_lines WHERE invoice_id=$1 ORDER BY position`, inv.ID)
	if err != nil {
		return wrap("invoice lines", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l booking.InvoiceLine
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.Description, &l.ProductID, &l.Quantity, &l.UnitPrice, &l.Amount); err != nil {
			return wrap("invoice lines", err)
		}
		inv.Lines = append(inv.Lines, l)
	}
	return wrap("invoice lines", rows.Err())
}

func (q *queries) GetInvoice(ctx context.Context, id string) (booking.Invoice, error) {
	inv, err := scanInvoice(q.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1`, id))
	if err != nil {
		return booking.Invoice{}, wrap("invoice "+id, err)
	}
	if err := q.loadInvoiceLines(ctx, &inv); err != nil {
		return booking.Invoice{}, err
	}
	return inv, nil
}

func (q *queries) ListInvoices(ctx context.Context, orderID string) ([]booking.Invoice, error) {
	rows, err := q.tx.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE order_id=$1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, wrap("list invoices", err)
	}
	var out []booking.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			rows.Close()
			return nil, wrap("list invoices", err)
		}
		out = append(out, inv)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, wrap("list invoices", err)
	}
	// lines are loaded after the cursor is closed; a pgx.Tx runs one query at a time.
	for i := range out {
		if err := q.loadInvoiceLines(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (q *queries) insertInvoiceLines(ctx context.Context, inv booking.Invoice) error {
	for i, l := range inv.Lines {
		if _, err := q.tx.Exec(ctx, `
			INSERT INTO invoice_lines(id, invoice_id, description, product_id, quantity, unit_price, amount, position)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			l.ID, inv.ID, l.Description, nullIfEmpty(l.ProductID), l.Quantity, l.UnitPrice, l.Amount, i); err != nil {
			return wrap("insert invoice line", err)
		}
	}
	return nil
}

func (q *queries) InsertInvoice(ctx context.Context, inv booking.Invoice) error {
	_, err := q.tx.Exec(ctx, `
		INSERT INTO invoices(id, order_id, kind, status, currency, subtotal, tax_amount, total_amount, due_date, created_at, posted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		inv.ID, inv.OrderID, string(inv.Kind), string(inv.Status), inv.Currency, inv.Subtotal, inv.TaxAmount,
		inv.TotalAmount, inv.DueDate, inv.CreatedAt, inv.PostedAt)
	if err != nil {
		return wrap("insert invoice", err)
	}
	return q.insertInvoiceLines(ctx, inv)
}

func (q *queries) ReplaceDraftInvoice(ctx context.Context, inv booking.Invoice) error {
	ct, err := q.tx.Exec(ctx, `
		UPDATE invoices SET subtotal=$2, tax_amount=$3, total_amount=$4, due_date=$5
		WHERE id=$1 AND status='DRAFT'`,
		inv.ID, inv.Subtotal, inv.TaxAmount, inv.TotalAmount, inv.DueDate)
	if err != nil {
		return wrap("replace invoice", err)
	}
	if ct.RowsAffected() != 1 {
		return &booking.Error{Kind: booking.KindInvalidState, Msg: fmt.Sprintf("invoice %s is not a draft", inv.ID)}
	}
	if _, err := q.tx.Exec(ctx, `DELETE FROM invoice_lines WHERE invoice_id=$1`, inv.ID); err != nil {
		return wrap("replace invoice lines", err)
	}
	return q.insertInvoiceLines(ctx, inv)
}

func (q *queries) PostInvoice(ctx context.Context, id string, at time.Time) error {
	ct, err := q.tx.Exec(ctx, `UPDATE invoices SET status='POSTED', posted_at=$2 WHERE id=$1 AND status='DRAFT'`, id, at)
	if err != nil {
		return wrap("post invoice", err)
	}
	if ct.RowsAffected() != 1 {
		return &booking.Error{Kind: booking.KindInvalidState, Msg: fmt.Sprintf("invoice %s is not a draft", id)}
	}
	return nil
}
