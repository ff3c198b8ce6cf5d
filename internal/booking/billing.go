package booking

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LateFee charges orderAmount × rate for every day (fractional) past plannedEnd beyond the grace period.
func LateFee(orderAmount decimal.Decimal, plannedEnd, actualReturn time.Time, rate, graceHours decimal.Decimal) decimal.Decimal {
	late := actualReturn.Sub(plannedEnd)
	if late <= 0 {
		return decimal.Zero
	}
	daysLate := durationDays(late)
	graceDays := graceHours.Div(hoursPerDay)
	if daysLate.LessThanOrEqual(graceDays) {
		return decimal.Zero
	}
	fee := orderAmount.Mul(rate).Mul(daysLate.Sub(graceDays))
	if fee.IsNegative() {
		return decimal.Zero
	}
	return fee.Round(2)
}

// TaxBreakdown splits a tax-inclusive total into subtotal and tax.
func TaxBreakdown(total, gstPercent decimal.Decimal) (subtotal, tax decimal.Decimal) {
	divisor := decimal.NewFromInt(1).Add(gstPercent.Div(hundred))
	subtotal = total.Div(divisor).Round(2)
	return subtotal, total.Sub(subtotal)
}

func dueDate(now time.Time, st Settings) time.Time {
	return now.AddDate(0, 0, st.PaymentTermDays)
}

// newPrimaryInvoice mirrors the order lines at invoicing time. A coupon shows up as a negative line.
func newPrimaryInvoice(o Order, st Settings, now time.Time) Invoice {
	inv := Invoice{
		ID:        uuid.NewString(),
		OrderID:   o.ID,
		Kind:      InvoicePrimary,
		Status:    InvoiceDraft,
		Currency:  st.Currency,
		DueDate:   dueDate(now, st),
		CreatedAt: now,
	}
	for _, l := range o.Lines {
		inv.Lines = append(inv.Lines, InvoiceLine{
			ID:          uuid.NewString(),
			InvoiceID:   inv.ID,
			Description: "Rental of product " + l.ProductID,
			ProductID:   l.ProductID,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Amount:      l.Amount(),
		})
	}
	if o.Discount.IsPositive() {
		desc := "Discount"
		if o.CouponCode != "" {
			desc = "Coupon " + o.CouponCode
		}
		inv.Lines = append(inv.Lines, InvoiceLine{
			ID:          uuid.NewString(),
			InvoiceID:   inv.ID,
			Description: desc,
			Quantity:    1,
			UnitPrice:   o.Discount.Neg(),
			Amount:      o.Discount.Neg(),
		})
	}
	retotal(&inv, st)
	return inv
}

func lateFeeLine(invoiceID string, fee decimal.Decimal) InvoiceLine {
	return InvoiceLine{
		ID:          uuid.NewString(),
		InvoiceID:   invoiceID,
		Description: "Late return fee",
		Quantity:    1,
		UnitPrice:   fee,
		Amount:      fee,
	}
}

// newAdjustmentInvoice carries only a late fee for an order whose primary invoice is already posted.
func newAdjustmentInvoice(o Order, fee decimal.Decimal, st Settings, now time.Time) Invoice {
	inv := Invoice{
		ID:        uuid.NewString(),
		OrderID:   o.ID,
		Kind:      InvoiceAdjustment,
		Status:    InvoiceDraft,
		Currency:  st.Currency,
		DueDate:   dueDate(now, st),
		CreatedAt: now,
	}
	inv.Lines = []InvoiceLine{lateFeeLine(inv.ID, fee)}
	retotal(&inv, st)
	return inv
}

// retotal recomputes totals from lines. Line amounts are tax inclusive.
func retotal(inv *Invoice, st Settings) {
	total := decimal.Zero
	for _, l := range inv.Lines {
		total = total.Add(l.Amount)
	}
	inv.TotalAmount = total.Round(2)
	inv.Subtotal, inv.TaxAmount = TaxBreakdown(inv.TotalAmount, st.GSTPercent)
}
