package booking

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderQuoted    = "OrderQuoted"
	EventOrderSent      = "OrderSent"
	EventOrderConfirmed = "OrderConfirmed"
	EventOrderInvoiced  = "OrderInvoiced"
	EventOrderPickedUp  = "OrderPickedUp"
	EventOrderReturned  = "OrderReturned"
	EventOrderCancelled = "OrderCancelled"
	EventInvoiceIssued  = "InvoiceIssued"
	EventInvoicePosted  = "InvoicePosted"
)

// EventForStatus names the lifecycle event emitted when an order reaches s.
func EventForStatus(s Status) string {
	switch s {
	case StatusQuotation:
		return EventOrderQuoted
	case StatusSent:
		return EventOrderSent
	case StatusConfirmed:
		return EventOrderConfirmed
	case StatusInvoiced:
		return EventOrderInvoiced
	case StatusPickedUp:
		return EventOrderPickedUp
	case StatusReturned:
		return EventOrderReturned
	case StatusCancelled:
		return EventOrderCancelled
	}
	return ""
}

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type ItemQty struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type OrderStatusPayload struct {
	OrderID     string          `json:"order_id"`
	VendorID    string          `json:"vendor_id"`
	CustomerID  string          `json:"customer_id"`
	Status      Status          `json:"status"`
	StartDate   time.Time       `json:"start_date"`
	EndDate     time.Time       `json:"end_date"`
	Items       []ItemQty       `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	LateFee     decimal.Decimal `json:"late_fee"`
}

func NewOrderStatusPayload(o Order) OrderStatusPayload {
	items := make([]ItemQty, 0, len(o.Lines))
	for _, l := range o.Lines {
		items = append(items, ItemQty{ProductID: l.ProductID, Qty: l.Quantity})
	}
	return OrderStatusPayload{
		OrderID:     o.ID,
		VendorID:    o.VendorID,
		CustomerID:  o.CustomerID,
		Status:      o.Status,
		StartDate:   o.StartDate,
		EndDate:     o.EndDate,
		Items:       items,
		TotalAmount: o.TotalAmount,
		LateFee:     o.LateFee,
	}
}

type InvoicePayload struct {
	InvoiceID   string          `json:"invoice_id"`
	OrderID     string          `json:"order_id"`
	Kind        InvoiceKind     `json:"kind"`
	Status      InvoiceStatus   `json:"status"`
	Currency    string          `json:"currency"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	DueDate     time.Time       `json:"due_date"`
}

func NewInvoicePayload(inv Invoice) InvoicePayload {
	return InvoicePayload{
		InvoiceID:   inv.ID,
		OrderID:     inv.OrderID,
		Kind:        inv.Kind,
		Status:      inv.Status,
		Currency:    inv.Currency,
		TotalAmount: inv.TotalAmount,
		TaxAmount:   inv.TaxAmount,
		DueDate:     inv.DueDate,
	}
}
