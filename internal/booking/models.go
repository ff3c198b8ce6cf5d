package booking

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID         string    `json:"id"`
	VendorID   string    `json:"vendor_id"`
	Name       string    `json:"name"`
	TotalStock int       `json:"total_stock"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type PeriodUnit string

const (
	UnitHour PeriodUnit = "HOUR"
	UnitDay  PeriodUnit = "DAY"
	UnitWeek PeriodUnit = "WEEK"
)

type RentalPeriodTier struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Unit      PeriodUnit      `json:"unit"`
	Price     decimal.Decimal `json:"price"`
}

// Reservation locks Quantity units of a product over [StartDate, EndDate) for one order.
type Reservation struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	CreatedAt time.Time `json:"created_at"`
}

type Order struct {
	ID               string          `json:"id"`
	ExternalID       string          `json:"external_id,omitempty"`
	VendorID         string          `json:"vendor_id"`
	CustomerID       string          `json:"customer_id"`
	Status           Status          `json:"status"`
	StartDate        time.Time       `json:"start_date"`
	EndDate          time.Time       `json:"end_date"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	Discount         decimal.Decimal `json:"discount"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	LateFee          decimal.Decimal `json:"late_fee"`
	CouponCode       string          `json:"coupon_code,omitempty"`
	ActualReturnDate *time.Time      `json:"actual_return_date,omitempty"`
	Lines            []OrderLine     `json:"lines"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Window is the requested rental interval of the order.
func (o Order) Window() Interval { return Interval{Start: o.StartDate, End: o.EndDate} }

type OrderLine struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (l OrderLine) Amount() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type DiscountType string

const (
	DiscountPercentage DiscountType = "PERCENTAGE"
	DiscountFixed      DiscountType = "FIXED"
)

type Coupon struct {
	ID           string          `json:"id"`
	Code         string          `json:"code"`
	DiscountType DiscountType    `json:"discount_type"`
	Value        decimal.Decimal `json:"value"`
	ValidFrom    time.Time       `json:"valid_from"`
	ValidTo      time.Time       `json:"valid_to"`
	MaxUses      *int            `json:"max_uses,omitempty"`
	UsedCount    int             `json:"used_count"`
	Active       bool            `json:"active"`
}

type InvoiceStatus string

const (
	InvoiceDraft  InvoiceStatus = "DRAFT"
	InvoicePosted InvoiceStatus = "POSTED"
)

// InvoiceKind tells a primary invoice apart from a late-fee adjustment. Both reference the same order.
type InvoiceKind string

const (
	InvoicePrimary    InvoiceKind = "PRIMARY"
	InvoiceAdjustment InvoiceKind = "ADJUSTMENT"
)

type Invoice struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"order_id"`
	Kind        InvoiceKind     `json:"kind"`
	Status      InvoiceStatus   `json:"status"`
	Currency    string          `json:"currency"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	DueDate     time.Time       `json:"due_date"`
	Lines       []InvoiceLine   `json:"lines"`
	CreatedAt   time.Time       `json:"created_at"`
	PostedAt    *time.Time      `json:"posted_at,omitempty"`
}

type InvoiceLine struct {
	ID          string          `json:"id"`
	InvoiceID   string          `json:"invoice_id"`
	Description string          `json:"description"`
	ProductID   string          `json:"product_id,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
}

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleVendor   Role = "VENDOR"
	RoleCustomer Role = "CUSTOMER"
)

// Principal is the opaque caller identity, authenticated upstream and used only for ownership checks.
type Principal struct {
	ID   string
	Role Role
}

// Settings are the read-only business settings the core consumes.
type Settings struct {
	GSTPercent       decimal.Decimal `json:"gst_percent"`
	LateFeeRate      decimal.Decimal `json:"late_fee_rate"`
	GracePeriodHours decimal.Decimal `json:"grace_period_hours"`
	Currency         string          `json:"currency"`
	PaymentTermDays  int             `json:"payment_term_days"`
}
