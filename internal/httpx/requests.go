package httpx

import (
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-rental-booking/internal/booking"
)

// Principal headers are set by the authenticating gateway in front of this API.
const (
	HeaderPrincipalID   = "X-Principal-Id"
	HeaderPrincipalRole = "X-Principal-Role"
)

func principalFrom(r *http.Request) (booking.Principal, bool) {
	id := strings.TrimSpace(r.Header.Get(HeaderPrincipalID))
	role := booking.Role(strings.ToUpper(strings.TrimSpace(r.Header.Get(HeaderPrincipalRole))))
	switch role {
	case booking.RoleAdmin, booking.RoleVendor, booking.RoleCustomer:
	default:
		return booking.Principal{}, false
	}
	if id == "" {
		return booking.Principal{}, false
	}
	return booking.Principal{ID: id, Role: role}, true
}

type LineReq struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type CreateQuotationReq struct {
	ExternalID string    `json:"external_id"`
	CustomerID string    `json:"customer_id"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
	Lines      []LineReq `json:"lines"`
	CouponCode string    `json:"coupon_code"`
}

func (r CreateQuotationReq) toCore() booking.CreateQuotationRequest {
	lines := make([]booking.LineRequest, 0, len(r.Lines))
	for _, l := range r.Lines {
		lines = append(lines, booking.LineRequest{ProductID: strings.TrimSpace(l.ProductID), Quantity: l.Quantity})
	}
	return booking.CreateQuotationRequest{
		ExternalID: strings.TrimSpace(r.ExternalID),
		CustomerID: strings.TrimSpace(r.CustomerID),
		Start:      r.StartDate,
		End:        r.EndDate,
		Lines:      lines,
		CouponCode: strings.TrimSpace(r.CouponCode),
	}
}

type CreateQuotationResp struct {
	Order      booking.Order `json:"order"`
	Idempotent bool          `json:"idempotent"`
}

type ReturnReq struct {
	ReturnedAt *time.Time `json:"returned_at,omitempty"`
}

type PriceResp struct {
	ProductID string    `json:"product_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Price     string    `json:"price"`
}

type ErrorResp struct {
	Error      string              `json:"error"`
	Kind       booking.Kind        `json:"kind,omitempty"`
	Shortfalls []booking.Shortfall `json:"shortfalls,omitempty"`
}
