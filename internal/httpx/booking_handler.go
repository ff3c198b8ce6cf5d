package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-rental-booking/internal/booking"
	kafkax "github.com/ariefcatur/go-rental-booking/internal/kafka"
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// OrderCache is satisfied by *redisx.OrderCache.
type OrderCache interface {
	Get(ctx context.Context, orderID string) (booking.Order, bool)
	Put(ctx context.Context, o booking.Order) error
	Forget(ctx context.Context, orderID string) error
}

// BookingHandler exposes the booking core over HTTP. Events and Cache are optional.
type BookingHandler struct {
	Service  *booking.Service
	Events   Publisher // lifecycle topic
	Invoices Publisher // invoice topic
	Cache    OrderCache
	Name     string
	Log      *zap.Logger
}

func (h *BookingHandler) Register(r chi.Router) {
	r.Post("/quotations", h.createQuotation)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/invoices", h.listInvoices)
	r.Post("/orders/{id}/send", h.send)
	r.Post("/orders/{id}/confirm", h.confirm)
	r.Post("/orders/{id}/invoice", h.invoice)
	r.Post("/orders/{id}/pickup", h.pickup)
	r.Post("/orders/{id}/return", h.returnOrder)
	r.Post("/orders/{id}/cancel", h.cancel)
	r.Post("/invoices/{id}/post", h.postInvoice)
	r.Get("/products/{id}/availability", h.availability)
	r.Get("/products/{id}/price", h.price)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(k booking.Kind) int {
	switch k {
	case booking.KindNotFound:
		return http.StatusNotFound
	case booking.KindUnauthorized:
		return http.StatusForbidden
	case booking.KindValidation:
		return http.StatusBadRequest
	case booking.KindInvalidState, booking.KindInsufficientAvailability:
		return http.StatusConflict
	case booking.KindNoPricingAvailable:
		return http.StatusUnprocessableEntity
	}
	return http.StatusServiceUnavailable
}

func (h *BookingHandler) logger() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

func (h *BookingHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := booking.KindOf(err)
	resp := ErrorResp{Error: err.Error(), Kind: kind}
	var be *booking.Error
	if errors.As(err, &be) {
		resp.Shortfalls = be.Shortfalls
	}
	code := statusFor(kind)
	if code >= 500 {
		h.logger().Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		resp.Error = "storage unavailable, retry later"
	}
	writeJSON(w, code, resp)
}

func (h *BookingHandler) principal(w http.ResponseWriter, r *http.Request) (booking.Principal, bool) {
	p, ok := principalFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResp{Error: "missing or invalid principal"})
	}
	return p, ok
}

func (h *BookingHandler) createQuotation(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req CreateQuotationReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Error: "invalid json", Kind: booking.KindValidation})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, existed, err := h.Service.CreateQuotation(ctx, p, req.toCore())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if existed {
		writeJSON(w, http.StatusOK, CreateQuotationResp{Order: o, Idempotent: true})
		return
	}
	h.orderChanged(ctx, r, o)
	writeJSON(w, http.StatusCreated, CreateQuotationResp{Order: o})
}

func (h *BookingHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if h.Cache != nil {
		if o, hit := h.Cache.Get(ctx, id); hit {
			if err := booking.CanView(p, o); err != nil {
				h.writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, o)
			return
		}
	}
	o, err := h.Service.GetOrder(ctx, p, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.cache(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

func (h *BookingHandler) listInvoices(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	invs, err := h.Service.ListInvoices(ctx, p, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if invs == nil {
		invs = []booking.Invoice{}
	}
	writeJSON(w, http.StatusOK, invs)
}

type transitionFunc func(ctx context.Context, p booking.Principal, orderID string) (booking.Order, error)

func (h *BookingHandler) simpleTransition(fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := h.principal(w, r)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		o, err := fn(ctx, p, chi.URLParam(r, "id"))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.orderChanged(ctx, r, o)
		writeJSON(w, http.StatusOK, o)
	}
}

func (h *BookingHandler) send(w http.ResponseWriter, r *http.Request) {
	h.simpleTransition(h.Service.Send)(w, r)
}

func (h *BookingHandler) confirm(w http.ResponseWriter, r *http.Request) {
	h.simpleTransition(h.Service.Confirm)(w, r)
}

func (h *BookingHandler) pickup(w http.ResponseWriter, r *http.Request) {
	h.simpleTransition(h.Service.Pickup)(w, r)
}

func (h *BookingHandler) cancel(w http.ResponseWriter, r *http.Request) {
	h.simpleTransition(h.Service.Cancel)(w, r)
}

func (h *BookingHandler) invoice(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Service.Invoice(ctx, p, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.orderChanged(ctx, r, res.Order)
	h.invoiceEvent(r, booking.EventInvoiceIssued, res.Invoice)
	writeJSON(w, http.StatusOK, res)
}

func (h *BookingHandler) returnOrder(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req ReturnReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Error: "invalid json", Kind: booking.KindValidation})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Service.Return(ctx, p, chi.URLParam(r, "id"), req.ReturnedAt)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.orderChanged(ctx, r, res.Order)
	if res.FeeInvoice != nil {
		h.invoiceEvent(r, booking.EventInvoiceIssued, *res.FeeInvoice)
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *BookingHandler) postInvoice(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	inv, err := h.Service.PostInvoice(ctx, p, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.invoiceEvent(r, booking.EventInvoicePosted, inv)
	writeJSON(w, http.StatusOK, inv)
}

func parseWindow(r *http.Request) (time.Time, time.Time, error) {
	start, err := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
	if err != nil {
		return time.Time{}, time.Time{}, booking.Validationf("start must be RFC3339")
	}
	end, err := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
	if err != nil {
		return time.Time{}, time.Time{}, booking.Validationf("end must be RFC3339")
	}
	return start, end, nil
}

func (h *BookingHandler) availability(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseWindow(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	qty := 1
	if s := r.URL.Query().Get("qty"); s != "" {
		if qty, err = strconv.Atoi(s); err != nil {
			h.writeError(w, r, booking.Validationf("qty must be an integer"))
			return
		}
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	a, err := h.Service.CheckAvailability(ctx, booking.AvailabilityRequest{
		ProductID:    chi.URLParam(r, "id"),
		Start:        start,
		End:          end,
		RequestedQty: qty,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *BookingHandler) price(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseWindow(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	id := chi.URLParam(r, "id")
	price, err := h.Service.ResolvePrice(ctx, id, start, end)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PriceResp{ProductID: id, StartDate: start, EndDate: end, Price: price.StringFixed(2)})
}

// orderChanged drops the cached view and announces the new status. Both happen after the
// core committed, so their failures never undo the transition. The next GET refills the cache.
func (h *BookingHandler) orderChanged(ctx context.Context, r *http.Request, o booking.Order) {
	h.forget(ctx, o.ID)
	if h.Events == nil {
		return
	}
	env := kafkax.NewEnvelope(booking.EventForStatus(o.Status), h.Name, o.ID,
		r.Header.Get("X-Request-Id"), booking.NewOrderStatusPayload(o))
	h.Events.Publish(booking.PartitionKey(o.ID), kafkax.MustMarshal(env), kafkax.Headers(env)...)
}

func (h *BookingHandler) invoiceEvent(r *http.Request, eventType string, inv booking.Invoice) {
	if h.Invoices == nil {
		return
	}
	env := kafkax.NewEnvelope(eventType, h.Name, inv.OrderID, r.Header.Get("X-Request-Id"), booking.NewInvoicePayload(inv))
	h.Invoices.Publish(booking.PartitionKey(inv.OrderID), kafkax.MustMarshal(env), kafkax.Headers(env)...)
}

func (h *BookingHandler) cache(ctx context.Context, o booking.Order) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Put(ctx, o); err != nil {
		h.logger().Warn("order cache put failed", zap.String("order_id", o.ID), zap.Error(err))
	}
}

func (h *BookingHandler) forget(ctx context.Context, orderID string) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Forget(ctx, orderID); err != nil {
		h.logger().Warn("order cache forget failed", zap.String("order_id", orderID), zap.Error(err))
	}
}
