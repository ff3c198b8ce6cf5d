package booking

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type AvailabilityStatus string

const (
	AvailabilityNone    AvailabilityStatus = "NONE"
	AvailabilityPartial AvailabilityStatus = "PARTIAL"
	AvailabilityFull    AvailabilityStatus = "FULL"
)

type AvailabilityRequest struct {
	ProductID    string
	Start        time.Time
	End          time.Time
	RequestedQty int
}

func (r AvailabilityRequest) Validate() error {
	if r.ProductID == "" {
		return Validationf("product_id is required")
	}
	if r.RequestedQty < 0 {
		return Validationf("requested quantity %d must not be negative", r.RequestedQty)
	}
	return Interval{Start: r.Start, End: r.End}.Validate()
}

type Availability struct {
	ProductID    string             `json:"product_id"`
	Status       AvailabilityStatus `json:"status"`
	AvailableQty int                `json:"available_qty"`
	TotalStock   int                `json:"total_stock"`
	BookedQty    int                `json:"booked_qty"`
	RequestedQty int                `json:"requested_qty"`
}

// Classify derives availability from capacity and the booked quantity of a window.
func Classify(totalStock, booked, requested int) (AvailabilityStatus, int) {
	available := totalStock - booked
	if available < 0 {
		available = 0
	}
	switch {
	case available == 0:
		return AvailabilityNone, 0
	case available < requested:
		return AvailabilityPartial, available
	default:
		return AvailabilityFull, available
	}
}

// availabilityOf computes availability with reservations as the source of truth.
func availabilityOf(ctx context.Context, q Queries, productID string, window Interval, requested int) (Availability, error) {
	p, err := q.GetProduct(ctx, productID)
	if err != nil {
		return Availability{}, err
	}
	booked, err := q.BookedQuantity(ctx, productID, window, CountingStatuses)
	if err != nil {
		return Availability{}, err
	}
	status, available := Classify(p.TotalStock, booked, requested)
	return Availability{
		ProductID:    productID,
		Status:       status,
		AvailableQty: available,
		TotalStock:   p.TotalStock,
		BookedQty:    booked,
		RequestedQty: requested,
	}, nil
}

// CheckAvailability reports how much of a product is free over a window. It has no side effects.
// Storage failures are retried a bounded number of times since the read is idempotent.
func (s *Service) CheckAvailability(ctx context.Context, req AvailabilityRequest) (Availability, error) {
	if err := req.Validate(); err != nil {
		return Availability{}, err
	}
	window := Interval{Start: req.Start, End: req.End}

	var out Availability
	err := s.retryRead(ctx, "check availability", func() error {
		return s.store.View(ctx, func(q Queries) error {
			a, err := availabilityOf(ctx, q, req.ProductID, window, req.RequestedQty)
			out = a
			return err
		})
	})
	return out, err
}

func (s *Service) retryRead(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 0; attempt <= s.readRetries; attempt++ {
		if attempt > 0 {
			s.log.Warn("retrying read", zap.String("op", op), zap.Int("attempt", attempt), zap.Error(err))
			select {
			case <-ctx.Done():
				return StorageError(op, ctx.Err())
			case <-time.After(time.Duration(attempt) * s.retryBackoff):
			}
		}
		err = fn()
		if err == nil || !IsRetryable(err) || ctx.Err() != nil {
			return err
		}
	}
	return err
}
