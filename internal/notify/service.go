// Package notify consumes booking events and hands them to the notification sink.
// Delivery itself (email, SMS) lives outside this repository.
package notify

import (
	"context"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-rental-booking/internal/booking"
	kafkax "github.com/ariefcatur/go-rental-booking/internal/kafka"
)

// Notification is what the sink receives for one event.
type Notification struct {
	EventID    string
	EventType  string
	OrderID    string
	Recipients []string
	Subject    string
}

type Sink interface {
	Deliver(ctx context.Context, n Notification) error
}

// Deduper is satisfied by *redisx.Dedup.
type Deduper interface {
	FirstSeen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

type Service struct {
	Dedup Deduper
	Sink  Sink
	Log   *zap.Logger
}

// HandleLifecycle is installed as the consumer handler of the order lifecycle topic.
func (s *Service) HandleLifecycle(ctx context.Context, m kafkago.Message) error {
	var env booking.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		s.Log.Warn("dropping undecodable event", zap.Error(err))
		return nil
	}
	if fresh, err := s.firstSeen(ctx, env); err != nil || !fresh {
		return err
	}
	p, err := kafkax.UnwrapPayload[booking.OrderStatusPayload](env.Payload)
	if err != nil {
		s.Log.Warn("dropping event with bad payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}
	n := Notification{
		EventID:    env.EventID,
		EventType:  env.EventType,
		OrderID:    p.OrderID,
		Recipients: []string{p.CustomerID, p.VendorID},
		Subject:    fmt.Sprintf("Order %s is now %s", p.OrderID, p.Status),
	}
	if p.Status == booking.StatusReturned && p.LateFee.IsPositive() {
		n.Subject = fmt.Sprintf("Order %s returned late, fee %s", p.OrderID, p.LateFee.StringFixed(2))
	}
	return s.deliver(ctx, n)
}

// HandleInvoice is installed as the consumer handler of the invoice topic.
func (s *Service) HandleInvoice(ctx context.Context, m kafkago.Message) error {
	var env booking.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		s.Log.Warn("dropping undecodable event", zap.Error(err))
		return nil
	}
	if fresh, err := s.firstSeen(ctx, env); err != nil || !fresh {
		return err
	}
	p, err := kafkax.UnwrapPayload[booking.InvoicePayload](env.Payload)
	if err != nil {
		s.Log.Warn("dropping event with bad payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}
	verb := "issued"
	if env.EventType == booking.EventInvoicePosted {
		verb = "posted"
	}
	return s.deliver(ctx, Notification{
		EventID:   env.EventID,
		EventType: env.EventType,
		OrderID:   p.OrderID,
		Subject: fmt.Sprintf("%s invoice %s %s: %s %s due %s",
			p.Kind, p.InvoiceID, verb, p.TotalAmount.StringFixed(2), p.Currency, p.DueDate.Format("2006-01-02")),
	})
}

func (s *Service) firstSeen(ctx context.Context, env booking.Envelope) (bool, error) {
	if s.Dedup == nil || env.EventID == "" {
		return true, nil
	}
	fresh, err := s.Dedup.FirstSeen(ctx, env.EventID)
	if err != nil {
		return false, fmt.Errorf("dedup %s: %w", env.EventID, err)
	}
	if !fresh {
		s.Log.Debug("duplicate event", zap.String("event_id", env.EventID))
	}
	return fresh, nil
}

// deliver hands n to the sink and clears the dedup mark when that fails,
// so the redelivered message is not mistaken for a duplicate.
func (s *Service) deliver(ctx context.Context, n Notification) error {
	err := s.Sink.Deliver(ctx, n)
	if err == nil || s.Dedup == nil || n.EventID == "" {
		return err
	}
	if ferr := s.Dedup.Forget(context.WithoutCancel(ctx), n.EventID); ferr != nil {
		s.Log.Error("clear dedup mark", zap.String("event_id", n.EventID), zap.Error(ferr))
	}
	return err
}

// LogSink records the notification intent; the delivery service picks it up from the logs.
type LogSink struct{ Log *zap.Logger }

func (l LogSink) Deliver(_ context.Context, n Notification) error {
	l.Log.Info("notification",
		zap.String("event_id", n.EventID),
		zap.String("event_type", n.EventType),
		zap.String("order_id", n.OrderID),
		zap.Strings("recipients", n.Recipients),
		zap.String("subject", n.Subject))
	return nil
}
