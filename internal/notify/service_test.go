package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-rental-booking/internal/booking"
	kafkax "github.com/ariefcatur/go-rental-booking/internal/kafka"
)

type memDedup struct {
	seen map[string]bool
	err  error
}

func (d *memDedup) FirstSeen(_ context.Context, id string) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	if d.seen[id] {
		return false, nil
	}
	d.seen[id] = true
	return true, nil
}

func (d *memDedup) Forget(_ context.Context, id string) error {
	delete(d.seen, id)
	return nil
}

type recordingSink struct {
	got  []Notification
	fail int
}

func (s *recordingSink) Deliver(_ context.Context, n Notification) error {
	if s.fail > 0 {
		s.fail--
		return errors.New("smtp unavailable")
	}
	s.got = append(s.got, n)
	return nil
}

func newService() (*Service, *recordingSink, *memDedup) {
	sink := &recordingSink{}
	dd := &memDedup{seen: map[string]bool{}}
	return &Service{Dedup: dd, Sink: sink, Log: zap.NewNop()}, sink, dd
}

func message(env booking.Envelope) kafkago.Message {
	return kafkago.Message{Key: booking.PartitionKey(env.CorrelationID), Value: kafkax.MustMarshal(env)}
}

func TestHandleLifecycle(t *testing.T) {
	svc, sink, _ := newService()
	o := booking.Order{ID: "o1", VendorID: "v1", CustomerID: "c1", Status: booking.StatusReturned, LateFee: decimal.RequireFromString("108.33")}
	env := kafkax.NewEnvelope(booking.EventOrderReturned, "test", o.ID, "", booking.NewOrderStatusPayload(o))

	require.NoError(t, svc.HandleLifecycle(context.Background(), message(env)))
	require.NoError(t, svc.HandleLifecycle(context.Background(), message(env)))

	require.Len(t, sink.got, 1, "redelivered event is skipped")
	n := sink.got[0]
	assert.Equal(t, "o1", n.OrderID)
	assert.Equal(t, []string{"c1", "v1"}, n.Recipients)
	assert.Contains(t, n.Subject, "108.33")
}

func TestHandleInvoice(t *testing.T) {
	svc, sink, _ := newService()
	inv := booking.Invoice{
		ID: "i1", OrderID: "o1", Kind: booking.InvoicePrimary, Status: booking.InvoicePosted, Currency: "INR",
		TotalAmount: decimal.NewFromInt(1000), DueDate: time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC),
	}
	env := kafkax.NewEnvelope(booking.EventInvoicePosted, "test", inv.OrderID, "", booking.NewInvoicePayload(inv))

	require.NoError(t, svc.HandleInvoice(context.Background(), message(env)))
	require.Len(t, sink.got, 1)
	assert.Equal(t, "PRIMARY invoice i1 posted: 1000.00 INR due 2026-01-08", sink.got[0].Subject)
}

func TestUndecodableMessagesAreDropped(t *testing.T) {
	svc, sink, _ := newService()
	assert.NoError(t, svc.HandleLifecycle(context.Background(), kafkago.Message{Value: []byte("not json")}))
	assert.NoError(t, svc.HandleInvoice(context.Background(), kafkago.Message{Value: []byte("{")}))
	assert.Empty(t, sink.got)
}

func TestDedupFailureIsRetried(t *testing.T) {
	svc, sink, dd := newService()
	dd.err = errors.New("redis down")
	env := kafkax.NewEnvelope(booking.EventOrderSent, "test", "o1", "", booking.NewOrderStatusPayload(booking.Order{ID: "o1"}))

	err := svc.HandleLifecycle(context.Background(), message(env))
	assert.Error(t, err, "offset must not be committed")
	assert.Empty(t, sink.got)
}

func TestFailedDeliveryIsNotMarkedSeen(t *testing.T) {
	svc, sink, dd := newService()
	sink.fail = 1
	env := kafkax.NewEnvelope(booking.EventOrderConfirmed, "test", "o1", "", booking.NewOrderStatusPayload(booking.Order{ID: "o1", Status: booking.StatusConfirmed}))

	assert.Error(t, svc.HandleLifecycle(context.Background(), message(env)))
	assert.False(t, dd.seen[env.EventID])

	require.NoError(t, svc.HandleLifecycle(context.Background(), message(env)))
	require.Len(t, sink.got, 1, "redelivery after a failed send is delivered")
	assert.True(t, dd.seen[env.EventID])
}
