package kafka

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-rental-booking/internal/booking"
)

func TestEnvelopeCarriesPayload(t *testing.T) {
	o := booking.Order{
		ID: "o1", VendorID: "v1", CustomerID: "c1", Status: booking.StatusConfirmed,
		Lines:       []booking.OrderLine{{ProductID: "cam", Quantity: 2}},
		TotalAmount: decimal.NewFromInt(1000),
	}
	env := NewEnvelope(booking.EventOrderConfirmed, "rental-booking", o.ID, "req-1", booking.NewOrderStatusPayload(o))
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, 1, env.EventVersion)
	assert.Equal(t, "o1", env.CorrelationID)

	var got booking.Envelope
	require.NoError(t, UnmarshalEnvelope(MustMarshal(env), &got))
	assert.Equal(t, env.EventID, got.EventID)
	assert.Equal(t, booking.EventOrderConfirmed, got.EventType)

	p, err := UnwrapPayload[booking.OrderStatusPayload](got.Payload)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, p.Status)
	assert.Equal(t, []booking.ItemQty{{ProductID: "cam", Qty: 2}}, p.Items)
	assert.True(t, decimal.NewFromInt(1000).Equal(p.TotalAmount))

	_, err = UnwrapPayload[booking.OrderStatusPayload]([]byte(`[1,2]`))
	assert.Error(t, err)
}

func TestHeaders(t *testing.T) {
	h := Headers(booking.Envelope{EventType: booking.EventInvoicePosted, EventVersion: 1})
	require.Len(t, h, 2)
	assert.Equal(t, "x-event-type", h[0].Key)
	assert.Equal(t, booking.EventInvoicePosted, string(h[0].Value))
	assert.Equal(t, "1", string(h[1].Value))
}
