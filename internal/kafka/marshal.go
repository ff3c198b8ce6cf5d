package kafka

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-rental-booking/internal/booking"
)

func MustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func UnmarshalEnvelope(b []byte, out *booking.Envelope) error {
	return json.Unmarshal(b, out)
}

// UnwrapPayload decodes the payload of an envelope into T.
func UnwrapPayload[T any](payload json.RawMessage) (T, error) {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}

// NewEnvelope wraps payload as version 1 of eventType, correlated by order id.
func NewEnvelope(eventType, producer, orderID, traceID string, payload any) booking.Envelope {
	return booking.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: orderID,
		Payload:       MustMarshal(payload),
	}
}

func Headers(env booking.Envelope) []kafka.Header {
	return []kafka.Header{
		{Key: "x-event-type", Value: []byte(env.EventType)},
		{Key: "x-event-version", Value: []byte(strconv.Itoa(env.EventVersion))},
	}
}
