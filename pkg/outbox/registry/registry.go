package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/threshingfloor/roastery-backend/pkg/config"
	"github.com/threshingfloor/roastery-backend/pkg/db/models"
	"github.com/threshingfloor/roastery-backend/pkg/enums"
	"github.com/threshingfloor/roastery-backend/pkg/outbox"
	"github.com/threshingfloor/roastery-backend/pkg/outbox/payloads"
)

// EventDescriptor says where an event type is published and how its
// envelope data decodes.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	decode        func(json.RawMessage) (orderPayload, error)
}

// orderPayload is implemented by every order event body.
type orderPayload interface {
	OrderRef() uuid.UUID
}

type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// EventRegistry knows every event type the publisher may send.
type EventRegistry struct {
	byType map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError marks a row that will never publish; it goes to the DLQ.
type NonRetryableError struct {
	Reason enums.OutboxDLQErrorReason
	Err    error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Reason: enums.OutboxDLQReasonNonRetryable, Err: err}
}

func rejectf(format string, args ...any) error {
	return NewNonRetryableError(fmt.Errorf(format, args...))
}

// decoderFor returns a decoder producing *T.
func decoderFor[T any, P interface {
	*T
	orderPayload
}]() func(json.RawMessage) (orderPayload, error) {
	return func(raw json.RawMessage) (orderPayload, error) {
		p := P(new(T))
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, err
		}
		return p, nil
	}
}

// NewEventRegistry registers the order lifecycle events on the orders topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.OrdersTopic == "" {
		return nil, errors.New("orders topic is required")
	}
	reg := &EventRegistry{byType: map[enums.OutboxEventType]EventDescriptor{}}

	placed := decoderFor[payloads.OrderPlacedEvent]()
	changed := decoderFor[payloads.OrderStatusChangedEvent]()
	for eventType, decode := range map[enums.OutboxEventType]func(json.RawMessage) (orderPayload, error){
		enums.EventOrderPlaced:    placed,
		enums.EventOrderConfirmed: changed,
		enums.EventOrderCancelled: changed,
		enums.EventOrderFulfilled: changed,
	} {
		reg.byType[eventType] = EventDescriptor{
			EventType:     eventType,
			AggregateType: enums.AggregateOrder,
			Topic:         cfg.OrdersTopic,
			decode:        decode,
		}
	}
	return reg, nil
}

// Resolve checks a row against its descriptor and decodes the body. Every
// failure is non-retryable: the row is wrong, not the transport.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.byType[event.EventType]
	if !ok {
		return nil, NonRetryableError{
			Reason: enums.OutboxDLQReasonUnknownEvent,
			Err:    fmt.Errorf("unsupported event type %s", event.EventType),
		}
	}
	switch {
	case event.AggregateType != desc.AggregateType:
		return nil, rejectf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, rejectf("missing aggregate_id")
	}

	var env outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &env); err != nil {
		return nil, rejectf("decode envelope: %w", err)
	}
	if env.Version < 1 || env.Version > outbox.SchemaVersion {
		return nil, rejectf("unsupported schema version %d", env.Version)
	}
	if body := bytes.TrimSpace(env.Data); len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, rejectf("payload missing for %s", event.EventType)
	}

	payload, err := desc.decode(env.Data)
	if err != nil {
		return nil, rejectf("decode %s payload: %w", event.EventType, err)
	}
	if ref := payload.OrderRef(); ref != event.AggregateID {
		return nil, rejectf("payload order %s does not match aggregate %s", ref, event.AggregateID)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: env, Payload: payload}, nil
}
