package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/threshingfloor/roastery-backend/pkg/config"
	"github.com/threshingfloor/roastery-backend/pkg/db/models"
	"github.com/threshingfloor/roastery-backend/pkg/enums"
	"github.com/threshingfloor/roastery-backend/pkg/outbox"
	"github.com/threshingfloor/roastery-backend/pkg/outbox/payloads"
	"github.com/threshingfloor/roastery-backend/pkg/types"
)

func TestEventRegistryResolvePlaced(t *testing.T) {
	reg := newTestEventRegistry(t)

	orderID := uuid.New()
	event := models.OutboxEvent{
		EventType:     enums.EventOrderPlaced,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload: mustEnvelope(t, mustMarshal(t, payloads.OrderPlacedEvent{
			OrderID:        orderID,
			PaymentMethod:  enums.PaymentMethodVenmo,
			DeliveryMethod: enums.DeliveryMethodPickup,
			Total:          decimal.RequireFromString("36.00"),
			Lines:          []payloads.OrderLine{{ProductID: uuid.New(), Name: "Ethiopia Guji", Quantity: 2}},
		})),
	}

	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Descriptor.Topic != "orders-topic" {
		t.Fatalf("unexpected topic %q", resolved.Descriptor.Topic)
	}
	payload, ok := resolved.Payload.(*payloads.OrderPlacedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if payload.OrderID != orderID || len(payload.Lines) != 1 || !payload.Total.Equal(decimal.NewFromInt(36)) {
		t.Fatalf("payload mismatch %+v", payload)
	}
	if resolved.Envelope.EventID == "" || resolved.Envelope.OccurredAt.IsZero() {
		t.Fatalf("envelope metadata missing: %+v", resolved.Envelope)
	}
}

func TestEventRegistryResolveStatusChange(t *testing.T) {
	reg := newTestEventRegistry(t)
	for _, eventType := range []enums.OutboxEventType{enums.EventOrderConfirmed, enums.EventOrderCancelled, enums.EventOrderFulfilled} {
		orderID := uuid.New()
		event := models.OutboxEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Payload: mustEnvelope(t, mustMarshal(t, payloads.OrderStatusChangedEvent{
				OrderID: orderID,
				From:    enums.OrderStatusPending,
				To:      enums.OrderStatusConfirmed,
			})),
		}
		resolved, err := reg.Resolve(event)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", eventType, err)
		}
		if _, ok := resolved.Payload.(*payloads.OrderStatusChangedEvent); !ok {
			t.Fatalf("%s: unexpected payload type %T", eventType, resolved.Payload)
		}
	}
}

func TestEventRegistryRejects(t *testing.T) {
	reg := newTestEventRegistry(t)
	cases := map[string]struct {
		event  models.OutboxEvent
		reason enums.OutboxDLQErrorReason
	}{
		"unknown event": {
			event: models.OutboxEvent{
				EventType:     enums.OutboxEventType("order.shipped"),
				AggregateType: enums.AggregateOrder,
				AggregateID:   uuid.New(),
				Payload:       mustEnvelope(t, []byte(`{}`)),
			},
			reason: enums.OutboxDLQReasonUnknownEvent,
		},
		"aggregate mismatch": {
			event: models.OutboxEvent{
				EventType:     enums.EventOrderPlaced,
				AggregateType: enums.OutboxAggregateType("cart"),
				AggregateID:   uuid.New(),
				Payload:       mustEnvelope(t, []byte(`{}`)),
			},
			reason: enums.OutboxDLQReasonNonRetryable,
		},
		"missing aggregate id": {
			event: models.OutboxEvent{
				EventType:     enums.EventOrderPlaced,
				AggregateType: enums.AggregateOrder,
				Payload:       mustEnvelope(t, []byte(`{}`)),
			},
			reason: enums.OutboxDLQReasonNonRetryable,
		},
		"null payload": {
			event: models.OutboxEvent{
				EventType:     enums.EventOrderCancelled,
				AggregateType: enums.AggregateOrder,
				AggregateID:   uuid.New(),
				Payload:       mustEnvelope(t, []byte("null")),
			},
			reason: enums.OutboxDLQReasonNonRetryable,
		},
		"payload for another order": {
			event: models.OutboxEvent{
				EventType:     enums.EventOrderConfirmed,
				AggregateType: enums.AggregateOrder,
				AggregateID:   uuid.New(),
				Payload:       mustEnvelope(t, mustMarshal(t, payloads.OrderStatusChangedEvent{OrderID: uuid.New()})),
			},
			reason: enums.OutboxDLQReasonNonRetryable,
		},
		"payload without order id": {
			event: models.OutboxEvent{
				EventType:     enums.EventOrderConfirmed,
				AggregateType: enums.AggregateOrder,
				AggregateID:   uuid.New(),
				Payload:       mustEnvelope(t, []byte(`{"from":"pending","to":"confirmed"}`)),
			},
			reason: enums.OutboxDLQReasonNonRetryable,
		},
		"future schema version": {
			event: models.OutboxEvent{
				EventType:     enums.EventOrderCancelled,
				AggregateType: enums.AggregateOrder,
				AggregateID:   uuid.New(),
				Payload:       types.JSON(`{"version":99,"data":{}}`),
			},
			reason: enums.OutboxDLQReasonNonRetryable,
		},
		"missing schema version": {
			event: models.OutboxEvent{
				EventType:     enums.EventOrderCancelled,
				AggregateType: enums.AggregateOrder,
				AggregateID:   uuid.New(),
				Payload:       types.JSON(`{"data":{}}`),
			},
			reason: enums.OutboxDLQReasonNonRetryable,
		},
		"broken envelope": {
			event: models.OutboxEvent{
				EventType:     enums.EventOrderCancelled,
				AggregateType: enums.AggregateOrder,
				AggregateID:   uuid.New(),
				Payload:       types.JSON(`{"data":`),
			},
			reason: enums.OutboxDLQReasonNonRetryable,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(tc.event)
			var nonRetry NonRetryableError
			if !errors.As(err, &nonRetry) {
				t.Fatalf("expected non-retryable error, got %v", err)
			}
			if nonRetry.Reason != tc.reason {
				t.Fatalf("expected reason %s got %s", tc.reason, nonRetry.Reason)
			}
		})
	}
}

func TestNewEventRegistryRequiresTopic(t *testing.T) {
	if _, err := NewEventRegistry(config.PubSubConfig{}); err == nil {
		t.Fatal("expected error for missing orders topic")
	}
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders-topic"})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func mustEnvelope(t *testing.T, payload []byte) types.JSON {
	t.Helper()
	data, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return data
}
