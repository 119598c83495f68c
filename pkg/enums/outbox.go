package enums

import "fmt"

// OutboxAggregateType names the entity an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder OutboxAggregateType = "order"
)

// IsValid reports whether the value is a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	return a == AggregateOrder
}

// OutboxEventType names an order lifecycle event.
type OutboxEventType string

const (
	EventOrderPlaced    OutboxEventType = "order.placed"
	EventOrderConfirmed OutboxEventType = "order.confirmed"
	EventOrderCancelled OutboxEventType = "order.cancelled"
	EventOrderFulfilled OutboxEventType = "order.fulfilled"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderPlaced,
	EventOrderConfirmed,
	EventOrderCancelled,
	EventOrderFulfilled,
}

// IsValid reports whether the value is a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// EventForStatus maps the status an order moved into to the event it emits.
func EventForStatus(status OrderStatus) (OutboxEventType, bool) {
	switch status {
	case OrderStatusPending:
		return EventOrderPlaced, true
	case OrderStatusConfirmed:
		return EventOrderConfirmed, true
	case OrderStatusCancelled:
		return EventOrderCancelled, true
	case OrderStatusFulfilled:
		return EventOrderFulfilled, true
	}
	return "", false
}
