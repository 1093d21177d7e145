package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/bookswap/bookswap-backend/pkg/db/models"
	"github.com/bookswap/bookswap-backend/pkg/enums"
	"github.com/bookswap/bookswap-backend/pkg/outbox"
	"github.com/bookswap/bookswap-backend/pkg/outbox/payloads"
)

// Topics names the broker destinations for each event family. Kafka and
// Pub/Sub use different naming rules, so the caller passes the right set.
type Topics struct {
	Purchases string
	Listings  string
}

// EventDescriptor links an event type to its aggregate, topic and payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the publisher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func NewEventRegistry(topics Topics) (*EventRegistry, error) {
	if topics.Purchases == "" {
		return nil, fmt.Errorf("purchase topic is required")
	}
	if topics.Listings == "" {
		return nil, fmt.Errorf("listing topic is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventPurchaseSubmitted,
			AggregateType:  enums.AggregatePurchaseNotification,
			Topic:          topics.Purchases,
			PayloadFactory: func() any { return &payloads.PurchaseSubmittedEvent{} },
		},
		{
			EventType:      enums.EventPurchaseApproved,
			AggregateType:  enums.AggregatePurchaseNotification,
			Topic:          topics.Purchases,
			PayloadFactory: func() any { return &payloads.PurchaseApprovedEvent{} },
		},
		{
			EventType:      enums.EventPurchaseRejected,
			AggregateType:  enums.AggregatePurchaseNotification,
			Topic:          topics.Purchases,
			PayloadFactory: func() any { return &payloads.PurchaseRejectedEvent{} },
		},
		{
			EventType:      enums.EventListingStockUpdated,
			AggregateType:  enums.AggregateListing,
			Topic:          topics.Listings,
			PayloadFactory: func() any { return &payloads.ListingStockUpdatedEvent{} },
		},
		{
			EventType:      enums.EventListingOutOfStock,
			AggregateType:  enums.AggregateListing,
			Topic:          topics.Listings,
			PayloadFactory: func() any { return &payloads.ListingOutOfStockEvent{} },
		},
	} {
		reg.entries[desc.EventType] = desc
	}
	return reg, nil
}

// Resolve validates the row and decodes its typed payload. Every failure is
// non-retryable because the row content never changes between attempts.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}
	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
