package enums

import "fmt"

// OutboxAggregateType names the entity an outbox event describes.
type OutboxAggregateType string

const (
	AggregatePurchaseNotification OutboxAggregateType = "purchase_notification"
	AggregateListing              OutboxAggregateType = "listing"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregatePurchaseNotification,
	AggregateListing,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType is the domain event name stored in outbox_events.
type OutboxEventType string

const (
	EventPurchaseSubmitted   OutboxEventType = "purchase_submitted"
	EventPurchaseApproved    OutboxEventType = "purchase_approved"
	EventPurchaseRejected    OutboxEventType = "purchase_rejected"
	EventListingStockUpdated OutboxEventType = "listing_stock_updated"
	EventListingOutOfStock   OutboxEventType = "listing_out_of_stock"
)

var validOutboxEventTypes = []OutboxEventType{
	EventPurchaseSubmitted,
	EventPurchaseApproved,
	EventPurchaseRejected,
	EventListingStockUpdated,
	EventListingOutOfStock,
}

// IsValid reports whether the value matches a known event type.
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

// OutboxDLQErrorReason records why an event stopped being retried.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	switch r {
	case OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable:
		return true
	}
	return false
}
