package payment

import (
	"context"

	"storyverse/pkg/domain"
)

// Provider creates payment orders and reports their settled state. A failed
// call is surfaced to the caller as-is; there are no automatic retries.
type Provider interface {
	// CreateOrder opens a new order for the given amount in minor currency
	// units. The receipt is an opaque idempotency tag echoed back by the
	// provider.
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (domain.Order, error)
	// FetchOrder returns the provider's current view of an order. Used to
	// bind the paid amount to the entitlement being granted.
	FetchOrder(ctx context.Context, orderID string) (domain.Order, error)
}
