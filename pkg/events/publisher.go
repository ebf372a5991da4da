package events

import (
	"context"
	"time"
)

// GrantKind classifies what a grant event records.
type GrantKind string

const (
	KindPurchase     GrantKind = "purchase"
	KindPremiumClaim GrantKind = "premium_claim"
	KindMembership   GrantKind = "membership"
)

// GrantEvent announces a completed entitlement change. It carries no payment
// attestation data; the attestation is a proof, not a record.
type GrantEvent struct {
	ID        string    `json:"id"`
	Kind      GrantKind `json:"kind"`
	UserID    string    `json:"userId"`
	BookID    string    `json:"bookId,omitempty"`
	Plan      string    `json:"plan,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Publisher delivers grant events to downstream consumers (receipt mail,
// analytics). Publishing is best-effort: a failed publish never rolls back
// the grant it describes.
type Publisher interface {
	PublishGrant(ctx context.Context, event GrantEvent) error
	Close() error
}

// NopPublisher drops events. Used when no broker is configured and in tests.
type NopPublisher struct{}

func (NopPublisher) PublishGrant(context.Context, GrantEvent) error { return nil }
func (NopPublisher) Close() error                                   { return nil }
