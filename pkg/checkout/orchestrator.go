// Package checkout drives one payment round-trip: create an order with the
// provider, and on the client's callback verify the attestation before any
// entitlement is granted. The per-attempt state machine (initiated, order
// created, attestation received, verified or rejected) is transient control
// flow; there is no stored representation, only the invariant that nothing
// mutates before verification succeeds.
package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"storyverse/pkg/domain"
	"storyverse/pkg/entitlement"
	"storyverse/pkg/events"
	"storyverse/pkg/payment"
	"storyverse/pkg/store"
)

const defaultCurrency = "INR"

// Orchestrator coordinates provider, verifier, and entitlement engine.
type Orchestrator struct {
	provider payment.Provider
	verifier *payment.Verifier
	engine   *entitlement.Engine
	store    store.Store
	events   events.Publisher
}

// New wires the orchestrator. A nil publisher defaults to the no-op one.
func New(provider payment.Provider, verifier *payment.Verifier, engine *entitlement.Engine, s store.Store, publisher events.Publisher) *Orchestrator {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Orchestrator{
		provider: provider,
		verifier: verifier,
		engine:   engine,
		store:    s,
		events:   publisher,
	}
}

// CreateOrder opens a provider order for the amount in minor currency units.
// Provider failures surface as ErrProvider; the HTTP layer shows a generic
// message and never the raw provider error.
func (o *Orchestrator) CreateOrder(ctx context.Context, amount int64, currency string) (domain.Order, error) {
	if amount <= 0 {
		return domain.Order{}, fmt.Errorf("order amount must be positive")
	}
	if currency == "" {
		currency = defaultCurrency
	}
	receipt := "r_" + uuid.NewString()
	order, err := o.provider.CreateOrder(ctx, amount, currency, receipt)
	if err != nil {
		return domain.Order{}, fmt.Errorf("%w: %w", ErrProvider, err)
	}
	return order, nil
}

// CompletePurchase verifies the attestation, binds the paid amount to the
// book's catalog price, and grants ownership. On verification failure nothing
// is mutated.
func (o *Orchestrator) CompletePurchase(ctx context.Context, userID, bookID string, att domain.Attestation) error {
	if !o.verifier.Verify(att.OrderID, att.PaymentID, att.Signature) {
		return ErrVerificationFailed
	}
	book, ok, err := o.store.GetBook(bookID)
	if err != nil {
		return fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return entitlement.ErrBookNotFound
	}
	if err := o.bindAmount(ctx, att.OrderID, book.Price); err != nil {
		return err
	}
	if err := o.engine.GrantPurchase(userID, bookID); err != nil {
		return err
	}
	o.announce(ctx, events.GrantEvent{
		Kind:   events.KindPurchase,
		UserID: userID,
		BookID: bookID,
	})
	return nil
}

// CompleteMembership verifies the attestation, binds the paid amount to the
// plan price, and atomically flips the user into the paid tier. The member
// flag and plan change in one store update; there is no window where
// isMember is true with a stale plan.
func (o *Orchestrator) CompleteMembership(ctx context.Context, userID string, plan domain.PlanType, att domain.Attestation) error {
	price, ok := domain.PlanPrice(plan)
	if !ok {
		return ErrPlanNotPurchasable
	}
	if !o.verifier.Verify(att.OrderID, att.PaymentID, att.Signature) {
		return ErrVerificationFailed
	}
	_, found, err := o.store.GetUserByID(userID)
	if err != nil {
		return fmt.Errorf("fetch user: %w", err)
	}
	if !found {
		return entitlement.ErrUserNotFound
	}
	if err := o.bindAmount(ctx, att.OrderID, price); err != nil {
		return err
	}
	if err := o.store.GrantMembership(userID, plan); err != nil {
		return fmt.Errorf("grant membership: %w", err)
	}
	o.announce(ctx, events.GrantEvent{
		Kind:   events.KindMembership,
		UserID: userID,
		Plan:   string(plan),
	})
	return nil
}

// ClaimPremium grants a member a premium book without payment and announces
// the claim.
func (o *Orchestrator) ClaimPremium(ctx context.Context, userID, bookID string) error {
	if err := o.engine.GrantPremiumClaim(userID, bookID); err != nil {
		return err
	}
	o.announce(ctx, events.GrantEvent{
		Kind:   events.KindPremiumClaim,
		UserID: userID,
		BookID: bookID,
	})
	return nil
}

// bindAmount re-fetches the order from the provider and requires the paid
// amount to equal the catalog price at verification time. The source system
// trusted the client here; this closes that gap.
func (o *Orchestrator) bindAmount(ctx context.Context, orderID string, wantAmount int64) error {
	order, err := o.provider.FetchOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProvider, err)
	}
	if order.Amount != wantAmount {
		return fmt.Errorf("%w: paid %d, expected %d", ErrAmountMismatch, order.Amount, wantAmount)
	}
	return nil
}

func (o *Orchestrator) announce(ctx context.Context, event events.GrantEvent) {
	event.ID = uuid.NewString()
	event.CreatedAt = time.Now().UTC()
	if err := o.events.PublishGrant(ctx, event); err != nil {
		slog.Error("failed to publish grant event", "kind", event.Kind, "user_id", event.UserID, "err", err)
	}
}
