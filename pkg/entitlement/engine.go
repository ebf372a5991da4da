// Package entitlement decides whether a reader may access a book and records
// the grants that change that answer. All failures are fail-closed: on any
// error no entitlement is granted.
package entitlement

import (
	"fmt"

	"storyverse/pkg/domain"
	"storyverse/pkg/store"
)

// Engine performs the state-mutating grant operations. Grants are idempotent:
// re-invocation with the same (user, book) pair is a no-op, not an error and
// not a duplicate entry, so double-submitted callbacks are safe without locks.
type Engine struct {
	store store.Store
}

// NewEngine wires the engine to its ledger store.
func NewEngine(s store.Store) *Engine {
	return &Engine{store: s}
}

// AccessState recomputes the access decision for a (user, book) pair from
// current state. Never cached: a membership change must be visible on the
// next check.
func (e *Engine) AccessState(userID, bookID string) (domain.AccessDecision, error) {
	user, ok, err := e.store.GetUserByID(userID)
	if err != nil {
		return domain.AccessDecision{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.AccessDecision{}, ErrUserNotFound
	}
	book, ok, err := e.store.GetBook(bookID)
	if err != nil {
		return domain.AccessDecision{}, fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return domain.AccessDecision{}, ErrBookNotFound
	}
	return domain.ResolveAccessState(user, book), nil
}

// GrantPurchase records individual-book ownership. Callers must only invoke
// it after the payment attestation passed verification and the paid amount
// was bound to the book's price. The write is a single atomic add-if-absent;
// either the edge exists afterwards or an error is returned.
func (e *Engine) GrantPurchase(userID, bookID string) error {
	_, ok, err := e.store.GetUserByID(userID)
	if err != nil {
		return fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return ErrUserNotFound
	}
	book, ok, err := e.store.GetBook(bookID)
	if err != nil {
		return fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return ErrBookNotFound
	}
	if book.IsPremium {
		return ErrNotPurchasable
	}
	if err := e.store.AddPurchasedBook(userID, bookID); err != nil {
		return fmt.Errorf("record purchase: %w", err)
	}
	return nil
}

// GrantPremiumClaim records a zero-payment grant for members on premium
// books. No attestation is required; the membership already paid for access.
func (e *Engine) GrantPremiumClaim(userID, bookID string) error {
	user, ok, err := e.store.GetUserByID(userID)
	if err != nil {
		return fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return ErrUserNotFound
	}
	book, ok, err := e.store.GetBook(bookID)
	if err != nil {
		return fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return ErrBookNotFound
	}
	if !book.IsPremium {
		return ErrNotClaimable
	}
	if !user.IsMember {
		return ErrNotAMember
	}
	if err := e.store.AddPurchasedBook(userID, bookID); err != nil {
		return fmt.Errorf("record claim: %w", err)
	}
	return nil
}
