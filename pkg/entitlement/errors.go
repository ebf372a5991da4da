package entitlement

import "errors"

var (
	// ErrUserNotFound indicates the user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrBookNotFound indicates the book does not exist.
	ErrBookNotFound = errors.New("book not found")
	// ErrNotAMember indicates a premium claim by a non-member. Membership is
	// re-checked server-side on every claim; the client hiding the button is
	// not a trust boundary.
	ErrNotAMember = errors.New("membership required")
	// ErrNotClaimable indicates a premium claim on a non-premium book.
	ErrNotClaimable = errors.New("book is not premium")
	// ErrNotPurchasable indicates an individual purchase of a premium book.
	// Premium titles are only claimable by members, never sold per copy.
	ErrNotPurchasable = errors.New("premium books cannot be purchased individually")
)
