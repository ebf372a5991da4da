package domain

// AccessState is the client-visible projection of a (user, book) pair. It
// drives which action the reader sees on a book page.
type AccessState string

const (
	// AccessOwned means the book is in the user's collection.
	AccessOwned AccessState = "owned"
	// AccessPremiumClaimable means a member may claim the premium book for free.
	AccessPremiumClaimable AccessState = "premium_claimable"
	// AccessPremiumLocked means the premium book requires a membership.
	AccessPremiumLocked AccessState = "premium_locked"
	// AccessPurchasable means the book can be bought individually at Price.
	AccessPurchasable AccessState = "purchasable"
)

// AccessDecision pairs the state with the price the purchasable action costs.
type AccessDecision struct {
	State AccessState `json:"state"`
	Price int64       `json:"price,omitempty"`
}

// ResolveAccessState decides which access state applies to a (user, book)
// pair. It is a pure function of current state and must be recomputed on
// every check: ownership overrides premium, so the order of the branches
// matters.
func ResolveAccessState(user User, book Book) AccessDecision {
	switch {
	case user.OwnsBook(book.ID):
		return AccessDecision{State: AccessOwned}
	case book.IsPremium && user.IsMember:
		return AccessDecision{State: AccessPremiumClaimable}
	case book.IsPremium:
		return AccessDecision{State: AccessPremiumLocked}
	default:
		return AccessDecision{State: AccessPurchasable, Price: book.Price}
	}
}
