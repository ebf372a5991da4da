package domain

import "time"

type PlanType string

const (
	PlanNovice  PlanType = "Novice"
	PlanScholar PlanType = "Scholar"
	PlanKeeper  PlanType = "Keeper"
)

// PlanPrice returns the price of a membership plan in minor currency units
// (paise). Novice is the free default tier and has no purchasable price.
func PlanPrice(plan PlanType) (int64, bool) {
	switch plan {
	case PlanScholar:
		return 29900, true
	case PlanKeeper:
		return 499900, true
	default:
		return 0, false
	}
}

// ParsePlanType validates a client-supplied plan name.
func ParsePlanType(raw string) (PlanType, bool) {
	switch PlanType(raw) {
	case PlanNovice:
		return PlanNovice, true
	case PlanScholar:
		return PlanScholar, true
	case PlanKeeper:
		return PlanKeeper, true
	default:
		return "", false
	}
}

type User struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	IsMember       bool      `json:"isMember"`
	PlanType       PlanType  `json:"planType"`
	PurchasedBooks []string  `json:"purchasedBooks"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// OwnsBook reports whether the user already holds an entitlement to the book.
func (u User) OwnsBook(bookID string) bool {
	for _, id := range u.PurchasedBooks {
		if id == bookID {
			return true
		}
	}
	return false
}

type Book struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Author     string            `json:"author"`
	CoverURL   string            `json:"coverUrl"`
	ContentKey string            `json:"-"`
	Price      int64             `json:"price"` // minor currency units
	IsPremium  bool              `json:"isPremium"`
	Status     string            `json:"status"`
	Rating     int               `json:"rating"`
	Review     string            `json:"review"`
	Attributes map[string]string `json:"attributes,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// Order is the ephemeral provider-side payment order. It exists only for the
// duration of one checkout round-trip and is never persisted locally.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status,omitempty"`
}

// Attestation is the provider callback payload proving a payment completed.
// It is a proof, not a record: verified and discarded, never stored.
type Attestation struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
}

// Message is a contact-form submission.
type Message struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}
