package store

import "storyverse/pkg/domain"

// Store defines persistence operations for users, books, purchases, and
// contact messages.
type Store interface {
	// users
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	UpdateUserProfile(id, name, email string) error

	// entitlements. AddPurchasedBook is a single atomic add-if-absent:
	// re-adding an existing (user, book) edge is a no-op, never a duplicate
	// and never an error. GrantMembership flips isMember and the plan in one
	// update so there is no window where the member flag and plan disagree.
	AddPurchasedBook(userID, bookID string) error
	GrantMembership(userID string, plan domain.PlanType) error
	ListPurchasedBooks(userID string) ([]domain.Book, error)

	// books
	SaveBook(domain.Book) error
	ListBooks() ([]domain.Book, error)
	GetBook(id string) (domain.Book, bool, error)
	UpdateBookFeedback(id string, rating int, review string) error

	// contact
	SaveMessage(domain.Message) error
}

// SessionStore issues and resolves session tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
}
