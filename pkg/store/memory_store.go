package store

import (
	"sync"
	"time"

	"storyverse/pkg/domain"
)

// MemoryStore keeps everything in-process. Used by tests; the semantics match
// GormStore, including add-if-absent purchase edges.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[string]domain.User
	email     map[string]string // email -> user ID
	books     map[string]domain.Book
	bookOrder []string
	purchases map[string][]string // user ID -> book IDs in acquisition order
	messages  []domain.Message
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]domain.User),
		email:     make(map[string]string),
		books:     make(map[string]domain.Book),
		purchases: make(map[string][]string),
	}
}

// SaveUser registers or replaces a user.
func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.PlanType == "" {
		u.PlanType = domain.PlanNovice
	}
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

// HasUserEmail checks if email exists.
func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.email[email]
	return ok, nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.email[email]
	if !ok {
		return domain.User{}, false, nil
	}
	return m.userWithPurchases(id)
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.userWithPurchases(id)
}

// UpdateUserProfile changes name and email only.
func (m *MemoryStore) UpdateUserProfile(id, name, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil
	}
	delete(m.email, u.Email)
	u.Name = name
	u.Email = email
	u.UpdatedAt = time.Now().UTC()
	m.users[id] = u
	m.email[email] = id
	return nil
}

// AddPurchasedBook adds an entitlement edge if absent.
func (m *MemoryStore) AddPurchasedBook(userID, bookID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.purchases[userID] {
		if id == bookID {
			return nil
		}
	}
	m.purchases[userID] = append(m.purchases[userID], bookID)
	return nil
}

// GrantMembership sets the member flag and plan together.
func (m *MemoryStore) GrantMembership(userID string, plan domain.PlanType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil
	}
	u.IsMember = true
	u.PlanType = plan
	u.UpdatedAt = time.Now().UTC()
	m.users[userID] = u
	return nil
}

// ListPurchasedBooks returns the user's collection in acquisition order.
func (m *MemoryStore) ListPurchasedBooks(userID string) ([]domain.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.purchases[userID]
	books := make([]domain.Book, 0, len(ids))
	for _, id := range ids {
		if b, ok := m.books[id]; ok {
			books = append(books, b)
		}
	}
	return books, nil
}

// SaveBook stores or replaces a catalog entry.
func (m *MemoryStore) SaveBook(b domain.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.books[b.ID]; !exists {
		m.bookOrder = append(m.bookOrder, b.ID)
	}
	m.books[b.ID] = b
	return nil
}

// ListBooks returns books in insertion order.
func (m *MemoryStore) ListBooks() ([]domain.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	books := make([]domain.Book, 0, len(m.bookOrder))
	for _, id := range m.bookOrder {
		if b, ok := m.books[id]; ok {
			books = append(books, b)
		}
	}
	return books, nil
}

// GetBook retrieves a book by ID.
func (m *MemoryStore) GetBook(id string) (domain.Book, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[id]
	return b, ok, nil
}

// UpdateBookFeedback updates rating and review.
func (m *MemoryStore) UpdateBookFeedback(id string, rating int, review string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return nil
	}
	if rating > 0 {
		b.Rating = rating
	}
	if review != "" {
		b.Review = review
	}
	b.UpdatedAt = time.Now().UTC()
	m.books[id] = b
	return nil
}

// SaveMessage records a contact message.
func (m *MemoryStore) SaveMessage(msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

// Messages returns recorded contact messages (test helper).
func (m *MemoryStore) Messages() []domain.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

func (m *MemoryStore) userWithPurchases(id string) (domain.User, bool, error) {
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, false, nil
	}
	purchased := make([]string, len(m.purchases[id]))
	copy(purchased, m.purchases[id])
	u.PurchasedBooks = purchased
	return u, true, nil
}
