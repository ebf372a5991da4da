// Package app wires storage, sessions, the entitlement engine, and the
// checkout orchestrator into the operations the HTTP layer exposes.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"storyverse/internal/util"
	"storyverse/pkg/auth"
	"storyverse/pkg/checkout"
	"storyverse/pkg/domain"
	"storyverse/pkg/entitlement"
	"storyverse/pkg/events"
	"storyverse/pkg/payment"
	"storyverse/pkg/storage"
	"storyverse/pkg/store"
)

const downloadURLTTL = 15 * time.Minute

// Config holds runtime configuration for the core application. The Store,
// Sessions, Provider, Publisher, and Objects fields override the defaults
// built from the connection settings; tests inject fakes through them.
type Config struct {
	DatabaseURL          string
	JWTSecret            string
	SessionTTL           time.Duration
	PaymentSigningSecret string
	Currency             string

	Store    store.Store
	Sessions store.SessionStore
	Provider payment.Provider
	Verifier *payment.Verifier
	Events   events.Publisher
	Objects  storage.ObjectStore
}

// App is the core application service.
type App struct {
	store    store.Store
	sessions store.SessionStore
	engine   *entitlement.Engine
	checkout *checkout.Orchestrator
	objects  storage.ObjectStore
	currency string
}

// New constructs the application.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}
	sessionStore := cfg.Sessions
	if sessionStore == nil {
		if strings.TrimSpace(cfg.JWTSecret) == "" {
			return nil, fmt.Errorf("jwt secret required")
		}
		sessionStore = store.NewJWTSessionStore(cfg.JWTSecret, cfg.SessionTTL)
	}
	verifier := cfg.Verifier
	if verifier == nil {
		if strings.TrimSpace(cfg.PaymentSigningSecret) == "" {
			return nil, fmt.Errorf("payment signing secret required")
		}
		verifier = payment.NewVerifier(cfg.PaymentSigningSecret)
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("payment provider required")
	}
	engine := entitlement.NewEngine(dataStore)
	return &App{
		store:    dataStore,
		sessions: sessionStore,
		engine:   engine,
		checkout: checkout.New(cfg.Provider, verifier, engine, dataStore, cfg.Events),
		objects:  cfg.Objects,
		currency: cfg.Currency,
	}, nil
}

// Register creates an account and issues a session token.
func (a *App) Register(name, email, password string) (domain.User, string, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(strings.ToLower(email))
	if name == "" || email == "" || password == "" {
		return domain.User{}, "", ErrSignupFieldsMissing
	}
	if err := auth.ValidatePassword(password); err != nil {
		return domain.User{}, "", err
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, "", ErrEmailAlreadyExists
	}
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:           util.NewID(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		PlanType:     domain.PlanNovice,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, "", fmt.Errorf("save user: %w", err)
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	return user, token, nil
}

// Login validates credentials and issues a session token.
func (a *App) Login(email, password string) (domain.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	return user, token, nil
}

// UserFromToken resolves a user from a session token.
func (a *App) UserFromToken(token string) (domain.User, bool) {
	uid, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, false
	}
	user, found, err := a.store.GetUserByID(uid)
	if err != nil || !found {
		return domain.User{}, false
	}
	return user, true
}

// GetUser returns a user by ID.
func (a *App) GetUser(id string) (domain.User, error) {
	user, ok, err := a.store.GetUserByID(id)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, entitlement.ErrUserNotFound
	}
	return user, nil
}

// UpdateProfile changes a user's name and email.
func (a *App) UpdateProfile(id, name, email string) (domain.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(strings.ToLower(email))
	if name == "" || email == "" {
		return domain.User{}, fmt.Errorf("name and email are required")
	}
	existing, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, fmt.Errorf("check email: %w", err)
	}
	if ok && existing.ID != id {
		return domain.User{}, ErrEmailAlreadyExists
	}
	if err := a.store.UpdateUserProfile(id, name, email); err != nil {
		return domain.User{}, fmt.Errorf("update profile: %w", err)
	}
	return a.GetUser(id)
}

// Library returns the full catalog.
func (a *App) Library() ([]domain.Book, error) {
	return a.store.ListBooks()
}

// BookView is the catalog detail payload: the book plus the access state the
// client renders its action button from. Price is zero unless the state is
// purchasable.
type BookView struct {
	Book        domain.Book        `json:"book"`
	AccessState domain.AccessState `json:"accessState"`
	Price       int64              `json:"price"`
}

// GetBookView fetches the book and, when a viewer is known, resolves the
// access state. The user and book reads are independent and run concurrently.
func (a *App) GetBookView(ctx context.Context, userID, bookID string) (BookView, error) {
	var (
		user      domain.User
		userFound bool
		book      domain.Book
	)
	g, _ := errgroup.WithContext(ctx)
	if userID != "" {
		g.Go(func() error {
			var err error
			user, userFound, err = a.store.GetUserByID(userID)
			if err != nil {
				return fmt.Errorf("fetch user: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		var err error
		var ok bool
		book, ok, err = a.store.GetBook(bookID)
		if err != nil {
			return fmt.Errorf("fetch book: %w", err)
		}
		if !ok {
			return entitlement.ErrBookNotFound
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return BookView{}, err
	}
	if !userFound {
		// Anonymous viewers see the same states a fresh account would.
		user = domain.User{PlanType: domain.PlanNovice}
	}
	decision := domain.ResolveAccessState(user, book)
	return BookView{Book: book, AccessState: decision.State, Price: decision.Price}, nil
}

// UpdateBookFeedback stores a rating and review on the book.
func (a *App) UpdateBookFeedback(bookID string, rating int, review string) (domain.Book, error) {
	if rating < 0 || rating > 5 {
		return domain.Book{}, fmt.Errorf("rating must be between 0 and 5")
	}
	if _, ok, err := a.store.GetBook(bookID); err != nil {
		return domain.Book{}, fmt.Errorf("fetch book: %w", err)
	} else if !ok {
		return domain.Book{}, entitlement.ErrBookNotFound
	}
	if err := a.store.UpdateBookFeedback(bookID, rating, review); err != nil {
		return domain.Book{}, fmt.Errorf("update feedback: %w", err)
	}
	book, _, err := a.store.GetBook(bookID)
	if err != nil {
		return domain.Book{}, fmt.Errorf("fetch book: %w", err)
	}
	return book, nil
}

// MyCollection returns the books the user owns.
func (a *App) MyCollection(userID string) ([]domain.Book, error) {
	if _, ok, err := a.store.GetUserByID(userID); err != nil {
		return nil, fmt.Errorf("fetch user: %w", err)
	} else if !ok {
		return nil, entitlement.ErrUserNotFound
	}
	return a.store.ListPurchasedBooks(userID)
}

// Contact records a contact-form submission.
func (a *App) Contact(name, email, subject, body string) error {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" || strings.TrimSpace(body) == "" {
		return fmt.Errorf("name, email and message are required")
	}
	return a.store.SaveMessage(domain.Message{
		ID:        util.NewID(),
		Name:      name,
		Email:     email,
		Subject:   strings.TrimSpace(subject),
		Body:      body,
		CreatedAt: time.Now().UTC(),
	})
}

// CreateOrder opens a payment order for the amount in minor currency units.
func (a *App) CreateOrder(ctx context.Context, amount int64) (domain.Order, error) {
	return a.checkout.CreateOrder(ctx, amount, a.currency)
}

// RecordPurchase completes a verified individual-book purchase.
func (a *App) RecordPurchase(ctx context.Context, userID, bookID string, att domain.Attestation) error {
	return a.checkout.CompletePurchase(ctx, userID, bookID, att)
}

// VerifyMembership completes a verified membership payment.
func (a *App) VerifyMembership(ctx context.Context, userID string, plan domain.PlanType, att domain.Attestation) error {
	return a.checkout.CompleteMembership(ctx, userID, plan, att)
}

// ClaimPremium grants a member a premium book at no cost.
func (a *App) ClaimPremium(ctx context.Context, userID, bookID string) error {
	return a.checkout.ClaimPremium(ctx, userID, bookID)
}

// DownloadBook re-checks ownership and returns a short-lived content URL.
// Any state other than Owned is refused; membership alone is not enough
// until the premium book is actually claimed.
func (a *App) DownloadBook(ctx context.Context, userID, bookID string) (string, error) {
	decision, err := a.engine.AccessState(userID, bookID)
	if err != nil {
		return "", err
	}
	if decision.State != domain.AccessOwned {
		return "", ErrNotOwned
	}
	book, ok, err := a.store.GetBook(bookID)
	if err != nil {
		return "", fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return "", entitlement.ErrBookNotFound
	}
	if a.objects == nil || strings.TrimSpace(book.ContentKey) == "" {
		return "", ErrNoContent
	}
	url, err := a.objects.PresignGet(ctx, book.ContentKey, downloadURLTTL)
	if err != nil {
		return "", fmt.Errorf("presign download: %w", err)
	}
	return url, nil
}
