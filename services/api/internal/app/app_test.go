package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"storyverse/pkg/domain"
	"storyverse/pkg/payment"
	"storyverse/pkg/store"
)

type stubProvider struct {
	orders map[string]domain.Order
}

func (p *stubProvider) CreateOrder(_ context.Context, amount int64, currency, receipt string) (domain.Order, error) {
	order := domain.Order{
		ID:       fmt.Sprintf("order_%d", len(p.orders)+1),
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
	}
	if p.orders == nil {
		p.orders = make(map[string]domain.Order)
	}
	p.orders[order.ID] = order
	return order, nil
}

func (p *stubProvider) FetchOrder(_ context.Context, orderID string) (domain.Order, error) {
	order, ok := p.orders[orderID]
	if !ok {
		return domain.Order{}, fmt.Errorf("order %s not found", orderID)
	}
	return order, nil
}

// presigner is the minimal ObjectStore fake used by download tests.
type presigner struct{}

func (presigner) Put(context.Context, string, io.Reader, int64, string) error { return nil }

func (presigner) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://objects.local/" + key + "?signed=1", nil
}

func (presigner) Delete(context.Context, string) error { return nil }

func newTestApp(t *testing.T) (*App, *store.MemoryStore, *payment.Verifier) {
	t.Helper()
	s := store.NewMemoryStore()
	verifier := payment.NewVerifier("app-test-secret")
	a, err := New(Config{
		Store:    s,
		Sessions: store.NewJWTSessionStore("app-test-jwt", time.Hour),
		Provider: &stubProvider{},
		Verifier: verifier,
		Objects:  &presigner{},
		Currency: "INR",
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a, s, verifier
}

func seedBook(t *testing.T, s *store.MemoryStore, book domain.Book) {
	t.Helper()
	book.CreatedAt = time.Now().UTC()
	if err := s.SaveBook(book); err != nil {
		t.Fatalf("seed book: %v", err)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	a, _, _ := newTestApp(t)

	user, token, err := a.Register("Asha", "Asha@Example.com", "Str0ng#Password!")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "asha@example.com" {
		t.Fatalf("email not normalized: %q", user.Email)
	}
	if user.PlanType != domain.PlanNovice || user.IsMember {
		t.Fatalf("new user should be a non-member Novice: %+v", user)
	}
	if token == "" {
		t.Fatal("expected session token")
	}

	if _, _, err := a.Register("Asha", "asha@example.com", "Str0ng#Password!"); !errors.Is(err, ErrEmailAlreadyExists) {
		t.Fatalf("duplicate register: got %v", err)
	}

	got, ok := a.UserFromToken(token)
	if !ok || got.ID != user.ID {
		t.Fatalf("UserFromToken: ok=%v user=%+v", ok, got)
	}

	if _, _, err := a.Login("asha@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("bad password: got %v", err)
	}
	if _, _, err := a.Login("nobody@example.com", "Str0ng#Password!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown account: got %v", err)
	}
	if _, _, err := a.Login("asha@example.com", "Str0ng#Password!"); err != nil {
		t.Fatalf("login: %v", err)
	}
}

func TestGetBookViewResolvesAccessState(t *testing.T) {
	a, s, _ := newTestApp(t)
	seedBook(t, s, domain.Book{ID: "novel", Title: "A Novel", Price: 19900})
	seedBook(t, s, domain.Book{ID: "tome", Title: "Premium Tome", IsPremium: true})

	user, _, err := a.Register("Asha", "asha@example.com", "Str0ng#Password!")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	view, err := a.GetBookView(context.Background(), user.ID, "novel")
	if err != nil {
		t.Fatalf("get book view: %v", err)
	}
	if view.AccessState != domain.AccessPurchasable || view.Price != 19900 {
		t.Fatalf("view = %+v, want purchasable at 19900", view)
	}

	view, err = a.GetBookView(context.Background(), user.ID, "tome")
	if err != nil {
		t.Fatalf("get book view: %v", err)
	}
	if view.AccessState != domain.AccessPremiumLocked {
		t.Fatalf("state = %q, want premium_locked", view.AccessState)
	}

	// Anonymous viewers get the fresh-account projection.
	view, err = a.GetBookView(context.Background(), "", "tome")
	if err != nil {
		t.Fatalf("anonymous view: %v", err)
	}
	if view.AccessState != domain.AccessPremiumLocked {
		t.Fatalf("anonymous state = %q, want premium_locked", view.AccessState)
	}
}

func TestPurchaseAndCollection(t *testing.T) {
	a, s, verifier := newTestApp(t)
	seedBook(t, s, domain.Book{ID: "novel", Title: "A Novel", Price: 19900})

	user, _, err := a.Register("Asha", "asha@example.com", "Str0ng#Password!")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	ctx := context.Background()

	order, err := a.CreateOrder(ctx, 19900)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.Currency != "INR" {
		t.Fatalf("currency = %q, want INR", order.Currency)
	}
	att := domain.Attestation{
		OrderID:   order.ID,
		PaymentID: "pay_1",
		Signature: verifier.Sign(order.ID, "pay_1"),
	}
	if err := a.RecordPurchase(ctx, user.ID, "novel", att); err != nil {
		t.Fatalf("record purchase: %v", err)
	}

	books, err := a.MyCollection(user.ID)
	if err != nil {
		t.Fatalf("my collection: %v", err)
	}
	if len(books) != 1 || books[0].ID != "novel" {
		t.Fatalf("collection = %+v, want the purchased novel", books)
	}
}

func TestDownloadBookRequiresOwnership(t *testing.T) {
	a, s, verifier := newTestApp(t)
	seedBook(t, s, domain.Book{ID: "novel", Title: "A Novel", Price: 19900, ContentKey: "books/novel.epub"})

	user, _, err := a.Register("Asha", "asha@example.com", "Str0ng#Password!")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	ctx := context.Background()

	if _, err := a.DownloadBook(ctx, user.ID, "novel"); !errors.Is(err, ErrNotOwned) {
		t.Fatalf("unowned download: got %v, want ErrNotOwned", err)
	}

	order, err := a.CreateOrder(ctx, 19900)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	att := domain.Attestation{
		OrderID:   order.ID,
		PaymentID: "pay_1",
		Signature: verifier.Sign(order.ID, "pay_1"),
	}
	if err := a.RecordPurchase(ctx, user.ID, "novel", att); err != nil {
		t.Fatalf("record purchase: %v", err)
	}

	url, err := a.DownloadBook(ctx, user.ID, "novel")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if url != "https://objects.local/books/novel.epub?signed=1" {
		t.Fatalf("unexpected download url: %q", url)
	}
}

func TestUpdateProfileRejectsTakenEmail(t *testing.T) {
	a, _, _ := newTestApp(t)
	u1, _, err := a.Register("Asha", "asha@example.com", "Str0ng#Password!")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, _, err := a.Register("Ravi", "ravi@example.com", "Str0ng#Password!"); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := a.UpdateProfile(u1.ID, "Asha", "ravi@example.com"); !errors.Is(err, ErrEmailAlreadyExists) {
		t.Fatalf("got %v, want ErrEmailAlreadyExists", err)
	}
	updated, err := a.UpdateProfile(u1.ID, "Asha K", "asha.k@example.com")
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.Name != "Asha K" || updated.Email != "asha.k@example.com" {
		t.Fatalf("unexpected profile: %+v", updated)
	}
}

func TestUpdateBookFeedback(t *testing.T) {
	a, s, _ := newTestApp(t)
	seedBook(t, s, domain.Book{ID: "novel", Title: "A Novel", Price: 19900})

	if _, err := a.UpdateBookFeedback("novel", 6, "too good"); err == nil {
		t.Fatal("expected rating range error")
	}
	book, err := a.UpdateBookFeedback("novel", 4, "great read")
	if err != nil {
		t.Fatalf("update feedback: %v", err)
	}
	if book.Rating != 4 || book.Review != "great read" {
		t.Fatalf("feedback not applied: %+v", book)
	}
}
