package store

import (
	"sync"
	"testing"
	"time"

	"storyverse/pkg/domain"
)

func seedUser(t *testing.T, s *MemoryStore, id, email string) {
	t.Helper()
	if err := s.SaveUser(domain.User{ID: id, Name: id, Email: email, CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("save user: %v", err)
	}
}

func TestAddPurchasedBookIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	seedUser(t, s, "u1", "u1@example.com")
	if err := s.SaveBook(domain.Book{ID: "b1", Title: "One"}); err != nil {
		t.Fatalf("save book: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := s.AddPurchasedBook("u1", "b1"); err != nil {
			t.Fatalf("add purchase: %v", err)
		}
	}
	user, _, err := s.GetUserByID("u1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if len(user.PurchasedBooks) != 1 || user.PurchasedBooks[0] != "b1" {
		t.Fatalf("purchasedBooks = %v, want exactly [b1]", user.PurchasedBooks)
	}
}

func TestAddPurchasedBookConcurrent(t *testing.T) {
	s := NewMemoryStore()
	seedUser(t, s, "u1", "u1@example.com")
	if err := s.SaveBook(domain.Book{ID: "b1", Title: "One"}); err != nil {
		t.Fatalf("save book: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.AddPurchasedBook("u1", "b1")
		}()
	}
	wg.Wait()

	user, _, _ := s.GetUserByID("u1")
	if len(user.PurchasedBooks) != 1 {
		t.Fatalf("purchasedBooks = %v, want a single edge under concurrency", user.PurchasedBooks)
	}
}

func TestGrantMembershipSetsFlagAndPlanTogether(t *testing.T) {
	s := NewMemoryStore()
	seedUser(t, s, "u1", "u1@example.com")

	if err := s.GrantMembership("u1", domain.PlanKeeper); err != nil {
		t.Fatalf("grant membership: %v", err)
	}
	user, _, _ := s.GetUserByID("u1")
	if !user.IsMember || user.PlanType != domain.PlanKeeper {
		t.Fatalf("user = isMember=%v plan=%q, want member Keeper", user.IsMember, user.PlanType)
	}
}

func TestListPurchasedBooksKeepsAcquisitionOrder(t *testing.T) {
	s := NewMemoryStore()
	seedUser(t, s, "u1", "u1@example.com")
	for _, id := range []string{"b1", "b2", "b3"} {
		if err := s.SaveBook(domain.Book{ID: id, Title: id}); err != nil {
			t.Fatalf("save book: %v", err)
		}
	}
	for _, id := range []string{"b2", "b3", "b1"} {
		if err := s.AddPurchasedBook("u1", id); err != nil {
			t.Fatalf("add purchase: %v", err)
		}
	}
	books, err := s.ListPurchasedBooks("u1")
	if err != nil {
		t.Fatalf("list purchases: %v", err)
	}
	got := make([]string, len(books))
	for i, b := range books {
		got[i] = b.ID
	}
	want := []string{"b2", "b3", "b1"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("collection order = %v, want %v", got, want)
		}
	}
}

func TestUpdateUserProfileReindexesEmail(t *testing.T) {
	s := NewMemoryStore()
	seedUser(t, s, "u1", "old@example.com")

	if err := s.UpdateUserProfile("u1", "New Name", "new@example.com"); err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if ok, _ := s.HasUserEmail("old@example.com"); ok {
		t.Fatal("old email should be released")
	}
	user, ok, _ := s.GetUserByEmail("new@example.com")
	if !ok || user.Name != "New Name" {
		t.Fatalf("lookup by new email: ok=%v user=%+v", ok, user)
	}
}

func TestUpdateBookFeedback(t *testing.T) {
	s := NewMemoryStore()
	if err := s.SaveBook(domain.Book{ID: "b1", Title: "One", Rating: 3, Review: "fine"}); err != nil {
		t.Fatalf("save book: %v", err)
	}
	if err := s.UpdateBookFeedback("b1", 5, "excellent"); err != nil {
		t.Fatalf("update feedback: %v", err)
	}
	book, _, _ := s.GetBook("b1")
	if book.Rating != 5 || book.Review != "excellent" {
		t.Fatalf("feedback not applied: %+v", book)
	}

	// Zero rating and empty review leave the previous values alone.
	if err := s.UpdateBookFeedback("b1", 0, ""); err != nil {
		t.Fatalf("update feedback: %v", err)
	}
	book, _, _ = s.GetBook("b1")
	if book.Rating != 5 || book.Review != "excellent" {
		t.Fatalf("feedback overwritten by zero values: %+v", book)
	}
}
