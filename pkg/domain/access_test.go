package domain

import "testing"

func TestResolveAccessStateDecisionOrder(t *testing.T) {
	tests := []struct {
		name      string
		owned     bool
		member    bool
		premium   bool
		price     int64
		want      AccessState
		wantPrice int64
	}{
		{name: "regular book for non-member", price: 29900, want: AccessPurchasable, wantPrice: 29900},
		{name: "regular book for member still costs money", member: true, price: 29900, want: AccessPurchasable, wantPrice: 29900},
		{name: "premium book for member", member: true, premium: true, want: AccessPremiumClaimable},
		{name: "premium book for non-member", premium: true, want: AccessPremiumLocked},
		{name: "owned regular book", owned: true, price: 29900, want: AccessOwned},
		{name: "ownership overrides premium for member", owned: true, member: true, premium: true, want: AccessOwned},
		{name: "ownership overrides premium for non-member", owned: true, premium: true, want: AccessOwned},
		{name: "free regular book", want: AccessPurchasable, wantPrice: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			book := Book{ID: "b1", Price: tt.price, IsPremium: tt.premium}
			user := User{ID: "u1", IsMember: tt.member}
			if tt.owned {
				user.PurchasedBooks = []string{"b0", "b1"}
			}
			got := ResolveAccessState(user, book)
			if got.State != tt.want {
				t.Fatalf("state = %q, want %q", got.State, tt.want)
			}
			if got.Price != tt.wantPrice {
				t.Fatalf("price = %d, want %d", got.Price, tt.wantPrice)
			}
		})
	}
}

func TestResolveAccessStateIsPure(t *testing.T) {
	user := User{ID: "u1", IsMember: true, PurchasedBooks: []string{"b2"}}
	book := Book{ID: "b1", IsPremium: true}
	first := ResolveAccessState(user, book)
	for i := 0; i < 5; i++ {
		if got := ResolveAccessState(user, book); got != first {
			t.Fatalf("call %d returned %+v, first call returned %+v", i, got, first)
		}
	}
}

func TestPlanPrice(t *testing.T) {
	if price, ok := PlanPrice(PlanScholar); !ok || price != 29900 {
		t.Fatalf("Scholar = (%d, %v), want (29900, true)", price, ok)
	}
	if price, ok := PlanPrice(PlanKeeper); !ok || price != 499900 {
		t.Fatalf("Keeper = (%d, %v), want (499900, true)", price, ok)
	}
	if _, ok := PlanPrice(PlanNovice); ok {
		t.Fatal("Novice must not have a purchasable price")
	}
	if _, ok := PlanPrice(PlanType("Mythic")); ok {
		t.Fatal("unknown plan must not have a price")
	}
}
