package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateOrderSendsAmountAndAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/orders" {
			http.NotFound(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "rzp_test_key" || pass != "rzp_test_secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var payload struct {
			Amount   int64  `json:"amount"`
			Currency string `json:"currency"`
			Receipt  string `json:"receipt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if payload.Amount != 29900 || payload.Currency != "INR" {
			t.Errorf("unexpected order payload: %+v", payload)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":       "order_abc",
			"amount":   payload.Amount,
			"currency": payload.Currency,
			"receipt":  payload.Receipt,
			"status":   "created",
		})
	}))
	defer srv.Close()

	client := NewRazorpayClient("rzp_test_key", "rzp_test_secret", WithBaseURL(srv.URL))
	order, err := client.CreateOrder(context.Background(), 29900, "INR", "r_1")
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.ID != "order_abc" || order.Amount != 29900 || order.Receipt != "r_1" {
		t.Fatalf("unexpected order: %+v", order)
	}
}

func TestCreateOrderSurfacesProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"description": "gateway is down"},
		})
	}))
	defer srv.Close()

	client := NewRazorpayClient("k", "s", WithBaseURL(srv.URL))
	_, err := client.CreateOrder(context.Background(), 100, "INR", "r_1")
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.Status != http.StatusBadGateway || apiErr.Message != "gateway is down" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
}

func TestFetchOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/orders/order_abc" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":       "order_abc",
			"amount":   int64(499900),
			"currency": "INR",
			"status":   "paid",
		})
	}))
	defer srv.Close()

	client := NewRazorpayClient("k", "s", WithBaseURL(srv.URL))
	order, err := client.FetchOrder(context.Background(), "order_abc")
	if err != nil {
		t.Fatalf("fetch order: %v", err)
	}
	if order.Amount != 499900 || order.Status != "paid" {
		t.Fatalf("unexpected order: %+v", order)
	}
	if _, err := client.FetchOrder(context.Background(), "  "); err == nil {
		t.Fatal("blank order id should error")
	}
}
