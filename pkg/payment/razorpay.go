package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"storyverse/pkg/domain"
)

const defaultBaseURL = "https://api.razorpay.com/v1"

// RazorpayClient talks to the Razorpay Orders API over HTTP basic auth.
type RazorpayClient struct {
	baseURL    string
	keyID      string
	keySecret  string
	httpClient *http.Client
}

// APIError represents a provider error response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("payment provider: %s (status %d)", e.Message, e.Status)
}

// RazorpayOption customizes the client.
type RazorpayOption func(*RazorpayClient)

// WithBaseURL overrides the API base URL (tests point it at a fake server).
func WithBaseURL(url string) RazorpayOption {
	return func(c *RazorpayClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// NewRazorpayClient constructs the provider client.
func NewRazorpayClient(keyID, keySecret string, options ...RazorpayOption) *RazorpayClient {
	c := &RazorpayClient{
		baseURL:    defaultBaseURL,
		keyID:      keyID,
		keySecret:  keySecret,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, option := range options {
		if option != nil {
			option(c)
		}
	}
	return c
}

type orderPayload struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type orderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// CreateOrder opens a provider order for the amount in minor units.
func (c *RazorpayClient) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (domain.Order, error) {
	var resp orderResponse
	if err := c.doJSON(ctx, http.MethodPost, "/orders", orderPayload{
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
	}, &resp); err != nil {
		return domain.Order{}, err
	}
	return orderFromResponse(resp), nil
}

// FetchOrder returns the provider's record of an existing order.
func (c *RazorpayClient) FetchOrder(ctx context.Context, orderID string) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("order id required")
	}
	var resp orderResponse
	if err := c.doJSON(ctx, http.MethodGet, "/orders/"+orderID, nil, &resp); err != nil {
		return domain.Order{}, err
	}
	return orderFromResponse(resp), nil
}

func (c *RazorpayClient) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("payment provider: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error struct {
				Description string `json:"description"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := errResp.Error.Description
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func orderFromResponse(resp orderResponse) domain.Order {
	return domain.Order{
		ID:       resp.ID,
		Amount:   resp.Amount,
		Currency: resp.Currency,
		Receipt:  resp.Receipt,
		Status:   resp.Status,
	}
}
