// Package payments wraps the Razorpay REST API for the admin payments view.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"clinixpay/backend/internal/domain"
)

// ErrGateway marks failures talking to the payment gateway.
var ErrGateway = errors.New("payment gateway error")

const defaultBaseURL = "https://api.razorpay.com"

type Client struct {
	baseURL    string
	keyID      string
	keySecret  string
	httpClient *http.Client
}

// NewClient builds a gateway client. baseURL may be empty, in which case the
// production endpoint is used.
func NewClient(baseURL string, keyID string, keySecret string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:   baseURL,
		keyID:     keyID,
		keySecret: keySecret,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Configured reports whether gateway credentials are present.
func (c *Client) Configured() bool {
	return c.keyID != "" && c.keySecret != ""
}

type paymentsPage struct {
	Count int                     `json:"count"`
	Items []domain.GatewayPayment `json:"items"`
}

// ListPayments fetches up to count payments starting at skip.
func (c *Client) ListPayments(ctx context.Context, count int, skip int) ([]domain.GatewayPayment, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("%w: gateway credentials not configured", ErrGateway)
	}
	if count <= 0 {
		count = 20
	}
	if skip < 0 {
		skip = 0
	}

	q := url.Values{}
	q.Set("count", strconv.Itoa(count))
	q.Set("skip", strconv.Itoa(skip))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v1/payments?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrGateway, resp.StatusCode)
	}

	var page paymentsPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrGateway, err)
	}
	return page.Items, nil
}
