package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// PriceClient fetches quotes from an external pricing endpoint. It implements
// Quoter.
type PriceClient struct {
	endpoint string
	client   *http.Client
}

// NewPriceClient creates a quote client for the given endpoint.
func NewPriceClient(endpoint string) *PriceClient {
	return &PriceClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Quote fetches the current price for symbol.
func (p *PriceClient) Quote(ctx context.Context, symbol string) (float64, string, error) {
	u := fmt.Sprintf("%s?symbol=%s", p.endpoint, url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, "", fmt.Errorf("build quote request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("fetch quote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, "", fmt.Errorf("quote service returned status %d", resp.StatusCode)
	}

	var body struct {
		Price    float64 `json:"price"`
		Currency string  `json:"currency"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, "", fmt.Errorf("decode quote response: %w", err)
	}
	if body.Currency == "" {
		body.Currency = "USD"
	}
	return body.Price, body.Currency, nil
}
