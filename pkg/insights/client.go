package insights

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// APIError is returned when a service answers with a non-2xx status. Body
// holds the plain-text error the service sent, trimmed.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status %d", e.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
}

// Client talks to the analysis and market-data services. Both live behind
// the same base URL unless SetMarketDataURL is used.
type Client struct {
	analysisURL   string
	marketDataURL string
	httpClient    *http.Client
}

// NewClient creates a client for the services at baseURL.
func NewClient(baseURL string) *Client {
	base := strings.TrimRight(baseURL, "/")
	return &Client{
		analysisURL:   base,
		marketDataURL: base,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
	}
}

// SetMarketDataURL points bar requests at a different host.
func (c *Client) SetMarketDataURL(u string) {
	c.marketDataURL = strings.TrimRight(u, "/")
}

// SetTimeout replaces the HTTP client timeout. Zero disables it.
func (c *Client) SetTimeout(d time.Duration) {
	c.httpClient.Timeout = d
}

// SetHTTPClient swaps the underlying HTTP client.
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// KeepOrReplace submits a portfolio for review.
func (c *Client) KeepOrReplace(ctx context.Context, req PortfolioRequest) (*PortfolioResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.analysisURL+"/v1/analysis/portfolio/keep_or_replace", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var resp PortfolioResponse
	if err := c.do(httpReq, &resp); err != nil {
		return nil, err
	}
	if err := resp.Validate(); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", httpReq.URL.Path, err)
	}
	return &resp, nil
}

// GetBars retrieves adjusted daily bars for symbol starting at start.
func (c *Client) GetBars(ctx context.Context, symbol string, start time.Time, adjust string) (*BarsResponse, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("start", start.Format("2006-01-02"))
	q.Set("adjust", adjust)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.marketDataURL+"/v1/md/bars?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var resp BarsResponse
	if err := c.do(httpReq, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", req.URL.Path, err)
	}
	return nil
}
