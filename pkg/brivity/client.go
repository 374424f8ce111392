// Package brivity provides a client for the Brivity CRM lead API.
//
// The client is a deliberate passthrough: the CRM's status code and body are
// returned to the caller unmodified, and non-2xx responses are not errors.
package brivity

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the Brivity lead operations.
type Client interface {
	// CreateLead posts a lead payload and returns the CRM response verbatim.
	// A payload carrying an email the CRM already knows acts as an update;
	// the client does not distinguish the two cases.
	CreateLead(ctx context.Context, payload map[string]any) (*LeadResponse, error)
}

// LeadResponse carries the upstream status code and raw body.
type LeadResponse struct {
	StatusCode int
	Body       json.RawMessage
}

// OK reports whether the CRM answered with a 2xx status.
func (r *LeadResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Option configures the Brivity client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiToken string
	baseURL  string
	http     *http.Client
}

// NewClient creates a new Brivity CRM client.
func NewClient(apiToken string, opts ...Option) Client {
	c := &httpClient{
		apiToken: apiToken,
		baseURL:  "https://secure.brivity.com/api/v2",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) CreateLead(ctx context.Context, payload map[string]any) (*LeadResponse, error) {
	if c.apiToken == "" {
		return nil, eris.New("brivity: api token not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "brivity: marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/leads", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "brivity: create request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token token="+c.apiToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "brivity: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "brivity: read response body")
	}

	return &LeadResponse{StatusCode: resp.StatusCode, Body: respBody}, nil
}
