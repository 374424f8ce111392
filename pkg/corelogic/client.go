// Package corelogic provides a client for the CoreLogic property search and
// AVM (automated valuation model) APIs.
package corelogic

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const mediaType = "application/vnd.corelogic.v1+json"

// Client defines the CoreLogic API operations used by the valuation service.
type Client interface {
	// Token exchanges the configured client credentials for a bearer token.
	Token(ctx context.Context) (string, error)
	// SearchProperty looks up properties by street address and 5-digit zip.
	SearchProperty(ctx context.Context, token, streetAddress, zipcode string) (*PropertySearchResponse, error)
	// ValuationSummary fetches the consumer AVM summary for a property id.
	ValuationSummary(ctx context.Context, token, propertyID string) (*ValuationResponse, error)
}

// TokenResponse is the OAuth token exchange response.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// PropertySearchResponse holds the property matches for an address search.
type PropertySearchResponse struct {
	Data []Property `json:"data"`
}

// Property is a single property match.
type Property struct {
	CoreLogicPropertyID string          `json:"corelogicPropertyId"`
	V1PropertyID        string          `json:"v1PropertyId"`
	Clip                string          `json:"clip"`
	UniversalParcelID   string          `json:"universalParcelId"`
	PropertyAddress     PropertyAddress `json:"propertyAddress"`
}

// PropertyAddress is the provider's normalized address for a match.
type PropertyAddress struct {
	StreetAddress string `json:"streetAddress"`
	UnitNumber    string `json:"unitNumber,omitempty"`
	City          string `json:"city"`
	State         string `json:"state"`
	ZipCode       string `json:"zipCode"`
}

// ID returns the provider-assigned property id, preferring the modern one.
func (p Property) ID() string {
	if p.CoreLogicPropertyID != "" {
		return p.CoreLogicPropertyID
	}
	return p.V1PropertyID
}

// ClipID returns the parcel identifier, falling back to the universal id.
func (p Property) ClipID() string {
	if p.Clip != "" {
		return p.Clip
	}
	return p.UniversalParcelID
}

// V1ID returns the legacy property id, falling back to the modern one.
func (p Property) V1ID() string {
	if p.V1PropertyID != "" {
		return p.V1PropertyID
	}
	return p.CoreLogicPropertyID
}

// ValuationResponse is the AVM summary response.
type ValuationResponse struct {
	Summary ValuationSummary `json:"summary"`
}

// ValuationSummary holds the estimate values. EstimatedValue is a pointer so
// that an absent valuation is distinguishable from a zero one.
type ValuationSummary struct {
	EstimatedValue *int64 `json:"estimatedValue"`
	LowValue       int64  `json:"lowValue"`
	HighValue      int64  `json:"highValue"`
	ProcessedDate  string `json:"processedDate"`
}

// StatusError is returned when CoreLogic responds with a non-2xx status. The
// raw body is preserved so callers can propagate upstream details verbatim.
type StatusError struct {
	StatusCode int
	Body       json.RawMessage
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("corelogic: status %d: %s", e.StatusCode, string(e.Body))
}

// Option configures the CoreLogic client.
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

// WithRateLimit sets a per-second rate limit across all API calls.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

type httpClient struct {
	clientKey    string
	clientSecret string
	baseURL      string
	http         *http.Client
	limiter      *rate.Limiter
}

// NewClient creates a new CoreLogic client.
func NewClient(clientKey, clientSecret string, opts ...Option) Client {
	c := &httpClient{
		clientKey:    clientKey,
		clientSecret: clientSecret,
		baseURL:      "https://api-prod.corelogic.com",
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

// wait blocks until the rate limiter allows one event, or ctx is cancelled.
func (c *httpClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// do executes a single request attempt and returns the body and status.
// CoreLogic calls are deliberately single-attempt: upstream failures are
// propagated to the caller without retry or backoff.
func (c *httpClient) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, eris.Wrap(err, "corelogic: read response body")
	}
	return body, resp.StatusCode, nil
}

func (c *httpClient) Token(ctx context.Context) (string, error) {
	if c.clientKey == "" || c.clientSecret == "" {
		return "", eris.New("corelogic: client credentials not configured")
	}
	if err := c.wait(ctx); err != nil {
		return "", eris.Wrap(err, "corelogic: rate limit")
	}

	reqURL := c.baseURL + "/oauth/token?grant_type=client_credentials"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "corelogic: create token request")
	}

	creds := base64.StdEncoding.EncodeToString([]byte(c.clientKey + ":" + c.clientSecret))
	req.Header.Set("Authorization", "Basic "+creds)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, statusCode, err := c.do(req)
	if err != nil {
		return "", eris.Wrap(err, "corelogic: token request failed")
	}

	if statusCode != http.StatusOK {
		return "", &StatusError{StatusCode: statusCode, Body: body}
	}

	var result TokenResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", eris.Wrap(err, "corelogic: unmarshal token response")
	}
	if result.AccessToken == "" {
		return "", &StatusError{StatusCode: statusCode, Body: body}
	}

	return result.AccessToken, nil
}

func (c *httpClient) SearchProperty(ctx context.Context, token, streetAddress, zipcode string) (*PropertySearchResponse, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "corelogic: rate limit")
	}

	params := url.Values{
		"address": {streetAddress},
		"zip5":    {zipcode},
	}
	reqURL := c.baseURL + "/property?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "corelogic: create search request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", mediaType)

	body, statusCode, err := c.do(req)
	if err != nil {
		return nil, eris.Wrap(err, "corelogic: search request failed")
	}

	if statusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: statusCode, Body: body}
	}

	var result PropertySearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "corelogic: unmarshal search response")
	}

	return &result, nil
}

func (c *httpClient) ValuationSummary(ctx context.Context, token, propertyID string) (*ValuationResponse, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "corelogic: rate limit")
	}

	reqURL := fmt.Sprintf("%s/property/%s/avm/thv/thvConsumers/summary", c.baseURL, url.PathEscape(propertyID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "corelogic: create valuation request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", mediaType)

	body, statusCode, err := c.do(req)
	if err != nil {
		return nil, eris.Wrap(err, "corelogic: valuation request failed")
	}

	if statusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: statusCode, Body: body}
	}

	var result ValuationResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "corelogic: unmarshal valuation response")
	}

	return &result, nil
}
