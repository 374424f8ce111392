// Package places wraps the Google Places web services used by the address
// wizard: autocomplete predictions, place details with normalized address
// components, and static map / street-view image URL builders.
package places

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// The site biases autocomplete toward the Las Vegas valley.
const defaultLocationBias = "rectangle:36.0219,-115.3129|36.3179,-114.9669"

// Client defines the Places operations used by the wizard.
type Client interface {
	// Autocomplete returns US address predictions for a partial input.
	Autocomplete(ctx context.Context, input string) ([]Prediction, error)
	// Details resolves a place id to normalized address parts.
	Details(ctx context.Context, placeID string) (*Details, error)
}

// Prediction is a single autocomplete suggestion.
type Prediction struct {
	Description string `json:"description"`
	PlaceID     string `json:"place_id"`
}

// Details holds normalized address components for a selected place.
type Details struct {
	FullAddress  string
	StreetNumber string
	Route        string
	UnitNumber   string
	City         string
	State        string
	Country      string
	Zipcode      string
	Latitude     *float64
	Longitude    *float64
}

// StreetAddress joins the street number and route, e.g. "123 Main St".
func (d *Details) StreetAddress() string {
	return strings.TrimSpace(d.StreetNumber + " " + d.Route)
}

type autocompleteResponse struct {
	Status      string       `json:"status"`
	Predictions []Prediction `json:"predictions"`
}

type detailsResponse struct {
	Status string `json:"status"`
	Result struct {
		FormattedAddress  string `json:"formatted_address"`
		AddressComponents []struct {
			LongName  string   `json:"long_name"`
			ShortName string   `json:"short_name"`
			Types     []string `json:"types"`
		} `json:"address_components"`
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"result"`
}

// Option configures the Places client.
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

// WithLocationBias overrides the rectangular autocomplete bias.
func WithLocationBias(bias string) Option {
	return func(c *httpClient) {
		c.locationBias = bias
	}
}

type httpClient struct {
	apiKey       string
	baseURL      string
	locationBias string
	http         *http.Client
}

// NewClient creates a new Places client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:       apiKey,
		baseURL:      "https://maps.googleapis.com",
		locationBias: defaultLocationBias,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	params.Set("key", c.apiKey)
	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "places: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "places: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("places: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "places: read response body")
	}
	return body, nil
}

func (c *httpClient) Autocomplete(ctx context.Context, input string) ([]Prediction, error) {
	params := url.Values{
		"input":      {input},
		"components": {"country:us"},
	}
	if c.locationBias != "" {
		params.Set("locationbias", c.locationBias)
	}

	body, err := c.get(ctx, "/maps/api/place/autocomplete/json", params)
	if err != nil {
		return nil, err
	}

	var result autocompleteResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "places: unmarshal autocomplete response")
	}

	// ZERO_RESULTS is an empty answer, not an error.
	if result.Status == "ZERO_RESULTS" {
		return nil, nil
	}
	if result.Status != "OK" {
		return nil, eris.Errorf("places: autocomplete status %s", result.Status)
	}

	return result.Predictions, nil
}

func (c *httpClient) Details(ctx context.Context, placeID string) (*Details, error) {
	params := url.Values{
		"place_id": {placeID},
		"fields":   {"address_component,formatted_address,geometry"},
	}

	body, err := c.get(ctx, "/maps/api/place/details/json", params)
	if err != nil {
		return nil, err
	}

	var result detailsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "places: unmarshal details response")
	}

	if result.Status != "OK" {
		return nil, eris.Errorf("places: details status %s", result.Status)
	}

	component := func(typ string) string {
		for _, comp := range result.Result.AddressComponents {
			for _, t := range comp.Types {
				if t == typ {
					return comp.LongName
				}
			}
		}
		return ""
	}

	city := component("locality")
	if city == "" {
		city = component("administrative_area_level_2")
	}

	lat := result.Result.Geometry.Location.Lat
	lng := result.Result.Geometry.Location.Lng

	return &Details{
		FullAddress:  result.Result.FormattedAddress,
		StreetNumber: component("street_number"),
		Route:        component("route"),
		UnitNumber:   component("subpremise"),
		City:         city,
		State:        component("administrative_area_level_1"),
		Country:      component("country"),
		Zipcode:      component("postal_code"),
		Latitude:     &lat,
		Longitude:    &lng,
	}, nil
}
