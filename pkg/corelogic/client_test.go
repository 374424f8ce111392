package corelogic

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/oauth/token", r.URL.Path)
		assert.Equal(t, "client_credentials", r.URL.Query().Get("grant_type"))

		wantCreds := base64.StdEncoding.EncodeToString([]byte("key:secret"))
		assert.Equal(t, "Basic "+wantCreds, r.Header.Get("Authorization"))
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(TokenResponse{AccessToken: "tok-123", TokenType: "bearer", ExpiresIn: 3600})
	}))
	defer srv.Close()

	client := NewClient("key", "secret", WithBaseURL(srv.URL))
	token, err := client.Token(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)
}

func TestToken_MissingCredentials(t *testing.T) {
	t.Parallel()

	client := NewClient("", "", WithBaseURL("http://unused"))
	_, err := client.Token(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials not configured")
}

func TestToken_UpstreamError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer srv.Close()

	client := NewClient("key", "secret", WithBaseURL(srv.URL))
	_, err := client.Token(context.Background())

	require.Error(t, err)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Contains(t, string(se.Body), "invalid_client")
}

func TestToken_MissingAccessToken(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token_type":"bearer"}`))
	}))
	defer srv.Close()

	client := NewClient("key", "secret", WithBaseURL(srv.URL))
	_, err := client.Token(context.Background())

	require.Error(t, err)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusOK, se.StatusCode)
}

func TestSearchProperty_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/property", r.URL.Path)
		assert.Equal(t, "123 Main St", r.URL.Query().Get("address"))
		assert.Equal(t, "89101", r.URL.Query().Get("zip5"))
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		assert.Equal(t, mediaType, r.Header.Get("Content-Type"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(PropertySearchResponse{Data: []Property{
			{
				CoreLogicPropertyID: "CL-1",
				V1PropertyID:        "V1-1",
				Clip:                "clip-1",
				PropertyAddress: PropertyAddress{
					StreetAddress: "123 MAIN ST",
					City:          "LAS VEGAS",
					State:         "NV",
					ZipCode:       "89101",
				},
			},
		}})
	}))
	defer srv.Close()

	client := NewClient("key", "secret", WithBaseURL(srv.URL))
	got, err := client.SearchProperty(context.Background(), "tok-123", "123 Main St", "89101")

	require.NoError(t, err)
	require.Len(t, got.Data, 1)
	assert.Equal(t, "CL-1", got.Data[0].CoreLogicPropertyID)
	assert.Equal(t, "LAS VEGAS", got.Data[0].PropertyAddress.City)
}

func TestSearchProperty_UpstreamError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"no match"}`))
	}))
	defer srv.Close()

	client := NewClient("key", "secret", WithBaseURL(srv.URL))
	_, err := client.SearchProperty(context.Background(), "tok", "1 Nowhere", "00000")

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Contains(t, string(se.Body), "no match")
}

func TestValuationSummary_Success(t *testing.T) {
	t.Parallel()

	estimated := int64(450000)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/property/CL-1/avm/thv/thvConsumers/summary", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ValuationResponse{Summary: ValuationSummary{
			EstimatedValue: &estimated,
			LowValue:       430000,
			HighValue:      470000,
			ProcessedDate:  "2025-08-01",
		}})
	}))
	defer srv.Close()

	client := NewClient("key", "secret", WithBaseURL(srv.URL))
	got, err := client.ValuationSummary(context.Background(), "tok-123", "CL-1")

	require.NoError(t, err)
	require.NotNil(t, got.Summary.EstimatedValue)
	assert.Equal(t, int64(450000), *got.Summary.EstimatedValue)
	assert.Equal(t, int64(430000), got.Summary.LowValue)
	assert.Equal(t, "2025-08-01", got.Summary.ProcessedDate)
}

func TestValuationSummary_MissingEstimate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"summary":{"lowValue":0,"highValue":0}}`))
	}))
	defer srv.Close()

	client := NewClient("key", "secret", WithBaseURL(srv.URL))
	got, err := client.ValuationSummary(context.Background(), "tok", "CL-1")

	require.NoError(t, err)
	assert.Nil(t, got.Summary.EstimatedValue)
}

func TestPropertyIDFallbacks(t *testing.T) {
	t.Parallel()

	p := Property{V1PropertyID: "V1-9", UniversalParcelID: "UP-9"}
	assert.Equal(t, "V1-9", p.ID())
	assert.Equal(t, "UP-9", p.ClipID())
	assert.Equal(t, "V1-9", p.V1ID())

	p = Property{CoreLogicPropertyID: "CL-9", Clip: "clip-9"}
	assert.Equal(t, "CL-9", p.ID())
	assert.Equal(t, "clip-9", p.ClipID())
	assert.Equal(t, "CL-9", p.V1ID())
}

func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()

	c := NewClient("key", "secret")
	hc := c.(*httpClient)
	assert.Equal(t, "https://api-prod.corelogic.com", hc.baseURL)
	assert.NotNil(t, hc.http)
	assert.Equal(t, 30*time.Second, hc.http.Timeout)
	assert.Nil(t, hc.limiter)
}

func TestWithRateLimit(t *testing.T) {
	t.Parallel()

	c := NewClient("key", "secret", WithRateLimit(5))
	hc := c.(*httpClient)
	assert.NotNil(t, hc.limiter)
}
