package etsy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyword-median/config"
	"keyword-median/models"
	"keyword-median/utils"
)

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		APIKey:           "test-key",
		ListingsAPIURL:   baseURL,
		PageSize:         100,
		MaxOffset:        5000,
		MaxRetries:       1,
		FetchTimeoutSecs: 5,
	}
}

func TestFetchPageSendsQueryAndKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/application/listings/active", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))

		q := r.URL.Query()
		assert.Equal(t, "100", q.Get("limit"))
		assert.Equal(t, "200", q.Get("offset"))
		assert.Equal(t, "created", q.Get("sort_on"))
		assert.Equal(t, "desc", q.Get("sort_order"))

		json.NewEncoder(w).Encode(models.ListingPage{
			Count: 2,
			Results: []models.ListingItem{
				{ListingID: 1, Title: "Red Car", Views: 10},
				{ListingID: 2, Title: "Red Bike", Views: 20},
			},
		})
	}))
	defer server.Close()

	client := New(testConfig(server.URL), utils.NewLogger())
	items, err := client.FetchPage(context.Background(), 100, 200)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Red Bike", items[1].Title)
	assert.Equal(t, int64(20), items[1].Views)
}

func TestFetchPageStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer server.Close()

	client := New(testConfig(server.URL), utils.NewLogger())
	_, err := client.FetchPage(context.Background(), 100, 0)
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "rate limited")
}

func TestFetchPageMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results": [`))
	}))
	defer server.Close()

	client := New(testConfig(server.URL), utils.NewLogger())
	_, err := client.FetchPage(context.Background(), 100, 0)
	assert.ErrorContains(t, err, "decode response")
}

func TestFetchPageNoRetryByDefault(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := New(testConfig(server.URL), utils.NewLogger())
	_, err := client.FetchPage(context.Background(), 100, 0)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDefaultBaseURL(t *testing.T) {
	cfg := testConfig("")
	client := New(cfg, utils.NewLogger())
	assert.Equal(t, DefaultBaseURL, client.baseURL)

	client = New(cfg, utils.NewLogger(), WithBaseURL("http://proxy.local/"))
	assert.Equal(t, "http://proxy.local", client.baseURL)
}
