package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyword-median/models"
	"keyword-median/services"
	"keyword-median/storage"
	"keyword-median/utils"
)

type stubFetcher struct {
	result *models.FetchResult
	err    error
}

func (s *stubFetcher) Run(context.Context) (*models.FetchResult, error) { return s.result, s.err }

type stubAggregator struct {
	listings []*models.Listing
	err      error
}

func (s *stubAggregator) Run(context.Context) ([]*models.Listing, []*models.WordMedian, error) {
	return s.listings, nil, s.err
}

type stubLookup struct {
	medians map[string]int64
	err     error
}

func (s *stubLookup) Median(_ context.Context, word string) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	m, ok := s.medians[word]
	if !ok {
		return 0, services.ErrWordNotFound
	}
	return m, nil
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func quietLogger() *utils.Logger { return utils.NewLoggerTo(&bytes.Buffer{}, utils.LevelError) }

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestFetchSuccess(t *testing.T) {
	srv := NewServer(&stubFetcher{result: &models.FetchResult{PagesFetched: 3, Inserted: 5, StopReason: models.StopShortPage}},
		&stubAggregator{}, &stubLookup{}, stubPinger{}, quietLogger())

	rec := do(t, srv.Handler(), http.MethodGet, "/api/data")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(3), body["pagesFetched"])
	assert.Equal(t, float64(5), body["inserted"])
	assert.Equal(t, "short_page", body["stopReason"])
}

func TestFetchFailureIsGeneric(t *testing.T) {
	srv := NewServer(&stubFetcher{err: errors.New("dial tcp: connection refused")},
		&stubAggregator{}, &stubLookup{}, stubPinger{}, quietLogger())

	rec := do(t, srv.Handler(), http.MethodGet, "/api/data")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal Server Error"}`, rec.Body.String())
}

func TestAggregateReturnsListings(t *testing.T) {
	srv := NewServer(&stubFetcher{}, &stubAggregator{listings: []*models.Listing{
		{ID: 1, Title: "Red Car", Views: 10},
		{ID: 2, Title: "Red Bike", Views: 20},
	}}, &stubLookup{}, stubPinger{}, quietLogger())

	rec := do(t, srv.Handler(), http.MethodGet, "/api/mongo-data")
	require.Equal(t, http.StatusOK, rec.Code)

	var listings []models.Listing
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listings))
	require.Len(t, listings, 2)
	assert.Equal(t, "Red Bike", listings[1].Title)
}

func TestAggregateEmptyIsArray(t *testing.T) {
	srv := NewServer(&stubFetcher{}, &stubAggregator{}, &stubLookup{}, stubPinger{}, quietLogger())

	rec := do(t, srv.Handler(), http.MethodGet, "/api/mongo-data")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestAggregateFailure(t *testing.T) {
	srv := NewServer(&stubFetcher{}, &stubAggregator{err: errors.New("store down")}, &stubLookup{}, stubPinger{}, quietLogger())

	rec := do(t, srv.Handler(), http.MethodGet, "/api/mongo-data")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal Server Error"}`, rec.Body.String())
}

func TestMedianFoundAndMissing(t *testing.T) {
	srv := NewServer(&stubFetcher{}, &stubAggregator{}, &stubLookup{medians: map[string]int64{"Red": 15}}, stubPinger{}, quietLogger())
	h := srv.Handler()

	rec := do(t, h, http.MethodGet, "/api/calculate-median/Red")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"median":15}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/calculate-median/Boat")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Word not found"}`, rec.Body.String())
}

func TestMedianFailure(t *testing.T) {
	srv := NewServer(&stubFetcher{}, &stubAggregator{}, &stubLookup{err: errors.New("timeout")}, stubPinger{}, quietLogger())

	rec := do(t, srv.Handler(), http.MethodGet, "/api/calculate-median/Red")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealth(t *testing.T) {
	ok := NewServer(&stubFetcher{}, &stubAggregator{}, &stubLookup{}, stubPinger{}, quietLogger())
	assert.Equal(t, http.StatusOK, do(t, ok.Handler(), http.MethodGet, "/healthz").Code)

	down := NewServer(&stubFetcher{}, &stubAggregator{}, &stubLookup{}, stubPinger{err: errors.New("closed")}, quietLogger())
	assert.Equal(t, http.StatusInternalServerError, do(t, down.Handler(), http.MethodGet, "/healthz").Code)
}

func TestCORSAllowsAnyOrigin(t *testing.T) {
	srv := NewServer(&stubFetcher{}, &stubAggregator{}, &stubLookup{medians: map[string]int64{"Red": 15}}, stubPinger{}, quietLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/calculate-median/Red", nil)
	req.Header.Set("Origin", "https://example.org")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDIsPropagated(t *testing.T) {
	srv := NewServer(&stubFetcher{}, &stubAggregator{}, &stubLookup{}, stubPinger{}, quietLogger())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

// TestPipelineOverSQLite drives the real services through the HTTP layer.
func TestPipelineOverSQLite(t *testing.T) {
	ctx := context.Background()
	store, err := storage.Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	defer store.Close()

	logger := quietLogger()
	source := sourceFunc(func(_ context.Context, limit, offset int) ([]models.ListingItem, error) {
		if offset > 0 {
			return nil, nil
		}
		return []models.ListingItem{{Title: "Red Car", Views: 10}, {Title: "Red Bike", Views: 20}}, nil
	})

	srv := NewServer(
		services.NewFetcher(source, store, logger, 100, 5000),
		services.NewAggregator(store, store, logger),
		services.NewLookup(store),
		store,
		logger,
	)
	h := srv.Handler()

	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/data").Code)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/mongo-data").Code)

	rec := do(t, h, http.MethodGet, "/api/calculate-median/Red")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"median":15}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/calculate-median/Boat")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// The store stays usable after a fetch run.
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/data").Code)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz").Code)
}

type sourceFunc func(ctx context.Context, limit, offset int) ([]models.ListingItem, error)

func (f sourceFunc) FetchPage(ctx context.Context, limit, offset int) ([]models.ListingItem, error) {
	return f(ctx, limit, offset)
}
