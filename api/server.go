package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"

	"keyword-median/models"
	"keyword-median/services"
	"keyword-median/utils"
)

const requestIDHeader = "X-Request-ID"

// FetchRunner runs one fetch pass.
type FetchRunner interface {
	Run(ctx context.Context) (*models.FetchResult, error)
}

// AggregateRunner rebuilds the word index and returns the listings read.
type AggregateRunner interface {
	Run(ctx context.Context) ([]*models.Listing, []*models.WordMedian, error)
}

// MedianLookup answers per-word median queries.
type MedianLookup interface {
	Median(ctx context.Context, word string) (int64, error)
}

// Pinger reports store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server exposes the fetch, aggregate and lookup stages over HTTP.
type Server struct {
	fetcher    FetchRunner
	aggregator AggregateRunner
	lookup     MedianLookup
	store      Pinger
	logger     *utils.Logger
}

func NewServer(fetcher FetchRunner, aggregator AggregateRunner, lookup MedianLookup, store Pinger, logger *utils.Logger) *Server {
	return &Server{
		fetcher:    fetcher,
		aggregator: aggregator,
		lookup:     lookup,
		store:      store,
		logger:     logger,
	}
}

// Handler returns the routed handler with CORS open to every origin.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/data", s.handleFetch)
	mux.HandleFunc("GET /api/mongo-data", s.handleAggregate)
	mux.HandleFunc("GET /api/calculate-median/{word}", s.handleMedian)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{requestIDHeader},
	})
	return s.withRequestLog(c.Handler(mux))
}

type fetchResponse struct {
	Success bool `json:"success"`
	*models.FetchResult
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	result, err := s.fetcher.Run(r.Context())
	if err != nil {
		s.internalError(w, r, "fetching data", err)
		return
	}
	writeJSON(w, http.StatusOK, fetchResponse{Success: true, FetchResult: result})
}

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	listings, _, err := s.aggregator.Run(r.Context())
	if err != nil {
		s.internalError(w, r, "aggregating stored data", err)
		return
	}
	if listings == nil {
		listings = []*models.Listing{}
	}
	writeJSON(w, http.StatusOK, listings)
}

func (s *Server) handleMedian(w http.ResponseWriter, r *http.Request) {
	word := r.PathValue("word")

	median, err := s.lookup.Median(r.Context(), word)
	if errors.Is(err, services.ErrWordNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Word not found"})
		return
	}
	if err != nil {
		s.internalError(w, r, "calculating median", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"median": median})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.internalError(w, r, "pinging store", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.logger.Error("[api] %s %s: error %s: %v", w.Header().Get(requestIDHeader), r.URL.Path, op, err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Info("[api] %s %s %s → %d (%v)", id, r.Method, r.URL.Path, rec.status,
			time.Since(start).Round(time.Millisecond))
	})
}
