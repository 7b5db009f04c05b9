// Package api exposes the aggregated market data over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"warp-markets/internal/domain"
	"warp-markets/internal/observability"
	"warp-markets/internal/service"
	"warp-markets/internal/storage"
)

// Server is the HTTP front of the market service.
type Server struct {
	market      *service.Market
	broadcaster *Broadcaster
	metrics     *observability.Metrics
	logger      *log.Logger
	mux         *http.ServeMux
	server      *http.Server
}

// NewServer creates an HTTP server with all routes configured.
func NewServer(addr string, market *service.Market, broadcaster *Broadcaster, metrics *observability.Metrics, logger *log.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		market:      market,
		broadcaster: broadcaster,
		metrics:     metrics,
		logger:      logger,
		mux:         mux,
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/pairs/", s.instrument("pairs", s.handlePairs))
	s.mux.HandleFunc("/tickers/", s.instrument("tickers", s.handleTickers))
	s.mux.HandleFunc("/summary/", s.instrument("summary", s.handleSummary))
	s.mux.HandleFunc("/historical_trades/", s.instrument("historical_trades", s.handleHistoricalTrades))

	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.Handle("/metrics", observability.Handler())
	if s.broadcaster != nil {
		s.mux.HandleFunc("/ws", s.broadcaster.Handler())
	}
}

// Start runs the server until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Printf("HTTP server listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handlePairs(w http.ResponseWriter, r *http.Request) {
	pairs, err := s.market.Pairs(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, pairs)
}

func (s *Server) handleTickers(w http.ResponseWriter, r *http.Request) {
	filter, err := parsePoolIDs(r.URL.Query().Get("pool_ids"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	tickers, err := s.market.Tickers(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, tickers)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	filter, err := parsePoolIDs(r.URL.Query().Get("pool_ids"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	records, err := s.market.Summary(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, records)
}

func (s *Server) handleHistoricalTrades(w http.ResponseWriter, r *http.Request) {
	tickerID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/historical_trades/"), "/")
	if tickerID == "" {
		s.writeError(w, storage.ErrInvalidInput)
		return
	}

	limit, err := intParam(r, "limit", 10)
	if err != nil {
		s.writeError(w, err)
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		s.writeError(w, err)
		return
	}

	trades, err := s.market.HistoricalTrades(r.Context(), tickerID, limit, offset)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if trades == nil {
		trades = []*domain.Trade{}
	}
	s.writeJSON(w, trades)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// instrument wraps a handler with request metrics and a status
// recorder.
func (s *Server) instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		if s.metrics != nil {
			s.metrics.RequestsTotal.WithLabelValues(endpoint, strconv.Itoa(rec.status)).Inc()
			s.metrics.RequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Printf("write response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrUpstream):
		status = http.StatusBadGateway
	case errors.Is(err, storage.ErrInvalidInput), errors.Is(err, errBadParam):
		status = http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	}

	s.logger.Printf("request failed (%d): %v", status, err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// errBadParam marks malformed query parameters.
var errBadParam = errors.New("malformed query parameter")

// parsePoolIDs parses the comma-separated pool_ids allow-list; an empty
// value means no filter.
func parsePoolIDs(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, errBadParam
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errBadParam
	}
	return v, nil
}
