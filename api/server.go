// Package api - Thin HTTP layer over the quote service
// The API is ONLY responsible for: decoding requests, calling the service, encoding results.
package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"freight-pricing/core/formula"
	"freight-pricing/core/quote"
	"freight-pricing/internal/errors"
	"freight-pricing/internal/logging"
)

// maxBatchSize caps the requests accepted by POST /quote/batch
const maxBatchSize = 500

// maxBodyBytes caps request bodies
const maxBodyBytes = 1 << 20

// Server is the API server
type Server struct {
	service    *quote.Service
	mux        *http.ServeMux
	handler    http.Handler
	version    string
	batchLimit int
	logger     *zap.Logger
}

// Option configures a Server
type Option func(*Server)

// WithBatchConcurrency bounds concurrent quotes within one batch
func WithBatchConcurrency(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.batchLimit = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new API server
func NewServer(service *quote.Service, version string, opts ...Option) *Server {
	s := &Server{
		service:    service,
		mux:        http.NewServeMux(),
		version:    version,
		batchLimit: 8,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Named("api")
	}

	s.registerRoutes()
	s.handler = withRequestID(logRequests(s.logger, recoverPanics(s.logger, s.mux)))
	return s
}

// registerRoutes registers all API routes
func (s *Server) registerRoutes() {
	// Core endpoints
	s.mux.HandleFunc("POST /quote", s.handleQuote)
	s.mux.HandleFunc("POST /quote/batch", s.handleBatch)
	s.mux.HandleFunc("GET /formulas", s.handleFormulas)

	// Supporting endpoints
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /version", s.handleVersion)
}

// handleQuote handles POST /quote
func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	requestID := RequestID(r.Context())

	var req quote.Request
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, requestID, "INVALID_JSON", err, http.StatusBadRequest)
		return
	}

	q, err := s.service.Quote(r.Context(), req)
	if err != nil {
		s.writeError(w, requestID, errorCode(err), err, statusFor(err))
		return
	}

	resp := &QuoteResponse{
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
		Status:    StatusSuccess,
		Quote:     q,
	}
	if q.Prices.Fallback {
		resp.Status = StatusFallback
		resp.Message = "formula could not be evaluated, prices use the fallback calculation"
	}
	s.writeJSON(w, resp, http.StatusOK)
}

// handleBatch handles POST /quote/batch. Items fail independently.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	requestID := RequestID(r.Context())

	var req BatchRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, requestID, "INVALID_JSON", err, http.StatusBadRequest)
		return
	}
	if len(req.Requests) == 0 {
		s.writeError(w, requestID, "VALIDATION_ERROR", errors.Input("requests must not be empty"), http.StatusBadRequest)
		return
	}
	if len(req.Requests) > maxBatchSize {
		s.writeError(w, requestID, "VALIDATION_ERROR",
			errors.Inputf("batch of %d exceeds the limit of %d", len(req.Requests), maxBatchSize),
			http.StatusBadRequest)
		return
	}

	results := s.quoteAll(r.Context(), req.Requests)

	resp := &BatchResponse{
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
		Results:   results,
	}
	for _, item := range results {
		if item.Error != nil {
			resp.Failed++
		}
	}
	s.writeJSON(w, resp, http.StatusOK)
}

func (s *Server) quoteAll(ctx context.Context, reqs []quote.Request) []BatchItem {
	results := make([]BatchItem, len(reqs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchLimit)
	for i, req := range reqs {
		g.Go(func() error {
			results[i].Index = i
			q, err := s.service.Quote(ctx, req)
			if err != nil {
				results[i].Error = toErrorDetail(err)
				return nil
			}
			results[i].Quote = q
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// handleFormulas handles GET /formulas
func (s *Server) handleFormulas(w http.ResponseWriter, r *http.Request) {
	defs := s.service.Formulas()
	resp := &FormulasResponse{
		Formulas: make([]FormulaSummary, 0, len(defs)),
		Count:    len(defs),
	}
	for _, def := range defs {
		resp.Formulas = append(resp.Formulas, summarize(def))
	}
	s.writeJSON(w, resp, http.StatusOK)
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]interface{}{
		"status":   "healthy",
		"version":  s.version,
		"formulas": len(s.service.Formulas()),
		"time":     time.Now().UTC().Format(time.RFC3339),
	}, http.StatusOK)
}

// handleVersion handles GET /version
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{
		"version":     s.version,
		"engine":      "freight-pricing",
		"api_version": "v1",
	}, http.StatusOK)
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, requestID, code string, err error, status int) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("request_id", requestID), zap.Error(err))
	} else {
		s.logger.Debug("request rejected", zap.String("request_id", requestID), zap.Error(err))
	}

	detail := toErrorDetail(err)
	detail.Code = code
	s.writeJSON(w, &QuoteResponse{
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
		Status:    StatusError,
		Message:   detail.Message,
		Errors:    []ErrorDetail{*detail},
	}, status)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Helper functions

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(errors.TypeInput, "invalid request body", err)
	}
	return nil
}

func summarize(def *quote.Definition) FormulaSummary {
	tiers := make([]string, len(def.Tiers))
	for i, t := range def.Tiers {
		tiers[i] = t.Name
	}
	return FormulaSummary{
		ID:              def.ID,
		Name:            def.Name,
		Formula:         formula.Display(def.Tokens, def.VariableNames()),
		Tiers:           tiers,
		MinimumDistance: def.MinimumDistance,
		Currency:        def.Currency,
		Fingerprint:     string(def.Fingerprint()),
	}
}

// statusFor maps error types to HTTP status codes
func statusFor(err error) int {
	switch errors.TypeOf(err) {
	case errors.TypeInput:
		return http.StatusBadRequest
	case errors.TypeNotFound:
		return http.StatusNotFound
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func errorCode(err error) string {
	switch errors.TypeOf(err) {
	case errors.TypeInput:
		return "VALIDATION_ERROR"
	case errors.TypeNotFound:
		return "NOT_FOUND"
	}
	return "QUOTE_ERROR"
}

func toErrorDetail(err error) *ErrorDetail {
	detail := &ErrorDetail{Code: errorCode(err), Message: err.Error()}
	var e *errors.Error
	if stderrors.As(err, &e) {
		detail.Message = e.Message
		if e.Cause != nil {
			detail.Message += ": " + e.Cause.Error()
		}
		detail.Context = e.Context
	}
	return detail
}
