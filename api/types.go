// Package api - API types for freight quotes
package api

import (
	"time"

	"freight-pricing/core/quote"
)

// Response statuses
const (
	StatusSuccess  = "success"
	StatusFallback = "fallback"
	StatusError    = "error"
)

// QuoteResponse is the output of POST /quote
type QuoteResponse struct {
	// Request tracking
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`

	// Status is "fallback" when the linear fallback priced the request
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`

	Quote *quote.Quote `json:"quote,omitempty"`

	Errors []ErrorDetail `json:"errors,omitempty"`
}

// BatchRequest is the input to POST /quote/batch
type BatchRequest struct {
	Requests []quote.Request `json:"requests"`
}

// BatchItem is one result of a batch; exactly one of Quote and Error is set
type BatchItem struct {
	Index int          `json:"index"`
	Quote *quote.Quote `json:"quote,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`
}

// BatchResponse is the output of POST /quote/batch
type BatchResponse struct {
	RequestID string      `json:"request_id"`
	Timestamp time.Time   `json:"timestamp"`
	Results   []BatchItem `json:"results"`
	Failed    int         `json:"failed"`
}

// FormulaSummary describes a loaded formula
type FormulaSummary struct {
	ID              string   `json:"id"`
	Name            string   `json:"name,omitempty"`
	Formula         string   `json:"formula"`
	Tiers           []string `json:"tiers"`
	MinimumDistance float64  `json:"minimum_distance"`
	Currency        string   `json:"currency,omitempty"`
	Fingerprint     string   `json:"fingerprint"`
}

// FormulasResponse is the output of GET /formulas
type FormulasResponse struct {
	Formulas []FormulaSummary `json:"formulas"`
	Count    int              `json:"count"`
}

// ErrorDetail provides error information
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}
