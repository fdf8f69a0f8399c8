// Package handler provides the HTTP and WebSocket handlers of the storefront
// companion service.
package handler

import (
	"github.com/vyrodovalexey/gamestore/internal/browse"
	"github.com/vyrodovalexey/gamestore/internal/model"
)

// Version is the application version.
const Version = "1.0.0"

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status string `json:"status"`
}

// SessionView is the session as presented to views.
type SessionView struct {
	Authenticated bool        `json:"authenticated"`
	User          *model.User `json:"user"`
}

// ValidateResponse is the result of a session check against the backend.
type ValidateResponse struct {
	Valid bool `json:"valid"`
	SessionView
}

// QuantityRequest is the body of a quantity change.
type QuantityRequest struct {
	Quantity *int `json:"quantity"`
}

// ListingsResponse is one page of the unified product grid.
type ListingsResponse struct {
	browse.Page[browse.Listing]
	Categories  []string            `json:"categories"`
	PriceRanges []browse.PriceRange `json:"priceRanges"`
}
