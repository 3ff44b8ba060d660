package handlers

import (
	"context"

	"github.com/avisek/frontend-mentor-solutions/internal/registry"
)

// HealthRequest is the request type for health check (empty).
type HealthRequest struct{}

// HealthResponse is the response for health check.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version,omitempty"`
	Solutions int    `json:"solutions"`
}

// HealthHandler reports liveness and the size of the current registry.
type HealthHandler struct {
	store   *registry.Store
	version string
}

// NewHealthHandler creates a HealthHandler reporting version.
func NewHealthHandler(store *registry.Store, version string) *HealthHandler {
	return &HealthHandler{store: store, version: version}
}

// Health returns the health status of the server.
func (h *HealthHandler) Health(ctx context.Context, req HealthRequest) (*HealthResponse, error) {
	return &HealthResponse{Status: "ok", Version: h.version, Solutions: h.store.Registry().Len()}, nil
}
