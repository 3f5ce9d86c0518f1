// Package handler provides HTTP request handlers for the inventory API.
package handler

import (
	"io"

	"github.com/vyrodovalexey/inventory-store/internal/model"
	"github.com/vyrodovalexey/inventory-store/internal/store"
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

// Inventory is the store surface the handlers need. store.Guarded satisfies it.
type Inventory interface {
	store.Store
	Len() int
	Report(w io.Writer) error
	Update(fn func(inv *store.Inventory) error) error
}

// Publisher receives every stock event produced by the handlers.
type Publisher interface {
	Publish(event model.StockEvent)
}

type nopPublisher struct{}

func (nopPublisher) Publish(model.StockEvent) {}
