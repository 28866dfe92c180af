// Package server implements the HTTP surface over the document store.
//
// It exposes only the store's boundary contract (find, insert, update,
// delete, audit append, health); the library application's business routes
// live elsewhere and call the store directly.
package server

import (
	"net/http"

	"github.com/maruel/bibdb/internal/docstore"
	"github.com/maruel/bibdb/internal/server/ratelimit"
)

// NewRouter creates and configures the HTTP router. limiter may be nil to
// disable write rate limiting.
func NewRouter(store *docstore.Store, limiter *ratelimit.Limiter) http.Handler {
	h := &handler{store: store, limiter: limiter}
	mux := &http.ServeMux{}

	mux.HandleFunc("GET /api/health", h.health)
	mux.HandleFunc("GET /api/collections", h.listCollections)
	mux.HandleFunc("GET /api/collections/{name}", h.find)

	// Write endpoints go through the rate limiter.
	mux.Handle("POST /api/collections/{name}", h.limited(h.insert))
	mux.Handle("POST /api/collections/{name}/update", h.limited(h.update))
	mux.Handle("POST /api/collections/{name}/delete", h.limited(h.delete))
	mux.Handle("POST /api/audit", h.limited(h.appendAudit))

	return mux
}
