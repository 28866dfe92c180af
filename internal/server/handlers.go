package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/maruel/bibdb/internal/docstore"
	"github.com/maruel/bibdb/internal/server/ratelimit"
)

// maxBodyBytes limits request body size for write endpoints.
const maxBodyBytes = 1 << 20

type handler struct {
	store   *docstore.Store
	limiter *ratelimit.Limiter
}

type errorResponse struct {
	Error string `json:"error"`
}

type collectionInfo struct {
	Name      string `json:"name"`
	Documents int    `json:"documents"`
}

type findResponse struct {
	Documents []docstore.Document `json:"documents"`
	Count     int                 `json:"count"`
}

type documentResponse struct {
	Document docstore.Document `json:"document"`
	Matched  bool              `json:"matched"`
}

// mutationRequest is the body shape for update and delete endpoints.
type mutationRequest struct {
	Filter docstore.Filter   `json:"filter"`
	Patch  docstore.Document `json:"patch,omitempty"`
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	health := h.store.TestConnection()
	status := http.StatusOK
	if !health.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func (h *handler) listCollections(w http.ResponseWriter, r *http.Request) {
	names := h.store.Collections()
	out := make([]collectionInfo, 0, len(names))
	for _, name := range names {
		n, err := h.store.Count(name)
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		out = append(out, collectionInfo{Name: name, Documents: n})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) find(w http.ResponseWriter, r *http.Request) {
	// Query parameters form the equality predicate; dotted keys reach
	// nested fields. Values are matched as strings.
	filter := docstore.Filter{}
	for key, values := range r.URL.Query() {
		filter[key] = values[0]
	}
	docs, err := h.store.Find(r.PathValue("name"), filter)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, findResponse{Documents: docs, Count: len(docs)})
}

func (h *handler) insert(w http.ResponseWriter, r *http.Request) {
	var doc docstore.Document
	if !decodeBody(w, r, &doc) {
		return
	}
	stored, err := h.store.Insert(r.PathValue("name"), doc)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, documentResponse{Document: stored, Matched: true})
}

func (h *handler) update(w http.ResponseWriter, r *http.Request) {
	var req mutationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	doc, err := h.store.Update(r.PathValue("name"), req.Filter, req.Patch)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, documentResponse{Document: doc, Matched: doc != nil})
}

func (h *handler) delete(w http.ResponseWriter, r *http.Request) {
	var req mutationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	doc, err := h.store.Delete(r.PathValue("name"), req.Filter)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, documentResponse{Document: doc, Matched: doc != nil})
}

func (h *handler) appendAudit(w http.ResponseWriter, r *http.Request) {
	var entry docstore.Document
	if !decodeBody(w, r, &entry) {
		return
	}
	stored, err := h.store.AppendAudit(entry)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, documentResponse{Document: stored, Matched: true})
}

// limited wraps a write handler with the per-client rate limiter.
func (h *handler) limited(next http.HandlerFunc) http.Handler {
	if h.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result := h.limiter.Allow(clientIP(r))
		if !result.Allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())))
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
			return
		}
		next(w, r)
	})
}

// writeStoreError maps store failures to HTTP statuses. Absent results
// never reach here; they are normal responses.
func (h *handler) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, docstore.ErrUnknownCollection) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	slog.ErrorContext(r.Context(), "Storage operation failed", "method", r.Method, "path", r.URL.Path, "err", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "storage failure"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid request body: %v", err)})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "err", err)
	}
}

// clientIP extracts the client address without the port for rate limit
// bucketing.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
