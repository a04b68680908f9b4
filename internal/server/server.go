// Package server exposes the operational HTTP surface: health, metrics, and
// read-only JSON views over items and drafts.
package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/driftwire/newsmint/internal/database"
)

const maxPageSize = 100

// Server is the ops HTTP server.
type Server struct {
	db  *database.DB
	mux *http.ServeMux
}

// New creates a server over the store.
func New(db *database.DB) *Server {
	s := &Server{db: db, mux: http.NewServeMux()}
	s.routes()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Serve runs the ops server on the given port until the listener fails.
func Serve(db *database.DB, port int) error {
	s := New(db)
	return http.ListenAndServe(fmt.Sprintf(":%d", port), s.Handler())
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/api/drafts", s.handleDrafts)
	s.mux.HandleFunc("/api/items", s.handleItems)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if _, err := s.db.GetStats(); err != nil {
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("ok\n"))
}

func (s *Server) handleDrafts(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	drafts, err := s.db.ListDrafts(limit, offset)
	if err != nil {
		log.Printf("Error listing drafts: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if drafts == nil {
		drafts = []database.Draft{}
	}
	writeJSON(w, map[string]any{"drafts": drafts})
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = database.StatusNew
	}

	limit, _ := pageParams(r)
	items, err := s.db.GetItemsByStatus(status, limit)
	if err != nil {
		log.Printf("Error listing items: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []database.SourceItem{}
	}
	writeJSON(w, map[string]any{"status": status, "items": items})
}

func pageParams(r *http.Request) (limit, offset int) {
	limit = 25
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}
