// Package api exposes the board over HTTP for the gallery frontend. The
// frontend renders; this API only serves data and applies mutations.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ChristinaDay/InstaBoard/internal/annotate"
	"github.com/ChristinaDay/InstaBoard/internal/board"
	"github.com/ChristinaDay/InstaBoard/internal/domain"
	"github.com/ChristinaDay/InstaBoard/internal/filter"
)

// Server handles HTTP requests for the gallery API
type Server struct {
	board *board.Board
	addr  string
}

// New creates a new API server
func New(b *board.Board, addr string) *Server {
	return &Server{board: b, addr: addr}
}

// Handler builds the route table. Split out from Run for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Posts
	mux.HandleFunc("GET /posts", s.listPosts)
	mux.HandleFunc("GET /posts/{id}", s.getPost)

	// Annotations
	mux.HandleFunc("GET /annotations", s.listAnnotations)
	mux.HandleFunc("PATCH /annotations/{id}", s.patchAnnotation)
	mux.HandleFunc("POST /annotations/{id}/tags", s.addTag)
	mux.HandleFunc("DELETE /annotations/{id}/tags/{tag}", s.removeTag)
	mux.HandleFunc("POST /annotations/bulk-tag", s.bulkTag)
	mux.HandleFunc("GET /annotations/export", s.exportAnnotations)
	mux.HandleFunc("POST /annotations/import", s.importAnnotations)

	// Derived views
	mux.HandleFunc("GET /tags", s.listTags)
	mux.HandleFunc("GET /insights", s.getInsights)
	mux.HandleFunc("GET /map/markers", s.getMarkers)

	// Health check
	mux.HandleFunc("GET /health", s.health)

	return withCORS(mux)
}

// Run starts the HTTP server and shuts it down when ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting api server", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// withCORS adds CORS headers for frontend development
func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// specFromQuery maps filter parameters shared by the posts, insights, and
// marker endpoints.
func specFromQuery(r *http.Request) filter.Spec {
	q := r.URL.Query()

	var cats []domain.Category
	if raw := q.Get("categories"); raw != "" {
		for _, c := range annotate.NormalizeCategories(strings.Split(raw, ",")) {
			cats = append(cats, c)
		}
	}

	return filter.Spec{
		Query:           q.Get("q"),
		TagQuery:        q.Get("tag"),
		LocationQuery:   q.Get("location"),
		VideosOnly:      q.Get("videos_only") == "true",
		NorthstarOnly:   q.Get("northstar_only") == "true",
		CategorizedOnly: q.Get("categorized_only") == "true",
		Categories:      cats,
		HasLocationOnly: q.Get("has_location_only") == "true",
	}
}

func (s *Server) listPosts(w http.ResponseWriter, r *http.Request) {
	matched := s.board.Filter(specFromQuery(r))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"posts":   matched,
		"matched": len(matched),
		"total":   len(s.board.Posts()),
	})
}

func (s *Server) getPost(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	for _, post := range s.board.Posts() {
		if post.ID == id {
			resp := map[string]interface{}{"post": post}
			if ann, ok := s.board.Get(id); ok {
				resp["annotation"] = ann
			}
			writeJSON(w, http.StatusOK, resp)
			return
		}
	}
	writeError(w, http.StatusNotFound, "post not found")
}

func (s *Server) listAnnotations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.board.Annotations())
}

// annotationPatch is the request body for a partial annotation update.
// Absent fields are left unchanged.
type annotationPatch struct {
	Tags       *[]string       `json:"tags"`
	Notes      *string         `json:"notes"`
	Flags      map[string]bool `json:"flags"`
	Categories *[]string       `json:"categories"`
}

func (s *Server) patchAnnotation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req annotationPatch
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	patch := annotate.Patch{Notes: req.Notes, Flags: req.Flags}
	if req.Tags != nil {
		patch.Tags = *req.Tags
		if patch.Tags == nil {
			patch.Tags = []string{}
		}
	}
	if req.Categories != nil {
		patch.Categories = *req.Categories
		if patch.Categories == nil {
			patch.Categories = []string{}
		}
	}

	writeJSON(w, http.StatusOK, s.board.Upsert(id, patch))
}

// TagRequest is the request body for adding a tag
type TagRequest struct {
	Tag string `json:"tag"`
}

func (s *Server) addTag(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req TagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Tag) == "" {
		writeError(w, http.StatusBadRequest, "tag is required")
		return
	}

	writeJSON(w, http.StatusOK, s.board.AddTag(id, req.Tag))
}

func (s *Server) removeTag(w http.ResponseWriter, r *http.Request) {
	ann := s.board.RemoveTag(r.PathValue("id"), r.PathValue("tag"))
	writeJSON(w, http.StatusOK, ann)
}

// BulkTagRequest is the request body for tagging a batch of posts
type BulkTagRequest struct {
	PostIDs []string `json:"postIds"`
	Tag     string   `json:"tag"`
}

func (s *Server) bulkTag(w http.ResponseWriter, r *http.Request) {
	var req BulkTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	changed := s.board.BulkAddTag(req.PostIDs, req.Tag)
	writeJSON(w, http.StatusOK, map[string]int{"changed": changed})
}

func (s *Server) listTags(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"tags": s.board.AllTags()})
}

func (s *Server) getInsights(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")
	if scope == "" {
		scope = "filtered"
	}

	rankings, count := s.board.Insights(specFromQuery(r), scope)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"scope":    scope,
		"count":    count,
		"insights": rankings,
	})
}

func (s *Server) exportAnnotations(w http.ResponseWriter, r *http.Request) {
	data, err := s.board.ExportJSON()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="annotations.json"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) importAnnotations(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read request body")
		return
	}

	if err := s.board.ImportJSON(data); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"records": len(s.board.Annotations())})
}

func (s *Server) getMarkers(w http.ResponseWriter, r *http.Request) {
	markers, labeled := s.board.Markers(specFromQuery(r))
	if markers == nil {
		markers = []board.Marker{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"markers": markers,
		"mapped":  len(markers),
		"labeled": labeled,
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
