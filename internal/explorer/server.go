package explorer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// Server exposes the explorer database over HTTP.
type Server struct {
	store  *Store
	router chi.Router
}

// NewServer builds the HTTP surface over an explorer store.
func NewServer(store *Store) *Server {
	s := &Server{
		store:  store,
		router: chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

// Router returns the HTTP handler, mainly for tests.
func (s *Server) Router() http.Handler { return s.router }

// ListenAndServe runs the server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Explorer server listening")
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

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Recoverer)
	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/clusters", s.handleListClusters)
	s.router.Get("/api/clusters/{id}", s.handleGetCluster)
	s.router.Get("/api/conversations/{id}", s.handleGetConversation)
	s.router.Get("/api/search", s.handleSearch)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var count int64
	if err := s.store.DB.Model(&ClusterRecord{}).Count(&count).Error; err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "clusters": count})
}

// handleListClusters lists clusters filtered by parent_id or level,
// paginated. Without filters it returns the root clusters.
func (s *Server) handleListClusters(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := s.store.DB.Model(&ClusterRecord{}).Order("count DESC, id ASC")
	switch {
	case r.URL.Query().Has("parent_id"):
		q = q.Where("parent_id = ?", r.URL.Query().Get("parent_id"))
	case r.URL.Query().Has("level"):
		level, err := strconv.Atoi(r.URL.Query().Get("level"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "level must be an integer")
			return
		}
		q = q.Where("level = ?", level)
	default:
		q = q.Where("parent_id = ''")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "query clusters failed")
		return
	}
	var clusters []ClusterRecord
	if err := q.Limit(limit).Offset(offset).Find(&clusters).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "query clusters failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"clusters": clusters,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

func (s *Server) handleGetCluster(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var cluster ClusterRecord
	if err := s.store.DB.First(&cluster, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "cluster not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "query cluster failed")
		return
	}

	var chatIDs []string
	if err := s.store.DB.Model(&ClusterConversation{}).
		Where("cluster_id = ?", id).
		Pluck("chat_id", &chatIDs).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "query cluster members failed")
		return
	}
	var children []ClusterRecord
	if err := s.store.DB.Where("parent_id = ?", id).
		Order("count DESC, id ASC").
		Find(&children).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "query child clusters failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"cluster":  cluster,
		"chat_ids": chatIDs,
		"children": children,
	})
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var conversation ConversationRecord
	if err := s.store.DB.First(&conversation, "chat_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "query conversation failed")
		return
	}
	if err := s.store.DB.Where("chat_id = ?", id).
		Order("seq ASC").
		Find(&conversation.Messages).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "query messages failed")
		return
	}

	var summary SummaryRecord
	resp := map[string]any{"conversation": conversation}
	err := s.store.DB.First(&summary, "chat_id = ?", id).Error
	if err == nil {
		resp["summary"] = summary
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusInternalServerError, "query summary failed")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleSearch runs an FTS5 match over conversation summaries.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "q parameter is required")
		return
	}
	limit, offset, err := pagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := s.store.RawDB().QueryContext(r.Context(), `
		SELECT s.chat_id, s.summary
		FROM summaries_fts f
		JOIN summaries s ON s.rowid = f.rowid
		WHERE summaries_fts MATCH ?
		ORDER BY rank
		LIMIT ? OFFSET ?`, query, limit, offset)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid search query")
		return
	}
	defer rows.Close()

	results := make([]SummaryRecord, 0, limit)
	for rows.Next() {
		var rec SummaryRecord
		if err := rows.Scan(&rec.ChatID, &rec.Summary); err != nil {
			writeError(w, http.StatusInternalServerError, "scan search results failed")
			return
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		writeError(w, http.StatusInternalServerError, "read search results failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"limit":   limit,
		"offset":  offset,
	})
}

func pagination(r *http.Request) (limit, offset int, err error) {
	limit = defaultPageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return 0, 0, fmt.Errorf("limit must be a positive integer")
		}
		if limit > maxPageLimit {
			limit = maxPageLimit
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("offset must be a non-negative integer")
		}
	}
	return limit, offset, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Encode response failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
