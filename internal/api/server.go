// Package api exposes the enrichment subsystem over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/dlnorman/linkhoard/internal/enrich"
	"github.com/dlnorman/linkhoard/internal/fetch"
	"github.com/dlnorman/linkhoard/internal/metrics"
)

// BatchRunner triggers a single queue pass on demand.
type BatchRunner interface {
	RunOnce(ctx context.Context) (int, error)
}

// Server carries the route handlers' dependencies.
type Server struct {
	store  enrich.Store
	runner BatchRunner
	logger *zap.Logger
}

// New builds the HTTP server around a store and a runner.
func New(store enrich.Store, runner BatchRunner, logger *zap.Logger) *Server {
	return &Server{store: store, runner: runner, logger: logger}
}

// Router mounts all routes with shared middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/checks/recent", s.handleRecentChecks)
		r.Get("/subjects", s.handleListSubjects)
		r.Post("/subjects", s.handleCreateSubject)
		r.Post("/subjects/{id}/enrich", s.handleEnrichSubject)
		r.Post("/checks", s.handleCheckAll)
		r.Post("/run", s.handleRun)
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStatus reports per-kind job counts plus the broken link total.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	kinds := []enrich.JobKind{enrich.KindArchive, enrich.KindThumbnail, enrich.KindCheckURL}

	summaries := make(map[string]enrich.StatusSummary, len(kinds))
	for _, kind := range kinds {
		sum, err := s.store.StatusSummary(ctx, kind)
		if err != nil {
			s.serverError(w, r, err)
			return
		}
		summaries[string(kind)] = sum
	}
	broken, err := s.store.BrokenCount(ctx)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":         summaries,
		"broken_links": broken,
	})
}

func (s *Server) handleRecentChecks(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = n
	}
	records, err := s.store.RecentChecks(r.Context(), limit)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if records == nil {
		records = []enrich.CheckRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"checks": records})
}

func (s *Server) handleListSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := s.store.ListSubjects(r.Context())
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if subjects == nil {
		subjects = []enrich.Subject{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"subjects": subjects})
}

type createSubjectRequest struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// handleCreateSubject stores a bookmark and queues its initial archive and
// thumbnail jobs.
func (s *Server) handleCreateSubject(w http.ResponseWriter, r *http.Request) {
	var req createSubjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	normalized, err := fetch.NormalizeURL(req.URL)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid url")
		return
	}
	ctx := r.Context()
	subject, err := s.store.CreateSubject(ctx, normalized, req.Title)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if err := s.enqueueEnrichment(ctx, subject); err != nil {
		s.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, subject)
}

// handleEnrichSubject re-queues archive and thumbnail jobs for an existing
// subject.
func (s *Server) handleEnrichSubject(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid subject id")
		return
	}
	ctx := r.Context()
	subject, err := s.store.GetSubject(ctx, id)
	if err != nil {
		if errors.Is(err, enrich.ErrNotFound) {
			writeError(w, http.StatusNotFound, "subject not found")
			return
		}
		s.serverError(w, r, err)
		return
	}
	if err := s.enqueueEnrichment(ctx, subject); err != nil {
		s.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// handleCheckAll enqueues a check_url job for every subject that does not
// already have one pending or processing.
func (s *Server) handleCheckAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjects, err := s.store.ListSubjects(ctx)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	queued, skipped := 0, 0
	for _, subject := range subjects {
		live, err := s.store.HasLiveCheck(ctx, subject.ID)
		if err != nil {
			s.serverError(w, r, err)
			return
		}
		if live {
			skipped++
			continue
		}
		if _, err := s.store.Enqueue(ctx, subject.ID, enrich.KindCheckURL, subject.URL); err != nil {
			s.serverError(w, r, err)
			return
		}
		queued++
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"queued": queued, "skipped": skipped})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	n, err := s.runner.RunOnce(r.Context())
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"processed": n})
}

// enqueueEnrichment queues archive and thumbnail work for a subject. The
// subject URL travels in the payload so a leased job carries the target it
// was queued for even if the subject row changes later.
func (s *Server) enqueueEnrichment(ctx context.Context, subject enrich.Subject) error {
	for _, kind := range []enrich.JobKind{enrich.KindArchive, enrich.KindThumbnail} {
		if _, err := s.store.Enqueue(ctx, subject.ID, kind, subject.URL); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
