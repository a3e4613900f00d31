// Package api exposes a task manager over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/Swind/go-task-manager/core"
	"github.com/Swind/go-task-manager/internal/jobs"
	"github.com/Swind/go-task-manager/task"
)

// Server is the taskctl HTTP API.
type Server struct {
	manager  *task.Manager
	logger   core.Logger
	gatherer prom.Gatherer
	limiter  *rate.Limiter
}

// NewServer creates a server for m. POST /tasks is limited to launchRate
// requests per second with the given burst.
func NewServer(m *task.Manager, logger core.Logger, launchRate float64, burst int) *Server {
	if logger == nil {
		logger = core.NewNoOpLogger()
	}
	return &Server{
		manager: m,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(launchRate), burst),
	}
}

// EnableMetrics mounts /metrics backed by g.
func (s *Server) EnableMetrics(g prom.Gatherer) { s.gatherer = g }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.With(s.rateLimit).Post("/", s.handleLaunch)
		r.Get("/{id}", s.handleGet)
		r.Delete("/{id}", s.handleCancel)
	})
	r.Get("/history", s.handleHistory)
	r.Get("/stats", s.handleStats)

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "launch rate exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// TaskView is the JSON form of a live execution.
type TaskView struct {
	ContextID string    `json:"context_id"`
	TaskID    string    `json:"task_id"`
	Mode      string    `json:"mode"`
	State     string    `json:"state"`
	Progress  int       `json:"progress"`
	Phase     string    `json:"phase,omitempty"`
	StartedAt time.Time `json:"started_at,omitzero"`
	Elapsed   string    `json:"elapsed,omitempty"`
}

func viewOf(c *task.Context) TaskView {
	v := TaskView{
		ContextID: c.ID(),
		TaskID:    c.Task().ID(),
		Mode:      c.Task().Mode().String(),
		State:     c.State().String(),
		Progress:  c.Progress(),
		Phase:     c.Phase(),
		StartedAt: c.StartedAt(),
	}
	if d, ok := c.Duration(); ok {
		v.Elapsed = task.FormatDuration(d)
	}
	return v
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	pred := task.AllTasks
	if mode := r.URL.Query().Get("mode"); mode != "" {
		m, err := task.ParseMode(mode)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		pred = func(tc task.TaskControl) bool { return tc.Context().Task().Mode() == m }
	}

	views := []TaskView{}
	for tc := range s.manager.GetTasks(pred) {
		views = append(views, viewOf(tc.Context()))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	tc, ok := s.manager.GetTask(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "no live execution with that id")
		return
	}
	writeJSON(w, http.StatusOK, viewOf(tc.Context()))
}

func (s *Server) handleLaunch(w http.ResponseWriter, r *http.Request) {
	var spec jobs.Spec
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&spec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	ctl, err := jobs.Launch(s.manager, spec, s.logger)
	switch {
	case errors.Is(err, task.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, task.ErrManagerClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logger.Info("task launched via api",
		core.F("context", ctl.Context().ID()),
		core.F("request_id", middleware.GetReqID(r.Context())))
	writeJSON(w, http.StatusAccepted, viewOf(ctl.Context()))
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	tc, ok := s.manager.GetTask(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "no live execution with that id")
		return
	}
	tc.Cancel()
	writeJSON(w, http.StatusAccepted, map[string]string{"context_id": tc.Context().ID(), "status": "cancelling"})
}

// HistoryView is the JSON form of a finished execution.
type HistoryView struct {
	ContextID  string    `json:"context_id"`
	TaskID     string    `json:"task_id"`
	Mode       string    `json:"mode"`
	State      string    `json:"state"`
	FinishedAt time.Time `json:"finished_at"`
	Duration   string    `json:"duration,omitempty"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	views := []HistoryView{}
	for _, rec := range s.manager.RecentTasks(limit) {
		v := HistoryView{
			ContextID:  rec.ContextID,
			TaskID:     rec.TaskID,
			Mode:       rec.Mode,
			State:      rec.State,
			FinishedAt: rec.FinishedAt,
		}
		if !rec.StartedAt.IsZero() {
			v.Duration = task.FormatDuration(rec.Duration)
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"manager":     s.manager.Stats(),
		"coordinator": s.manager.CoordinatorStats(),
		"workers":     s.manager.WorkerStats(),
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    "error",
		},
	})
}
