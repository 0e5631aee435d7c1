package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sitecrew/nudges/internal/app"
	"github.com/sitecrew/nudges/internal/config"
	"github.com/sitecrew/nudges/internal/logger"
	"github.com/sitecrew/nudges/nudge"
	"github.com/sitecrew/nudges/rules"
	"github.com/sitecrew/nudges/runner"
)

type pinger interface {
	PingContext(ctx context.Context) error
}

type Server struct {
	db      pinger // nil when running without a database
	nudges  nudge.Store
	engine  *rules.Engine
	runner  *runner.Runner
	timeout time.Duration
	lastRun atomic.Pointer[runner.Report]
	router  *chi.Mux
}

func NewServer(a *app.App) *Server {
	return newServer(a.DB, a.Nudges, a.Rules, a.Runner, a.Config.HTTP.Timeout)
}

func newServer(db pinger, nudges nudge.Store, engine *rules.Engine, run *runner.Runner, timeout time.Duration) *Server {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	s := &Server{
		db:      db,
		nudges:  nudges,
		engine:  engine,
		runner:  run,
		timeout: timeout,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(logger.Logger.Handler(), slog.LevelInfo),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))

	r.Get("/api/v1/health", s.handleHealth)
	r.Get("/api/v1/metrics", s.handleMetrics)

	r.Route("/api/v1/nudges", func(r chi.Router) {
		r.Get("/", s.handleListNudges)
		r.Post("/run", s.handleRun)
		r.Get("/{nudgeId}", s.handleGetNudge)
		r.Post("/{nudgeId}/action", s.handleActionNudge)
	})

	r.Route("/api/v1/rules", func(r chi.Router) {
		r.Get("/", s.handleListRules)
		r.Post("/", s.handleCreateRule)
		r.Get("/{ruleId}", s.handleGetRule)
		r.Put("/{ruleId}", s.handleUpdateRule)
		r.Delete("/{ruleId}", s.handleDeleteRule)
		r.Post("/{ruleId}/evaluate", s.handleEvaluateRule)
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// execute runs the runner and remembers the report for the health check.
func (s *Server) execute(ctx context.Context, dryRun bool) (*runner.Report, error) {
	report, err := s.runner.Execute(ctx, dryRun)
	if report != nil {
		s.lastRun.Store(report)
	}
	return report, err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "healthy"}
	if last := s.lastRun.Load(); last != nil {
		resp.LastRunAt = last.StartedAt.UTC().Format(time.RFC3339)
		ok := last.Success
		resp.LastRunOK = &ok
	}
	if all, err := s.engine.List(r.Context()); err == nil {
		for _, rule := range all {
			if rule.Active {
				resp.ActiveRules++
			}
		}
	}

	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			resp.Status = "unhealthy"
			resp.Error = err.Error()
			respondJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, logger.Snapshot())
}

// handleListNudges returns open nudges, most urgent first. No nudges is an
// empty list, not an error.
func (s *Server) handleListNudges(w http.ResponseWriter, r *http.Request) {
	list, err := s.nudges.ListActive(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list nudges", err)
		return
	}
	if list == nil {
		list = []*nudge.Nudge{}
	}

	respondJSON(w, http.StatusOK, NudgesListResponse{
		Nudges: list,
		Count:  len(list),
	})
}

func (s *Server) handleGetNudge(w http.ResponseWriter, r *http.Request) {
	n, err := s.nudges.Get(r.Context(), chi.URLParam(r, "nudgeId"))
	if err != nil {
		respondError(w, errorStatus(err), "failed to get nudge", err)
		return
	}
	respondJSON(w, http.StatusOK, n)
}

func (s *Server) handleActionNudge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "nudgeId")
	if err := s.nudges.MarkActioned(r.Context(), id); err != nil {
		respondError(w, errorStatus(err), "failed to action nudge", err)
		return
	}

	n, err := s.nudges.Get(r.Context(), id)
	if err != nil {
		respondError(w, errorStatus(err), "failed to get nudge", err)
		return
	}
	respondJSON(w, http.StatusOK, n)
}

// handleRun triggers a run. dryRun defaults to false.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	dryRun := false
	if v := r.URL.Query().Get("dryRun"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "dryRun must be true or false", err)
			return
		}
		dryRun = parsed
	}

	report, err := s.execute(r.Context(), dryRun)
	if errors.Is(err, runner.ErrRunInProgress) {
		respondError(w, http.StatusConflict, "a run is already in progress", err)
		return
	}
	if err != nil {
		logger.ErrorHttp5xx()
		logger.Error("nudge run failed", "error", err)
		respondJSON(w, http.StatusInternalServerError, report)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	list, err := s.engine.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list rules", err)
		return
	}
	if list == nil {
		list = []*rules.Rule{}
	}
	respondJSON(w, http.StatusOK, RulesListResponse{Rules: list})
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req RuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	rule, err := req.toRule("")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid rule", err)
		return
	}

	// AddRule validates and compiles before storing
	if err := s.engine.AddRule(r.Context(), rule); err != nil {
		respondError(w, errorStatus(err), "failed to add rule", err)
		return
	}
	respondJSON(w, http.StatusCreated, rule)
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := s.engine.Get(r.Context(), chi.URLParam(r, "ruleId"))
	if err != nil {
		respondError(w, errorStatus(err), "failed to get rule", err)
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	var req RuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	rule, err := req.toRule(chi.URLParam(r, "ruleId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid rule", err)
		return
	}

	if err := s.engine.UpdateRule(r.Context(), rule); err != nil {
		respondError(w, errorStatus(err), "failed to update rule", err)
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteRule(r.Context(), chi.URLParam(r, "ruleId")); err != nil {
		respondError(w, errorStatus(err), "failed to delete rule", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleEvaluateRule tries one rule against caller-supplied facts without
// writing anything. Inactive rules can be tried too.
func (s *Server) handleEvaluateRule(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	res, err := s.engine.Evaluate(r.Context(), chi.URLParam(r, "ruleId"), req.activation(time.Now()))
	if res == nil {
		respondError(w, errorStatus(err), "failed to evaluate rule", err)
		return
	}
	if err != nil {
		logger.WarnHttp4xx()
		respondJSON(w, http.StatusUnprocessableEntity, newEvaluateResponse(res))
		return
	}
	respondJSON(w, http.StatusOK, newEvaluateResponse(res))
}

// Helper functions

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, nudge.ErrNotFound), errors.Is(err, rules.ErrRuleNotFound):
		return http.StatusNotFound
	case errors.Is(err, rules.ErrRuleExists), errors.Is(err, runner.ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, rules.ErrInvalidRule):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := ErrorResponse{Error: message}
	if err != nil {
		response.Details = err.Error()
	}

	switch {
	case status >= 500:
		logger.ErrorHttp5xx()
		logger.Error(message, "status", status, "error", err)
	case status >= 400:
		logger.WarnHttp4xx()
		logger.Debug(message, "status", status, "error", err)
	}

	respondJSON(w, status, response)
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to config file (default ./"+config.DefaultFile+" if present)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("failed to load config", "error", err)
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to start", "error", err)
	}
	defer a.Close()

	server := NewServer(a)

	var sched *scheduler
	if cfg.Schedule.Enabled {
		sched, err = newScheduler(cfg.Schedule.Cron, server, cfg.Runner.DryRun)
		if err != nil {
			logger.Fatal("failed to create scheduler", "error", err)
		}
		sched.Start()
		logger.Info("scheduled runs enabled", "cron", cfg.Schedule.Cron, "dry_run", cfg.Runner.DryRun)
	}

	port := strconv.Itoa(cfg.HTTP.Port)
	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.HTTP.Timeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		logger.Info("server starting", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if sched != nil {
		sched.Stop(shutdownCtx)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := logger.Shutdown(shutdownCtx); err != nil {
		logger.Error("logger shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
