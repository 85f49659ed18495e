package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/wealth-cli/internal/metrics"
	"github.com/sells-group/wealth-cli/internal/model"
	"github.com/sells-group/wealth-cli/internal/pipeline"
	"github.com/sells-group/wealth-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		rec := metrics.NewRecorder(reg)

		env, err := initPipeline(ctx, "serve", rec)
		if err != nil {
			return err
		}
		defer env.Close()

		s := &server{
			store:    env.Store,
			runner:   env.Pipeline,
			reports:  env.Store != nil && cfg.Pipeline.Checkpoint,
			recorder: rec,
			gatherer: reg,
			origins:  cfg.Server.CORSOrigins,
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           s.routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// runner is the part of the pipeline the API drives.
type runner interface {
	Run(ctx context.Context, req pipeline.RunRequest) (*pipeline.Result, error)
}

type server struct {
	store    store.Store // may be nil
	runner   runner
	recorder *metrics.Recorder
	gatherer prometheus.Gatherer
	origins  []string
	reports  bool // runs checkpoint their report to store
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(s.origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/analyses", s.handleAnalyze)
		r.Route("/runs", func(r chi.Router) {
			r.Use(s.requireStore)
			r.Get("/", s.handleListRuns)
			r.Get("/{id}", s.handleGetRun)
			r.Get("/{id}/report", s.handleReport)
			r.Get("/{id}/checkpoints", s.handleCheckpoints)
		})
	})
	return r
}

type analyzeRequest struct {
	IDs     []string `json:"ids" validate:"required_without=Request,dive,required"`
	Request string   `json:"request" validate:"required_without=IDs"`
}

type analyzeResponse struct {
	RunID     string             `json:"run_id"`
	Status    model.RunStatus    `json:"status"`
	TargetIDs []model.CustomerID `json:"target_ids"`
	Failed    []string           `json:"failed_stages,omitempty"`
	ReportURL string             `json:"report_url,omitempty"`
}

func (s *server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := model.Validate(req); err != nil {
		writeError(w, http.StatusBadRequest, "ids or request is required")
		return
	}

	runReq := pipeline.RunRequest{Request: req.Request}
	if len(req.IDs) > 0 {
		for _, id := range req.IDs {
			runReq.TargetIDs = append(runReq.TargetIDs, model.CustomerID(id))
		}
		runReq.TargetIDs = model.UniqueIDs(runReq.TargetIDs)
	}

	res, err := s.runner.Run(r.Context(), runReq)
	if res == nil {
		zap.L().Error("api: analysis failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "analysis could not start")
		return
	}
	if s.recorder != nil {
		s.recorder.RunFinished(res.Status)
	}

	resp := analyzeResponse{
		RunID:     res.RunID,
		Status:    res.Status,
		TargetIDs: res.State.TargetIDs,
		Failed:    res.Failed,
	}
	if s.reports {
		resp.ReportURL = "/v1/runs/" + res.RunID + "/report"
	}
	if err != nil {
		zap.L().Warn("api: analysis aborted", zap.String("run_id", res.RunID), zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	filter := store.RunFilter{Status: model.RunStatus(r.URL.Query().Get("status"))}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		filter.Offset = n
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *server) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := loadReport(r.Context(), s.store, chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(report))
}

func (s *server) handleCheckpoints(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.GetRun(r.Context(), id); err != nil {
		s.storeError(w, err)
		return
	}
	cps, err := s.store.ListCheckpoints(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summarizeCheckpoints(cps))
}

func (s *server) requireStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.store == nil {
			writeError(w, http.StatusNotImplemented, "run history requires a store")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "run not found")
	case errors.Is(err, errNoReport):
		writeError(w, http.StatusNotFound, "report not available")
	default:
		zap.L().Error("api: store error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
