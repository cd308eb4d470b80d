// Package api exposes duplicate scans and engine configuration over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/listing-dedupe/internal/config"
	"github.com/sells-group/listing-dedupe/internal/dedupe"
	"github.com/sells-group/listing-dedupe/internal/model"
	"github.com/sells-group/listing-dedupe/internal/store"
)

// Engine is the part of dedupe.Engine the API drives.
type Engine interface {
	Run(ctx context.Context, records []model.PropertyRecord, opts dedupe.RunOptions) (*dedupe.Result, error)
	Config() config.DedupeConfig
	UpdateConfig(p dedupe.ConfigPatch) error
}

var _ Engine = (*dedupe.Engine)(nil)

// maxBodyBytes bounds scan request bodies.
const maxBodyBytes = 32 << 20

// Server serves the HTTP API. Store may be nil, in which case scans are not
// persisted and the run endpoints answer 404.
type Server struct {
	engine         Engine
	store          store.Store
	allowedOrigins []string
}

// NewServer creates a Server.
func NewServer(engine Engine, st store.Store, allowedOrigins []string) *Server {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return &Server{engine: engine, store: st, allowedOrigins: allowedOrigins}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/config", s.handleGetConfig)
		r.Patch("/config", s.handlePatchConfig)
		r.Post("/scan", s.handleScan)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{runID}", s.handleGetRun)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Config())
}

func (s *Server) handlePatchConfig(w http.ResponseWriter, r *http.Request) {
	var patch dedupe.ConfigPatch
	if err := decodeBody(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.engine.UpdateConfig(patch); err != nil {
		if errors.Is(err, dedupe.ErrInvalidConfig) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "update config failed")
		return
	}
	zap.L().Info("api: engine config updated")
	writeJSON(w, http.StatusOK, s.engine.Config())
}

// ScanRequest is the body of POST /v1/scan.
type ScanRequest struct {
	OwnerID    string                 `json:"owner_id,omitempty"`
	Properties []model.PropertyRecord `json:"properties"`
	Config     *dedupe.ConfigPatch    `json:"config,omitempty"`
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	for i := range req.Properties {
		req.Properties[i].Status = model.ParsePropertyStatus(string(req.Properties[i].Status))
	}

	result, err := s.engine.Run(r.Context(), req.Properties, dedupe.RunOptions{
		OwnerID:  req.OwnerID,
		Override: req.Config,
	})
	switch {
	case err == nil:
	case errors.Is(err, dedupe.ErrInvalidConfig):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case result == nil:
		zap.L().Error("api: scan failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "scan failed")
		return
	default:
		zap.L().Warn("api: scan cancelled", zap.String("run_id", result.RunID), zap.Error(err))
	}

	if s.store != nil {
		// The request context may already be done; persist what was found.
		ctx := context.WithoutCancel(r.Context())
		if err := s.store.SaveRun(ctx, result.Summary(), result.MatchRecords()); err != nil {
			zap.L().Error("api: save run failed", zap.String("run_id", result.RunID), zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "run history is disabled")
		return
	}
	q := r.URL.Query()
	filter := store.RunFilter{
		OwnerID: q.Get("owner_id"),
		Status:  model.RunStatus(q.Get("status")),
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("api: list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "run history is disabled")
		return
	}
	runID := chi.URLParam(r, "runID")

	run, err := s.store.GetRun(r.Context(), runID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		zap.L().Error("api: get run failed", zap.String("run_id", runID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get run failed")
		return
	}
	matches, err := s.store.ListMatches(r.Context(), runID)
	if err != nil {
		zap.L().Error("api: list matches failed", zap.String("run_id", runID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list matches failed")
		return
	}
	if matches == nil {
		matches = []model.Match{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run, "matches": matches})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return eris.Wrap(dec.Decode(v), "api: decode body")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
