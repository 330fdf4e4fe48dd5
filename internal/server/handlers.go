package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/proozl/internal/coordinator"
	"github.com/hyperjump/proozl/internal/models"
	"github.com/hyperjump/proozl/internal/resultcache"
	"github.com/hyperjump/proozl/internal/storage"
)

const maxInvokeBody = 4 << 20

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxInvokeBody))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	resp := s.coord.Invoke(r.Context(), raw)
	s.respondJSON(w, resp.Status, resp)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	key, ok := s.keyFromRequest(w, r)
	if !ok {
		return
	}
	maxResults, err := intParam(r, "max_results")
	if err != nil || maxResults < 0 {
		s.respondError(w, http.StatusBadRequest, "invalid max_results")
		return
	}
	s.logger.Debug("results request",
		zap.String("query", key.Query),
		zap.Int("page_start", key.PageStart))
	resp := s.coord.Handle(r.Context(), coordinator.ResultQuery{Key: key, MaxResults: maxResults})
	s.respondJSON(w, resp.Status, resp)
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	key, ok := s.keyFromRequest(w, r)
	if !ok {
		return
	}
	resp := s.coord.Handle(r.Context(), coordinator.AnalysisQuery{Key: key})
	s.respondJSON(w, resp.Status, resp)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		s.respondError(w, http.StatusNotImplemented, "refresh not enabled")
		return
	}
	cursor := storage.Cursor(r.URL.Query().Get("cursor"))
	if err := cursor.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	maxRecords, err := intParam(r, "max_records")
	if err != nil || maxRecords < 0 {
		s.respondError(w, http.StatusBadRequest, "invalid max_records")
		return
	}
	opts := resultcache.SweepOptions{Cursor: cursor, MaxRecords: maxRecords}
	if !s.refresher.Trigger(s.ctx, opts) {
		s.respondError(w, http.StatusConflict, "refresh already running")
		return
	}
	s.logger.Info("refresh sweep triggered", zap.String("cursor", string(cursor)))
	s.respondJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handleRefreshStatus(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		s.respondError(w, http.StatusNotImplemented, "refresh not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, s.refresher.Status())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	results, err := s.stats.CountResults(ctx)
	if err != nil {
		s.logger.Error("status: count results failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	analyses, err := s.stats.CountAnalyses(ctx)
	if err != nil {
		s.logger.Error("status: count analyses failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"results":  results,
		"analyses": analyses,
	}
	if du, ok := s.stats.(diskUser); ok {
		if n, err := du.DiskUsage(); err == nil {
			resp["disk_usage_bytes"] = n
		}
	}
	if s.refresher != nil {
		resp["refresh"] = s.refresher.Status()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) keyFromRequest(w http.ResponseWriter, r *http.Request) (models.CacheKey, bool) {
	q := r.URL.Query().Get("query")
	if strings.TrimSpace(q) == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return models.CacheKey{}, false
	}
	start, err := intParam(r, "start")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid start")
		return models.CacheKey{}, false
	}
	key, err := models.NewCacheKey(q, start)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return models.CacheKey{}, false
	}
	return key, true
}

// intParam reads an optional integral query parameter; absent means zero.
func intParam(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	return models.ParseIntegral(v)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
