package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/ytrag/internal/embedding"
	"github.com/hyperjump/ytrag/internal/models"
	"github.com/hyperjump/ytrag/internal/pipeline"
	"github.com/hyperjump/ytrag/internal/storage"
	"github.com/hyperjump/ytrag/internal/transcript"
)

const apiKeyHeader = "X-API-Key"

const defaultListLimit = 50

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	videoID := r.URL.Query().Get("video_id")
	if videoID == "" {
		s.respondError(w, http.StatusBadRequest, "Missing video_id parameter")
		return
	}
	languages := transcript.ParseLanguages(r.URL.Query().Get("languages"))
	if len(languages) == 0 {
		languages = s.config.Transcript.Languages
	}
	ctx := embedding.WithAPIKey(r.Context(), r.Header.Get(apiKeyHeader))

	s.logger.Debug("transcript request", zap.String("video_id", videoID), zap.Strings("languages", languages))
	result, err := s.pipeline.Ingest(ctx, videoID, languages)
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidInput) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("ingest failed", zap.String("video_id", videoID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(s.config.Retrieval.MaxK); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx := embedding.WithAPIKey(r.Context(), r.Header.Get(apiKeyHeader))

	s.logger.Debug("query request", zap.String("video_id", req.VideoID), zap.String("query", req.Query), zap.Int("k", req.K))
	chunks, err := s.pipeline.Query(ctx, req.VideoID, req.Query, req.K)
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidInput) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("query failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, &models.QueryResponse{
		Success:    true,
		VideoID:    req.VideoID,
		Query:      req.Query,
		Chunks:     chunks,
		Timestamps: pipeline.Timestamps(chunks),
		QueryTime:  time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleMoments(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")
	query := r.URL.Query().Get("q")
	limit, err := intParam(r, "limit", 0)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	moments, err := s.pipeline.Moments(r.Context(), videoID, query, limit)
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidInput) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("moments search failed", zap.String("video_id", videoID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"video_id": videoID,
		"query":    query,
		"moments":  moments,
	})
}

func (s *Server) handleListVideos(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		s.respondError(w, http.StatusNotImplemented, "transcript cache not enabled")
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := intParam(r, "limit", defaultListLimit)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	videos, err := s.cache.ListVideos(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list videos failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if videos == nil {
		videos = []*models.VideoSummary{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"videos": videos})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := map[string]interface{}{
		"transports": s.pipeline.Diagnose(ctx),
	}
	if s.cache != nil {
		videos, err := s.cache.CountVideos(ctx)
		if err != nil {
			s.logger.Error("status: count videos failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		entries, err := s.cache.CountEntries(ctx)
		if err != nil {
			s.logger.Error("status: count entries failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["videos"] = videos
		resp["entries"] = entries
	}
	if s.moments != nil {
		if n, err := s.moments.DocCount(); err == nil {
			resp["moment_entries"] = n
		}
	}

	cfg := s.config
	resp["config"] = map[string]interface{}{
		"vector_driver":        cfg.Vector.Driver,
		"embedding_provider":   cfg.Embedding.Provider,
		"embedding_model":      cfg.Embedding.Model,
		"embedding_dimensions": cfg.Embedding.Dimensions,
		"segment_target_size":  cfg.Segmenter.TargetSize,
		"segment_overlap":      cfg.Segmenter.OverlapEntries,
		"translation_enabled":  cfg.Translation.EnabledOrDefault(),
		"transcript_sources":   cfg.Transcript.Sources,
		"database_path":        cfg.Storage.DatabasePath,
		"keyword_index_path":   cfg.Storage.KeywordIndexPath,
	}
	paths := storage.DatabaseFiles(cfg.Storage.DatabasePath)
	if cfg.Storage.KeywordIndexPath != "" {
		paths = append(paths, cfg.Storage.KeywordIndexPath)
	}
	if diskBytes, err := storage.DiskUsageBytes(paths...); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("invalid " + name + " parameter")
	}
	return n, nil
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]interface{}{"success": false, "error": message})
}
