package httpd

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"glossa/internal/api"
	"glossa/internal/cachestore"
	"glossa/internal/logging"
	"glossa/internal/translation"
)

// maxBodyBytes bounds request bodies; documents larger than this are
// rejected before decoding.
const maxBodyBytes = 4 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req api.TranslateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := api.Validate(req); err != nil {
		writeError(w, err)
		return
	}
	principal := api.ResolvePrincipal(req.UserID, req.SessionID,
		r.Header.Get("X-User-ID"), r.Header.Get("X-Session-ID"))

	if req.Stream {
		s.streamTranslation(w, r, req.ToTranslatorRequest(principal))
		return
	}

	resp, err := s.svc.Translate(r.Context(), req.ToTranslatorRequest(principal))
	s.metrics.observeTranslate(resp, err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FromTranslatorResponse(resp))
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, err := s.store.JobByID(r.Context(), jobID)
	if err != nil {
		writeError(w, err)
		return
	}
	chunks, err := s.store.ChunksForJob(r.Context(), job.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := api.TranslateResponse{
		JobID:            job.JobID,
		Status:           string(job.Status),
		TranslatedText:   job.TranslatedText,
		Cached:           job.CacheHit,
		Progress:         job.ProgressPercent,
		ChunksTotal:      job.ChunksTotal,
		ChunksCompleted:  job.ChunksCompleted,
		ChunksFailed:     job.ChunksFailed,
		InputTokens:      job.InputTokens,
		OutputTokens:     job.OutputTokens,
		EstimatedCostUSD: job.EstimatedCostUSD,
		ProcessingTimeMS: job.ProcessingTimeMS,
		ErrorMessage:     job.ErrorMessage,
	}
	for _, chunk := range chunks {
		resp.Chunks = append(resp.Chunks, api.ChunkFromDomain(chunk))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, err := s.svc.Cancel(r.Context(), jobID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.JobFromDomain(job))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = r.Header.Get("X-User-ID")
	}
	if userID == "" {
		writeError(w, &translation.ValidationError{Field: "user_id", Reason: "required"})
		return
	}
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	jobs, total, err := s.store.History(r.Context(), userID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := api.HistoryResponse{Jobs: []api.JobDTO{}, Total: total, Limit: limit, Offset: offset}
	for _, job := range jobs {
		resp.Jobs = append(resp.Jobs, api.JobFromDomain(job))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleFeedback stores the rating and folds it into the cache: a positive
// rating promotes the entry to the high-quality TTL tier, a negative one
// evicts it so the next request retranslates.
func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	var req api.FeedbackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := api.Validate(req); err != nil {
		writeError(w, err)
		return
	}
	job, err := s.store.JobByID(r.Context(), jobID)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.SetFeedback(r.Context(), jobID, req.Rating, req.Comment); err != nil {
		writeError(w, err)
		return
	}

	switch {
	case req.Rating < 0:
		if _, err := s.cache.Invalidate(r.Context(), job.ContentHash, job.SourceLang, job.TargetLang); err != nil {
			s.logger.Warn("feedback cache invalidate failed",
				logging.String(logging.FieldJobID, jobID), logging.Error(err))
		}
	case job.Status == translation.JobCompleted && job.TranslatedText != "":
		entry := &cachestore.Entry{
			ContentHash:    job.ContentHash,
			PageURL:        job.PageURL,
			SourceLang:     job.SourceLang,
			TargetLang:     job.TargetLang,
			TranslatedText: job.TranslatedText,
			Model:          job.Model,
			QualityScore:   5,
		}
		if err := s.cache.Store(r.Context(), entry); err != nil {
			s.logger.Warn("feedback cache refresh failed",
				logging.String(logging.FieldJobID, jobID), logging.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.StatsFromDomain(stats))
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.cache.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.CacheStatsResponse{
		Entries:  stats.Entries,
		Expired:  stats.Expired,
		Pinned:   stats.Pinned,
		HitTotal: stats.HitTotal,
	})
}

func (s *Server) handleInvalidateCache(w http.ResponseWriter, r *http.Request) {
	contentHash := chi.URLParam(r, "contentHash")
	query := r.URL.Query()
	deleted, err := s.cache.Invalidate(r.Context(), contentHash,
		query.Get("source_lang"), query.Get("target_lang"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.DeletedResponse{Deleted: deleted})
}

func (s *Server) handleInvalidateCacheByURL(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	pageURL := query.Get("url")
	if pageURL == "" {
		writeError(w, &translation.ValidationError{Field: "url", Reason: "required"})
		return
	}
	deleted, err := s.cache.InvalidateURL(r.Context(), pageURL,
		query.Get("source_lang"), query.Get("target_lang"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.DeletedResponse{Deleted: deleted})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(v); err != nil {
		return &translation.ValidationError{Field: "body", Reason: fmt.Sprintf("invalid json: %v", err)}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	envelope := api.ErrorResponse{Error: err.Error(), Kind: string(translation.KindOf(err))}
	var verr *translation.ValidationError
	if errors.As(err, &verr) {
		envelope.Field = verr.Field
	}
	writeJSON(w, statusFor(err), envelope)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, translation.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, translation.ErrConflict), errors.Is(err, translation.ErrVersionConflict):
		return http.StatusConflict
	}
	switch translation.KindOf(err) {
	case translation.KindValidation:
		return http.StatusBadRequest
	case translation.KindRateLimit:
		return http.StatusTooManyRequests
	case translation.KindTimeout:
		return http.StatusGatewayTimeout
	case translation.KindService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
