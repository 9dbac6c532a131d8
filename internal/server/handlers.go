package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/knakagawa/retrieval/internal/auth"
	"github.com/knakagawa/retrieval/internal/cache"
	"github.com/knakagawa/retrieval/internal/ingestion"
	"github.com/knakagawa/retrieval/internal/repository"
	"github.com/knakagawa/retrieval/internal/service"
)

type handlers struct {
	search    *service.SearchService
	knowledge *service.KnowledgeBaseService
	analytics *service.AnalyticsService
	cache     *cache.ResponseCache
	chunker   *ingestion.Chunker
	defaults  service.SearchRequest
	logger    *slog.Logger
}

// searchRequestBody mirrors service.SearchRequest with optional booleans so
// an absent field can fall back to the configured default.
type searchRequestBody struct {
	Query            string   `json:"query"`
	KnowledgeBaseIDs []string `json:"knowledge_base_ids"`
	Strategy         string   `json:"strategy"`
	SemanticWeight   float64  `json:"semantic_weight"`
	FulltextWeight   float64  `json:"fulltext_weight"`
	MaxResults       int      `json:"max_results"`
	MinScore         float64  `json:"min_score"`
	UseReranking     *bool    `json:"use_reranking"`
	UseClustering    *bool    `json:"use_clustering"`
}

func (h *handlers) handleSearch(w http.ResponseWriter, r *http.Request) {
	var body searchRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(body.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	req := service.SearchRequest{
		Query:            body.Query,
		KnowledgeBaseIDs: body.KnowledgeBaseIDs,
		Strategy:         body.Strategy,
		SemanticWeight:   body.SemanticWeight,
		FulltextWeight:   body.FulltextWeight,
		MaxResults:       body.MaxResults,
		MinScore:         body.MinScore,
		UseReranking:     h.defaults.UseReranking,
		UseClustering:    h.defaults.UseClustering,
	}
	if req.Strategy == "" {
		req.Strategy = h.defaults.Strategy
	}
	if body.UseReranking != nil {
		req.UseReranking = *body.UseReranking
	}
	if body.UseClustering != nil {
		req.UseClustering = *body.UseClustering
	}
	if user, ok := auth.UserFromContext(r.Context()); ok {
		req.UserID = user.ID
	}

	start := time.Now()
	key := cache.Key(req)
	if h.cache != nil {
		if resp, ok := h.cache.Get(key); ok {
			h.logCacheHit(r, req, resp, time.Since(start))
			writeJSON(w, http.StatusOK, resp)
			return
		}
	}

	resp, err := h.search.Search(r.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrRetrieval) {
			h.logger.Error("search failed", "error", err)
			writeError(w, http.StatusBadGateway, "retrieval failed")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.cache != nil {
		h.cache.Set(key, resp)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) logCacheHit(r *http.Request, req service.SearchRequest, resp *service.SearchResponse, elapsed time.Duration) {
	if h.analytics == nil {
		return
	}
	h.analytics.LogSearch(r.Context(), &repository.SearchLog{
		UserID:           req.UserID,
		Query:            req.Query,
		Strategy:         resp.StrategyUsed,
		ResponseTime:     elapsed,
		KnowledgeBaseIDs: req.KnowledgeBaseIDs,
		ResultCount:      len(resp.Results),
		CacheHit:         true,
	})
}

func (h *handlers) handleListStrategies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"strategies": []map[string]string{
			{"name": service.StrategyAuto, "description": "Select a strategy automatically from query features and history"},
			{"name": service.StrategySemantic, "description": "Dense vector similarity search"},
			{"name": service.StrategyFulltext, "description": "Keyword and phrase matching"},
			{"name": service.StrategyHybrid, "description": "Weighted fusion of semantic and fulltext retrieval"},
		},
	})
}

type feedbackBody struct {
	SearchID string  `json:"search_id"`
	Type     string  `json:"type"`
	Rating   float64 `json:"rating"`
	Comment  string  `json:"comment"`
}

func (h *handlers) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var body feedbackBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Type != "positive" && body.Type != "negative" {
		writeError(w, http.StatusBadRequest, `type must be "positive" or "negative"`)
		return
	}

	fb := &repository.FeedbackLog{
		Type:    body.Type,
		Rating:  body.Rating,
		Comment: body.Comment,
	}
	if body.SearchID != "" {
		id, err := uuid.Parse(body.SearchID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid search_id")
			return
		}
		fb.SearchID = &id
	}
	if user, ok := auth.UserFromContext(r.Context()); ok {
		fb.UserID = user.ID
	}

	if err := h.analytics.LogFeedback(r.Context(), fb); err != nil {
		h.logger.Error("recording feedback failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record feedback")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "recorded"})
}

func (h *handlers) handleSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"default_strategy": h.defaults.Strategy,
		"max_results":      h.defaults.MaxResults,
		"min_score":        h.defaults.MinScore,
		"semantic_weight":  h.defaults.SemanticWeight,
		"fulltext_weight":  h.defaults.FulltextWeight,
		"use_reranking":    h.defaults.UseReranking,
		"use_clustering":   h.defaults.UseClustering,
	})
}

type knowledgeBaseBody struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type knowledgeBaseResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	DocumentCount int       `json:"document_count"`
	ChunkCount    int       `json:"chunk_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toKnowledgeBaseResponse(kb *repository.KnowledgeBase) knowledgeBaseResponse {
	return knowledgeBaseResponse{
		ID:            kb.ID.String(),
		Name:          kb.Name,
		Description:   kb.Description,
		DocumentCount: kb.DocumentCount,
		ChunkCount:    kb.ChunkCount,
		CreatedAt:     kb.CreatedAt,
		UpdatedAt:     kb.UpdatedAt,
	}
}

func (h *handlers) handleCreateKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	var body knowledgeBaseBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	kb, err := h.knowledge.Create(r.Context(), body.Name, body.Description)
	if err != nil {
		h.logger.Error("creating knowledge base failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create knowledge base")
		return
	}
	writeJSON(w, http.StatusCreated, toKnowledgeBaseResponse(kb))
}

func (h *handlers) handleListKnowledgeBases(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	kbs, total, err := h.knowledge.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("listing knowledge bases failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list knowledge bases")
		return
	}

	items := make([]knowledgeBaseResponse, 0, len(kbs))
	for _, kb := range kbs {
		items = append(items, toKnowledgeBaseResponse(kb))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"knowledge_bases": items,
		"total":           total,
	})
}

func (h *handlers) handleGetKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid knowledge base id")
		return
	}

	kb, err := h.knowledge.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "knowledge base not found")
			return
		}
		h.logger.Error("fetching knowledge base failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch knowledge base")
		return
	}
	writeJSON(w, http.StatusOK, toKnowledgeBaseResponse(kb))
}

func (h *handlers) handleDeleteKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid knowledge base id")
		return
	}

	if err := h.knowledge.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "knowledge base not found")
			return
		}
		h.logger.Error("deleting knowledge base failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete knowledge base")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type indexDocumentBody struct {
	Title    string            `json:"title"`
	Content  string            `json:"content"`
	Chunks   []string          `json:"chunks"`
	Metadata map[string]string `json:"metadata"`
}

func (h *handlers) handleIndexDocument(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid knowledge base id")
		return
	}

	var body indexDocumentBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// Pre-chunked content wins; otherwise raw content is chunked here
	if len(body.Chunks) == 0 && body.Content != "" {
		body.Chunks = h.chunker.Chunk(body.Content)
	}
	if len(body.Chunks) == 0 {
		writeError(w, http.StatusBadRequest, "content or chunks are required")
		return
	}

	docID, err := h.knowledge.IndexDocument(r.Context(), id, body.Title, body.Chunks, body.Metadata)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "knowledge base not found")
			return
		}
		h.logger.Error("indexing document failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to index document")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"document_id": docID,
		"chunk_count": len(body.Chunks),
	})
}

func (h *handlers) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.analytics.PerformanceMetrics(r.Context(), r.URL.Query().Get("time_range"))
	if err != nil {
		h.logger.Error("computing metrics failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute metrics")
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

func (h *handlers) handleStrategyDistribution(w http.ResponseWriter, r *http.Request) {
	usage, err := h.analytics.StrategyDistribution(r.Context(), r.URL.Query().Get("time_range"))
	if err != nil {
		h.logger.Error("computing strategy distribution failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute strategy distribution")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"strategies": usage})
}

func (h *handlers) handleTopQueries(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10)
	queries, err := h.analytics.TopQueries(r.Context(), r.URL.Query().Get("time_range"), limit)
	if err != nil {
		h.logger.Error("computing top queries failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute top queries")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"queries": queries})
}

func (h *handlers) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		writeError(w, http.StatusNotFound, "cache disabled")
		return
	}
	writeJSON(w, http.StatusOK, h.cache.Stats())
}

func (h *handlers) handlePurgeCache(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		writeError(w, http.StatusNotFound, "cache disabled")
		return
	}
	h.cache.Purge()
	w.WriteHeader(http.StatusNoContent)
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}
