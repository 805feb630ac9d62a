package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/autovant/RCA-Final-sub001/internal/pkg/dbctx"
	"github.com/autovant/RCA-Final-sub001/internal/platform/logger"
	"github.com/autovant/RCA-Final-sub001/internal/services"
)

type CacheHandler struct {
	cache       services.EmbeddingCacheService
	coordinator *services.EvictionCoordinator
	log         *logger.Logger
}

func NewCacheHandler(cache services.EmbeddingCacheService, coordinator *services.EvictionCoordinator, baseLog *logger.Logger) *CacheHandler {
	return &CacheHandler{
		cache:       cache,
		coordinator: coordinator,
		log:         baseLog.With("handler", "CacheHandler"),
	}
}

type cacheLookupRequest struct {
	TenantID    uuid.UUID `json:"tenant_id"`
	ContentHash string    `json:"content_hash"`
	Model       string    `json:"model"`
}

// Lookup returns the cached embedding or 404 on a miss.
func (h *CacheHandler) Lookup(c *gin.Context) {
	var req cacheLookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	hit, err := h.cache.Lookup(dbc, req.TenantID, req.ContentHash, req.Model)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	if hit == nil {
		c.Status(http.StatusNotFound)
		return
	}
	RespondOK(c, hit)
}

// Store writes one embedding; the scrub confirmation travels in the body.
func (h *CacheHandler) Store(c *gin.Context) {
	var req services.CacheStoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	entry, err := h.cache.Store(dbc, req)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// Purge drops a single entry, used by the upload pipeline when source
// content is re-scrubbed.
func (h *CacheHandler) Purge(c *gin.Context) {
	var req cacheLookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	if err := h.cache.Purge(dbc, req.TenantID, req.ContentHash, req.Model); err != nil {
		RespondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type evictionScheduleRequest struct {
	TenantID *uuid.UUID `json:"tenant_id"`
	HitRate  float64    `json:"hit_rate"`
	JobID    string     `json:"job_id"`
}

// ScheduleEviction asks the coordinator to run an eviction pass; scheduling
// is best-effort and the response only reports whether a task started.
func (h *CacheHandler) ScheduleEviction(c *gin.Context) {
	var req evictionScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	scheduled := h.coordinator.MaybeSchedule(req.TenantID, req.HitRate, req.JobID)
	c.JSON(http.StatusAccepted, gin.H{"scheduled": scheduled})
}
